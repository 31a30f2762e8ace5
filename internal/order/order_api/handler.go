package order_api

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"ms-lunch/internal/auth"
	"ms-lunch/internal/logger"
	"ms-lunch/internal/order"
	"ms-lunch/internal/utils"
)

type Handler struct {
	Service *order.Service
	Logger  *logger.Logger
}

func NewHandler(svc *order.Service, log *logger.Logger) *Handler {
	return &Handler{Service: svc, Logger: log}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/orders", func(r chi.Router) {
		r.Post("/", h.CreateOrder)
		r.Get("/my-orders", h.UserOrders)
		r.Get("/group", h.GroupOrder)
		r.Get("/{orderId}", h.GetOrder)
		r.Delete("/{orderId}", h.CancelOrder)

		r.With(auth.RequireAdmin).Get("/export/download", h.Export)
		r.With(auth.RequireAdmin).Post("/confirm", h.ConfirmDay)
	})
}

func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var in order.CreateOrderInput
	if err := utils.DecodeJSON(r, &in); err != nil {
		utils.WriteError(w, err)
		return
	}
	o, err := h.Service.CreateOrder(r.Context(), auth.UserID(r.Context()), in)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteSuccess(w, http.StatusCreated, "Order placed", map[string]interface{}{"order": o})
}

func (h *Handler) UserOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.Service.UserOrders(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "", map[string]interface{}{"orders": orders, "count": len(orders)})
}

func (h *Handler) GroupOrder(w http.ResponseWriter, r *http.Request) {
	g, err := h.Service.GroupOrder(r.Context(), r.URL.Query().Get("date"))
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "", g)
}

func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	p := auth.PrincipalFrom(r.Context())
	o, err := h.Service.GetOrder(r.Context(), chi.URLParam(r, "orderId"), auth.UserID(r.Context()), p.IsAdmin())
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "", map[string]interface{}{"order": o})
}

func (h *Handler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.Service.CancelOrder(r.Context(), chi.URLParam(r, "orderId"), auth.UserID(r.Context()))
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Order cancelled", map[string]interface{}{"order": o})
}

type confirmRequest struct {
	Date string `json:"date"`
}

func (h *Handler) ConfirmDay(w http.ResponseWriter, r *http.Request) {
	var req confirmRequest
	if r.ContentLength > 0 {
		if err := utils.DecodeJSON(r, &req); err != nil {
			utils.WriteError(w, err)
			return
		}
	}
	n, err := h.Service.ConfirmDay(r.Context(), req.Date)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, fmt.Sprintf("%d orders confirmed", n), map[string]interface{}{"confirmed": n})
}

func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	out, err := h.Service.Export(r.Context(), q.Get("date"), q.Get("format"))
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	h.Logger.Info("ORDER", fmt.Sprintf("Group order exported as %s", out.Extension))
	w.Header().Set("Content-Type", out.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"lunch-order.%s\"", out.Extension))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(out.Body)
}
