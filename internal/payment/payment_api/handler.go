package payment_api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"ms-lunch/internal/auth"
	"ms-lunch/internal/logger"
	"ms-lunch/internal/models"
	"ms-lunch/internal/payment"
	"ms-lunch/internal/utils"
)

type Handler struct {
	Service *payment.Service
	Logger  *logger.Logger
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireUser)
		r.Get("/groups/{groupId}/payments", h.GroupPayments)
		r.Post("/groups/{groupId}/payments/mark-pending", h.MarkPending)
		r.Put("/groups/{groupId}/payments/{userId}", h.UpdateStatus)
	})
}

func (h *Handler) GroupPayments(w http.ResponseWriter, r *http.Request) {
	out, err := h.Service.GroupPayments(r.Context(), chi.URLParam(r, "groupId"), auth.UserID(r.Context()))
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "", out)
}

func (h *Handler) MarkPending(w http.ResponseWriter, r *http.Request) {
	p, err := h.Service.MarkPending(r.Context(), chi.URLParam(r, "groupId"), auth.UserID(r.Context()))
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Payment marked as pending", map[string]interface{}{"payment": p})
}

type statusRequest struct {
	Status models.PaymentStatus `json:"status"`
}

func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.WriteError(w, err)
		return
	}
	p, err := h.Service.UpdateStatus(r.Context(), chi.URLParam(r, "groupId"), chi.URLParam(r, "userId"), auth.UserID(r.Context()), req.Status)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Payment status updated", map[string]interface{}{"payment": p})
}
