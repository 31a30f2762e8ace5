package admin_api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"ms-lunch/internal/admin"
	"ms-lunch/internal/auth"
	"ms-lunch/internal/logger"
	"ms-lunch/internal/utils"
)

// Handler handles admin HTTP endpoints
type Handler struct {
	Service *admin.Service
	Logger  *logger.Logger
}

func NewHandler(service *admin.Service, log *logger.Logger) *Handler {
	return &Handler{Service: service, Logger: log}
}

// RegisterRoutes mounts the admin routes; every one requires the admin role.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/admin", func(r chi.Router) {
		r.Use(auth.RequireAdmin)

		r.Get("/stats/daily", h.DailyStats)
		r.Get("/stats/overview", h.Overview)
		r.Get("/stats/history", h.OrderHistory)

		r.Get("/voting/results", h.VotingResults)
		r.Get("/orders/group", h.GroupOrder)

		r.Get("/restaurants/daily", h.DailyRestaurants)
		r.Post("/restaurants/daily", h.SetDailyRestaurants)

		r.Get("/users", h.Users)
		r.Put("/users/{userId}/role", h.UpdateUserRole)
	})
}

func (h *Handler) DailyStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Service.DailyStats(r.Context(), r.URL.Query().Get("date"))
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "", stats)
}

func (h *Handler) Overview(w http.ResponseWriter, r *http.Request) {
	out, err := h.Service.Overview(r.Context())
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "", out)
}

func (h *Handler) OrderHistory(w http.ResponseWriter, r *http.Request) {
	days := 30
	if v := r.URL.Query().Get("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			utils.WriteError(w, utils.Invalid(utils.CodeInvalidInput, "days must be a number"))
			return
		}
		days = n
	}
	rows, err := h.Service.OrderHistory(r.Context(), days)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "", map[string]interface{}{"days": rows})
}

func (h *Handler) VotingResults(w http.ResponseWriter, r *http.Request) {
	res, err := h.Service.VotingResults(r.Context(), r.URL.Query().Get("date"))
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "", res)
}

func (h *Handler) GroupOrder(w http.ResponseWriter, r *http.Request) {
	g, err := h.Service.GroupOrder(r.Context(), r.URL.Query().Get("date"))
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "", g)
}

func (h *Handler) DailyRestaurants(w http.ResponseWriter, r *http.Request) {
	restaurants, err := h.Service.DailyRestaurants(r.Context(), r.URL.Query().Get("date"))
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "", map[string]interface{}{"restaurants": restaurants})
}

type dailyRequest struct {
	Date          string   `json:"date"`
	RestaurantIDs []string `json:"restaurant_ids"`
}

func (h *Handler) SetDailyRestaurants(w http.ResponseWriter, r *http.Request) {
	var req dailyRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.WriteError(w, err)
		return
	}
	restaurants, err := h.Service.SetDailyRestaurants(r.Context(), req.Date, req.RestaurantIDs)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Daily restaurants updated", map[string]interface{}{"restaurants": restaurants})
}

func (h *Handler) Users(w http.ResponseWriter, r *http.Request) {
	users, err := h.Service.Users(r.Context())
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "", map[string]interface{}{"users": users, "count": len(users)})
}

type roleRequest struct {
	Role string `json:"role"`
}

func (h *Handler) UpdateUserRole(w http.ResponseWriter, r *http.Request) {
	var req roleRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.WriteError(w, err)
		return
	}
	u, err := h.Service.UpdateUserRole(r.Context(), auth.UserID(r.Context()), chi.URLParam(r, "userId"), req.Role)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Role updated", map[string]interface{}{"user": u})
}
