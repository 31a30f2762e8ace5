package auth_api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"ms-lunch/internal/auth"
	"ms-lunch/internal/logger"
	"ms-lunch/internal/utils"
)

type Handler struct {
	Service *auth.Service
	Logger  *logger.Logger
}

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RegisterPublicRoutes mounts the unauthenticated endpoints; limit wraps them
// with the stricter auth rate limiter.
func (h *Handler) RegisterPublicRoutes(r chi.Router, limit func(http.Handler) http.Handler) {
	r.Route("/auth", func(r chi.Router) {
		r.With(limit).Post("/register", h.Register)
		r.With(limit).Post("/login", h.Login)
	})
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/auth/logout", h.Logout)
	r.Get("/auth/me", h.Me)
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.WriteError(w, err)
		return
	}

	user, err := h.Service.Register(r.Context(), req.Email, req.Password, req.Name)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteSuccess(w, http.StatusCreated, "Registration successful", map[string]interface{}{"user": user})
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.WriteError(w, err)
		return
	}
	if req.Email == "" || req.Password == "" {
		utils.WriteError(w, utils.Invalid(utils.CodeInvalidInput, "Email and password are required"))
		return
	}

	result, err := h.Service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Login successful", result)
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.Service.Logout(r.Context(), auth.PrincipalFrom(r.Context())); err != nil {
		h.Logger.Error("AUTH", "Failed to revoke token: "+err.Error())
		utils.WriteError(w, err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Logout successful", nil)
}

func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	user, err := h.Service.Me(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "", map[string]interface{}{"user": user})
}
