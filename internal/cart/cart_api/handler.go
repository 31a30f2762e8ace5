package cart_api

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"ms-lunch/internal/auth"
	"ms-lunch/internal/cart"
	"ms-lunch/internal/logger"
	"ms-lunch/internal/utils"
)

type Handler struct {
	Service *cart.Service
	Logger  *logger.Logger
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireUser)
		r.Get("/groups/{groupId}/cart", h.GetGroupCart)
		r.Post("/groups/{groupId}/cart", h.AddToCart)
		r.Get("/groups/{groupId}/cart/export", h.Export)
		r.Patch("/cart-items/{id}", h.UpdateQuantity)
		r.Delete("/cart-items/{id}", h.RemoveItem)
	})
}

func (h *Handler) GetGroupCart(w http.ResponseWriter, r *http.Request) {
	summary, err := h.Service.GroupCart(r.Context(), chi.URLParam(r, "groupId"), auth.UserID(r.Context()))
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "", summary)
}

func (h *Handler) AddToCart(w http.ResponseWriter, r *http.Request) {
	var in cart.AddItemInput
	if err := utils.DecodeJSON(r, &in); err != nil {
		utils.WriteError(w, err)
		return
	}
	c, err := h.Service.AddToCart(r.Context(), chi.URLParam(r, "groupId"), auth.UserID(r.Context()), in)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteSuccess(w, http.StatusCreated, "Item added to cart", map[string]interface{}{"cart": c})
}

type quantityRequest struct {
	Quantity int `json:"quantity"`
}

func (h *Handler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	var req quantityRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.WriteError(w, err)
		return
	}
	c, err := h.Service.UpdateQuantity(r.Context(), chi.URLParam(r, "id"), auth.UserID(r.Context()), req.Quantity)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Quantity updated", map[string]interface{}{"cart": c})
}

func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	if err := h.Service.RemoveItem(r.Context(), chi.URLParam(r, "id"), auth.UserID(r.Context())); err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Item removed", nil)
}

func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	groupID := chi.URLParam(r, "groupId")
	out, err := h.Service.ExportGroupCart(r.Context(), groupID, auth.UserID(r.Context()), r.URL.Query().Get("format"))
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	w.Header().Set("Content-Type", out.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"group-order-%s.%s\"", groupID, out.Extension))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(out.Body)
}
