package restaurant_api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"ms-lunch/internal/auth"
	"ms-lunch/internal/logger"
	"ms-lunch/internal/restaurant"
	"ms-lunch/internal/utils"
)

type Handler struct {
	Service *restaurant.Service
	Logger  *logger.Logger
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/restaurants", func(r chi.Router) {
		r.Get("/", h.ListRestaurants)
		r.Get("/{id}", h.GetRestaurant)

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAdmin)
			r.Post("/", h.CreateRestaurant)
			r.Put("/{id}", h.UpdateRestaurant)
			r.Delete("/{id}", h.DeleteRestaurant)
			r.Patch("/{id}/toggle", h.ToggleRestaurant)
		})
	})

	r.Route("/menu", func(r chi.Router) {
		r.Get("/restaurant/{restaurantId}", h.GetMenu)
		r.Get("/{id}", h.GetMenuItem)

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAdmin)
			r.Post("/restaurant/{restaurantId}", h.CreateMenuItem)
			r.Post("/restaurant/{restaurantId}/bulk", h.BulkUpload)
			r.Put("/restaurant/{restaurantId}/replace", h.ReplaceMenu)
			r.Put("/{id}", h.UpdateMenuItem)
			r.Delete("/{id}", h.DeleteMenuItem)
		})
	})
}

func (h *Handler) ListRestaurants(w http.ResponseWriter, r *http.Request) {
	activeOnly, _ := strconv.ParseBool(r.URL.Query().Get("active"))
	restaurants, err := h.Service.ListRestaurants(r.Context(), activeOnly)
	if err != nil {
		h.Logger.Error("API", "Failed to list restaurants: "+err.Error())
		utils.WriteError(w, err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "", map[string]interface{}{"restaurants": restaurants})
}

func (h *Handler) GetRestaurant(w http.ResponseWriter, r *http.Request) {
	rest, err := h.Service.GetRestaurant(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "", map[string]interface{}{"restaurant": rest})
}

func (h *Handler) CreateRestaurant(w http.ResponseWriter, r *http.Request) {
	var in restaurant.RestaurantInput
	if err := utils.DecodeJSON(r, &in); err != nil {
		utils.WriteError(w, err)
		return
	}
	rest, err := h.Service.CreateRestaurant(r.Context(), in)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteSuccess(w, http.StatusCreated, "Restaurant created", map[string]interface{}{"restaurant": rest})
}

func (h *Handler) UpdateRestaurant(w http.ResponseWriter, r *http.Request) {
	var in restaurant.RestaurantInput
	if err := utils.DecodeJSON(r, &in); err != nil {
		utils.WriteError(w, err)
		return
	}
	rest, err := h.Service.UpdateRestaurant(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Restaurant updated", map[string]interface{}{"restaurant": rest})
}

func (h *Handler) DeleteRestaurant(w http.ResponseWriter, r *http.Request) {
	if err := h.Service.DeleteRestaurant(r.Context(), chi.URLParam(r, "id")); err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Restaurant deleted", nil)
}

func (h *Handler) ToggleRestaurant(w http.ResponseWriter, r *http.Request) {
	rest, err := h.Service.ToggleRestaurant(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Restaurant status updated", map[string]interface{}{"restaurant": rest})
}

func (h *Handler) GetMenu(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	available, _ := strconv.ParseBool(q.Get("available"))
	query := restaurant.MenuQuery{
		Search:        q.Get("search"),
		AvailableOnly: available,
	}
	if tags := q.Get("tags"); tags != "" {
		query.Tags = strings.Split(tags, ",")
	}

	items, err := h.Service.Menu(r.Context(), chi.URLParam(r, "restaurantId"), query)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "", map[string]interface{}{"menu_items": items, "count": len(items)})
}

func (h *Handler) GetMenuItem(w http.ResponseWriter, r *http.Request) {
	item, err := h.Service.GetMenuItem(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "", map[string]interface{}{"menu_item": item})
}

func (h *Handler) CreateMenuItem(w http.ResponseWriter, r *http.Request) {
	var in restaurant.MenuItemInput
	if err := utils.DecodeJSON(r, &in); err != nil {
		utils.WriteError(w, err)
		return
	}
	item, err := h.Service.CreateMenuItem(r.Context(), chi.URLParam(r, "restaurantId"), in)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteSuccess(w, http.StatusCreated, "Menu item created", map[string]interface{}{"menu_item": item})
}

type bulkRequest struct {
	Items []restaurant.MenuItemInput `json:"items"`
}

func (h *Handler) BulkUpload(w http.ResponseWriter, r *http.Request) {
	var req bulkRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.WriteError(w, err)
		return
	}
	items, err := h.Service.BulkUpload(r.Context(), chi.URLParam(r, "restaurantId"), req.Items)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteSuccess(w, http.StatusCreated, "Menu uploaded", map[string]interface{}{"menu_items": items, "count": len(items)})
}

func (h *Handler) ReplaceMenu(w http.ResponseWriter, r *http.Request) {
	var req bulkRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.WriteError(w, err)
		return
	}
	items, err := h.Service.ReplaceMenu(r.Context(), chi.URLParam(r, "restaurantId"), req.Items)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Menu replaced", map[string]interface{}{"menu_items": items, "count": len(items)})
}

func (h *Handler) UpdateMenuItem(w http.ResponseWriter, r *http.Request) {
	var patch restaurant.MenuItemPatch
	if err := utils.DecodeJSON(r, &patch); err != nil {
		utils.WriteError(w, err)
		return
	}
	item, err := h.Service.UpdateMenuItem(r.Context(), chi.URLParam(r, "id"), patch)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Menu item updated", map[string]interface{}{"menu_item": item})
}

func (h *Handler) DeleteMenuItem(w http.ResponseWriter, r *http.Request) {
	if err := h.Service.DeleteMenuItem(r.Context(), chi.URLParam(r, "id")); err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Menu item deleted", nil)
}
