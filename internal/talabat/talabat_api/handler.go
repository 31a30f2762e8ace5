package talabat_api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"ms-lunch/internal/auth"
	"ms-lunch/internal/logger"
	"ms-lunch/internal/talabat"
	"ms-lunch/internal/utils"
)

type Handler struct {
	Service *talabat.Service
	Logger  *logger.Logger
}

func NewHandler(service *talabat.Service, log *logger.Logger) *Handler {
	return &Handler{Service: service, Logger: log}
}

// RegisterRoutes mounts /talabat. Status is open to any signed-in user; the
// rest reach the upstream API and need the admin role.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/talabat", func(r chi.Router) {
		r.Get("/status", h.Status)

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAdmin)
			r.Get("/restaurants", h.Restaurants)
			r.Get("/restaurants/{restaurantId}/menu", h.Menu)
			r.Post("/restaurants/sync", h.SyncRestaurant)
			r.Post("/orders/place-group", h.PlaceGroupOrder)
			r.Get("/orders/{orderId}/status", h.OrderStatus)
			r.Post("/orders/{orderId}/cancel", h.CancelOrder)
		})
	})
}

func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	utils.WriteSuccess(w, http.StatusOK, "", h.Service.Status())
}

func (h *Handler) Restaurants(w http.ResponseWriter, r *http.Request) {
	q := talabat.Query{City: r.URL.Query().Get("city"), Cuisine: r.URL.Query().Get("cuisine")}
	var err error
	if q.Latitude, err = floatParam(r, "latitude"); err != nil {
		utils.WriteError(w, err)
		return
	}
	if q.Longitude, err = floatParam(r, "longitude"); err != nil {
		utils.WriteError(w, err)
		return
	}
	restaurants, err := h.Service.SearchRestaurants(r.Context(), q)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "", map[string]interface{}{"restaurants": restaurants, "count": len(restaurants)})
}

func (h *Handler) Menu(w http.ResponseWriter, r *http.Request) {
	menu, err := h.Service.Menu(r.Context(), chi.URLParam(r, "restaurantId"))
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "", map[string]interface{}{"menu": menu, "count": len(menu)})
}

func (h *Handler) SyncRestaurant(w http.ResponseWriter, r *http.Request) {
	var body struct {
		TalabatRestaurantID string `json:"talabat_restaurant_id"`
	}
	if err := utils.DecodeJSON(r, &body); err != nil {
		utils.WriteError(w, err)
		return
	}
	res, err := h.Service.SyncRestaurant(r.Context(), body.TalabatRestaurantID)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	status := http.StatusOK
	if res.Created {
		status = http.StatusCreated
	}
	utils.WriteSuccess(w, status, "Restaurant synced successfully from Talabat", map[string]interface{}{
		"restaurant":       res.Restaurant,
		"menu_items_count": len(res.MenuItems),
		"created":          res.Created,
	})
}

func (h *Handler) PlaceGroupOrder(w http.ResponseWriter, r *http.Request) {
	var in talabat.PlaceGroupOrderInput
	if err := utils.DecodeJSON(r, &in); err != nil {
		utils.WriteError(w, err)
		return
	}
	placed, err := h.Service.PlaceGroupOrder(r.Context(), in)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	h.Logger.Info("TALABAT", "Group order of "+placed.Date+" placed by "+auth.UserID(r.Context()))
	utils.WriteSuccess(w, http.StatusCreated, "Group order placed successfully through Talabat", map[string]interface{}{
		"talabat_order_id":        placed.Order.OrderID,
		"status":                  placed.Order.Status,
		"estimated_delivery_time": placed.Order.EstimatedDeliveryTime,
		"total_amount":            placed.Order.TotalAmount,
		"tracking_url":            placed.Order.TrackingURL,
		"items":                   placed.Request.Items,
	})
}

func (h *Handler) OrderStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.Service.OrderStatus(r.Context(), chi.URLParam(r, "orderId"))
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "", status)
}

func (h *Handler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Reason string `json:"reason"`
	}
	if r.ContentLength != 0 {
		if err := utils.DecodeJSON(r, &body); err != nil {
			utils.WriteError(w, err)
			return
		}
	}
	res, err := h.Service.CancelOrder(r.Context(), chi.URLParam(r, "orderId"), body.Reason)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, res.Message, res)
}

func floatParam(r *http.Request, name string) (*float64, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return nil, utils.Invalid(utils.CodeInvalidInput, name+" must be a number")
	}
	return &f, nil
}
