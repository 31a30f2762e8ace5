package talabat

import (
	"context"
	"fmt"
	"strings"

	"ms-lunch/internal/config"
	"ms-lunch/internal/export"
	"ms-lunch/internal/logger"
	"ms-lunch/internal/models"
	"ms-lunch/internal/order"
	"ms-lunch/internal/restaurant"
	"ms-lunch/internal/utils"
)

const defaultCategory = "Other"

// Restaurants is the slice of the restaurant service a sync writes through.
type Restaurants interface {
	FindByTalabatID(ctx context.Context, talabatID string) (*models.Restaurant, error)
	CreateRestaurant(ctx context.Context, in restaurant.RestaurantInput) (*models.Restaurant, error)
	UpdateRestaurant(ctx context.Context, id string, in restaurant.RestaurantInput) (*models.Restaurant, error)
	BulkUpload(ctx context.Context, restaurantID string, in []restaurant.MenuItemInput) ([]models.MenuItem, error)
	ReplaceMenu(ctx context.Context, restaurantID string, in []restaurant.MenuItemInput) ([]models.MenuItem, error)
}

type GroupOrders interface {
	GroupOrder(ctx context.Context, date string) (*order.GroupOrder, error)
}

type Service struct {
	Client      *Client
	Restaurants Restaurants
	Orders      GroupOrders
	Delivery    config.DeliveryConfig
	Enabled     bool
	Logger      *logger.Logger
}

func NewService(client *Client, restaurants Restaurants, orders GroupOrders, cfg *config.Config, log *logger.Logger) *Service {
	return &Service{
		Client:      client,
		Restaurants: restaurants,
		Orders:      orders,
		Delivery:    cfg.Delivery,
		Enabled:     cfg.Talabat.Enabled,
		Logger:      log,
	}
}

type Status struct {
	Configured bool   `json:"configured"`
	Enabled    bool   `json:"enabled"`
	Status     string `json:"status"`
}

type SyncResult struct {
	Restaurant *models.Restaurant `json:"restaurant"`
	MenuItems  []models.MenuItem  `json:"menu_items"`
	Created    bool               `json:"created"`
}

type PlaceGroupOrderInput struct {
	Date                string `json:"date"`
	PaymentMethod       string `json:"payment_method"`
	TalabatRestaurantID string `json:"talabat_restaurant_id"`
}

type PlacedOrder struct {
	Date    string         `json:"date"`
	Request OrderRequest   `json:"request"`
	Order   *OrderResponse `json:"order"`
}

func (s *Service) Status() Status {
	st := Status{Configured: s.Client.Configured(), Enabled: s.Enabled, Status: "inactive"}
	if st.Configured && st.Enabled {
		st.Status = "active"
	}
	return st
}

// ready rejects every upstream call until the integration is configured and switched on.
func (s *Service) ready() error {
	if !s.Client.Configured() || !s.Enabled {
		return utils.Unavailable("TALABAT_NOT_CONFIGURED", "Talabat integration is not configured")
	}
	return nil
}

func (s *Service) SearchRestaurants(ctx context.Context, q Query) ([]Restaurant, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	return s.Client.Restaurants(ctx, q)
}

func (s *Service) Menu(ctx context.Context, talabatID string) ([]MenuItem, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	return s.Client.Menu(ctx, talabatID)
}

func (s *Service) OrderStatus(ctx context.Context, orderID string) (*OrderStatus, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	return s.Client.OrderStatus(ctx, orderID)
}

func (s *Service) CancelOrder(ctx context.Context, orderID, reason string) (*CancelResult, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	return s.Client.CancelOrder(ctx, orderID, reason)
}

// SyncRestaurant imports an upstream restaurant and its menu. A restaurant
// synced before is updated in place and its menu replaced, so order history
// keeps pointing at the retired items.
func (s *Service) SyncRestaurant(ctx context.Context, talabatID string) (*SyncResult, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	talabatID = strings.TrimSpace(talabatID)
	if talabatID == "" {
		return nil, utils.Invalid("MISSING_FIELDS", "Talabat restaurant ID is required")
	}
	details, err := s.Client.Restaurant(ctx, talabatID)
	if err != nil {
		return nil, err
	}
	menu, err := s.Client.Menu(ctx, talabatID)
	if err != nil {
		return nil, err
	}
	if len(menu) == 0 {
		return nil, utils.Invalid("EMPTY_MENU", "Talabat returned no menu items for this restaurant")
	}

	in := restaurant.RestaurantInput{
		Name:      details.Name,
		Cuisine:   strings.Join(details.Cuisine, ", "),
		ImageURL:  details.Logo,
		TalabatID: talabatID,
	}
	if strings.TrimSpace(in.Cuisine) == "" {
		in.Cuisine = defaultCategory
	}
	items := menuInputs(menu)

	existing, err := s.Restaurants.FindByTalabatID(ctx, talabatID)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		r, err := s.Restaurants.CreateRestaurant(ctx, in)
		if err != nil {
			return nil, err
		}
		created, err := s.Restaurants.BulkUpload(ctx, r.ID, items)
		if err != nil {
			return nil, err
		}
		s.Logger.Info("TALABAT", fmt.Sprintf("Imported %s as %s with %d items", talabatID, r.ID, len(created)))
		return &SyncResult{Restaurant: r, MenuItems: created, Created: true}, nil
	}

	r, err := s.Restaurants.UpdateRestaurant(ctx, existing.ID, in)
	if err != nil {
		return nil, err
	}
	replaced, err := s.Restaurants.ReplaceMenu(ctx, r.ID, items)
	if err != nil {
		return nil, err
	}
	s.Logger.Info("TALABAT", fmt.Sprintf("Resynced %s into %s with %d items", talabatID, r.ID, len(replaced)))
	return &SyncResult{Restaurant: r, MenuItems: replaced}, nil
}

func menuInputs(menu []MenuItem) []restaurant.MenuItemInput {
	out := make([]restaurant.MenuItemInput, 0, len(menu))
	for _, it := range menu {
		available := it.IsAvailable
		category := strings.TrimSpace(it.Category)
		if category == "" {
			category = defaultCategory
		}
		out = append(out, restaurant.MenuItemInput{
			Name:        it.Name,
			Description: it.Description,
			Price:       it.Price,
			Category:    category,
			ImageURL:    it.Image,
			IsAvailable: &available,
			TalabatID:   it.ID,
		})
	}
	return out
}

// PlaceGroupOrder sends the day's group order upstream as one delivery. Item
// totals come from the group order summary, merged again on Talabat item id
// since a resynced menu can map two local items onto one upstream item.
func (s *Service) PlaceGroupOrder(ctx context.Context, in PlaceGroupOrderInput) (*PlacedOrder, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	method := strings.ToLower(strings.TrimSpace(in.PaymentMethod))
	if method == "" {
		method = "cash"
	}
	if method != "cash" && method != "card" {
		return nil, utils.Invalid("INVALID_PAYMENT_METHOD", "Payment method must be cash or card")
	}

	g, err := s.Orders.GroupOrder(ctx, in.Date)
	if err != nil {
		return nil, err
	}
	if len(g.Orders) == 0 {
		return nil, utils.Invalid("NO_ORDERS", "No orders to place")
	}
	restaurantID := strings.TrimSpace(in.TalabatRestaurantID)
	if restaurantID == "" && g.Restaurant != nil {
		restaurantID = g.Restaurant.TalabatID
	}
	if restaurantID == "" {
		return nil, utils.Invalid("MISSING_TALABAT_ID", "Talabat restaurant ID is required")
	}

	upstream := map[string]string{}
	notes := map[string][]string{}
	for _, o := range g.Orders {
		name := o.UserID
		if o.User != nil {
			name = o.User.Name
		}
		for _, it := range o.Items {
			if it.MenuItem == nil || it.MenuItem.TalabatID == "" {
				return nil, utils.Invalid("ITEM_NOT_SYNCED", fmt.Sprintf("Menu item %s is not linked to Talabat", it.MenuItemID))
			}
			upstream[it.MenuItemID] = it.MenuItem.TalabatID
			if n := strings.TrimSpace(it.Notes); n != "" {
				notes[it.MenuItem.TalabatID] = append(notes[it.MenuItem.TalabatID], name+": "+n)
			}
		}
	}

	lines := make([]export.ItemLine, 0, len(g.ItemSummary))
	for _, total := range g.ItemSummary {
		id, ok := upstream[total.MenuItemID]
		if !ok {
			return nil, utils.Invalid("ITEM_NOT_SYNCED", fmt.Sprintf("Menu item %s is not linked to Talabat", total.MenuItemID))
		}
		lines = append(lines, export.ItemLine{MenuItemID: id, Name: total.Name, Quantity: total.Quantity, Subtotal: total.Amount})
	}

	req := OrderRequest{
		RestaurantID: restaurantID,
		DeliveryAddress: Address{
			Street:   s.Delivery.Street,
			Building: s.Delivery.Building,
			Floor:    s.Delivery.Floor,
			City:     s.Delivery.City,
			Area:     s.Delivery.Area,
		},
		ContactPhone:  s.Delivery.Phone,
		PaymentMethod: method,
	}
	for _, total := range export.Aggregate(lines) {
		req.Items = append(req.Items, OrderLine{
			ItemID:              total.MenuItemID,
			Quantity:            total.Quantity,
			SpecialInstructions: strings.Join(notes[total.MenuItemID], "; "),
		})
	}

	placed, err := s.Client.PlaceOrder(ctx, req)
	if err != nil {
		return nil, err
	}
	s.Logger.Info("TALABAT", fmt.Sprintf("Group order of %s placed as %s (%d orders, %d lines)", g.Date, placed.OrderID, len(g.Orders), len(req.Items)))
	return &PlacedOrder{Date: g.Date, Request: req, Order: placed}, nil
}
