package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"ms-lunch/internal/events"
	"ms-lunch/internal/export"
	"ms-lunch/internal/logger"
	"ms-lunch/internal/models"
	orderdb "ms-lunch/internal/order/db"
	"ms-lunch/internal/utils"
)

type DBLayer interface {
	CreateOrder(ctx context.Context, order *models.Order, items []models.OrderItem) error
	GetOrder(ctx context.Context, id string) (*models.Order, error)
	FindLiveOrder(ctx context.Context, userID, periodID string) (*models.Order, error)
	ListUserOrders(ctx context.Context, userID string) ([]models.Order, error)
	ListPeriodOrders(ctx context.Context, periodID string) ([]models.Order, error)
	SetStatus(ctx context.Context, id, from, to string, now time.Time) (bool, error)
	ConfirmPeriodOrders(ctx context.Context, periodID string, now time.Time) (int, error)
}

type PeriodStore interface {
	GetPeriodByDate(ctx context.Context, date string) (*models.VotingPeriod, error)
}

type MenuStore interface {
	GetRestaurant(ctx context.Context, id string) (*models.Restaurant, error)
	GetMenuItems(ctx context.Context, ids []string) (map[string]*models.MenuItem, error)
}

// Calendar supplies the current date in the voting timezone.
type Calendar interface {
	Today() string
}

type Service struct {
	DB       DBLayer
	Periods  PeriodStore
	Menu     MenuStore
	Calendar Calendar
	Events   events.Publisher
	Logger   *logger.Logger
	Now      func() time.Time
}

func NewService(d DBLayer, periods PeriodStore, menu MenuStore, cal Calendar, pub events.Publisher, log *logger.Logger) *Service {
	return &Service{DB: d, Periods: periods, Menu: menu, Calendar: cal, Events: pub, Logger: log, Now: time.Now}
}

type ItemInput struct {
	MenuItemID string `json:"menu_item_id"`
	Quantity   int    `json:"quantity"`
	Notes      string `json:"notes,omitempty"`
}

type CreateOrderInput struct {
	RestaurantID string      `json:"restaurant_id"`
	Items        []ItemInput `json:"items"`
	Date         string      `json:"date,omitempty"`
}

type GroupOrder struct {
	Date        string             `json:"date"`
	Restaurant  *models.Restaurant `json:"restaurant"`
	Orders      []models.Order     `json:"orders"`
	TotalOrders int                `json:"total_orders"`
	TotalAmount decimal.Decimal    `json:"total_amount"`
	ItemSummary []export.ItemTotal `json:"item_summary"`
}

// date resolves an optional YYYY-MM-DD, defaulting to today.
func (s *Service) date(d string) (string, error) {
	if d == "" {
		return s.Calendar.Today(), nil
	}
	return utils.ParseDateKey(d)
}

// completedPeriod returns the date's voting period once a winner is known.
func (s *Service) completedPeriod(ctx context.Context, date string) (*models.VotingPeriod, error) {
	period, err := s.Periods.GetPeriodByDate(ctx, date)
	if err != nil {
		return nil, err
	}
	if period == nil {
		return nil, utils.NotFound("VOTING_PERIOD_NOT_FOUND", "No voting period found for this date")
	}
	if !period.IsComplete || period.WinnerRestaurantID == "" {
		return nil, utils.Invalid("VOTING_NOT_COMPLETE", "Voting must be complete before orders")
	}
	return period, nil
}

// CreateOrder places the user's order at the day's winning restaurant.
func (s *Service) CreateOrder(ctx context.Context, userID string, in CreateOrderInput) (*models.Order, error) {
	if len(in.Items) == 0 {
		return nil, utils.Invalid("NO_ITEMS", "Order must contain at least one item")
	}
	date, err := s.date(in.Date)
	if err != nil {
		return nil, err
	}
	period, err := s.completedPeriod(ctx, date)
	if err != nil {
		return nil, err
	}
	if period.WinnerRestaurantID != in.RestaurantID {
		return nil, utils.Invalid("NOT_WINNING_RESTAURANT", "Orders can only be placed for the winning restaurant")
	}
	existing, err := s.DB.FindLiveOrder(ctx, userID, period.ID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, utils.Conflict("ORDER_ALREADY_EXISTS", "You have already placed an order for this day")
	}

	ids := make([]string, 0, len(in.Items))
	for _, it := range in.Items {
		ids = append(ids, it.MenuItemID)
	}
	menu, err := s.Menu.GetMenuItems(ctx, ids)
	if err != nil {
		return nil, err
	}

	now := s.Now()
	order := &models.Order{
		ID:             utils.GenerateID(),
		UserID:         userID,
		RestaurantID:   in.RestaurantID,
		VotingPeriodID: period.ID,
		Status:         models.OrderPending,
		TotalAmount:    decimal.Zero,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	items := make([]models.OrderItem, 0, len(in.Items))
	for _, it := range in.Items {
		mi := menu[it.MenuItemID]
		switch {
		case mi == nil:
			return nil, utils.NotFound("MENU_ITEM_NOT_FOUND", fmt.Sprintf("Menu item %s not found", it.MenuItemID))
		case mi.RestaurantID != in.RestaurantID:
			return nil, utils.Invalid("INVALID_RESTAURANT", "All items must be from the same restaurant")
		case !mi.IsAvailable:
			return nil, utils.Invalid("ITEM_NOT_AVAILABLE", fmt.Sprintf("Menu item %s is not available", mi.Name))
		case it.Quantity <= 0:
			return nil, utils.Invalid("INVALID_QUANTITY", "Quantity must be greater than 0")
		}
		subtotal := mi.Price.Mul(decimal.NewFromInt(int64(it.Quantity)))
		order.TotalAmount = order.TotalAmount.Add(subtotal)
		items = append(items, models.OrderItem{
			ID:         utils.GenerateID(),
			OrderID:    order.ID,
			MenuItemID: mi.ID,
			Quantity:   it.Quantity,
			Notes:      it.Notes,
			UnitPrice:  mi.Price,
			Subtotal:   subtotal,
			CreatedAt:  now,
		})
	}

	if err := s.DB.CreateOrder(ctx, order, items); err != nil {
		if errors.Is(err, orderdb.ErrLiveOrderExists) {
			return nil, utils.Conflict("ORDER_ALREADY_EXISTS", "You have already placed an order for this day")
		}
		return nil, err
	}

	s.Logger.Info("ORDER", fmt.Sprintf("User %s ordered %d items on %s (total %s)", userID, len(items), date, order.TotalAmount.StringFixed(2)))
	s.Events.Publish(ctx, models.DomainEvent{
		Type:       models.EventOrderPlaced,
		UserID:     userID,
		Attributes: map[string]string{"order_id": order.ID, "date": date, "total": order.TotalAmount.StringFixed(2)},
	})
	return s.DB.GetOrder(ctx, order.ID)
}

// GetOrder returns an order to its owner, or to an admin.
func (s *Service) GetOrder(ctx context.Context, id, userID string, isAdmin bool) (*models.Order, error) {
	order, err := s.DB.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, utils.NotFound("ORDER_NOT_FOUND", "Order not found")
	}
	if order.UserID != userID && !isAdmin {
		return nil, utils.Forbidden(utils.CodeForbidden, "Not allowed to view this order")
	}
	return order, nil
}

func (s *Service) UserOrders(ctx context.Context, userID string) ([]models.Order, error) {
	orders, err := s.DB.ListUserOrders(ctx, userID)
	if err != nil {
		return nil, err
	}
	if orders == nil {
		orders = []models.Order{}
	}
	return orders, nil
}

func (s *Service) CancelOrder(ctx context.Context, id, userID string) (*models.Order, error) {
	order, err := s.DB.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, utils.NotFound("ORDER_NOT_FOUND", "Order not found")
	}
	if order.UserID != userID {
		return nil, utils.Forbidden(utils.CodeForbidden, "Not allowed to cancel this order")
	}

	ok, err := s.DB.SetStatus(ctx, id, models.OrderPending, models.OrderCancelled, s.Now())
	if err != nil {
		return nil, err
	}
	if !ok {
		// Lost a race or was never pending; reload to report the current state.
		current, err := s.DB.GetOrder(ctx, id)
		if err != nil {
			return nil, err
		}
		if current != nil {
			order = current
		}
		if order.Status == models.OrderConfirmed {
			return nil, utils.Invalid("CANNOT_CANCEL_CONFIRMED", "Cannot cancel a confirmed order")
		}
		return nil, utils.Invalid("ALREADY_CANCELLED", "Order is already cancelled")
	}

	s.Logger.Info("ORDER", fmt.Sprintf("Order %s cancelled by %s", id, userID))
	s.Events.Publish(ctx, models.DomainEvent{
		Type:       models.EventOrderCancelled,
		UserID:     userID,
		Attributes: map[string]string{"order_id": id},
	})
	return s.DB.GetOrder(ctx, id)
}

// ConfirmDay marks the day's pending orders confirmed once the restaurant order is placed.
func (s *Service) ConfirmDay(ctx context.Context, date string) (int, error) {
	date, err := s.date(date)
	if err != nil {
		return 0, err
	}
	period, err := s.completedPeriod(ctx, date)
	if err != nil {
		return 0, err
	}
	n, err := s.DB.ConfirmPeriodOrders(ctx, period.ID, s.Now())
	if err != nil {
		return 0, err
	}
	s.Logger.Info("ORDER", fmt.Sprintf("Confirmed %d orders for %s", n, date))
	return n, nil
}

// GroupOrder collects every live order of a completed day.
func (s *Service) GroupOrder(ctx context.Context, date string) (*GroupOrder, error) {
	date, err := s.date(date)
	if err != nil {
		return nil, err
	}
	period, err := s.completedPeriod(ctx, date)
	if err != nil {
		return nil, err
	}
	restaurant, err := s.Menu.GetRestaurant(ctx, period.WinnerRestaurantID)
	if err != nil {
		return nil, err
	}
	if restaurant == nil {
		return nil, utils.NotFound("RESTAURANT_NOT_FOUND", "Restaurant not found")
	}
	orders, err := s.DB.ListPeriodOrders(ctx, period.ID)
	if err != nil {
		return nil, err
	}
	if orders == nil {
		orders = []models.Order{}
	}

	out := &GroupOrder{
		Date:        date,
		Restaurant:  restaurant,
		Orders:      orders,
		TotalOrders: len(orders),
		TotalAmount: decimal.Zero,
	}
	var lines []export.ItemLine
	for _, o := range orders {
		out.TotalAmount = out.TotalAmount.Add(o.TotalAmount)
		for _, it := range o.Items {
			name := it.MenuItemID
			if it.MenuItem != nil {
				name = it.MenuItem.Name
			}
			lines = append(lines, export.ItemLine{MenuItemID: it.MenuItemID, Name: name, Quantity: it.Quantity, Subtotal: it.Subtotal})
		}
	}
	out.ItemSummary = export.Aggregate(lines)
	return out, nil
}

// Export renders the day's group order for the restaurant.
func (s *Service) Export(ctx context.Context, date, format string) (*export.Rendered, error) {
	g, err := s.GroupOrder(ctx, date)
	if err != nil {
		return nil, err
	}
	doc := export.Document{
		Title:      "Group Lunch Order",
		Date:       g.Date,
		Restaurant: export.Restaurant{Name: g.Restaurant.Name, Cuisine: g.Restaurant.Cuisine},
		Summary: export.Summary{
			TotalOrders: g.TotalOrders,
			TotalAmount: g.TotalAmount,
			Items:       g.ItemSummary,
		},
	}
	for _, o := range g.Orders {
		entry := export.Entry{Total: o.TotalAmount}
		if o.User != nil {
			entry.Name = o.User.Name
		}
		for _, it := range o.Items {
			line := export.Line{Quantity: it.Quantity, Notes: it.Notes, Price: it.UnitPrice, Subtotal: it.Subtotal}
			if it.MenuItem != nil {
				line.ItemName = it.MenuItem.Name
			}
			entry.Items = append(entry.Items, line)
		}
		doc.Entries = append(doc.Entries, entry)
	}
	return export.Render(doc, format)
}
