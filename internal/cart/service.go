package cart

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"ms-lunch/internal/events"
	"ms-lunch/internal/export"
	"ms-lunch/internal/group"
	"ms-lunch/internal/logger"
	"ms-lunch/internal/models"
	"ms-lunch/internal/utils"
)

const (
	MinQuantity   = 1
	MaxQuantity   = 99
	maxNoteLength = 500
)

type DBLayer interface {
	GetOrCreateCart(ctx context.Context, groupID, userID string, now time.Time) (*models.Cart, error)
	GetCart(ctx context.Context, id string) (*models.Cart, error)
	ListGroupCarts(ctx context.Context, groupID string) ([]models.Cart, error)
	AddItem(ctx context.Context, item *models.CartItem) error
	GetItem(ctx context.Context, id string) (*models.CartItem, error)
	UpdateItemQuantity(ctx context.Context, id string, quantity int) error
	RemoveItem(ctx context.Context, id string) error
}

// Groups is what carts need from group membership.
type Groups interface {
	Find(ctx context.Context, id string) (*models.Group, error)
	EnsureOpen(ctx context.Context, g *models.Group) error
}

type MenuStore interface {
	GetMenuItem(ctx context.Context, id string) (*models.MenuItem, error)
}

type Service struct {
	DB     DBLayer
	Groups Groups
	Menu   MenuStore
	Events events.Publisher
	Logger *logger.Logger
	Now    func() time.Time
}

func NewService(d DBLayer, groups Groups, menu MenuStore, pub events.Publisher, log *logger.Logger) *Service {
	return &Service{DB: d, Groups: groups, Menu: menu, Events: pub, Logger: log, Now: time.Now}
}

type AddItemInput struct {
	MenuItemID string `json:"menu_item_id"`
	Quantity   int    `json:"quantity"`
	Notes      string `json:"notes"`
}

type UserTotal struct {
	UserID   string          `json:"user_id"`
	UserName string          `json:"user_name"`
	Total    decimal.Decimal `json:"total"`
}

type GroupCart struct {
	Carts      []models.Cart      `json:"carts"`
	GroupTotal decimal.Decimal    `json:"group_total"`
	UserTotals []UserTotal        `json:"user_totals"`
	Items      []export.ItemTotal `json:"item_summary"`
}

func validQuantity(q int) error {
	if q < MinQuantity || q > MaxQuantity {
		return utils.Invalid("INVALID_QUANTITY", fmt.Sprintf("Quantity must be between %d and %d", MinQuantity, MaxQuantity))
	}
	return nil
}

func (s *Service) AddToCart(ctx context.Context, groupID, userID string, in AddItemInput) (*models.Cart, error) {
	if err := validQuantity(in.Quantity); err != nil {
		return nil, err
	}
	if len(in.Notes) > maxNoteLength {
		return nil, utils.Invalid(utils.CodeInvalidInput, fmt.Sprintf("Notes must be at most %d characters", maxNoteLength))
	}
	g, err := s.Groups.Find(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if err := s.Groups.EnsureOpen(ctx, g); err != nil {
		return nil, err
	}
	if !group.HasMember(g, userID) {
		return nil, utils.Forbidden("NOT_GROUP_MEMBER", "Must be a group member to add items")
	}

	item, err := s.Menu.GetMenuItem(ctx, in.MenuItemID)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, utils.NotFound("MENU_ITEM_NOT_FOUND", "Menu item not found")
	}
	if item.RestaurantID != g.RestaurantID {
		return nil, utils.Invalid("MENU_ITEM_WRONG_RESTAURANT", "Menu item does not belong to this restaurant")
	}
	if !item.IsAvailable {
		return nil, utils.Invalid("MENU_ITEM_UNAVAILABLE", "Menu item is not available")
	}

	now := s.Now()
	cart, err := s.DB.GetOrCreateCart(ctx, groupID, userID, now)
	if err != nil {
		return nil, err
	}
	line := &models.CartItem{
		ID:         utils.GenerateID(),
		CartID:     cart.ID,
		MenuItemID: item.ID,
		Quantity:   in.Quantity,
		Notes:      in.Notes,
		AddedAt:    now,
	}
	if err := s.DB.AddItem(ctx, line); err != nil {
		return nil, err
	}

	s.Logger.LogGroup("CART_ADD", groupID, fmt.Sprintf("User %s added %dx %s", userID, in.Quantity, item.Name))
	s.publish(ctx, groupID, userID, "add", line.ID)
	return s.DB.GetCart(ctx, cart.ID)
}

// ownItem loads an item owned by userID in a group that still accepts changes.
func (s *Service) ownItem(ctx context.Context, itemID, userID string) (*models.CartItem, error) {
	item, err := s.DB.GetItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if item == nil || item.Cart == nil {
		return nil, utils.NotFound("CART_ITEM_NOT_FOUND", "Cart item not found")
	}
	if item.Cart.UserID != userID {
		return nil, utils.Forbidden("NOT_YOUR_ITEM", "Can only modify your own cart items")
	}
	g, err := s.Groups.Find(ctx, item.Cart.GroupID)
	if err != nil {
		return nil, err
	}
	if err := s.Groups.EnsureOpen(ctx, g); err != nil {
		return nil, err
	}
	return item, nil
}

func (s *Service) UpdateQuantity(ctx context.Context, itemID, userID string, quantity int) (*models.Cart, error) {
	if err := validQuantity(quantity); err != nil {
		return nil, err
	}
	item, err := s.ownItem(ctx, itemID, userID)
	if err != nil {
		return nil, err
	}
	if err := s.DB.UpdateItemQuantity(ctx, itemID, quantity); err != nil {
		return nil, err
	}
	s.publish(ctx, item.Cart.GroupID, userID, "update", itemID)
	return s.DB.GetCart(ctx, item.CartID)
}

func (s *Service) RemoveItem(ctx context.Context, itemID, userID string) error {
	item, err := s.ownItem(ctx, itemID, userID)
	if err != nil {
		return err
	}
	if err := s.DB.RemoveItem(ctx, itemID); err != nil {
		return err
	}
	s.publish(ctx, item.Cart.GroupID, userID, "remove", itemID)
	return nil
}

func (s *Service) publish(ctx context.Context, groupID, userID, action, itemID string) {
	s.Events.Publish(ctx, models.DomainEvent{
		Type:       models.EventCartUpdated,
		GroupID:    groupID,
		UserID:     userID,
		Attributes: map[string]string{"action": action, "item_id": itemID},
	})
}

// GroupCart returns every cart of the group with totals and the per-item summary.
func (s *Service) GroupCart(ctx context.Context, groupID, userID string) (*GroupCart, error) {
	g, err := s.Groups.Find(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if !group.HasMember(g, userID) {
		return nil, utils.Forbidden("NOT_GROUP_MEMBER", "Not a member of this group")
	}
	carts, err := s.DB.ListGroupCarts(ctx, groupID)
	if err != nil {
		return nil, err
	}
	return summarize(carts), nil
}

func summarize(carts []models.Cart) *GroupCart {
	out := &GroupCart{Carts: carts, GroupTotal: decimal.Zero, UserTotals: []UserTotal{}}
	var lines []export.ItemLine
	for _, c := range carts {
		total := c.Total()
		name := ""
		if c.User != nil {
			name = c.User.Name
		}
		out.UserTotals = append(out.UserTotals, UserTotal{UserID: c.UserID, UserName: name, Total: total})
		out.GroupTotal = out.GroupTotal.Add(total)
		for _, item := range c.Items {
			if item.MenuItem == nil {
				continue
			}
			lines = append(lines, export.ItemLine{
				MenuItemID: item.MenuItemID,
				Name:       item.MenuItem.Name,
				Quantity:   item.Quantity,
				Subtotal:   item.Subtotal(),
			})
		}
	}
	out.Items = export.Aggregate(lines)
	return out
}

// ExportGroupCart renders the group's combined order for the owner to pass on.
func (s *Service) ExportGroupCart(ctx context.Context, groupID, userID, format string) (*export.Rendered, error) {
	g, err := s.Groups.Find(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if g.OwnerID != userID {
		return nil, utils.Forbidden("NOT_GROUP_OWNER", "Only the group owner can export the order")
	}
	carts, err := s.DB.ListGroupCarts(ctx, groupID)
	if err != nil {
		return nil, err
	}
	sum := summarize(carts)

	doc := export.Document{
		Title:   "Group Order - " + g.Name,
		Date:    g.EndAt.Format(utils.DateLayout),
		Summary: export.Summary{TotalAmount: sum.GroupTotal, Items: sum.Items},
	}
	if g.Restaurant != nil {
		doc.Restaurant = export.Restaurant{Name: g.Restaurant.Name, Cuisine: g.Restaurant.Cuisine}
	}
	for i, c := range carts {
		if len(c.Items) == 0 {
			continue
		}
		entry := export.Entry{Name: sum.UserTotals[i].UserName, Total: sum.UserTotals[i].Total}
		for _, item := range c.Items {
			if item.MenuItem == nil {
				continue
			}
			entry.Items = append(entry.Items, export.Line{
				ItemName: item.MenuItem.Name,
				Quantity: item.Quantity,
				Notes:    item.Notes,
				Price:    item.MenuItem.Price,
				Subtotal: item.Subtotal(),
			})
		}
		doc.Entries = append(doc.Entries, entry)
	}
	doc.Summary.TotalOrders = len(doc.Entries)
	return export.Render(doc, format)
}
