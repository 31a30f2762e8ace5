package restaurant

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"ms-lunch/internal/logger"
	"ms-lunch/internal/models"
	"ms-lunch/internal/restaurant/db"
	"ms-lunch/internal/utils"
)

type DBLayer interface {
	ListRestaurants(ctx context.Context, activeOnly bool) ([]models.Restaurant, error)
	GetRestaurant(ctx context.Context, id string) (*models.Restaurant, error)
	GetRestaurantByTalabatID(ctx context.Context, talabatID string) (*models.Restaurant, error)
	CreateRestaurant(ctx context.Context, r *models.Restaurant) error
	UpdateRestaurant(ctx context.Context, r *models.Restaurant) error
	DeleteRestaurant(ctx context.Context, id string) error
	RestaurantInUse(ctx context.Context, id string) (bool, error)

	ListMenu(ctx context.Context, restaurantID string, f db.MenuFilter) ([]models.MenuItem, error)
	GetMenuItem(ctx context.Context, id string) (*models.MenuItem, error)
	CreateMenuItems(ctx context.Context, items []models.MenuItem) error
	UpdateMenuItem(ctx context.Context, item *models.MenuItem) error
	DeleteMenuItem(ctx context.Context, id string) error
	MenuItemInUse(ctx context.Context, id string) (bool, error)
	ReplaceMenu(ctx context.Context, restaurantID string, items []models.MenuItem) error
}

type Service struct {
	DB     DBLayer
	Logger *logger.Logger
	Now    func() time.Time
}

func NewService(d DBLayer, log *logger.Logger) *Service {
	return &Service{DB: d, Logger: log, Now: time.Now}
}

type RestaurantInput struct {
	Name        string `json:"name"`
	Cuisine     string `json:"cuisine"`
	Description string `json:"description"`
	ImageURL    string `json:"image_url"`
	IsActive    *bool  `json:"is_active,omitempty"`
	// TalabatID links a synced restaurant to its upstream listing.
	TalabatID string `json:"-"`
}

type MenuItemInput struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Category    string          `json:"category"`
	Tags        []string        `json:"tags"`
	ImageURL    string          `json:"image_url"`
	IsAvailable *bool           `json:"is_available,omitempty"`
	TalabatID   string          `json:"-"`
}

// MenuItemPatch carries optional updates; nil fields are left unchanged.
type MenuItemPatch struct {
	Name        *string          `json:"name"`
	Description *string          `json:"description"`
	Price       *decimal.Decimal `json:"price"`
	Category    *string          `json:"category"`
	Tags        []string         `json:"tags"`
	ImageURL    *string          `json:"image_url"`
	IsAvailable *bool            `json:"is_available"`
}

type MenuQuery struct {
	Search        string
	Tags          []string
	AvailableOnly bool
}

// ---------------- RESTAURANTS ----------------

func (s *Service) ListRestaurants(ctx context.Context, activeOnly bool) ([]models.Restaurant, error) {
	return s.DB.ListRestaurants(ctx, activeOnly)
}

func (s *Service) GetRestaurant(ctx context.Context, id string) (*models.Restaurant, error) {
	r, err := s.DB.GetRestaurant(ctx, id)
	if err != nil {
		return nil, err
	}
	if r == nil {
		return nil, utils.NotFound("RESTAURANT_NOT_FOUND", "Restaurant not found")
	}
	return r, nil
}

func (s *Service) CreateRestaurant(ctx context.Context, in RestaurantInput) (*models.Restaurant, error) {
	if err := validateRestaurant(in); err != nil {
		return nil, err
	}
	now := s.Now()
	r := &models.Restaurant{
		ID:          utils.GenerateID(),
		Name:        strings.TrimSpace(in.Name),
		Cuisine:     strings.TrimSpace(in.Cuisine),
		Description: in.Description,
		ImageURL:    in.ImageURL,
		IsActive:    in.IsActive == nil || *in.IsActive,
		TalabatID:   in.TalabatID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.DB.CreateRestaurant(ctx, r); err != nil {
		return nil, err
	}
	s.Logger.Info("RESTAURANT", fmt.Sprintf("Created restaurant %s (%s)", r.Name, r.ID))
	return r, nil
}

func (s *Service) UpdateRestaurant(ctx context.Context, id string, in RestaurantInput) (*models.Restaurant, error) {
	if err := validateRestaurant(in); err != nil {
		return nil, err
	}
	r, err := s.GetRestaurant(ctx, id)
	if err != nil {
		return nil, err
	}
	r.Name = strings.TrimSpace(in.Name)
	r.Cuisine = strings.TrimSpace(in.Cuisine)
	r.Description = in.Description
	r.ImageURL = in.ImageURL
	if in.IsActive != nil {
		r.IsActive = *in.IsActive
	}
	if in.TalabatID != "" {
		r.TalabatID = in.TalabatID
	}
	if err := s.DB.UpdateRestaurant(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

// FindByTalabatID returns (nil, nil) when the upstream restaurant was never synced.
func (s *Service) FindByTalabatID(ctx context.Context, talabatID string) (*models.Restaurant, error) {
	return s.DB.GetRestaurantByTalabatID(ctx, talabatID)
}

func (s *Service) ToggleRestaurant(ctx context.Context, id string) (*models.Restaurant, error) {
	r, err := s.GetRestaurant(ctx, id)
	if err != nil {
		return nil, err
	}
	r.IsActive = !r.IsActive
	if err := s.DB.UpdateRestaurant(ctx, r); err != nil {
		return nil, err
	}
	s.Logger.Info("RESTAURANT", fmt.Sprintf("Restaurant %s active=%t", r.ID, r.IsActive))
	return r, nil
}

// DeleteRestaurant refuses restaurants that votes, orders or groups still point at;
// those can be deactivated instead.
func (s *Service) DeleteRestaurant(ctx context.Context, id string) error {
	if _, err := s.GetRestaurant(ctx, id); err != nil {
		return err
	}
	inUse, err := s.DB.RestaurantInUse(ctx, id)
	if err != nil {
		return err
	}
	if inUse {
		return utils.Conflict("RESTAURANT_IN_USE", "Restaurant has votes, orders or groups; deactivate it instead")
	}
	return s.DB.DeleteRestaurant(ctx, id)
}

func validateRestaurant(in RestaurantInput) error {
	if strings.TrimSpace(in.Name) == "" || strings.TrimSpace(in.Cuisine) == "" {
		return utils.Invalid("MISSING_FIELDS", "Name and cuisine are required")
	}
	return nil
}

// ---------------- MENU ----------------

// Menu lists a restaurant's items. Tag filtering matches any of the given tags.
func (s *Service) Menu(ctx context.Context, restaurantID string, q MenuQuery) ([]models.MenuItem, error) {
	if _, err := s.GetRestaurant(ctx, restaurantID); err != nil {
		return nil, err
	}
	items, err := s.DB.ListMenu(ctx, restaurantID, db.MenuFilter{Search: q.Search, AvailableOnly: q.AvailableOnly})
	if err != nil {
		return nil, err
	}
	if len(q.Tags) == 0 {
		return items, nil
	}
	filtered := items[:0]
	for _, item := range items {
		if item.HasAnyTag(q.Tags) {
			filtered = append(filtered, item)
		}
	}
	return filtered, nil
}

func (s *Service) GetMenuItem(ctx context.Context, id string) (*models.MenuItem, error) {
	item, err := s.DB.GetMenuItem(ctx, id)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, utils.NotFound("MENU_ITEM_NOT_FOUND", "Menu item not found")
	}
	return item, nil
}

func (s *Service) CreateMenuItem(ctx context.Context, restaurantID string, in MenuItemInput) (*models.MenuItem, error) {
	items, err := s.BulkUpload(ctx, restaurantID, []MenuItemInput{in})
	if err != nil {
		return nil, err
	}
	return &items[0], nil
}

// BulkUpload validates every item before inserting any of them.
func (s *Service) BulkUpload(ctx context.Context, restaurantID string, in []MenuItemInput) ([]models.MenuItem, error) {
	if _, err := s.GetRestaurant(ctx, restaurantID); err != nil {
		return nil, err
	}
	items, err := s.buildItems(restaurantID, in)
	if err != nil {
		return nil, err
	}
	if err := s.DB.CreateMenuItems(ctx, items); err != nil {
		return nil, err
	}
	s.Logger.Info("MENU", fmt.Sprintf("Added %d items to restaurant %s", len(items), restaurantID))
	return items, nil
}

func (s *Service) ReplaceMenu(ctx context.Context, restaurantID string, in []MenuItemInput) ([]models.MenuItem, error) {
	if _, err := s.GetRestaurant(ctx, restaurantID); err != nil {
		return nil, err
	}
	items, err := s.buildItems(restaurantID, in)
	if err != nil {
		return nil, err
	}
	if err := s.DB.ReplaceMenu(ctx, restaurantID, items); err != nil {
		return nil, err
	}
	s.Logger.Info("MENU", fmt.Sprintf("Replaced menu of restaurant %s with %d items", restaurantID, len(items)))
	return items, nil
}

func (s *Service) UpdateMenuItem(ctx context.Context, id string, p MenuItemPatch) (*models.MenuItem, error) {
	item, err := s.GetMenuItem(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.Name != nil {
		if strings.TrimSpace(*p.Name) == "" {
			return nil, utils.Invalid("MISSING_FIELDS", "Name cannot be empty")
		}
		item.Name = strings.TrimSpace(*p.Name)
	}
	if p.Description != nil {
		item.Description = *p.Description
	}
	if p.Price != nil {
		if p.Price.IsNegative() {
			return nil, utils.Invalid("INVALID_PRICE", "Price must be a positive number")
		}
		item.Price = p.Price.Round(2)
	}
	if p.Category != nil {
		item.Category = *p.Category
	}
	if p.Tags != nil {
		item.Tags = normalizeTags(p.Tags)
	}
	if p.ImageURL != nil {
		item.ImageURL = *p.ImageURL
	}
	if p.IsAvailable != nil {
		item.IsAvailable = *p.IsAvailable
	}
	if err := s.DB.UpdateMenuItem(ctx, item); err != nil {
		return nil, err
	}
	return item, nil
}

func (s *Service) DeleteMenuItem(ctx context.Context, id string) error {
	if _, err := s.GetMenuItem(ctx, id); err != nil {
		return err
	}
	inUse, err := s.DB.MenuItemInUse(ctx, id)
	if err != nil {
		return err
	}
	if inUse {
		return utils.Conflict("MENU_ITEM_IN_USE", "Menu item is in a cart or order; mark it unavailable instead")
	}
	return s.DB.DeleteMenuItem(ctx, id)
}

func (s *Service) buildItems(restaurantID string, in []MenuItemInput) ([]models.MenuItem, error) {
	if len(in) == 0 {
		return nil, utils.Invalid("NO_ITEMS", "No menu items provided")
	}
	now := s.Now()
	items := make([]models.MenuItem, 0, len(in))
	for _, it := range in {
		if strings.TrimSpace(it.Name) == "" || strings.TrimSpace(it.Category) == "" {
			return nil, utils.Invalid("INVALID_ITEM", "Each item must have a name, price and category")
		}
		if it.Price.IsNegative() {
			return nil, utils.Invalid("INVALID_PRICE", "All prices must be positive numbers")
		}
		items = append(items, models.MenuItem{
			ID:           utils.GenerateID(),
			RestaurantID: restaurantID,
			Name:         strings.TrimSpace(it.Name),
			Description:  it.Description,
			Price:        it.Price.Round(2),
			Category:     strings.TrimSpace(it.Category),
			Tags:         normalizeTags(it.Tags),
			ImageURL:     it.ImageURL,
			IsAvailable:  it.IsAvailable == nil || *it.IsAvailable,
			TalabatID:    it.TalabatID,
			CreatedAt:    now,
		})
	}
	return items, nil
}

func normalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]bool, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}
