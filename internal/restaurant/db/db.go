package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/uptrace/bun"

	"ms-lunch/internal/models"
)

type DB struct {
	Bun *bun.DB
}

// ---------------- RESTAURANTS ----------------

func (d *DB) ListRestaurants(ctx context.Context, activeOnly bool) ([]models.Restaurant, error) {
	var restaurants []models.Restaurant
	q := d.Bun.NewSelect().Model(&restaurants).Order("name ASC")
	if activeOnly {
		q = q.Where("is_active = ?", true)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("list restaurants: %w", err)
	}
	return restaurants, nil
}

// GetRestaurant returns (nil, nil) when no restaurant matches.
func (d *DB) GetRestaurant(ctx context.Context, id string) (*models.Restaurant, error) {
	var r models.Restaurant
	err := d.Bun.NewSelect().Model(&r).Where("id = ?", id).Limit(1).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get restaurant %s: %w", id, err)
	}
	return &r, nil
}

// GetRestaurantByTalabatID returns (nil, nil) when no restaurant was synced from that id.
func (d *DB) GetRestaurantByTalabatID(ctx context.Context, talabatID string) (*models.Restaurant, error) {
	var r models.Restaurant
	err := d.Bun.NewSelect().Model(&r).Where("talabat_id = ?", talabatID).Limit(1).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get restaurant by talabat id %s: %w", talabatID, err)
	}
	return &r, nil
}

func (d *DB) GetRestaurantsByIDs(ctx context.Context, ids []string) ([]models.Restaurant, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var restaurants []models.Restaurant
	err := d.Bun.NewSelect().Model(&restaurants).Where("id IN (?)", bun.In(ids)).Order("name ASC").Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("get restaurants: %w", err)
	}
	return restaurants, nil
}

func (d *DB) CreateRestaurant(ctx context.Context, r *models.Restaurant) error {
	if _, err := d.Bun.NewInsert().Model(r).Exec(ctx); err != nil {
		return fmt.Errorf("insert restaurant: %w", err)
	}
	return nil
}

func (d *DB) UpdateRestaurant(ctx context.Context, r *models.Restaurant) error {
	r.UpdatedAt = time.Now()
	_, err := d.Bun.NewUpdate().
		Model(r).
		Column("name", "cuisine", "description", "image_url", "is_active", "talabat_id", "updated_at").
		WherePK().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("update restaurant %s: %w", r.ID, err)
	}
	return nil
}

// DeleteRestaurant removes the restaurant together with its menu and ballot entries.
func (d *DB) DeleteRestaurant(ctx context.Context, id string) error {
	return d.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewDelete().Model((*models.MenuItem)(nil)).Where("restaurant_id = ?", id).Exec(ctx); err != nil {
			return fmt.Errorf("delete menu: %w", err)
		}
		if _, err := tx.NewDelete().Model((*models.DailyRestaurant)(nil)).Where("restaurant_id = ?", id).Exec(ctx); err != nil {
			return fmt.Errorf("delete daily entries: %w", err)
		}
		if _, err := tx.NewDelete().Model((*models.Restaurant)(nil)).Where("id = ?", id).Exec(ctx); err != nil {
			return fmt.Errorf("delete restaurant: %w", err)
		}
		return nil
	})
}

// RestaurantInUse reports whether votes, orders or groups reference the restaurant.
func (d *DB) RestaurantInUse(ctx context.Context, id string) (bool, error) {
	for _, model := range []interface{}{(*models.Vote)(nil), (*models.Order)(nil), (*models.Group)(nil)} {
		exists, err := d.Bun.NewSelect().Model(model).Where("restaurant_id = ?", id).Exists(ctx)
		if err != nil {
			return false, fmt.Errorf("check restaurant references: %w", err)
		}
		if exists {
			return true, nil
		}
	}
	return false, nil
}

// ---------------- MENU ----------------

type MenuFilter struct {
	Search        string
	AvailableOnly bool
}

func (d *DB) ListMenu(ctx context.Context, restaurantID string, f MenuFilter) ([]models.MenuItem, error) {
	var items []models.MenuItem
	q := d.Bun.NewSelect().Model(&items).
		Where("restaurant_id = ?", restaurantID).
		Order("category ASC", "name ASC")
	if f.AvailableOnly {
		q = q.Where("is_available = ?", true)
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		pattern := "%" + strings.ToLower(s) + "%"
		q = q.WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("LOWER(name) LIKE ?", pattern).
				WhereOr("LOWER(description) LIKE ?", pattern).
				WhereOr("LOWER(category) LIKE ?", pattern)
		})
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("list menu of %s: %w", restaurantID, err)
	}
	return items, nil
}

// GetMenuItem returns (nil, nil) when no item matches.
func (d *DB) GetMenuItem(ctx context.Context, id string) (*models.MenuItem, error) {
	var item models.MenuItem
	err := d.Bun.NewSelect().Model(&item).Where("id = ?", id).Limit(1).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get menu item %s: %w", id, err)
	}
	return &item, nil
}

// GetMenuItems returns the items found, keyed by id. Missing ids are absent.
func (d *DB) GetMenuItems(ctx context.Context, ids []string) (map[string]*models.MenuItem, error) {
	out := make(map[string]*models.MenuItem, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var items []models.MenuItem
	if err := d.Bun.NewSelect().Model(&items).Where("id IN (?)", bun.In(ids)).Scan(ctx); err != nil {
		return nil, fmt.Errorf("get menu items: %w", err)
	}
	for i := range items {
		out[items[i].ID] = &items[i]
	}
	return out, nil
}

func (d *DB) CreateMenuItems(ctx context.Context, items []models.MenuItem) error {
	if len(items) == 0 {
		return nil
	}
	if _, err := d.Bun.NewInsert().Model(&items).Exec(ctx); err != nil {
		return fmt.Errorf("insert menu items: %w", err)
	}
	return nil
}

func (d *DB) UpdateMenuItem(ctx context.Context, item *models.MenuItem) error {
	_, err := d.Bun.NewUpdate().
		Model(item).
		Column("name", "description", "price", "category", "tags", "image_url", "is_available").
		WherePK().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("update menu item %s: %w", item.ID, err)
	}
	return nil
}

func (d *DB) DeleteMenuItem(ctx context.Context, id string) error {
	if _, err := d.Bun.NewDelete().Model((*models.MenuItem)(nil)).Where("id = ?", id).Exec(ctx); err != nil {
		return fmt.Errorf("delete menu item %s: %w", id, err)
	}
	return nil
}

// MenuItemInUse reports whether any cart or order line references the item.
func (d *DB) MenuItemInUse(ctx context.Context, id string) (bool, error) {
	return menuItemInUse(ctx, d.Bun, id)
}

func menuItemInUse(ctx context.Context, db bun.IDB, id string) (bool, error) {
	for _, model := range []interface{}{(*models.CartItem)(nil), (*models.OrderItem)(nil)} {
		exists, err := db.NewSelect().Model(model).Where("menu_item_id = ?", id).Exists(ctx)
		if err != nil {
			return false, fmt.Errorf("check menu item references: %w", err)
		}
		if exists {
			return true, nil
		}
	}
	return false, nil
}

// ReplaceMenu swaps the restaurant's menu for items in one transaction.
// Items still referenced by carts or orders are retired (made unavailable)
// instead of deleted.
func (d *DB) ReplaceMenu(ctx context.Context, restaurantID string, items []models.MenuItem) error {
	return d.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var existing []models.MenuItem
		if err := tx.NewSelect().Model(&existing).Where("restaurant_id = ?", restaurantID).Scan(ctx); err != nil {
			return fmt.Errorf("load menu: %w", err)
		}
		for _, item := range existing {
			inUse, err := menuItemInUse(ctx, tx, item.ID)
			if err != nil {
				return err
			}
			if inUse {
				_, err = tx.NewUpdate().Model((*models.MenuItem)(nil)).
					Set("is_available = ?", false).
					Where("id = ?", item.ID).
					Exec(ctx)
			} else {
				_, err = tx.NewDelete().Model((*models.MenuItem)(nil)).Where("id = ?", item.ID).Exec(ctx)
			}
			if err != nil {
				return fmt.Errorf("retire menu item %s: %w", item.ID, err)
			}
		}
		if len(items) > 0 {
			if _, err := tx.NewInsert().Model(&items).Exec(ctx); err != nil {
				return fmt.Errorf("insert menu items: %w", err)
			}
		}
		return nil
	})
}
