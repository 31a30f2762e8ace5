package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"ms-lunch/internal/models"
	"ms-lunch/internal/utils"
)

type DB struct {
	Bun *bun.DB
}

func withItems(q *bun.SelectQuery) *bun.SelectQuery {
	return q.
		Relation("User").
		Relation("Items", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Order("added_at ASC", "id ASC")
		}).
		Relation("Items.MenuItem")
}

// GetOrCreateCart returns the user's cart in the group, creating it on first use.
func (d *DB) GetOrCreateCart(ctx context.Context, groupID, userID string, now time.Time) (*models.Cart, error) {
	cart := &models.Cart{ID: utils.GenerateID(), GroupID: groupID, UserID: userID, CreatedAt: now}
	if _, err := d.Bun.NewInsert().Model(cart).On("CONFLICT DO NOTHING").Exec(ctx); err != nil {
		return nil, fmt.Errorf("create cart: %w", err)
	}
	var existing models.Cart
	err := d.Bun.NewSelect().Model(&existing).
		Where("group_id = ?", groupID).
		Where("user_id = ?", userID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("load cart: %w", err)
	}
	return &existing, nil
}

// GetCart loads a cart with its items and their menu items. Returns (nil, nil) when missing.
func (d *DB) GetCart(ctx context.Context, id string) (*models.Cart, error) {
	var cart models.Cart
	err := withItems(d.Bun.NewSelect().Model(&cart)).Where("cart.id = ?", id).Limit(1).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get cart %s: %w", id, err)
	}
	return &cart, nil
}

func (d *DB) ListGroupCarts(ctx context.Context, groupID string) ([]models.Cart, error) {
	var carts []models.Cart
	err := withItems(d.Bun.NewSelect().Model(&carts)).
		Where("cart.group_id = ?", groupID).
		Order("cart.created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list carts of %s: %w", groupID, err)
	}
	return carts, nil
}

// ---------------- ITEMS ----------------

func (d *DB) AddItem(ctx context.Context, item *models.CartItem) error {
	if _, err := d.Bun.NewInsert().Model(item).Exec(ctx); err != nil {
		return fmt.Errorf("add cart item: %w", err)
	}
	return nil
}

// GetItem loads an item with its cart. Returns (nil, nil) when missing.
func (d *DB) GetItem(ctx context.Context, id string) (*models.CartItem, error) {
	var item models.CartItem
	err := d.Bun.NewSelect().Model(&item).Relation("Cart").Where("cart_item.id = ?", id).Limit(1).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get cart item %s: %w", id, err)
	}
	return &item, nil
}

func (d *DB) UpdateItemQuantity(ctx context.Context, id string, quantity int) error {
	_, err := d.Bun.NewUpdate().
		Model((*models.CartItem)(nil)).
		Set("quantity = ?", quantity).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("update cart item %s: %w", id, err)
	}
	return nil
}

func (d *DB) RemoveItem(ctx context.Context, id string) error {
	if _, err := d.Bun.NewDelete().Model((*models.CartItem)(nil)).Where("id = ?", id).Exec(ctx); err != nil {
		return fmt.Errorf("remove cart item %s: %w", id, err)
	}
	return nil
}
