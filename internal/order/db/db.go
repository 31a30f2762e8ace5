package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"ms-lunch/internal/models"
)

// ErrLiveOrderExists is returned when the user already has a non-cancelled order for the period.
var ErrLiveOrderExists = errors.New("live order exists for user and period")

type DB struct {
	Bun *bun.DB
}

func withDetails(q *bun.SelectQuery) *bun.SelectQuery {
	return q.
		Relation("User").
		Relation("Restaurant").
		Relation("Items", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Order("oi.created_at ASC", "oi.id ASC")
		}).
		Relation("Items.MenuItem")
}

// ---------------- ORDERS ----------------

// CreateOrder writes the order and its items in one transaction.
func (d *DB) CreateOrder(ctx context.Context, order *models.Order, items []models.OrderItem) error {
	return d.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		res, err := tx.NewInsert().Model(order).On("CONFLICT DO NOTHING").Exec(ctx)
		if err != nil {
			return fmt.Errorf("insert order: %w", err)
		}
		if n, err := res.RowsAffected(); err != nil {
			return err
		} else if n == 0 {
			return ErrLiveOrderExists
		}
		if _, err := tx.NewInsert().Model(&items).Exec(ctx); err != nil {
			return fmt.Errorf("insert order items: %w", err)
		}
		return nil
	})
}

func (d *DB) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	var order models.Order
	err := withDetails(d.Bun.NewSelect().Model(&order)).
		Where("o.id = ?", id).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get order %s: %w", id, err)
	}
	return &order, nil
}

// FindLiveOrder returns the user's non-cancelled order for the period, if any.
func (d *DB) FindLiveOrder(ctx context.Context, userID, periodID string) (*models.Order, error) {
	var order models.Order
	err := d.Bun.NewSelect().
		Model(&order).
		Where("o.user_id = ?", userID).
		Where("o.voting_period_id = ?", periodID).
		Where("o.status <> ?", models.OrderCancelled).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find live order: %w", err)
	}
	return &order, nil
}

func (d *DB) ListUserOrders(ctx context.Context, userID string) ([]models.Order, error) {
	var orders []models.Order
	err := withDetails(d.Bun.NewSelect().Model(&orders)).
		Where("o.user_id = ?", userID).
		Order("o.created_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list orders of %s: %w", userID, err)
	}
	return orders, nil
}

// ListPeriodOrders returns the non-cancelled orders of a voting period.
func (d *DB) ListPeriodOrders(ctx context.Context, periodID string) ([]models.Order, error) {
	var orders []models.Order
	err := withDetails(d.Bun.NewSelect().Model(&orders)).
		Where("o.voting_period_id = ?", periodID).
		Where("o.status <> ?", models.OrderCancelled).
		Order("o.created_at ASC", "o.id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list orders of period %s: %w", periodID, err)
	}
	return orders, nil
}

// SetStatus moves an order from one status to another and reports whether it did.
func (d *DB) SetStatus(ctx context.Context, id, from, to string, now time.Time) (bool, error) {
	res, err := d.Bun.NewUpdate().
		Model((*models.Order)(nil)).
		Set("status = ?", to).
		Set("updated_at = ?", now).
		Where("id = ?", id).
		Where("status = ?", from).
		Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("set order %s to %s: %w", id, to, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ConfirmPeriodOrders marks every pending order of the period confirmed.
func (d *DB) ConfirmPeriodOrders(ctx context.Context, periodID string, now time.Time) (int, error) {
	res, err := d.Bun.NewUpdate().
		Model((*models.Order)(nil)).
		Set("status = ?", models.OrderConfirmed).
		Set("updated_at = ?", now).
		Where("voting_period_id = ?", periodID).
		Where("status = ?", models.OrderPending).
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("confirm orders of period %s: %w", periodID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}
