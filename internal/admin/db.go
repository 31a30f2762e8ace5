package admin

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"

	"ms-lunch/internal/models"
)

// DB runs the reporting queries behind the admin dashboard.
type DB struct {
	bun *bun.DB
}

func NewDB(db *bun.DB) *DB {
	return &DB{bun: db}
}

func (db *DB) CountUsersByRole(ctx context.Context, role string) (int, error) {
	n, err := db.bun.NewSelect().Model((*models.User)(nil)).Where("role = ?", role).Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count %s users: %w", role, err)
	}
	return n, nil
}

// PeriodOrderTotals counts the live orders of a voting period and sums their value.
func (db *DB) PeriodOrderTotals(ctx context.Context, periodID string) (int, decimal.Decimal, error) {
	var row struct {
		Orders  int             `bun:"orders"`
		Revenue decimal.Decimal `bun:"revenue"`
	}
	err := db.bun.NewRaw(`
		SELECT
			COUNT(*) AS orders,
			COALESCE(SUM(o.total_amount), 0) AS revenue
		FROM
			orders o
		WHERE
			o.voting_period_id = ? AND o.status <> ?
	`, periodID, models.OrderCancelled).Scan(ctx, &row)
	if err != nil {
		return 0, decimal.Zero, fmt.Errorf("order totals of period %s: %w", periodID, err)
	}
	return row.Orders, row.Revenue, nil
}

type Overview struct {
	TotalUsers             int             `json:"total_users" bun:"total_users"`
	TotalActiveRestaurants int             `json:"total_active_restaurants" bun:"total_active_restaurants"`
	TotalOrders            int             `json:"total_orders" bun:"total_orders"`
	TotalRevenue           decimal.Decimal `json:"total_revenue" bun:"total_revenue"`
	OpenGroups             int             `json:"open_groups" bun:"open_groups"`
}

func (db *DB) Overview(ctx context.Context) (*Overview, error) {
	var out Overview
	err := db.bun.NewRaw(`
		SELECT
			(SELECT COUNT(*) FROM users) AS total_users,
			(SELECT COUNT(*) FROM restaurants WHERE is_active = ?) AS total_active_restaurants,
			(SELECT COUNT(*) FROM orders) AS total_orders,
			(SELECT COALESCE(SUM(total_amount), 0) FROM orders WHERE status <> ?) AS total_revenue,
			(SELECT COUNT(*) FROM "groups" WHERE is_closed = ?) AS open_groups
	`, true, models.OrderCancelled, false).Scan(ctx, &out)
	if err != nil {
		return nil, fmt.Errorf("system overview: %w", err)
	}
	return &out, nil
}

// DailyOrders is one row of the order history.
type DailyOrders struct {
	Date    string          `json:"date" bun:"date"`
	Orders  int             `json:"orders" bun:"orders"`
	Revenue decimal.Decimal `json:"revenue" bun:"revenue"`
}

// OrderHistory returns live order counts and revenue per voting day in [from, to].
func (db *DB) OrderHistory(ctx context.Context, from, to string) ([]DailyOrders, error) {
	var rows []DailyOrders
	err := db.bun.NewRaw(`
		SELECT
			vp.date AS date,
			COUNT(o.id) AS orders,
			COALESCE(SUM(o.total_amount), 0) AS revenue
		FROM
			voting_periods vp
		LEFT JOIN
			orders o ON o.voting_period_id = vp.id AND o.status <> ?
		WHERE
			vp.date >= ? AND vp.date <= ?
		GROUP BY
			vp.date
		ORDER BY
			vp.date
	`, models.OrderCancelled, from, to).Scan(ctx, &rows)
	if err != nil {
		return nil, fmt.Errorf("order history %s..%s: %w", from, to, err)
	}
	return rows, nil
}
