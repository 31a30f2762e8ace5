package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"

	"ms-lunch/internal/models"
	"ms-lunch/internal/utils"
)

// BunStore keeps payments in the shared database.
type BunStore struct {
	Bun *bun.DB
}

func NewBunStore(db *bun.DB) *BunStore {
	return &BunStore{Bun: db}
}

func (s *BunStore) InitializePayments(ctx context.Context, groupID string, now time.Time) (int, error) {
	return InitializeForGroup(ctx, s.Bun, groupID, now)
}

type cartLine struct {
	UserID   string          `bun:"user_id"`
	Quantity int             `bun:"quantity"`
	Price    decimal.Decimal `bun:"price"`
}

// InitializeForGroup inserts one UNPAID payment per member, priced at the
// member's cart total. Existing rows are left alone, so it is safe to call
// from every close path and from inside the closing transaction.
func InitializeForGroup(ctx context.Context, db bun.IDB, groupID string, now time.Time) (int, error) {
	var memberIDs []string
	err := db.NewSelect().
		Model((*models.GroupMember)(nil)).
		Column("user_id").
		Where("group_id = ?", groupID).
		Scan(ctx, &memberIDs)
	if err != nil {
		return 0, fmt.Errorf("list members of %s: %w", groupID, err)
	}
	if len(memberIDs) == 0 {
		return 0, nil
	}

	var lines []cartLine
	err = db.NewSelect().
		TableExpr("cart_items AS ci").
		Join("JOIN carts AS c ON c.id = ci.cart_id").
		Join("JOIN menu_items AS mi ON mi.id = ci.menu_item_id").
		ColumnExpr("c.user_id, ci.quantity, mi.price").
		Where("c.group_id = ?", groupID).
		Scan(ctx, &lines)
	if err != nil {
		return 0, fmt.Errorf("load cart totals of %s: %w", groupID, err)
	}
	totals := make(map[string]decimal.Decimal, len(memberIDs))
	for _, l := range lines {
		totals[l.UserID] = totals[l.UserID].Add(l.Price.Mul(decimal.NewFromInt(int64(l.Quantity))))
	}

	payments := make([]models.Payment, 0, len(memberIDs))
	for _, userID := range memberIDs {
		payments = append(payments, models.Payment{
			ID:        utils.GenerateID(),
			GroupID:   groupID,
			UserID:    userID,
			Status:    models.PaymentUnpaid,
			Amount:    totals[userID].Round(2),
			CreatedAt: now,
			UpdatedAt: now,
		})
	}
	res, err := db.NewInsert().Model(&payments).On("CONFLICT DO NOTHING").Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("insert payments of %s: %w", groupID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

func (s *BunStore) ListPayments(ctx context.Context, groupID string) ([]models.Payment, error) {
	var payments []models.Payment
	err := s.Bun.NewSelect().
		Model(&payments).
		Relation("User").
		Where("p.group_id = ?", groupID).
		Order("p.created_at ASC", "p.user_id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list payments of %s: %w", groupID, err)
	}
	return payments, nil
}

func (s *BunStore) GetPayment(ctx context.Context, groupID, userID string) (*models.Payment, error) {
	var p models.Payment
	err := s.Bun.NewSelect().
		Model(&p).
		Relation("User").
		Where("p.group_id = ?", groupID).
		Where("p.user_id = ?", userID).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get payment: %w", err)
	}
	return &p, nil
}

func (s *BunStore) UpdatePayment(ctx context.Context, p *models.Payment) error {
	_, err := s.Bun.NewUpdate().
		Model(p).
		Column("status", "confirmed_by_owner", "confirmed_at", "updated_at").
		WherePK().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("update payment %s: %w", p.ID, err)
	}
	return nil
}

// MarkPending moves an UNPAID payment to PENDING and reports whether it did.
func (s *BunStore) MarkPending(ctx context.Context, groupID, userID string, now time.Time) (bool, error) {
	res, err := s.Bun.NewUpdate().
		Model((*models.Payment)(nil)).
		Set("status = ?", models.PaymentPending).
		Set("confirmed_by_owner = ?", false).
		Set("updated_at = ?", now).
		Where("group_id = ?", groupID).
		Where("user_id = ?", userID).
		Where("status = ?", models.PaymentUnpaid).
		Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("mark payment pending: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *BunStore) HealthCheck(ctx context.Context) error {
	return s.Bun.PingContext(ctx)
}
