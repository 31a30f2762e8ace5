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
	paystore "ms-lunch/internal/payment/storage"
	"ms-lunch/internal/utils"
)

type DB struct {
	Bun *bun.DB
}

type Filter struct {
	// IncludeClosed lists closed groups as well as open ones.
	IncludeClosed bool
	// MemberID restricts the list to groups the user owns or joined and
	// lifts the PUBLIC-only restriction.
	MemberID   string
	Visibility string
	Search     string
}

// ---------------- GROUPS ----------------

// CreateGroup inserts the group and its owner membership together.
func (d *DB) CreateGroup(ctx context.Context, g *models.Group) error {
	return d.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewInsert().Model(g).Exec(ctx); err != nil {
			return fmt.Errorf("insert group: %w", err)
		}
		owner := &models.GroupMember{ID: utils.GenerateID(), GroupID: g.ID, UserID: g.OwnerID, JoinedAt: g.CreatedAt}
		if _, err := tx.NewInsert().Model(owner).Exec(ctx); err != nil {
			return fmt.Errorf("insert owner membership: %w", err)
		}
		return nil
	})
}

func (d *DB) JoinCodeExists(ctx context.Context, code string) (bool, error) {
	exists, err := d.Bun.NewSelect().Model((*models.Group)(nil)).Where("join_code = ?", code).Exists(ctx)
	if err != nil {
		return false, fmt.Errorf("check join code: %w", err)
	}
	return exists, nil
}

// GetGroup loads a group with owner, restaurant and members. Returns (nil, nil) when missing.
func (d *DB) GetGroup(ctx context.Context, id string) (*models.Group, error) {
	var g models.Group
	err := d.Bun.NewSelect().
		Model(&g).
		Relation("Owner").
		Relation("Restaurant").
		Relation("Members", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Order("joined_at ASC")
		}).
		Relation("Members.User").
		Where("g.id = ?", id).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get group %s: %w", id, err)
	}
	g.MemberCount = len(g.Members)
	return &g, nil
}

func (d *DB) ListGroups(ctx context.Context, f Filter) ([]models.Group, error) {
	var groups []models.Group
	q := d.Bun.NewSelect().
		Model(&groups).
		Relation("Owner").
		Relation("Restaurant").
		Relation("Members")

	if !f.IncludeClosed {
		q = q.Where("g.is_closed = ?", false)
	}
	if f.MemberID != "" {
		members := d.Bun.NewSelect().Model((*models.GroupMember)(nil)).Column("group_id").Where("user_id = ?", f.MemberID)
		q = q.WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("g.owner_id = ?", f.MemberID).WhereOr("g.id IN (?)", members)
		})
	}
	if f.Visibility != "" {
		q = q.Where("g.visibility = ?", f.Visibility)
	}
	if f.Search != "" {
		like := "%" + strings.ToLower(f.Search) + "%"
		q = q.WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("LOWER(g.name) LIKE ?", like).
				WhereOr("LOWER(restaurant.name) LIKE ?", like).
				WhereOr("LOWER(owner.name) LIKE ?", like)
		})
	}

	if err := q.Order("g.created_at DESC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}
	for i := range groups {
		groups[i].MemberCount = len(groups[i].Members)
		groups[i].Members = nil
	}
	return groups, nil
}

// ListOpenGroups returns every group that is not closed yet.
func (d *DB) ListOpenGroups(ctx context.Context) ([]models.Group, error) {
	var groups []models.Group
	err := d.Bun.NewSelect().Model(&groups).Where("is_closed = ?", false).Order("end_at ASC").Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list open groups: %w", err)
	}
	return groups, nil
}

// CloseGroup marks an open group closed and creates its payments in the same
// transaction. It reports false when the group was already closed.
func (d *DB) CloseGroup(ctx context.Context, id string, now time.Time) (bool, error) {
	closed := false
	err := d.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		res, err := tx.NewUpdate().
			Model((*models.Group)(nil)).
			Set("is_closed = ?", true).
			Set("updated_at = ?", now).
			Where("id = ?", id).
			Where("is_closed = ?", false).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("close group %s: %w", id, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return nil
		}
		closed = true
		_, err = paystore.InitializeForGroup(ctx, tx, id, now)
		return err
	})
	return closed, err
}

// DeleteGroup removes the group with its carts, payments and memberships.
func (d *DB) DeleteGroup(ctx context.Context, id string) error {
	return d.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		carts := tx.NewSelect().Model((*models.Cart)(nil)).Column("id").Where("group_id = ?", id)
		if _, err := tx.NewDelete().Model((*models.CartItem)(nil)).Where("cart_id IN (?)", carts).Exec(ctx); err != nil {
			return fmt.Errorf("delete cart items: %w", err)
		}
		for _, model := range []interface{}{(*models.Cart)(nil), (*models.Payment)(nil), (*models.GroupMember)(nil)} {
			if _, err := tx.NewDelete().Model(model).Where("group_id = ?", id).Exec(ctx); err != nil {
				return fmt.Errorf("delete %T of group %s: %w", model, id, err)
			}
		}
		if _, err := tx.NewDelete().Model((*models.Group)(nil)).Where("id = ?", id).Exec(ctx); err != nil {
			return fmt.Errorf("delete group %s: %w", id, err)
		}
		return nil
	})
}

// ---------------- MEMBERS ----------------

func (d *DB) IsMember(ctx context.Context, groupID, userID string) (bool, error) {
	exists, err := d.Bun.NewSelect().
		Model((*models.GroupMember)(nil)).
		Where("group_id = ?", groupID).
		Where("user_id = ?", userID).
		Exists(ctx)
	if err != nil {
		return false, fmt.Errorf("check membership: %w", err)
	}
	return exists, nil
}

func (d *DB) CountMembers(ctx context.Context, groupID string) (int, error) {
	n, err := d.Bun.NewSelect().Model((*models.GroupMember)(nil)).Where("group_id = ?", groupID).Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count members: %w", err)
	}
	return n, nil
}

// AddMember reports false when the user is already a member.
func (d *DB) AddMember(ctx context.Context, groupID, userID string, now time.Time) (bool, error) {
	m := &models.GroupMember{ID: utils.GenerateID(), GroupID: groupID, UserID: userID, JoinedAt: now}
	res, err := d.Bun.NewInsert().Model(m).On("CONFLICT DO NOTHING").Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("add member: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
