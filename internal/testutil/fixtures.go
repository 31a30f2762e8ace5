// Package testutil builds sqlite-backed fixtures shared by package tests.
package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"

	"ms-lunch/internal/database"
	"ms-lunch/internal/models"
	"ms-lunch/internal/utils"
)

func NewDB(t testing.TB) *bun.DB {
	t.Helper()
	db, err := database.NewTestDB()
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func insert(t testing.TB, db bun.IDB, model interface{}) {
	t.Helper()
	if _, err := db.NewInsert().Model(model).Exec(context.Background()); err != nil {
		t.Fatalf("insert %T: %v", model, err)
	}
}

func User(t testing.TB, db bun.IDB, name string) *models.User {
	t.Helper()
	u := &models.User{
		ID:           utils.GenerateID(),
		Email:        name + "@array.com",
		Name:         name,
		PasswordHash: "x",
		Role:         models.RoleEmployee,
		IsVerified:   true,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}
	insert(t, db, u)
	return u
}

func Admin(t testing.TB, db bun.IDB, name string) *models.User {
	t.Helper()
	u := User(t, db, name)
	u.Role = models.RoleAdmin
	if _, err := db.NewUpdate().Model(u).Column("role").WherePK().Exec(context.Background()); err != nil {
		t.Fatalf("promote admin: %v", err)
	}
	return u
}

func Restaurant(t testing.TB, db bun.IDB, name string, active bool) *models.Restaurant {
	t.Helper()
	r := &models.Restaurant{
		ID:        utils.GenerateID(),
		Name:      name,
		Cuisine:   "Mixed",
		IsActive:  active,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	insert(t, db, r)
	return r
}

func MenuItem(t testing.TB, db bun.IDB, restaurantID, name, price string, available bool, tags ...string) *models.MenuItem {
	t.Helper()
	m := &models.MenuItem{
		ID:           utils.GenerateID(),
		RestaurantID: restaurantID,
		Name:         name,
		Price:        decimal.RequireFromString(price),
		Category:     "Main",
		Tags:         tags,
		IsAvailable:  available,
		CreatedAt:    time.Now(),
	}
	insert(t, db, m)
	return m
}

// Group inserts an open group and its owner membership.
func Group(t testing.TB, db bun.IDB, owner *models.User, restaurantID string, endAt time.Time, private bool) *models.Group {
	t.Helper()
	g := &models.Group{
		ID:           utils.GenerateID(),
		OwnerID:      owner.ID,
		RestaurantID: restaurantID,
		Name:         owner.Name + "'s lunch",
		Visibility:   models.VisibilityPublic,
		EndAt:        endAt,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}
	if private {
		g.Visibility = models.VisibilityPrivate
		g.JoinCode = "ABCD-2345"
	}
	insert(t, db, g)
	Member(t, db, g.ID, owner.ID)
	return g
}

func Member(t testing.TB, db bun.IDB, groupID, userID string) {
	t.Helper()
	insert(t, db, &models.GroupMember{ID: utils.GenerateID(), GroupID: groupID, UserID: userID, JoinedAt: time.Now()})
}

// CartItem adds qty of item to the user's cart in the group, creating the cart if needed.
func CartItem(t testing.TB, db bun.IDB, groupID, userID, menuItemID string, qty int) *models.CartItem {
	t.Helper()
	ctx := context.Background()
	var cart models.Cart
	err := db.NewSelect().Model(&cart).Where("group_id = ? AND user_id = ?", groupID, userID).Limit(1).Scan(ctx)
	if err != nil {
		cart = models.Cart{ID: utils.GenerateID(), GroupID: groupID, UserID: userID, CreatedAt: time.Now()}
		insert(t, db, &cart)
	}
	item := &models.CartItem{ID: utils.GenerateID(), CartID: cart.ID, MenuItemID: menuItemID, Quantity: qty, AddedAt: time.Now()}
	insert(t, db, item)
	return item
}
