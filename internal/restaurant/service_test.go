package restaurant_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ms-lunch/internal/logger"
	"ms-lunch/internal/restaurant"
	"ms-lunch/internal/restaurant/db"
	"ms-lunch/internal/testutil"
	"ms-lunch/internal/utils"
)

func setup(t *testing.T) (*restaurant.Service, *db.DB) {
	bunDB := testutil.NewDB(t)
	d := &db.DB{Bun: bunDB}
	return restaurant.NewService(d, logger.Discard()), d
}

func TestRestaurantCRUD(t *testing.T) {
	svc, _ := setup(t)
	ctx := context.Background()

	_, err := svc.CreateRestaurant(ctx, restaurant.RestaurantInput{Name: " "})
	assert.Equal(t, "MISSING_FIELDS", utils.CodeOf(err))

	r, err := svc.CreateRestaurant(ctx, restaurant.RestaurantInput{Name: "Shawarma House", Cuisine: "Levantine"})
	require.NoError(t, err)
	assert.True(t, r.IsActive)

	toggled, err := svc.ToggleRestaurant(ctx, r.ID)
	require.NoError(t, err)
	assert.False(t, toggled.IsActive)

	active, err := svc.ListRestaurants(ctx, true)
	require.NoError(t, err)
	assert.Empty(t, active)

	all, err := svc.ListRestaurants(ctx, false)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	_, err = svc.GetRestaurant(ctx, "missing")
	assert.Equal(t, "RESTAURANT_NOT_FOUND", utils.CodeOf(err))

	require.NoError(t, svc.DeleteRestaurant(ctx, r.ID))
	_, err = svc.GetRestaurant(ctx, r.ID)
	assert.Equal(t, "RESTAURANT_NOT_FOUND", utils.CodeOf(err))
}

func TestDeleteRestaurantInUse(t *testing.T) {
	svc, d := setup(t)
	ctx := context.Background()
	owner := testutil.User(t, d.Bun, "owner")
	r := testutil.Restaurant(t, d.Bun, "Busy", true)
	testutil.Group(t, d.Bun, owner, r.ID, time.Now().Add(time.Hour), false)

	err := svc.DeleteRestaurant(ctx, r.ID)
	assert.Equal(t, "RESTAURANT_IN_USE", utils.CodeOf(err))
}

func TestMenuFilters(t *testing.T) {
	svc, d := setup(t)
	ctx := context.Background()
	r := testutil.Restaurant(t, d.Bun, "Pizza Place", true)

	_, err := svc.BulkUpload(ctx, r.ID, []restaurant.MenuItemInput{
		{Name: "Margherita", Price: decimal.RequireFromString("8.50"), Category: "Pizza", Tags: []string{"Vegetarian"}},
		{Name: "Pepperoni", Price: decimal.RequireFromString("9.75"), Category: "Pizza", Tags: []string{"spicy"}},
		{Name: "Tiramisu", Description: "Coffee dessert", Price: decimal.RequireFromString("4"), Category: "Dessert"},
	})
	require.NoError(t, err)

	items, err := svc.Menu(ctx, r.ID, restaurant.MenuQuery{Search: "PIZZA"})
	require.NoError(t, err)
	assert.Len(t, items, 2)

	items, err = svc.Menu(ctx, r.ID, restaurant.MenuQuery{Search: "coffee"})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Tiramisu", items[0].Name)

	items, err = svc.Menu(ctx, r.ID, restaurant.MenuQuery{Tags: []string{"vegetarian"}})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Margherita", items[0].Name)
	assert.True(t, items[0].Price.Equal(decimal.RequireFromString("8.5")))

	_, err = svc.Menu(ctx, "missing", restaurant.MenuQuery{})
	assert.Equal(t, "RESTAURANT_NOT_FOUND", utils.CodeOf(err))
}

func TestBulkUploadValidatesAllItems(t *testing.T) {
	svc, d := setup(t)
	ctx := context.Background()
	r := testutil.Restaurant(t, d.Bun, "Cafe", true)

	_, err := svc.BulkUpload(ctx, r.ID, []restaurant.MenuItemInput{
		{Name: "Ok", Price: decimal.NewFromInt(1), Category: "Drinks"},
		{Name: "Bad", Price: decimal.NewFromInt(-1), Category: "Drinks"},
	})
	assert.Equal(t, "INVALID_PRICE", utils.CodeOf(err))

	_, err = svc.BulkUpload(ctx, r.ID, nil)
	assert.Equal(t, "NO_ITEMS", utils.CodeOf(err))

	items, err := svc.Menu(ctx, r.ID, restaurant.MenuQuery{})
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestReplaceMenuRetiresReferencedItems(t *testing.T) {
	svc, d := setup(t)
	ctx := context.Background()
	owner := testutil.User(t, d.Bun, "owner")
	r := testutil.Restaurant(t, d.Bun, "Grill", true)
	used := testutil.MenuItem(t, d.Bun, r.ID, "Burger", "10", true)
	unused := testutil.MenuItem(t, d.Bun, r.ID, "Fries", "3", true)
	g := testutil.Group(t, d.Bun, owner, r.ID, time.Now().Add(time.Hour), false)
	testutil.CartItem(t, d.Bun, g.ID, owner.ID, used.ID, 1)

	_, err := svc.ReplaceMenu(ctx, r.ID, []restaurant.MenuItemInput{
		{Name: "Wrap", Price: decimal.NewFromInt(7), Category: "Main"},
	})
	require.NoError(t, err)

	got, err := d.GetMenuItem(ctx, used.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.False(t, got.IsAvailable)

	got, err = d.GetMenuItem(ctx, unused.ID)
	require.NoError(t, err)
	assert.Nil(t, got)

	available, err := svc.Menu(ctx, r.ID, restaurant.MenuQuery{AvailableOnly: true})
	require.NoError(t, err)
	require.Len(t, available, 1)
	assert.Equal(t, "Wrap", available[0].Name)

	err = svc.DeleteMenuItem(ctx, used.ID)
	assert.Equal(t, "MENU_ITEM_IN_USE", utils.CodeOf(err))
}

func TestUpdateMenuItemPatch(t *testing.T) {
	svc, d := setup(t)
	ctx := context.Background()
	r := testutil.Restaurant(t, d.Bun, "Cafe", true)
	item := testutil.MenuItem(t, d.Bun, r.ID, "Latte", "3.00", true)

	price := decimal.RequireFromString("3.456")
	off := false
	updated, err := svc.UpdateMenuItem(ctx, item.ID, restaurant.MenuItemPatch{Price: &price, IsAvailable: &off, Tags: []string{" Hot ", "hot"}})
	require.NoError(t, err)
	assert.Equal(t, "Latte", updated.Name)
	assert.True(t, updated.Price.Equal(decimal.RequireFromString("3.46")))
	assert.Equal(t, []string{"hot"}, updated.Tags)

	stored, err := d.GetMenuItem(ctx, item.ID)
	require.NoError(t, err)
	assert.False(t, stored.IsAvailable)
	assert.Equal(t, []string{"hot"}, stored.Tags)

	neg := decimal.NewFromInt(-2)
	_, err = svc.UpdateMenuItem(ctx, item.ID, restaurant.MenuItemPatch{Price: &neg})
	assert.Equal(t, "INVALID_PRICE", utils.CodeOf(err))

}
