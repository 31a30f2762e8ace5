package talabat_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ms-lunch/internal/config"
	"ms-lunch/internal/export"
	"ms-lunch/internal/logger"
	"ms-lunch/internal/models"
	"ms-lunch/internal/order"
	"ms-lunch/internal/restaurant"
	restdb "ms-lunch/internal/restaurant/db"
	"ms-lunch/internal/talabat"
	"ms-lunch/internal/testutil"
	"ms-lunch/internal/utils"
)

// upstream is an in-memory Talabat API.
type upstream struct {
	mu     sync.Mutex
	name   string
	menu   string
	placed *talabat.OrderRequest
}

func (u *upstream) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	u.mu.Lock()
	defer u.mu.Unlock()
	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/restaurants/tb-1":
		_, _ = w.Write([]byte(`{"id":"tb-1","name":"` + u.name + `","cuisine":["Indian","Curry"],"logo":"https://img.test/logo.png"}`))
	case r.Method == http.MethodGet && r.URL.Path == "/restaurants/tb-1/menu":
		_, _ = w.Write([]byte(u.menu))
	case r.Method == http.MethodPost && r.URL.Path == "/orders":
		var req talabat.OrderRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		u.placed = &req
		_, _ = w.Write([]byte(`{"orderId":"TB-100","status":"accepted","estimatedDeliveryTime":"12:45","totalAmount":14.5,"trackingUrl":"https://track.test/TB-100"}`))
	default:
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"message":"not found"}`))
	}
}

type stubOrders struct {
	g   *order.GroupOrder
	err error
}

func (s *stubOrders) GroupOrder(ctx context.Context, date string) (*order.GroupOrder, error) {
	return s.g, s.err
}

type fixture struct {
	svc         *talabat.Service
	restaurants *restaurant.Service
	db          *restdb.DB
	api         *upstream
	orders      *stubOrders
}

func setup(t *testing.T) *fixture {
	api := &upstream{
		name: "Curry House",
		menu: `{"items":[
			{"id":"m-1","name":"Butter Chicken","price":3.5,"category":"Mains","isAvailable":true},
			{"id":"m-2","name":"Naan","price":0.5,"category":"","isAvailable":false}
		]}`,
	}
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	d := &restdb.DB{Bun: testutil.NewDB(t)}
	restaurants := restaurant.NewService(d, logger.Discard())
	orders := &stubOrders{}
	cfg := &config.Config{
		Talabat:  config.TalabatConfig{APIKey: "k", APIURL: srv.URL, Enabled: true, Timeout: 2 * time.Second, Country: "BH"},
		Delivery: config.DeliveryConfig{Street: "Road 1", Building: "12", City: "Manama", Area: "Seef", Phone: "+97300000000"},
	}
	svc := talabat.NewService(talabat.NewClient(cfg.Talabat, logger.Discard()), restaurants, orders, cfg, logger.Discard())
	return &fixture{svc: svc, restaurants: restaurants, db: d, api: api, orders: orders}
}

func TestSyncRestaurantCreatesThenReplaces(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	res, err := f.svc.SyncRestaurant(ctx, "tb-1")
	require.NoError(t, err)
	assert.True(t, res.Created)
	assert.Equal(t, "Curry House", res.Restaurant.Name)
	assert.Equal(t, "Indian, Curry", res.Restaurant.Cuisine)
	assert.Equal(t, "tb-1", res.Restaurant.TalabatID)
	require.Len(t, res.MenuItems, 2)

	menu, err := f.restaurants.Menu(ctx, res.Restaurant.ID, restaurant.MenuQuery{})
	require.NoError(t, err)
	require.Len(t, menu, 2)
	byName := map[string]models.MenuItem{}
	for _, it := range menu {
		byName[it.Name] = it
	}
	assert.Equal(t, "m-1", byName["Butter Chicken"].TalabatID)
	assert.True(t, byName["Butter Chicken"].Price.Equal(decimal.RequireFromString("3.5")))
	assert.Equal(t, "Other", byName["Naan"].Category)
	assert.False(t, byName["Naan"].IsAvailable)

	f.api.mu.Lock()
	f.api.name = "Curry House Seef"
	f.api.menu = `{"items":[{"id":"m-3","name":"Biryani","price":4,"category":"Rice","isAvailable":true}]}`
	f.api.mu.Unlock()

	again, err := f.svc.SyncRestaurant(ctx, "tb-1")
	require.NoError(t, err)
	assert.False(t, again.Created)
	assert.Equal(t, res.Restaurant.ID, again.Restaurant.ID)
	assert.Equal(t, "Curry House Seef", again.Restaurant.Name)

	menu, err = f.restaurants.Menu(ctx, res.Restaurant.ID, restaurant.MenuQuery{})
	require.NoError(t, err)
	require.Len(t, menu, 1)
	assert.Equal(t, "m-3", menu[0].TalabatID)

	all, err := f.restaurants.ListRestaurants(ctx, false)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestSyncRestaurantRejections(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	_, err := f.svc.SyncRestaurant(ctx, " ")
	assert.Equal(t, "MISSING_FIELDS", utils.CodeOf(err))

	_, err = f.svc.SyncRestaurant(ctx, "tb-404")
	assert.Equal(t, "TALABAT_API_ERROR", utils.CodeOf(err))

	f.api.menu = `{"items":[]}`
	_, err = f.svc.SyncRestaurant(ctx, "tb-1")
	assert.Equal(t, "EMPTY_MENU", utils.CodeOf(err))

	f.svc.Enabled = false
	_, err = f.svc.SyncRestaurant(ctx, "tb-1")
	assert.Equal(t, "TALABAT_NOT_CONFIGURED", utils.CodeOf(err))
	assert.Equal(t, "inactive", f.svc.Status().Status)
}

func groupOrder(rest *models.Restaurant, orders ...models.Order) *order.GroupOrder {
	var lines []export.ItemLine
	for _, o := range orders {
		for _, it := range o.Items {
			lines = append(lines, export.ItemLine{MenuItemID: it.MenuItemID, Name: it.MenuItem.Name, Quantity: it.Quantity, Subtotal: it.Subtotal})
		}
	}
	return &order.GroupOrder{Date: "2026-05-04", Restaurant: rest, Orders: orders, TotalOrders: len(orders), ItemSummary: export.Aggregate(lines)}
}

func line(item *models.MenuItem, qty int, notes string) models.OrderItem {
	return models.OrderItem{
		MenuItemID: item.ID,
		MenuItem:   item,
		Quantity:   qty,
		Notes:      notes,
		Subtotal:   item.Price.Mul(decimal.NewFromInt(int64(qty))),
	}
}

func TestPlaceGroupOrderAggregatesByTalabatItem(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	rest := &models.Restaurant{ID: "r1", Name: "Curry House", TalabatID: "tb-1"}
	curry := &models.MenuItem{ID: "a1", Name: "Butter Chicken", Price: decimal.RequireFromString("3.5"), TalabatID: "m-1"}
	retired := &models.MenuItem{ID: "a0", Name: "Butter Chicken", Price: decimal.RequireFromString("3.0"), TalabatID: "m-1"}
	naan := &models.MenuItem{ID: "b1", Name: "Naan", Price: decimal.RequireFromString("0.5"), TalabatID: "m-2"}

	f.orders.g = groupOrder(rest,
		models.Order{ID: "o1", User: &models.User{Name: "Alice"}, Items: []models.OrderItem{line(curry, 2, "no onions"), line(naan, 1, "")}},
		models.Order{ID: "o2", User: &models.User{Name: "Bob"}, Items: []models.OrderItem{line(curry, 3, " extra sauce "), line(retired, 1, "")}},
	)

	placed, err := f.svc.PlaceGroupOrder(ctx, talabat.PlaceGroupOrderInput{PaymentMethod: "CARD"})
	require.NoError(t, err)
	assert.Equal(t, "TB-100", placed.Order.OrderID)
	assert.Equal(t, "2026-05-04", placed.Date)

	sent := f.api.placed
	require.NotNil(t, sent)
	assert.Equal(t, "tb-1", sent.RestaurantID)
	assert.Equal(t, "card", sent.PaymentMethod)
	assert.Equal(t, "Manama", sent.DeliveryAddress.City)
	assert.Equal(t, "+97300000000", sent.ContactPhone)
	require.Len(t, sent.Items, 2)
	assert.Equal(t, talabat.OrderLine{ItemID: "m-1", Quantity: 6, SpecialInstructions: "Alice: no onions; Bob: extra sauce"}, sent.Items[0])
	assert.Equal(t, talabat.OrderLine{ItemID: "m-2", Quantity: 1}, sent.Items[1])
}

func TestPlaceGroupOrderRejections(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	linked := &models.MenuItem{ID: "a1", Name: "Curry", Price: decimal.NewFromInt(3), TalabatID: "m-1"}
	local := &models.MenuItem{ID: "x1", Name: "House Salad", Price: decimal.NewFromInt(2)}

	_, err := f.svc.PlaceGroupOrder(ctx, talabat.PlaceGroupOrderInput{PaymentMethod: "crypto"})
	assert.Equal(t, "INVALID_PAYMENT_METHOD", utils.CodeOf(err))

	f.orders.err = utils.NotFound("NO_WINNER", "No winner")
	_, err = f.svc.PlaceGroupOrder(ctx, talabat.PlaceGroupOrderInput{})
	assert.Equal(t, "NO_WINNER", utils.CodeOf(err))
	f.orders.err = nil

	f.orders.g = groupOrder(&models.Restaurant{ID: "r1", TalabatID: "tb-1"})
	_, err = f.svc.PlaceGroupOrder(ctx, talabat.PlaceGroupOrderInput{})
	assert.Equal(t, "NO_ORDERS", utils.CodeOf(err))

	f.orders.g = groupOrder(&models.Restaurant{ID: "r1"}, models.Order{ID: "o1", Items: []models.OrderItem{line(linked, 1, "")}})
	_, err = f.svc.PlaceGroupOrder(ctx, talabat.PlaceGroupOrderInput{})
	assert.Equal(t, "MISSING_TALABAT_ID", utils.CodeOf(err))

	f.orders.g = groupOrder(&models.Restaurant{ID: "r1"}, models.Order{ID: "o1", Items: []models.OrderItem{line(linked, 1, ""), line(local, 1, "")}})
	_, err = f.svc.PlaceGroupOrder(ctx, talabat.PlaceGroupOrderInput{TalabatRestaurantID: "tb-1"})
	assert.Equal(t, "ITEM_NOT_SYNCED", utils.CodeOf(err))
	assert.Nil(t, f.api.placed)
}
