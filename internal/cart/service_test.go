package cart_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"

	"ms-lunch/internal/cart"
	cartdb "ms-lunch/internal/cart/db"
	"ms-lunch/internal/events"
	"ms-lunch/internal/group"
	groupdb "ms-lunch/internal/group/db"
	"ms-lunch/internal/lock"
	"ms-lunch/internal/logger"
	"ms-lunch/internal/models"
	restdb "ms-lunch/internal/restaurant/db"
	"ms-lunch/internal/testutil"
	"ms-lunch/internal/utils"
)

type settled struct{}

func (settled) CanDeleteGroup(context.Context, string) (bool, error) { return true, nil }

type fixture struct {
	svc    *cart.Service
	groups *group.Service
	bun    *bun.DB
}

func setup(t *testing.T) *fixture {
	bunDB := testutil.NewDB(t)
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	rest := &restdb.DB{Bun: bunDB}
	groups := group.NewService(&groupdb.DB{Bun: bunDB}, rest, lock.NewRedis(client, time.Second, 10, logger.Discard()), settled{}, events.Nop{}, logger.Discard())
	svc := cart.NewService(&cartdb.DB{Bun: bunDB}, groups, rest, events.Nop{}, logger.Discard())
	return &fixture{svc: svc, groups: groups, bun: bunDB}
}

func TestAddToCartRules(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	owner := testutil.User(t, f.bun, "owner")
	outsider := testutil.User(t, f.bun, "outsider")
	r := testutil.Restaurant(t, f.bun, "Thai", true)
	other := testutil.Restaurant(t, f.bun, "Other", true)
	curry := testutil.MenuItem(t, f.bun, r.ID, "Green curry", "9.00", true)
	soldOut := testutil.MenuItem(t, f.bun, r.ID, "Mango rice", "5.00", false)
	foreign := testutil.MenuItem(t, f.bun, other.ID, "Pizza", "11.00", true)
	g := testutil.Group(t, f.bun, owner, r.ID, time.Now().Add(time.Hour), false)

	tests := []struct {
		name string
		user string
		in   cart.AddItemInput
		code string
	}{
		{"zero quantity", owner.ID, cart.AddItemInput{MenuItemID: curry.ID, Quantity: 0}, "INVALID_QUANTITY"},
		{"too many", owner.ID, cart.AddItemInput{MenuItemID: curry.ID, Quantity: 100}, "INVALID_QUANTITY"},
		{"not a member", outsider.ID, cart.AddItemInput{MenuItemID: curry.ID, Quantity: 1}, "NOT_GROUP_MEMBER"},
		{"unknown item", owner.ID, cart.AddItemInput{MenuItemID: "nope", Quantity: 1}, "MENU_ITEM_NOT_FOUND"},
		{"other restaurant", owner.ID, cart.AddItemInput{MenuItemID: foreign.ID, Quantity: 1}, "MENU_ITEM_WRONG_RESTAURANT"},
		{"unavailable", owner.ID, cart.AddItemInput{MenuItemID: soldOut.ID, Quantity: 1}, "MENU_ITEM_UNAVAILABLE"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.AddToCart(ctx, g.ID, tt.user, tt.in)
			assert.Equal(t, tt.code, utils.CodeOf(err))
		})
	}

	c, err := f.svc.AddToCart(ctx, g.ID, owner.ID, cart.AddItemInput{MenuItemID: curry.ID, Quantity: 2, Notes: "extra spicy"})
	require.NoError(t, err)
	require.Len(t, c.Items, 1)
	assert.True(t, decimal.RequireFromString("18").Equal(c.Total()))
}

func TestCartChangesBlockedAfterExpiry(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	owner := testutil.User(t, f.bun, "owner")
	intruder := testutil.User(t, f.bun, "intruder")
	r := testutil.Restaurant(t, f.bun, "Deli", true)
	sandwich := testutil.MenuItem(t, f.bun, r.ID, "Sandwich", "6.00", true)
	g := testutil.Group(t, f.bun, owner, r.ID, time.Now().Add(time.Hour), false)
	item := testutil.CartItem(t, f.bun, g.ID, owner.ID, sandwich.ID, 1)

	_, err := f.svc.UpdateQuantity(ctx, item.ID, intruder.ID, 3)
	assert.Equal(t, "NOT_YOUR_ITEM", utils.CodeOf(err))
	_, err = f.svc.UpdateQuantity(ctx, "missing", owner.ID, 3)
	assert.Equal(t, "CART_ITEM_NOT_FOUND", utils.CodeOf(err))

	c, err := f.svc.UpdateQuantity(ctx, item.ID, owner.ID, 3)
	require.NoError(t, err)
	assert.Equal(t, 3, c.Items[0].Quantity)

	f.groups.Now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err = f.svc.UpdateQuantity(ctx, item.ID, owner.ID, 4)
	assert.Equal(t, "GROUP_EXPIRED", utils.CodeOf(err))
	err = f.svc.RemoveItem(ctx, item.ID, owner.ID)
	assert.Equal(t, "GROUP_CLOSED", utils.CodeOf(err))
	_, err = f.svc.AddToCart(ctx, g.ID, owner.ID, cart.AddItemInput{MenuItemID: sandwich.ID, Quantity: 1})
	assert.Equal(t, "GROUP_CLOSED", utils.CodeOf(err))
}

func TestGroupCartSummary(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	owner := testutil.User(t, f.bun, "owner")
	member := testutil.User(t, f.bun, "member")
	outsider := testutil.User(t, f.bun, "outsider")
	r := testutil.Restaurant(t, f.bun, "Shawarma", true)
	wrap := testutil.MenuItem(t, f.bun, r.ID, "Wrap", "5.00", true)
	fries := testutil.MenuItem(t, f.bun, r.ID, "Fries", "2.50", true)
	g := testutil.Group(t, f.bun, owner, r.ID, time.Now().Add(time.Hour), false)
	testutil.Member(t, f.bun, g.ID, member.ID)

	for _, add := range []struct {
		user *models.User
		item *models.MenuItem
		qty  int
	}{{owner, wrap, 2}, {member, wrap, 3}, {member, fries, 1}} {
		_, err := f.svc.AddToCart(ctx, g.ID, add.user.ID, cart.AddItemInput{MenuItemID: add.item.ID, Quantity: add.qty})
		require.NoError(t, err)
	}

	_, err := f.svc.GroupCart(ctx, g.ID, outsider.ID)
	assert.Equal(t, "NOT_GROUP_MEMBER", utils.CodeOf(err))

	sum, err := f.svc.GroupCart(ctx, g.ID, member.ID)
	require.NoError(t, err)
	assert.Len(t, sum.Carts, 2)
	assert.True(t, decimal.RequireFromString("27.50").Equal(sum.GroupTotal), sum.GroupTotal.String())
	require.Len(t, sum.Items, 2)
	assert.Equal(t, "Wrap", sum.Items[0].Name)
	assert.Equal(t, 5, sum.Items[0].Quantity)
	assert.True(t, decimal.RequireFromString("25").Equal(sum.Items[0].Amount))

	totals := map[string]string{}
	for _, u := range sum.UserTotals {
		totals[u.UserName] = u.Total.StringFixed(2)
	}
	assert.Equal(t, map[string]string{"owner": "10.00", "member": "17.50"}, totals)

	_, err = f.svc.ExportGroupCart(ctx, g.ID, member.ID, "text")
	assert.Equal(t, "NOT_GROUP_OWNER", utils.CodeOf(err))

	out, err := f.svc.ExportGroupCart(ctx, g.ID, owner.ID, "csv")
	require.NoError(t, err)
	assert.Contains(t, string(out.Body), "member,Wrap,3,5.00,15.00,")
}
