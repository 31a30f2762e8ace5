package cart_api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ms-lunch/internal/auth"
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
)

type settled struct{}

func (settled) CanDeleteGroup(context.Context, string) (bool, error) { return true, nil }

func do(router http.Handler, method, path, body, userID string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if userID != "" {
		req.Header.Set("X-Test-User", userID)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestCartEndpoints(t *testing.T) {
	bunDB := testutil.NewDB(t)
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	rest := &restdb.DB{Bun: bunDB}
	groups := group.NewService(&groupdb.DB{Bun: bunDB}, rest, lock.NewRedis(client, time.Second, 10, logger.Discard()), settled{}, events.Nop{}, logger.Discard())
	h := &Handler{Service: cart.NewService(&cartdb.DB{Bun: bunDB}, groups, rest, events.Nop{}, logger.Discard()), Logger: logger.Discard()}

	router := chi.NewRouter()
	router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if id := req.Header.Get("X-Test-User"); id != "" {
				req = req.WithContext(auth.WithPrincipal(req.Context(), &auth.Principal{UserID: id, Role: models.RoleEmployee}))
			}
			next.ServeHTTP(w, req)
		})
	})
	h.RegisterRoutes(router)

	owner := testutil.User(t, bunDB, "owner")
	r := testutil.Restaurant(t, bunDB, "Ramen", true)
	ramen := testutil.MenuItem(t, bunDB, r.ID, "Tonkotsu", "12.00", true)
	g := testutil.Group(t, bunDB, owner, r.ID, time.Now().Add(time.Hour), false)

	body := `{"menu_item_id":"` + ramen.ID + `","quantity":2,"notes":"no egg"}`
	rec := do(router, http.MethodPost, "/groups/"+g.ID+"/cart", body, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(router, http.MethodPost, "/groups/"+g.ID+"/cart", body, owner.ID)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = do(router, http.MethodGet, "/groups/"+g.ID+"/cart", "", owner.ID)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"group_total":"24"`)

	rec = do(router, http.MethodPost, "/groups/"+g.ID+"/cart", `{"menu_item_id":"`+ramen.ID+`","quantity":0}`, owner.ID)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "INVALID_QUANTITY")

	rec = do(router, http.MethodGet, "/groups/"+g.ID+"/cart/export?format=csv", "", owner.ID)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), ".csv")
	assert.Contains(t, rec.Body.String(), "owner,Tonkotsu,2,12.00,24.00,no egg")

	rec = do(router, http.MethodGet, "/groups/"+g.ID+"/cart/export?format=pdf", "", owner.ID)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
