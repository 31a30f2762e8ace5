package order_api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ms-lunch/internal/auth"
	"ms-lunch/internal/events"
	"ms-lunch/internal/logger"
	"ms-lunch/internal/models"
	"ms-lunch/internal/order"
	orderdb "ms-lunch/internal/order/db"
	restdb "ms-lunch/internal/restaurant/db"
	"ms-lunch/internal/testutil"
	"ms-lunch/internal/utils"
	votingdb "ms-lunch/internal/voting/db"
)

type fixedDay string

func (d fixedDay) Today() string { return string(d) }

func do(router http.Handler, method, path, body string, user *models.User) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("X-Test-User", user.ID)
	req.Header.Set("X-Test-Role", user.Role)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestOrderEndpoints(t *testing.T) {
	bunDB := testutil.NewDB(t)
	ctx := context.Background()
	winner := testutil.Restaurant(t, bunDB, "Curry House", true)
	dal := testutil.MenuItem(t, bunDB, winner.ID, "Dal", "7.00", true)
	_, err := bunDB.NewInsert().Model(&models.VotingPeriod{
		ID: utils.GenerateID(), Date: "2026-05-04", StartTime: "09:00:00", EndTime: "11:30:00",
		WinnerRestaurantID: winner.ID, IsComplete: true,
	}).Exec(ctx)
	require.NoError(t, err)

	svc := order.NewService(&orderdb.DB{Bun: bunDB}, &votingdb.DB{Bun: bunDB}, &restdb.DB{Bun: bunDB}, fixedDay("2026-05-04"), events.Nop{}, logger.Discard())
	router := chi.NewRouter()
	router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			p := &auth.Principal{UserID: req.Header.Get("X-Test-User"), Role: req.Header.Get("X-Test-Role")}
			next.ServeHTTP(w, req.WithContext(auth.WithPrincipal(req.Context(), p)))
		})
	})
	NewHandler(svc, logger.Discard()).RegisterRoutes(router)

	alice := testutil.User(t, bunDB, "alice")
	admin := testutil.Admin(t, bunDB, "boss")

	rec := do(router, http.MethodPost, "/orders", `{"restaurant_id":"`+winner.ID+`","items":[{"menu_item_id":"`+dal.ID+`","quantity":2}]}`, alice)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = do(router, http.MethodGet, "/orders/my-orders", "", alice)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"count":1`)

	rec = do(router, http.MethodGet, "/orders/export/download?format=csv", "", alice)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = do(router, http.MethodGet, "/orders/export/download?format=csv", "", admin)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "lunch-order.csv")
	assert.Contains(t, rec.Body.String(), "alice,Dal,2,7.00,14.00,")

	rec = do(router, http.MethodPost, "/orders/confirm", "", admin)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"confirmed":1`)
}
