package voting_api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ms-lunch/internal/auth"
	"ms-lunch/internal/config"
	"ms-lunch/internal/events"
	"ms-lunch/internal/logger"
	"ms-lunch/internal/models"
	restdb "ms-lunch/internal/restaurant/db"
	"ms-lunch/internal/testutil"
	"ms-lunch/internal/voting"
	"ms-lunch/internal/voting/db"
)

func newRouter(t *testing.T) (http.Handler, *restdb.DB) {
	bunDB := testutil.NewDB(t)
	window := config.VotingConfig{StartTime: "00:00:00", EndTime: "23:59:59", Timezone: "UTC"}
	svc := voting.NewService(&db.DB{Bun: bunDB}, &restdb.DB{Bun: bunDB}, window, events.Nop{}, nil, logger.Discard())
	svc.Now = func() time.Time { return time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC) }
	h := &Handler{Service: svc, Logger: logger.Discard()}

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			p := &auth.Principal{UserID: req.Header.Get("X-Test-User"), Role: req.Header.Get("X-Test-Role")}
			next.ServeHTTP(w, req.WithContext(auth.WithPrincipal(req.Context(), p)))
		})
	})
	h.RegisterRoutes(r)
	return r, &restdb.DB{Bun: bunDB}
}

func do(router http.Handler, method, path, body string, user *models.User) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("X-Test-User", user.ID)
	req.Header.Set("X-Test-Role", user.Role)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestVoteThenResults(t *testing.T) {
	router, d := newRouter(t)
	u := testutil.User(t, d.Bun, "alice")
	r := testutil.Restaurant(t, d.Bun, "Tacos", true)

	rec := do(router, http.MethodPost, "/voting/vote", `{"restaurant_id":"`+r.ID+`"}`, u)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = do(router, http.MethodPost, "/voting/vote", `{"restaurant_id":"`+r.ID+`"}`, u)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "ALREADY_VOTED")

	rec = do(router, http.MethodGet, "/voting/has-voted", "", u)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"has_voted":true`)

	rec = do(router, http.MethodGet, "/voting/results", "", u)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Data voting.Results `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Data.TotalVotes)
	require.Len(t, resp.Data.Restaurants, 1)
	assert.Equal(t, r.ID, resp.Data.Restaurants[0].Restaurant.ID)
}

func TestCloseRequiresAdmin(t *testing.T) {
	router, d := newRouter(t)
	u := testutil.User(t, d.Bun, "bob")
	admin := testutil.Admin(t, d.Bun, "boss")
	r := testutil.Restaurant(t, d.Bun, "Curry", true)

	rec := do(router, http.MethodPost, "/voting/close", "", u)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = do(router, http.MethodPost, "/voting/close", "", admin)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "VOTING_PERIOD_NOT_FOUND")

	require.Equal(t, http.StatusCreated, do(router, http.MethodPost, "/voting/vote", `{"restaurant_id":"`+r.ID+`"}`, u).Code)

	rec = do(router, http.MethodPost, "/voting/close", `{"date":"2026-05-04"}`, admin)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), r.ID)
}
