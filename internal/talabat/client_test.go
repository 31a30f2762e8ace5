package talabat_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ms-lunch/internal/config"
	"ms-lunch/internal/logger"
	"ms-lunch/internal/talabat"
	"ms-lunch/internal/utils"
)

func newClient(url string) *talabat.Client {
	return talabat.NewClient(config.TalabatConfig{
		APIKey:  "test-key",
		APIURL:  url + "/",
		Enabled: true,
		Timeout: 2 * time.Second,
		Country: "BH",
	}, logger.Discard())
}

func TestClientRestaurantsSendsKeyAndQuery(t *testing.T) {
	var got *http.Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r
		_, _ = w.Write([]byte(`{"restaurants":[{"id":"tb-1","name":"Cafe","cuisine":["Arabic","Grill"],"minimumOrder":3.5,"isOpen":true}]}`))
	}))
	defer srv.Close()

	lat := 26.2235
	restaurants, err := newClient(srv.URL).Restaurants(context.Background(), talabat.Query{City: "Manama", Latitude: &lat})
	require.NoError(t, err)
	require.Len(t, restaurants, 1)
	assert.Equal(t, "tb-1", restaurants[0].ID)
	assert.Equal(t, []string{"Arabic", "Grill"}, restaurants[0].Cuisine)
	assert.True(t, restaurants[0].MinimumOrder.Equal(decimal.RequireFromString("3.5")))

	require.NotNil(t, got)
	assert.Equal(t, "/restaurants", got.URL.Path)
	assert.Equal(t, "Bearer test-key", got.Header.Get("Authorization"))
	assert.Equal(t, "BH", got.URL.Query().Get("country"))
	assert.Equal(t, "Manama", got.URL.Query().Get("city"))
	assert.Equal(t, "26.2235", got.URL.Query().Get("latitude"))
	assert.Empty(t, got.URL.Query().Get("longitude"))
}

func TestClientEmptyMenuIsNotNil(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/restaurants/tb-9/menu", r.URL.Path)
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	menu, err := newClient(srv.URL).Menu(context.Background(), "tb-9")
	require.NoError(t, err)
	assert.NotNil(t, menu)
	assert.Empty(t, menu)
}

func TestClientCancelDefaultsReason(t *testing.T) {
	var body map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/orders/o-1/cancel", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		_, _ = w.Write([]byte(`{"success":true,"message":"cancelled"}`))
	}))
	defer srv.Close()

	res, err := newClient(srv.URL).CancelOrder(context.Background(), "o-1", "")
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "Customer request", body["reason"])
}

func TestClientMapsUpstreamErrors(t *testing.T) {
	cases := []struct {
		status int
		want   int
	}{
		{http.StatusNotFound, http.StatusNotFound},
		{http.StatusBadRequest, http.StatusBadRequest},
		{http.StatusUnauthorized, http.StatusServiceUnavailable},
		{http.StatusBadGateway, http.StatusServiceUnavailable},
	}
	for _, tc := range cases {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
			_, _ = w.Write([]byte(`{"message":"upstream says no"}`))
		}))
		_, err := newClient(srv.URL).Restaurant(context.Background(), "tb-1")
		srv.Close()

		var appErr *utils.AppError
		require.ErrorAs(t, err, &appErr, "status %d", tc.status)
		assert.Equal(t, "TALABAT_API_ERROR", appErr.Code)
		assert.Equal(t, "upstream says no", appErr.Message)
		assert.Equal(t, tc.want, appErr.Status(), "status %d", tc.status)
	}
}

func TestClientConnectionError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := newClient(url).OrderStatus(context.Background(), "o-1")
	assert.Equal(t, "TALABAT_CONNECTION_ERROR", utils.CodeOf(err))
	var appErr *utils.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, http.StatusServiceUnavailable, appErr.Status())
}

func TestConfigured(t *testing.T) {
	assert.True(t, newClient("http://talabat.test").Configured())
	assert.False(t, talabat.NewClient(config.TalabatConfig{APIURL: "http://talabat.test"}, logger.Discard()).Configured())
}
