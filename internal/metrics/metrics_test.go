package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCountersExposed(t *testing.T) {
	m := New()
	m.EventsPublished.WithLabelValues("groups.closed", "hub").Inc()
	m.VotesCast.Inc()

	assert.Equal(t, 1.0, testutil.ToFloat64(m.VotesCast))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EventsPublished.WithLabelValues("groups.closed", "hub")))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "lunch_votes_cast_total")
}
