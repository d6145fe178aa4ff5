package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounters(t *testing.T) {
	m := New()

	m.SessionEvent("refresh", OutcomeOK)
	m.SessionEvent("refresh", OutcomeRejected)
	m.SessionEvent("refresh", OutcomeRejected)
	m.Vote("post", "none->up")
	m.Pruned(3)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.sessionEvents.WithLabelValues("refresh", OutcomeOK)))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.sessionEvents.WithLabelValues("refresh", OutcomeRejected)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.votes.WithLabelValues("post", "none->up")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.prunedTotal))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.SessionEvent("login", OutcomeOK)
	m.Vote("comment", "up->none")
	m.Pruned(1)
}

func TestHandlerServesRegistry(t *testing.T) {
	m := New()
	m.Vote("comment", "none->down")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `hackernews_score_votes_total{target_kind="comment",transition="none->down"} 1`))
}
