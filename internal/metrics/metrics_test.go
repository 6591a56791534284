package metrics

import (
	"database/sql"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordHTTPRequest(t *testing.T) {
	m := NewWithRegistry(prometheus.NewRegistry(), nil)

	m.RecordHTTPRequest("POST", "/api/thing/:id/upvote", 200, 15*time.Millisecond)
	m.RecordHTTPRequest("POST", "/api/thing/:id/upvote", 404, time.Millisecond)
	m.RecordHTTPRequest("POST", "/api/thing/:id/upvote", 201, time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("POST", "/api/thing/:id/upvote", "2xx")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("POST", "/api/thing/:id/upvote", "4xx")))
}

func TestCategorizeStatus(t *testing.T) {
	cases := map[int]string{200: "2xx", 302: "3xx", 429: "4xx", 503: "5xx", 100: "unknown"}
	for code, want := range cases {
		assert.Equal(t, want, categorizeStatus(code))
	}
}

func TestDomainCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewWithRegistry(reg, nil)

	m.RecordVote("up", "changed")
	m.RecordVote("up", "noop")
	m.RecordVoteRetry()
	m.RecordModeration("spam", "ok")
	m.RecordScoreCache("hit")
	m.RecordOutbox("sent")
	m.RecordReconciled("vote_score", 3)
	m.UpdateDBStats(sql.DBStats{OpenConnections: 4, InUse: 1})

	assert.Equal(t, 1.0, testutil.ToFloat64(m.VotesTotal.WithLabelValues("up", "changed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.VoteRetriesTotal))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.ReconciledTotal.WithLabelValues("vote_score")))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.DBConnectionsOpen))

	families, err := reg.Gather()
	require.NoError(t, err)
	for _, f := range families {
		assert.NotEmpty(t, f.GetHelp(), f.GetName())
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordVote("up", "changed")
		m.RecordHTTPRequest("GET", "/", 200, time.Second)
		m.RecordReconciled("vote_score", 1)
	})
}

func TestShouldSkipEndpoint(t *testing.T) {
	assert.True(t, ShouldSkipEndpoint("/metrics"))
	assert.True(t, ShouldSkipEndpoint("/health"))
	assert.False(t, ShouldSkipEndpoint("/api/search/all"))
}
