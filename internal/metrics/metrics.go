package metrics

import (
	"database/sql"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

const namespace = "reddit_clone"

// Metrics 所有方法对 nil 接收者安全，测试里可以直接传 nil
type Metrics struct {
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	DBConnectionsOpen  prometheus.Gauge
	DBConnectionsInUse prometheus.Gauge

	VotesTotal        *prometheus.CounterVec
	VoteRetriesTotal  prometheus.Counter
	ScoreCacheTotal   *prometheus.CounterVec
	ModerationTotal   *prometheus.CounterVec
	OutboxEventsTotal *prometheus.CounterVec
	ReconciledTotal   *prometheus.CounterVec

	logger *zap.Logger
}

// NewWithRegistry 注册到给定的 registry，测试用 prometheus.NewRegistry()
func NewWithRegistry(registerer prometheus.Registerer, logger *zap.Logger) *Metrics {
	factory := promauto.With(registerer)
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Metrics{
		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status"},
		),
		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"method", "endpoint"},
		),
		DBConnectionsOpen: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "db_connections_open",
				Help:      "Current number of open database connections",
			},
		),
		DBConnectionsInUse: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "db_connections_in_use",
				Help:      "Current number of in-use database connections",
			},
		),
		VotesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "votes_total",
				Help:      "Vote ledger mutations by direction and result",
			},
			[]string{"direction", "result"},
		),
		VoteRetriesTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "vote_retries_total",
				Help:      "Vote transactions retried after losing a unique index race",
			},
		),
		ScoreCacheTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "score_cache_requests_total",
				Help:      "Vote score cache lookups by outcome",
			},
			[]string{"outcome"},
		),
		ModerationTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "moderation_actions_total",
				Help:      "Moderation transitions by action and result",
			},
			[]string{"action", "result"},
		),
		OutboxEventsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "outbox_events_total",
				Help:      "Outbox events relayed by result",
			},
			[]string{"result"},
		),
		ReconciledTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "reconciled_rows_total",
				Help:      "Counter columns repaired by the reconciler",
			},
			[]string{"kind"},
		),
		logger: logger,
	}
}

// safeExecute 指标记录出错不影响业务
func (m *Metrics) safeExecute(op string, fn func()) {
	if m == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("metrics panic", zap.String("op", op), zap.Any("recover", r))
		}
	}()
	fn()
}

func (m *Metrics) RecordHTTPRequest(method, endpoint string, statusCode int, duration time.Duration) {
	m.safeExecute("RecordHTTPRequest", func() {
		m.HTTPRequestsTotal.WithLabelValues(method, endpoint, categorizeStatus(statusCode)).Inc()
		m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
	})
}

func categorizeStatus(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500:
		return "5xx"
	default:
		return "unknown"
	}
}

// ShouldSkipEndpoint 探活和抓取接口不计入
func ShouldSkipEndpoint(path string) bool {
	return path == "/metrics" || path == "/health"
}

func (m *Metrics) UpdateDBStats(stats sql.DBStats) {
	m.safeExecute("UpdateDBStats", func() {
		m.DBConnectionsOpen.Set(float64(stats.OpenConnections))
		m.DBConnectionsInUse.Set(float64(stats.InUse))
	})
}

// RecordVote result: changed / noop / error
func (m *Metrics) RecordVote(direction, result string) {
	m.safeExecute("RecordVote", func() {
		m.VotesTotal.WithLabelValues(direction, result).Inc()
	})
}

func (m *Metrics) RecordVoteRetry() {
	m.safeExecute("RecordVoteRetry", func() {
		m.VoteRetriesTotal.Inc()
	})
}

// RecordScoreCache outcome: hit / miss / rebuild
func (m *Metrics) RecordScoreCache(outcome string) {
	m.safeExecute("RecordScoreCache", func() {
		m.ScoreCacheTotal.WithLabelValues(outcome).Inc()
	})
}

func (m *Metrics) RecordModeration(action, result string) {
	m.safeExecute("RecordModeration", func() {
		m.ModerationTotal.WithLabelValues(action, result).Inc()
	})
}

func (m *Metrics) RecordOutbox(result string) {
	m.safeExecute("RecordOutbox", func() {
		m.OutboxEventsTotal.WithLabelValues(result).Inc()
	})
}

func (m *Metrics) RecordReconciled(kind string, n int) {
	m.safeExecute("RecordReconciled", func() {
		m.ReconciledTotal.WithLabelValues(kind).Add(float64(n))
	})
}
