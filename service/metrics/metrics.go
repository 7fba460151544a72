package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus collectors for the application.
// Following the explicit dependency injection pattern, this struct
// is passed to all components that need to record metrics.
type Metrics struct {
	// Chain provider metrics
	providerCallsTotal     *prometheus.CounterVec
	providerCallDuration   *prometheus.HistogramVec
	providerRateLimitWaits *prometheus.CounterVec
	detailFetchesDropped   *prometheus.CounterVec

	// Sync run metrics
	syncRunsTotal        *prometheus.CounterVec
	syncRunDuration      *prometheus.HistogramVec
	syncRunsInFlight     prometheus.Gauge
	recordsImportedTotal *prometheus.CounterVec
	recordsFailedTotal   *prometheus.CounterVec
	recordsDuplicated    *prometheus.CounterVec
	ledgerWritesTotal    *prometheus.CounterVec

	// Scheduled resync metrics
	resyncPassesTotal  *prometheus.CounterVec
	resyncWalletsTotal *prometheus.CounterVec

	// Approval metrics
	approvalsCheckedTotal *prometheus.CounterVec
	revocationsTotal      *prometheus.CounterVec

	// Database Metrics
	dbQueryDuration   *prometheus.HistogramVec
	dbOperationsTotal *prometheus.CounterVec

	// HTTP Metrics
	httpRequestDuration  *prometheus.HistogramVec
	httpRequestsTotal    *prometheus.CounterVec
	sseActiveConnections prometheus.Gauge
	sseEventsSent        *prometheus.CounterVec

	// NATS Metrics
	natsMessagesPublished *prometheus.CounterVec
	natsPublishDuration   *prometheus.HistogramVec
}

// NewMetrics creates a new Metrics instance and registers all collectors.
// If registry is nil, prometheus.DefaultRegisterer is used.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	factory := promauto.With(registry)

	return &Metrics{
		providerCallsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chain_provider_calls_total",
				Help: "Total number of chain provider calls by chain, method and status",
			},
			[]string{"chain", "method", "status"},
		),
		providerCallDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "chain_provider_call_duration_seconds",
				Help:    "Duration of chain provider calls in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
			},
			[]string{"chain", "method"},
		),
		providerRateLimitWaits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chain_provider_rate_limit_waits_total",
				Help: "Number of provider calls that waited on the local rate limiter",
			},
			[]string{"chain"},
		),
		detailFetchesDropped: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chain_detail_fetches_dropped_total",
				Help: "Per-signature detail fetches that failed and were dropped",
			},
			[]string{"chain"},
		),

		syncRunsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sync_runs_total",
				Help: "Total number of sync runs by chain and terminal status",
			},
			[]string{"chain", "status"},
		),
		syncRunDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sync_run_duration_seconds",
				Help:    "Duration of sync runs in seconds",
				Buckets: []float64{0.5, 1, 5, 10, 30, 60, 120, 300},
			},
			[]string{"chain", "status"},
		),
		syncRunsInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "sync_runs_in_flight",
				Help: "Number of sync runs currently executing",
			},
		),
		recordsImportedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sync_records_imported_total",
				Help: "Transfer records processed by sync runs",
			},
			[]string{"chain", "direction"},
		),
		recordsFailedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sync_records_failed_total",
				Help: "Transfer records skipped because processing failed",
			},
			[]string{"chain", "stage"},
		),
		recordsDuplicated: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sync_records_duplicated_total",
				Help: "Transfer records collapsed by (hash, chain) deduplication before import",
			},
			[]string{"chain"},
		),
		ledgerWritesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledger_transfer_writes_total",
				Help: "Ledger transfer writes by outcome (inserted, existing)",
			},
			[]string{"chain", "outcome"},
		),

		resyncPassesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "resync_passes_total",
				Help: "Scheduled resync passes by status",
			},
			[]string{"status"},
		),
		resyncWalletsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "resync_wallets_total",
				Help: "Wallets visited by scheduled resync passes by chain and outcome",
			},
			[]string{"chain", "outcome"},
		),

		approvalsCheckedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "approvals_checked_total",
				Help: "Token approvals snapshotted by chain, risk level and unlimited flag",
			},
			[]string{"chain", "risk", "unlimited"},
		),
		revocationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "approval_revocations_total",
				Help: "Approval revocation attempts by chain and status",
			},
			[]string{"chain", "status"},
		),

		dbQueryDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "db_query_duration_seconds",
				Help:    "Duration of database queries in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0},
			},
			[]string{"operation", "table"},
		),
		dbOperationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "db_operations_total",
				Help: "Total number of database operations",
			},
			[]string{"operation", "status"},
		),

		httpRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5},
			},
			[]string{"handler", "method", "status"},
		),
		httpRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"handler", "method", "status"},
		),
		sseActiveConnections: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "sse_active_connections",
				Help: "Number of active SSE connections",
			},
		),
		sseEventsSent: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sse_events_sent_total",
				Help: "Total number of SSE events sent",
			},
			[]string{"event_type"},
		),

		natsMessagesPublished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nats_messages_published_total",
				Help: "Total number of NATS messages published",
			},
			[]string{"kind", "status"},
		),
		natsPublishDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "nats_publish_duration_seconds",
				Help:    "Duration of NATS publish operations in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
			},
			[]string{"kind"},
		),
	}
}

// Provider metric helpers

// RecordProviderCall records a chain provider call with duration.
func (m *Metrics) RecordProviderCall(chain, method, status string, duration float64) {
	m.providerCallsTotal.WithLabelValues(chain, method, status).Inc()
	m.providerCallDuration.WithLabelValues(chain, method).Observe(duration)
}

// RecordRateLimitWait records a call that had to wait for the local limiter.
func (m *Metrics) RecordRateLimitWait(chain string) {
	m.providerRateLimitWaits.WithLabelValues(chain).Inc()
}

// RecordDetailFetchDropped records a per-signature fetch that was dropped.
func (m *Metrics) RecordDetailFetchDropped(chain string) {
	m.detailFetchesDropped.WithLabelValues(chain).Inc()
}

// Sync metric helpers

// RecordSyncRun records a finished run.
func (m *Metrics) RecordSyncRun(chain, status string, duration float64) {
	m.syncRunsTotal.WithLabelValues(chain, status).Inc()
	m.syncRunDuration.WithLabelValues(chain, status).Observe(duration)
}

// SyncRunStarted increments the in-flight gauge; call the returned func when the run ends.
func (m *Metrics) SyncRunStarted() func() {
	m.syncRunsInFlight.Inc()
	return m.syncRunsInFlight.Dec
}

// RecordRecordImported records one processed transfer record.
func (m *Metrics) RecordRecordImported(chain, direction string) {
	m.recordsImportedTotal.WithLabelValues(chain, direction).Inc()
}

// RecordRecordFailed records one skipped transfer record.
func (m *Metrics) RecordRecordFailed(chain, stage string) {
	m.recordsFailedTotal.WithLabelValues(chain, stage).Inc()
}

// RecordDuplicates records records collapsed by deduplication.
func (m *Metrics) RecordDuplicates(chain string, count int) {
	m.recordsDuplicated.WithLabelValues(chain).Add(float64(count))
}

// RecordLedgerWrite records a ledger transfer write outcome.
func (m *Metrics) RecordLedgerWrite(chain string, inserted bool) {
	outcome := "existing"
	if inserted {
		outcome = "inserted"
	}
	m.ledgerWritesTotal.WithLabelValues(chain, outcome).Inc()
}

// RecordResyncPass records one scheduled resync pass.
func (m *Metrics) RecordResyncPass(status string) {
	m.resyncPassesTotal.WithLabelValues(status).Inc()
}

// RecordResyncWallet records what a resync pass did with one wallet
// (started, skipped, failed).
func (m *Metrics) RecordResyncWallet(chain, outcome string) {
	m.resyncWalletsTotal.WithLabelValues(chain, outcome).Inc()
}

// Approval metric helpers

// RecordApprovalChecked records an approval snapshot.
func (m *Metrics) RecordApprovalChecked(chain, risk string, unlimited bool) {
	u := "false"
	if unlimited {
		u = "true"
	}
	m.approvalsCheckedTotal.WithLabelValues(chain, risk, u).Inc()
}

// RecordRevocation records a revoke attempt.
func (m *Metrics) RecordRevocation(chain, status string) {
	m.revocationsTotal.WithLabelValues(chain, status).Inc()
}

// Database metric helpers

// RecordDBQuery records a database query with duration.
func (m *Metrics) RecordDBQuery(operation, table string, duration float64, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.dbQueryDuration.WithLabelValues(operation, table).Observe(duration)
	m.dbOperationsTotal.WithLabelValues(operation, status).Inc()
}

// HTTP metric helpers

// RecordHTTPRequest records an HTTP request with duration.
func (m *Metrics) RecordHTTPRequest(handler, method string, statusCode int, duration float64) {
	status := statusCodeToString(statusCode)
	m.httpRequestDuration.WithLabelValues(handler, method, status).Observe(duration)
	m.httpRequestsTotal.WithLabelValues(handler, method, status).Inc()
}

// RecordSSEConnectionChange records a change in SSE connection count.
func (m *Metrics) RecordSSEConnectionChange(delta float64) {
	m.sseActiveConnections.Add(delta)
}

// RecordSSEEventSent records an SSE event being sent.
func (m *Metrics) RecordSSEEventSent(eventType string) {
	m.sseEventsSent.WithLabelValues(eventType).Inc()
}

// NATS metric helpers

// RecordNATSPublish records a NATS publish operation.
func (m *Metrics) RecordNATSPublish(kind, status string, duration float64) {
	m.natsMessagesPublished.WithLabelValues(kind, status).Inc()
	m.natsPublishDuration.WithLabelValues(kind).Observe(duration)
}

func statusCodeToString(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500 && code < 600:
		return "5xx"
	default:
		return "unknown"
	}
}
