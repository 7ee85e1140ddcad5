// Package telemetry provides logging setup and Prometheus metrics for ChemSphere.
//
// # Prometheus Metrics Endpoint
//
// All metrics are registered against the default Prometheus registry and are
// served by the side-channel HTTP server started by cmd/server:
//
//	GET http://<host>:<CHEM_TELEMETRY_METRICS_PROMETHEUS_PORT>/metrics
//
// Default port: 9090. The endpoint is not served by the Gin router.
//
// # Metric Groups
//
//   - HTTP request counters and latency histograms (labelled by route template)
//   - Usage-log workflow counters (recorded, deleted, stock rejections, opened containers)
//   - Inventory snapshot cache hit/miss counters
//   - CSV import row counters
//   - Expiration digest email counters
//   - Database connection pool gauge
package telemetry

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics, labelled by method, route template and status code.
//
// The path label holds the Gin route template (e.g. /api/v1/chemicals/:id),
// never the raw URL, to keep label cardinality bounded.
//
// Example PromQL queries:
//   - Request rate:  rate(http_requests_total[5m])
//   - Error rate:    sum(rate(http_requests_total{status=~"5.."}[5m])) / sum(rate(http_requests_total[5m]))
//   - p99 latency:   histogram_quantile(0.99, sum by (path, le) (rate(http_request_duration_seconds_bucket[5m])))
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests processed, by method, route template, and status code.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of HTTP request latencies, by method and route template.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"method", "path"},
	)
)

// Usage-log workflow metrics.
//
// ChemicalStockRejectionsTotal counts usage submissions refused because a
// chemical did not hold enough stock, either at validation time ("precheck")
// or because a concurrent writer won the conditional decrement ("conflict").
// A non-zero conflict rate means two sessions raced on the same bottle.
//
// Example PromQL queries:
//   - Sessions logged per hour:  increase(usage_logs_recorded_total[1h])
//   - Lost races:                increase(chemical_stock_rejections_total{stage="conflict"}[1d])
var (
	UsageLogsRecordedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "usage_logs_recorded_total",
			Help: "Total number of usage logs recorded.",
		},
	)

	UsageLogsDeletedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "usage_logs_deleted_total",
			Help: "Total number of usage logs deleted with their stock restored.",
		},
	)

	ChemicalStockRejectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chemical_stock_rejections_total",
			Help: "Total number of usage submissions rejected for insufficient stock, by stage.",
		},
		[]string{"stage"},
	)

	OpenedContainersCreatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "opened_containers_created_total",
			Help: "Total number of opened-container chemical records created from usage logs.",
		},
	)
)

// CacheRequestsTotal is a CounterVec with labels {section, result} where result
// is "hit" or "miss".
//
// Example PromQL queries:
//   - Hit ratio:  sum(rate(cache_requests_total{result="hit"}[5m])) / sum(rate(cache_requests_total[5m]))
var CacheRequestsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "cache_requests_total",
		Help: "Total number of inventory cache reads, by section and result.",
	},
	[]string{"section", "result"},
)

// CSVRowsImportedTotal counts rows committed by bulk CSV imports, by entity.
var CSVRowsImportedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "csv_rows_imported_total",
		Help: "Total number of rows committed by CSV imports, by entity.",
	},
	[]string{"entity"},
)

// ExpirationNotificationsSentTotal is incremented once per digest email
// delivered by the check-expiration job. A flat counter while chemicals are
// approaching expiry usually means SMTP delivery is failing.
var ExpirationNotificationsSentTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Name: "expiration_notifications_sent_total",
		Help: "Total number of chemical expiration digest emails successfully sent.",
	},
)

// DBOpenConnections tracks the number of open connections held by the sql.DB
// pool. It is sampled every 30 seconds by StartDBStatsCollector.
var DBOpenConnections = promauto.NewGauge(
	prometheus.GaugeOpts{
		Name: "db_open_connections",
		Help: "Current number of open database connections in the pool.",
	},
)

// StartDBStatsCollector samples sql.DB pool statistics every 30 seconds until
// ctx is cancelled or the database becomes unreachable.
func StartDBStatsCollector(ctx context.Context, db *sql.DB) {
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := db.PingContext(ctx); err != nil {
					slog.Warn("db stats collector: database unreachable, stopping collector", "error", err)
					return
				}
				DBOpenConnections.Set(float64(db.Stats().OpenConnections))
			}
		}
	}()
}
