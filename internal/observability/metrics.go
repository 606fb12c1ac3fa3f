package observability

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type moduleMetrics struct {
	executionTotal    *prometheus.CounterVec
	executionDuration *prometheus.HistogramVec
	timeoutsTotal     *prometheus.CounterVec

	activeSessions  prometheus.Gauge
	sessionRespawns *prometheus.CounterVec
	sessionResets   *prometheus.CounterVec

	catalogTools   prometheus.Gauge
	registryOps    *prometheus.CounterVec
	catalogReloads prometheus.Counter
}

var (
	metricsOnce sync.Once
	metricsInst *moduleMetrics
)

func getMetrics() *moduleMetrics {
	metricsOnce.Do(func() {
		m := &moduleMetrics{
			executionTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "tool_execution_total",
					Help: "Total tool executions by tool, executor kind and status.",
				},
				[]string{"tool", "kind", "status"},
			),
			executionDuration: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "tool_execution_duration_seconds",
					Help:    "Tool execution duration in seconds by tool and executor kind.",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"tool", "kind"},
			),
			timeoutsTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "tool_execution_timeouts_total",
					Help: "Total tool executions that exceeded their timeout, by tool.",
				},
				[]string{"tool"},
			),
			activeSessions: prometheus.NewGauge(
				prometheus.GaugeOpts{
					Name: "active_process_sessions",
					Help: "Current live process session count.",
				},
			),
			sessionRespawns: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "session_respawn_total",
					Help: "Total transparent session respawns by tool.",
				},
				[]string{"tool"},
			),
			sessionResets: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "session_reset_total",
					Help: "Total session resets by tool and cause.",
				},
				[]string{"tool", "cause"},
			),
			catalogTools: prometheus.NewGauge(
				prometheus.GaugeOpts{
					Name: "catalog_tools",
					Help: "Enabled tools in the registry cache.",
				},
			),
			registryOps: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "registry_operations_total",
					Help: "Registry mutations by operation.",
				},
				[]string{"op"},
			),
			catalogReloads: prometheus.NewCounter(
				prometheus.CounterOpts{
					Name: "catalog_reload_total",
					Help: "Total catalog (re)loads.",
				},
			),
		}

		prometheus.MustRegister(
			m.executionTotal,
			m.executionDuration,
			m.timeoutsTotal,
			m.activeSessions,
			m.sessionRespawns,
			m.sessionResets,
			m.catalogTools,
			m.registryOps,
			m.catalogReloads,
		)

		metricsInst = m
	})

	return metricsInst
}

// EnsureRegistered initializes and registers metrics the first time it is called.
func EnsureRegistered() {
	_ = getMetrics()
}

func MetricsHandler() http.Handler {
	EnsureRegistered()
	return promhttp.Handler()
}

func RecordExecution(tool, kind string, duration time.Duration, success, timedOut bool) {
	m := getMetrics()
	status := "error"
	if success {
		status = "success"
	}
	m.executionTotal.WithLabelValues(tool, kind, status).Inc()
	m.executionDuration.WithLabelValues(tool, kind).Observe(duration.Seconds())
	if timedOut {
		m.timeoutsTotal.WithLabelValues(tool).Inc()
	}
}

func SetActiveSessions(count int) {
	m := getMetrics()
	m.activeSessions.Set(float64(count))
}

func RecordSessionRespawn(tool string) {
	m := getMetrics()
	m.sessionRespawns.WithLabelValues(tool).Inc()
}

func RecordSessionReset(tool, cause string) {
	m := getMetrics()
	m.sessionResets.WithLabelValues(tool, cause).Inc()
}

func SetCatalogTools(count int) {
	m := getMetrics()
	m.catalogTools.Set(float64(count))
}

func RecordRegistryOp(op string) {
	m := getMetrics()
	m.registryOps.WithLabelValues(op).Inc()
}

func RecordCatalogReload() {
	m := getMetrics()
	m.catalogReloads.Inc()
}
