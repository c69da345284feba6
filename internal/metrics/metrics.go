// Package metrics provides Prometheus instrumentation for HomeSoil,
// exposed by the Supervisor's ambient /metrics endpoint.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ─── Registry (component B) ─────────────────────────────────────────────────

var SensorsRegistered = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "homesoil",
	Name:      "sensors_registered",
	Help:      "Number of sensors currently registered.",
})

var ActuatorsRegistered = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "homesoil",
	Name:      "actuators_registered",
	Help:      "Number of actuators currently registered.",
})

var ReadingsIngested = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "homesoil",
	Name:      "readings_ingested_total",
	Help:      "Total sensor readings ingested.",
})

var ReadingsPurged = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "homesoil",
	Name:      "readings_purged_total",
	Help:      "Total sensor readings purged by the retention sweeper.",
}, []string{"outcome"})

// ─── CoAP Router (component C) ──────────────────────────────────────────────

var GatewayRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "homesoil",
	Name:      "gateway_requests_total",
	Help:      "Total CoAP requests handled by the gateway, by route and outcome.",
}, []string{"route", "outcome"})

// ─── Dashboard Event Bus (component D) ──────────────────────────────────────

var BusConnections = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "homesoil",
	Name:      "bus_connections",
	Help:      "Number of connected dashboard clients.",
})

var BusEventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "homesoil",
	Name:      "bus_events_published_total",
	Help:      "Total events broadcast over the dashboard bus, by event name.",
}, []string{"event"})

// ─── Prober (component E) ────────────────────────────────────────────────────

var ProbeTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "homesoil",
	Name:      "probe_transitions_total",
	Help:      "Total online/offline transitions observed by the prober, by device kind.",
}, []string{"device_kind"})

// ─── DSL Runner (component G) ────────────────────────────────────────────────

var ScriptRuns = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "homesoil",
	Name:      "script_runs_total",
	Help:      "Total script executions, by terminal status.",
}, []string{"status"})

// ─── Health ───────────────────────────────────────────────────────────────────

var HealthCheckStatus = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Namespace: "homesoil",
	Name:      "health_check_status",
	Help:      "Health check result per component (1=healthy, 0=unhealthy).",
}, []string{"check"})
