// Package metrics exposes the bridge's cycle counters and last published
// values as Prometheus collectors. A nil *Metrics is valid and records
// nothing.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sweeney/climate-bridge/internal/accessory"
)

const namespace = "climate_bridge"

type Metrics struct {
	registry *prometheus.Registry

	reportCycles      prometheus.Counter
	sensorFaults      prometheus.Counter
	diagnosticsCycles prometheus.Counter
	notifications     *prometheus.CounterVec

	temperature *prometheus.GaugeVec
	humidity    prometheus.Gauge
	occupancy   prometheus.Gauge
	observers   prometheus.Gauge
	freeMemory  prometheus.Gauge
}

// New creates the collectors on a private registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		reportCycles: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "report_cycles_total",
			Help:      "Total report cycles run.",
		}),
		sensorFaults: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sensor_faults_total",
			Help:      "Report cycles whose temperature/humidity pair was invalid.",
		}),
		diagnosticsCycles: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "diagnostics_cycles_total",
			Help:      "Total diagnostics cycles run.",
		}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Characteristic notifications by characteristic id.",
		}, []string{"characteristic"}),
		temperature: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "temperature_celsius",
			Help:      "Last temperature (calibrated is published, raw is before offset).",
		}, []string{"kind"}),
		humidity: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "humidity_percent",
			Help:      "Last published relative humidity.",
		}),
		occupancy: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "occupancy_detected",
			Help:      "Last occupancy sample (1 detected, 0 not detected).",
		}),
		observers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "observers_connected",
			Help:      "Controllers announced online at the last diagnostics cycle.",
		}),
		freeMemory: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "free_memory_bytes",
			Help:      "Available memory at the last diagnostics cycle.",
		}),
	}

	m.registry.MustRegister(
		m.reportCycles,
		m.sensorFaults,
		m.diagnosticsCycles,
		m.notifications,
		m.temperature,
		m.humidity,
		m.occupancy,
		m.observers,
		m.freeMemory,
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ReportCycle records one report cycle. raw and published are the
// temperature before and after the offset; they are only set when ok.
func (m *Metrics) ReportCycle(ok bool, raw, published, humidity float64, occupied bool) {
	if m == nil {
		return
	}
	m.reportCycles.Inc()
	if ok {
		m.temperature.WithLabelValues("raw").Set(raw)
		m.temperature.WithLabelValues("published").Set(published)
		m.humidity.Set(humidity)
	} else {
		m.sensorFaults.Inc()
	}
	if occupied {
		m.occupancy.Set(1)
	} else {
		m.occupancy.Set(0)
	}
}

// DiagnosticsCycle records one diagnostics cycle.
func (m *Metrics) DiagnosticsCycle(freeMemory uint64, observers int) {
	if m == nil {
		return
	}
	m.diagnosticsCycles.Inc()
	m.freeMemory.Set(float64(freeMemory))
	m.observers.Set(float64(observers))
}

// Notify counts a characteristic notification. It makes Metrics an
// accessory.Observer.
func (m *Metrics) Notify(ev accessory.Event) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(ev.Characteristic).Inc()
}
