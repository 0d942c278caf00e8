package shrinker

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type metrics struct {
	registry             *prometheus.Registry
	shrinksTotal         *prometheus.CounterVec
	shrinkDuration       *prometheus.HistogramVec
	bytesSavedTotal      prometheus.Counter
	pixelsProcessedTotal prometheus.Counter
	lastReduction        prometheus.Gauge
}

func newMetrics() *metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &metrics{
		registry: registry,
		shrinksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "clipshrink_shrinks_total",
			Help: "Shrink attempts by output format and outcome.",
		}, []string{"format", "outcome"}),
		shrinkDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "clipshrink_shrink_duration_seconds",
			Help:    "Time from clipboard read to clipboard write.",
			Buckets: prometheus.DefBuckets,
		}, []string{"outcome"}),
		bytesSavedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "clipshrink_bytes_saved_total",
			Help: "Bytes saved across successful shrinks.",
		}),
		pixelsProcessedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "clipshrink_pixels_processed_total",
			Help: "Source pixels decoded across successful shrinks.",
		}),
		lastReduction: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "clipshrink_last_reduction_percent",
			Help: "Size reduction of the most recent successful shrink.",
		}),
	}

	registry.MustRegister(
		m.shrinksTotal,
		m.shrinkDuration,
		m.bytesSavedTotal,
		m.pixelsProcessedTotal,
		m.lastReduction,
	)
	return m
}

func (m *metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
