// Package metrics holds the Prometheus collectors exported by the service.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups every collector. A nil *Metrics is valid and records nothing.
type Metrics struct {
	FetchAttempts    *prometheus.CounterVec
	CacheResults     *prometheus.CounterVec
	ImageValidations *prometheus.CounterVec
	SyncCycles       *prometheus.CounterVec
	RevealedGifts    prometheus.Gauge
	Reservations     *prometheus.CounterVec
	Notifications    *prometheus.CounterVec

	registry *prometheus.Registry
}

// New creates and registers all collectors on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		FetchAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "giftlist",
			Name:      "catalog_fetch_attempts_total",
			Help:      "Catalog fetch attempts per access path and outcome.",
		}, []string{"path", "outcome"}),
		CacheResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "giftlist",
			Name:      "catalog_cache_results_total",
			Help:      "Catalog cache lookups by result (fresh, stale_fallback, miss).",
		}, []string{"result"}),
		ImageValidations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "giftlist",
			Name:      "image_validations_total",
			Help:      "Image probes by outcome.",
		}, []string{"outcome"}),
		SyncCycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "giftlist",
			Name:      "sync_cycles_total",
			Help:      "Catalog sync cycles by final state.",
		}, []string{"state"}),
		RevealedGifts: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "giftlist",
			Name:      "revealed_gifts",
			Help:      "Gifts currently revealed to visitors.",
		}),
		Reservations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "giftlist",
			Name:      "reservations_total",
			Help:      "Reservation submissions by outcome.",
		}, []string{"outcome"}),
		Notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "giftlist",
			Name:      "notifications_total",
			Help:      "Reservation notifications by channel and outcome.",
		}, []string{"channel", "outcome"}),
		registry: prometheus.NewRegistry(),
	}

	m.registry.MustRegister(
		m.FetchAttempts,
		m.CacheResults,
		m.ImageValidations,
		m.SyncCycles,
		m.RevealedGifts,
		m.Reservations,
		m.Notifications,
		collectors.NewGoCollector(),
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) FetchAttempt(path, outcome string) {
	if m == nil {
		return
	}
	m.FetchAttempts.WithLabelValues(path, outcome).Inc()
}

func (m *Metrics) CacheResult(result string) {
	if m == nil {
		return
	}
	m.CacheResults.WithLabelValues(result).Inc()
}

func (m *Metrics) ImageValidation(valid bool) {
	if m == nil {
		return
	}
	outcome := "invalid"
	if valid {
		outcome = "valid"
	}
	m.ImageValidations.WithLabelValues(outcome).Inc()
}

func (m *Metrics) SyncCycle(state string) {
	if m == nil {
		return
	}
	m.SyncCycles.WithLabelValues(state).Inc()
}

func (m *Metrics) SetRevealed(n int) {
	if m == nil {
		return
	}
	m.RevealedGifts.Set(float64(n))
}

func (m *Metrics) Reservation(outcome string) {
	if m == nil {
		return
	}
	m.Reservations.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Notification(channel string, err error) {
	if m == nil {
		return
	}
	outcome := "sent"
	if err != nil {
		outcome = "failed"
	}
	m.Notifications.WithLabelValues(channel, outcome).Inc()
}
