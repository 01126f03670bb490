// Package prom provides a Prometheus-instrumented throttle observer.
package prom

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/pacegate/pacegate/internal/domain/throttle"
)

// Observer implements throttle.Observer with Prometheus metrics, all
// labeled by window name.
type Observer struct {
	AdmissionsTotal    *prometheus.CounterVec
	CancellationsTotal *prometheus.CounterVec
	AdmissionWait      *prometheus.HistogramVec
	InFlight           *prometheus.GaugeVec
	BackoffLevel       *prometheus.GaugeVec
}

// NewObserver creates and registers all metrics with the given registry.
func NewObserver(reg prometheus.Registerer) *Observer {
	return &Observer{
		AdmissionsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "pacegate",
				Name:      "admissions_total",
				Help:      "Total number of acquisitions admitted",
			},
			[]string{"window"},
		),
		CancellationsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "pacegate",
				Name:      "cancellations_total",
				Help:      "Total number of permits released by cancellation",
			},
			[]string{"window"},
		),
		AdmissionWait: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "pacegate",
				Name:      "admission_wait_seconds",
				Help:      "Time spent waiting for admission",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"window"},
		),
		InFlight: promauto.With(reg).NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "pacegate",
				Name:      "in_flight",
				Help:      "Operations admitted but not yet released",
			},
			[]string{"window"},
		),
		BackoffLevel: promauto.With(reg).NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "pacegate",
				Name:      "backoff_level",
				Help:      "Current backoff level of the window",
			},
			[]string{"window"},
		),
	}
}

// Admitted records a successful acquisition and its wait time.
func (o *Observer) Admitted(window string, waited time.Duration) {
	o.AdmissionsTotal.WithLabelValues(window).Inc()
	o.AdmissionWait.WithLabelValues(window).Observe(waited.Seconds())
	o.InFlight.WithLabelValues(window).Inc()
}

// Released records a permit release.
func (o *Observer) Released(window string, cancelled bool) {
	o.InFlight.WithLabelValues(window).Dec()
	if cancelled {
		o.CancellationsTotal.WithLabelValues(window).Inc()
	}
}

// BackoffApplied records the new backoff level.
func (o *Observer) BackoffApplied(window string, level, _ int) {
	o.BackoffLevel.WithLabelValues(window).Set(float64(level))
}

// Compile-time interface verification.
var _ throttle.Observer = (*Observer)(nil)
