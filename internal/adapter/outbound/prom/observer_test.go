package prom

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/pacegate/pacegate/internal/domain/throttle"
)

func TestObserver_RecordsAdmissionLifecycle(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	obs := NewObserver(reg)

	win, err := throttle.NewWindow(
		throttle.Config{Name: "api", RequestsPerWindow: 5},
		throttle.WithObserver(obs),
	)
	if err != nil {
		t.Fatal(err)
	}
	gate := win.Gate()

	permit, err := gate.Acquire(context.Background(), 0)
	if err != nil {
		t.Fatal(err)
	}

	var m dto.Metric
	if err := obs.AdmissionsTotal.WithLabelValues("api").Write(&m); err != nil {
		t.Fatal(err)
	}
	if m.Counter.GetValue() != 1 {
		t.Errorf("admissions_total = %f, want 1", m.Counter.GetValue())
	}

	m.Reset()
	if err := obs.InFlight.WithLabelValues("api").Write(&m); err != nil {
		t.Fatal(err)
	}
	if m.Gauge.GetValue() != 1 {
		t.Errorf("in_flight while admitted = %f, want 1", m.Gauge.GetValue())
	}

	if err := permit.Complete(); err != nil {
		t.Fatal(err)
	}

	m.Reset()
	if err := obs.InFlight.WithLabelValues("api").Write(&m); err != nil {
		t.Fatal(err)
	}
	if m.Gauge.GetValue() != 0 {
		t.Errorf("in_flight after completion = %f, want 0", m.Gauge.GetValue())
	}
}

func TestObserver_RecordsCancellationsAndBackoff(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	obs := NewObserver(reg)

	win, err := throttle.NewWindow(
		throttle.Config{Name: "api", RequestsPerWindow: 10},
		throttle.WithObserver(obs),
	)
	if err != nil {
		t.Fatal(err)
	}
	gate := win.Gate()

	permit, err := gate.Acquire(context.Background(), 0)
	if err != nil {
		t.Fatal(err)
	}
	if err := permit.Cancel(); err != nil {
		t.Fatal(err)
	}

	var m dto.Metric
	if err := obs.CancellationsTotal.WithLabelValues("api").Write(&m); err != nil {
		t.Fatal(err)
	}
	if m.Counter.GetValue() != 1 {
		t.Errorf("cancellations_total = %f, want 1", m.Counter.GetValue())
	}

	win.Backoff()
	win.Backoff()

	m.Reset()
	if err := obs.BackoffLevel.WithLabelValues("api").Write(&m); err != nil {
		t.Fatal(err)
	}
	if m.Gauge.GetValue() != 2 {
		t.Errorf("backoff_level = %f, want 2", m.Gauge.GetValue())
	}
}

func TestObserver_RecordsWaitHistogram(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	obs := NewObserver(reg)

	// Admitted is also callable directly; the histogram must record one
	// sample per admission.
	obs.Admitted("api", 5*time.Millisecond)
	obs.Admitted("api", 15*time.Millisecond)

	families, err := reg.Gather()
	if err != nil {
		t.Fatal(err)
	}

	var found bool
	for _, mf := range families {
		if mf.GetName() != "pacegate_admission_wait_seconds" {
			continue
		}
		for _, m := range mf.GetMetric() {
			if m.GetHistogram().GetSampleCount() == 2 {
				found = true
			}
		}
	}
	if !found {
		t.Error("expected admission_wait_seconds histogram with 2 samples")
	}
}
