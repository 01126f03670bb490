package throttle

import (
	"errors"
	"time"
)

// Default values applied by NewWindow when the corresponding Config field
// is zero.
const (
	// DefaultWindow is the default trailing window length.
	DefaultWindow = time.Second

	// DefaultRetryInterval is the default poll interval for waiters. It is
	// deliberately small relative to typical network request latency.
	DefaultRetryInterval = 10 * time.Millisecond

	// DefaultName is used when Config.Name is empty.
	DefaultName = "default"
)

// Config defines the admission parameters for a Window.
type Config struct {
	// Name identifies the window in logs and metrics.
	// Defaults to DefaultName if empty.
	Name string

	// RequestsPerWindow is the maximum number of operations, in flight or
	// completed, allowed within the trailing window. Must be positive.
	RequestsPerWindow int

	// Window is the trailing window length. Defaults to DefaultWindow.
	Window time.Duration

	// RetryInterval is how long waiters sleep between admission polls.
	// Defaults to DefaultRetryInterval.
	RetryInterval time.Duration
}

// Configuration and usage errors. Invalid parameters fail at construction,
// never silently clamped.
var (
	// ErrInvalidCapacity indicates a non-positive RequestsPerWindow.
	ErrInvalidCapacity = errors.New("requests per window must be positive")

	// ErrInvalidWindow indicates a negative Window duration. Zero is
	// accepted and takes DefaultWindow.
	ErrInvalidWindow = errors.New("window must not be negative")

	// ErrInvalidRetryInterval indicates a negative RetryInterval. Zero is
	// accepted and takes DefaultRetryInterval.
	ErrInvalidRetryInterval = errors.New("retry interval must not be negative")

	// ErrNegativeSequence indicates Acquire was called with a negative
	// sequence number.
	ErrNegativeSequence = errors.New("sequence number must be non-negative")

	// ErrPermitReleased indicates a permit was completed or cancelled twice.
	ErrPermitReleased = errors.New("permit already released")

	// ErrNotInFlight indicates bookkeeping was asked to complete an
	// identifier it never admitted. This is a programmer error.
	ErrNotInFlight = errors.New("identifier not in flight")
)

// Observer receives admission lifecycle events, keyed by window name.
// Implementations must be safe for concurrent use.
type Observer interface {
	// Admitted is called when an acquisition succeeds, with the time the
	// caller spent waiting for admission.
	Admitted(window string, waited time.Duration)

	// Released is called when a permit is completed or cancelled.
	Released(window string, cancelled bool)

	// BackoffApplied is called after each Backoff, with the new level and
	// the resulting effective capacity.
	BackoffApplied(window string, level, effectiveCapacity int)
}

// NopObserver returns an Observer that discards all events.
func NopObserver() Observer { return nopObserver{} }

type nopObserver struct{}

func (nopObserver) Admitted(string, time.Duration)  {}
func (nopObserver) Released(string, bool)           {}
func (nopObserver) BackoffApplied(string, int, int) {}

// Option customizes a Window at construction.
type Option func(*Window)

// WithObserver attaches an Observer for admission lifecycle events.
func WithObserver(obs Observer) Option {
	return func(w *Window) {
		if obs != nil {
			w.obs = obs
		}
	}
}

// WithClock overrides the wall-clock source. Used in tests to make window
// pruning deterministic.
func WithClock(now func() time.Time) Option {
	return func(w *Window) {
		if now != nil {
			w.clock = now
		}
	}
}
