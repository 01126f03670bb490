package throttle

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Window tracks completed and in-flight operations against a trailing time
// window and enforces a backoff-adjusted capacity on them. It is safe for
// concurrent use; a single mutex serializes all bookkeeping, including the
// ordering check-and-set performed by Gates sharing this window, so the
// check-then-admit step is atomic.
type Window struct {
	name          string
	capacity      int
	window        time.Duration
	retryInterval time.Duration

	clock func() time.Time
	obs   Observer

	mu          sync.Mutex
	backoffN    int
	completions []time.Time // completion timestamps, oldest first
	inFlight    map[uuid.UUID]struct{}
}

// NewWindow creates a Window from cfg. Zero Window/RetryInterval durations
// take the package defaults; negative durations or a non-positive
// RequestsPerWindow fail with a configuration error.
func NewWindow(cfg Config, opts ...Option) (*Window, error) {
	if cfg.RequestsPerWindow <= 0 {
		return nil, fmt.Errorf("%w, got %d", ErrInvalidCapacity, cfg.RequestsPerWindow)
	}
	if cfg.Window < 0 {
		return nil, fmt.Errorf("%w, got %s", ErrInvalidWindow, cfg.Window)
	}
	if cfg.RetryInterval < 0 {
		return nil, fmt.Errorf("%w, got %s", ErrInvalidRetryInterval, cfg.RetryInterval)
	}

	w := &Window{
		name:          cfg.Name,
		capacity:      cfg.RequestsPerWindow,
		window:        cfg.Window,
		retryInterval: cfg.RetryInterval,
		clock:         time.Now,
		obs:           NopObserver(),
		inFlight:      make(map[uuid.UUID]struct{}),
	}
	if w.name == "" {
		w.name = DefaultName
	}
	if w.window == 0 {
		w.window = DefaultWindow
	}
	if w.retryInterval == 0 {
		w.retryInterval = DefaultRetryInterval
	}

	for _, opt := range opts {
		opt(w)
	}

	return w, nil
}

// Name returns the window's identifier used in logs and metrics.
func (w *Window) Name() string { return w.name }

// Gate returns a new ordered gate drawing on this window's rate budget.
// Gates created from the same window share the budget but keep independent
// sequence-number streams.
func (w *Window) Gate() *Gate {
	return &Gate{win: w, seqs: make(map[int]struct{})}
}

// CountInWindow reports the live load measure: completions still inside the
// trailing window plus operations currently in flight. Expired completions
// are pruned first.
func (w *Window) CountInWindow() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.flushLocked(w.clock())
	return w.countLocked()
}

// EffectiveCapacity reports the backoff-adjusted admission ceiling,
// max(capacity - 2^level, 1), including the 2^0 subtraction at level zero.
// It never drops below 1, so progress is always eventually possible.
func (w *Window) EffectiveCapacity() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.effectiveCapacityLocked()
}

// Backoff raises the backoff level by one, shrinking the effective capacity.
// Call it when the remote side signals that it is throttling us. The level
// never decays; use a fresh Window to restore full capacity.
func (w *Window) Backoff() {
	w.mu.Lock()
	w.backoffN++
	level := w.backoffN
	eff := w.effectiveCapacityLocked()
	w.mu.Unlock()

	w.obs.BackoffApplied(w.name, level, eff)
	slog.Debug("throttle backoff applied",
		"window", w.name,
		"level", level,
		"effective_capacity", eff)
}

// flushLocked drops completion entries older than the trailing window.
// Must be called with the lock held. Idempotent.
func (w *Window) flushLocked(now time.Time) {
	i := 0
	for i < len(w.completions) && now.Sub(w.completions[i]) > w.window {
		i++
	}
	if i > 0 {
		w.completions = append(w.completions[:0], w.completions[i:]...)
	}
}

func (w *Window) countLocked() int {
	return len(w.completions) + len(w.inFlight)
}

func (w *Window) effectiveCapacityLocked() int {
	if w.backoffN >= 31 {
		return 1
	}
	eff := w.capacity - 1<<w.backoffN
	if eff < 1 {
		return 1
	}
	return eff
}

// admitLocked records id as in flight. The caller must already have verified
// the admission criterion countLocked() < effectiveCapacityLocked() under the
// same critical section; admitLocked itself does not check.
func (w *Window) admitLocked(id uuid.UUID) {
	w.inFlight[id] = struct{}{}
}

// completeLocked removes id from the in-flight set and, unless cancelled,
// logs the completion time against the window. A cancelled operation never
// sent a request, so it must not count against future budget.
func (w *Window) completeLocked(id uuid.UUID, cancelled bool) error {
	if _, ok := w.inFlight[id]; !ok {
		return fmt.Errorf("%w: %s", ErrNotInFlight, id)
	}
	delete(w.inFlight, id)
	if !cancelled {
		w.completions = append(w.completions, w.clock())
	}
	return nil
}
