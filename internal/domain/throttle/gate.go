package throttle

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Gate admits callers in strict sequence-number order on top of a shared
// Window's rate budget. Sequence numbers are assigned by the caller as a
// dense, zero-based, strictly increasing series per logical stream (for
// example, one number per page of a paginated fetch). Out-of-order arrival
// is expected and handled by waiting; sequence number i is not admitted
// until 0..i-1 have all been admitted or cancelled.
//
// A Gate must not outlive its Window. Its claimed-sequence set is guarded by
// the Window's mutex so the rate check and the ordering check-and-set form a
// single critical section.
type Gate struct {
	win  *Window
	seqs map[int]struct{} // claimed sequence numbers, guarded by win.mu
}

// Acquire blocks until both the rate budget and the ordering constraint
// admit seq, then returns a Permit that the caller must release exactly once
// via Complete or Cancel. Waiting is a cooperative poll at the window's
// retry interval; there is no intrinsic timeout, so callers bound the wait
// through ctx. Cancelling ctx while waiting abandons the acquisition without
// claiming anything.
func (g *Gate) Acquire(ctx context.Context, seq int) (*Permit, error) {
	if seq < 0 {
		return nil, fmt.Errorf("%w, got %d", ErrNegativeSequence, seq)
	}

	start := g.win.clock()
	timer := time.NewTimer(g.win.retryInterval)
	defer timer.Stop()

	for {
		if p := g.tryAcquire(seq); p != nil {
			waited := g.win.clock().Sub(start)
			g.win.obs.Admitted(g.win.name, waited)
			slog.Debug("throttle admission",
				"window", g.win.name,
				"seq", seq,
				"waited", waited)
			return p, nil
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("acquire seq %d: %w", seq, ctx.Err())
		case <-timer.C:
			timer.Reset(g.win.retryInterval)
		}
	}
}

// Backoff forwards to the underlying window.
func (g *Gate) Backoff() {
	g.win.Backoff()
}

// Window returns the shared window this gate draws its budget from.
func (g *Gate) Window() *Window {
	return g.win
}

// tryAcquire performs one atomic admission attempt: prune the window, test
// budget and ordering, and on success claim seq and admit a fresh in-flight
// identifier. Returns nil when the caller must keep waiting.
func (g *Gate) tryAcquire(seq int) *Permit {
	w := g.win
	w.mu.Lock()
	defer w.mu.Unlock()

	w.flushLocked(w.clock())
	if w.countLocked() >= w.effectiveCapacityLocked() || g.nextSeqLocked() != seq {
		return nil
	}

	g.seqs[seq] = struct{}{}
	id := uuid.New()
	w.admitLocked(id)

	return &Permit{gate: g, id: id, seq: seq}
}

// nextSeqLocked returns the smallest non-negative integer not currently
// claimed. The scan stops at max(claimed)+1: with finitely many claims the
// smallest free value can be at most one past the largest claim, so that
// bound always contains the answer. Must be called with win.mu held.
func (g *Gate) nextSeqLocked() int {
	if len(g.seqs) == 0 {
		return 0
	}

	maxSeq := 0
	for s := range g.seqs {
		if s > maxSeq {
			maxSeq = s
		}
	}
	for i := 0; i <= maxSeq; i++ {
		if _, ok := g.seqs[i]; !ok {
			return i
		}
	}
	return maxSeq + 1
}
