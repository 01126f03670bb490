package throttle

import (
	"fmt"

	"github.com/google/uuid"
)

// Permit represents the right to perform one admitted unit of throttled
// work. It must be released exactly once, on every exit path of the work:
// Complete when the request was actually sent, Cancel when it was abandoned.
// A permit that is never released blocks all higher sequence numbers on its
// gate indefinitely.
type Permit struct {
	gate *Gate
	id   uuid.UUID
	seq  int

	released bool // guarded by gate.win.mu
}

// Seq returns the sequence number this permit was admitted under.
func (p *Permit) Seq() int { return p.seq }

// Complete releases the permit after the work was performed. The completion
// time is logged against the window's budget, and the sequence number stays
// consumed: sequence numbers are never reused across a gate's lifetime.
// Returns ErrPermitReleased if the permit was already released.
func (p *Permit) Complete() error {
	return p.release(false)
}

// Cancel releases the permit without the work having been performed. Both
// the budget slot and the sequence-number claim are freed, so a retrying
// caller may acquire the same sequence number again. Cancellation is a
// normal terminal state, not an error. Returns ErrPermitReleased if the
// permit was already released.
func (p *Permit) Cancel() error {
	return p.release(true)
}

func (p *Permit) release(cancelled bool) error {
	w := p.gate.win

	w.mu.Lock()
	if p.released {
		w.mu.Unlock()
		return fmt.Errorf("seq %d: %w", p.seq, ErrPermitReleased)
	}
	p.released = true
	if cancelled {
		delete(p.gate.seqs, p.seq)
	}
	err := w.completeLocked(p.id, cancelled)
	w.mu.Unlock()

	if err != nil {
		return err
	}
	w.obs.Released(w.name, cancelled)
	return nil
}
