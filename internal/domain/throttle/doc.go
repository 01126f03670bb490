// Package throttle implements an ordered, rate-limited admission controller
// for outbound requests.
//
// A [Window] tracks how many operations completed within a trailing time
// window plus how many are currently in flight, and shrinks its effective
// budget in response to [Window.Backoff] signals. A [Gate] wraps a Window and
// additionally releases callers in strict sequence-number order, even when
// acquisitions are issued concurrently and complete out of order. A Window
// may be shared by several Gates so that independent ordered streams draw
// from one rate budget.
//
// # Usage
//
//	win, err := throttle.NewWindow(throttle.Config{
//		Name:              "api",
//		RequestsPerWindow: 30,
//		Window:            time.Second,
//	})
//	if err != nil {
//		return err
//	}
//
//	gate := win.Gate()
//	for page := 0; page < pages; page++ {
//		go func(seq int) {
//			permit, err := gate.Acquire(ctx, seq)
//			if err != nil {
//				return // context cancelled while waiting
//			}
//			if err := send(seq); err != nil {
//				permit.Cancel() // frees the budget slot and the sequence claim
//				retry(seq)
//				return
//			}
//			permit.Complete()
//		}(page)
//	}
//
// Every permit must be released exactly once, on every exit path. Cancel
// frees the sequence claim for a retrying caller with the same number; a
// sequence number that is never completed, and never re-acquired after a
// cancel, blocks all higher sequence numbers on its gate forever.
package throttle
