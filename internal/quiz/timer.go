package quiz

import (
	"context"
	"time"
)

// examTimer owns the ticker goroutine of one exam run. Every start and stop
// bumps the generation, and the callback receives the generation it was
// started with, so a tick that races a stop is recognized as stale. All
// methods are called with the session mutex held; none of them wait for the
// goroutine.
type examTimer struct {
	gen    uint64
	cancel context.CancelFunc
}

func (t *examTimer) start(every time.Duration, fn func(gen uint64) bool) {
	t.stop()
	ctx, cancel := context.WithCancel(context.Background())
	t.cancel = cancel
	gen := t.gen
	go func() {
		tk := time.NewTicker(every)
		defer tk.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-tk.C:
				if !fn(gen) {
					return
				}
			}
		}
	}()
}

func (t *examTimer) stop() {
	t.gen++
	if t.cancel != nil {
		t.cancel()
		t.cancel = nil
	}
}

func (t *examTimer) current(gen uint64) bool { return t.cancel != nil && gen == t.gen }

func (t *examTimer) running() bool { return t.cancel != nil }
