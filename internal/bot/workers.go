package bot

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
)

// workerGroup supervises the detached per-message processing tasks. It
// keeps them reachable, recovers panics at the task boundary, and supports
// a bounded drain at shutdown.
type workerGroup struct {
	wg     sync.WaitGroup
	active atomic.Int64
}

// Go runs fn in a supervised goroutine. A panic in fn is logged and never
// propagates to siblings or the caller.
func (g *workerGroup) Go(messageID string, fn func()) {
	g.wg.Add(1)
	g.active.Add(1)
	go func() {
		defer g.wg.Done()
		defer g.active.Add(-1)
		defer func() {
			if r := recover(); r != nil {
				log.Error().
					Str("message_id", messageID).
					Interface("panic", r).
					Msg("message worker panicked")
			}
		}()
		fn()
	}()
}

// Active returns the number of in-flight workers.
func (g *workerGroup) Active() int64 { return g.active.Load() }

// Drain waits up to grace for all workers to finish. It returns false when
// workers were abandoned, which the shutdown model permits: their state
// records stay absent or stale and the next discovery cycle retries them.
func (g *workerGroup) Drain(grace time.Duration) bool {
	done := make(chan struct{})
	go func() {
		g.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-time.After(grace):
		log.Warn().
			Int64("abandoned", g.Active()).
			Dur("grace", grace).
			Msg("shutdown grace period elapsed with workers in flight")
		return false
	}
}
