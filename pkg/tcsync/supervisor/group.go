// Package supervisor implements bounded worker shutdown and the
// "must not fail" combinator cleanup paths use: a worker that will not
// join within its deadline is logged and detached, and a cleanup step
// that fails is logged and skipped, so no shutdown sequence ever
// blocks past its hard cap.
package supervisor

import (
	"sync"
	"time"

	"github.com/tcsync-project/tcsync/pkg/tcsync/types"
)

// Group tracks a set of named worker goroutines and joins them with a
// bounded deadline at shutdown. A worker that does not finish within
// the deadline is logged and detached rather than blocking shutdown.
type Group struct {
	log     types.Logger
	mu      sync.Mutex
	workers map[string]chan struct{}
}

// NewGroup creates an empty supervision group.
func NewGroup(log types.Logger) *Group {
	return &Group{log: log, workers: make(map[string]chan struct{})}
}

// Go spawns fn in a new goroutine registered under name. Every
// registered worker must be represented exactly once in
// ShutdownWithin's join pass.
func (g *Group) Go(name string, fn func()) {
	done := make(chan struct{})
	g.mu.Lock()
	g.workers[name] = done
	g.mu.Unlock()

	go func() {
		defer close(done)
		fn()
	}()
}

// ShutdownWithin joins every registered worker, waiting at most
// deadline in total. Workers still running when the deadline fires
// are logged and detached; the supervisor never blocks shutdown
// beyond the hard cap.
func (g *Group) ShutdownWithin(deadline time.Duration) {
	g.mu.Lock()
	workers := make(map[string]chan struct{}, len(g.workers))
	for name, done := range g.workers {
		workers[name] = done
	}
	g.mu.Unlock()

	timer := time.NewTimer(deadline)
	defer timer.Stop()

	for _, done := range workers {
		select {
		case <-done:
		case <-timer.C:
			for name, d := range workers {
				select {
				case <-d:
				default:
					g.log.Warnf("supervisor: detaching worker %q, join deadline exceeded", name)
				}
			}
			return
		}
	}
}
