package core

import "sync"

// Invoker spawns goroutines on behalf of this package's links and
// stream clients. Routing those launches through one narrow interface,
// rather than calling `go` directly, gives tests a single seam to
// observe or intercept them from. supervisor.Group starts its workers
// with a plain `go` statement and does not go through it.
type Invoker interface {
	// Spawn runs fn in a new goroutine.
	Spawn(fn func())
}

type goInvoker struct{}

func (goInvoker) Spawn(fn func()) {
	go fn()
}

var (
	invokerOnce     sync.Once
	invokerInstance Invoker
)

// InvokerInstance returns the process-wide Invoker.
func InvokerInstance() Invoker {
	invokerOnce.Do(func() {
		invokerInstance = goInvoker{}
	})
	return invokerInstance
}
