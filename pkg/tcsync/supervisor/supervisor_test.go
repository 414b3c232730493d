package supervisor

import (
	"errors"
	"testing"
	"time"

	"github.com/tcsync-project/tcsync/pkg/tcsync/definition"
	"go.uber.org/goleak"
)

func TestGroup_ShutdownWithinJoinsFastWorkers(t *testing.T) {
	defer goleak.VerifyNone(t)

	g := NewGroup(definition.NewDefaultLogger())
	finished := make(chan struct{})
	g.Go("fast", func() {
		close(finished)
	})

	g.ShutdownWithin(500 * time.Millisecond)

	select {
	case <-finished:
	default:
		t.Fatalf("worker did not run before shutdown returned")
	}
}

func TestGroup_ShutdownWithinDetachesSlowWorker(t *testing.T) {
	g := NewGroup(definition.NewDefaultLogger())
	release := make(chan struct{})
	g.Go("slow", func() {
		<-release
	})

	start := time.Now()
	g.ShutdownWithin(50 * time.Millisecond)
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Fatalf("ShutdownWithin blocked for %v, want bounded by its deadline", elapsed)
	}

	close(release)
}

func TestBestEffort_SwallowsError(t *testing.T) {
	called := false
	BestEffort(definition.NewDefaultLogger(), "deliberate failure", func() error {
		called = true
		return errors.New("boom")
	})
	if !called {
		t.Fatalf("fn was never invoked")
	}
}

func TestBestEffort_NoErrorIsSilent(t *testing.T) {
	BestEffort(definition.NewDefaultLogger(), "no-op", func() error {
		return nil
	})
}
