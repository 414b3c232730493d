package protocol

import (
	"sync"

	"github.com/tcsync-project/tcsync/pkg/tcsync/types"
)

// slavePhase is the Slave's local state machine position.
type slavePhase int

const (
	slaveIdle slavePhase = iota
	slaveWaitingForTrigger
	slaveAcquiring
	slaveWaitingForRequests
	slaveDone
)

func (p slavePhase) String() string {
	switch p {
	case slaveIdle:
		return "idle"
	case slaveWaitingForTrigger:
		return "waiting_for_trigger"
	case slaveAcquiring:
		return "acquiring"
	case slaveWaitingForRequests:
		return "waiting_for_requests"
	default:
		return "done"
	}
}

// retainedDataset holds the Slave's latest acquisition outputs. It is
// read by the command-reply worker and written once by the acquisition
// worker, so a short critical section on each access is enough.
type retainedDataset struct {
	mu       sync.Mutex
	phase    slavePhase
	progress float64

	full    []types.ChannelRecord
	partial []types.ChannelRecord
	text    []types.ChannelRecord
}

func newRetainedDataset() *retainedDataset {
	return &retainedDataset{phase: slaveIdle}
}

func (r *retainedDataset) setPhase(p slavePhase) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.phase = p
}

func (r *retainedDataset) setProgress(p float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.progress = p
}

// status returns what the status RPC reports: the current phase and
// acquisition progress (0..100).
func (r *retainedDataset) status() (slavePhase, float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.phase, r.progress
}

// store retains the completed acquisition's outputs and derives the
// partial sample: the first partialFraction of records, floored at
// minPartial and capped at the full length.
func (r *retainedDataset) store(full []types.ChannelRecord, partialFraction float64, minPartial int) {
	n := int(float64(len(full)) * partialFraction)
	if n < minPartial {
		n = minPartial
	}
	if n > len(full) {
		n = len(full)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.full = full
	r.partial = full[:n]
	r.text = full
	r.phase = slaveWaitingForRequests
}

// snapshot returns the dataset the caller asked for, plus whether the
// Slave is far enough along to serve it.
func (r *retainedDataset) snapshot(which types.CommandName) ([]types.ChannelRecord, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.phase != slaveWaitingForRequests && r.phase != slaveDone {
		return nil, false
	}
	switch which {
	case types.CmdRequestPartial:
		return r.partial, true
	case types.CmdRequestFull:
		return r.full, true
	case types.CmdRequestText:
		return r.text, true
	default:
		return nil, false
	}
}
