package protocol

import (
	"context"
	"time"

	"github.com/tcsync-project/tcsync/pkg/tcsync/core"
	"github.com/tcsync-project/tcsync/pkg/tcsync/definition"
	"github.com/tcsync-project/tcsync/pkg/tcsync/types"
)

// fileClass is which of the three file-link payloads a message was
// classified as. Classification is by size alone: anything under the
// full threshold is partial data, the first large payload is the full
// dataset, any further one the textual dump.
type fileClass int

const (
	classPartial fileClass = iota
	classFull
	classText
)

// fileEvent is one classified message, delivered as soon as it
// arrives so the Master can act on the partial sample without waiting
// for the full 20 s window to close.
type fileEvent struct {
	class   fileClass
	records []types.ChannelRecord // populated for classPartial
	bytes   []byte                // raw payload, populated for every class
}

// FileReceiver is the Master's bounded collector on the file link. It
// is only ever live between the local acquisition completing and the
// synchronization engine running.
type FileReceiver struct {
	pull   *core.PullServer
	log    types.Logger
	events chan fileEvent
}

// NewFileReceiver starts listening on addr.
func NewFileReceiver(addr string, log types.Logger) (*FileReceiver, error) {
	pull, err := core.NewPullServer(addr, log, true)
	if err != nil {
		return nil, err
	}
	return &FileReceiver{pull: pull, log: log, events: make(chan fileEvent, definition.FileReceiverMaxMessages)}, nil
}

// Events is where classified messages are delivered, in arrival order.
func (f *FileReceiver) Events() <-chan fileEvent { return f.events }

// Run collects up to FileReceiverMaxMessages payloads, or until
// FileReceiverWallClock elapses, whichever comes first, then closes
// Events(). A per-message receive timeout of FileRecvTimeout never
// terminates the receiver by itself; it only gives the wall-clock
// check another chance to run.
func (f *FileReceiver) Run(ctx context.Context) {
	defer close(f.events)
	deadline := time.Now().Add(definition.FileReceiverWallClock)
	seenFull := false
	received := 0

	for received < definition.FileReceiverMaxMessages && time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			return
		case data, ok := <-f.pull.Files():
			if !ok {
				return
			}
			received++
			class := classPartial
			var records []types.ChannelRecord
			if len(data) < definition.FileSizeFullThreshold {
				records = core.DecodeBinary(data)
			} else if !seenFull {
				class = classFull
				seenFull = true
			} else {
				class = classText
			}
			f.events <- fileEvent{class: class, records: records, bytes: data}
		case <-time.After(definition.FileRecvTimeout):
			continue
		}
	}
}

// Close stops accepting new connections.
func (f *FileReceiver) Close() {
	f.pull.Close()
}
