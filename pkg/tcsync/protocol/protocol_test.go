package protocol

import (
	"context"
	"testing"
	"time"

	"github.com/tcsync-project/tcsync/pkg/tcsync/core"
	"github.com/tcsync-project/tcsync/pkg/tcsync/definition"
	"github.com/tcsync-project/tcsync/pkg/tcsync/types"
)

func TestRetainedDataset_NotReadyBeforeStore(t *testing.T) {
	d := newRetainedDataset()
	if _, ready := d.snapshot(types.CmdRequestPartial); ready {
		t.Fatalf("expected not-ready before store")
	}
}

func TestRetainedDataset_PartialIsFirstTenPercentFloored(t *testing.T) {
	d := newRetainedDataset()
	full := make([]types.ChannelRecord, 50)
	for i := range full {
		full[i] = types.ChannelRecord{Channel: 1, Timestamp: types.Timestamp(i)}
	}
	d.store(full, definition.DefaultPartialFraction, definition.MinPartialRecords)

	partial, ready := d.snapshot(types.CmdRequestPartial)
	if !ready {
		t.Fatalf("expected ready after store")
	}
	if len(partial) != 10 {
		t.Fatalf("got partial length %d, want 10 (10%% of 50 is 5, raised to the floor of 10)", len(partial))
	}

	full2, ready := d.snapshot(types.CmdRequestFull)
	if !ready || len(full2) != 50 {
		t.Fatalf("got full length %d ready=%v, want 50/true", len(full2), ready)
	}
}

func TestRetainedDataset_PartialFlooredToMinimum(t *testing.T) {
	d := newRetainedDataset()
	full := make([]types.ChannelRecord, 12)
	for i := range full {
		full[i] = types.ChannelRecord{Channel: 1, Timestamp: types.Timestamp(i)}
	}
	// 10% of 12 is 1, below the floor of 10, and below len(full).
	d.store(full, definition.DefaultPartialFraction, definition.MinPartialRecords)

	partial, ready := d.snapshot(types.CmdRequestPartial)
	if !ready {
		t.Fatalf("expected ready after store")
	}
	if len(partial) != 10 {
		t.Fatalf("got partial length %d, want floor of 10", len(partial))
	}
}

func TestFileReceiver_ClassifiesBySizeInArrivalOrder(t *testing.T) {
	log := definition.NewDefaultLogger()
	receiver, err := NewFileReceiver("127.0.0.1:0", log)
	if err != nil {
		t.Fatalf("NewFileReceiver: %v", err)
	}
	defer receiver.Close()

	addr := receiver.pull.Addr()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		receiver.Run(ctx)
	}()

	push := core.NewPushClient(log)
	partial := make([]byte, 1024)  // well under FileSizeFullThreshold
	full := make([]byte, 150*1024) // at/above threshold, arrives first-large
	text := make([]byte, 140*1024) // also above threshold, arrives second-large

	if err := push.PushFile(addr, partial); err != nil {
		t.Fatalf("push partial: %v", err)
	}
	if err := push.PushFile(addr, full); err != nil {
		t.Fatalf("push full: %v", err)
	}
	if err := push.PushFile(addr, text); err != nil {
		t.Fatalf("push text: %v", err)
	}

	var sawPartial, sawFull, sawText bool
	for i := 0; i < 3; i++ {
		select {
		case ev, ok := <-receiver.Events():
			if !ok {
				t.Fatalf("events channel closed early after %d events", i)
			}
			switch ev.class {
			case classPartial:
				sawPartial = true
			case classFull:
				sawFull = true
			case classText:
				sawText = true
			}
		case <-time.After(3 * time.Second):
			t.Fatalf("timed out waiting for file event %d", i)
		}
	}
	if !sawPartial || !sawFull || !sawText {
		t.Fatalf("expected all three classes, got partial=%v full=%v text=%v", sawPartial, sawFull, sawText)
	}

	<-done
}

func TestSlave_HandleCommandUnknownCommandIsNotFatal(t *testing.T) {
	d := newRetainedDataset()
	s := &Slave{
		log:     definition.NewDefaultLogger(),
		dataset: d,
	}
	resp := s.handleCommand(types.Envelope{Type: types.EnvelopeCommand, Command: "bogus", Sequence: 7})
	if resp.Success {
		t.Fatalf("expected failure reply for unknown command")
	}
	if resp.Sequence != 7 {
		t.Fatalf("got echoed sequence %d, want 7", resp.Sequence)
	}
}

func TestSlave_HandleCommandStatusReportsPhaseAndProgress(t *testing.T) {
	d := newRetainedDataset()
	d.setPhase(slaveAcquiring)
	d.setProgress(42.5)
	s := &Slave{
		log:     definition.NewDefaultLogger(),
		dataset: d,
	}

	resp := s.handleCommand(types.Envelope{Type: types.EnvelopeCommand, Command: types.CmdStatus, Sequence: 5})
	if !resp.Success {
		t.Fatalf("expected success reply for status, got %+v", resp)
	}
	if state, ok := resp.Data["state"].(string); !ok || state != "acquiring" {
		t.Fatalf("got state %v, want acquiring", resp.Data["state"])
	}
	if progress, ok := resp.Data["progress"].(float64); !ok || progress != 42.5 {
		t.Fatalf("got progress %v, want 42.5", resp.Data["progress"])
	}
}

func TestSlave_HandleCommandRequestPartialBeforeReadyIsStateError(t *testing.T) {
	d := newRetainedDataset()
	s := &Slave{
		log:     definition.NewDefaultLogger(),
		dataset: d,
	}
	resp := s.handleCommand(types.Envelope{Type: types.EnvelopeCommand, Command: types.CmdRequestPartial, Sequence: 3})
	if resp.Success {
		t.Fatalf("expected not-ready failure before acquisition completes")
	}
	if resp.Error != types.ErrNotReady.Error() {
		t.Fatalf("got error %q, want %q", resp.Error, types.ErrNotReady.Error())
	}
}
