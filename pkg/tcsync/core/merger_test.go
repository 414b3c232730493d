package core

import (
	"context"
	"encoding/binary"
	"testing"

	"github.com/tcsync-project/tcsync/pkg/tcsync/definition"
	"github.com/tcsync-project/tcsync/pkg/tcsync/types"
)

func encodeTimestamps(values ...uint64) Message {
	buf := make([]byte, 8*len(values))
	for i, v := range values {
		binary.LittleEndian.PutUint64(buf[i*8:i*8+8], v)
	}
	return Message(buf)
}

func TestMerger_OrderingAndOffsetCorrection(t *testing.T) {
	chA := types.ChannelId(1)
	chB := types.ChannelId(2)

	bufA := newChannelBuffer()
	bufB := newChannelBuffer()

	bufA.Append(0, encodeTimestamps(5, 15))
	bufA.Append(1, encodeTimestamps(3, 8))
	bufA.MarkFinished(2)

	bufB.Append(0, encodeTimestamps(1, 20))
	bufB.Append(1, encodeTimestamps(2, 9))
	bufB.MarkFinished(2)

	buffers := map[types.ChannelId]*channelBuffer{chA: bufA, chB: bufB}
	merger := NewMerger(buffers, types.Timestamp(100), definition.NewDefaultLogger())

	result := merger.Run(context.Background())

	want := []uint64{1, 5, 15, 20, 102, 103, 108, 109}
	if len(result) != len(want) {
		t.Fatalf("got %d records, want %d: %+v", len(result), len(want), result)
	}
	for i, r := range result {
		if uint64(r.Timestamp) != want[i] {
			t.Errorf("record %d: got timestamp %d, want %d", i, r.Timestamp, want[i])
		}
	}
	for i := 1; i < len(result); i++ {
		if result[i].Timestamp < result[i-1].Timestamp {
			t.Fatalf("merged output not monotonic at index %d: %+v", i, result)
		}
	}
}

func TestMerger_ConservationOfRecordCount(t *testing.T) {
	chA := types.ChannelId(1)
	bufA := newChannelBuffer()
	bufA.Append(0, encodeTimestamps(1, 2, 3, 4))
	bufA.MarkFinished(1)

	buffers := map[types.ChannelId]*channelBuffer{chA: bufA}
	merger := NewMerger(buffers, types.Timestamp(0), definition.NewDefaultLogger())

	result := merger.Run(context.Background())
	if len(result) != 4 {
		t.Fatalf("got %d records, want 4", len(result))
	}
}

func TestMerger_EmptyChannelSetProducesNoRecords(t *testing.T) {
	merger := NewMerger(map[types.ChannelId]*channelBuffer{}, types.Timestamp(0), definition.NewDefaultLogger())
	result := merger.Run(context.Background())
	if len(result) != 0 {
		t.Fatalf("got %d records, want 0", len(result))
	}
}
