package core

import (
	"context"
	"encoding/binary"
	"sort"
	"time"

	"github.com/tcsync-project/tcsync/pkg/tcsync/types"
)

// Merger reads a set of per-channel buffers and emits a single ordered
// ChannelRecord sequence from them. It holds shared, read-only views
// into each channel's buffer; the buffers themselves are owned by the
// stream clients that append to them.
type Merger struct {
	channels map[types.ChannelId]*channelBuffer
	order    []types.ChannelId
	period   types.Timestamp
	log      types.Logger
}

// NewMerger creates a merger over the given channel buffers. period is
// the sub-acquisition period already converted to the deployment's
// timestamp unit; every timestamp in batch i has i*period added to it
// before merging, the single place sub-acquisition indexing leaks into
// timestamps.
func NewMerger(buffers map[types.ChannelId]*channelBuffer, period types.Timestamp, log types.Logger) *Merger {
	order := make([]types.ChannelId, 0, len(buffers))
	for ch := range buffers {
		order = append(order, ch)
	}
	sort.Slice(order, func(i, j int) bool { return order[i] < order[j] })

	return &Merger{
		channels: buffers,
		order:    order,
		period:   period,
		log:      log,
	}
}

// Run consumes batches in index order until every channel is finished
// and exhausted, or ctx is cancelled. It never emits a record from
// batch i+1 before batch i is fully drained.
func (m *Merger) Run(ctx context.Context) []types.ChannelRecord {
	var result []types.ChannelRecord
	index := 0
	for {
		select {
		case <-ctx.Done():
			return result
		default:
		}

		batches, ready, allDone := m.collect(index)
		if allDone {
			return result
		}
		if !ready {
			select {
			case <-ctx.Done():
				return result
			case <-time.After(5 * time.Millisecond):
			}
			continue
		}

		result = append(result, m.mergeBatch(index, batches)...)
		for ch := range batches {
			m.channels[ch].Free(index)
		}
		index++
	}
}

// collect gathers batch index across every live channel. ready is true
// only once every still-live channel has delivered this index. allDone
// is true once no channel is live at this index any more (merge complete).
func (m *Merger) collect(index int) (map[types.ChannelId]Message, bool, bool) {
	batches := make(map[types.ChannelId]Message)
	live := 0
	for _, ch := range m.order {
		if total, done := m.channels[ch].Total(); done && total <= index {
			continue // channel exhausted, no longer live at this index
		}
		live++
		if msg, ok := m.channels[ch].TryGet(index); ok {
			batches[ch] = msg
		}
	}
	if live == 0 {
		return nil, false, true
	}
	return batches, len(batches) == live, false
}

// mergeBatch applies the sub-acquisition offset correction and
// produces the ordered ChannelRecord run for one batch index. Within a
// single channel the original order is preserved; ties across
// channels are broken by ascending channel id, a deterministic
// stand-in for arrival order.
func (m *Merger) mergeBatch(index int, batches map[types.ChannelId]Message) []types.ChannelRecord {
	offset := types.Timestamp(uint64(index) * uint64(m.period))
	var entries []types.ChannelRecord
	for _, ch := range m.order {
		msg, ok := batches[ch]
		if !ok {
			continue
		}
		n := msg.Count()
		for i := 0; i < n; i++ {
			raw := binary.LittleEndian.Uint64(msg[i*8 : i*8+8])
			entries = append(entries, types.ChannelRecord{
				Channel:   ch,
				Timestamp: types.Timestamp(raw) + offset,
			})
		}
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Timestamp < entries[j].Timestamp
	})
	return entries
}
