package core

import (
	"time"

	"github.com/tcsync-project/tcsync/pkg/tcsync/definition"
	"github.com/tcsync-project/tcsync/pkg/tcsync/supervisor"
	"github.com/tcsync-project/tcsync/pkg/tcsync/types"
)

// openStreams allocates one StreamClient per requested channel and
// asks DLT to attach its start-stream source to it. On the first DLT
// failure every stream client opened so far is torn down and the
// error is returned so Run can fall back to direct SCPI collection.
func (p *Pipeline) openStreams(channels []types.ChannelId) (map[types.ChannelId]*channelBuffer, map[types.ChannelId]types.AcquisitionId, error) {
	buffers := make(map[types.ChannelId]*channelBuffer, len(channels))
	acqIDs := make(map[types.ChannelId]types.AcquisitionId, len(channels))
	clients := make(map[types.ChannelId]*StreamClient, len(channels))

	cleanup := func() {
		for _, c := range clients {
			c.Stop()
		}
	}

	for _, ch := range channels {
		client, err := NewStreamClient(ch, p.log)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		clients[ch] = client
		buffers[ch] = client.Buffer()

		id, err := p.dltClient.StartStream(p.localHost, ch, definition.StreamPortBase+int(ch))
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		acqIDs[ch] = id
	}

	p.streamClients = clients
	return buffers, acqIDs, nil
}

// wait cooperatively sleeps out the acquisition duration in small
// slices, emitting 0..100 progress and honoring the cancel flag.
func (p *Pipeline) wait(duration time.Duration, onProgress func(float64)) {
	if duration <= 0 {
		if onProgress != nil {
			onProgress(100)
		}
		return
	}
	slice := definition.WaitSliceInterval
	elapsed := time.Duration(0)
	for elapsed < duration {
		if p.cancel != nil && p.cancel.Load() {
			if onProgress != nil {
				onProgress(100 * float64(elapsed) / float64(duration))
			}
			return
		}
		step := slice
		if remaining := duration - elapsed; remaining < step {
			step = remaining
		}
		time.Sleep(step)
		elapsed += step
		if onProgress != nil {
			onProgress(100 * float64(elapsed) / float64(duration))
		}
	}
}

// stopRecording issues REC:STOP and a best-effort DLT stop per
// channel. DLT stop errors are swallowed: cleanup steps must not fail
// the session.
func (p *Pipeline) stopRecording(acqIDs map[types.ChannelId]types.AcquisitionId) {
	supervisor.BestEffort(p.log, "REC:STOP", p.tcClient.RecStop)
	for ch, id := range acqIDs {
		ch, id := ch, id
		supervisor.BestEffort(p.log, "DLT stop", func() error {
			_, err := p.dltClient.Stop(id)
			return err
		})
		p.log.Debugf("requested stop for channel %d acquisition %s", ch, id)
	}
}

// quiescenceState tracks one channel's progress through the wait.
type quiescenceState struct {
	lastCount    int
	lastChangeAt time.Time
	done         bool
}

// waitQuiescence polls DLT per-channel status at 1Hz until every
// channel is done or a hard cap fires. A channel is done when the TC
// is no longer PLAYING and it has sat at the current max
// acquisitions_count past the natural-inactivity window, or when DLT
// errors on it, or when its inactivity exceeds the timeout.
func (p *Pipeline) waitQuiescence(acqIDs map[types.ChannelId]types.AcquisitionId, configuredTimeout time.Duration) []string {
	var warnings []string
	states := make(map[types.ChannelId]*quiescenceState, len(acqIDs))
	now := time.Now()
	for ch := range acqIDs {
		states[ch] = &quiescenceState{lastChangeAt: now}
	}

	timeout := configuredTimeout
	if timeout <= 0 || timeout > definition.MaxTotalTimeout {
		timeout = definition.MaxTotalTimeout
	}
	maxIterations := definition.MaxQuiescenceIterations(timeout)
	deadline := time.Now().Add(definition.MaxTotalTimeout)

	for iteration := 0; iteration < maxIterations; iteration++ {
		if time.Now().After(deadline) {
			warnings = append(warnings, "quiescence wait hit MAX_TOTAL_TIMEOUT")
			break
		}
		if p.cancel != nil && p.cancel.Load() {
			break
		}

		allDone := true
		maxCount := 0
		for _, st := range states {
			if st.lastCount > maxCount {
				maxCount = st.lastCount
			}
		}
		for ch, id := range acqIDs {
			st := states[ch]
			if st.done {
				continue
			}
			reply, err := p.dltClient.Status(id)
			if err != nil {
				st.done = true
				warnings = append(warnings, err.Error())
				continue
			}
			if reply.AcquisitionsCount != st.lastCount {
				st.lastCount = reply.AcquisitionsCount
				st.lastChangeAt = time.Now()
			}
			inactivity := time.Duration(reply.Inactivity * float64(time.Second))
			stage, stageErr := p.tcClient.RecStage()
			playing := stageErr == nil && stage == "PLAYING"

			isMax := st.lastCount >= maxCount
			if !playing && isMax && time.Since(st.lastChangeAt) > definition.NaturalInactivity {
				st.done = true
			}
			if inactivity > timeout {
				st.done = true
			}
			if !st.done {
				allDone = false
			}
		}
		if allDone {
			break
		}
		time.Sleep(definition.QuiescencePollInterval)
	}
	return warnings
}

// turnOffChannels disables SEND on every channel, best-effort.
func (p *Pipeline) turnOffChannels(channels []types.ChannelId) {
	for _, ch := range channels {
		ch := ch
		supervisor.BestEffort(p.log, "SEND OFF", func() error {
			return p.tcClient.SetSend(ch, false)
		})
	}
}

// closeActiveAcquisitions asks DLT for whatever it still considers
// running and stops each one. Every error here is ignored
// categorically: the DLT is another process, and remediating it is out
// of scope. An acquisition that refuses to stop is recorded and left
// behind.
func (p *Pipeline) closeActiveAcquisitions() {
	ids, err := p.dltClient.List()
	if err != nil {
		p.log.Warnf("DLT list during cleanup failed, skipping: %v", err)
		return
	}
	for _, id := range ids {
		id := id
		supervisor.BestEffort(p.log, "DLT stop "+id, func() error {
			_, err := p.dltClient.Stop(types.AcquisitionId(id))
			return err
		})
	}
}
