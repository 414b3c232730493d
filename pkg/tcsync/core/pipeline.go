package core

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/tcsync-project/tcsync/internal/dlt"
	"github.com/tcsync-project/tcsync/internal/tc"
	"github.com/tcsync-project/tcsync/pkg/tcsync/definition"
	"github.com/tcsync-project/tcsync/pkg/tcsync/supervisor"
	"github.com/tcsync-project/tcsync/pkg/tcsync/types"
)

// PipelineResult is what one acquisition session produces.
type PipelineResult struct {
	Records      []types.ChannelRecord
	UsedFallback bool
	Warnings     []string
}

// Pipeline drives one host's Time Controller through a bounded session
// and produces a single merged timestamp sequence. Its state machine
// is Idle, Configuring, Streaming, Stopping, Quiescing, Done, with
// terminal error transitions possible from every non-terminal state.
// It is modeled as early returns rather than an explicit state enum,
// since every step either advances or aborts.
type Pipeline struct {
	log       types.Logger
	tcClient  *tc.Client
	dltClient *dlt.Client
	localHost string

	cancel *atomic.Bool
	group  *supervisor.Group

	streamClients map[types.ChannelId]*StreamClient
}

// NewPipeline wires one pipeline run to its TC and DLT clients.
func NewPipeline(tcClient *tc.Client, dltClient *dlt.Client, localHost string, log types.Logger, cancel *atomic.Bool) *Pipeline {
	return &Pipeline{
		log:       log,
		tcClient:  tcClient,
		dltClient: dltClient,
		localHost: localHost,
		cancel:    cancel,
		group:     supervisor.NewGroup(log),
	}
}

// Run executes the full acquisition sequence for cfg, invoking
// onProgress with 0..100 roughly every 100ms while waiting out the
// duration. If DLT fails during stream setup, the pipeline falls back
// to direct SCPI collection and the returned result carries
// UsedFallback=true.
func (p *Pipeline) Run(ctx context.Context, cfg types.SessionConfig, widthPs uint64, onProgress func(float64)) (*PipelineResult, error) {
	if cfg.Empty() {
		return nil, &types.StateError{Phase: "Configure", Err: types.ErrEmptyChannelSet}
	}

	periodPs := widthPs + uint64(definition.SubAcquisitionGuard.Nanoseconds())*1000
	if err := p.configure(cfg.Channels, widthPs, periodPs); err != nil {
		return nil, err
	}

	buffers, acqIDs, err := p.openStreams(cfg.Channels)
	if err != nil {
		p.log.Warnf("stream setup failed, falling back to direct SCPI collection: %v", err)
		records := FallbackCollect(p.tcClient, cfg.Channels, p.log)
		return &PipelineResult{Records: records, UsedFallback: true}, nil
	}

	period := types.PicoDuration(periodPs).ToTimestamp()
	merger := NewMerger(buffers, period, p.log)
	mergerCtx, stopMerger := context.WithCancel(ctx)
	defer stopMerger()
	mergedCh := make(chan []types.ChannelRecord, 1)
	p.group.Go("merger", func() {
		mergedCh <- merger.Run(mergerCtx)
	})

	if err := p.tcClient.RecPlay(); err != nil {
		for _, client := range p.streamClients {
			client.Stop()
		}
		p.group.ShutdownWithin(definition.JoinDeadline)
		return nil, &types.TcError{Command: "REC:PLAY", Err: err}
	}

	p.wait(cfg.Duration, onProgress)

	p.stopRecording(acqIDs)
	warnings := p.waitQuiescence(acqIDs, cfg.Duration)
	p.turnOffChannels(cfg.Channels)
	p.closeActiveAcquisitions()

	for _, client := range p.streamClients {
		client.Stop()
	}
	p.group.ShutdownWithin(definition.JoinDeadline)

	var records []types.ChannelRecord
	select {
	case records = <-mergedCh:
	case <-time.After(definition.JoinDeadline):
		p.log.Warnf("merger did not finish within join deadline, using partial output")
		stopMerger()
		records = <-mergedCh
	}

	return &PipelineResult{Records: records, Warnings: warnings}, nil
}

func (p *Pipeline) configure(channels []types.ChannelId, widthPs, periodPs uint64) error {
	for _, ch := range channels {
		if err := p.tcClient.RefLinkNone(ch); err != nil {
			return &types.TcError{Command: "REF:LINK", Err: err}
		}
		if err := p.tcClient.ErrorsClear(ch); err != nil {
			return &types.TcError{Command: "ERRORS:CLEAR", Err: err}
		}
	}
	if err := p.tcClient.TrigArmModeManual(); err != nil {
		return &types.TcError{Command: "TRIG:ARM:MODE", Err: err}
	}
	if err := p.tcClient.RecEnable(true); err != nil {
		return &types.TcError{Command: "ENABle", Err: err}
	}
	if err := p.tcClient.RecStop(); err != nil {
		return &types.TcError{Command: "STOP", Err: err}
	}
	if err := p.tcClient.RecNumInf(); err != nil {
		return &types.TcError{Command: "NUM", Err: err}
	}
	if err := p.tcClient.RecPeriod(widthPs, periodPs); err != nil {
		return &types.TcError{Command: "PWID/PPER", Err: err}
	}
	for _, ch := range channels {
		if err := p.tcClient.SetSend(ch, true); err != nil {
			return &types.TcError{Command: "SEND", Err: err}
		}
	}
	return nil
}
