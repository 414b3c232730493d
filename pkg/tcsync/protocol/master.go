package protocol

import (
	"context"
	"os"
	"sync/atomic"
	"time"

	"github.com/tcsync-project/tcsync/internal/dlt"
	"github.com/tcsync-project/tcsync/internal/tc"
	"github.com/tcsync-project/tcsync/pkg/tcsync/core"
	"github.com/tcsync-project/tcsync/pkg/tcsync/definition"
	"github.com/tcsync-project/tcsync/pkg/tcsync/supervisor"
	"github.com/tcsync-project/tcsync/pkg/tcsync/sync"
	"github.com/tcsync-project/tcsync/pkg/tcsync/types"
)

// Master is the leading role of the distributed state machine: it
// probes the Slave's readiness, distributes a common trigger instant,
// runs its own acquisition, collects the Slave's partial/full/text
// artefacts, and hands the result to the synchronization engine.
type Master struct {
	log       types.Logger
	addrs     Addrs
	tcClient  *tc.Client
	dltClient *dlt.Client
	localHost string
	widthPs   uint64

	paths          types.SessionPaths
	correctionMode types.CorrectionMode

	trigger    *core.TriggerLink
	cmdClient  *core.CommandClient
	syncPull   *core.PullServer
	statusPull *core.PullServer

	cancel *atomic.Bool
	active atomic.Bool
	group  *supervisor.Group
}

// NewMaster wires a Master to its peer addresses, local TC/DLT
// clients, and the session's artefact paths.
func NewMaster(trigger *core.TriggerLink, addrs Addrs, tcClient *tc.Client, dltClient *dlt.Client, localHost string, paths types.SessionPaths, correctionMode types.CorrectionMode, log types.Logger) (*Master, error) {
	syncPull, err := core.NewPullServer(addrs.MasterSync, log, false)
	if err != nil {
		return nil, err
	}
	statusPull, err := core.NewPullServer(addrs.MasterStatus, log, false)
	if err != nil {
		syncPull.Close()
		return nil, err
	}

	return &Master{
		log:            log,
		addrs:          addrs,
		tcClient:       tcClient,
		dltClient:      dltClient,
		localHost:      localHost,
		widthPs:        definition.DefaultSubAcquisitionWidthPs,
		paths:          paths,
		correctionMode: correctionMode,
		trigger:        trigger,
		cmdClient:      core.NewCommandClient(log),
		syncPull:       syncPull,
		statusPull:     statusPull,
		cancel:         &atomic.Bool{},
		group:          supervisor.NewGroup(log),
	}, nil
}

// Run executes the full Master sequence for cfg and returns once a
// dataset has been produced (or definitively has not been).
func (m *Master) Run(ctx context.Context, cfg types.SessionConfig) (Outcome, error) {
	if cfg.Empty() {
		return Outcome{}, &types.StateError{Phase: "Probe", Err: types.ErrEmptyChannelSet}
	}
	if !m.active.CompareAndSwap(false, true) {
		return Outcome{}, &types.StateError{Phase: "Probe", Err: types.ErrSessionBusy}
	}
	defer m.active.Store(false)
	if cfg.SessionID == "" {
		cfg.SessionID = string(types.NewUID())
	}
	m.log.Infof("starting acquisition session %s: duration=%s channels=%v", cfg.SessionID, cfg.Duration, cfg.Channels)
	var warnings []string

	// Phase 1: probe readiness.
	readyReq := types.Envelope{Type: types.EnvelopeCommand, Command: types.CmdRequestReady, Sequence: 1}
	if _, err := m.cmdClient.Call(ctx, m.addrs.SlaveCommand, readyReq); err != nil {
		return Outcome{}, err
	}
	if _, ok := m.waitEnvelope(ctx, m.syncPull, types.EnvelopeReady, definition.ReadyWaitTimeout); !ok {
		warnings = append(warnings, "slave did not confirm ready within timeout")
	}

	// Phase 2: send trigger. T_master must be read before the envelope
	// leaves the publish link; it and T_slave are the sole anchors of
	// coarse synchronization.
	tMaster := types.Timestamp(time.Now().UnixNano())
	trigger := types.Envelope{
		Type:      types.EnvelopeTrigger,
		Sequence:  1,
		Timestamp: tMaster,
		Duration:  cfg.Duration.Seconds(),
		Channels:  cfg.Channels,
	}
	if err := m.trigger.Publish(ctx, trigger); err != nil {
		return Outcome{}, &types.TransportError{Link: "trigger", Err: err}
	}

	// Phase 3: receive the slave's trigger instant, compute Δ₀.
	if env, ok := m.waitEnvelope(ctx, m.syncPull, types.EnvelopeSlaveTrigger, definition.TriggerWaitTimeout); ok {
		coarseOffset := int64(env.Timestamp) - int64(tMaster)
		m.log.Infof("coarse offset delta0 = %d ns", coarseOffset)
	} else {
		warnings = append(warnings, "no slave_trigger received, coarse offset unavailable")
	}

	statusCtx, statusCancel := context.WithCancel(ctx)
	m.group.Go("status-receiver", func() { m.receiveStatus(statusCtx) })

	// Phase 4: run the local acquisition in parallel with the Slave's.
	pipeline := core.NewPipeline(m.tcClient, m.dltClient, m.localHost, m.log, m.cancel)
	result, err := pipeline.Run(ctx, cfg, m.widthPs, nil)
	statusCancel()
	if err != nil {
		m.shutdown()
		return Outcome{}, err
	}
	warnings = append(warnings, result.Warnings...)

	if err := core.WriteBinary(m.paths.MasterBinary(), result.Records); err != nil {
		warnings = append(warnings, err.Error())
	}
	if err := core.WriteText(m.paths.MasterText(), result.Records); err != nil {
		warnings = append(warnings, err.Error())
	}

	// Everything from here on is bounded by the global per-peer
	// termination cap.
	boundedCtx, boundedCancel := context.WithTimeout(ctx, definition.PeerTerminationCap)
	defer boundedCancel()

	partialRecords, moreWarnings := m.collectSlaveFiles(boundedCtx)
	warnings = append(warnings, moreWarnings...)

	report := m.synchronize(result.Records, partialRecords)
	report.Warnings = append(report.Warnings, warnings...)
	if err := os.WriteFile(m.paths.SyncReport(), []byte(report.Render()), 0o644); err != nil {
		m.log.Warnf("failed to write sync report: %v", err)
	}

	m.shutdown()
	return Outcome{DatasetProduced: len(result.Records) > 0, Warnings: warnings}, nil
}

// collectSlaveFiles implements Master phases 5-6: start the bounded
// file receiver, issue request_partial and wait up to
// PartialWaitTimeout for the partial bytes, then request full and
// text, never blocking further than a short drain window.
func (m *Master) collectSlaveFiles(ctx context.Context) ([]types.ChannelRecord, []string) {
	var warnings []string

	receiver, err := NewFileReceiver(m.addrs.MasterFile, m.log)
	if err != nil {
		return nil, append(warnings, err.Error())
	}
	receiverCtx, receiverCancel := context.WithCancel(ctx)
	defer receiverCancel()
	defer receiver.Close()
	m.group.Go("file-receiver", func() { receiver.Run(receiverCtx) })

	partialReq := types.Envelope{Type: types.EnvelopeCommand, Command: types.CmdRequestPartial, Sequence: 2}
	if _, err := m.cmdClient.Call(ctx, m.addrs.SlaveCommand, partialReq); err != nil {
		warnings = append(warnings, "request_partial RPC failed: "+err.Error())
	}

	var partial []types.ChannelRecord
	havePartial := false
	partialCount := 0
	partialDeadline := time.NewTimer(definition.PartialWaitTimeout)
	defer partialDeadline.Stop()

waitPartial:
	for {
		select {
		case ev, ok := <-receiver.Events():
			if !ok {
				break waitPartial
			}
			if ev.class == classPartial {
				partial = ev.records
				havePartial = true
				partialCount++
				if err := os.WriteFile(m.paths.PartialData(partialCount), ev.bytes, 0o644); err != nil {
					warnings = append(warnings, err.Error())
				}
				break waitPartial
			}
		case <-partialDeadline.C:
			break waitPartial
		case <-ctx.Done():
			break waitPartial
		}
	}
	if !havePartial {
		warnings = append(warnings, "no partial data received within wait timeout")
	}

	// Full/text are only requested after the local acquisition has
	// completed and been persisted; collectSlaveFiles never runs
	// earlier, so the receiver cannot race the local pipeline.
	fullReq := types.Envelope{Type: types.EnvelopeCommand, Command: types.CmdRequestFull, Sequence: 3}
	if _, err := m.cmdClient.Call(ctx, m.addrs.SlaveCommand, fullReq); err != nil {
		warnings = append(warnings, "request_full RPC failed: "+err.Error())
	}
	textReq := types.Envelope{Type: types.EnvelopeCommand, Command: types.CmdRequestText, Sequence: 4}
	if _, err := m.cmdClient.Call(ctx, m.addrs.SlaveCommand, textReq); err != nil {
		warnings = append(warnings, "request_text RPC failed: "+err.Error())
	}

	// Best-effort short drain so full/text artefacts land on disk when
	// they arrive promptly; the session does not wait the full 20 s
	// wall clock for them since only the partial gates synchronization.
	drainDeadline := time.NewTimer(2 * time.Second)
	defer drainDeadline.Stop()
drain:
	for {
		select {
		case ev, ok := <-receiver.Events():
			if !ok {
				break drain
			}
			switch ev.class {
			case classFull:
				if err := os.WriteFile(m.paths.SlaveBinary(), ev.bytes, 0o644); err != nil {
					warnings = append(warnings, err.Error())
				}
			case classText:
				if err := os.WriteFile(m.paths.SlaveText(), ev.bytes, 0o644); err != nil {
					warnings = append(warnings, err.Error())
				}
			}
		case <-drainDeadline.C:
			break drain
		case <-ctx.Done():
			break drain
		}
	}

	return partial, warnings
}

// synchronize runs the offset computation against the received
// partial, or emits an "insufficient data" report if none arrived.
func (m *Master) synchronize(masterRecords, partialRecords []types.ChannelRecord) types.OffsetReport {
	if len(partialRecords) == 0 {
		return types.OffsetReport{GeneratedAt: time.Now(), InsufficientData: true}
	}

	cfg := sync.Config{Mode: m.correctionMode, Paths: m.paths}
	res, err := sync.ComputeReport(masterRecords, partialRecords, cfg, time.Now())
	if err != nil {
		m.log.Errorf("synchronization failed: %v", err)
		return types.OffsetReport{GeneratedAt: time.Now(), InsufficientData: true}
	}
	if err := sync.WriteCorrected(cfg, res); err != nil {
		m.log.Warnf("failed to write corrected dataset: %v", err)
	}
	return res.Report
}

func (m *Master) receiveStatus(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case env, ok := <-m.statusPull.Envelopes():
			if !ok {
				return
			}
			m.log.Debugf("slave status: state=%s progress=%.1f", env.State, env.Progress)
		}
	}
}

// waitEnvelope blocks for the next envelope of the given type, up to
// timeout. Envelopes of any other type are logged and dropped.
func (m *Master) waitEnvelope(ctx context.Context, pull *core.PullServer, want types.EnvelopeType, timeout time.Duration) (types.Envelope, bool) {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	for {
		select {
		case <-ctx.Done():
			return types.Envelope{}, false
		case <-deadline.C:
			return types.Envelope{}, false
		case env, ok := <-pull.Envelopes():
			if !ok {
				return types.Envelope{}, false
			}
			if env.Type == want {
				return env, true
			}
			m.log.Debugf("waitEnvelope: ignoring envelope type %q while waiting for %q", env.Type, want)
		}
	}
}

func (m *Master) shutdown() {
	m.trigger.Close()
	m.syncPull.Close()
	m.statusPull.Close()
	m.group.ShutdownWithin(definition.JoinDeadline)
}
