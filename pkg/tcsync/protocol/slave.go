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
	"github.com/tcsync-project/tcsync/pkg/tcsync/types"
)

// Slave is the following role of the distributed state machine: it
// waits for the Master's trigger, runs its own acquisition pipeline,
// and serves the Master's follow-up RPCs from the retained dataset.
type Slave struct {
	log       types.Logger
	addrs     Addrs
	tcClient  *tc.Client
	dltClient *dlt.Client
	localHost string
	widthPs   uint64

	trigger    *core.TriggerLink
	syncPush   *core.PushClient
	statusPush *core.PushClient
	filePush   *core.PushClient
	cmdServer  *core.CommandServer

	dataset *retainedDataset
	cancel  *atomic.Bool
	group   *supervisor.Group
}

// NewSlave wires a Slave to its peer addresses and local TC/DLT
// clients. The command server starts listening immediately; the
// trigger subscription is established by the caller passing a
// TriggerLink already bound to addrs.TriggerGroup.
func NewSlave(trigger *core.TriggerLink, addrs Addrs, tcClient *tc.Client, dltClient *dlt.Client, localHost string, log types.Logger) (*Slave, error) {
	s := &Slave{
		log:        log,
		addrs:      addrs,
		tcClient:   tcClient,
		dltClient:  dltClient,
		localHost:  localHost,
		widthPs:    definition.DefaultSubAcquisitionWidthPs,
		trigger:    trigger,
		syncPush:   core.NewPushClient(log),
		statusPush: core.NewPushClient(log),
		filePush:   core.NewPushClient(log),
		dataset:    newRetainedDataset(),
		cancel:     &atomic.Bool{},
		group:      supervisor.NewGroup(log),
	}

	cmdServer, err := core.NewCommandServer(addrs.SlaveCommand, log, s.handleCommand)
	if err != nil {
		return nil, err
	}
	s.cmdServer = cmdServer
	return s, nil
}

// Run blocks through one trigger/acquisition cycle and the Master's
// request window that follows it, then shuts every link down. The
// command server keeps answering data requests after the acquisition
// completes until a stop RPC arrives, ctx is cancelled, or the global
// termination cap forces the issue.
func (s *Slave) Run(ctx context.Context) Outcome {
	s.dataset.setPhase(slaveWaitingForTrigger)
	acquired := make(chan bool, 1)

	s.group.Go("trigger-listener", func() {
		select {
		case <-ctx.Done():
			acquired <- false
		case env, ok := <-s.trigger.Listen():
			if !ok {
				acquired <- false
				return
			}
			if env.Type != types.EnvelopeTrigger {
				s.log.Warnf("slave: ignoring unexpected envelope type %q on trigger link", env.Type)
				acquired <- false
				return
			}
			acquired <- s.onTrigger(ctx, env)
		}
	})

	var produced bool
	select {
	case produced = <-acquired:
	case <-ctx.Done():
	}

	// WaitingForRequests: stay up serving the Master's data requests.
	// The cap bounds how long after acquisition completion this peer
	// may live, however unresponsive the Master is.
	capTimer := time.NewTimer(definition.PeerTerminationCap)
	defer capTimer.Stop()
wait:
	for {
		select {
		case <-ctx.Done():
			break wait
		case <-capTimer.C:
			s.log.Warnf("slave: forcing shutdown at peer termination cap")
			break wait
		case <-time.After(definition.WaitSliceInterval):
			if s.cancel.Load() {
				break wait
			}
		}
	}

	s.shutdown()
	return Outcome{DatasetProduced: produced}
}

// onTrigger records T_slave, pushes the slave_trigger envelope, runs
// the local acquisition pipeline, and retains the results for the
// Master's follow-up requests. T_slave is taken before any other
// action; it and the Master's instant are the sole anchors of coarse
// synchronization.
func (s *Slave) onTrigger(ctx context.Context, env types.Envelope) bool {
	tSlave := types.Timestamp(time.Now().UnixNano())
	s.dataset.setPhase(slaveAcquiring)

	ackEnv := types.Envelope{
		Type:      types.EnvelopeSlaveTrigger,
		Sequence:  env.Sequence,
		Timestamp: tSlave,
	}
	if err := s.syncPush.PushEnvelope(s.addrs.MasterSync, ackEnv); err != nil {
		s.log.Warnf("slave: failed to push slave_trigger: %v", err)
	}

	cfg := types.SessionConfig{
		SessionID: string(types.NewUID()),
		Duration:  time.Duration(env.Duration * float64(time.Second)),
		Channels:  env.Channels,
	}
	s.log.Infof("slave: trigger received, session %s: duration=%s channels=%v", cfg.SessionID, cfg.Duration, cfg.Channels)

	pipeline := core.NewPipeline(s.tcClient, s.dltClient, s.localHost, s.log, s.cancel)
	result, err := pipeline.Run(ctx, cfg, s.widthPs, func(progress float64) {
		s.dataset.setProgress(progress)
		s.emitHeartbeat(tSlave, progress)
	})
	if err != nil {
		s.log.Errorf("slave: acquisition failed: %v", err)
		s.dataset.setPhase(slaveDone)
		return false
	}

	s.dataset.store(result.Records, definition.DefaultPartialFraction, definition.MinPartialRecords)
	return len(result.Records) > 0
}

func (s *Slave) emitHeartbeat(tSlave types.Timestamp, progress float64) {
	env := types.Envelope{
		Type:             types.EnvelopeHeartbeat,
		Timestamp:        types.Timestamp(time.Now().UnixNano()),
		State:            "acquiring",
		Progress:         progress,
		TriggerTimestamp: tSlave,
	}
	if err := s.statusPush.PushEnvelope(s.addrs.MasterStatus, env); err != nil {
		s.log.Debugf("slave: heartbeat push failed: %v", err)
	}
}

// handleCommand answers every command-link RPC synchronously.
func (s *Slave) handleCommand(req types.Envelope) types.Envelope {
	switch req.Command {
	case types.CmdRequestReady:
		readyEnv := types.Envelope{Type: types.EnvelopeReady, Sequence: req.Sequence}
		if err := s.syncPush.PushEnvelope(s.addrs.MasterSync, readyEnv); err != nil {
			s.log.Warnf("slave: failed to push ready: %v", err)
		}
		return okReply(req)

	case types.CmdRequestPartial:
		return s.serveFile(req, types.CmdRequestPartial)
	case types.CmdRequestFull:
		return s.serveFile(req, types.CmdRequestFull)
	case types.CmdRequestText:
		return s.serveFile(req, types.CmdRequestText)

	case types.CmdStatus:
		phase, progress := s.dataset.status()
		resp := okReply(req)
		resp.Data = map[string]interface{}{
			"state":    phase.String(),
			"progress": progress,
		}
		return resp

	case types.CmdStop:
		s.cancel.Store(true)
		return okReply(req)

	default:
		s.log.Warnf("slave: unknown command %q", req.Command)
		return errorReply(req, "unknown-command")
	}
}

// serveFile serializes the requested retained dataset to a temporary
// file, pushes the bytes on the file link, replies, and deletes the
// temporary file. Nothing is ever sent before an explicit request, so
// a closed Master socket never swallows a file silently.
func (s *Slave) serveFile(req types.Envelope, which types.CommandName) types.Envelope {
	records, ready := s.dataset.snapshot(which)
	if !ready {
		return errorReply(req, types.ErrNotReady.Error())
	}

	data := core.EncodeBinary(records)
	if which == types.CmdRequestText {
		data = core.EncodeText(records)
	}

	tmp, err := os.CreateTemp("", "tcsync-slave-*.bin")
	if err != nil {
		return errorReply(req, err.Error())
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errorReply(req, err.Error())
	}
	tmp.Close()

	if err := s.filePush.PushFile(s.addrs.MasterFile, data); err != nil {
		return errorReply(req, err.Error())
	}
	return okReply(req)
}

func (s *Slave) shutdown() {
	s.dataset.setPhase(slaveDone)
	s.trigger.Close()
	s.cmdServer.Close()
	s.group.ShutdownWithin(definition.JoinDeadline)
}

func okReply(req types.Envelope) types.Envelope {
	return types.Envelope{
		Type:     types.EnvelopeResponse,
		Sequence: req.Sequence,
		Command:  req.Command,
		Success:  true,
	}
}

func errorReply(req types.Envelope, reason string) types.Envelope {
	return types.Envelope{
		Type:     types.EnvelopeResponse,
		Sequence: req.Sequence,
		Command:  req.Command,
		Success:  false,
		Error:    reason,
	}
}
