package definition

import "time"

// Protocol-wide timing and size constants. Kept centralized so every
// component reads the same cap instead of a locally copied literal.
const (
	// LinkSendRecvTimeout is the default send/receive timeout on every
	// peer link.
	LinkSendRecvTimeout = 5 * time.Second

	// FileRecvTimeout is the per-message poll timeout on the file
	// link.
	FileRecvTimeout = 2 * time.Second

	// FileReceiverWallClock bounds the Master's file-receiver task
	// regardless of how many messages arrived.
	FileReceiverWallClock = 20 * time.Second

	// FileReceiverMaxMessages is the number of file-link messages the
	// Master accepts per session before ignoring further ones.
	FileReceiverMaxMessages = 3

	// FileSizeFullThreshold is the size in bytes at or above which a
	// received file is classified as the full slave dataset rather
	// than the partial sample.
	FileSizeFullThreshold = 100 * 1024

	// PartialWaitTimeout bounds how long Master waits for the
	// partial-data file after issuing request_partial.
	PartialWaitTimeout = 15 * time.Second

	// SubAcquisitionGuard is the fixed guard added to the requested
	// sub-acquisition width to derive its period.
	SubAcquisitionGuard = 40 * time.Nanosecond

	// QuiescencePollInterval is the DLT status poll frequency during
	// quiescence wait.
	QuiescencePollInterval = 1 * time.Second

	// NaturalInactivity is the "no new events" duration that lets the
	// supervisor declare an infinite-run channel done.
	NaturalInactivity = 1 * time.Second

	// MaxTotalTimeout is the hard cap on the quiescence wait.
	MaxTotalTimeout = 30 * time.Second

	// WaitSliceInterval is the cooperative sleep granularity used
	// while waiting out the acquisition duration.
	WaitSliceInterval = 100 * time.Millisecond

	// JoinDeadline is the default bounded-join deadline for worker
	// tasks during shutdown.
	JoinDeadline = 2 * time.Second

	// PeerTerminationCap is the hard, global, per-peer cap: the peer
	// must terminate within this long of acquisition completion.
	PeerTerminationCap = 60 * time.Second

	// StreamPortBase is added to a ChannelId to derive the well-known
	// local endpoint a per-channel streaming client binds to.
	StreamPortBase = 47000

	// DefaultPartialFraction is the default fraction of a merged
	// dataset retained as the partial sample.
	DefaultPartialFraction = 0.10

	// MinPartialRecords is the floor applied to the partial fraction.
	MinPartialRecords = 10

	// DefaultSubAcquisitionWidthPs is the sub-acquisition width used
	// when a deployment does not override it. Both peers configure
	// their own TC independently with this value; the trigger envelope
	// carries only duration and channels, never the width.
	DefaultSubAcquisitionWidthPs = 1_000_000

	// ReadyWaitTimeout bounds how long Master waits for the Slave's
	// "ready" push after request_ready.
	ReadyWaitTimeout = 5 * time.Second

	// TriggerWaitTimeout bounds how long Master waits for the
	// slave_trigger push after publishing the trigger envelope.
	TriggerWaitTimeout = 5 * time.Second
)

// MaxQuiescenceIterations returns the iteration cap for a given
// configured timeout: floor(timeout/sleep)+10.
func MaxQuiescenceIterations(timeout time.Duration) int {
	return int(timeout/QuiescencePollInterval) + 10
}
