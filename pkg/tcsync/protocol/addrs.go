// Package protocol implements the distributed Master/Slave state
// machine that drives two hosts' acquisition pipelines through a
// common trigger instant and reconciles their results through the
// synchronization engine.
package protocol

// Addrs is the set of endpoints one Master/Slave pair agrees on ahead
// of time (by configuration, not negotiation) for the four TCP-backed
// peer links. The trigger link instead uses a shared relt group
// address, since it is a publish/subscribe broadcast rather than an
// addressed link.
type Addrs struct {
	// TriggerGroup is the relt exchange/group address both peers join
	// for the trigger link.
	TriggerGroup string

	// SlaveCommand is the Slave's command-link listen address; the
	// Master dials it for every RPC.
	SlaveCommand string

	// MasterSync is the Master's sync-link listen address; the Slave
	// pushes its "ready" and "slave_trigger" envelopes there.
	MasterSync string

	// MasterStatus is the Master's status-link listen address; the
	// Slave pushes heartbeats there.
	MasterStatus string

	// MasterFile is the Master's file-link listen address; the Slave
	// pushes file payloads there.
	MasterFile string
}
