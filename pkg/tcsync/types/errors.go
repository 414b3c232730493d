package types

import (
	"errors"
	"fmt"
)

// Sentinel errors for conditions with no further context to carry.
var (
	// ErrEmptyChannelSet is a StateError: Configure was asked to run
	// with no active channels.
	ErrEmptyChannelSet = errors.New("tcsync: empty channel set")

	// ErrSessionBusy is a StateError: a session is already active on
	// this peer.
	ErrSessionBusy = errors.New("tcsync: acquisition session already active")

	// ErrNotReady is the reply error string used when a command
	// arrives in the wrong phase (e.g. request_partial before the
	// local acquisition has completed).
	ErrNotReady = errors.New("not-ready")
)

// TransportError wraps a socket send/recv failure or timeout on a peer
// link. One retry is permitted on the command link only; every other
// link propagates the first failure.
type TransportError struct {
	Link string
	Err  error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("tcsync: transport error on %s link: %v", e.Link, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// TcError wraps a failed SCPI exchange with the Time Controller: no
// reply within timeout, or a non-empty error response.
type TcError struct {
	Command string
	Err     error
}

func (e *TcError) Error() string {
	return fmt.Sprintf("tcsync: TC command %q failed: %v", e.Command, e.Err)
}

func (e *TcError) Unwrap() error { return e.Err }

// DltError wraps a DLT reply carrying an error document, or a DLT
// request that timed out.
type DltError struct {
	Command     string
	Description string
	Err         error
}

func (e *DltError) Error() string {
	if e.Description != "" {
		return fmt.Sprintf("tcsync: DLT command %q failed: %s", e.Command, e.Description)
	}
	return fmt.Sprintf("tcsync: DLT command %q failed: %v", e.Command, e.Err)
}

func (e *DltError) Unwrap() error { return e.Err }

// ParseError wraps a malformed envelope or TC response token. Callers
// must log and skip the offending record, never abort the session.
type ParseError struct {
	Context string
	Token   string
	Err     error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("tcsync: parse error in %s for token %q: %v", e.Context, e.Token, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// StateError reports a command received in the wrong phase. The
// handler must reply success:false, error:"not-ready" without
// mutating any state.
type StateError struct {
	Phase string
	Err   error
}

func (e *StateError) Error() string {
	return fmt.Sprintf("tcsync: state error in phase %s: %v", e.Phase, e.Err)
}

func (e *StateError) Unwrap() error { return e.Err }

// SupervisionTimeout reports that a hard cap fired. The affected loop
// is force-exited and its outputs are treated as best-effort.
type SupervisionTimeout struct {
	Stage string
	Cap   string
}

func (e *SupervisionTimeout) Error() string {
	return fmt.Sprintf("tcsync: supervision timeout in %s (cap %s)", e.Stage, e.Cap)
}
