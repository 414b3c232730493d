// Package types holds the data model shared by every tcsync component:
// the wire-level entities from the acquisition and synchronization
// protocol, the logger surface components are threaded with, and the
// small configuration structs callers build by hand.
package types

import (
	"time"

	"github.com/google/uuid"
)

// Timestamp is an unsigned instant in the deployment's chosen unit
// (nanoseconds, or picoseconds for TC sub-acquisition widths). The two
// are never mixed: Duration-like quantities coming from the TC use
// PicoDuration, wall-clock instants use Timestamp.
type Timestamp uint64

// PicoDuration is a TC sub-acquisition width or period, always expressed
// in picoseconds. Kept as a distinct type so a pico value is never added
// to a Timestamp without an explicit conversion.
type PicoDuration uint64

// ToTimestamp converts a pico duration to nanoseconds for arithmetic
// against Timestamp values (sub-acquisition offset correction in the
// merger operates in nanoseconds).
func (p PicoDuration) ToTimestamp() Timestamp {
	return Timestamp(uint64(p) / 1000)
}

// ChannelId identifies one TC input channel. The active set for a
// session is a subset chosen by the Master.
type ChannelId uint32

// ChannelRecord pairs a channel with one timestamp emitted on it.
type ChannelRecord struct {
	Channel   ChannelId
	Timestamp Timestamp
}

// AcquisitionId is the opaque identifier DLT hands back from
// start-stream, valid until stop or a DLT error. It is empty in
// fallback mode, where no DLT acquisition exists.
type AcquisitionId string

// UID is an opaque session/request identifier generated locally, never
// parsed, only compared and logged.
type UID string

// NewUID generates a fresh identifier.
func NewUID() UID {
	return UID(uuid.NewString())
}

// TriggerInstant is a host's wall-clock reading at a defined local
// event: Master records it immediately before sending the trigger
// envelope, Slave immediately after decoding it. Both share the
// Timestamp unit.
type TriggerInstant = Timestamp

// SessionConfig is the tuple identifying one acquisition session. Only
// one session may be active per peer at any time.
type SessionConfig struct {
	SessionID string
	Duration  time.Duration
	Channels  []ChannelId
}

// Empty reports whether the channel set is empty, the one condition
// that must be rejected before Configure with a StateError.
func (c SessionConfig) Empty() bool {
	return len(c.Channels) == 0
}

// Logger is the structured logging surface every tcsync component
// takes a reference to. A DefaultLogger (definition package) is used
// when the caller supplies none.
type Logger interface {
	Info(v ...interface{})
	Infof(format string, v ...interface{})
	Warn(v ...interface{})
	Warnf(format string, v ...interface{})
	Error(v ...interface{})
	Errorf(format string, v ...interface{})
	Debug(v ...interface{})
	Debugf(format string, v ...interface{})
	Fatal(v ...interface{})
	Fatalf(format string, v ...interface{})
	Panic(v ...interface{})
	Panicf(format string, v ...interface{})
}
