package types

// EnvelopeType is the explicit discriminant every control envelope
// carries. Receivers treat an unknown type as a logged no-op rather
// than an error.
type EnvelopeType string

const (
	EnvelopeTrigger      EnvelopeType = "trigger"
	EnvelopeSlaveTrigger EnvelopeType = "slave_trigger"
	EnvelopeCommand      EnvelopeType = "command"
	EnvelopeResponse     EnvelopeType = "response"
	EnvelopeStatus       EnvelopeType = "status"
	EnvelopeHeartbeat    EnvelopeType = "heartbeat"
	EnvelopeReady        EnvelopeType = "ready"
)

// CommandName enumerates the named RPCs carried by the command link.
type CommandName string

const (
	CmdRequestReady   CommandName = "request_ready"
	CmdRequestPartial CommandName = "request_partial"
	CmdRequestFull    CommandName = "request_full"
	CmdRequestText    CommandName = "request_text"
	CmdStatus         CommandName = "status"
	CmdStop           CommandName = "stop"
)

// Envelope is the single wire shape for every control message across
// the five peer links. Every field besides the ones relevant to Type
// is left at its zero value; receivers switch on Type and read only
// the fields that variant defines.
type Envelope struct {
	Type      EnvelopeType           `json:"type"`
	Sequence  uint32                 `json:"sequence"`
	Timestamp Timestamp              `json:"timestamp"`

	// trigger
	Duration float64     `json:"duration,omitempty"`
	Channels []ChannelId `json:"channels,omitempty"`

	// command
	Command CommandName            `json:"command,omitempty"`
	Params  map[string]interface{} `json:"params,omitempty"`

	// response; Success is always serialized so a failure reply
	// carries an explicit success:false rather than omitting the field
	Success bool                   `json:"success"`
	Error   string                 `json:"error,omitempty"`
	Data    map[string]interface{} `json:"data,omitempty"`

	// status / heartbeat
	State            string    `json:"state,omitempty"`
	Progress         float64   `json:"progress,omitempty"`
	TriggerTimestamp Timestamp `json:"trigger_timestamp,omitempty"`
}

// IsKnown reports whether Type is one this build understands. Callers
// must tolerate false and simply log, never terminate the connection.
func (e Envelope) IsKnown() bool {
	switch e.Type {
	case EnvelopeTrigger, EnvelopeSlaveTrigger, EnvelopeCommand, EnvelopeResponse,
		EnvelopeStatus, EnvelopeHeartbeat, EnvelopeReady:
		return true
	default:
		return false
	}
}
