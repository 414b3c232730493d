package core

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jabolina/relt/pkg/relt"
	"github.com/tcsync-project/tcsync/pkg/tcsync/types"
)

// TriggerLink is the publish/subscribe trigger link: Master publishes
// one trigger envelope, Slave subscribes and decodes it. It is the one
// peer link built directly on github.com/jabolina/relt rather than on
// the length-prefixed TCP transport, since relt's primitives (one
// exchange/group address, Broadcast, Consume) already are a reliable
// publish/subscribe channel, exactly this link's contract.
type TriggerLink struct {
	log      types.Logger
	relt     *relt.Relt
	group    relt.GroupAddress
	producer chan types.Envelope
	ctx      context.Context
	cancel   context.CancelFunc
}

// NewTriggerLink creates a trigger link bound to the given group
// address (one per Master/Slave deployment pair).
func NewTriggerLink(name string, group string, log types.Logger) (*TriggerLink, error) {
	conf := relt.DefaultReltConfiguration()
	conf.Name = name
	conf.Exchange = relt.GroupAddress(group)
	r, err := relt.NewRelt(*conf)
	if err != nil {
		return nil, &types.TransportError{Link: "trigger", Err: err}
	}

	ctx, cancel := context.WithCancel(context.Background())
	t := &TriggerLink{
		log:      log,
		relt:     r,
		group:    relt.GroupAddress(group),
		producer: make(chan types.Envelope, 8),
		ctx:      ctx,
		cancel:   cancel,
	}
	InvokerInstance().Spawn(t.poll)
	return t, nil
}

// Publish broadcasts the trigger envelope to every subscriber on the
// group address.
func (t *TriggerLink) Publish(ctx context.Context, env types.Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return &types.TransportError{Link: "trigger", Err: err}
	}
	send := relt.Send{Address: t.group, Data: data}
	if err := t.relt.Broadcast(send); err != nil {
		return &types.TransportError{Link: "trigger", Err: err}
	}
	return nil
}

// Listen returns the channel trigger envelopes are delivered on.
func (t *TriggerLink) Listen() <-chan types.Envelope {
	return t.producer
}

// Close shuts the link down. relt's Close reports no error, so there
// is nothing to log here.
func (t *TriggerLink) Close() {
	t.cancel()
	t.relt.Close()
}

func (t *TriggerLink) poll() {
	listener := t.relt.Consume()
	for {
		select {
		case <-t.ctx.Done():
			return
		case recv, ok := <-listener:
			if !ok {
				return
			}
			t.consume(recv)
		}
	}
}

func (t *TriggerLink) consume(recv relt.Recv) {
	if recv.Error != nil {
		t.log.Errorf("trigger link receive error: %v", recv.Error)
		return
	}
	if recv.Data == nil {
		t.log.Warnf("trigger link received empty message")
		return
	}

	var env types.Envelope
	if err := json.Unmarshal(recv.Data, &env); err != nil {
		t.log.Errorf("trigger link unmarshal failed: %v", err)
		return
	}
	if !env.IsKnown() {
		t.log.Warnf("trigger link received unknown envelope type %q", env.Type)
		return
	}

	timeout, cancel := context.WithTimeout(t.ctx, 250*time.Millisecond)
	defer cancel()
	select {
	case <-timeout.Done():
		t.log.Warnf("trigger link dropped envelope, consumer not ready")
	case t.producer <- env:
	}
}
