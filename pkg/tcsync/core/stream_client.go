package core

import (
	"context"
	"fmt"
	"net"

	"github.com/tcsync-project/tcsync/pkg/tcsync/definition"
	"github.com/tcsync-project/tcsync/pkg/tcsync/types"
)

// StreamClient owns one channel's data socket and buffer exclusively.
// It listens on the channel's well-known local endpoint (base port
// plus channel id) for the single connection DLT's start-stream
// attaches, and appends every framed batch it receives to the
// channel's buffer in arrival order.
type StreamClient struct {
	channel  types.ChannelId
	log      types.Logger
	listener net.Listener
	buffer   *channelBuffer
	ctx      context.Context
	cancel   context.CancelFunc
	done     chan struct{}
}

// StreamEndpoint returns the well-known local address DLT should
// attach its start-stream source to for the given channel.
func StreamEndpoint(ch types.ChannelId) string {
	return fmt.Sprintf("127.0.0.1:%d", definition.StreamPortBase+int(ch))
}

// NewStreamClient starts listening on the channel's endpoint.
func NewStreamClient(ch types.ChannelId, log types.Logger) (*StreamClient, error) {
	ln, err := net.Listen("tcp", StreamEndpoint(ch))
	if err != nil {
		return nil, &types.TransportError{Link: "stream", Err: err}
	}
	ctx, cancel := context.WithCancel(context.Background())
	c := &StreamClient{
		channel:  ch,
		log:      log,
		listener: ln,
		buffer:   newChannelBuffer(),
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	InvokerInstance().Spawn(c.serve)
	return c, nil
}

// Buffer returns the channel's buffer for the merger to read.
func (c *StreamClient) Buffer() *channelBuffer { return c.buffer }

func (c *StreamClient) serve() {
	defer close(c.done)
	conn, err := c.listener.Accept()
	if err != nil {
		return
	}
	defer closeLingerZero(conn)
	InvokerInstance().Spawn(func() {
		<-c.ctx.Done()
		closeLingerZero(conn)
	})

	index := 0
	for {
		select {
		case <-c.ctx.Done():
			c.buffer.MarkFinished(index)
			return
		default:
		}
		data, err := readFrame(conn, 0)
		if err != nil {
			c.buffer.MarkFinished(index)
			return
		}
		c.buffer.Append(index, Message(data))
		index++
	}
}

// MarkFinished records the total number of batches delivered, once
// known, so the merger stops waiting on this channel.
func (b *channelBuffer) MarkFinished(total int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.total = total
	b.hasTotal = true
}

// Total reports the finished total, if known.
func (b *channelBuffer) Total() (int, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.total, b.hasTotal
}

// Stop closes the listener and stream connection.
func (c *StreamClient) Stop() {
	c.cancel()
	_ = c.listener.Close()
}

// Done signals when the serve loop has exited.
func (c *StreamClient) Done() <-chan struct{} { return c.done }
