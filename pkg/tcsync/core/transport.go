package core

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"io"
	"net"
	"time"

	"github.com/tcsync-project/tcsync/pkg/tcsync/definition"
	"github.com/tcsync-project/tcsync/pkg/tcsync/types"
)

// writeFrame writes a length-prefixed block: a 4-byte big-endian
// length followed by payload. Every link in this package (sync,
// status, command, file) uses this framing since TCP, unlike relt's
// datagram-shaped exchange, draws no message boundaries of its own.
func writeFrame(conn net.Conn, deadline time.Duration, payload []byte) error {
	if deadline > 0 {
		if err := conn.SetWriteDeadline(time.Now().Add(deadline)); err != nil {
			return err
		}
	}
	var header [4]byte
	binary.BigEndian.PutUint32(header[:], uint32(len(payload)))
	if _, err := conn.Write(header[:]); err != nil {
		return err
	}
	_, err := conn.Write(payload)
	return err
}

// readFrame reads one length-prefixed block.
func readFrame(conn net.Conn, deadline time.Duration) ([]byte, error) {
	if deadline > 0 {
		if err := conn.SetReadDeadline(time.Now().Add(deadline)); err != nil {
			return nil, err
		}
	}
	var header [4]byte
	if _, err := io.ReadFull(conn, header[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(header[:])
	payload := make([]byte, n)
	if _, err := io.ReadFull(conn, payload); err != nil {
		return nil, err
	}
	return payload, nil
}

// writeEnvelope marshals and frames a control envelope.
func writeEnvelope(conn net.Conn, deadline time.Duration, env types.Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return writeFrame(conn, deadline, data)
}

// readEnvelope reads and unmarshals one control envelope.
func readEnvelope(conn net.Conn, deadline time.Duration) (types.Envelope, error) {
	data, err := readFrame(conn, deadline)
	if err != nil {
		return types.Envelope{}, err
	}
	var env types.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return types.Envelope{}, err
	}
	return env, nil
}

// closeLingerZero closes a TCP connection with a zero linger: every
// socket sets a finite linger so shutdown never blocks on a lazy peer.
func closeLingerZero(conn net.Conn) {
	if tc, ok := conn.(*net.TCPConn); ok {
		_ = tc.SetLinger(0)
	}
	_ = conn.Close()
}

// CommandServer is the Slave-side reply half of the command link:
// request/reply, one named RPC per connection, answered synchronously.
type CommandServer struct {
	log      types.Logger
	listener net.Listener
	handler  func(types.Envelope) types.Envelope
	ctx      context.Context
	cancel   context.CancelFunc
}

// NewCommandServer starts listening on addr and dispatches every
// incoming request envelope to handler, writing back whatever handler
// returns.
func NewCommandServer(addr string, log types.Logger, handler func(types.Envelope) types.Envelope) (*CommandServer, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, &types.TransportError{Link: "command", Err: err}
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &CommandServer{log: log, listener: ln, handler: handler, ctx: ctx, cancel: cancel}
	InvokerInstance().Spawn(s.acceptLoop)
	return s, nil
}

// Addr returns the address the server bound to (useful when addr was
// ":0").
func (s *CommandServer) Addr() string {
	return s.listener.Addr().String()
}

func (s *CommandServer) acceptLoop() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.ctx.Done():
				return
			default:
				s.log.Warnf("command server accept failed: %v", err)
				return
			}
		}
		InvokerInstance().Spawn(func() { s.serve(conn) })
	}
}

func (s *CommandServer) serve(conn net.Conn) {
	defer closeLingerZero(conn)
	env, err := readEnvelope(conn, definition.LinkSendRecvTimeout)
	if err != nil {
		s.log.Warnf("command server read failed: %v", err)
		return
	}
	if !env.IsKnown() {
		s.log.Warnf("command server received unknown envelope type %q", env.Type)
		return
	}
	resp := s.handler(env)
	if err := writeEnvelope(conn, definition.LinkSendRecvTimeout, resp); err != nil {
		s.log.Warnf("command server write failed: %v", err)
	}
}

// Close stops accepting new connections.
func (s *CommandServer) Close() {
	s.cancel()
	_ = s.listener.Close()
}

// CommandClient is the Master-side request half of the command link.
type CommandClient struct {
	log types.Logger
}

// NewCommandClient returns a client that dials fresh for every call:
// reconnection is never attempted on failure, but each RPC is its own
// short-lived connection so one slow call never starves the next.
func NewCommandClient(log types.Logger) *CommandClient {
	return &CommandClient{log: log}
}

// Call issues one request/reply RPC. One retry is permitted on this
// link only: a dropped command RPC can simply be re-sent without
// breaking the other peer's parser.
func (c *CommandClient) Call(ctx context.Context, addr string, req types.Envelope) (types.Envelope, error) {
	env, err := c.callOnce(addr, req)
	if err == nil {
		return env, nil
	}
	c.log.Warnf("command call %s failed once, retrying: %v", req.Command, err)
	env, err = c.callOnce(addr, req)
	if err != nil {
		return types.Envelope{}, &types.TransportError{Link: "command", Err: err}
	}
	return env, nil
}

func (c *CommandClient) callOnce(addr string, req types.Envelope) (types.Envelope, error) {
	conn, err := net.DialTimeout("tcp", addr, definition.LinkSendRecvTimeout)
	if err != nil {
		return types.Envelope{}, err
	}
	defer closeLingerZero(conn)
	if err := writeEnvelope(conn, definition.LinkSendRecvTimeout, req); err != nil {
		return types.Envelope{}, err
	}
	return readEnvelope(conn, definition.LinkSendRecvTimeout)
}

// PushClient implements the push half of a push → pull link (sync,
// status, file): it dials out and sends one envelope or one raw file
// payload per call, never waiting for a reply.
type PushClient struct {
	log types.Logger
}

func NewPushClient(log types.Logger) *PushClient {
	return &PushClient{log: log}
}

func (c *PushClient) PushEnvelope(addr string, env types.Envelope) error {
	conn, err := net.DialTimeout("tcp", addr, definition.LinkSendRecvTimeout)
	if err != nil {
		return &types.TransportError{Link: "push", Err: err}
	}
	defer closeLingerZero(conn)
	if err := writeEnvelope(conn, definition.LinkSendRecvTimeout, env); err != nil {
		return &types.TransportError{Link: "push", Err: err}
	}
	return nil
}

func (c *PushClient) PushFile(addr string, data []byte) error {
	conn, err := net.DialTimeout("tcp", addr, definition.LinkSendRecvTimeout)
	if err != nil {
		return &types.TransportError{Link: "file", Err: err}
	}
	defer closeLingerZero(conn)
	if err := writeFrame(conn, definition.LinkSendRecvTimeout, data); err != nil {
		return &types.TransportError{Link: "file", Err: err}
	}
	// Half-close and wait for the receiver to close its end before the
	// zero-linger close, so the unsent tail of a large payload is not
	// discarded by a reset.
	if tcp, ok := conn.(*net.TCPConn); ok {
		_ = tcp.CloseWrite()
	}
	_ = conn.SetReadDeadline(time.Now().Add(definition.LinkSendRecvTimeout))
	_, _ = io.Copy(io.Discard, conn)
	return nil
}

// PullServer implements the pull half of a push → pull link: it
// listens and delivers each pushed envelope on a channel.
type PullServer struct {
	log      types.Logger
	listener net.Listener
	envelope chan types.Envelope
	file     chan []byte
	ctx      context.Context
	cancel   context.CancelFunc
}

// NewPullServer starts listening on addr. If asFile is true, payloads
// are delivered raw on Files(); otherwise they are parsed as
// Envelopes and delivered on Envelopes().
func NewPullServer(addr string, log types.Logger, asFile bool) (*PullServer, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, &types.TransportError{Link: "pull", Err: err}
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &PullServer{
		log:      log,
		listener: ln,
		envelope: make(chan types.Envelope, 8),
		file:     make(chan []byte, 4),
		ctx:      ctx,
		cancel:   cancel,
	}
	InvokerInstance().Spawn(func() { s.acceptLoop(asFile) })
	return s, nil
}

func (s *PullServer) Addr() string {
	return s.listener.Addr().String()
}

func (s *PullServer) acceptLoop(asFile bool) {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.ctx.Done():
				return
			default:
				s.log.Warnf("pull server accept failed: %v", err)
				return
			}
		}
		InvokerInstance().Spawn(func() { s.serve(conn, asFile) })
	}
}

func (s *PullServer) serve(conn net.Conn, asFile bool) {
	defer closeLingerZero(conn)
	if asFile {
		data, err := readFrame(conn, definition.FileRecvTimeout)
		if err != nil {
			s.log.Warnf("pull server file read failed: %v", err)
			return
		}
		select {
		case s.file <- data:
		case <-s.ctx.Done():
		}
		return
	}

	env, err := readEnvelope(conn, definition.LinkSendRecvTimeout)
	if err != nil {
		s.log.Warnf("pull server read failed: %v", err)
		return
	}
	if !env.IsKnown() {
		s.log.Warnf("pull server received unknown envelope type %q", env.Type)
		return
	}
	select {
	case s.envelope <- env:
	case <-s.ctx.Done():
	}
}

func (s *PullServer) Envelopes() <-chan types.Envelope { return s.envelope }
func (s *PullServer) Files() <-chan []byte             { return s.file }

func (s *PullServer) Close() {
	s.cancel()
	_ = s.listener.Close()
}
