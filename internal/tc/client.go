// Package tc is a minimal SCPI-style client for the Time Controller
// device: identity probe, per-channel configuration, recording
// control, and the direct fallback data queries.
package tc

import (
	"bufio"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/tcsync-project/tcsync/pkg/tcsync/types"
)

const defaultTimeout = 5 * time.Second

// Client is a request/reply SCPI connection to one Time Controller.
type Client struct {
	conn    net.Conn
	reader  *bufio.Reader
	log     types.Logger
	timeout time.Duration
}

// Dial connects to the Time Controller's command endpoint.
func Dial(addr string, log types.Logger) (*Client, error) {
	conn, err := net.DialTimeout("tcp", addr, defaultTimeout)
	if err != nil {
		return nil, &types.TcError{Command: "dial", Err: err}
	}
	return &Client{conn: conn, reader: bufio.NewReader(conn), log: log, timeout: defaultTimeout}, nil
}

// Close closes the underlying connection with a zero linger.
func (c *Client) Close() {
	if tcp, ok := c.conn.(*net.TCPConn); ok {
		_ = tcp.SetLinger(0)
	}
	_ = c.conn.Close()
}

// send writes a newline-terminated ASCII command and, when expectReply
// is true, reads a single newline-terminated reply line within the
// timeout.
func (c *Client) send(cmd string, expectReply bool) (string, error) {
	if err := c.conn.SetWriteDeadline(time.Now().Add(c.timeout)); err != nil {
		return "", &types.TcError{Command: cmd, Err: err}
	}
	if _, err := c.conn.Write([]byte(cmd + "\n")); err != nil {
		return "", &types.TcError{Command: cmd, Err: err}
	}
	if !expectReply {
		return "", nil
	}
	if err := c.conn.SetReadDeadline(time.Now().Add(c.timeout)); err != nil {
		return "", &types.TcError{Command: cmd, Err: err}
	}
	line, err := c.reader.ReadString('\n')
	if err != nil {
		return "", &types.TcError{Command: cmd, Err: err}
	}
	return strings.TrimSpace(line), nil
}

// Idn issues *IDN? and returns the identity string.
func (c *Client) Idn() (string, error) {
	return c.send("*IDN?", true)
}

// RefLinkNone detaches the reference link for channel ch.
func (c *Client) RefLinkNone(ch types.ChannelId) error {
	_, err := c.send(fmt.Sprintf("RAW%d:REF:LINK NONE", ch), false)
	return err
}

// ErrorsClear clears the error counter for channel ch.
func (c *Client) ErrorsClear(ch types.ChannelId) error {
	_, err := c.send(fmt.Sprintf("RAW%d:ERRORS:CLEAR", ch), false)
	return err
}

// Errors reads the error counter for channel ch.
func (c *Client) Errors(ch types.ChannelId) (int, error) {
	reply, err := c.send(fmt.Sprintf("RAW%d:ERRORS?", ch), true)
	if err != nil {
		return 0, err
	}
	return parseInt("RAW:ERRORS?", reply, c.log)
}

// SetSend toggles streaming for channel ch.
func (c *Client) SetSend(ch types.ChannelId, on bool) error {
	state := "OFF"
	if on {
		state = "ON"
	}
	_, err := c.send(fmt.Sprintf("RAW%d:SEND %s", ch, state), false)
	return err
}

// TrigArmModeManual sets the recording trigger mode to manual.
func (c *Client) TrigArmModeManual() error {
	_, err := c.send("REC:TRIG:ARM:MODE MANUal", false)
	return err
}

// RecEnable enables or disables recording.
func (c *Client) RecEnable(on bool) error {
	state := "OFF"
	if on {
		state = "ON"
	}
	_, err := c.send(fmt.Sprintf("REC:ENABle %s", state), false)
	return err
}

// RecStop stops any in-progress recording.
func (c *Client) RecStop() error {
	_, err := c.send("REC:STOP", false)
	return err
}

// RecNumInf sets an infinite number of sub-acquisitions.
func (c *Client) RecNumInf() error {
	_, err := c.send("REC:NUM INF", false)
	return err
}

// RecPeriod sets the sub-acquisition width and period, both in
// picoseconds. The caller derives period as width plus the 40ns guard
// before this call.
func (c *Client) RecPeriod(widthPs, periodPs uint64) error {
	_, err := c.send(fmt.Sprintf("REC:PWID %d;PPER %d", widthPs, periodPs), false)
	return err
}

// RecPlay starts recording.
func (c *Client) RecPlay() error {
	_, err := c.send("REC:PLAY", false)
	return err
}

// RecStage reads the current recording stage.
func (c *Client) RecStage() (string, error) {
	return c.send("REC:STAGe?", true)
}

// RecNumber reads the number of sub-acquisitions completed so far.
func (c *Client) RecNumber() (int, error) {
	reply, err := c.send("REC:NUMber?", true)
	if err != nil {
		return 0, err
	}
	return parseInt("REC:NUMber?", reply, c.log)
}

// DataCount is the fallback query for the number of raw values
// buffered on channel ch.
func (c *Client) DataCount(ch types.ChannelId) (int, error) {
	reply, err := c.send(fmt.Sprintf("RAW%d:DATA:COUNt?", ch), true)
	if err != nil {
		return 0, err
	}
	return parseInt("RAW:DATA:COUNt?", reply, c.log)
}

// DataValues is the fallback bulk fetch: one call returning a
// semicolon-delimited ASCII string of every buffered value on channel
// ch.
func (c *Client) DataValues(ch types.ChannelId) (string, error) {
	return c.send(fmt.Sprintf("RAW%d:DATA:VALue?", ch), true)
}

// DataValueAt is the fallback single-value fetch.
func (c *Client) DataValueAt(ch types.ChannelId, index int) (string, error) {
	return c.send(fmt.Sprintf("RAW%d:DATA:VALue? %d", ch, index), true)
}

// parseInt tolerantly converts a TC integer reply: empty strings,
// surrounding whitespace, and malformed tokens are logged and
// reported as a ParseError rather than panicking.
func parseInt(context, token string, log types.Logger) (int, error) {
	trimmed := strings.TrimSpace(token)
	if trimmed == "" {
		if log != nil {
			log.Warnf("%s: empty integer token", context)
		}
		return 0, &types.ParseError{Context: context, Token: token, Err: fmt.Errorf("empty token")}
	}
	v, err := strconv.Atoi(trimmed)
	if err != nil {
		if log != nil {
			log.Warnf("%s: malformed integer token %q", context, token)
		}
		return 0, &types.ParseError{Context: context, Token: token, Err: err}
	}
	return v, nil
}
