// Package dlt is a minimal JSON client for the co-located
// DataLinkTargetService, covering its acquisition lifecycle command
// set: list, start-stream, status, stop.
package dlt

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"time"

	"github.com/tcsync-project/tcsync/pkg/tcsync/definition"
	"github.com/tcsync-project/tcsync/pkg/tcsync/types"
)

// Request is one DLT command document.
type Request struct {
	Command    string `json:"command"`
	Address    string `json:"address,omitempty"`
	Channel    uint32 `json:"channel,omitempty"`
	StreamPort int    `json:"stream_port,omitempty"`
	ID         string `json:"id,omitempty"`
}

// ErrorDoc is the error shape a DLT reply carries when a command
// fails.
type ErrorDoc struct {
	Description string `json:"description"`
}

// StatusDoc is the status payload returned by `stop`.
type StatusDoc struct {
	AcquisitionsCount int `json:"acquisitions_count"`
	Errors            int `json:"errors,omitempty"`
}

// Reply is one DLT response document, a union of every field any of
// the four commands may populate.
type Reply struct {
	ID                string     `json:"id,omitempty"`
	List              []string   `json:"list,omitempty"`
	AcquisitionsCount int        `json:"acquisitions_count,omitempty"`
	Inactivity        float64    `json:"inactivity,omitempty"`
	Errors            int        `json:"errors,omitempty"`
	Error             *ErrorDoc  `json:"error,omitempty"`
	Status            *StatusDoc `json:"status,omitempty"`
}

// Client is a request/reply JSON connection to the DLT command
// socket, redialed for every call since a hung previous call must not
// starve the next one.
type Client struct {
	addr    string
	log     types.Logger
	timeout time.Duration
}

// New returns a client targeting the DLT command endpoint at addr.
func New(addr string, log types.Logger) *Client {
	return &Client{addr: addr, log: log, timeout: definition.LinkSendRecvTimeout}
}

func (c *Client) call(req Request) (Reply, error) {
	conn, err := net.DialTimeout("tcp", c.addr, c.timeout)
	if err != nil {
		return Reply{}, &types.DltError{Command: req.Command, Err: err}
	}
	defer func() {
		if tcp, ok := conn.(*net.TCPConn); ok {
			_ = tcp.SetLinger(0)
		}
		_ = conn.Close()
	}()

	if err := conn.SetWriteDeadline(time.Now().Add(c.timeout)); err != nil {
		return Reply{}, &types.DltError{Command: req.Command, Err: err}
	}
	data, err := json.Marshal(req)
	if err != nil {
		return Reply{}, &types.DltError{Command: req.Command, Err: err}
	}
	if _, err := conn.Write(append(data, '\n')); err != nil {
		return Reply{}, &types.DltError{Command: req.Command, Err: err}
	}

	if err := conn.SetReadDeadline(time.Now().Add(c.timeout)); err != nil {
		return Reply{}, &types.DltError{Command: req.Command, Err: err}
	}
	line, err := bufio.NewReader(conn).ReadBytes('\n')
	if err != nil {
		return Reply{}, &types.DltError{Command: req.Command, Err: err}
	}

	var reply Reply
	if err := json.Unmarshal(line, &reply); err != nil {
		return Reply{}, &types.DltError{Command: req.Command, Err: err}
	}
	if reply.Error != nil {
		return reply, &types.DltError{Command: req.Command, Description: reply.Error.Description}
	}
	return reply, nil
}

// List returns the acquisition IDs DLT currently knows about.
func (c *Client) List() ([]string, error) {
	reply, err := c.call(Request{Command: "list"})
	if err != nil {
		return nil, err
	}
	return reply.List, nil
}

// StartStream asks DLT to attach its stream source to the given local
// endpoint for one channel, returning the acquisition id it assigns.
func (c *Client) StartStream(address string, channel types.ChannelId, streamPort int) (types.AcquisitionId, error) {
	reply, err := c.call(Request{
		Command:    "start-stream",
		Address:    address,
		Channel:    uint32(channel),
		StreamPort: streamPort,
	})
	if err != nil {
		return "", err
	}
	if reply.ID == "" {
		return "", &types.DltError{Command: "start-stream", Err: fmt.Errorf("empty acquisition id")}
	}
	return types.AcquisitionId(reply.ID), nil
}

// Status polls one acquisition's progress.
func (c *Client) Status(id types.AcquisitionId) (Reply, error) {
	return c.call(Request{Command: "status", ID: string(id)})
}

// Stop ends one acquisition.
func (c *Client) Stop(id types.AcquisitionId) (Reply, error) {
	return c.call(Request{Command: "stop", ID: string(id)})
}
