// Copyright (c) 2017 Intel Corporation
//
// SPDX-License-Identifier: Apache-2.0
//

package proxyclient

import (
	"encoding/json"
	"fmt"
	"net"
	"os"
	"strings"

	"github.com/cc-vmrt/runtime/pkg/codec"
	"golang.org/x/sys/unix"
)

// Client is a connection to one proxy instance's control socket.
type Client struct {
	conn *net.UnixConn
}

// Dial connects to a proxy control socket. url may be a bare path or a
// "unix://" URL as produced by DefaultURL.
func Dial(url string) (*Client, error) {
	path := strings.TrimPrefix(url, "unix://")

	conn, err := net.Dial("unix", path)
	if err != nil {
		return nil, err
	}

	unixConn, ok := conn.(*net.UnixConn)
	if !ok {
		conn.Close()
		return nil, fmt.Errorf("proxyclient: %s did not yield a unix socket", url)
	}

	return &Client{conn: unixConn}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// File dups the client's underlying connection into a fresh *os.File,
// which the caller may then hand across an exec (e.g. to a just-launched
// shim, §4.4 step 5/6) without disturbing this Client's own copy. The
// caller still owns (and must eventually Close) both the Client and the
// returned file independently.
func (c *Client) File() (*os.File, error) {
	return c.conn.File()
}

// call sends one framed command and returns its response's "data" member,
// translating success=false into an error.
func (c *Client) call(id string, data interface{}) (json.RawMessage, error) {
	payload, err := json.Marshal(command{ID: id, Data: data})
	if err != nil {
		return nil, err
	}

	if err := codec.WriteControlFrame(c.conn, payload); err != nil {
		return nil, err
	}

	respPayload, err := codec.ReadControlFrame(c.conn)
	if err != nil {
		return nil, err
	}

	var resp response
	if err := json.Unmarshal(respPayload, &resp); err != nil {
		return nil, err
	}

	if !resp.Success {
		return nil, fmt.Errorf("proxyclient: %s failed: %s", id, resp.Error)
	}

	return resp.Data, nil
}

// Hello registers a VM with the proxy. It must only be called once the
// agent control socket exists (see WaitForSocket) and blocks until the
// proxy acknowledges readiness (§4.2).
func (c *Client) Hello(containerID, ctlSerial, ioSerial, console string) error {
	_, err := c.call("hello", helloData{
		ContainerID: containerID,
		CtlSerial:   ctlSerial,
		IoSerial:    ioSerial,
		Console:     console,
	})
	return err
}

// Attach binds a new client connection to an already-registered VM.
func (c *Client) Attach(containerID string) error {
	_, err := c.call("attach", containerIDData{ContainerID: containerID})
	return err
}

// Bye releases VM resources at delete time.
func (c *Client) Bye(containerID string) error {
	_, err := c.call("bye", containerIDData{ContainerID: containerID})
	return err
}

// Hyper passes a command through to the in-VM agent (startpod,
// newcontainer, execcmd, killcontainer, destroypod).
func (c *Client) Hyper(hyperName string, data interface{}) (json.RawMessage, error) {
	return c.call("hyper", hyperData{HyperName: hyperName, Data: data})
}

// AllocateIO requests nStreams I/O streams and returns the base stream
// number plus the freshly received I/O socket fd (§4.2's out-of-band fd
// reception: a 'F' byte plus one SCM_RIGHTS fd).
func (c *Client) AllocateIO(nStreams int) (ioBase uint64, fd int, err error) {
	raw, err := c.call("allocateIO", allocateIORequest{NStreams: nStreams})
	if err != nil {
		return 0, -1, err
	}

	var ar allocateIOResponse
	if err := json.Unmarshal(raw, &ar); err != nil {
		return 0, -1, err
	}

	fd, err = c.recvIOFd()
	if err != nil {
		return 0, -1, err
	}

	return ar.IOBase, fd, nil
}

// recvIOFd performs the recvmsg that follows an allocateIO acknowledgement.
func (c *Client) recvIOFd() (int, error) {
	buf := make([]byte, 1)
	oob := make([]byte, unix.CmsgSpace(4))

	n, oobn, _, _, err := c.conn.ReadMsgUnix(buf, oob)
	if err != nil {
		return -1, err
	}

	if n != 1 || buf[0] != 'F' {
		return -1, fmt.Errorf("proxyclient: unexpected fd-transfer payload %q", buf[:n])
	}

	scms, err := unix.ParseSocketControlMessage(oob[:oobn])
	if err != nil {
		return -1, err
	}
	if len(scms) != 1 {
		return -1, fmt.Errorf("proxyclient: expected exactly one control message, got %d", len(scms))
	}

	fds, err := unix.ParseUnixRights(&scms[0])
	if err != nil {
		return -1, err
	}
	if len(fds) != 1 {
		return -1, fmt.Errorf("proxyclient: expected exactly one fd, got %d", len(fds))
	}

	return fds[0], nil
}
