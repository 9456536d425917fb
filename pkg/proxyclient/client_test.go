// Copyright (c) 2017 Intel Corporation
//
// SPDX-License-Identifier: Apache-2.0
//

package proxyclient

import (
	"encoding/json"
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/cc-vmrt/runtime/pkg/codec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

// fakeProxy is a minimal stand-in for the real proxy process: it accepts
// one connection and lets the test script its responses.
type fakeProxy struct {
	t        *testing.T
	listener *net.UnixListener
	conn     *net.UnixConn
}

func newFakeProxy(t *testing.T) (*fakeProxy, string) {
	t.Helper()

	sockPath := filepath.Join(t.TempDir(), "proxy.sock")

	l, err := net.ListenUnix("unix", &net.UnixAddr{Name: sockPath, Net: "unix"})
	require.NoError(t, err)

	return &fakeProxy{t: t, listener: l}, sockPath
}

func (p *fakeProxy) accept() {
	p.t.Helper()
	conn, err := p.listener.AcceptUnix()
	require.NoError(p.t, err)
	p.conn = conn
}

func (p *fakeProxy) close() {
	if p.conn != nil {
		p.conn.Close()
	}
	p.listener.Close()
}

func (p *fakeProxy) readCommand() command {
	p.t.Helper()
	payload, err := codec.ReadControlFrame(p.conn)
	require.NoError(p.t, err)

	var cmd command
	require.NoError(p.t, json.Unmarshal(payload, &cmd))
	return cmd
}

func (p *fakeProxy) reply(resp response) {
	p.t.Helper()
	payload, err := json.Marshal(resp)
	require.NoError(p.t, err)
	require.NoError(p.t, codec.WriteControlFrame(p.conn, payload))
}

func TestHelloSuccess(t *testing.T) {
	proxy, sockPath := newFakeProxy(t)
	defer proxy.close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		proxy.accept()
		cmd := proxy.readCommand()
		assert.Equal(t, "hello", cmd.ID)
		proxy.reply(response{Success: true})
	}()

	client, err := Dial(sockPath)
	require.NoError(t, err)
	defer client.Close()

	err = client.Hello("c1", "ctl", "io", "console")
	assert.NoError(t, err)
	<-done
}

func TestCallFailurePropagatesProxyError(t *testing.T) {
	proxy, sockPath := newFakeProxy(t)
	defer proxy.close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		proxy.accept()
		proxy.readCommand()
		proxy.reply(response{Success: false, Error: "no such container"})
	}()

	client, err := Dial(sockPath)
	require.NoError(t, err)
	defer client.Close()

	err = client.Bye("c1")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "no such container")
	<-done
}

func TestHyperRoundTrip(t *testing.T) {
	proxy, sockPath := newFakeProxy(t)
	defer proxy.close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		proxy.accept()
		cmd := proxy.readCommand()
		assert.Equal(t, "hyper", cmd.ID)
		proxy.reply(response{Success: true, Data: json.RawMessage(`{"ok":true}`)})
	}()

	client, err := Dial(sockPath)
	require.NoError(t, err)
	defer client.Close()

	raw, err := client.Hyper("startpod", map[string]interface{}{"hostname": "box"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(raw))
	<-done
}

// TestAllocateIOReceivesFd exercises the full allocateIO round trip: a
// framed JSON response carrying ioBase, followed by the out-of-band
// SCM_RIGHTS fd transfer (§4.2).
func TestAllocateIOReceivesFd(t *testing.T) {
	proxy, sockPath := newFakeProxy(t)
	defer proxy.close()

	r, w, err := os.Pipe()
	require.NoError(t, err)
	defer r.Close()
	defer w.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		proxy.accept()

		cmd := proxy.readCommand()
		assert.Equal(t, "allocateIO", cmd.ID)
		proxy.reply(response{Success: true, Data: json.RawMessage(`{"ioBase":42}`)})

		rights := unix.UnixRights(int(w.Fd()))
		n, _, err := proxy.conn.WriteMsgUnix([]byte("F"), rights, nil)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	}()

	client, err := Dial(sockPath)
	require.NoError(t, err)
	defer client.Close()

	ioBase, fd, err := client.AllocateIO(2)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), ioBase)
	assert.Greater(t, fd, 0)
	unix.Close(fd)

	<-done
}
