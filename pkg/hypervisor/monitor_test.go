// Copyright (c) 2016 Intel Corporation
//
// SPDX-License-Identifier: Apache-2.0
//

package hypervisor

import (
	"bufio"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeMonitorServer accepts a single connection, sends a welcome line, then
// echoes back each received line on the returned channel.
func fakeMonitorServer(t *testing.T, sockPath string) <-chan string {
	t.Helper()

	ln, err := net.Listen("unix", sockPath)
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	received := make(chan string, 8)

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		if _, err := conn.Write([]byte(`{"QMP":{"version":{}}}` + "\n")); err != nil {
			return
		}

		r := bufio.NewReader(conn)
		for {
			line, err := r.ReadString('\n')
			if err != nil {
				return
			}
			received <- line
		}
	}()

	return received
}

func TestDialMonitorConsumesWelcome(t *testing.T) {
	sockPath := filepath.Join(t.TempDir(), "monitor.sock")
	fakeMonitorServer(t, sockPath)

	m, err := DialMonitor(sockPath)
	require.NoError(t, err)
	defer m.Close()

	assert.Equal(t, `{"QMP":{"version":{}}}`+"\n", m.Welcome())
}

func TestMonitorStopSendsCommand(t *testing.T) {
	sockPath := filepath.Join(t.TempDir(), "monitor.sock")
	received := fakeMonitorServer(t, sockPath)

	m, err := DialMonitor(sockPath)
	require.NoError(t, err)
	defer m.Close()

	require.NoError(t, m.Stop())

	select {
	case line := <-received:
		assert.Equal(t, `{"execute":"stop"}`+"\n", line)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for stop command")
	}
}

func TestMonitorResumeSendsCommand(t *testing.T) {
	sockPath := filepath.Join(t.TempDir(), "monitor.sock")
	received := fakeMonitorServer(t, sockPath)

	m, err := DialMonitor(sockPath)
	require.NoError(t, err)
	defer m.Close()

	require.NoError(t, m.Resume())

	select {
	case line := <-received:
		assert.Equal(t, `{"execute":"cont"}`+"\n", line)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for cont command")
	}
}

func TestDialMonitorFailsWhenNoServer(t *testing.T) {
	sockPath := filepath.Join(t.TempDir(), "no-such.sock")
	_, err := DialMonitor(sockPath)
	assert.Error(t, err)
}
