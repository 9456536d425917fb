// Copyright (c) 2016 Intel Corporation
//
// SPDX-License-Identifier: Apache-2.0
//

package hypervisor

import (
	"bufio"
	"fmt"
	"net"
)

// Monitor is a client for the hypervisor's monitor socket (hypervisor.sock,
// §3.2), used only for pause/resume. Its wire format is distinct from the
// proxy's length-prefixed frames (§4.1): messages are newline-terminated
// JSON, and the server speaks first with a welcome line (§4.5 "Pause/
// resume").
type Monitor struct {
	conn    net.Conn
	reader  *bufio.Reader
	welcome string
}

// DialMonitor connects to the monitor socket at path and consumes its
// welcome line.
func DialMonitor(path string) (*Monitor, error) {
	conn, err := net.Dial("unix", path)
	if err != nil {
		return nil, err
	}

	m := &Monitor{conn: conn, reader: bufio.NewReader(conn)}

	welcome, err := m.reader.ReadString('\n')
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("hypervisor: monitor welcome handshake failed: %w", err)
	}
	m.welcome = welcome

	return m, nil
}

// Welcome returns the raw welcome line the monitor sent on connect.
func (m *Monitor) Welcome() string {
	return m.welcome
}

// Close closes the monitor connection.
func (m *Monitor) Close() error {
	return m.conn.Close()
}

// send writes one newline-terminated command.
func (m *Monitor) send(cmd string) error {
	_, err := m.conn.Write([]byte(cmd + "\n"))
	return err
}

// Stop pauses the VM (§4.7 pause).
func (m *Monitor) Stop() error {
	return m.send(`{"execute":"stop"}`)
}

// Resume continues a paused VM (§4.7 resume).
func (m *Monitor) Resume() error {
	return m.send(`{"execute":"cont"}`)
}
