// Copyright (c) 2016 Intel Corporation
//
// SPDX-License-Identifier: Apache-2.0
//

package shimproc

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"syscall"

	"github.com/containerd/fifo"
)

// StdioFIFOs are the three named pipes a detached shim reads/writes instead
// of inheriting a controlling terminal's stdio (§4.6 "non_blocking path":
// when stdin is not a tty, the shim's I/O is handled as non-blocking pipes
// rather than a raw-mode terminal). The runtime opens the write/read ends
// named here before Launch and passes the matching read/write ends as the
// shim's inherited fds 0-2.
type StdioFIFOs struct {
	Dir    string
	Stdin  io.ReadWriteCloser
	Stdout io.ReadWriteCloser
	Stderr io.ReadWriteCloser
}

// OpenStdioFIFOs creates (if needed) and opens the stdin/stdout/stderr named
// pipes under dir. Each is opened O_CLOEXEC so a fork/exec racing the open
// (the hypervisor or proxy launch, both started around the same time) never
// inherits a shim stdio fd it has no business holding, the same leak
// containerd's own shim implementations guard against with this package.
func OpenStdioFIFOs(ctx context.Context, dir string) (*StdioFIFOs, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("shimproc: creating stdio dir: %w", err)
	}

	stdin, err := fifo.OpenFifo(ctx, filepath.Join(dir, "stdin"),
		syscall.O_RDONLY|syscall.O_CREAT|syscall.O_NONBLOCK, 0600)
	if err != nil {
		return nil, fmt.Errorf("shimproc: opening stdin fifo: %w", err)
	}

	stdout, err := fifo.OpenFifo(ctx, filepath.Join(dir, "stdout"),
		syscall.O_WRONLY|syscall.O_CREAT|syscall.O_NONBLOCK, 0600)
	if err != nil {
		stdin.Close()
		return nil, fmt.Errorf("shimproc: opening stdout fifo: %w", err)
	}

	stderr, err := fifo.OpenFifo(ctx, filepath.Join(dir, "stderr"),
		syscall.O_WRONLY|syscall.O_CREAT|syscall.O_NONBLOCK, 0600)
	if err != nil {
		stdin.Close()
		stdout.Close()
		return nil, fmt.Errorf("shimproc: opening stderr fifo: %w", err)
	}

	return &StdioFIFOs{Dir: dir, Stdin: stdin, Stdout: stdout, Stderr: stderr}, nil
}

// Close closes all three pipes, tolerating any already closed.
func (s *StdioFIFOs) Close() {
	s.Stdin.Close()
	s.Stdout.Close()
	s.Stderr.Close()
}
