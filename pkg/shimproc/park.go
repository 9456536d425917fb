// Copyright (c) 2016 Intel Corporation
//
// SPDX-License-Identifier: Apache-2.0
//

package shimproc

import (
	"io"
	"os"

	"golang.org/x/sys/unix"
)

// ParkParams describes the shim-side half of the launch rendezvous.
type ParkParams struct {
	StartFD int // inherited fd the shim blocks reading from until Release
	FlockFD int // inherited fd to flock; -1 for a non-initial (exec'd) shim
}

// Park blocks the shim process until the runtime's `start` subcommand
// releases it, producing a process with a valid, running pid before the
// workload itself exists (§4.4's rationale). When FlockFD is set, the
// advisory lock is acquired first, exactly as the original acquired it
// before PTRACE_TRACEME: a reimplementation substitutes a closed-pipe
// rendezvous for the trace-stop (see REDESIGN FLAGS), but the lock must
// still be held for the same window so `start`'s attached-mode wait on the
// same flock continues to mean "the shim is gone".
func Park(p ParkParams) error {
	if p.FlockFD >= 0 {
		if err := unix.Flock(p.FlockFD, unix.LOCK_EX); err != nil {
			return err
		}
	}

	f := os.NewFile(uintptr(p.StartFD), "start-pipe")
	defer f.Close()

	buf := make([]byte, 1)
	_, err := f.Read(buf)
	// io.EOF (the parent closed its end without writing) is the expected
	// "go ahead" signal; any other error is a real failure.
	if err != nil && err != io.EOF {
		return err
	}
	return nil
}
