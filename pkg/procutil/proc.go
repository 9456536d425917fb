// Copyright (c) 2019 Hyper.sh
//
// SPDX-License-Identifier: Apache-2.0
//

// Package procutil provides the single primitive the orchestrator needs
// from /proc: whether a recorded pid is still alive.
package procutil

import (
	"syscall"

	"github.com/prometheus/procfs"
)

// IsAlive reports whether pid currently identifies a live process. Per the
// state invariant in spec §3.3, any state document whose recorded pid is not
// alive must be treated as status=stopped regardless of its stored value.
func IsAlive(pid int) bool {
	if pid <= 0 {
		return false
	}

	if _, err := procfs.NewProc(pid); err != nil {
		return false
	}

	// procfs.NewProc only checks that /proc/<pid> exists, which briefly
	// survives a zombie; kill(pid, 0) is the authoritative liveness
	// check and is what the lifecycle orchestrator's kill(signum) path
	// also relies on (§4.7 "kill(shim_pid, signum)").
	err := syscall.Kill(pid, 0)
	if err == nil {
		return true
	}

	return err != syscall.ESRCH
}
