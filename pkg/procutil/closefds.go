// Copyright (c) 2016 Intel Corporation
//
// SPDX-License-Identifier: Apache-2.0
//

package procutil

import (
	"os"
	"strconv"

	"golang.org/x/sys/unix"
)

// CloseExcept closes every open file descriptor numbered 3 or above except
// those in keep, by scanning /proc/self/fd (the shim launcher's step 6,
// §4.4: "close every fd >= 3 not in that whitelist").
//
// TODO: this scan is not synchronised against a concurrent open() in
// another goroutine racing in between the readdir and the close, so it can
// in principle miss or double-close an fd under heavy fd churn; on Linux
// >= 5.9 unix.CloseRange(3, unix.CLOSE_RANGE_UNSHARE... ) with per-fd
// exceptions removed would close this window, but close_range does not
// support an exclusion list, so keeping this scan (matching the original
// cc_oci_close_fds) is the pragmatic choice until the set of kept fds is
// small and fixed enough to enumerate gaps instead.
func CloseExcept(keep map[int]bool) error {
	entries, err := os.ReadDir("/proc/self/fd")
	if err != nil {
		return err
	}

	for _, entry := range entries {
		fd, err := strconv.Atoi(entry.Name())
		if err != nil {
			continue
		}
		if fd < 3 || keep[fd] {
			continue
		}

		// Best-effort: the fd may already be gone (it was the
		// directory handle ReadDir itself used), and EBADF there is
		// not an error worth propagating.
		unix.Close(fd)
	}

	return nil
}
