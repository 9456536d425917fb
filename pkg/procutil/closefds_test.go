// Copyright (c) 2016 Intel Corporation
//
// SPDX-License-Identifier: Apache-2.0
//

package procutil

import (
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// CloseExcept closes every fd >= 3 in the calling process, so it cannot be
// exercised safely inside the shared test binary (it would also close fds
// the go test harness itself depends on). Following the same pattern
// os/exec's own tests use, the real assertion runs in a throwaway
// subprocess that does nothing but call CloseExcept and report what
// survived.
func TestCloseExceptInSubprocess(t *testing.T) {
	if os.Getenv("CC_VMRT_CLOSEEXCEPT_HELPER") == "1" {
		runCloseExceptHelper()
		return
	}

	r, w, err := os.Pipe()
	require.NoError(t, err)
	defer r.Close()

	extraR, extraW, err := os.Pipe()
	require.NoError(t, err)
	defer extraR.Close()
	defer extraW.Close()

	cmd := exec.Command(os.Args[0], "-test.run=TestCloseExceptInSubprocess")
	cmd.Env = append(os.Environ(), "CC_VMRT_CLOSEEXCEPT_HELPER=1",
		fmt.Sprintf("CC_VMRT_KEEP_FD=%d", 3))
	cmd.ExtraFiles = []*os.File{w, extraW}

	out, err := cmd.Output()
	w.Close()
	require.NoError(t, err)

	assert.Contains(t, string(out), "kept-fd-open")
	assert.Contains(t, string(out), "extra-fd-closed")
}

// runCloseExceptHelper is the subprocess body: fd 3 (ExtraFiles[0]) is
// whitelisted, fd 4 (ExtraFiles[1]) is not, so CloseExcept must close only
// the latter.
func runCloseExceptHelper() {
	keepStr := os.Getenv("CC_VMRT_KEEP_FD")
	keepFd, _ := strconv.Atoi(keepStr)

	if err := CloseExcept(map[int]bool{keepFd: true}); err != nil {
		fmt.Println("close-except-error:", err)
		return
	}

	kept := os.NewFile(uintptr(keepFd), "kept")
	if _, err := kept.Write([]byte("x")); err == nil {
		fmt.Println("kept-fd-open")
	} else {
		fmt.Println("kept-fd-closed")
	}

	// fd 4 is a pipe's write end whose read end the parent still holds:
	// a write succeeds only if CloseExcept left it open.
	closedFd := os.NewFile(uintptr(keepFd+1), "closed")
	if _, err := closedFd.Write([]byte("x")); err != nil {
		fmt.Println("extra-fd-closed")
	} else {
		fmt.Println("extra-fd-open")
	}
}
