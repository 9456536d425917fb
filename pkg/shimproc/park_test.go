// Copyright (c) 2016 Intel Corporation
//
// SPDX-License-Identifier: Apache-2.0
//

package shimproc

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func tryFlock(fd int) error {
	return unix.Flock(fd, unix.LOCK_EX|unix.LOCK_NB)
}

func TestParkBlocksUntilReleased(t *testing.T) {
	r, w, err := os.Pipe()
	require.NoError(t, err)
	defer r.Close()

	done := make(chan error, 1)
	go func() {
		done <- Park(ParkParams{StartFD: int(r.Fd()), FlockFD: -1})
	}()

	select {
	case <-done:
		t.Fatal("Park returned before being released")
	case <-time.After(100 * time.Millisecond):
	}

	require.NoError(t, w.Close())

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Park did not return after release")
	}
}

func TestParkAcquiresFlockWhenRequested(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".shim-flock")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0644)
	require.NoError(t, err)
	defer f.Close()

	r, w, err := os.Pipe()
	require.NoError(t, err)
	defer r.Close()
	defer w.Close()

	done := make(chan error, 1)
	go func() {
		done <- Park(ParkParams{StartFD: int(r.Fd()), FlockFD: int(f.Fd())})
	}()

	require.NoError(t, w.Close())

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Park did not return")
	}

	// The flock is held by Park's fd, not released on Park's return (it
	// is released only when the shim process exits); a second, distinct
	// fd attempting a non-blocking exclusive lock must fail.
	second, err := os.OpenFile(path, os.O_RDWR, 0644)
	require.NoError(t, err)
	defer second.Close()

	assert.Error(t, tryFlock(int(second.Fd())))
}
