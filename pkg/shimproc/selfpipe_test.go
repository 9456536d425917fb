// Copyright (c) 2016 Intel Corporation
//
// SPDX-License-Identifier: Apache-2.0
//

package shimproc

import (
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSelfPipeDeliversForwardedSignal(t *testing.T) {
	sp := NewSelfPipe()
	defer sp.Stop()

	require := assert.New(t)
	require.Contains(ForwardedSignals, syscall.Signal(syscall.SIGUSR1))

	require.NoError(syscall.Kill(syscall.Getpid(), syscall.SIGUSR1))

	select {
	case sig := <-sp.C():
		require.Equal(syscall.SIGUSR1, sig)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for self-pipe delivery")
	}
}

func TestSelfPipeStopHaltsDelivery(t *testing.T) {
	sp := NewSelfPipe()
	sp.Stop()

	assert.NoError(t, syscall.Kill(syscall.Getpid(), syscall.SIGUSR2))

	select {
	case sig := <-sp.C():
		t.Fatalf("unexpected signal delivered after Stop: %v", sig)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestForwardedSignalsExcludesFatalSignals(t *testing.T) {
	fatal := []syscall.Signal{
		syscall.SIGKILL, syscall.SIGSTOP, syscall.SIGSEGV, syscall.SIGILL,
		syscall.SIGBUS, syscall.SIGFPE, syscall.SIGSYS, syscall.SIGQUIT,
		syscall.SIGABRT, syscall.SIGPIPE,
	}

	for _, f := range fatal {
		for _, s := range ForwardedSignals {
			assert.NotEqual(t, f, s, "fatal signal %v must not be forwarded", f)
		}
	}
}
