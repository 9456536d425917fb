// Copyright (c) 2017 Intel Corporation
//
// SPDX-License-Identifier: Apache-2.0
//

package main

import (
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProcessSignal(t *testing.T) {
	tests := []struct {
		signal string
		valid  bool
		signum syscall.Signal
	}{
		{"SIGDCKBY", false, 0},
		{"DCKBY", false, 0},
		{"99999", false, 0},
		{"SIGTERM", true, syscall.SIGTERM},
		{"TERM", true, syscall.SIGTERM},
		{"15", true, syscall.SIGTERM},
		{"SIGKILL", true, syscall.SIGKILL},
		{"KILL", true, syscall.SIGKILL},
		{"9", true, syscall.SIGKILL},
	}

	for _, test := range tests {
		signum, err := processSignal(test.signal)
		if test.valid {
			assert.NoError(t, err, "signal %q should be valid", test.signal)
			assert.Equal(t, test.signum, signum)
		} else {
			assert.Error(t, err, "signal %q should be invalid", test.signal)
		}
	}
}
