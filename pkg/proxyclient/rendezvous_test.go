// Copyright (c) 2017 Intel Corporation
//
// SPDX-License-Identifier: Apache-2.0
//

package proxyclient

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWaitForSocketReturnsImmediatelyIfPresent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ga-ctl.sock")
	require.NoError(t, os.WriteFile(path, nil, 0600))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	assert.NoError(t, WaitForSocket(ctx, path))
}

func TestWaitForSocketBlocksUntilCreated(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ga-ctl.sock")

	errCh := make(chan error, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		errCh <- WaitForSocket(ctx, path)
	}()

	time.Sleep(50 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, nil, 0600))

	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("WaitForSocket did not observe socket creation")
	}
}

func TestWaitForSocketRespectsContextCancellation(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "never-appears.sock")

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	err := WaitForSocket(ctx, path)
	assert.Error(t, err)
}
