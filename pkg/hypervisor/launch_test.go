// Copyright (c) 2016 Intel Corporation
//
// SPDX-License-Identifier: Apache-2.0
//

package hypervisor

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidatePathsRejectsMissingImage(t *testing.T) {
	dir := t.TempDir()
	kernel := filepath.Join(dir, "vmlinuz")
	require.NoError(t, os.WriteFile(kernel, nil, 0644))

	err := ValidatePaths(filepath.Join(dir, "missing.img"), kernel, dir)
	assert.Error(t, err)
}

func TestValidatePathsRejectsMissingWorkloadDir(t *testing.T) {
	dir := t.TempDir()
	image := filepath.Join(dir, "image.img")
	require.NoError(t, os.WriteFile(image, nil, 0644))
	kernel := filepath.Join(dir, "vmlinuz")
	require.NoError(t, os.WriteFile(kernel, nil, 0644))

	err := ValidatePaths(image, kernel, filepath.Join(dir, "no-such-dir"))
	assert.Error(t, err)
}

func TestValidatePathsAccepts(t *testing.T) {
	dir := t.TempDir()
	image := filepath.Join(dir, "image.img")
	require.NoError(t, os.WriteFile(image, []byte("x"), 0644))
	kernel := filepath.Join(dir, "vmlinuz")
	require.NoError(t, os.WriteFile(kernel, nil, 0644))

	assert.NoError(t, ValidatePaths(image, kernel, dir))
}

func TestImageSize(t *testing.T) {
	dir := t.TempDir()
	image := filepath.Join(dir, "image.img")
	require.NoError(t, os.WriteFile(image, []byte("hello"), 0644))

	size, err := ImageSize(image)
	require.NoError(t, err)
	assert.Equal(t, int64(5), size)
}

func TestLaunchRejectsEmptyArgv(t *testing.T) {
	_, err := Launch(nil, LaunchOptions{})
	assert.Error(t, err)
}

func TestLaunchRedirectsLogs(t *testing.T) {
	dir := t.TempDir()

	proc, err := Launch([]string{"/bin/sh", "-c", "echo out; echo err 1>&2"}, LaunchOptions{
		LogDir: dir,
		ID:     "c1",
	})
	require.NoError(t, err)
	require.NotNil(t, proc)

	// Launch reaps the child itself in a background goroutine, so the
	// test can't Wait() on it directly without racing that reap; poll
	// the log files instead.
	var stdout, stderr []byte
	require.Eventually(t, func() bool {
		stdout, _ = os.ReadFile(filepath.Join(dir, "c1-hypervisor.stdout"))
		stderr, _ = os.ReadFile(filepath.Join(dir, "c1-hypervisor.stderr"))
		return len(stdout) > 0 && len(stderr) > 0
	}, 2*time.Second, 10*time.Millisecond)

	assert.Contains(t, string(stdout), "out")
	assert.Contains(t, string(stderr), "err")
}
