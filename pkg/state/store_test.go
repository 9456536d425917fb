// Copyright (c) 2016 Intel Corporation
// Copyright (c) 2019 Huawei Corporation
//
// SPDX-License-Identifier: Apache-2.0
//

package state

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/cc-vmrt/runtime/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testState(id string) *types.State {
	return &types.State{
		OCIVersion:  "1.0.2",
		ID:          id,
		PID:         os.Getpid(),
		BundlePath:  "/bundles/" + id,
		CommsPath:   "/run/cc-oci-runtime/" + id,
		ProcessPath: "/run/cc-oci-runtime/" + id + "/process.sock",
		Status:      types.StatusCreated,
		Created:     time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		VM: types.VMState{
			HypervisorPath: "/usr/bin/qemu",
			ImagePath:      "/usr/share/image.img",
			KernelPath:     "/usr/share/vmlinuz",
			WorkloadPath:   "/run/cc-oci-runtime/" + id + "/rootfs",
			KernelParams:   "console=hvc0",
			PID:            0,
		},
		Proxy: types.ProxyState{
			CtlSocket:     "/run/cc-oci-runtime/" + id + "/proxy.sock",
			IOSocket:      "/run/cc-oci-runtime/" + id + "/proxy-io.sock",
			ConsoleSocket: "/run/cc-oci-runtime/" + id + "/console.sock",
		},
	}
}

func TestWriteReadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	s := New(dir)

	want := testState("c1")
	require.NoError(t, s.Write(want))

	got, err := s.Read("c1")
	require.NoError(t, err)

	assert.Equal(t, want.ID, got.ID)
	assert.Equal(t, want.OCIVersion, got.OCIVersion)
	assert.Equal(t, want.PID, got.PID)
	assert.Equal(t, want.Status, got.Status)
	assert.True(t, want.Created.Equal(got.Created))
	assert.Equal(t, want.VM, got.VM)
	assert.Equal(t, want.Proxy, got.Proxy)
}

func TestWritePreservesCreatedOnRewrite(t *testing.T) {
	dir := t.TempDir()
	s := New(dir)

	st := testState("c1")
	require.NoError(t, s.Write(st))

	original := st.Created

	reloaded, err := s.Read("c1")
	require.NoError(t, err)
	reloaded.Status = types.StatusRunning

	require.NoError(t, s.Write(reloaded))

	final, err := s.Read("c1")
	require.NoError(t, err)
	assert.True(t, original.Equal(final.Created))
	assert.Equal(t, types.StatusRunning, final.Status)
}

func TestReadMissingRequiredKeyFails(t *testing.T) {
	dir := t.TempDir()
	s := New(dir)

	require.NoError(t, os.MkdirAll(s.Dir("c1"), 0700))
	// Missing "proxy" entirely.
	doc := `{
		"ociVersion": "1.0.2", "id": "c1", "pid": 1,
		"bundlePath": "/b", "commsPath": "/c", "processPath": "/p",
		"status": "created", "created": "2024-01-01T00:00:00Z",
		"vm": {"hypervisor_path":"x","image_path":"x","kernel_path":"x","kernel_params":"","pid":0}
	}`
	require.NoError(t, os.WriteFile(s.StatePath("c1"), []byte(doc), 0600))

	_, err := s.Read("c1")
	assert.Error(t, err)
}

func TestReadMissingRequiredSubKeyFails(t *testing.T) {
	dir := t.TempDir()
	s := New(dir)

	require.NoError(t, os.MkdirAll(s.Dir("c1"), 0700))
	// vm object present but missing "pid".
	doc := `{
		"ociVersion": "1.0.2", "id": "c1", "pid": 1,
		"bundlePath": "/b", "commsPath": "/c", "processPath": "/p",
		"status": "created", "created": "2024-01-01T00:00:00Z",
		"vm": {"hypervisor_path":"x","image_path":"x","kernel_path":"x","kernel_params":""},
		"proxy": {"ctlSocket":"x","ioSocket":"x","consoleSocket":"x"}
	}`
	require.NoError(t, os.WriteFile(s.StatePath("c1"), []byte(doc), 0600))

	_, err := s.Read("c1")
	assert.Error(t, err)
}

func TestReadIgnoresUnknownKeyInKnownObject(t *testing.T) {
	dir := t.TempDir()
	s := New(dir)

	require.NoError(t, os.MkdirAll(s.Dir("c1"), 0700))
	doc := `{
		"ociVersion": "1.0.2", "id": "c1", "pid": 1,
		"bundlePath": "/b", "commsPath": "/c", "processPath": "/p",
		"status": "created", "created": "2024-01-01T00:00:00Z",
		"vm": {"hypervisor_path":"x","image_path":"x","kernel_path":"x","kernel_params":"","pid":0,"future_field":true},
		"proxy": {"ctlSocket":"x","ioSocket":"x","consoleSocket":"x"}
	}`
	require.NoError(t, os.WriteFile(s.StatePath("c1"), []byte(doc), 0600))

	got, err := s.Read("c1")
	require.NoError(t, err)
	assert.Equal(t, "c1", got.ID)
}

func TestLoadAppliesDeadPidInvariant(t *testing.T) {
	dir := t.TempDir()
	s := New(dir)

	st := testState("c1")
	st.PID = deadPID(t)
	st.Status = types.StatusRunning
	require.NoError(t, s.Write(st))

	got, err := s.Load("c1")
	require.NoError(t, err)
	assert.Equal(t, types.StatusStopped, got.Status)
}

func TestListSkipsUnreadableEntries(t *testing.T) {
	dir := t.TempDir()
	s := New(dir)

	require.NoError(t, s.Write(testState("good")))

	// A subdirectory with no state.json at all.
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "bad"), 0700))

	states, err := s.List()
	require.NoError(t, err)
	require.Len(t, states, 1)
	assert.Equal(t, "good", states[0].ID)
}

func TestListOnMissingRootReturnsEmpty(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "does-not-exist"))
	states, err := s.List()
	require.NoError(t, err)
	assert.Empty(t, states)
}

func TestRemoveDeletesDirectory(t *testing.T) {
	dir := t.TempDir()
	s := New(dir)

	require.NoError(t, s.Write(testState("c1")))
	require.NoError(t, s.Remove("c1"))

	_, err := os.Stat(s.Dir("c1"))
	assert.True(t, os.IsNotExist(err))
}

// deadPID returns a pid that is guaranteed not to identify a live process.
func deadPID(t *testing.T) int {
	t.Helper()
	cmd := exec.Command("true")
	require.NoError(t, cmd.Run())
	return cmd.Process.Pid
}
