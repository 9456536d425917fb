// Copyright (c) 2016 Intel Corporation
//
// SPDX-License-Identifier: Apache-2.0
//

package orchestrator

import (
	"os"
	"testing"
	"time"

	"github.com/cc-vmrt/runtime/pkg/types"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

// testState builds a minimal, always-alive (pid = os.Getpid()) state
// document for tests that exercise orchestrator operations directly
// against a Store, bypassing Create's full VM/proxy/shim choreography.
func testState(id string) *types.State {
	return &types.State{
		OCIVersion:  "1.0.2",
		ID:          id,
		PID:         os.Getpid(),
		BundlePath:  "/bundles/" + id,
		CommsPath:   "/run/cc-vmrt/" + id + "/hypervisor.sock",
		ProcessPath: "/run/cc-vmrt/" + id + "/process.sock",
		Status:      types.StatusCreated,
		Created:     time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		VM: types.VMState{
			HypervisorPath: "/usr/bin/qemu",
			ImagePath:      "/usr/share/image.img",
			KernelPath:     "/usr/share/vmlinuz",
			WorkloadPath:   "/run/cc-vmrt/" + id + "/rootfs",
			KernelParams:   "console=hvc0",
			PID:            os.Getpid(),
		},
		Proxy: types.ProxyState{
			CtlSocket:     "/run/cc-vmrt/" + id + "/proxy.sock",
			IOSocket:      "/run/cc-vmrt/" + id + "/process.sock",
			ConsoleSocket: "/run/cc-vmrt/" + id + "/console.sock",
		},
		// A deliberately nonexistent mount-namespace handle: teardownMounts
		// treats a missing handle as "shim already exited, unmounts already
		// gone" and no-ops (mounts.go), so tests that never actually bind
		// mounted anything don't need CAP_SYS_ADMIN to exercise Delete.
		Namespaces: []types.Namespace{{Type: "mnt", Path: "/nonexistent-test-mnt-ns"}},
	}
}

func testOrchestrator(t *testing.T) *Orchestrator {
	t.Helper()
	root := t.TempDir()
	o, err := New(root, "/usr/libexec/vmrt-shim", "", "", "", logrus.NewEntry(logrus.StandardLogger()))
	require.NoError(t, err)
	return o
}
