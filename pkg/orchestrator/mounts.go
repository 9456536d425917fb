// Copyright (c) 2016 Intel Corporation
//
// SPDX-License-Identifier: Apache-2.0
//

package orchestrator

import (
	"fmt"
	"os"
	"runtime"

	"github.com/cc-vmrt/runtime/pkg/types"
	"golang.org/x/sys/unix"
)

// setupMounts bind-mounts every non-system mount into the workload's
// staged rootfs directory, in order, skipping the always-ignored sources
// named in §4.7 ("non-system-mount bind mounts... mounts with fsname of
// /proc, /dev, /dev/pts, /dev/shm, /dev/mqueue, /sys, /sys/fs/cgroup are
// ignored").
func setupMounts(workloadDir string, mounts []types.Mount) error {
	for _, m := range mounts {
		if types.IsSystemMount(m) {
			continue
		}

		target := workloadDir + "/" + m.Destination
		if err := os.MkdirAll(target, 0755); err != nil {
			return fmt.Errorf("orchestrator: creating mount target %s: %w", target, err)
		}

		flags := uintptr(unix.MS_BIND)
		if err := unix.Mount(m.Source, target, m.Type, flags, ""); err != nil {
			return fmt.Errorf("orchestrator: bind mount %s -> %s: %w", m.Source, target, err)
		}
	}
	return nil
}

// teardownMounts unmounts every non-system mount in reverse order, after
// joining the container's saved mount namespace (§4.7 "stop/delete...
// unmount in the container's mount namespace (join the saved
// /proc/<pid>/ns/mnt path...)"). If nsPath's process is already gone the
// rejoin is skipped and unmounts are skipped too, per REDESIGN FLAGS
// ("If that handle is gone (shim already exited), unmounts are skipped").
func teardownMounts(workloadDir string, mounts []types.Mount, nsPath string) error {
	nsFile, err := os.Open(nsPath)
	if err != nil {
		return nil
	}
	defer nsFile.Close()

	// setns(2) targets the calling thread, not the process; Go
	// goroutines can migrate threads, so the namespace switch and every
	// unmount that depends on it must run locked to one OS thread,
	// which we then discard (exiting it via runtime.Goexit-free return
	// simply never re-enters the pool) rather than try to prove the
	// rejoin was undone cleanly.
	errCh := make(chan error, 1)
	go func() {
		runtime.LockOSThread()
		errCh <- teardownMountsLocked(workloadDir, mounts, nsFile)
	}()
	return <-errCh
}

func teardownMountsLocked(workloadDir string, mounts []types.Mount, nsFile *os.File) error {
	origNS, err := os.Open("/proc/self/ns/mnt")
	if err != nil {
		return err
	}
	defer origNS.Close()

	if err := unix.Setns(int(nsFile.Fd()), unix.CLONE_NEWNS); err != nil {
		return fmt.Errorf("orchestrator: joining mount namespace: %w", err)
	}
	defer unix.Setns(int(origNS.Fd()), unix.CLONE_NEWNS)

	for i := len(mounts) - 1; i >= 0; i-- {
		m := mounts[i]
		if types.IsSystemMount(m) {
			continue
		}
		target := workloadDir + "/" + m.Destination
		if err := unix.Unmount(target, unix.MNT_DETACH); err != nil && err != unix.EINVAL {
			return fmt.Errorf("orchestrator: unmounting %s: %w", target, err)
		}
	}

	return nil
}
