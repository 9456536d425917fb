// Copyright (c) 2016 Intel Corporation
//
// SPDX-License-Identifier: Apache-2.0
//

package orchestrator

import (
	"context"
	"fmt"
	"os"

	"github.com/cc-vmrt/runtime/pkg/katautils"
	"github.com/cc-vmrt/runtime/pkg/proxyclient"
	"github.com/cc-vmrt/runtime/pkg/types"
	"github.com/hashicorp/go-multierror"
)

// destroyPodData is the payload of the agent's destroypod hyper command.
type destroyPodData struct{}

// Delete implements the combined §4.7 "stop/delete": tear down the agent's
// view of the container (destroypod for a sandbox), unmount every
// non-system mount in the container's saved mount namespace, release the
// proxy's resources, run the post-stop hooks, and remove the on-disk state.
func (o *Orchestrator) Delete(ctx context.Context, id string) error {
	st, err := o.Store.Load(id)
	if err != nil {
		// §7: a missing state document is fatal everywhere except delete,
		// which tolerates double-deletes by logging and returning success.
		if os.IsNotExist(err) {
			o.Log.WithField("id", id).Warn("delete: no state found, already removed")
			return nil
		}
		return fmt.Errorf("orchestrator: loading state: %w", err)
	}

	if st.Status != types.StatusStopped {
		return fmt.Errorf("orchestrator: %s is %s, not stopped", id, st.Status)
	}

	sandboxID := sandboxIDFor(st, id)
	proxyURL := proxyclient.DefaultURL(o.Root, sandboxID)

	if client, err := proxyclient.Dial(proxyURL); err == nil {
		func() {
			defer client.Close()
			if err := client.Attach(id); err == nil {
				if st.Pod == nil || st.Pod.Sandbox {
					client.Hyper("destroypod", destroyPodData{})
				}
				client.Bye(id)
			}
		}()
	}

	// Cleanup from here on is best-effort (§7): any one step failing must
	// not skip the rest, and must not block removing the on-disk state.
	// go-multierror accumulates every failure so the caller sees the full
	// picture instead of only whichever step happened to run first.
	var cleanupErr *multierror.Error

	p := pathsFor(o.Root, id)
	workloadDir := p.Dir + "/rootfs"
	nsPath := mountNamespacePath(st)
	if err := teardownMounts(workloadDir, st.Mounts, nsPath); err != nil {
		o.Log.WithError(err).Warn("tearing down mounts")
		cleanupErr = multierror.Append(cleanupErr, fmt.Errorf("tearing down mounts: %w", err))
	}

	if err := katautils.PostStopHooks(ctx, st.Hooks, st); err != nil {
		o.Log.WithError(err).Warn("post-stop hooks failed")
		cleanupErr = multierror.Append(cleanupErr, fmt.Errorf("post-stop hooks: %w", err))
	}

	if st.Pod == nil || st.Pod.Sandbox {
		if err := proxyclient.Stop(st.VM.PID); err != nil {
			o.Log.WithError(err).Warn("stopping hypervisor")
			cleanupErr = multierror.Append(cleanupErr, fmt.Errorf("stopping hypervisor: %w", err))
		}
	}

	if err := o.Store.Remove(id); err != nil {
		cleanupErr = multierror.Append(cleanupErr, fmt.Errorf("removing state: %w", err))
	}

	return cleanupErr.ErrorOrNil()
}

// mountNamespacePath finds the container's saved mount-namespace path,
// falling back to its shim's own /proc/<pid>/ns/mnt if the state document
// never recorded one explicitly.
func mountNamespacePath(st *types.State) string {
	for _, ns := range st.Namespaces {
		if ns.Type == "mnt" && ns.Path != "" {
			return ns.Path
		}
	}
	return fmt.Sprintf("/proc/%d/ns/mnt", st.PID)
}
