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
	"github.com/cc-vmrt/runtime/pkg/shimproc"
	"github.com/cc-vmrt/runtime/pkg/types"
	"github.com/containerd/console"
	"golang.org/x/sys/unix"
)

// newContainerData is the payload of the agent's newcontainer hyper
// command, sent once per pod member (never for the sandbox itself; the
// startpod command bootVM sends carries an empty container list).
type newContainerData struct {
	ID      string   `json:"id"`
	Process struct {
		Args []string `json:"args"`
		Env  []string `json:"env"`
		Cwd  string   `json:"cwd"`
	} `json:"process"`
}

// Start implements §4.7 "start": wait for the agent's per-process socket,
// notify the agent of a pod member's workload, release the parked shim,
// and record the transition to running.
func (o *Orchestrator) Start(ctx context.Context, id string) error {
	st, err := o.Store.Load(id)
	if err != nil {
		return fmt.Errorf("orchestrator: loading state: %w", err)
	}
	if st.Status != types.StatusCreated {
		return fmt.Errorf("orchestrator: %s is %s, not created", id, st.Status)
	}

	p := pathsFor(o.Root, id)
	if _, err := os.Stat(p.ProcessSock); err != nil {
		if err := proxyclient.WaitForSocket(ctx, p.ProcessSock); err != nil {
			return fmt.Errorf("orchestrator: waiting for process socket: %w", err)
		}
	}

	if st.Pod != nil && !st.Pod.Sandbox {
		sandboxURL := proxyclient.DefaultURL(o.Root, st.Pod.SandboxName)
		client, err := proxyclient.Dial(sandboxURL)
		if err != nil {
			return fmt.Errorf("orchestrator: dialing proxy: %w", err)
		}
		defer client.Close()

		if err := client.Attach(id); err != nil {
			return fmt.Errorf("orchestrator: attaching to sandbox: %w", err)
		}

		nc := newContainerData{ID: id}
		nc.Process.Args = st.Process.Args
		nc.Process.Env = st.Process.Env
		nc.Process.Cwd = st.Process.Cwd
		if _, err := client.Hyper("newcontainer", nc); err != nil {
			return fmt.Errorf("orchestrator: newcontainer: %w", err)
		}
	}

	if err := shimproc.ReleaseStartFIFO(p.StartFifo); err != nil {
		return fmt.Errorf("orchestrator: releasing shim: %w", err)
	}

	st.Status = types.StatusRunning
	if err := o.Store.Write(st); err != nil {
		return fmt.Errorf("orchestrator: writing state: %w", err)
	}

	if err := katautils.PostStartHooks(ctx, st.Hooks, st); err != nil {
		o.Log.WithError(err).Warn("post-start hooks failed")
	}

	// §4.7 "start" waits on the shim flock only for a foreground CLI
	// invocation of a standalone container or the sandbox itself: gate on
	// whether this process's own stdin is a tty, not the workload's
	// requested terminal, and never for a pod member (cc_oci_start:
	// isatty(STDIN_FILENO) && !config->detached_mode && !config->pod).
	if _, err := console.ConsoleFromFile(os.Stdin); err == nil && (st.Pod == nil || st.Pod.Sandbox) {
		if err := o.waitAttached(id, p); err != nil {
			o.Log.WithError(err).Warn("attached-mode cleanup wait")
		}
	}

	return nil
}

// waitAttached implements the tty branch of §4.7 "start": exclusively
// lock .shim-flock, which only succeeds once the shim (holding it
// exclusively since it parked) has exited, then, if the container never
// progressed past running, tear down its mounts and record it as stopped.
// The runtime directory and its state document are left in place.
func (o *Orchestrator) waitAttached(id string, p Paths) error {
	f, err := os.OpenFile(p.ShimFlock, os.O_RDWR, 0600)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX); err != nil {
		return err
	}

	st, err := o.Store.Load(id)
	if err != nil {
		return err
	}
	if st.Status != types.StatusRunning && st.Status != types.StatusCreated {
		return nil
	}

	workloadDir := p.Dir + "/rootfs"
	nsPath := mountNamespacePath(st)
	if err := teardownMounts(workloadDir, st.Mounts, nsPath); err != nil {
		return err
	}
	st.Status = types.StatusStopped
	return o.Store.Write(st)
}
