// Copyright (c) 2016 Intel Corporation
//
// SPDX-License-Identifier: Apache-2.0
//

package orchestrator

import (
	"fmt"
	"syscall"

	"github.com/cc-vmrt/runtime/pkg/proxyclient"
	"github.com/cc-vmrt/runtime/pkg/types"
)

// Kill implements §4.7 "kill(signum)". A pod's sandbox container only ever
// transitions to stopped; everything else, a standalone container included,
// signals the shim and, for SIGKILL/SIGSTOP, also asks the agent to signal
// the in-VM process directly.
func (o *Orchestrator) Kill(id string, signum syscall.Signal) error {
	st, err := o.Store.Load(id)
	if err != nil {
		return fmt.Errorf("orchestrator: loading state: %w", err)
	}

	if st.Status == types.StatusStopped {
		return fmt.Errorf("orchestrator: %s is already stopped", id)
	}

	// A sandbox carries no workload of its own: killing it is just a
	// status transition, with no shim/agent signalling at all
	// (cc_oci_kill: cc_pod_is_sandbox(config) short-circuits before any
	// kill(2) call).
	if st.Pod != nil && st.Pod.Sandbox {
		st.Status = types.StatusStopped
		return o.Store.Write(st)
	}

	prevStatus := st.Status
	st.Status = types.StatusStopping
	if err := o.Store.Write(st); err != nil {
		return fmt.Errorf("orchestrator: writing state: %w", err)
	}

	if st.PID > 0 {
		if err := syscall.Kill(st.PID, signum); err != nil {
			st.Status = prevStatus
			o.Store.Write(st)
			return fmt.Errorf("orchestrator: signalling shim %d: %w", st.PID, err)
		}
	}

	if signum == syscall.SIGKILL || signum == syscall.SIGSTOP {
		proxyURL := proxyclient.DefaultURL(o.Root, sandboxIDFor(st, id))
		if client, err := proxyclient.Dial(proxyURL); err == nil {
			func() {
				defer client.Close()
				if err := client.Attach(id); err == nil {
					client.Hyper("killcontainer", killContainerData{
						Container: id,
						Signal:    int(signum),
					})
				}
			}()
		}
	}

	st.Status = types.StatusStopped
	if err := o.Store.Write(st); err != nil {
		return fmt.Errorf("orchestrator: writing state: %w", err)
	}
	return nil
}

// killContainerData is the payload of the agent's killcontainer hyper
// command.
type killContainerData struct {
	Container string `json:"container"`
	Signal    int    `json:"signal"`
}

// sandboxIDFor returns the id whose proxy instance st's VM runs under:
// the pod's sandbox name if st records pod membership, id itself otherwise.
func sandboxIDFor(st *types.State, id string) string {
	if st.Pod != nil && !st.Pod.Sandbox {
		return st.Pod.SandboxName
	}
	return id
}
