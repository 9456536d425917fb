// Copyright (c) 2016 Intel Corporation
//
// SPDX-License-Identifier: Apache-2.0
//

package orchestrator

import (
	"fmt"

	"github.com/cc-vmrt/runtime/pkg/hypervisor"
	"github.com/cc-vmrt/runtime/pkg/types"
)

// Pause implements §4.7 "pause": connect to the hypervisor's monitor
// socket and issue stop, moving a running container to paused. The
// monitor socket belongs to the VM, so this pauses every container
// sharing it; callers should only invoke it on the sandbox.
func (o *Orchestrator) Pause(id string) error {
	return o.setPaused(id, types.StatusRunning, types.StatusPaused, (*hypervisor.Monitor).Stop)
}

// Resume implements §4.7 "resume": the inverse of Pause.
func (o *Orchestrator) Resume(id string) error {
	return o.setPaused(id, types.StatusPaused, types.StatusRunning, (*hypervisor.Monitor).Resume)
}

func (o *Orchestrator) setPaused(id string, from, to types.Status, op func(*hypervisor.Monitor) error) error {
	st, err := o.Store.Load(id)
	if err != nil {
		return fmt.Errorf("orchestrator: loading state: %w", err)
	}
	if st.Status != from {
		return fmt.Errorf("orchestrator: %s is %s, not %s", id, st.Status, from)
	}

	p := pathsFor(o.Root, id)
	mon, err := hypervisor.DialMonitor(p.HypervisorSock)
	if err != nil {
		return fmt.Errorf("orchestrator: dialing hypervisor monitor: %w", err)
	}
	defer mon.Close()

	if err := op(mon); err != nil {
		return fmt.Errorf("orchestrator: monitor command failed: %w", err)
	}

	st.Status = to
	if err := o.Store.Write(st); err != nil {
		return fmt.Errorf("orchestrator: writing state: %w", err)
	}
	return nil
}
