// Copyright (c) 2016 Intel Corporation
//
// SPDX-License-Identifier: Apache-2.0
//

package orchestrator

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/cc-vmrt/runtime/pkg/proxyclient"
	"github.com/cc-vmrt/runtime/pkg/shimproc"
	"github.com/cc-vmrt/runtime/pkg/types"
)

// ExecOptions overrides the workload description exec runs, loaded from an
// optional process-description JSON file (§4.7 "exec").
type ExecOptions struct {
	Args     []string
	Env      []string
	Cwd      string
	Terminal bool
}

// LoadExecOptions parses a process-description JSON file in the OCI
// process.json shape exec accepts as an override.
func LoadExecOptions(path string) (*ExecOptions, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var raw struct {
		Args     []string `json:"args"`
		Env      []string `json:"env"`
		Cwd      string   `json:"cwd"`
		Terminal bool     `json:"terminal"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("orchestrator: parsing process description: %w", err)
	}

	return &ExecOptions{Args: raw.Args, Env: raw.Env, Cwd: raw.Cwd, Terminal: raw.Terminal}, nil
}

// execCmdData is the payload of the agent's execcmd hyper command.
type execCmdData struct {
	Container string   `json:"container"`
	Process   struct {
		Args []string `json:"args"`
		Env  []string `json:"env"`
		Cwd  string   `json:"cwd"`
	} `json:"process"`
}

// Exec implements §4.7 "exec": attach to the sandbox, allocate a fresh set
// of I/O streams, tell the agent to run the override process, and launch a
// non-initial shim to stream it — no parking, no flock. When attached
// (the common case), it blocks for the shim to exit and returns its exit
// code.
func (o *Orchestrator) Exec(id string, opts *ExecOptions, attach bool) (int, error) {
	st, err := o.Store.Load(id)
	if err != nil {
		return -1, fmt.Errorf("orchestrator: loading state: %w", err)
	}
	if st.Status != types.StatusRunning {
		return -1, fmt.Errorf("orchestrator: %s is %s, not running", id, st.Status)
	}

	sandboxID := sandboxIDFor(st, id)
	proxyURL := proxyclient.DefaultURL(o.Root, sandboxID)

	client, err := proxyclient.Dial(proxyURL)
	if err != nil {
		return -1, fmt.Errorf("orchestrator: dialing proxy: %w", err)
	}
	defer client.Close()

	if err := client.Attach(id); err != nil {
		return -1, fmt.Errorf("orchestrator: attaching to sandbox: %w", err)
	}

	nStreams := 1
	if !opts.Terminal {
		nStreams = 2
	}
	ioBase, ioFD, err := client.AllocateIO(nStreams)
	if err != nil {
		return -1, fmt.Errorf("orchestrator: allocating io streams: %w", err)
	}

	ec := execCmdData{Container: id}
	ec.Process.Args = opts.Args
	ec.Process.Env = opts.Env
	ec.Process.Cwd = opts.Cwd
	if _, err := client.Hyper("execcmd", ec); err != nil {
		return -1, fmt.Errorf("orchestrator: execcmd: %w", err)
	}

	ctlFile, err := client.File()
	if err != nil {
		return -1, fmt.Errorf("orchestrator: duplicating shim proxy ctl fd: %w", err)
	}
	ioFile := os.NewFile(uintptr(ioFD), "proxy-io")

	launched, err := shimproc.Launch(shimproc.LaunchParams{
		ID:        id,
		ShimPath:  o.ShimPath,
		ProxyCtl:  ctlFile,
		ProxyIO:   ioFile,
		IOBase:    ioBase,
		HasStderr: !opts.Terminal,
		Initial:   false,
	})
	if err != nil {
		return -1, fmt.Errorf("orchestrator: launching shim: %w", err)
	}

	if !attach {
		return 0, nil
	}

	// Wait's own error, if any, is just "exit status N" wrapping what
	// ProcessState.ExitCode already reports; only a start-time failure
	// (already handled above) or a signal death is worth surfacing
	// separately, and the exit code still answers both.
	_ = launched.Cmd.Wait()
	if launched.Cmd.ProcessState != nil {
		return launched.Cmd.ProcessState.ExitCode(), nil
	}
	return -1, fmt.Errorf("orchestrator: shim exited without a process state")
}
