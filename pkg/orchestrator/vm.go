// Copyright (c) 2016 Intel Corporation
//
// SPDX-License-Identifier: Apache-2.0
//

package orchestrator

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/cc-vmrt/runtime/pkg/hypervisor"
	"github.com/cc-vmrt/runtime/pkg/proxyclient"
	"github.com/cc-vmrt/runtime/pkg/types"
	"github.com/cc-vmrt/runtime/pkg/uuid"
)

// bootResult carries what create needs to populate the state document
// after booting a new VM (§4.5 steps 1-9).
type bootResult struct {
	HypervisorPID int
	ProxyPID      int
	ProxyURL      string
}

// bootVM builds the hypervisor command line, launches it, waits for the
// agent to come up, registers the VM with the proxy, and starts the pod
// sandbox (§4.5). It is only run for a sandbox container (a non-pod
// container is its own sandbox).
func bootVM(ctx context.Context, o *Orchestrator, cfg *types.Config, p Paths) (*bootResult, error) {
	argsPath, err := hypervisor.ArgsFilePath(cfg.BundlePath, o.SysconfDir, o.DefaultsDir)
	if err != nil {
		return nil, err
	}
	lines, err := hypervisor.LoadArgsFile(argsPath)
	if err != nil {
		return nil, err
	}

	size, err := hypervisor.ImageSize(cfg.VM.ImagePath)
	if err != nil {
		return nil, err
	}

	workloadDir := p.Dir + "/rootfs"
	if err := os.MkdirAll(workloadDir, 0755); err != nil {
		return nil, err
	}

	name := cfg.ID
	if len(name) > 12 {
		name = name[:12]
	}

	vars := hypervisor.Vars{
		WorkloadDir:    workloadDir,
		Kernel:         cfg.VM.KernelPath,
		KernelParams:   cfg.VM.KernelParams,
		Image:          cfg.VM.ImagePath,
		Size:           fmt.Sprintf("%d", size),
		CommsSocket:    p.HypervisorSock,
		ProcessSocket:  fmt.Sprintf("socket,id=procsock,path=%s,server,nowait", p.ProcessSock),
		ConsoleDevice:  hypervisor.ConsoleDevice(p.ConsoleSock),
		Name:           name,
		UUID:           uuid.Generate().String(),
		AgentCtlSocket: p.AgentCtlSock,
		AgentTTYSocket: p.AgentTTYSock,
	}

	argv, err := hypervisor.Expand(lines, vars)
	if err != nil {
		return nil, err
	}

	if err := hypervisor.ValidatePaths(cfg.VM.ImagePath, cfg.VM.KernelPath, workloadDir); err != nil {
		return nil, err
	}

	hvProc, err := hypervisor.Launch(argv, hypervisor.LaunchOptions{LogDir: o.HypervisorLogDir, ID: cfg.ID})
	if err != nil {
		return nil, err
	}

	proxyPID, proxyURL, err := proxyclient.Launch(o.Root, proxyclient.Params{
		ID:        cfg.ID,
		ProxyPath: "cc-proxy",
		AgentURL:  p.AgentCtlSock,
		ConsoleURL: p.ConsoleSock,
		Logger:    o.Log,
	})
	if err != nil {
		return nil, err
	}

	if err := proxyclient.WaitForSocket(ctx, p.AgentCtlSock); err != nil {
		return nil, err
	}

	client, err := proxyclient.Dial(proxyURL)
	if err != nil {
		return nil, err
	}
	defer client.Close()

	if err := client.Hello(cfg.ID, p.AgentCtlSock, p.AgentTTYSock, p.ConsoleSock); err != nil {
		return nil, err
	}

	startpod := struct {
		Containers []interface{} `json:"containers"`
		Hostname   string         `json:"hostname"`
		Interfaces []interface{}  `json:"interfaces"`
		Routes     []interface{}  `json:"routes"`
		ShareDir   string         `json:"shareDir"`
	}{
		Containers: []interface{}{},
		Hostname:   name,
		Interfaces: []interface{}{},
		Routes:     []interface{}{},
		ShareDir:   "rootfs",
	}
	if _, err := client.Hyper("startpod", startpod); err != nil {
		return nil, err
	}

	return &bootResult{
		HypervisorPID: hvProc.Pid,
		ProxyPID:      proxyPID,
		ProxyURL:      proxyURL,
	}, nil
}

// waitForAgentReady is a thin wrapper around WaitForSocket that adds an
// upper bound when timeout is positive (§5 notes "hello blocks
// indefinitely" as the default). Nothing in this package calls it: bootVM
// calls WaitForSocket directly, with no bound.
func waitForAgentReady(ctx context.Context, path string, timeout time.Duration) error {
	if timeout <= 0 {
		return proxyclient.WaitForSocket(ctx, path)
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return proxyclient.WaitForSocket(ctx, path)
}
