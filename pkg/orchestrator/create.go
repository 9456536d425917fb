// Copyright (c) 2016 Intel Corporation
//
// SPDX-License-Identifier: Apache-2.0
//

package orchestrator

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/blang/semver/v4"
	"github.com/cc-vmrt/runtime/pkg/homedir"
	"github.com/cc-vmrt/runtime/pkg/katautils"
	"github.com/cc-vmrt/runtime/pkg/proxyclient"
	"github.com/cc-vmrt/runtime/pkg/shimproc"
	"github.com/cc-vmrt/runtime/pkg/state"
	"github.com/cc-vmrt/runtime/pkg/types"
)

// nowFunc is overridden in tests.
var nowFunc = timeNow

// minOCIVersion/maxOCIVersion bound the runtime-spec versions this runtime
// understands; create rejects anything outside the range rather than
// silently misinterpreting an incompatible bundle.
var (
	minOCIVersion = semver.MustParse("1.0.0")
	maxOCIVersion = semver.MustParse("1.1.0")
)

// checkOCIVersion gates create on cfg.OCIVersion falling within the
// supported range (§4.7 "create"). Parsing one dotted version string is all
// the runtime ever needs from semver — no ranges, no bundle version
// negotiation beyond this single min/max check.
func checkOCIVersion(raw string) error {
	v, err := semver.ParseTolerant(raw)
	if err != nil {
		return fmt.Errorf("orchestrator: invalid ociVersion %q: %w", raw, err)
	}
	if v.LT(minOCIVersion) || v.GTE(maxOCIVersion) {
		return fmt.Errorf("orchestrator: unsupported ociVersion %q (supported: [%s, %s))", raw, minOCIVersion, maxOCIVersion)
	}
	return nil
}

// hasHomeEnv reports whether env already sets HOME, per-spec (§6.5) deferring
// to whatever the workload's own config.json process.env provided.
func hasHomeEnv(env []string) bool {
	for _, kv := range env {
		if strings.HasPrefix(kv, "HOME=") {
			return true
		}
	}
	return false
}

// Create implements §4.7 "create": set up the runtime directory, perform
// the non-system-mount bind mounts, boot a VM if this container is a
// sandbox (§4.5) or attach to one already running if it is a pod member,
// launch the parked initial shim, persist the resulting state document and
// run the prestart hooks. cfg.Namespaces are recorded in the state document
// only; Create neither creates nor joins any namespace itself.
func (o *Orchestrator) Create(ctx context.Context, cfg *types.Config) (*types.State, error) {
	if cfg.ID == "" {
		return nil, fmt.Errorf("orchestrator: container id required")
	}
	if err := checkOCIVersion(cfg.OCIVersion); err != nil {
		return nil, err
	}
	if _, err := o.Store.Read(cfg.ID); err == nil {
		return nil, fmt.Errorf("orchestrator: container %s already exists", cfg.ID)
	}

	p := pathsFor(o.Root, cfg.ID)
	if err := os.MkdirAll(p.Dir, 0700); err != nil {
		return nil, fmt.Errorf("orchestrator: creating runtime dir: %w", err)
	}

	workloadDir := p.Dir + "/rootfs"
	if err := setupMounts(workloadDir, cfg.Mounts); err != nil {
		return nil, err
	}

	if !hasHomeEnv(cfg.Process.Env) {
		home := homedir.Resolve(workloadDir, int(cfg.Process.UID))
		cfg.Process.Env = append(cfg.Process.Env, "HOME="+home)
	}

	st := state.NewState(cfg.ID, nowFunc())
	st.OCIVersion = cfg.OCIVersion
	st.BundlePath = cfg.BundlePath
	st.Mounts = cfg.Mounts
	st.Namespaces = cfg.Namespaces
	st.Annotations = cfg.Annotations
	st.Hooks = cfg.Hooks
	st.Process = types.ProcessState{
		Cwd:      cfg.Process.Cwd,
		Terminal: cfg.Process.Terminal,
		User:     cfg.Process.User,
		Args:     cfg.Process.Args,
		Env:      cfg.Process.Env,
	}
	st.CommsPath = p.HypervisorSock
	st.ProcessPath = p.ProcessSock
	if p.ConsoleSock != "" {
		st.Console = &types.ConsoleState{Path: p.ConsoleSock}
	}
	if cfg.Pod != nil {
		st.Pod = &types.PodState{Sandbox: cfg.Pod.Sandbox, SandboxName: cfg.Pod.SandboxName}
	}

	var proxyURL string

	if cfg.IsSandbox() {
		boot, err := bootVM(ctx, o, cfg, p)
		if err != nil {
			return nil, fmt.Errorf("orchestrator: booting vm: %w", err)
		}
		st.VM = types.VMState{
			HypervisorPath: cfg.VM.HypervisorPath,
			ImagePath:      cfg.VM.ImagePath,
			KernelPath:     cfg.VM.KernelPath,
			WorkloadPath:   workloadDir,
			KernelParams:   cfg.VM.KernelParams,
			PID:            boot.HypervisorPID,
		}
		proxyURL = boot.ProxyURL
	} else {
		// A pod member reuses the sandbox's already-running proxy and
		// VM; it only needs its own shim attached to that VM.
		sandboxState, err := o.Store.Load(cfg.Pod.SandboxName)
		if err != nil {
			return nil, fmt.Errorf("orchestrator: loading sandbox state: %w", err)
		}
		st.VM = sandboxState.VM
		proxyURL = proxyclient.DefaultURL(o.Root, cfg.Pod.SandboxName)
	}
	st.Proxy = types.ProxyState{
		CtlSocket:     p.HypervisorSock,
		IOSocket:      p.ProcessSock,
		ConsoleSocket: p.ConsoleSock,
	}

	if err := katautils.CreateRuntimeHooks(ctx, cfg.Hooks, st); err != nil {
		return nil, fmt.Errorf("orchestrator: createRuntime hooks: %w", err)
	}

	client, err := proxyclient.Dial(proxyURL)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: dialing proxy: %w", err)
	}
	defer client.Close()

	// The VM-booting connection used above (inside bootVM) already sent
	// hello; every other connection, including this one and the one the
	// shim itself will own, must identify itself with attach.
	if err := client.Attach(cfg.ID); err != nil {
		return nil, fmt.Errorf("orchestrator: attaching to sandbox: %w", err)
	}

	nStreams := 1
	if !cfg.Process.Terminal {
		nStreams = 2
	}
	ioBase, ioFD, err := client.AllocateIO(nStreams)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: allocating io streams: %w", err)
	}
	st.Process.StdioStream = ioBase
	if !cfg.Process.Terminal {
		st.Process.StderrStream = ioBase + 1
	}

	ctlFile, err := client.File()
	if err != nil {
		return nil, fmt.Errorf("orchestrator: duplicating shim proxy ctl fd: %w", err)
	}
	ioFile := os.NewFile(uintptr(ioFD), "proxy-io")

	flockFile, err := os.OpenFile(p.ShimFlock, os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		ctlFile.Close()
		ioFile.Close()
		return nil, fmt.Errorf("orchestrator: opening shim flock: %w", err)
	}

	launched, err := shimproc.Launch(shimproc.LaunchParams{
		ID:            cfg.ID,
		ShimPath:      o.ShimPath,
		ProxyCtl:      ctlFile,
		ProxyIO:       ioFile,
		IOBase:        ioBase,
		HasStderr:     !cfg.Process.Terminal,
		Initial:       true,
		FlockFile:     flockFile,
		StartFIFOPath: p.StartFifo,
	})
	if err != nil {
		return nil, fmt.Errorf("orchestrator: launching shim: %w", err)
	}

	if msg, ok := launched.SetupError(shimSetupTimeout); ok {
		launched.Abort()
		return nil, fmt.Errorf("orchestrator: shim setup failed: %s", msg)
	}

	// Sandbox and pod member alike record their own (initial) shim as the
	// container pid; a sandbox's hypervisor pid is kept in st.VM.PID.
	st.PID = launched.Pid

	if err := o.Store.Write(st); err != nil {
		launched.Abort()
		return nil, fmt.Errorf("orchestrator: writing state: %w", err)
	}

	if err := katautils.PreStartHooks(ctx, cfg.Hooks, st); err != nil {
		launched.Abort()
		return nil, fmt.Errorf("orchestrator: prestart hooks: %w", err)
	}

	return st, nil
}
