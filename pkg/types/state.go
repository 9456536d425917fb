// Copyright (c) 2017 Intel Corporation
//
// SPDX-License-Identifier: Apache-2.0
//

package types

import (
	"time"

	specs "github.com/opencontainers/runtime-spec/specs-go"
)

// Status is the lifecycle status recorded in the state document (§3.3).
type Status string

// The only statuses the state document may hold. Transitions form the
// subgraph created -> running -> stopping -> stopped, with paused <-> running
// as the only cycle.
const (
	StatusCreated  Status = "created"
	StatusRunning  Status = "running"
	StatusPaused   Status = "paused"
	StatusStopping Status = "stopping"
	StatusStopped  Status = "stopped"
)

// ConsoleState is the optional console descriptor.
type ConsoleState struct {
	Path string `json:"path"`
}

// VMState mirrors Config.VM plus the workload path and live hypervisor pid.
type VMState struct {
	HypervisorPath string `json:"hypervisor_path"`
	ImagePath      string `json:"image_path"`
	KernelPath     string `json:"kernel_path"`
	WorkloadPath   string `json:"workload_path"`
	KernelParams   string `json:"kernel_params"`
	PID            int    `json:"pid"`
}

// ProxyState mirrors Config.Proxy.
type ProxyState struct {
	CtlSocket     string `json:"ctlSocket"`
	IOSocket      string `json:"ioSocket"`
	ConsoleSocket string `json:"consoleSocket"`
}

// PodState mirrors Config.Pod, when present.
type PodState struct {
	Sandbox     bool   `json:"sandbox"`
	SandboxName string `json:"sandbox_name"`
}

// ProcessState mirrors Config.Process as persisted on disk.
type ProcessState struct {
	Cwd          string   `json:"cwd"`
	Terminal     bool     `json:"terminal"`
	User         string   `json:"user"`
	Args         []string `json:"args"`
	Env          []string `json:"env"`
	StdioStream  uint64   `json:"stdio_stream"`
	StderrStream uint64   `json:"stderr_stream"`
}

// State is the persistent state document written to <root>/<id>/state.json
// (§3.2, §4.3, §6.4). Field names and the set of required keys follow the
// spec's reader semantics exactly.
type State struct {
	OCIVersion  string            `json:"ociVersion"`
	ID          string            `json:"id"`
	PID         int               `json:"pid"`
	BundlePath  string            `json:"bundlePath"`
	CommsPath   string            `json:"commsPath"`
	ProcessPath string            `json:"processPath"`
	Status      Status            `json:"status"`
	Created     time.Time         `json:"created"`
	Mounts      []Mount           `json:"mounts,omitempty"`
	Namespaces  []Namespace       `json:"namespaces,omitempty"`
	Console     *ConsoleState     `json:"console,omitempty"`
	VM          VMState           `json:"vm"`
	Proxy       ProxyState        `json:"proxy"`
	Pod         *PodState         `json:"pod,omitempty"`
	Annotations map[string]string `json:"annotations,omitempty"`
	Process     ProcessState      `json:"process"`

	// Hooks carries the bundle's config.json hooks (§6.5), persisted so
	// that start/delete can run poststart/poststop without having to
	// reread and reparse the bundle's config.json.
	Hooks *specs.Hooks `json:"hooks,omitempty"`
}
