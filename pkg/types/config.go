// Copyright (c) 2017 Intel Corporation
//
// SPDX-License-Identifier: Apache-2.0
//

// Package types holds the data structures shared by every component of the
// orchestrator: the already-parsed container configuration it consumes and
// the on-disk runtime state it owns.
package types

import specs "github.com/opencontainers/runtime-spec/specs-go"

// Process describes the workload to launch inside the VM.
type Process struct {
	Args    []string
	Env     []string
	Cwd     string
	User    string
	UID     uint32
	Terminal bool

	// StdioStream and StderrStream are the two I/O stream numbers
	// assigned by the proxy's allocateIO command. When Terminal is
	// true, StderrStream is always 0 (multiplexed into stdout).
	StdioStream  uint64
	StderrStream uint64
}

// Mount is a single OCI mount entry, already resolved by the (out of scope)
// bundle/mount spec handler.
type Mount struct {
	Source      string
	Destination string
	Type        string
	Options     []string
}

// ignoredMountSources lists fsname values the orchestrator never persists
// or bind-mounts itself: these are owned by the guest kernel/agent.
var ignoredMountSources = map[string]bool{
	"/proc":          true,
	"/dev":           true,
	"/dev/pts":       true,
	"/dev/shm":       true,
	"/dev/mqueue":    true,
	"/sys":           true,
	"/sys/fs/cgroup": true,
}

// IsSystemMount reports whether m is one of the always-ignored mount
// sources (§4.7 create, §8 "recognised mount sources" invariant).
func IsSystemMount(m Mount) bool {
	return ignoredMountSources[m.Source]
}

// Namespace is a single OCI namespace entry.
type Namespace struct {
	Type string
	Path string
}

// VMConfig describes the hypervisor this container (or pod sandbox) runs
// inside.
type VMConfig struct {
	HypervisorPath string
	KernelPath     string
	KernelParams   string
	ImagePath      string

	// HypervisorPID is not set by the orchestrator: the pid of the
	// hypervisor it launches is recorded in State.VM.PID instead.
	HypervisorPID int
}

// PodConfig carries pod membership. A container with Sandbox == true is the
// pod's sandbox and owns the VM; other members reuse its proxy attachment.
type PodConfig struct {
	Sandbox          bool
	SandboxName      string
	SandboxWorkloads string
}

// ProxyConfig names the three proxy-owned sockets. It holds no live
// connection; callers dial the proxy themselves.
type ProxyConfig struct {
	CtlSocket     string
	IOSocket      string
	ConsoleSocket string
}

// Config is the opaque, already-parsed container configuration this system
// consumes (§3.1). Nothing in this package parses an OCI bundle; the
// annotation/mount/namespace/process/root/VM spec handlers that produce a
// Config are out of this core's scope.
type Config struct {
	ID         string
	BundlePath string
	Root       string // optional rootfs override

	Process     Process
	Mounts      []Mount
	Namespaces  []Namespace
	Annotations map[string]string

	VM  VMConfig
	Pod *PodConfig

	Proxy ProxyConfig

	Hooks *specs.Hooks

	OCIVersion string
}

// MemberOfPod reports whether this container belongs to a pod (has a
// PodConfig at all, sandbox or not).
func (c *Config) MemberOfPod() bool {
	return c.Pod != nil
}

// IsSandbox reports whether this container is the pod's VM-hosting sandbox.
// A non-pod container is always considered its own sandbox.
func (c *Config) IsSandbox() bool {
	return c.Pod == nil || c.Pod.Sandbox
}
