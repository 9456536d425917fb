// Copyright (c) 2014,2015,2016 Docker, Inc.
// Copyright (c) 2017-2018 Intel Corporation
//
// SPDX-License-Identifier: Apache-2.0
//

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/cc-vmrt/runtime/pkg/orchestrator"
	"github.com/cc-vmrt/runtime/pkg/types"
	specs "github.com/opencontainers/runtime-spec/specs-go"
)

// containerTypeKeys/sandboxIDKeys list the CRI shim annotation spellings
// this runtime recognises for pod membership, alongside its own. A bundle
// carrying none of them is treated as a standalone container that owns its
// own VM, matching virtcontainers/pkg/oci.GetContainerType's CRI-key
// fallback list.
var (
	containerTypeKeys = []string{
		"cc-vmrt.container-type",
		"io.kubernetes.cri.container-type",
		"io.kubernetes.cri-o.ContainerType",
	}
	sandboxIDKeys = []string{
		"cc-vmrt.sandbox-id",
		"io.kubernetes.cri.sandbox-id",
		"io.kubernetes.cri-o.SandboxID",
	}
	sandboxTypeValues = map[string]bool{"sandbox": true, "podsandbox": true}
)

// vmrtConfig is the [hypervisor]/[runtime] shape of /etc/cc-vmrt/vmrt.toml
// (or whatever --config points at), decoded with the same
// github.com/BurntSushi/toml reader the teacher's own katautils.decodeConfig
// uses for configuration.toml.
type vmrtConfig struct {
	Runtime struct {
		Root             string `toml:"root"`
		ShimPath         string `toml:"shim_path"`
		SysconfDir       string `toml:"sysconf_dir"`
		DefaultsDir      string `toml:"defaults_dir"`
		HypervisorLogDir string `toml:"hypervisor_log_dir"`
	} `toml:"runtime"`

	Hypervisor struct {
		Path         string `toml:"path"`
		KernelPath   string `toml:"kernel"`
		ImagePath    string `toml:"image"`
		KernelParams string `toml:"kernel_params"`
	} `toml:"hypervisor"`
}

// defaultConfigPaths mirrors GetDefaultConfigFilePaths's search order:
// first the administrator's file under /etc, then the packaged defaults
// under /usr/share/defaults.
func defaultConfigPaths() []string {
	return []string{
		"/etc/cc-vmrt/vmrt.toml",
		"/usr/share/defaults/cc-vmrt/vmrt.toml",
	}
}

// loadVMRTConfig decodes path, or the first existing entry of
// defaultConfigPaths if path is empty. A missing config file at every
// default location is not an error: every setting it could provide has a
// command-line flag fallback.
func loadVMRTConfig(path string) (vmrtConfig, string, error) {
	var cfg vmrtConfig

	if path == "" {
		for _, candidate := range defaultConfigPaths() {
			if _, err := os.Stat(candidate); err == nil {
				path = candidate
				break
			}
		}
		if path == "" {
			return cfg, "", nil
		}
	}

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, path, fmt.Errorf("parsing %s: %w", path, err)
	}
	return cfg, path, nil
}

// loadBundleConfig reads the OCI bundle's config.json and the already-loaded
// vmrt.toml, producing the opaque types.Config the orchestrator consumes.
// This bundle/annotation interpretation is CLI-layer work by design (§1
// names OCI configuration parsing as an external collaborator, not core
// scope); everything past this function sees only the typed result.
func loadBundleConfig(id, bundlePath string, cfg vmrtConfig) (*types.Config, error) {
	data, err := os.ReadFile(filepath.Join(bundlePath, specConfigFile))
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", specConfigFile, err)
	}

	var spec specs.Spec
	if err := json.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", specConfigFile, err)
	}
	if spec.Process == nil {
		return nil, fmt.Errorf("%s: process is required", specConfigFile)
	}

	out := &types.Config{
		ID:          id,
		BundlePath:  bundlePath,
		Annotations: spec.Annotations,
		Hooks:       spec.Hooks,
		OCIVersion:  spec.Version,
		Process: types.Process{
			Args:     spec.Process.Args,
			Env:      spec.Process.Env,
			Cwd:      spec.Process.Cwd,
			Terminal: spec.Process.Terminal,
		},
	}
	if spec.Process.User.Username != "" {
		out.Process.User = spec.Process.User.Username
	}
	out.Process.UID = spec.Process.User.UID

	if spec.Root != nil {
		out.Root = spec.Root.Path
		if !filepath.IsAbs(out.Root) {
			out.Root = filepath.Join(bundlePath, out.Root)
		}
	}

	for _, m := range spec.Mounts {
		out.Mounts = append(out.Mounts, types.Mount{
			Source:      m.Source,
			Destination: m.Destination,
			Type:        m.Type,
			Options:     m.Options,
		})
	}

	if spec.Linux != nil {
		for _, ns := range spec.Linux.Namespaces {
			out.Namespaces = append(out.Namespaces, types.Namespace{
				Type: string(ns.Type),
				Path: ns.Path,
			})
		}
	}

	if podType, sandboxName := podMembership(spec.Annotations); podType != "" {
		out.Pod = &types.PodConfig{
			Sandbox:     sandboxTypeValues[podType],
			SandboxName: sandboxName,
		}
	}

	out.VM = types.VMConfig{
		HypervisorPath: cfg.Hypervisor.Path,
		KernelPath:     cfg.Hypervisor.KernelPath,
		ImagePath:      cfg.Hypervisor.ImagePath,
		KernelParams:   cfg.Hypervisor.KernelParams,
	}

	return out, nil
}

// podMembership reports the normalised container-type value ("sandbox" or
// "container") and sandbox name/ID a bundle's annotations carry, checking
// this runtime's own key before falling back to the CRI shim spellings it
// recognises. An empty first return means the bundle is a standalone
// container with no pod membership at all.
func podMembership(annotations map[string]string) (string, string) {
	var podType, sandboxID string
	for _, key := range containerTypeKeys {
		if v, ok := annotations[key]; ok {
			podType = normalizeContainerType(v)
			break
		}
	}
	for _, key := range sandboxIDKeys {
		if v, ok := annotations[key]; ok {
			sandboxID = v
			break
		}
	}
	return podType, sandboxID
}

func normalizeContainerType(v string) string {
	switch v {
	case "sandbox", "podsandbox", "podSandbox":
		return "sandbox"
	default:
		return "container"
	}
}

// orchestratorFor builds an Orchestrator from global flags and the loaded
// vmrt.toml, flags taking precedence.
func orchestratorFor(c globalOptions, cfg vmrtConfig) (*orchestrator.Orchestrator, error) {
	root := firstNonEmpty(c.root, cfg.Runtime.Root, orchestrator.DefaultRoot)
	shimPath := firstNonEmpty(c.shimPath, cfg.Runtime.ShimPath, "/usr/libexec/vmrt-shim")
	sysconfDir := firstNonEmpty(c.sysconfDir, cfg.Runtime.SysconfDir)
	defaultsDir := firstNonEmpty(c.defaultsDir, cfg.Runtime.DefaultsDir)
	hypervisorLogDir := firstNonEmpty(c.hypervisorLogDir, cfg.Runtime.HypervisorLogDir)

	return orchestrator.New(root, shimPath, sysconfDir, defaultsDir, hypervisorLogDir, runtimeLog)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
