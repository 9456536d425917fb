// Copyright (c) 2016 Intel Corporation
//
// SPDX-License-Identifier: Apache-2.0
//

// Package orchestrator implements the lifecycle orchestrator (component G,
// §4.7): create/start/kill/stop-delete/exec/pause/resume/list, sequencing
// the framed codec (A), proxy client (B), state store (C), shim launcher
// (D), and VM launcher (E) components, grounded on
// src/commands/*.c's subcommand sequencing and pkg/katautils's
// hook-running helpers.
package orchestrator

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/cc-vmrt/runtime/pkg/state"
	"github.com/sirupsen/logrus"
)

// DefaultRoot is the runtime directory used when the caller doesn't
// override it (§3.2).
const DefaultRoot = "/var/run/cc-oci-runtime"

// Paths names every per-container file the runtime directory holds
// (§3.2).
type Paths struct {
	Dir          string
	StatePath    string
	HypervisorSock string
	ProcessSock  string
	ConsoleSock  string
	AgentCtlSock string
	AgentTTYSock string
	ShimFlock    string
	StartFifo    string
}

// pathsFor derives every well-known file from a container's runtime
// directory.
func pathsFor(root, id string) Paths {
	dir := filepath.Join(root, id)
	return Paths{
		Dir:            dir,
		StatePath:      filepath.Join(dir, "state.json"),
		HypervisorSock: filepath.Join(dir, "hypervisor.sock"),
		ProcessSock:    filepath.Join(dir, "process.sock"),
		ConsoleSock:    filepath.Join(dir, "console.sock"),
		AgentCtlSock:   filepath.Join(dir, "ga-ctl.sock"),
		AgentTTYSock:   filepath.Join(dir, "ga-tty.sock"),
		ShimFlock:      filepath.Join(dir, ".shim-flock"),
		StartFifo:      filepath.Join(dir, ".start-fifo"),
	}
}

// Orchestrator holds every dependency a lifecycle operation needs.
type Orchestrator struct {
	Root string

	// ShimPath is the path to the shim binary Launch execs.
	ShimPath string

	// SysconfDir/DefaultsDir are the fallback search locations for
	// hypervisor.args (§4.5 step 1).
	SysconfDir   string
	DefaultsDir  string
	HypervisorLogDir string

	Store *state.Store
	Log   *logrus.Entry
}

// New builds an Orchestrator rooted at root, creating the directory if
// necessary.
func New(root, shimPath, sysconfDir, defaultsDir, hypervisorLogDir string, log *logrus.Entry) (*Orchestrator, error) {
	if root == "" {
		root = DefaultRoot
	}
	if err := os.MkdirAll(root, 0750); err != nil {
		return nil, fmt.Errorf("orchestrator: creating root %s: %w", root, err)
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}

	return &Orchestrator{
		Root:             root,
		ShimPath:         shimPath,
		SysconfDir:       sysconfDir,
		DefaultsDir:      defaultsDir,
		HypervisorLogDir: hypervisorLogDir,
		Store:            state.New(root),
		Log:              log,
	}, nil
}
