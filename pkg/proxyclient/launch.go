// Copyright (c) 2017 Intel Corporation
//
// SPDX-License-Identifier: Apache-2.0
//

// Package proxyclient launches the agent proxy process and speaks its
// control-socket protocol (component B, §4.2): the hello/attach/bye/
// allocateIO/hyper command vocabulary, including the out-of-band fd
// transfer that follows a successful allocateIO.
package proxyclient

import (
	"fmt"
	"os/exec"
	"path/filepath"
	"syscall"

	"github.com/sirupsen/logrus"
)

// Params carries everything needed to launch a proxy instance for one VM.
type Params struct {
	ID         string
	ProxyPath  string
	AgentURL   string
	ConsoleURL string
	Debug      bool
	Logger     *logrus.Entry
}

func validateParams(p Params) error {
	if p.ID == "" || p.ProxyPath == "" || p.AgentURL == "" {
		return fmt.Errorf("proxyclient: invalid params %+v", p)
	}
	return nil
}

// DefaultURL returns the control-socket URL the proxy instance for id will
// listen on, rooted at runRoot (the runtime's <root>, §3.2).
func DefaultURL(runRoot, id string) string {
	return fmt.Sprintf("unix://%s", filepath.Join(runRoot, id, "proxy.sock"))
}

// Launch starts the proxy binary in its own session, detached from the
// runtime's process group, and returns its pid plus the control-socket URL
// it is listening on.
func Launch(runRoot string, p Params) (pid int, proxyURL string, err error) {
	if err := validateParams(p); err != nil {
		return -1, "", err
	}

	logger := p.Logger
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	logger.Debug("starting agent proxy")

	proxyURL = DefaultURL(runRoot, p.ID)

	args := []string{
		p.ProxyPath,
		"-listen-socket", proxyURL,
		"-mux-socket", p.AgentURL,
		"-sandbox", p.ID,
	}

	if p.Debug {
		args = append(args, "-log", "debug", "-agent-logs-socket", p.ConsoleURL)
	}

	cmd := exec.Command(args[0], args[1:]...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	if err := cmd.Start(); err != nil {
		return -1, "", err
	}

	// Reap the proxy asynchronously; the runtime tracks its liveness
	// through the pid recorded in the state document, not through Wait.
	go cmd.Wait()

	return cmd.Process.Pid, proxyURL, nil
}

// Stop signals a running proxy instance to shut down.
func Stop(pid int) error {
	return syscall.Kill(pid, syscall.SIGTERM)
}
