// Copyright (c) 2018 Intel Corporation
// Copyright (c) 2018 HyperHQ Inc.
//
// SPDX-License-Identifier: Apache-2.0
//

package katautils

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"github.com/cc-vmrt/runtime/pkg/katautils/katatrace"
	"github.com/cc-vmrt/runtime/pkg/types"
	specs "github.com/opencontainers/runtime-spec/specs-go"
	"github.com/sirupsen/logrus"
)

// hookTracingTags defines tags for the trace span
var hookTracingTags = map[string]string{
	"source":    "runtime",
	"package":   "katautils",
	"subsystem": "hook",
}

// hookLogger returns a logrus logger appropriate for logging hook messages
func hookLogger() *logrus.Entry {
	return kataUtilsLogger.WithField("subsystem", "hook")
}

// runHook executes a single OCI hook (spec §6.5), feeding it the full
// persisted state document on stdin: newlines folded to spaces, followed by
// a single trailing newline, matching the original's cc_run_hook() reading
// state.json off disk and running g_strdelimit(state, "\n", ' ') on it.
func runHook(ctx context.Context, hook specs.Hook, st *types.State) error {
	span, _ := katatrace.Trace(ctx, hookLogger(), "runHook", hookTracingTags)
	defer span.End()
	katatrace.AddTags(span, "path", hook.Path, "args", hook.Args)

	stateJSON, err := json.Marshal(st)
	if err != nil {
		return err
	}
	folded := strings.ReplaceAll(string(stateJSON), "\n", " ")

	var stdout, stderr bytes.Buffer
	cmd := &exec.Cmd{
		Path:   hook.Path,
		Args:   hook.Args,
		Env:    hook.Env,
		Stdin:  strings.NewReader(folded + "\n"),
		Stdout: &stdout,
		Stderr: &stderr,
	}

	if err := cmd.Start(); err != nil {
		return err
	}

	if hook.Timeout == nil {
		if err := cmd.Wait(); err != nil {
			return fmt.Errorf("%s: stdout: %s, stderr: %s", err, stdout.String(), stderr.String())
		}
		return nil
	}

	done := make(chan error, 1)
	go func() {
		done <- cmd.Wait()
		close(done)
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("%s: stdout: %s, stderr: %s", err, stdout.String(), stderr.String())
		}
		return nil
	case <-time.After(time.Duration(*hook.Timeout) * time.Second):
		if err := syscall.Kill(cmd.Process.Pid, syscall.SIGKILL); err != nil {
			return err
		}
		return fmt.Errorf("hook %s timed out after %ds", hook.Path, *hook.Timeout)
	}
}

// runHooks runs every hook in order, stopping at the first failure.
func runHooks(ctx context.Context, hooks []specs.Hook, st *types.State, hookType string) error {
	span, ctx := katatrace.Trace(ctx, hookLogger(), "runHooks", hookTracingTags)
	katatrace.AddTags(span, "type", hookType)
	defer span.End()

	for _, hook := range hooks {
		if err := runHook(ctx, hook, st); err != nil {
			hookLogger().WithFields(logrus.Fields{
				"hook-type": hookType,
				"error":     err,
			}).Error("hook error")

			return err
		}
	}

	return nil
}

// CreateRuntimeHooks runs the createRuntime hooks (§4.7 create, once the
// runtime directory, the bind mounts and, for a sandbox, the VM are in
// place, and before the shim is launched).
func CreateRuntimeHooks(ctx context.Context, hooks *specs.Hooks, st *types.State) error {
	if hooks == nil {
		return nil
	}
	return runHooks(ctx, hooks.CreateRuntime, st, "createRuntime")
}

// PreStartHooks runs the prestart hooks (§4.7 create). A failure here is
// fatal to the create subcommand (§7).
func PreStartHooks(ctx context.Context, hooks *specs.Hooks, st *types.State) error {
	if hooks == nil {
		return nil
	}
	return runHooks(ctx, hooks.Prestart, st, "pre-start")
}

// PostStartHooks runs the poststart hooks (§4.7 start). A failure here is
// logged and the pipeline continues (§7).
func PostStartHooks(ctx context.Context, hooks *specs.Hooks, st *types.State) error {
	if hooks == nil {
		return nil
	}
	return runHooks(ctx, hooks.Poststart, st, "post-start")
}

// PostStopHooks runs the poststop hooks (§4.7 stop/delete). A failure here
// is logged and the pipeline continues (§7).
func PostStopHooks(ctx context.Context, hooks *specs.Hooks, st *types.State) error {
	if hooks == nil {
		return nil
	}
	return runHooks(ctx, hooks.Poststop, st, "post-stop")
}
