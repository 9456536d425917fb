// Copyright (c) 2016 Intel Corporation
// Copyright (c) 2019 Huawei Corporation
//
// SPDX-License-Identifier: Apache-2.0
//

// Package state implements the on-disk state store (component C): a single
// state.json document per container directory, written with an atomic
// replace and read back with the required/optional key semantics of §4.3.
package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/cc-vmrt/runtime/pkg/procutil"
	"github.com/cc-vmrt/runtime/pkg/types"
	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/sirupsen/logrus"
)

// FileName is the state document's name inside a container directory.
const FileName = "state.json"

// dirMode and fileMode mirror the permissions the runtime uses for every
// path under its root: the root directory is only ever readable by the
// user running the runtime.
const (
	dirMode  = os.FileMode(0700) | os.ModeDir
	fileMode = os.FileMode(0600)
)

var storeLog = logrus.WithField("source", "state")

// Store roots every container directory at a single base path (§3.2's
// <root>, defaulting to /var/run/cc-oci-runtime at the cli layer).
type Store struct {
	root string
}

// New returns a Store rooted at root. It does not create root; callers
// create it (and each container directory) via Dir/MkdirAll as needed.
func New(root string) *Store {
	return &Store{root: root}
}

// Root returns the store's base path.
func (s *Store) Root() string {
	return s.root
}

// Dir returns the per-container directory for id (§3.2).
func (s *Store) Dir(id string) string {
	return filepath.Join(s.root, id)
}

// StatePath returns the path to id's state.json.
func (s *Store) StatePath(id string) string {
	return filepath.Join(s.Dir(id), FileName)
}

// MkdirAll creates id's runtime directory, per the "runtime directory:
// created by create" lifecycle rule (§3.4).
func (s *Store) MkdirAll(id string) error {
	return os.MkdirAll(s.Dir(id), dirMode)
}

// Remove deletes id's entire runtime directory (§4.7 stop/delete:
// "rm -rf the directory").
func (s *Store) Remove(id string) error {
	return os.RemoveAll(s.Dir(id))
}

// Write atomically replaces id's state.json with st. Per the writer
// semantics in §4.3, the caller is responsible for having set st.Created to
// the *original* creation timestamp so it survives rewrites; Write itself
// performs no timestamp bookkeeping.
func (s *Store) Write(st *types.State) error {
	if st.ID == "" {
		return fmt.Errorf("state: id required")
	}

	dir := s.Dir(st.ID)
	if err := os.MkdirAll(dir, dirMode); err != nil {
		return err
	}

	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".state.json.tmp-")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Chmod(tmpName, fileMode); err != nil {
		os.Remove(tmpName)
		return err
	}

	if err := os.Rename(tmpName, s.StatePath(st.ID)); err != nil {
		os.Remove(tmpName)
		return err
	}

	notifyReady(st.ID)

	return nil
}

// notifyReady pings systemd's readiness protocol, when the runtime is itself
// run under a unit with Type=notify (NOTIFY_SOCKET set). A non-supervised
// invocation (the common case: an interactive or containerd-invoked runtime)
// leaves NOTIFY_SOCKET unset, and SdNotify is then a documented no-op.
func notifyReady(id string) {
	ok, err := daemon.SdNotify(false, daemon.SdNotifyReady)
	if err != nil {
		storeLog.WithField("id", id).WithError(err).Debug("state: sd_notify failed")
		return
	}
	if ok {
		storeLog.WithField("id", id).Debug("state: sent sd_notify readiness ping")
	}
}

// Read loads and validates id's state.json, enforcing the required/optional
// key rules of §4.3. It does not apply the liveness invariant (§3.3); use
// Load for that.
func (s *Store) Read(id string) (*types.State, error) {
	data, err := os.ReadFile(s.StatePath(id))
	if err != nil {
		return nil, err
	}
	return decode(data)
}

// Load is Read followed by the §3.3 liveness invariant: a state document
// whose recorded (shim) pid is no longer alive is reported with
// status=stopped regardless of what was persisted.
func (s *Store) Load(id string) (*types.State, error) {
	st, err := s.Read(id)
	if err != nil {
		return nil, err
	}
	applyLiveness(st)
	return st, nil
}

// applyLiveness normalizes st.Status in place per §3.3.
func applyLiveness(st *types.State) {
	if !procutil.IsAlive(st.PID) {
		st.Status = types.StatusStopped
	}
}

// List enumerates every immediate subdirectory of the store's root, loading
// each one's state document. Per §4.7 "list", an individual unreadable or
// malformed state file never aborts the whole listing: it is logged and
// skipped.
func (s *Store) List() ([]*types.State, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var states []*types.State
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		id := entry.Name()
		st, err := s.Load(id)
		if err != nil {
			storeLog.WithFields(logrus.Fields{
				"id":    id,
				"error": err,
			}).Warn("skipping unreadable state file")
			continue
		}

		states = append(states, st)
	}

	return states, nil
}

// requiredTopKeys are the top-level members that must be present for the
// document to be considered valid (§4.3 reader semantics).
var requiredTopKeys = []string{
	"ociVersion", "id", "pid", "bundlePath", "commsPath", "processPath",
	"status", "created", "vm", "proxy",
}

// requiredVMKeys are the members required inside the "vm" sub-object.
var requiredVMKeys = []string{
	"hypervisor_path", "image_path", "kernel_path", "kernel_params", "pid",
}

// requiredProxyKeys are the members required inside the "proxy" sub-object.
var requiredProxyKeys = []string{"ctlSocket", "ioSocket", "consoleSocket"}

// knownObjectKeys lists, for every known sub-object, the full set of keys
// a current writer may produce. Anything else found in that object is an
// unrecognised key: §4.3 says to log a warning and ignore it rather than
// fail, so that old runtimes can read documents written by newer ones.
var knownObjectKeys = map[string]map[string]bool{
	"vm": {
		"hypervisor_path": true, "image_path": true, "kernel_path": true,
		"workload_path": true, "kernel_params": true, "pid": true,
	},
	"proxy": {"ctlSocket": true, "ioSocket": true, "consoleSocket": true},
	"console": {"path": true},
	"pod": {"sandbox": true, "sandbox_name": true},
	"process": {
		"cwd": true, "terminal": true, "user": true, "args": true,
		"env": true, "stdio_stream": true, "stderr_stream": true,
	},
}

// decode parses and validates a state.json document per §4.3.
func decode(data []byte) (*types.State, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("state: malformed document: %w", err)
	}

	for _, key := range requiredTopKeys {
		if _, ok := raw[key]; !ok {
			return nil, fmt.Errorf("state: missing required key %q", key)
		}
	}

	if err := checkRequiredSubKeys(raw, "vm", requiredVMKeys); err != nil {
		return nil, err
	}
	if err := checkRequiredSubKeys(raw, "proxy", requiredProxyKeys); err != nil {
		return nil, err
	}

	for _, object := range []string{"vm", "proxy", "console", "pod", "process"} {
		msg, ok := raw[object]
		if !ok {
			continue
		}
		warnUnknownKeys(object, msg)
	}

	var st types.State
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("state: %w", err)
	}

	return &st, nil
}

// checkRequiredSubKeys verifies that object (a top-level key expected to
// hold a JSON object) carries every key in required.
func checkRequiredSubKeys(raw map[string]json.RawMessage, object string, required []string) error {
	msg, ok := raw[object]
	if !ok {
		// Absence of the object itself was already caught by
		// requiredTopKeys; nothing further to check here.
		return nil
	}

	var sub map[string]json.RawMessage
	if err := json.Unmarshal(msg, &sub); err != nil {
		return fmt.Errorf("state: %q is not an object: %w", object, err)
	}

	for _, key := range required {
		if _, ok := sub[key]; !ok {
			return fmt.Errorf("state: missing required key %q.%q", object, key)
		}
	}

	return nil
}

// warnUnknownKeys logs (but never fails on) keys inside object that this
// version of the store does not recognise.
func warnUnknownKeys(object string, msg json.RawMessage) {
	known := knownObjectKeys[object]

	var sub map[string]json.RawMessage
	if err := json.Unmarshal(msg, &sub); err != nil {
		// Not an object (e.g. "console" may be null); nothing to warn about.
		return
	}

	for key := range sub {
		if !known[key] {
			storeLog.WithFields(logrus.Fields{
				"object": object,
				"key":    key,
			}).Warn("ignoring unrecognised state key")
		}
	}
}

// NewState builds a fresh state document for a just-created container,
// stamping Created with the current time. Rewrites of an existing document
// must instead copy st.Created forward (§4.3 writer semantics, §3.4 "State
// file... preserving the original created timestamp").
func NewState(id string, created time.Time) *types.State {
	return &types.State{
		ID:      id,
		Status:  types.StatusCreated,
		Created: created,
	}
}
