// Copyright (c) 2017 Intel Corporation
//
// SPDX-License-Identifier: Apache-2.0
//

package main

import (
	"encoding/json"
	"flag"
	"io"
	"os"
	"testing"
	"time"

	"github.com/cc-vmrt/runtime/pkg/orchestrator"
	"github.com/cc-vmrt/runtime/pkg/types"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli"
)

// newTestApp builds a cli.App whose Metadata is pre-populated the way
// beforeSubcommands would, pointed at a fresh orchestrator root, so every
// subcommand's Action can be exercised directly without parsing global flags.
func newTestApp(t *testing.T, root string) *cli.App {
	t.Helper()
	return &cli.App{
		Metadata: map[string]interface{}{
			"globalOptions": globalOptions{root: root, shimPath: "/bin/true"},
			"vmrtConfig":    vmrtConfig{},
		},
	}
}

func TestStateActionRequiresOneArg(t *testing.T) {
	app := newTestApp(t, t.TempDir())

	flagSet := flag.NewFlagSet("state", flag.ContinueOnError)
	flagSet.Parse([]string{})
	ctx := cli.NewContext(app, flagSet, nil)

	require.Error(t, stateCLICommand.Action.(func(*cli.Context) error)(ctx))
}

func TestStateActionPrintsOCIState(t *testing.T) {
	root := t.TempDir()
	app := newTestApp(t, root)

	o, err := orchestrator.New(root, "/bin/true", "", "", "", logrus.NewEntry(logrus.StandardLogger()))
	require.NoError(t, err)

	want := &types.State{
		OCIVersion: "1.0.2",
		ID:         "c1",
		PID:        4242,
		BundlePath: "/bundles/c1",
		Status:     types.StatusRunning,
		Created:    time.Now().UTC(),
	}
	require.NoError(t, o.Store.Write(want))

	flagSet := flag.NewFlagSet("state", flag.ContinueOnError)
	flagSet.Parse([]string{"c1"})
	ctx := cli.NewContext(app, flagSet, nil)

	r, w, err := os.Pipe()
	require.NoError(t, err)
	origStdout := os.Stdout
	os.Stdout = w
	defer func() { os.Stdout = origStdout }()

	actionErr := stateCLICommand.Action.(func(*cli.Context) error)(ctx)
	w.Close()
	os.Stdout = origStdout
	require.NoError(t, actionErr)

	data, err := io.ReadAll(r)
	require.NoError(t, err)

	var out ociState
	require.NoError(t, json.Unmarshal(data, &out))
	require.Equal(t, "c1", out.ID)
	require.Equal(t, "running", out.Status)
	require.Equal(t, 4242, out.PID)
	require.Equal(t, "/bundles/c1", out.Bundle)
}
