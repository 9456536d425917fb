// Copyright (c) 2017-2018 Intel Corporation
//
// SPDX-License-Identifier: Apache-2.0
//

package main

import (
	"flag"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli"
)

func TestGlobalOptionsAndConfigFromMetadata(t *testing.T) {
	opts := globalOptions{root: "/tmp/root", shimPath: "/bin/true"}
	vcfg := vmrtConfig{}
	vcfg.Hypervisor.Path = "/usr/bin/qemu"

	app := &cli.App{
		Metadata: map[string]interface{}{
			"globalOptions": opts,
			"vmrtConfig":    vcfg,
		},
	}
	flagSet := flag.NewFlagSet("x", flag.ContinueOnError)
	ctx := cli.NewContext(app, flagSet, nil)

	assert.Equal(t, opts, globalOptionsFrom(ctx))
	assert.Equal(t, vcfg, vmrtConfigFrom(ctx))
}

func TestOrchestratorForPrefersFlagsOverConfig(t *testing.T) {
	root := t.TempDir()
	opts := globalOptions{root: root, shimPath: "/bin/true"}
	var cfg vmrtConfig
	cfg.Runtime.Root = "/should/not/be/used"
	cfg.Runtime.ShimPath = "/should/not/be/used"

	o, err := orchestratorFor(opts, cfg)
	require.NoError(t, err)
	assert.Equal(t, root, o.Root)
	assert.Equal(t, "/bin/true", o.ShimPath)
}

func TestOrchestratorForFallsBackToConfig(t *testing.T) {
	root := t.TempDir()
	var cfg vmrtConfig
	cfg.Runtime.Root = root
	cfg.Runtime.ShimPath = "/from/config"

	o, err := orchestratorFor(globalOptions{}, cfg)
	require.NoError(t, err)
	assert.Equal(t, root, o.Root)
	assert.Equal(t, "/from/config", o.ShimPath)
}
