// Copyright (c) 2014,2015,2016 Docker, Inc.
// Copyright (c) 2017-2018 Intel Corporation
//
// SPDX-License-Identifier: Apache-2.0
//

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/cc-vmrt/runtime/pkg/orchestrator"
	"github.com/urfave/cli"
)

var createCLICommand = cli.Command{
	Name:      "create",
	Usage:     "create a container",
	ArgsUsage: "<container-id>",
	Flags: []cli.Flag{
		cli.StringFlag{Name: "bundle, b", Usage: "path to the OCI bundle (defaults to the current directory)"},
	},
	Description: `The create command creates an instance of a container from the given
   bundle, parking its shim until the start command releases it.`,
	Action: func(c *cli.Context) error {
		if c.NArg() != 1 {
			return fmt.Errorf("expecting exactly one container id, got %d", c.NArg())
		}
		_, err := create(c, c.Args().First())
		return err
	},
}

func create(c *cli.Context, id string) (*cliState, error) {
	bundlePath := c.String("bundle")
	if bundlePath == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, err
		}
		bundlePath = wd
	}

	o, err := newOrchestrator(c)
	if err != nil {
		return nil, err
	}

	cfg, err := loadBundleConfig(id, bundlePath, vmrtConfigFrom(c))
	if err != nil {
		return nil, err
	}

	st, err := o.Create(context.Background(), cfg)
	if err != nil {
		return nil, err
	}
	return &cliState{o: o, id: st.ID}, nil
}

// cliState is a thin per-invocation handle, letting `run` chain create and
// start without reloading the state document it only just wrote.
type cliState struct {
	o  *orchestrator.Orchestrator
	id string
}
