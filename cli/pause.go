// Copyright (c) 2014,2015,2016 Docker, Inc.
// Copyright (c) 2017 Intel Corporation
//
// SPDX-License-Identifier: Apache-2.0
//

package main

import (
	"fmt"

	"github.com/urfave/cli"
)

var pauseCLICommand = cli.Command{
	Name:      "pause",
	Usage:     "suspend all processes in a container",
	ArgsUsage: "<container-id>",
	Action: func(c *cli.Context) error {
		return togglePause(c, true)
	},
}

var resumeCLICommand = cli.Command{
	Name:      "resume",
	Usage:     "unpause all previously paused processes in a container",
	ArgsUsage: "<container-id>",
	Action: func(c *cli.Context) error {
		return togglePause(c, false)
	},
}

func togglePause(c *cli.Context, pause bool) error {
	if c.NArg() != 1 {
		return fmt.Errorf("expecting exactly one container id, got %d", c.NArg())
	}

	o, err := newOrchestrator(c)
	if err != nil {
		return err
	}

	id := c.Args().First()
	if pause {
		return o.Pause(id)
	}
	return o.Resume(id)
}
