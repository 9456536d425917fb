// Copyright (c) 2014,2015,2016 Docker, Inc.
// Copyright (c) 2017 Intel Corporation
//
// SPDX-License-Identifier: Apache-2.0
//

package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli"
)

var runCLICommand = cli.Command{
	Name:      "run",
	Usage:     "create and immediately start a container",
	ArgsUsage: "<container-id>",
	Flags: []cli.Flag{
		cli.StringFlag{Name: "bundle, b", Usage: "path to the OCI bundle (defaults to the current directory)"},
	},
	Description: `The run command is equivalent to create followed by start, for a caller
   that has no use for the create/start separation (no pre-start hook window
   to exploit, no need to attach before the workload runs).`,
	Action: func(c *cli.Context) error {
		if c.NArg() != 1 {
			return fmt.Errorf("expecting exactly one container id, got %d", c.NArg())
		}
		id := c.Args().First()

		st, err := create(c, id)
		if err != nil {
			return err
		}
		return st.o.Start(context.Background(), st.id)
	},
}
