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

var startCLICommand = cli.Command{
	Name:      "start",
	Usage:     "execute the user defined process in a created container",
	ArgsUsage: "<container-id> [container-id...]",
	Action: func(c *cli.Context) error {
		if c.NArg() == 0 {
			return fmt.Errorf("missing container id, should at least provide one")
		}

		o, err := newOrchestrator(c)
		if err != nil {
			return err
		}

		for _, id := range []string(c.Args()) {
			if err := o.Start(context.Background(), id); err != nil {
				return err
			}
		}
		return nil
	},
}
