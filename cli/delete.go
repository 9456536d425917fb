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

var deleteCLICommand = cli.Command{
	Name:      "delete",
	Usage:     "delete a stopped container's runtime resources",
	ArgsUsage: "<container-id> [container-id...]",
	Flags: []cli.Flag{
		cli.BoolFlag{Name: "force, f", Usage: "accepted for OCI CLI compatibility; this runtime never forces a delete of a non-stopped container"},
	},
	Action: func(c *cli.Context) error {
		if c.NArg() == 0 {
			return fmt.Errorf("missing container id, should at least provide one")
		}

		o, err := newOrchestrator(c)
		if err != nil {
			return err
		}

		for _, id := range []string(c.Args()) {
			if err := o.Delete(context.Background(), id); err != nil {
				return err
			}
		}
		return nil
	},
}
