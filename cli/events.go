// Copyright (c) 2014,2015,2016 Docker, Inc.
// Copyright (c) 2017 Intel Corporation
//
// SPDX-License-Identifier: Apache-2.0
//

package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/cc-vmrt/runtime/pkg/orchestrator"
	"github.com/urfave/cli"
)

var eventsCLICommand = cli.Command{
	Name:      "events",
	Usage:     "display container events such as OOM notifications, cpu, memory and IO usage statistics",
	ArgsUsage: "<container-id>",
	Flags: []cli.Flag{
		cli.DurationFlag{Name: "interval", Value: 5 * time.Second, Usage: "set the stats collection interval"},
		cli.BoolFlag{Name: "stats", Usage: "display the container's stats then exit"},
	},
	Action: func(c *cli.Context) error {
		if c.NArg() != 1 {
			return fmt.Errorf("expecting exactly one container id, got %d", c.NArg())
		}

		o, err := newOrchestrator(c)
		if err != nil {
			return err
		}
		id := c.Args().First()

		if c.Bool("stats") {
			st, err := o.Stats(id)
			if err != nil {
				return err
			}
			data, err := orchestrator.MarshalStats(st)
			if err != nil {
				return err
			}
			fmt.Fprintln(os.Stdout, string(data))
			return nil
		}

		return o.WatchStats(context.Background(), id, c.Duration("interval"), func(st *orchestrator.Stats) error {
			data, err := orchestrator.MarshalStats(st)
			if err != nil {
				return err
			}
			fmt.Fprintln(os.Stdout, string(data))
			return nil
		})
	},
}
