// Copyright (c) 2014,2015,2016 Docker, Inc.
// Copyright (c) 2017 Intel Corporation
//
// SPDX-License-Identifier: Apache-2.0
//

package main

import (
	"fmt"
	"os"

	"github.com/cc-vmrt/runtime/pkg/orchestrator"
	"github.com/urfave/cli"
)

const formatOptions = "table or json"

var listCLICommand = cli.Command{
	Name:  "list",
	Usage: "list containers started by " + name + " with the given root",
	Flags: []cli.Flag{
		cli.StringFlag{Name: "format, f", Value: "table", Usage: formatOptions},
		cli.BoolFlag{Name: "quiet, q", Usage: "display only container IDs"},
	},
	Action: func(c *cli.Context) error {
		o, err := newOrchestrator(c)
		if err != nil {
			return err
		}

		entries, err := o.List()
		if err != nil {
			return err
		}

		if c.Bool("quiet") {
			for _, e := range entries {
				fmt.Fprintln(os.Stdout, e.ID)
			}
			return nil
		}

		switch c.String("format") {
		case "table":
			fmt.Fprint(os.Stdout, orchestrator.FormatTable(entries))
		case "json":
			data, err := orchestrator.FormatJSON(entries)
			if err != nil {
				return err
			}
			fmt.Fprintln(os.Stdout, data)
		default:
			return fmt.Errorf("invalid format option %q (expecting %s)", c.String("format"), formatOptions)
		}
		return nil
	},
}
