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

var execCLICommand = cli.Command{
	Name:      "exec",
	Usage:     "execute a new process inside a running container",
	ArgsUsage: "<container-id> <command> [command options]",
	Flags: []cli.Flag{
		cli.StringFlag{Name: "process, p", Usage: "path to a process.json override (the OCI process-description shape)"},
		cli.StringFlag{Name: "cwd", Usage: "working directory of the new process"},
		cli.StringSliceFlag{Name: "env, e", Usage: "set environment variables for the process (NAME=value)"},
		cli.BoolFlag{Name: "tty, t", Usage: "allocate a pseudo-TTY"},
		cli.BoolFlag{Name: "detach, d", Usage: "detach from the process's stdio"},
	},
	Action: func(c *cli.Context) error {
		args := c.Args()
		if !args.Present() {
			return fmt.Errorf("missing container id")
		}
		id := args.First()

		opts, err := execOptionsFrom(c)
		if err != nil {
			return err
		}

		o, err := newOrchestrator(c)
		if err != nil {
			return err
		}

		code, err := o.Exec(id, opts, !c.Bool("detach"))
		if err != nil {
			return err
		}
		if code != 0 {
			os.Exit(code)
		}
		return nil
	},
}

// execOptionsFrom builds the orchestrator's override either from -p's
// process.json or from the remaining positional arguments named in
// ArgsUsage.
func execOptionsFrom(c *cli.Context) (*orchestrator.ExecOptions, error) {
	if path := c.String("process"); path != "" {
		return orchestrator.LoadExecOptions(path)
	}

	args := c.Args().Tail()
	if len(args) == 0 {
		return nil, fmt.Errorf("no command given and no -p process.json provided")
	}

	return &orchestrator.ExecOptions{
		Args:     args,
		Env:      c.StringSlice("env"),
		Cwd:      c.String("cwd"),
		Terminal: c.Bool("tty"),
	}, nil
}
