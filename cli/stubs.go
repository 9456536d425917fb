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

// checkpoint/restore/update/ps exist as no-op gates (§1 Non-goals): they
// parse like the real OCI subcommand but always report "not implemented"
// rather than silently succeeding or being absent from --help.
func notImplemented(cmdName string) error {
	return fmt.Errorf("%s: %s is not implemented by this runtime", name, cmdName)
}

var checkpointCLICommand = cli.Command{
	Name:      "checkpoint",
	Usage:     "checkpoint a running container (not implemented)",
	ArgsUsage: "<container-id>",
	Action: func(c *cli.Context) error {
		return notImplemented("checkpoint")
	},
}

var restoreCLICommand = cli.Command{
	Name:      "restore",
	Usage:     "restore a container from a previous checkpoint (not implemented)",
	ArgsUsage: "<container-id>",
	Action: func(c *cli.Context) error {
		return notImplemented("restore")
	},
}

var updateCLICommand = cli.Command{
	Name:      "update",
	Usage:     "update container resource constraints (not implemented)",
	ArgsUsage: "<container-id>",
	Action: func(c *cli.Context) error {
		return notImplemented("update")
	},
}

var psCLICommand = cli.Command{
	Name:      "ps",
	Usage:     "list processes running inside a container (not implemented)",
	ArgsUsage: "<container-id> [ps options]",
	Action: func(c *cli.Context) error {
		return notImplemented("ps")
	},
}
