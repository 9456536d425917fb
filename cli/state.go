// Copyright (c) 2014,2015,2016 Docker, Inc.
// Copyright (c) 2017 Intel Corporation
//
// SPDX-License-Identifier: Apache-2.0
//

package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/urfave/cli"
)

// ociState is the `state` subcommand's JSON output shape (OCI runtime-spec
// §state.json, not to be confused with this runtime's own on-disk state
// document which carries internal fields an OCI consumer has no business
// seeing).
type ociState struct {
	OCIVersion  string            `json:"ociVersion"`
	ID          string            `json:"id"`
	Status      string            `json:"status"`
	PID         int               `json:"pid"`
	Bundle      string            `json:"bundle"`
	Annotations map[string]string `json:"annotations,omitempty"`
}

var stateCLICommand = cli.Command{
	Name:      "state",
	Usage:     "output the state of a container",
	ArgsUsage: "<container-id>",
	Action: func(c *cli.Context) error {
		if c.NArg() != 1 {
			return fmt.Errorf("expecting exactly one container id, got %d", c.NArg())
		}

		o, err := newOrchestrator(c)
		if err != nil {
			return err
		}

		id := c.Args().First()
		st, err := o.Store.Load(id)
		if err != nil {
			return err
		}

		out := ociState{
			OCIVersion:  st.OCIVersion,
			ID:          st.ID,
			Status:      string(st.Status),
			PID:         st.PID,
			Bundle:      st.BundlePath,
			Annotations: st.Annotations,
		}

		data, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(os.Stdout, string(data))
		return nil
	},
}
