// Copyright (c) 2014,2015,2016 Docker, Inc.
// Copyright (c) 2017-2018 Intel Corporation
//
// SPDX-License-Identifier: Apache-2.0
//

// Command cc-vmrt is the OCI runtime CLI (component G's entrypoint): it
// parses global flags and a bundle's config.json, then drives
// pkg/orchestrator through the requested lifecycle subcommand.
package main

import (
	"fmt"
	"os"

	"github.com/cc-vmrt/runtime/pkg/orchestrator"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli"
)

// specConfigFile is the name of the file holding the container's OCI
// configuration inside its bundle.
const specConfigFile = "config.json"

// name/version/commit describe this build; version and commit are normally
// set with -ldflags at build time.
var (
	name    = "cc-vmrt"
	version = "0.1.0"
	commit  = "unknown"
)

// runtimeLog is the logger passed to every orchestrator.New call; its
// output and level are finalized by beforeSubcommands once global flags
// have been parsed.
var runtimeLog = logrus.NewEntry(logrus.StandardLogger())

// globalOptions carries the subset of global flags the orchestrator needs
// to construct itself, resolved once in beforeSubcommands and stashed on
// cli.App.Metadata for every subcommand to read back.
type globalOptions struct {
	root             string
	shimPath         string
	sysconfDir       string
	defaultsDir      string
	hypervisorLogDir string
	configPath       string
}

var runtimeFlags = []cli.Flag{
	cli.StringFlag{Name: "root", Usage: "root directory for storage of container state"},
	cli.StringFlag{Name: "shim-path", Usage: "path to the vmrt-shim binary"},
	cli.StringFlag{Name: "sysconf-dir", Usage: "fallback directory for hypervisor.args"},
	cli.StringFlag{Name: "defaults-dir", Usage: "secondary fallback directory for hypervisor.args"},
	cli.StringFlag{Name: "hypervisor-log-dir", Usage: "directory hypervisor stdout/stderr are redirected to"},
	cli.StringFlag{Name: "config", Usage: "path to vmrt.toml (defaults searched if unset)"},
	cli.StringFlag{Name: "log", Value: "/dev/null", Usage: "path to write internal debug information to"},
	cli.StringFlag{Name: "log-format", Value: "text", Usage: "'text' (default) or 'json'"},
	cli.BoolFlag{Name: "debug", Usage: "enable debug-level logging"},
}

var runtimeCommands = []cli.Command{
	versionCLICommand,
	createCLICommand,
	startCLICommand,
	runCLICommand,
	stateCLICommand,
	killCLICommand,
	deleteCLICommand,
	execCLICommand,
	listCLICommand,
	eventsCLICommand,
	pauseCLICommand,
	resumeCLICommand,
	checkpointCLICommand,
	restoreCLICommand,
	updateCLICommand,
	psCLICommand,
}

// beforeSubcommands parses the global flags, finalizes logging, loads
// vmrt.toml, and stashes the result on c.App.Metadata for every subcommand.
func beforeSubcommands(c *cli.Context) error {
	if path := c.GlobalString("log"); path != "" && path != "/dev/null" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND|os.O_SYNC, 0640)
		if err != nil {
			return err
		}
		runtimeLog.Logger.Out = f
	}
	switch c.GlobalString("log-format") {
	case "text":
	case "json":
		runtimeLog.Logger.Formatter = new(logrus.JSONFormatter)
	default:
		return fmt.Errorf("unknown log-format %q", c.GlobalString("log-format"))
	}
	if c.GlobalBool("debug") {
		runtimeLog.Logger.SetLevel(logrus.DebugLevel)
	}

	opts := globalOptions{
		root:             c.GlobalString("root"),
		shimPath:         c.GlobalString("shim-path"),
		sysconfDir:       c.GlobalString("sysconf-dir"),
		defaultsDir:      c.GlobalString("defaults-dir"),
		hypervisorLogDir: c.GlobalString("hypervisor-log-dir"),
		configPath:       c.GlobalString("config"),
	}

	vcfg, resolvedPath, err := loadVMRTConfig(opts.configPath)
	if err != nil {
		return err
	}
	if resolvedPath != "" {
		runtimeLog.WithField("path", resolvedPath).Debug("loaded vmrt.toml")
	}

	c.App.Metadata["globalOptions"] = opts
	c.App.Metadata["vmrtConfig"] = vcfg
	return nil
}

func globalOptionsFrom(c *cli.Context) globalOptions {
	return c.App.Metadata["globalOptions"].(globalOptions)
}

func vmrtConfigFrom(c *cli.Context) vmrtConfig {
	return c.App.Metadata["vmrtConfig"].(vmrtConfig)
}

// newOrchestrator is the one-line helper every subcommand's Action calls.
func newOrchestrator(c *cli.Context) (*orchestrator.Orchestrator, error) {
	return orchestratorFor(globalOptionsFrom(c), vmrtConfigFrom(c))
}

func main() {
	app := cli.NewApp()
	app.Name = name
	app.Usage = name + " is a command line program for running OCI bundles inside a dedicated VM per container."
	app.Version = version
	app.Flags = runtimeFlags
	app.Commands = runtimeCommands
	app.Before = beforeSubcommands
	app.EnableBashCompletion = true
	app.Metadata = map[string]interface{}{}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var versionCLICommand = cli.Command{
	Name:  "version",
	Usage: "print version information",
	Action: func(c *cli.Context) error {
		fmt.Fprintf(c.App.Writer, "%s version %s (commit %s)\n", name, version, commit)
		return nil
	},
}
