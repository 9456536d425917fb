// Copyright (c) 2014,2015,2016 Docker, Inc.
// Copyright (c) 2017 Intel Corporation
//
// SPDX-License-Identifier: Apache-2.0
//

package main

import (
	"fmt"
	"strconv"
	"syscall"

	"github.com/urfave/cli"
)

var killCLICommand = cli.Command{
	Name:      "kill",
	Usage:     "send a signal to the container's init process",
	ArgsUsage: "<container-id> [signal]",
	Action: func(c *cli.Context) error {
		args := c.Args()
		if !args.Present() {
			return fmt.Errorf("missing container id")
		}

		sigName := args.Get(1)
		if sigName == "" {
			sigName = "SIGTERM"
		}
		signum, err := processSignal(sigName)
		if err != nil {
			return err
		}

		o, err := newOrchestrator(c)
		if err != nil {
			return err
		}
		return o.Kill(args.First(), signum)
	},
}

// signalNames is the signal-name table processSignal consults, standard
// POSIX names only (no real-time signal range: nothing this runtime sends
// needs one).
var signalNames = map[string]syscall.Signal{
	"SIGABRT": syscall.SIGABRT, "SIGALRM": syscall.SIGALRM, "SIGBUS": syscall.SIGBUS,
	"SIGCHLD": syscall.SIGCHLD, "SIGCONT": syscall.SIGCONT, "SIGFPE": syscall.SIGFPE,
	"SIGHUP": syscall.SIGHUP, "SIGILL": syscall.SIGILL, "SIGINT": syscall.SIGINT,
	"SIGIO": syscall.SIGIO, "SIGKILL": syscall.SIGKILL, "SIGPIPE": syscall.SIGPIPE,
	"SIGPROF": syscall.SIGPROF, "SIGQUIT": syscall.SIGQUIT, "SIGSEGV": syscall.SIGSEGV,
	"SIGSTOP": syscall.SIGSTOP, "SIGSYS": syscall.SIGSYS, "SIGTERM": syscall.SIGTERM,
	"SIGTRAP": syscall.SIGTRAP, "SIGTSTP": syscall.SIGTSTP, "SIGTTIN": syscall.SIGTTIN,
	"SIGTTOU": syscall.SIGTTOU, "SIGURG": syscall.SIGURG, "SIGUSR1": syscall.SIGUSR1,
	"SIGUSR2": syscall.SIGUSR2, "SIGVTALRM": syscall.SIGVTALRM, "SIGWINCH": syscall.SIGWINCH,
	"SIGXCPU": syscall.SIGXCPU, "SIGXFSZ": syscall.SIGXFSZ,
}

// processSignal accepts a full name ("SIGKILL"), a short name ("KILL"), or
// a raw signal number whose signal is present in signalNames.
func processSignal(signal string) (syscall.Signal, error) {
	if signum, ok := signalNames[signal]; ok {
		return signum, nil
	}
	if signum, ok := signalNames["SIG"+signal]; ok {
		return signum, nil
	}

	n, err := strconv.Atoi(signal)
	if err != nil {
		return 0, fmt.Errorf("unsupported signal %q", signal)
	}
	for _, signum := range signalNames {
		if signum == syscall.Signal(n) {
			return signum, nil
		}
	}
	return 0, fmt.Errorf("unsupported signal %q", signal)
}
