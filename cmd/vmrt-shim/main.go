// Copyright (c) 2016 Intel Corporation
//
// SPDX-License-Identifier: Apache-2.0
//

// Command vmrt-shim is the per-container shim process launched by the
// runtime's create/start/exec subcommands (component D/F, §4.4/§4.6): it
// parks until released (unless told --no-park), then streams the workload's
// I/O between its own stdio and the proxy.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/cc-vmrt/runtime/pkg/shimproc"
	"github.com/sirupsen/logrus"
)

func main() {
	var (
		containerID string
		proxyCtlFD  int
		proxyIOFD   int
		ioSeq       uint64
		errSeq      int
		startFD     int
		errFD       int
		flockFD     int
		noPark      bool
		debug       bool
	)

	flag.StringVar(&containerID, "c", "", "container id")
	flag.IntVar(&proxyCtlFD, "p", -1, "inherited proxy control fd")
	flag.IntVar(&proxyIOFD, "o", -1, "inherited proxy I/O fd")
	flag.Uint64Var(&ioSeq, "s", 0, "stdio stream sequence number")
	flag.IntVar(&errSeq, "e", -1, "stderr stream sequence number; absent means no separate stderr stream")
	flag.IntVar(&startFD, "start-fd", -1, "inherited start-gate fd")
	flag.IntVar(&errFD, "err-fd", -1, "inherited setup-error fd")
	flag.IntVar(&flockFD, "flock-fd", -1, "inherited advisory flock fd")
	flag.BoolVar(&noPark, "no-park", false, "skip parking (non-initial/exec'd shim)")
	flag.BoolVar(&debug, "d", false, "enable debug logging")
	flag.Parse()

	log := logrus.WithField("source", "vmrt-shim").WithField("container", containerID)
	if debug {
		logrus.SetLevel(logrus.DebugLevel)
	}

	errPipe := os.NewFile(uintptr(errFD), "err-pipe")

	if !noPark {
		if err := shimproc.Park(shimproc.ParkParams{StartFD: startFD, FlockFD: flockFD}); err != nil {
			reportSetupFailure(errPipe, fmt.Errorf("vmrt-shim: parking: %w", err))
			os.Exit(1)
		}
	}
	if errPipe != nil {
		errPipe.Close()
	}

	sess := &shimproc.Session{
		ContainerID: containerID,
		ProxyCtl:    os.NewFile(uintptr(proxyCtlFD), "proxy-ctl"),
		ProxyIO:     os.NewFile(uintptr(proxyIOFD), "proxy-io"),
		IOSeq:       ioSeq,
		HasStderr:   errSeq >= 0,
		Stdin:       os.Stdin,
		Stdout:      os.Stdout,
		Stderr:      os.Stderr,
		Log:         log,
	}

	loop, err := shimproc.NewEventLoop(sess)
	if err != nil {
		log.WithError(err).Error("vmrt-shim: starting event loop")
		os.Exit(1)
	}

	code, err := loop.Run()
	if err != nil {
		log.WithError(err).Warn("vmrt-shim: event loop ended")
	}
	os.Exit(code)
}

// reportSetupFailure writes a human-readable failure to the inherited
// error-pipe fd, which the runtime's Launch reads via SetupError before
// deciding whether to Abort (§6.2 "Shim setup failure").
func reportSetupFailure(errPipe *os.File, err error) {
	if errPipe == nil {
		return
	}
	fmt.Fprintln(errPipe, err.Error())
	errPipe.Close()
}
