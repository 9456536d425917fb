// Copyright (c) 2016 Intel Corporation
//
// SPDX-License-Identifier: Apache-2.0
//

// Package shimproc implements the runtime-side shim launcher (component D,
// §4.4) and the shim-side parking/event-loop primitives it launches into
// (component F, §4.6), grounded on shim/shim.c.
package shimproc

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

// fd slots the launched shim finds its inherited descriptors at; chosen to
// mirror the original's ordering (proxy ctl before proxy I/O) while leaving
// 0-2 for the shim's own stdio, which it inherits unchanged.
const (
	proxyCtlFD = 3
	proxyIOFD  = 4
	startFD    = 5
	errFD      = 6
	flockFD    = 7
)

// LaunchParams configures one shim process.
type LaunchParams struct {
	ID       string
	ShimPath string

	// ProxyCtl and ProxyIO are the already-connected proxy control
	// socket and the I/O fd returned by AllocateIO; Launch takes
	// ownership of both and closes the parent's copies once the child
	// has them.
	ProxyCtl *os.File
	ProxyIO  *os.File

	IOBase    uint64
	HasStderr bool // adds -e <IOBase+1> (§4.4 step 7)
	Debug     bool

	// Initial marks the shim created by `create`/`start` for the pod
	// sandbox or its first container: it parks until released and
	// holds the advisory flock. A non-initial shim, launched by `exec`,
	// does neither (§4.6 "exec").
	Initial bool

	// FlockFile is the opened `.shim-flock` file; required when
	// Initial is true, ignored otherwise.
	FlockFile *os.File

	// StartFIFOPath is a named pipe (not an anonymous one) the shim
	// parks reading from; required when Initial is true. A named FIFO,
	// rather than an fd inherited only by this process's children,
	// lets the later, unrelated `start` invocation release the shim by
	// opening the same path for writing and closing it immediately —
	// an anonymous pipe's write end would instead close (and falsely
	// release the shim) the moment `create`'s own process exits.
	StartFIFOPath string

	// Detached, when set, wires the shim's own stdin/stdout/stderr to
	// named pipes under StdioDir instead of the launching process's
	// controlling terminal (§4.6 "non_blocking path"): there is no
	// terminal to share once the runtime CLI that ran `create` has
	// already exited, so a later `attach`-style consumer opens these
	// same paths instead.
	Detached bool
	StdioDir string
}

// Launched is a running shim the runtime has not yet released to run.
type Launched struct {
	Cmd *exec.Cmd
	Pid int

	startFIFOPath string
	errPipeR      *os.File
	stdio         *StdioFIFOs
}

// Launch starts the shim binary, parked (if Initial) until Release is
// called. The caller must eventually call Release once, and may read
// SetupError beforehand to detect a child that failed before parking
// (§4.4's error-pipe invariant; §6.2's "Shim setup failure" row).
func Launch(p LaunchParams) (*Launched, error) {
	if p.ID == "" || p.ShimPath == "" {
		return nil, fmt.Errorf("shimproc: id and shim path are required")
	}
	if p.ProxyCtl == nil || p.ProxyIO == nil {
		return nil, fmt.Errorf("shimproc: proxy control and I/O fds are required")
	}
	if p.Initial && p.FlockFile == nil {
		return nil, fmt.Errorf("shimproc: initial shim requires a flock file")
	}
	if p.Initial && p.StartFIFOPath == "" {
		return nil, fmt.Errorf("shimproc: initial shim requires a start fifo path")
	}

	errR, errW, err := os.Pipe()
	if err != nil {
		return nil, err
	}

	// fd 5 ("--start-fd") is always reserved so the rest of the argv
	// numbering stays fixed; a non-initial (exec'd) shim is told
	// --no-park and never reads it, so a /dev/null placeholder there
	// is harmless.
	var startR *os.File
	if p.Initial {
		startR, err = openStartFIFO(p.StartFIFOPath)
		if err != nil {
			errR.Close()
			errW.Close()
			return nil, err
		}
	} else {
		startR, err = os.Open(os.DevNull)
		if err != nil {
			errR.Close()
			errW.Close()
			return nil, err
		}
	}

	args := []string{
		"-c", p.ID,
		"-p", strconv.Itoa(proxyCtlFD),
		"-o", strconv.Itoa(proxyIOFD),
		"-s", strconv.FormatUint(p.IOBase, 10),
		"--start-fd", strconv.Itoa(startFD),
		"--err-fd", strconv.Itoa(errFD),
	}
	if p.HasStderr {
		args = append(args, "-e", strconv.FormatUint(p.IOBase+1, 10))
	}
	if p.Debug {
		args = append(args, "-d")
	}
	if p.Initial {
		args = append(args, "--flock-fd", strconv.Itoa(flockFD))
	} else {
		args = append(args, "--no-park")
	}

	cmd := exec.Command(p.ShimPath, args...)

	var stdio *StdioFIFOs
	if p.Detached {
		if p.StdioDir == "" {
			startR.Close()
			errR.Close()
			errW.Close()
			return nil, fmt.Errorf("shimproc: detached shim requires a stdio dir")
		}
		stdio, err = OpenStdioFIFOs(context.Background(), p.StdioDir)
		if err != nil {
			startR.Close()
			errR.Close()
			errW.Close()
			return nil, err
		}
		cmd.Stdin = stdio.Stdin
		cmd.Stdout = stdio.Stdout
		cmd.Stderr = stdio.Stderr
	} else {
		cmd.Stdin = os.Stdin
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
	}
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	cmd.ExtraFiles = []*os.File{p.ProxyCtl, p.ProxyIO, startR, errW}
	if p.Initial {
		cmd.ExtraFiles = append(cmd.ExtraFiles, p.FlockFile)
	}

	if err := cmd.Start(); err != nil {
		startR.Close()
		errR.Close()
		errW.Close()
		if stdio != nil {
			stdio.Close()
		}
		return nil, err
	}

	// The child has its own duplicates of every ExtraFiles entry now;
	// release the parent's copies of the ones only the child needs.
	p.ProxyCtl.Close()
	p.ProxyIO.Close()
	startR.Close()
	errW.Close()
	if p.Initial {
		p.FlockFile.Close()
	}

	return &Launched{
		Cmd:           cmd,
		Pid:           cmd.Process.Pid,
		startFIFOPath: p.StartFIFOPath,
		errPipeR:      errR,
		stdio:         stdio,
	}, nil
}

// CloseStdio releases the runtime's copies of a detached shim's stdio
// fifos once the shim has taken its own duplicates (or failed to start);
// a no-op for an attached (terminal-sharing) shim.
func (l *Launched) CloseStdio() {
	if l.stdio != nil {
		l.stdio.Close()
	}
}

// openStartFIFO creates (if needed) and opens the start-gating FIFO for
// reading, non-blocking so the open itself never waits for a writer, then
// clears the non-blocking flag so the shim's subsequent read blocks as
// expected.
func openStartFIFO(path string) (*os.File, error) {
	if err := unix.Mkfifo(path, 0600); err != nil && err != unix.EEXIST {
		return nil, fmt.Errorf("shimproc: creating start fifo: %w", err)
	}

	fd, err := unix.Open(path, unix.O_RDONLY|unix.O_NONBLOCK, 0)
	if err != nil {
		return nil, fmt.Errorf("shimproc: opening start fifo: %w", err)
	}
	if err := unix.SetNonblock(fd, false); err != nil {
		unix.Close(fd)
		return nil, err
	}

	return os.NewFile(uintptr(fd), path), nil
}

// SetupError does a bounded, non-blocking-ish read for a setup failure the
// child may have written to its error pipe before parking. An empty string
// and false mean no failure was observed within timeout, which is the
// expected case for a healthy shim.
func (l *Launched) SetupError(timeout time.Duration) (string, bool) {
	if err := l.errPipeR.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return "", false
	}
	buf := make([]byte, 4096)
	n, err := l.errPipeR.Read(buf)
	if n > 0 {
		return string(buf[:n]), true
	}
	_ = err
	return "", false
}

// Release lets a parked shim proceed (the `start` subcommand's SIGCONT
// equivalent, per REDESIGN FLAGS: closing a pipe's write side substitutes
// for PTRACE_TRACEME parking while preserving the same externally
// observable contract). Unlike the rest of Launched, Release's real
// production caller is a separate `start` invocation that never held this
// struct, so it is also exposed standalone as Release(fifoPath); this
// method is a same-process convenience (tests, `exec`'s in-process path).
func (l *Launched) Release() error {
	if l.startFIFOPath == "" {
		return nil
	}
	return ReleaseStartFIFO(l.startFIFOPath)
}

// ReleaseStartFIFO unparks whatever shim is blocked reading fifoPath by
// opening it for writing and immediately closing it, which is the EOF the
// blocked reader is waiting for. It is safe to call from any process,
// including one that never launched the shim itself — this is the
// operation the `start` subcommand actually performs.
func ReleaseStartFIFO(fifoPath string) error {
	w, err := os.OpenFile(fifoPath, os.O_WRONLY, 0)
	if err != nil {
		return err
	}
	return w.Close()
}

// Abort kills a shim that failed setup or was never released, per the
// "Shim setup failure" handling in §6.2.
func (l *Launched) Abort() error {
	if l.startFIFOPath != "" {
		ReleaseStartFIFO(l.startFIFOPath)
	}
	l.errPipeR.Close()
	return l.Cmd.Process.Kill()
}
