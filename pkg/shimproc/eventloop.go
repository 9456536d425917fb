// Copyright (c) 2016 Intel Corporation
//
// SPDX-License-Identifier: Apache-2.0
//

package shimproc

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"syscall"

	"github.com/cc-vmrt/runtime/pkg/codec"
	"github.com/containerd/console"
	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

// Session is everything the shim event loop needs: the proxy control and
// I/O connections, and the stream sequence numbers the proxy allocated for
// this workload's stdout/stderr.
type Session struct {
	ContainerID string
	ProxyCtl    io.ReadWriteCloser
	ProxyIO     io.ReadWriteCloser

	// IOSeq is the stdout/stdin sequence number; IOSeq+1 is stderr's,
	// when HasStderr is set (§4.1 "proxy allocates errseq 1 higher").
	IOSeq     uint64
	HasStderr bool

	Stdin  *os.File
	Stdout *os.File
	Stderr *os.File

	Log *logrus.Entry
}

// EventLoop multiplexes the four descriptors named in §4.6: the signal
// self-pipe, stdin, the proxy control fd, and the proxy I/O fd. Go's
// goroutine-per-source-plus-channel-select is the idiomatic translation of
// shim.c's single poll(2) call over the same four sources; each source is
// read by its own goroutine and funneled onto one select loop so that, as
// in the original, only one goroutine ever acts on a given event at a time.
type EventLoop struct {
	sess  *Session
	pipe  *SelfPipe
	con   console.Console // non-nil only when Stdin is a tty
	isTTY bool
}

// NewEventLoop prepares an event loop for sess, putting Stdin into raw mode
// if it is a terminal (§4.6 "the shim puts stdin into raw mode... restores
// the original termios on every exit path"). When Stdin is not a tty,
// NewEventLoop sets it non-blocking instead (§4.6 "When stdin is not a tty,
// it is set non-blocking instead").
func NewEventLoop(sess *Session) (*EventLoop, error) {
	el := &EventLoop{sess: sess, pipe: NewSelfPipe()}

	if c, err := console.ConsoleFromFile(sess.Stdin); err == nil {
		if err := c.SetRaw(); err == nil {
			el.con = c
			el.isTTY = true
		}
	} else {
		_ = unix.SetNonblock(int(sess.Stdin.Fd()), true)
	}

	return el, nil
}

// Restore undoes any raw-mode change made by NewEventLoop. It is safe to
// call multiple times and is intended to run on every exit path, including
// the one driven by the agent's exit-status frame (§4.6).
func (el *EventLoop) Restore() {
	if el.isTTY && el.con != nil {
		el.con.Reset()
	}
}

// exitResult carries the workload's exit status out of the proxy-I/O
// goroutine to Run's caller.
type exitResult struct {
	code int
	err  error
}

// Run drives the event loop until the workload exits or a fatal transport
// error occurs, returning the workload's exit status.
func (el *EventLoop) Run() (int, error) {
	defer el.Restore()
	defer el.pipe.Stop()

	exitCh := make(chan exitResult, 1)
	stdinDone := make(chan struct{})

	// Only runProxyIO's completion gates Run's return: stdin and the
	// control-fd reader block on reads that don't unblock until their
	// underlying connection is torn down by the caller after Run
	// returns, exactly as the original's poll loop only ends because
	// its whole process exits out from under every fd at once.
	go el.runStdin(stdinDone)
	go el.runProxyCtl()
	go el.runSignals()

	go func() {
		code, err := el.runProxyIO()
		exitCh <- exitResult{code: code, err: err}
	}()

	result := <-exitCh
	close(stdinDone)

	return result.code, result.err
}

// runSignals forwards the signal set named in §4.6 to the proxy as
// `hyper winsize`/`hyper killcontainer` calls, mirroring
// shim.c:handle_signals.
func (el *EventLoop) runSignals() {
	for sig := range el.pipe.C() {
		if sig == syscall.SIGWINCH {
			el.forwardWinsize()
			continue
		}
		el.forwardKill(sig)
	}
}

func (el *EventLoop) forwardWinsize() {
	var row, col int
	if el.con != nil {
		sz, err := el.con.Size()
		if err != nil {
			if el.sess.Log != nil {
				el.sess.Log.WithError(err).Warn("shimproc: TIOCGWINSZ failed")
			}
			return
		}
		row, col = int(sz.Height), int(sz.Width)
	}

	payload := struct {
		Seq    uint64 `json:"seq"`
		Row    int    `json:"row"`
		Column int    `json:"column"`
	}{Seq: el.sess.IOSeq, Row: row, Column: col}

	el.sendHyper("winsize", payload)
}

func (el *EventLoop) forwardKill(sig os.Signal) {
	payload := struct {
		Container string `json:"container"`
		Signal    int    `json:"signal"`
	}{
		Container: el.sess.ContainerID,
		Signal:    int(sig.(syscall.Signal)),
	}
	el.sendHyper("killcontainer", payload)
}

// sendHyper writes one hyper-wrapped control frame directly, bypassing
// proxyclient.Client since the shim only ever sends fire-and-forget hyper
// commands on this connection and never waits for allocateIO-style
// responses with fd transfer (§4.1 format).
func (el *EventLoop) sendHyper(hyperName string, data interface{}) {
	inner, err := json.Marshal(data)
	if err != nil {
		return
	}

	envelope := struct {
		ID   string `json:"id"`
		Data struct {
			HyperName string          `json:"hyperName"`
			Data      json.RawMessage `json:"data"`
		} `json:"data"`
	}{ID: "hyper"}
	envelope.Data.HyperName = hyperName
	envelope.Data.Data = inner

	payload, err := json.Marshal(envelope)
	if err != nil {
		return
	}

	if err := codec.WriteControlFrame(el.sess.ProxyCtl, payload); err != nil && el.sess.Log != nil {
		el.sess.Log.WithError(err).Warn("shimproc: error writing to proxy")
	}
}

// runStdin reads stdin and relays it to the proxy I/O fd as stream frames
// carrying IOSeq, matching shim.c:handle_stdin. It stops reading (but does
// not close the proxy connection) once stdin reaches EOF, exactly as the
// original removes stdin from the polled set rather than tearing anything
// down.
func (el *EventLoop) runStdin(done <-chan struct{}) {
	buf := make([]byte, 32*1024)
	for {
		select {
		case <-done:
			return
		default:
		}

		n, err := el.sess.Stdin.Read(buf)
		if n > 0 {
			if werr := codec.WriteStreamFrame(el.sess.ProxyIO, el.sess.IOSeq, buf[:n]); werr != nil {
				if el.sess.Log != nil {
					el.sess.Log.WithError(werr).Warn("shimproc: error writing stdin to proxy")
				}
				return
			}
		}
		if err != nil {
			return
		}
	}
}

// runProxyCtl drains the proxy control connection for logging purposes
// only; the shim never originates requests that expect a control-frame
// reply (shim.c:handle_proxy_ctl).
func (el *EventLoop) runProxyCtl() {
	r := bufio.NewReaderSize(el.sess.ProxyCtl, 4096)
	for {
		payload, err := codec.ReadControlFrame(r)
		if err != nil {
			return
		}
		if el.sess.Log != nil {
			el.sess.Log.WithField("response", string(payload)).Debug("shimproc: proxy control response")
		}
	}
}

// runProxyIO reads stream frames from the proxy I/O fd and routes them to
// stdout/stderr by sequence number, handling the EOF-then-exit-status
// sequence from §4.1/§8 scenario #6 (shim.c:handle_proxy_output).
func (el *EventLoop) runProxyIO() (int, error) {
	exiting := false

	for {
		frame, err := codec.ReadStreamFrame(el.sess.ProxyIO)
		if err != nil {
			return 0, fmt.Errorf("shimproc: proxy I/O connection closed: %w", err)
		}

		if frame.IsEOF() {
			if exiting {
				continue
			}
			exiting = true
			continue
		}

		if exiting {
			if status, ok := frame.ExitStatus(); ok {
				return int(status), nil
			}
			continue
		}

		var out *os.File
		switch frame.Seq {
		case el.sess.IOSeq:
			out = el.sess.Stdout
		case el.sess.IOSeq + 1:
			if !el.sess.HasStderr {
				continue
			}
			out = el.sess.Stderr
		default:
			if el.sess.Log != nil {
				el.sess.Log.WithField("seq", frame.Seq).Warn("shimproc: unexpected stream sequence from proxy")
			}
			continue
		}

		if _, err := out.Write(frame.Payload); err != nil {
			return 0, err
		}
	}
}
