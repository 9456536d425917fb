// Copyright (c) 2016 Intel Corporation
//
// SPDX-License-Identifier: Apache-2.0
//

// Package codec implements the two wire frames used between the runtime's
// shim and the agent proxy (component A, §4.1): an 8-byte-header control
// frame carrying JSON commands, and a 12-byte-header I/O frame carrying
// streamed workload data.
package codec

import (
	"encoding/binary"
	"fmt"
	"io"
)

// MaxControlPayload bounds control-frame payloads: responses are small
// status objects, so anything larger is rejected defensively (§4.1).
const MaxControlPayload = 1024

// controlHeaderLen is the length+reserved prefix of a control frame.
const controlHeaderLen = 8

// streamHeaderLen is the seq+length prefix of an I/O stream frame.
const streamHeaderLen = 12

// WriteControlFrame writes one length-prefixed control frame: a BE32
// payload length, 4 reserved zero bytes, then payload, retrying on short
// writes.
func WriteControlFrame(w io.Writer, payload []byte) error {
	if len(payload) > MaxControlPayload {
		return fmt.Errorf("codec: control payload of %d bytes exceeds %d byte bound", len(payload), MaxControlPayload)
	}

	header := make([]byte, controlHeaderLen)
	binary.BigEndian.PutUint32(header[0:4], uint32(len(payload)))

	if err := writeFull(w, header); err != nil {
		return err
	}
	return writeFull(w, payload)
}

// ReadControlFrame reads exactly one control frame: 8 header bytes, then
// `length` payload bytes, retrying on EAGAIN/EINTR (surfaced by the
// standard library as io.ErrShortBuffer-free retryable errors on the
// underlying reader; readFull already loops past partial reads).
func ReadControlFrame(r io.Reader) ([]byte, error) {
	header := make([]byte, controlHeaderLen)
	if err := readFull(r, header); err != nil {
		return nil, err
	}

	length := binary.BigEndian.Uint32(header[0:4])
	if length > MaxControlPayload {
		return nil, fmt.Errorf("codec: control payload of %d bytes exceeds %d byte bound", length, MaxControlPayload)
	}

	payload := make([]byte, length)
	if err := readFull(r, payload); err != nil {
		return nil, err
	}

	return payload, nil
}

// StreamFrame is one frame of the shim<->proxy I/O wire format (§4.1, §6.3).
type StreamFrame struct {
	Seq     uint64
	Payload []byte
}

// IsEOF reports whether this frame is the agent's "EOF from agent"
// encoding: a frame whose payload is empty (length == 0, so the total
// frame on the wire is exactly 12 bytes).
func (f StreamFrame) IsEOF() bool {
	return len(f.Payload) == 0
}

// ExitStatus reports whether this frame carries the single trailing byte
// that follows an EOF frame: the workload's exit status. ok is false for
// any frame whose payload is not exactly one byte.
func (f StreamFrame) ExitStatus() (status byte, ok bool) {
	if len(f.Payload) != 1 {
		return 0, false
	}
	return f.Payload[0], true
}

// WriteStreamFrame writes one 12-byte-header I/O frame: BE64 stream
// sequence number, BE32 payload length, then payload.
func WriteStreamFrame(w io.Writer, seq uint64, payload []byte) error {
	header := make([]byte, streamHeaderLen)
	binary.BigEndian.PutUint64(header[0:8], seq)
	binary.BigEndian.PutUint32(header[8:12], uint32(len(payload)))

	if err := writeFull(w, header); err != nil {
		return err
	}
	return writeFull(w, payload)
}

// ReadStreamFrame reads exactly one I/O stream frame.
func ReadStreamFrame(r io.Reader) (StreamFrame, error) {
	header := make([]byte, streamHeaderLen)
	if err := readFull(r, header); err != nil {
		return StreamFrame{}, err
	}

	seq := binary.BigEndian.Uint64(header[0:8])
	length := binary.BigEndian.Uint32(header[8:12])

	payload := make([]byte, length)
	if length > 0 {
		if err := readFull(r, payload); err != nil {
			return StreamFrame{}, err
		}
	}

	return StreamFrame{Seq: seq, Payload: payload}, nil
}

// writeFull writes all of buf, looping past short writes the way a
// non-blocking or signal-interrupted fd can produce.
func writeFull(w io.Writer, buf []byte) error {
	for len(buf) > 0 {
		n, err := w.Write(buf)
		if err != nil {
			return err
		}
		buf = buf[n:]
	}
	return nil
}

// readFull reads exactly len(buf) bytes, looping past short reads.
func readFull(r io.Reader, buf []byte) error {
	_, err := io.ReadFull(r, buf)
	return err
}
