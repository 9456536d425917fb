// Copyright (c) 2016 Intel Corporation
//
// SPDX-License-Identifier: Apache-2.0
//

package codec

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestControlFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	payload := []byte(`{"id":"hello","data":{}}`)

	require.NoError(t, WriteControlFrame(&buf, payload))

	// Every outbound frame satisfies len(frame) == 8 + payload.len and
	// be32(frame[0..4]) == payload.len (§8 protocol laws).
	assert.Equal(t, 8+len(payload), buf.Len())
	assert.Equal(t, uint32(len(payload)), binary.BigEndian.Uint32(buf.Bytes()[0:4]))

	got, err := ReadControlFrame(&buf)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestControlFrameRejectsOversizedPayload(t *testing.T) {
	var buf bytes.Buffer
	oversized := bytes.Repeat([]byte{'x'}, MaxControlPayload+1)

	err := WriteControlFrame(&buf, oversized)
	assert.Error(t, err)
}

func TestReadControlFrameRejectsOversizedLength(t *testing.T) {
	var buf bytes.Buffer
	header := make([]byte, 8)
	binary.BigEndian.PutUint32(header[0:4], MaxControlPayload+1)
	buf.Write(header)

	_, err := ReadControlFrame(&buf)
	assert.Error(t, err)
}

func TestStreamFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteStreamFrame(&buf, 3, []byte("hello")))

	f, err := ReadStreamFrame(&buf)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), f.Seq)
	assert.Equal(t, []byte("hello"), f.Payload)
	assert.False(t, f.IsEOF())
}

func TestStreamFrameRoutingBySeq(t *testing.T) {
	const stdioStream = uint64(5)
	stderrStream := stdioStream + 1

	stdout := StreamFrame{Seq: stdioStream}
	stderr := StreamFrame{Seq: stderrStream}
	other := StreamFrame{Seq: 99}

	assert.Equal(t, stdioStream, stdout.Seq)
	assert.Equal(t, stderrStream, stderr.Seq)
	assert.NotEqual(t, stdioStream, other.Seq)
	assert.NotEqual(t, stderrStream, other.Seq)
}

// TestEOFThenExitStatusFrame reproduces the literal end-to-end scenario
// from §8 #6: a 12-byte EOF frame followed by a 13-byte frame carrying
// status byte 0x07.
func TestEOFThenExitStatusFrame(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteStreamFrame(&buf, 1, nil))
	require.NoError(t, WriteStreamFrame(&buf, 1, []byte{0x07}))

	eof, err := ReadStreamFrame(&buf)
	require.NoError(t, err)
	assert.True(t, eof.IsEOF())
	_, ok := eof.ExitStatus()
	assert.False(t, ok)

	exit, err := ReadStreamFrame(&buf)
	require.NoError(t, err)
	assert.False(t, exit.IsEOF())
	status, ok := exit.ExitStatus()
	require.True(t, ok)
	assert.Equal(t, byte(7), status)
}

func TestReadStreamFrameTruncatedHeaderFails(t *testing.T) {
	buf := bytes.NewBuffer([]byte{0, 0, 0, 1})
	_, err := ReadStreamFrame(buf)
	assert.Error(t, err)
}
