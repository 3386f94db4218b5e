// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 Kaz Walker, Thermoquad

package cmd

import (
	"bytes"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// feedConn is a connection whose incoming bytes come from a pipe
type feedConn struct {
	r *io.PipeReader
	w *io.PipeWriter
}

func newFeedConn() *feedConn {
	r, w := io.Pipe()
	return &feedConn{r: r, w: w}
}

func (c *feedConn) Read(p []byte) (int, error) { return c.r.Read(p) }
func (c *feedConn) Close() error               { return c.r.Close() }

func TestWatchLinkStopsReaderWhenDone(t *testing.T) {
	conn := newFeedConn()

	go func() {
		stream := append(corrupted(remoteOn), bytes.Repeat(remoteOn, 40)...)
		_, _ = conn.w.Write(stream)
	}()

	var out bytes.Buffer
	finished := make(chan struct{})
	var result linkTestResult
	var err error
	go func() {
		result, err = watchLink(&out, conn, 200*time.Millisecond)
		close(finished)
	}()

	select {
	case <-finished:
	case <-time.After(3 * time.Second):
		t.Fatal("watchLink did not return: reader goroutine still blocked")
	}
	require.NoError(t, err)
	assert.Equal(t, 1, result.malformed)
	assert.Equal(t, 40, result.valid)
	assert.Contains(t, out.String(), "RX_F ON")

	// the pipe is closed for the writer once the reader side is gone
	_, werr := conn.w.Write(remoteOn)
	assert.ErrorIs(t, werr, io.ErrClosedPipe)
}

func TestWatchLinkReportsConnectionError(t *testing.T) {
	conn := newFeedConn()
	lost := errors.New("device unplugged")
	go func() {
		_, _ = conn.w.Write(remoteOn)
		conn.w.CloseWithError(lost)
	}()

	var out bytes.Buffer
	result, err := watchLink(&out, conn, 5*time.Second)
	assert.ErrorIs(t, err, lost)
	assert.Equal(t, 1, result.valid)
	assert.Contains(t, out.String(), "Connection error: device unplugged")
}
