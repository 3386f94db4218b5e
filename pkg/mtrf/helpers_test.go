// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Kaz Walker, Thermoquad

package mtrf

import (
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// ============================================================
// Scripted Connection
// ============================================================

// scriptedConn is an in-memory transceiver. Frames written by the host are
// recorded and passed to respond, whose return value is fed back to the
// reader in order.
type scriptedConn struct {
	rxR *io.PipeReader
	rxW *io.PipeWriter

	mu       sync.Mutex
	written  [][]byte
	respond  func(frame []byte) [][]byte
	writeErr error

	feed chan []byte
	stop chan struct{}
	once sync.Once
}

func newScriptedConn(respond func(frame []byte) [][]byte) *scriptedConn {
	r, w := io.Pipe()
	c := &scriptedConn{
		rxR:     r,
		rxW:     w,
		respond: respond,
		feed:    make(chan []byte, 256),
		stop:    make(chan struct{}),
	}
	go c.pump()
	return c
}

// pump writes queued frames to the pipe one at a time, preserving order
func (c *scriptedConn) pump() {
	for {
		select {
		case f := <-c.feed:
			if _, err := c.rxW.Write(f); err != nil {
				return
			}
		case <-c.stop:
			return
		}
	}
}

func (c *scriptedConn) Read(p []byte) (int, error) {
	return c.rxR.Read(p)
}

func (c *scriptedConn) Write(p []byte) (int, error) {
	c.mu.Lock()
	if c.writeErr != nil {
		err := c.writeErr
		c.mu.Unlock()
		return 0, err
	}
	frame := append([]byte(nil), p...)
	c.written = append(c.written, frame)
	respond := c.respond
	c.mu.Unlock()

	if respond != nil {
		c.inject(respond(frame)...)
	}
	return len(p), nil
}

func (c *scriptedConn) Close() error {
	c.once.Do(func() {
		close(c.stop)
		c.rxR.Close()
	})
	return nil
}

// inject queues raw bytes for the reader
func (c *scriptedConn) inject(frames ...[]byte) {
	for _, f := range frames {
		c.feed <- f
	}
}

// fail makes the line drop as if the device was unplugged
func (c *scriptedConn) fail(err error) {
	c.rxW.CloseWithError(err)
}

func (c *scriptedConn) setWriteErr(err error) {
	c.mu.Lock()
	c.writeErr = err
	c.mu.Unlock()
}

func (c *scriptedConn) writes() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]byte(nil), c.written...)
}

// newTestAdapter creates an adapter over a scripted connection and closes it with the test
func newTestAdapter(t *testing.T, respond func([]byte) [][]byte, opts ...Option) (*Adapter, *scriptedConn) {
	t.Helper()
	conn := newScriptedConn(respond)
	opts = append([]Option{
		WithLogger(zaptest.NewLogger(t)),
		WithResponseTimeout(200 * time.Millisecond),
		WithSettleDelay(0),
	}, opts...)
	a := NewAdapter(conn, opts...)
	t.Cleanup(func() { require.NoError(t, a.Close()) })
	return a, conn
}

// ============================================================
// Frame Builders
// ============================================================

// reply builds an incoming frame
func reply(mode Mode, status Status, count, channel uint8, cmd Command, format uint8, data [DataSize]byte, id uint32) []byte {
	return EncodeResponse(&Response{
		Mode:    mode,
		Status:  status,
		Count:   count,
		Channel: channel,
		Command: cmd,
		Format:  format,
		Data:    data,
		ID:      id,
	})
}

// stateReply builds a TX_F SEND_STATE format 0 frame for a device that is on
func stateReply(channel, count uint8, id uint32) []byte {
	return reply(ModeTXF, StatusSuccess, count, channel, CmdSendState, FormatState, [4]byte{5, 1, 1, 0xFF}, id)
}

// event builds an RX_F frame as sent by a remote or sensor
func event(channel uint8, cmd Command, format uint8, data [DataSize]byte) []byte {
	return reply(ModeRXF, StatusSuccess, 0, channel, cmd, format, data, 0xCAFE)
}

// ============================================================
// Fake Transport
// ============================================================

// fakeTransport records requests and returns scripted responses
type fakeTransport struct {
	mu        sync.Mutex
	requests  []*Request
	responses []*Response
	err       error
	handler   FrameHandler
	closed    bool
}

func (f *fakeTransport) Send(req *Request) ([]*Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	return f.responses, f.err
}

func (f *fakeTransport) SetFrameHandler(h FrameHandler) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handler = h
}

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeTransport) last(t *testing.T) *Request {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.requests, "no request sent")
	return f.requests[len(f.requests)-1]
}

func (f *fakeTransport) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

// deliver hands an incoming frame to the registered handler as the dispatcher would
func (f *fakeTransport) deliver(frame []byte) {
	resp, err := ParseFrame(frame)
	if err != nil {
		panic(err)
	}
	f.mu.Lock()
	h := f.handler
	f.mu.Unlock()
	h(resp)
}

func ptr[T any](v T) *T {
	return &v
}

func mustParse(t *testing.T, frame []byte) *Response {
	t.Helper()
	resp, err := ParseFrame(frame)
	require.NoError(t, err)
	return resp
}
