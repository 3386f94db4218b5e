// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Kaz Walker, Thermoquad

package mtrf

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"go.bug.st/serial"
	"go.uber.org/zap"
)

// Adapter defaults
const (
	DefaultResponseTimeout = 3 * time.Second
	DefaultSettleDelay     = 500 * time.Millisecond
	DefaultQueueSize       = 64
)

// Connection is the byte stream to the transceiver
type Connection interface {
	io.Reader
	io.Writer
	io.Closer
}

// FrameHandler receives unsolicited incoming frames on the dispatcher goroutine
type FrameHandler func(*Response)

// Option configures an Adapter
type Option func(*Adapter)

// WithLogger sets the adapter logger
func WithLogger(log *zap.Logger) Option {
	return func(a *Adapter) {
		if log != nil {
			a.log = log
		}
	}
}

// WithResponseTimeout sets the wait for each response frame of a burst
func WithResponseTimeout(d time.Duration) Option {
	return func(a *Adapter) {
		if d > 0 {
			a.responseTimeout = d
		}
	}
}

// WithSettleDelay sets the pause after exchanges in non-feedback modes
func WithSettleDelay(d time.Duration) Option {
	return func(a *Adapter) {
		if d >= 0 {
			a.settleDelay = d
		}
	}
}

// WithQueueSize sets the capacity of the response and event queues
func WithQueueSize(n int) Option {
	return func(a *Adapter) {
		if n > 0 {
			a.queueSize = n
		}
	}
}

// WithMetrics enables Prometheus instrumentation
func WithMetrics(m *Metrics) Option {
	return func(a *Adapter) {
		a.metrics = m
	}
}

// WithCapture records every frame sent and received
func WithCapture(c *CaptureWriter) Option {
	return func(a *Adapter) {
		a.capture = c
	}
}

// Adapter owns the connection to an MTRF-64 transceiver.
//
// A reader goroutine parses incoming frames and routes them by mode: command
// responses (TX, TX_F) go to the response queue consumed by Send, device
// traffic (RX, RX_F) goes to the event queue drained by the dispatcher
// goroutine. Only one command exchange is in flight at a time.
type Adapter struct {
	conn Connection
	log  *zap.Logger

	responseTimeout time.Duration
	settleDelay     time.Duration
	queueSize       int
	metrics         *Metrics
	capture         *CaptureWriter

	responses chan *Response
	incoming  chan *Response
	handler   atomic.Pointer[FrameHandler]

	sendMu sync.Mutex

	done       chan struct{} // closed by Close
	readerDone chan struct{} // closed when the reader exits
	readErr    error         // set before readerDone is closed

	closeOnce sync.Once
	closeErr  error
	wg        sync.WaitGroup

	stats *linkCounters
}

// NewAdapter takes ownership of conn and starts the reader and dispatcher goroutines
func NewAdapter(conn Connection, opts ...Option) *Adapter {
	a := &Adapter{
		conn:            conn,
		log:             zap.NewNop(),
		responseTimeout: DefaultResponseTimeout,
		settleDelay:     DefaultSettleDelay,
		queueSize:       DefaultQueueSize,
		done:            make(chan struct{}),
		readerDone:      make(chan struct{}),
		stats:           newLinkCounters(),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.responses = make(chan *Response, a.queueSize)
	a.incoming = make(chan *Response, a.queueSize)

	a.wg.Add(2)
	go a.readLoop()
	go a.dispatchLoop()
	return a
}

// OpenSerial opens a serial port at 9600 8N1 and wraps it in an Adapter
func OpenSerial(portName string, opts ...Option) (*Adapter, error) {
	mode := &serial.Mode{
		BaudRate: BaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(portName, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", portName, err)
	}
	return NewAdapter(port, opts...), nil
}

// SetFrameHandler sets the receiver of unsolicited frames. A nil handler drops them.
func (a *Adapter) SetFrameHandler(h FrameHandler) {
	if h == nil {
		a.handler.Store(nil)
		return
	}
	a.handler.Store(&h)
}

// Send writes a request and collects its response burst.
//
// Frames are gathered until one with Count == 0 arrives. When no frame
// arrives within the response timeout the frames collected so far are
// returned with a nil error; the caller sees a short or empty burst.
func (a *Adapter) Send(req *Request) ([]*Response, error) {
	if err := a.alive(); err != nil {
		return nil, err
	}

	a.sendMu.Lock()
	defer a.sendMu.Unlock()

	if err := a.alive(); err != nil {
		return nil, err
	}

	a.drainStale()

	frame := BuildFrame(req)
	started := time.Now()
	a.record(DirectionTX, frame, started)
	if _, err := a.conn.Write(frame); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}
	a.stats.framesSent.Add(1)
	a.stats.touch(started)
	a.metrics.sent()
	a.log.Debug("frame sent",
		zap.Stringer("mode", req.Mode),
		zap.Stringer("action", req.Action),
		zap.Stringer("command", req.Command),
		zap.Uint8("channel", req.Channel),
		zap.Uint32("id", req.ID),
		zap.Uint8("format", req.Format),
	)

	responses, err := a.collect(req)
	a.metrics.exchange(started, responses)
	if err != nil {
		return responses, err
	}

	// legacy modes get no acknowledgement; give the radio time before the next frame
	if !req.Mode.IsFeedback() {
		a.settle()
	}
	return responses, nil
}

func (a *Adapter) collect(req *Request) ([]*Response, error) {
	responses := make([]*Response, 0, 1)
	timer := time.NewTimer(a.responseTimeout)
	defer timer.Stop()

	for {
		select {
		case resp := <-a.responses:
			responses = append(responses, resp)
			if resp.Last() {
				return responses, nil
			}
			timer.Reset(a.responseTimeout)
		case <-timer.C:
			a.stats.timeouts.Add(1)
			a.metrics.timeout()
			a.log.Warn("response timeout",
				zap.Stringer("command", req.Command),
				zap.Uint8("channel", req.Channel),
				zap.Int("received", len(responses)),
				zap.Duration("timeout", a.responseTimeout),
			)
			return responses, nil
		case <-a.done:
			return responses, ErrClosed
		case <-a.readerDone:
			return responses, ErrConnectionLost
		}
	}
}

func (a *Adapter) settle() {
	if a.settleDelay == 0 {
		return
	}
	t := time.NewTimer(a.settleDelay)
	defer t.Stop()
	select {
	case <-t.C:
	case <-a.done:
	}
}

// drainStale discards late responses left over from a timed-out exchange
func (a *Adapter) drainStale() {
	for {
		select {
		case resp := <-a.responses:
			a.stats.stale.Add(1)
			a.log.Debug("discarding stale response",
				zap.Stringer("command", resp.Command),
				zap.Uint8("channel", resp.Channel),
				zap.Uint8("count", resp.Count),
			)
		default:
			return
		}
	}
}

func (a *Adapter) alive() error {
	select {
	case <-a.done:
		return ErrClosed
	default:
	}
	select {
	case <-a.readerDone:
		return ErrConnectionLost
	default:
	}
	return nil
}

// Close stops both goroutines and closes the connection. It is safe to call
// more than once; later calls return the first result. Close must not be
// called from a frame handler.
func (a *Adapter) Close() error {
	a.closeOnce.Do(func() {
		close(a.done)
		a.closeErr = a.conn.Close()
		a.wg.Wait()
	})
	return a.closeErr
}

// Lost is closed when the reader has stopped, either after Close or on an I/O error
func (a *Adapter) Lost() <-chan struct{} {
	return a.readerDone
}

// Err returns the I/O error that stopped the reader, or nil
func (a *Adapter) Err() error {
	select {
	case <-a.readerDone:
		return a.readErr
	default:
		return nil
	}
}

// Stats returns a snapshot of the link statistics
func (a *Adapter) Stats() Stats {
	return a.stats.snapshot()
}

////// Reader //////

func (a *Adapter) readLoop() {
	defer a.wg.Done()
	defer close(a.incoming)
	defer close(a.readerDone)

	fr := NewFrameReader(a.conn)
	for {
		raw, resp, err := fr.ReadFrame()
		now := time.Now()
		if err != nil {
			var fe *FrameError
			if errors.As(err, &fe) {
				a.record(DirectionRX, raw, now)
				a.stats.frameErrors.Add(1)
				a.metrics.frameError()
				a.log.Warn("discarding malformed frame",
					zap.String("reason", fe.Reason),
					zap.String("frame", fmt.Sprintf("% X", fe.Frame)),
				)
				continue
			}
			a.stopReader(err)
			return
		}

		resp.Received = now
		a.record(DirectionRX, raw, now)
		a.stats.framesReceived.Add(1)
		a.stats.touch(now)
		a.route(resp)
	}
}

func (a *Adapter) stopReader(err error) {
	select {
	case <-a.done:
		// closing the port unblocks the read; not a failure
		return
	default:
	}
	a.readErr = err
	a.log.Error("serial read failed, reader stopped", zap.Error(err))
}

func (a *Adapter) route(resp *Response) {
	switch {
	case resp.Mode.IsCommand():
		a.stats.responses.Add(1)
		a.metrics.received("response")
		a.log.Debug("response received",
			zap.Stringer("status", resp.Status),
			zap.Stringer("command", resp.Command),
			zap.Uint8("channel", resp.Channel),
			zap.Uint8("count", resp.Count),
			zap.Uint32("id", resp.ID),
		)
		a.enqueue(a.responses, resp, "response")
	case resp.Mode.IsIncoming():
		a.stats.events.Add(1)
		a.metrics.received("event")
		a.log.Debug("event received",
			zap.Stringer("mode", resp.Mode),
			zap.Stringer("command", resp.Command),
			zap.Uint8("channel", resp.Channel),
			zap.Uint32("id", resp.ID),
		)
		a.enqueue(a.incoming, resp, "event")
	default:
		a.stats.ignored.Add(1)
		a.metrics.received("ignored")
		a.log.Debug("ignoring frame", zap.Stringer("mode", resp.Mode))
	}
}

// enqueue never blocks the reader; a full queue drops the frame
func (a *Adapter) enqueue(q chan<- *Response, resp *Response, route string) {
	select {
	case q <- resp:
	default:
		a.stats.dropped.Add(1)
		a.metrics.dropped(route)
		a.log.Warn("queue full, dropping frame",
			zap.String("route", route),
			zap.Stringer("command", resp.Command),
			zap.Uint8("channel", resp.Channel),
		)
	}
}

func (a *Adapter) record(dir Direction, frame []byte, at time.Time) {
	if a.capture == nil {
		return
	}
	if err := a.capture.Record(dir, frame, at); err != nil {
		a.log.Warn("capture failed", zap.Error(err))
	}
}

////// Dispatcher //////

func (a *Adapter) dispatchLoop() {
	defer a.wg.Done()
	for resp := range a.incoming {
		a.dispatch(resp)
	}
}

func (a *Adapter) dispatch(resp *Response) {
	hp := a.handler.Load()
	if hp == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			a.log.Error("frame handler panicked",
				zap.Any("panic", r),
				zap.Stringer("command", resp.Command),
				zap.Uint8("channel", resp.Channel),
			)
		}
	}()
	(*hp)(resp)
}
