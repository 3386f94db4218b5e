// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Kaz Walker, Thermoquad

package mtrf

import (
	"bytes"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var onChannel3 = &Request{Mode: ModeTXF, Action: ActionSendCommand, Channel: 3, Command: CmdOn}

// ============================================================
// Burst Correlation
// ============================================================

func TestAdapter_BurstInterleavedWithEvents(t *testing.T) {
	events := make(chan *Response, 8)
	a, conn := newTestAdapter(t, func([]byte) [][]byte {
		return [][]byte{
			event(7, CmdSwitch, 0, [4]byte{}),
			stateReply(3, 2, 0x01),
			event(7, CmdOff, 0, [4]byte{}),
			stateReply(3, 1, 0x02),
			stateReply(3, 0, 0x03),
		}
	})
	a.SetFrameHandler(func(r *Response) { events <- r })

	responses, err := a.Send(onChannel3)
	require.NoError(t, err)
	require.Len(t, responses, 3)
	for i, r := range responses {
		assert.Equal(t, uint8(2-i), r.Count)
		assert.Equal(t, uint32(i+1), r.ID, "burst order")
		assert.Equal(t, ModeTXF, r.Mode)
		assert.False(t, r.Received.IsZero())
	}

	for _, want := range []Command{CmdSwitch, CmdOff} {
		select {
		case r := <-events:
			assert.Equal(t, want, r.Command)
			assert.Equal(t, ModeRXF, r.Mode)
		case <-time.After(time.Second):
			t.Fatalf("event %s not dispatched", want)
		}
	}

	writes := conn.writes()
	require.Len(t, writes, 1)
	assert.Equal(t, BuildFrame(onChannel3), writes[0])

	stats := a.Stats()
	assert.Equal(t, uint64(1), stats.FramesSent)
	assert.Equal(t, uint64(5), stats.FramesReceived)
	assert.Equal(t, uint64(3), stats.Responses)
	assert.Equal(t, uint64(2), stats.Events)
}

func TestAdapter_MalformedFrameSkipped(t *testing.T) {
	a, _ := newTestAdapter(t, func([]byte) [][]byte {
		bad := stateReply(3, 0, 0x01)
		bad[offChecksum]++
		return [][]byte{bad, stateReply(3, 0, 0x02)}
	})

	responses, err := a.Send(onChannel3)
	require.NoError(t, err)
	require.Len(t, responses, 1)
	assert.Equal(t, uint32(0x02), responses[0].ID)
	assert.Equal(t, uint64(1), a.Stats().FrameErrors)
}

func TestAdapter_UnknownModeIgnored(t *testing.T) {
	a, _ := newTestAdapter(t, func([]byte) [][]byte {
		return [][]byte{
			reply(ModeService, StatusSuccess, 0, 3, CmdService, 0, [4]byte{}, 0),
			stateReply(3, 0, 0x01),
		}
	})

	responses, err := a.Send(onChannel3)
	require.NoError(t, err)
	require.Len(t, responses, 1)
	assert.Equal(t, uint64(1), a.Stats().IgnoredFrames)
}

// ============================================================
// Timeouts
// ============================================================

func TestAdapter_TimeoutReturnsEmpty(t *testing.T) {
	a, _ := newTestAdapter(t, nil, WithResponseTimeout(50*time.Millisecond))

	start := time.Now()
	responses, err := a.Send(onChannel3)
	require.NoError(t, err)
	assert.Empty(t, responses)
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
	assert.Equal(t, uint64(1), a.Stats().Timeouts)
}

func TestAdapter_TimeoutReturnsPartialBurst(t *testing.T) {
	a, _ := newTestAdapter(t, func([]byte) [][]byte {
		return [][]byte{stateReply(3, 1, 0x01)}
	}, WithResponseTimeout(50*time.Millisecond))

	responses, err := a.Send(onChannel3)
	require.NoError(t, err)
	require.Len(t, responses, 1)
	assert.Equal(t, uint8(1), responses[0].Count)
}

func TestAdapter_StaleResponsesDrained(t *testing.T) {
	a, conn := newTestAdapter(t, nil, WithResponseTimeout(50*time.Millisecond))

	responses, err := a.Send(onChannel3)
	require.NoError(t, err)
	require.Empty(t, responses)

	// The late reply to the first exchange arrives before the second starts
	conn.inject(stateReply(3, 0, 0xDEAD))
	require.Eventually(t, func() bool { return a.Stats().Responses == 1 }, time.Second, 5*time.Millisecond)

	conn.mu.Lock()
	conn.respond = func([]byte) [][]byte { return [][]byte{stateReply(3, 0, 0xBEEF)} }
	conn.mu.Unlock()

	responses, err = a.Send(onChannel3)
	require.NoError(t, err)
	require.Len(t, responses, 1)
	assert.Equal(t, uint32(0xBEEF), responses[0].ID)
	assert.Equal(t, uint64(1), a.Stats().StaleResponses)
}

// ============================================================
// Settling
// ============================================================

func TestAdapter_SettleDelayForLegacyMode(t *testing.T) {
	a, _ := newTestAdapter(t, func(frame []byte) [][]byte {
		return [][]byte{reply(ModeTX, StatusSuccess, 0, 1, CmdOn, 0, [4]byte{}, 0)}
	}, WithSettleDelay(100*time.Millisecond))

	start := time.Now()
	responses, err := a.Send(&Request{Mode: ModeTX, Channel: 1, Command: CmdOn})
	require.NoError(t, err)
	require.Len(t, responses, 1)
	assert.GreaterOrEqual(t, time.Since(start), 100*time.Millisecond)
}

func TestAdapter_NoSettleDelayForFeedbackMode(t *testing.T) {
	a, _ := newTestAdapter(t, func([]byte) [][]byte {
		return [][]byte{stateReply(3, 0, 1)}
	}, WithSettleDelay(time.Hour))

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = a.Send(onChannel3)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("feedback exchange waited for the settle delay")
	}
}

// ============================================================
// Serialisation
// ============================================================

func TestAdapter_ConcurrentSendsSerialised(t *testing.T) {
	a, conn := newTestAdapter(t, func(frame []byte) [][]byte {
		ch := frame[offChannel]
		return [][]byte{stateReply(ch, 1, uint32(ch)), stateReply(ch, 0, uint32(ch))}
	})

	const senders = 8
	var wg sync.WaitGroup
	errs := make(chan error, senders)
	for i := 0; i < senders; i++ {
		wg.Add(1)
		go func(ch uint8) {
			defer wg.Done()
			responses, err := a.Send(&Request{Mode: ModeTXF, Channel: ch, Command: CmdOn})
			if err != nil {
				errs <- err
				return
			}
			if len(responses) != 2 {
				errs <- errors.New("short burst")
				return
			}
			// Overlapping exchanges would pick up each other's frames
			for _, r := range responses {
				if r.Channel != ch {
					errs <- errors.New("response from another exchange")
					return
				}
			}
		}(uint8(i + 1))
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
	assert.Len(t, conn.writes(), senders)
	assert.Equal(t, uint64(0), a.Stats().StaleResponses)
}

// ============================================================
// Lifecycle and Failures
// ============================================================

func TestAdapter_SendAfterClose(t *testing.T) {
	a, _ := newTestAdapter(t, nil)
	require.NoError(t, a.Close())
	require.NoError(t, a.Close(), "close is idempotent")

	_, err := a.Send(onChannel3)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestAdapter_CloseUnblocksPendingSend(t *testing.T) {
	a, _ := newTestAdapter(t, nil, WithResponseTimeout(time.Hour))

	errCh := make(chan error, 1)
	go func() {
		_, err := a.Send(onChannel3)
		errCh <- err
	}()

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, a.Close())

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, ErrClosed)
	case <-time.After(2 * time.Second):
		t.Fatal("send still blocked after close")
	}
}

func TestAdapter_ConnectionLost(t *testing.T) {
	a, conn := newTestAdapter(t, nil)
	unplugged := errors.New("device unplugged")
	conn.fail(unplugged)

	select {
	case <-a.Lost():
	case <-time.After(time.Second):
		t.Fatal("reader did not stop")
	}
	assert.ErrorIs(t, a.Err(), unplugged)

	_, err := a.Send(onChannel3)
	assert.ErrorIs(t, err, ErrConnectionLost)
}

func TestAdapter_WriteFailure(t *testing.T) {
	a, conn := newTestAdapter(t, nil)
	conn.setWriteErr(errors.New("i/o error"))

	_, err := a.Send(onChannel3)
	assert.ErrorIs(t, err, ErrWriteFailed)
	assert.Equal(t, uint64(0), a.Stats().FramesSent)
}

func TestAdapter_FullQueueDropsWithoutBlocking(t *testing.T) {
	a, conn := newTestAdapter(t, nil, WithQueueSize(1))

	conn.inject(stateReply(1, 0, 1), stateReply(2, 0, 2), stateReply(3, 0, 3))
	require.Eventually(t, func() bool { return a.Stats().Dropped == 2 }, time.Second, 5*time.Millisecond)

	// The reader is still alive and routing
	events := make(chan *Response, 1)
	a.SetFrameHandler(func(r *Response) { events <- r })
	conn.inject(event(5, CmdOn, 0, [4]byte{}))
	select {
	case r := <-events:
		assert.Equal(t, uint8(5), r.Channel)
	case <-time.After(time.Second):
		t.Fatal("reader stalled after drops")
	}
}

func TestAdapter_HandlerPanicRecovered(t *testing.T) {
	a, conn := newTestAdapter(t, nil)

	seen := make(chan uint8, 2)
	a.SetFrameHandler(func(r *Response) {
		if r.Channel == 1 {
			panic("listener bug")
		}
		seen <- r.Channel
	})

	conn.inject(event(1, CmdOn, 0, [4]byte{}), event(2, CmdOn, 0, [4]byte{}))
	select {
	case ch := <-seen:
		assert.Equal(t, uint8(2), ch)
	case <-time.After(time.Second):
		t.Fatal("dispatcher died after handler panic")
	}
}

// ============================================================
// Instrumentation
// ============================================================

func TestAdapter_MetricsAndCapture(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	var buf bytes.Buffer
	capture := NewCaptureWriter(&buf)

	a, _ := newTestAdapter(t, func([]byte) [][]byte {
		return [][]byte{stateReply(3, 1, 1), stateReply(3, 0, 2)}
	}, WithMetrics(m), WithCapture(capture))

	_, err := a.Send(onChannel3)
	require.NoError(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.FramesSent))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.FramesReceived.WithLabelValues("response")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.DeviceStatus.WithLabelValues("SUCCESS")))

	r := NewCaptureReader(&buf)
	var dirs []Direction
	for {
		rec, err := r.Next()
		if err != nil {
			break
		}
		dirs = append(dirs, rec.Direction)
	}
	assert.Equal(t, []Direction{DirectionTX, DirectionRX, DirectionRX}, dirs)
}
