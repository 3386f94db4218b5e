// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 Kaz Walker, Thermoquad

package bridge

import (
	"context"
	"encoding/json"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/Thermoquad/noolite/internal/config"
	"github.com/Thermoquad/noolite/pkg/mtrf"
)

// ===== Fakes =====

type published struct {
	topic    string
	retained bool
	payload  []byte
}

type fakeClient struct {
	mu         sync.Mutex
	messages   []published
	handlers   map[string]MessageHandler
	subscribed chan struct{}
}

func newFakeClient() *fakeClient {
	return &fakeClient{handlers: make(map[string]MessageHandler), subscribed: make(chan struct{})}
}

func (f *fakeClient) Publish(topic string, _ byte, retained bool, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, published{topic: topic, retained: retained, payload: payload})
	return nil
}

func (f *fakeClient) Subscribe(topic string, _ byte, h MessageHandler) error {
	f.mu.Lock()
	f.handlers[topic] = h
	f.mu.Unlock()
	close(f.subscribed)
	return nil
}

func (f *fakeClient) Close() error { return nil }

func (f *fakeClient) send(topic, payload string) {
	f.mu.Lock()
	h := f.handlers["noolite/devices/+/set"]
	f.mu.Unlock()
	h(topic, []byte(payload))
}

func (f *fakeClient) find(topic string) (published, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.messages) - 1; i >= 0; i-- {
		if f.messages[i].topic == topic {
			return f.messages[i], true
		}
	}
	return published{}, false
}

func (f *fakeClient) waitFor(t *testing.T, topic string) published {
	t.Helper()
	var msg published
	require.Eventually(t, func() bool {
		var ok bool
		msg, ok = f.find(topic)
		return ok
	}, time.Second, 5*time.Millisecond, "nothing published on %s", topic)
	return msg
}

func (f *fakeClient) count(topic string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, m := range f.messages {
		if m.topic == topic {
			n++
		}
	}
	return n
}

// slowClient waits before every publish like a broker that is slow to ack
type slowClient struct {
	*fakeClient
	delay time.Duration
}

func (s *slowClient) Publish(topic string, qos byte, retained bool, payload []byte) error {
	time.Sleep(s.delay)
	return s.fakeClient.Publish(topic, qos, retained, payload)
}

// pipeConn feeds the adapter from a pipe and discards everything it writes
type pipeConn struct {
	*io.PipeReader
}

func (pipeConn) Write(p []byte) (int, error) { return len(p), nil }

type fakeTransport struct {
	mu        sync.Mutex
	requests  []*mtrf.Request
	responses []*mtrf.Response
	handler   mtrf.FrameHandler
}

func (f *fakeTransport) Send(req *mtrf.Request) ([]*mtrf.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	return f.responses, nil
}

func (f *fakeTransport) SetFrameHandler(h mtrf.FrameHandler) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handler = h
}

func (f *fakeTransport) Close() error { return nil }

func (f *fakeTransport) deliver(resp *mtrf.Response) {
	f.mu.Lock()
	h := f.handler
	f.mu.Unlock()
	h(resp)
}

func (f *fakeTransport) sent() []*mtrf.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*mtrf.Request(nil), f.requests...)
}

type sinkEntry struct {
	sensor string
	ev     mtrf.TempHumi
}

type fakeSink struct {
	mu      sync.Mutex
	entries []sinkEntry
}

func (s *fakeSink) WriteTempHumi(sensor string, ev mtrf.TempHumi) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, sinkEntry{sensor, ev})
}

// ===== Setup =====

var fixed = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func testConfig() *config.Config {
	hall := uint8(3)
	porch := uint8(5)
	return &config.Config{
		MQTT: config.MQTTConfig{TopicPrefix: "noolite", QoS: 1, CommandRate: 1000, CommandBurst: 10},
		Devices: []config.DeviceConfig{
			{Name: "hall", Kind: "dimmer", Channel: &hall},
			{Name: "porch", Kind: "switch", Channel: &porch, Legacy: true},
		},
		Sensors: []config.SensorConfig{
			{Name: "outside", Type: config.SensorTempHumi, Channel: 7},
			{Name: "door", Type: config.SensorBinary, Channel: 8},
		},
	}
}

func startBridge(t *testing.T, transport *fakeTransport, opts ...Option) *fakeClient {
	t.Helper()
	log := zaptest.NewLogger(t)
	ctl := mtrf.NewController(transport, log)
	client := newFakeClient()

	b, err := New(ctl, client, testConfig(), log, append(opts, WithClock(func() time.Time { return fixed }))...)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- b.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		require.NoError(t, <-done)
	})

	select {
	case <-client.subscribed:
	case <-time.After(time.Second):
		t.Fatal("bridge did not subscribe")
	}
	return client
}

func stateReply(level byte) *mtrf.Response {
	return &mtrf.Response{
		Mode:    mtrf.ModeTXF,
		Status:  mtrf.StatusSuccess,
		Channel: 3,
		Command: mtrf.CmdSendState,
		Format:  mtrf.FormatState,
		Data:    [4]byte{5, 1, byte(mtrf.StateOn), level},
		ID:      0xCAFE,
	}
}

// ===== Tests =====

func TestAnnouncesOnline(t *testing.T) {
	client := startBridge(t, &fakeTransport{})

	msg := client.waitFor(t, "noolite/status")
	assert.True(t, msg.retained)
	assert.Equal(t, StatusOnline, string(msg.payload))
}

func TestCommandPublishesState(t *testing.T) {
	transport := &fakeTransport{responses: []*mtrf.Response{stateReply(0xFF)}}
	client := startBridge(t, transport)

	client.send("noolite/devices/hall/set", "ON")

	msg := client.waitFor(t, "noolite/devices/hall/state")
	assert.True(t, msg.retained)

	var state StateMessage
	require.NoError(t, json.Unmarshal(msg.payload, &state))
	assert.Equal(t, "hall", state.Device)
	assert.Equal(t, ActionOn, state.Action)
	assert.Empty(t, state.Error)
	assert.True(t, state.Time.Equal(fixed))
	require.Len(t, state.Results, 1)
	assert.True(t, state.Results[0].Success)
	assert.Equal(t, "0000CAFE", state.Results[0].ID)
	assert.Equal(t, "on", state.Results[0].State)
	require.NotNil(t, state.Results[0].Brightness)
	assert.InDelta(t, 1.0, *state.Results[0].Brightness, 1e-9)

	reqs := transport.sent()
	require.Len(t, reqs, 1)
	assert.Equal(t, mtrf.CmdOn, reqs[0].Command)
	assert.Equal(t, uint8(3), reqs[0].Channel)
	assert.Equal(t, mtrf.ModeTXF, reqs[0].Mode)
}

func TestLegacyDeviceUsesTXMode(t *testing.T) {
	transport := &fakeTransport{}
	client := startBridge(t, transport)

	client.send("noolite/devices/porch/set", `{"action":"off"}`)
	client.waitFor(t, "noolite/devices/porch/state")

	reqs := transport.sent()
	require.Len(t, reqs, 1)
	assert.Equal(t, mtrf.ModeTX, reqs[0].Mode)
	assert.Equal(t, mtrf.CmdOff, reqs[0].Command)
	assert.Equal(t, uint8(5), reqs[0].Channel)
}

func TestUnsupportedActionReportsError(t *testing.T) {
	transport := &fakeTransport{}
	client := startBridge(t, transport)

	client.send("noolite/devices/porch/set", `{"action":"level","level":0.5}`)

	var state StateMessage
	require.NoError(t, json.Unmarshal(client.waitFor(t, "noolite/devices/porch/state").payload, &state))
	assert.Contains(t, state.Error, "not supported")
	assert.Empty(t, transport.sent())
}

func TestBadPayloadReportsError(t *testing.T) {
	transport := &fakeTransport{}
	client := startBridge(t, transport)

	client.send("noolite/devices/hall/set", "explode")

	var state StateMessage
	require.NoError(t, json.Unmarshal(client.waitFor(t, "noolite/devices/hall/state").payload, &state))
	assert.Contains(t, state.Error, "unknown action")
	assert.Empty(t, transport.sent())
}

func TestUnknownDeviceIgnored(t *testing.T) {
	transport := &fakeTransport{}
	client := startBridge(t, transport)

	client.send("noolite/devices/attic/set", "on")
	client.send("noolite/devices/hall/set", "read")
	client.waitFor(t, "noolite/devices/hall/state")

	_, ok := client.find("noolite/devices/attic/state")
	assert.False(t, ok)
	require.Len(t, transport.sent(), 1)
	assert.Equal(t, mtrf.CmdReadState, transport.sent()[0].Command)
}

func TestEventsPublished(t *testing.T) {
	transport := &fakeTransport{}
	client := startBridge(t, transport)

	transport.deliver(&mtrf.Response{Mode: mtrf.ModeRXF, Channel: 12, Command: mtrf.CmdSetBrightness, Format: mtrf.FormatOneByte, Data: [4]byte{0xFF}, ID: 0xBEEF})

	var ev EventMessage
	require.NoError(t, json.Unmarshal(client.waitFor(t, "noolite/events/12").payload, &ev))
	assert.Equal(t, uint8(12), ev.Channel)
	assert.Equal(t, "0000BEEF", ev.ID)
	assert.True(t, strings.HasPrefix(ev.Event, "SET_BRIGHTNESS"))
	assert.InDelta(t, 1.0, ev.Fields["level"], 1e-9)
}

func TestTempHumiSensor(t *testing.T) {
	transport := &fakeTransport{}
	sink := &fakeSink{}
	client := startBridge(t, transport, WithTelemetry(sink))

	// 22.5 °C, temperature/humidity sensor, 45 %
	transport.deliver(&mtrf.Response{Mode: mtrf.ModeRXF, Channel: 7, Command: mtrf.CmdSensTempHumi, Format: mtrf.FormatTempHumi, Data: [4]byte{0xE1, 0x20, 45, 0xFF}})

	msg := client.waitFor(t, "noolite/sensors/outside")
	var fields map[string]any
	require.NoError(t, json.Unmarshal(msg.payload, &fields))
	assert.InDelta(t, 22.5, fields["temperature"], 1e-9)
	assert.EqualValues(t, 45, fields["humidity"])
	assert.Equal(t, false, fields["battery_low"])

	sink.mu.Lock()
	defer sink.mu.Unlock()
	require.Len(t, sink.entries, 1)
	assert.Equal(t, "outside", sink.entries[0].sensor)
	assert.InDelta(t, 22.5, sink.entries[0].ev.Temperature, 1e-9)
}

func TestBinarySensor(t *testing.T) {
	transport := &fakeTransport{}
	client := startBridge(t, transport)

	transport.deliver(&mtrf.Response{Mode: mtrf.ModeRXF, Channel: 8, Command: mtrf.CmdOn})
	msg := client.waitFor(t, "noolite/sensors/door")
	assert.JSONEq(t, `{"on":true}`, string(msg.payload))

	transport.deliver(&mtrf.Response{Mode: mtrf.ModeRXF, Channel: 8, Command: mtrf.CmdBatteryLow})
	msg = client.waitFor(t, "noolite/sensors/door/battery")
	assert.JSONEq(t, `{"battery_low":true}`, string(msg.payload))
}

func TestRateLimitedCommands(t *testing.T) {
	log := zaptest.NewLogger(t)
	transport := &fakeTransport{}
	ctl := mtrf.NewController(transport, log)
	client := newFakeClient()

	cfg := testConfig()
	cfg.MQTT.CommandRate = 20
	cfg.MQTT.CommandBurst = 1
	b, err := New(ctl, client, cfg, log)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = b.Run(ctx) }()
	<-client.subscribed

	start := time.Now()
	for range 3 {
		client.send("noolite/devices/hall/set", "switch")
	}
	require.Eventually(t, func() bool { return len(transport.sent()) == 3 }, 2*time.Second, 5*time.Millisecond)
	// burst of one at 20/s: the second and third wait ~50 ms each
	assert.GreaterOrEqual(t, time.Since(start), 90*time.Millisecond)
}

func TestSlowBrokerDoesNotStallDispatch(t *testing.T) {
	log := zaptest.NewLogger(t)
	r, w := io.Pipe()
	adapter := mtrf.NewAdapter(pipeConn{r}, mtrf.WithLogger(log), mtrf.WithQueueSize(4))
	ctl := mtrf.NewController(adapter, log)
	defer ctl.Close()

	client := &slowClient{fakeClient: newFakeClient(), delay: 50 * time.Millisecond}
	b, err := New(ctl, client, testConfig(), log)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- b.Run(ctx) }()
	defer func() {
		cancel()
		require.NoError(t, <-done)
	}()
	<-client.subscribed

	frame := mtrf.EncodeResponse(&mtrf.Response{Mode: mtrf.ModeRXF, Channel: 2, Command: mtrf.CmdSwitch, ID: 0xBEEF})
	for range 30 {
		_, err := w.Write(frame)
		require.NoError(t, err)
		time.Sleep(2 * time.Millisecond)
	}

	require.Eventually(t, func() bool { return adapter.Stats().Events == 30 }, time.Second, 5*time.Millisecond)
	assert.Zero(t, adapter.Stats().Dropped, "dispatcher fell behind the reader")

	require.Eventually(t, func() bool { return client.count("noolite/events/2") == 30 },
		5*time.Second, 10*time.Millisecond)
}
