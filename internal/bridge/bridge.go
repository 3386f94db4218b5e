// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 Kaz Walker, Thermoquad

// Package bridge exposes configured nooLite devices and sensors over MQTT.
package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/Thermoquad/noolite/internal/config"
	"github.com/Thermoquad/noolite/pkg/mtrf"
)

// TempHumiSink stores temperature/humidity readings
type TempHumiSink interface {
	WriteTempHumi(sensor string, ev mtrf.TempHumi)
}

// Option configures a Bridge
type Option func(*Bridge)

// WithTelemetry forwards temperature/humidity readings to sink
func WithTelemetry(sink TempHumiSink) Option {
	return func(b *Bridge) {
		b.telemetry = sink
	}
}

// WithPublishQueue sets how many event and sensor messages may wait for the
// broker before new ones are dropped
func WithPublishQueue(n int) Option {
	return func(b *Bridge) {
		if n > 0 {
			b.publications = make(chan message, n)
		}
	}
}

// WithClock overrides time.Now for message timestamps
func WithClock(now func() time.Time) Option {
	return func(b *Bridge) {
		b.now = now
	}
}

// DefaultPublishQueue is the number of pending event publications
const DefaultPublishQueue = 256

type message struct {
	topic    string
	retained bool
	payload  []byte
}

// Bridge publishes events from the transceiver and executes commands
// received on device set topics. Commands are executed one at a time at no
// more than the configured rate. Events are published from a separate
// goroutine so a slow broker never stalls the transceiver's dispatcher.
type Bridge struct {
	ctl     *mtrf.Controller
	client  Client
	log     *zap.Logger
	topics  Topics
	qos     byte
	devices map[string]*mtrf.Device
	sensors []config.SensorConfig

	telemetry    TempHumiSink
	limiter      *rate.Limiter
	commands     chan message
	publications chan message
	now          func() time.Time
}

// New builds a bridge for the devices and sensors in cfg
func New(ctl *mtrf.Controller, client Client, cfg *config.Config, log *zap.Logger, opts ...Option) (*Bridge, error) {
	b := &Bridge{
		ctl:     ctl,
		client:  client,
		log:     log,
		topics:  Topics{Prefix: cfg.MQTT.TopicPrefix},
		qos:     cfg.MQTT.QoS,
		devices: make(map[string]*mtrf.Device, len(cfg.Devices)),
		sensors: cfg.Sensors,
		limiter: rate.NewLimiter(rate.Limit(cfg.MQTT.CommandRate), cfg.MQTT.CommandBurst),
		// one second of burst headroom before commands are dropped
		commands:     make(chan message, cfg.MQTT.CommandBurst+int(cfg.MQTT.CommandRate)),
		publications: make(chan message, DefaultPublishQueue),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}

	for _, d := range cfg.Devices {
		kind, err := mtrf.ParseKind(d.Kind)
		if err != nil {
			return nil, fmt.Errorf("device %s: %w", d.Name, err)
		}
		b.devices[d.Name] = ctl.Device(kind, d.Address())
	}
	return b, nil
}

// Run announces the bridge, subscribes and executes commands until ctx is
// cancelled.
func (b *Bridge) Run(ctx context.Context) error {
	if err := b.client.Publish(b.topics.Status(), b.qos, true, []byte(StatusOnline)); err != nil {
		return err
	}

	pubCtx, stopPublisher := context.WithCancel(ctx)
	publisherDone := make(chan struct{})
	go func() {
		defer close(publisherDone)
		b.publishLoop(pubCtx)
	}()
	defer func() {
		stopPublisher()
		<-publisherDone
	}()

	eventsID := b.ctl.Subscribe(b.publishEvent)
	defer b.ctl.Unsubscribe(eventsID)

	watched := b.watchSensors()
	defer func() {
		for _, s := range watched {
			s.Release()
		}
	}()

	if err := b.client.Subscribe(b.topics.DeviceSetWildcard(), b.qos, b.enqueue); err != nil {
		return err
	}

	b.log.Info("bridge running",
		zap.Int("devices", len(b.devices)),
		zap.Int("sensors", len(b.sensors)),
		zap.String("prefix", b.topics.Prefix),
	)

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg := <-b.commands:
			if err := b.limiter.Wait(ctx); err != nil {
				return nil
			}
			b.handleCommand(msg)
		}
	}
}

// enqueue runs on the MQTT client's goroutine and must not block
func (b *Bridge) enqueue(topic string, payload []byte) {
	select {
	case b.commands <- message{topic: topic, payload: payload}:
	default:
		b.log.Warn("command queue full, dropping", zap.String("topic", topic))
	}
}

// publishLoop drains event publications until ctx is cancelled
func (b *Bridge) publishLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-b.publications:
			if err := b.client.Publish(msg.topic, b.qos, msg.retained, msg.payload); err != nil {
				b.log.Warn("publish failed", zap.String("topic", msg.topic), zap.Error(err))
			}
		}
	}
}

func (b *Bridge) handleCommand(msg message) {
	name, ok := b.topics.DeviceName(msg.topic)
	if !ok {
		b.log.Debug("ignoring topic", zap.String("topic", msg.topic))
		return
	}
	dev, ok := b.devices[name]
	if !ok {
		b.log.Warn("command for unknown device", zap.String("device", name))
		return
	}

	cmd, err := ParseCommand(msg.payload)
	if err != nil {
		b.log.Warn("rejected command", zap.String("device", name), zap.Error(err))
		b.publishJSON(b.topics.DeviceState(name), true, newStateMessage(name, "", nil, err, b.now()))
		return
	}

	results, err := execute(dev, cmd)
	if err != nil {
		b.log.Warn("command failed",
			zap.String("device", name),
			zap.String("action", cmd.Action),
			zap.Error(err),
		)
	} else {
		b.log.Debug("command done",
			zap.String("device", name),
			zap.String("action", cmd.Action),
			zap.Int("results", len(results)),
		)
	}
	b.publishJSON(b.topics.DeviceState(name), true, newStateMessage(name, cmd.Action, results, err, b.now()))
}

func (b *Bridge) watchSensors() []*mtrf.Sensor {
	var watched []*mtrf.Sensor
	for _, s := range b.sensors {
		topic := b.topics.Sensor(s.Name)
		name := s.Name
		switch s.Type {
		case config.SensorTempHumi:
			watched = append(watched, b.ctl.WatchTempHumi(s.Channel, func(ev mtrf.TempHumi) {
				if b.telemetry != nil {
					b.telemetry.WriteTempHumi(name, ev)
				}
				b.post(topic, true, tempHumiFields(ev))
			}))
		case config.SensorMotion:
			watched = append(watched, b.ctl.WatchMotion(s.Channel, func(ev mtrf.TemporaryOn) {
				b.post(topic, false, map[string]any{"motion": true, "duration_s": ev.Duration.Seconds()})
			}))
		case config.SensorBinary:
			watched = append(watched, b.ctl.WatchBinary(s.Channel, func(on bool, _ mtrf.Event) {
				b.post(topic, true, map[string]any{"on": on})
			}))
		case config.SensorRemote:
			watched = append(watched, b.ctl.WatchRemote(s.Channel, func(ev mtrf.Event) {
				b.post(topic, false, map[string]any{"event": mtrf.FormatEvent(ev)})
			}))
		}
		if s.Type != config.SensorTempHumi {
			watched = append(watched, b.ctl.WatchBattery(s.Channel, func(mtrf.BatteryLow) {
				b.post(topic+"/battery", true, map[string]any{"battery_low": true})
			}))
		}
	}
	return watched
}

func (b *Bridge) publishEvent(ev mtrf.Event) {
	b.post(b.topics.Event(ev.Source().Channel), false, newEventMessage(ev))
}

// post queues a message from listener context; it never waits on the broker
func (b *Bridge) post(topic string, retained bool, v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		b.log.Error("marshal payload", zap.String("topic", topic), zap.Error(err))
		return
	}
	select {
	case b.publications <- message{topic: topic, retained: retained, payload: payload}:
	default:
		b.log.Warn("publish queue full, dropping", zap.String("topic", topic))
	}
}

func (b *Bridge) publishJSON(topic string, retained bool, v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		b.log.Error("marshal payload", zap.String("topic", topic), zap.Error(err))
		return
	}
	if err := b.client.Publish(topic, b.qos, retained, payload); err != nil {
		b.log.Warn("publish failed", zap.String("topic", topic), zap.Error(err))
	}
}
