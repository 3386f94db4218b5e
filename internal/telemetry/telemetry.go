// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 Kaz Walker, Thermoquad

// Package telemetry writes sensor readings to InfluxDB.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"go.uber.org/zap"

	"github.com/Thermoquad/noolite/internal/config"
	"github.com/Thermoquad/noolite/pkg/mtrf"
)

// Measurement is the InfluxDB measurement for temperature/humidity readings
const Measurement = "noolite_temphumi"

const pingTimeout = 5 * time.Second

// ErrDisabled is returned by Connect when InfluxDB export is turned off
var ErrDisabled = errors.New("influxdb disabled")

// PointWriter accepts points for asynchronous writing
type PointWriter interface {
	WritePoint(p *write.Point)
}

// Writer converts readings to points. Writes are batched and never block
// the caller.
type Writer struct {
	client   influxdb2.Client
	writeAPI api.WriteAPI
	points   PointWriter
	log      *zap.Logger
	now      func() time.Time
}

// Connect creates a client, checks the server is reachable and starts the
// batching write API.
func Connect(cfg config.InfluxDBConfig, log *zap.Logger) (*Writer, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}

	opts := influxdb2.DefaultOptions()
	if cfg.BatchSize > 0 {
		opts.SetBatchSize(cfg.BatchSize)
	}
	if cfg.FlushInterval > 0 {
		opts.SetFlushInterval(uint(cfg.FlushInterval.Milliseconds()))
	}
	client := influxdb2.NewClientWithOptions(cfg.URL, cfg.Token, opts)

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	healthy, err := client.Ping(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("influxdb ping %s: %w", cfg.URL, err)
	}
	if !healthy {
		client.Close()
		return nil, fmt.Errorf("influxdb %s: server not healthy", cfg.URL)
	}

	writeAPI := client.WriteAPI(cfg.Org, cfg.Bucket)
	go func() {
		for err := range writeAPI.Errors() {
			log.Warn("influxdb write failed", zap.Error(err))
		}
	}()

	w := NewWriter(writeAPI, log)
	w.client = client
	w.writeAPI = writeAPI
	return w, nil
}

// NewWriter wraps an existing point writer
func NewWriter(points PointWriter, log *zap.Logger) *Writer {
	return &Writer{points: points, log: log, now: time.Now}
}

// WriteTempHumi records a reading from the named sensor
func (w *Writer) WriteTempHumi(sensor string, ev mtrf.TempHumi) {
	at := ev.Received
	if at.IsZero() {
		at = w.now()
	}
	w.points.WritePoint(TempHumiPoint(sensor, ev, at))
}

// Close flushes pending points and closes the client
func (w *Writer) Close() {
	if w.client == nil {
		return
	}
	w.writeAPI.Flush()
	w.client.Close()
}

// TempHumiPoint builds the point for one reading
func TempHumiPoint(sensor string, ev mtrf.TempHumi, at time.Time) *write.Point {
	tags := map[string]string{
		"sensor":  sensor,
		"channel": strconv.Itoa(int(ev.Channel)),
	}
	if ev.ID != 0 {
		tags["device_id"] = fmt.Sprintf("%08X", ev.ID)
	}

	fields := map[string]any{
		"temperature": ev.Temperature,
		"analog":      ev.Analog,
		"battery_low": ev.BatteryLow,
	}
	if ev.HasHumidity {
		fields["humidity"] = ev.Humidity
	}
	return influxdb2.NewPoint(Measurement, tags, fields, at)
}
