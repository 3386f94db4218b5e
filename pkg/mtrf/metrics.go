// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Kaz Walker, Thermoquad

package mtrf

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors updated by an Adapter
type Metrics struct {
	FramesSent     prometheus.Counter
	FramesReceived *prometheus.CounterVec // labels: route=response|event|ignored
	FrameErrors    prometheus.Counter
	Dropped        *prometheus.CounterVec // labels: route
	Timeouts       prometheus.Counter
	SendDuration   prometheus.Histogram
	DeviceStatus   *prometheus.CounterVec // labels: status
}

// NewMetrics creates the adapter collectors and registers them with reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		FramesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mtrf_frames_sent_total",
			Help: "Total frames written to the transceiver.",
		}),
		FramesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mtrf_frames_received_total",
			Help: "Valid frames received from the transceiver.",
		}, []string{"route"}),
		FrameErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mtrf_frame_errors_total",
			Help: "Malformed frames discarded by the reader.",
		}),
		Dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mtrf_frames_dropped_total",
			Help: "Frames dropped because a queue was full.",
		}, []string{"route"}),
		Timeouts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mtrf_response_timeouts_total",
			Help: "Command exchanges that ended before the terminal frame.",
		}),
		SendDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "mtrf_send_duration_seconds",
			Help:    "Duration of command exchanges.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 3, 5, 10},
		}),
		DeviceStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mtrf_device_status_total",
			Help: "Response frames by device status.",
		}, []string{"status"}),
	}
	reg.MustRegister(m.FramesSent, m.FramesReceived, m.FrameErrors, m.Dropped, m.Timeouts, m.SendDuration, m.DeviceStatus)
	return m
}

// The helpers below accept a nil receiver so the adapter can call them unconditionally.

func (m *Metrics) sent() {
	if m != nil {
		m.FramesSent.Inc()
	}
}

func (m *Metrics) received(route string) {
	if m != nil {
		m.FramesReceived.WithLabelValues(route).Inc()
	}
}

func (m *Metrics) frameError() {
	if m != nil {
		m.FrameErrors.Inc()
	}
}

func (m *Metrics) dropped(route string) {
	if m != nil {
		m.Dropped.WithLabelValues(route).Inc()
	}
}

func (m *Metrics) timeout() {
	if m != nil {
		m.Timeouts.Inc()
	}
}

func (m *Metrics) exchange(started time.Time, responses []*Response) {
	if m == nil {
		return
	}
	m.SendDuration.Observe(time.Since(started).Seconds())
	for _, r := range responses {
		m.DeviceStatus.WithLabelValues(r.Status.String()).Inc()
	}
}
