// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Kaz Walker, Thermoquad

package mtrf

import (
	"fmt"
	"sync/atomic"
	"time"
)

// Stats is a snapshot of link statistics
type Stats struct {
	StartTime    time.Time
	LastActivity time.Time

	// Counters
	FramesSent     uint64
	FramesReceived uint64
	Responses      uint64
	Events         uint64
	FrameErrors    uint64
	IgnoredFrames  uint64 // valid frames with a mode that is neither command nor incoming
	Dropped        uint64 // frames lost to a full queue
	Timeouts       uint64
	StaleResponses uint64

	// Rates (calculated)
	FrameRate float64 // received frames/sec
	ErrorRate float64 // frame errors/sec
}

// CalculateRates calculates frame and error rates
func (s *Stats) CalculateRates() {
	elapsed := time.Since(s.StartTime).Seconds()
	if elapsed > 0 {
		s.FrameRate = float64(s.FramesReceived) / elapsed
		s.ErrorRate = float64(s.FrameErrors) / elapsed
	}
}

// String returns a formatted statistics summary
func (s Stats) String() string {
	s.CalculateRates()

	total := s.FramesReceived + s.FrameErrors
	var validPercent, errorPercent float64
	if total > 0 {
		validPercent = float64(s.FramesReceived) * 100.0 / float64(total)
		errorPercent = float64(s.FrameErrors) * 100.0 / float64(total)
	}

	elapsed := time.Since(s.StartTime)

	result := fmt.Sprintf("=== Link Statistics (%.0f seconds) ===\n", elapsed.Seconds())
	result += fmt.Sprintf("Frames Sent:     %8d\n", s.FramesSent)
	result += fmt.Sprintf("Valid Frames:    %8d (%.1f%%)\n", s.FramesReceived, validPercent)
	result += fmt.Sprintf("  Responses:        %5d\n", s.Responses)
	result += fmt.Sprintf("  Events:           %5d\n", s.Events)

	if s.FrameErrors > 0 {
		result += fmt.Sprintf("Frame Errors:    %8d (%.1f%%)\n", s.FrameErrors, errorPercent)
	}
	if s.IgnoredFrames > 0 {
		result += fmt.Sprintf("Ignored Frames:  %8d\n", s.IgnoredFrames)
	}
	if s.Dropped > 0 {
		result += fmt.Sprintf("Dropped Frames:  %8d\n", s.Dropped)
	}
	if s.Timeouts > 0 {
		result += fmt.Sprintf("Timeouts:        %8d\n", s.Timeouts)
	}
	if s.StaleResponses > 0 {
		result += fmt.Sprintf("Stale Responses: %8d\n", s.StaleResponses)
	}

	result += fmt.Sprintf("Frame Rate:      %8.1f frames/sec\n", s.FrameRate)
	result += fmt.Sprintf("Error Rate:      %8.1f errors/sec\n", s.ErrorRate)
	result += "=====================================\n"

	return result
}

// linkCounters is the live, concurrently updated form of Stats
type linkCounters struct {
	start          time.Time
	lastActivity   atomic.Int64 // unix nanos
	framesSent     atomic.Uint64
	framesReceived atomic.Uint64
	responses      atomic.Uint64
	events         atomic.Uint64
	frameErrors    atomic.Uint64
	ignored        atomic.Uint64
	dropped        atomic.Uint64
	timeouts       atomic.Uint64
	stale          atomic.Uint64
}

func newLinkCounters() *linkCounters {
	return &linkCounters{start: time.Now()}
}

func (c *linkCounters) touch(t time.Time) {
	c.lastActivity.Store(t.UnixNano())
}

func (c *linkCounters) snapshot() Stats {
	s := Stats{
		StartTime:      c.start,
		FramesSent:     c.framesSent.Load(),
		FramesReceived: c.framesReceived.Load(),
		Responses:      c.responses.Load(),
		Events:         c.events.Load(),
		FrameErrors:    c.frameErrors.Load(),
		IgnoredFrames:  c.ignored.Load(),
		Dropped:        c.dropped.Load(),
		Timeouts:       c.timeouts.Load(),
		StaleResponses: c.stale.Load(),
	}
	if ns := c.lastActivity.Load(); ns != 0 {
		s.LastActivity = time.Unix(0, ns)
	}
	return s
}
