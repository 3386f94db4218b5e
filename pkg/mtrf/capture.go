// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Kaz Walker, Thermoquad

package mtrf

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// Direction of a captured frame
type Direction uint8

const (
	DirectionRX Direction = iota // transceiver → host
	DirectionTX                  // host → transceiver
)

func (d Direction) String() string {
	if d == DirectionTX {
		return "TX"
	}
	return "RX"
}

// CaptureRecord is one frame in a capture file.
// Records are stored as a stream of CBOR arrays: [unix_nanos, direction, frame].
type CaptureRecord struct {
	_         struct{} `cbor:",toarray"`
	Timestamp int64
	Direction Direction
	Frame     []byte
}

// Time returns the record timestamp
func (r *CaptureRecord) Time() time.Time {
	return time.Unix(0, r.Timestamp)
}

// CaptureWriter appends frames to a CBOR capture stream. It is safe for
// concurrent use by the adapter reader and senders.
type CaptureWriter struct {
	mu  sync.Mutex
	enc *cbor.Encoder
	err error
}

// NewCaptureWriter creates a capture writer on w
func NewCaptureWriter(w io.Writer) *CaptureWriter {
	return &CaptureWriter{enc: cbor.NewEncoder(w)}
}

// Record writes one frame. After the first write error every call returns that error.
func (c *CaptureWriter) Record(dir Direction, frame []byte, at time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	rec := CaptureRecord{
		Timestamp: at.UnixNano(),
		Direction: dir,
		Frame:     append([]byte(nil), frame...),
	}
	if err := c.enc.Encode(&rec); err != nil {
		c.err = fmt.Errorf("capture write: %w", err)
	}
	return c.err
}

// CaptureReader reads records written by a CaptureWriter
type CaptureReader struct {
	dec *cbor.Decoder
}

// NewCaptureReader creates a capture reader on r
func NewCaptureReader(r io.Reader) *CaptureReader {
	return &CaptureReader{dec: cbor.NewDecoder(r)}
}

// Next returns the next record, or io.EOF at the end of the stream
func (c *CaptureReader) Next() (*CaptureRecord, error) {
	var rec CaptureRecord
	if err := c.dec.Decode(&rec); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("capture read: %w", err)
	}
	return &rec, nil
}
