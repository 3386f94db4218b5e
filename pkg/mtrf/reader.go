// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Kaz Walker, Thermoquad

package mtrf

import (
	"bytes"
	"io"
)

// FrameReader reads incoming frames from a byte stream.
//
// After a malformed frame it realigns on the next incoming start byte
// already buffered, so a single lost or extra byte costs one frame instead
// of desynchronising the stream for good.
type FrameReader struct {
	r    io.Reader
	buf  [FrameSize]byte
	have int
}

// NewFrameReader creates a frame reader on r
func NewFrameReader(r io.Reader) *FrameReader {
	return &FrameReader{r: r}
}

// ReadFrame blocks until 17 bytes are available and parses them.
// It returns the raw frame alongside the parse result; a *FrameError is
// recoverable and the next call continues with the realigned stream. Any
// other error comes from the underlying reader.
func (f *FrameReader) ReadFrame() ([]byte, *Response, error) {
	if _, err := io.ReadFull(f.r, f.buf[f.have:]); err != nil {
		return nil, nil, err
	}
	f.have = 0

	raw := make([]byte, FrameSize)
	copy(raw, f.buf[:])

	resp, err := ParseFrame(raw)
	if err != nil {
		f.resync()
		return raw, nil, err
	}
	return raw, resp, nil
}

// resync keeps the buffered tail starting at the next start byte, if any
func (f *FrameReader) resync() {
	i := bytes.IndexByte(f.buf[1:], StartByteRX)
	if i < 0 {
		return
	}
	i++
	f.have = copy(f.buf[:], f.buf[i:])
}
