// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Kaz Walker, Thermoquad

package mtrf

import (
	"encoding/binary"
	"time"
)

// Request is an outgoing message to the transceiver
type Request struct {
	Mode    Mode
	Action  Action
	Channel uint8
	Command Command
	Format  uint8
	Data    []byte // at most DataSize bytes are sent
	ID      uint32 // 0 when not addressing a single device
}

// Response is a decoded incoming frame
type Response struct {
	Mode    Mode
	Status  Status
	Count   uint8 // frames still to come in this burst
	Channel uint8
	Command Command
	Format  uint8
	Data    [DataSize]byte
	ID      uint32

	// Received is the local receive time, zero for frames parsed outside the adapter
	Received time.Time
}

// Success reports whether the device acknowledged the command
func (r *Response) Success() bool {
	return r.Status.OK()
}

// Last reports whether this frame terminates its burst
func (r *Response) Last() bool {
	return r.Count == 0
}

// BuildFrame serialises a request into a 17-byte outgoing frame.
// Data shorter than four bytes is zero-padded, longer data is truncated.
func BuildFrame(req *Request) []byte {
	frame := make([]byte, FrameSize)
	frame[offStart] = StartByteTX
	frame[offMode] = byte(req.Mode)
	frame[offAction] = byte(req.Action)
	frame[offReserved] = 0
	frame[offChannel] = req.Channel
	frame[offCommand] = byte(req.Command)
	frame[offFormat] = req.Format
	copy(frame[offData:offData+DataSize], req.Data)
	binary.BigEndian.PutUint32(frame[offID:offID+4], req.ID)
	frame[offChecksum] = Checksum(frame[:offChecksum])
	frame[offStop] = StopByteTX
	return frame
}

// ParseFrame validates and decodes a 17-byte incoming frame.
// Any violation rejects the whole frame with a *FrameError.
func ParseFrame(data []byte) (*Response, error) {
	if len(data) != FrameSize {
		return nil, frameErrorf(data, "length %d, want %d", len(data), FrameSize)
	}
	if data[offStart] != StartByteRX {
		return nil, frameErrorf(data, "start byte 0x%02X, want 0x%02X", data[offStart], StartByteRX)
	}
	if data[offStop] != StopByteRX {
		return nil, frameErrorf(data, "stop byte 0x%02X, want 0x%02X", data[offStop], StopByteRX)
	}
	if sum := Checksum(data[:offChecksum]); sum != data[offChecksum] {
		return nil, frameErrorf(data, "checksum mismatch: calculated 0x%02X, got 0x%02X", sum, data[offChecksum])
	}

	resp := &Response{
		Mode:    Mode(data[offMode]),
		Status:  Status(data[offAction]),
		Count:   data[offReserved],
		Channel: data[offChannel],
		Command: Command(data[offCommand]),
		Format:  data[offFormat],
		ID:      binary.BigEndian.Uint32(data[offID : offID+4]),
	}
	copy(resp.Data[:], data[offData:offData+DataSize])
	return resp, nil
}

// EncodeResponse serialises a response into an incoming-direction frame.
// Used by replay tooling and transceiver simulators.
func EncodeResponse(resp *Response) []byte {
	frame := make([]byte, FrameSize)
	frame[offStart] = StartByteRX
	frame[offMode] = byte(resp.Mode)
	frame[offAction] = byte(resp.Status)
	frame[offReserved] = resp.Count
	frame[offChannel] = resp.Channel
	frame[offCommand] = byte(resp.Command)
	frame[offFormat] = resp.Format
	copy(frame[offData:offData+DataSize], resp.Data[:])
	binary.BigEndian.PutUint32(frame[offID:offID+4], resp.ID)
	frame[offChecksum] = Checksum(frame[:offChecksum])
	frame[offStop] = StopByteRX
	return frame
}
