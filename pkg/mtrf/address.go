// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Kaz Walker, Thermoquad

package mtrf

import "fmt"

// Address selects the devices a command is sent to.
//
// A device id addresses one nooLite-F device, a channel addresses every
// device bound to it, and both together address one device within the
// channel. The action byte of the request is derived from which are set.
type Address struct {
	Channel    uint8
	HasChannel bool
	ID         uint32 // 0 when unset
	Broadcast  bool   // channel-only, nooLite-F only
	Kind       ModuleKind
}

// ChannelAddress addresses the devices bound to a channel
func ChannelAddress(channel uint8) Address {
	return Address{Channel: channel, HasChannel: true}
}

// DeviceAddress addresses a single nooLite-F device by id
func DeviceAddress(id uint32) Address {
	return Address{ID: id}
}

// InChannel restricts the address to a channel
func (a Address) InChannel(channel uint8) Address {
	a.Channel = channel
	a.HasChannel = true
	return a
}

// AsBroadcast requests a broadcast to every device in the channel
func (a Address) AsBroadcast() Address {
	a.Broadcast = true
	return a
}

// WithKind selects the module protocol
func (a Address) WithKind(kind ModuleKind) Address {
	a.Kind = kind
	return a
}

func (a Address) String() string {
	switch {
	case a.ID != 0 && a.HasChannel:
		return fmt.Sprintf("%s id=%08X ch=%d", a.Kind, a.ID, a.Channel)
	case a.ID != 0:
		return fmt.Sprintf("%s id=%08X", a.Kind, a.ID)
	case a.HasChannel && a.Broadcast:
		return fmt.Sprintf("%s ch=%d broadcast", a.Kind, a.Channel)
	case a.HasChannel:
		return fmt.Sprintf("%s ch=%d", a.Kind, a.Channel)
	default:
		return "unaddressed"
	}
}

// request builds the outgoing message for cmd sent to this address
func (a Address) request(cmd Command, format uint8, data []byte) (*Request, error) {
	req := &Request{
		Mode:    a.Kind.txMode(),
		Command: cmd,
		Format:  format,
		Data:    data,
	}

	switch {
	case a.ID != 0 && a.Kind == NooLite:
		return nil, fmt.Errorf("%w: device id addressing requires a nooLite-F module", ErrInvalidArgument)
	case a.ID != 0 && a.HasChannel:
		req.Action = ActionSendCommand
		req.ID = a.ID
		req.Channel = a.Channel
	case a.ID != 0:
		req.Action = ActionSendCommandToID
		req.ID = a.ID
	case a.HasChannel:
		req.Channel = a.Channel
		req.Action = ActionSendCommand
		if a.Broadcast && a.Kind != NooLite {
			req.Action = ActionSendBroadcastCommand
		}
	default:
		return nil, ErrAddressing
	}
	return req, nil
}
