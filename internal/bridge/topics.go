// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 Kaz Walker, Thermoquad

package bridge

import (
	"fmt"
	"strings"
)

// Status payloads, retained on the status topic
const (
	StatusOnline  = "online"
	StatusOffline = "offline"
)

// Topics builds the topic tree under Prefix:
//
//	<prefix>/status                   online | offline (retained)
//	<prefix>/devices/<name>/set       commands
//	<prefix>/devices/<name>/state     last command result (retained)
//	<prefix>/sensors/<name>           sensor readings
//	<prefix>/events/<channel>         every decoded event
type Topics struct {
	Prefix string
}

// Status carries the retained online/offline flag
func (t Topics) Status() string { return t.Prefix + "/status" }

// DeviceSet is where commands for a device arrive
func (t Topics) DeviceSet(name string) string { return t.Prefix + "/devices/" + name + "/set" }

// DeviceState holds the retained result of the last command
func (t Topics) DeviceState(name string) string { return t.Prefix + "/devices/" + name + "/state" }

// DeviceSetWildcard matches the command topic of every device
func (t Topics) DeviceSetWildcard() string { return t.Prefix + "/devices/+/set" }

// Sensor carries readings from a named sensor
func (t Topics) Sensor(name string) string { return t.Prefix + "/sensors/" + name }

// Event carries every event decoded on a channel
func (t Topics) Event(channel uint8) string { return fmt.Sprintf("%s/events/%d", t.Prefix, channel) }

// DeviceName extracts the device name from a command topic
func (t Topics) DeviceName(topic string) (string, bool) {
	rest, ok := strings.CutPrefix(topic, t.Prefix+"/devices/")
	if !ok {
		return "", false
	}
	name, ok := strings.CutSuffix(rest, "/set")
	if !ok || name == "" || strings.Contains(name, "/") {
		return "", false
	}
	return name, true
}
