// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Kaz Walker, Thermoquad
//
// noolite - nooLite-F MTRF-64 transceiver tool
//
// A CLI tool for controlling nooLite power blocks, monitoring remotes and
// sensors, and bridging them to MQTT.

package main

import (
	"os"

	"github.com/Thermoquad/noolite/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
