// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad
//
// dmscope - J1939 Diagnostic Message Analyzer
//
// A CLI tool for requesting, decoding and monitoring J1939 diagnostic
// messages through a serial or WebSocket CAN gateway.

package main

import (
	"os"

	"github.com/Thermoquad/dmscope/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
