// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package j1939

import "fmt"

// fmiDescriptions holds the J1939-73 failure mode identifiers
var fmiDescriptions = map[uint8]string{
	0:  "Data Valid But Above Normal Operational Range - Most Severe Level",
	1:  "Data Valid But Below Normal Operational Range - Most Severe Level",
	2:  "Data Erratic, Intermittent Or Incorrect",
	3:  "Voltage Above Normal, Or Shorted To High Source",
	4:  "Voltage Below Normal, Or Shorted To Low Source",
	5:  "Current Below Normal Or Open Circuit",
	6:  "Current Above Normal Or Grounded Circuit",
	7:  "Mechanical System Not Responding Or Out Of Adjustment",
	8:  "Abnormal Frequency Or Pulse Width Or Period",
	9:  "Abnormal Update Rate",
	10: "Abnormal Rate Of Change",
	11: "Root Cause Not Known",
	12: "Bad Intelligent Device Or Component",
	13: "Out Of Calibration",
	14: "Special Instructions",
	15: "Data Valid But Above Normal Operating Range - Least Severe Level",
	16: "Data Valid But Above Normal Operating Range - Moderately Severe Level",
	17: "Data Valid But Below Normal Operating Range - Least Severe Level",
	18: "Data Valid But Below Normal Operating Range - Moderately Severe Level",
	19: "Received Network Data In Error",
	20: "Data Drifted High",
	21: "Data Drifted Low",
	31: "Condition Exists",
}

// addressNames holds the J1939 preferred addresses of common controllers
var addressNames = map[uint8]string{
	0x00: "Engine #1",
	0x01: "Engine #2",
	0x03: "Transmission #1",
	0x0B: "Brakes - System Controller",
	0x0F: "Retarder, Engine #1",
	0x11: "Cruise Control",
	0x17: "Instrument Cluster #1",
	0x19: "Passenger-Operator Climate Control #1",
	0x21: "Body Controller",
	0x28: "Cab Controller - Primary",
	0x31: "Cab Controller - Secondary",
	0x3D: "Exhaust Emission Controller",
	0x55: "Engine Valve Controller",
	0xF9: "Off Board Diagnostic-Service Tool #1",
	0xFA: "Off Board Diagnostic-Service Tool #2",
	0xFE: "Null",
	0xFF: "Global",
}

// builtinLabels renders with the built-in FMI and address tables when no
// repository is supplied.
type builtinLabels struct{}

func (builtinLabels) SPNName(uint32) string { return "Unknown" }

func (builtinLabels) FMIDescription(fmi uint8) string {
	if d, ok := fmiDescriptions[fmi]; ok {
		return d
	}
	return fmt.Sprintf("Unknown FMI %d", fmi)
}

func (builtinLabels) AddressName(addr uint8) string {
	if n, ok := addressNames[addr]; ok {
		return fmt.Sprintf("%s (%d)", n, addr)
	}
	return fmt.Sprintf("Unknown (%d)", addr)
}

func labelsOrDefault(l Labels) Labels {
	if l == nil {
		return builtinLabels{}
	}
	return l
}
