// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package j1939

import "fmt"

// LampStatus is the combined on/off and flash state of a lamp
type LampStatus int

// Lamp statuses
const (
	LampOff LampStatus = iota
	LampAlternateOff
	LampOn
	LampSlowFlash
	LampFastFlash
	LampNotSupported
	LampOther
)

var lampStatusNames = map[LampStatus]string{
	LampOff:          "off",
	LampAlternateOff: "alternate off",
	LampOn:           "on",
	LampSlowFlash:    "slow flash",
	LampFastFlash:    "fast flash",
	LampNotSupported: "not supported",
	LampOther:        "other",
}

func (s LampStatus) String() string {
	if name, ok := lampStatusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("LampStatus(%d)", int(s))
}

// lampBits is an (on/off, flash) pair of 2-bit fields
type lampBits struct {
	onOff uint8
	flash uint8
}

var lampStatusTable = map[lampBits]LampStatus{
	{0, 3}: LampOff,
	{0, 0}: LampAlternateOff,
	{1, 3}: LampOn,
	{1, 0}: LampSlowFlash,
	{1, 1}: LampFastFlash,
	{3, 3}: LampNotSupported,
}

var lampStatusBits = map[LampStatus]lampBits{
	LampOff:          {0, 3},
	LampAlternateOff: {0, 0},
	LampOn:           {1, 3},
	LampSlowFlash:    {1, 0},
	LampFastFlash:    {1, 1},
	LampNotSupported: {3, 3},
}

// Lamp is a decoded lamp state. OnOff and Flash keep the raw pair so patterns outside
// the table survive a round trip.
type Lamp struct {
	Status LampStatus
	OnOff  uint8
	Flash  uint8
}

// LampFromBits looks up the status of an (on/off, flash) pair
func LampFromBits(onOff, flash uint8) Lamp {
	onOff &= 0x03
	flash &= 0x03
	status, ok := lampStatusTable[lampBits{onOff, flash}]
	if !ok {
		status = LampOther
	}
	return Lamp{Status: status, OnOff: onOff, Flash: flash}
}

// NewLamp returns the canonical bit pattern for status. LampOther has no
// canonical pattern and encodes as (2, 2).
func NewLamp(status LampStatus) Lamp {
	bits, ok := lampStatusBits[status]
	if !ok {
		return Lamp{Status: LampOther, OnOff: 2, Flash: 2}
	}
	return Lamp{Status: status, OnOff: bits.onOff, Flash: bits.flash}
}

func (l Lamp) String() string {
	if l.Status == LampOther {
		return fmt.Sprintf("other (on/off=%d, flash=%d)", l.OnOff, l.Flash)
	}
	return l.Status.String()
}

// IsOn reports whether the lamp is lit, steady or flashing
func (l Lamp) IsOn() bool {
	return l.Status == LampOn || l.Status == LampSlowFlash || l.Status == LampFastFlash
}

// LampID names one of the four diagnostic lamps
type LampID int

// Lamps in bit order, most significant pair first
const (
	MalfunctionIndicator LampID = iota
	RedStop
	AmberWarning
	Protect
)

var lampIDNames = []string{"MIL", "Red Stop", "Amber Warning", "Protect"}

func (id LampID) String() string {
	if id >= 0 && int(id) < len(lampIDNames) {
		return lampIDNames[id]
	}
	return fmt.Sprintf("LampID(%d)", int(id))
}

// shift returns the bit position of the lamp's pair in both lamp bytes
func (id LampID) shift() uint {
	return uint(6 - 2*int(id))
}

// Lamps holds the four lamp states of a DTC packet or lamp association
type Lamps [4]Lamp

// decodeLamps reads the on/off byte and the flash byte
func decodeLamps(onOff, flash byte) Lamps {
	var l Lamps
	for id := MalfunctionIndicator; id <= Protect; id++ {
		s := id.shift()
		l[id] = LampFromBits(onOff>>s, flash>>s)
	}
	return l
}

// encode returns the on/off byte and the flash byte
func (l Lamps) encode() (byte, byte) {
	var onOff, flash byte
	for id := MalfunctionIndicator; id <= Protect; id++ {
		s := id.shift()
		onOff |= (l[id].OnOff & 0x03) << s
		flash |= (l[id].Flash & 0x03) << s
	}
	return onOff, flash
}

// NewLamps builds a Lamps value from the four statuses
func NewLamps(mil, stop, amber, protect LampStatus) Lamps {
	return Lamps{NewLamp(mil), NewLamp(stop), NewLamp(amber), NewLamp(protect)}
}

func (l Lamps) String() string {
	return fmt.Sprintf("MIL: %s, RSL: %s, AWL: %s, PL: %s", l[0], l[1], l[2], l[3])
}
