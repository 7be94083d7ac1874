// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package j1939

import (
	"fmt"
	"strings"
	"sync"
)

// ScaledTestResult is one 12-byte DM30 record:
//
//	0     test identifier
//	1-3   SPN (19 bits) and FMI
//	4-5   SLOT number
//	6-7   test value
//	8-9   test limit maximum
//	10-11 test limit minimum
//
// Equality is by SPN and FMI.
type ScaledTestResult struct {
	testID uint8
	spn    uint32
	fmi    uint8
	slot   uint16
	value  uint16
	max    uint16
	min    uint16
}

// NewScaledTestResult decodes a 12-byte record. Missing bytes read as 0xFF.
func NewScaledTestResult(b []byte) ScaledTestResult {
	var rec [scaledTestResultSize]byte
	for i := range rec {
		if i < len(b) {
			rec[i] = b[i]
		} else {
			rec[i] = 0xFF
		}
	}
	return ScaledTestResult{
		testID: rec[0],
		spn:    unpackSPN(rec[1], rec[2], rec[3]),
		fmi:    rec[3] & maxFMI,
		slot:   le16(rec[:], 4),
		value:  le16(rec[:], 6),
		max:    le16(rec[:], 8),
		min:    le16(rec[:], 10),
	}
}

// CreateScaledTestResult builds a record from field values
func CreateScaledTestResult(testID uint8, spn uint32, fmi uint8, slot, value, max, min uint16) ScaledTestResult {
	return ScaledTestResult{
		testID: testID,
		spn:    spn & maxSPN,
		fmi:    fmi & maxFMI,
		slot:   slot,
		value:  value,
		max:    max,
		min:    min,
	}
}

// TestID returns the test identifier
func (r ScaledTestResult) TestID() uint8 { return r.testID }

// SPN returns the tested SPN
func (r ScaledTestResult) SPN() uint32 { return r.spn }

// FMI returns the tested failure mode
func (r ScaledTestResult) FMI() uint8 { return r.fmi }

// SlotNumber returns the SLOT used to scale value and limits
func (r ScaledTestResult) SlotNumber() uint16 { return r.slot }

// TestValue returns the raw test value
func (r ScaledTestResult) TestValue() uint16 { return r.value }

// TestMaximum returns the raw upper limit
func (r ScaledTestResult) TestMaximum() uint16 { return r.max }

// TestMinimum returns the raw lower limit
func (r ScaledTestResult) TestMinimum() uint16 { return r.min }

// Key returns the (SPN, FMI) identity
func (r ScaledTestResult) Key() DTCKey { return DTCKey{SPN: r.spn, FMI: r.fmi} }

// Equal compares SPN and FMI
func (r ScaledTestResult) Equal(o ScaledTestResult) bool {
	return r.spn == o.spn && r.fmi == o.fmi
}

// IsInitialized reports whether the test has not yet completed: value 0xFB00
// with both limits 0xFFFF, or value and limits all zero.
func (r ScaledTestResult) IsInitialized() bool {
	if r.value == testValueInitialized && r.max == testValueNotAvailable && r.min == testValueNotAvailable {
		return true
	}
	return r.value == 0 && r.max == 0 && r.min == 0
}

// HasValue reports whether the test value is available
func (r ScaledTestResult) HasValue() bool { return r.value != testValueNotAvailable }

// HasMaximum reports whether the upper limit is available
func (r ScaledTestResult) HasMaximum() bool { return r.max != testValueNotAvailable }

// HasMinimum reports whether the lower limit is available
func (r ScaledTestResult) HasMinimum() bool { return r.min != testValueNotAvailable }

// Bytes returns the wire encoding
func (r ScaledTestResult) Bytes() [scaledTestResultSize]byte {
	var b [scaledTestResultSize]byte
	b[0] = r.testID
	packSPN(b[1:4], r.spn, r.fmi)
	putLE16(b[:], 4, r.slot)
	putLE16(b[:], 6, r.value)
	putLE16(b[:], 8, r.max)
	putLE16(b[:], 10, r.min)
	return b
}

// ScaledValues is a DM30 record rendered through its SLOT
type ScaledValues struct {
	Value   string
	Maximum string
	Minimum string
	Unit    string
}

// Scaled renders value and limits through the record's SLOT. The second
// result is false when the SLOT is unknown.
func (r ScaledTestResult) Scaled(defs Definitions) (ScaledValues, bool) {
	slot, ok := defs.FindSlot(int(r.slot), r.spn)
	if !ok || slot.ByteLength() > 2 || slot.Type() == SlotASCII {
		return ScaledValues{}, false
	}
	render := func(v uint16) string {
		if v == testValueNotAvailable {
			return "N/A"
		}
		var b [2]byte
		putLE16(b[:], 0, v)
		return slot.DecodeString(b[:slot.ByteLength()], false)
	}
	return ScaledValues{
		Value:   render(r.value),
		Maximum: render(r.max),
		Minimum: render(r.min),
		Unit:    slot.Unit(),
	}, true
}

func (r ScaledTestResult) String() string {
	return fmt.Sprintf("SPN %d FMI %d (SLOT %d) Result: %s. Max: %s, Min: %s",
		r.spn, r.fmi, r.slot, rawTestValue(r.value), rawTestValue(r.max), rawTestValue(r.min))
}

func rawTestValue(v uint16) string {
	if v == testValueNotAvailable {
		return "N/A"
	}
	return fmt.Sprintf("%d", v)
}

// DM30Packet is a scaled test results response
type DM30Packet struct {
	*Packet

	once    sync.Once
	results []ScaledTestResult
}

// NewDM30Packet wraps p; records are decoded on first access.
func NewDM30Packet(p *Packet) *DM30Packet {
	return &DM30Packet{Packet: p}
}

// TestResults returns the 12-byte records; trailing bytes are ignored
func (d *DM30Packet) TestResults() []ScaledTestResult {
	d.once.Do(func() {
		for off := 0; off+scaledTestResultSize <= len(d.data); off += scaledTestResultSize {
			d.results = append(d.results, NewScaledTestResult(d.data[off:off+scaledTestResultSize]))
		}
	})
	return d.results
}

func (d *DM30Packet) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s from 0x%02X", d.Name(), d.source)
	for _, r := range d.TestResults() {
		sb.WriteString("\n  ")
		sb.WriteString(r.String())
	}
	return sb.String()
}

// CreateDM30 encodes scaled test results
func CreateDM30(source uint8, results ...ScaledTestResult) *DM30Packet {
	data := make([]byte, 0, scaledTestResultSize*len(results))
	for _, r := range results {
		b := r.Bytes()
		data = append(data, b[:]...)
	}
	return NewDM30Packet(NewPacket(PGNDM30, source, padFrame(data)))
}
