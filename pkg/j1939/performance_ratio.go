// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package j1939

import (
	"fmt"
	"strings"
	"sync"
)

// PerformanceRatio is one DM20 monitor ratio. The source address is not part
// of the record; it is taken from the packet that carried it.
type PerformanceRatio struct {
	spn         uint32
	numerator   uint16
	denominator uint16
	source      uint8
}

// NewPerformanceRatio decodes a 7-byte record reported by source
func NewPerformanceRatio(b []byte, source uint8) PerformanceRatio {
	var rec [performanceRatioSize]byte
	for i := range rec {
		if i < len(b) {
			rec[i] = b[i]
		} else {
			rec[i] = 0xFF
		}
	}
	return PerformanceRatio{
		spn:         unpackSPN(rec[0], rec[1], rec[2]),
		numerator:   le16(rec[:], 3),
		denominator: le16(rec[:], 5),
		source:      source,
	}
}

// CreatePerformanceRatio builds a record
func CreatePerformanceRatio(spn uint32, numerator, denominator uint16, source uint8) PerformanceRatio {
	return PerformanceRatio{spn: spn & maxSPN, numerator: numerator, denominator: denominator, source: source}
}

// SPN returns the monitor's SPN
func (r PerformanceRatio) SPN() uint32 { return r.spn }

// Numerator returns the monitor's completion count
func (r PerformanceRatio) Numerator() uint16 { return r.numerator }

// Denominator returns the count of qualifying driving cycles
func (r PerformanceRatio) Denominator() uint16 { return r.denominator }

// Source returns the address of the reporting module
func (r PerformanceRatio) Source() uint8 { return r.source }

// IsSupported reports whether either count is available
func (r PerformanceRatio) IsSupported() bool {
	return r.numerator != testValueNotAvailable || r.denominator != testValueNotAvailable
}

// Ratio returns numerator/denominator, or false when not computable
func (r PerformanceRatio) Ratio() (float64, bool) {
	if !r.IsSupported() || r.denominator == 0 || r.denominator == testValueNotAvailable || r.numerator == testValueNotAvailable {
		return 0, false
	}
	return float64(r.numerator) / float64(r.denominator), true
}

// Bytes returns the wire encoding
func (r PerformanceRatio) Bytes() [performanceRatioSize]byte {
	var b [performanceRatioSize]byte
	packSPN(b[:3], r.spn, 0x1F)
	putLE16(b[:], 3, r.numerator)
	putLE16(b[:], 5, r.denominator)
	return b
}

func (r PerformanceRatio) String() string {
	return fmt.Sprintf("SPN %d from 0x%02X: %s / %s",
		r.spn, r.source, rawTestValue(r.numerator), rawTestValue(r.denominator))
}

// DM20Packet is a monitor performance ratio response
type DM20Packet struct {
	*Packet

	once   sync.Once
	ratios []PerformanceRatio
}

// NewDM20Packet wraps p; ratios are decoded on first access.
func NewDM20Packet(p *Packet) *DM20Packet {
	return &DM20Packet{Packet: p}
}

// IgnitionCycles returns the ignition cycle counter
func (d *DM20Packet) IgnitionCycles() uint16 {
	return uint16(d.get(0)) | uint16(d.get(1))<<8
}

// OBDMonitoringConditionsEncountered returns the general denominator
func (d *DM20Packet) OBDMonitoringConditionsEncountered() uint16 {
	return uint16(d.get(2)) | uint16(d.get(3))<<8
}

// Ratios returns the 7-byte records following the header
func (d *DM20Packet) Ratios() []PerformanceRatio {
	d.once.Do(func() {
		for off := performanceRatioHeader; off+performanceRatioSize <= len(d.data); off += performanceRatioSize {
			d.ratios = append(d.ratios, NewPerformanceRatio(d.data[off:off+performanceRatioSize], d.source))
		}
	})
	return d.ratios
}

func (d *DM20Packet) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s from 0x%02X: ignition cycles %s, OBD monitoring conditions %s",
		d.Name(), d.source, rawTestValue(d.IgnitionCycles()), rawTestValue(d.OBDMonitoringConditionsEncountered()))
	for _, r := range d.Ratios() {
		sb.WriteString("\n  ")
		sb.WriteString(r.String())
	}
	return sb.String()
}

// CreateDM20 encodes the header counters and ratios
func CreateDM20(source uint8, ignitionCycles, obdConditions uint16, ratios ...PerformanceRatio) *DM20Packet {
	data := make([]byte, performanceRatioHeader, performanceRatioHeader+performanceRatioSize*len(ratios))
	putLE16(data, 0, ignitionCycles)
	putLE16(data, 2, obdConditions)
	for _, r := range ratios {
		b := r.Bytes()
		data = append(data, b[:]...)
	}
	return NewDM20Packet(NewPacket(PGNDM20, source, padFrame(data)))
}
