// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package j1939

import (
	"fmt"
	"strings"
	"sync"
)

// DTCPacket is the shared layout of DM1, DM2, DM6, DM12, DM23 and DM28:
// two lamp bytes followed by 4-byte DTC records.
type DTCPacket struct {
	*Packet

	once  sync.Once
	lamps Lamps
	dtcs  []DiagnosticTroubleCode
}

// DTCPGNs lists the parameter groups that use the DTC packet layout
var DTCPGNs = []uint32{PGNDM1, PGNDM2, PGNDM6, PGNDM12, PGNDM23, PGNDM28}

// IsDTCPGN reports whether pgn uses the DTC packet layout
func IsDTCPGN(pgn uint32) bool {
	for _, p := range DTCPGNs {
		if p == pgn {
			return true
		}
	}
	return false
}

// NewDTCPacket wraps p; lamps and DTCs are decoded on first access.
func NewDTCPacket(p *Packet) *DTCPacket {
	return &DTCPacket{Packet: p}
}

func (d *DTCPacket) parse() {
	d.once.Do(func() {
		d.lamps = decodeLamps(d.get(0), d.get(1))
		for off := 2; off+dtcRecordSize <= len(d.data); off += dtcRecordSize {
			dtc := NewDiagnosticTroubleCode(d.data[off : off+dtcRecordSize])
			if dtc.isPadding() {
				continue
			}
			d.dtcs = append(d.dtcs, dtc)
		}
	})
}

// Lamps returns the four lamp states
func (d *DTCPacket) Lamps() Lamps {
	d.parse()
	return d.lamps
}

// MIL returns the malfunction indicator lamp state
func (d *DTCPacket) MIL() Lamp { return d.Lamps()[MalfunctionIndicator] }

// RedStopLamp returns the red stop lamp state
func (d *DTCPacket) RedStopLamp() Lamp { return d.Lamps()[RedStop] }

// AmberWarningLamp returns the amber warning lamp state
func (d *DTCPacket) AmberWarningLamp() Lamp { return d.Lamps()[AmberWarning] }

// ProtectLamp returns the protect lamp state
func (d *DTCPacket) ProtectLamp() Lamp { return d.Lamps()[Protect] }

// DTCs returns the reported faults with padding records removed
func (d *DTCPacket) DTCs() []DiagnosticTroubleCode {
	d.parse()
	return d.dtcs
}

// HasDTCs reports whether at least one fault is reported
func (d *DTCPacket) HasDTCs() bool {
	return len(d.DTCs()) > 0
}

func (d *DTCPacket) String() string {
	return d.Format(nil)
}

// Format renders the packet using l for names
func (d *DTCPacket) Format(l Labels) string {
	l = labelsOrDefault(l)
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s from %s: %s", d.Name(), l.AddressName(d.source), d.Lamps())
	if !d.HasDTCs() {
		sb.WriteString("\nNo DTCs")
		return sb.String()
	}
	for _, dtc := range d.DTCs() {
		sb.WriteString("\n")
		sb.WriteString(dtc.Format(l))
	}
	return sb.String()
}

// CreateDTCPacket encodes a DTC packet. With no DTCs one all-zero filler
// record is sent; the frame is padded to 8 bytes with 0xFF.
func CreateDTCPacket(pgn uint32, source uint8, lamps Lamps, dtcs ...DiagnosticTroubleCode) *DTCPacket {
	onOff, flash := lamps.encode()
	data := make([]byte, 2, 2+dtcRecordSize*max(1, len(dtcs)))
	data[0], data[1] = onOff, flash
	if len(dtcs) == 0 {
		data = append(data, 0, 0, 0, 0)
	}
	for _, dtc := range dtcs {
		b := dtc.Bytes()
		data = append(data, b[:]...)
	}
	return NewDTCPacket(NewPacket(pgn, source, padFrame(data)))
}

// CreateDM1 encodes an active DTC packet
func CreateDM1(source uint8, lamps Lamps, dtcs ...DiagnosticTroubleCode) *DTCPacket {
	return CreateDTCPacket(PGNDM1, source, lamps, dtcs...)
}

// CreateDM2 encodes a previously active DTC packet
func CreateDM2(source uint8, lamps Lamps, dtcs ...DiagnosticTroubleCode) *DTCPacket {
	return CreateDTCPacket(PGNDM2, source, lamps, dtcs...)
}

// CreateDM6 encodes a pending DTC packet
func CreateDM6(source uint8, lamps Lamps, dtcs ...DiagnosticTroubleCode) *DTCPacket {
	return CreateDTCPacket(PGNDM6, source, lamps, dtcs...)
}

// CreateDM12 encodes an emissions-related active DTC packet
func CreateDM12(source uint8, lamps Lamps, dtcs ...DiagnosticTroubleCode) *DTCPacket {
	return CreateDTCPacket(PGNDM12, source, lamps, dtcs...)
}

// CreateDM23 encodes a previously MIL-on DTC packet
func CreateDM23(source uint8, lamps Lamps, dtcs ...DiagnosticTroubleCode) *DTCPacket {
	return CreateDTCPacket(PGNDM23, source, lamps, dtcs...)
}

// CreateDM28 encodes a permanent DTC packet
func CreateDM28(source uint8, lamps Lamps, dtcs ...DiagnosticTroubleCode) *DTCPacket {
	return CreateDTCPacket(PGNDM28, source, lamps, dtcs...)
}
