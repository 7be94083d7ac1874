// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package j1939

import (
	"fmt"
	"strings"
	"sync"
)

// DTCLampAssociation is one 6-byte DM31 record: a DTC and the lamps it
// commands.
type DTCLampAssociation struct {
	dtc   DiagnosticTroubleCode
	lamps Lamps
}

// NewDTCLampAssociation decodes a 6-byte record
func NewDTCLampAssociation(b []byte) DTCLampAssociation {
	var rec [lampAssociationSize]byte
	for i := range rec {
		if i < len(b) {
			rec[i] = b[i]
		} else {
			rec[i] = 0xFF
		}
	}
	return DTCLampAssociation{
		dtc:   NewDiagnosticTroubleCode(rec[:dtcRecordSize]),
		lamps: decodeLamps(rec[4], rec[5]),
	}
}

// CreateDTCLampAssociation builds a record
func CreateDTCLampAssociation(dtc DiagnosticTroubleCode, lamps Lamps) DTCLampAssociation {
	return DTCLampAssociation{dtc: dtc, lamps: lamps}
}

// DTC returns the associated DTC
func (a DTCLampAssociation) DTC() DiagnosticTroubleCode { return a.dtc }

// Lamps returns the lamp states commanded by the DTC
func (a DTCLampAssociation) Lamps() Lamps { return a.lamps }

// Bytes returns the wire encoding
func (a DTCLampAssociation) Bytes() [lampAssociationSize]byte {
	var b [lampAssociationSize]byte
	a.dtc.put(b[:dtcRecordSize])
	b[4], b[5] = a.lamps.encode()
	return b
}

func (a DTCLampAssociation) String() string {
	return fmt.Sprintf("%s\n    %s", a.dtc, a.lamps)
}

// DM31Packet is a DTC to lamp association response
type DM31Packet struct {
	*Packet

	once         sync.Once
	associations []DTCLampAssociation
}

// NewDM31Packet wraps p; records are decoded on first access.
func NewDM31Packet(p *Packet) *DM31Packet {
	return &DM31Packet{Packet: p}
}

// Associations returns the records. An all-zero payload means none.
func (d *DM31Packet) Associations() []DTCLampAssociation {
	d.once.Do(func() {
		if allZero(d.data) {
			return
		}
		for off := 0; off+lampAssociationSize <= len(d.data); off += lampAssociationSize {
			d.associations = append(d.associations, NewDTCLampAssociation(d.data[off:off+lampAssociationSize]))
		}
	})
	return d.associations
}

// LampsFor returns the lamps associated with dtc
func (d *DM31Packet) LampsFor(dtc DiagnosticTroubleCode) (Lamps, bool) {
	for _, a := range d.Associations() {
		if a.dtc.Equal(dtc) {
			return a.lamps, true
		}
	}
	return Lamps{}, false
}

func (d *DM31Packet) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s from 0x%02X", d.Name(), d.source)
	assoc := d.Associations()
	if len(assoc) == 0 {
		sb.WriteString(": No DTCs")
	}
	for _, a := range assoc {
		sb.WriteString("\n  ")
		sb.WriteString(a.String())
	}
	return sb.String()
}

// CreateDM31 encodes lamp associations. With none, eight zero bytes are sent.
func CreateDM31(source uint8, associations ...DTCLampAssociation) *DM31Packet {
	if len(associations) == 0 {
		return NewDM31Packet(NewPacket(PGNDM31, source, make([]byte, minimumFrameSize)))
	}
	data := make([]byte, 0, lampAssociationSize*len(associations))
	for _, a := range associations {
		b := a.Bytes()
		data = append(data, b[:]...)
	}
	return NewDM31Packet(NewPacket(PGNDM31, source, padFrame(data)))
}

func allZero(b []byte) bool {
	for _, v := range b {
		if v != 0 {
			return false
		}
	}
	return true
}
