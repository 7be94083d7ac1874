// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package j1939

import (
	"fmt"
	"strings"
	"sync"
)

// Support flags in byte 2 of a DM24 record. A clear bit means supported.
const (
	supportFreezeFrame = 1 << iota
	supportDataStream
	supportScaledTest
	supportRationality
	supportMask = 0x0F
)

// SupportedSPN is one 4-byte DM24 record: SPN, support flags and the SPN's
// data length in a freeze frame.
type SupportedSPN struct {
	spn    uint32
	flags  uint8
	length uint8
}

// NewSupportedSPN decodes a 4-byte record. Missing bytes read as 0xFF.
func NewSupportedSPN(b []byte) SupportedSPN {
	var rec [supportedSPNSize]byte
	for i := range rec {
		if i < len(b) {
			rec[i] = b[i]
		} else {
			rec[i] = 0xFF
		}
	}
	return SupportedSPN{
		spn:    unpackSPN(rec[0], rec[1], rec[2]),
		flags:  rec[2] & supportMask,
		length: rec[3],
	}
}

// CreateSupportedSPN builds a record from capabilities
func CreateSupportedSPN(spn uint32, freezeFrame, dataStream, scaledTest, rationality bool, length uint8) SupportedSPN {
	flags := uint8(supportMask)
	if freezeFrame {
		flags &^= supportFreezeFrame
	}
	if dataStream {
		flags &^= supportDataStream
	}
	if scaledTest {
		flags &^= supportScaledTest
	}
	if rationality {
		flags &^= supportRationality
	}
	return SupportedSPN{spn: spn & maxSPN, flags: flags, length: length}
}

// SPN returns the SPN
func (s SupportedSPN) SPN() uint32 { return s.spn }

// Length returns the SPN's data length in freeze frames
func (s SupportedSPN) Length() uint8 { return s.length }

// SupportsFreezeFrame reports whether the SPN is captured in DM25
func (s SupportedSPN) SupportsFreezeFrame() bool { return s.flags&supportFreezeFrame == 0 }

// SupportsDataStream reports whether the SPN is broadcast or requestable
func (s SupportedSPN) SupportsDataStream() bool { return s.flags&supportDataStream == 0 }

// SupportsScaledTestResults reports whether the SPN has DM30 tests
func (s SupportedSPN) SupportsScaledTestResults() bool { return s.flags&supportScaledTest == 0 }

// SupportsRationalityFaultDiagnostic reports whether a rationality fault
// diagnostic is implemented
func (s SupportedSPN) SupportsRationalityFaultDiagnostic() bool {
	return s.flags&supportRationality == 0
}

// Bytes returns the wire encoding
func (s SupportedSPN) Bytes() [supportedSPNSize]byte {
	var b [supportedSPNSize]byte
	// bit 4 of byte 2 is reserved and sent as 1
	packSPN(b[:3], s.spn, s.flags|0x10)
	b[3] = s.length
	return b
}

// Equal compares SPN ids
func (s SupportedSPN) Equal(o SupportedSPN) bool { return s.spn == o.spn }

func (s SupportedSPN) String() string {
	var caps []string
	if s.SupportsDataStream() {
		caps = append(caps, "Data Stream")
	}
	if s.SupportsFreezeFrame() {
		caps = append(caps, "Freeze Frame")
	}
	if s.SupportsScaledTestResults() {
		caps = append(caps, "Scaled Test Results")
	}
	if s.SupportsRationalityFaultDiagnostic() {
		caps = append(caps, "Rationality Fault")
	}
	if len(caps) == 0 {
		caps = append(caps, "none")
	}
	return fmt.Sprintf("SPN %d - %s (length %d)", s.spn, strings.Join(caps, ", "), s.length)
}

// DM24Packet is an SPN support response
type DM24Packet struct {
	*Packet

	once sync.Once
	spns []SupportedSPN
}

// NewDM24Packet wraps p; records are decoded on first access.
func NewDM24Packet(p *Packet) *DM24Packet {
	return &DM24Packet{Packet: p}
}

// SupportedSPNs returns the records with SPN 0 padding removed
func (d *DM24Packet) SupportedSPNs() []SupportedSPN {
	d.once.Do(func() {
		for off := 0; off+supportedSPNSize <= len(d.data); off += supportedSPNSize {
			s := NewSupportedSPN(d.data[off : off+supportedSPNSize])
			if s.spn == SPNNone {
				continue
			}
			d.spns = append(d.spns, s)
		}
	})
	return d.spns
}

// FreezeFrameSPNs returns the SPNs captured in freeze frames, in order
func (d *DM24Packet) FreezeFrameSPNs() []SupportedSPN {
	var out []SupportedSPN
	for _, s := range d.SupportedSPNs() {
		if s.SupportsFreezeFrame() {
			out = append(out, s)
		}
	}
	return out
}

func (d *DM24Packet) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s from 0x%02X", d.Name(), d.source)
	for _, s := range d.SupportedSPNs() {
		sb.WriteString("\n  ")
		sb.WriteString(s.String())
	}
	return sb.String()
}

// CreateDM24 encodes supported SPN records, zero padded to 8 bytes
func CreateDM24(source uint8, spns ...SupportedSPN) *DM24Packet {
	data := make([]byte, 0, supportedSPNSize*len(spns))
	for _, s := range spns {
		b := s.Bytes()
		data = append(data, b[:]...)
	}
	return NewDM24Packet(NewPacket(PGNDM24, source, padFrameWith(data, 0)))
}
