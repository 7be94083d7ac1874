// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package j1939

import "fmt"

// RequestPacket is PGN 59904, asking the destination (or every module when
// sent to the global address) for a parameter group.
type RequestPacket struct {
	*Packet
}

// NewRequestPacket wraps p
func NewRequestPacket(p *Packet) *RequestPacket {
	return &RequestPacket{Packet: p}
}

// PGNRequested returns the requested parameter group
func (r *RequestPacket) PGNRequested() uint32 {
	return uint32(r.get(0)) | uint32(r.get(1))<<8 | uint32(r.get(2))<<16
}

func (r *RequestPacket) String() string {
	return fmt.Sprintf("Request from 0x%02X to 0x%02X for %s (%d)",
		r.source, r.destination, PGNName(r.PGNRequested()), r.PGNRequested())
}

// CreateRequest encodes a request for pgn. Use AddressGlobal as destination
// for a global request.
func CreateRequest(source, destination uint8, pgn uint32) *RequestPacket {
	data := []byte{byte(pgn), byte(pgn >> 8), byte(pgn >> 16)}
	return NewRequestPacket(NewAddressedPacket(PGNRequest, DefaultPriority, source, destination, data))
}

// Test identifiers for DM7
const (
	// TestIDScaledResults asks for the DM30 results of every test of an SPN
	TestIDScaledResults = 247
	// TestIDOBDMonitors asks for OBD monitor results
	TestIDOBDMonitors = 250
)

// DM7Packet commands a non-continuously monitored test. The answer is a
// DM30 carrying scaled test results.
//
//	0    test identifier
//	1-3  SPN and FMI
//	4-7  0xFF
type DM7Packet struct {
	*Packet
}

// NewDM7Packet wraps p
func NewDM7Packet(p *Packet) *DM7Packet {
	return &DM7Packet{Packet: p}
}

// TestID returns the commanded test identifier
func (d *DM7Packet) TestID() uint8 { return d.get(0) }

// SPN returns the SPN under test
func (d *DM7Packet) SPN() uint32 { return unpackSPN(d.get(1), d.get(2), d.get(3)) }

// FMI returns the FMI under test; 31 selects every FMI
func (d *DM7Packet) FMI() uint8 { return d.get(3) & maxFMI }

func (d *DM7Packet) String() string {
	return fmt.Sprintf("DM7 from 0x%02X to 0x%02X: TID %d, SPN %d, FMI %d",
		d.source, d.destination, d.TestID(), d.SPN(), d.FMI())
}

// CreateDM7 encodes a test command to destination
func CreateDM7(source, destination uint8, testID uint8, spn uint32, fmi uint8) *DM7Packet {
	data := make([]byte, dm7Size)
	data[0] = testID
	packSPN(data[1:4], spn, fmi)
	for i := 4; i < dm7Size; i++ {
		data[i] = 0xFF
	}
	return NewDM7Packet(NewAddressedPacket(PGNDM7, DefaultPriority, source, destination, data))
}
