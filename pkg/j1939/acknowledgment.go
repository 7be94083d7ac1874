// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package j1939

import "fmt"

// AckCode is the control byte of an Acknowledgment message
type AckCode uint8

// Acknowledgment control bytes
const (
	AckPositive AckCode = 0
	AckNegative AckCode = 1
	AckDenied   AckCode = 2 // access denied
	AckBusy     AckCode = 3 // cannot respond
)

var ackCodeNames = map[AckCode]string{
	AckPositive: "ACK",
	AckNegative: "NACK",
	AckDenied:   "Denied",
	AckBusy:     "Busy",
}

// Known reports whether c is one of the four defined codes
func (c AckCode) Known() bool {
	_, ok := ackCodeNames[c]
	return ok
}

func (c AckCode) String() string {
	if name, ok := ackCodeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("Unknown(%d)", uint8(c))
}

// AcknowledgmentPacket is PGN 59392. It is the positive answer to a command
// and the negative answer to any request.
//
//	0    control byte
//	1    group function value
//	2-3  reserved, 0xFF
//	4    address acknowledged
//	5-7  PGN of the requested information
type AcknowledgmentPacket struct {
	*Packet
}

// NewAcknowledgmentPacket wraps p
func NewAcknowledgmentPacket(p *Packet) *AcknowledgmentPacket {
	return &AcknowledgmentPacket{Packet: p}
}

// Response returns the control byte
func (a *AcknowledgmentPacket) Response() AckCode {
	return AckCode(a.get(0))
}

// GroupFunction returns the group function value
func (a *AcknowledgmentPacket) GroupFunction() uint8 {
	return a.get(1)
}

// Address returns the address the acknowledgment is for
func (a *AcknowledgmentPacket) Address() uint8 {
	return a.get(4)
}

// PGNRequested returns the echoed PGN
func (a *AcknowledgmentPacket) PGNRequested() uint32 {
	return uint32(a.get(5)) | uint32(a.get(6))<<8 | uint32(a.get(7))<<16
}

func (a *AcknowledgmentPacket) String() string {
	return fmt.Sprintf("Acknowledgment from 0x%02X: Response: %s, Group Function: %d, Address Acknowledged: %d, PGN Requested: %d",
		a.source, a.Response(), a.GroupFunction(), a.Address(), a.PGNRequested())
}

// CreateAcknowledgment encodes an acknowledgment sent by source to address
// for the requested PGN.
func CreateAcknowledgment(source uint8, response AckCode, groupFunction uint8, address uint8, pgnRequested uint32) *AcknowledgmentPacket {
	data := []byte{
		byte(response),
		groupFunction,
		0xFF,
		0xFF,
		address,
		byte(pgnRequested),
		byte(pgnRequested >> 8),
		byte(pgnRequested >> 16),
	}
	return NewAcknowledgmentPacket(NewAddressedPacket(PGNAcknowledgment, DefaultPriority, source, AddressGlobal, data))
}
