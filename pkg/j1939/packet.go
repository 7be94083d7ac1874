// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package j1939

import (
	"fmt"
	"strings"
	"time"
)

// DefaultPriority is the priority used for diagnostic messages
const DefaultPriority = 6

// Packet is a reassembled J1939 message as delivered by the transport:
// PGN, source address, destination address and payload.
type Packet struct {
	pgn         uint32
	priority    uint8
	source      uint8
	destination uint8
	data        []byte
	timestamp   time.Time
}

// NewPacket creates a broadcast packet with the given payload.
// The payload is copied.
func NewPacket(pgn uint32, source uint8, data []byte) *Packet {
	return NewAddressedPacket(pgn, DefaultPriority, source, AddressGlobal, data)
}

// NewAddressedPacket creates a packet with explicit priority and destination.
func NewAddressedPacket(pgn uint32, priority, source, destination uint8, data []byte) *Packet {
	b := make([]byte, len(data))
	copy(b, data)
	return &Packet{
		pgn:         pgn,
		priority:    priority,
		source:      source,
		destination: destination,
		data:        b,
		timestamp:   time.Now(),
	}
}

// PGN returns the parameter group number
func (p *Packet) PGN() uint32 {
	return p.pgn
}

// Priority returns the message priority (0-7)
func (p *Packet) Priority() uint8 {
	return p.priority
}

// Source returns the sender's address
func (p *Packet) Source() uint8 {
	return p.source
}

// Destination returns the destination address (0xFF for broadcast)
func (p *Packet) Destination() uint8 {
	return p.destination
}

// Bytes returns the payload. Callers must not modify it.
func (p *Packet) Bytes() []byte {
	return p.data
}

// Length returns the payload length
func (p *Packet) Length() int {
	return len(p.data)
}

// Timestamp returns the time the packet was built or received
func (p *Packet) Timestamp() time.Time {
	return p.timestamp
}

// WithTimestamp returns a copy of the packet carrying ts.
func (p *Packet) WithTimestamp(ts time.Time) *Packet {
	c := *p
	c.timestamp = ts
	return &c
}

// IsBroadcast returns true if the packet is addressed to all modules
func (p *Packet) IsBroadcast() bool {
	return p.destination == AddressGlobal
}

// Raw returns the packet itself so typed packets embedding *Packet
// satisfy Message.
func (p *Packet) Raw() *Packet {
	return p
}

// Name returns the DM name of the packet's PGN, or "PGN n".
func (p *Packet) Name() string {
	return PGNName(p.pgn)
}

// String renders the header and payload in hex.
func (p *Packet) String() string {
	return fmt.Sprintf("%s (%d) from 0x%02X to 0x%02X: [%s]",
		p.Name(), p.pgn, p.source, p.destination, hexBytes(p.data))
}

// PGNName returns the DM name of a PGN, or "PGN n" when unknown.
func PGNName(pgn uint32) string {
	if name, ok := pgnNames[pgn]; ok {
		return name
	}
	return fmt.Sprintf("PGN %d", pgn)
}

// Message is implemented by every typed packet in this package.
type Message interface {
	Raw() *Packet
	PGN() uint32
	Source() uint8
	Bytes() []byte
	Name() string
	String() string
}

func hexBytes(b []byte) string {
	var sb strings.Builder
	for i, v := range b {
		if i > 0 {
			sb.WriteByte(' ')
		}
		fmt.Fprintf(&sb, "%02X", v)
	}
	return sb.String()
}

// get returns b[i], or 0xFF when i is outside the payload.
func (p *Packet) get(i int) byte {
	if i < 0 || i >= len(p.data) {
		return 0xFF
	}
	return p.data[i]
}
