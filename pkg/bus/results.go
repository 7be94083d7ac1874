// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package bus

import (
	"fmt"
	"sort"

	"github.com/Thermoquad/dmscope/pkg/j1939"
)

// RequestResult is the answer to a global request: every decoded packet of
// type P plus any acknowledgments, in arrival order.
type RequestResult[P j1939.Message] struct {
	packets []P
	acks    []*j1939.AcknowledgmentPacket
}

// NewRequestResult builds a result from collected packets and acknowledgments
func NewRequestResult[P j1939.Message](packets []P, acks []*j1939.AcknowledgmentPacket) RequestResult[P] {
	return RequestResult[P]{
		packets: append([]P(nil), packets...),
		acks:    append([]*j1939.AcknowledgmentPacket(nil), acks...),
	}
}

// NoResponses reports that no module answered at all. A module answering
// with an empty list is still a response.
func (r RequestResult[P]) NoResponses() bool {
	return len(r.packets) == 0 && len(r.acks) == 0
}

// Packets returns the decoded responses
func (r RequestResult[P]) Packets() []P { return r.packets }

// Acks returns the acknowledgments received for the request
func (r RequestResult[P]) Acks() []*j1939.AcknowledgmentPacket { return r.acks }

// Packet returns the response of the module at addr
func (r RequestResult[P]) Packet(addr uint8) (P, bool) {
	for _, p := range r.packets {
		if p.Source() == addr {
			return p, true
		}
	}
	var zero P
	return zero, false
}

// Ack returns the acknowledgment sent by the module at addr
func (r RequestResult[P]) Ack(addr uint8) (*j1939.AcknowledgmentPacket, bool) {
	for _, a := range r.acks {
		if a.Source() == addr {
			return a, true
		}
	}
	return nil, false
}

// Sources returns the addresses that answered, ascending
func (r RequestResult[P]) Sources() []uint8 {
	seen := map[uint8]bool{}
	for _, p := range r.packets {
		seen[p.Source()] = true
	}
	for _, a := range r.acks {
		seen[a.Source()] = true
	}
	return sortedAddresses(seen)
}

func (r RequestResult[P]) String() string {
	if r.NoResponses() {
		return "no responses"
	}
	return fmt.Sprintf("%d packets, %d acks", len(r.packets), len(r.acks))
}

// Outcome is the variant held by a BusResult
type Outcome int

const (
	// OutcomeTimeout means nothing arrived within the response window
	OutcomeTimeout Outcome = iota
	// OutcomeData means the module answered with the requested message
	OutcomeData
	// OutcomeAck means the module answered with an acknowledgment
	OutcomeAck
)

func (o Outcome) String() string {
	switch o {
	case OutcomeTimeout:
		return "timeout"
	case OutcomeData:
		return "data"
	case OutcomeAck:
		return "acknowledgment"
	}
	return fmt.Sprintf("Outcome(%d)", int(o))
}

// BusResult is the answer to a destination specific request. It holds
// exactly one of a packet, an acknowledgment or a timeout. The zero value is
// a timeout.
type BusResult[P j1939.Message] struct {
	outcome Outcome
	address uint8
	packet  P
	ack     *j1939.AcknowledgmentPacket
}

// DataResult wraps a response packet
func DataResult[P j1939.Message](p P) BusResult[P] {
	return BusResult[P]{outcome: OutcomeData, address: p.Source(), packet: p}
}

// AckResult wraps an acknowledgment
func AckResult[P j1939.Message](a *j1939.AcknowledgmentPacket) BusResult[P] {
	return BusResult[P]{outcome: OutcomeAck, address: a.Source(), ack: a}
}

// TimeoutResult records that addr did not answer
func TimeoutResult[P j1939.Message](addr uint8) BusResult[P] {
	return BusResult[P]{outcome: OutcomeTimeout, address: addr}
}

// Outcome returns which variant the result holds
func (r BusResult[P]) Outcome() Outcome { return r.outcome }

// Address returns the module the result belongs to
func (r BusResult[P]) Address() uint8 { return r.address }

// Packet returns the response packet
func (r BusResult[P]) Packet() (P, bool) {
	return r.packet, r.outcome == OutcomeData
}

// Acknowledgment returns the acknowledgment
func (r BusResult[P]) Acknowledgment() (*j1939.AcknowledgmentPacket, bool) {
	return r.ack, r.outcome == OutcomeAck
}

// IsTimeout reports that nothing arrived
func (r BusResult[P]) IsTimeout() bool { return r.outcome == OutcomeTimeout }

// IsNACK reports a negative, denied or busy acknowledgment
func (r BusResult[P]) IsNACK() bool {
	return r.outcome == OutcomeAck && r.ack.Response() != j1939.AckPositive
}

func (r BusResult[P]) String() string {
	switch r.outcome {
	case OutcomeData:
		return r.packet.String()
	case OutcomeAck:
		return r.ack.String()
	}
	return fmt.Sprintf("timeout from 0x%02X", r.address)
}

func sortedAddresses(set map[uint8]bool) []uint8 {
	out := make([]uint8, 0, len(set))
	for a := range set {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
