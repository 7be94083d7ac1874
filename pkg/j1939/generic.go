// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package j1939

import (
	"errors"
	"fmt"
	"strings"
	"sync"
)

// Errors returned by CreateGenericPacket
var (
	ErrUnknownPGN   = errors.New("unknown PGN")
	ErrUnknownSPN   = errors.New("SPN not defined for PGN")
	ErrUnknownSlot  = errors.New("unknown slot")
	ErrTextNotValue = errors.New("text field cannot hold a numeric value")
)

// GenericPacket decodes any parameter group described by the definition
// repository into its ordered list of SPNs.
type GenericPacket struct {
	*Packet
	defs Definitions

	once sync.Once
	spns []Spn
}

// NewGenericPacket wraps p; SPNs are decoded on first access.
func NewGenericPacket(p *Packet, defs Definitions) *GenericPacket {
	return &GenericPacket{Packet: p, defs: defs}
}

// Spns returns the decoded SPNs in the parameter group's definition order.
// SPNs whose slot is unknown are omitted; fields past the end of the
// payload decode as not available.
func (g *GenericPacket) Spns() []Spn {
	g.once.Do(func() {
		g.spns = decodeSpns(g.defs, g.pgn, g.data)
	})
	return g.spns
}

// Spn returns a single decoded SPN
func (g *GenericPacket) Spn(id uint32) (Spn, bool) {
	for _, s := range g.Spns() {
		if s.id == id {
			return s, true
		}
	}
	return Spn{}, false
}

// Name returns the parameter group acronym when defined
func (g *GenericPacket) Name() string {
	if g.defs != nil {
		if def, ok := g.defs.FindPGN(g.pgn); ok && def.Acronym != "" {
			return def.Acronym
		}
	}
	return g.Packet.Name()
}

func (g *GenericPacket) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s from 0x%02X: [%s]", g.Name(), g.source, hexBytes(g.data))
	for _, s := range g.Spns() {
		sb.WriteString("\n  ")
		sb.WriteString(s.String())
	}
	return sb.String()
}

func decodeSpns(defs Definitions, pgn uint32, data []byte) []Spn {
	if defs == nil {
		return nil
	}
	def, ok := defs.FindPGN(pgn)
	if !ok {
		return nil
	}
	out := make([]Spn, 0, len(def.Spns))
	for _, sd := range def.Spns {
		slot, ok := defs.FindSlot(sd.Slot, sd.SPN)
		if !ok {
			continue
		}
		field := extractField(data, sd.StartByte, sd.StartBit, slot.BitLength(), slot.Delimited())
		out = append(out, NewSpn(sd.SPN, sd.Label, slot, field))
	}
	return out
}

// CreateGenericPacket encodes physical values into a parameter group.
// Fields without a value are sent as not available.
func CreateGenericPacket(defs Definitions, pgn uint32, source uint8, values map[uint32]float64) (*GenericPacket, error) {
	def, ok := defs.FindPGN(pgn)
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownPGN, pgn)
	}
	known := make(map[uint32]bool, len(def.Spns))
	for _, sd := range def.Spns {
		known[sd.SPN] = true
	}
	for spn := range values {
		if !known[spn] {
			return nil, fmt.Errorf("%w: SPN %d in PGN %d", ErrUnknownSPN, spn, pgn)
		}
	}

	length := def.Length
	if length == 0 {
		length = minimumFrameSize
	}
	frame := make([]byte, length)
	for i := range frame {
		frame[i] = 0xFF
	}
	for _, sd := range def.Spns {
		slot, ok := defs.FindSlot(sd.Slot, sd.SPN)
		if !ok {
			return nil, fmt.Errorf("%w: %d for SPN %d", ErrUnknownSlot, sd.Slot, sd.SPN)
		}
		v, has := values[sd.SPN]
		if !has {
			continue
		}
		if slot.Type() == SlotASCII {
			return nil, fmt.Errorf("%w: SPN %d", ErrTextNotValue, sd.SPN)
		}
		insertField(frame, sd.StartByte, sd.StartBit, slot.BitLength(), slot.Encode(v))
	}
	return NewGenericPacket(NewPacket(pgn, source, frame), defs), nil
}
