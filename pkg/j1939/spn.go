// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package j1939

import (
	"fmt"
	"sort"
)

// Spn is one decoded parameter: an SPN id bound to its Slot and the field
// bytes extracted from a message.
type Spn struct {
	id    uint32
	label string
	slot  *Slot
	data  []byte
}

// NewSpn binds data to slot. Data is zero padded or truncated to the slot's
// byte length; empty data is kept empty so it decodes as not available.
func NewSpn(id uint32, label string, slot *Slot, data []byte) Spn {
	var b []byte
	if len(data) > 0 {
		n := slot.ByteLength()
		if slot.Delimited() && len(data) < n {
			n = len(data)
		}
		b = make([]byte, n)
		copy(b, data)
	}
	return Spn{id: id, label: label, slot: slot, data: b}
}

// ID returns the SPN number
func (s Spn) ID() uint32 { return s.id }

// Label returns the SPN name
func (s Spn) Label() string { return s.label }

// Slot returns the transfer function used to decode the SPN
func (s Spn) Slot() *Slot { return s.slot }

// Bytes returns the field bytes. Callers must not modify them.
func (s Spn) Bytes() []byte { return s.data }

// Decode classifies and scales the field
func (s Spn) Decode() Value { return s.slot.Decode(s.data) }

// Value returns the physical value, or false for sentinels and text fields
func (s Spn) Value() (float64, bool) { return s.slot.DecodeValue(s.data) }

// IsNotAvailable reports whether the field holds "not available"
func (s Spn) IsNotAvailable() bool { return s.slot.IsNotAvailable(s.data) }

// IsError reports whether the field holds "error"
func (s Spn) IsError() bool { return s.slot.IsError(s.data) }

// StringValue renders the value, optionally followed by its unit
func (s Spn) StringValue(withUnits bool) string {
	return s.slot.DecodeString(s.data, withUnits)
}

// Equal compares SPN ids only
func (s Spn) Equal(o Spn) bool { return s.id == o.id }

func (s Spn) String() string {
	return fmt.Sprintf("SPN %5d, %s: %s", s.id, s.label, s.StringValue(true))
}

// SortSpns orders spns by SPN id
func SortSpns(spns []Spn) {
	sort.SliceStable(spns, func(i, j int) bool { return spns[i].id < spns[j].id })
}

// extractField returns the bytes of a field located at the 1-based startByte
// and startBit. Unaligned fields are shifted down so bit 0 of the result is
// the field's first bit. A field that does not fit in data yields nil.
func extractField(data []byte, startByte, startBit, bitLength int, delimited bool) []byte {
	if startByte < 1 || bitLength <= 0 {
		return nil
	}
	if startBit < 1 {
		startBit = 1
	}
	offset := startByte - 1
	shift := startBit - 1
	if offset >= len(data) {
		return nil
	}
	if delimited {
		n := (bitLength + 7) / 8
		if rem := len(data) - offset; rem < n {
			n = rem
		}
		return append([]byte(nil), data[offset:offset+n]...)
	}

	span := (shift + bitLength + 7) / 8
	if offset+span > len(data) {
		return nil
	}
	src := data[offset : offset+span]
	out := make([]byte, (bitLength+7)/8)
	if shift == 0 && bitLength%8 == 0 {
		copy(out, src)
		return out
	}
	for i := 0; i < bitLength; i++ {
		pos := shift + i
		if src[pos/8]&(1<<uint(pos%8)) != 0 {
			out[i/8] |= 1 << uint(i%8)
		}
	}
	return out
}

// insertField writes the low bitLength bits of field into frame at the
// 1-based startByte and startBit, leaving the other bits untouched.
func insertField(frame []byte, startByte, startBit, bitLength int, field []byte) {
	if startByte < 1 {
		return
	}
	if startBit < 1 {
		startBit = 1
	}
	base := (startByte-1)*8 + startBit - 1
	for i := 0; i < bitLength && i/8 < len(field); i++ {
		pos := base + i
		if pos/8 >= len(frame) {
			return
		}
		mask := byte(1 << uint(pos%8))
		if field[i/8]&(1<<uint(i%8)) != 0 {
			frame[pos/8] |= mask
		} else {
			frame[pos/8] &^= mask
		}
	}
}
