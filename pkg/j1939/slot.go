// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package j1939

import (
	"bytes"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// SlotType is the data type tag of a SLOT definition
type SlotType int

// Slot type values
const (
	SlotUnsigned SlotType = iota
	SlotSigned // offset binary, excess 2^(n-1)
	SlotBitfield
	SlotASCII
)

var slotTypeNames = map[SlotType]string{
	SlotUnsigned: "unsigned",
	SlotSigned:   "signed",
	SlotBitfield: "bitfield",
	SlotASCII:    "ascii",
}

func (t SlotType) String() string {
	if name, ok := slotTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("SlotType(%d)", int(t))
}

// ParseSlotType parses the textual type tag used in definition files.
func ParseSlotType(s string) (SlotType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "unsigned", "uint", "unsigned integer":
		return SlotUnsigned, nil
	case "signed", "int", "signed integer":
		return SlotSigned, nil
	case "bitfield", "bit field", "bits":
		return SlotBitfield, nil
	case "ascii", "string":
		return SlotASCII, nil
	}
	return 0, fmt.Errorf("unknown slot type %q", s)
}

// ValueState tells whether a decoded field holds a physical value or one of
// the J1939 reserved indications.
type ValueState int

// Value states
const (
	ValueValid ValueState = iota
	ValueNotAvailable
	ValueError
	ValueSpecial // 0xFBxx, parameter-specific indication
)

func (s ValueState) String() string {
	switch s {
	case ValueValid:
		return "valid"
	case ValueNotAvailable:
		return "not available"
	case ValueError:
		return "error"
	case ValueSpecial:
		return "special"
	}
	return fmt.Sprintf("ValueState(%d)", int(s))
}

// Value is the result of decoding a field through a Slot.
// Physical is only meaningful when State is ValueValid.
type Value struct {
	State    ValueState
	Physical float64
	Raw      uint64
}

// Valid returns true if the value holds a physical quantity
func (v Value) Valid() bool {
	return v.State == ValueValid
}

// SlotConfig holds the fields of a SLOT definition
type SlotConfig struct {
	ID        int
	Name      string
	Type      SlotType
	Scaling   *float64
	Offset    *float64
	Unit      string
	BitLength int
	// Delimited marks variable-length ASCII fields terminated by '*' or NUL
	Delimited bool
}

// Slot is a Scaling/Limit/Offset/Transfer function definition.
// A Slot is immutable and shared by every SPN that uses it.
type Slot struct {
	id        int
	name      string
	typ       SlotType
	scaling   float64
	offset    float64
	hasScale  bool
	hasOffset bool
	unit      string
	bitLength int
	delimited bool
}

// NewSlot builds a Slot from its definition
func NewSlot(c SlotConfig) *Slot {
	s := &Slot{
		id:        c.ID,
		name:      c.Name,
		typ:       c.Type,
		scaling:   1,
		unit:      c.Unit,
		bitLength: c.BitLength,
		delimited: c.Delimited,
	}
	if c.Scaling != nil && *c.Scaling != 0 {
		s.scaling = *c.Scaling
		s.hasScale = true
	}
	if c.Offset != nil {
		s.offset = *c.Offset
		s.hasOffset = true
	}
	return s
}

// ID returns the SLOT number
func (s *Slot) ID() int { return s.id }

// Name returns the SLOT identifier, e.g. "SAEtp01"
func (s *Slot) Name() string { return s.name }

// Type returns the data type tag
func (s *Slot) Type() SlotType { return s.typ }

// Unit returns the physical unit, possibly empty
func (s *Slot) Unit() string { return s.unit }

// BitLength returns the field width in bits
func (s *Slot) BitLength() int { return s.bitLength }

// Delimited reports whether the field is a '*'-terminated ASCII field
func (s *Slot) Delimited() bool { return s.delimited }

// ByteLength returns ceil(BitLength / 8)
func (s *Slot) ByteLength() int {
	return (s.bitLength + 7) / 8
}

// Scaling returns the scaling factor and whether one was defined
func (s *Slot) Scaling() (float64, bool) { return s.scaling, s.hasScale }

// Offset returns the offset and whether one was defined
func (s *Slot) Offset() (float64, bool) { return s.offset, s.hasOffset }

func (s *Slot) String() string {
	return fmt.Sprintf("SLOT %d %s (%s, %d bits, x%g %+g %s)",
		s.id, s.name, s.typ, s.bitLength, s.scaling, s.offset, s.unit)
}

func (s *Slot) mask() uint64 {
	if s.bitLength >= 64 || s.bitLength <= 0 {
		return math.MaxUint64
	}
	return 1<<uint(s.bitLength) - 1
}

// raw packs up to eight little-endian bytes and masks them to the field width.
func (s *Slot) raw(data []byte) uint64 {
	var v uint64
	for i := 0; i < len(data) && i < 8; i++ {
		v |= uint64(data[i]) << (8 * uint(i))
	}
	return v & s.mask()
}

// state classifies data before any scaling is applied.
func (s *Slot) state(data []byte) ValueState {
	if len(data) == 0 {
		return ValueNotAvailable
	}
	if s.typ == SlotASCII || s.bitLength <= 1 || s.bitLength > 64 {
		return ValueValid
	}
	raw := s.raw(data)

	if s.typ == SlotBitfield || s.bitLength%8 != 0 {
		mask := s.mask()
		switch raw {
		case mask:
			return ValueNotAvailable
		case mask - 1:
			return ValueError
		}
		return ValueValid
	}

	top := byte(raw >> (8 * uint(s.ByteLength()-1)))
	switch top {
	case 0xFF:
		return ValueNotAvailable
	case 0xFE:
		return ValueError
	case 0xFB:
		return ValueSpecial
	}
	return ValueValid
}

// Decode classifies and scales data
func (s *Slot) Decode(data []byte) Value {
	st := s.state(data)
	if len(data) == 0 || s.typ == SlotASCII {
		return Value{State: st}
	}
	v := Value{State: st, Raw: s.raw(data)}
	if st == ValueValid {
		v.Physical = s.physical(v.Raw)
	}
	return v
}

// bias is the excess added to signed fields on the wire. Signed fields are
// offset binary (raw = value + 2^(n-1)), so the reserved top-byte and mask
// patterns never collide with a negative value.
func (s *Slot) bias() int64 {
	if s.typ != SlotSigned || s.bitLength <= 0 || s.bitLength >= 64 {
		return 0
	}
	return int64(1) << uint(s.bitLength-1)
}

func (s *Slot) physical(raw uint64) float64 {
	x := float64(int64(raw) - s.bias())
	return x*s.scaling + s.offset
}

// DecodeValue returns the physical value of data, or false when data holds
// a reserved indication, is empty or is ASCII.
func (s *Slot) DecodeValue(data []byte) (float64, bool) {
	v := s.Decode(data)
	if s.typ == SlotASCII || !v.Valid() {
		return 0, false
	}
	return v.Physical, true
}

// IsNotAvailable reports whether data holds the "not available" indication
func (s *Slot) IsNotAvailable(data []byte) bool {
	return s.state(data) == ValueNotAvailable
}

// IsError reports whether data holds the "error" indication
func (s *Slot) IsError(data []byte) bool {
	return s.state(data) == ValueError
}

// IsSpecial reports whether data holds a 0xFBxx parameter-specific indication
func (s *Slot) IsSpecial(data []byte) bool {
	return s.state(data) == ValueSpecial
}

// DecodeString renders data for display.
func (s *Slot) DecodeString(data []byte, withUnits bool) string {
	if s.typ == SlotASCII && len(data) > 0 {
		return s.ascii(data)
	}
	v := s.Decode(data)
	switch v.State {
	case ValueNotAvailable:
		return "Not Available"
	case ValueError:
		return "Error"
	case ValueSpecial:
		return fmt.Sprintf("0x%0*X", s.ByteLength()*2, v.Raw)
	}
	if s.typ == SlotBitfield {
		return fmt.Sprintf("%0*b", s.bitLength, v.Raw)
	}
	out := strconv.FormatFloat(v.Physical, 'f', s.decimals(), 64)
	if withUnits && s.unit != "" {
		out += " " + s.unit
	}
	return out
}

func (s *Slot) ascii(data []byte) string {
	if s.delimited {
		if i := bytes.IndexAny(data, "*\x00"); i >= 0 {
			data = data[:i]
		}
	}
	return string(data)
}

// decimals returns the number of fractional digits needed to show one step
// of the scaling and the offset exactly.
func (s *Slot) decimals() int {
	n := 0
	for _, f := range []float64{s.scaling, s.offset} {
		for d := 0; d <= 9; d++ {
			x := f * math.Pow10(d)
			if math.Abs(x-math.Round(x)) < 1e-9 {
				if d > n {
					n = d
				}
				break
			}
		}
	}
	return n
}

// Encode converts a physical value to the field's wire bytes: subtract the
// offset, divide by the scaling, truncate, add the signed bias, pack
// little-endian. Values below the field's range clamp to raw 0.
func (s *Slot) Encode(value float64) []byte {
	x := (value - s.offset) / s.scaling
	// absorb float noise such as 2.9999999999 before truncating
	eps := math.Max(1e-9, math.Abs(x)*1e-12)
	x = math.Trunc(x + math.Copysign(eps, x))
	var raw uint64
	if biased := x + float64(s.bias()); biased > 0 {
		raw = uint64(biased)
	}
	return s.pack(raw & s.mask())
}

// EncodeString encodes an ASCII value, appending the '*' delimiter when the
// field is delimited.
func (s *Slot) EncodeString(value string) []byte {
	b := []byte(value)
	if s.delimited {
		b = append(b, '*')
	}
	return b
}

// EncodeNotAvailable returns the "not available" pattern for the field.
func (s *Slot) EncodeNotAvailable() []byte {
	if s.typ == SlotASCII {
		return bytes.Repeat([]byte{0xFF}, s.ByteLength())
	}
	return s.pack(s.mask())
}

func (s *Slot) pack(raw uint64) []byte {
	out := make([]byte, s.ByteLength())
	for i := range out {
		if i < 8 {
			out[i] = byte(raw >> (8 * uint(i)))
		}
	}
	return out
}
