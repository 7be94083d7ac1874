// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package j1939

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

// ============================================================
// Field Extraction Tests
// ============================================================

func TestExtractField(t *testing.T) {
	data := []byte{0xF4, 0x20, 0x4E, 0x11, 0x22}
	tests := []struct {
		name      string
		startByte int
		startBit  int
		bitLength int
		expected  []byte
	}{
		{"aligned byte", 1, 1, 8, []byte{0xF4}},
		{"aligned word", 2, 1, 16, []byte{0x20, 0x4E}},
		{"low two bits", 1, 1, 2, []byte{0x00}},
		{"bits 3-4", 1, 3, 2, []byte{0x01}},
		{"high nibble", 1, 5, 4, []byte{0x0F}},
		{"crosses byte boundary", 1, 5, 8, []byte{0x0F}},
		{"past end", 5, 1, 16, nil},
		{"start beyond frame", 9, 1, 8, nil},
		{"undefined start", 0, 1, 8, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := extractField(data, tt.startByte, tt.startBit, tt.bitLength, false)
			if !bytes.Equal(got, tt.expected) {
				t.Errorf("Expected % X, got % X", tt.expected, got)
			}
		})
	}
}

func TestInsertField(t *testing.T) {
	frame := []byte{0xFF, 0xFF}
	insertField(frame, 1, 3, 2, []byte{0x01})
	if frame[0] != 0xF7 {
		t.Errorf("Expected 0xF7, got 0x%02X", frame[0])
	}
	insertField(frame, 1, 5, 8, []byte{0xA5})
	if frame[0] != 0x57 || frame[1] != 0xFA {
		t.Errorf("Expected 57 FA, got % X", frame)
	}
	back := extractField(frame, 1, 5, 8, false)
	if !bytes.Equal(back, []byte{0xA5}) {
		t.Errorf("Expected A5 back, got % X", back)
	}
}

// ============================================================
// Spn Tests
// ============================================================

func TestSpn_PadsAndTruncates(t *testing.T) {
	slot := engineSpeedSlot()
	short := NewSpn(190, "Engine Speed", slot, []byte{0x20})
	if !bytes.Equal(short.Bytes(), []byte{0x20, 0x00}) {
		t.Errorf("Expected zero padding, got % X", short.Bytes())
	}
	long := NewSpn(190, "Engine Speed", slot, []byte{0x20, 0x4E, 0x99})
	if !bytes.Equal(long.Bytes(), []byte{0x20, 0x4E}) {
		t.Errorf("Expected truncation, got % X", long.Bytes())
	}
	empty := NewSpn(190, "Engine Speed", slot, nil)
	if !empty.IsNotAvailable() {
		t.Error("Empty SPN should be not available")
	}
}

func TestSpn_EqualityAndOrder(t *testing.T) {
	a := NewSpn(190, "a", engineSpeedSlot(), []byte{1, 2})
	b := NewSpn(190, "b", temperatureSlot(), []byte{9})
	c := NewSpn(110, "c", temperatureSlot(), []byte{9})
	if !a.Equal(b) {
		t.Error("SPNs with the same id should be equal")
	}
	if a.Equal(c) {
		t.Error("SPNs with different ids should differ")
	}
	list := []Spn{a, c}
	SortSpns(list)
	if list[0].ID() != 110 {
		t.Errorf("Expected 110 first, got %d", list[0].ID())
	}
}

// ============================================================
// Generic Packet Tests
// ============================================================

func TestGenericPacket_EEC1(t *testing.T) {
	repo := DefaultRepository()
	g, err := CreateGenericPacket(repo, PGNEEC1, 0x00, map[uint32]float64{190: 1500, 513: 50})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	expected := []byte{0xFF, 0xFF, 0xAF, 0xE0, 0x2E, 0xFF, 0xFF, 0xFF}
	if !bytes.Equal(g.Bytes(), expected) {
		t.Errorf("Expected % X, got % X", expected, g.Bytes())
	}

	decoded := NewGenericPacket(NewPacket(PGNEEC1, 0x00, g.Bytes()), repo)
	spns := decoded.Spns()
	order := []uint32{899, 512, 513, 190, 1483, 1675, 2432}
	if len(spns) != len(order) {
		t.Fatalf("Expected %d SPNs, got %d", len(order), len(spns))
	}
	for i, id := range order {
		if spns[i].ID() != id {
			t.Errorf("Position %d: expected SPN %d, got %d", i, id, spns[i].ID())
		}
	}
	speed, _ := decoded.Spn(190)
	if v, ok := speed.Value(); !ok || v != 1500 {
		t.Errorf("Engine speed: expected 1500, got %v %v", v, ok)
	}
	torque, _ := decoded.Spn(513)
	if v, ok := torque.Value(); !ok || v != 50 {
		t.Errorf("Actual torque: expected 50, got %v %v", v, ok)
	}
	mode, _ := decoded.Spn(899)
	if !mode.IsNotAvailable() {
		t.Error("Unset 4-bit field should be not available")
	}
	if decoded.Name() != "EEC1" {
		t.Errorf("Expected acronym EEC1, got %s", decoded.Name())
	}
}

func TestGenericPacket_UnalignedFields(t *testing.T) {
	repo := DefaultRepository()
	data := []byte{0xF4, 0x00, 0x19, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}
	g := NewGenericPacket(NewPacket(PGNCCVS, 0x00, data), repo)

	axle, _ := g.Spn(69)
	if axle.StringValue(false) != "00" {
		t.Errorf("SPN 69: expected 00, got %s", axle.StringValue(false))
	}
	brake, _ := g.Spn(70)
	if brake.StringValue(false) != "01" {
		t.Errorf("SPN 70: expected 01, got %s", brake.StringValue(false))
	}
	speed, _ := g.Spn(84)
	if v, ok := speed.Value(); !ok || v != 25 {
		t.Errorf("SPN 84: expected 25 km/h, got %v %v", v, ok)
	}
}

func TestGenericPacket_ShortFrame(t *testing.T) {
	g := NewGenericPacket(NewPacket(PGNEngineTemp1, 0x00, []byte{0x7D, 0x7D, 0x00, 0x2A}), DefaultRepository())
	coolant, _ := g.Spn(110)
	if v, ok := coolant.Value(); !ok || v != 85 {
		t.Errorf("SPN 110: expected 85, got %v %v", v, ok)
	}
	for _, id := range []uint32{176, 52} {
		s, ok := g.Spn(id)
		if !ok {
			t.Fatalf("SPN %d missing", id)
		}
		if !s.IsNotAvailable() {
			t.Errorf("SPN %d beyond the frame should be not available", id)
		}
	}
}

func TestGenericPacket_VIN(t *testing.T) {
	g := NewGenericPacket(NewPacket(PGNVehicleID, 0x00, []byte("1M8GDM9AXKP042788*")), DefaultRepository())
	vin, ok := g.Spn(237)
	if !ok {
		t.Fatal("SPN 237 missing")
	}
	if vin.StringValue(false) != "1M8GDM9AXKP042788" {
		t.Errorf("Unexpected VIN %q", vin.StringValue(false))
	}
}

func TestGenericPacket_UnknownPGN(t *testing.T) {
	g := NewGenericPacket(NewPacket(0x1234, 0x00, []byte{1, 2, 3}), DefaultRepository())
	if len(g.Spns()) != 0 {
		t.Error("Unknown PGN should decode to no SPNs")
	}
	if !strings.Contains(g.String(), "PGN 4660") {
		t.Errorf("Unexpected string %q", g.String())
	}
}

func TestCreateGenericPacket_Errors(t *testing.T) {
	repo := DefaultRepository()
	if _, err := CreateGenericPacket(repo, 0x1234, 0, nil); !errors.Is(err, ErrUnknownPGN) {
		t.Errorf("Expected ErrUnknownPGN, got %v", err)
	}
	if _, err := CreateGenericPacket(repo, PGNEEC1, 0, map[uint32]float64{110: 1}); !errors.Is(err, ErrUnknownSPN) {
		t.Errorf("Expected ErrUnknownSPN, got %v", err)
	}
	if _, err := CreateGenericPacket(repo, PGNVehicleID, 0, map[uint32]float64{237: 1}); !errors.Is(err, ErrTextNotValue) {
		t.Errorf("Expected ErrTextNotValue, got %v", err)
	}
}

// ============================================================
// Repository Tests
// ============================================================

const testDefinitions = `
slots:
  - { id: 1, name: T, type: unsigned, scaling: 1, offset: -40, unit: "C", bit_length: 8 }
  - { id: 2, name: W, type: unsigned, scaling: 0.5, unit: "kPa", bit_length: 16 }
pgns:
  - pgn: 65000
    label: Test
    acronym: TST
    length: 8
    spns:
      - { spn: 9000, label: First, start_byte: 1, start_bit: 1, slot: 1 }
      - { spn: 9001, label: Second, start_byte: 2, start_bit: 1, slot: 2, bit_length: 12 }
spns:
  - { spn: 9002, label: Loose, slot: 2 }
fmis:
  12: Custom
addresses:
  0x80: Test Module
`

func TestLoadRepository(t *testing.T) {
	repo, err := LoadRepository(strings.NewReader(testDefinitions))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	def, ok := repo.FindPGN(65000)
	if !ok || len(def.Spns) != 2 || def.Acronym != "TST" {
		t.Fatalf("Unexpected PGN definition %+v", def)
	}
	if _, ok := repo.FindSPN(9002); !ok {
		t.Error("Standalone SPN should be found")
	}
	slot, ok := repo.FindSlot(2, 9001)
	if !ok || slot.BitLength() != 12 {
		t.Errorf("Expected 12-bit override, got %v", slot)
	}
	shared, _ := repo.FindSlot(2, 9002)
	if shared.BitLength() != 16 {
		t.Errorf("Override must not leak into the shared slot, got %d", shared.BitLength())
	}
	if repo.FMIDescription(12) != "Custom" {
		t.Errorf("FMI override not applied: %s", repo.FMIDescription(12))
	}
	if repo.FMIDescription(2) != "Data Erratic, Intermittent Or Incorrect" {
		t.Errorf("Built-in FMI missing: %s", repo.FMIDescription(2))
	}
	if repo.AddressName(0x80) != "Test Module (128)" {
		t.Errorf("Unexpected address name %s", repo.AddressName(0x80))
	}
	if repo.SPNName(9000) != "First" || repo.SPNName(1) != "Unknown" {
		t.Error("SPN names wrong")
	}
}

func TestLoadRepository_Invalid(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"unknown slot", "slots: []\npgns:\n  - { pgn: 1, spns: [ { spn: 5, slot: 3 } ] }\n"},
		{"bad type", "slots:\n  - { id: 1, type: float, bit_length: 8 }\n"},
		{"zero length", "slots:\n  - { id: 1, type: unsigned, bit_length: 0 }\n"},
		{"duplicate slot", "slots:\n  - { id: 1, bit_length: 8 }\n  - { id: 1, bit_length: 8 }\n"},
		{"spn out of range", "slots:\n  - { id: 1, bit_length: 8 }\nspns:\n  - { spn: 600000, slot: 1 }\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseRepository([]byte(tt.doc))
			if !errors.Is(err, ErrInvalidDefinition) {
				t.Errorf("Expected ErrInvalidDefinition, got %v", err)
			}
		})
	}
	if _, err := ParseRepository([]byte("slots: [")); err == nil {
		t.Error("Expected YAML error")
	}
}

func TestDefaultRepository(t *testing.T) {
	repo := DefaultRepository()
	if repo != DefaultRepository() {
		t.Error("DefaultRepository should be shared")
	}
	for _, pgn := range []uint32{PGNEEC1, PGNEngineTemp1, PGNEngineFluidLevel, PGNVehicleDistance,
		PGNEngineHours, PGNVehicleID, PGNCCVS, PGNDashDisplay} {
		if _, ok := repo.FindPGN(pgn); !ok {
			t.Errorf("PGN %d missing from embedded definitions", pgn)
		}
	}
	if len(repo.PGNs()) != 8 {
		t.Errorf("Expected 8 PGNs, got %d", len(repo.PGNs()))
	}
}
