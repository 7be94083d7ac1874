// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package j1939

import (
	"strings"
	"testing"
)

// ============================================================
// DTC Codec Tests
// ============================================================

func TestDTC_Encode(t *testing.T) {
	tests := []struct {
		name     string
		dtc      DiagnosticTroubleCode
		expected [4]byte
	}{
		{"spn 123 fmi 12", CreateDiagnosticTroubleCode(123, 12, 0, 1), [4]byte{0x7B, 0x00, 0x0C, 0x01}},
		{"high spn bits", CreateDiagnosticTroubleCode(0x7F000, 1, 0, 0), [4]byte{0x00, 0xF0, 0xE1, 0x00}},
		{"conversion method", CreateDiagnosticTroubleCode(100, 1, 1, 5), [4]byte{0x64, 0x00, 0x01, 0x85}},
		{"all ones", CreateDiagnosticTroubleCode(SPNAllOnes, 31, 1, 127), [4]byte{0xFF, 0xFF, 0xFF, 0xFF}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.dtc.Bytes()
			if got != tt.expected {
				t.Errorf("Expected % X, got % X", tt.expected, got)
			}
		})
	}
}

func TestDTC_Decode(t *testing.T) {
	d := NewDiagnosticTroubleCode([]byte{0x00, 0xF0, 0xE1, 0x85})
	if d.SPN() != 0x7F000 {
		t.Errorf("Expected SPN 0x7F000, got 0x%X", d.SPN())
	}
	if d.FMI() != 1 {
		t.Errorf("Expected FMI 1, got %d", d.FMI())
	}
	if d.ConversionMethod() != 1 {
		t.Errorf("Expected CM 1, got %d", d.ConversionMethod())
	}
	if d.OccurrenceCount() != 5 {
		t.Errorf("Expected OC 5, got %d", d.OccurrenceCount())
	}
}

func TestDTC_DecodeShortInput(t *testing.T) {
	// Missing bytes read as 0xFF and must not panic
	d := NewDiagnosticTroubleCode([]byte{0x7B})
	if d.SPN() != 0x7FF7B {
		t.Errorf("Expected SPN 0x7FF7B, got 0x%X", d.SPN())
	}
}

func TestDTC_CreateMasksFields(t *testing.T) {
	d := CreateDiagnosticTroubleCode(0xFFFFFF, 0xFF, 0xFF, 0xFF)
	if d.SPN() != SPNAllOnes || d.FMI() != 31 || d.ConversionMethod() != 1 || d.OccurrenceCount() != 127 {
		t.Errorf("Fields not masked: %d %d %d %d", d.SPN(), d.FMI(), d.ConversionMethod(), d.OccurrenceCount())
	}
}

func TestDTC_EqualityIgnoresOccurrenceCount(t *testing.T) {
	a := CreateDiagnosticTroubleCode(100, 1, 0, 5)
	b := CreateDiagnosticTroubleCode(100, 1, 0, 99)
	c := CreateDiagnosticTroubleCode(100, 1, 1, 5)
	d := CreateDiagnosticTroubleCode(100, 2, 0, 5)

	if !a.Equal(b) {
		t.Error("DTCs differing only in OC should be equal")
	}
	if !a.Equal(c) {
		t.Error("DTCs differing only in CM should be equal")
	}
	if a.Equal(d) {
		t.Error("DTCs with different FMI should differ")
	}
	if a.Key() != b.Key() {
		t.Error("Keys should match")
	}

	seen := map[DTCKey]bool{a.Key(): true}
	if !seen[b.Key()] {
		t.Error("Key should work as a map key")
	}
	if !ContainsDTC([]DiagnosticTroubleCode{d, b}, a) {
		t.Error("ContainsDTC should match by SPN and FMI")
	}
}

func TestDTC_String(t *testing.T) {
	tests := []struct {
		name     string
		dtc      DiagnosticTroubleCode
		expected string
	}{
		{
			"with occurrence count",
			CreateDiagnosticTroubleCode(123, 12, 0, 1),
			"DTC 123:12 - Unknown, Bad Intelligent Device Or Component - 1 times",
		},
		{
			"count not applicable",
			CreateDiagnosticTroubleCode(123, 12, 0, OccurrenceNotApplicable),
			"DTC 123:12 - Unknown, Bad Intelligent Device Or Component",
		},
		{
			"short not applicable",
			CreateDiagnosticTroubleCode(123, 12, 0, OccurrenceNotApplicableShort),
			"DTC 123:12 - Unknown, Bad Intelligent Device Or Component",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.dtc.String(); got != tt.expected {
				t.Errorf("Expected %q, got %q", tt.expected, got)
			}
		})
	}
}

func TestDTC_FormatWithRepository(t *testing.T) {
	d := CreateDiagnosticTroubleCode(110, 0, 0, 3)
	got := d.Format(DefaultRepository())
	if !strings.Contains(got, "Engine Coolant Temperature") {
		t.Errorf("Expected SPN name in %q", got)
	}
	if !strings.Contains(got, "Most Severe Level") {
		t.Errorf("Expected FMI description in %q", got)
	}
}

// ============================================================
// Lamp Tests
// ============================================================

func TestLampFromBits(t *testing.T) {
	tests := []struct {
		onOff, flash uint8
		expected     LampStatus
	}{
		{0, 3, LampOff},
		{0, 0, LampAlternateOff},
		{1, 3, LampOn},
		{1, 0, LampSlowFlash},
		{1, 1, LampFastFlash},
		{3, 3, LampNotSupported},
		{2, 2, LampOther},
		{1, 2, LampOther},
		{0, 1, LampOther},
	}
	for _, tt := range tests {
		l := LampFromBits(tt.onOff, tt.flash)
		if l.Status != tt.expected {
			t.Errorf("(%d,%d): expected %s, got %s", tt.onOff, tt.flash, tt.expected, l.Status)
		}
	}
}

func TestLamp_OtherKeepsRawBits(t *testing.T) {
	l := LampFromBits(2, 1)
	if l.String() != "other (on/off=2, flash=1)" {
		t.Errorf("Unexpected string %q", l.String())
	}
	lamps := Lamps{l, NewLamp(LampOff), NewLamp(LampOff), NewLamp(LampOff)}
	onOff, flash := lamps.encode()
	back := decodeLamps(onOff, flash)
	if back[MalfunctionIndicator] != l {
		t.Errorf("Expected %v after round trip, got %v", l, back[MalfunctionIndicator])
	}
}

func TestLamps_BitPositions(t *testing.T) {
	// MIL on, stop slow flash, amber fast flash, protect not supported
	lamps := NewLamps(LampOn, LampSlowFlash, LampFastFlash, LampNotSupported)
	onOff, flash := lamps.encode()
	// on/off: 01 01 01 11
	if onOff != 0x57 {
		t.Errorf("Expected on/off 0x57, got 0x%02X", onOff)
	}
	// flash: 11 00 01 11
	if flash != 0xC7 {
		t.Errorf("Expected flash 0xC7, got 0x%02X", flash)
	}
	back := decodeLamps(onOff, flash)
	if back != lamps {
		t.Errorf("Round trip mismatch: %v != %v", back, lamps)
	}
}

func TestLamp_IsOn(t *testing.T) {
	for status, on := range map[LampStatus]bool{
		LampOff: false, LampAlternateOff: false, LampOn: true,
		LampSlowFlash: true, LampFastFlash: true, LampNotSupported: false,
	} {
		if NewLamp(status).IsOn() != on {
			t.Errorf("%s: expected IsOn=%v", status, on)
		}
	}
}
