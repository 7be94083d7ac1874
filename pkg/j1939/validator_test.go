// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package j1939

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

// ============================================================
// Validator Tests
// ============================================================

func hasAnomaly(errs []ValidationError, typ AnomalyType) bool {
	for _, e := range errs {
		if e.Type == typ {
			return true
		}
	}
	return false
}

func TestValidatePacket(t *testing.T) {
	dup := CreateDiagnosticTroubleCode(100, 1, 0, 1)
	tests := []struct {
		name     string
		packet   *Packet
		expected []AnomalyType
	}{
		{
			"clean DM1",
			CreateDM1(0x00, NewLamps(LampOff, LampOff, LampOff, LampOff), dup).Raw(),
			nil,
		},
		{
			"short DM1",
			NewPacket(PGNDM1, 0x00, []byte{0x00, 0xFF, 0x7B}),
			[]AnomalyType{AnomalyLengthMismatch},
		},
		{
			"DM1 trailing bytes",
			NewPacket(PGNDM1, 0x00, []byte{0x00, 0xFF, 1, 0, 1, 1, 2, 0, 1, 1, 9}),
			[]AnomalyType{AnomalyLengthMismatch},
		},
		{
			"duplicate DTC",
			CreateDM1(0x00, NewLamps(LampOff, LampOff, LampOff, LampOff), dup, dup).Raw(),
			[]AnomalyType{AnomalyDuplicateDTC},
		},
		{
			"undefined lamp pattern",
			NewPacket(PGNDM12, 0x00, []byte{0x80, 0x80, 0x7B, 0x00, 0x0C, 0x01, 0xFF, 0xFF}),
			[]AnomalyType{AnomalyUnknownLamp},
		},
		{
			"DM25 zero length chunk",
			NewPacket(PGNDM25, 0x00, []byte{0x00, 0x7B, 0x00, 0x0C, 0x01, 1, 2, 3, 4}),
			[]AnomalyType{AnomalyNonConformant},
		},
		{
			"DM25 empty",
			CreateDM25(0x00).Raw(),
			nil,
		},
		{
			"DM30 partial record",
			NewPacket(PGNDM30, 0x00, make([]byte, 13)),
			[]AnomalyType{AnomalyLengthMismatch},
		},
		{
			"DM20 ratio above one",
			CreateDM20(0x00, 10, 10, CreatePerformanceRatio(3216, 9, 3, 0x00)).Raw(),
			[]AnomalyType{AnomalyInvalidValue},
		},
		{
			"unknown acknowledgment",
			NewPacket(PGNAcknowledgment, 0x00, []byte{0x07, 0xFF, 0xFF, 0xFF, 0xF9, 0xCA, 0xFE, 0x00}),
			[]AnomalyType{AnomalyUnknownAck},
		},
		{
			"short acknowledgment",
			NewPacket(PGNAcknowledgment, 0x00, []byte{0x00}),
			[]AnomalyType{AnomalyLengthMismatch},
		},
		{
			"long request",
			NewPacket(PGNRequest, 0xF9, []byte{0xCA, 0xFE, 0x00, 0x00}),
			[]AnomalyType{AnomalyLengthMismatch},
		},
		{
			"generic PGN is never flagged",
			NewPacket(PGNEEC1, 0x00, []byte{1}),
			nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := ValidatePacket(tt.packet)
			if len(tt.expected) == 0 && len(errs) != 0 {
				t.Fatalf("Expected no anomalies, got %v", errs)
			}
			for _, typ := range tt.expected {
				if !hasAnomaly(errs, typ) {
					t.Errorf("Expected %s in %v", typ, errs)
				}
			}
		})
	}
}

func TestValidationError_Error(t *testing.T) {
	errs := ValidatePacket(NewPacket(PGNRequest, 0xF9, []byte{0xCA}))
	if len(errs) != 1 {
		t.Fatalf("Expected one anomaly, got %d", len(errs))
	}
	var err error = &errs[0]
	var target *ValidationError
	if !errors.As(err, &target) {
		t.Fatal("ValidationError should satisfy errors.As")
	}
	if !strings.Contains(err.Error(), "Request payload length mismatch") {
		t.Errorf("Unexpected message %q", err.Error())
	}
}

func TestAnomalyType_String(t *testing.T) {
	if AnomalyDuplicateDTC.String() != "duplicate DTC" {
		t.Errorf("Unexpected name %s", AnomalyDuplicateDTC)
	}
	if AnomalyType(99).String() != "AnomalyType(99)" {
		t.Errorf("Unexpected fallback %s", AnomalyType(99))
	}
}

// ============================================================
// Statistics Tests
// ============================================================

func TestStatistics_Update(t *testing.T) {
	s := NewStatistics()
	good := CreateDM1(0x00, NewLamps(LampOff, LampOff, LampOff, LampOff)).Raw()
	bad := NewPacket(PGNDM1, 0x00, []byte{0x00})

	s.Update(good, nil, ValidatePacket(good))
	s.Update(bad, nil, ValidatePacket(bad))
	s.Update(nil, fmt.Errorf("%w: expected 0x1234, got 0x4321", ErrCRCMismatch), nil)
	s.Update(nil, errors.New("truncated frame"), nil)
	// Only the sentinel counts, not the wording
	s.Update(nil, errors.New("CRC mismatch in unrelated text"), nil)

	if s.TotalPackets != 5 {
		t.Errorf("Expected 5 packets, got %d", s.TotalPackets)
	}
	if s.CRCErrors != 1 || s.DecodeErrors != 2 {
		t.Errorf("Expected 1 CRC and 2 decode errors, got %d/%d", s.CRCErrors, s.DecodeErrors)
	}
	if s.ValidPackets != 1 {
		t.Errorf("Expected 1 valid packet, got %d", s.ValidPackets)
	}
	if s.LengthMismatches != 1 || s.MalformedPackets != 1 {
		t.Errorf("Expected one malformed packet, got %d/%d", s.LengthMismatches, s.MalformedPackets)
	}
	if s.CRCErrors != 1 || s.DecodeErrors != 1 {
		t.Errorf("Expected one CRC and one decode error, got %d/%d", s.CRCErrors, s.DecodeErrors)
	}
	if s.ByPGN[PGNDM1] != 2 {
		t.Errorf("Expected 2 DM1 packets, got %d", s.ByPGN[PGNDM1])
	}

	out := s.String()
	for _, want := range []string{"Total Packets:", "CRC Errors:", "Length Mismatch:"} {
		if !strings.Contains(out, want) {
			t.Errorf("Summary missing %q:\n%s", want, out)
		}
	}

	s.Reset()
	if s.TotalPackets != 0 || len(s.ByPGN) != 0 {
		t.Error("Reset should clear counters")
	}
}
