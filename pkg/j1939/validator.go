// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package j1939

import "fmt"

// AnomalyType represents different types of packet anomalies
type AnomalyType int

const (
	AnomalyLengthMismatch AnomalyType = iota
	AnomalyUnknownLamp
	AnomalyUnknownAck
	AnomalyNonConformant
	AnomalyDuplicateDTC
	AnomalyInvalidValue
	AnomalyCRCError
	AnomalyDecodeError
)

var anomalyNames = map[AnomalyType]string{
	AnomalyLengthMismatch: "length mismatch",
	AnomalyUnknownLamp:    "unknown lamp pattern",
	AnomalyUnknownAck:     "unknown acknowledgment",
	AnomalyNonConformant:  "non-conformant",
	AnomalyDuplicateDTC:   "duplicate DTC",
	AnomalyInvalidValue:   "invalid value",
	AnomalyCRCError:       "CRC error",
	AnomalyDecodeError:    "decode error",
}

func (a AnomalyType) String() string {
	if name, ok := anomalyNames[a]; ok {
		return name
	}
	return fmt.Sprintf("AnomalyType(%d)", int(a))
}

// ValidationError represents a packet validation failure
type ValidationError struct {
	Type    AnomalyType
	Message string
	Details map[string]interface{}
}

// Error implements the error interface
func (v *ValidationError) Error() string {
	return v.Message
}

// ValidatePacket checks a packet for protocol anomalies. Decoding never
// fails on these; they are reported for diagnostics only.
// Returns a slice of validation errors (empty if packet is valid)
func ValidatePacket(p *Packet) []ValidationError {
	errors := []ValidationError{}

	switch p.pgn {
	case PGNDM1, PGNDM2, PGNDM6, PGNDM12, PGNDM23, PGNDM28:
		errors = append(errors, validateDTCPacket(p)...)
	case PGNDM25:
		errors = append(errors, validateDM25(p)...)
	case PGNDM30:
		errors = append(errors, validateStride(p, "DM30", 0, scaledTestResultSize)...)
	case PGNDM24:
		errors = append(errors, validateStride(p, "DM24", 0, supportedSPNSize)...)
	case PGNDM31:
		errors = append(errors, validateDM31(p)...)
	case PGNDM20:
		errors = append(errors, validateDM20(p)...)
	case PGNAcknowledgment:
		errors = append(errors, validateAcknowledgment(p)...)
	case PGNRequest:
		if len(p.data) != requestSize {
			errors = append(errors, lengthMismatch("Request", len(p.data), requestSize))
		}
	case PGNDM7:
		if len(p.data) != dm7Size {
			errors = append(errors, lengthMismatch("DM7", len(p.data), dm7Size))
		}
	}

	return errors
}

func lengthMismatch(name string, length, expected int) ValidationError {
	return ValidationError{
		Type:    AnomalyLengthMismatch,
		Message: fmt.Sprintf("%s payload length mismatch (%d bytes, expected %d)", name, length, expected),
		Details: map[string]interface{}{"length": length, "expected": expected},
	}
}

// validateStride flags payloads longer than one frame whose records do not
// divide evenly. Single frames may carry 0xFF padding.
func validateStride(p *Packet, name string, header, stride int) []ValidationError {
	n := len(p.data)
	if n < minimumFrameSize {
		return []ValidationError{{
			Type:    AnomalyLengthMismatch,
			Message: fmt.Sprintf("%s payload too short (%d bytes, minimum %d)", name, n, minimumFrameSize),
			Details: map[string]interface{}{"length": n, "minimum": minimumFrameSize},
		}}
	}
	if n > minimumFrameSize && (n-header)%stride != 0 {
		return []ValidationError{{
			Type:    AnomalyLengthMismatch,
			Message: fmt.Sprintf("%s has %d trailing bytes (record size %d)", name, (n-header)%stride, stride),
			Details: map[string]interface{}{"length": n, "stride": stride},
		}}
	}
	return nil
}

func validateLamps(name string, lamps Lamps) []ValidationError {
	errors := []ValidationError{}
	for id, l := range lamps {
		if l.Status != LampOther {
			continue
		}
		errors = append(errors, ValidationError{
			Type:    AnomalyUnknownLamp,
			Message: fmt.Sprintf("%s %s lamp has undefined pattern (on/off=%d, flash=%d)", name, LampID(id), l.OnOff, l.Flash),
			Details: map[string]interface{}{"lamp": LampID(id).String(), "on_off": l.OnOff, "flash": l.Flash},
		})
	}
	return errors
}

// validateDTCPacket validates DM1, DM2, DM6, DM12, DM23 and DM28
func validateDTCPacket(p *Packet) []ValidationError {
	d := NewDTCPacket(p)
	errors := validateStride(p, d.Name(), 2, dtcRecordSize)
	errors = append(errors, validateLamps(d.Name(), d.Lamps())...)

	seen := map[DTCKey]bool{}
	for _, dtc := range d.DTCs() {
		if seen[dtc.Key()] {
			errors = append(errors, ValidationError{
				Type:    AnomalyDuplicateDTC,
				Message: fmt.Sprintf("%s reports SPN %d FMI %d more than once", d.Name(), dtc.SPN(), dtc.FMI()),
				Details: map[string]interface{}{"spn": dtc.SPN(), "fmi": dtc.FMI()},
			})
		}
		seen[dtc.Key()] = true
	}
	return errors
}

// validateDM25 reports chunks read with the zero-length fallback
func validateDM25(p *Packet) []ValidationError {
	d := NewDM25Packet(p)
	if !d.IsNonConformant() {
		return nil
	}
	return []ValidationError{{
		Type:    AnomalyNonConformant,
		Message: "DM25 chunk declares length 0 with a non-empty DTC, read as 8 bytes",
		Details: map[string]interface{}{"length": len(p.data)},
	}}
}

func validateDM31(p *Packet) []ValidationError {
	d := NewDM31Packet(p)
	errors := validateStride(p, "DM31", 0, lampAssociationSize)
	for _, a := range d.Associations() {
		errors = append(errors, validateLamps(fmt.Sprintf("DM31 SPN %d", a.DTC().SPN()), a.Lamps())...)
	}
	return errors
}

func validateDM20(p *Packet) []ValidationError {
	d := NewDM20Packet(p)
	errors := validateStride(p, "DM20", performanceRatioHeader, performanceRatioSize)
	for _, r := range d.Ratios() {
		if r.Numerator() == testValueNotAvailable || r.Denominator() == testValueNotAvailable {
			continue
		}
		if r.Denominator() > 0 && r.Numerator() > r.Denominator() {
			errors = append(errors, ValidationError{
				Type:    AnomalyInvalidValue,
				Message: fmt.Sprintf("DM20 SPN %d numerator exceeds denominator (%d > %d)", r.SPN(), r.Numerator(), r.Denominator()),
				Details: map[string]interface{}{"spn": r.SPN(), "numerator": r.Numerator(), "denominator": r.Denominator()},
			})
		}
	}
	return errors
}

func validateAcknowledgment(p *Packet) []ValidationError {
	errors := []ValidationError{}
	if len(p.data) != acknowledgmentSize {
		return []ValidationError{lengthMismatch("Acknowledgment", len(p.data), acknowledgmentSize)}
	}
	a := NewAcknowledgmentPacket(p)
	if !a.Response().Known() {
		errors = append(errors, ValidationError{
			Type:    AnomalyUnknownAck,
			Message: fmt.Sprintf("Acknowledgment control byte %s", a.Response()),
			Details: map[string]interface{}{"control": uint8(a.Response())},
		})
	}
	return errors
}
