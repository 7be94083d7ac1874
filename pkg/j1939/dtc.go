// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package j1939

import "fmt"

// DiagnosticTroubleCode is a 4-byte J1939 DTC record.
//
//	byte0      SPN bits 0-7
//	byte1      SPN bits 8-15
//	byte2 5-7  SPN bits 16-18
//	byte2 0-4  FMI
//	byte3 7    conversion method
//	byte3 0-6  occurrence count
//
// Two DTCs are the same fault when SPN and FMI match; use Equal or Key
// rather than ==, which also compares the occurrence count.
type DiagnosticTroubleCode struct {
	spn uint32
	fmi uint8
	cm  uint8
	oc  uint8
}

// DTCKey is the comparable identity of a DTC
type DTCKey struct {
	SPN uint32
	FMI uint8
}

// NewDiagnosticTroubleCode decodes the first four bytes of b.
// Missing bytes are read as 0xFF.
func NewDiagnosticTroubleCode(b []byte) DiagnosticTroubleCode {
	var rec [dtcRecordSize]byte
	for i := range rec {
		if i < len(b) {
			rec[i] = b[i]
		} else {
			rec[i] = 0xFF
		}
	}
	return DiagnosticTroubleCode{
		spn: unpackSPN(rec[0], rec[1], rec[2]),
		fmi: rec[2] & maxFMI,
		cm:  rec[3] >> 7,
		oc:  rec[3] & 0x7F,
	}
}

// CreateDiagnosticTroubleCode builds a DTC from field values. Values are
// masked to their field widths.
func CreateDiagnosticTroubleCode(spn uint32, fmi, cm, oc uint8) DiagnosticTroubleCode {
	return DiagnosticTroubleCode{
		spn: spn & maxSPN,
		fmi: fmi & maxFMI,
		cm:  cm & 0x01,
		oc:  oc & 0x7F,
	}
}

// SPN returns the suspect parameter number
func (d DiagnosticTroubleCode) SPN() uint32 { return d.spn }

// FMI returns the failure mode identifier
func (d DiagnosticTroubleCode) FMI() uint8 { return d.fmi }

// ConversionMethod returns the SPN conversion method bit
func (d DiagnosticTroubleCode) ConversionMethod() uint8 { return d.cm }

// OccurrenceCount returns the occurrence count
func (d DiagnosticTroubleCode) OccurrenceCount() uint8 { return d.oc }

// Key returns the (SPN, FMI) identity
func (d DiagnosticTroubleCode) Key() DTCKey {
	return DTCKey{SPN: d.spn, FMI: d.fmi}
}

// Equal reports whether both DTCs name the same fault
func (d DiagnosticTroubleCode) Equal(o DiagnosticTroubleCode) bool {
	return d.spn == o.spn && d.fmi == o.fmi
}

// Bytes returns the wire encoding
func (d DiagnosticTroubleCode) Bytes() [dtcRecordSize]byte {
	var b [dtcRecordSize]byte
	d.put(b[:])
	return b
}

func (d DiagnosticTroubleCode) put(dst []byte) {
	packSPN(dst, d.spn, d.fmi)
	dst[3] = d.cm<<7 | d.oc&0x7F
}

// isPadding reports whether the record is filler rather than a fault
func (d DiagnosticTroubleCode) isPadding() bool {
	return d.spn == SPNNone || d.spn == SPNAllOnes
}

func (d DiagnosticTroubleCode) String() string {
	return d.Format(nil)
}

// Format renders the DTC using l for SPN and FMI names.
func (d DiagnosticTroubleCode) Format(l Labels) string {
	l = labelsOrDefault(l)
	s := fmt.Sprintf("DTC %d:%d - %s, %s", d.spn, d.fmi, l.SPNName(d.spn), l.FMIDescription(d.fmi))
	if d.oc != OccurrenceNotApplicable && d.oc != OccurrenceNotApplicableShort {
		s += fmt.Sprintf(" - %d times", d.oc)
	}
	return s
}

// ContainsDTC reports whether dtcs holds the same fault as d
func ContainsDTC(dtcs []DiagnosticTroubleCode, d DiagnosticTroubleCode) bool {
	for _, x := range dtcs {
		if x.Equal(d) {
			return true
		}
	}
	return false
}
