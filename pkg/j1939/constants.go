// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package j1939 decodes and encodes SAE J1939 diagnostic messages.
//
// It covers the DMxx family used by OBD and HD-OBD test tools: DTC lists
// (DM1, DM2, DM6, DM12, DM23, DM28), freeze frames (DM25), scaled test
// results (DM30), supported SPNs (DM24), lamp associations (DM31),
// performance ratios (DM20) and the Acknowledgment message. Numeric fields
// are decoded through SLOT transfer functions looked up in a read-only
// definition repository.
//
// All packet types are immutable once built. Derived lists are computed
// once on first access and are safe to read from several goroutines.
package j1939

// Parameter group numbers
const (
	PGNAcknowledgment   = 0xE800 // 59392
	PGNRequest          = 0xEA00 // 59904
	PGNDM7              = 0xE300 // 58112, command non-continuously monitored test
	PGNDM30             = 0xA400 // 41984, scaled test results
	PGNDM31             = 0xA300 // 41728, DTC to lamp association
	PGNDM20             = 0xC200 // 49664, monitor performance ratio
	PGNDM1              = 0xFECA // 65226, active DTCs
	PGNDM2              = 0xFECB // 65227, previously active DTCs
	PGNDM6              = 0xFECF // 65231, pending DTCs
	PGNDM12             = 0xFED4 // 65236, emissions related active DTCs
	PGNDM23             = 0xFDB5 // 64949, previously MIL-on DTCs
	PGNDM28             = 0xFD80 // 64896, permanent DTCs
	PGNDM24             = 0xFDB6 // 64950, SPN support
	PGNDM25             = 0xFDB7 // 64951, expanded freeze frame
	PGNComponentID      = 0xFEEB // 65259
	PGNVehicleID        = 0xFEEC // 65260
	PGNEngineHours      = 0xFEE5 // 65253
	PGNEngineTemp1      = 0xFEEE // 65262
	PGNEngineFluidLevel = 0xFEEF // 65263
	PGNEEC1             = 0xF004 // 61444
	PGNCCVS             = 0xFEF1 // 65265
	PGNVehicleDistance  = 0xFEE0 // 65248
	PGNDashDisplay      = 0xFEFC // 65276
)

// Addresses
const (
	AddressGlobal = 0xFF
	AddressNull   = 0xFE
	AddressTool   = 0xF9 // off-board diagnostic-service tool #1
)

// Sentinel SPN values that mark padding records rather than faults
const (
	SPNNone    = 0
	SPNAllOnes = 0x7FFFF // 524287
	maxSPN     = SPNAllOnes
	maxFMI     = 0x1F
)

// Occurrence count values meaning "not applicable"
const (
	OccurrenceNotApplicable      = 0x7F
	OccurrenceNotApplicableShort = 0x3F
)

// Wire record sizes
const (
	dtcRecordSize            = 4
	lampAssociationSize      = 6
	scaledTestResultSize     = 12
	supportedSPNSize         = 4
	performanceRatioSize     = 7
	performanceRatioHeader   = 4
	minimumFrameSize         = 8
	acknowledgmentSize       = 8
	requestSize              = 3
	dm7Size                  = 8
	freezeFrameFallbackChunk = 8
)

// 16-bit test value sentinels used by DM30
const (
	testValueNotAvailable = 0xFFFF
	testValueInitialized  = 0xFB00
)

// pgnNames maps diagnostic PGNs to their short DM names.
var pgnNames = map[uint32]string{
	PGNAcknowledgment: "Acknowledgment",
	PGNRequest:        "Request",
	PGNDM1:            "DM1",
	PGNDM2:            "DM2",
	PGNDM6:            "DM6",
	PGNDM7:            "DM7",
	PGNDM12:           "DM12",
	PGNDM20:           "DM20",
	PGNDM23:           "DM23",
	PGNDM24:           "DM24",
	PGNDM25:           "DM25",
	PGNDM28:           "DM28",
	PGNDM30:           "DM30",
	PGNDM31:           "DM31",
}

// pgnDMNumbers maps "DM" numbers to PGNs for the messages this package decodes.
var pgnDMNumbers = map[int]uint32{
	1:  PGNDM1,
	2:  PGNDM2,
	6:  PGNDM6,
	12: PGNDM12,
	20: PGNDM20,
	23: PGNDM23,
	24: PGNDM24,
	25: PGNDM25,
	28: PGNDM28,
	30: PGNDM30,
	31: PGNDM31,
}

// PGNForDM returns the PGN of diagnostic message DMn.
func PGNForDM(n int) (uint32, bool) {
	pgn, ok := pgnDMNumbers[n]
	return pgn, ok
}
