// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package j1939

import (
	"errors"
	"fmt"
	"time"
)

// ErrCRCMismatch is wrapped by link decoders when a frame fails its checksum.
// Statistics counts errors matching it as CRC errors.
var ErrCRCMismatch = errors.New("CRC mismatch")

// Statistics tracks packet statistics and error rates
type Statistics struct {
	StartTime      time.Time
	LastUpdateTime time.Time

	// Counters
	TotalPackets      uint64
	ValidPackets      uint64
	CRCErrors         uint64
	DecodeErrors      uint64
	MalformedPackets  uint64
	LengthMismatches  uint64
	NonConformant     uint64
	UnknownEnumerants uint64
	DuplicateDTCs     uint64
	AnomalousValues   uint64

	// Per-PGN packet counts
	ByPGN map[uint32]uint64

	// Rates (calculated)
	PacketRate float64 // packets/sec
	ErrorRate  float64 // errors/sec
}

// NewStatistics creates a new statistics tracker
func NewStatistics() *Statistics {
	now := time.Now()
	return &Statistics{
		StartTime:      now,
		LastUpdateTime: now,
		ByPGN:          make(map[uint32]uint64),
	}
}

// Update updates statistics based on a packet and its errors
func (s *Statistics) Update(packet *Packet, decodeErr error, validationErrors []ValidationError) {
	s.TotalPackets++

	if decodeErr != nil {
		if errors.Is(decodeErr, ErrCRCMismatch) {
			s.CRCErrors++
		} else {
			s.DecodeErrors++
		}
		return
	}

	if packet != nil {
		s.ByPGN[packet.pgn]++
	}

	if len(validationErrors) > 0 {
		for _, err := range validationErrors {
			switch err.Type {
			case AnomalyLengthMismatch:
				s.LengthMismatches++
				s.MalformedPackets++
			case AnomalyNonConformant:
				s.NonConformant++
				s.MalformedPackets++
			case AnomalyUnknownLamp, AnomalyUnknownAck:
				s.UnknownEnumerants++
				s.AnomalousValues++
			case AnomalyDuplicateDTC:
				s.DuplicateDTCs++
				s.AnomalousValues++
			case AnomalyInvalidValue:
				s.AnomalousValues++
			case AnomalyCRCError:
				s.CRCErrors++
			case AnomalyDecodeError:
				s.DecodeErrors++
			}
		}
	} else {
		s.ValidPackets++
	}

	s.LastUpdateTime = time.Now()
}

// CalculateRates calculates packet and error rates
func (s *Statistics) CalculateRates() {
	elapsed := time.Since(s.StartTime).Seconds()
	if elapsed > 0 {
		s.PacketRate = float64(s.TotalPackets) / elapsed
		errorCount := s.CRCErrors + s.DecodeErrors + s.MalformedPackets + s.AnomalousValues
		s.ErrorRate = float64(errorCount) / elapsed
	}
}

func percent(n, total uint64) float64 {
	if total == 0 {
		return 0
	}
	return float64(n) * 100.0 / float64(total)
}

// String returns a formatted statistics summary
func (s *Statistics) String() string {
	s.CalculateRates()
	elapsed := time.Since(s.StartTime)

	result := fmt.Sprintf("=== Statistics (%.0f seconds) ===\n", elapsed.Seconds())
	result += fmt.Sprintf("Total Packets:   %8d\n", s.TotalPackets)
	result += fmt.Sprintf("Valid Packets:   %8d (%.1f%%)\n", s.ValidPackets, percent(s.ValidPackets, s.TotalPackets))

	if s.CRCErrors > 0 {
		result += fmt.Sprintf("CRC Errors:      %8d (%.1f%%)\n", s.CRCErrors, percent(s.CRCErrors, s.TotalPackets))
	}
	if s.DecodeErrors > 0 {
		result += fmt.Sprintf("Decode Errors:   %8d (%.1f%%)\n", s.DecodeErrors, percent(s.DecodeErrors, s.TotalPackets))
	}
	if s.MalformedPackets > 0 {
		result += fmt.Sprintf("Malformed Pkts:  %8d (%.1f%%)\n", s.MalformedPackets, percent(s.MalformedPackets, s.TotalPackets))
		if s.LengthMismatches > 0 {
			result += fmt.Sprintf("  Length Mismatch:  %5d\n", s.LengthMismatches)
		}
		if s.NonConformant > 0 {
			result += fmt.Sprintf("  Non-conformant:   %5d\n", s.NonConformant)
		}
	}
	if s.AnomalousValues > 0 {
		result += fmt.Sprintf("Anomalous Values:%8d (%.1f%%)\n", s.AnomalousValues, percent(s.AnomalousValues, s.TotalPackets))
		if s.UnknownEnumerants > 0 {
			result += fmt.Sprintf("  Unknown Codes:    %5d\n", s.UnknownEnumerants)
		}
		if s.DuplicateDTCs > 0 {
			result += fmt.Sprintf("  Duplicate DTCs:   %5d\n", s.DuplicateDTCs)
		}
	}

	result += fmt.Sprintf("Packet Rate:     %8.1f pkts/sec\n", s.PacketRate)
	result += fmt.Sprintf("Error Rate:      %8.1f errors/sec\n", s.ErrorRate)
	result += "================================\n"

	return result
}

// Reset resets all statistics counters
func (s *Statistics) Reset() {
	*s = *NewStatistics()
}
