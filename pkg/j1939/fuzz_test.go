// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package j1939

import (
	"bytes"
	"math/rand"
	"os"
	"strconv"
	"testing"
	"time"
)

// getFuzzRounds returns the number of fuzz rounds from FUZZ_ROUNDS env var, default 1000
func getFuzzRounds() int {
	if envRounds := os.Getenv("FUZZ_ROUNDS"); envRounds != "" {
		if rounds, err := strconv.Atoi(envRounds); err == nil && rounds > 0 {
			return rounds
		}
	}
	return 1000
}

// getFuzzSeed returns the seed from FUZZ_SEED env var, or generates one from current time
func getFuzzSeed() int64 {
	if envSeed := os.Getenv("FUZZ_SEED"); envSeed != "" {
		if seed, err := strconv.ParseInt(envSeed, 10, 64); err == nil {
			return seed
		}
	}
	return time.Now().UnixNano()
}

// newFuzzRng creates a new random number generator and logs the seed for reproducibility
func newFuzzRng(t *testing.T) *rand.Rand {
	seed := getFuzzSeed()
	t.Logf("Seed: %d (reproduce with FUZZ_SEED=%d)", seed, seed)
	return rand.New(rand.NewSource(seed))
}

func randomBytes(rng *rand.Rand, n int) []byte {
	b := make([]byte, n)
	rng.Read(b)
	return b
}

// ============================================================
// Round Trip Fuzz Tests
// ============================================================

func TestFuzz_DTCRoundTrip(t *testing.T) {
	rng := newFuzzRng(t)
	rounds := getFuzzRounds()

	for i := 0; i < rounds; i++ {
		spn := uint32(rng.Intn(maxSPN + 1))
		fmi := uint8(rng.Intn(maxFMI + 1))
		cm := uint8(rng.Intn(2))
		oc := uint8(rng.Intn(128))

		b := CreateDiagnosticTroubleCode(spn, fmi, cm, oc).Bytes()
		d := NewDiagnosticTroubleCode(b[:])
		if d.SPN() != spn || d.FMI() != fmi || d.ConversionMethod() != cm || d.OccurrenceCount() != oc {
			t.Fatalf("Round %d: %d:%d cm=%d oc=%d decoded as %d:%d cm=%d oc=%d",
				i, spn, fmi, cm, oc, d.SPN(), d.FMI(), d.ConversionMethod(), d.OccurrenceCount())
		}
	}
}

func TestFuzz_SlotRoundTrip(t *testing.T) {
	rng := newFuzzRng(t)
	rounds := getFuzzRounds()
	repo := DefaultRepository()

	var slots []*Slot
	for _, s := range repo.slots {
		if s.Type() == SlotUnsigned || s.Type() == SlotSigned {
			if s.BitLength()%8 == 0 && s.BitLength() <= 32 {
				slots = append(slots, s)
			}
		}
	}
	if len(slots) == 0 {
		t.Fatal("No numeric slots in embedded definitions")
	}

	for i := 0; i < rounds; i++ {
		s := slots[rng.Intn(len(slots))]
		raw := randomBytes(rng, s.ByteLength())
		// Stay below the reserved top-byte range
		raw[len(raw)-1] = byte(rng.Intn(0xFB))

		v, ok := s.DecodeValue(raw)
		if !ok {
			t.Fatalf("Round %d: slot %s rejected % X", i, s.Name(), raw)
		}
		back := s.Encode(v)
		if !bytes.Equal(back, raw) {
			t.Fatalf("Round %d: slot %s % X -> %v -> % X", i, s.Name(), raw, v, back)
		}
	}
}

func TestFuzz_SignedSlotRoundTrip(t *testing.T) {
	rng := newFuzzRng(t)
	rounds := getFuzzRounds()

	for i := 0; i < rounds; i++ {
		bits := 8 * (1 + rng.Intn(4))
		s := NewSlot(SlotConfig{Type: SlotSigned, Scaling: f64(1), BitLength: bits})
		// Largest raw below the reserved 0xFB top byte, minus the bias
		bias := int64(1) << uint(bits-1)
		maxRaw := int64(0xFA)<<uint(bits-8) | (int64(1)<<uint(bits-8) - 1)
		value := float64(rng.Int63n(maxRaw+1) - bias)

		enc := s.Encode(value)
		got, ok := s.DecodeValue(enc)
		if !ok || got != value {
			t.Fatalf("Round %d: %d-bit %g -> % X -> %g (ok=%v)", i, bits, value, enc, got, ok)
		}
	}
}

func TestFuzz_DTCPacketRoundTrip(t *testing.T) {
	rng := newFuzzRng(t)
	rounds := getFuzzRounds()

	for i := 0; i < rounds; i++ {
		n := rng.Intn(6)
		dtcs := make([]DiagnosticTroubleCode, n)
		for j := range dtcs {
			// SPN 0 and all-ones are padding records
			spn := uint32(1 + rng.Intn(maxSPN-1))
			dtcs[j] = CreateDiagnosticTroubleCode(spn, uint8(rng.Intn(32)), uint8(rng.Intn(2)), uint8(rng.Intn(128)))
		}
		lamps := NewLamps(LampStatus(rng.Intn(6)), LampStatus(rng.Intn(6)), LampStatus(rng.Intn(6)), LampStatus(rng.Intn(6)))

		p := CreateDTCPacket(PGNDM1, 0x00, lamps, dtcs...)
		d := NewDTCPacket(NewPacket(PGNDM1, 0x00, p.Bytes()))
		if d.Lamps() != lamps {
			t.Fatalf("Round %d: lamps %v != %v", i, d.Lamps(), lamps)
		}
		got := d.DTCs()
		if len(got) != n {
			t.Fatalf("Round %d: expected %d DTCs, got %d", i, n, len(got))
		}
		for j := range got {
			if got[j] != dtcs[j] {
				t.Fatalf("Round %d: DTC %d %v != %v", i, j, got[j], dtcs[j])
			}
		}
	}
}

// ============================================================
// Robustness Fuzz Tests
// ============================================================

var fuzzPGNs = []uint32{
	PGNDM1, PGNDM2, PGNDM6, PGNDM12, PGNDM23, PGNDM28,
	PGNDM25, PGNDM30, PGNDM24, PGNDM31, PGNDM20,
	PGNAcknowledgment, PGNRequest, PGNDM7,
	PGNEEC1, PGNEngineTemp1, PGNVehicleID, PGNCCVS, 0x1234,
}

func TestFuzz_DecodeNeverPanics(t *testing.T) {
	rng := newFuzzRng(t)
	rounds := getFuzzRounds()
	repo := DefaultRepository()

	for i := 0; i < rounds; i++ {
		pgn := fuzzPGNs[rng.Intn(len(fuzzPGNs))]
		data := randomBytes(rng, rng.Intn(48))
		p := NewPacket(pgn, uint8(rng.Intn(256)), data)

		func() {
			defer func() {
				if r := recover(); r != nil {
					t.Fatalf("Round %d: PGN %d panicked on % X: %v", i, pgn, data, r)
				}
			}()
			msg := Decode(p, repo)
			_ = msg.String()
			_ = FormatMessage(msg, repo)
			_ = ValidatePacket(p)

			switch m := msg.(type) {
			case *DM25Packet:
				for _, ff := range m.FreezeFrames() {
					_ = ff.Spns(nil, repo)
				}
			case *DM30Packet:
				for _, r := range m.TestResults() {
					r.Scaled(repo)
				}
			case *DM31Packet:
				for _, a := range m.Associations() {
					m.LampsFor(a.DTC())
				}
			case *GenericPacket:
				for _, s := range m.Spns() {
					_ = s.StringValue(true)
				}
			}
		}()
	}
}
