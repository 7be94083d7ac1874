// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package j1939

// Decode returns the typed form of p selected by its PGN. Parameter groups
// that are not diagnostic messages decode as a GenericPacket using defs.
func Decode(p *Packet, defs Definitions) Message {
	switch p.PGN() {
	case PGNDM1, PGNDM2, PGNDM6, PGNDM12, PGNDM23, PGNDM28:
		return NewDTCPacket(p)
	case PGNDM20:
		return NewDM20Packet(p)
	case PGNDM24:
		return NewDM24Packet(p)
	case PGNDM25:
		return NewDM25Packet(p)
	case PGNDM30:
		return NewDM30Packet(p)
	case PGNDM31:
		return NewDM31Packet(p)
	case PGNDM7:
		return NewDM7Packet(p)
	case PGNAcknowledgment:
		return NewAcknowledgmentPacket(p)
	case PGNRequest:
		return NewRequestPacket(p)
	}
	return NewGenericPacket(p, defs)
}

// Parser returns the decode function for a diagnostic PGN, for use with typed
// bus requests. The boolean is false for PGNs without a typed form.
func Parser(pgn uint32) (func(*Packet) Message, bool) {
	switch pgn {
	case PGNDM1, PGNDM2, PGNDM6, PGNDM12, PGNDM23, PGNDM28,
		PGNDM20, PGNDM24, PGNDM25, PGNDM30, PGNDM31:
		return func(p *Packet) Message { return Decode(p, nil) }, true
	}
	return nil, false
}
