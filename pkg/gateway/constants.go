// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package gateway carries reassembled J1939 messages between a host and a
// CAN gateway over a byte stream (serial port or WebSocket).
//
// Each message is framed as START, stuffed(length, body, crc), END where
// length is the little-endian body size, body is the CBOR array
// [pgn, priority, source, destination, data] and crc is CRC-16-CCITT over
// length and body, sent big-endian.
package gateway

// Framing bytes
const (
	StartByte = 0x7E
	EndByte   = 0x7F
	EscByte   = 0x7D
	EscXor    = 0x20
)

// Size limits
const (
	// MaxDataSize is the largest J1939 transport protocol message
	MaxDataSize = 1785
	// MaxBodySize leaves room for the CBOR header fields around the data
	MaxBodySize = MaxDataSize + 32
	lengthSize  = 2
	crcSize     = 2
)

// CRC-16-CCITT configuration
const (
	crcPolynomial = 0x1021
	crcInitial    = 0xFFFF
)

// Decoder states
const (
	stateIdle = iota
	stateLength1
	stateLength2
	stateBody
	stateCRC1
	stateCRC2
	stateEnd
)
