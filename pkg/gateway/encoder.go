// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package gateway

import (
	"encoding/binary"
	"fmt"

	"github.com/Thermoquad/dmscope/pkg/j1939"
)

// Encode builds the wire frame for p, including framing and byte stuffing.
func Encode(p *j1939.Packet) ([]byte, error) {
	body, err := MarshalBody(p)
	if err != nil {
		return nil, fmt.Errorf("failed to encode CBOR body: %w", err)
	}
	return EncodeBody(body)
}

// EncodeBody frames an already encoded CBOR body
func EncodeBody(body []byte) ([]byte, error) {
	if len(body) > MaxBodySize {
		return nil, fmt.Errorf("CBOR body too large: %d bytes (max %d)", len(body), MaxBodySize)
	}

	// length + body is what gets CRC'd and stuffed
	data := make([]byte, lengthSize+len(body), lengthSize+len(body)+crcSize)
	binary.LittleEndian.PutUint16(data, uint16(len(body)))
	copy(data[lengthSize:], body)

	crc := CalculateCRC(data)
	data = append(data, byte(crc>>8), byte(crc))

	stuffed := stuffBytes(data)
	frame := make([]byte, 0, len(stuffed)+2)
	frame = append(frame, StartByte)
	frame = append(frame, stuffed...)
	frame = append(frame, EndByte)
	return frame, nil
}

// stuffBytes replaces START, END and ESC with ESC + (byte XOR EscXor)
func stuffBytes(data []byte) []byte {
	result := make([]byte, 0, len(data)*2)
	for _, b := range data {
		if b == StartByte || b == EndByte || b == EscByte {
			result = append(result, EscByte, b^EscXor)
		} else {
			result = append(result, b)
		}
	}
	return result
}

// UnstuffBytes removes byte stuffing. It is the inverse of the stuffing
// applied by Encode.
func UnstuffBytes(data []byte) ([]byte, error) {
	result := make([]byte, 0, len(data))
	escapeNext := false
	for _, b := range data {
		switch {
		case escapeNext:
			result = append(result, b^EscXor)
			escapeNext = false
		case b == EscByte:
			escapeNext = true
		default:
			result = append(result, b)
		}
	}
	if escapeNext {
		return nil, fmt.Errorf("incomplete escape sequence at end of data")
	}
	return result, nil
}
