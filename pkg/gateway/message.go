// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package gateway

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/Thermoquad/dmscope/pkg/j1939"
)

// wireMessage is the CBOR body: [pgn, priority, source, destination, data]
type wireMessage struct {
	_           struct{} `cbor:",toarray"`
	PGN         uint32
	Priority    uint8
	Source      uint8
	Destination uint8
	Data        []byte
}

// MarshalBody encodes p as a CBOR message body
func MarshalBody(p *j1939.Packet) ([]byte, error) {
	if p.Length() > MaxDataSize {
		return nil, fmt.Errorf("payload too large: %d bytes (max %d)", p.Length(), MaxDataSize)
	}
	return cbor.Marshal(wireMessage{
		PGN:         p.PGN(),
		Priority:    p.Priority(),
		Source:      p.Source(),
		Destination: p.Destination(),
		Data:        p.Bytes(),
	})
}

// UnmarshalBody decodes a CBOR message body
func UnmarshalBody(body []byte) (*j1939.Packet, error) {
	if len(body) == 0 {
		return nil, fmt.Errorf("empty CBOR body")
	}
	var m wireMessage
	if err := cbor.Unmarshal(body, &m); err != nil {
		return nil, fmt.Errorf("failed to decode CBOR: %w", err)
	}
	if m.PGN > 0x3FFFF {
		return nil, fmt.Errorf("PGN out of range: %d", m.PGN)
	}
	if m.Priority > 7 {
		return nil, fmt.Errorf("priority out of range: %d", m.Priority)
	}
	if len(m.Data) > MaxDataSize {
		return nil, fmt.Errorf("payload too large: %d bytes (max %d)", len(m.Data), MaxDataSize)
	}
	return j1939.NewAddressedPacket(m.PGN, m.Priority, m.Source, m.Destination, m.Data), nil
}
