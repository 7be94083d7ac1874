// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package gateway

import (
	"fmt"

	"github.com/Thermoquad/dmscope/pkg/j1939"
)

// Decoder implements the gateway frame decoder state machine
type Decoder struct {
	state      int
	escapeNext bool
	length     int
	buffer     []byte // length bytes + body, the CRC'd section
	crc        uint16
	rawBuffer  []byte // raw bytes including framing
	lastFrame  []byte
}

// NewDecoder creates a new frame decoder
func NewDecoder() *Decoder {
	return &Decoder{
		state:     stateIdle,
		buffer:    make([]byte, 0, lengthSize+MaxBodySize),
		rawBuffer: make([]byte, 0, 2*(lengthSize+MaxBodySize+crcSize)),
	}
}

// Reset resets the decoder state to idle
func (d *Decoder) Reset() {
	d.state = stateIdle
	d.escapeNext = false
	d.length = 0
	d.buffer = d.buffer[:0]
	d.crc = 0
	d.rawBuffer = d.rawBuffer[:0]
}

// LastFrame returns the raw bytes of the most recently completed or
// rejected frame
func (d *Decoder) LastFrame() []byte {
	return d.lastFrame
}

func (d *Decoder) finish() {
	d.lastFrame = append(d.lastFrame[:0], d.rawBuffer...)
	d.Reset()
}

// DecodeByte processes a single byte through the decoder state machine.
// Returns a completed packet, or nil if the frame is incomplete.
// Returns an error if the frame is rejected.
func (d *Decoder) DecodeByte(b byte) (*j1939.Packet, error) {
	d.rawBuffer = append(d.rawBuffer, b)

	// Framing bytes never appear stuffed
	switch b {
	case StartByte:
		d.Reset()
		d.rawBuffer = append(d.rawBuffer, b)
		d.state = stateLength1
		return nil, nil
	case EndByte:
		return d.end()
	case EscByte:
		if d.state != stateIdle {
			d.escapeNext = true
		}
		return nil, nil
	}

	if d.escapeNext {
		b ^= EscXor
		d.escapeNext = false
	}

	switch d.state {
	case stateIdle:
		// Noise between frames
		d.rawBuffer = d.rawBuffer[:0]
		return nil, nil

	case stateLength1:
		d.buffer = append(d.buffer, b)
		d.length = int(b)
		d.state = stateLength2
		return nil, nil

	case stateLength2:
		d.buffer = append(d.buffer, b)
		d.length |= int(b) << 8
		if d.length == 0 || d.length > MaxBodySize {
			err := fmt.Errorf("invalid length: %d (max %d)", d.length, MaxBodySize)
			d.finish()
			return nil, err
		}
		d.state = stateBody
		return nil, nil

	case stateBody:
		d.buffer = append(d.buffer, b)
		if len(d.buffer)-lengthSize >= d.length {
			d.state = stateCRC1
		}
		return nil, nil

	case stateCRC1:
		d.crc = uint16(b) << 8
		d.state = stateCRC2
		return nil, nil

	case stateCRC2:
		d.crc |= uint16(b)
		d.state = stateEnd
		return nil, nil

	default:
		err := fmt.Errorf("expected END byte, got 0x%02X", b)
		d.finish()
		return nil, err
	}
}

func (d *Decoder) end() (*j1939.Packet, error) {
	if d.state == stateIdle {
		d.rawBuffer = d.rawBuffer[:0]
		return nil, nil
	}
	if d.state != stateEnd {
		err := fmt.Errorf("unexpected END byte in state %d", d.state)
		d.finish()
		return nil, err
	}

	calculated := CalculateCRC(d.buffer)
	if d.crc != calculated {
		err := fmt.Errorf("%w: expected 0x%04X, got 0x%04X", j1939.ErrCRCMismatch, calculated, d.crc)
		d.finish()
		return nil, err
	}

	p, err := UnmarshalBody(d.buffer[lengthSize:])
	d.finish()
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Decode feeds data through a fresh decoder and returns every packet found
// along with the errors of rejected frames.
func Decode(data []byte) ([]*j1939.Packet, []error) {
	d := NewDecoder()
	var packets []*j1939.Packet
	var errs []error
	for _, b := range data {
		p, err := d.DecodeByte(b)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if p != nil {
			packets = append(packets, p)
		}
	}
	return packets, errs
}
