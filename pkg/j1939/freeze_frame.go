// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package j1939

import (
	"fmt"
	"strings"
	"sync"
)

// FreezeFrame is one DM25 chunk: the DTC that triggered the snapshot and the
// SPN data captured with it.
type FreezeFrame struct {
	dtc  DiagnosticTroubleCode
	data []byte
}

// NewFreezeFrame builds a freeze frame; data is copied.
func NewFreezeFrame(dtc DiagnosticTroubleCode, data []byte) FreezeFrame {
	return FreezeFrame{dtc: dtc, data: append([]byte(nil), data...)}
}

// DTC returns the DTC that triggered the frame
func (f FreezeFrame) DTC() DiagnosticTroubleCode { return f.dtc }

// Data returns the captured SPN bytes
func (f FreezeFrame) Data() []byte { return f.data }

// Spns splits the captured data into SPNs. The layout is the DM24 list of
// freeze-frame SPNs in order, each taking its declared length. SPNs missing
// from defs are skipped over; SPNs past the end decode as not available.
func (f FreezeFrame) Spns(supported []SupportedSPN, defs Definitions) []Spn {
	var out []Spn
	off := 0
	for _, s := range supported {
		if !s.SupportsFreezeFrame() {
			continue
		}
		n := int(s.Length())
		var field []byte
		if off+n <= len(f.data) {
			field = f.data[off : off+n]
		}
		off += n

		def, ok := defs.FindSPN(s.SPN())
		if !ok {
			continue
		}
		slot, ok := defs.FindSlot(def.Slot, def.SPN)
		if !ok {
			continue
		}
		out = append(out, NewSpn(def.SPN, def.Label, slot, field))
	}
	return out
}

func (f FreezeFrame) String() string {
	return fmt.Sprintf("%s, %d data bytes [%s]", f.dtc, len(f.data), hexBytes(f.data))
}

// DM25Packet is an expanded freeze frame response
type DM25Packet struct {
	*Packet

	once   sync.Once
	frames []FreezeFrame
}

// NewDM25Packet wraps p; frames are decoded on first access.
func NewDM25Packet(p *Packet) *DM25Packet {
	return &DM25Packet{Packet: p}
}

// FreezeFrames returns the chained freeze frames
func (d *DM25Packet) FreezeFrames() []FreezeFrame {
	d.once.Do(func() {
		d.frames = parseFreezeFrames(d.data)
	})
	return d.frames
}

// parseFreezeFrames walks the length-prefixed chunks. A zero length byte
// followed by an all-zero DTC marks "no freeze frames"; any other zero
// length is read as an 8-byte chunk so a non-conformant sender cannot stall
// the walk. Chunks running past the payload are truncated and chunks too
// short for a DTC are dropped.
func parseFreezeFrames(data []byte) []FreezeFrame {
	var frames []FreezeFrame
	off := 0
	for off < len(data) {
		length := int(data[off])
		if length == 0 {
			if isEmptyFreezeFrame(data[off:]) {
				break
			}
			length = freezeFrameFallbackChunk
		}
		start := off + 1
		end := start + length
		if end > len(data) {
			end = len(data)
		}
		chunk := data[start:end]
		if len(chunk) >= dtcRecordSize {
			frames = append(frames, NewFreezeFrame(
				NewDiagnosticTroubleCode(chunk[:dtcRecordSize]),
				chunk[dtcRecordSize:],
			))
		}
		off = end
	}
	return frames
}

// isEmptyFreezeFrame checks for the "no freeze frames" chunk: length and
// DTC bytes zero, remaining bytes 0x00 or 0xFF.
func isEmptyFreezeFrame(b []byte) bool {
	if len(b) < 1+dtcRecordSize {
		return false
	}
	for _, v := range b[:1+dtcRecordSize] {
		if v != 0 {
			return false
		}
	}
	end := min(len(b), minimumFrameSize)
	for _, v := range b[1+dtcRecordSize : end] {
		if v != 0 && v != 0xFF {
			return false
		}
	}
	return true
}

// IsNonConformant reports whether a chunk needed the zero-length fallback
func (d *DM25Packet) IsNonConformant() bool {
	off := 0
	for off < len(d.data) {
		length := int(d.data[off])
		if length == 0 {
			if isEmptyFreezeFrame(d.data[off:]) {
				return false
			}
			return true
		}
		off += 1 + length
	}
	return false
}

func (d *DM25Packet) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s from 0x%02X", d.Name(), d.source)
	frames := d.FreezeFrames()
	if len(frames) == 0 {
		sb.WriteString(": No Freeze Frames")
		return sb.String()
	}
	for _, f := range frames {
		sb.WriteString("\n  ")
		sb.WriteString(f.String())
	}
	return sb.String()
}

// CreateDM25 encodes freeze frames. With none, the empty chunk
// [0 0 0 0 0 FF FF FF] is sent.
func CreateDM25(source uint8, frames ...FreezeFrame) *DM25Packet {
	if len(frames) == 0 {
		return NewDM25Packet(NewPacket(PGNDM25, source, []byte{0, 0, 0, 0, 0, 0xFF, 0xFF, 0xFF}))
	}
	var data []byte
	for _, f := range frames {
		data = append(data, byte(dtcRecordSize+len(f.data)))
		b := f.dtc.Bytes()
		data = append(data, b[:]...)
		data = append(data, f.data...)
	}
	return NewDM25Packet(NewPacket(PGNDM25, source, padFrame(data)))
}
