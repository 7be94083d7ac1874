// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package gateway

import (
	"bytes"
	"context"
	"errors"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/Thermoquad/dmscope/pkg/bus"
	"github.com/Thermoquad/dmscope/pkg/j1939"
)

// ============================================================
// CRC Tests
// ============================================================

func TestCalculateCRC(t *testing.T) {
	tests := []struct {
		name     string
		data     []byte
		expected uint16
	}{
		{"empty", []byte{}, 0xFFFF},
		{"check string", []byte("123456789"), 0x29B1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CalculateCRC(tt.data); got != tt.expected {
				t.Errorf("Expected 0x%04X, got 0x%04X", tt.expected, got)
			}
		})
	}
}

// ============================================================
// Framing Tests
// ============================================================

func TestEncodeDecode_RoundTrip(t *testing.T) {
	lamps := j1939.NewLamps(j1939.LampOn, j1939.LampOff, j1939.LampOff, j1939.LampOff)
	dm1 := j1939.CreateDM1(0x00, lamps,
		j1939.CreateDiagnosticTroubleCode(123, 12, 0, 1),
		j1939.CreateDiagnosticTroubleCode(0x7E7F, 1, 0, 0x7D),
	).Raw()
	req := j1939.CreateRequest(0xF9, 0x00, j1939.PGNDM12).Raw()

	for _, p := range []*j1939.Packet{dm1, req} {
		frame, err := Encode(p)
		if err != nil {
			t.Fatalf("Encode failed: %v", err)
		}
		if frame[0] != StartByte || frame[len(frame)-1] != EndByte {
			t.Fatalf("Frame not delimited: % X", frame)
		}
		for _, b := range frame[1 : len(frame)-1] {
			if b == StartByte || b == EndByte {
				t.Fatalf("Unstuffed framing byte inside % X", frame)
			}
		}

		packets, errs := Decode(frame)
		if len(errs) != 0 {
			t.Fatalf("Decode errors: %v", errs)
		}
		if len(packets) != 1 {
			t.Fatalf("Expected 1 packet, got %d", len(packets))
		}
		got := packets[0]
		if got.PGN() != p.PGN() || got.Source() != p.Source() || got.Destination() != p.Destination() ||
			got.Priority() != p.Priority() || !bytes.Equal(got.Bytes(), p.Bytes()) {
			t.Errorf("Round trip mismatch: %s != %s", got, p)
		}
	}
}

func TestStuffBytes(t *testing.T) {
	in := []byte{0x01, StartByte, EndByte, EscByte, 0x02}
	stuffed := stuffBytes(in)
	expected := []byte{0x01, EscByte, 0x5E, EscByte, 0x5F, EscByte, 0x5D, 0x02}
	if !bytes.Equal(stuffed, expected) {
		t.Errorf("Expected % X, got % X", expected, stuffed)
	}
	back, err := UnstuffBytes(stuffed)
	if err != nil || !bytes.Equal(back, in) {
		t.Errorf("Unstuff mismatch: % X %v", back, err)
	}
	if _, err := UnstuffBytes([]byte{0x01, EscByte}); err == nil {
		t.Error("Expected error for trailing escape")
	}
}

// badCRCFrame returns a well-formed frame whose CRC is inverted
func badCRCFrame(t *testing.T) []byte {
	t.Helper()
	body, err := MarshalBody(j1939.CreateRequest(0xF9, 0xFF, j1939.PGNDM1).Raw())
	if err != nil {
		t.Fatalf("MarshalBody failed: %v", err)
	}
	data := append([]byte{byte(len(body)), 0x00}, body...)
	crc := CalculateCRC(data) ^ 0xFFFF
	data = append(data, byte(crc>>8), byte(crc))
	return append(append([]byte{StartByte}, stuffBytes(data)...), EndByte)
}

func TestDecoder_Errors(t *testing.T) {
	badCRC := badCRCFrame(t)

	tests := []struct {
		name    string
		data    []byte
		errText string
	}{
		{"bad CRC", badCRC, "CRC mismatch"},
		{"early END", []byte{StartByte, 0x05, 0x00, 0x01, EndByte}, "unexpected END"},
		{"zero length", []byte{StartByte, 0x00, 0x00}, "invalid length"},
		{"oversized length", []byte{StartByte, 0xFF, 0xFF}, "invalid length"},
		{"bad body", mustEncodeBody(t, []byte{0x01}), "failed to decode CBOR"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			packets, errs := Decode(tt.data)
			if len(packets) != 0 {
				t.Errorf("Expected no packets, got %d", len(packets))
			}
			if len(errs) != 1 || !strings.Contains(errs[0].Error(), tt.errText) {
				t.Errorf("Expected %q error, got %v", tt.errText, errs)
			}
		})
	}
}

func TestDecoder_CRCErrorIsCounted(t *testing.T) {
	_, errs := Decode(badCRCFrame(t))
	if len(errs) != 1 || !errors.Is(errs[0], j1939.ErrCRCMismatch) {
		t.Fatalf("Expected ErrCRCMismatch, got %v", errs)
	}

	stats := j1939.NewStatistics()
	stats.Update(nil, errs[0], nil)
	if stats.CRCErrors != 1 || stats.DecodeErrors != 0 {
		t.Errorf("Expected 1 CRC error, got CRC=%d decode=%d", stats.CRCErrors, stats.DecodeErrors)
	}
}

func mustEncodeBody(t *testing.T, body []byte) []byte {
	t.Helper()
	frame, err := EncodeBody(body)
	if err != nil {
		t.Fatalf("EncodeBody failed: %v", err)
	}
	return frame
}

func TestDecoder_Resynchronizes(t *testing.T) {
	frame, _ := Encode(j1939.CreateRequest(0xF9, 0xFF, j1939.PGNDM1).Raw())
	var stream []byte
	stream = append(stream, 0x11, 0x22, EndByte)              // noise
	stream = append(stream, StartByte, 0x05, 0x00, 0x01, 0x02) // truncated frame
	stream = append(stream, frame...)
	stream = append(stream, frame...)

	packets, errs := Decode(stream)
	if len(errs) != 0 {
		t.Errorf("Noise and restarts should not report errors: %v", errs)
	}
	if len(packets) != 2 {
		t.Errorf("Expected 2 packets, got %d", len(packets))
	}
}

func TestDecoder_LastFrame(t *testing.T) {
	frame, _ := Encode(j1939.CreateRequest(0xF9, 0xFF, j1939.PGNDM1).Raw())
	d := NewDecoder()
	for _, b := range frame {
		if _, err := d.DecodeByte(b); err != nil {
			t.Fatalf("DecodeByte failed: %v", err)
		}
	}
	if !bytes.Equal(d.LastFrame(), frame) {
		t.Errorf("Expected last frame % X, got % X", frame, d.LastFrame())
	}
}

func TestUnmarshalBody_Range(t *testing.T) {
	body, err := MarshalBody(j1939.NewAddressedPacket(0x40000, 6, 0, 0xFF, nil))
	if err != nil {
		t.Fatalf("MarshalBody failed: %v", err)
	}
	if _, err := UnmarshalBody(body); err == nil || !strings.Contains(err.Error(), "PGN out of range") {
		t.Errorf("Expected PGN range error, got %v", err)
	}
	if _, err := MarshalBody(j1939.NewPacket(j1939.PGNDM1, 0, make([]byte, MaxDataSize+1))); err == nil {
		t.Error("Expected payload size error")
	}
}

// ============================================================
// Link Tests
// ============================================================

func newLinkPair(t *testing.T, opts ...LinkOption) (*Link, *Link) {
	t.Helper()
	a, b := net.Pipe()
	la := NewLink(a, opts...)
	lb := NewLink(b)
	t.Cleanup(func() {
		la.Close()
		lb.Close()
	})
	return la, lb
}

func TestLink_Loopback(t *testing.T) {
	var hooked []*j1939.Packet
	hookDone := make(chan struct{}, 1)
	host, gw := newLinkPair(t, WithFrameHook(func(raw []byte, p *j1939.Packet, err error) {
		if p != nil && raw[0] == StartByte {
			hooked = append(hooked, p)
			hookDone <- struct{}{}
		}
	}))

	ctx := context.Background()
	sent := j1939.CreateDM1(0x00, j1939.NewLamps(j1939.LampOff, j1939.LampOff, j1939.LampOff, j1939.LampOff)).Raw()
	go func() {
		if err := gw.Send(ctx, sent); err != nil {
			t.Errorf("Send failed: %v", err)
		}
	}()

	select {
	case p := <-host.Recv():
		if p.PGN() != j1939.PGNDM1 || !bytes.Equal(p.Bytes(), sent.Bytes()) {
			t.Errorf("Unexpected packet %s", p)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("No packet received")
	}
	<-hookDone
	if len(hooked) != 1 {
		t.Errorf("Hook should see the frame once, got %d", len(hooked))
	}

	gw.Close()
	if err := gw.Send(ctx, sent); err != ErrLinkClosed {
		t.Errorf("Expected ErrLinkClosed, got %v", err)
	}
}

func TestLink_CloseEndsRecv(t *testing.T) {
	host, gw := newLinkPair(t)
	gw.Close()
	select {
	case _, ok := <-host.Recv():
		if ok {
			t.Error("Expected closed channel")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Recv channel not closed after peer closed")
	}
	if host.Err() != nil {
		t.Errorf("EOF should not be reported, got %v", host.Err())
	}
}

// ecu answers DM1 requests on the gateway side of a link
func ecu(ctx context.Context, l *Link, addr uint8, dtc j1939.DiagnosticTroubleCode) {
	lamps := j1939.NewLamps(j1939.LampOn, j1939.LampOff, j1939.LampOff, j1939.LampOff)
	for {
		select {
		case <-ctx.Done():
			return
		case p, ok := <-l.Recv():
			if !ok {
				return
			}
			if p.PGN() != j1939.PGNRequest {
				continue
			}
			if p.Destination() != j1939.AddressGlobal && p.Destination() != addr {
				continue
			}
			if j1939.NewRequestPacket(p).PGNRequested() != j1939.PGNDM1 {
				l.Send(ctx, j1939.CreateAcknowledgment(addr, j1939.AckNegative, 0, p.Source(), j1939.NewRequestPacket(p).PGNRequested()).Raw())
				continue
			}
			l.Send(ctx, j1939.CreateDM1(addr, lamps, dtc).Raw())
		}
	}
}

func TestLink_BusClient(t *testing.T) {
	host, gw := newLinkPair(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dtc := j1939.CreateDiagnosticTroubleCode(3216, 18, 0, 2)
	go ecu(ctx, gw, 0x00, dtc)

	c := bus.New(ctx, host, bus.WithGlobalTimeout(200*time.Millisecond), bus.WithDSTimeout(500*time.Millisecond))

	global, err := bus.RequestGlobal(ctx, c, j1939.PGNDM1, j1939.NewDTCPacket)
	if err != nil {
		t.Fatalf("RequestGlobal failed: %v", err)
	}
	p, ok := global.Packet(0x00)
	if !ok || !j1939.ContainsDTC(p.DTCs(), dtc) {
		t.Fatalf("Expected DTC from engine, got %v", global)
	}
	if !p.MIL().IsOn() {
		t.Error("Expected MIL on")
	}

	nack, err := bus.RequestDS(ctx, c, j1939.PGNDM2, 0x00, j1939.NewDTCPacket)
	if err != nil {
		t.Fatalf("RequestDS failed: %v", err)
	}
	if !nack.IsNACK() {
		t.Errorf("Expected NACK for DM2, got %s", nack.Outcome())
	}
}
