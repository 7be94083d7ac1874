// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package j1939

// The 19-bit SPN shared by DTC, DM24, DM20, DM30 and DM7 records is sent as
// byte0 = bits 0-7, byte1 = bits 8-15 and the top three bits of byte2 =
// bits 16-18. The low five bits of byte2 belong to the record (FMI or flags).

// unpackSPN extracts the 19-bit SPN from three record bytes.
func unpackSPN(b0, b1, b2 byte) uint32 {
	return uint32(b0) | uint32(b1)<<8 | uint32(b2>>5)<<16
}

// packSPN writes spn into dst[0:3], keeping the low five bits given in low.
func packSPN(dst []byte, spn uint32, low byte) {
	spn &= maxSPN
	dst[0] = byte(spn)
	dst[1] = byte(spn >> 8)
	dst[2] = byte(spn>>16)<<5 | low&0x1F
}

// le16 reads a little-endian uint16 at offset i.
func le16(b []byte, i int) uint16 {
	return uint16(b[i]) | uint16(b[i+1])<<8
}

// putLE16 writes v little-endian at offset i.
func putLE16(b []byte, i int, v uint16) {
	b[i] = byte(v)
	b[i+1] = byte(v >> 8)
}

// padFrame right-pads data with 0xFF up to the minimum frame size.
func padFrame(data []byte) []byte {
	return padFrameWith(data, 0xFF)
}

func padFrameWith(data []byte, fill byte) []byte {
	for len(data) < minimumFrameSize {
		data = append(data, fill)
	}
	return data
}
