// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package gateway

// checksum computes the CRC-16-CCITT of data, continuing from crc. Start
// with crcInitial.
func checksum(crc uint16, data []byte) uint16 {
	for _, b := range data {
		crc ^= uint16(b) << 8
		for i := 0; i < 8; i++ {
			if crc&0x8000 != 0 {
				crc = (crc << 1) ^ crcPolynomial
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}

// CalculateCRC computes the frame checksum of data
func CalculateCRC(data []byte) uint16 {
	return checksum(crcInitial, data)
}
