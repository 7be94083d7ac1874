// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package bus

import (
	"bytes"
	"fmt"

	"github.com/Thermoquad/dmscope/pkg/j1939"
)

// Agreement classifies one module's global answer against its destination
// specific answer.
type Agreement int

const (
	// AgreementSilent: no global answer and no DS answer
	AgreementSilent Agreement = iota
	// AgreementConsistent: answered both with data
	AgreementConsistent
	// AgreementDeclined: answered global, NACK, denied or busy to the DS request
	AgreementDeclined
	// AgreementTimedOut: answered global, nothing to the DS request
	AgreementTimedOut
	// AgreementDSOnly: no global answer, data to the DS request
	AgreementDSOnly
	// AgreementDSDeclinedOnly: no global answer, NACK, denied or busy to the
	// DS request
	AgreementDSDeclinedOnly
	// AgreementAcknowledged: answered global, positive ACK to the DS request
	AgreementAcknowledged
	// AgreementDSAcknowledgedOnly: no global answer, positive ACK to the DS
	// request
	AgreementDSAcknowledgedOnly
)

var agreementNames = map[Agreement]string{
	AgreementSilent:             "silent",
	AgreementConsistent:         "consistent",
	AgreementDeclined:           "global answered, DS declined",
	AgreementTimedOut:           "global answered, DS timed out",
	AgreementDSOnly:             "DS only",
	AgreementDSDeclinedOnly:     "DS declined only",
	AgreementAcknowledged:       "global answered, DS acknowledged",
	AgreementDSAcknowledgedOnly: "DS acknowledged only",
}

func (a Agreement) String() string {
	if name, ok := agreementNames[a]; ok {
		return name
	}
	return fmt.Sprintf("Agreement(%d)", int(a))
}

// IsFailure reports the combination a module must never produce: data to a
// global request but silence to the same request sent to it directly.
func (a Agreement) IsFailure() bool {
	return a == AgreementTimedOut
}

// ModuleAgreement is the reconciliation of one module
type ModuleAgreement struct {
	Address   uint8
	Agreement Agreement
	// PayloadDiffers is set when both answers carry data with different bytes
	PayloadDiffers bool
}

func (m ModuleAgreement) String() string {
	s := fmt.Sprintf("0x%02X: %s", m.Address, m.Agreement)
	if m.PayloadDiffers {
		s += " (payload differs)"
	}
	return s
}

// Reconcile compares a global result with per-module DS results. Every
// address present in either input is reported, ascending. A module missing
// from ds is treated as a DS timeout.
func Reconcile[P j1939.Message](global RequestResult[P], ds map[uint8]BusResult[P]) []ModuleAgreement {
	addrs := map[uint8]bool{}
	for _, a := range ModuleAddresses(global) {
		addrs[a] = true
	}
	for a := range ds {
		addrs[a] = true
	}

	out := make([]ModuleAgreement, 0, len(addrs))
	for _, addr := range sortedAddresses(addrs) {
		g, answered := global.Packet(addr)
		d := ds[addr]
		m := ModuleAgreement{Address: addr}
		switch d.Outcome() {
		case OutcomeData:
			if answered {
				m.Agreement = AgreementConsistent
				m.PayloadDiffers = !bytes.Equal(g.Bytes(), d.packet.Bytes())
			} else {
				m.Agreement = AgreementDSOnly
			}
		case OutcomeAck:
			positive := !d.IsNACK()
			switch {
			case answered && positive:
				m.Agreement = AgreementAcknowledged
			case answered:
				m.Agreement = AgreementDeclined
			case positive:
				m.Agreement = AgreementDSAcknowledgedOnly
			default:
				m.Agreement = AgreementDSDeclinedOnly
			}
		default:
			if answered {
				m.Agreement = AgreementTimedOut
			} else {
				m.Agreement = AgreementSilent
			}
		}
		out = append(out, m)
	}
	return out
}

// ModuleAddresses returns the addresses that answered a global request with
// data, ascending
func ModuleAddresses[P j1939.Message](global RequestResult[P]) []uint8 {
	seen := map[uint8]bool{}
	for _, p := range global.Packets() {
		seen[p.Source()] = true
	}
	return sortedAddresses(seen)
}
