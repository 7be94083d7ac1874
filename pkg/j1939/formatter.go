// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package j1939

import (
	"fmt"
	"strings"
)

// FormatPacket formats a packet into a human-readable string: a header line
// followed by the decoded body, each body line indented.
func FormatPacket(p *Packet, defs Definitions, labels Labels) string {
	timestamp := p.timestamp.Format("15:04:05.000")
	msg := Decode(p, defs)

	result := fmt.Sprintf("[%s] %s (%d) SA=0x%02X DA=0x%02X len=%d\n",
		timestamp, msg.Name(), p.pgn, p.source, p.destination, len(p.data))
	result += indent(FormatMessage(msg, labels))
	return result
}

// FormatMessage renders the body of a decoded message
func FormatMessage(msg Message, labels Labels) string {
	switch m := msg.(type) {
	case *DTCPacket:
		return formatDTCBody(m, labels)
	case *DM25Packet:
		if len(m.FreezeFrames()) == 0 {
			return "No Freeze Frames"
		}
		var lines []string
		for _, f := range m.FreezeFrames() {
			lines = append(lines, fmt.Sprintf("%s, data [%s]", f.DTC().Format(labels), hexBytes(f.Data())))
		}
		return strings.Join(lines, "\n")
	case *DM30Packet:
		var lines []string
		for _, r := range m.TestResults() {
			lines = append(lines, formatTestResult(r, labels))
		}
		return strings.Join(lines, "\n")
	case *DM24Packet:
		var lines []string
		for _, s := range m.SupportedSPNs() {
			lines = append(lines, fmt.Sprintf("%s - %s", s, labelsOrDefault(labels).SPNName(s.SPN())))
		}
		return strings.Join(lines, "\n")
	case *DM31Packet:
		if len(m.Associations()) == 0 {
			return "No DTCs"
		}
		var lines []string
		for _, a := range m.Associations() {
			lines = append(lines, fmt.Sprintf("%s: %s", a.DTC().Format(labels), a.Lamps()))
		}
		return strings.Join(lines, "\n")
	case *DM20Packet:
		lines := []string{fmt.Sprintf("Ignition Cycles: %s, OBD Monitoring Conditions Encountered: %s",
			rawTestValue(m.IgnitionCycles()), rawTestValue(m.OBDMonitoringConditionsEncountered()))}
		for _, r := range m.Ratios() {
			lines = append(lines, fmt.Sprintf("%s - %s", r, labelsOrDefault(labels).SPNName(r.SPN())))
		}
		return strings.Join(lines, "\n")
	case *AcknowledgmentPacket:
		return fmt.Sprintf("Response: %s, Group Function: %d, Address: %s, PGN Requested: %s (%d)",
			m.Response(), m.GroupFunction(), labelsOrDefault(labels).AddressName(m.Address()),
			PGNName(m.PGNRequested()), m.PGNRequested())
	case *GenericPacket:
		var lines []string
		for _, s := range m.Spns() {
			lines = append(lines, s.String())
		}
		if len(lines) == 0 {
			return fmt.Sprintf("[%s]", hexBytes(m.Bytes()))
		}
		return strings.Join(lines, "\n")
	}
	return msg.String()
}

func formatDTCBody(d *DTCPacket, labels Labels) string {
	lines := []string{d.Lamps().String()}
	if !d.HasDTCs() {
		lines = append(lines, "No DTCs")
	}
	for _, dtc := range d.DTCs() {
		lines = append(lines, dtc.Format(labels))
	}
	return strings.Join(lines, "\n")
}

func formatTestResult(r ScaledTestResult, labels Labels) string {
	name := labelsOrDefault(labels).SPNName(r.SPN())
	if defs, ok := labels.(Definitions); ok {
		if v, ok := r.Scaled(defs); ok {
			return fmt.Sprintf("SPN %d FMI %d %s (SLOT %d) Result: %s %s. Max: %s, Min: %s",
				r.SPN(), r.FMI(), name, r.SlotNumber(), v.Value, v.Unit, v.Maximum, v.Minimum)
		}
	}
	return fmt.Sprintf("%s - %s", r, name)
}

func indent(s string) string {
	if s == "" {
		return ""
	}
	return "  " + strings.ReplaceAll(s, "\n", "\n  ") + "\n"
}
