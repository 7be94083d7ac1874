// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"strings"

	"github.com/Thermoquad/dmscope/pkg/bus"
	"github.com/Thermoquad/dmscope/pkg/j1939"
	"github.com/charmbracelet/lipgloss"
)

// Styles shared by the report commands and the monitor TUI
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("12")).
			Background(lipgloss.Color("235")).
			Padding(0, 1)

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("12")).
			Bold(true)

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("10"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("9")).
			Bold(true)

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("11"))

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1)
)

// indentLines indents every line of s by two spaces
func indentLines(s string) string {
	if s == "" {
		return s
	}
	return "  " + strings.ReplaceAll(s, "\n", "\n  ")
}

// agreementStyle colors a reconciliation outcome
func agreementStyle(a bus.Agreement) lipgloss.Style {
	switch {
	case a.IsFailure():
		return errorStyle
	case a == bus.AgreementConsistent:
		return valueStyle
	case a == bus.AgreementSilent:
		return headerStyle
	}
	return warningStyle
}

// outcomeStyle colors a destination specific outcome
func outcomeStyle(r bus.BusResult[j1939.Message]) lipgloss.Style {
	switch {
	case r.IsTimeout():
		return headerStyle
	case r.IsNACK():
		return warningStyle
	}
	return valueStyle
}

// lampSummary renders the MIL state of a DTC-list message
func lampSummary(p *j1939.DTCPacket) string {
	mil := p.MIL()
	s := "MIL " + mil.String()
	if mil.IsOn() {
		s = errorStyle.Render(s)
	}
	return s
}
