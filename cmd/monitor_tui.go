// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/Thermoquad/dmscope/pkg/j1939"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Error log entry
type errorLogEntry struct {
	timestamp time.Time
	message   string
	isError   bool // true for errors, false for warnings
}

// moduleState is the latest diagnostic picture of one source address
type moduleState struct {
	address  uint8
	name     string
	lamps    j1939.Lamps
	active   []j1939.DiagnosticTroubleCode
	previous []j1939.DiagnosticTroubleCode
	hasDM1   bool
	hasDM2   bool
	lastSeen time.Time
}

// Implement list.Item interface
func (m *moduleState) Title() string { return fmt.Sprintf("0x%02X %s", m.address, m.name) }
func (m *moduleState) Description() string {
	if !m.hasDM1 {
		return "no DM1 yet"
	}
	desc := fmt.Sprintf("%d active", len(m.active))
	if m.lamps[j1939.MalfunctionIndicator].IsOn() {
		desc += ", MIL on"
	}
	return desc
}
func (m *moduleState) FilterValue() string { return fmt.Sprintf("%02X", m.address) }

// TUI model
type model struct {
	statsInterval int
	showAll       bool
	stats         *j1939.Statistics
	errorLog      []errorLogEntry
	maxLogEntries int
	modules       map[uint8]*moduleState
	moduleList    list.Model
	spinner       spinner.Model
	connected     bool
	connInfo      string
	connectedAt   time.Time
	synchronized  bool
	width         int
	height        int
	quitting      bool
}

// Messages
type tickMsg time.Time

// formatUptime formats a duration in milliseconds to human-friendly string
func formatUptime(ms uint64) string {
	if ms == 0 {
		return "0 seconds"
	}

	seconds := ms / 1000
	minutes := seconds / 60
	hours := minutes / 60
	days := hours / 24

	seconds %= 60
	minutes %= 60
	hours %= 24

	parts := []string{}
	if days > 0 {
		parts = append(parts, plural(days, "day"))
	}
	if hours > 0 {
		parts = append(parts, plural(hours, "hour"))
	}
	if minutes > 0 {
		parts = append(parts, plural(minutes, "minute"))
	}
	if seconds > 0 || len(parts) == 0 {
		parts = append(parts, plural(seconds, "second"))
	}

	// Join with commas and "and" for last item
	if len(parts) == 1 {
		return parts[0]
	}
	if len(parts) == 2 {
		return parts[0] + " and " + parts[1]
	}
	last := parts[len(parts)-1]
	rest := strings.Join(parts[:len(parts)-1], ", ")
	return rest + ", and " + last
}

func plural(n uint64, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return fmt.Sprintf("%d %ss", n, unit)
}

func initialModel(statsInterval int, showAll bool) model {
	delegate := list.NewDefaultDelegate()
	delegate.ShowDescription = true
	delegate.SetHeight(2)
	moduleList := list.New([]list.Item{}, delegate, 30, 10)
	moduleList.Title = "Modules"
	moduleList.SetShowStatusBar(false)
	moduleList.SetShowHelp(false)
	moduleList.SetFilteringEnabled(false)

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = warningStyle

	return model{
		statsInterval: statsInterval,
		showAll:       showAll,
		stats:         j1939.NewStatistics(),
		errorLog:      make([]errorLogEntry, 0),
		maxLogEntries: 100,
		modules:       make(map[uint8]*moduleState),
		moduleList:    moduleList,
		spinner:       sp,
		width:         80,
		height:        24,
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(
		tickCmd(),
		m.spinner.Tick,
		tea.EnterAltScreen,
	)
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		case "r":
			m.stats.Reset()
			m.addLogEntry("Statistics reset", false)
			return m, nil
		}
		var cmd tea.Cmd
		m.moduleList, cmd = m.moduleList.Update(msg)
		return m, cmd

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.updateListSize()

	case tickMsg:
		m.stats.CalculateRates()
		return m, tickCmd()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case linkUpMsg:
		m.connected = true
		m.synchronized = false
		m.connInfo = msg.info
		m.connectedAt = time.Now()
		m.addLogEntry("Connected: "+msg.info, false)

	case linkDownMsg:
		m.connected = false
		if msg.err != nil {
			m.addLogEntry(fmt.Sprintf("Disconnected: %v", msg.err), true)
		} else {
			m.addLogEntry("Disconnected", true)
		}

	case frameErrorMsg:
		// Errors before the first good frame are line noise
		if m.synchronized {
			m.stats.Update(nil, msg.err, nil)
			m.addLogEntry(fmt.Sprintf("FRAME ERROR: %v", msg.err), true)
		}

	case packetMsg:
		if !m.synchronized {
			m.synchronized = true
			m.addLogEntry("Synchronized", false)
		}
		m.stats.Update(msg.packet, nil, msg.validationErrors)
		m.trackModule(msg.packet)

		if len(msg.validationErrors) > 0 {
			for _, err := range msg.validationErrors {
				m.addLogEntry(fmt.Sprintf("%s from 0x%02X: %s", msg.packet.Name(), msg.packet.Source(), err.Message), true)
			}
		} else if m.showAll {
			m.addLogEntry(fmt.Sprintf("%s from 0x%02X (valid)", msg.packet.Name(), msg.packet.Source()), false)
		}
	}

	return m, nil
}

func (m *model) addLogEntry(message string, isError bool) {
	entry := errorLogEntry{
		timestamp: time.Now(),
		message:   message,
		isError:   isError,
	}
	m.errorLog = append(m.errorLog, entry)

	// Keep only last N entries
	if len(m.errorLog) > m.maxLogEntries {
		m.errorLog = m.errorLog[len(m.errorLog)-m.maxLogEntries:]
	}
}

// trackModule updates the module table from DM1 and DM2 traffic. Every
// source seen on the bus gets an entry.
func (m *model) trackModule(p *j1939.Packet) {
	addr := p.Source()
	mod, ok := m.modules[addr]
	if !ok {
		mod = &moduleState{address: addr, name: repo.AddressName(addr)}
		m.modules[addr] = mod
		m.addLogEntry(fmt.Sprintf("New module 0x%02X (%s)", addr, mod.name), false)
	}
	mod.lastSeen = time.Now()

	switch p.PGN() {
	case j1939.PGNDM1:
		d := j1939.NewDTCPacket(p)
		wasOn := mod.hasDM1 && mod.lamps[j1939.MalfunctionIndicator].IsOn()
		mod.lamps = d.Lamps()
		mod.active = d.DTCs()
		mod.hasDM1 = true
		if isOn := mod.lamps[j1939.MalfunctionIndicator].IsOn(); isOn != wasOn {
			m.addLogEntry(fmt.Sprintf("0x%02X MIL %s", addr, mod.lamps[j1939.MalfunctionIndicator]), isOn)
		}
	case j1939.PGNDM2:
		d := j1939.NewDTCPacket(p)
		mod.previous = d.DTCs()
		mod.hasDM2 = true
	}

	if !ok || p.PGN() == j1939.PGNDM1 {
		m.updateModuleList()
	}
}

func (m *model) updateModuleList() {
	addrs := make([]int, 0, len(m.modules))
	for a := range m.modules {
		addrs = append(addrs, int(a))
	}
	sort.Ints(addrs)

	items := make([]list.Item, len(addrs))
	for i, a := range addrs {
		items[i] = m.modules[uint8(a)]
	}
	m.moduleList.SetItems(items)
}

func (m *model) updateListSize() {
	listHeight := m.height / 2
	if listHeight < 5 {
		listHeight = 5
	}
	m.moduleList.SetSize(28, listHeight)
}

func (m model) selectedModule() *moduleState {
	if item, ok := m.moduleList.SelectedItem().(*moduleState); ok {
		return item
	}
	return nil
}

func (m model) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	var s strings.Builder
	s.WriteString(titleStyle.Render("DMSCOPE - MONITOR"))
	s.WriteString("\n")
	s.WriteString(headerStyle.Render(fmt.Sprintf("%s | Mode: %s | 'r' reset stats | 'q' quit",
		m.connectionLine(), func() string {
			if m.showAll {
				return "All packets"
			}
			return "Errors only"
		}())))
	s.WriteString("\n\n")

	switch {
	case !m.connected:
		s.WriteString(m.spinner.View() + warningStyle.Render(" Connecting..."))
		s.WriteString("\n\n")
	case !m.synchronized:
		s.WriteString(m.spinner.View() + warningStyle.Render(" Waiting for synchronization..."))
		s.WriteString("\n\n")
	default:
		s.WriteString(valueStyle.Render("✓ Synchronized"))
		s.WriteString(headerStyle.Render(" for " + formatUptime(uint64(time.Since(m.connectedAt).Milliseconds()))))
		s.WriteString("\n\n")
	}

	leftWidth := 30
	rightWidth := m.width - leftWidth - 6
	if rightWidth < 30 {
		rightWidth = 30
	}
	modulePanel := boxStyle.Width(leftWidth).Render(m.moduleList.View())
	detailPanel := boxStyle.Width(rightWidth).Render(m.renderModuleDetail())
	s.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, modulePanel, " ", detailPanel))
	s.WriteString("\n")

	s.WriteString(boxStyle.Render(m.renderStatistics()))
	s.WriteString("\n\n")

	s.WriteString(labelStyle.Render("Recent Events:"))
	s.WriteString("\n")
	s.WriteString(boxStyle.Width(m.width - 4).Render(m.renderLog()))

	return s.String()
}

func (m model) connectionLine() string {
	if m.connInfo == "" {
		return "Not connected"
	}
	return m.connInfo
}

func (m model) renderModuleDetail() string {
	mod := m.selectedModule()
	if mod == nil {
		return headerStyle.Render("(no modules seen yet)")
	}

	var c strings.Builder
	c.WriteString(labelStyle.Render(fmt.Sprintf("0x%02X %s", mod.address, mod.name)))
	c.WriteString(headerStyle.Render(fmt.Sprintf("  last seen %s ago", time.Since(mod.lastSeen).Round(time.Second))))
	c.WriteString("\n")

	if !mod.hasDM1 {
		c.WriteString(headerStyle.Render("No DM1 received"))
		return c.String()
	}

	lampNames := []struct {
		id   j1939.LampID
		name string
	}{
		{j1939.MalfunctionIndicator, "MIL"},
		{j1939.RedStop, "Red Stop"},
		{j1939.AmberWarning, "Amber"},
		{j1939.Protect, "Protect"},
	}
	var lamps []string
	for _, l := range lampNames {
		lamp := mod.lamps[l.id]
		style := valueStyle
		if lamp.IsOn() {
			style = errorStyle
		}
		lamps = append(lamps, labelStyle.Render(l.name+":")+" "+style.Render(lamp.String()))
	}
	c.WriteString(strings.Join(lamps, "  "))
	c.WriteString("\n\n")

	c.WriteString(labelStyle.Render(fmt.Sprintf("Active DTCs (%d):", len(mod.active))))
	c.WriteString("\n")
	if len(mod.active) == 0 {
		c.WriteString(headerStyle.Render("  none"))
		c.WriteString("\n")
	}
	for _, d := range mod.active {
		c.WriteString("  " + errorStyle.Render(d.Format(repo)) + "\n")
	}

	if mod.hasDM2 {
		c.WriteString(labelStyle.Render(fmt.Sprintf("Previously Active (%d):", len(mod.previous))))
		c.WriteString("\n")
		for _, d := range mod.previous {
			c.WriteString("  " + warningStyle.Render(d.Format(repo)) + "\n")
		}
	}
	return c.String()
}

func (m model) renderStatistics() string {
	st := m.stats
	totalErrors := st.CRCErrors + st.DecodeErrors + st.MalformedPackets + st.AnomalousValues
	var validPercent, errorPercent float64
	if st.TotalPackets > 0 {
		validPercent = float64(st.ValidPackets) * 100.0 / float64(st.TotalPackets)
		errorPercent = float64(totalErrors) * 100.0 / float64(st.TotalPackets)
	}

	var c strings.Builder
	c.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s\n",
		labelStyle.Render("Total:"), valueStyle.Render(fmt.Sprintf("%d", st.TotalPackets)),
		labelStyle.Render("Valid:"), valueStyle.Render(fmt.Sprintf("%d (%.1f%%)", st.ValidPackets, validPercent)),
		labelStyle.Render("Errors:"), errorStyle.Render(fmt.Sprintf("%d (%.1f%%)", totalErrors, errorPercent)),
	))

	if st.CRCErrors > 0 || st.DecodeErrors > 0 {
		c.WriteString(fmt.Sprintf("%s %s   %s %s\n",
			labelStyle.Render("CRC Errors:"), errorStyle.Render(fmt.Sprintf("%d", st.CRCErrors)),
			labelStyle.Render("Decode Errors:"), errorStyle.Render(fmt.Sprintf("%d", st.DecodeErrors)),
		))
	}

	if st.MalformedPackets > 0 {
		c.WriteString(fmt.Sprintf("%s %s (%s: %d, %s: %d)\n",
			labelStyle.Render("Malformed:"), errorStyle.Render(fmt.Sprintf("%d", st.MalformedPackets)),
			headerStyle.Render("length mismatches"), st.LengthMismatches,
			headerStyle.Render("non-conformant"), st.NonConformant,
		))
	}

	if st.AnomalousValues > 0 {
		c.WriteString(fmt.Sprintf("%s %s (%s: %d, %s: %d)\n",
			labelStyle.Render("Anomalous:"), warningStyle.Render(fmt.Sprintf("%d", st.AnomalousValues)),
			headerStyle.Render("unknown codes"), st.UnknownEnumerants,
			headerStyle.Render("duplicate DTCs"), st.DuplicateDTCs,
		))
	}

	errRate := valueStyle
	if st.ErrorRate > 0 {
		errRate = errorStyle
	}
	c.WriteString(fmt.Sprintf("%s %s   %s %s",
		labelStyle.Render("Packet Rate:"), valueStyle.Render(fmt.Sprintf("%.1f pkts/s", st.PacketRate)),
		labelStyle.Render("Error Rate:"), errRate.Render(fmt.Sprintf("%.1f err/s", st.ErrorRate)),
	))
	return c.String()
}

func (m model) renderLog() string {
	// Reserve space for header, modules and stats
	logHeight := m.height - m.height/2 - 14
	if logHeight < 5 {
		logHeight = 5
	}

	startIdx := len(m.errorLog) - logHeight
	if startIdx < 0 {
		startIdx = 0
	}

	if len(m.errorLog) == 0 {
		return headerStyle.Render("  (no events yet)")
	}

	var c strings.Builder
	for i := startIdx; i < len(m.errorLog); i++ {
		entry := m.errorLog[i]
		timestamp := entry.timestamp.Format("01/02/06 15:04:05.000")
		if entry.isError {
			c.WriteString(fmt.Sprintf("%s %s\n", headerStyle.Render(timestamp), errorStyle.Render("✗ "+entry.message)))
		} else {
			c.WriteString(fmt.Sprintf("%s %s\n", headerStyle.Render(timestamp), warningStyle.Render("ℹ "+entry.message)))
		}
	}
	return c.String()
}
