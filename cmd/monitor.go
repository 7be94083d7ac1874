// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/Thermoquad/dmscope/pkg/gateway"
	"github.com/Thermoquad/dmscope/pkg/j1939"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	showAll          bool
	statsInterval    int
	useTUI           bool
	reconnectDelay   int
	monitorPollDM    int
	monitorPollEvery int
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Watch diagnostic traffic, lamps and protocol errors",
	Long: `Track every module's lamps and DTCs from broadcast diagnostic messages,
together with frame errors, malformed packets and statistics.

This command validates each packet and detects:
  - CRC errors and undecodable gateway frames
  - Length mismatches and trailing bytes
  - Duplicate DTCs and undefined lamp states
  - Unknown acknowledgment codes

By default, only errors are logged. Use --show-all to log valid packets too.
With --poll-dm the monitor also sends a global request every --poll-every
seconds, for messages that are not broadcast (DM2, DM6, DM12 ...).

When the gateway connection drops, the monitor reconnects after
--reconnect seconds.`,
	RunE: runMonitor,
}

func init() {
	rootCmd.AddCommand(monitorCmd)
	monitorCmd.Flags().BoolVar(&showAll, "show-all", false, "Show all packets (not just errors)")
	monitorCmd.Flags().IntVar(&statsInterval, "stats-interval", 10, "Statistics update interval (seconds, text mode)")
	monitorCmd.Flags().BoolVar(&useTUI, "tui", true, "Use terminal UI (false for text mode)")
	monitorCmd.Flags().IntVar(&reconnectDelay, "reconnect", 2, "Seconds to wait before reconnecting")
	monitorCmd.Flags().IntVar(&monitorPollDM, "poll-dm", 0, "Diagnostic message to request periodically (0 = off)")
	monitorCmd.Flags().IntVar(&monitorPollEvery, "poll-every", 5, "Seconds between periodic requests")
}

// Messages produced by the feed
type packetMsg struct {
	packet           *j1939.Packet
	validationErrors []j1939.ValidationError
}
type frameErrorMsg struct {
	err error
}
type linkUpMsg struct {
	info string
}
type linkDownMsg struct {
	err error
}

func runMonitor(cmd *cobra.Command, args []string) error {
	var pollPGN uint32
	if monitorPollDM != 0 {
		pgn, err := parseDM(monitorPollDM)
		if err != nil {
			return err
		}
		pollPGN = pgn
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	if useTUI {
		return runTUIMode(ctx, pollPGN)
	}
	return runTextMode(ctx, pollPGN)
}

// feed keeps a gateway link open, reconnecting when it drops, and reports
// everything it sees to emit. It returns when ctx is done.
func feed(ctx context.Context, pollPGN uint32, emit func(tea.Msg)) {
	for {
		link, info, err := OpenLink(ctx, gateway.WithFrameHook(func(raw []byte, p *j1939.Packet, err error) {
			if err != nil {
				emit(frameErrorMsg{err: err})
			}
		}))
		if err != nil {
			emit(linkDownMsg{err: err})
		} else {
			emit(linkUpMsg{info: info})
			stopPoll := startPolling(ctx, link, pollPGN)
			drain(ctx, link, emit)
			stopPoll()
			link.Close()
			emit(linkDownMsg{err: link.Err()})
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Duration(reconnectDelay) * time.Second):
		}
	}
}

func drain(ctx context.Context, link *gateway.Link, emit func(tea.Msg)) {
	for {
		select {
		case <-ctx.Done():
			return
		case p, ok := <-link.Recv():
			if !ok {
				return
			}
			emit(packetMsg{packet: p, validationErrors: j1939.ValidatePacket(p)})
		}
	}
}

// startPolling sends a global request for pgn periodically until the
// returned stop function is called
func startPolling(ctx context.Context, link *gateway.Link, pgn uint32) func() {
	if pgn == 0 {
		return func() {}
	}
	pollCtx, cancel := context.WithCancel(ctx)
	go func() {
		ticker := time.NewTicker(time.Duration(monitorPollEvery) * time.Second)
		defer ticker.Stop()
		for {
			req := j1939.CreateRequest(cfg.Bus.SourceAddress, j1939.AddressGlobal, pgn).Raw()
			if err := link.Send(pollCtx, req); err != nil {
				logger.Debug("poll %s: %v", j1939.PGNName(pgn), err)
			}
			select {
			case <-pollCtx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
	return cancel
}

var (
	boldGreen  = color.New(color.FgGreen, color.Bold).SprintfFunc()
	boldYellow = color.New(color.FgYellow, color.Bold).SprintfFunc()
	boldRed    = color.New(color.FgRed, color.Bold).SprintfFunc()
)

// printValidationErrors prints validation errors for a packet
func printValidationErrors(w io.Writer, packet *j1939.Packet, errors []j1939.ValidationError) {
	timestamp := packet.Timestamp().Format("15:04:05.000")

	fmt.Fprintf(w, "[%s] %s %s (%d) from 0x%02X\n", timestamp, boldYellow("VALIDATION ERROR:"), packet.Name(), packet.PGN(), packet.Source())
	fmt.Fprintf(w, "  CRC: %s\n", boldGreen("OK"))

	for i, err := range errors {
		switch err.Type {
		case j1939.AnomalyLengthMismatch, j1939.AnomalyNonConformant:
			fmt.Fprintf(w, "  Issue %d: %s\n", i+1, boldRed("%s", err.Message))
		case j1939.AnomalyDuplicateDTC, j1939.AnomalyUnknownLamp, j1939.AnomalyUnknownAck:
			fmt.Fprintf(w, "  Issue %d: %s\n", i+1, boldYellow("%s", err.Message))
		default:
			fmt.Fprintf(w, "  Issue %d: %s\n", i+1, err.Message)
		}
	}

	fmt.Fprintf(w, "  Payload: [%s]\n", hexDump(packet.Bytes()))
	fmt.Fprintf(w, "  >>> PACKET FLAGGED <<<\n\n")
}

// printFrameError prints a frame error in highlighted format
func printFrameError(w io.Writer, err error) {
	timestamp := time.Now().Format("15:04:05.000")
	fmt.Fprintf(w, "[%s] %s %v\n", timestamp, boldRed("FRAME ERROR:"), err)
	fmt.Fprintf(w, "  >>> DECODE FAILED <<<\n\n")
}

// runTUIMode runs the monitor in TUI mode
func runTUIMode(ctx context.Context, pollPGN uint32) error {
	m := initialModel(statsInterval, showAll)
	p := tea.NewProgram(m, tea.WithContext(ctx))

	go feed(ctx, pollPGN, p.Send)

	if _, err := p.Run(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}

// runTextMode runs the monitor as a scrolling log
func runTextMode(ctx context.Context, pollPGN uint32) error {
	fmt.Printf("dmscope - Monitor\n")
	fmt.Printf("Statistics interval: %d seconds\n", statsInterval)
	if showAll {
		fmt.Printf("Mode: All packets\n")
	} else {
		fmt.Printf("Mode: Errors only\n")
	}
	fmt.Printf("Press Ctrl+C to exit\n\n")

	stats := j1939.NewStatistics()
	events := make(chan tea.Msg, 64)
	go feed(ctx, pollPGN, func(msg tea.Msg) {
		select {
		case events <- msg:
		case <-ctx.Done():
		}
	})

	statsTicker := time.NewTicker(time.Duration(statsInterval) * time.Second)
	defer statsTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case msg := <-events:
			switch msg := msg.(type) {
			case linkUpMsg:
				fmt.Printf("[LINK] Connected: %s\n\n", msg.info)
			case linkDownMsg:
				if msg.err != nil {
					fmt.Printf("[LINK] Disconnected: %v\n", msg.err)
				} else {
					fmt.Printf("[LINK] Disconnected\n")
				}
				fmt.Printf("[LINK] Reconnecting in %ds\n\n", reconnectDelay)
			case frameErrorMsg:
				stats.Update(nil, msg.err, nil)
				printFrameError(color.Output, msg.err)
			case packetMsg:
				stats.Update(msg.packet, nil, msg.validationErrors)
				if len(msg.validationErrors) > 0 {
					printValidationErrors(color.Output, msg.packet, msg.validationErrors)
				} else if showAll {
					fmt.Print(j1939.FormatPacket(msg.packet, repo, repo))
				}
			}

		case <-statsTicker.C:
			stats.CalculateRates()
			fmt.Println()
			fmt.Print(stats.String())
			fmt.Println()
		}
	}
}
