// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/Thermoquad/dmscope/internal/errors"
	"github.com/Thermoquad/dmscope/pkg/bus"
	"github.com/Thermoquad/dmscope/pkg/j1939"
	"github.com/k0kubun/go-ansi"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var (
	scanDM   int
	scanFrom uint8
	scanTo   uint8
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Discover modules with destination specific requests",
	Long: `Ask every address in a range for a diagnostic message, one at a time.

Unlike a global request, a scan also finds modules that only answer when
addressed directly, and modules that NACK the message. Each address waits
for the DS timeout, so a full sweep (0x00 to 0xFD) takes about
254 x bus.ds_timeout_ms.

Examples:
  # Sweep the engine and transmission range
  dmscope scan --port /dev/ttyUSB0 --from 0 --to 7

  # Which modules report DM24 SPN support?
  dmscope scan --url ws://gateway.local/j1939 --dm 24

Exit codes:
  0 - At least one module answered
  1 - No module answered
  2 - Connection error`,
	RunE: runScan,
}

func init() {
	rootCmd.AddCommand(scanCmd)
	scanCmd.Flags().IntVar(&scanDM, "dm", 1, "Diagnostic message number")
	scanCmd.Flags().Uint8Var(&scanFrom, "from", 0x00, "First address")
	scanCmd.Flags().Uint8Var(&scanTo, "to", 0xFD, "Last address")
}

// newProgressBar returns the sweep progress bar
func newProgressBar(length int, text string) *progressbar.ProgressBar {
	return progressbar.NewOptions(
		length,
		progressbar.OptionSetWriter(ansi.NewAnsiStdout()),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetWidth(30),
		progressbar.OptionSetDescription(text),
		progressbar.OptionShowCount(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)
}

type scanHit struct {
	address uint8
	result  bus.BusResult[j1939.Message]
}

func runScan(cmd *cobra.Command, args []string) error {
	pgn, err := parseDM(scanDM)
	if err != nil {
		return err
	}
	if scanFrom > scanTo || scanTo > 0xFD {
		return fmt.Errorf("invalid address range 0x%02X to 0x%02X", scanFrom, scanTo)
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	client, connInfo, err := OpenClient(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer client.Close()

	count := int(scanTo) - int(scanFrom) + 1

	fmt.Printf("dmscope - Module Scan\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Message: %s, addresses 0x%02X to 0x%02X\n", j1939.PGNName(pgn), scanFrom, scanTo)
	fmt.Printf("Estimated time: %v\n\n", (time.Duration(count) * client.DSTimeout()).Round(time.Second))

	hits, err := sweep(ctx, client, pgn, scanFrom, scanTo, newProgressBar(count, "[cyan]"+j1939.PGNName(pgn)+"[reset]"))
	if err != nil {
		return errors.WrapConnectionError(err, connectionTarget())
	}

	fmt.Printf("\n\n--- Scan summary ---\n")
	fmt.Printf("Modules found: %d\n", len(hits))
	for _, h := range hits {
		fmt.Printf("  0x%02X %-20s %s\n", h.address, repo.AddressName(h.address), outcomeStyle(h.result).Render(h.result.String()))
	}

	if len(hits) == 0 {
		fmt.Printf("No modules answered. Check connection and ignition.\n")
		os.Exit(1)
	}
	return nil
}

// sweep sends one DS request per address and returns every non-timeout
func sweep(ctx context.Context, client *bus.Client, pgn uint32, from, to uint8, bar *progressbar.ProgressBar) ([]scanHit, error) {
	var hits []scanHit
	for addr := int(from); addr <= int(to); addr++ {
		if uint8(addr) == client.SourceAddress() {
			bar.Add(1)
			continue
		}
		start := time.Now()
		r, err := bus.RequestDS(ctx, client, pgn, uint8(addr), decodeWithRepo)
		if err != nil {
			return hits, err
		}
		logger.LogRequest("DS", j1939.PGNName(pgn), uint8(addr), r.Outcome().String(), time.Since(start))
		if !r.IsTimeout() {
			hits = append(hits, scanHit{address: uint8(addr), result: r})
		}
		bar.Add(1)
	}
	return hits, nil
}
