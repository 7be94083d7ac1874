// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"strings"

	"github.com/Thermoquad/dmscope/pkg/gateway"
	"github.com/Thermoquad/dmscope/pkg/j1939"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	rawLogHex     bool
	rawLogPGNs    []uint
	rawLogSources []uint
)

var (
	green  = color.New(color.FgGreen).SprintfFunc()
	yellow = color.New(color.FgYellow).SprintfFunc()
	red    = color.New(color.FgRed).SprintfFunc()
)

var rawLogCmd = &cobra.Command{
	Use:   "raw_log",
	Short: "Display raw packet log in human-readable format",
	Long: `Continuously decode and display J1939 packets as they arrive from the gateway.

Diagnostic messages are decoded into lamps, DTCs, freeze frames and test results.
Other parameter groups are decoded with the SPN/PGN definitions. Use --hex to
also print each wire frame.

Supports both serial and WebSocket connections.`,
	RunE: runRawLog,
}

func init() {
	rootCmd.AddCommand(rawLogCmd)
	rawLogCmd.Flags().BoolVar(&rawLogHex, "hex", false, "Print the raw gateway frame of each packet")
	rawLogCmd.Flags().UintSliceVar(&rawLogPGNs, "pgn", nil, "Only show these PGNs")
	rawLogCmd.Flags().UintSliceVar(&rawLogSources, "sa", nil, "Only show these source addresses")
}

func runRawLog(cmd *cobra.Command, args []string) error {
	link, connInfo, err := OpenLink(cmd.Context(), gateway.WithFrameHook(func(raw []byte, p *j1939.Packet, err error) {
		if err != nil {
			fmt.Println(red("[ERROR] %v", err))
			return
		}
		if rawLogHex && rawLogWanted(p) {
			fmt.Println(yellow("%s", hexDump(raw)))
		}
	}))
	if err != nil {
		return err
	}
	defer link.Close()

	fmt.Printf("dmscope - Raw Packet Log\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Press Ctrl+C to exit\n\n")

	for p := range link.Recv() {
		if !rawLogWanted(p) {
			continue
		}
		fmt.Print(green("%s", j1939.FormatPacket(p, repo, repo)))
	}

	if err := link.Err(); err != nil {
		logger.Error("Read error: %v", err)
		return err
	}
	logger.Info("Connection closed")
	return nil
}

func rawLogWanted(p *j1939.Packet) bool {
	if len(rawLogPGNs) > 0 && !containsUint(rawLogPGNs, uint(p.PGN())) {
		return false
	}
	if len(rawLogSources) > 0 && !containsUint(rawLogSources, uint(p.Source())) {
		return false
	}
	return true
}

func containsUint(list []uint, v uint) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}

func hexDump(data []byte) string {
	var out strings.Builder
	for i, b := range data {
		if i > 0 {
			out.WriteString(" ")
		}
		out.WriteString(fmt.Sprintf("%02X", b))
	}
	return out.String()
}
