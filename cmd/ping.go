// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/Thermoquad/dmscope/pkg/bus"
	"github.com/Thermoquad/dmscope/pkg/j1939"
	"github.com/spf13/cobra"
)

var (
	pingAddress uint8
	pingCount   int
	pingPGN     uint32
)

var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Measure round trip time to one module",
	Long: `Send destination specific requests to one module and wait for each answer.

Each request either returns data, an acknowledgment, or times out after the
DS timeout (--config bus.ds_timeout_ms). A NACK still counts as a response: it
proves the module is on the bus.

This is useful for verifying:
  - The gateway forwards requests onto the bus
  - The module at --address is powered and listening
  - Round trip time stays below the response window

Exit codes:
  0 - Every request was answered
  1 - One or more requests timed out
  2 - Connection error`,
	RunE: runPing,
}

func init() {
	rootCmd.AddCommand(pingCmd)
	pingCmd.Flags().Uint8VarP(&pingAddress, "address", "a", 0x00, "Destination address")
	pingCmd.Flags().IntVar(&pingCount, "count", 3, "Number of requests to send")
	pingCmd.Flags().Uint32Var(&pingPGN, "pgn", j1939.PGNDM1, "PGN to request")
}

func runPing(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	client, connInfo, err := OpenClient(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer client.Close()

	fmt.Printf("dmscope - Ping\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Target: 0x%02X (%s), PGN %s\n", pingAddress, repo.AddressName(pingAddress), j1939.PGNName(pingPGN))
	fmt.Printf("Timeout: %v per request\n\n", client.DSTimeout())

	parse := func(p *j1939.Packet) j1939.Message { return j1939.Decode(p, repo) }
	successCount := 0
	var totalRTT time.Duration

	for i := 1; i <= pingCount; i++ {
		fmt.Printf("Request %d/%d: ", i, pingCount)

		start := time.Now()
		result, err := bus.RequestDS(ctx, client, pingPGN, pingAddress, parse)
		rtt := time.Since(start)
		if err != nil {
			fmt.Printf("FAILED: %v\n", err)
			os.Exit(2)
		}
		logger.LogRequest("DS", j1939.PGNName(pingPGN), pingAddress, result.Outcome().String(), rtt)

		switch result.Outcome() {
		case bus.OutcomeData:
			successCount++
			totalRTT += rtt
			fmt.Printf("%s from 0x%02X, rtt=%v\n", j1939.PGNName(pingPGN), pingAddress, rtt.Round(time.Millisecond))
		case bus.OutcomeAck:
			successCount++
			totalRTT += rtt
			ack, _ := result.Acknowledgment()
			fmt.Printf("%s from 0x%02X, rtt=%v\n", ack.Response(), pingAddress, rtt.Round(time.Millisecond))
		default:
			fmt.Printf("TIMEOUT (no response in %v)\n", client.DSTimeout())
		}

		if i < pingCount {
			time.Sleep(100 * time.Millisecond)
		}
	}

	failCount := pingCount - successCount
	fmt.Printf("\n--- Ping statistics ---\n")
	fmt.Printf("%d requests sent, %d responses received, %.0f%% loss\n",
		pingCount, successCount, float64(failCount)/float64(pingCount)*100)
	if successCount > 0 {
		fmt.Printf("average rtt=%v\n", (totalRTT / time.Duration(successCount)).Round(time.Millisecond))
	}

	if failCount > 0 {
		os.Exit(1)
	}
	return nil
}
