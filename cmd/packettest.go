// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/Thermoquad/dmscope/pkg/gateway"
	"github.com/Thermoquad/dmscope/pkg/j1939"
	"github.com/spf13/cobra"
)

var (
	packetTestTimeout int
)

var packetTestCmd = &cobra.Command{
	Use:   "packet_test",
	Short: "Test connection by waiting for a valid gateway frame",
	Long: `Wait for a valid gateway frame on the connection until timeout.

This command connects to a serial port or WebSocket and waits for any valid
J1939 packet. It ignores invalid bytes and waits for a complete, valid frame
(passing CRC check).

Exit codes:
  0 - Packet received before timeout
  1 - Timeout reached without receiving a valid packet
  2 - Connection error`,
	RunE: runPacketTest,
}

func init() {
	rootCmd.AddCommand(packetTestCmd)
	packetTestCmd.Flags().IntVar(&packetTestTimeout, "timeout", 10, "Timeout in seconds to wait for a packet")
}

func runPacketTest(cmd *cobra.Command, args []string) error {
	invalidFrames := 0
	link, connInfo, err := OpenLink(cmd.Context(), gateway.WithFrameHook(func(raw []byte, p *j1939.Packet, err error) {
		if err != nil {
			invalidFrames++
		}
	}))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer link.Close()

	fmt.Printf("dmscope - Packet Test\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Timeout: %d seconds\n", packetTestTimeout)
	fmt.Printf("Waiting for valid J1939 packet...\n\n")

	select {
	case packet, ok := <-link.Recv():
		if !ok {
			fmt.Fprintf(os.Stderr, "Read error: %v\n", link.Err())
			os.Exit(2)
		}
		if invalidFrames > 0 {
			fmt.Printf("(skipped %d invalid frames before sync)\n", invalidFrames)
		}
		fmt.Printf("SUCCESS: Received valid packet\n")
		fmt.Printf("  PGN: %s (%d)\n", packet.Name(), packet.PGN())
		fmt.Printf("  Source: 0x%02X (%s)\n", packet.Source(), repo.AddressName(packet.Source()))
		fmt.Printf("  Destination: 0x%02X\n", packet.Destination())
		fmt.Printf("  Length: %d bytes\n", packet.Length())
		os.Exit(0)

	case <-time.After(time.Duration(packetTestTimeout) * time.Second):
		fmt.Fprintf(os.Stderr, "TIMEOUT: No valid packet received within %d seconds\n", packetTestTimeout)
		os.Exit(1)
	}

	return nil
}
