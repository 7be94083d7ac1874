// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/Thermoquad/dmscope/pkg/j1939"
	"github.com/spf13/cobra"
)

var (
	decodePGN    uint32
	decodeDM     int
	decodeSource uint8
	decodeDest   uint8
)

var decodeCmd = &cobra.Command{
	Use:   "decode [flags] HEX",
	Short: "Decode a captured payload without a connection",
	Long: `Decode a J1939 payload given as hex, for example from a trace file.

The parameter group is chosen with --pgn or --dm. Spaces, colons and dashes
in the hex string are ignored. Validation issues are listed after the decoded
message.

Examples:
  dmscope decode --dm 1 --source 0 "04 FF 7B 00 0C 01 FF FF"
  dmscope decode --pgn 61444 FFFFAFE02EFFFFFF`,
	Args: cobra.ExactArgs(1),
	RunE: runDecode,
}

func init() {
	rootCmd.AddCommand(decodeCmd)
	decodeCmd.Flags().Uint32Var(&decodePGN, "pgn", 0, "Parameter group number")
	decodeCmd.Flags().IntVar(&decodeDM, "dm", 0, "Diagnostic message number (alternative to --pgn)")
	decodeCmd.Flags().Uint8Var(&decodeSource, "source", 0, "Source address")
	decodeCmd.Flags().Uint8Var(&decodeDest, "dest", j1939.AddressGlobal, "Destination address")
	decodeCmd.MarkFlagsMutuallyExclusive("pgn", "dm")
}

func runDecode(cmd *cobra.Command, args []string) error {
	pgn := decodePGN
	if decodeDM != 0 {
		p, err := parseDM(decodeDM)
		if err != nil {
			return err
		}
		pgn = p
	}
	if pgn == 0 && !cmd.Flags().Changed("pgn") {
		return fmt.Errorf("either --pgn or --dm must be specified")
	}

	data, err := parseHex(args[0])
	if err != nil {
		return err
	}

	p := j1939.NewAddressedPacket(pgn, 6, decodeSource, decodeDest, data)
	fmt.Print(j1939.FormatPacket(p, repo, repo))

	issues := j1939.ValidatePacket(p)
	if len(issues) > 0 {
		fmt.Printf("\nValidation issues:\n")
		for i, issue := range issues {
			fmt.Printf("  %d. %s: %s\n", i+1, issue.Type, issue.Message)
		}
	}
	return nil
}

// parseHex accepts hex with optional separators
func parseHex(s string) ([]byte, error) {
	clean := strings.NewReplacer(" ", "", ":", "", "-", "", "0x", "", "0X", "").Replace(s)
	data, err := hex.DecodeString(clean)
	if err != nil {
		return nil, fmt.Errorf("invalid hex payload: %w", err)
	}
	return data, nil
}
