// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/Thermoquad/dmscope/internal/errors"
	"github.com/Thermoquad/dmscope/pkg/bus"
	"github.com/Thermoquad/dmscope/pkg/j1939"
	"github.com/avast/retry-go"
	"github.com/spf13/cobra"
)

var (
	queryDM      int
	queryPGN     uint32
	queryDS      int
	queryRetries uint
)

var errNoResponses = stderrors.New("no responses")

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Request a diagnostic message globally or from one module",
	Long: `Send a request for a diagnostic message and print every answer.

Without --ds the request is global: every module that supports the message
answers within the global window. A global request nobody answers is repeated
up to --retries times. With --ds ADDR only that module is asked, and the
result is data, an acknowledgment (NACK), or a timeout.

Examples:
  dmscope query --dm 1
  dmscope query --dm 12 --ds 0x00
  dmscope query --pgn 65259 --retries 3`,
	RunE: runQuery,
}

func init() {
	rootCmd.AddCommand(queryCmd)
	queryCmd.Flags().IntVar(&queryDM, "dm", 1, "Diagnostic message number")
	queryCmd.Flags().Uint32Var(&queryPGN, "pgn", 0, "Parameter group number (overrides --dm)")
	queryCmd.Flags().IntVar(&queryDS, "ds", -1, "Destination address for a destination specific request")
	queryCmd.Flags().UintVar(&queryRetries, "retries", 0, "Attempts for an unanswered global request (default from config)")
}

// queryTarget resolves --pgn and --dm
func queryTarget(cmd *cobra.Command) (uint32, error) {
	if cmd.Flags().Changed("pgn") {
		return queryPGN, nil
	}
	return parseDM(queryDM)
}

func decodeWithRepo(p *j1939.Packet) j1939.Message {
	return j1939.Decode(p, repo)
}

func runQuery(cmd *cobra.Command, args []string) error {
	pgn, err := queryTarget(cmd)
	if err != nil {
		return err
	}
	if queryDS > 0xFD {
		return fmt.Errorf("--ds must be a module address (0-253), got %d", queryDS)
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	client, connInfo, err := OpenClient(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	logger.Verbose("Connection: %s", connInfo)

	if queryDS >= 0 {
		return queryDestination(ctx, client, pgn, uint8(queryDS))
	}
	return queryGlobal(ctx, client, pgn)
}

func queryDestination(ctx context.Context, client *bus.Client, pgn uint32, addr uint8) error {
	start := time.Now()
	result, err := bus.RequestDS(ctx, client, pgn, addr, decodeWithRepo)
	if err != nil {
		return errors.WrapConnectionError(err, connectionTarget())
	}
	logger.LogRequest("DS", j1939.PGNName(pgn), addr, result.Outcome().String(), time.Since(start))

	fmt.Printf("%s DS to 0x%02X (%s): %s\n", j1939.PGNName(pgn), addr, repo.AddressName(addr), result.Outcome())
	printBusResult(result)
	return nil
}

func queryGlobal(ctx context.Context, client *bus.Client, pgn uint32) error {
	attempts := cfg.Retry.Attempts
	if queryRetries > 0 {
		attempts = queryRetries
	}

	var result bus.RequestResult[j1939.Message]
	err := retry.Do(func() error {
		start := time.Now()
		r, err := bus.RequestGlobal(ctx, client, pgn, decodeWithRepo)
		if err != nil {
			return err
		}
		outcome := r.String()
		logger.LogRequest("Global", j1939.PGNName(pgn), j1939.AddressGlobal, outcome, time.Since(start))
		if r.NoResponses() {
			return errNoResponses
		}
		result = r
		return nil
	},
		retry.Context(ctx),
		retry.Attempts(attempts),
		retry.Delay(cfg.RetryDelay()),
		retry.DelayType(retry.FixedDelay),
		retry.RetryIf(func(err error) bool {
			return stderrors.Is(err, errNoResponses)
		}),
		retry.OnRetry(func(n uint, err error) {
			logger.Info("retry #%d: %v", n+1, err)
		}),
		retry.LastErrorOnly(true),
	)
	if stderrors.Is(err, errNoResponses) {
		return errors.WrapNoResponse(j1939.PGNName(pgn), int(attempts))
	}
	if err != nil {
		return errors.WrapConnectionError(err, connectionTarget())
	}

	fmt.Printf("%s global request: %s\n\n", j1939.PGNName(pgn), result)
	for _, p := range result.Packets() {
		fmt.Printf("0x%02X (%s):\n", p.Source(), repo.AddressName(p.Source()))
		fmt.Println(indentLines(j1939.FormatMessage(p, repo)))
	}
	for _, a := range result.Acks() {
		fmt.Printf("0x%02X (%s): %s\n", a.Source(), repo.AddressName(a.Source()), a.Response())
	}
	return nil
}

func printBusResult(result bus.BusResult[j1939.Message]) {
	if p, ok := result.Packet(); ok {
		fmt.Println(indentLines(j1939.FormatMessage(p, repo)))
	}
	if a, ok := result.Acknowledgment(); ok {
		fmt.Printf("  %s\n", a)
	}
}
