// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/Thermoquad/dmscope/internal/errors"
	"github.com/Thermoquad/dmscope/pkg/bus"
	"github.com/Thermoquad/dmscope/pkg/j1939"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var (
	reconcileDM          int
	reconcileConcurrency int
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Compare global answers with destination specific answers per module",
	Long: `Send a global request, then ask every responding module (and every module
listed in bus.expected_modules) directly, and compare the two answers.

A module that answers the global request but not the same request sent to it
directly is reported as a failure. A NACK to the direct request is reported,
but is not a failure.

Exit codes:
  0 - No module failed
  1 - At least one module answered globally but timed out on DS
  2 - Connection error`,
	RunE: runReconcile,
}

func init() {
	rootCmd.AddCommand(reconcileCmd)
	reconcileCmd.Flags().IntVar(&reconcileDM, "dm", 1, "Diagnostic message number")
	reconcileCmd.Flags().IntVar(&reconcileConcurrency, "concurrency", 4, "Parallel destination specific requests")
}

func runReconcile(cmd *cobra.Command, args []string) error {
	pgn, err := parseDM(reconcileDM)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	client, connInfo, err := OpenClient(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer client.Close()

	fmt.Println(titleStyle.Render("DMSCOPE - " + j1939.PGNName(pgn) + " RECONCILIATION"))
	fmt.Println(headerStyle.Render("Connection: " + connInfo))
	fmt.Println()

	start := time.Now()
	global, err := bus.RequestGlobal(ctx, client, pgn, decodeWithRepo)
	if err != nil {
		return errors.WrapConnectionError(err, connectionTarget())
	}
	logger.LogRequest("Global", j1939.PGNName(pgn), j1939.AddressGlobal, global.String(), time.Since(start))

	targets := reconcileTargets(global)
	ds, err := requestAll(ctx, client, pgn, targets)
	if err != nil {
		return errors.WrapConnectionError(err, connectionTarget())
	}

	agreements := bus.Reconcile(global, ds)
	failures := printAgreements(agreements, global, ds)

	if failures > 0 {
		fmt.Println(errorStyle.Render(fmt.Sprintf("%d module(s) answered globally but timed out on DS", failures)))
		os.Exit(1)
	}
	return nil
}

// reconcileTargets is every global responder plus the configured modules
func reconcileTargets(global bus.RequestResult[j1939.Message]) []uint8 {
	seen := map[uint8]bool{}
	var targets []uint8
	for _, addr := range append(bus.ModuleAddresses(global), cfg.Bus.ExpectedModules...) {
		if !seen[addr] {
			seen[addr] = true
			targets = append(targets, addr)
		}
	}
	return targets
}

// requestAll sends one DS request per address, at most
// reconcileConcurrency at a time
func requestAll(ctx context.Context, client *bus.Client, pgn uint32, addrs []uint8) (map[uint8]bus.BusResult[j1939.Message], error) {
	var mu sync.Mutex
	results := make(map[uint8]bus.BusResult[j1939.Message], len(addrs))

	g, gctx := errgroup.WithContext(ctx)
	if reconcileConcurrency > 0 {
		g.SetLimit(reconcileConcurrency)
	}
	for _, addr := range addrs {
		addr := addr
		g.Go(func() error {
			start := time.Now()
			r, err := bus.RequestDS(gctx, client, pgn, addr, decodeWithRepo)
			if err != nil {
				return err
			}
			logger.LogRequest("DS", j1939.PGNName(pgn), addr, r.Outcome().String(), time.Since(start))
			mu.Lock()
			results[addr] = r
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func printAgreements(agreements []bus.ModuleAgreement, global bus.RequestResult[j1939.Message], ds map[uint8]bus.BusResult[j1939.Message]) int {
	if len(agreements) == 0 {
		fmt.Println(headerStyle.Render("No module answered."))
		return 0
	}

	failures := 0
	for _, m := range agreements {
		if m.Agreement.IsFailure() {
			failures++
		}
		line := fmt.Sprintf("%s %-20s %s",
			labelStyle.Render(fmt.Sprintf("0x%02X", m.Address)),
			repo.AddressName(m.Address),
			agreementStyle(m.Agreement).Render(m.Agreement.String()))
		if m.PayloadDiffers {
			line += warningStyle.Render(" (payload differs)")
		}
		fmt.Println(line)

		if p, ok := global.Packet(m.Address); ok {
			if d, ok := p.(*j1939.DTCPacket); ok {
				fmt.Printf("    global: %s, %d DTC(s)\n", lampSummary(d), len(d.DTCs()))
			}
		}
		if r, ok := ds[m.Address]; ok {
			fmt.Printf("    ds:     %s\n", outcomeStyle(r).Render(r.String()))
		}
	}
	fmt.Println()
	return failures
}
