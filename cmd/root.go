// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"

	"github.com/Thermoquad/dmscope/internal/config"
	"github.com/Thermoquad/dmscope/internal/errors"
	"github.com/Thermoquad/dmscope/internal/logging"
	"github.com/Thermoquad/dmscope/pkg/j1939"
	"github.com/spf13/cobra"
)

var (
	// Serial connection flags
	portName string
	baudRate int

	// WebSocket connection flags
	wsURL         string
	wsUsername    string
	wsNoSSLVerify bool

	configPath      string
	logLevel        string
	logFile         string
	definitionsPath string
	sourceAddress   uint8
)

// Shared state prepared before every command
var (
	cfg    *config.Config
	logger *logging.Logger
	repo   *j1939.Repository
)

var rootCmd = &cobra.Command{
	Use:   "dmscope",
	Short: "J1939 Diagnostic Message Analyzer",
	Long: `dmscope - A CLI tool for querying and decoding J1939 diagnostic messages
(DM1, DM2, DM6, DM12, DM20, DM23 to DM25, DM28, DM30, DM31) through a
serial or WebSocket bus gateway.

Connection modes:
  Serial:    --port /dev/ttyUSB0 [--baud 115200]
  WebSocket: --url ws://host/path [--username user]

For WebSocket authentication, the password is read from the DMSCOPE_PASSWORD
environment variable, or prompted interactively if not set. The --password
flag is intentionally not provided to avoid leaking credentials in shell history.

Settings may also come from a YAML file given with --config. Flags override
values from the file.`,
	Version:           "0.3.0",
	SilenceUsage:      true,
	PersistentPreRunE: prepare,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			logger.Close()
		}
	},
}

func init() {
	// Serial connection flags
	rootCmd.PersistentFlags().StringVarP(&portName, "port", "p", "", "Serial port device")
	rootCmd.PersistentFlags().IntVarP(&baudRate, "baud", "b", 115200, "Baud rate (serial only)")

	// WebSocket connection flags
	rootCmd.PersistentFlags().StringVarP(&wsURL, "url", "u", "", "WebSocket URL (ws:// or wss://)")
	rootCmd.PersistentFlags().StringVar(&wsUsername, "username", "", "Username for HTTP Basic auth")
	rootCmd.PersistentFlags().BoolVar(&wsNoSSLVerify, "no-ssl-verify", false, "Skip TLS certificate verification (wss:// only)")

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (silent, error, info, verbose, debug)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Also write log messages to this file")
	rootCmd.PersistentFlags().StringVar(&definitionsPath, "definitions", "", "SPN/PGN definition file (YAML)")
	rootCmd.PersistentFlags().Uint8Var(&sourceAddress, "source", j1939.AddressTool, "Our source address on the bus")
}

// prepare loads the configuration, applies flag overrides, and opens the
// logger and definition repository
func prepare(cmd *cobra.Command, args []string) error {
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	} else {
		cfg = config.Default()
	}

	flags := cmd.Flags()
	if flags.Changed("port") || cfg.Connection.Port == "" {
		cfg.Connection.Port = portName
	}
	if flags.Changed("baud") {
		cfg.Connection.Baud = baudRate
	}
	if flags.Changed("url") || cfg.Connection.URL == "" {
		cfg.Connection.URL = wsURL
	}
	if flags.Changed("username") || cfg.Connection.Username == "" {
		cfg.Connection.Username = wsUsername
	}
	if flags.Changed("no-ssl-verify") {
		cfg.Connection.NoSSLVerify = wsNoSSLVerify
	}
	if flags.Changed("log-level") {
		cfg.Logging.Level = logLevel
	}
	if flags.Changed("log-file") {
		cfg.Logging.File = logFile
	}
	if flags.Changed("definitions") {
		cfg.Definitions.Path = definitionsPath
	}
	if flags.Changed("source") {
		cfg.Bus.SourceAddress = sourceAddress
	}
	if err := cfg.Validate(); err != nil {
		return errors.WrapConfigError(err, "command line")
	}

	level, _ := logging.ParseLevel(cfg.Logging.Level)
	l, err := logging.NewLogger(level, cfg.Logging.File)
	if err != nil {
		return err
	}
	logger = l

	if cfg.Definitions.Path != "" {
		r, err := j1939.LoadRepositoryFile(cfg.Definitions.Path)
		if err != nil {
			return errors.WrapDefinitionsError(err, cfg.Definitions.Path)
		}
		repo = r
		logger.Verbose("Loaded %d PGN definitions from %s", len(repo.PGNs()), cfg.Definitions.Path)
	} else {
		repo = j1939.DefaultRepository()
	}

	return nil
}

// parseDM resolves a --dm flag value to a PGN
func parseDM(n int) (uint32, error) {
	pgn, ok := j1939.PGNForDM(n)
	if !ok {
		return 0, fmt.Errorf("DM%d is not supported", n)
	}
	return pgn, nil
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}
