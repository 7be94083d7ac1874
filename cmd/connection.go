// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"syscall"

	"github.com/Thermoquad/dmscope/internal/errors"
	"github.com/Thermoquad/dmscope/pkg/bus"
	"github.com/Thermoquad/dmscope/pkg/gateway"
	"github.com/Thermoquad/dmscope/pkg/j1939"
	"golang.org/x/term"
)

// passwordEnv overrides the interactive password prompt
const passwordEnv = "DMSCOPE_PASSWORD"

// cachedPassword holds a prompted password so reconnects do not prompt again
var cachedPassword string

// gatewayPassword returns the WebSocket password from the environment, the
// cache, or a prompt on stderr
func gatewayPassword() (string, error) {
	if pw := os.Getenv(passwordEnv); pw != "" {
		return pw, nil
	}
	if cachedPassword != "" {
		return cachedPassword, nil
	}

	fmt.Fprintf(os.Stderr, "Password for %s: ", cfg.Connection.Username)
	defer fmt.Fprintln(os.Stderr)

	if b, err := term.ReadPassword(int(syscall.Stdin)); err == nil {
		cachedPassword = string(b)
		return cachedPassword, nil
	}

	// stdin is not a terminal
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	cachedPassword = strings.TrimSpace(line)
	return cachedPassword, nil
}

// openStream opens the configured gateway stream. WebSocket status lines
// and discarded messages are logged.
func openStream(ctx context.Context) (io.ReadWriteCloser, string, error) {
	c := cfg.Connection
	switch {
	case c.URL != "":
		opts := gateway.WebSocketOptions{
			Username:           c.Username,
			InsecureSkipVerify: c.NoSSLVerify,
			OnStatus: func(line string) {
				logger.Verbose("gateway: %s", line)
			},
			OnDiscard: func(msg []byte, err error) {
				logger.Debug("discarded message: %v", err)
				logger.LogHex("discard", msg)
			},
		}
		if c.Username != "" {
			pw, err := gatewayPassword()
			if err != nil {
				return nil, "", err
			}
			opts.Password = pw
		}
		stream, err := gateway.DialWebSocket(ctx, c.URL, opts)
		if err != nil {
			return nil, "", errors.WrapConnectionError(err, c.URL)
		}
		return stream, fmt.Sprintf("WebSocket: %s", c.URL), nil

	case c.Port != "":
		port, err := gateway.OpenSerial(c.Port, c.Baud)
		if err != nil {
			return nil, "", errors.WrapConnectionError(err, c.Port)
		}
		return port, fmt.Sprintf("Serial: %s @ %d baud", c.Port, c.Baud), nil
	}

	return nil, "", fmt.Errorf("either --port or --url must be specified")
}

// OpenLink opens the configured connection and starts a gateway link on it
func OpenLink(ctx context.Context, opts ...gateway.LinkOption) (*gateway.Link, string, error) {
	stream, info, err := openStream(ctx)
	if err != nil {
		return nil, "", err
	}
	return gateway.NewLink(stream, opts...), info, nil
}

// OpenClient opens a gateway link and a bus client configured from cfg.
// Closing the client closes the link.
func OpenClient(ctx context.Context) (*bus.Client, string, error) {
	link, info, err := OpenLink(ctx, gateway.WithFrameHook(func(raw []byte, _ *j1939.Packet, err error) {
		if err != nil {
			logger.Debug("frame error: %v", err)
		}
		logger.LogHex("rx", raw)
	}))
	if err != nil {
		return nil, "", err
	}
	client := bus.New(ctx, link,
		bus.WithSourceAddress(cfg.Bus.SourceAddress),
		bus.WithGlobalTimeout(cfg.GlobalTimeout()),
		bus.WithDSTimeout(cfg.DSTimeout()),
		bus.WithExpectedModules(cfg.Bus.ExpectedModules...),
		bus.WithLogger(logger),
	)
	return client, info, nil
}

// connectionTarget names the configured gateway for error messages
func connectionTarget() string {
	if cfg.Connection.URL != "" {
		return cfg.Connection.URL
	}
	return cfg.Connection.Port
}
