// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package bus

import (
	"context"
	"fmt"
	"time"

	"github.com/Thermoquad/dmscope/pkg/j1939"
)

const (
	// DefaultGlobalTimeout is the window a global request stays open
	DefaultGlobalTimeout = 600 * time.Millisecond
	// DefaultDSTimeout is the response window of a destination specific request
	DefaultDSTimeout = 200 * time.Millisecond
)

// Logger is the subset of the application logger the client writes to
type Logger interface {
	Error(format string, v ...interface{})
	Debug(format string, v ...interface{})
}

type nopLogger struct{}

func (nopLogger) Error(string, ...interface{}) {}
func (nopLogger) Debug(string, ...interface{}) {}

// Option configures a Client
type Option func(c *Client)

// WithSourceAddress sets the address requests are sent from
func WithSourceAddress(addr uint8) Option {
	return func(c *Client) {
		c.source = addr
	}
}

// WithGlobalTimeout sets the global request window
func WithGlobalTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.globalTimeout = d
		}
	}
}

// WithDSTimeout sets the destination specific response window
func WithDSTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.dsTimeout = d
		}
	}
}

// WithExpectedModules lets a global request finish early once every listed
// address has answered.
func WithExpectedModules(addrs ...uint8) Option {
	return func(c *Client) {
		c.expected = append([]uint8(nil), addrs...)
	}
}

// WithLogger sets the logger
func WithLogger(l Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// Client issues requests over a Transport. It is safe for concurrent use;
// each request has its own subscription.
type Client struct {
	transport     Transport
	hub           *hub
	source        uint8
	globalTimeout time.Duration
	dsTimeout     time.Duration
	expected      []uint8
	logger        Logger
}

// New starts a client on t. The receive loop stops when ctx is cancelled or
// Close is called.
func New(ctx context.Context, t Transport, opts ...Option) *Client {
	c := &Client{
		transport:     t,
		source:        j1939.AddressTool,
		globalTimeout: DefaultGlobalTimeout,
		dsTimeout:     DefaultDSTimeout,
		logger:        nopLogger{},
	}
	for _, opt := range opts {
		opt(c)
	}
	c.hub = newHub(t, c.logger)
	go c.hub.run(ctx)
	return c
}

// SourceAddress returns the address requests are sent from
func (c *Client) SourceAddress() uint8 { return c.source }

// GlobalTimeout returns the global request window
func (c *Client) GlobalTimeout() time.Duration { return c.globalTimeout }

// DSTimeout returns the destination specific response window
func (c *Client) DSTimeout() time.Duration { return c.dsTimeout }

// Subscribe returns a subscriber for the given PGNs, or for every packet
// when none are given.
func (c *Client) Subscribe(pgns ...uint32) *Subscriber {
	return c.hub.subscribe(pgns...)
}

// Send transmits p
func (c *Client) Send(ctx context.Context, p *j1939.Packet) error {
	if c.hub.closed() {
		return ErrClosed
	}
	c.logger.Debug("tx %s", p)
	if err := c.transport.Send(ctx, p); err != nil {
		return fmt.Errorf("failed to send %s: %w", p.Name(), err)
	}
	return nil
}

// Close stops the receive loop and closes the transport
func (c *Client) Close() error {
	c.hub.stop()
	return c.transport.Close()
}
