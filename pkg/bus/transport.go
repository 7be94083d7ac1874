// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package bus issues J1939 global and destination specific requests over a
// Transport and wraps the answers in result types that keep "answered",
// "acknowledged" and "timed out" apart.
package bus

import (
	"context"
	"errors"

	"github.com/Thermoquad/dmscope/pkg/j1939"
)

// Transport carries complete (reassembled) J1939 messages. Segmentation and
// the physical link are the transport's concern.
type Transport interface {
	// Send transmits one message
	Send(ctx context.Context, p *j1939.Packet) error
	// Recv returns the channel of received messages. It is closed when the
	// transport shuts down.
	Recv() <-chan *j1939.Packet
	Close() error
}

var (
	ErrClosed                = errors.New("bus client closed")
	ErrResponseChannelClosed = errors.New("response channel closed")
)
