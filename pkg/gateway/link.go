// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package gateway

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/Thermoquad/dmscope/pkg/bus"
	"github.com/Thermoquad/dmscope/pkg/j1939"
)

var _ bus.Transport = (*Link)(nil)

// ErrLinkClosed is returned when sending on a closed link
var ErrLinkClosed = errors.New("gateway link closed")

// FrameHook observes every frame the link receives. raw holds the frame
// bytes including framing; exactly one of p and err is set.
type FrameHook func(raw []byte, p *j1939.Packet, err error)

// LinkOption configures a Link
type LinkOption func(l *Link)

// WithFrameHook installs a hook called from the read loop
func WithFrameHook(h FrameHook) LinkOption {
	return func(l *Link) {
		l.hook = h
	}
}

// WithReceiveBuffer sets the capacity of the receive channel
func WithReceiveBuffer(n int) LinkOption {
	return func(l *Link) {
		if n >= 0 {
			l.bufferSize = n
		}
	}
}

// Link is a bus.Transport over a byte stream to a CAN gateway
type Link struct {
	conn       io.ReadWriteCloser
	recv       chan *j1939.Packet
	hook       FrameHook
	bufferSize int

	writeMu   sync.Mutex
	closeOnce sync.Once
	done      chan struct{}

	errMu   sync.Mutex
	readErr error
}

// NewLink starts reading frames from conn
func NewLink(conn io.ReadWriteCloser, opts ...LinkOption) *Link {
	l := &Link{
		conn:       conn,
		bufferSize: 64,
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.recv = make(chan *j1939.Packet, l.bufferSize)
	go l.readLoop()
	return l
}

func (l *Link) readLoop() {
	defer close(l.recv)
	d := NewDecoder()
	buf := make([]byte, 256)
	for {
		n, err := l.conn.Read(buf)
		for _, b := range buf[:n] {
			p, derr := d.DecodeByte(b)
			if derr == nil && p == nil {
				continue
			}
			if l.hook != nil {
				l.hook(d.LastFrame(), p, derr)
			}
			if p == nil {
				continue
			}
			select {
			case l.recv <- p:
			case <-l.done:
				return
			}
		}
		if err != nil {
			l.setErr(err)
			return
		}
	}
}

func (l *Link) setErr(err error) {
	l.errMu.Lock()
	defer l.errMu.Unlock()
	select {
	case <-l.done:
		// Read errors after Close are expected
	default:
		if !errors.Is(err, io.EOF) {
			l.readErr = err
		}
	}
}

// Err returns the error that ended the read loop, if any
func (l *Link) Err() error {
	l.errMu.Lock()
	defer l.errMu.Unlock()
	return l.readErr
}

// Send encodes and writes p
func (l *Link) Send(ctx context.Context, p *j1939.Packet) error {
	select {
	case <-l.done:
		return ErrLinkClosed
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	frame, err := Encode(p)
	if err != nil {
		return err
	}
	l.writeMu.Lock()
	defer l.writeMu.Unlock()
	if _, err := l.conn.Write(frame); err != nil {
		return fmt.Errorf("failed to write frame: %w", err)
	}
	return nil
}

// Recv returns received packets. The channel closes when the stream ends.
func (l *Link) Recv() <-chan *j1939.Packet {
	return l.recv
}

// Close closes the underlying stream
func (l *Link) Close() error {
	var err error
	l.closeOnce.Do(func() {
		close(l.done)
		err = l.conn.Close()
	})
	return err
}
