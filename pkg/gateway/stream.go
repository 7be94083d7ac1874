// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package gateway

import (
	"context"
	"crypto/tls"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"go.bug.st/serial"
)

// ErrPartialMessage is reported for a WebSocket message that does not hold
// whole frames. The gateway never splits a frame across messages.
var ErrPartialMessage = errors.New("websocket message does not hold whole frames")

const (
	defaultHandshakeTimeout = 10 * time.Second
	// maxMessageSize bounds one WebSocket message (a burst of stuffed frames)
	maxMessageSize = 1 << 18
)

// OpenSerial opens a gateway serial port at 8N1
func OpenSerial(name string, baud int) (serial.Port, error) {
	port, err := serial.Open(name, &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", name, err)
	}
	return port, nil
}

// WebSocketOptions configures DialWebSocket
type WebSocketOptions struct {
	Username           string
	Password           string
	InsecureSkipVerify bool
	HandshakeTimeout   time.Duration
	// OnStatus receives the gateway's text status lines
	OnStatus func(line string)
	// OnDiscard receives binary messages dropped by the framing check
	OnDiscard func(msg []byte, err error)
}

// WebSocketStream is a byte stream over a gateway WebSocket. Each binary
// message carries one or more complete frames; each Write is sent as one
// message, so Link.Send puts exactly one frame in a message.
type WebSocketStream struct {
	conn      *websocket.Conn
	pending   []byte
	onStatus  func(string)
	onDiscard func([]byte, error)
}

// DialWebSocket connects to a gateway at rawURL (ws:// or wss://), with
// HTTP Basic auth when a username is given.
func DialWebSocket(ctx context.Context, rawURL string, opts WebSocketOptions) (*WebSocketStream, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return nil, fmt.Errorf("unsupported URL scheme: %s (use ws:// or wss://)", u.Scheme)
	}

	timeout := opts.HandshakeTimeout
	if timeout <= 0 {
		timeout = defaultHandshakeTimeout
	}
	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: timeout,
	}
	if u.Scheme == "wss" {
		dialer.TLSClientConfig = &tls.Config{InsecureSkipVerify: opts.InsecureSkipVerify}
	}

	header := http.Header{}
	if opts.Username != "" {
		credentials := base64.StdEncoding.EncodeToString([]byte(opts.Username + ":" + opts.Password))
		header.Set("Authorization", "Basic "+credentials)
	}

	conn, resp, err := dialer.DialContext(ctx, rawURL, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("websocket handshake failed (HTTP %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("websocket dial failed: %w", err)
	}
	conn.SetReadLimit(maxMessageSize)

	return &WebSocketStream{
		conn:      conn,
		onStatus:  opts.OnStatus,
		onDiscard: opts.OnDiscard,
	}, nil
}

// Read returns frame bytes from binary messages. A normal close by the
// gateway reads as io.EOF.
func (s *WebSocketStream) Read(p []byte) (int, error) {
	for len(s.pending) == 0 {
		msgType, msg, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return 0, io.EOF
			}
			return 0, err
		}

		switch msgType {
		case websocket.TextMessage:
			if s.onStatus != nil {
				s.onStatus(strings.TrimSpace(string(msg)))
			}
		case websocket.BinaryMessage:
			if err := checkMessage(msg); err != nil {
				if s.onDiscard != nil {
					s.onDiscard(msg, err)
				}
				continue
			}
			s.pending = msg
		}
	}

	n := copy(p, s.pending)
	s.pending = s.pending[n:]
	return n, nil
}

// checkMessage verifies a binary message starts and ends on a frame boundary
func checkMessage(msg []byte) error {
	if len(msg) == 0 {
		return nil
	}
	first, last := msg[0], msg[len(msg)-1]
	if first != StartByte || last != EndByte {
		return fmt.Errorf("%w (%d bytes, first 0x%02X, last 0x%02X)", ErrPartialMessage, len(msg), first, last)
	}
	return nil
}

// Write sends p as one binary message
func (s *WebSocketStream) Write(p []byte) (int, error) {
	if err := s.conn.WriteMessage(websocket.BinaryMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Close sends a close message and closes the connection
func (s *WebSocketStream) Close() error {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	return s.conn.Close()
}
