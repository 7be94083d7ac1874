// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package bus

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Thermoquad/dmscope/pkg/j1939"
)

// ErrGlobalDestination is returned when a destination specific request is
// addressed to the global address
var ErrGlobalDestination = errors.New("destination specific request addressed to global")

// RequestGlobal broadcasts a request for pgn and collects every answer until
// the global window elapses or all expected modules have answered. Only the
// first packet from each module is kept. Receiving nothing is reported by
// RequestResult.NoResponses, not as an error.
func RequestGlobal[P j1939.Message](ctx context.Context, c *Client, pgn uint32, parse func(*j1939.Packet) P) (RequestResult[P], error) {
	sub := c.Subscribe(pgn, j1939.PGNAcknowledgment)
	defer sub.Close()

	if err := c.Send(ctx, j1939.CreateRequest(c.source, j1939.AddressGlobal, pgn).Raw()); err != nil {
		return RequestResult[P]{}, err
	}

	timer := time.NewTimer(c.globalTimeout)
	defer timer.Stop()

	var packets []P
	var acks []*j1939.AcknowledgmentPacket
	answered := map[uint8]bool{}

	for {
		if c.allExpectedAnswered(answered) {
			break
		}
		select {
		case <-ctx.Done():
			return RequestResult[P]{}, fmt.Errorf("global request for %s: %w", j1939.PGNName(pgn), ctx.Err())
		case <-timer.C:
			c.logger.Debug("global %s closed with %d responses", j1939.PGNName(pgn), len(answered))
			return NewRequestResult(packets, acks), nil
		case p, ok := <-sub.Chan():
			if !ok {
				return RequestResult[P]{}, ErrResponseChannelClosed
			}
			if answered[p.Source()] {
				continue
			}
			switch {
			case p.PGN() == pgn && c.addressedToUs(p):
				packets = append(packets, parse(p))
				answered[p.Source()] = true
			case p.PGN() == j1939.PGNAcknowledgment && c.addressedToUs(p):
				a := j1939.NewAcknowledgmentPacket(p)
				if a.PGNRequested() != pgn {
					continue
				}
				acks = append(acks, a)
				answered[p.Source()] = true
			}
		}
	}
	return NewRequestResult(packets, acks), nil
}

// RequestDS sends a request for pgn to a single module and waits for its
// answer, an acknowledgment, or the end of the response window.
func RequestDS[P j1939.Message](ctx context.Context, c *Client, pgn uint32, addr uint8, parse func(*j1939.Packet) P) (BusResult[P], error) {
	if addr == j1939.AddressGlobal {
		return BusResult[P]{}, ErrGlobalDestination
	}
	req := j1939.CreateRequest(c.source, addr, pgn).Raw()
	return exchange(ctx, c, req, addr, pgn, parse)
}

// CommandDS sends cmd to the module at its destination and waits for a
// response with responsePGN. Acknowledgments of either the command's PGN or
// responsePGN end the exchange. DM7 commands answered by DM30 use this.
func CommandDS[P j1939.Message](ctx context.Context, c *Client, cmd *j1939.Packet, responsePGN uint32, parse func(*j1939.Packet) P) (BusResult[P], error) {
	if cmd.Destination() == j1939.AddressGlobal {
		return BusResult[P]{}, ErrGlobalDestination
	}
	return exchange(ctx, c, cmd, cmd.Destination(), responsePGN, parse)
}

func exchange[P j1939.Message](ctx context.Context, c *Client, req *j1939.Packet, addr uint8, responsePGN uint32, parse func(*j1939.Packet) P) (BusResult[P], error) {
	sub := c.Subscribe(responsePGN, j1939.PGNAcknowledgment)
	defer sub.Close()

	if err := c.Send(ctx, req); err != nil {
		return BusResult[P]{}, err
	}

	timer := time.NewTimer(c.dsTimeout)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return BusResult[P]{}, fmt.Errorf("request for %s to 0x%02X: %w", j1939.PGNName(responsePGN), addr, ctx.Err())
		case <-timer.C:
			c.logger.Debug("%s to 0x%02X timed out", j1939.PGNName(responsePGN), addr)
			return TimeoutResult[P](addr), nil
		case p, ok := <-sub.Chan():
			if !ok {
				return BusResult[P]{}, ErrResponseChannelClosed
			}
			if p.Source() != addr || !c.addressedToUs(p) {
				continue
			}
			if p.PGN() == responsePGN {
				return DataResult(parse(p)), nil
			}
			if p.PGN() == j1939.PGNAcknowledgment {
				a := j1939.NewAcknowledgmentPacket(p)
				if a.PGNRequested() == responsePGN || a.PGNRequested() == req.PGN() {
					return AckResult[P](a), nil
				}
			}
		}
	}
}

func (c *Client) addressedToUs(p *j1939.Packet) bool {
	return p.Destination() == j1939.AddressGlobal || p.Destination() == c.source
}

func (c *Client) allExpectedAnswered(answered map[uint8]bool) bool {
	if len(c.expected) == 0 {
		return false
	}
	for _, addr := range c.expected {
		if !answered[addr] {
			return false
		}
	}
	return true
}
