// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package bus

import (
	"context"
	"sync"

	"github.com/Thermoquad/dmscope/pkg/j1939"
)

const subscriberBuffer = 64

// Subscriber receives the packets whose PGN matches its filter. A
// subscriber without a filter receives everything.
type Subscriber struct {
	h            *hub
	pgns         map[uint32]struct{}
	responseChan chan *j1939.Packet
	closeOnce    sync.Once
}

// Close unregisters the subscriber and closes its channel
func (s *Subscriber) Close() {
	s.closeOnce.Do(func() {
		s.h.unregister(s)
	})
}

// Chan returns the delivery channel
func (s *Subscriber) Chan() <-chan *j1939.Packet {
	return s.responseChan
}

// hub fans incoming packets out to subscribers
type hub struct {
	transport Transport
	logger    Logger

	close     chan struct{}
	closeOnce sync.Once
	done      chan struct{}

	byPGN  map[uint32]map[*Subscriber]struct{}
	global map[*Subscriber]struct{}

	mu sync.RWMutex
}

func newHub(t Transport, logger Logger) *hub {
	return &hub{
		transport: t,
		logger:    logger,
		close:     make(chan struct{}),
		done:      make(chan struct{}),
		byPGN:     make(map[uint32]map[*Subscriber]struct{}),
		global:    make(map[*Subscriber]struct{}),
	}
}

func (h *hub) subscribe(pgns ...uint32) *Subscriber {
	sub := &Subscriber{
		h:            h,
		pgns:         make(map[uint32]struct{}, len(pgns)),
		responseChan: make(chan *j1939.Packet, subscriberBuffer),
	}
	for _, pgn := range pgns {
		sub.pgns[pgn] = struct{}{}
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if len(sub.pgns) == 0 {
		h.global[sub] = struct{}{}
		return sub
	}
	for pgn := range sub.pgns {
		if _, ok := h.byPGN[pgn]; !ok {
			h.byPGN[pgn] = make(map[*Subscriber]struct{})
		}
		h.byPGN[pgn][sub] = struct{}{}
	}
	return sub
}

func (h *hub) unregister(sub *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.global, sub)
	for pgn := range sub.pgns {
		if subs, ok := h.byPGN[pgn]; ok {
			delete(subs, sub)
			if len(subs) == 0 {
				delete(h.byPGN, pgn)
			}
		}
	}
	close(sub.responseChan)
}

func (h *hub) run(ctx context.Context) {
	defer close(h.done)
	recv := h.transport.Recv()
	for {
		select {
		case <-h.close:
			return
		case <-ctx.Done():
			return
		case p, ok := <-recv:
			if !ok {
				h.logger.Debug("transport receive channel closed")
				return
			}
			h.deliver(p)
		}
	}
}

// deliver sends while holding the read lock, so unregister cannot close a
// channel mid-send.
func (h *hub) deliver(p *j1939.Packet) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for sub := range h.global {
		h.offer(sub, p)
	}
	for sub := range h.byPGN[p.PGN()] {
		h.offer(sub, p)
	}
}

func (h *hub) offer(sub *Subscriber, p *j1939.Packet) {
	select {
	case sub.responseChan <- p:
	default:
		h.logger.Error("subscriber full, dropped %s from 0x%02X", p.Name(), p.Source())
	}
}

// stop ends the receive loop and waits for it to exit
func (h *hub) stop() {
	h.closeOnce.Do(func() {
		close(h.close)
	})
	<-h.done
}

// closed reports whether the receive loop has exited
func (h *hub) closed() bool {
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}
