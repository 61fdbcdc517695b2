// SPDX-License-Identifier: AGPL-3.0-or-later
// aprsis-relay - an APRS-IS packet relay and federation server
// Copyright (C) 2026 The aprsis-relay Authors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.

// Package hub implements the central routing core for the relay: the
// client/peer registry, fan-out, and deduplication cache.
package hub

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/aprsis-relay/relay/internal/filter"
)

// clientQueueSize bounds each client's outbound queue. Overflow drops the
// oldest queued packet (drop-oldest backpressure policy).
const clientQueueSize = 256

// Client is a single connected user session as registered in the Hub.
// Outbound holds a non-blocking, bounded FIFO drained by the owning
// session's writer goroutine so a slow socket cannot stall fan-out to
// other clients.
type Client struct {
	ID         uint64
	Outbound   chan string
	ConnectAt  time.Time

	mu       sync.RWMutex
	callsign string
	filters  []filter.Filter

	PacketsRX atomic.Uint64
	PacketsTX atomic.Uint64
	BytesRX   atomic.Uint64
	BytesTX   atomic.Uint64

	PacketsDropped    atomic.Uint64
	PacketsDuplicated atomic.Uint64
}

// NewClient allocates a Client record. The Hub assigns ID on registration.
func NewClient() *Client {
	return &Client{
		Outbound:  make(chan string, clientQueueSize),
		ConnectAt: time.Now(),
	}
}

// Callsign returns the client's negotiated callsign, or "" pre-login.
func (c *Client) Callsign() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.callsign
}

// Filters returns a copy of the client's current filter list.
func (c *Client) Filters() []filter.Filter {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]filter.Filter, len(c.filters))
	copy(out, c.filters)
	return out
}

// Update atomically replaces the client's callsign and filter list.
func (c *Client) Update(callsign string, filters []filter.Filter) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.callsign = callsign
	c.filters = filters
}

// Enqueue attempts a non-blocking send to the client's outbound queue. If
// the queue is full, the oldest entry is dropped to make room (drop-oldest
// overflow policy) and the send is retried once.
func (c *Client) Enqueue(packet string) {
	select {
	case c.Outbound <- packet:
		return
	default:
	}

	select {
	case <-c.Outbound:
	default:
	}

	select {
	case c.Outbound <- packet:
	default:
	}
}
