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

package hub

import (
	"sync"
	"time"

	"github.com/aprsis-relay/relay/internal/aprs"
	"github.com/aprsis-relay/relay/internal/dedup"
	"github.com/aprsis-relay/relay/internal/metrics"
)

// dupeCacheCapacity is the Hub-wide dedup cache size, independent from each
// session's own per-session cache.
const dupeCacheCapacity = 1000

// Hub is the process-wide registry of connected clients and peer links. All
// operations are serialized through a single mutex; client records nested
// inside the Hub carry their own lock so a holder of the Hub lock never
// needs to also hold a client lock.
type Hub struct {
	mu        sync.RWMutex
	clients   map[uint64]*Client
	nextID    uint64
	startTime time.Time

	peers map[string]*PeerHandle
	dupes *dedup.Cache

	metrics *metrics.Metrics

	totals Totals
}

// Totals are aggregate counters recomputed by UpdateTotals.
type Totals struct {
	PacketsReceived  uint64
	PacketsRelayed   uint64
	PacketsDuplicate uint64
	PacketsDropped   uint64
}

// New creates an empty Hub. m may be nil if metrics are disabled.
func New(m *metrics.Metrics) *Hub {
	return &Hub{
		clients:   make(map[uint64]*Client),
		peers:     make(map[string]*PeerHandle),
		dupes:     dedup.New(dupeCacheCapacity),
		startTime: time.Now(),
		metrics:   m,
	}
}

// AddClient registers c, assigns it the next monotonic id, and returns that
// id.
func (h *Hub) AddClient(c *Client) uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	c.ID = h.nextID
	h.clients[c.ID] = c

	if h.metrics != nil {
		h.metrics.ClientsConnected.Set(float64(len(h.clients)))
	}
	return c.ID
}

// RemoveClient idempotently removes a client by id.
func (h *Hub) RemoveClient(id uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	delete(h.clients, id)

	if h.metrics != nil {
		h.metrics.ClientsConnected.Set(float64(len(h.clients)))
	}
}

// ClientCount returns the number of currently registered clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// BroadcastPacket delivers packet to every registered client other than
// senderID. senderID 0 means the source is not itself a client (uplink or
// S2S ingress) and excludes no one. Delivery is a non-blocking enqueue onto
// each client's outbound queue.
func (h *Hub) BroadcastPacket(senderID uint64, packet string) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for id, c := range h.clients {
		if senderID != 0 && id == senderID {
			continue
		}
		c.Enqueue(packet)
		c.PacketsTX.Add(1)
	}
}

// BroadcastToS2SPeers delivers packet to every registered peer handle
// except one whose PeerName equals senderName (echo suppression).
func (h *Hub) BroadcastToS2SPeers(senderName, packet string) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, p := range h.peers {
		if senderName != "" && p.PeerName == senderName {
			continue
		}
		p.Enqueue(packet)
	}
}

// RegisterPeer adds a peer handle to the Hub, keyed by its peer name.
func (h *Hub) RegisterPeer(p *PeerHandle) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.peers[p.PeerName] = p
	if h.metrics != nil {
		h.metrics.PeersConnected.Set(float64(len(h.peers)))
	}
}

// UnregisterPeer removes a peer handle by name and closes its queue.
func (h *Hub) UnregisterPeer(peerName string) {
	h.mu.Lock()
	p, ok := h.peers[peerName]
	if ok {
		delete(h.peers, peerName)
	}
	peerCount := len(h.peers)
	h.mu.Unlock()

	if ok {
		p.Close()
	}
	if h.metrics != nil {
		h.metrics.PeersConnected.Set(float64(peerCount))
	}
}

// PeerCount returns the number of currently registered peer links.
func (h *Hub) PeerCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.peers)
}

// CheckAndInsertDupe computes the fingerprint of packet and reports whether
// it was already present in the Hub-wide dedup cache, inserting it if not.
func (h *Hub) CheckAndInsertDupe(packet string) bool {
	fp := aprs.Fingerprint(packet)

	h.mu.Lock()
	dup := h.dupes.CheckAndInsert(fp)
	size := h.dupes.Len()
	h.mu.Unlock()

	if h.metrics != nil {
		h.metrics.DedupCacheSize.Set(float64(size))
		if dup {
			h.metrics.PacketsDuplicateTotal.Inc()
		}
	}
	return dup
}

// UpdateTotals recomputes aggregate counters by summing over every
// registered client. Callers should invoke this before reading Totals.
func (h *Hub) UpdateTotals() Totals {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var t Totals
	for _, c := range h.clients {
		t.PacketsReceived += c.PacketsRX.Load()
		t.PacketsRelayed += c.PacketsTX.Load()
		t.PacketsDuplicate += c.PacketsDuplicated.Load()
		t.PacketsDropped += c.PacketsDropped.Load()
	}
	h.totals = t
	return t
}

// StartTime returns when the Hub was created, for uptime reporting.
func (h *Hub) StartTime() time.Time {
	return h.startTime
}
