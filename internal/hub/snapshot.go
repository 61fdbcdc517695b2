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

import "time"

// ClientSummary is a read-only view of one client's accounting, for the
// out-of-scope status dashboard.
type ClientSummary struct {
	ID        uint64
	Callsign  string
	ConnectAt time.Time
	PacketsRX uint64
	PacketsTX uint64
	BytesRX   uint64
	BytesTX   uint64
}

// Status is a point-in-time snapshot of the Hub, assembled for an external
// observability endpoint. This repository does not serve it over HTTP; the
// accessor exists because the Hub's public surface must support it.
type Status struct {
	Uptime  time.Duration
	Clients []ClientSummary
	Peers   []PeerStatus
	Totals  Totals
}

// Snapshot assembles a Status from the Hub's current state.
func (h *Hub) Snapshot() Status {
	h.mu.RLock()
	clients := make([]ClientSummary, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, ClientSummary{
			ID:        c.ID,
			Callsign:  c.Callsign(),
			ConnectAt: c.ConnectAt,
			PacketsRX: c.PacketsRX.Load(),
			PacketsTX: c.PacketsTX.Load(),
			BytesRX:   c.BytesRX.Load(),
			BytesTX:   c.BytesTX.Load(),
		})
	}

	peers := make([]PeerStatus, 0, len(h.peers))
	for _, p := range h.peers {
		if p.Status != nil {
			peers = append(peers, p.Status.Snapshot())
		}
	}
	h.mu.RUnlock()

	return Status{
		Uptime:  time.Since(h.startTime),
		Clients: clients,
		Peers:   peers,
		Totals:  h.UpdateTotals(),
	}
}
