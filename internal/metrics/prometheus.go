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

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds every Prometheus collector the relay registers. The Hub,
// the uplink connector, and the outbound S2S connectors are each handed
// this struct so they can record against it without importing prometheus
// directly; client sessions and the inbound S2S acceptor are not.
// PacketsReceivedTotal, PacketsRelayedTotal, and PacketsDroppedTotal are
// registered but nothing in this repository increments them.
type Metrics struct {
	ClientsConnected prometheus.Gauge
	PeersConnected   prometheus.Gauge
	UplinkConnected  prometheus.Gauge
	DedupCacheSize   prometheus.Gauge

	PacketsReceivedTotal  prometheus.Counter
	PacketsRelayedTotal   prometheus.Counter
	PacketsDuplicateTotal prometheus.Counter
	PacketsDroppedTotal   prometheus.Counter

	S2SReconnectsTotal prometheus.Counter
}

// NewMetrics constructs and registers all collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		ClientsConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "aprsis_clients_connected",
			Help: "Number of user clients currently logged in",
		}),
		PeersConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "aprsis_peers_connected",
			Help: "Number of S2S peer links currently logged in",
		}),
		UplinkConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "aprsis_uplink_connected",
			Help: "Whether the uplink connector currently has a live connection (0/1)",
		}),
		DedupCacheSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "aprsis_dedup_cache_size",
			Help: "Current number of fingerprints held in the Hub dedup cache",
		}),
		PacketsReceivedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "aprsis_packets_received_total",
			Help: "Total packets received across all ingress paths",
		}),
		PacketsRelayedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "aprsis_packets_relayed_total",
			Help: "Total packets relayed to at least one subscriber",
		}),
		PacketsDuplicateTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "aprsis_packets_duplicate_total",
			Help: "Total packets dropped as duplicates by the Hub cache",
		}),
		PacketsDroppedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "aprsis_packets_dropped_total",
			Help: "Total packets dropped for lack of a matching filter",
		}),
		S2SReconnectsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "aprsis_s2s_reconnects_total",
			Help: "Total reconnect attempts across outbound S2S connectors",
		}),
	}
	m.register()
	return m
}

func (m *Metrics) register() {
	prometheus.MustRegister(
		m.ClientsConnected,
		m.PeersConnected,
		m.UplinkConnected,
		m.DedupCacheSize,
		m.PacketsReceivedTotal,
		m.PacketsRelayedTotal,
		m.PacketsDuplicateTotal,
		m.PacketsDroppedTotal,
		m.S2SReconnectsTotal,
	)
}
