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

// Package uplink implements the single outbound read-only ingress
// connection to an upstream APRS-IS server.
package uplink

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/aprsis-relay/relay/internal/aprs"
	"github.com/aprsis-relay/relay/internal/hub"
	"github.com/aprsis-relay/relay/internal/metrics"
)

const reconnectBackoff = 5 * time.Second

const softwareName = "aprsis-relay"

// softwareVersion is reported in the uplink login line. It is not wired to
// build metadata in this repository; a version-stamped build would read it
// from debug.ReadBuildInfo or a linker-injected variable instead.
const softwareVersion = "0.1.0"

// Config describes the upstream server and the identity this relay
// authenticates with.
type Config struct {
	Host     string
	Port     int
	Callsign string
	Passcode string
}

// Status is observability-only accounting for the uplink connection.
type Status struct {
	mu sync.RWMutex

	Connected   bool
	LastConnect time.Time
	RXPackets   uint64
	RXBytes     uint64
	TXPackets   uint64
	TXBytes     uint64
	ConnectErrs uint64
	ReadErrs    uint64
	LastError   string
}

// Snapshot returns a copy of the status fields.
func (s *Status) Snapshot() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Status{
		Connected:   s.Connected,
		LastConnect: s.LastConnect,
		RXPackets:   s.RXPackets,
		RXBytes:     s.RXBytes,
		TXPackets:   s.TXPackets,
		TXBytes:     s.TXBytes,
		ConnectErrs: s.ConnectErrs,
		ReadErrs:    s.ReadErrs,
		LastError:   s.LastError,
	}
}

// Connector runs the perpetual connect/read/reconnect loop described by the
// uplink ingress model: a single read-only feed fanned out to every local
// client via the Hub.
type Connector struct {
	cfg    Config
	hub    *hub.Hub
	m      *metrics.Metrics
	Status *Status
}

// New creates a Connector. m may be nil if metrics are disabled.
func New(cfg Config, h *hub.Hub, m *metrics.Metrics) *Connector {
	return &Connector{cfg: cfg, hub: h, m: m, Status: &Status{}}
}

// Run blocks, repeatedly connecting and relaying until ctx is canceled.
func (c *Connector) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		if err := c.runOnce(ctx); err != nil {
			slog.Warn("uplink connection ended", "host", c.cfg.Host, "port", c.cfg.Port, "error", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(reconnectBackoff):
		}
	}
}

func (c *Connector) runOnce(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", c.cfg.Host, c.cfg.Port)
	dialer := net.Dialer{}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		c.recordConnectError(err)
		return fmt.Errorf("error connecting to uplink %s: %w", addr, err)
	}
	defer conn.Close()

	c.recordConnect()
	if c.m != nil {
		c.m.UplinkConnected.Set(1)
		defer c.m.UplinkConnected.Set(0)
	}

	login := fmt.Sprintf("user %s pass %s vers %s %s\n", c.cfg.Callsign, c.cfg.Passcode, softwareName, softwareVersion)
	if _, err := conn.Write([]byte(login)); err != nil {
		c.recordReadError(err)
		return fmt.Errorf("error sending uplink login: %w", err)
	}
	c.recordTX(len(login))

	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	reader := bufio.NewReader(conn)
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			c.recordReadError(err)
			c.recordDisconnect()
			return fmt.Errorf("error reading from uplink: %w", err)
		}
		c.recordRX(len(line))

		if !aprs.FrameValid(line) {
			continue
		}
		if c.hub.CheckAndInsertDupe(line) {
			continue
		}
		c.hub.BroadcastPacket(0, aprs.Trim(line))
	}
}

func (c *Connector) recordConnect() {
	c.Status.mu.Lock()
	defer c.Status.mu.Unlock()
	c.Status.Connected = true
	c.Status.LastConnect = time.Now()
	c.Status.LastError = ""
}

func (c *Connector) recordDisconnect() {
	c.Status.mu.Lock()
	defer c.Status.mu.Unlock()
	c.Status.Connected = false
}

func (c *Connector) recordConnectError(err error) {
	c.Status.mu.Lock()
	defer c.Status.mu.Unlock()
	c.Status.ConnectErrs++
	c.Status.LastError = err.Error()
	if c.m != nil {
		c.m.UplinkConnected.Set(0)
	}
}

func (c *Connector) recordReadError(err error) {
	c.Status.mu.Lock()
	defer c.Status.mu.Unlock()
	c.Status.ReadErrs++
	c.Status.LastError = err.Error()
}

func (c *Connector) recordRX(n int) {
	c.Status.mu.Lock()
	defer c.Status.mu.Unlock()
	c.Status.RXPackets++
	c.Status.RXBytes += uint64(n)
}

func (c *Connector) recordTX(n int) {
	c.Status.mu.Lock()
	defer c.Status.mu.Unlock()
	c.Status.TXPackets++
	c.Status.TXBytes += uint64(n)
}
