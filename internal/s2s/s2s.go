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

// Package s2s implements bidirectional server-to-server federation: outbound
// connectors to configured peers, and an inbound acceptor for peers that
// dial us.
package s2s

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/aprsis-relay/relay/internal/aprs"
	"github.com/aprsis-relay/relay/internal/hub"
	"github.com/aprsis-relay/relay/internal/metrics"
)

const (
	reconnectBackoff = 5 * time.Second
	idleKeepalive    = 60 * time.Second
	softwareName     = "aprsis-relay"
	softwareVersion  = "0.1.0"
)

// PeerConfig describes one configured outbound S2S peer.
type PeerConfig struct {
	Host     string
	Port     int
	Passcode string
	PeerName string
}

func (p PeerConfig) name() string {
	if p.PeerName != "" {
		return p.PeerName
	}
	return fmt.Sprintf("%s:%d", p.Host, p.Port)
}

// Connector runs the perpetual outbound connect loop for one configured
// peer.
type Connector struct {
	cfg     PeerConfig
	hub     *hub.Hub
	m       *metrics.Metrics
	s2sPort int
}

// NewConnector creates an outbound S2S connector. s2sPort is this server's
// own S2S listening port, reported in the login line. m may be nil if
// metrics are disabled.
func NewConnector(cfg PeerConfig, h *hub.Hub, m *metrics.Metrics, s2sPort int) *Connector {
	return &Connector{cfg: cfg, hub: h, m: m, s2sPort: s2sPort}
}

// Run blocks, repeatedly connecting and relaying until ctx is canceled.
func (c *Connector) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		if err := c.runOnce(ctx); err != nil {
			slog.Warn("s2s connection ended", "peer", c.cfg.name(), "error", err)
			if c.m != nil {
				c.m.S2SReconnectsTotal.Inc()
			}
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
		return fmt.Errorf("error connecting to s2s peer %s: %w", addr, err)
	}
	defer conn.Close()

	peerName := c.cfg.name()
	status := &hub.PeerStatus{Host: c.cfg.Host, Port: c.cfg.Port, PeerName: peerName}
	handle := hub.NewPeerHandle(peerName, status)
	c.hub.RegisterPeer(handle)
	defer c.hub.UnregisterPeer(peerName)

	go writeLoop(conn, handle)

	login := fmt.Sprintf("# %s %s s2s %s %s %d\n", softwareName, softwareVersion, peerName, c.cfg.Passcode, c.s2sPort)
	if _, err := conn.Write([]byte(login)); err != nil {
		return fmt.Errorf("error sending s2s login: %w", err)
	}

	return relayLoop(ctx, conn, c.hub, handle, peerName)
}

// Acceptor listens for inbound S2S connections and federates with each.
type Acceptor struct {
	hub      *hub.Hub
	listener net.Listener
}

// NewAcceptor creates an inbound S2S acceptor.
func NewAcceptor(h *hub.Hub) *Acceptor {
	return &Acceptor{hub: h}
}

// Start binds the listener and begins accepting connections in a background
// goroutine.
func (a *Acceptor) Start(ctx context.Context, bind string, port int) error {
	ln, err := net.Listen("tcp", fmt.Sprintf("%s:%d", bind, port))
	if err != nil {
		return fmt.Errorf("error starting s2s listener: %w", err)
	}
	a.listener = ln

	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()

	go a.acceptLoop(ctx)
	slog.Info("s2s federation server listening", "address", bind, "port", port)
	return nil
}

// Addr returns the listener's bound address.
func (a *Acceptor) Addr() net.Addr {
	return a.listener.Addr()
}

func (a *Acceptor) acceptLoop(ctx context.Context) {
	for {
		conn, err := a.listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			slog.Warn("error accepting s2s connection", "error", err)
			continue
		}
		go a.handle(ctx, conn)
	}
}

func (a *Acceptor) handle(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	// The synthetic peer name is the remote address; real peer identity
	// validation is out of scope.
	peerName := conn.RemoteAddr().String()
	host, portStr, splitErr := net.SplitHostPort(peerName)
	port := 0
	if splitErr == nil {
		_, _ = fmt.Sscanf(portStr, "%d", &port)
	} else {
		host = peerName
	}

	status := &hub.PeerStatus{Host: host, Port: port, PeerName: peerName}
	handle := hub.NewPeerHandle(peerName, status)
	a.hub.RegisterPeer(handle)
	defer a.hub.UnregisterPeer(peerName)

	go writeLoop(conn, handle)

	reader := bufio.NewReader(conn)
	loginLine, err := reader.ReadString('\n')
	if err != nil {
		slog.Debug("s2s inbound closed before login", "peer", peerName, "error", err)
		return
	}
	slog.Info("s2s inbound login received", "peer", peerName, "login", aprs.Trim(loginLine))

	ourLogin := fmt.Sprintf("# %s %s s2s %s\n", softwareName, softwareVersion, peerName)
	if _, err := conn.Write([]byte(ourLogin)); err != nil {
		slog.Debug("s2s inbound write failed", "peer", peerName, "error", err)
		return
	}

	if err := relayLoopWithReader(ctx, conn, reader, a.hub, handle, peerName); err != nil {
		slog.Debug("s2s inbound connection ended", "peer", peerName, "error", err)
	}
}

// relayLoop reads the peer's login/ack line, logs it, then enters the
// shared read/keepalive loop.
func relayLoop(ctx context.Context, conn net.Conn, h *hub.Hub, handle *hub.PeerHandle, peerName string) error {
	reader := bufio.NewReader(conn)
	ack, err := reader.ReadString('\n')
	if err != nil {
		return fmt.Errorf("error reading s2s login ack: %w", err)
	}
	slog.Info("s2s outbound login ack received", "peer", peerName, "ack", aprs.Trim(ack))

	return relayLoopWithReader(ctx, conn, reader, h, handle, peerName)
}

// relayLoopWithReader reads inbound packets, relaying fresh ones to local
// clients and other peers, and sends a keepalive after 60s of read
// inactivity.
func relayLoopWithReader(ctx context.Context, conn net.Conn, reader *bufio.Reader, h *hub.Hub, handle *hub.PeerHandle, peerName string) error {
	lines := make(chan string)
	readErrs := make(chan error, 1)
	go func() {
		for {
			line, err := reader.ReadString('\n')
			if err != nil {
				readErrs <- err
				return
			}
			lines <- line
		}
	}()

	timer := time.NewTimer(idleKeepalive)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-readErrs:
			return fmt.Errorf("error reading from s2s peer %s: %w", peerName, err)
		case line := <-lines:
			if !timer.Stop() {
				<-timer.C
			}
			timer.Reset(idleKeepalive)

			if !aprs.FrameValid(line) {
				continue
			}
			if h.CheckAndInsertDupe(line) {
				continue
			}
			trimmed := aprs.Trim(line)
			h.BroadcastPacket(0, trimmed)
			h.BroadcastToS2SPeers(peerName, trimmed)
		case <-timer.C:
			handle.Enqueue("# keepalive")
			timer.Reset(idleKeepalive)
		}
	}
}

// writeLoop drains handle's outbound queue to conn until the handle closes.
func writeLoop(conn net.Conn, handle *hub.PeerHandle) {
	for {
		packet, ok := handle.Dequeue()
		if !ok {
			return
		}
		if _, err := conn.Write([]byte(packet + "\n")); err != nil {
			slog.Debug("s2s write failed", "peer", handle.PeerName, "error", err)
			return
		}
	}
}
