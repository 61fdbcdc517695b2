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

package session

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"

	"github.com/aprsis-relay/relay/internal/hub"
)

// Server accepts user/server-port TCP connections and spawns a Session per
// connection.
type Server struct {
	hub *hub.Hub

	listener net.Listener
	wg       sync.WaitGroup
	stopped  atomic.Bool
	stopOnce sync.Once
}

// NewServer creates an acceptor bound to the given Hub. Call Start to begin
// listening.
func NewServer(h *hub.Hub) *Server {
	return &Server{hub: h}
}

// Start binds the listener on bind:port and begins accepting connections in
// a background goroutine.
func (s *Server) Start(bind string, port int) error {
	ln, err := net.Listen("tcp", fmt.Sprintf("%s:%d", bind, port))
	if err != nil {
		return fmt.Errorf("error starting client listener: %w", err)
	}
	s.listener = ln

	s.wg.Add(1)
	go s.acceptLoop()

	slog.Info("client session server listening", "address", bind, "port", port)
	return nil
}

// Addr returns the listener's bound address, useful in tests that listen on
// an ephemeral port.
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			slog.Warn("error accepting client connection", "error", err)
			continue
		}

		if s.stopped.Load() {
			_ = conn.Close()
			continue
		}
		go func() {
			sess := New(conn, s.hub)
			sess.Run()
		}()
	}
}

// Stop closes the listener and waits for the accept loop to exit. It does
// not wait for or forcibly close already-established sessions; those tear
// down on their own read error once the process shuts down.
func (s *Server) Stop() error {
	var err error
	s.stopOnce.Do(func() {
		slog.Info("stopping client session server")
		s.stopped.Store(true)
		if s.listener != nil {
			err = s.listener.Close()
		}
	})
	s.wg.Wait()
	return err
}
