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

// Package session implements the per-connection client state machine: login
// handshake, filter negotiation, per-connection deduplication, and the
// relay loop that feeds packets into the Hub.
package session

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/aprsis-relay/relay/internal/aprs"
	"github.com/aprsis-relay/relay/internal/dedup"
	"github.com/aprsis-relay/relay/internal/filter"
	"github.com/aprsis-relay/relay/internal/hub"
)

// sessionDupeCacheCapacity bounds the per-session duplicate cache,
// independent from the Hub's own cache.
const sessionDupeCacheCapacity = 100

// state is the session's position in the AwaitLogin -> LoggedIn -> Closed
// state machine.
type state int

const (
	stateAwaitLogin state = iota
	stateLoggedIn
	stateClosed
)

// Session owns one accepted user/server-port TCP connection end to end:
// login, filter negotiation, and the relay loop, tearing the client out of
// the Hub on exit.
type Session struct {
	conn   net.Conn
	reader *bufio.Reader
	hub    *hub.Hub
	client *hub.Client
	dupes  *dedup.Cache

	state state

	packetsReceived  atomic.Uint64
	packetsDropped   atomic.Uint64
	packetsDuplicate atomic.Uint64

	startedAt time.Time
}

// New wraps an accepted connection. Call Run to drive the state machine;
// Run returns once the connection is closed.
func New(conn net.Conn, h *hub.Hub) *Session {
	return &Session{
		conn:      conn,
		reader:    bufio.NewReader(conn),
		hub:       h,
		client:    hub.NewClient(),
		dupes:     dedup.New(sessionDupeCacheCapacity),
		state:     stateAwaitLogin,
		startedAt: time.Now(),
	}
}

// Run drives the session to completion: login, then the LoggedIn read loop,
// then teardown. It never returns an error; all failures are logged and
// terminate the connection.
func (s *Session) Run() {
	defer s.teardown()

	if !s.awaitLogin() {
		return
	}

	s.state = stateLoggedIn
	id := s.hub.AddClient(s.client)
	defer s.hub.RemoveClient(id)

	go s.writer()

	s.relayLoop()
}

// writer drains the client's outbound queue to the socket until it closes
// or the connection errors. It exits when Outbound is closed by teardown,
// or immediately on a write error (the reader side will notice the
// resulting EOF/error and tear down).
func (s *Session) writer() {
	for packet := range s.client.Outbound {
		if _, err := s.conn.Write([]byte(packet + "\r\n")); err != nil {
			slog.Debug("session write failed", "callsign", s.client.Callsign(), "error", err)
			return
		}
		s.client.BytesTX.Add(uint64(len(packet) + 2))
	}
}

func (s *Session) awaitLogin() bool {
	line, err := s.readLine()
	if err != nil {
		slog.Debug("session closed before login", "error", err)
		return false
	}

	callsign, passcode, ok := parseLogin(line)
	if !ok {
		s.writeLine("# invalid login")
		return false
	}

	if !aprs.ValidPasscode(callsign, passcode) {
		s.writeLine("# invalid passcode")
		return false
	}

	s.client.Update(aprs.NormalizeCallsign(callsign), nil)
	s.writeLine("# login ok")
	return true
}

// parseLogin tokenizes an AwaitLogin line and extracts the callsign and
// passcode. Recognized keywords are case-insensitive; unrecognized tokens
// (such as "vers ...") are ignored.
func parseLogin(line string) (callsign string, passcode uint16, ok bool) {
	tokens := strings.Fields(line)
	var haveCallsign, havePasscode bool

	for i := 0; i < len(tokens); i++ {
		switch strings.ToLower(tokens[i]) {
		case "user":
			if i+1 < len(tokens) {
				callsign = tokens[i+1]
				haveCallsign = true
				i++
			}
		case "pass":
			if i+1 < len(tokens) {
				n, err := strconv.ParseUint(tokens[i+1], 10, 16)
				if err != nil {
					return "", 0, false
				}
				passcode = uint16(n)
				havePasscode = true
				i++
			}
		}
	}

	if !haveCallsign || !havePasscode {
		return "", 0, false
	}
	return callsign, passcode, true
}

func (s *Session) relayLoop() {
	for {
		line, err := s.readLine()
		if err != nil {
			return
		}

		trimmed := strings.TrimSpace(line)
		folded := strings.ToLower(trimmed)

		switch {
		case strings.HasPrefix(folded, "# filter "):
			s.handleFilterCommand(trimmed[len("# filter "):])
		case folded == "# stats":
			s.handleStatsCommand()
		default:
			s.handlePacket(line)
		}
	}
}

func (s *Session) handleFilterCommand(rest string) {
	tokens := strings.Fields(rest)
	parsed := make([]filter.Filter, 0, len(tokens))

	for _, tok := range tokens {
		f, err := filter.Parse(tok)
		if err != nil {
			s.writeLine(fmt.Sprintf("# invalid filter: %s", err))
			continue
		}
		parsed = append(parsed, f)
	}

	if len(parsed) == 0 {
		return
	}
	s.client.Update(s.client.Callsign(), parsed)
	s.writeLine("# filter set")
}

func (s *Session) handleStatsCommand() {
	s.writeLine(fmt.Sprintf("# stats: uptime=%ds received=%d dropped=%d duplicated=%d",
		int(time.Since(s.startedAt).Seconds()),
		s.packetsReceived.Load(),
		s.packetsDropped.Load(),
		s.packetsDuplicate.Load(),
	))
}

func (s *Session) handlePacket(line string) {
	s.packetsReceived.Add(1)
	s.client.PacketsRX.Add(1)
	s.client.BytesRX.Add(uint64(len(line)))

	fp := aprs.Fingerprint(line)
	if s.dupes.CheckAndInsert(fp) {
		s.packetsDuplicate.Add(1)
		s.client.PacketsDuplicated.Add(1)
		return
	}

	// Extracted for future routing; this repository only logs it.
	if dest, ok := aprs.MessageDestination(line); ok {
		slog.Debug("message destination extracted", "callsign", s.client.Callsign(), "destination", dest)
	}

	filters := s.client.Filters()
	if len(filters) == 0 || filter.MatchesAny(filters, line) {
		s.hub.BroadcastPacket(s.client.ID, aprs.Trim(line))
		return
	}
	s.packetsDropped.Add(1)
}

func (s *Session) readLine() (string, error) {
	line, err := s.reader.ReadString('\n')
	if err != nil {
		if err == io.EOF && line != "" {
			return line, nil
		}
		return "", err
	}
	return line, nil
}

func (s *Session) writeLine(line string) {
	if _, err := s.conn.Write([]byte(line + "\r\n")); err != nil {
		slog.Debug("session write failed", "error", err)
	}
}

func (s *Session) teardown() {
	s.state = stateClosed
	close(s.client.Outbound)
	_ = s.conn.Close()
}
