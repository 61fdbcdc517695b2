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

package session_test

import (
	"bufio"
	"fmt"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/aprsis-relay/relay/internal/aprs"
	"github.com/aprsis-relay/relay/internal/hub"
	"github.com/aprsis-relay/relay/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// dialSession starts a Server on an ephemeral port and returns a connected
// client conn plus a reader for its responses, and the Hub backing it.
func dialSession(t *testing.T) (net.Conn, *bufio.Reader, *hub.Hub, func()) {
	t.Helper()
	h := hub.New(nil)
	srv := session.NewServer(h)
	require.NoError(t, srv.Start("127.0.0.1", 0))

	conn, err := net.Dial("tcp", srv.Addr().String())
	require.NoError(t, err)

	cleanup := func() {
		conn.Close()
		srv.Stop()
	}
	return conn, bufio.NewReader(conn), h, cleanup
}

func loginLine(callsign string) string {
	passcode := aprs.Passcode(callsign)
	return fmt.Sprintf("user %s pass %d vers test 1.0\r\n", callsign, passcode)
}

func TestLoginSucceedsWithValidPasscode(t *testing.T) {
	t.Parallel()
	conn, reader, h, cleanup := dialSession(t)
	defer cleanup()

	_, err := conn.Write([]byte(loginLine("N0CALL")))
	require.NoError(t, err)

	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	assert.Contains(t, line, "# login ok")

	assert.Eventually(t, func() bool { return h.ClientCount() == 1 }, time.Second, 10*time.Millisecond)
}

func TestLoginFailsWithInvalidPasscode(t *testing.T) {
	t.Parallel()
	conn, reader, _, cleanup := dialSession(t)
	defer cleanup()

	_, err := conn.Write([]byte("user N0CALL pass 1 vers test 1.0\r\n"))
	require.NoError(t, err)

	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	assert.Contains(t, line, "# invalid passcode")
}

func TestLoginFailsWithMissingFields(t *testing.T) {
	t.Parallel()
	conn, reader, _, cleanup := dialSession(t)
	defer cleanup()

	_, err := conn.Write([]byte("user N0CALL\r\n"))
	require.NoError(t, err)

	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	assert.Contains(t, line, "# invalid login")
}

func TestFilterCommandAcceptsValidTokens(t *testing.T) {
	t.Parallel()
	conn, reader, _, cleanup := dialSession(t)
	defer cleanup()

	_, err := conn.Write([]byte(loginLine("N0CALL")))
	require.NoError(t, err)
	_, err = reader.ReadString('\n')
	require.NoError(t, err)

	_, err = conn.Write([]byte("# filter p/N0\r\n"))
	require.NoError(t, err)

	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	assert.Contains(t, line, "# filter set")
}

func TestFilterCommandReportsInvalidTokenButContinues(t *testing.T) {
	t.Parallel()
	conn, reader, _, cleanup := dialSession(t)
	defer cleanup()

	_, err := conn.Write([]byte(loginLine("N0CALL")))
	require.NoError(t, err)
	_, err = reader.ReadString('\n')
	require.NoError(t, err)

	_, err = conn.Write([]byte("# filter zzz p/N0\r\n"))
	require.NoError(t, err)

	first, err := reader.ReadString('\n')
	require.NoError(t, err)
	assert.Contains(t, first, "# invalid filter")

	second, err := reader.ReadString('\n')
	require.NoError(t, err)
	assert.Contains(t, second, "# filter set")
}

func TestStatsCommandReportsCounters(t *testing.T) {
	t.Parallel()
	conn, reader, _, cleanup := dialSession(t)
	defer cleanup()

	_, err := conn.Write([]byte(loginLine("N0CALL")))
	require.NoError(t, err)
	_, err = reader.ReadString('\n')
	require.NoError(t, err)

	_, err = conn.Write([]byte("# stats\r\n"))
	require.NoError(t, err)

	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	assert.Contains(t, line, "# stats: uptime=")
	assert.Contains(t, line, "received=0")
}

func TestTwoClientsRelayWithFilter(t *testing.T) {
	t.Parallel()
	h := hub.New(nil)
	srv := session.NewServer(h)
	require.NoError(t, srv.Start("127.0.0.1", 0))
	defer srv.Stop()

	connA, err := net.Dial("tcp", srv.Addr().String())
	require.NoError(t, err)
	defer connA.Close()
	readerA := bufio.NewReader(connA)

	connB, err := net.Dial("tcp", srv.Addr().String())
	require.NoError(t, err)
	defer connB.Close()
	readerB := bufio.NewReader(connB)

	_, err = connA.Write([]byte(loginLine("N0CALL")))
	require.NoError(t, err)
	_, err = readerA.ReadString('\n')
	require.NoError(t, err)

	_, err = connB.Write([]byte(loginLine("N1CALL")))
	require.NoError(t, err)
	_, err = readerB.ReadString('\n')
	require.NoError(t, err)

	_, err = connB.Write([]byte("# filter a/*\r\n"))
	require.NoError(t, err)
	_, err = readerB.ReadString('\n')
	require.NoError(t, err)

	_, err = connA.Write([]byte("N0CALL>APRS:hello\r\n"))
	require.NoError(t, err)

	connB.SetReadDeadline(time.Now().Add(2 * time.Second))
	line, err := readerB.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "N0CALL>APRS:hello\r\n", line)
}

func TestDuplicatePacketSuppressedPerSession(t *testing.T) {
	t.Parallel()
	h := hub.New(nil)
	srv := session.NewServer(h)
	require.NoError(t, srv.Start("127.0.0.1", 0))
	defer srv.Stop()

	connA, err := net.Dial("tcp", srv.Addr().String())
	require.NoError(t, err)
	defer connA.Close()
	readerA := bufio.NewReader(connA)

	connB, err := net.Dial("tcp", srv.Addr().String())
	require.NoError(t, err)
	defer connB.Close()
	readerB := bufio.NewReader(connB)

	_, err = connA.Write([]byte(loginLine("N0CALL")))
	require.NoError(t, err)
	_, err = readerA.ReadString('\n')
	require.NoError(t, err)

	_, err = connB.Write([]byte(loginLine("N1CALL")))
	require.NoError(t, err)
	_, err = readerB.ReadString('\n')
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		_, err = connA.Write([]byte("N0CALL>APRS:dup" + strconv.Itoa(0) + "\r\n"))
		require.NoError(t, err)
	}

	connB.SetReadDeadline(time.Now().Add(2 * time.Second))
	line, err := readerB.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "N0CALL>APRS:dup0\r\n", line)

	_, err = connA.Write([]byte("N0CALL>APRS:fresh\r\n"))
	require.NoError(t, err)
	line, err = readerB.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "N0CALL>APRS:fresh\r\n", line)
}
