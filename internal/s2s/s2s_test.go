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

package s2s_test

import (
	"bufio"
	"context"
	"net"
	"testing"
	"time"

	"github.com/aprsis-relay/relay/internal/hub"
	"github.com/aprsis-relay/relay/internal/s2s"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutboundConnectorSendsLoginAndRelaysFreshPackets(t *testing.T) {
	t.Parallel()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	addr := ln.Addr().(*net.TCPAddr)

	accepted := make(chan net.Conn, 1)
	go func() {
		conn, err := ln.Accept()
		if err == nil {
			accepted <- conn
		}
	}()

	h := hub.New(nil)
	localClient := hub.NewClient()
	h.AddClient(localClient)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	connector := s2s.NewConnector(s2s.PeerConfig{
		Host:     "127.0.0.1",
		Port:     addr.Port,
		Passcode: "secret",
		PeerName: "alpha",
	}, h, nil, 14579)
	go connector.Run(ctx)

	var serverConn net.Conn
	select {
	case serverConn = <-accepted:
	case <-time.After(2 * time.Second):
		t.Fatal("connector never dialed")
	}
	defer serverConn.Close()

	reader := bufio.NewReader(serverConn)
	loginLine, err := reader.ReadString('\n')
	require.NoError(t, err)
	assert.Contains(t, loginLine, "s2s alpha secret 14579")

	// Server's login ack, which the connector must consume before entering
	// the relay loop.
	_, err = serverConn.Write([]byte("# aprsis-relay 0.1.0 ack\n"))
	require.NoError(t, err)

	assert.Eventually(t, func() bool { return h.PeerCount() == 1 }, time.Second, 10*time.Millisecond)

	_, err = serverConn.Write([]byte("N0CALL>APRS:hi\n"))
	require.NoError(t, err)

	select {
	case pkt := <-localClient.Outbound:
		assert.Equal(t, "N0CALL>APRS:hi", pkt)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for relayed packet")
	}
}

func TestInboundAcceptorRegistersPeerAndEchoesLogin(t *testing.T) {
	t.Parallel()

	h := hub.New(nil)
	acceptor := s2s.NewAcceptor(h)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, acceptor.Start(ctx, "127.0.0.1", 0))

	conn, err := net.Dial("tcp", acceptor.Addr().String())
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte("# aprsis-relay 0.1.0 s2s beta secret 14579\n"))
	require.NoError(t, err)

	reader := bufio.NewReader(conn)
	ack, err := reader.ReadString('\n')
	require.NoError(t, err)
	assert.Contains(t, ack, "aprsis-relay")

	assert.Eventually(t, func() bool { return h.PeerCount() == 1 }, time.Second, 10*time.Millisecond)
}

func TestBroadcastToS2SPeersEchoSuppressionIntegration(t *testing.T) {
	t.Parallel()

	h := hub.New(nil)

	alpha := hub.NewPeerHandle("alpha", &hub.PeerStatus{PeerName: "alpha"})
	beta := hub.NewPeerHandle("beta", &hub.PeerStatus{PeerName: "beta"})
	h.RegisterPeer(alpha)
	h.RegisterPeer(beta)

	h.BroadcastToS2SPeers("alpha", "N0CALL>APRS:relayed")

	pkt, ok := beta.Dequeue()
	require.True(t, ok)
	assert.Equal(t, "N0CALL>APRS:relayed", pkt)

	alpha.Close()
	_, ok = alpha.Dequeue()
	assert.False(t, ok)
}
