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
)

// PeerHandle represents a logged-in S2S peer link. The outbound queue is an
// unbounded FIFO: a single writer goroutine owned by the connector or
// acceptor drains it to the socket.
type PeerHandle struct {
	PeerName string

	mu     sync.Mutex
	cond   *sync.Cond
	queue  []string
	closed bool

	Status *PeerStatus
}

// PeerStatus is observability-only accounting for a peer link, exposed via
// Hub.Snapshot. The S2S connector and acceptor set only Host, Port, and
// PeerName; the connection, traffic, and error fields are not updated by
// them and keep their zero values.
type PeerStatus struct {
	mu sync.RWMutex

	Host     string
	Port     int
	PeerName string

	Connected    bool
	LastConnect  time.Time
	LastRX       time.Time
	LastTX       time.Time
	RXPackets    uint64
	TXPackets    uint64
	RXBytes      uint64
	TXBytes      uint64
	ConnectErrs  uint64
	ReadErrs     uint64
	WriteErrs    uint64
	LastError    string
}

// NewPeerHandle creates a handle with an empty outbound queue.
func NewPeerHandle(peerName string, status *PeerStatus) *PeerHandle {
	p := &PeerHandle{
		PeerName: peerName,
		Status:   status,
	}
	p.cond = sync.NewCond(&p.mu)
	return p
}

// Enqueue appends a packet to the peer's outbound queue and wakes the
// draining writer.
func (p *PeerHandle) Enqueue(packet string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.queue = append(p.queue, packet)
	p.cond.Signal()
}

// Dequeue blocks until a packet is available or the handle is closed. The
// second return value is false once the queue is closed and drained.
func (p *PeerHandle) Dequeue() (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for len(p.queue) == 0 && !p.closed {
		p.cond.Wait()
	}
	if len(p.queue) == 0 {
		return "", false
	}
	packet := p.queue[0]
	p.queue = p.queue[1:]
	return packet, true
}

// Close marks the handle closed and wakes any blocked Dequeue so the writer
// goroutine can exit.
func (p *PeerHandle) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	p.cond.Broadcast()
}

func (s *PeerStatus) recordConnect() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Connected = true
	s.LastConnect = time.Now()
	s.LastError = ""
}

func (s *PeerStatus) recordDisconnect() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Connected = false
}

func (s *PeerStatus) recordError(kind string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch kind {
	case "connect":
		s.ConnectErrs++
	case "read":
		s.ReadErrs++
	case "write":
		s.WriteErrs++
	}
	s.LastError = err.Error()
}

func (s *PeerStatus) recordRX(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.RXPackets++
	s.RXBytes += uint64(n)
	s.LastRX = time.Now()
}

func (s *PeerStatus) recordTX(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.TXPackets++
	s.TXBytes += uint64(n)
	s.LastTX = time.Now()
}

// Snapshot returns a copy of the status fields, taken under the status
// lock so it is safe against concurrent writers of the live struct.
func (s *PeerStatus) Snapshot() PeerStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return PeerStatus{
		Host:        s.Host,
		Port:        s.Port,
		PeerName:    s.PeerName,
		Connected:   s.Connected,
		LastConnect: s.LastConnect,
		LastRX:      s.LastRX,
		LastTX:      s.LastTX,
		RXPackets:   s.RXPackets,
		TXPackets:   s.TXPackets,
		RXBytes:     s.RXBytes,
		TXBytes:     s.TXBytes,
		ConnectErrs: s.ConnectErrs,
		ReadErrs:    s.ReadErrs,
		WriteErrs:   s.WriteErrs,
		LastError:   s.LastError,
	}
}
