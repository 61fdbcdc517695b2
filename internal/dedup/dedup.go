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

// Package dedup implements a fixed-capacity, FIFO-eviction fingerprint
// cache. The Hub and each client session each keep their own instance, at
// different capacities, for cross-link and per-connection suppression
// respectively.
package dedup

import "container/list"

// Cache is a fixed-capacity set of packet fingerprints with strict FIFO
// eviction. Not safe for concurrent use on its own; callers serialize
// access.
type Cache struct {
	capacity int
	set      map[uint64]*list.Element
	order    *list.List
}

// New creates an empty Cache bounded at capacity entries.
func New(capacity int) *Cache {
	return &Cache{
		capacity: capacity,
		set:      make(map[uint64]*list.Element, capacity),
		order:    list.New(),
	}
}

// CheckAndInsert reports whether fp was already present, inserting it if
// not. On insert, the oldest entry is evicted once capacity is exceeded.
func (c *Cache) CheckAndInsert(fp uint64) bool {
	if _, ok := c.set[fp]; ok {
		return true
	}

	elem := c.order.PushBack(fp)
	c.set[fp] = elem

	if c.order.Len() > c.capacity {
		oldest := c.order.Front()
		c.order.Remove(oldest)
		delete(c.set, oldest.Value.(uint64))
	}

	return false
}

// Len reports the number of fingerprints currently cached.
func (c *Cache) Len() int {
	return c.order.Len()
}
