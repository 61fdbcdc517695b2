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

package dedup_test

import (
	"testing"

	"github.com/aprsis-relay/relay/internal/dedup"
	"github.com/stretchr/testify/assert"
)

func TestCheckAndInsertReportsDuplicates(t *testing.T) {
	t.Parallel()
	c := dedup.New(4)

	assert.False(t, c.CheckAndInsert(1), "first sighting of a fingerprint is never a duplicate")
	assert.True(t, c.CheckAndInsert(1), "second sighting of the same fingerprint is a duplicate")
	assert.False(t, c.CheckAndInsert(2), "a distinct fingerprint is never a duplicate")
	assert.Equal(t, 2, c.Len())
}

func TestCheckAndInsertEvictsOldestOnceFull(t *testing.T) {
	t.Parallel()
	c := dedup.New(2)

	assert.False(t, c.CheckAndInsert(1))
	assert.False(t, c.CheckAndInsert(2))
	assert.Equal(t, 2, c.Len())

	// Inserting a third fingerprint evicts fingerprint 1 (FIFO), so it is
	// no longer recognized as a duplicate on its next sighting.
	assert.False(t, c.CheckAndInsert(3))
	assert.Equal(t, 2, c.Len())
	assert.False(t, c.CheckAndInsert(1), "evicted fingerprint should be treated as fresh")
}

func TestCheckAndInsertZeroCapacityNeverDeduplicates(t *testing.T) {
	t.Parallel()
	c := dedup.New(0)

	assert.False(t, c.CheckAndInsert(1))
	assert.False(t, c.CheckAndInsert(1))
	assert.Equal(t, 0, c.Len())
}
