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

// Package aprs implements the structural validation, parsing, and hashing
// primitives the relay needs for routing APRS-IS packets. It does not
// implement full APRS payload semantics, only what filtering, routing, and
// deduplication require.
package aprs

import "strings"

// aprsisPasscodeSeed is the fixed initial accumulator for the APRS-IS
// passcode hash, as used by every APRS-IS server and client since aprsd.
const aprsisPasscodeSeed uint32 = 0x73E2070A

// aprsisPasscodeMask keeps the hash to 15 usable bits.
const aprsisPasscodeMask uint32 = 0x7FFF

// NormalizeCallsign strips any "-SSID" suffix and uppercases the remainder.
func NormalizeCallsign(callsign string) string {
	base := callsign
	if idx := strings.IndexByte(callsign, '-'); idx >= 0 {
		base = callsign[:idx]
	}
	return strings.ToUpper(base)
}

// Passcode computes the standard APRS-IS passcode for a callsign. The
// result is case-insensitive and SSID-insensitive: stripping any "-SSID"
// suffix and uppercasing happen before hashing.
func Passcode(callsign string) uint16 {
	base := NormalizeCallsign(callsign)

	hash := aprsisPasscodeSeed
	for i := 0; i < len(base); i++ {
		c := uint32(base[i])
		if i%2 == 0 {
			hash ^= c << 8
		} else {
			hash ^= c
		}
	}
	return uint16(hash & aprsisPasscodeMask)
}

// ValidPasscode reports whether the given passcode authenticates callsign.
func ValidPasscode(callsign string, passcode uint16) bool {
	return Passcode(callsign) == passcode
}
