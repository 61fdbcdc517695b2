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

package aprs

import (
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// Trim removes the trailing CR/LF the wire protocol uses to terminate lines.
func Trim(line string) string {
	return strings.TrimRight(line, "\r\n")
}

// FrameValid reports whether a trimmed packet has the basic
// SRC>DEST[,PATH]:PAYLOAD shape required for routing. It does not validate
// the contents of SRC, DEST, PATH, or PAYLOAD.
func FrameValid(line string) bool {
	line = Trim(line)
	if line == "" {
		return false
	}
	gt := strings.IndexByte(line, '>')
	if gt <= 0 {
		return false
	}
	colon := strings.IndexByte(line[gt+1:], ':')
	if colon < 0 {
		return false
	}
	colon += gt + 1
	return colon > gt+1
}

// payload returns the bytes after the first ':' in a trimmed packet, or
// false if the packet has no payload separator.
func payload(line string) (string, bool) {
	idx := strings.IndexByte(line, ':')
	if idx < 0 {
		return "", false
	}
	return line[idx+1:], true
}

// MessageDestination extracts the addressee of an APRS message packet. The
// payload must begin with ':' and be at least 10 bytes long; the destination
// is the trimmed bytes in [1,10). A non-alphanumeric or empty destination
// yields ("", false).
func MessageDestination(line string) (string, bool) {
	line = Trim(line)
	p, ok := payload(line)
	if !ok || len(p) < 10 || p[0] != ':' {
		return "", false
	}
	dest := strings.TrimSpace(p[1:10])
	if dest == "" {
		return "", false
	}
	for i := 0; i < len(dest); i++ {
		c := dest[i]
		alnum := (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9')
		if !alnum {
			return "", false
		}
	}
	return dest, true
}

// Position is a parsed decimal-degree location.
type Position struct {
	Lat float64
	Lon float64
}

// positionFieldLength is the width in bytes of the field following the !/=
// marker: the 18-byte DDMM.hhN/DDDMM.hhE position plus a 1-byte symbol code.
const positionFieldLength = 19

// ParsePosition locates the first uncompressed position report marker ('!'
// or '=') in the packet's payload and decodes the following
// DDMM.hhN/DDDMM.hhE field into decimal degrees. It returns false if no
// marker is found or the field does not parse.
func ParsePosition(line string) (Position, bool) {
	line = Trim(line)
	p, ok := payload(line)
	if !ok {
		return Position{}, false
	}

	markerIdx := strings.IndexAny(p, "!=")
	if markerIdx < 0 {
		return Position{}, false
	}
	field := p[markerIdx+1:]
	if len(field) < positionFieldLength {
		return Position{}, false
	}
	field = field[:positionFieldLength]

	// DDMM.hhN/DDDMM.hhE, the 19th byte is the symbol code and is ignored here.
	if field[8] != '/' {
		return Position{}, false
	}
	latStr := field[0:7]
	latHemi := field[7]
	lonStr := field[9:17]
	lonHemi := field[17]

	lat, ok := parseDegMin(latStr, 2)
	if !ok {
		return Position{}, false
	}
	lon, ok := parseDegMin(lonStr, 3)
	if !ok {
		return Position{}, false
	}

	switch latHemi {
	case 'N':
	case 'S':
		lat = -lat
	default:
		return Position{}, false
	}
	switch lonHemi {
	case 'E':
	case 'W':
		lon = -lon
	default:
		return Position{}, false
	}

	return Position{Lat: lat, Lon: lon}, true
}

// parseDegMin parses a DDMM.hh or DDDMM.hh fixed-width field (degreeDigits
// leading digits of degrees, followed by MM.hh minutes) into decimal
// degrees.
func parseDegMin(s string, degreeDigits int) (float64, bool) {
	if len(s) != degreeDigits+5 || s[degreeDigits+2] != '.' {
		return 0, false
	}
	deg, err := strconv.Atoi(s[:degreeDigits])
	if err != nil {
		return 0, false
	}
	minutes, err := strconv.ParseFloat(s[degreeDigits:], 64)
	if err != nil {
		return 0, false
	}
	return float64(deg) + minutes/60.0, true
}

// FormatPosition renders decimal degrees back into the wire field format,
// for round-trip tests and for synthesizing test fixtures.
func FormatPosition(lat, lon float64) string {
	latHemi := byte('N')
	if lat < 0 {
		latHemi = 'S'
		lat = -lat
	}
	lonHemi := byte('E')
	if lon < 0 {
		lonHemi = 'W'
		lon = -lon
	}
	latDeg := int(lat)
	latMin := (lat - float64(latDeg)) * 60
	lonDeg := int(lon)
	lonMin := (lon - float64(lonDeg)) * 60

	return pad2(latDeg) + formatMin(latMin) + string(latHemi) + "/" +
		pad3(lonDeg) + formatMin(lonMin) + string(lonHemi)
}

func pad2(n int) string {
	s := strconv.Itoa(n)
	for len(s) < 2 {
		s = "0" + s
	}
	return s
}

func pad3(n int) string {
	s := strconv.Itoa(n)
	for len(s) < 3 {
		s = "0" + s
	}
	return s
}

func formatMin(min float64) string {
	s := strconv.FormatFloat(min, 'f', 2, 64)
	// Ensure MM.hh is always 5 bytes wide (two digits of minutes).
	dot := strings.IndexByte(s, '.')
	for dot < 2 {
		s = "0" + s
		dot++
	}
	return s
}

// Fingerprint computes a stable 64-bit hash of a trimmed packet's bytes,
// used as the dedup cache key. xxhash is fast, non-cryptographic, and
// deterministic across runs for identical input, matching the spec's
// requirement.
func Fingerprint(line string) uint64 {
	return xxhash.Sum64String(Trim(line))
}
