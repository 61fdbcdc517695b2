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

// Package filter implements client subscription filter parsing and
// evaluation against relayed packets.
package filter

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/aprsis-relay/relay/internal/aprs"
)

// Kind identifies which variant a Filter holds.
type Kind int

const (
	// All matches every packet.
	All Kind = iota
	// Area matches packets within a great-circle radius of a point.
	Area
	// Box matches packets within an axis-aligned bounding box.
	Box
	// Prefix matches packets whose raw frame starts with a string.
	Prefix
	// Type matches packets whose payload starts with a string.
	Type
	// Object matches packets containing a substring.
	Object
)

// Filter is a single parsed client subscription filter.
type Filter struct {
	Kind Kind

	// Area
	Lat, Lon, RadiusKM float64

	// Box
	Lat1, Lon1, Lat2, Lon2 float64

	// Prefix, Type, Object
	Str string
}

// ErrUnknownFilter is returned when a token does not match any known filter
// shape.
var ErrUnknownFilter = errors.New("filter: unrecognized filter token")

// Parse decodes a single whitespace-free filter token into a Filter.
func Parse(token string) (Filter, error) {
	switch {
	case token == "a/*" || strings.EqualFold(token, "all"):
		return Filter{Kind: All}, nil
	case strings.HasPrefix(token, "r/"):
		return parseArea(token)
	case strings.HasPrefix(token, "a/"):
		return parseBox(token)
	case strings.HasPrefix(token, "p/"):
		return Filter{Kind: Prefix, Str: token[2:]}, nil
	case strings.HasPrefix(token, "t/"):
		return Filter{Kind: Type, Str: token[2:]}, nil
	case strings.HasPrefix(token, "o/"):
		return Filter{Kind: Object, Str: token[2:]}, nil
	default:
		return Filter{}, fmt.Errorf("%w: %q", ErrUnknownFilter, token)
	}
}

func parseArea(token string) (Filter, error) {
	parts := strings.Split(token[2:], "/")
	if len(parts) != 3 {
		return Filter{}, fmt.Errorf("%w: %q", ErrUnknownFilter, token)
	}
	lat, err := strconv.ParseFloat(parts[0], 64)
	if err != nil {
		return Filter{}, fmt.Errorf("%w: %q: %w", ErrUnknownFilter, token, err)
	}
	lon, err := strconv.ParseFloat(parts[1], 64)
	if err != nil {
		return Filter{}, fmt.Errorf("%w: %q: %w", ErrUnknownFilter, token, err)
	}
	radius, err := strconv.ParseFloat(parts[2], 64)
	if err != nil {
		return Filter{}, fmt.Errorf("%w: %q: %w", ErrUnknownFilter, token, err)
	}
	return Filter{Kind: Area, Lat: lat, Lon: lon, RadiusKM: radius}, nil
}

func parseBox(token string) (Filter, error) {
	parts := strings.Split(token[2:], "/")
	if len(parts) != 4 {
		return Filter{}, fmt.Errorf("%w: %q", ErrUnknownFilter, token)
	}
	vals := make([]float64, 4)
	for i, p := range parts {
		v, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return Filter{}, fmt.Errorf("%w: %q: %w", ErrUnknownFilter, token, err)
		}
		vals[i] = v
	}
	return Filter{Kind: Box, Lat1: vals[0], Lon1: vals[1], Lat2: vals[2], Lon2: vals[3]}, nil
}

// ParseAll parses a space-separated sequence of filter tokens. The first
// unparseable token fails the whole sequence.
func ParseAll(tokens []string) ([]Filter, error) {
	filters := make([]Filter, 0, len(tokens))
	for _, tok := range tokens {
		f, err := Parse(tok)
		if err != nil {
			return nil, err
		}
		filters = append(filters, f)
	}
	return filters, nil
}

// Matches reports whether packet matches a single filter.
func Matches(f Filter, packet string) bool {
	switch f.Kind {
	case All:
		return true
	case Area:
		pos, ok := aprs.ParsePosition(packet)
		if !ok {
			return false
		}
		return aprs.Haversine(f.Lat, f.Lon, pos.Lat, pos.Lon) <= f.RadiusKM
	case Box:
		pos, ok := aprs.ParsePosition(packet)
		if !ok {
			return false
		}
		minLat, maxLat := minMax(f.Lat1, f.Lat2)
		minLon, maxLon := minMax(f.Lon1, f.Lon2)
		return pos.Lat >= minLat && pos.Lat <= maxLat && pos.Lon >= minLon && pos.Lon <= maxLon
	case Prefix:
		return strings.HasPrefix(strings.ToLower(packet), strings.ToLower(f.Str))
	case Type:
		idx := strings.IndexByte(packet, ':')
		if idx < 0 {
			return false
		}
		return strings.HasPrefix(packet[idx+1:], f.Str)
	case Object:
		return strings.Contains(packet, f.Str)
	default:
		return false
	}
}

// MatchesAny reports whether packet matches any filter in the list
// (disjunction). An empty list never matches.
func MatchesAny(filters []Filter, packet string) bool {
	for _, f := range filters {
		if Matches(f, packet) {
			return true
		}
	}
	return false
}

func minMax(a, b float64) (float64, float64) {
	if a <= b {
		return a, b
	}
	return b, a
}
