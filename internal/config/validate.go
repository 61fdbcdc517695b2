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

package config

import "errors"

var (
	// ErrInvalidLogLevel indicates that the provided log level is not valid.
	ErrInvalidLogLevel = errors.New("invalid log level provided")
	// ErrInvalidBindAddress indicates that the provided client/S2S bind address is not valid.
	ErrInvalidBindAddress = errors.New("invalid bind address provided")
	// ErrInvalidUserPort indicates that the provided user-facing port is not valid.
	ErrInvalidUserPort = errors.New("invalid user port provided")
	// ErrInvalidServerPort indicates that the provided server-facing port is not valid.
	ErrInvalidServerPort = errors.New("invalid server port provided")
	// ErrInvalidS2SPort indicates that the provided S2S port is not valid.
	ErrInvalidS2SPort = errors.New("invalid S2S port provided")
	// ErrUplinkHostRequired indicates that an uplink block was configured without a host.
	ErrUplinkHostRequired = errors.New("uplink host is required when uplink is configured")
	// ErrUplinkCallsignRequired indicates that an uplink block was configured without a callsign.
	ErrUplinkCallsignRequired = errors.New("uplink callsign is required when uplink is configured")
	// ErrS2SPeerHostRequired indicates that an S2S peer entry is missing a host.
	ErrS2SPeerHostRequired = errors.New("s2s peer host is required")
	// ErrInvalidMetricsBindAddress indicates that the provided metrics server bind address is not valid.
	ErrInvalidMetricsBindAddress = errors.New("invalid metrics server bind address provided")
	// ErrInvalidMetricsPort indicates that the provided metrics server port is not valid.
	ErrInvalidMetricsPort = errors.New("invalid metrics server port provided")
)

// Validate validates the Metrics configuration.
func (m Metrics) Validate() error {
	if !m.Enabled {
		return nil
	}

	if m.Bind == "" {
		return ErrInvalidMetricsBindAddress
	}
	if m.Port <= 0 || m.Port > 65535 {
		return ErrInvalidMetricsPort
	}

	return nil
}

// Validate validates the Uplink configuration.
func (u Uplink) Validate() error {
	if u.Host == "" {
		return ErrUplinkHostRequired
	}
	if u.Callsign == "" {
		return ErrUplinkCallsignRequired
	}
	return nil
}

// Validate validates a single S2S peer entry.
func (p S2SPeer) Validate() error {
	if p.Host == "" {
		return ErrS2SPeerHostRequired
	}
	return nil
}

// Validate validates the top-level Config.
func (c Config) Validate() error {
	if c.LogLevel != LogLevelDebug &&
		c.LogLevel != LogLevelInfo &&
		c.LogLevel != LogLevelWarn &&
		c.LogLevel != LogLevelError {
		return ErrInvalidLogLevel
	}

	if c.Bind == "" {
		return ErrInvalidBindAddress
	}

	if c.UserPort <= 0 || c.UserPort > 65535 {
		return ErrInvalidUserPort
	}
	if c.ServerPort <= 0 || c.ServerPort > 65535 {
		return ErrInvalidServerPort
	}
	if c.S2SPort < 0 || c.S2SPort > 65535 {
		return ErrInvalidS2SPort
	}

	if c.Uplink != nil {
		if err := c.Uplink.Validate(); err != nil {
			return err
		}
	}

	for _, peer := range c.S2SPeers {
		if err := peer.Validate(); err != nil {
			return err
		}
	}

	if err := c.Metrics.Validate(); err != nil {
		return err
	}

	return nil
}
