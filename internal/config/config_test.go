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

package config_test

import (
	"errors"
	"testing"

	"github.com/aprsis-relay/relay/internal/config"
)

func makeValidConfig() config.Config {
	return config.Config{
		ServerName: "test-relay",
		Bind:       "0.0.0.0",
		UserPort:   14580,
		ServerPort: 14580,
		S2SPort:    14579,
		LogLevel:   config.LogLevelInfo,
	}
}

func TestConfigValidateOK(t *testing.T) {
	t.Parallel()
	cfg := makeValidConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected valid config, got error: %v", err)
	}
}

func TestConfigValidateInvalidLogLevel(t *testing.T) {
	t.Parallel()
	cfg := makeValidConfig()
	cfg.LogLevel = "verbose"
	if err := cfg.Validate(); !errors.Is(err, config.ErrInvalidLogLevel) {
		t.Fatalf("expected ErrInvalidLogLevel, got: %v", err)
	}
}

func TestConfigValidateMissingBind(t *testing.T) {
	t.Parallel()
	cfg := makeValidConfig()
	cfg.Bind = ""
	if err := cfg.Validate(); !errors.Is(err, config.ErrInvalidBindAddress) {
		t.Fatalf("expected ErrInvalidBindAddress, got: %v", err)
	}
}

func TestConfigValidateInvalidUserPort(t *testing.T) {
	t.Parallel()
	cfg := makeValidConfig()
	cfg.UserPort = 0
	if err := cfg.Validate(); !errors.Is(err, config.ErrInvalidUserPort) {
		t.Fatalf("expected ErrInvalidUserPort, got: %v", err)
	}
}

func TestConfigValidateInvalidServerPort(t *testing.T) {
	t.Parallel()
	cfg := makeValidConfig()
	cfg.ServerPort = 70000
	if err := cfg.Validate(); !errors.Is(err, config.ErrInvalidServerPort) {
		t.Fatalf("expected ErrInvalidServerPort, got: %v", err)
	}
}

func TestConfigValidateNegativeS2SPort(t *testing.T) {
	t.Parallel()
	cfg := makeValidConfig()
	cfg.S2SPort = -1
	if err := cfg.Validate(); !errors.Is(err, config.ErrInvalidS2SPort) {
		t.Fatalf("expected ErrInvalidS2SPort, got: %v", err)
	}
}

func TestConfigValidateS2SPortZeroAllowed(t *testing.T) {
	t.Parallel()
	cfg := makeValidConfig()
	cfg.S2SPort = 0
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected S2S port 0 to be accepted (federation disabled), got: %v", err)
	}
}

func TestConfigValidateUplinkMissingHost(t *testing.T) {
	t.Parallel()
	cfg := makeValidConfig()
	cfg.Uplink = &config.Uplink{Callsign: "N0CALL", Passcode: "12345"}
	if err := cfg.Validate(); !errors.Is(err, config.ErrUplinkHostRequired) {
		t.Fatalf("expected ErrUplinkHostRequired, got: %v", err)
	}
}

func TestConfigValidateUplinkMissingCallsign(t *testing.T) {
	t.Parallel()
	cfg := makeValidConfig()
	cfg.Uplink = &config.Uplink{Host: "rotate.aprs.net", Passcode: "12345"}
	if err := cfg.Validate(); !errors.Is(err, config.ErrUplinkCallsignRequired) {
		t.Fatalf("expected ErrUplinkCallsignRequired, got: %v", err)
	}
}

func TestConfigValidateUplinkOK(t *testing.T) {
	t.Parallel()
	cfg := makeValidConfig()
	cfg.Uplink = &config.Uplink{Host: "rotate.aprs.net", Port: 14580, Callsign: "N0CALL", Passcode: "12345"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected valid uplink config, got error: %v", err)
	}
}

func TestConfigValidateS2SPeerMissingHost(t *testing.T) {
	t.Parallel()
	cfg := makeValidConfig()
	cfg.S2SPeers = []config.S2SPeer{{PeerName: "alpha"}}
	if err := cfg.Validate(); !errors.Is(err, config.ErrS2SPeerHostRequired) {
		t.Fatalf("expected ErrS2SPeerHostRequired, got: %v", err)
	}
}

func TestConfigValidateS2SPeerOK(t *testing.T) {
	t.Parallel()
	cfg := makeValidConfig()
	cfg.S2SPeers = []config.S2SPeer{{Host: "peer.example.net", Port: 14579, PeerName: "alpha"}}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected valid s2s peer config, got error: %v", err)
	}
}

func TestMetricsValidateDisabled(t *testing.T) {
	t.Parallel()
	m := config.Metrics{Enabled: false}
	if err := m.Validate(); err != nil {
		t.Fatalf("expected nil error for disabled metrics, got: %v", err)
	}
}

func TestMetricsValidateMissingBind(t *testing.T) {
	t.Parallel()
	m := config.Metrics{Enabled: true, Port: 9090}
	if err := m.Validate(); !errors.Is(err, config.ErrInvalidMetricsBindAddress) {
		t.Fatalf("expected ErrInvalidMetricsBindAddress, got: %v", err)
	}
}

func TestMetricsValidateInvalidPort(t *testing.T) {
	t.Parallel()
	m := config.Metrics{Enabled: true, Bind: "0.0.0.0", Port: 0}
	if err := m.Validate(); !errors.Is(err, config.ErrInvalidMetricsPort) {
		t.Fatalf("expected ErrInvalidMetricsPort, got: %v", err)
	}
}
