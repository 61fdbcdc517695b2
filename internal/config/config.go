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

// Package config declares the relay's configuration shape, loaded via
// configulator from YAML plus environment overrides.
package config

// Config stores the application configuration.
type Config struct {
	ServerName string `yaml:"serverName" default:"aprsis-relay"`

	Bind       string `yaml:"bind" default:"0.0.0.0"`
	UserPort   int    `yaml:"userPort" default:"14580"`
	ServerPort int    `yaml:"serverPort" default:"14580"`
	S2SPort    int    `yaml:"s2sPort" default:"14579"`

	LogLevel LogLevel `yaml:"logLevel" default:"info"`

	Uplink *Uplink `yaml:"uplink"`

	S2SPeers []S2SPeer `yaml:"s2sPeers"`

	AllowedCallsigns []string `yaml:"allowedCallsigns"`
	DeniedCallsigns  []string `yaml:"deniedCallsigns"`

	Metrics Metrics `yaml:"metrics"`
}

// Uplink describes the single outbound connection this relay makes to an
// upstream APRS-IS server to ingest traffic.
type Uplink struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port" default:"14580"`
	Callsign string `yaml:"callsign"`
	Passcode string `yaml:"passcode"`
}

// S2SPeer describes one configured server-to-server federation peer.
type S2SPeer struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Passcode string `yaml:"passcode"`
	PeerName string `yaml:"peerName"`
}

// Metrics configures the Prometheus HTTP endpoint.
type Metrics struct {
	Enabled      bool   `yaml:"enabled" default:"false"`
	Bind         string `yaml:"bind" default:"0.0.0.0"`
	Port         int    `yaml:"port" default:"9090"`
	OTLPEndpoint string `yaml:"otlpEndpoint"`
}
