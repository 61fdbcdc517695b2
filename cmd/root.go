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

package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/aprsis-relay/relay/internal/config"
	"github.com/aprsis-relay/relay/internal/hub"
	"github.com/aprsis-relay/relay/internal/metrics"
	"github.com/aprsis-relay/relay/internal/s2s"
	"github.com/aprsis-relay/relay/internal/session"
	"github.com/aprsis-relay/relay/internal/uplink"
	"github.com/USA-RedDragon/configulator"
	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"golang.org/x/sync/errgroup"
)

// NewCommand builds the root cobra command for the relay process.
func NewCommand(version, commit string) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "aprsis-relay",
		Version: fmt.Sprintf("%s - %s", version, commit),
		Annotations: map[string]string{
			"version": version,
			"commit":  commit,
		},
		RunE:              runRoot,
		SilenceErrors:     true,
		DisableAutoGenTag: true,
	}
	return cmd
}

func runRoot(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	fmt.Printf("aprsis-relay - %s (%s)\n", cmd.Annotations["version"], cmd.Annotations["commit"])

	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}

	setupLogger(cfg)

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	cleanup, err := setupTracing(cfg)
	if err != nil {
		return fmt.Errorf("failed to setup tracing: %w", err)
	}
	defer func() {
		if err := cleanup(ctx); err != nil {
			slog.Error("failed to shutdown tracer", "error", err)
		}
	}()

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.NewMetrics()
	}
	startBackgroundServices(cfg)

	relayHub := hub.New(m)

	rt, err := startRuntime(cfg, relayHub, m)
	if err != nil {
		return err
	}
	defer rt.shutdown()

	setupShutdownHandlers(rt, cleanup)

	return nil
}

// loadConfig loads the configuration from context.
func loadConfig(ctx context.Context) (*config.Config, error) {
	c, err := configulator.FromContext[config.Config](ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get config from context: %w", err)
	}

	cfg, err := c.LoadWithoutValidation()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

// setupLogger configures the structured logger.
func setupLogger(cfg *config.Config) {
	var logger *slog.Logger
	switch cfg.LogLevel {
	case config.LogLevelDebug:
		logger = slog.New(tint.NewHandler(os.Stdout, &tint.Options{Level: slog.LevelDebug}))
	case config.LogLevelInfo:
		logger = slog.New(tint.NewHandler(os.Stdout, &tint.Options{Level: slog.LevelInfo}))
	case config.LogLevelWarn:
		logger = slog.New(tint.NewHandler(os.Stderr, &tint.Options{Level: slog.LevelWarn}))
	case config.LogLevelError:
		logger = slog.New(tint.NewHandler(os.Stderr, &tint.Options{Level: slog.LevelError}))
	default:
		// Fall back to info level for unrecognized log levels to prevent nil logger panic.
		logger = slog.New(tint.NewHandler(os.Stdout, &tint.Options{Level: slog.LevelInfo}))
	}
	slog.SetDefault(logger)
}

// setupTracing initializes OpenTelemetry tracing if configured. When
// tracing is not configured it returns a no-op cleanup function.
func setupTracing(cfg *config.Config) (func(context.Context) error, error) {
	if cfg.Metrics.OTLPEndpoint == "" {
		return func(context.Context) error { return nil }, nil
	}
	return initTracer(cfg)
}

// startBackgroundServices starts the metrics server, if enabled.
func startBackgroundServices(cfg *config.Config) {
	go func() {
		if err := metrics.CreateMetricsServer(cfg); err != nil {
			slog.Error("failed to start metrics server", "error", err)
		}
	}()
}

// runtime holds every long-running component spawned from configuration,
// plus a reload flag the SIGHUP handler flips. The flag is advisory only:
// no in-flight connection reads it, matching the spec's reload semantics.
type runtime struct {
	hub             *hub.Hub
	sessionServers  []*session.Server
	s2sAcceptor     *s2s.Acceptor
	cancel          context.CancelFunc
	ready           atomic.Bool
	reloadRequested atomic.Bool
}

// startRuntime brings up every configured component: the user-facing
// session listener(s), the S2S acceptor, the uplink connector, and one
// outbound S2S connector per configured peer.
func startRuntime(cfg *config.Config, h *hub.Hub, m *metrics.Metrics) (*runtime, error) {
	ctx, cancel := context.WithCancel(context.Background())

	rt := &runtime{hub: h, cancel: cancel}

	userServer := session.NewServer(h)
	if err := userServer.Start(cfg.Bind, cfg.UserPort); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to start client session server: %w", err)
	}
	rt.sessionServers = append(rt.sessionServers, userServer)

	if cfg.ServerPort != cfg.UserPort {
		serverPortServer := session.NewServer(h)
		if err := serverPortServer.Start(cfg.Bind, cfg.ServerPort); err != nil {
			cancel()
			return nil, fmt.Errorf("failed to start legacy server-port session listener: %w", err)
		}
		rt.sessionServers = append(rt.sessionServers, serverPortServer)
	}

	if cfg.S2SPort != 0 {
		acceptor := s2s.NewAcceptor(h)
		if err := acceptor.Start(ctx, cfg.Bind, cfg.S2SPort); err != nil {
			cancel()
			return nil, fmt.Errorf("failed to start s2s acceptor: %w", err)
		}
		rt.s2sAcceptor = acceptor
	}

	if cfg.Uplink != nil {
		connector := uplink.New(uplink.Config{
			Host:     cfg.Uplink.Host,
			Port:     cfg.Uplink.Port,
			Callsign: cfg.Uplink.Callsign,
			Passcode: cfg.Uplink.Passcode,
		}, h, m)
		go connector.Run(ctx)
	}

	for _, peer := range cfg.S2SPeers {
		connector := s2s.NewConnector(s2s.PeerConfig{
			Host:     peer.Host,
			Port:     peer.Port,
			Passcode: peer.Passcode,
			PeerName: peer.PeerName,
		}, h, m, cfg.S2SPort)
		go connector.Run(ctx)
	}

	rt.ready.Store(true)
	slog.Info("relay ready to accept traffic", "userPort", cfg.UserPort, "s2sPort", cfg.S2SPort)

	return rt, nil
}

// shutdown stops accepting new connections. The S2S acceptor, the uplink
// connector, and the outbound S2S connectors are torn down by cancelling
// their context; established client sessions end on their own next read
// error once the process exits.
func (rt *runtime) shutdown() {
	rt.ready.Store(false)
	for _, s := range rt.sessionServers {
		if err := s.Stop(); err != nil {
			slog.Error("failed to stop session server", "error", err)
		}
	}
	rt.cancel()
}

// setupShutdownHandlers blocks until SIGINT/SIGTERM/SIGQUIT is received and
// performs an orderly shutdown. SIGHUP only flips the advisory reload flag;
// this repository has no reloadable state to act on it.
func setupShutdownHandlers(rt *runtime, cleanup func(context.Context) error) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT, syscall.SIGHUP)

	for sig := range sigCh {
		if sig == syscall.SIGHUP {
			rt.reloadRequested.Store(true)
			slog.Info("received SIGHUP, marking reload requested (advisory only)")
			continue
		}

		slog.Error("shutting down due to signal", "signal", sig)
		break
	}

	g := new(errgroup.Group)

	g.Go(func() error {
		rt.shutdown()
		return nil
	})

	g.Go(func() error {
		if cleanup == nil {
			return nil
		}
		const timeout = 5 * time.Second
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		return cleanup(shutdownCtx) //nolint:wrapcheck
	})

	const timeout = 10 * time.Second
	c := make(chan error, 1)
	go func() {
		c <- g.Wait()
	}()
	select {
	case err := <-c:
		if err != nil {
			slog.Error("failed to shutdown tracer", "error", err)
		}
		slog.Info("all servers stopped, shutting down gracefully")
		os.Exit(0)
	case <-time.After(timeout):
		slog.Error("shutdown timed out, forcing exit")
		os.Exit(1)
	}
}

func initTracer(cfg *config.Config) (func(context.Context) error, error) {
	exporter, err := otlptrace.New(
		context.Background(),
		otlptracegrpc.NewClient(
			otlptracegrpc.WithInsecure(),
			otlptracegrpc.WithEndpoint(cfg.Metrics.OTLPEndpoint),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}
	resources, err := resource.New(
		context.Background(),
		resource.WithAttributes(
			attribute.String("service.name", "aprsis-relay"),
			attribute.String("library.language", "go"),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create trace resources: %w", err)
	}

	otel.SetTracerProvider(
		sdktrace.NewTracerProvider(
			sdktrace.WithSampler(sdktrace.AlwaysSample()),
			sdktrace.WithBatcher(exporter),
			sdktrace.WithResource(resources),
		),
	)
	return exporter.Shutdown, nil
}
