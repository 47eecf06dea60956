// Package main runs netstreams, which normalizes streaming network
// telemetry into typed node, interface and address records.
package main

import (
	"context"
	stderrors "errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/c360/netstreams/config"
	"github.com/c360/netstreams/engine"
	"github.com/c360/netstreams/health"
	"github.com/c360/netstreams/metric"
	"github.com/c360/netstreams/natsclient"
	"github.com/c360/netstreams/pkg/retry"
)

// Build information constants
const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "netstreams"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := run(os.Args[1:]); err != nil {
		slog.Error("Application failed", "error", err, "exit_code", 1)
		os.Exit(1)
	}
}

func run(args []string) error {
	cliCfg, err := parseFlags(flag.NewFlagSet(appName, flag.ContinueOnError), args)
	if err != nil {
		return err
	}
	if err := validateFlags(cliCfg); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}
	if cliCfg.ShowVersion {
		fmt.Printf("%s version %s\n", appName, Version)
		return nil
	}
	if cliCfg.ShowHelp {
		return nil
	}

	logger := setupLogger(cliCfg.LogLevel, cliCfg.LogFormat)
	slog.SetDefault(logger)

	cfg, err := loadConfig(cliCfg.ConfigPath)
	if err != nil {
		return err
	}
	if cliCfg.Validate {
		logger.Info("Configuration is valid", "config", cfg.String())
		return nil
	}

	logger.Info("Starting netstreams",
		"version", Version,
		"build_time", BuildTime,
		"config_path", cliCfg.ConfigPath)

	ctx := context.Background()
	registry := metric.NewMetricsRegistry()

	client, err := connectToNATS(ctx, cfg.NATS, registry, logger)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), cfg.NATS.DrainTimeout+time.Second)
		defer cancel()
		if err := client.Close(closeCtx); err != nil {
			logger.Warn("NATS close failed", "error", err)
		}
	}()

	eng, err := engine.Build(ctx, cfg, client, registry, logger)
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}

	if cfg.Metrics.Enabled {
		monitor := health.NewMonitor()
		monitor.Register("nats", func() health.Status { return natsHealth(client) })
		monitor.Register("engine", eng.Health)

		server := metric.NewServer(cfg.Metrics.Port, cfg.Metrics.Path, registry, monitor.HealthFunc(appName))
		if err := server.Start(); err != nil {
			return fmt.Errorf("start metrics server: %w", err)
		}
		logger.Info("Metrics server listening", "address", server.Address())
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = server.Stop(stopCtx)
		}()
	}

	return runWithSignalHandling(ctx, eng, shutdownTimeout(cliCfg, cfg), logger)
}

// loadConfig loads the file at path, or defaults when path is empty, and
// applies environment overrides.
func loadConfig(path string) (*config.Config, error) {
	loader := config.NewLoader()
	if path != "" {
		loader.AddLayer(path)
	}
	cfg, err := loader.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func natsOptions(cfg config.NATSConfig, registry *metric.MetricsRegistry, logger *slog.Logger) []natsclient.ClientOption {
	opts := []natsclient.ClientOption{
		natsclient.WithLogger(natsclient.NewSlogLogger(logger)),
		natsclient.WithMetrics(registry),
		natsclient.WithName(cfg.Name),
		natsclient.WithMaxReconnects(cfg.MaxReconnects),
		natsclient.WithCompression(cfg.Compression),
	}
	if cfg.ReconnectWait > 0 {
		opts = append(opts, natsclient.WithReconnectWait(cfg.ReconnectWait))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, natsclient.WithTimeout(cfg.Timeout))
	}
	if cfg.DrainTimeout > 0 {
		opts = append(opts, natsclient.WithDrainTimeout(cfg.DrainTimeout))
	}
	if cfg.Username != "" {
		opts = append(opts, natsclient.WithCredentials(cfg.Username, cfg.Password))
	}
	if cfg.Token != "" {
		opts = append(opts, natsclient.WithToken(cfg.Token))
	}
	if cfg.PingInterval > 0 {
		opts = append(opts, natsclient.WithPingInterval(cfg.PingInterval))
	}
	if cfg.MaxBackoff > 0 {
		opts = append(opts, natsclient.WithMaxBackoff(cfg.MaxBackoff))
	}
	if cfg.MetricsInterval > 0 {
		opts = append(opts, natsclient.WithMetricsInterval(cfg.MetricsInterval))
	}
	if cfg.TLS.Enabled {
		opts = append(opts, natsclient.WithTLS(cfg.TLS.CertFile, cfg.TLS.KeyFile, cfg.TLS.CAFile))
	}

	opts = append(opts,
		natsclient.WithDisconnectCallback(func(err error) {
			logger.Warn("NATS disconnected", "error", err)
		}),
		natsclient.WithReconnectCallback(func() {
			logger.Info("NATS reconnected")
		}),
		natsclient.WithHealthChangeCallback(func(healthy bool) {
			logger.Info("NATS health changed", "healthy", healthy)
		}),
	)
	return opts
}

// natsHealth reports the connection state, with round-trip time when
// connected.
func natsHealth(client *natsclient.Client) health.Status {
	if err := client.HealthCheck(); err != nil {
		return health.FromError("nats", err)
	}
	status := client.GetStatus()
	return health.NewHealthy("nats", fmt.Sprintf("%s, rtt %s", status.Status, status.RTT))
}

// connectToNATS creates the client and waits for the connection.
func connectToNATS(
	ctx context.Context,
	cfg config.NATSConfig,
	registry *metric.MetricsRegistry,
	logger *slog.Logger,
) (*natsclient.Client, error) {
	client, err := natsclient.NewClient(strings.Join(cfg.URLs, ","), natsOptions(cfg, registry, logger)...)
	if err != nil {
		return nil, fmt.Errorf("create NATS client: %w", err)
	}

	logger.Info("Connecting to NATS", "urls", cfg.URLs)
	// The broker may still be starting; stop early once the breaker opens
	policy := retry.Quick()
	policy.Retryable = func(err error) bool { return !stderrors.Is(err, natsclient.ErrCircuitOpen) }
	if err := retry.DoContext(ctx, policy, client.Connect); err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	connCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.WaitForConnection(connCtx); err != nil {
		return nil, fmt.Errorf("NATS connection timeout: %w", err)
	}
	return client, nil
}

// shutdownTimeout bounds Stop. The engine spends at most shutdown_grace
// draining; the remainder covers exporter flushes and alert delivery.
func shutdownTimeout(cliCfg *CLIConfig, cfg *config.Config) time.Duration {
	if cliCfg.ShutdownTimeout > 0 {
		return cliCfg.ShutdownTimeout
	}
	return cfg.ShutdownGrace + 10*time.Second
}

// runWithSignalHandling starts the engine and stops it on SIGINT or SIGTERM.
func runWithSignalHandling(ctx context.Context, eng *engine.Engine, timeout time.Duration, logger *slog.Logger) error {
	signalCtx, signalCancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer signalCancel()

	if err := eng.Start(signalCtx); err != nil {
		return fmt.Errorf("start engine: %w", err)
	}
	logger.Info("netstreams started")

	<-signalCtx.Done()
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := eng.Stop(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown incomplete: %w", err)
	}

	logger.Info("netstreams shutdown complete")
	return nil
}
