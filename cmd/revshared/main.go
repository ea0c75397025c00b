package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"revledger/config"
	"revledger/core/state"
	"revledger/native/revshare"
	"revledger/observability"
	"revledger/observability/logging"
	telemetry "revledger/observability/otel"
	"revledger/rpc"
	"revledger/storage"
)

const serviceName = "revshared"

func main() {
	configPath := flag.String("config", "./revledger.toml", "Path to the daemon configuration file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", serviceName, err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	env := cfg.Environment
	if override := strings.TrimSpace(os.Getenv("REVLEDGER_ENV")); override != "" {
		env = override
	}

	logger, err := logging.SetupWithOptions(logging.Options{
		Service:    serviceName,
		Env:        env,
		Level:      cfg.Log.Level,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})
	if err != nil {
		return fmt.Errorf("setup logging: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName: serviceName,
		Environment: env,
		Endpoint:    cfg.Telemetry.Endpoint,
		Insecure:    cfg.Telemetry.Insecure,
		Headers:     telemetry.ParseHeaders(cfg.Telemetry.Headers),
		Metrics:     cfg.Telemetry.Metrics,
		Traces:      cfg.Telemetry.Traces,
		SampleRatio: cfg.Telemetry.SampleRatio,
	})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		if shutdownTelemetry != nil {
			_ = shutdownTelemetry(context.Background())
		}
	}()

	db, err := storage.Open(cfg.StorageBackend, cfg.DataDir)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer db.Close()

	engine := revshare.NewEngine()
	engine.SetState(state.NewManager(db))
	engine.SetLogger(logger)
	engine.SetEmitter(observability.NewEventSink(logger))

	var opts []rpc.Option
	if cfg.Auth.Enabled {
		auth, err := rpc.NewAuthenticator(rpc.AuthConfig{
			HMACSecret: cfg.Auth.HMACSecret,
			Issuer:     cfg.Auth.Issuer,
			Audience:   cfg.Auth.Audience,
			ClockSkew:  cfg.Auth.ClockSkewDuration(),
		})
		if err != nil {
			return fmt.Errorf("init auth: %w", err)
		}
		callers := rpc.NewCallerAuthorizer()
		engine.SetAuthorizer(callers)
		opts = append(opts, rpc.WithMutations(engine, auth, callers))
	}

	srv := &http.Server{
		Addr:              cfg.ListenAddress,
		Handler:           rpc.NewServer(engine, logger, opts...).Handler(),
		ReadHeaderTimeout: cfg.RPC.ReadHeaderTimeoutDuration(),
		ReadTimeout:       cfg.RPC.ReadTimeoutDuration(),
		WriteTimeout:      cfg.RPC.WriteTimeoutDuration(),
		IdleTimeout:       cfg.RPC.IdleTimeoutDuration(),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("ledger server listening",
			slog.String("addr", cfg.ListenAddress),
			slog.Bool("writes", cfg.Auth.Enabled),
			slog.String("storage", cfg.StorageBackend),
			slog.Uint64("engine_version", uint64(engine.Version())))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.RPC.ShutdownTimeoutDuration())
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
