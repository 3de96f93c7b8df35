package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"gigchain/config"
	"gigchain/core"
	"gigchain/core/genesis"
	"gigchain/observability/logging"
	telemetry "gigchain/observability/otel"
	"gigchain/rpc"
	"gigchain/storage"
	"gigchain/storage/audit"
)

const (
	serviceName    = "gigd"
	genesisPathEnv = "GIG_GENESIS"
	environmentEnv = "GIG_ENV"
)

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	genesisFlag := flag.String("genesis", "", "Path to the bootstrap file (overrides GIG_GENESIS and config GenesisFile)")
	flag.Parse()

	if err := run(*configFile, *genesisFlag); err != nil {
		fmt.Fprintf(os.Stderr, "gigd: %v\n", err)
		os.Exit(1)
	}
}

func run(configFile, genesisFlag string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if env := strings.TrimSpace(os.Getenv(environmentEnv)); env != "" {
		cfg.Environment = env
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, logCloser := logging.SetupWithOptions(logging.Options{
		Service:    serviceName,
		Env:        cfg.Environment,
		Level:      cfg.Log.Level,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})
	defer logCloser.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName: serviceName,
		Environment: cfg.Environment,
		Endpoint:    cfg.Telemetry.Endpoint,
		Insecure:    cfg.Telemetry.Insecure,
		Headers:     telemetry.ParseHeaders(cfg.Telemetry.Headers),
		Traces:      cfg.Telemetry.Traces,
		Metrics:     cfg.Telemetry.Metrics,
		SampleRatio: cfg.Telemetry.SampleRatio,
	})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(flushCtx); err != nil {
			logger.Warn("telemetry shutdown failed", slog.Any("error", err))
		}
	}()

	params, err := cfg.Jobs.Params()
	if err != nil {
		return err
	}

	var spec *genesis.Spec
	if path := resolveGenesisPath(genesisFlag, cfg.GenesisFile, os.LookupEnv); path != "" {
		spec, err = genesis.LoadSpec(path)
		if err != nil {
			return err
		}
	}

	db, err := storage.NewLevelDB(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	node, err := core.NewNode(db, core.Options{
		Genesis:   spec,
		JobParams: &params,
		Logger:    logger,
		Tracer:    telemetry.Tracer(),
	})
	if err != nil {
		if errors.Is(err, core.ErrNotBootstrapped) {
			return fmt.Errorf("%w: pass -genesis, set %s or config GenesisFile", err, genesisPathEnv)
		}
		return err
	}

	var auditLog rpc.AuditLog
	if dsn := strings.TrimSpace(cfg.AuditDSN); dsn != "" {
		store, err := audit.Open(dsn)
		if err != nil {
			return err
		}
		defer store.Close()
		last, err := store.LastSequence(ctx)
		if err != nil {
			return err
		}
		node.AddSink(store)
		auditLog = store
		logger.Info("audit log enabled",
			logging.MaskField("audit_dsn", dsn),
			slog.Uint64("sequence", last))
	}

	server, err := rpc.NewServer(node, rpc.Config{
		Auth: rpc.AuthConfig{
			HMACSecret: cfg.Auth.JWTSecret,
			Issuer:     cfg.Auth.Issuer,
			Audience:   cfg.Auth.Audience,
		},
		RateLimit: rpc.RateLimit{
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			Burst:             cfg.RateLimit.Burst,
		},
		Audit:  auditLog,
		Logger: logger,
	})
	if err != nil {
		return err
	}

	logger.Info("node started",
		slog.String("listen", cfg.ListenAddress),
		slog.String("data_dir", cfg.DataDir))
	if err := server.Start(ctx, cfg.ListenAddress); err != nil {
		return err
	}
	logger.Info("node stopped")
	return nil
}

// resolveGenesisPath prefers the flag, then the environment, then config.
func resolveGenesisPath(flagValue, configValue string, lookup func(string) (string, bool)) string {
	if trimmed := strings.TrimSpace(flagValue); trimmed != "" {
		return trimmed
	}
	if lookup != nil {
		if value, ok := lookup(genesisPathEnv); ok && strings.TrimSpace(value) != "" {
			return strings.TrimSpace(value)
		}
	}
	return strings.TrimSpace(configValue)
}
