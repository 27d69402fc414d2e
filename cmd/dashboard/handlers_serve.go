package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/rekcurd/dashboard/api"
	"github.com/rekcurd/dashboard/internal/blob"
	"github.com/rekcurd/dashboard/internal/config"
	"github.com/rekcurd/dashboard/internal/mcp"
	"github.com/rekcurd/dashboard/internal/ratelimit"
	"github.com/rekcurd/dashboard/internal/scorer"
	"github.com/rekcurd/dashboard/internal/server"
	"github.com/rekcurd/dashboard/internal/service/evaluation"
	"github.com/rekcurd/dashboard/internal/telemetry"
)

func runServe(ctx context.Context, skipMigrate bool) error {
	cfg, logger, err := loadConfig(os.Stdout)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	logger.Info("dashboard starting", "version", version, "port", cfg.Port, "data_server", cfg.DataServerMode)

	// Initialize OpenTelemetry.
	otelShutdown, err := telemetry.Init(ctx, telemetry.Config{
		Endpoint:       cfg.OTELEndpoint,
		ServiceName:    cfg.ServiceName,
		ServiceVersion: version,
		Insecure:       cfg.OTELInsecure,
	})
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	defer func() { _ = otelShutdown(context.Background()) }()

	// Connect to database.
	db, migrationsFS, err := openStore(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	defer db.Close(context.Background())

	if !skipMigrate {
		if err := db.RunMigrations(ctx, migrationsFS); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}

	blobs, err := newBlobStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("data server: %w", err)
	}

	client := scorer.NewClient(cfg.ScorerTimeout, logger)
	defer func() { _ = client.Close() }()

	registry := evaluation.NewRegistry(db, blobs, logger)
	orchestrator := evaluation.NewOrchestrator(db, registry, client, logger)
	results := evaluation.NewResults(db, client, logger)

	// Create rate limiter.
	var limiter ratelimit.Limiter
	if cfg.RateLimitEnabled {
		limiter = ratelimit.NewMemoryLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
		logger.Info("rate limiting: memory (in-process token bucket)",
			"rps", cfg.RateLimitRPS, "burst", cfg.RateLimitBurst)
	} else {
		limiter = ratelimit.NoopLimiter{}
		logger.Info("rate limiting: disabled")
	}
	defer func() { _ = limiter.Close() }()

	srvCfg := server.ServerConfig{
		Store:          db,
		Registry:       registry,
		Orchestrator:   orchestrator,
		Results:        results,
		Logger:         logger,
		Limiter:        limiter,
		Port:           cfg.Port,
		ReadTimeout:    cfg.ReadTimeout,
		WriteTimeout:   cfg.WriteTimeout,
		Version:        version,
		MaxUploadBytes: cfg.MaxUploadBytes,
		OpenAPISpec:    api.OpenAPISpec,
	}
	if cfg.MCPEnabled {
		srvCfg.MCPServer = mcp.New(db, registry, orchestrator, results, logger, version).MCPServer()
		logger.Info("mcp: enabled at /mcp")
	}
	srv := server.New(srvCfg)

	// Start HTTP server in background.
	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Wait for shutdown signal or server error.
	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}

	// Scoring calls can run for minutes; in-flight ones are given the write
	// timeout to finish before the listener is torn down.
	logger.Info("dashboard shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), max(cfg.WriteTimeout, 10*time.Second))
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown error", "error", err)
	}

	logger.Info("dashboard stopped")
	return nil
}

// newBlobStore opens the data server selected by cfg.DataServerMode.
func newBlobStore(ctx context.Context, cfg config.Config) (blob.Store, error) {
	mode, err := blob.ParseMode(cfg.DataServerMode)
	if err != nil {
		return nil, err
	}
	if mode == blob.ModeS3 {
		return blob.NewS3Store(ctx, blob.S3Config{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			Prefix:          cfg.S3Prefix,
			AccessKeyID:     cfg.S3AccessKey,
			SecretAccessKey: cfg.S3SecretKey,
			UsePathStyle:    cfg.S3PathStyle,
		})
	}
	return blob.NewLocalStore(cfg.DataDir)
}
