// Command dashboard serves the evaluation API of the Rekcurd dashboard and
// manages its database.
//
// # Basic Usage
//
// Apply migrations and start the server:
//
//	dashboard migrate
//	dashboard serve
//
// Register the records evaluations are scoped to:
//
//	dashboard register project --name demo
//	dashboard register application --project-id 1 --name iris
//	dashboard register model --application-id 1 --filepath iris.pkl
//	dashboard register service --application-id 1 --model-id 1 --service-id svc-iris --host 10.0.0.5 --port 5000
//
// All settings come from the environment (DATABASE_URL, DASHBOARD_*). A .env
// file in the working directory is loaded first if present.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/rekcurd/dashboard/internal/config"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	os.Exit(run0())
}

func run0() int {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := buildRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return 1
	}
	return 0
}

// buildRootCmd assembles the command tree.
func buildRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "dashboard",
		Short:         "Rekcurd dashboard evaluation service",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Non-fatal; production won't have one.
			_ = godotenv.Load()
		},
	}
	root.AddCommand(buildServeCmd(), buildMigrateCmd(), buildRegisterCmd())
	return root
}

// loadConfig reads the environment and builds a JSON logger writing to w.
func loadConfig(w io.Writer) (config.Config, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("load config: %w", err)
	}
	logger := slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: parseLevel(cfg.LogLevel),
	}))
	return cfg, logger, nil
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}
