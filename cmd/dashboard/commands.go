package main

import (
	"github.com/spf13/cobra"
)

// buildServeCmd creates the "serve" command that runs the HTTP API.
func buildServeCmd() *cobra.Command {
	var skipMigrate bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the dashboard API server",
		Long: `Start the dashboard API server.

The server applies pending migrations, connects to the data server
(local directory or S3 bucket), and serves the evaluation API, /health,
/openapi.yaml and, when enabled, the MCP endpoint at /mcp.

Graceful shutdown is handled on SIGINT/SIGTERM signals.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), skipMigrate)
		},
	}
	cmd.Flags().BoolVar(&skipMigrate, "skip-migrate", false,
		"Do not apply pending migrations at startup")
	return cmd
}

// buildMigrateCmd creates the "migrate" command.
func buildMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Long: `Apply pending migrations to the database in DATABASE_URL.

Applied files are tracked in schema_migrations, so running it twice is safe.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate(cmd)
		},
	}
}

// buildRegisterCmd creates the "register" command group. Each subcommand
// prints the created record as JSON.
func buildRegisterCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Register projects, applications, models and services",
	}
	cmd.AddCommand(
		buildRegisterProjectCmd(),
		buildRegisterApplicationCmd(),
		buildRegisterModelCmd(),
		buildRegisterServiceCmd(),
	)
	return cmd
}

func buildRegisterProjectCmd() *cobra.Command {
	var name, description string
	cmd := &cobra.Command{
		Use:   "project",
		Short: "Register a project",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRegisterProject(cmd, name, description)
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Display name")
	cmd.Flags().StringVar(&description, "description", "", "Description")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func buildRegisterApplicationCmd() *cobra.Command {
	var (
		projectID         int64
		name, description string
	)
	cmd := &cobra.Command{
		Use:   "application",
		Short: "Register an application inside a project",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRegisterApplication(cmd, projectID, name, description)
		},
	}
	cmd.Flags().Int64Var(&projectID, "project-id", 0, "Owning project")
	cmd.Flags().StringVar(&name, "name", "", "Application name")
	cmd.Flags().StringVar(&description, "description", "", "Description")
	_ = cmd.MarkFlagRequired("project-id")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func buildRegisterModelCmd() *cobra.Command {
	var (
		applicationID         int64
		filePath, description string
	)
	cmd := &cobra.Command{
		Use:   "model",
		Short: "Register a trained model for an application",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRegisterModel(cmd, applicationID, filePath, description)
		},
	}
	cmd.Flags().Int64Var(&applicationID, "application-id", 0, "Owning application")
	cmd.Flags().StringVar(&filePath, "filepath", "", "Model artifact path")
	cmd.Flags().StringVar(&description, "description", "", "Description")
	_ = cmd.MarkFlagRequired("application-id")
	_ = cmd.MarkFlagRequired("filepath")
	return cmd
}

func buildRegisterServiceCmd() *cobra.Command {
	var opts serviceOptions
	cmd := &cobra.Command{
		Use:   "service",
		Short: "Register a running model service",
		Example: `  dashboard register service --application-id 1 --model-id 1 \
    --service-id svc-iris --host 10.0.0.5 --port 5000 --level development`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRegisterService(cmd, opts)
		},
	}
	cmd.Flags().Int64Var(&opts.applicationID, "application-id", 0, "Owning application")
	cmd.Flags().Int64Var(&opts.modelID, "model-id", 0, "Model the service is running")
	cmd.Flags().StringVar(&opts.serviceID, "service-id", "", "Unique service identifier")
	cmd.Flags().StringVar(&opts.displayName, "name", "", "Display name (defaults to service-id)")
	cmd.Flags().StringVar(&opts.host, "host", "", "Model server host")
	cmd.Flags().IntVar(&opts.port, "port", 5000, "Model server gRPC port")
	cmd.Flags().StringVar(&opts.level, "level", "development",
		"Service level: development, beta, staging, sandbox or production")
	_ = cmd.MarkFlagRequired("application-id")
	_ = cmd.MarkFlagRequired("model-id")
	_ = cmd.MarkFlagRequired("service-id")
	_ = cmd.MarkFlagRequired("host")
	return cmd
}
