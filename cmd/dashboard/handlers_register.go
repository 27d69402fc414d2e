package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rekcurd/dashboard/internal/model"
)

type serviceOptions struct {
	applicationID int64
	modelID       int64
	serviceID     string
	displayName   string
	host          string
	port          int
	level         string
}

// withStore opens the migrated store, runs fn and prints its result as JSON.
func withStore(cmd *cobra.Command, fn func(ctx context.Context, db backend) (any, error)) error {
	cfg, logger, err := loadConfig(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	db, err := openMigrated(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer db.Close(ctx)

	out, err := fn(ctx, db)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func runRegisterProject(cmd *cobra.Command, name, description string) error {
	return withStore(cmd, func(ctx context.Context, db backend) (any, error) {
		p, err := db.CreateProject(ctx, model.Project{DisplayName: name, Description: description})
		if err != nil {
			return nil, fmt.Errorf("register project: %w", err)
		}
		return p, nil
	})
}

func runRegisterApplication(cmd *cobra.Command, projectID int64, name, description string) error {
	return withStore(cmd, func(ctx context.Context, db backend) (any, error) {
		a, err := db.CreateApplication(ctx, model.Application{
			ProjectID:       projectID,
			ApplicationName: name,
			Description:     description,
		})
		if err != nil {
			return nil, fmt.Errorf("register application: %w", err)
		}
		return a, nil
	})
}

func runRegisterModel(cmd *cobra.Command, applicationID int64, filePath, description string) error {
	return withStore(cmd, func(ctx context.Context, db backend) (any, error) {
		m, err := db.CreateModel(ctx, model.Model{
			ApplicationID: applicationID,
			FilePath:      filePath,
			Description:   description,
		})
		if err != nil {
			return nil, fmt.Errorf("register model: %w", err)
		}
		return m, nil
	})
}

func runRegisterService(cmd *cobra.Command, opts serviceOptions) error {
	svc := model.Service{
		ServiceID:     opts.serviceID,
		ApplicationID: opts.applicationID,
		DisplayName:   opts.displayName,
		ModelID:       opts.modelID,
		InsecureHost:  opts.host,
		InsecurePort:  opts.port,
		ServiceLevel:  model.ServiceLevel(opts.level),
	}
	if svc.DisplayName == "" {
		svc.DisplayName = svc.ServiceID
	}
	if err := svc.Validate(); err != nil {
		return fmt.Errorf("register service: %w", err)
	}
	return withStore(cmd, func(ctx context.Context, db backend) (any, error) {
		s, err := db.CreateService(ctx, svc)
		if err != nil {
			return nil, fmt.Errorf("register service: %w", err)
		}
		return s, nil
	})
}
