// Package testutil provides shared test infrastructure: a Postgres container
// for storage integration tests and an in-memory SQLite store for fast tests.
//
// Usage in TestMain:
//
//	func TestMain(m *testing.M) {
//	    tc := testutil.MustStartPostgres()
//	    defer tc.Terminate()
//	    testDB, _ = tc.NewTestDB(context.Background(), testutil.TestLogger())
//	    os.Exit(m.Run())
//	}
package testutil

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/rekcurd/dashboard/internal/model"
	"github.com/rekcurd/dashboard/internal/storage"
	"github.com/rekcurd/dashboard/internal/storage/sqlite"
	"github.com/rekcurd/dashboard/migrations"
)

// TestContainer wraps a testcontainers container with a DSN for connecting.
type TestContainer struct {
	Container testcontainers.Container
	DSN       string
}

// MustStartPostgres starts a Postgres container. Calls os.Exit(1) on failure
// (suitable for TestMain).
func MustStartPostgres() *TestContainer {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:17-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "dashboard",
			"POSTGRES_PASSWORD": "dashboard",
			"POSTGRES_DB":       "dashboard",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "testutil: failed to start container: %v\n", err)
		os.Exit(1)
	}

	host, err := container.Host(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "testutil: failed to get container host: %v\n", err)
		os.Exit(1)
	}

	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		fmt.Fprintf(os.Stderr, "testutil: failed to get container port: %v\n", err)
		os.Exit(1)
	}

	dsn := fmt.Sprintf("postgres://dashboard:dashboard@%s:%s/dashboard?sslmode=disable", host, port.Port())
	return &TestContainer{Container: container, DSN: dsn}
}

// NewTestDB creates a storage.DB connected to this container and runs all migrations.
func (tc *TestContainer) NewTestDB(ctx context.Context, logger *slog.Logger) (*storage.DB, error) {
	db, err := storage.New(ctx, tc.DSN, logger)
	if err != nil {
		return nil, fmt.Errorf("testutil: create DB: %w", err)
	}
	if err := db.RunMigrations(ctx, migrations.Postgres()); err != nil {
		return nil, fmt.Errorf("testutil: run migrations: %w", err)
	}
	return db, nil
}

// Terminate stops and removes the container.
func (tc *TestContainer) Terminate() {
	_ = tc.Container.Terminate(context.Background())
}

// TestLogger returns a logger configured for test output (warns only).
func TestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

// NewSQLite opens a migrated in-memory SQLite store closed at test cleanup.
func NewSQLite(t testing.TB) *sqlite.DB {
	t.Helper()
	ctx := context.Background()
	db, err := sqlite.New(ctx, ":memory:", TestLogger())
	if err != nil {
		t.Fatalf("testutil: open sqlite: %v", err)
	}
	t.Cleanup(func() { db.Close(ctx) })
	if err := db.RunMigrations(ctx, migrations.SQLite()); err != nil {
		t.Fatalf("testutil: migrate sqlite: %v", err)
	}
	return db
}

// Fixture is a project, application, model and service registered together.
type Fixture struct {
	Project     model.Project
	Application model.Application
	Model       model.Model
	Service     model.Service
}

// RegistryWriter is the subset of a store used to seed fixtures.
type RegistryWriter interface {
	CreateProject(ctx context.Context, p model.Project) (model.Project, error)
	CreateApplication(ctx context.Context, a model.Application) (model.Application, error)
	CreateModel(ctx context.Context, m model.Model) (model.Model, error)
	CreateService(ctx context.Context, s model.Service) (model.Service, error)
}

// SeedFixture registers a project/application/model/service chain. The
// service points at endpoint (host, port). name makes the rows unique.
func SeedFixture(t testing.TB, db RegistryWriter, name, host string, port int) Fixture {
	t.Helper()
	ctx := context.Background()

	p, err := db.CreateProject(ctx, model.Project{DisplayName: "project-" + name, Description: "test project"})
	if err != nil {
		t.Fatalf("testutil: create project: %v", err)
	}
	a, err := db.CreateApplication(ctx, model.Application{ProjectID: p.ProjectID, ApplicationName: "app-" + name})
	if err != nil {
		t.Fatalf("testutil: create application: %v", err)
	}
	m, err := db.CreateModel(ctx, model.Model{ApplicationID: a.ApplicationID, Description: "model desc", FilePath: "model.pkl"})
	if err != nil {
		t.Fatalf("testutil: create model: %v", err)
	}
	s, err := db.CreateService(ctx, model.Service{
		ServiceID:     "svc-" + name,
		ApplicationID: a.ApplicationID,
		DisplayName:   "service-" + name,
		ModelID:       m.ModelID,
		InsecureHost:  host,
		InsecurePort:  port,
		ServiceLevel:  model.ServiceLevelDevelopment,
	})
	if err != nil {
		t.Fatalf("testutil: create service: %v", err)
	}
	return Fixture{Project: p, Application: a, Model: m, Service: s}
}
