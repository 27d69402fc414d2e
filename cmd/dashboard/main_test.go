package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rekcurd/dashboard/internal/blob"
	"github.com/rekcurd/dashboard/internal/config"
	"github.com/rekcurd/dashboard/internal/model"
	"github.com/rekcurd/dashboard/internal/storage/sqlite"
	"github.com/rekcurd/dashboard/internal/testutil"
)

// execute runs the CLI with args and returns what it wrote to stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := buildRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func useTempDatabase(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "dashboard.db")
	t.Setenv("DATABASE_URL", "sqlite://"+path)
	t.Setenv("DASHBOARD_DATA_DIR", t.TempDir())
	return path
}

func decode[T any](t *testing.T, out string) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal([]byte(out), &v), out)
	return v
}

func TestRootCommandTree(t *testing.T) {
	root := buildRootCmd()
	for _, path := range [][]string{
		{"serve"},
		{"migrate"},
		{"register", "project"},
		{"register", "application"},
		{"register", "model"},
		{"register", "service"},
	} {
		cmd, _, err := root.Find(path)
		require.NoError(t, err, path)
		assert.Equal(t, path[len(path)-1], cmd.Name())
	}
}

func TestMigrate(t *testing.T) {
	useTempDatabase(t)

	out, err := execute(t, "migrate")
	require.NoError(t, err)
	assert.Equal(t, "migrations applied\n", out)

	// Applied files are tracked, so a second run is a no-op.
	_, err = execute(t, "migrate")
	require.NoError(t, err)
}

func TestRegisterChain(t *testing.T) {
	path := useTempDatabase(t)

	out, err := execute(t, "register", "project", "--name", "demo", "--description", "demo project")
	require.NoError(t, err)
	p := decode[model.Project](t, out)
	assert.Positive(t, p.ProjectID)
	assert.Equal(t, "demo", p.DisplayName)

	out, err = execute(t, "register", "application",
		"--project-id", itoa(p.ProjectID), "--name", "iris")
	require.NoError(t, err)
	a := decode[model.Application](t, out)
	assert.Equal(t, p.ProjectID, a.ProjectID)
	assert.Equal(t, "iris", a.ApplicationName)

	out, err = execute(t, "register", "model",
		"--application-id", itoa(a.ApplicationID), "--filepath", "iris.pkl", "--description", "v1")
	require.NoError(t, err)
	m := decode[model.Model](t, out)
	assert.Equal(t, "iris.pkl", m.FilePath)

	out, err = execute(t, "register", "service",
		"--application-id", itoa(a.ApplicationID), "--model-id", itoa(m.ModelID),
		"--service-id", "svc-iris", "--host", "127.0.0.1", "--port", "5001", "--level", "staging")
	require.NoError(t, err)
	s := decode[model.Service](t, out)
	assert.Equal(t, "svc-iris", s.ServiceID)
	assert.Equal(t, "svc-iris", s.DisplayName)
	assert.Equal(t, model.ServiceLevelStaging, s.ServiceLevel)

	db, err := sqlite.New(context.Background(), path, testutil.TestLogger())
	require.NoError(t, err)
	defer db.Close(context.Background())

	services, err := db.ListServicesByModel(context.Background(), a.ApplicationID, m.ModelID)
	require.NoError(t, err)
	require.Len(t, services, 1)
	assert.Equal(t, "127.0.0.1:5001", services[0].Endpoint())
}

func TestRegisterServiceRejectsInvalidInput(t *testing.T) {
	useTempDatabase(t)

	_, err := execute(t, "register", "service",
		"--application-id", "1", "--model-id", "1",
		"--service-id", "svc", "--host", "127.0.0.1", "--level", "qa")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "service_level")

	_, err = execute(t, "register", "service",
		"--application-id", "1", "--model-id", "1",
		"--service-id", "svc", "--host", "127.0.0.1", "--port", "70000")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insecure_port")
}

func TestRegisterRequiresFlags(t *testing.T) {
	useTempDatabase(t)

	_, err := execute(t, "register", "application", "--name", "iris")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "project-id")
}

func TestRegisterApplicationUnknownProject(t *testing.T) {
	useTempDatabase(t)

	_, err := execute(t, "register", "application", "--project-id", "42", "--name", "iris")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "register application")
}

func TestInvalidConfig(t *testing.T) {
	t.Setenv("DATABASE_URL", "mysql://localhost/dashboard")

	_, err := execute(t, "migrate")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load config")
}

func TestNewBlobStore(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "data")

	store, err := newBlobStore(context.Background(), config.Config{DataServerMode: "local", DataDir: dir})
	require.NoError(t, err)
	assert.Equal(t, blob.ModeLocal, store.Mode())
	_, err = os.Stat(dir)
	require.NoError(t, err)

	_, err = newBlobStore(context.Background(), config.Config{DataServerMode: "ftp"})
	require.Error(t, err)
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARN":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"info":    slog.LevelInfo,
		"":        slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, parseLevel(in), in)
	}
}

func itoa(v int64) string {
	b, _ := json.Marshal(v)
	return string(b)
}
