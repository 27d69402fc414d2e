package config

import (
	"strings"
	"testing"
)

func TestEnvIntValid(t *testing.T) {
	t.Setenv("TEST_INT", "42")
	v, err := envInt("TEST_INT", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != 42 {
		t.Fatalf("expected 42, got %d", v)
	}
}

func TestEnvIntFallback(t *testing.T) {
	// TEST_INT_MISSING is not set.
	v, err := envInt("TEST_INT_MISSING", 99)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != 99 {
		t.Fatalf("expected fallback 99, got %d", v)
	}
}

func TestEnvIntInvalid(t *testing.T) {
	t.Setenv("TEST_INT_BAD", "abc")
	_, err := envInt("TEST_INT_BAD", 0)
	if err == nil {
		t.Fatal("expected error for non-integer value, got nil")
	}
	if got := err.Error(); got != `TEST_INT_BAD="abc" is not a valid integer` {
		t.Fatalf("unexpected error message: %s", got)
	}
}

func TestEnvBoolValid(t *testing.T) {
	t.Setenv("TEST_BOOL", "true")
	v, err := envBool("TEST_BOOL", false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !v {
		t.Fatal("expected true")
	}
}

func TestEnvBoolInvalid(t *testing.T) {
	t.Setenv("TEST_BOOL_BAD", "maybe")
	_, err := envBool("TEST_BOOL_BAD", false)
	if err == nil {
		t.Fatal("expected error for non-boolean value, got nil")
	}
	if got := err.Error(); got != `TEST_BOOL_BAD="maybe" is not a valid boolean` {
		t.Fatalf("unexpected error message: %s", got)
	}
}

func TestEnvFloatInvalid(t *testing.T) {
	t.Setenv("TEST_FLOAT_BAD", "fast")
	_, err := envFloat("TEST_FLOAT_BAD", 1)
	if err == nil {
		t.Fatal("expected error for non-numeric value, got nil")
	}
	if got := err.Error(); got != `TEST_FLOAT_BAD="fast" is not a valid number` {
		t.Fatalf("unexpected error message: %s", got)
	}
}

func TestEnvDurationValid(t *testing.T) {
	t.Setenv("TEST_DUR", "5s")
	v, err := envDuration("TEST_DUR", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.Seconds() != 5 {
		t.Fatalf("expected 5s, got %s", v)
	}
}

func TestEnvDurationInvalid(t *testing.T) {
	t.Setenv("TEST_DUR_BAD", "five-seconds")
	_, err := envDuration("TEST_DUR_BAD", 0)
	if err == nil {
		t.Fatal("expected error for invalid duration, got nil")
	}
	if got := err.Error(); got != `TEST_DUR_BAD="five-seconds" is not a valid duration` {
		t.Fatalf("unexpected error message: %s", got)
	}
}

func TestLoadFailsOnInvalidPort(t *testing.T) {
	t.Setenv("DASHBOARD_PORT", "abc")
	_, err := Load()
	if err == nil {
		t.Fatal("expected Load() to fail with invalid DASHBOARD_PORT")
	}
	// Error should mention the variable name and value.
	if got := err.Error(); !strings.Contains(got, "DASHBOARD_PORT") || !strings.Contains(got, "abc") {
		t.Fatalf("error should mention DASHBOARD_PORT and value 'abc', got: %s", got)
	}
}

func TestLoadFailsOnMultipleInvalid(t *testing.T) {
	t.Setenv("DASHBOARD_PORT", "abc")
	t.Setenv("DASHBOARD_SCORER_TIMEOUT", "xyz")
	_, err := Load()
	if err == nil {
		t.Fatal("expected Load() to fail with multiple invalid vars")
	}
	got := err.Error()
	if !strings.Contains(got, "DASHBOARD_PORT") {
		t.Fatalf("error should mention DASHBOARD_PORT, got: %s", got)
	}
	if !strings.Contains(got, "DASHBOARD_SCORER_TIMEOUT") {
		t.Fatalf("error should mention DASHBOARD_SCORER_TIMEOUT, got: %s", got)
	}
}

func TestLoadSucceedsWithDefaults(t *testing.T) {
	// With no env vars set, Load should succeed using all defaults.
	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected Load() to succeed with defaults, got: %v", err)
	}
	if cfg.Port != 18080 {
		t.Fatalf("expected default port 18080, got %d", cfg.Port)
	}
	if cfg.DataServerMode != "local" {
		t.Fatalf("expected local data server mode, got %q", cfg.DataServerMode)
	}
}

func TestLoadRejectsS3WithoutBucket(t *testing.T) {
	t.Setenv("DASHBOARD_DATA_SERVER_MODE", "s3")
	_, err := Load()
	if err == nil || !strings.Contains(err.Error(), "DASHBOARD_S3_BUCKET") {
		t.Fatalf("expected bucket error, got: %v", err)
	}
}

func TestParseDatabaseURL(t *testing.T) {
	tests := []struct {
		url        string
		wantDriver string
		wantDSN    string
		wantErr    bool
	}{
		{"postgres://u:p@localhost:5432/db", DriverPostgres, "postgres://u:p@localhost:5432/db", false},
		{"sqlite://dashboard.db", DriverSQLite, "dashboard.db", false},
		{"sqlite:///var/lib/dashboard.db", DriverSQLite, "/var/lib/dashboard.db", false},
		{"sqlite::memory:", DriverSQLite, ":memory:", false},
		{"sqlite://", "", "", true},
		{"mysql://localhost", "", "", true},
		{"", "", "", true},
	}
	for _, tt := range tests {
		driver, dsn, err := ParseDatabaseURL(tt.url)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseDatabaseURL(%q): expected error", tt.url)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseDatabaseURL(%q): unexpected error: %v", tt.url, err)
			continue
		}
		if driver != tt.wantDriver || dsn != tt.wantDSN {
			t.Errorf("ParseDatabaseURL(%q) = (%q, %q), want (%q, %q)", tt.url, driver, dsn, tt.wantDriver, tt.wantDSN)
		}
	}
}
