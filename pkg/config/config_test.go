package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// chdirWithConfig writes a config.yaml into a temp dir, changes into it, and
// clears environment variables that would override the file.
func chdirWithConfig(t *testing.T, yaml string) {
	t.Helper()

	for _, v := range []string{
		"BIND_ADDR", "PORT", "ENVIRONMENT",
		"PGHOST", "PGPORT", "PGUSER", "PGPASSWORD", "PGDATABASE", "PGMAX_CONNECTIONS", "PGSSLMODE",
		"GRAPH_DEFAULT_ROW_LIMIT", "GRAPH_MAX_ROW_LIMIT", "GRAPH_PRODUCT_GROUPS_PATH",
	} {
		os.Unsetenv(v)
	}

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644); err != nil {
		t.Fatalf("write config.yaml: %v", err)
	}

	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(wd); err != nil {
			t.Errorf("restore wd: %v", err)
		}
	})
}

func TestLoad_Defaults(t *testing.T) {
	chdirWithConfig(t, "env: test\n")

	cfg, err := Load("test-version")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Version != "test-version" {
		t.Errorf("Version = %q, want %q", cfg.Version, "test-version")
	}
	if cfg.BindAddr != "127.0.0.1" {
		t.Errorf("BindAddr = %q, want 127.0.0.1", cfg.BindAddr)
	}
	if cfg.Port != "3450" {
		t.Errorf("Port = %q, want 3450", cfg.Port)
	}
	if cfg.Database.Host != "localhost" {
		t.Errorf("Database.Host = %q, want localhost", cfg.Database.Host)
	}
	if cfg.Database.MaxConnections != 25 {
		t.Errorf("Database.MaxConnections = %d, want 25", cfg.Database.MaxConnections)
	}
	if cfg.Graph.DefaultRowLimit != 100 {
		t.Errorf("Graph.DefaultRowLimit = %d, want 100", cfg.Graph.DefaultRowLimit)
	}
	if cfg.Graph.MaxRowLimit != 1000 {
		t.Errorf("Graph.MaxRowLimit = %d, want 1000", cfg.Graph.MaxRowLimit)
	}
}

func TestLoad_YAMLValues(t *testing.T) {
	chdirWithConfig(t, `
port: "8080"
database:
  host: db.internal
  database: canvas
graph:
  default_row_limit: 50
  max_row_limit: 200
`)

	cfg, err := Load("v1")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Port != "8080" {
		t.Errorf("Port = %q, want 8080", cfg.Port)
	}
	if cfg.Database.Host != "db.internal" {
		t.Errorf("Database.Host = %q, want db.internal", cfg.Database.Host)
	}
	if cfg.Graph.DefaultRowLimit != 50 || cfg.Graph.MaxRowLimit != 200 {
		t.Errorf("Graph limits = %d/%d, want 50/200", cfg.Graph.DefaultRowLimit, cfg.Graph.MaxRowLimit)
	}
}

func TestLoad_EnvOverridesYAML(t *testing.T) {
	chdirWithConfig(t, `
port: "8080"
database:
  host: db.internal
`)
	t.Setenv("PORT", "9090")
	t.Setenv("PGHOST", "env-host")
	t.Setenv("PGPASSWORD", "secret")

	cfg, err := Load("v1")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Port != "9090" {
		t.Errorf("Port = %q, want env override 9090", cfg.Port)
	}
	if cfg.Database.Host != "env-host" {
		t.Errorf("Database.Host = %q, want env-host", cfg.Database.Host)
	}
	if cfg.Database.Password != "secret" {
		t.Errorf("Database.Password not taken from environment")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	dir := t.TempDir()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() { os.Chdir(wd) })

	if _, err := Load("v1"); err == nil {
		t.Fatal("expected error for missing config.yaml")
	}
}

func TestLoad_InvalidRowLimits(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{
			name: "negative default",
			yaml: "graph:\n  default_row_limit: -5\n  max_row_limit: 100\n",
			want: "default_row_limit",
		},
		{
			name: "max below default",
			yaml: "graph:\n  default_row_limit: 100\n  max_row_limit: 10\n",
			want: "max_row_limit",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chdirWithConfig(t, tt.yaml)

			_, err := Load("v1")
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestConnectionString(t *testing.T) {
	cfg := DatabaseConfig{
		Host:     "localhost",
		Port:     5432,
		User:     "dbcanvas",
		Password: "pw",
		Database: "dbcanvas_engine",
		SSLMode:  "disable",
	}

	want := "host=localhost port=5432 user=dbcanvas password=pw dbname=dbcanvas_engine sslmode=disable"
	if got := cfg.ConnectionString(); got != want {
		t.Errorf("ConnectionString() = %q, want %q", got, want)
	}
}
