package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/artpar/subroutine/config"
)

func TestLoad_ValidConfig(t *testing.T) {
	content := `
engine:
  include_defaults_in_params: true
  preserve_time_precision: true
  inheritable_field_options: [groups, aka]

definitions:
  dir: ./ops

entities:
  - name: User
    attributes: { id: integer, email: string }
  - name: AdminUser
    parent: User

database:
  driver: sqlite
  dsn: ":memory:"

server:
  host: "127.0.0.1"
  port: 9090

logging:
  level: debug
  format: console
`

	cfg := writeAndLoad(t, content)

	if !cfg.Engine.IncludeDefaultsInParams {
		t.Error("Engine.IncludeDefaultsInParams = false, want true")
	}
	if !cfg.Engine.PreserveTimePrecision {
		t.Error("Engine.PreserveTimePrecision = false, want true")
	}
	if got := cfg.Engine.InheritableOptions(); len(got) != 2 || got[0] != "groups" {
		t.Errorf("InheritableOptions = %v, want [groups aka]", got)
	}
	if cfg.Definitions.Dir != "./ops" {
		t.Errorf("Definitions.Dir = %s, want ./ops", cfg.Definitions.Dir)
	}
	if cfg.Server.Addr() != "127.0.0.1:9090" {
		t.Errorf("Server.Addr = %s, want 127.0.0.1:9090", cfg.Server.Addr())
	}
	if len(cfg.Entities) != 2 {
		t.Fatalf("len(Entities) = %d, want 2", len(cfg.Entities))
	}
	if cfg.Entities[0].Attributes["id"] != "integer" {
		t.Errorf("User id attribute = %s, want integer", cfg.Entities[0].Attributes["id"])
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg := writeAndLoad(t, "{}\n")

	if cfg.Database.Driver != "memory" {
		t.Errorf("default Database.Driver = %s, want memory", cfg.Database.Driver)
	}
	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("default Host = %s, want 0.0.0.0", cfg.Server.Host)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("default Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Server.ReadTimeout != 30*time.Second {
		t.Errorf("default ReadTimeout = %v, want 30s", cfg.Server.ReadTimeout)
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "json" {
		t.Errorf("default Logging = %+v, want info/json", cfg.Logging)
	}
	if cfg.Metrics.Path != "/metrics" {
		t.Errorf("default Metrics.Path = %s, want /metrics", cfg.Metrics.Path)
	}
	if cfg.Auth.TokenTTL != 24*time.Hour || cfg.Auth.UserType != "User" {
		t.Errorf("default Auth = %+v, want 24h/User", cfg.Auth)
	}
	if got := cfg.Engine.InheritableOptions(); len(got) != 5 {
		t.Errorf("default InheritableOptions = %v, want 5 options", got)
	}
}

func TestLoad_SqliteDefaultDSN(t *testing.T) {
	cfg := writeAndLoad(t, "database:\n  driver: sqlite\n")
	if cfg.Database.DSN != "subroutine.db" {
		t.Errorf("Database.DSN = %s, want subroutine.db", cfg.Database.DSN)
	}
}

func TestLoad_EnvExpansion(t *testing.T) {
	t.Setenv("TEST_DEFS_DIR", "/srv/ops")

	cfg := writeAndLoad(t, "definitions:\n  dir: ${TEST_DEFS_DIR}\n")
	if cfg.Definitions.Dir != "/srv/ops" {
		t.Errorf("Definitions.Dir = %s, want /srv/ops", cfg.Definitions.Dir)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"unknown driver", "database:\n  driver: oracle\n"},
		{"postgres without dsn", "database:\n  driver: postgres\n"},
		{"bad level", "logging:\n  level: loud\n"},
		{"bad format", "logging:\n  format: xml\n"},
		{"unknown inheritable option", "engine:\n  inheritable_field_options: [type]\n"},
		{"unnamed entity", "entities:\n  - attributes: { id: integer }\n"},
		{"duplicate entity", "entities:\n  - name: User\n  - name: User\n"},
		{"invalid yaml", "engine: [\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := writeAndLoadErr(t, tt.content); err == nil {
				t.Error("Load should fail")
			}
		})
	}
}

func TestLoad_FileNotFound(t *testing.T) {
	if _, err := config.Load("/nonexistent/config.yaml"); err == nil {
		t.Error("Load should fail for missing file")
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("SUBROUTINE_INCLUDE_DEFAULTS_IN_PARAMS", "yes")
	t.Setenv("SUBROUTINE_INHERITABLE_FIELD_OPTIONS", "groups, mass_assignable")
	t.Setenv("SUBROUTINE_DATABASE_DRIVER", "postgres")
	t.Setenv("SUBROUTINE_DATABASE_DSN", "postgres://localhost/subroutine")
	t.Setenv("SUBROUTINE_SERVER_PORT", "9999")
	t.Setenv("SUBROUTINE_SERVER_READ_TIMEOUT", "5s")
	t.Setenv("SUBROUTINE_LOG_LEVEL", "warn")
	t.Setenv("SUBROUTINE_METRICS_ENABLED", "1")

	cfg, err := config.LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv error: %v", err)
	}

	if !cfg.Engine.IncludeDefaultsInParams {
		t.Error("IncludeDefaultsInParams = false, want true")
	}
	if got := cfg.Engine.InheritableFieldOptions; len(got) != 2 || got[1] != "mass_assignable" {
		t.Errorf("InheritableFieldOptions = %v", got)
	}
	if cfg.Database.Driver != "postgres" {
		t.Errorf("Database.Driver = %s, want postgres", cfg.Database.Driver)
	}
	if cfg.Server.Port != 9999 {
		t.Errorf("Server.Port = %d, want 9999", cfg.Server.Port)
	}
	if cfg.Server.ReadTimeout != 5*time.Second {
		t.Errorf("Server.ReadTimeout = %v, want 5s", cfg.Server.ReadTimeout)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("Logging.Level = %s, want warn", cfg.Logging.Level)
	}
	if !cfg.Metrics.Enabled {
		t.Error("Metrics.Enabled = false, want true")
	}
}

func TestEnvOverridesFile(t *testing.T) {
	t.Setenv("SUBROUTINE_LOG_LEVEL", "error")
	t.Setenv("SUBROUTINE_SERVER_PORT", "not-a-port")

	cfg := writeAndLoad(t, "logging:\n  level: debug\nserver:\n  port: 7000\n")
	if cfg.Logging.Level != "error" {
		t.Errorf("Logging.Level = %s, want error", cfg.Logging.Level)
	}
	if cfg.Server.Port != 7000 {
		t.Errorf("invalid env port should be ignored, Server.Port = %d", cfg.Server.Port)
	}
}

func TestLoadWithFallback(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("logging:\n  level: debug\n"), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := config.LoadWithFallback(path)
	if err != nil {
		t.Fatalf("LoadWithFallback error: %v", err)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %s, want debug", cfg.Logging.Level)
	}

	cfg, err = config.LoadWithFallback(filepath.Join(dir, "missing.yaml"))
	if err != nil {
		t.Fatalf("LoadWithFallback error: %v", err)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("fallback Logging.Level = %s, want info", cfg.Logging.Level)
	}
}

func TestEntityTypes(t *testing.T) {
	cfg := writeAndLoad(t, `
entities:
  - name: AdminUser
    parent: User
  - name: User
    attributes: { id: integer }
`)

	ts, err := cfg.EntityTypes()
	if err != nil {
		t.Fatalf("EntityTypes error: %v", err)
	}
	if !ts.IsA("AdminUser", "User") {
		t.Error("AdminUser should be a User")
	}
	if got := ts.AttributeType("User", ""); got != "integer" {
		t.Errorf("User identity type = %s, want integer", got)
	}

	cfg = writeAndLoad(t, "entities:\n  - name: Orphan\n    parent: Missing\n")
	if _, err := cfg.EntityTypes(); err == nil {
		t.Error("EntityTypes should fail for unknown parent")
	}
}

func writeAndLoad(t *testing.T, content string) *config.Config {
	t.Helper()
	cfg, err := writeAndLoadErr(t, content)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	return cfg
}

func writeAndLoadErr(t *testing.T, content string) (*config.Config, error) {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	return config.Load(path)
}
