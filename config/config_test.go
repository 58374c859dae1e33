package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/artpar/menagerie/config"
	"github.com/artpar/menagerie/domain/fault"
)

func TestLoad_ValidConfig(t *testing.T) {
	content := `
server:
  host: "127.0.0.1"
  port: 9090
  read_timeout: 5s

database:
  driver: "postgres"
  dsn: "postgres://game@db/menagerie"

logging:
  level: "debug"
  format: "console"

metrics:
  enabled: true
  path: "/internal/metrics"

tables:
  path: "tables.yaml"
  watch: true

kernel:
  lock_shards: 64
  op_timeout: 2s
`

	cfg := writeAndLoad(t, content)

	if cfg.Server.Host != "127.0.0.1" {
		t.Errorf("Host = %s, want 127.0.0.1", cfg.Server.Host)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("Port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Server.ReadTimeout != 5*time.Second {
		t.Errorf("ReadTimeout = %v, want 5s", cfg.Server.ReadTimeout)
	}
	if cfg.Database.Driver != config.DriverPostgres {
		t.Errorf("Driver = %s, want postgres", cfg.Database.Driver)
	}
	if cfg.Database.DSN != "postgres://game@db/menagerie" {
		t.Errorf("DSN = %s", cfg.Database.DSN)
	}
	if cfg.Logging.Format != "console" {
		t.Errorf("Format = %s, want console", cfg.Logging.Format)
	}
	if !cfg.Metrics.Enabled || cfg.Metrics.Path != "/internal/metrics" {
		t.Errorf("Metrics = %+v", cfg.Metrics)
	}
	if !cfg.Tables.Watch || cfg.Tables.Path != "tables.yaml" {
		t.Errorf("Tables = %+v", cfg.Tables)
	}
	if cfg.Kernel.LockShards != 64 {
		t.Errorf("LockShards = %d, want 64", cfg.Kernel.LockShards)
	}
	if cfg.Kernel.OpTimeout != 2*time.Second {
		t.Errorf("OpTimeout = %v, want 2s", cfg.Kernel.OpTimeout)
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg := writeAndLoad(t, "{}\n")

	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("default Host = %s, want 0.0.0.0", cfg.Server.Host)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("default Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Server.ShutdownTimeout != 15*time.Second {
		t.Errorf("default ShutdownTimeout = %v, want 15s", cfg.Server.ShutdownTimeout)
	}
	if cfg.Database.Driver != config.DriverSQLite {
		t.Errorf("default Driver = %s, want sqlite", cfg.Database.Driver)
	}
	if cfg.Database.DSN != "menagerie.db" {
		t.Errorf("default DSN = %s, want menagerie.db", cfg.Database.DSN)
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "json" {
		t.Errorf("default Logging = %+v", cfg.Logging)
	}
	if cfg.Metrics.Enabled {
		t.Error("metrics should be disabled by default")
	}
	if cfg.Metrics.Path != "/metrics" {
		t.Errorf("default Metrics.Path = %s, want /metrics", cfg.Metrics.Path)
	}
	if cfg.Tables.Path != "" {
		t.Errorf("default Tables.Path = %q, want embedded", cfg.Tables.Path)
	}
	if cfg.Kernel.LockShards != 32 {
		t.Errorf("default LockShards = %d, want 32", cfg.Kernel.LockShards)
	}
	if cfg.Kernel.OpTimeout != 10*time.Second {
		t.Errorf("default OpTimeout = %v, want 10s", cfg.Kernel.OpTimeout)
	}
}

func TestLoad_MemoryDriverHasNoDefaultDSN(t *testing.T) {
	cfg := writeAndLoad(t, "database:\n  driver: memory\n")
	if cfg.Database.DSN != "" {
		t.Errorf("DSN = %q, want empty", cfg.Database.DSN)
	}
}

func TestLoad_ExpandsEnvironment(t *testing.T) {
	t.Setenv("GAME_DB", "/var/lib/game.db")
	cfg := writeAndLoad(t, "database:\n  dsn: ${GAME_DB}\n")
	if cfg.Database.DSN != "/var/lib/game.db" {
		t.Errorf("DSN = %s, want /var/lib/game.db", cfg.Database.DSN)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("MENAGERIE_SERVER_PORT", "7070")
	t.Setenv("MENAGERIE_DATABASE_DRIVER", "memory")
	t.Setenv("MENAGERIE_LOG_LEVEL", "warn")
	t.Setenv("MENAGERIE_METRICS_ENABLED", "yes")
	t.Setenv("MENAGERIE_TABLES_PATH", "/etc/menagerie/tables.yaml")
	t.Setenv("MENAGERIE_KERNEL_LOCK_SHARDS", "8")
	t.Setenv("MENAGERIE_KERNEL_OP_TIMEOUT", "750ms")

	cfg := writeAndLoad(t, `
server:
  port: 9090
database:
  driver: sqlite
logging:
  level: debug
`)

	if cfg.Server.Port != 7070 {
		t.Errorf("Port = %d, want 7070", cfg.Server.Port)
	}
	if cfg.Database.Driver != config.DriverMemory {
		t.Errorf("Driver = %s, want memory", cfg.Database.Driver)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("Level = %s, want warn", cfg.Logging.Level)
	}
	if !cfg.Metrics.Enabled {
		t.Error("metrics should be enabled")
	}
	if cfg.Tables.Path != "/etc/menagerie/tables.yaml" {
		t.Errorf("Tables.Path = %s", cfg.Tables.Path)
	}
	if cfg.Kernel.LockShards != 8 {
		t.Errorf("LockShards = %d, want 8", cfg.Kernel.LockShards)
	}
	if cfg.Kernel.OpTimeout != 750*time.Millisecond {
		t.Errorf("OpTimeout = %v, want 750ms", cfg.Kernel.OpTimeout)
	}
}

func TestLoad_IgnoresMalformedEnvNumbers(t *testing.T) {
	t.Setenv("MENAGERIE_SERVER_PORT", "eighty")
	t.Setenv("MENAGERIE_KERNEL_OP_TIMEOUT", "soon")

	cfg := writeAndLoad(t, "server:\n  port: 9000\n")
	if cfg.Server.Port != 9000 {
		t.Errorf("Port = %d, want 9000", cfg.Server.Port)
	}
	if cfg.Kernel.OpTimeout != 10*time.Second {
		t.Errorf("OpTimeout = %v, want default", cfg.Kernel.OpTimeout)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		field   string
		suggest string
	}{
		{"bad port", "server:\n  port: 70000\n", "server.port", ""},
		{"negative port", "server:\n  port: -1\n", "server.port", ""},
		{"unknown driver", "database:\n  driver: sqlit\n", "database.driver", "sqlite"},
		{"unknown level", "logging:\n  level: inf\n", "logging.level", "info"},
		{"unknown format", "logging:\n  format: text\n", "logging.format", ""},
		{"relative metrics path", "metrics:\n  path: metrics\n", "metrics.path", ""},
		{"negative shards", "kernel:\n  lock_shards: -2\n", "kernel.lock_shards", ""},
		{"negative timeout", "kernel:\n  op_timeout: -1s\n", "kernel.op_timeout", ""},
		{"watch without path", "tables:\n  watch: true\n", "tables.watch", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, tt.content)
			_, err := config.Load(path)
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !errors.Is(err, fault.ErrConfiguration) {
				t.Errorf("err = %v, want ErrConfiguration", err)
			}
			var ce *fault.ConfigError
			if !errors.As(err, &ce) {
				t.Fatalf("err = %T, want *fault.ConfigError", err)
			}
			if ce.Field != tt.field {
				t.Errorf("Field = %s, want %s", ce.Field, tt.field)
			}
			if ce.Suggestion != tt.suggest {
				t.Errorf("Suggestion = %q, want %q", ce.Suggestion, tt.suggest)
			}
		})
	}
}

func TestLoad_ReportsEveryProblem(t *testing.T) {
	path := writeConfig(t, "server:\n  port: 99999\ndatabase:\n  driver: mysql\n")
	_, err := config.Load(path)
	if err == nil {
		t.Fatal("expected error")
	}
	for _, want := range []string{"server.port", "database.driver"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err, want)
		}
	}
}

func TestLoad_MalformedYAML(t *testing.T) {
	path := writeConfig(t, "server: [unclosed\n")
	_, err := config.Load(path)
	if !errors.Is(err, fault.ErrConfiguration) {
		t.Errorf("err = %v, want ErrConfiguration", err)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("err = %v, want ErrNotExist", err)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("MENAGERIE_DATABASE_DRIVER", "postgres")
	t.Setenv("MENAGERIE_DATABASE_DSN", "postgres://localhost/game")

	cfg, err := config.LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv error: %v", err)
	}
	if cfg.Database.Driver != config.DriverPostgres || cfg.Database.DSN != "postgres://localhost/game" {
		t.Errorf("Database = %+v", cfg.Database)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Port = %d, want default 8080", cfg.Server.Port)
	}
}

func TestLoadFromEnv_Invalid(t *testing.T) {
	t.Setenv("MENAGERIE_LOG_FORMAT", "xml")
	if _, err := config.LoadFromEnv(); !errors.Is(err, fault.ErrConfiguration) {
		t.Errorf("err = %v, want ErrConfiguration", err)
	}
}

func TestLoadWithFallback(t *testing.T) {
	t.Run("file present", func(t *testing.T) {
		path := writeConfig(t, "server:\n  port: 9191\n")
		cfg, err := config.LoadWithFallback(path)
		if err != nil {
			t.Fatal(err)
		}
		if cfg.Server.Port != 9191 {
			t.Errorf("Port = %d, want 9191", cfg.Server.Port)
		}
	})

	t.Run("file missing", func(t *testing.T) {
		t.Setenv("MENAGERIE_SERVER_PORT", "9292")
		cfg, err := config.LoadWithFallback(filepath.Join(t.TempDir(), "absent.yaml"))
		if err != nil {
			t.Fatal(err)
		}
		if cfg.Server.Port != 9292 {
			t.Errorf("Port = %d, want 9292", cfg.Server.Port)
		}
	})

	t.Run("no path", func(t *testing.T) {
		cfg, err := config.LoadWithFallback("")
		if err != nil {
			t.Fatal(err)
		}
		if cfg.Database.Driver != config.DriverSQLite {
			t.Errorf("Driver = %s, want sqlite", cfg.Database.Driver)
		}
	})
}

func TestReloadableFieldsDisjoint(t *testing.T) {
	nonReloadable := make(map[string]bool)
	for _, f := range config.NonReloadableFields() {
		nonReloadable[f] = true
	}
	for _, f := range config.ReloadableFields() {
		if nonReloadable[f] {
			t.Errorf("%s listed as both reloadable and non-reloadable", f)
		}
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "menagerie.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func writeAndLoad(t *testing.T, content string) *config.Config {
	t.Helper()
	cfg, err := config.Load(writeConfig(t, content))
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	return cfg
}
