package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/artpar/menagerie/config"
	"github.com/artpar/menagerie/domain/catalog"
	"github.com/artpar/menagerie/domain/module"
	"github.com/rs/zerolog"
)

func TestHolder_Get(t *testing.T) {
	path := writeConfig(t, "server:\n  port: 9090\n")

	h, err := config.NewHolder(path, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewHolder error: %v", err)
	}
	defer h.Stop()

	if got := h.Get(); got == nil || got.Server.Port != 9090 {
		t.Fatalf("Get = %+v, want port 9090", got)
	}
	if h.Tables() == nil {
		t.Fatal("Tables returned nil")
	}
	if got := h.Tables().Modules[module.Market].BaseCost; got != 500 {
		t.Errorf("embedded market base cost = %d, want 500", got)
	}
}

func TestHolder_NoFile(t *testing.T) {
	h, err := config.NewHolder("", zerolog.Nop())
	if err != nil {
		t.Fatalf("NewHolder error: %v", err)
	}
	defer h.Stop()

	if err := h.WatchFile(); err != nil {
		t.Errorf("WatchFile with nothing to watch: %v", err)
	}
	if err := h.Reload(); err != nil {
		t.Errorf("Reload from environment: %v", err)
	}
}

func TestHolder_BadTables(t *testing.T) {
	dir := t.TempDir()
	tables := filepath.Join(dir, "tables.yaml")
	if err := os.WriteFile(tables, []byte("turn_order: [market]\n"), 0644); err != nil {
		t.Fatal(err)
	}
	path := writeConfig(t, "tables:\n  path: "+tables+"\n")

	if _, err := config.NewHolder(path, zerolog.Nop()); err == nil {
		t.Fatal("expected error for incomplete tables")
	}
}

func TestHolder_Reload(t *testing.T) {
	path := writeConfig(t, "logging:\n  level: info\n")

	h, err := config.NewHolder(path, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewHolder error: %v", err)
	}
	defer h.Stop()

	if err := os.WriteFile(path, []byte("logging:\n  level: debug\n"), 0644); err != nil {
		t.Fatalf("write new config: %v", err)
	}
	if err := h.Reload(); err != nil {
		t.Fatalf("Reload error: %v", err)
	}
	if got := h.Get().Logging.Level; got != "debug" {
		t.Errorf("reloaded level = %s, want debug", got)
	}
}

func TestHolder_OnChange(t *testing.T) {
	path := writeConfig(t, "logging:\n  level: info\n")

	h, err := config.NewHolder(path, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewHolder error: %v", err)
	}
	defer h.Stop()

	var (
		mu       sync.Mutex
		received *config.Config
		tables   *catalog.Tables
	)
	h.OnChange(func(cfg *config.Config) {
		mu.Lock()
		received = cfg
		mu.Unlock()
	})
	h.OnTables(func(tb *catalog.Tables) error {
		mu.Lock()
		tables = tb
		mu.Unlock()
		return nil
	})

	if err := os.WriteFile(path, []byte("logging:\n  level: warn\n"), 0644); err != nil {
		t.Fatalf("write new config: %v", err)
	}
	if err := h.Reload(); err != nil {
		t.Fatalf("Reload error: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if received == nil || received.Logging.Level != "warn" {
		t.Errorf("OnChange received %+v, want level warn", received)
	}
	if tables == nil {
		t.Error("OnTables callback was not called")
	} else if tables != h.Tables() {
		t.Error("holder tables differ from the ones handed to listeners")
	}
}

func TestHolder_ReloadInvalidConfig(t *testing.T) {
	path := writeConfig(t, "server:\n  port: 9090\n")

	h, err := config.NewHolder(path, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewHolder error: %v", err)
	}
	defer h.Stop()

	if err := os.WriteFile(path, []byte("database:\n  driver: oracle\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := h.Reload(); err == nil {
		t.Error("Reload should fail for invalid config")
	}
	if got := h.Get().Server.Port; got != 9090 {
		t.Errorf("port after failed reload = %d, want 9090", got)
	}
}

func TestHolder_ReloadTables(t *testing.T) {
	tablesPath := writeTables(t, 700)
	path := writeConfig(t, "tables:\n  path: "+tablesPath+"\n")

	h, err := config.NewHolder(path, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewHolder error: %v", err)
	}
	defer h.Stop()

	if got := h.Tables().Modules[module.Market].BaseCost; got != 700 {
		t.Fatalf("market base cost = %d, want 700", got)
	}

	overwriteTables(t, tablesPath, 900)
	if err := h.ReloadTables(); err != nil {
		t.Fatalf("ReloadTables error: %v", err)
	}
	if got := h.Tables().Modules[module.Market].BaseCost; got != 900 {
		t.Errorf("market base cost = %d, want 900", got)
	}

	// Broken tables keep the previous ones.
	if err := os.WriteFile(tablesPath, []byte("modules: {}\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := h.ReloadTables(); err == nil {
		t.Error("ReloadTables should fail for broken tables")
	}
	if got := h.Tables().Modules[module.Market].BaseCost; got != 900 {
		t.Errorf("market base cost after failed reload = %d, want 900", got)
	}
}

func TestHolder_TablesRejectedByListener(t *testing.T) {
	tablesPath := writeTables(t, 700)
	path := writeConfig(t, "tables:\n  path: "+tablesPath+"\n")

	h, err := config.NewHolder(path, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewHolder error: %v", err)
	}
	defer h.Stop()

	rejected := errors.New("not now")
	h.OnTables(func(*catalog.Tables) error { return rejected })

	overwriteTables(t, tablesPath, 900)
	if err := h.ReloadTables(); !errors.Is(err, rejected) {
		t.Errorf("err = %v, want listener error", err)
	}
	if got := h.Tables().Modules[module.Market].BaseCost; got != 700 {
		t.Errorf("market base cost = %d, want 700", got)
	}
}

func TestHolder_ReloadRejectedKeepsConfig(t *testing.T) {
	tablesPath := writeTables(t, 700)
	path := writeConfig(t, "logging:\n  level: info\ntables:\n  path: "+tablesPath+"\n")

	h, err := config.NewHolder(path, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewHolder error: %v", err)
	}
	defer h.Stop()

	var notified []string
	h.OnChange(func(cfg *config.Config) { notified = append(notified, cfg.Logging.Level) })
	rejected := errors.New("rejected")
	h.OnTables(func(*catalog.Tables) error { return rejected })

	overwriteTables(t, tablesPath, 900)
	cfg := "logging:\n  level: debug\ntables:\n  path: " + tablesPath + "\n"
	if err := os.WriteFile(path, []byte(cfg), 0644); err != nil {
		t.Fatal(err)
	}

	if err := h.Reload(); !errors.Is(err, rejected) {
		t.Fatalf("Reload err = %v, want listener error", err)
	}
	if got := h.Get().Logging.Level; got != "info" {
		t.Errorf("level after rejected reload = %q, want info", got)
	}
	if got := h.Tables().Modules[module.Market].BaseCost; got != 700 {
		t.Errorf("market base cost = %d, want 700", got)
	}
	if len(notified) != 0 {
		t.Errorf("OnChange notified = %v, want none", notified)
	}
}

func TestHolder_WatchTablesFile(t *testing.T) {
	tablesPath := writeTables(t, 700)
	path := writeConfig(t, "tables:\n  path: "+tablesPath+"\n  watch: true\n")

	h, err := config.NewHolder(path, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewHolder error: %v", err)
	}
	defer h.Stop()

	reloaded := make(chan int64, 4)
	h.OnTables(func(tb *catalog.Tables) error {
		select {
		case reloaded <- tb.Modules[module.Market].BaseCost:
		default:
		}
		return nil
	})

	if err := h.WatchFile(); err != nil {
		t.Fatalf("WatchFile error: %v", err)
	}

	// Give the watcher a moment to register
	time.Sleep(50 * time.Millisecond)
	overwriteTables(t, tablesPath, 1100)

	deadline := time.After(2 * time.Second)
	for {
		select {
		case cost := <-reloaded:
			if cost == 1100 {
				return
			}
		case <-deadline:
			t.Fatal("timed out waiting for tables reload")
		}
	}
}

func TestHolder_WatchConfigFile(t *testing.T) {
	path := writeConfig(t, "logging:\n  level: info\n")

	h, err := config.NewHolder(path, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewHolder error: %v", err)
	}
	defer h.Stop()

	changed := make(chan string, 4)
	h.OnChange(func(cfg *config.Config) {
		select {
		case changed <- cfg.Logging.Level:
		default:
		}
	})

	if err := h.WatchFile(); err != nil {
		t.Fatalf("WatchFile error: %v", err)
	}

	time.Sleep(50 * time.Millisecond)
	if err := os.WriteFile(path, []byte("logging:\n  level: error\n"), 0644); err != nil {
		t.Fatal(err)
	}

	deadline := time.After(2 * time.Second)
	for {
		select {
		case level := <-changed:
			if level == "error" {
				return
			}
		case <-deadline:
			t.Fatal("timed out waiting for config reload")
		}
	}
}

func TestHolder_StopTwice(t *testing.T) {
	h, err := config.NewHolder(writeConfig(t, "{}\n"), zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	h.WatchSignals()
	h.Stop()
	h.Stop()
}

// writeTables writes the embedded tables with the market base cost replaced.
func writeTables(t *testing.T, marketCost int64) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tables.yaml")
	overwriteTables(t, path, marketCost)
	return path
}

func overwriteTables(t *testing.T, path string, marketCost int64) {
	t.Helper()
	src := strings.Replace(string(catalog.DefaultYAML()),
		"base_cost: 500", "base_cost: "+strconv.FormatInt(marketCost, 10), 1)
	if err := os.WriteFile(path, []byte(src), 0644); err != nil {
		t.Fatalf("write tables: %v", err)
	}
}
