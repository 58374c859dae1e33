package config

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"

	"github.com/artpar/menagerie/domain/catalog"
	"github.com/artpar/menagerie/ports"
	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// Holder provides thread-safe access to the configuration and the game
// tables it points at, with hot reload support.
type Holder struct {
	mu       sync.RWMutex
	config   *Config
	tables   *catalog.Tables
	path     string // empty when configured from the environment only
	logger   zerolog.Logger
	watcher  *fsnotify.Watcher
	onChange []func(*Config)
	onTables []func(*catalog.Tables) error
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewHolder loads the configuration at path (or the environment when path
// is empty or missing) and the tables it names.
func NewHolder(path string, logger zerolog.Logger) (*Holder, error) {
	cfg, err := LoadWithFallback(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	var absPath string
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if absPath, err = filepath.Abs(path); err != nil {
				return nil, fmt.Errorf("absolute path: %w", err)
			}
		}
	}

	tables, err := catalog.Load(cfg.Tables.Path)
	if err != nil {
		return nil, fmt.Errorf("load tables: %w", err)
	}

	return &Holder{
		config: cfg,
		tables: tables,
		path:   absPath,
		logger: logger.With().Str("component", "config").Logger(),
		stopCh: make(chan struct{}),
	}, nil
}

// Get returns the current configuration (thread-safe).
func (h *Holder) Get() *Config {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.config
}

// Tables returns the current game tables (thread-safe).
func (h *Holder) Tables() *catalog.Tables {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.tables
}

// Reload reloads the configuration and the tables from disk.
// Returns error if either fails to load or the tables are rejected by a
// listener (keeps the old values).
func (h *Holder) Reload() error {
	h.logger.Info().Str("path", h.path).Msg("reloading configuration")

	var (
		newCfg *Config
		err    error
	)
	if h.path != "" {
		newCfg, err = Load(h.path)
	} else {
		newCfg, err = LoadFromEnv()
	}
	if err != nil {
		h.logger.Error().Err(err).Msg("config reload failed, keeping old config")
		return fmt.Errorf("reload config: %w", err)
	}

	tables, err := catalog.Load(newCfg.Tables.Path)
	if err != nil {
		h.logger.Error().Err(err).Msg("tables reload failed, keeping old config")
		return fmt.Errorf("reload tables: %w", err)
	}

	// Config and tables move together: nothing is installed until every
	// tables listener has accepted.
	if err := h.offerTables(tables); err != nil {
		return err
	}

	h.mu.Lock()
	oldCfg := h.config
	h.config = newCfg
	h.tables = tables
	h.mu.Unlock()

	h.logChanges(oldCfg, newCfg)

	for _, fn := range h.changeListeners() {
		fn(newCfg)
	}

	h.logger.Info().Msg("configuration reloaded successfully")
	return nil
}

// ReloadTables reloads only the tables file named by the current config.
func (h *Holder) ReloadTables() error {
	path := h.Get().Tables.Path
	tables, err := catalog.Load(path)
	if err != nil {
		h.logger.Error().Err(err).Str("path", path).Msg("tables reload failed, keeping old tables")
		return fmt.Errorf("reload tables: %w", err)
	}
	if err := h.offerTables(tables); err != nil {
		return err
	}

	h.mu.Lock()
	h.tables = tables
	h.mu.Unlock()

	h.logger.Info().Str("path", path).Msg("tables reloaded")
	return nil
}

// offerTables hands tables to every listener and stops at the first one
// that rejects them.
func (h *Holder) offerTables(tables *catalog.Tables) error {
	for _, fn := range h.tablesListeners() {
		if err := fn(tables); err != nil {
			h.logger.Error().Err(err).Msg("tables rejected, keeping old config and tables")
			return fmt.Errorf("apply tables: %w", err)
		}
	}
	return nil
}

// OnChange registers a callback to be called when config changes.
func (h *Holder) OnChange(fn func(*Config)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onChange = append(h.onChange, fn)
}

// OnTables registers a callback that receives freshly loaded tables.
// A non-nil error rejects the tables.
func (h *Holder) OnTables(fn func(*catalog.Tables) error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onTables = append(h.onTables, fn)
}

func (h *Holder) changeListeners() []func(*Config) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return append([]func(*Config){}, h.onChange...)
}

func (h *Holder) tablesListeners() []func(*catalog.Tables) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return append([]func(*catalog.Tables) error{}, h.onTables...)
}

// WatchFile starts watching the config file, and the tables file when
// tables.watch is set. Changes trigger automatic reload.
func (h *Holder) WatchFile() error {
	targets := h.watchTargets()
	if len(targets) == 0 {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	h.watcher = watcher

	// Watch directories (more reliable for editors that do atomic saves)
	dirs := make(map[string]bool)
	for path := range targets {
		dir := filepath.Dir(path)
		if dirs[dir] {
			continue
		}
		if err := watcher.Add(dir); err != nil {
			watcher.Close()
			return fmt.Errorf("watch directory: %w", err)
		}
		dirs[dir] = true
	}

	go h.watchLoop(targets)

	for path, what := range targets {
		h.logger.Info().Str("path", path).Str("file", what).Msg("watching for changes")
	}
	return nil
}

const (
	watchConfig = "config"
	watchTables = "tables"
)

func (h *Holder) watchTargets() map[string]string {
	targets := make(map[string]string)
	if h.path != "" {
		targets[h.path] = watchConfig
	}
	cfg := h.Get()
	if cfg.Tables.Watch && cfg.Tables.Path != "" {
		if abs, err := filepath.Abs(cfg.Tables.Path); err == nil {
			if _, seen := targets[abs]; !seen {
				targets[abs] = watchTables
			}
		}
	}
	return targets
}

// WatchSignals starts listening for SIGHUP to trigger reload.
func (h *Holder) WatchSignals() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGHUP)

	go func() {
		for {
			select {
			case <-sigCh:
				h.logger.Info().Msg("received SIGHUP, reloading config")
				if err := h.Reload(); err != nil {
					h.logger.Error().Err(err).Msg("SIGHUP reload failed")
				}
			case <-h.stopCh:
				signal.Stop(sigCh)
				return
			}
		}
	}()

	h.logger.Info().Msg("listening for SIGHUP to reload config")
}

// Stop stops watching for file changes and signals. Safe to call twice.
func (h *Holder) Stop() {
	h.stopOnce.Do(func() {
		close(h.stopCh)
		if h.watcher != nil {
			h.watcher.Close()
		}
	})
}

func (h *Holder) watchLoop(targets map[string]string) {
	for {
		select {
		case event, ok := <-h.watcher.Events:
			if !ok {
				return
			}

			what, ok := targets[filepath.Clean(event.Name)]
			if !ok {
				continue
			}

			// React to write or create (atomic save = create)
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			h.logger.Debug().
				Str("event", event.Op.String()).
				Str("file", event.Name).
				Msg(what + " file changed")

			var err error
			if what == watchTables {
				err = h.ReloadTables()
			} else {
				err = h.Reload()
			}
			if err != nil {
				h.logger.Error().Err(err).Msg("file watch reload failed")
			}

		case err, ok := <-h.watcher.Errors:
			if !ok {
				return
			}
			h.logger.Error().Err(err).Msg("file watcher error")

		case <-h.stopCh:
			return
		}
	}
}

func (h *Holder) logChanges(old, new *Config) {
	if old.Logging.Level != new.Logging.Level {
		h.logger.Info().
			Str("old", old.Logging.Level).
			Str("new", new.Logging.Level).
			Msg("log level changed")
	}

	if old.Tables.Path != new.Tables.Path {
		h.logger.Info().
			Str("old", old.Tables.Path).
			Str("new", new.Tables.Path).
			Msg("tables path changed")
	}

	if old.Server != new.Server {
		h.logger.Warn().Msg("server settings changed, restart to apply")
	}
	if old.Database != new.Database {
		h.logger.Warn().Msg("database settings changed, restart to apply")
	}
	if old.Kernel != new.Kernel {
		h.logger.Warn().Msg("kernel settings changed, restart to apply")
	}
}

// ReloadableFields returns which fields can be changed without restart.
func ReloadableFields() []string {
	return []string{
		"tables.path",
		"logging.level",
	}
}

// NonReloadableFields returns which fields require a restart.
func NonReloadableFields() []string {
	return []string{
		"server.host",
		"server.port",
		"database.driver",
		"database.dsn",
		"kernel.lock_shards",
		"kernel.op_timeout",
		"metrics.enabled",
	}
}

// Ensure interface compliance.
var _ ports.TablesProvider = (*Holder)(nil)
