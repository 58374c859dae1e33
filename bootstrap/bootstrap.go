// Package bootstrap wires all dependencies and starts the application.
// Configuration comes from a YAML file with MENAGERIE_* environment
// overrides; the game tables are loaded from the path it names.
package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/artpar/menagerie/adapters/clock"
	apihttp "github.com/artpar/menagerie/adapters/http"
	"github.com/artpar/menagerie/adapters/idgen"
	"github.com/artpar/menagerie/adapters/memory"
	"github.com/artpar/menagerie/adapters/metrics"
	"github.com/artpar/menagerie/adapters/postgres"
	"github.com/artpar/menagerie/adapters/random"
	"github.com/artpar/menagerie/adapters/sqlite"
	"github.com/artpar/menagerie/app"
	"github.com/artpar/menagerie/config"
	"github.com/artpar/menagerie/domain/catalog"
	"github.com/artpar/menagerie/ports"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// App represents the running application.
type App struct {
	Logger     zerolog.Logger
	Config     *config.Holder
	DB         *sql.DB // nil for the memory driver
	Store      ports.StateStore
	Kernel     *app.Kernel
	HTTPServer *http.Server
	Metrics    *metrics.Collector
	Registry   *prometheus.Registry

	shutdownOnce sync.Once
	shutdownErr  error
}

// Options provides optional configuration for application initialization.
type Options struct {
	// ConfigPath is the YAML config file. When empty or missing the
	// configuration comes from the environment alone.
	ConfigPath string

	// Watch reloads config and tables on file changes and SIGHUP.
	Watch bool

	// LogOutput receives log lines (default: stdout).
	LogOutput io.Writer
}

// New creates and initializes the application with hot reload enabled.
func New(configPath string) (*App, error) {
	return NewWithOptions(Options{ConfigPath: configPath, Watch: true})
}

// NewWithOptions creates and initializes the application.
func NewWithOptions(opts Options) (*App, error) {
	if opts.LogOutput == nil {
		opts.LogOutput = os.Stdout
	}

	initial, err := config.LoadWithFallback(opts.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger := setupLogger(initial.Logging, opts.LogOutput)
	logger.Info().Str("config", opts.ConfigPath).Msg("initializing menagerie")

	holder, err := config.NewHolder(opts.ConfigPath, logger)
	if err != nil {
		return nil, err
	}
	cfg := holder.Get()

	a := &App{
		Logger: logger,
		Config: holder,
	}

	if err := a.initStore(cfg.Database); err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}

	if cfg.Metrics.Enabled {
		a.Registry = prometheus.NewRegistry()
		a.Registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		a.Metrics = metrics.NewWithRegistry(a.Registry)
		logger.Info().Str("path", cfg.Metrics.Path).Msg("prometheus metrics enabled")
	}

	if err := a.initKernel(cfg, holder.Tables()); err != nil {
		a.closeStore()
		return nil, fmt.Errorf("init kernel: %w", err)
	}

	a.initHTTPServer(cfg)

	holder.OnTables(a.Kernel.ReloadTables)
	holder.OnChange(func(c *config.Config) {
		if level, err := zerolog.ParseLevel(c.Logging.Level); err == nil {
			zerolog.SetGlobalLevel(level)
		}
	})
	if opts.Watch {
		if err := holder.WatchFile(); err != nil {
			logger.Warn().Err(err).Msg("file watching disabled")
		}
		holder.WatchSignals()
	}

	return a, nil
}

func (a *App) initStore(cfg config.DatabaseConfig) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	switch cfg.Driver {
	case config.DriverMemory:
		a.Store = memory.NewStateStore(memory.StateStoreConfig{})
		a.Logger.Warn().Msg("using in-memory state store, nothing will persist")
		return nil

	case config.DriverSQLite:
		db, err := sqlite.Open(cfg.DSN)
		if err != nil {
			return err
		}
		if err := db.Migrate(ctx); err != nil {
			db.Close()
			return fmt.Errorf("migrate: %w", err)
		}
		a.DB = db.DB
		a.Store = db.StateStore()

	case config.DriverPostgres:
		db, err := postgres.Open(ctx, cfg.DSN)
		if err != nil {
			return err
		}
		if err := db.Migrate(ctx); err != nil {
			db.Close()
			return fmt.Errorf("migrate: %w", err)
		}
		a.DB = db.DB
		a.Store = db.StateStore()

	default:
		return fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	a.Logger.Info().Str("driver", cfg.Driver).Msg("database initialized")
	return nil
}

func (a *App) initKernel(cfg *config.Config, tables *catalog.Tables) error {
	kcfg := app.Config{
		Store:       a.Store,
		Clock:       clock.Real{},
		Seeds:       random.Real{},
		IDs:         idgen.UUID{},
		Tables:      tables,
		LockShards:  cfg.Kernel.LockShards,
		LockTimeout: cfg.Kernel.OpTimeout,
	}
	if a.Metrics != nil {
		kcfg.Recorder = a.Metrics
	}

	k, err := app.NewKernel(kcfg, a.Logger)
	if err != nil {
		return err
	}
	a.Kernel = k
	return nil
}

func (a *App) initHTTPServer(cfg *config.Config) {
	health := apihttp.NewHealthHandler(nil)
	if a.DB != nil {
		health = apihttp.NewHealthHandler(a.DB)
	}

	rcfg := apihttp.RouterConfig{
		MetricsPath:    cfg.Metrics.Path,
		RequestTimeout: cfg.Server.WriteTimeout,
	}
	if a.Metrics != nil {
		rcfg.Metrics = a.Metrics
		rcfg.MetricsHandler = promhttp.HandlerFor(a.Registry, promhttp.HandlerOpts{})
	}

	game := apihttp.NewGameHandler(a.Kernel, a.Logger)
	router := apihttp.NewRouter(game, health, a.Logger, rcfg)

	a.HTTPServer = &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port)),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
}

// Run starts the HTTP server and blocks until shutdown.
func (a *App) Run() error {
	errCh := make(chan error, 1)
	go func() {
		a.Logger.Info().
			Str("addr", a.HTTPServer.Addr).
			Msg("starting http server")
		if err := a.HTTPServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err := <-errCh:
		a.Shutdown()
		return fmt.Errorf("server error: %w", err)
	case sig := <-quit:
		a.Logger.Info().Str("signal", sig.String()).Msg("shutting down")
	}

	return a.Shutdown()
}

// Shutdown gracefully stops the application. Only the first call has an
// effect.
func (a *App) Shutdown() error {
	a.shutdownOnce.Do(func() { a.shutdownErr = a.shutdown() })
	return a.shutdownErr
}

func (a *App) shutdown() error {
	timeout := a.Config.Get().Server.ShutdownTimeout
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	a.Config.Stop()

	var firstErr error
	if a.HTTPServer != nil {
		if err := a.HTTPServer.Shutdown(ctx); err != nil {
			a.Logger.Error().Err(err).Msg("http server shutdown error")
			firstErr = err
		}
	}

	if err := a.closeStore(); err != nil && firstErr == nil {
		firstErr = err
	}

	a.Logger.Info().Msg("shutdown complete")
	return firstErr
}

func (a *App) closeStore() error {
	if a.DB == nil {
		return nil
	}
	if err := a.DB.Close(); err != nil {
		a.Logger.Error().Err(err).Msg("database close error")
		return err
	}
	return nil
}

// Reload re-reads the configuration and tables.
func (a *App) Reload() error {
	return a.Config.Reload()
}

func setupLogger(cfg config.LoggingConfig, out io.Writer) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Format == "console" {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}
	return zerolog.New(out).With().Timestamp().Logger()
}
