// Package bootstrap wires all dependencies and starts the operation server.
package bootstrap

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"

	tokens "github.com/artpar/subroutine/adapters/auth"
	"github.com/artpar/subroutine/adapters/clock"
	"github.com/artpar/subroutine/adapters/hasher"
	apihttp "github.com/artpar/subroutine/adapters/http"
	"github.com/artpar/subroutine/adapters/idgen"
	"github.com/artpar/subroutine/adapters/logging"
	"github.com/artpar/subroutine/adapters/memory"
	"github.com/artpar/subroutine/adapters/metrics"
	"github.com/artpar/subroutine/adapters/postgres"
	"github.com/artpar/subroutine/adapters/sqlite"
	"github.com/artpar/subroutine/app/accounts"
	"github.com/artpar/subroutine/config"
	"github.com/artpar/subroutine/core/entity"
	"github.com/artpar/subroutine/core/op"
	"github.com/artpar/subroutine/core/runtime"
	"github.com/artpar/subroutine/ports"
)

// App represents the running application.
type App struct {
	Logger     zerolog.Logger
	Config     *config.Config
	Runtime    *runtime.Runtime
	Metrics    *metrics.Collector
	Tokens     *tokens.TokenService
	Users      ports.UserStore
	HTTPServer *http.Server

	level    *logging.Level
	holder   *config.Holder
	registry *prometheus.Registry
	watcher  *DefinitionWatcher

	// Adapters (for cleanup)
	db   *sqlite.DB
	pool *pgxpool.Pool
}

// Options adjusts how New builds the application.
type Options struct {
	// LogOutput receives log lines. Nil means stdout.
	LogOutput io.Writer

	// Clock stamps stored accounts. Nil means the wall clock.
	Clock ports.Clock
}

// New creates and initializes the application from cfg.
func New(cfg *config.Config) (*App, error) {
	return NewWithOptions(cfg, Options{})
}

// NewWithOptions is New with explicit options.
func NewWithOptions(cfg *config.Config, opts Options) (*App, error) {
	logger, level := logging.NewReloadable(cfg.Logging, opts.LogOutput)
	logger.Info().Str("driver", cfg.Database.Driver).Msg("initializing subroutine")

	clk := opts.Clock
	if clk == nil {
		clk = clock.Real{}
	}

	a := &App{
		Logger: logger,
		Config: cfg,
		level:  level,
	}

	if cfg.Metrics.Enabled {
		a.registry = prometheus.NewRegistry()
		a.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		a.Metrics = metrics.NewWithRegistry(a.registry)
		logger.Info().Msg("prometheus metrics enabled")
	}

	types, err := cfg.EntityTypes()
	if err != nil {
		return nil, fmt.Errorf("entity types: %w", err)
	}
	for _, t := range accounts.Types() {
		if _, ok := types.Lookup(t.Name); !ok {
			if err := types.Register(t); err != nil {
				return nil, fmt.Errorf("entity types: %w", err)
			}
		}
	}

	finder, err := a.initDatabase(types, clk)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("init database: %w", err)
	}

	observers := ports.Observers{logging.NewObserver(logger)}
	if a.Metrics != nil {
		observers = append(observers, a.Metrics)
	}
	a.Runtime = runtime.New(runtime.Config{
		Env: op.Env{
			Finder:   finder,
			Types:    types,
			Observer: observers,
			Clock:    clk,
			Logger:   &a.Logger,
			Config:   cfg.Engine,
		},
		Logger: logger,
	})

	svc := accounts.NewService(a.Users, hasher.NewBcrypt(0), logger)
	if err := accounts.Register(a.Runtime, svc); err != nil {
		a.close()
		return nil, err
	}

	if dir := cfg.Definitions.Dir; dir != "" {
		if err := a.Runtime.LoadDefinitionsFromDir(dir); err != nil {
			a.close()
			return nil, fmt.Errorf("load definitions: %w", err)
		}
		a.countDefinitions()
	}

	secret := cfg.Auth.TokenSecret
	if secret == "" {
		secret = tokens.GenerateSecret()
		logger.Warn().Msg("no token secret configured; tokens will not survive a restart")
	}
	a.Tokens = tokens.NewTokenService(secret, cfg.Auth.TokenTTL, tokens.WithClock(clk))

	a.initHTTPServer()
	return a, nil
}

// NewWithHotReload creates the application from the config file at path
// and reloads it when the file changes. Only the log level is applied
// without a restart.
func NewWithHotReload(path string) (*App, error) {
	holder, err := config.NewHolder(path, zerolog.Nop())
	if err != nil {
		return nil, err
	}

	a, err := New(holder.Get())
	if err != nil {
		return nil, err
	}

	a.holder = holder
	holder.OnChange(func(cfg *config.Config) {
		a.level.Set(cfg.Logging.Level)
		a.Logger.Info().Str("level", cfg.Logging.Level).Msg("configuration reloaded")
	})
	if err := holder.WatchFile(); err != nil {
		a.Logger.Warn().Err(err).Msg("config file watch disabled")
	}
	holder.WatchSignals()

	if dir := a.Config.Definitions.Dir; dir != "" {
		w, err := NewDefinitionWatcher(dir, a.Logger, a.ReloadDefinitions)
		if err != nil {
			a.Logger.Warn().Err(err).Msg("definitions watch disabled")
		} else {
			a.watcher = w
		}
	}
	return a, nil
}

// initDatabase opens the configured lookup backend and returns the finder
// operations resolve associations and current users with.
func (a *App) initDatabase(types *entity.Types, clk ports.Clock) (entity.Finder, error) {
	cfg := a.Config.Database
	switch cfg.Driver {
	case "sqlite":
		db, err := sqlite.Open(cfg.DSN)
		if err != nil {
			return nil, err
		}
		a.db = db
		if err := db.Migrate(); err != nil {
			return nil, fmt.Errorf("migrate: %w", err)
		}
		a.Users = sqlite.NewUserStore(db, clk)
		a.Logger.Info().Str("dsn", cfg.DSN).Msg("database initialized")
		return sqlite.NewFinder(db, types), nil

	case "postgres":
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		pool, err := postgres.Open(ctx, cfg.DSN)
		if err != nil {
			return nil, err
		}
		a.pool = pool
		users := memory.NewUserStore(types)
		a.Users = users
		a.Logger.Info().Msg("database initialized; accounts are kept in memory")
		return accountFinder{types: types, users: users, rest: postgres.NewFinder(pool, types)}, nil

	default:
		users := memory.NewUserStore(types)
		a.Users = users
		return users, nil
	}
}

// accountFinder serves account types from the user store and every other
// type from rest.
type accountFinder struct {
	types *entity.Types
	users entity.Finder
	rest  entity.Finder
}

func (f accountFinder) Find(ctx context.Context, q entity.Query) (entity.Entity, error) {
	if f.types.IsA(q.Type, accounts.TypeUser) {
		return f.users.Find(ctx, q)
	}
	return f.rest.Find(ctx, q)
}

func (a *App) initHTTPServer() {
	opts := []apihttp.HandlerOption{
		apihttp.WithTokens(a.Tokens),
		apihttp.WithIDs(idgen.UUID{}),
	}
	routerCfg := apihttp.RouterConfig{Catalog: a.Runtime.Registry()}
	if a.Metrics != nil {
		opts = append(opts, apihttp.WithMetrics(a.Metrics))
		routerCfg.Metrics = a.Metrics
		routerCfg.Gatherer = a.registry
		routerCfg.MetricsPath = a.Config.Metrics.Path
	}

	h := apihttp.NewOperationHandler(a.Runtime, a.Logger, opts...)
	a.HTTPServer = &http.Server{
		Addr:         a.Config.Server.Addr(),
		Handler:      apihttp.NewRouter(h, a.Logger, routerCfg),
		ReadTimeout:  a.Config.Server.ReadTimeout,
		WriteTimeout: a.Config.Server.WriteTimeout,
	}
}

// ReloadDefinitions replaces the data-only operations with the definitions
// directory's current contents. On error the loaded operations stay.
func (a *App) ReloadDefinitions() error {
	err := a.Runtime.ReloadDefinitions(a.Config.Definitions.Dir)
	if a.Metrics != nil {
		a.Metrics.DefinitionReloads.Inc()
		if err != nil {
			a.Metrics.DefinitionReloadErrors.Inc()
		}
	}
	if err != nil {
		a.Logger.Error().Err(err).Msg("definitions reload failed")
		return err
	}
	a.countDefinitions()
	return nil
}

func (a *App) countDefinitions() {
	if a.Metrics == nil {
		return
	}
	n := 0
	for _, e := range a.Runtime.Registry().List() {
		if e.DataOnly() {
			n++
		}
	}
	a.Metrics.DefinitionsLoaded.Set(float64(n))
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

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case sig := <-quit:
		a.Logger.Info().Str("signal", sig.String()).Msg("shutting down")
	}

	return a.Shutdown()
}

// Shutdown gracefully stops the application.
func (a *App) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if a.HTTPServer != nil {
		if err := a.HTTPServer.Shutdown(ctx); err != nil {
			a.Logger.Error().Err(err).Msg("http server shutdown error")
		}
	}

	a.close()
	a.Logger.Info().Msg("shutdown complete")
	return nil
}

func (a *App) close() {
	if a.watcher != nil {
		a.watcher.Close()
	}
	if a.holder != nil {
		a.holder.Stop()
	}
	if a.pool != nil {
		a.pool.Close()
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.Logger.Error().Err(err).Msg("database close error")
		}
	}
}
