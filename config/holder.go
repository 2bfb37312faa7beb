package config

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"reflect"
	"sync"
	"syscall"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// field is one config setting compared across reloads.
type field struct {
	path       string
	reloadable bool
	get        func(*Config) any
}

// fields lists the settings Changes reports, in file order. Only
// reloadable ones take effect without a restart; the engine section is
// read once by whoever builds operation environments.
var fields = []field{
	{"engine", false, func(c *Config) any { return c.Engine }},
	{"definitions.dir", false, func(c *Config) any { return c.Definitions.Dir }},
	{"entities", false, func(c *Config) any { return c.Entities }},
	{"database.driver", false, func(c *Config) any { return c.Database.Driver }},
	{"database.dsn", false, func(c *Config) any { return c.Database.DSN }},
	{"server.host", false, func(c *Config) any { return c.Server.Host }},
	{"server.port", false, func(c *Config) any { return c.Server.Port }},
	{"auth.token_secret", false, func(c *Config) any { return c.Auth.TokenSecret }},
	{"auth.token_ttl", false, func(c *Config) any { return c.Auth.TokenTTL }},
	{"logging.level", true, func(c *Config) any { return c.Logging.Level }},
	{"logging.format", false, func(c *Config) any { return c.Logging.Format }},
	{"metrics.enabled", false, func(c *Config) any { return c.Metrics.Enabled }},
}

// ReloadableFields returns the settings applied without a restart.
func ReloadableFields() []string { return fieldPaths(true) }

// NonReloadableFields returns the settings that need a restart.
func NonReloadableFields() []string { return fieldPaths(false) }

func fieldPaths(reloadable bool) []string {
	var out []string
	for _, f := range fields {
		if f.reloadable == reloadable {
			out = append(out, f.path)
		}
	}
	return out
}

// Changes returns the paths of the settings that differ between prev and
// next, and which of those need a restart.
func Changes(prev, next *Config) (changed, restart []string) {
	for _, f := range fields {
		if reflect.DeepEqual(f.get(prev), f.get(next)) {
			continue
		}
		changed = append(changed, f.path)
		if !f.reloadable {
			restart = append(restart, f.path)
		}
	}
	return changed, restart
}

// Holder gives concurrent access to the configuration loaded from a file
// and swaps in a new one when the file changes or the process gets SIGHUP.
type Holder struct {
	mu        sync.RWMutex
	config    *Config
	listeners []func(*Config)

	path     string
	logger   zerolog.Logger
	watcher  *fsnotify.Watcher
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewHolder loads the configuration at path.
func NewHolder(path string, logger zerolog.Logger) (*Holder, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("absolute path: %w", err)
	}
	return &Holder{
		config: cfg,
		path:   abs,
		logger: logger.With().Str("config", abs).Logger(),
		stopCh: make(chan struct{}),
	}, nil
}

// Get returns the current configuration.
func (h *Holder) Get() *Config {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.config
}

// OnChange registers fn to run with every newly loaded configuration.
func (h *Holder) OnChange(fn func(*Config)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.listeners = append(h.listeners, fn)
}

// Reload loads the file again. A file that fails to load leaves the
// current configuration in place.
func (h *Holder) Reload() error {
	next, err := Load(h.path)
	if err != nil {
		h.logger.Error().Err(err).Msg("config reload failed, keeping old config")
		return fmt.Errorf("reload config: %w", err)
	}

	h.mu.Lock()
	prev := h.config
	h.config = next
	listeners := append([]func(*Config){}, h.listeners...)
	h.mu.Unlock()

	changed, restart := Changes(prev, next)
	h.logger.Info().Strs("changed", changed).Msg("configuration reloaded")
	if len(restart) > 0 {
		h.logger.Warn().Strs("fields", restart).Msg("restart to apply")
	}

	for _, fn := range listeners {
		fn(next)
	}
	return nil
}

// WatchFile reloads whenever the file is written. The directory is watched
// so that editors replacing the file on save are seen too.
func (h *Holder) WatchFile() error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := w.Add(filepath.Dir(h.path)); err != nil {
		w.Close()
		return fmt.Errorf("watch directory: %w", err)
	}
	h.watcher = w

	go h.watch()
	h.logger.Info().Msg("watching config file for changes")
	return nil
}

func (h *Holder) watch() {
	for {
		select {
		case ev, ok := <-h.watcher.Events:
			if !ok {
				return
			}
			if ev.Name != h.path || ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			h.logger.Debug().Str("event", ev.Op.String()).Msg("config file changed")
			_ = h.Reload()

		case err, ok := <-h.watcher.Errors:
			if !ok {
				return
			}
			h.logger.Error().Err(err).Msg("config watcher error")

		case <-h.stopCh:
			return
		}
	}
}

// WatchSignals reloads on SIGHUP until Stop.
func (h *Holder) WatchSignals() {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGHUP)

	go func() {
		defer signal.Stop(sig)
		for {
			select {
			case <-sig:
				h.logger.Info().Msg("received SIGHUP")
				_ = h.Reload()
			case <-h.stopCh:
				return
			}
		}
	}()
}

// Stop ends file and signal watching. It is safe to call more than once.
func (h *Holder) Stop() {
	h.stopOnce.Do(func() {
		close(h.stopCh)
		if h.watcher != nil {
			h.watcher.Close()
		}
	})
}
