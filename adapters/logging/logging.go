// Package logging builds zerolog loggers and a logging submission observer.
package logging

import (
	"context"
	"io"
	"os"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/artpar/subroutine/config"
	"github.com/artpar/subroutine/ports"
)

// New creates a logger from cfg writing to w. A nil w writes to stdout.
// Unknown levels fall back to info.
func New(cfg config.LoggingConfig, w io.Writer) zerolog.Logger {
	return base(cfg, w).Level(parseLevel(cfg.Level)).With().Timestamp().Logger()
}

// NewReloadable is New with a level that can be changed later through the
// returned Level.
func NewReloadable(cfg config.LoggingConfig, w io.Writer) (zerolog.Logger, *Level) {
	lvl := NewLevel(cfg.Level)
	return base(cfg, w).Hook(lvl).With().Timestamp().Logger(), lvl
}

func base(cfg config.LoggingConfig, w io.Writer) zerolog.Logger {
	if w == nil {
		w = os.Stdout
	}
	if cfg.Format == "console" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	return zerolog.New(w)
}

func parseLevel(name string) zerolog.Level {
	level, err := zerolog.ParseLevel(name)
	if err != nil || name == "" {
		return zerolog.InfoLevel
	}
	return level
}

// Level is a minimum log level shared by loggers built with
// NewReloadable. It is safe for concurrent use.
type Level struct {
	v atomic.Int32
}

// NewLevel creates a level; unknown names mean info.
func NewLevel(name string) *Level {
	l := &Level{}
	l.v.Store(int32(parseLevel(name)))
	return l
}

// Set changes the level. Unknown names mean info.
func (l *Level) Set(name string) {
	l.v.Store(int32(parseLevel(name)))
}

// Get returns the current level.
func (l *Level) Get() zerolog.Level {
	return zerolog.Level(l.v.Load())
}

// Run implements zerolog.Hook, discarding events below the level.
func (l *Level) Run(e *zerolog.Event, level zerolog.Level, _ string) {
	if level < l.Get() {
		e.Discard()
	}
}

// Observer logs every finished submission phase.
type Observer struct {
	logger zerolog.Logger
}

// NewObserver creates an observer logging to logger.
func NewObserver(logger zerolog.Logger) *Observer {
	return &Observer{logger: logger}
}

// Observe implements ports.Observer. Phases log at debug; failed phases
// log at warn and errored phases at error.
func (o *Observer) Observe(_ context.Context, obs ports.Observation) {
	var ev *zerolog.Event
	switch obs.Outcome {
	case ports.OutcomeFailure:
		ev = o.logger.Warn()
	case ports.OutcomeError:
		ev = o.logger.Error().Err(obs.Err)
	default:
		ev = o.logger.Debug()
	}

	ev.Str("op", obs.Op).
		Str("phase", string(obs.Phase)).
		Str("outcome", string(obs.Outcome)).
		Dur("duration", obs.Duration).
		Msg("phase finished")
}

var _ ports.Observer = (*Observer)(nil)
