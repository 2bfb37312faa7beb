package bootstrap

import (
	"fmt"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/artpar/subroutine/core/schema"
)

// DefaultSettle is how long a definitions directory must stay quiet before
// a change is acted on.
const DefaultSettle = 200 * time.Millisecond

// DefinitionWatcher calls a function when definition files in a directory
// change. Bursts of events, as editors produce on save, collapse into one
// call.
type DefinitionWatcher struct {
	dir      string
	logger   zerolog.Logger
	onChange func() error
	settle   time.Duration

	watcher  *fsnotify.Watcher
	stopCh   chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

// NewDefinitionWatcher starts watching dir. Errors from onChange are
// logged and do not stop the watcher.
func NewDefinitionWatcher(dir string, logger zerolog.Logger, onChange func() error) (*DefinitionWatcher, error) {
	return newDefinitionWatcher(dir, logger, DefaultSettle, onChange)
}

func newDefinitionWatcher(dir string, logger zerolog.Logger, settle time.Duration, onChange func() error) (*DefinitionWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watch directory: %w", err)
	}

	w := &DefinitionWatcher{
		dir:      dir,
		logger:   logger,
		onChange: onChange,
		settle:   settle,
		watcher:  watcher,
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
	}
	go w.loop()

	logger.Info().Str("dir", dir).Msg("watching definitions for changes")
	return w, nil
}

// Close stops the watcher and waits for its loop to exit.
func (w *DefinitionWatcher) Close() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
		w.watcher.Close()
	})
	<-w.done
}

func (w *DefinitionWatcher) loop() {
	defer close(w.done)

	var timer *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !schema.IsDefinitionFile(event.Name) || event.Op == fsnotify.Chmod {
				continue
			}
			w.logger.Debug().
				Str("event", event.Op.String()).
				Str("file", event.Name).
				Msg("definition file changed")

			if timer == nil {
				timer = time.NewTimer(w.settle)
			} else {
				timer.Reset(w.settle)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			if err := w.onChange(); err != nil {
				w.logger.Error().Err(err).Str("dir", w.dir).Msg("definitions change handler failed")
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error().Err(err).Msg("definitions watcher error")

		case <-w.stopCh:
			if timer != nil {
				timer.Stop()
			}
			return
		}
	}
}
