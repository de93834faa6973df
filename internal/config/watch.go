package config

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/romdo/go-debounce"
	"github.com/rs/zerolog"
)

// Watcher reports changes of one configuration file. Bursts of file
// system events are coalesced into a single change notification.
//
// The parent directory is watched rather than the file itself so that
// editors which save by renaming a temporary file are still noticed.
type Watcher struct {
	fs      *fsnotify.Watcher
	path    string
	logger  zerolog.Logger
	changes chan struct{}
	trigger func()
	cancel  func()
}

// NewWatcher creates a watcher for path. A change is reported once no
// event arrived for wait, or at the latest maxWait after the first one.
func NewWatcher(path string, wait, maxWait time.Duration, logger zerolog.Logger) (*Watcher, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve path: %w", err)
	}

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	if err := fsWatcher.Add(filepath.Dir(absPath)); err != nil {
		_ = fsWatcher.Close()
		return nil, fmt.Errorf("failed to watch file: %w", err)
	}

	w := &Watcher{
		fs:      fsWatcher,
		path:    absPath,
		logger:  logger.With().Str("component", "config-watcher").Str("path", absPath).Logger(),
		changes: make(chan struct{}, 1),
	}
	w.trigger, w.cancel = debounce.NewWithMaxWait(wait, maxWait, w.notify)
	return w, nil
}

// Changes delivers one value per coalesced burst of changes. Unread
// notifications collapse into one.
func (w *Watcher) Changes() <-chan struct{} {
	return w.changes
}

// Run processes file system events until ctx is done, then releases the
// watcher.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.cancel()
	defer func() {
		if err := w.fs.Close(); err != nil {
			w.logger.Debug().Err(err).Msg("failed to close file watcher")
		}
	}()

	w.logger.Debug().Msg("watching configuration file")
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			if event.Name != w.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				w.logger.Trace().Str("op", event.Op.String()).Msg("configuration file event")
				w.trigger()
			}
		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn().Err(err).Msg("configuration watcher error")
		}
	}
}

// notify records a change without blocking.
func (w *Watcher) notify() {
	select {
	case w.changes <- struct{}{}:
	default:
	}
}
