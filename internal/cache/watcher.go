package cache

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
)

// Watcher observes the cache directory and reports which scan type's
// payload was rewritten. Sidecars and temporary files are ignored; a
// save is only visible once the rename lands, so an event on the final
// payload name means a complete cache.
type Watcher struct {
	fsw    *fsnotify.Watcher
	events chan string
	logger *slog.Logger
}

// NewWatcher starts watching the coordinator's directory.
func NewWatcher(c *Coordinator, logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("cache: creating watcher: %w", err)
	}

	if err := fsw.Add(c.dir); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("cache: watching %s: %w", c.dir, err)
	}

	return &Watcher{
		fsw:    fsw,
		events: make(chan string, 16),
		logger: logger,
	}, nil
}

// Events emits the scan type whose cache payload changed.
func (w *Watcher) Events() <-chan string {
	return w.events
}

// Run pumps filesystem events until the context is canceled or the
// underlying watcher closes.
func (w *Watcher) Run(ctx context.Context) {
	defer close(w.events)

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}

			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) && !event.Has(fsnotify.Rename) {
				continue
			}

			scanType, ok := scanTypeFromPath(event.Name)
			if !ok {
				continue
			}

			w.logger.Debug("cache file changed",
				slog.String("scan_type", scanType),
				slog.String("op", event.Op.String()),
			)

			select {
			case w.events <- scanType:
			default:
				// Drop when the consumer is behind; the next event
				// carries the same information.
			}

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}

			w.logger.Error("cache watcher error", slog.String("error", err.Error()))
		}
	}
}

// Close stops the underlying filesystem watcher.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}

// scanTypeFromPath extracts the scan type from a payload file name.
// Sidecars and temporary files yield false.
func scanTypeFromPath(path string) (string, bool) {
	name := filepath.Base(path)

	if !strings.HasSuffix(name, "_cache.json") {
		return "", false
	}

	return strings.TrimSuffix(name, "_cache.json"), true
}
