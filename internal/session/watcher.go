package session

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Waker is the slice of the identity store the watcher drives. The
// watcher never applies snapshot contents itself; it only asks the store
// to re-resolve.
type Waker interface {
	Wake(ctx context.Context)
}

// Watcher observes the snapshot file and wakes the identity store when
// another process writes or removes it. Events are debounced so a
// save-then-rename sequence triggers a single re-resolution.
type Watcher struct {
	path     string
	store    Waker
	logger   *slog.Logger
	debounce time.Duration

	fsw     *fsnotify.Watcher
	cancel  context.CancelFunc
	started bool
	done    chan struct{}
}

// NewWatcher creates a watcher for the given snapshot path.
func NewWatcher(path string, store Waker, logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create snapshot watcher: %w", err)
	}
	return &Watcher{
		path:     path,
		store:    store,
		logger:   logger,
		debounce: 200 * time.Millisecond,
		fsw:      fsw,
		done:     make(chan struct{}),
	}, nil
}

// Start begins watching. The parent directory is watched rather than the
// file itself so create and rename events are observed.
func (w *Watcher) Start(ctx context.Context) error {
	dir := filepath.Dir(w.path)
	if err := w.fsw.Add(dir); err != nil {
		return fmt.Errorf("watch snapshot directory: %w", err)
	}

	ctx, w.cancel = context.WithCancel(ctx)
	w.started = true
	go w.run(ctx)
	return nil
}

// Close stops the watcher. The event loop is drained only when Start
// succeeded; a watcher that never started has no loop to wait for.
func (w *Watcher) Close() error {
	if w.cancel != nil {
		w.cancel()
	}
	err := w.fsw.Close()
	if w.started {
		<-w.done
	}
	return err
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.done)

	var timer *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			w.logger.Debug("session snapshot changed", "op", event.Op.String())
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				fire = timer.C
			} else {
				if !timer.Stop() {
					<-fire
				}
				timer.Reset(w.debounce)
			}

		case <-fire:
			timer = nil
			fire = nil
			w.store.Wake(ctx)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("snapshot watcher error", "error", err)
		}
	}
}
