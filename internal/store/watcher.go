package store

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

const watchDebounce = 200 * time.Millisecond

// ChangeCallback is called after the stored graph has been replaced by
// another process. checksum is the new graph fingerprint.
type ChangeCallback func(checksum string)

// Watch starts an fsnotify watcher on the directory holding the database and
// reports graph changes until ctx is cancelled. Events on the database file
// and its -wal/-shm companions are debounced, then the stored checksum is
// compared with the last one seen; cb is only called when it differs.
func Watch(ctx context.Context, db *DB, logger *slog.Logger, cb ChangeCallback) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	dir, base := filepath.Split(filepath.Clean(db.Path()))
	if dir == "" {
		dir = "."
	}
	if err := w.Add(dir); err != nil {
		return err
	}

	last, err := db.Checksum()
	if err != nil {
		return err
	}

	logger.Info("watcher: started", slog.String("db", db.Path()))

	var timer *time.Timer
	var fire <-chan time.Time

	schedule := func() {
		if timer == nil {
			timer = time.NewTimer(watchDebounce)
			fire = timer.C
		} else {
			timer.Reset(watchDebounce)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-fire:
			sum, csErr := db.Checksum()
			if csErr != nil {
				logger.Warn("watcher: checksum failed", slog.String("error", csErr.Error()))
				continue
			}
			if sum == last {
				continue
			}
			last = sum
			logger.Debug("watcher: graph changed", slog.String("checksum", sum))
			if cb != nil {
				cb(sum)
			}

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !strings.HasPrefix(filepath.Base(ev.Name), base) {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) != 0 {
				schedule()
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}
