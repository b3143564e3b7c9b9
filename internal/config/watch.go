package config

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rotisserie/eris"
)

// reloadDebounce coalesces the burst of events editors emit when saving.
const reloadDebounce = 150 * time.Millisecond

// Watch reloads path whenever it changes and hands every valid configuration to onChange.
// Invalid edits are logged and skipped; the previous configuration stays in effect.
// Watch blocks until ctx is cancelled.
func Watch(ctx context.Context, path string, logger *slog.Logger, onChange func(Config)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return eris.Wrap(err, "failed to create config watcher")
	}
	defer watcher.Close()

	// Watch the directory so atomic rename-on-save keeps working.
	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		return eris.Wrapf(err, "failed to watch %s", dir)
	}
	target := filepath.Clean(path)

	var (
		timer   *time.Timer
		pending <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(reloadDebounce)
			} else {
				timer.Reset(reloadDebounce)
			}
			pending = timer.C
		case <-pending:
			pending = nil
			cfg, err := Load(path)
			if err != nil {
				logger.Warn("ignoring invalid config change", slog.String("path", path), slog.Any("error", err))
				continue
			}
			logger.Info("config reloaded", slog.String("path", path))
			onChange(cfg)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("config watcher error", slog.Any("error", err))
		}
	}
}
