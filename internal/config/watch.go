package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"reflect"

	"github.com/fsnotify/fsnotify"
)

// Watch monitors the config file at path and calls onChange with the newly
// loaded Config whenever a reload produces an applicable change. It runs
// until ctx is cancelled.
//
// Only the notify section is applied at runtime. Changes to collect,
// evaluate, store, db, or vault settings are detected and logged as
// requiring a restart; onChange is not called for them. current is the
// config the daemon started with and anchors that diff.
//
// If a reload fails (e.g., invalid YAML), the error is logged and the
// previous config remains active.
func Watch(ctx context.Context, path string, current *Config, onChange func(*Config)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("config: create watcher: %w", err)
	}
	defer watcher.Close()

	// Watch the parent directory rather than the file itself: editors and
	// config-management tools replace the file via rename, which would
	// silently detach a file-level watch.
	path = filepath.Clean(path)
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("config: watch %s: %w", filepath.Dir(path), err)
	}

	slog.Info("config: watching for changes", "path", path)

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}

			next, err := Load(path)
			if err != nil {
				slog.Error("config: reload failed, keeping previous config",
					"path", path, "err", err)
				continue
			}

			for _, section := range restartOnlyChanges(current, next) {
				slog.Warn("config: change requires restart to take effect",
					"section", section)
			}

			if !reflect.DeepEqual(current.Notify, next.Notify) {
				slog.Info("config: notify settings reloaded", "path", path)
				onChange(next)
			}
			current = next

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Error("config: watcher error", "err", err)
		}
	}
}

// restartOnlyChanges names the config sections that differ between prev and
// next but are fixed at startup.
func restartOnlyChanges(prev, next *Config) []string {
	var sections []string
	if prev.Collect != next.Collect {
		sections = append(sections, "collect")
	}
	if prev.Evaluate != next.Evaluate {
		sections = append(sections, "evaluate")
	}
	if prev.Store != next.Store {
		sections = append(sections, "store")
	}
	if prev.DB != next.DB {
		sections = append(sections, "db")
	}
	if prev.Vault != next.Vault {
		sections = append(sections, "vault")
	}
	return sections
}
