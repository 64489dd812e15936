package supervisor

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"slices"

	"github.com/fsnotify/fsnotify"

	"github.com/oshokin/alarm-bridge/internal/logger"
)

// errNoPatterns is returned when hot-plug has nothing to watch.
var errNoPatterns = errors.New("no device directories to watch")

// watchHotplug calls onDevice whenever a file matching one of patterns is
// created. The returned func stops watching and waits for the watcher to exit.
func watchHotplug(ctx context.Context, patterns []string, onDevice func()) (func(), error) {
	dirs := make([]string, 0, len(patterns))
	for _, p := range patterns {
		if dir := filepath.Dir(p); !slices.Contains(dirs, dir) {
			dirs = append(dirs, dir)
		}
	}

	if len(dirs) == 0 {
		return nil, errNoPatterns
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}

	for _, dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			_ = watcher.Close()

			return nil, fmt.Errorf("watch %s: %w", dir, err)
		}
	}

	exited := make(chan struct{})

	go func() {
		defer close(exited)

		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}

				if !event.Has(fsnotify.Create) || !matchesAny(patterns, event.Name) {
					continue
				}

				logger.InfoKV(ctx, "Serial device appeared", "path", event.Name)
				onDevice()
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}

				logger.WarnKV(ctx, "Hot-plug watcher error", "error", err)
			}
		}
	}()

	logger.DebugKV(ctx, "Watching for serial devices", "dirs", dirs)

	return func() {
		_ = watcher.Close()
		<-exited
	}, nil
}

func matchesAny(patterns []string, name string) bool {
	for _, p := range patterns {
		if ok, _ := filepath.Match(p, name); ok {
			return true
		}
	}

	return false
}
