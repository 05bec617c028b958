package config

import (
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/snapwebsites/contentengine/internal/clog"
)

// watchDebounce coalesces the burst of write events a single editor
// save can generate, the same debounce role beads' show_display.go
// applies to its own fsnotify watch loop.
const watchDebounce = 200 * time.Millisecond

// Watch reloads path into onChange every time it is rewritten, until
// stop is closed. A reload that fails to parse is logged and skipped,
// leaving the previously loaded Config in effect.
func Watch(path string, stop <-chan struct{}, onChange func(Config)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	if err := watcher.Add(filepath.Dir(path)); err != nil {
		_ = watcher.Close()
		return err
	}

	go func() {
		defer func() { _ = watcher.Close() }()

		var timer *time.Timer
		reload := func() {
			cfg, err := Load(path)
			if err != nil {
				clog.Warnf("config: reload %s failed, keeping previous config: %v", path, err)
				return
			}
			onChange(cfg)
		}

		for {
			select {
			case <-stop:
				if timer != nil {
					timer.Stop()
				}
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Base(event.Name) != filepath.Base(path) || !event.Has(fsnotify.Write) {
					continue
				}
				if timer != nil {
					timer.Stop()
				}
				timer = time.AfterFunc(watchDebounce, reload)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				clog.Warnf("config: watch %s: %v", path, err)
			}
		}
	}()

	return nil
}
