package config

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	log "github.com/sirupsen/logrus"
)

// watchDebounce coalesces the write bursts editors produce into one reload.
const watchDebounce = 500 * time.Millisecond

// Watch reloads the configuration file whenever it changes on disk and
// hands each successfully parsed result to onChange. The parent directory
// is watched rather than the file itself so atomic rename-style saves are
// still observed. Watch blocks until ctx is cancelled.
func Watch(ctx context.Context, path string, onChange func(*Config)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() {
		if errClose := watcher.Close(); errClose != nil {
			log.Errorf("config watcher: close error: %v", errClose)
		}
	}()

	dir := filepath.Dir(path)
	if err = watcher.Add(dir); err != nil {
		return err
	}
	target := filepath.Clean(path)

	var timer *time.Timer
	reload := func() {
		cfg, errLoad := LoadConfig(target)
		if errLoad != nil {
			log.Warnf("config watcher: reload skipped: %v", errLoad)
			return
		}
		log.Infof("config reloaded from %s", target)
		onChange(cfg)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(watchDebounce, reload)
		case errWatch, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Errorf("config watcher: %v", errWatch)
		}
	}
}
