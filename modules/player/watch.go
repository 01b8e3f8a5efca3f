package player

import (
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// watchStations watches the directory holding path, so files replaced by
// rename (as most editors save) keep being seen.
func watchStations(path string) (*fsnotify.Watcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}

	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watch stations dir: %w", err)
	}

	return watcher, nil
}

func isStationsChange(ev fsnotify.Event, path string) bool {
	if filepath.Clean(ev.Name) != filepath.Clean(path) {
		return false
	}
	return ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create)
}
