package discovery

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watch calls onChange whenever the discovery record appears, changes, or
// disappears. onChange receives the freshly read record, or nil when the
// record is absent or unreadable.
//
// The parent directory is watched rather than the file itself, because
// Write publishes via rename and a file watch would be lost with the old
// inode. The watcher runs until ctx is cancelled.
//
// Parameters:
//   - ctx: Cancels the watch
//   - path: The record file path
//   - onChange: Called on each change, from the watcher goroutine
//
// Returns:
//   - error: Any error installing the watcher
func Watch(ctx context.Context, path string, onChange func(*Record)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create discovery watcher: %w", err)
	}

	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != filepath.Clean(path) {
					continue
				}
				if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename|fsnotify.Remove) == 0 {
					continue
				}
				rec, err := Read(path)
				if err != nil {
					rec = nil
				}
				onChange(rec)
			case _, ok := <-watcher.Errors:
				if !ok {
					return
				}
				// Watcher errors are not actionable here; the next
				// event or a fresh Read recovers the state.
			}
		}
	}()

	return nil
}
