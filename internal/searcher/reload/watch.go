package reload

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/Adithya-Monish-Kumar-K/Symbol-Search-Index/internal/indexer/segment"
)

// Watch reloads whenever the CURRENT pointer file in dir changes. Bursts of
// events within debounce collapse into one reload. It returns when ctx ends.
func (m *Manager) Watch(ctx context.Context, dir string, debounce time.Duration) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer w.Close()
	if err := w.Add(dir); err != nil {
		return fmt.Errorf("watching %s: %w", dir, err)
	}
	m.logger.Info("watching index pointer", "dir", dir)

	target := filepath.Join(dir, segment.CurrentBlobName)
	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Rename) {
				continue
			}
			timer.Reset(debounce)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			m.logger.Warn("watch error", "error", err)
		case <-timer.C:
			if _, err := m.Load(ctx, ""); err != nil {
				m.logger.Error("reload after pointer change failed", "error", err)
			}
		}
	}
}
