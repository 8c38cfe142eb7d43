package companion

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// defaultDebounce absorbs the burst of events a single save produces.
const defaultDebounce = 100 * time.Millisecond

// Watch loads the blocklist and keeps the served snapshot current until ctx
// is done. The parent directories are watched so that files created or
// replaced after startup are picked up.
func (s *Server) Watch(ctx context.Context, debounce time.Duration) error {
	if debounce <= 0 {
		debounce = defaultDebounce
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}

	watched := make(map[string]struct{}, len(s.paths))
	dirs := make(map[string]struct{})
	for _, p := range s.paths {
		watched[filepath.Clean(p)] = struct{}{}
		dir := filepath.Dir(p)
		if _, ok := dirs[dir]; ok {
			continue
		}
		if err := watcher.Add(dir); err != nil {
			s.logger.Warn("cannot watch blocklist directory", "dir", dir, "error", err)
			continue
		}
		dirs[dir] = struct{}{}
	}
	if len(dirs) == 0 {
		watcher.Close()
		return fmt.Errorf("no blocklist directory could be watched")
	}

	if err := s.Reload(); err != nil {
		s.logger.Warn("initial blocklist load", "error", err)
	}
	s.watching.Store(true)

	go s.processEvents(ctx, watcher, watched, debounce)
	return nil
}

func (s *Server) processEvents(ctx context.Context, watcher *fsnotify.Watcher, watched map[string]struct{}, debounce time.Duration) {
	defer func() {
		s.watching.Store(false)
		watcher.Close()
	}()

	var pending time.Time
	ticker := time.NewTicker(debounce / 2)
	defer ticker.Stop()

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if _, ok := watched[filepath.Clean(event.Name)]; !ok {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0 {
				pending = time.Now()
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			s.logger.Warn("blocklist watcher error", "error", err)

		case <-ticker.C:
			if pending.IsZero() || time.Since(pending) < debounce {
				continue
			}
			pending = time.Time{}
			if err := s.Reload(); err != nil {
				s.logger.Info("blocklist unavailable after change", "error", err)
				continue
			}
			s.logger.Info("blocklist reloaded", "entries", s.Entries())

		case <-ctx.Done():
			return
		}
	}
}
