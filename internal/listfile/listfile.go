// Package listfile edits the on-disk blocklist served by the companion.
package listfile

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/binderveil/binderveil/internal/blocklist"
)

var (
	ErrExists   = errors.New("listfile: package already listed")
	ErrNotFound = errors.New("listfile: package not listed")
)

// Store edits the primary list file and keeps the mirror copy in sync.
type Store struct {
	Primary string
	// Mirror receives a copy after every change when non-empty.
	Mirror  string
	Options blocklist.Options
	// Perm is used when creating the files. Defaults to 0644.
	Perm fs.FileMode

	logger *slog.Logger
}

// New returns a store over primary and mirror.
func New(primary, mirror string, opts blocklist.Options) *Store {
	return &Store{
		Primary: primary,
		Mirror:  mirror,
		Options: opts,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

// SetLogger sets the logger for file changes.
func (s *Store) SetLogger(logger *slog.Logger) {
	if logger != nil {
		s.logger = logger
	}
}

// Read returns the raw list, preferring the primary file and falling back to
// the mirror. A missing list reads as empty.
func (s *Store) Read() ([]byte, error) {
	for _, p := range []string{s.Primary, s.Mirror} {
		if p == "" {
			continue
		}
		data, err := os.ReadFile(p)
		if err == nil {
			return data, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read %s: %w", p, err)
		}
	}
	return nil, nil
}

// List returns the names in file order.
func (s *Store) List() ([]string, error) {
	data, err := s.Read()
	if err != nil {
		return nil, err
	}
	spans := blocklist.Spans(data, s.Options)
	names := make([]string, 0, len(spans))
	for _, sp := range spans {
		names = append(names, sp.Name)
	}
	return names, nil
}

// Contains reports whether name is listed.
func (s *Store) Contains(name string) (bool, error) {
	names, err := s.List()
	if err != nil {
		return false, err
	}
	for _, n := range names {
		if n == name {
			return true, nil
		}
	}
	return false, nil
}

// Add appends name to the list.
func (s *Store) Add(name string) error {
	return s.update(func(data []byte) ([]byte, error) {
		for _, sp := range blocklist.Spans(data, s.Options) {
			if sp.Name == name {
				return nil, fmt.Errorf("%w: %s", ErrExists, name)
			}
		}
		return blocklist.AppendEntry(data, name, s.Options)
	})
}

// Remove drops name from the list.
func (s *Store) Remove(name string) error {
	return s.update(func(data []byte) ([]byte, error) {
		out, ok := blocklist.RemoveEntry(data, name, s.Options)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return out, nil
	})
}

// Reset deletes both files. It reports whether anything was removed.
func (s *Store) Reset() (bool, error) {
	removed := false
	for _, p := range []string{s.Primary, s.Mirror} {
		if p == "" {
			continue
		}
		err := os.Remove(p)
		switch {
		case err == nil:
			removed = true
		case errors.Is(err, fs.ErrNotExist):
		default:
			return removed, fmt.Errorf("remove %s: %w", p, err)
		}
	}
	if removed {
		s.logger.Info("blocklist reset", "path", s.Primary)
	}
	return removed, nil
}

func (s *Store) update(fn func([]byte) ([]byte, error)) error {
	if err := os.MkdirAll(filepath.Dir(s.Primary), 0o755); err != nil {
		return fmt.Errorf("create dir: %w", err)
	}
	unlock, err := lockPath(s.Primary + ".lock")
	if err != nil {
		return err
	}
	defer unlock()

	data, err := s.Read()
	if err != nil {
		return err
	}
	out, err := fn(data)
	if err != nil {
		return err
	}
	if err := s.write(s.Primary, out); err != nil {
		return err
	}
	if s.Mirror != "" {
		if err := s.write(s.Mirror, out); err != nil {
			return fmt.Errorf("mirror: %w", err)
		}
	}
	s.logger.Info("blocklist updated", "path", s.Primary, "bytes", len(out))
	return nil
}

// write replaces path through a temp file so readers never see a partial
// list.
func (s *Store) write(path string, data []byte) error {
	perm := s.Perm
	if perm == 0 {
		perm = 0o644
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	success := false
	defer func() {
		if !success {
			os.Remove(tmpName)
		}
	}()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Chmod(perm); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename temp file: %w", err)
	}
	success = true
	return nil
}
