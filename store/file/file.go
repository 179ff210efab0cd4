// Package file keeps the session record in a JSON file, optionally encrypted
// at rest, and reports changes made by other processes through fsnotify.
package file

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/jrsteele09/lunar-session/store"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	_ store.Store   = (*Store)(nil)
	_ store.Watcher = (*Store)(nil)
)

const defaultDebounce = 50 * time.Millisecond

// Store persists the record at <dir>/<name>.json with mode 0600.
type Store struct {
	path     string
	sealer   *sealer
	debounce time.Duration
	logger   zerolog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithPassphrase encrypts the file with a key derived from passphrase.
func WithPassphrase(passphrase string) Option {
	return func(s *Store) {
		if passphrase != "" {
			s.sealer = newSealer(passphrase)
		}
	}
}

// WithDebounce sets how long Watch waits for writes to settle before reporting.
func WithDebounce(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.debounce = d
		}
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// New creates a file store for the record called name inside dir.
func New(dir, name string, options ...Option) (*Store, error) {
	if dir == "" || name == "" {
		return nil, errors.New("[file.New] dir and name are required")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("[file.New] create dir: %w", err)
	}

	s := &Store{
		path:     filepath.Join(dir, name+".json"),
		debounce: defaultDebounce,
		logger:   log.With().Str("component", "file-store").Logger(),
	}
	for _, opt := range options {
		opt(s)
	}
	return s, nil
}

// Path returns the location of the record file.
func (s *Store) Path() string {
	return s.path
}

func (s *Store) Load(_ context.Context) (*store.Record, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("file.Load: %w", err)
	}
	if len(data) == 0 {
		return nil, nil
	}

	if s.sealer != nil {
		if data, err = s.sealer.open(data); err != nil {
			return nil, fmt.Errorf("file.Load: %w", err)
		}
	}
	return store.Unmarshal(data)
}

func (s *Store) Save(_ context.Context, record *store.Record) error {
	data, err := store.Marshal(record)
	if err != nil {
		return err
	}
	if s.sealer != nil {
		if data, err = s.sealer.seal(data); err != nil {
			return fmt.Errorf("file.Save: %w", err)
		}
	}
	if err := writeAtomic(s.path, data); err != nil {
		return fmt.Errorf("file.Save: %w", err)
	}
	return nil
}

func (s *Store) Clear(_ context.Context) error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("file.Clear: %w", err)
	}
	return nil
}

// writeAtomic replaces path so readers never observe a half-written record.
func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) //nolint:errcheck // gone after a successful rename

	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// Watch reports changes to the record file. The directory is watched rather
// than the file because writes replace the file by rename.
func (s *Store) Watch(ctx context.Context, onChange func()) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("file.Watch: %w", err)
	}
	defer fsw.Close()

	if err := fsw.Add(filepath.Dir(s.path)); err != nil {
		return fmt.Errorf("file.Watch: %w", err)
	}
	s.logger.Debug().Str("path", s.path).Msg("Watching session file")

	var pending *time.Timer
	defer func() {
		if pending != nil {
			pending.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != s.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
				continue
			}
			if pending == nil {
				pending = time.AfterFunc(s.debounce, onChange)
			} else {
				pending.Reset(s.debounce)
			}

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			s.logger.Warn().Err(err).Msg("Session file watcher error")
		}
	}
}
