package archive

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/adrg/xdg"

	"github.com/example/threadharvest/internal/model"
)

// AppName is the directory name used under the XDG data home.
const AppName = "threadharvest"

// DefaultDir returns the default archive directory
// (~/.local/share/threadharvest on Linux).
func DefaultDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// Store persists monthly collections as JSON documents, one file per
// month per record kind. Writes are atomic: the document is written to
// a temporary file in the same directory and renamed over the target,
// so a partially written month is never observable.
type Store struct {
	// dir is the archive directory.
	dir string

	// logger receives persistence diagnostics.
	logger *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// NewStore creates a Store rooted at dir, creating the directory if
// needed. An empty dir selects DefaultDir().
func NewStore(dir string, opts ...Option) (*Store, error) {
	if dir == "" {
		dir = DefaultDir()
	}
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create archive directory: %w", err)
	}

	s := &Store{dir: dir}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s, nil
}

// Dir returns the archive directory.
func (s *Store) Dir() string {
	return s.dir
}

// ThreadsPath returns the path of the month's thread collection file.
func (s *Store) ThreadsPath(month model.Month) string {
	return filepath.Join(s.dir, fmt.Sprintf("threads-%s.json", month))
}

// CommentsPath returns the path of the month's comment collection file.
func (s *Store) CommentsPath(month model.Month) string {
	return filepath.Join(s.dir, fmt.Sprintf("comments-%s.json", month))
}

// LoadThreads loads the month's thread collection. A missing file is
// not an error: it returns (nil, nil), meaning the month has not been
// crawled before.
func (s *Store) LoadThreads(month model.Month) (*model.ThreadCollection, error) {
	var col model.ThreadCollection
	ok, err := s.load(s.ThreadsPath(month), &col)
	if err != nil || !ok {
		return nil, err
	}
	return &col, nil
}

// LoadComments loads the month's comment collection, (nil, nil) when absent.
func (s *Store) LoadComments(month model.Month) (*model.CommentCollection, error) {
	var col model.CommentCollection
	ok, err := s.load(s.CommentsPath(month), &col)
	if err != nil || !ok {
		return nil, err
	}
	return &col, nil
}

// SaveThreads atomically writes the month's thread collection.
func (s *Store) SaveThreads(month model.Month, col *model.ThreadCollection) error {
	return s.save(s.ThreadsPath(month), col)
}

// SaveComments atomically writes the month's comment collection.
func (s *Store) SaveComments(month model.Month, col *model.CommentCollection) error {
	return s.save(s.CommentsPath(month), col)
}

// load reads and decodes a collection file. The boolean reports whether
// the file existed.
func (s *Store) load(path string, v any) (bool, error) {
	data, err := os.ReadFile(path) //nolint:gosec // Paths are built from the archive dir
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return true, nil
}

// save encodes v and atomically replaces path with it.
func (s *Store) save(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	data = append(data, '\n')

	tmp, err := os.CreateTemp(s.dir, "."+filepath.Base(path)+".tmp-")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to write %s: %w", tmpPath, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to close %s: %w", tmpPath, err)
	}
	if err := os.Chmod(tmpPath, 0644); err != nil { //nolint:gosec // Archive files are not secrets
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to chmod %s: %w", tmpPath, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}

	s.logger.Debug("wrote archive file", "path", path, "bytes", len(data))
	return nil
}
