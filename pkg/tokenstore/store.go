// Package tokenstore persists runner authentication tokens on disk, one file
// per runner identity. A token file's existence is authoritative: once it is
// written the runner is considered registered and is never registered again.
package tokenstore

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/getmockd/glrunner/pkg/logging"
)

// DefaultDir is the directory gitlab-runner keeps its configuration in.
const DefaultDir = "/etc/gitlab-runner"

// File modes for the token file and its parent directory.
const (
	DirMode  fs.FileMode = 0700
	FileMode fs.FileMode = 0400
)

// FilePrefix prefixes the runner name in default token file names.
const FilePrefix = "auth-token-"

// Sentinel errors.
var (
	// ErrEmptyToken is returned when saving or loading an empty token.
	ErrEmptyToken = errors.New("token is empty")
	// ErrExists is returned when saving over an existing token file.
	ErrExists = errors.New("token file already exists")
	// ErrNotRegular is returned when the token path is not a regular file.
	ErrNotRegular = errors.New("not a regular file")
)

var nameReplacer = strings.NewReplacer("/", "_", `\`, "_")

// DefaultPath returns the token file for runnerName inside dir
// (DefaultDir when dir is empty). Path separators in the name are replaced.
func DefaultPath(dir, runnerName string) string {
	if dir == "" {
		dir = DefaultDir
	}
	return filepath.Join(dir, FilePrefix+nameReplacer.Replace(runnerName))
}

// StorageError reports a failed filesystem step.
type StorageError struct {
	Op   string
	Path string
	Err  error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("token store: %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// FileStore reads and writes token files.
type FileStore struct {
	log *slog.Logger
}

// Option configures a FileStore.
type Option func(*FileStore)

// WithLogger sets the logger.
func WithLogger(log *slog.Logger) Option {
	return func(s *FileStore) {
		if log != nil {
			s.log = log
		}
	}
}

// New creates a FileStore.
func New(opts ...Option) *FileStore {
	s := &FileStore{log: logging.Nop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load returns the trimmed token stored at path. A missing file is not an
// error: ok is false. Load never touches the network.
func (s *FileStore) Load(path string) (token string, ok bool, err error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", false, nil
		}
		return "", false, &StorageError{Op: "stat", Path: path, Err: err}
	}
	if !info.Mode().IsRegular() {
		return "", false, &StorageError{Op: "stat", Path: path, Err: ErrNotRegular}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", false, &StorageError{Op: "read", Path: path, Err: err}
	}
	token = strings.TrimSpace(string(data))
	if token == "" {
		return "", false, &StorageError{Op: "read", Path: path, Err: ErrEmptyToken}
	}
	s.log.Debug("loaded cached runner token", "path", path)
	return token, true, nil
}

// Save writes token to path. The parent directory is created with DirMode
// when missing; the token is written to a temporary file in that directory,
// restricted to FileMode and renamed into place, so a partially written or
// world-readable token file is never visible at path. Save refuses to
// replace an existing token file.
func (s *FileStore) Save(path, token string) error {
	if token == "" {
		return &StorageError{Op: "write", Path: path, Err: ErrEmptyToken}
	}

	dir := filepath.Dir(path)
	if _, err := os.Stat(dir); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return &StorageError{Op: "stat", Path: dir, Err: err}
		}
		if err := os.MkdirAll(dir, DirMode); err != nil {
			return &StorageError{Op: "mkdir", Path: dir, Err: err}
		}
		// MkdirAll is subject to the umask; set the mode explicitly.
		if err := os.Chmod(dir, DirMode); err != nil {
			return &StorageError{Op: "chmod", Path: dir, Err: err}
		}
	}

	if _, err := os.Lstat(path); err == nil {
		return &StorageError{Op: "write", Path: path, Err: ErrExists}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return &StorageError{Op: "stat", Path: path, Err: err}
	}

	tmp, err := os.CreateTemp(dir, ".auth-token-*.tmp")
	if err != nil {
		return &StorageError{Op: "create", Path: dir, Err: err}
	}
	tmpPath := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpPath) }

	if _, err := tmp.WriteString(token); err != nil {
		_ = tmp.Close()
		cleanup()
		return &StorageError{Op: "write", Path: tmpPath, Err: err}
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return &StorageError{Op: "sync", Path: tmpPath, Err: err}
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return &StorageError{Op: "close", Path: tmpPath, Err: err}
	}
	if err := os.Chmod(tmpPath, FileMode); err != nil {
		cleanup()
		return &StorageError{Op: "chmod", Path: tmpPath, Err: err}
	}
	if err := os.Rename(tmpPath, path); err != nil {
		cleanup()
		return &StorageError{Op: "rename", Path: path, Err: err}
	}

	s.log.Debug("saved runner token", "path", path)
	return nil
}
