package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/MMSchneider/dubswitch-sub000/internal/infrastructure/config"
	"github.com/MMSchneider/dubswitch-sub000/internal/infrastructure/logging"
)

// File permission modes for store artefacts.
const (
	dirPermissions  = 0750
	filePermissions = 0600
)

// Domain errors for the store package.
var (
	// ErrSaveFailed is returned when both the atomic write and the
	// non-atomic fallback write fail.
	ErrSaveFailed = errors.New("store: save failed")

	// ErrNoPort is returned by LoadPort when no port has been persisted.
	ErrNoPort = errors.New("store: no persisted port")
)

// Matrix is the persisted channel matrix document. Keys are two-digit
// channel ids ("01".."32"); values are small application-level records.
type Matrix map[string]any

// SaveResult is the outcome of a successful (possibly degraded) save.
type SaveResult struct {
	// Matrix is the authoritative on-disk state, re-read after writing.
	Matrix Matrix

	// Warning is non-empty when the atomic write failed and the
	// non-atomic fallback succeeded.
	Warning string
}

// Store owns the matrix document and the persisted preferred port.
//
// Thread Safety: all methods are safe for concurrent use. The store is
// the sole writer of both files.
type Store struct {
	matrixPath string
	portPath   string
	logger     *logging.Logger

	mu     sync.Mutex
	matrix Matrix

	// rename is swappable in tests to exercise the fallback path.
	rename func(oldpath, newpath string) error
}

// New creates a Store and loads the matrix document from disk.
// A missing file is an empty document, not an error.
func New(cfg config.StoreConfig, logger *logging.Logger) (*Store, error) {
	s := &Store{
		matrixPath: cfg.MatrixPath,
		portPath:   cfg.PortPath,
		logger:     logger,
		matrix:     Matrix{},
		rename:     os.Rename,
	}

	data, err := os.ReadFile(cfg.MatrixPath)
	switch {
	case errors.Is(err, os.ErrNotExist):
		// First run.
	case err != nil:
		return nil, fmt.Errorf("reading matrix document: %w", err)
	default:
		if err := json.Unmarshal(data, &s.matrix); err != nil {
			return nil, fmt.Errorf("parsing matrix document: %w", err)
		}
	}

	return s, nil
}

// Matrix returns a copy of the current in-memory matrix document.
func (s *Store) Matrix() Matrix {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.copyMatrixLocked()
}

// SaveMatrix merges patch into the document (patch values win per key,
// keys absent from patch keep their prior values), persists the merged
// result atomically, then re-reads the canonical file so the caller gets
// the authoritative on-disk state.
//
// Returns:
//   - SaveResult: On-disk document plus a warning if the fallback write was used
//   - error: Only when the fallback write also failed
func (s *Store) SaveMatrix(patch Matrix) (SaveResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for k, v := range patch {
		s.matrix[k] = v
	}

	data, err := json.MarshalIndent(s.matrix, "", "  ")
	if err != nil {
		return SaveResult{}, fmt.Errorf("%w: encoding document: %w", ErrSaveFailed, err)
	}

	warning := ""
	if err := s.writeAtomic(s.matrixPath, data); err != nil {
		s.logger.Warn("atomic matrix write failed, trying direct write", "error", err)
		if fbErr := os.WriteFile(s.matrixPath, data, filePermissions); fbErr != nil {
			return SaveResult{}, fmt.Errorf("%w: %w (fallback: %w)", ErrSaveFailed, err, fbErr)
		}
		warning = fmt.Sprintf("atomic write failed, used direct write: %v", err)
	}

	// Re-read to return what is actually on disk.
	onDisk := Matrix{}
	data, err = os.ReadFile(s.matrixPath)
	if err == nil {
		if err := json.Unmarshal(data, &onDisk); err != nil {
			s.logger.Warn("re-reading matrix document failed", "error", err)
			onDisk = s.copyMatrixLocked()
		}
	} else {
		s.logger.Warn("re-reading matrix document failed", "error", err)
		onDisk = s.copyMatrixLocked()
	}

	return SaveResult{Matrix: onDisk, Warning: warning}, nil
}

// SavePort persists the preferred HTTP port atomically.
// Rebinding is not attempted in-process: an external supervisor is
// expected to restart dubswitch against the new value.
func (s *Store) SavePort(port int) error {
	data := []byte(strconv.Itoa(port) + "\n")
	if err := s.writeAtomic(s.portPath, data); err != nil {
		return fmt.Errorf("persisting port: %w", err)
	}
	return nil
}

// LoadPort reads the persisted preferred port.
// Returns ErrNoPort when none has been saved yet.
func (s *Store) LoadPort() (int, error) {
	data, err := os.ReadFile(s.portPath)
	if errors.Is(err, os.ErrNotExist) {
		return 0, ErrNoPort
	}
	if err != nil {
		return 0, fmt.Errorf("reading persisted port: %w", err)
	}

	port, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("parsing persisted port: %w", err)
	}
	return port, nil
}

// writeAtomic writes data to a temp file in the target directory and
// renames it over the canonical path. Rename within one directory is
// atomic on POSIX filesystems.
func (s *Store) writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, dirPermissions); err != nil {
		return fmt.Errorf("creating store directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("syncing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Chmod(tmpName, filePermissions); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("setting temp file mode: %w", err)
	}

	if err := s.rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}

// copyMatrixLocked returns a shallow copy of the document.
// Caller must hold s.mu.
func (s *Store) copyMatrixLocked() Matrix {
	out := make(Matrix, len(s.matrix))
	for k, v := range s.matrix {
		out[k] = v
	}
	return out
}
