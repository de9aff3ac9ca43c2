package calibration

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/sirupsen/logrus"
)

// FileStore keeps calibrations in a plain text file, one "key,x,y" line per key.
//
// Every Record re-reads the file, applies the change and rewrites the whole
// mapping through a temporary file and rename. The read-modify-write runs
// under a mutex so concurrent records within a process cannot lose updates.
type FileStore struct {
	path    string
	log     *logrus.Entry
	mu      sync.RWMutex
	entries []Entry
	index   map[string]int
}

// OpenFile loads the calibration file at path. A missing file yields an
// empty store; the file is created on the first Record.
func OpenFile(path string, log *logrus.Entry) (*FileStore, error) {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}

	s := &FileStore{
		path: path,
		log:  log.WithField("component", "calibration"),
	}

	if err := s.reload(); err != nil {
		return nil, err
	}

	return s, nil
}

// Path returns the calibration file path.
func (s *FileStore) Path() string {
	return s.path
}

// Lookup returns the recorded position for key.
func (s *FileStore) Lookup(key string) (Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i, ok := s.index[key]
	if !ok {
		return Position{}, ErrNotFound
	}
	return s.entries[i].Position, nil
}

// Record inserts or replaces the position for key and rewrites the file.
func (s *FileStore) Record(key string, pos Position) error {
	if err := ValidateKey(key); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Pick up changes made by other writers since the last load.
	if err := s.reload(); err != nil {
		return err
	}

	if i, ok := s.index[key]; ok {
		s.entries[i].Position = pos
	} else {
		s.index[key] = len(s.entries)
		s.entries = append(s.entries, Entry{Key: key, Position: pos})
	}

	if err := s.persist(); err != nil {
		return err
	}

	s.log.WithFields(logrus.Fields{
		"key": key,
		"x":   pos.X,
		"y":   pos.Y,
	}).Debug("calibration recorded")

	return nil
}

// Entries returns a copy of all calibrations in file order.
func (s *FileStore) Entries() ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out, nil
}

// reload replaces the in-memory mapping with the file contents.
// Callers must hold the write lock or be the constructor.
func (s *FileStore) reload() error {
	f, err := os.Open(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			s.entries = nil
			s.index = make(map[string]int)
			return nil
		}
		return fmt.Errorf("open calibration file: %w", err)
	}
	defer f.Close()

	entries, skipped, err := Parse(f)
	if err != nil {
		return err
	}
	if skipped > 0 {
		s.log.WithField("skipped", skipped).Debug("ignored malformed calibration lines")
	}

	s.entries = entries
	s.index = make(map[string]int, len(entries))
	for i, e := range entries {
		s.index[e.Key] = i
	}

	return nil
}

// persist writes the mapping to a temp file beside the target and renames it
// into place.
func (s *FileStore) persist() error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create calibration dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp calibration file: %w", err)
	}
	tmpName := tmp.Name()

	if err := Write(tmp, s.entries); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write calibration file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("sync calibration file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close calibration file: %w", err)
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace calibration file: %w", err)
	}

	return nil
}
