// Package media stores accepted pattern images on local disk.
package media

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrOutsideStore is returned for paths that escape the store directory.
var ErrOutsideStore = errors.New("path outside media store")

// Store writes image files under a root directory. Files are named after
// their pattern and checksum, so saving the same bytes twice is a no-op.
type Store struct {
	dir string
}

// NewStore creates a store at dir, creating the directory if needed.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create media dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Dir returns the root directory.
func (s *Store) Dir() string {
	return s.dir
}

// Save writes data and returns its path relative to the store root.
func (s *Store) Save(patternID uint, checksum, ext string, data []byte) (string, error) {
	if checksum == "" {
		return "", errors.New("checksum required")
	}
	rel := s.filename(patternID, checksum, ext)
	full := filepath.Join(s.dir, rel)

	if _, err := os.Stat(full); err == nil {
		return rel, nil
	}
	if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
		return "", err
	}

	// Write to a temp file in the same directory, then rename.
	tmpFile, err := os.CreateTemp(filepath.Dir(full), "image_tmp_")
	if err != nil {
		return "", err
	}
	tmpPath := tmpFile.Name()
	defer func() {
		tmpFile.Close()
		os.Remove(tmpPath)
	}()

	if _, err := tmpFile.Write(data); err != nil {
		return "", err
	}
	if err := tmpFile.Close(); err != nil {
		return "", err
	}
	if err := os.Rename(tmpPath, full); err != nil {
		return "", err
	}
	return rel, nil
}

// Read returns the bytes of a file saved earlier.
func (s *Store) Read(rel string) ([]byte, error) {
	full, err := s.Path(rel)
	if err != nil {
		return nil, err
	}
	return os.ReadFile(full)
}

// Path resolves a relative path inside the store.
func (s *Store) Path(rel string) (string, error) {
	full := filepath.Join(s.dir, filepath.Clean("/"+rel))
	if !strings.HasPrefix(full, filepath.Clean(s.dir)+string(filepath.Separator)) {
		return "", ErrOutsideStore
	}
	return full, nil
}

// Remove deletes one saved file. Missing files are not an error.
func (s *Store) Remove(rel string) error {
	full, err := s.Path(rel)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// RemovePattern deletes every file saved for a pattern.
func (s *Store) RemovePattern(patternID uint) error {
	return os.RemoveAll(filepath.Join(s.dir, patternDir(patternID)))
}

func (s *Store) filename(patternID uint, checksum, ext string) string {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	if ext == "" {
		ext = "bin"
	}
	short := checksum
	if len(short) > 16 {
		short = short[:16]
	}
	return filepath.Join(patternDir(patternID), fmt.Sprintf("image_%s.%s", short, ext))
}

func patternDir(patternID uint) string {
	return fmt.Sprintf("pattern_%d", patternID)
}
