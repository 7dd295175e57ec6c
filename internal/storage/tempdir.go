// Package storage holds the scratch directory used to stage downloads and the
// atomic replacement of original files.
package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// markerName tags a directory as one created by NewTempArea. A non-empty
// directory without it is never cleared.
const markerName = ".tinyimg-area"

// ErrForeignDirectory is returned when the configured directory holds files
// that were not put there by a previous batch.
var ErrForeignDirectory = errors.New("directory is not a tinyimg temp area")

// TempArea is a scratch directory that lives for the duration of one batch.
type TempArea struct {
	dir  string
	once sync.Once
	err  error
}

// NewTempArea removes any stale area at dir and creates it fresh. An existing
// non-empty directory is only removed when it carries the area marker.
func NewTempArea(dir string) (*TempArea, error) {
	entries, err := os.ReadDir(dir)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("inspect temp dir: %w", err)
	case len(entries) > 0:
		if _, err := os.Stat(filepath.Join(dir, markerName)); err != nil {
			return nil, fmt.Errorf("refusing to clear %s: %w", dir, ErrForeignDirectory)
		}
	}

	if err := os.RemoveAll(dir); err != nil {
		return nil, fmt.Errorf("remove stale temp dir: %w", err)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, markerName), nil, 0644); err != nil {
		return nil, fmt.Errorf("mark temp dir: %w", err)
	}
	return &TempArea{dir: dir}, nil
}

// Dir returns the directory path.
func (t *TempArea) Dir() string {
	return t.dir
}

// Stage creates an empty file for baseName inside the area. A random suffix
// keeps inputs sharing a base name from clobbering each other.
func (t *TempArea) Stage(baseName string) (*os.File, error) {
	ext := filepath.Ext(baseName)
	stem := strings.TrimSuffix(filepath.Base(baseName), ext)
	f, err := os.CreateTemp(t.dir, stem+"-*"+ext)
	if err != nil {
		return nil, fmt.Errorf("stage %s: %w", baseName, err)
	}
	return f, nil
}

// Remove deletes the area. Only the first call does any work.
func (t *TempArea) Remove() error {
	t.once.Do(func() {
		t.err = os.RemoveAll(t.dir)
	})
	return t.err
}
