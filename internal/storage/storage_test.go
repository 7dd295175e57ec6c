package storage

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewTempAreaStartsFresh(t *testing.T) {
	dir := filepath.Join(t.TempDir(), ".tinyimg-tmp")
	previous, err := NewTempArea(dir)
	if err != nil {
		t.Fatalf("NewTempArea: %v", err)
	}
	f, err := previous.Stage("stale.png")
	if err != nil {
		t.Fatalf("Stage: %v", err)
	}
	stale := f.Name()
	f.Close()

	area, err := NewTempArea(dir)
	if err != nil {
		t.Fatalf("NewTempArea: %v", err)
	}
	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Errorf("stale file survived: %v", err)
	}
	if area.Dir() != dir {
		t.Errorf("Dir = %q, want %q", area.Dir(), dir)
	}
}

func TestStageUniqueNames(t *testing.T) {
	area, err := NewTempArea(filepath.Join(t.TempDir(), "tmp"))
	if err != nil {
		t.Fatalf("NewTempArea: %v", err)
	}

	a, err := area.Stage("photo.png")
	if err != nil {
		t.Fatalf("Stage: %v", err)
	}
	defer a.Close()
	b, err := area.Stage("photo.png")
	if err != nil {
		t.Fatalf("Stage: %v", err)
	}
	defer b.Close()

	if a.Name() == b.Name() {
		t.Fatalf("staged files collide: %s", a.Name())
	}
	for _, f := range []*os.File{a, b} {
		base := filepath.Base(f.Name())
		if !strings.HasPrefix(base, "photo-") || filepath.Ext(base) != ".png" {
			t.Errorf("unexpected staged name %s", base)
		}
	}
}

func TestRemoveIdempotent(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "tmp")
	area, err := NewTempArea(dir)
	if err != nil {
		t.Fatalf("NewTempArea: %v", err)
	}
	if err := area.Remove(); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if err := area.Remove(); err != nil {
		t.Fatalf("second Remove: %v", err)
	}
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Errorf("temp dir still exists: %v", err)
	}
}

func TestWriteFileAtomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "image.png")
	if err := os.WriteFile(path, []byte("original content"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	if err := WriteFileAtomic(path, []byte("small")); err != nil {
		t.Fatalf("WriteFileAtomic: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != "small" {
		t.Errorf("content = %q, want small", data)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("mode = %v, want 0600", info.Mode().Perm())
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("readdir: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("temp files left behind: %v", entries)
	}
}

func TestWriteFileAtomicMissingDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "image.png")
	if err := WriteFileAtomic(path, []byte("x")); err == nil {
		t.Fatal("expected error writing into a missing directory")
	}
}

func TestNewTempAreaRefusesForeignDirectory(t *testing.T) {
	dir := t.TempDir()
	photo := filepath.Join(dir, "photo.png")
	if err := os.WriteFile(photo, []byte("keep me"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	if _, err := NewTempArea(dir); !errors.Is(err, ErrForeignDirectory) {
		t.Fatalf("err = %v, want ErrForeignDirectory", err)
	}
	data, err := os.ReadFile(photo)
	if err != nil || string(data) != "keep me" {
		t.Errorf("photo.png = %q, %v", data, err)
	}
}

func TestNewTempAreaReusesEmptyDirectory(t *testing.T) {
	dir := t.TempDir()
	if _, err := NewTempArea(dir); err != nil {
		t.Fatalf("NewTempArea on empty dir: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, markerName)); err != nil {
		t.Errorf("marker missing: %v", err)
	}
}
