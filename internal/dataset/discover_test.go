package dataset

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDiscoverBasic(t *testing.T) {
	dir := t.TempDir()
	mustWrite(t, filepath.Join(dir, "bach.mid"))
	mustWrite(t, filepath.Join(dir, "nested", "satie.MIDI"))
	mustWrite(t, filepath.Join(dir, "ignore.txt"))
	mustWrite(t, filepath.Join(dir, "notes.mid.bak"))

	files, err := Discover(dir)
	if err != nil {
		t.Fatalf("Discover error: %v", err)
	}
	want := []string{
		filepath.Join(dir, "bach.mid"),
		filepath.Join(dir, "nested", "satie.MIDI"),
	}
	if len(files) != len(want) {
		t.Fatalf("expected %d files, got %d: %v", len(want), len(files), files)
	}
	for i, file := range want {
		if files[i] != file {
			t.Fatalf("file[%d]=%s want %s", i, files[i], file)
		}
	}
}

func TestDiscoverMissingRoot(t *testing.T) {
	if _, err := Discover(filepath.Join(t.TempDir(), "absent")); err == nil {
		t.Fatal("expected an error for a missing root")
	}
}

func TestDiscoverByRoot(t *testing.T) {
	dirA := t.TempDir()
	dirB := t.TempDir()
	mustWrite(t, filepath.Join(dirA, "a.mid"))
	mustWrite(t, filepath.Join(dirB, "b0.mid"))
	mustWrite(t, filepath.Join(dirB, "b1.mid"))

	byRoot, err := DiscoverByRoot([]string{dirA, dirB})
	if err != nil {
		t.Fatalf("DiscoverByRoot error: %v", err)
	}
	if len(byRoot[dirA]) != 1 || len(byRoot[dirB]) != 2 {
		t.Fatalf("unexpected discovery: %v", byRoot)
	}
}

func mustWrite(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(""), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
