package vector

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestMemoryIndex_AddVector(t *testing.T) {
	idx, err := NewMemoryIndex(3)
	if err != nil {
		t.Fatal(err)
	}
	src := []float32{1, 0, 0}
	if err := idx.Add([]string{"a", "b"}, [][]float32{src, {0, 1, 0}}); err != nil {
		t.Fatal(err)
	}
	src[0] = 9
	v, ok := idx.Vector("a")
	if !ok || v[0] != 1 {
		t.Errorf("Vector(a) = %v, %v; stored vector should be a copy", v, ok)
	}
	if err := idx.Add([]string{"a"}, [][]float32{{0, 0, 1}}); err != nil {
		t.Fatal(err)
	}
	if idx.Size() != 2 {
		t.Errorf("re-adding should replace, Size=%d", idx.Size())
	}
	if ids := idx.IDs(); ids[0] != "a" || ids[1] != "b" {
		t.Errorf("IDs() = %v", ids)
	}
	if err := idx.Add([]string{"c"}, [][]float32{{1, 2}}); !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("expected ErrDimensionMismatch, got %v", err)
	}
}

func TestMemoryIndex_SaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "vectors.bin")
	idx, _ := NewMemoryIndex(2)
	_ = idx.Add([]string{"course-1#0", "course-1#1"}, [][]float32{{0.6, 0.8}, {-1, 0}})
	if err := idx.Save(path); err != nil {
		t.Fatal(err)
	}

	loaded, err := LoadMemoryIndex(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Dimensions() != 2 || loaded.Size() != 2 {
		t.Fatalf("loaded dims/size = %d/%d", loaded.Dimensions(), loaded.Size())
	}
	v, ok := loaded.Vector("course-1#0")
	if !ok || v[0] != 0.6 || v[1] != 0.8 {
		t.Errorf("Vector = %v, %v", v, ok)
	}
}

func TestLoadMemoryIndex_truncated(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vectors.bin")
	idx, _ := NewMemoryIndex(4)
	_ = idx.Add([]string{"x"}, [][]float32{{1, 2, 3, 4}})
	if err := idx.Save(path); err != nil {
		t.Fatal(err)
	}
	data, _ := os.ReadFile(path)
	if err := os.WriteFile(path, data[:len(data)-3], 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadMemoryIndex(path); err == nil {
		t.Error("expected error for truncated file")
	}
}

func TestLoadMemoryIndex_missing(t *testing.T) {
	if _, err := LoadMemoryIndex(filepath.Join(t.TempDir(), "nope.bin")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected os.ErrNotExist, got %v", err)
	}
}
