// Package snapshot persists retrieval generations to an index directory so a
// process can start serving without re-embedding the corpus.
package snapshot

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/retrieval"
	"github.com/hyperjump/kotae/internal/storage"
	"github.com/hyperjump/kotae/internal/vector"
)

// Files inside an index directory.
const (
	ManifestFile = "manifest.yaml"
	ChunksFile   = "chunks.db"
	VectorsFile  = "vectors.bin"
)

// FormatVersion is written to every manifest; Read rejects other versions.
const FormatVersion = 1

var (
	// ErrNotFound is returned by Read when the directory holds no index.
	ErrNotFound = errors.New("offline index not found")
	// ErrCorrupt is returned by Read when the index files disagree with each other.
	ErrCorrupt = errors.New("offline index corrupt")
)

// Manifest describes an index directory.
type Manifest struct {
	Version      int       `yaml:"version" json:"version"`
	GenerationID string    `yaml:"generation_id" json:"generationId"`
	Model        string    `yaml:"embedding_model" json:"embeddingModel"`
	Dimensions   int       `yaml:"dimensions" json:"dimensions"`
	Documents    int       `yaml:"documents" json:"documents"`
	Chunks       int       `yaml:"chunks" json:"chunks"`
	CreatedAt    time.Time `yaml:"created_at" json:"createdAt"`
}

// Write stores g under dir. The files are written to a sibling temporary
// directory first and swapped in with renames, so a reader never sees a
// partially written index.
func Write(ctx context.Context, dir string, g *retrieval.Generation) error {
	dir = filepath.Clean(dir)
	parent := filepath.Dir(dir)
	if err := os.MkdirAll(parent, 0755); err != nil {
		return fmt.Errorf("create index parent: %w", err)
	}
	tmp, err := os.MkdirTemp(parent, "."+filepath.Base(dir)+".tmp-")
	if err != nil {
		return fmt.Errorf("create temp index dir: %w", err)
	}
	defer os.RemoveAll(tmp)

	if err := writeChunks(ctx, filepath.Join(tmp, ChunksFile), g.Chunks); err != nil {
		return err
	}
	if len(g.Chunks) > 0 {
		if err := writeVectors(filepath.Join(tmp, VectorsFile), g); err != nil {
			return err
		}
	}
	m := Manifest{
		Version:      FormatVersion,
		GenerationID: g.ID,
		Model:        g.Model,
		Dimensions:   g.Dimensions,
		Documents:    g.Documents,
		Chunks:       len(g.Chunks),
		CreatedAt:    g.CreatedAt.UTC(),
	}
	data, err := yaml.Marshal(&m)
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(tmp, ManifestFile), data, 0644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return swap(tmp, dir)
}

func writeChunks(ctx context.Context, path string, chunks []models.EmbeddedChunk) error {
	store, err := storage.NewSQLiteChunkStore(path)
	if err != nil {
		return fmt.Errorf("open chunk store: %w", err)
	}
	plain := make([]models.Chunk, len(chunks))
	for i, c := range chunks {
		plain[i] = c.Chunk
	}
	if err := store.ReplaceChunks(ctx, plain); err != nil {
		store.Close()
		return fmt.Errorf("write chunks: %w", err)
	}
	return store.Close()
}

func writeVectors(path string, g *retrieval.Generation) error {
	idx, err := vector.NewMemoryIndex(g.Dimensions)
	if err != nil {
		return err
	}
	ids := make([]string, len(g.Chunks))
	vecs := make([][]float32, len(g.Chunks))
	for i, c := range g.Chunks {
		ids[i] = c.Chunk.Key()
		vecs[i] = c.Vector
	}
	if err := idx.Add(ids, vecs); err != nil {
		return fmt.Errorf("index vectors: %w", err)
	}
	if err := idx.Save(path); err != nil {
		return fmt.Errorf("write vectors: %w", err)
	}
	return nil
}

// swap replaces dir with tmp. An existing dir is moved aside first and removed
// once tmp is in place.
func swap(tmp, dir string) error {
	old := ""
	if _, err := os.Stat(dir); err == nil {
		old = fmt.Sprintf("%s.old-%d", dir, time.Now().UnixNano())
		if err := os.Rename(dir, old); err != nil {
			return fmt.Errorf("move previous index aside: %w", err)
		}
	}
	if err := os.Rename(tmp, dir); err != nil {
		if old != "" {
			os.Rename(old, dir)
		}
		return fmt.Errorf("install index: %w", err)
	}
	if old != "" {
		os.RemoveAll(old)
	}
	return nil
}

// ReadManifest reads only the manifest of the index in dir.
func ReadManifest(dir string) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(dir, ManifestFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, dir)
		}
		return nil, err
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: manifest: %v", ErrCorrupt, err)
	}
	if m.Version != FormatVersion {
		return nil, fmt.Errorf("%w: unsupported format version %d", ErrCorrupt, m.Version)
	}
	return &m, nil
}

// Read loads the index in dir as a generation. Chunk order is preserved.
// Every vector must have the manifest's dimension, a finite norm and a direction.
func Read(ctx context.Context, dir string) (*retrieval.Generation, error) {
	m, err := ReadManifest(dir)
	if err != nil {
		return nil, err
	}

	chunksPath := filepath.Join(dir, ChunksFile)
	if _, err := os.Stat(chunksPath); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	store, err := storage.NewSQLiteChunkStore(chunksPath)
	if err != nil {
		return nil, err
	}
	chunks, err := store.ListChunks(ctx)
	store.Close()
	if err != nil {
		return nil, fmt.Errorf("read chunks: %w", err)
	}
	if len(chunks) != m.Chunks {
		return nil, fmt.Errorf("%w: manifest lists %d chunks, found %d", ErrCorrupt, m.Chunks, len(chunks))
	}

	g := &retrieval.Generation{
		ID:         m.GenerationID,
		Chunks:     make([]models.EmbeddedChunk, len(chunks)),
		Documents:  m.Documents,
		Dimensions: m.Dimensions,
		Model:      m.Model,
		CreatedAt:  m.CreatedAt,
	}
	if len(chunks) == 0 {
		return g, nil
	}

	idx, err := vector.LoadMemoryIndex(filepath.Join(dir, VectorsFile))
	if err != nil {
		return nil, fmt.Errorf("%w: vectors: %v", ErrCorrupt, err)
	}
	if idx.Dimensions() != m.Dimensions {
		return nil, fmt.Errorf("%w: vectors have %d dimensions, manifest %d", ErrCorrupt, idx.Dimensions(), m.Dimensions)
	}
	for i, c := range chunks {
		v, ok := idx.Vector(c.Key())
		if !ok {
			return nil, fmt.Errorf("%w: no vector for chunk %s", ErrCorrupt, c.Key())
		}
		if err := vector.Check(v, m.Dimensions); err != nil {
			return nil, fmt.Errorf("%w: chunk %s: %v", ErrCorrupt, c.Key(), err)
		}
		g.Chunks[i] = models.EmbeddedChunk{Chunk: c, Vector: v}
	}
	return g, nil
}

// Size returns the bytes used by the index in dir.
func Size(dir string) (int64, error) {
	return storage.DiskUsageBytes(dir)
}
