// Package coursedir reads courses from directories: each subdirectory of a root is one course,
// described by an optional course.yaml and made of lesson files.
package coursedir

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/hyperjump/kotae/internal/extract"
	"github.com/hyperjump/kotae/internal/fileid"
	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/pkg/utils"
)

// ManifestName is the optional per-course metadata file.
const ManifestName = "course.yaml"

// Manifest is the content of course.yaml. Every field is optional.
type Manifest struct {
	ID          string `yaml:"id"`
	Title       string `yaml:"title"`
	Description string `yaml:"description"`
	// Published defaults to true when omitted.
	Published *bool `yaml:"published"`
}

// Source lists published courses found under its root directories.
type Source struct {
	roots      []string
	extensions map[string]bool
	extractor  *extract.Extractor
	logger     *zap.Logger
}

// Option configures a Source.
type Option func(*Source)

// WithLogger sets the logger used for skipped lesson files.
func WithLogger(l *zap.Logger) Option {
	return func(s *Source) { s.logger = l }
}

// WithExtractor replaces the default lesson extractor.
func WithExtractor(e *extract.Extractor) Option {
	return func(s *Source) { s.extractor = e }
}

// NewSource creates a Source. Only lesson files whose extension is in extensions and
// supported by the extractor are read; an empty list allows every supported extension.
func NewSource(roots, extensions []string, opts ...Option) *Source {
	s := &Source{
		roots:      make([]string, len(roots)),
		extensions: make(map[string]bool),
	}
	for i, r := range roots {
		s.roots[i] = filepath.Clean(r)
	}
	if len(extensions) == 0 {
		extensions = extract.Extensions()
	}
	for _, ext := range extensions {
		ext = strings.ToLower(ext)
		if extract.Supported(ext) {
			s.extensions[ext] = true
		}
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.extractor == nil {
		s.extractor = extract.NewExtractor(extract.WithMaxBytes(100 << 20))
	}
	s.logger = utils.OrNop(s.logger)
	return s
}

// Roots returns the root directories.
func (s *Source) Roots() []string { return s.roots }

// IsCourseFile reports whether a change to path can alter a course document.
func (s *Source) IsCourseFile(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") {
		return false
	}
	return base == ManifestName || s.extensions[strings.ToLower(filepath.Ext(base))]
}

// ListPublishedDocuments reads every course directory under every root, in name order.
// Unreadable lesson files are logged and skipped; an unreadable root or manifest fails the call.
func (s *Source) ListPublishedDocuments(ctx context.Context) ([]models.Document, error) {
	var docs []models.Document
	seen := make(map[string]string)
	for _, root := range s.roots {
		entries, err := os.ReadDir(root)
		if err != nil {
			return nil, fmt.Errorf("read course root %s: %w", root, err)
		}
		for _, e := range entries {
			if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
				continue
			}
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			dir := filepath.Join(root, e.Name())
			doc, published, err := s.readCourse(dir)
			if err != nil {
				return nil, err
			}
			if !published {
				continue
			}
			if prev, dup := seen[doc.ID]; dup {
				return nil, fmt.Errorf("duplicate course id %q in %s and %s", doc.ID, prev, dir)
			}
			seen[doc.ID] = dir
			docs = append(docs, doc)
		}
	}
	return docs, nil
}

func (s *Source) readCourse(dir string) (models.Document, bool, error) {
	m, modTime, err := readManifest(dir)
	if err != nil {
		return models.Document{}, false, err
	}
	if m.Published != nil && !*m.Published {
		return models.Document{}, false, nil
	}

	doc := models.Document{
		ID:          m.ID,
		Title:       m.Title,
		Description: m.Description,
		UpdatedAt:   modTime,
	}
	if doc.ID == "" {
		doc.ID = fileid.CourseID(dir)
	}
	if doc.Title == "" {
		doc.Title = filepath.Base(dir)
	}

	lessons, err := s.lessonFiles(dir)
	if err != nil {
		return models.Document{}, false, err
	}
	sections := make([]models.Section, 0, len(lessons))
	for _, path := range lessons {
		text, err := s.extractor.Extract(path)
		if err != nil {
			s.logger.Warn("skipping lesson file", zap.String("path", path), zap.Error(err))
			continue
		}
		if info, err := os.Stat(path); err == nil && info.ModTime().After(doc.UpdatedAt) {
			doc.UpdatedAt = info.ModTime()
		}
		sections = append(sections, models.Section{Title: lessonTitle(path), Body: text})
	}
	doc.Text = models.ComposeText(doc.Title, doc.Description, sections)
	return doc, true, nil
}

// lessonFiles returns allowed files under dir, recursively, sorted by relative path.
func (s *Source) lessonFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		name := d.Name()
		if strings.HasPrefix(name, ".") && path != dir {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || name == ManifestName {
			return nil
		}
		if s.extensions[strings.ToLower(filepath.Ext(name))] {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list lessons in %s: %w", dir, err)
	}
	sort.Strings(files)
	return files, nil
}

func readManifest(dir string) (Manifest, time.Time, error) {
	var m Manifest
	path := filepath.Join(dir, ManifestName)
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return m, time.Time{}, nil
	}
	if err != nil {
		return m, time.Time{}, fmt.Errorf("read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &m); err != nil {
		return m, time.Time{}, fmt.Errorf("parse %s: %w", path, err)
	}
	var modTime time.Time
	if info, err := os.Stat(path); err == nil {
		modTime = info.ModTime()
	}
	return m, modTime, nil
}

// lessonTitle turns "02-neural_networks.md" into "neural networks".
func lessonTitle(path string) string {
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	name = strings.TrimLeft(name, "0123456789")
	name = strings.NewReplacer("-", " ", "_", " ").Replace(name)
	return strings.TrimSpace(name)
}
