// Package e2e provides end-to-end tests over a small multi-course catalogue.
package e2e

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/hyperjump/kotae/internal/coursedir"
	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/storage"
)

// OffTopicQuestion shares no content words with any course in the corpus.
const OffTopicQuestion = "What is the capital city of Mongolia?"

// Lesson is one lesson of a corpus course.
type Lesson struct {
	Title string
	Body  string
}

// Course is a corpus course.
type Course struct {
	ID          string
	Title       string
	Description string
	Lessons     []Lesson
}

// QuestionCase is a question whose best source must be the course ExpectedID.
type QuestionCase struct {
	Question   string
	ExpectedID string
}

// Corpus holds courses and the questions asked against them.
type Corpus struct {
	Courses   []Course
	Questions []QuestionCase
}

// BuildCorpus returns ten courses on unrelated topics and one question per course.
// Every question shares several content words with its own course and almost
// none with the others.
func BuildCorpus() *Corpus {
	courses := []struct {
		Course
		question string
	}{
		{Course{"ml-101", "Machine Learning Basics", "An introduction to machine learning for beginners.", []Lesson{
			{"what is machine learning", "Machine learning is a branch of artificial intelligence where models learn patterns from training data instead of following hand written rules."},
			{"supervised learning", "Supervised learning trains a model on labelled examples so it can predict labels for new inputs."},
		}}, "What is machine learning?"},
		{Course{"cook-101", "Italian Cooking", "Cook simple Italian dishes at home.", []Lesson{
			{"pasta", "Boil pasta in plenty of salted water until it is al dente, usually eight to ten minutes."},
			{"sauces", "A tomato sauce needs olive oil, garlic, crushed tomatoes and fresh basil simmered slowly."},
		}}, "How long should pasta boil in salted water?"},
		{Course{"k8s-201", "Kubernetes Fundamentals", "Container orchestration with Kubernetes.", []Lesson{
			{"pods", "A pod is the smallest deployable unit in Kubernetes and wraps one or more containers."},
			{"deployments", "Deployments keep a desired number of pod replicas running and roll out updates gradually."},
		}}, "What is a pod in Kubernetes?"},
		{Course{"go-101", "Go Programming", "Learn the Go programming language.", []Lesson{
			{"goroutines", "Goroutines are lightweight threads managed by the Go runtime; channels let goroutines communicate safely."},
			{"interfaces", "Go interfaces are satisfied implicitly by any type that implements their methods."},
		}}, "How do goroutines communicate with channels?"},
		{Course{"sql-101", "Relational Databases", "Relational databases and SQL queries.", []Lesson{
			{"joins", "A SQL join combines rows from two tables using a related column such as a foreign key."},
			{"indexes", "Database indexes speed up lookups at the cost of extra storage and slower writes."},
		}}, "How does a SQL join combine rows from two tables?"},
		{Course{"photo-101", "Digital Photography", "Take better photos with any camera.", []Lesson{
			{"exposure", "Exposure depends on aperture, shutter speed and ISO; together they control how much light reaches the sensor."},
			{"composition", "The rule of thirds places the subject along imaginary grid lines for a balanced composition."},
		}}, "What controls exposure in photography: aperture, shutter speed, ISO?"},
		{Course{"garden-101", "Home Gardening", "Grow vegetables in a small garden.", []Lesson{
			{"soil", "Tomatoes grow best in loose soil rich in compost with six hours of sunlight daily."},
			{"watering", "Water vegetable beds deeply in the early morning so roots grow down and leaves dry quickly."},
		}}, "Why water vegetable beds deeply in the early morning?"},
		{Course{"fin-101", "Personal Finance", "Budgeting, saving and investing basics.", []Lesson{
			{"budget", "A monthly budget tracks income and expenses so savings goals become realistic."},
			{"compound interest", "Compound interest earns returns on previous returns, so investing early grows savings faster."},
		}}, "How does compound interest grow savings?"},
		{Course{"astro-101", "Introduction to Astronomy", "The solar system, stars and galaxies.", []Lesson{
			{"planets", "The solar system has eight planets orbiting the sun; Jupiter is the largest planet."},
			{"stars", "Stars fuse hydrogen into helium in their cores, releasing enormous energy as light."},
		}}, "Which planet is the largest in the solar system?"},
		{Course{"music-101", "Music Theory", "Scales, chords and rhythm.", []Lesson{
			{"scales", "A major scale has seven notes separated by whole and half steps."},
			{"chords", "A triad chord stacks three notes from the scale: a root, a third and a fifth."},
		}}, "Which notes does a triad chord stack from the scale?"},
	}

	c := &Corpus{}
	for _, e := range courses {
		c.Courses = append(c.Courses, e.Course)
		c.Questions = append(c.Questions, QuestionCase{Question: e.question, ExpectedID: e.ID})
	}
	return c
}

// Course returns the course with id.
func (c *Corpus) Course(id string) (Course, bool) {
	for _, course := range c.Courses {
		if course.ID == id {
			return course, true
		}
	}
	return Course{}, false
}

// SeedSQLite writes every course, published, with its lessons in order.
func (c *Corpus) SeedSQLite(ctx context.Context, store *storage.SQLiteCourseStore) error {
	for _, course := range c.Courses {
		if err := store.CreateCourse(ctx, &models.Course{
			ID:          course.ID,
			Title:       course.Title,
			Description: course.Description,
			Published:   true,
		}); err != nil {
			return fmt.Errorf("create course %s: %w", course.ID, err)
		}
		for i, l := range course.Lessons {
			if err := store.AddLesson(ctx, &models.Lesson{
				ID:       fmt.Sprintf("%s-%02d", course.ID, i+1),
				CourseID: course.ID,
				Position: i,
				Title:    l.Title,
				Body:     l.Body,
			}); err != nil {
				return fmt.Errorf("add lesson to %s: %w", course.ID, err)
			}
		}
	}
	return nil
}

// WriteDirectories lays the corpus out as course directories under root: one
// directory per course with a course.yaml and one Markdown file per lesson.
func (c *Corpus) WriteDirectories(root string) error {
	for _, course := range c.Courses {
		dir := filepath.Join(root, course.ID)
		if err := WriteCourseManifest(dir, coursedir.Manifest{
			ID:          course.ID,
			Title:       course.Title,
			Description: course.Description,
		}); err != nil {
			return err
		}
		for i, l := range course.Lessons {
			name := fmt.Sprintf("%02d-%s.md", i+1, strings.ReplaceAll(l.Title, " ", "-"))
			if err := os.WriteFile(filepath.Join(dir, name), []byte(l.Body), 0644); err != nil {
				return fmt.Errorf("write lesson: %w", err)
			}
		}
	}
	return nil
}

// WriteCourseManifest creates dir and writes m to its course.yaml.
func WriteCourseManifest(dir string, m coursedir.Manifest) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create course dir: %w", err)
	}
	data, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, coursedir.ManifestName), data, 0644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}
