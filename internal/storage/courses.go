package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/hyperjump/kotae/internal/models"
)

// ErrNotFound is returned when a course does not exist.
var ErrNotFound = errors.New("not found")

const courseSchema = `
CREATE TABLE IF NOT EXISTS courses (
	id TEXT PRIMARY KEY,
	title TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	published INTEGER NOT NULL DEFAULT 0,
	updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_courses_published ON courses(published);

CREATE TABLE IF NOT EXISTS lessons (
	id TEXT PRIMARY KEY,
	course_id TEXT NOT NULL,
	position INTEGER NOT NULL,
	title TEXT NOT NULL DEFAULT '',
	body TEXT NOT NULL DEFAULT '',
	FOREIGN KEY (course_id) REFERENCES courses(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_lessons_course_position ON lessons(course_id, position);
`

// SQLiteCourseStore reads courses and lessons from SQLite. The engine only reads; the write
// methods exist for seeding and administration.
type SQLiteCourseStore struct {
	db *sql.DB
}

// NewSQLiteCourseStore opens or creates the course database at dbPath.
func NewSQLiteCourseStore(dbPath string) (*SQLiteCourseStore, error) {
	db, err := openSQLite(dbPath, courseSchema)
	if err != nil {
		return nil, err
	}
	return &SQLiteCourseStore{db: db}, nil
}

// CreateCourse inserts or replaces a course row.
func (s *SQLiteCourseStore) CreateCourse(ctx context.Context, c *models.Course) error {
	if c.UpdatedAt.IsZero() {
		c.UpdatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO courses (id, title, description, published, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET title = excluded.title, description = excluded.description,
		   published = excluded.published, updated_at = excluded.updated_at`,
		c.ID, c.Title, c.Description, c.Published, c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create course %s: %w", c.ID, err)
	}
	return nil
}

// AddLesson inserts or replaces a lesson. The course must exist.
func (s *SQLiteCourseStore) AddLesson(ctx context.Context, l *models.Lesson) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO lessons (id, course_id, position, title, body)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET course_id = excluded.course_id, position = excluded.position,
		   title = excluded.title, body = excluded.body`,
		l.ID, l.CourseID, l.Position, l.Title, l.Body,
	)
	if err != nil {
		return fmt.Errorf("add lesson %s: %w", l.ID, err)
	}
	_, err = s.db.ExecContext(ctx, `UPDATE courses SET updated_at = ? WHERE id = ?`, time.Now().UTC(), l.CourseID)
	return err
}

// SetPublished changes a course's visibility.
func (s *SQLiteCourseStore) SetPublished(ctx context.Context, id string, published bool) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE courses SET published = ?, updated_at = ? WHERE id = ?`, published, time.Now().UTC(), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("course %s: %w", id, ErrNotFound)
	}
	return nil
}

// DeleteCourse removes a course and its lessons.
func (s *SQLiteCourseStore) DeleteCourse(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM courses WHERE id = ?`, id)
	return err
}

// GetCourse returns a course by ID.
func (s *SQLiteCourseStore) GetCourse(ctx context.Context, id string) (*models.Course, error) {
	var c models.Course
	err := s.db.QueryRowContext(ctx,
		`SELECT id, title, description, published, updated_at FROM courses WHERE id = ?`, id,
	).Scan(&c.ID, &c.Title, &c.Description, &c.Published, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("course %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// ListPublishedDocuments returns one Document per published course: title, description
// and lesson titles and bodies in position order.
func (s *SQLiteCourseStore) ListPublishedDocuments(ctx context.Context) ([]models.Document, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT c.id, c.title, c.description, c.updated_at, l.title, l.body
		 FROM courses c LEFT JOIN lessons l ON l.course_id = c.id
		 WHERE c.published = 1
		 ORDER BY c.id, l.position, l.id`)
	if err != nil {
		return nil, fmt.Errorf("list published courses: %w", err)
	}
	defer rows.Close()

	var (
		docs     []models.Document
		cur      *models.Document
		sections []models.Section
	)
	flush := func() {
		if cur != nil {
			cur.Text = models.ComposeText(cur.Title, cur.Description, sections)
			docs = append(docs, *cur)
		}
	}
	for rows.Next() {
		var (
			d                       models.Document
			lessonTitle, lessonBody sql.NullString
		)
		if err := rows.Scan(&d.ID, &d.Title, &d.Description, &d.UpdatedAt, &lessonTitle, &lessonBody); err != nil {
			return nil, fmt.Errorf("scan course row: %w", err)
		}
		if cur == nil || cur.ID != d.ID {
			flush()
			cur, sections = &d, nil
		}
		if lessonTitle.Valid || lessonBody.Valid {
			sections = append(sections, models.Section{Title: lessonTitle.String, Body: lessonBody.String})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list published courses: %w", err)
	}
	flush()
	return docs, nil
}

// CountCourses returns the total and published course counts.
func (s *SQLiteCourseStore) CountCourses(ctx context.Context) (total, published int64, err error) {
	err = s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(published), 0) FROM courses`).Scan(&total, &published)
	return total, published, err
}

// Close closes the database connection.
func (s *SQLiteCourseStore) Close() error {
	return s.db.Close()
}
