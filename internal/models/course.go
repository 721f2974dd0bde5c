package models

import "time"

// Course is a row of the course store. Only published courses are retrievable.
type Course struct {
	ID          string    `json:"id" db:"id"`
	Title       string    `json:"title" db:"title"`
	Description string    `json:"description" db:"description"`
	Published   bool      `json:"published" db:"published"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// Lesson is one ordered lesson body of a course.
type Lesson struct {
	ID       string `json:"id" db:"id"`
	CourseID string `json:"course_id" db:"course_id"`
	Position int    `json:"position" db:"position"`
	Title    string `json:"title" db:"title"`
	Body     string `json:"body" db:"body"`
}
