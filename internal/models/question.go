package models

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// ValidateQuestion trims q and checks it is non-empty and at most maxLen characters.
// A maxLen of 0 or less disables the length check.
func ValidateQuestion(q string, maxLen int) (string, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return "", &ValidationError{Field: "question", Message: "question cannot be empty"}
	}
	if maxLen > 0 {
		if n := utf8.RuneCountInString(q); n > maxLen {
			return "", &ValidationError{
				Field:   "question",
				Message: fmt.Sprintf("question is %d characters, maximum is %d", n, maxLen),
			}
		}
	}
	return q, nil
}
