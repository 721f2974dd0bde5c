package models

import (
	"errors"
	"strings"
	"testing"
)

func TestValidateQuestion(t *testing.T) {
	tests := []struct {
		name    string
		q       string
		maxLen  int
		want    string
		wantErr bool
	}{
		{"empty question", "", 100, "", true},
		{"whitespace only", "  \n\t ", 100, "", true},
		{"valid question", "What is ML?", 100, "What is ML?", false},
		{"trims whitespace", "  hello  ", 100, "hello", false},
		{"exactly max length", strings.Repeat("a", 10), 10, strings.Repeat("a", 10), false},
		{"over max length", strings.Repeat("a", 11), 10, "", true},
		{"counts runes not bytes", strings.Repeat("é", 10), 10, strings.Repeat("é", 10), false},
		{"zero max disables check", strings.Repeat("a", 5000), 0, strings.Repeat("a", 5000), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ValidateQuestion(tt.q, tt.maxLen)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidateQuestion() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrValidation) {
				t.Errorf("error should wrap ErrValidation, got %v", err)
			}
			if got != tt.want {
				t.Errorf("ValidateQuestion() = %q, want %q", got, tt.want)
			}
		})
	}
}
