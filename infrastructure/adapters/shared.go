// Package adapters provides the source-specific ingestion adapters that
// implement the ports.SubmissionAdapter interface for the WebPA
// contribution scoring engine.
package adapters

import (
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/text/cases"
)

// Timestamp layout used by the raw submission feeds,
// e.g. "2024-12-31T13:30:00Z".
const timestampLayout = "2006-01-02T15:04:05Z"

// Common errors returned by ingestion adapters.
var (
	// ErrEmptyAdapterName is returned when attempting to create an adapter
	// with an empty name.
	ErrEmptyAdapterName = errors.New("adapter name cannot be empty")
)

// Package-level validator instance for configuration validation.
// Uses go-playground/validator v10 for struct tag-based validation.
var validate = validator.New()

// foldString case-folds a string for caseless comparison. cases.Caser
// is stateful and must not be shared between goroutines, and adapters
// parse concurrently, so each call builds its own caser.
func foldString(s string) string {
	return cases.Fold().String(s)
}

// htmlTags matches markup to strip from LMS-sourced rich text, such as
// new-quiz choice labels and essay answers.
var htmlTags = regexp.MustCompile(`<[^>]*>`)

// stripHTML removes markup from a rich-text fragment and trims the
// surrounding whitespace.
func stripHTML(s string) string {
	return strings.TrimSpace(htmlTags.ReplaceAllString(s, ""))
}

// isNoneComment reports whether a free-text comment is blank or the
// literal "none" students are prompted to enter when they have nothing
// to say. Comparison is Unicode case-folded.
func isNoneComment(s string) bool {
	trimmed := strings.TrimSpace(s)
	return trimmed == "" || foldString(trimmed) == "none"
}

// parseTimestamp parses an optional feed timestamp. A missing or
// malformed value yields the zero time, which disables the lateness
// check for that submission rather than failing ingestion.
func parseTimestamp(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(timestampLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}
