package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Common domain errors that can occur while processing a WebPA run.
var (
	// ErrEmptyRoster indicates that a roster was constructed with no members.
	ErrEmptyRoster = errors.New("roster has no members")

	// ErrDuplicateMember indicates that a student number appears in more
	// than one group, violating the roster's core invariant.
	ErrDuplicateMember = errors.New("student belongs to more than one group")

	// ErrNoValidResponses indicates that no submission survived validation,
	// leaving nothing to aggregate.
	ErrNoValidResponses = errors.New("no valid responses to analyse")

	// ErrInvalidConfiguration indicates that processing configuration is
	// invalid or incomplete.
	ErrInvalidConfiguration = errors.New("invalid configuration")

	// ErrUnknownSubmissionKind indicates that a raw submission was tagged
	// with a source kind no registered adapter handles.
	ErrUnknownSubmissionKind = errors.New("unknown submission kind")

	// ErrRawShape indicates that an adapter received a raw submission of a
	// shape it does not parse.
	ErrRawShape = errors.New("unexpected raw submission shape")
)

// MissingMarkError reports a subject or group that has no entry in the
// original-marks mapping. This is a data-integrity failure: the run must
// stop before any marks are finalised rather than fabricating a value.
type MissingMarkError struct {
	// Subject is the student number whose mark could not be resolved.
	Subject string

	// Group is the subject's group identifier.
	Group int

	// Key is the lookup key that was tried (the student number, or the
	// group name in group-marks mode).
	Key string

	// Suggestion is the closest known marks key, when one is close enough
	// to be a plausible spelling mismatch. Empty otherwise.
	Suggestion string
}

// Error implements the error interface for MissingMarkError.
func (e *MissingMarkError) Error() string {
	msg := fmt.Sprintf("no original mark for subject %s (group %d): marks file has no entry for %q",
		e.Subject, e.Group, e.Key)
	if e.Suggestion != "" {
		msg += fmt.Sprintf(" (closest match: %q)", e.Suggestion)
	}
	return msg
}

// MissingMarksError collects every MissingMarkError found during mark
// resolution so that a single run surfaces all roster/marks-file
// mismatches at once.
type MissingMarksError struct {
	Missing []*MissingMarkError
}

// Error implements the error interface for MissingMarksError.
func (e *MissingMarksError) Error() string {
	if len(e.Missing) == 1 {
		return e.Missing[0].Error()
	}
	parts := make([]string, len(e.Missing))
	for i, m := range e.Missing {
		parts[i] = m.Error()
	}
	return fmt.Sprintf("%d subjects have no original mark: %s", len(e.Missing), strings.Join(parts, "; "))
}

// Unwrap exposes the individual missing-mark errors for errors.Is and
// errors.As traversal.
func (e *MissingMarksError) Unwrap() []error {
	errs := make([]error, len(e.Missing))
	for i, m := range e.Missing {
		errs[i] = m
	}
	return errs
}
