// Package ports defines the core interfaces that form the contract between
// the domain/application layers and the infrastructure layer.
// These interfaces enable dependency inversion and make the system testable.
package ports

import (
	"context"

	"github.com/simonrob/webpa-engine/internal/domain"
)

// SubmissionAdapter normalises one raw peer-rating submission from a
// source-specific shape (spreadsheet rows, classic-quiz answers,
// new-quiz session results) into a validated SubmissionOutcome.
// Adapters are pure given their inputs: all warnings and rejections are
// returned, never printed, so the host decides how to surface them.
// Implementations must be stateless and safe for concurrent use.
type SubmissionAdapter interface {
	// Name returns the source kind this adapter handles (for example
	// "spreadsheet"). The name tags raw submissions to adapters and
	// appears in outcome provenance.
	Name() string

	// Parse converts a raw submission into an outcome, applying the
	// shared validation rules against the roster ground truth. The raw
	// value's concrete type is adapter-specific; a value of the wrong
	// shape returns an error wrapping domain.ErrRawShape. Validation
	// failures are not errors: they are rejected outcomes.
	Parse(ctx context.Context, raw any, roster domain.Roster) (domain.SubmissionOutcome, error)
}
