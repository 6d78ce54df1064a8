package domain

import "time"

// RawRating is one candidate rating row in adapter-neutral form: the
// tagged intermediate that all three ingestion adapters normalise to
// before the shared validator applies the acceptance rules.
type RawRating struct {
	// Subject is the claimed student number of the person being rated.
	Subject string

	// Raw is the original textual value of the rating cell or answer,
	// preserved for error messages.
	Raw string

	// Score is the parsed numeric rating. Meaningful only when Parsed.
	Score float64

	// Parsed reports whether Raw resolved to a number. A false value
	// means the rating was missing or non-numeric.
	Parsed bool

	// Marker reports whether this row carried the "which row is me"
	// respondent marker. Only the spreadsheet source produces markers.
	Marker bool

	// GroupClaim is the group number declared on this row, preserved as
	// text, when the source declares one per row (spreadsheet). Empty
	// when the source implies the group instead.
	GroupClaim string
}

// Submission is one respondent's full set of candidate ratings, already
// normalised from its raw source shape but not yet validated. Adapters
// produce Submissions; the validator turns them into outcomes.
type Submission struct {
	// Source names the adapter that produced this submission, for
	// provenance in warnings and errors.
	Source string

	// Owner is the submission's declared owner: the student number from
	// the file name for spreadsheet forms, or the authenticated submitter
	// for quiz responses.
	Owner string

	// Group is the group this submission claims to belong to.
	Group int

	// SelfReported is true when the rater's identity comes from an
	// in-form marker rather than an authenticated identity, in which
	// case the marker must be present, unique, and match Owner.
	SelfReported bool

	// HeaderFound is false only for spreadsheet forms whose expected
	// header row never appeared, which indicates an edited or wrong form.
	HeaderFound bool

	// Ratings are the candidate rating rows, in source order.
	Ratings []RawRating

	// Notes carries non-rating information worth surfacing, such as
	// free-text comments a respondent attached. Notes become warnings on
	// the outcome so the host can review them.
	Notes []string

	// SubmittedAt and DueAt support the lateness check. Either may be
	// zero when the source does not carry timestamps.
	SubmittedAt time.Time
	DueAt       time.Time
}

// SubmissionOutcome is the validator's verdict on one submission:
// either accepted, carrying the resulting rating records and any
// non-fatal correction warnings, or rejected with reasons. Rejected
// submissions never contribute records to aggregation, but their
// reasons remain reportable.
type SubmissionOutcome struct {
	// Rater is the validated (or claimed, when rejected) respondent.
	Rater string `json:"rater"`

	// Group is the group the submission belonged to.
	Group int `json:"group"`

	// Source names the adapter that ingested the submission.
	Source string `json:"source"`

	// Accepted reports whether the submission passed validation.
	Accepted bool `json:"accepted"`

	// Records holds the validated rating records. Empty unless Accepted.
	Records []RatingRecord `json:"records,omitempty"`

	// Warnings lists non-fatal corrections (clamped scores, ignored
	// non-member ratings) applied to an accepted submission.
	Warnings []string `json:"warnings,omitempty"`

	// Reasons lists why a submission was rejected. Empty when Accepted.
	Reasons []string `json:"reasons,omitempty"`
}

// Messages returns every reason and warning attached to the outcome,
// rejection reasons first. This is the auditable trail the report's
// error column is built from.
func (o SubmissionOutcome) Messages() []string {
	if len(o.Reasons) == 0 && len(o.Warnings) == 0 {
		return nil
	}
	msgs := make([]string, 0, len(o.Reasons)+len(o.Warnings))
	msgs = append(msgs, o.Reasons...)
	msgs = append(msgs, o.Warnings...)
	return msgs
}
