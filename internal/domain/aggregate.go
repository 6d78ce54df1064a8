package domain

import "math"

// GroupAggregate is the derived contribution summary for one (group,
// subject) pair. Aggregates are computed fresh each run and never
// persisted.
type GroupAggregate struct {
	// Group and Subject key the aggregate.
	Group   int    `json:"group"`
	Subject string `json:"subject"`

	// Score is the subject's weighted normalised contribution: the sum
	// of the raters' normalised ratings of this subject, multiplied by
	// the group's response-rate adjustment. NaN when the subject
	// received no ratings at all, which downstream resolution must treat
	// as "no adjustment possible" rather than a numeric score.
	Score float64 `json:"score"`

	// Adjustment is the group's response-rate correction factor:
	// distinct rated subjects / distinct raters. 1.0 when everyone
	// responded, above 1.0 when fewer people responded than there are
	// members. NaN when the group had no accepted submissions.
	Adjustment float64 `json:"adjustment"`

	// Raters counts the valid respondents whose ratings reached this
	// subject. Zero when the subject received no ratings.
	Raters int `json:"raters"`

	// Members counts the subjects expected in the group per the roster.
	Members int `json:"members"`

	// Variance is the dispersion (sample standard deviation) of the
	// group's contribution scores. Zero when fewer than two subjects
	// have scores.
	Variance float64 `json:"variance"`

	// Responded reports whether this subject submitted a valid rating
	// form themself.
	Responded bool `json:"responded"`
}

// HasScore reports whether the aggregate carries a usable contribution
// score. Subjects with no ratings have Score == NaN and must keep their
// original mark unchanged.
func (a GroupAggregate) HasScore() bool {
	return a.Raters > 0 && !math.IsNaN(a.Score)
}

// FinalMark is the resolved outcome for one subject after the variance
// threshold, maximum-mark cap, and rounding quantum have been applied.
type FinalMark struct {
	Group   int    `json:"group"`
	Subject string `json:"subject"`

	// Original is the pre-adjustment mark for the subject or their group.
	Original float64 `json:"original"`

	// Weighted is Original scaled by the contribution score, or Original
	// unchanged when the group's variance is below the threshold or no
	// score exists.
	Weighted float64 `json:"weighted"`

	// Mark is Weighted capped at the maximum mark and rounded to the
	// configured quantum. This is the mark to release.
	Mark float64 `json:"mark"`

	// Scaled reports whether Mark differs from Original beyond a small
	// floating-point tolerance.
	Scaled bool `json:"scaled"`
}
