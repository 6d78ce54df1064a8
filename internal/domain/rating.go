package domain

import "math"

// Rating scale bounds. Every accepted score is an integer within this
// closed range after bounding.
const (
	MinRatingScore = 1
	MaxRatingScore = 5
)

// RatingRecord is the normalised atomic unit of the engine: one rater's
// score of one subject within one group. Records are created by
// response ingestion and never mutated afterwards.
type RatingRecord struct {
	// Rater is the student number of the person who gave the rating.
	Rater string `json:"rater"`

	// Subject is the student number of the person being rated.
	// Self-ratings (Rater == Subject) are expected and included.
	Subject string `json:"subject"`

	// Score is the bounded integer rating in [MinRatingScore, MaxRatingScore].
	Score int `json:"score"`

	// Group is the group identifier both students belong to.
	Group int `json:"group"`
}

// BoundScore clamps a raw numeric rating to the [1, 5] scale and rounds
// to the nearest integer, halves away from zero. Bounding never rejects:
// callers compare the result against the input to decide whether a
// correction warning is due. Clamping an already-in-range integer is a
// no-op.
func BoundScore(score float64) int {
	clamped := math.Min(math.Max(score, MinRatingScore), MaxRatingScore)
	return int(math.Round(clamped))
}
