package engine

import (
	"context"
	"math"
	"sort"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/simonrob/webpa-engine/internal/domain"
)

// Aggregator turns accepted rating records into one contribution score
// per student, per the WebPA method. Aggregation is a commutative
// grouping operation: the output is invariant under any permutation of
// the input records. Stateless and safe for concurrent use.
type Aggregator struct {
	tracer trace.Tracer
}

// NewAggregator creates an Aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{tracer: otel.Tracer("webpa-aggregator")}
}

// Aggregate computes per-subject contribution scores from the accepted
// rating records.
//
// Per rater, ratings are normalised to sum to 1 across that rater's
// own submitted ratings, so a generous or harsh rater's scale does not
// bias the comparison. Per (group, subject), the normalised ratings
// are summed and multiplied by the group's response-rate adjustment,
// distinct rated subjects / distinct raters: 1.0 when every member
// responded, above 1.0 when fewer people responded than there are
// members, deliberately inflating scores to compensate for missing
// raters.
//
// Variance is the sample standard deviation (n-1 denominator) of the
// group's scores, defined as 0 when fewer than two subjects have
// scores.
//
// Every roster member appears in the result, sorted by group then
// subject. Members of a group with no accepted submissions carry a NaN
// score and adjustment with zero raters; resolution must leave their
// original mark unchanged rather than multiplying by NaN.
func (ag *Aggregator) Aggregate(
	ctx context.Context,
	records []domain.RatingRecord,
	roster domain.Roster,
	respondents map[string]bool,
) []domain.GroupAggregate {
	_, span := ag.tracer.Start(ctx, "Aggregator.Aggregate",
		trace.WithAttributes(
			attribute.Int("records.count", len(records)),
			attribute.Int("roster.groups", len(roster.Groups())),
		),
	)
	defer span.End()

	raterTotals := make(map[string]float64)
	for _, r := range records {
		raterTotals[r.Rater] += float64(r.Score)
	}

	type key struct {
		group   int
		subject string
	}
	rawScores := make(map[key]float64)
	subjectRaters := make(map[key]map[string]bool)
	groupRaters := make(map[int]map[string]bool)
	groupSubjects := make(map[int]map[string]bool)
	for _, r := range records {
		k := key{r.Group, r.Subject}
		rawScores[k] += float64(r.Score) / raterTotals[r.Rater]
		if subjectRaters[k] == nil {
			subjectRaters[k] = make(map[string]bool)
		}
		subjectRaters[k][r.Rater] = true
		if groupRaters[r.Group] == nil {
			groupRaters[r.Group] = make(map[string]bool)
		}
		groupRaters[r.Group][r.Rater] = true
		if groupSubjects[r.Group] == nil {
			groupSubjects[r.Group] = make(map[string]bool)
		}
		groupSubjects[r.Group][r.Subject] = true
	}

	adjustments := make(map[int]float64, len(groupRaters))
	for group, raters := range groupRaters {
		adjustments[group] = float64(len(groupSubjects[group])) / float64(len(raters))
	}

	variances := make(map[int]float64, len(groupSubjects))
	for group, subjects := range groupSubjects {
		var scores []float64
		for subject := range subjects {
			scores = append(scores, rawScores[key{group, subject}]*adjustments[group])
		}
		variances[group] = sampleStdDev(scores)
	}

	var aggregates []domain.GroupAggregate
	for _, group := range roster.Groups() {
		members := roster.MemberNumbers(group)
		for _, subject := range members {
			k := key{group, subject}
			agg := domain.GroupAggregate{
				Group:      group,
				Subject:    subject,
				Score:      math.NaN(),
				Adjustment: math.NaN(),
				Members:    len(members),
				Variance:   variances[group],
				Responded:  respondents[subject],
			}
			if adj, ok := adjustments[group]; ok {
				agg.Adjustment = adj
			}
			if raters, ok := subjectRaters[k]; ok {
				agg.Score = rawScores[k] * adjustments[group]
				agg.Raters = len(raters)
			}
			aggregates = append(aggregates, agg)
		}
	}
	sort.Slice(aggregates, func(i, j int) bool {
		if aggregates[i].Group != aggregates[j].Group {
			return aggregates[i].Group < aggregates[j].Group
		}
		return aggregates[i].Subject < aggregates[j].Subject
	})

	span.SetAttributes(attribute.Int("aggregates.count", len(aggregates)))
	return aggregates
}

// sampleStdDev computes the sample standard deviation (n-1
// denominator) of the given values, 0 when fewer than two exist.
func sampleStdDev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))
	var squares float64
	for _, v := range values {
		d := v - mean
		squares += d * d
	}
	return math.Sqrt(squares / float64(len(values)-1))
}
