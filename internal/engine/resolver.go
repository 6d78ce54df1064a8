package engine

import (
	"context"
	"math"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/simonrob/webpa-engine/internal/domain"
)

// scaledTolerance is the floating-point slack below which a resolved
// mark is considered unchanged from the original.
const scaledTolerance = 1e-5

// Resolver merges aggregation output with the original marks and
// applies the variance threshold, maximum-mark cap, and rounding
// quantum. Stateless and safe for concurrent use.
type Resolver struct {
	config Config
	tracer trace.Tracer
}

// NewResolver creates a Resolver with the given configuration. It
// returns an error if the configuration is invalid.
func NewResolver(config Config) (*Resolver, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Resolver{
		config: config,
		tracer: otel.Tracer("webpa-resolver"),
	}, nil
}

// Resolve produces a final mark for every aggregate.
//
// A subject's mark is scaled by their contribution score only when the
// subject has a score, the group has at least two members, and the
// group's variance reaches the minimum-variance threshold; otherwise
// the original mark passes through unchanged. The weighted mark is
// capped at the maximum first and then rounded half-up to the nearest
// rounding quantum, so a capped mark is always an exact multiple of
// the quantum.
//
// A subject or group with no entry in the marks mapping is a
// data-integrity failure: every such miss is collected and returned as
// a single *domain.MissingMarksError with no final marks, so all
// roster/marks-file mismatches surface in one run.
func (rs *Resolver) Resolve(
	ctx context.Context,
	aggregates []domain.GroupAggregate,
	roster domain.Roster,
	marks Marks,
) ([]domain.FinalMark, error) {
	_, span := rs.tracer.Start(ctx, "Resolver.Resolve",
		trace.WithAttributes(
			attribute.Int("aggregates.count", len(aggregates)),
			attribute.String("config.marks_mode", rs.config.MarksMode),
		),
	)
	defer span.End()

	var finals []domain.FinalMark
	var missing []*domain.MissingMarkError
	for _, agg := range aggregates {
		key := agg.Subject
		if rs.config.MarksMode == MarksModeGroup {
			key = roster.GroupName(agg.Group)
		}
		original, ok := marks.Lookup(key)
		if !ok {
			missing = append(missing, &domain.MissingMarkError{
				Subject:    agg.Subject,
				Group:      agg.Group,
				Key:        key,
				Suggestion: marks.Suggest(key),
			})
			continue
		}

		weighted := original
		if agg.HasScore() && agg.Members >= 2 && agg.Variance >= rs.config.MinimumVariance {
			weighted = original * agg.Score
		}
		mark := roundToQuantum(math.Min(weighted, rs.config.MaximumMark), rs.config.MarkRounding)

		finals = append(finals, domain.FinalMark{
			Group:    agg.Group,
			Subject:  agg.Subject,
			Original: original,
			Weighted: weighted,
			Mark:     mark,
			Scaled:   math.Abs(mark-original) > scaledTolerance,
		})
	}

	if len(missing) > 0 {
		span.SetAttributes(attribute.Int("marks.missing", len(missing)))
		return nil, &domain.MissingMarksError{Missing: missing}
	}

	span.SetAttributes(attribute.Int("finals.count", len(finals)))
	return finals, nil
}

// roundToQuantum rounds half-up to the nearest multiple of the
// quantum: 77.25 at quantum 0.5 becomes 77.5.
func roundToQuantum(value, quantum float64) float64 {
	return math.Floor(value/quantum+0.5) * quantum
}
