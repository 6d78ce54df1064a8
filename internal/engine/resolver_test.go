package engine

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simonrob/webpa-engine/internal/domain"
)

func mustMarks(t *testing.T, entries map[string]float64) Marks {
	t.Helper()
	marks, err := NewMarks(entries)
	require.NoError(t, err)
	return marks
}

func TestNewResolverValidatesConfig(t *testing.T) {
	_, err := NewResolver(Config{MarkRounding: 0, MaximumMark: 100, MarksMode: MarksModeIndividual})
	assert.ErrorIs(t, err, domain.ErrInvalidConfiguration)

	_, err = NewResolver(DefaultConfig())
	assert.NoError(t, err)
}

func TestResolveBelowVarianceKeepsOriginal(t *testing.T) {
	resolver, err := NewResolver(DefaultConfig())
	require.NoError(t, err)

	aggs := []domain.GroupAggregate{
		{Group: 1, Subject: "s1", Score: 1.0, Adjustment: 1, Raters: 2, Members: 2, Variance: 0},
		{Group: 1, Subject: "s2", Score: 1.0, Adjustment: 1, Raters: 2, Members: 2, Variance: 0},
	}
	roster := engineRoster(t, map[int][]string{1: {"s1", "s2"}})

	finals, err := resolver.Resolve(context.Background(), aggs, roster,
		mustMarks(t, map[string]float64{"s1": 72, "s2": 64}))
	require.NoError(t, err)
	require.Len(t, finals, 2)

	assert.InDelta(t, 72.0, finals[0].Mark, 1e-9)
	assert.False(t, finals[0].Scaled)
	assert.InDelta(t, 64.0, finals[1].Mark, 1e-9)
	assert.False(t, finals[1].Scaled)
}

func TestResolveScalesAboveThreshold(t *testing.T) {
	resolver, err := NewResolver(DefaultConfig())
	require.NoError(t, err)

	aggs := []domain.GroupAggregate{
		{Group: 1, Subject: "s1", Score: 1.25, Adjustment: 1, Raters: 2, Members: 2, Variance: 0.35},
		{Group: 1, Subject: "s2", Score: 0.75, Adjustment: 1, Raters: 2, Members: 2, Variance: 0.35},
	}
	roster := engineRoster(t, map[int][]string{1: {"s1", "s2"}})

	finals, err := resolver.Resolve(context.Background(), aggs, roster,
		mustMarks(t, map[string]float64{"s1": 60, "s2": 60}))
	require.NoError(t, err)

	assert.InDelta(t, 75.0, finals[0].Mark, 1e-9)
	assert.True(t, finals[0].Scaled)
	assert.InDelta(t, 45.0, finals[1].Mark, 1e-9)
	assert.True(t, finals[1].Scaled)
}

func TestResolveRoundingAndCap(t *testing.T) {
	cfg := DefaultConfig()
	resolver, err := NewResolver(cfg)
	require.NoError(t, err)
	roster := engineRoster(t, map[int][]string{1: {"s1", "s2"}})

	t.Run("rounds half up to the quantum", func(t *testing.T) {
		// 70 * 1.104286 = 77.3 -> nearest 0.5 is 77.5.
		aggs := []domain.GroupAggregate{
			{Group: 1, Subject: "s1", Score: 77.3 / 70, Adjustment: 1, Raters: 2, Members: 2, Variance: 0.4},
			{Group: 1, Subject: "s2", Score: 0.9, Adjustment: 1, Raters: 2, Members: 2, Variance: 0.4},
		}
		finals, err := resolver.Resolve(context.Background(), aggs, roster,
			mustMarks(t, map[string]float64{"s1": 70, "s2": 70}))
		require.NoError(t, err)
		assert.InDelta(t, 77.5, finals[0].Mark, 1e-9)
	})

	t.Run("caps before rounding", func(t *testing.T) {
		// Weighted 101 caps at 100, then rounds to 100 exactly.
		aggs := []domain.GroupAggregate{
			{Group: 1, Subject: "s1", Score: 101.0 / 80, Adjustment: 1, Raters: 2, Members: 2, Variance: 0.4},
			{Group: 1, Subject: "s2", Score: 0.9, Adjustment: 1, Raters: 2, Members: 2, Variance: 0.4},
		}
		finals, err := resolver.Resolve(context.Background(), aggs, roster,
			mustMarks(t, map[string]float64{"s1": 80, "s2": 80}))
		require.NoError(t, err)
		assert.InDelta(t, 100.0, finals[0].Mark, 1e-9)
		assert.True(t, finals[0].Scaled)
	})

	t.Run("marks are always quantum multiples within the cap", func(t *testing.T) {
		for score := 0.5; score <= 1.6; score += 0.07 {
			aggs := []domain.GroupAggregate{
				{Group: 1, Subject: "s1", Score: score, Adjustment: 1, Raters: 2, Members: 2, Variance: 0.4},
				{Group: 1, Subject: "s2", Score: 1.0, Adjustment: 1, Raters: 2, Members: 2, Variance: 0.4},
			}
			finals, err := resolver.Resolve(context.Background(), aggs, roster,
				mustMarks(t, map[string]float64{"s1": 66.7, "s2": 66.7}))
			require.NoError(t, err)

			mark := finals[0].Mark
			quotient := mark / cfg.MarkRounding
			assert.InDelta(t, math.Round(quotient), quotient, 1e-9, "score %v", score)
			assert.LessOrEqual(t, mark, cfg.MaximumMark)
		}
	})
}

func TestResolveNoScoreKeepsOriginal(t *testing.T) {
	resolver, err := NewResolver(DefaultConfig())
	require.NoError(t, err)
	roster := engineRoster(t, map[int][]string{1: {"s1", "s2"}})

	aggs := []domain.GroupAggregate{
		{Group: 1, Subject: "s1", Score: math.NaN(), Adjustment: math.NaN(), Raters: 0, Members: 2, Variance: 0},
		{Group: 1, Subject: "s2", Score: math.NaN(), Adjustment: math.NaN(), Raters: 0, Members: 2, Variance: 0},
	}
	finals, err := resolver.Resolve(context.Background(), aggs, roster,
		mustMarks(t, map[string]float64{"s1": 55, "s2": 55}))
	require.NoError(t, err)

	for _, final := range finals {
		assert.InDelta(t, 55.0, final.Mark, 1e-9)
		assert.False(t, final.Scaled)
		assert.False(t, math.IsNaN(final.Mark))
	}
}

func TestResolveGroupMarksMode(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MarksMode = MarksModeGroup
	resolver, err := NewResolver(cfg)
	require.NoError(t, err)

	roster, err := domain.NewRoster(map[int][]domain.Member{
		1: {
			{StudentNumber: "s1", GroupName: "Project Team 1"},
			{StudentNumber: "s2", GroupName: "Project Team 1"},
		},
	})
	require.NoError(t, err)

	aggs := []domain.GroupAggregate{
		{Group: 1, Subject: "s1", Score: 1.0, Adjustment: 1, Raters: 2, Members: 2, Variance: 0},
		{Group: 1, Subject: "s2", Score: 1.0, Adjustment: 1, Raters: 2, Members: 2, Variance: 0},
	}
	finals, err := resolver.Resolve(context.Background(), aggs, roster,
		mustMarks(t, map[string]float64{"project team 1": 68}))
	require.NoError(t, err)

	for _, final := range finals {
		assert.InDelta(t, 68.0, final.Original, 1e-9)
	}
}

func TestResolveMissingMarks(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MarksMode = MarksModeGroup
	resolver, err := NewResolver(cfg)
	require.NoError(t, err)

	roster, err := domain.NewRoster(map[int][]domain.Member{
		1: {
			{StudentNumber: "s1", GroupName: "Group One"},
			{StudentNumber: "s2", GroupName: "Group One"},
		},
	})
	require.NoError(t, err)

	aggs := []domain.GroupAggregate{
		{Group: 1, Subject: "s1", Score: 1.0, Adjustment: 1, Raters: 2, Members: 2, Variance: 0},
		{Group: 1, Subject: "s2", Score: 1.0, Adjustment: 1, Raters: 2, Members: 2, Variance: 0},
	}

	// The marks file says "Goup One": every subject must surface, with
	// the close key suggested, and no final marks produced.
	finals, err := resolver.Resolve(context.Background(), aggs, roster,
		mustMarks(t, map[string]float64{"Goup One": 68}))
	assert.Nil(t, finals)

	var missing *domain.MissingMarksError
	require.ErrorAs(t, err, &missing)
	require.Len(t, missing.Missing, 2)
	assert.Equal(t, "Group One", missing.Missing[0].Key)
	assert.Equal(t, "Goup One", missing.Missing[0].Suggestion)
}

func TestMissingMarkErrorMessage(t *testing.T) {
	err := &domain.MissingMarkError{Subject: "s1", Group: 1, Key: "Group One", Suggestion: "Goup One"}
	assert.Contains(t, err.Error(), `no original mark for subject s1`)
	assert.Contains(t, err.Error(), `closest match: "Goup One"`)

	batch := &domain.MissingMarksError{Missing: []*domain.MissingMarkError{err}}
	assert.Equal(t, err.Error(), batch.Error())
	assert.True(t, errors.As(batch, new(*domain.MissingMarksError)))
}
