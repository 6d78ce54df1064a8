package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBoundScore(t *testing.T) {
	tests := []struct {
		name  string
		score float64
		want  int
	}{
		{name: "in range is a no-op", score: 3, want: 3},
		{name: "lower bound is a no-op", score: 1, want: 1},
		{name: "upper bound is a no-op", score: 5, want: 5},
		{name: "above range clamps to 5", score: 6, want: 5},
		{name: "below range clamps to 1", score: 0, want: 1},
		{name: "negative clamps to 1", score: -12, want: 1},
		{name: "fraction rounds to nearest", score: 3.4, want: 3},
		{name: "half rounds up", score: 3.5, want: 4},
		{name: "fraction above range clamps then rounds", score: 5.7, want: 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, BoundScore(tt.score))
		})
	}
}

func TestBoundScoreMonotonic(t *testing.T) {
	prev := BoundScore(-3)
	for s := -2.5; s <= 8; s += 0.5 {
		cur := BoundScore(s)
		assert.GreaterOrEqual(t, cur, prev, "BoundScore(%v) decreased", s)
		prev = cur
	}
}

func TestBoundScoreIdempotent(t *testing.T) {
	for s := -2.0; s <= 8; s += 0.25 {
		once := BoundScore(s)
		assert.Equal(t, once, BoundScore(float64(once)))
	}
}
