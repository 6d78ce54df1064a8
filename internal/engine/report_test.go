package engine

import (
	"bytes"
	"encoding/csv"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simonrob/webpa-engine/internal/domain"
)

func sampleAggregatesAndFinals() ([]domain.GroupAggregate, []domain.FinalMark) {
	aggs := []domain.GroupAggregate{
		{Group: 1, Subject: "s1", Score: 1.1, Adjustment: 1, Raters: 2, Members: 2, Variance: 0.3, Responded: true},
		{Group: 1, Subject: "s2", Score: 0.9, Adjustment: 1, Raters: 2, Members: 2, Variance: 0.3, Responded: true},
		{Group: 2, Subject: "s3", Score: math.NaN(), Adjustment: math.NaN(), Raters: 0, Members: 1, Variance: 0},
	}
	finals := []domain.FinalMark{
		{Group: 1, Subject: "s1", Original: 60, Weighted: 66, Mark: 66, Scaled: true},
		{Group: 1, Subject: "s2", Original: 60, Weighted: 54, Mark: 54, Scaled: true},
		{Group: 2, Subject: "s3", Original: 70, Weighted: 70, Mark: 70, Scaled: false},
	}
	return aggs, finals
}

func TestAssembleReport(t *testing.T) {
	roster := engineRoster(t, map[int][]string{1: {"s1", "s2"}, 2: {"s3"}})
	aggs, finals := sampleAggregatesAndFinals()
	outcomes := []domain.SubmissionOutcome{
		{Rater: "s1", Group: 1, Source: "spreadsheet", Accepted: true},
		{Rater: "s2", Group: 1, Source: "spreadsheet", Accepted: true,
			Warnings: []string{"Rating 6 for s1 is outside of range 1-5 (rounded to 5)"}},
		{Rater: "s3", Group: 2, Source: "spreadsheet",
			Reasons: []string{"Own name indicator missing"}},
	}

	report := NewAssembler(DefaultConfig()).Assemble(aggs, finals, outcomes, roster)

	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, []string{"s1", "s2"}, report.Respondents)
	require.Len(t, report.Rejected, 1)
	assert.Equal(t, "s3", report.Rejected[0].Rater)
	assert.Equal(t, []string{"Own name indicator missing"}, report.Rejected[0].Reasons)
	assert.Equal(t, 3, report.Expected)
	assert.InDelta(t, 2.0/3, report.ResponseRate, 1e-9)

	require.Len(t, report.Rows, 3)
	assert.True(t, report.Rows[0].Scaled)
	assert.True(t, report.Rows[2].Unrated)
	// Context summaries are disabled by default.
	assert.Empty(t, report.Rows[0].Comment)
}

func TestAssembleContextSummaries(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ContextSummaries = true

	roster := engineRoster(t, map[int][]string{1: {"s1", "s2"}, 2: {"s3"}})
	aggs, finals := sampleAggregatesAndFinals()

	tests := []struct {
		name     string
		outcomes []domain.SubmissionOutcome
		subject  string
		comment  string
	}{
		{
			name: "valid form",
			outcomes: []domain.SubmissionOutcome{
				{Rater: "s1", Group: 1, Accepted: true},
			},
			subject: "s1",
			comment: "You submitted a valid contribution form.",
		},
		{
			name: "valid form with corrections",
			outcomes: []domain.SubmissionOutcome{
				{Rater: "s1", Group: 1, Accepted: true,
					Warnings: []string{"Rating 6 for s2 is outside of range 1-5 (rounded to 5)"}},
			},
			subject: "s1",
			comment: "You submitted a valid contribution form that required correction " +
				"for the following reason(s): Rating 6 for s2 is outside of range 1-5 (rounded to 5).",
		},
		{
			name: "invalid form",
			outcomes: []domain.SubmissionOutcome{
				{Rater: "s2", Group: 1, Reasons: []string{"Own name indicator missing"}},
			},
			subject: "s2",
			comment: "You submitted a contribution form, but it was invalid " +
				"for the following reason(s): Own name indicator missing.",
		},
		{
			name:     "no form at all",
			outcomes: nil,
			subject:  "s3",
			comment:  "You did not submit a contribution form.",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report := NewAssembler(cfg).Assemble(aggs, finals, tt.outcomes, roster)
			var row ReportRow
			for _, r := range report.Rows {
				if r.Subject == tt.subject {
					row = r
				}
			}
			assert.Equal(t, tt.comment, row.Comment)
		})
	}
}

func TestReportWriteCSV(t *testing.T) {
	roster := engineRoster(t, map[int][]string{1: {"s1", "s2"}, 2: {"s3"}})
	aggs, finals := sampleAggregatesAndFinals()
	report := NewAssembler(DefaultConfig()).Assemble(aggs, finals, []domain.SubmissionOutcome{
		{Rater: "s1", Group: 1, Accepted: true},
		{Rater: "s2", Group: 1, Accepted: true},
	}, roster)

	var buf bytes.Buffer
	require.NoError(t, report.WriteCSV(&buf))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 4)

	assert.Equal(t, []string{
		"Group", "Subject", "Responded", "Members", "Raters",
		"Adjustment", "Score", "Variance",
		"Original", "Weighted", "Mark", "Scaled",
	}, rows[0])

	assert.Equal(t, "1", rows[1][0])
	assert.Equal(t, "s1", rows[1][1])
	assert.Equal(t, "Y", rows[1][2])
	assert.Equal(t, "Y", rows[1][11])

	// The unrated subject's score cells are blank, never "NaN".
	assert.Equal(t, "", rows[3][2])
	assert.Equal(t, "", rows[3][5])
	assert.Equal(t, "", rows[3][6])
	assert.Equal(t, "70", rows[3][10])
}
