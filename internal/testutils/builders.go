// Package testutils provides shared builders for scoring-engine tests:
// rosters, spreadsheet forms, and quiz submissions with sensible
// defaults that individual tests override.
package testutils

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/simonrob/webpa-engine/infrastructure/adapters"
	"github.com/simonrob/webpa-engine/internal/domain"
)

// NewTestRoster builds a roster from group id to student numbers, with
// generated names and a "Group N" group name for each group.
func NewTestRoster(t *testing.T, groups map[int][]string) domain.Roster {
	t.Helper()

	byGroup := make(map[int][]domain.Member, len(groups))
	for id, numbers := range groups {
		for _, number := range numbers {
			byGroup[id] = append(byGroup[id], domain.Member{
				StudentNumber: number,
				StudentName:   "Student " + number,
				GroupName:     fmt.Sprintf("Group %d", id),
			})
		}
	}
	roster, err := domain.NewRoster(byGroup)
	require.NoError(t, err)
	return roster
}

// SpreadsheetForm builds a complete, well-formed response form for the
// given owner: one row per subject with the owner's row marked as the
// respondent. Scores map by subject; subjects without an entry get 3.
func SpreadsheetForm(owner string, group int, subjects []string, scores map[string]float64) adapters.SpreadsheetSubmission {
	rows := [][]string{
		{"", "", "", "", "", ""},
		append([]string(nil), adapters.DefaultSpreadsheetHeaders...),
	}
	for _, subject := range subjects {
		marker := ""
		if subject == owner {
			marker = "✔"
		}
		score := 3.0
		if s, ok := scores[subject]; ok {
			score = s
		}
		rows = append(rows, []string{
			marker,
			"Student " + subject,
			subject,
			fmt.Sprintf("%g", score),
			"",
			fmt.Sprintf("%d", group),
		})
	}
	return adapters.SpreadsheetSubmission{Owner: owner, Rows: rows}
}

// ClassicQuizForm builds a complete classic-quiz submission for the
// given rater: one digit-named question per subject plus a comment
// question. Scores map by subject; subjects without an entry get 3.
func ClassicQuizForm(rater string, group int, subjects []string, scores map[string]float64) adapters.ClassicQuizSubmission {
	sub := adapters.ClassicQuizSubmission{
		Rater:         rater,
		Group:         group,
		WorkflowState: "complete",
	}
	for i, subject := range subjects {
		score := 3.0
		if s, ok := scores[subject]; ok {
			score = s
		}
		sub.Questions = append(sub.Questions, adapters.ClassicQuizQuestion{ID: i + 1, Name: subject})
		sub.Answers = append(sub.Answers, adapters.ClassicQuizAnswer{
			QuestionID: i + 1,
			Text:       fmt.Sprintf("%g", score),
		})
	}
	commentID := len(subjects) + 1
	sub.Questions = append(sub.Questions, adapters.ClassicQuizQuestion{ID: commentID, Name: "Comments (optional)"})
	sub.Answers = append(sub.Answers, adapters.ClassicQuizAnswer{QuestionID: commentID, Text: "none"})
	return sub
}

// RatingChoices builds the standard five-option choice list for a
// new-quiz rating question, ids "c1" through "c5" with labels like
// "<b>3</b>: Contributed fairly".
func RatingChoices() []adapters.NewQuizChoice {
	labels := []string{
		"did not contribute", "contributed little", "contributed fairly",
		"contributed well", "contributed exceptionally",
	}
	choices := make([]adapters.NewQuizChoice, 5)
	for i := range choices {
		choices[i] = adapters.NewQuizChoice{
			ID:   fmt.Sprintf("c%d", i+1),
			Body: fmt.Sprintf("<b>%d</b>: %s", i+1, labels[i]),
		}
	}
	return choices
}

// NewQuizForm builds a complete new-quiz session for the given rater:
// one choice-based rating item per subject. Scores map by subject and
// must be whole numbers 1..5; subjects without an entry get 3.
func NewQuizForm(rater string, group int, subjects []string, scores map[string]float64) adapters.NewQuizSubmission {
	sub := adapters.NewQuizSubmission{
		Rater:         rater,
		Group:         group,
		WorkflowState: "complete",
	}
	for i, subject := range subjects {
		score := 3
		if s, ok := scores[subject]; ok {
			score = int(s)
		}
		itemID := fmt.Sprintf("item-%d", i+1)
		sub.Items = append(sub.Items, adapters.NewQuizItem{
			ID:               itemID,
			Title:            subject,
			UserResponseType: "Uuid",
			Choices:          RatingChoices(),
		})
		value := fmt.Sprintf(`{"c%d": {"user_responded": true}}`, score)
		sub.Results = append(sub.Results, adapters.NewQuizResult{
			ItemID: itemID,
			Value:  []byte(value),
		})
	}
	return sub
}
