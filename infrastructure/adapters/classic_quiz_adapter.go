package adapters

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/simonrob/webpa-engine/internal/domain"
	"github.com/simonrob/webpa-engine/internal/ports"
)

var _ ports.SubmissionAdapter = (*ClassicQuizAdapter)(nil)

// Workflow states in which a quiz submission actually contains answers.
// Anything else is an empty or partly-complete attempt.
var defaultCompleteStates = []string{"complete", "graded", "pending_review"}

// ClassicQuizQuestion describes one question of a per-group rating
// quiz. Rating questions are named after the group member they rate;
// the free-text comment question carries a non-numeric name.
type ClassicQuizQuestion struct {
	ID   int    `json:"id"`
	Name string `json:"question_name"`
}

// ClassicQuizAnswer is one answered question within a submission.
type ClassicQuizAnswer struct {
	QuestionID int    `json:"question_id"`
	Text       string `json:"text"`
}

// ClassicQuizSubmission is the raw shape of one respondent's classic
// quiz attempt. Rater identity comes from the authenticated submitter,
// not from a self-reported field, which removes the tampering vector
// the spreadsheet path has.
type ClassicQuizSubmission struct {
	// Rater is the authenticated submitter's student number.
	Rater string `json:"rater"`

	// RaterName is the submitter's display name, for messages only.
	RaterName string `json:"rater_name,omitempty"`

	// Group is the group whose quiz this submission answers.
	Group int `json:"group"`

	// WorkflowState is the LMS state of the attempt.
	WorkflowState string `json:"workflow_state"`

	SubmittedAt string `json:"submitted_at,omitempty"`
	DueAt       string `json:"due_at,omitempty"`

	Questions []ClassicQuizQuestion `json:"questions"`
	Answers   []ClassicQuizAnswer   `json:"answers"`
}

// ClassicQuizConfig defines the configuration parameters for the
// ClassicQuizAdapter.
type ClassicQuizConfig struct {
	// CompleteStates lists the workflow states accepted as answered
	// submissions.
	CompleteStates []string `yaml:"complete_states" json:"complete_states" validate:"required,min=1"`
}

// DefaultClassicQuizConfig returns a ClassicQuizConfig with the
// standard answered-attempt states.
func DefaultClassicQuizConfig() ClassicQuizConfig {
	return ClassicQuizConfig{CompleteStates: append([]string(nil), defaultCompleteStates...)}
}

// ClassicQuizAdapter ingests classic-quiz rating submissions: one
// numeric question per group member plus one free-text comment
// question. The adapter is stateless and safe for concurrent use.
type ClassicQuizAdapter struct {
	name   string
	config ClassicQuizConfig
	tracer trace.Tracer
}

// NewClassicQuizAdapter creates a ClassicQuizAdapter with the given
// configuration. It returns an error if the configuration is invalid.
func NewClassicQuizAdapter(name string, config ClassicQuizConfig) (*ClassicQuizAdapter, error) {
	if name == "" {
		return nil, ErrEmptyAdapterName
	}
	if err := validate.Struct(config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &ClassicQuizAdapter{
		name:   name,
		config: config,
		tracer: otel.Tracer("classic-quiz-adapter"),
	}, nil
}

// Name returns the source kind this adapter handles.
func (ca *ClassicQuizAdapter) Name() string { return ca.name }

// Parse normalises one classic-quiz submission into a validated
// outcome. The raw value must be a ClassicQuizSubmission or a pointer
// to one.
func (ca *ClassicQuizAdapter) Parse(
	ctx context.Context,
	raw any,
	roster domain.Roster,
) (domain.SubmissionOutcome, error) {
	sub, err := classicQuizShape(raw)
	if err != nil {
		return domain.SubmissionOutcome{}, err
	}

	_, span := ca.tracer.Start(ctx, "ClassicQuizAdapter.Parse",
		trace.WithAttributes(
			attribute.String("adapter.name", ca.name),
			attribute.String("submission.rater", sub.Rater),
			attribute.Int("submission.group", sub.Group),
		),
	)
	defer span.End()

	if !ca.isComplete(sub.WorkflowState) {
		return domain.Rejected(sub.Rater, sub.Group, ca.name,
			fmt.Sprintf("Submission is empty or incomplete (state '%s')", sub.WorkflowState)), nil
	}

	subjects := make(map[int]string, len(sub.Questions))
	for _, q := range sub.Questions {
		if isRatingQuestion(q.Name, roster) {
			subjects[q.ID] = q.Name
		}
	}

	var ratings []domain.RawRating
	var notes []string
	for _, answer := range sub.Answers {
		subject, isRating := subjects[answer.QuestionID]
		if !isRating {
			if text := strings.TrimSpace(answer.Text); !isNoneComment(text) {
				notes = append(notes, fmt.Sprintf("Comments from %s: %s",
					raterLabel(sub.Rater, sub.RaterName), strings.ReplaceAll(text, "\n", " ")))
			}
			continue
		}
		text := strings.TrimSpace(answer.Text)
		score, parseErr := strconv.ParseFloat(text, 64)
		ratings = append(ratings, domain.RawRating{
			Subject: subject,
			Raw:     text,
			Score:   score,
			Parsed:  parseErr == nil && text != "",
		})
	}

	outcome := domain.ValidateSubmission(domain.Submission{
		Source:      ca.name,
		Owner:       sub.Rater,
		Group:       sub.Group,
		HeaderFound: true,
		Ratings:     ratings,
		Notes:       notes,
		SubmittedAt: parseTimestamp(sub.SubmittedAt),
		DueAt:       parseTimestamp(sub.DueAt),
	}, roster)

	span.SetAttributes(
		attribute.Bool("outcome.accepted", outcome.Accepted),
		attribute.Int("outcome.records", len(outcome.Records)),
	)
	return outcome, nil
}

// Validate checks if the adapter is properly configured.
func (ca *ClassicQuizAdapter) Validate() error {
	if err := validate.Struct(ca.config); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	return nil
}

func (ca *ClassicQuizAdapter) isComplete(state string) bool {
	for _, s := range ca.config.CompleteStates {
		if state == s {
			return true
		}
	}
	return false
}

func classicQuizShape(raw any) (ClassicQuizSubmission, error) {
	switch v := raw.(type) {
	case ClassicQuizSubmission:
		return v, nil
	case *ClassicQuizSubmission:
		return *v, nil
	default:
		return ClassicQuizSubmission{}, fmt.Errorf("%w: want ClassicQuizSubmission, got %T",
			domain.ErrRawShape, raw)
	}
}

// isRatingQuestion reports whether a question title names a rated
// student. Titles matching a roster member are always ratings; purely
// numeric titles are treated as ratings too, so a question left over
// for a withdrawn member still surfaces as a non-member warning instead
// of being mistaken for a comment.
func isRatingQuestion(title string, roster domain.Roster) bool {
	if roster.Contains(title) {
		return true
	}
	if title == "" {
		return false
	}
	for _, r := range title {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func raterLabel(number, name string) string {
	if name == "" {
		return number
	}
	return name
}
