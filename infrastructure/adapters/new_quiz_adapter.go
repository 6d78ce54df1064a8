package adapters

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/simonrob/webpa-engine/internal/domain"
	"github.com/simonrob/webpa-engine/internal/ports"
)

var _ ports.SubmissionAdapter = (*NewQuizAdapter)(nil)

// New-quiz rating questions carry this user response type; the single
// free-text comment question does not.
const ratingResponseType = "Uuid"

// NewQuizChoice is one selectable option of a rating question. The
// body is HTML with the numeric score before a colon, for example
// "<b>3</b>: Contributed fairly".
type NewQuizChoice struct {
	ID   string `json:"id"`
	Body string `json:"item_body"`
}

// NewQuizItem is one question of a new-quiz session. Rating questions
// are titled with the rated member's student number and answered by
// choice UUID; everything else is treated as a comment question.
type NewQuizItem struct {
	ID               string          `json:"id"`
	Title            string          `json:"title"`
	UserResponseType string          `json:"user_response_type"`
	Choices          []NewQuizChoice `json:"choices,omitempty"`
}

// NewQuizResult is one scored answer. Value is a choice-selection map
// for rating questions and a bare HTML string for the comment
// question, so it stays raw until the item kind is known.
type NewQuizResult struct {
	ItemID string          `json:"item_id"`
	Value  json.RawMessage `json:"value"`
}

type choiceSelection struct {
	UserResponded bool `json:"user_responded"`
}

// NewQuizSubmission is the raw shape of one authenticated new-quiz
// session: the session items plus the authoritative result set.
type NewQuizSubmission struct {
	// Rater is the authenticated submitter's student number.
	Rater string `json:"rater"`

	// RaterName is the submitter's display name, for messages only.
	RaterName string `json:"rater_name,omitempty"`

	// Group is the group whose quiz this session answers.
	Group int `json:"group"`

	// WorkflowState is the LMS state of the underlying attempt.
	WorkflowState string `json:"workflow_state"`

	SubmittedAt string `json:"submitted_at,omitempty"`
	DueAt       string `json:"due_at,omitempty"`

	Items   []NewQuizItem   `json:"items"`
	Results []NewQuizResult `json:"results"`
}

// NewQuizConfig defines the configuration parameters for the
// NewQuizAdapter.
type NewQuizConfig struct {
	CompleteStates []string `yaml:"complete_states" json:"complete_states" validate:"required,min=1"`
}

// DefaultNewQuizConfig returns a NewQuizConfig with the standard
// answered-attempt states.
func DefaultNewQuizConfig() NewQuizConfig {
	return NewQuizConfig{CompleteStates: append([]string(nil), defaultCompleteStates...)}
}

// NewQuizAdapter ingests new-quiz (LTI) rating sessions. Scores are
// recovered by cross-referencing each answer's selected choice UUID
// against the question's choice list and parsing the numeric prefix of
// the choice label. The adapter is stateless and safe for concurrent
// use.
type NewQuizAdapter struct {
	name   string
	config NewQuizConfig
	tracer trace.Tracer
}

// NewNewQuizAdapter creates a NewQuizAdapter with the given
// configuration. It returns an error if the configuration is invalid.
func NewNewQuizAdapter(name string, config NewQuizConfig) (*NewQuizAdapter, error) {
	if name == "" {
		return nil, ErrEmptyAdapterName
	}
	if err := validate.Struct(config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &NewQuizAdapter{
		name:   name,
		config: config,
		tracer: otel.Tracer("new-quiz-adapter"),
	}, nil
}

// Name returns the source kind this adapter handles.
func (na *NewQuizAdapter) Name() string { return na.name }

// Parse normalises one new-quiz session into a validated outcome. The
// raw value must be a NewQuizSubmission or a pointer to one.
func (na *NewQuizAdapter) Parse(
	ctx context.Context,
	raw any,
	roster domain.Roster,
) (domain.SubmissionOutcome, error) {
	sub, err := newQuizShape(raw)
	if err != nil {
		return domain.SubmissionOutcome{}, err
	}

	_, span := na.tracer.Start(ctx, "NewQuizAdapter.Parse",
		trace.WithAttributes(
			attribute.String("adapter.name", na.name),
			attribute.String("submission.rater", sub.Rater),
			attribute.Int("submission.group", sub.Group),
		),
	)
	defer span.End()

	if !na.isComplete(sub.WorkflowState) {
		return domain.Rejected(sub.Rater, sub.Group, na.name,
			fmt.Sprintf("Submission is empty or incomplete (state '%s')", sub.WorkflowState)), nil
	}

	ratingItems := make(map[string]NewQuizItem, len(sub.Items))
	commentItems := make(map[string]bool)
	for _, item := range sub.Items {
		if item.UserResponseType == ratingResponseType {
			ratingItems[item.ID] = item
		} else {
			commentItems[item.ID] = true
		}
	}

	var ratings []domain.RawRating
	var notes []string
	for _, result := range sub.Results {
		if item, ok := ratingItems[result.ItemID]; ok {
			rating, decodeErr := decodeChoiceRating(item, result.Value)
			if decodeErr != nil {
				return domain.Rejected(sub.Rater, sub.Group, na.name,
					fmt.Sprintf("Unable to process rating for %s: %s", item.Title, decodeErr)), nil
			}
			ratings = append(ratings, rating)
			continue
		}
		if commentItems[result.ItemID] {
			var body string
			if json.Unmarshal(result.Value, &body) != nil {
				continue
			}
			if text := strings.TrimSpace(stripHTML(body)); !isNoneComment(text) {
				notes = append(notes, fmt.Sprintf("Comments from %s: %s",
					raterLabel(sub.Rater, sub.RaterName), strings.ReplaceAll(text, "\n", " ")))
			}
		}
	}

	outcome := domain.ValidateSubmission(domain.Submission{
		Source:      na.name,
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
func (na *NewQuizAdapter) Validate() error {
	if err := validate.Struct(na.config); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	return nil
}

func (na *NewQuizAdapter) isComplete(state string) bool {
	for _, s := range na.config.CompleteStates {
		if state == s {
			return true
		}
	}
	return false
}

// decodeChoiceRating resolves the selected choice of a rating answer.
// A missing or unmatched selection yields an unparsed rating, which the
// validator reports as a missing member rating. A selected choice whose
// label cannot be parsed is an error: it means the quiz was edited
// outside the setup tooling.
func decodeChoiceRating(item NewQuizItem, value json.RawMessage) (domain.RawRating, error) {
	var selections map[string]choiceSelection
	if err := json.Unmarshal(value, &selections); err != nil {
		return domain.RawRating{}, fmt.Errorf("unexpected answer value: %w", err)
	}

	for choiceID, selection := range selections {
		if !selection.UserResponded {
			continue
		}
		for _, choice := range item.Choices {
			if choice.ID != choiceID {
				continue
			}
			label, _, _ := strings.Cut(stripHTML(choice.Body), ":")
			score, err := strconv.Atoi(strings.TrimSpace(label))
			if err != nil {
				return domain.RawRating{}, fmt.Errorf("unparsable choice label '%s'", choice.Body)
			}
			return domain.RawRating{
				Subject: item.Title,
				Raw:     strconv.Itoa(score),
				Score:   float64(score),
				Parsed:  true,
			}, nil
		}
	}

	// No responded choice matched the question's choice list.
	return domain.RawRating{Subject: item.Title}, nil
}

func newQuizShape(raw any) (NewQuizSubmission, error) {
	switch v := raw.(type) {
	case NewQuizSubmission:
		return v, nil
	case *NewQuizSubmission:
		return *v, nil
	default:
		return NewQuizSubmission{}, fmt.Errorf("%w: want NewQuizSubmission, got %T",
			domain.ErrRawShape, raw)
	}
}
