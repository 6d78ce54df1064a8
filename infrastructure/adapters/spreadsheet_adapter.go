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

var _ ports.SubmissionAdapter = (*SpreadsheetAdapter)(nil)

// DefaultSpreadsheetHeaders is the header tuple the distributed WebPA
// response forms carry: any row matching it exactly marks the start of
// the rating table.
var DefaultSpreadsheetHeaders = []string{
	"Respondent", "Person", "Student №", "Rating", "Comments (optional)", "Group №",
}

// SpreadsheetSubmission is the raw shape of one completed response
// form: the owner declared by the file name plus the sheet's cell
// values, six columns per row. Rows before the header and trailing
// blank runs are tolerated.
type SpreadsheetSubmission struct {
	// Owner is the student number the form was issued to, typically
	// encoded in the file name.
	Owner string `json:"owner"`

	// Rows holds the raw cell values. Short rows are padded with empty
	// cells; extra columns are ignored.
	Rows [][]string `json:"rows"`

	// SubmittedAt and DueAt enable the lateness check when the host
	// tracked them for the collection assignment. Optional.
	SubmittedAt string `json:"submitted_at,omitempty"`
	DueAt       string `json:"due_at,omitempty"`
}

// SpreadsheetConfig defines the configuration parameters for the
// SpreadsheetAdapter.
type SpreadsheetConfig struct {
	// Headers is the exact header tuple that identifies the rating
	// table within a form.
	Headers []string `yaml:"headers" json:"headers" validate:"required,len=6"`
}

// DefaultSpreadsheetConfig returns a SpreadsheetConfig matching the
// forms the setup tooling generates.
func DefaultSpreadsheetConfig() SpreadsheetConfig {
	return SpreadsheetConfig{Headers: append([]string(nil), DefaultSpreadsheetHeaders...)}
}

// SpreadsheetAdapter ingests completed WebPA response forms. This is
// the only source whose rater identity is self-reported: the
// respondent-marker column identifies which row is "me", and the
// validator requires it to be present, unique, and to match the form's
// declared owner. The adapter is stateless and safe for concurrent use.
type SpreadsheetAdapter struct {
	name   string
	config SpreadsheetConfig
	tracer trace.Tracer
}

// NewSpreadsheetAdapter creates a SpreadsheetAdapter with the given
// configuration. It returns an error if the configuration is invalid.
func NewSpreadsheetAdapter(name string, config SpreadsheetConfig) (*SpreadsheetAdapter, error) {
	if name == "" {
		return nil, ErrEmptyAdapterName
	}
	if err := validate.Struct(config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &SpreadsheetAdapter{
		name:   name,
		config: config,
		tracer: otel.Tracer("spreadsheet-adapter"),
	}, nil
}

// Name returns the source kind this adapter handles.
func (sa *SpreadsheetAdapter) Name() string { return sa.name }

// Parse normalises one spreadsheet form into a validated outcome.
// The raw value must be a SpreadsheetSubmission or a pointer to one.
func (sa *SpreadsheetAdapter) Parse(
	ctx context.Context,
	raw any,
	roster domain.Roster,
) (domain.SubmissionOutcome, error) {
	sub, err := spreadsheetShape(raw)
	if err != nil {
		return domain.SubmissionOutcome{}, err
	}

	_, span := sa.tracer.Start(ctx, "SpreadsheetAdapter.Parse",
		trace.WithAttributes(
			attribute.String("adapter.name", sa.name),
			attribute.String("submission.owner", sub.Owner),
			attribute.Int("submission.rows", len(sub.Rows)),
		),
	)
	defer span.End()

	headerFound := false
	groupLabel := ""
	var ratings []domain.RawRating

	for _, row := range sub.Rows {
		cells := padRow(row, len(sa.config.Headers))
		if !headerFound {
			if sa.isHeaderRow(cells) {
				headerFound = true
			}
			continue
		}
		if allBlank(cells) {
			// Sheets often carry empty rows at the end of the table.
			continue
		}
		number := canonicalStudentNumber(cells[2])
		if number == "" {
			continue
		}
		claim := strings.TrimSpace(cells[5])
		if groupLabel == "" {
			groupLabel = claim
		}
		rawRating := strings.TrimSpace(cells[3])
		score, parseErr := strconv.ParseFloat(rawRating, 64)
		ratings = append(ratings, domain.RawRating{
			Subject:    number,
			Raw:        rawRating,
			Score:      score,
			Parsed:     parseErr == nil && rawRating != "",
			Marker:     strings.TrimSpace(cells[0]) != "",
			GroupClaim: claim,
		})
	}

	if !headerFound {
		return domain.ValidateSubmission(domain.Submission{
			Source:       sa.name,
			Owner:        sub.Owner,
			SelfReported: true,
			HeaderFound:  false,
		}, roster), nil
	}

	group, groupErr := strconv.Atoi(groupLabel)
	if groupErr != nil {
		reason := fmt.Sprintf("Invalid group number (%s)", groupLabel)
		if groupLabel == "" {
			reason = "Group number missing"
		}
		return domain.Rejected(sub.Owner, 0, sa.name, reason), nil
	}

	outcome := domain.ValidateSubmission(domain.Submission{
		Source:       sa.name,
		Owner:        sub.Owner,
		Group:        group,
		SelfReported: true,
		HeaderFound:  true,
		Ratings:      ratings,
		SubmittedAt:  parseTimestamp(sub.SubmittedAt),
		DueAt:        parseTimestamp(sub.DueAt),
	}, roster)

	span.SetAttributes(
		attribute.Bool("outcome.accepted", outcome.Accepted),
		attribute.Int("outcome.records", len(outcome.Records)),
	)
	return outcome, nil
}

// Validate checks if the adapter is properly configured.
func (sa *SpreadsheetAdapter) Validate() error {
	if err := validate.Struct(sa.config); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	return nil
}

func (sa *SpreadsheetAdapter) isHeaderRow(cells []string) bool {
	for i, want := range sa.config.Headers {
		if strings.TrimSpace(cells[i]) != want {
			return false
		}
	}
	return true
}

func spreadsheetShape(raw any) (SpreadsheetSubmission, error) {
	switch v := raw.(type) {
	case SpreadsheetSubmission:
		return v, nil
	case *SpreadsheetSubmission:
		return *v, nil
	default:
		return SpreadsheetSubmission{}, fmt.Errorf("%w: want SpreadsheetSubmission, got %T",
			domain.ErrRawShape, raw)
	}
}

// canonicalStudentNumber undoes the numeric coercion spreadsheet tools
// apply to student-number cells ("123456.0" becomes "123456").
func canonicalStudentNumber(cell string) string {
	number, _, _ := strings.Cut(strings.TrimSpace(cell), ".")
	return number
}

func padRow(row []string, width int) []string {
	if len(row) >= width {
		return row[:width]
	}
	padded := make([]string, width)
	copy(padded, row)
	return padded
}

func allBlank(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
