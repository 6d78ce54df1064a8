package engine

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/simonrob/webpa-engine/internal/domain"
)

// ReportRow is one (group, subject) line of the outward-facing result
// table: the aggregation details, the resolved mark, and the optional
// per-student error summary and feedback comment.
type ReportRow struct {
	Group     int    `json:"group"`
	Subject   string `json:"subject"`
	Responded bool   `json:"responded"`

	Members    int     `json:"members"`
	Raters     int     `json:"raters"`
	Adjustment float64 `json:"adjustment"`
	Score      float64 `json:"score"`
	Variance   float64 `json:"variance"`

	Original float64 `json:"original"`
	Weighted float64 `json:"weighted"`
	Mark     float64 `json:"mark"`
	Scaled   bool    `json:"scaled"`

	// Unrated flags a subject whose group had no accepted submissions
	// at all, distinct from "reviewed and found fair".
	Unrated bool `json:"unrated"`

	// Errors and Comment are the context-summary columns: the subject's
	// own validation messages and a student-facing synthesis of them.
	// Populated only when context summaries are enabled.
	Errors  string `json:"errors,omitempty"`
	Comment string `json:"comment,omitempty"`
}

// RejectedSubmission identifies one excluded submission and why.
type RejectedSubmission struct {
	Rater   string   `json:"rater"`
	Group   int      `json:"group"`
	Source  string   `json:"source"`
	Reasons []string `json:"reasons"`
}

// Report is the full outcome of one scoring run: the result table plus
// the audit trail of who responded, who was excluded, and why. Every
// correction and exclusion made during the run is traceable here.
type Report struct {
	// RunID uniquely identifies this run for auditability of grade
	// changes.
	RunID       string    `json:"run_id"`
	GeneratedAt time.Time `json:"generated_at"`

	Rows []ReportRow `json:"rows"`

	// Respondents lists the raters whose submissions were accepted.
	Respondents []string `json:"respondents"`

	// Rejected lists the excluded submissions with their reasons.
	Rejected []RejectedSubmission `json:"rejected"`

	// Expected is the number of submissions the roster called for;
	// ResponseRate is accepted / expected.
	Expected     int     `json:"expected"`
	ResponseRate float64 `json:"response_rate"`
}

// Assembler builds the result table from the pipeline's intermediate
// products.
type Assembler struct {
	config Config
}

// NewAssembler creates an Assembler with the given configuration.
func NewAssembler(config Config) *Assembler {
	return &Assembler{config: config}
}

// Assemble joins the aggregates with their resolved marks and the
// per-rater validation messages into a Report. The aggregates and
// finals must be the parallel slices produced by one Aggregate and
// Resolve pass over the same roster.
func (as *Assembler) Assemble(
	aggregates []domain.GroupAggregate,
	finals []domain.FinalMark,
	outcomes []domain.SubmissionOutcome,
	roster domain.Roster,
) Report {
	messages := make(map[string][]string)
	responded := make(map[string]bool)
	var respondents []string
	var rejected []RejectedSubmission
	for _, out := range outcomes {
		if msgs := out.Messages(); len(msgs) > 0 {
			messages[out.Rater] = append(messages[out.Rater], msgs...)
		}
		if out.Accepted {
			responded[out.Rater] = true
			respondents = append(respondents, out.Rater)
			continue
		}
		rejected = append(rejected, RejectedSubmission{
			Rater:   out.Rater,
			Group:   out.Group,
			Source:  out.Source,
			Reasons: out.Reasons,
		})
	}

	rows := make([]ReportRow, 0, len(finals))
	for i, final := range finals {
		agg := aggregates[i]
		row := ReportRow{
			Group:      final.Group,
			Subject:    final.Subject,
			Responded:  agg.Responded,
			Members:    agg.Members,
			Raters:     agg.Raters,
			Adjustment: agg.Adjustment,
			Score:      agg.Score,
			Variance:   agg.Variance,
			Original:   final.Original,
			Weighted:   final.Weighted,
			Mark:       final.Mark,
			Scaled:     final.Scaled,
			Unrated:    agg.Raters == 0,
		}
		if as.config.ContextSummaries {
			row.Errors = strings.Join(messages[final.Subject], "; ")
			row.Comment = feedbackComment(responded[final.Subject], row.Errors)
		}
		rows = append(rows, row)
	}

	expected := roster.Size()
	rate := 0.0
	if expected > 0 {
		rate = float64(len(respondents)) / float64(expected)
	}

	return Report{
		RunID:        uuid.NewString(),
		GeneratedAt:  time.Now().UTC(),
		Rows:         rows,
		Respondents:  respondents,
		Rejected:     rejected,
		Expected:     expected,
		ResponseRate: rate,
	}
}

// feedbackComment synthesises the student-facing summary of a
// subject's own submission.
func feedbackComment(responded bool, errorSummary string) string {
	switch {
	case responded && errorSummary != "":
		return fmt.Sprintf("You submitted a valid contribution form that required "+
			"correction for the following reason(s): %s.", errorSummary)
	case responded:
		return "You submitted a valid contribution form."
	case errorSummary != "":
		return fmt.Sprintf("You submitted a contribution form, but it was invalid "+
			"for the following reason(s): %s.", errorSummary)
	default:
		return "You did not submit a contribution form."
	}
}

// WriteCSV serialises the result table. Undefined numeric values (a
// subject with no ratings) render as empty cells, and the boolean
// flags render as "Y" or blank to match the instructor-facing
// spreadsheet conventions.
func (r Report) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)

	header := []string{
		"Group", "Subject", "Responded", "Members", "Raters",
		"Adjustment", "Score", "Variance",
		"Original", "Weighted", "Mark", "Scaled",
	}
	contextColumns := false
	for _, row := range r.Rows {
		if row.Errors != "" || row.Comment != "" {
			contextColumns = true
			break
		}
	}
	if contextColumns {
		header = append(header, "Errors", "Comment")
	}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("failed to write report header: %w", err)
	}

	for _, row := range r.Rows {
		record := []string{
			strconv.Itoa(row.Group),
			row.Subject,
			yesOrBlank(row.Responded),
			strconv.Itoa(row.Members),
			strconv.Itoa(row.Raters),
			formatCell(row.Adjustment),
			formatCell(row.Score),
			formatCell(row.Variance),
			formatCell(row.Original),
			formatCell(row.Weighted),
			formatCell(row.Mark),
			yesOrBlank(row.Scaled),
		}
		if contextColumns {
			record = append(record, row.Errors, row.Comment)
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write report row: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}

func yesOrBlank(b bool) string {
	if b {
		return "Y"
	}
	return ""
}

func formatCell(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}
