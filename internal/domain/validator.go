package domain

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Validation messages shared by every ingestion source. The wording is
// user-facing: instructors see these verbatim in the report's error
// column and in student-facing summaries.
const (
	msgMultipleRespondents = "Incorrect or multiple respondents selected"
	msgMarkerMissing       = "Own name indicator missing"
	msgWrongForm           = "Incorrect (or edited example) rating form has been used"
)

// Rejected builds a rejection outcome directly, for failures detected
// before a full Submission can be assembled (unparsable sources,
// incomplete quiz sessions).
func Rejected(rater string, group int, source string, reasons ...string) SubmissionOutcome {
	return SubmissionOutcome{
		Rater:   rater,
		Group:   group,
		Source:  source,
		Reasons: reasons,
	}
}

// ValidateSubmission applies the shared acceptance rules to one
// candidate submission and classifies it as accepted (with rating
// records and any correction warnings) or rejected (with reasons).
//
// The rules, in order: the respondent must be on the roster and in the
// claimed group; late submissions are rejected before their content is
// examined; the form must carry the expected header; a self-reported
// respondent marker must be present, unique, and match the declared
// owner; every expected group member must have a numeric rating;
// ratings of non-members are dropped with a warning rather than
// rejecting, since membership can change after forms are distributed;
// out-of-range scores are clamped with a warning. Clamping is the only
// self-correcting behaviour, and it never rejects.
func ValidateSubmission(sub Submission, roster Roster) SubmissionOutcome {
	out := SubmissionOutcome{Rater: sub.Owner, Group: sub.Group, Source: sub.Source}

	if !roster.Contains(sub.Owner) {
		out.Reasons = append(out.Reasons,
			fmt.Sprintf("Respondent %s is not a member of any group", sub.Owner))
		return out
	}
	if !sub.DueAt.IsZero() && !sub.SubmittedAt.IsZero() && sub.SubmittedAt.After(sub.DueAt) {
		out.Reasons = append(out.Reasons,
			fmt.Sprintf("Late submission: submitted at %s but due at %s",
				sub.SubmittedAt.UTC().Format(time.RFC3339), sub.DueAt.UTC().Format(time.RFC3339)))
		return out
	}
	if !sub.HeaderFound {
		out.Reasons = append(out.Reasons, msgWrongForm)
		return out
	}
	if !roster.IsMember(sub.Group, sub.Owner) {
		out.Reasons = append(out.Reasons,
			fmt.Sprintf("Respondent %s is not a member of group %d", sub.Owner, sub.Group))
		return out
	}

	var reasons []string
	warnings := append([]string(nil), sub.Notes...)

	if sub.SelfReported {
		raterFound := false
		badMarker := false
		for _, r := range sub.Ratings {
			if !r.Marker {
				continue
			}
			if !raterFound && r.Subject == sub.Owner {
				raterFound = true
			} else {
				badMarker = true
			}
		}
		if badMarker {
			reasons = append(reasons, msgMultipleRespondents)
		}
		if !raterFound {
			reasons = append(reasons, msgMarkerMissing)
		}
	}

	expected := roster.MemberNumbers(sub.Group)
	expectedSet := make(map[string]bool, len(expected))
	for _, n := range expected {
		expectedSet[n] = true
	}

	var records []RatingRecord
	foundSet := make(map[string]bool)
	rated := make(map[string]bool)
	for _, r := range sub.Ratings {
		if r.Subject == "" {
			continue
		}
		foundSet[r.Subject] = true

		if r.GroupClaim != "" && r.GroupClaim != strconv.Itoa(sub.Group) {
			reasons = append(reasons, fmt.Sprintf("Invalid group number (%s)", r.GroupClaim))
		}
		if !expectedSet[r.Subject] {
			// Not necessarily invalid: handled by the membership check below.
			continue
		}
		if rated[r.Subject] {
			warnings = append(warnings,
				fmt.Sprintf("Duplicate rating for %s, ignoring", r.Subject))
			continue
		}
		rated[r.Subject] = true

		if !r.Parsed {
			who := fmt.Sprintf("Member %s", r.Subject)
			if r.Subject == sub.Owner {
				who = "Own"
			}
			what := "missing"
			if strings.TrimSpace(r.Raw) != "" {
				what = fmt.Sprintf("invalid ('%s')", r.Raw)
			}
			reasons = append(reasons, fmt.Sprintf("%s rating %s", who, what))
			continue
		}

		bounded := BoundScore(r.Score)
		if float64(bounded) != r.Score {
			warnings = append(warnings,
				fmt.Sprintf("Rating %s for %s is outside of range 1-5 (rounded to %d)",
					formatRawScore(r), r.Subject, bounded))
		}
		records = append(records, RatingRecord{
			Rater:   sub.Owner,
			Subject: r.Subject,
			Score:   bounded,
			Group:   sub.Group,
		})
	}

	var missing, extras []string
	for _, n := range expected {
		if !foundSet[n] {
			missing = append(missing, n)
		}
	}
	for n := range foundSet {
		if !expectedSet[n] {
			extras = append(extras, n)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		reasons = append(reasons,
			fmt.Sprintf("Group member(s) missing: %s", strings.Join(missing, ", ")))
	}
	if len(extras) > 0 {
		sort.Strings(extras)
		warnings = append(warnings,
			fmt.Sprintf("Non-group member(s) found: %s, ignoring", strings.Join(extras, ", ")))
	}

	out.Warnings = warnings
	if len(reasons) > 0 {
		out.Reasons = reasons
		return out
	}
	out.Accepted = true
	out.Records = records
	return out
}

// formatRawScore renders the offending value of an out-of-range rating,
// preferring the source's original text.
func formatRawScore(r RawRating) string {
	if s := strings.TrimSpace(r.Raw); s != "" {
		return s
	}
	return strconv.FormatFloat(r.Score, 'g', -1, 64)
}
