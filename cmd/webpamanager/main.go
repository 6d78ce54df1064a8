// Command webpamanager computes WebPA-adjusted assignment marks from a
// roster, a set of raw peer-rating submissions, and an original-marks
// file, and writes the resulting calculation table as CSV.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"

	"github.com/simonrob/webpa-engine/infrastructure/adapters"
	"github.com/simonrob/webpa-engine/infrastructure/middleware"
	"github.com/simonrob/webpa-engine/internal/domain"
	"github.com/simonrob/webpa-engine/internal/engine"
)

// Source kinds accepted in the responses file.
const (
	kindSpreadsheet = "spreadsheet"
	kindClassicQuiz = "classic_quiz"
	kindNewQuiz     = "new_quiz"
)

// taggedResponse is one entry of the responses file: a source kind and
// the source-specific submission payload.
type taggedResponse struct {
	Kind       string          `json:"kind"`
	Submission json.RawMessage `json:"submission"`
}

func main() {
	var (
		rosterPath       = flag.String("roster", "", "Roster JSON file: {group_id: [members]}")
		responsesPath    = flag.String("responses", "", "Responses JSON file: [{kind, submission}]")
		marksPath        = flag.String("marks-file", "", "Original marks CSV file (key, mark[, comment])")
		marksMode        = flag.String("marks-mode", engine.MarksModeIndividual, "Marks file key mode: individual or group")
		minimumVariance  = flag.Float64("minimum-variance", 0.2, "Variance threshold below which no scaling is applied")
		markRounding     = flag.Float64("mark-rounding", 0.5, "Quantum final marks are rounded to")
		maximumMark      = flag.Float64("maximum-mark", 100, "Maximum mark after weighting")
		contextSummaries = flag.Bool("context-summaries", false, "Add per-student error and comment columns")
		configPath       = flag.String("config", "", "Optional YAML config overriding the scoring flags")
		outputPath       = flag.String("output", "", "Report CSV path (default stdout)")
		enableMetrics    = flag.Bool("metrics", false, "Register Prometheus metrics for the run")
	)
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	if *rosterPath == "" || *responsesPath == "" || *marksPath == "" {
		logger.Error("missing required flags: --roster, --responses and --marks-file are all required")
		flag.Usage()
		os.Exit(2)
	}

	cfg := engine.Config{
		MinimumVariance:  *minimumVariance,
		MarkRounding:     *markRounding,
		MaximumMark:      *maximumMark,
		MarksMode:        *marksMode,
		ContextSummaries: *contextSummaries,
	}
	if *configPath != "" {
		loaded, err := loadConfigFile(*configPath)
		if err != nil {
			logger.Error("failed to load configuration", "path", *configPath, "error", err)
			os.Exit(1)
		}
		cfg = loaded
	}

	report, err := run(context.Background(), logger, cfg, *rosterPath, *responsesPath, *marksPath, *enableMetrics)
	if err != nil {
		var missing *domain.MissingMarksError
		if errors.As(err, &missing) {
			for _, m := range missing.Missing {
				logger.Error("missing original mark", "subject", m.Subject, "group", m.Group,
					"key", m.Key, "closest_match", m.Suggestion)
			}
		}
		logger.Error("scoring run failed", "error", err)
		os.Exit(1)
	}

	logger.Info("scoring run complete",
		"run_id", report.RunID,
		"accepted", len(report.Respondents),
		"rejected", len(report.Rejected),
		"expected", report.Expected,
		"response_rate", fmt.Sprintf("%.1f%%", report.ResponseRate*100))
	for _, rej := range report.Rejected {
		logger.Warn("skipped invalid submission", "rater", rej.Rater, "group", rej.Group,
			"source", rej.Source, "reasons", rej.Reasons)
	}

	out := io.Writer(os.Stdout)
	if *outputPath != "" {
		f, err := os.Create(*outputPath)
		if err != nil {
			logger.Error("failed to create output file", "path", *outputPath, "error", err)
			os.Exit(1)
		}
		defer f.Close()
		out = f
	}
	if err := report.WriteCSV(out); err != nil {
		logger.Error("failed to write report", "error", err)
		os.Exit(1)
	}
}

func run(
	ctx context.Context,
	logger *slog.Logger,
	cfg engine.Config,
	rosterPath, responsesPath, marksPath string,
	enableMetrics bool,
) (engine.Report, error) {
	roster, err := loadRoster(rosterPath)
	if err != nil {
		return engine.Report{}, fmt.Errorf("failed to load roster: %w", err)
	}

	marksFile, err := os.Open(marksPath)
	if err != nil {
		return engine.Report{}, fmt.Errorf("failed to open marks file: %w", err)
	}
	defer marksFile.Close()
	marks, err := engine.LoadMarksCSV(marksFile)
	if err != nil {
		return engine.Report{}, fmt.Errorf("failed to load marks file: %w", err)
	}
	logger.Info("loaded original marks mapping", "entries", marks.Len(), "mode", cfg.MarksMode)

	submissions, err := loadResponses(responsesPath)
	if err != nil {
		return engine.Report{}, fmt.Errorf("failed to load responses: %w", err)
	}
	logger.Info("loaded raw submissions", "count", len(submissions), "expected", roster.Size())

	var opts []engine.Option
	if enableMetrics {
		opts = append(opts, engine.WithMetrics(middleware.NewPrometheusMetrics()))
	}
	eng, err := engine.NewEngine(cfg, opts...)
	if err != nil {
		return engine.Report{}, err
	}
	if err := registerAdapters(eng); err != nil {
		return engine.Report{}, err
	}

	return eng.Process(ctx, roster, submissions, marks)
}

func registerAdapters(eng *engine.Engine) error {
	spreadsheet, err := adapters.NewSpreadsheetAdapter(kindSpreadsheet, adapters.DefaultSpreadsheetConfig())
	if err != nil {
		return err
	}
	classic, err := adapters.NewClassicQuizAdapter(kindClassicQuiz, adapters.DefaultClassicQuizConfig())
	if err != nil {
		return err
	}
	newQuiz, err := adapters.NewNewQuizAdapter(kindNewQuiz, adapters.DefaultNewQuizConfig())
	if err != nil {
		return err
	}
	if err := eng.RegisterAdapter(spreadsheet); err != nil {
		return err
	}
	if err := eng.RegisterAdapter(classic); err != nil {
		return err
	}
	return eng.RegisterAdapter(newQuiz)
}

func loadConfigFile(path string) (engine.Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return engine.Config{}, err
	}
	defer f.Close()
	return engine.LoadConfig(f)
}

func loadRoster(path string) (domain.Roster, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.Roster{}, err
	}

	var raw map[string][]domain.Member
	if err := json.Unmarshal(data, &raw); err != nil {
		return domain.Roster{}, err
	}
	groups := make(map[int][]domain.Member, len(raw))
	for key, members := range raw {
		id, err := strconv.Atoi(key)
		if err != nil {
			return domain.Roster{}, fmt.Errorf("roster group key %q is not an integer", key)
		}
		groups[id] = members
	}
	return domain.NewRoster(groups)
}

func loadResponses(path string) ([]engine.TaggedSubmission, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var tagged []taggedResponse
	if err := json.Unmarshal(data, &tagged); err != nil {
		return nil, err
	}

	submissions := make([]engine.TaggedSubmission, 0, len(tagged))
	for i, entry := range tagged {
		var raw any
		switch entry.Kind {
		case kindSpreadsheet:
			var s adapters.SpreadsheetSubmission
			if err := json.Unmarshal(entry.Submission, &s); err != nil {
				return nil, fmt.Errorf("response %d: %w", i, err)
			}
			raw = s
		case kindClassicQuiz:
			var s adapters.ClassicQuizSubmission
			if err := json.Unmarshal(entry.Submission, &s); err != nil {
				return nil, fmt.Errorf("response %d: %w", i, err)
			}
			raw = s
		case kindNewQuiz:
			var s adapters.NewQuizSubmission
			if err := json.Unmarshal(entry.Submission, &s); err != nil {
				return nil, fmt.Errorf("response %d: %w", i, err)
			}
			raw = s
		default:
			return nil, fmt.Errorf("response %d: %w: %q", i, domain.ErrUnknownSubmissionKind, entry.Kind)
		}
		submissions = append(submissions, engine.TaggedSubmission{Kind: entry.Kind, Raw: raw})
	}
	return submissions, nil
}
