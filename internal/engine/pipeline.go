package engine

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/simonrob/webpa-engine/internal/domain"
	"github.com/simonrob/webpa-engine/internal/ports"
)

// defaultParseConcurrency bounds concurrent submission parsing.
// Parsing is pure CPU work, so a small limit is enough.
const defaultParseConcurrency = 8

// TaggedSubmission pairs a raw submission with the source kind that
// selects its adapter.
type TaggedSubmission struct {
	// Kind names the registered adapter that parses Raw.
	Kind string

	// Raw is the source-specific submission value.
	Raw any
}

// Engine runs the full scoring pipeline: ingestion dispatch,
// validation, aggregation, mark resolution, and report assembly. The
// pipeline is deterministic: identical inputs reproduce identical
// records, aggregates, and final marks across runs.
type Engine struct {
	config           Config
	adapters         map[string]ports.SubmissionAdapter
	metrics          ports.MetricsCollector
	tracer           trace.Tracer
	parseConcurrency int

	aggregator *Aggregator
	resolver   *Resolver
	assembler  *Assembler
}

// Option configures an Engine.
type Option func(*Engine)

// WithMetrics sets the metrics sink. The default discards everything.
func WithMetrics(m ports.MetricsCollector) Option {
	return func(e *Engine) {
		if m != nil {
			e.metrics = m
		}
	}
}

// WithParseConcurrency bounds the number of submissions parsed at
// once. Values below 1 keep the default.
func WithParseConcurrency(n int) Option {
	return func(e *Engine) {
		if n >= 1 {
			e.parseConcurrency = n
		}
	}
}

// NewEngine creates an Engine with the given configuration. Adapters
// are registered separately with RegisterAdapter. It returns an error
// if the configuration is invalid.
func NewEngine(config Config, opts ...Option) (*Engine, error) {
	resolver, err := NewResolver(config)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		config:           config,
		adapters:         make(map[string]ports.SubmissionAdapter),
		metrics:          ports.NoopMetrics{},
		tracer:           otel.Tracer("webpa-engine"),
		parseConcurrency: defaultParseConcurrency,
		aggregator:       NewAggregator(),
		resolver:         resolver,
		assembler:        NewAssembler(config),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// RegisterAdapter adds a submission adapter keyed by its name.
// Registering two adapters with the same name is an error.
func (e *Engine) RegisterAdapter(adapter ports.SubmissionAdapter) error {
	name := adapter.Name()
	if name == "" {
		return fmt.Errorf("%w: adapter has no name", domain.ErrInvalidConfiguration)
	}
	if _, exists := e.adapters[name]; exists {
		return fmt.Errorf("%w: adapter %q already registered", domain.ErrInvalidConfiguration, name)
	}
	e.adapters[name] = adapter
	return nil
}

// Process runs one complete scoring pass.
//
// Submissions are parsed concurrently; the outcome order matches the
// input order and aggregation is order-independent, so concurrency
// never changes the result. Per-submission validation failures become
// rejected outcomes in the report and never abort the batch.
// Batch-fatal conditions do: a submission kind with no registered
// adapter, a malformed raw value, no accepted submissions at all
// (domain.ErrNoValidResponses), or marks-mapping misses
// (*domain.MissingMarksError).
func (e *Engine) Process(
	ctx context.Context,
	roster domain.Roster,
	submissions []TaggedSubmission,
	marks Marks,
) (Report, error) {
	ctx, span := e.tracer.Start(ctx, "Engine.Process",
		trace.WithAttributes(
			attribute.Int("submissions.count", len(submissions)),
			attribute.Int("roster.size", roster.Size()),
		),
	)
	defer span.End()

	start := time.Now()
	outcomes, err := e.parseAll(ctx, roster, submissions)
	if err != nil {
		return Report{}, err
	}
	e.metrics.RecordLatency("parse", time.Since(start), nil)

	var records []domain.RatingRecord
	respondents := make(map[string]bool)
	accepted := 0
	for _, out := range outcomes {
		if !out.Accepted {
			e.metrics.RecordCounter("submissions_rejected", 1, map[string]string{"source": out.Source})
			continue
		}
		accepted++
		respondents[out.Rater] = true
		records = append(records, out.Records...)
		e.metrics.RecordCounter("submissions_accepted", 1, map[string]string{"source": out.Source})
	}
	if accepted == 0 {
		return Report{}, fmt.Errorf("%w: %d submissions, all rejected", domain.ErrNoValidResponses, len(submissions))
	}

	start = time.Now()
	aggregates := e.aggregator.Aggregate(ctx, records, roster, respondents)
	e.metrics.RecordLatency("aggregate", time.Since(start), nil)

	start = time.Now()
	finals, err := e.resolver.Resolve(ctx, aggregates, roster, marks)
	if err != nil {
		return Report{}, err
	}
	e.metrics.RecordLatency("resolve", time.Since(start), nil)

	report := e.assembler.Assemble(aggregates, finals, outcomes, roster)
	e.metrics.RecordGauge("response_rate", report.ResponseRate, nil)
	e.metrics.RecordGauge("roster_groups", float64(len(roster.Groups())), nil)

	span.SetAttributes(
		attribute.Int("submissions.accepted", accepted),
		attribute.Int("report.rows", len(report.Rows)),
		attribute.Float64("report.response_rate", report.ResponseRate),
	)
	return report, nil
}

// parseAll dispatches each submission to its adapter, bounded by the
// parse concurrency limit. The returned outcomes are positioned by
// input index so results are reproducible regardless of scheduling.
func (e *Engine) parseAll(
	ctx context.Context,
	roster domain.Roster,
	submissions []TaggedSubmission,
) ([]domain.SubmissionOutcome, error) {
	outcomes := make([]domain.SubmissionOutcome, len(submissions))

	// Resolve every adapter up front so an unknown kind fails before
	// any goroutine starts writing into outcomes.
	resolved := make([]ports.SubmissionAdapter, len(submissions))
	for i, sub := range submissions {
		adapter, ok := e.adapters[sub.Kind]
		if !ok {
			return nil, fmt.Errorf("%w: %q", domain.ErrUnknownSubmissionKind, sub.Kind)
		}
		resolved[i] = adapter
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(e.parseConcurrency)
	for i, sub := range submissions {
		adapter := resolved[i]
		g.Go(func() error {
			outcome, err := adapter.Parse(ctx, sub.Raw, roster)
			if err != nil {
				return fmt.Errorf("adapter %q: %w", sub.Kind, err)
			}
			outcomes[i] = outcome
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return outcomes, nil
}
