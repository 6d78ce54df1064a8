// Package engine implements the WebPA contribution scoring pipeline:
// ingestion dispatch, aggregation of validated rating records into
// per-student contribution scores, mark resolution against a
// variance threshold, and report assembly.
package engine

import (
	"fmt"
	"io"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/simonrob/webpa-engine/internal/domain"
)

// Marks-file key modes. Individual marks are keyed by student number;
// group marks are keyed by group name and shared by every member.
const (
	MarksModeIndividual = "individual"
	MarksModeGroup      = "group"
)

// Package-level validator instance for configuration validation.
var validate = validator.New()

// Config carries the scoring knobs threaded through aggregation and
// mark resolution. Configuration is explicit: components receive it at
// construction rather than reading ambient state.
type Config struct {
	// MinimumVariance is the dispersion threshold below which a group's
	// contribution scores are assumed equal and no scaling is applied.
	MinimumVariance float64 `yaml:"minimum_variance" json:"minimum_variance" validate:"min=0"`

	// MarkRounding is the quantum final marks are rounded to, e.g. 0.5.
	MarkRounding float64 `yaml:"mark_rounding" json:"mark_rounding" validate:"required,gt=0"`

	// MaximumMark caps the weighted mark before rounding.
	MaximumMark float64 `yaml:"maximum_mark" json:"maximum_mark" validate:"required,gt=0"`

	// MarksMode states how the original-marks file is keyed, replacing
	// the fragile are-all-keys-numeric guess with an explicit choice.
	MarksMode string `yaml:"marks_mode" json:"marks_mode" validate:"required,oneof=individual group"`

	// ContextSummaries enables the per-student error and comment report
	// columns intended for student-facing feedback.
	ContextSummaries bool `yaml:"context_summaries" json:"context_summaries"`
}

// DefaultConfig returns the standard scoring configuration: scale only
// when a group's score dispersion reaches 0.2, round to the nearest
// half mark, and cap at 100.
func DefaultConfig() Config {
	return Config{
		MinimumVariance: 0.2,
		MarkRounding:    0.5,
		MaximumMark:     100,
		MarksMode:       MarksModeIndividual,
	}
}

// Validate checks the configuration against its constraints.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %s", domain.ErrInvalidConfiguration, err)
	}
	return nil
}

// LoadConfig reads a YAML configuration, overlaying the defaults.
// Unknown fields are rejected so typos fail loudly instead of silently
// keeping a default.
func LoadConfig(r io.Reader) (Config, error) {
	cfg := DefaultConfig()

	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && err != io.EOF {
		return Config{}, fmt.Errorf("failed to decode configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
