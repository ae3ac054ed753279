// Package pipeline orchestrates the generate → validate → repair loop.
//
// This package implements the bounded-retry state machine that turns a
// natural-language circuit description into validated ORD source: it
// retrieves reference examples, prompts the generator model, runs the
// staged validator in its worker process, and reacts to failures: full
// regeneration with escalating temperature for structural errors,
// mechanical layout repair for spacing violations.
//
// # Budgets
//
// Two independent budgets bound the loop. The circuit budget caps full
// regeneration attempts; the spacing budget caps repair cycles after a
// render succeeded but elements sat too close. Spacing repairs never
// consume circuit attempts, but a repaired candidate that regresses to an
// earlier stage re-enters the circuit loop while that budget lasts.
//
// # Usage
//
// Create a Runner and execute the pipeline:
//
//	runner := pipeline.NewRunner(provider, validatorClient, index, logger)
//	result, err := runner.Run(ctx, "a differential pair", nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(result.Response)
package pipeline

import (
	"math"

	"github.com/ordlab/ordpilot/pkg/errors"
	"github.com/ordlab/ordpilot/pkg/validate"
)

// =============================================================================
// Default Values - Single Source of Truth for CLI, API, and Worker
// =============================================================================

const (
	// DefaultCircuitBudget is the maximum number of full generation
	// attempts per request.
	DefaultCircuitBudget = 3

	// DefaultSpacingBudget is the maximum number of layout-repair cycles
	// after a successful render with spacing violations.
	DefaultSpacingBudget = 2

	// DefaultMaxTemperature caps the escalated sampling temperature.
	DefaultMaxTemperature = 2.0

	// DefaultExampleCount is how many reference examples each generation
	// prompt carries.
	DefaultExampleCount = 2
)

// DefaultTempLadder is the additive temperature escalation per retry
// attempt: the first attempt samples at the base temperature, later
// attempts add their ladder step.
var DefaultTempLadder = []float64{0, 0.3, 0.6}

// Intent classifies what the user asked for.
type Intent string

const (
	// IntentGenerate requests a new circuit.
	IntentGenerate Intent = "generate"
	// IntentQuestion asks about circuits or the language; answered
	// directly without running the generation loop.
	IntentQuestion Intent = "question"
)

// Options configures one Runner. The zero value is usable: every field
// falls back to its default.
type Options struct {
	// CircuitBudget caps full generation attempts. Zero means
	// DefaultCircuitBudget.
	CircuitBudget int

	// SpacingBudget caps layout-repair cycles. Zero means
	// DefaultSpacingBudget.
	SpacingBudget int

	// MinGap is the spacing requirement in grid units, forwarded to the
	// validator. Zero means validate.DefaultMinGap.
	MinGap int

	// BaseTemperature is the sampling temperature of the first attempt.
	BaseTemperature float64

	// TempLadder is added to BaseTemperature per attempt; attempts beyond
	// its length reuse the last step. Nil means DefaultTempLadder.
	TempLadder []float64

	// MaxTemperature clamps the escalated temperature. Zero means
	// DefaultMaxTemperature.
	MaxTemperature float64

	// ExampleCount is the number of retrieved examples per prompt. Zero
	// means DefaultExampleCount.
	ExampleCount int

	// TestParams are fallback parameter values the validator retries with
	// when a cell requires parameters without defaults.
	TestParams map[string]string
}

// ValidateAndSetDefaults normalizes the options in place.
func (o *Options) ValidateAndSetDefaults() error {
	if o.CircuitBudget < 0 || o.SpacingBudget < 0 {
		return errors.New(errors.ErrCodeInvalidConfig, "retry budgets must not be negative")
	}
	if o.CircuitBudget == 0 {
		o.CircuitBudget = DefaultCircuitBudget
	}
	if o.SpacingBudget == 0 {
		o.SpacingBudget = DefaultSpacingBudget
	}
	if o.MinGap == 0 {
		o.MinGap = validate.DefaultMinGap
	}
	if o.MinGap < 0 {
		return errors.New(errors.ErrCodeInvalidConfig, "minimum gap must not be negative")
	}
	if o.TempLadder == nil {
		o.TempLadder = DefaultTempLadder
	}
	if o.MaxTemperature == 0 {
		o.MaxTemperature = DefaultMaxTemperature
	}
	if o.BaseTemperature < 0 || o.BaseTemperature > o.MaxTemperature {
		return errors.New(errors.ErrCodeInvalidConfig, "base temperature out of range")
	}
	if o.ExampleCount == 0 {
		o.ExampleCount = DefaultExampleCount
	}
	return nil
}

// temperatureFor computes the sampling temperature for a zero-based
// attempt: base plus the attempt's ladder step, clamped to the maximum.
func (o *Options) temperatureFor(attempt int) float64 {
	step := 0.0
	if len(o.TempLadder) > 0 {
		step = o.TempLadder[min(attempt, len(o.TempLadder)-1)]
	}
	return math.Min(o.BaseTemperature+step, o.MaxTemperature)
}

// Attempt records one generation or repair cycle for logs and API clients.
type Attempt struct {
	// Number is 1-based within its kind.
	Number int `json:"number"`
	// Kind is "circuit" or "spacing".
	Kind string `json:"kind"`
	// Temperature used for the model call, when one was made.
	Temperature float64 `json:"temperature"`
	// Stage and Code classify the failure; empty on success.
	Stage validate.Stage `json:"stage,omitempty"`
	Code  string         `json:"code,omitempty"`
	// Success marks the cycle that produced the final artifact.
	Success bool `json:"success"`
}

// Result is the terminal state of one pipeline run.
type Result struct {
	// Intent the request was classified as.
	Intent Intent `json:"intent"`

	// Response is the user-facing answer: a summary on success, the
	// failure explanation otherwise, or the direct answer for questions.
	Response string `json:"response"`

	// Source is the final ORD artifact. On failure it carries the best
	// candidate so the user can edit it by hand; empty for questions.
	Source string `json:"source,omitempty"`

	// SVG is the rendered schematic when rendering was reached.
	SVG []byte `json:"svg,omitempty"`

	// Outcome is the last validation outcome; zero value for questions.
	Outcome validate.Outcome `json:"outcome"`

	// Attempts lists every cycle in order.
	Attempts []Attempt `json:"attempts,omitempty"`
}

// Success reports whether the run produced a validated circuit.
func (r *Result) Success() bool {
	return r.Intent == IntentQuestion || r.Outcome.Success
}
