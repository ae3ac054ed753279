package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/ordlab/ordpilot/pkg/cache"
	"github.com/ordlab/ordpilot/pkg/errors"
	"github.com/ordlab/ordpilot/pkg/llm"
	"github.com/ordlab/ordpilot/pkg/observability"
	"github.com/ordlab/ordpilot/pkg/ord"
	"github.com/ordlab/ordpilot/pkg/repair"
	"github.com/ordlab/ordpilot/pkg/retrieval"
	"github.com/ordlab/ordpilot/pkg/validate"
)

// Validator is the pipeline's view of the worker-isolated validation
// boundary. *validate.Client satisfies it.
type Validator interface {
	Validate(ctx context.Context, source string, testParams map[string]string) validate.Outcome
	FixSpacing(ctx context.Context, source string, changes []repair.Change, testParams map[string]string) validate.Outcome
}

var _ Validator = (*validate.Client)(nil)

// Runner executes the generation pipeline.
//
// The Runner is stateless except for its collaborators - it doesn't store
// run results. Multiple goroutines can safely share one Runner; each Run
// owns its state for the duration of the call.
type Runner struct {
	Generator llm.Provider
	Validator Validator
	Index     *retrieval.Index
	Cache     cache.Cache
	Keyer     cache.Keyer
	Logger    *log.Logger
	Options   Options
}

// NewRunner creates a runner with the given collaborators.
// If logger is nil, the default logger is used. Caching is disabled until a
// Cache is set.
func NewRunner(gen llm.Provider, val Validator, ix *retrieval.Index, logger *log.Logger) *Runner {
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{
		Generator: gen,
		Validator: val,
		Index:     ix,
		Cache:     cache.NewNullCache(),
		Keyer:     cache.NewDefaultKeyer(),
		Logger:    logger,
	}
}

// Run executes one request end to end: intent classification, example
// retrieval, then either the question path or the bounded
// generate-validate-repair loop.
//
// Run returns an error only for infrastructure problems (bad options,
// provider failures). A circuit that could not be validated within the
// budgets is not an error: the Result carries the failure outcome and the
// best candidate produced.
func (r *Runner) Run(ctx context.Context, message string, history []llm.Message) (*Result, error) {
	if err := errors.ValidateMessage(message); err != nil {
		return nil, err
	}
	if err := r.Options.ValidateAndSetDefaults(); err != nil {
		return nil, err
	}

	intent := r.classify(ctx, message)
	var examples []retrieval.Example
	if r.Index != nil {
		examples = r.Index.Query(message, r.Options.ExampleCount)
	}
	r.Logger.Info("classified request", "intent", intent, "examples", len(examples))

	if intent == IntentQuestion {
		return r.answer(ctx, message, history, examples)
	}
	return r.generate(ctx, message, history, examples)
}

// classify asks the model for the intent and falls back to a keyword
// heuristic when the call or its reply is unusable.
func (r *Runner) classify(ctx context.Context, message string) Intent {
	reply, err := r.Generator.Generate(ctx, llm.Request{
		System:   classifierSystemPrompt,
		Messages: llm.UserMessage(message),
		JSON:     true,
	})
	if err == nil {
		var decoded struct {
			Intent string `json:"intent"`
		}
		if raw := extractJSONObject(reply); raw != "" && json.Unmarshal([]byte(raw), &decoded) == nil {
			switch Intent(decoded.Intent) {
			case IntentGenerate, IntentQuestion:
				return Intent(decoded.Intent)
			}
		}
	} else {
		r.Logger.Warn("intent classification failed, using heuristic", "err", err)
	}
	return classifyHeuristic(message)
}

// answer handles the question path: one grounded model call, no validation.
func (r *Runner) answer(ctx context.Context, message string, history []llm.Message, examples []retrieval.Example) (*Result, error) {
	messages := append(slices.Clone(history), llm.Message{
		Role:    llm.RoleUser,
		Content: buildQuestionPrompt(message, examples),
	})
	reply, err := r.Generator.Generate(ctx, llm.Request{
		System:      questionSystemPrompt,
		Messages:    messages,
		Temperature: r.Options.BaseTemperature,
	})
	if err != nil {
		return nil, err
	}
	return &Result{Intent: IntentQuestion, Response: strings.TrimSpace(reply)}, nil
}

// generate drives the circuit loop as an explicit state machine. Every
// validation outcome routes through the same decision: success finalizes,
// a spacing violation enters a repair attempt while that budget lasts, and
// any other failure (including a repaired candidate regressing to an
// earlier stage) re-enters the circuit loop while generation attempts
// remain. The generator conversation accumulates across attempts so each
// retry sees every prior candidate and rejection.
func (r *Runner) generate(ctx context.Context, message string, history []llm.Message, examples []retrieval.Example) (*Result, error) {
	result := &Result{Intent: IntentGenerate}
	msgs := append(slices.Clone(history), llm.Message{
		Role:    llm.RoleUser,
		Content: buildGenerationPrompt(message, examples),
	})

	circuitAttempt, spacingAttempt := 0, 0
	source, out, err := r.attemptCircuit(ctx, &msgs, circuitAttempt, result)
	if err != nil {
		return nil, err
	}

	for {
		switch {
		case out.Success:
			return r.format(ctx, source, out, result)

		case out.Stage == validate.StageSpacing:
			if spacingAttempt >= r.Options.SpacingBudget {
				return r.finish(result, source, out), nil
			}
			spacingAttempt++
			source, out, err = r.attemptRepair(ctx, &msgs, message, source, out, circuitAttempt, spacingAttempt, result)
			if err != nil {
				return nil, err
			}

		default:
			if circuitAttempt >= r.Options.CircuitBudget-1 {
				return r.finish(result, source, out), nil
			}
			circuitAttempt++
			msgs = append(msgs, llm.Message{Role: llm.RoleUser, Content: buildRetryPrompt(message, source, out)})
			candidate, next, err := r.attemptCircuit(ctx, &msgs, circuitAttempt, result)
			if err != nil {
				return nil, err
			}
			if candidate != "" {
				source = candidate
			}
			out = next
		}
	}
}

// attemptCircuit makes one generation call at the attempt's escalated
// temperature and validates whatever code it yields. The assistant reply is
// appended to msgs so later retries carry the full exchange.
func (r *Runner) attemptCircuit(ctx context.Context, msgs *[]llm.Message, attempt int, result *Result) (string, validate.Outcome, error) {
	temp := r.Options.temperatureFor(attempt)
	observability.Pipeline().OnAttemptStart(ctx, attempt+1, temp)
	start := time.Now()
	r.Logger.Info("generating circuit", "attempt", attempt+1, "temperature", temp)

	reply, err := r.Generator.Generate(ctx, llm.Request{
		System:      generatorSystemPrompt,
		Messages:    *msgs,
		Temperature: temp,
	})
	if err != nil {
		return "", validate.Outcome{}, err
	}
	*msgs = append(*msgs, llm.Message{Role: llm.RoleAssistant, Content: reply})

	candidate := ord.ExtractCode(reply)
	if candidate == "" {
		out := validate.Outcome{
			Stage:   validate.StageExtraction,
			Code:    validate.CodeNoCode,
			Message: "The reply contained no ORD code.",
		}
		r.recordAttempt(result, "circuit", attempt+1, temp, out)
		observability.Pipeline().OnAttemptComplete(ctx, attempt+1, string(out.Stage), time.Since(start), false)
		return "", out, nil
	}

	candidate = ord.EnsureParameterDefaults(candidate)
	out := r.validateSource(ctx, candidate)
	r.recordAttempt(result, "circuit", attempt+1, temp, out)
	observability.Pipeline().OnAttemptComplete(ctx, attempt+1, string(out.Stage), time.Since(start), out.Success)
	if !out.Success {
		r.Logger.Warn("candidate rejected",
			"attempt", attempt+1, "stage", out.Stage, "code", out.Code)
	}
	return candidate, out, nil
}

// attemptRepair runs one spacing attempt: ask for a structured fix plan and
// apply it mechanically through the worker. On any fix failure - an
// unusable plan, a still-violating layout, or a patched candidate
// regressing to an earlier stage - it falls back to full regeneration
// within the same attempt, at the temperature of the current circuit
// attempt. The caller routes whatever outcome remains.
func (r *Runner) attemptRepair(ctx context.Context, msgs *[]llm.Message, message, source string, out validate.Outcome, circuitAttempt, attempt int, result *Result) (string, validate.Outcome, error) {
	observability.Pipeline().OnRepairStart(ctx, attempt, len(out.SpacingViolations))
	start := time.Now()
	r.Logger.Info("repairing layout",
		"attempt", attempt, "violations", len(out.SpacingViolations))

	plan, err := r.planRepair(ctx, source, out)
	if err == nil {
		next := r.Validator.FixSpacing(ctx, source, plan.Changes, r.Options.TestParams)
		if next.FixedSource != "" {
			source = next.FixedSource
		}
		r.recordAttempt(result, "spacing", attempt, 0, next)
		if next.Success {
			observability.Pipeline().OnRepairComplete(ctx, attempt, time.Since(start), true)
			return source, next, nil
		}
		out = next
		r.Logger.Warn("patched layout rejected, regenerating",
			"stage", next.Stage, "code", next.Code)
	} else {
		r.Logger.Warn("fix plan unusable, regenerating layout", "err", err)
	}

	temp := r.Options.temperatureFor(circuitAttempt)
	*msgs = append(*msgs, llm.Message{Role: llm.RoleUser, Content: buildRetryPrompt(message, source, out)})
	reply, gerr := r.Generator.Generate(ctx, llm.Request{
		System:      generatorSystemPrompt,
		Messages:    *msgs,
		Temperature: temp,
	})
	if gerr != nil {
		return "", validate.Outcome{}, gerr
	}
	*msgs = append(*msgs, llm.Message{Role: llm.RoleAssistant, Content: reply})

	candidate := ord.ExtractCode(reply)
	if candidate == "" {
		// Keep the last candidate; its outcome still routes the loop.
		observability.Pipeline().OnRepairComplete(ctx, attempt, time.Since(start), false)
		return source, out, nil
	}
	candidate = ord.EnsureParameterDefaults(candidate)
	next := r.validateSource(ctx, candidate)
	r.recordAttempt(result, "spacing", attempt, temp, next)
	observability.Pipeline().OnRepairComplete(ctx, attempt, time.Since(start), next.Success)
	return candidate, next, nil
}

// planRepair asks the model for a structured fix plan at temperature zero.
func (r *Runner) planRepair(ctx context.Context, source string, out validate.Outcome) (*FixPlan, error) {
	reply, err := r.Generator.Generate(ctx, llm.Request{
		System:   repairSystemPrompt,
		Messages: llm.UserMessage(buildRepairPrompt(source, out)),
		JSON:     true,
	})
	if err != nil {
		return nil, err
	}
	return parseFixPlan(reply)
}

// validateSource validates through the worker with outcome caching.
// Runtime-stage outcomes are never cached: they describe the validator,
// not the source.
func (r *Runner) validateSource(ctx context.Context, source string) validate.Outcome {
	key := r.Keyer.OutcomeKey(cache.Hash([]byte(source)), r.Options.MinGap)
	if data, ok, err := r.Cache.Get(ctx, key); err == nil && ok {
		var out validate.Outcome
		if json.Unmarshal(data, &out) == nil {
			observability.Cache().OnCacheHit(ctx, "outcome")
			return out
		}
	}
	observability.Cache().OnCacheMiss(ctx, "outcome")

	out := r.Validator.Validate(ctx, source, r.Options.TestParams)
	if out.Stage != validate.StageRuntime {
		if data, err := json.Marshal(out); err == nil {
			if err := r.Cache.Set(ctx, key, data, 24*time.Hour); err == nil {
				observability.Cache().OnCacheSet(ctx, "outcome", len(data))
			}
		}
	}
	return out
}

// format finalizes a successful run. Generator replies often carry helper
// boilerplate the renderer ignores; it is stripped if and only if the
// stripped source still validates.
func (r *Runner) format(ctx context.Context, source string, out validate.Outcome, result *Result) (*Result, error) {
	if stripped := ord.StripHelpers(source); stripped != source {
		if next := r.validateSource(ctx, stripped); next.Success {
			source, out = stripped, next
		}
	}

	result.Source = source
	result.SVG = out.SVG
	result.Outcome = out
	result.Response = fmt.Sprintf(
		"Validated circuit %s. The schematic rendered cleanly with no spacing violations.",
		strings.Join(out.CellNames, ", "))
	r.Logger.Info("pipeline finished", "cells", out.CellNames, "attempts", len(result.Attempts))
	return result, nil
}

// finish finalizes a failed run with the best candidate seen.
func (r *Runner) finish(result *Result, source string, out validate.Outcome) *Result {
	result.Source = source
	result.SVG = out.SVG
	result.Outcome = out
	if out.Message == "" {
		result.Response = "Generation failed before producing any circuit."
	} else {
		result.Response = fmt.Sprintf(
			"Could not produce a fully valid circuit. Last failure at the %s stage: %s",
			out.Stage, out.Message)
	}
	r.Logger.Warn("pipeline gave up", "stage", out.Stage, "code", out.Code, "attempts", len(result.Attempts))
	return result
}

func (r *Runner) recordAttempt(result *Result, kind string, number int, temp float64, out validate.Outcome) {
	result.Attempts = append(result.Attempts, Attempt{
		Number:      number,
		Kind:        kind,
		Temperature: temp,
		Stage:       out.Stage,
		Code:        out.Code,
		Success:     out.Success,
	})
}
