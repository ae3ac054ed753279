package pipeline

import (
	"context"
	"strings"
	"testing"

	"github.com/ordlab/ordpilot/pkg/cache"
	"github.com/ordlab/ordpilot/pkg/errors"
	"github.com/ordlab/ordpilot/pkg/llm"
	"github.com/ordlab/ordpilot/pkg/ord/ordrt"
	"github.com/ordlab/ordpilot/pkg/repair"
	"github.com/ordlab/ordpilot/pkg/retrieval"
	"github.com/ordlab/ordpilot/pkg/validate"
)

const validReply = "Here is the design.\n```ord\n" + validSource + "\n```"

const validSource = `# -*- version: ord2 -*-
cell Inv:
    viewgen schematic:
        port vdd(.pos=(4, 20); .align=Orientation.North)
        port vss(.pos=(4, 0); .align=Orientation.South)
        port a(.pos=(0, 10); .align=Orientation.West)
        port y(.pos=(16, 10); .align=Orientation.East)

        Pmos m_p(.pos=(4, 12); .g -- a; .d -- y; .s -- vdd; .b -- vdd)
        Nmos m_n(.pos=(4, 4); .g -- a; .d -- y; .s -- vss; .b -- vss)`

const crowdedReply = "```ord\n" + crowdedSource + "\n```"

const crowdedSource = `# -*- version: ord2 -*-
cell Crowded:
    viewgen schematic:
        port a(.pos=(0, 2))
        net x
        Nmos m1(.pos=(4, 0); .g -- x)
        Nmos m2(.pos=(10, 0); .g -- x)`

const intentGenerate = `{"intent": "generate"}`
const intentQuestion = `{"intent": "question"}`

// scriptedProvider replays canned replies and records every request.
type scriptedProvider struct {
	replies  []string
	requests []llm.Request
}

func (p *scriptedProvider) Name() string { return "scripted" }
func (p *scriptedProvider) Close() error { return nil }

func (p *scriptedProvider) Generate(_ context.Context, req llm.Request) (string, error) {
	p.requests = append(p.requests, req)
	i := min(len(p.requests)-1, len(p.replies)-1)
	return p.replies[i], nil
}

// inprocValidator runs validation in-process; counting calls lets tests
// observe caching.
type inprocValidator struct{ calls int }

func (v *inprocValidator) Validate(_ context.Context, source string, testParams map[string]string) validate.Outcome {
	v.calls++
	return validate.Full(ordrt.New(), source, testParams, 0)
}

func (v *inprocValidator) FixSpacing(_ context.Context, source string, changes []repair.Change, testParams map[string]string) validate.Outcome {
	v.calls++
	return validate.FixSpacing(ordrt.New(), source, changes, testParams, 0)
}

// scriptedValidator replays precomputed outcomes, one per Validate call.
type scriptedValidator struct {
	outcomes      []validate.Outcome
	fix           validate.Outcome
	validateCalls int
	fixCalls      int
}

func (v *scriptedValidator) Validate(context.Context, string, map[string]string) validate.Outcome {
	out := v.outcomes[min(v.validateCalls, len(v.outcomes)-1)]
	v.validateCalls++
	return out
}

func (v *scriptedValidator) FixSpacing(context.Context, string, []repair.Change, map[string]string) validate.Outcome {
	v.fixCalls++
	return v.fix
}

func newTestRunner(t *testing.T, replies ...string) (*Runner, *scriptedProvider, *inprocValidator) {
	t.Helper()
	ix, err := retrieval.LoadBuiltin()
	if err != nil {
		t.Fatal(err)
	}
	provider := &scriptedProvider{replies: replies}
	validator := &inprocValidator{}
	return NewRunner(provider, validator, ix, nil), provider, validator
}

func TestOptionsDefaults(t *testing.T) {
	var o Options
	if err := o.ValidateAndSetDefaults(); err != nil {
		t.Fatal(err)
	}
	if o.CircuitBudget != 3 || o.SpacingBudget != 2 || o.MinGap != 2 {
		t.Errorf("budgets = %d/%d, gap = %d", o.CircuitBudget, o.SpacingBudget, o.MinGap)
	}

	bad := Options{CircuitBudget: -1}
	if err := bad.ValidateAndSetDefaults(); err == nil {
		t.Error("negative budget accepted")
	}
}

func TestTemperatureEscalation(t *testing.T) {
	o := Options{BaseTemperature: 0.2}
	if err := o.ValidateAndSetDefaults(); err != nil {
		t.Fatal(err)
	}
	want := []float64{0.2, 0.5, 0.8, 0.8}
	for attempt, w := range want {
		if got := o.temperatureFor(attempt); got != w {
			t.Errorf("temperatureFor(%d) = %v, want %v", attempt, got, w)
		}
	}

	o.BaseTemperature = 1.8
	if got := o.temperatureFor(2); got != 2.0 {
		t.Errorf("clamped temperature = %v, want 2.0", got)
	}
}

func TestParseFixPlan(t *testing.T) {
	plan, err := parseFixPlan("Sure: ```json\n{\"reasoning\": \"shift right\", \"changes\": [{\"element_name\": \"m2\", \"new_pos_x\": 12, \"new_pos_y\": 0}]}\n```")
	if err != nil {
		t.Fatalf("parseFixPlan: %v", err)
	}
	if len(plan.Changes) != 1 || plan.Changes[0].ElementName != "m2" || *plan.Changes[0].NewX != 12 {
		t.Errorf("plan = %+v", plan)
	}

	for _, bad := range []string{"no json here", `{"changes": []}`, `{"changes": "m2"}`} {
		if _, err := parseFixPlan(bad); err == nil {
			t.Errorf("parseFixPlan(%q) accepted", bad)
		}
	}
}

func TestClassifyHeuristic(t *testing.T) {
	tests := []struct {
		message string
		want    Intent
	}{
		{"design a two-stage amplifier", IntentGenerate},
		{"what is a current mirror?", IntentQuestion},
		{"How does routing work", IntentQuestion},
		{"explain the tail net", IntentQuestion},
		{"inverter with strong pull-down", IntentGenerate},
	}
	for _, tt := range tests {
		if got := classifyHeuristic(tt.message); got != tt.want {
			t.Errorf("classifyHeuristic(%q) = %s, want %s", tt.message, got, tt.want)
		}
	}
}

func TestRunFirstAttemptSucceeds(t *testing.T) {
	r, provider, _ := newTestRunner(t, intentGenerate, validReply)

	result, err := r.Run(context.Background(), "a CMOS inverter", nil)
	if err != nil {
		t.Fatal(err)
	}
	if !result.Success() || result.Intent != IntentGenerate {
		t.Fatalf("result = %+v", result)
	}
	if len(result.Attempts) != 1 || !result.Attempts[0].Success {
		t.Errorf("attempts = %+v", result.Attempts)
	}
	if len(result.SVG) == 0 || !strings.Contains(result.Response, "Inv") {
		t.Errorf("response = %q, svg %d bytes", result.Response, len(result.SVG))
	}

	// The generation prompt carries retrieved example circuits.
	genReq := provider.requests[1]
	if !strings.Contains(genReq.Messages[0].Content, "```ord") {
		t.Error("generation prompt has no example code")
	}
	if genReq.System == "" || genReq.Temperature != 0 {
		t.Errorf("generation request = %+v", genReq)
	}
}

func TestRunRetriesWithEscalatedTemperature(t *testing.T) {
	broken := "```ord\ncell Broken\n```"
	r, provider, _ := newTestRunner(t, intentGenerate, broken, validReply)

	result, err := r.Run(context.Background(), "an inverter", nil)
	if err != nil {
		t.Fatal(err)
	}
	if !result.Success() {
		t.Fatalf("result = %+v", result)
	}
	if len(result.Attempts) != 2 {
		t.Fatalf("attempts = %+v", result.Attempts)
	}
	if result.Attempts[0].Stage != validate.StageParsing || result.Attempts[0].Success {
		t.Errorf("first attempt = %+v", result.Attempts[0])
	}
	if result.Attempts[1].Temperature != 0.3 {
		t.Errorf("retry temperature = %v, want 0.3", result.Attempts[1].Temperature)
	}

	// The retry prompt feeds back the rejected code and the stage guidance.
	retryReq := provider.requests[2]
	content := retryReq.Messages[len(retryReq.Messages)-1].Content
	if !strings.Contains(content, "rejected") || !strings.Contains(content, "cell Broken") {
		t.Errorf("retry prompt = %q", content)
	}
	// The retry rides on the accumulated conversation: original prompt,
	// the first assistant reply, then the retry feedback.
	if len(retryReq.Messages) != 3 {
		t.Fatalf("retry conversation = %d messages, want 3", len(retryReq.Messages))
	}
	if retryReq.Messages[1].Role != llm.RoleAssistant || !strings.Contains(retryReq.Messages[1].Content, "cell Broken") {
		t.Errorf("retry conversation lost the prior reply: %+v", retryReq.Messages[1])
	}
}

func TestRunReturnsToCircuitLoopAfterFailedRepair(t *testing.T) {
	rt := ordrt.New()
	spacingOut := validate.Full(rt, crowdedSource, nil, 0)
	if spacingOut.Stage != validate.StageSpacing {
		t.Fatalf("fixture outcome = %+v", spacingOut)
	}
	parseOut := validate.Full(rt, "cell Broken", nil, 0)
	successOut := validate.Full(rt, validSource, nil, 0)

	plan := `{"reasoning": "nudge m2", "changes": [{"element_name": "m2", "new_pos_x": 12, "new_pos_y": 0}]}`
	r, provider, _ := newTestRunner(t,
		intentGenerate, crowdedReply, plan, "```ord\ncell Broken\n```", validReply)
	validator := &scriptedValidator{
		outcomes: []validate.Outcome{spacingOut, parseOut, successOut},
		fix:      parseOut,
	}
	r.Validator = validator

	result, err := r.Run(context.Background(), "two transistors", nil)
	if err != nil {
		t.Fatal(err)
	}
	// A repaired candidate that regressed to a parse failure must re-enter
	// the circuit loop, not end the run with budget remaining.
	if !result.Success() {
		t.Fatalf("result = %+v", result)
	}
	if validator.fixCalls != 1 {
		t.Errorf("fix calls = %d", validator.fixCalls)
	}
	circuits := 0
	for _, a := range result.Attempts {
		if a.Kind == "circuit" {
			circuits++
		}
	}
	if circuits != 2 {
		t.Errorf("circuit attempts = %d, want 2:\n%+v", circuits, result.Attempts)
	}
	last := result.Attempts[len(result.Attempts)-1]
	if last.Kind != "circuit" || !last.Success {
		t.Errorf("last attempt = %+v", last)
	}
	if len(provider.requests) != 5 {
		t.Errorf("provider calls = %d, want 5", len(provider.requests))
	}
}

func TestRunExhaustsCircuitBudget(t *testing.T) {
	r, _, _ := newTestRunner(t, intentGenerate, "no code at all")

	result, err := r.Run(context.Background(), "an inverter", nil)
	if err != nil {
		t.Fatal(err)
	}
	if result.Success() {
		t.Fatal("result unexpectedly succeeded")
	}
	if len(result.Attempts) != DefaultCircuitBudget {
		t.Errorf("attempts = %d, want %d", len(result.Attempts), DefaultCircuitBudget)
	}
	if result.Outcome.Stage != validate.StageExtraction {
		t.Errorf("final stage = %s", result.Outcome.Stage)
	}
}

func TestRunRepairsSpacingWithFixPlan(t *testing.T) {
	fixPlan := `{"reasoning": "move m2 clear of m1", "changes": [{"element_name": "m2", "new_pos_x": 12, "new_pos_y": 0}]}`
	r, _, _ := newTestRunner(t, intentGenerate, crowdedReply, fixPlan)

	result, err := r.Run(context.Background(), "two transistors", nil)
	if err != nil {
		t.Fatal(err)
	}
	if !result.Success() {
		t.Fatalf("result = %+v", result)
	}
	if !strings.Contains(result.Source, ".pos=(12, 0)") {
		t.Errorf("source not repaired:\n%s", result.Source)
	}

	// One circuit attempt (spacing failure), one successful spacing repair.
	if len(result.Attempts) != 2 {
		t.Fatalf("attempts = %+v", result.Attempts)
	}
	if result.Attempts[0].Kind != "circuit" || result.Attempts[0].Stage != validate.StageSpacing {
		t.Errorf("first attempt = %+v", result.Attempts[0])
	}
	if result.Attempts[1].Kind != "spacing" || !result.Attempts[1].Success {
		t.Errorf("second attempt = %+v", result.Attempts[1])
	}
}

func TestRunFallsBackToRegenerationOnBadPlan(t *testing.T) {
	r, _, _ := newTestRunner(t, intentGenerate, crowdedReply, "I cannot produce JSON", validReply)

	result, err := r.Run(context.Background(), "two transistors", nil)
	if err != nil {
		t.Fatal(err)
	}
	if !result.Success() {
		t.Fatalf("result = %+v", result)
	}
	// The regenerated circuit replaced the crowded one within the first
	// spacing attempt.
	if !strings.Contains(result.Source, "cell Inv") {
		t.Errorf("source = %q", result.Source)
	}
	last := result.Attempts[len(result.Attempts)-1]
	if last.Kind != "spacing" || !last.Success {
		t.Errorf("last attempt = %+v", last)
	}
	// The fallback regenerates at the current circuit attempt's
	// temperature, which is still the first rung here.
	if last.Temperature != 0 {
		t.Errorf("fallback temperature = %v, want 0", last.Temperature)
	}
}

func TestRunExhaustsSpacingBudget(t *testing.T) {
	// Plans and regenerations keep producing the same crowded layout.
	badPlan := `{"changes": [{"element_name": "m2", "new_pos_x": 10, "new_pos_y": 0}]}`
	r, _, _ := newTestRunner(t, intentGenerate, crowdedReply, badPlan, crowdedReply, badPlan, crowdedReply)

	result, err := r.Run(context.Background(), "two transistors", nil)
	if err != nil {
		t.Fatal(err)
	}
	if result.Success() {
		t.Fatal("result unexpectedly succeeded")
	}
	if result.Outcome.Stage != validate.StageSpacing {
		t.Errorf("final stage = %s", result.Outcome.Stage)
	}
	// The failure still carries the rendered schematic for inspection.
	if len(result.SVG) == 0 || result.Source == "" {
		t.Error("failure result lost the partial artifact")
	}
	spacing := 0
	for _, a := range result.Attempts {
		if a.Kind == "spacing" {
			spacing++
		}
	}
	if spacing < DefaultSpacingBudget {
		t.Errorf("spacing attempts = %d", spacing)
	}
}

func TestRunQuestionPath(t *testing.T) {
	r, provider, validator := newTestRunner(t, intentQuestion, "A current mirror copies a bias current.")

	result, err := r.Run(context.Background(), "what is a current mirror?", nil)
	if err != nil {
		t.Fatal(err)
	}
	if result.Intent != IntentQuestion {
		t.Fatalf("intent = %s", result.Intent)
	}
	if result.Response != "A current mirror copies a bias current." {
		t.Errorf("response = %q", result.Response)
	}
	if result.Source != "" || validator.calls != 0 {
		t.Error("question path touched the validator")
	}
	if len(provider.requests) != 2 {
		t.Errorf("provider calls = %d", len(provider.requests))
	}
}

func TestRunRejectsOversizedMessage(t *testing.T) {
	r, _, _ := newTestRunner(t, intentGenerate, validReply)
	if _, err := r.Run(context.Background(), strings.Repeat("x", 2*errors.MaxMessageBytes), nil); err == nil {
		t.Error("oversized message accepted")
	}
}

func TestValidateSourceCaching(t *testing.T) {
	fileCache, err := cache.NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	validator := &inprocValidator{}
	r := NewRunner(nil, validator, nil, nil)
	r.Cache = fileCache
	if err := r.Options.ValidateAndSetDefaults(); err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	first := r.validateSource(ctx, validSource)
	second := r.validateSource(ctx, validSource)
	if !first.Success || !second.Success {
		t.Fatalf("outcomes: %+v / %+v", first, second)
	}
	if validator.calls != 1 {
		t.Errorf("validator calls = %d, want 1 (second should hit cache)", validator.calls)
	}
}
