package pipeline

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ordlab/ordpilot/pkg/errors"
	"github.com/ordlab/ordpilot/pkg/repair"
	"github.com/ordlab/ordpilot/pkg/retrieval"
	"github.com/ordlab/ordpilot/pkg/validate"
)

// =============================================================================
// Prompt Construction
// =============================================================================

// generatorSystemPrompt teaches the model the ORD dialect the validator
// accepts. The rules mirror what the reference runtime actually enforces;
// drifting them apart produces retry loops that can never converge.
const generatorSystemPrompt = `You are an analog circuit designer who writes ORD schematic code.

ORD rules:
- Start every file with the header line: # -*- version: ord2 -*-
- Define one cell per design: "cell Name:" with an indented body.
- Declare parameters as "name = Parameter(R, default=value)"; always give a default.
- Put pins in a "viewgen symbol:" block: "input a(.align=Orientation.West)".
- Put the circuit in a "viewgen schematic:" block.
- Declare ports with positions: "port vdd(.pos=(2, 13); .align=Orientation.North)".
- Declare internal nets with "net name" before using them.
- Instantiate components with positions and connections:
  "Nmos m1(.pos=(4, 10); .g -- inp; .s -- tail; .b -- vss)".
- Available components: Nmos, Pmos (pins g, d, s, b), Res, Cap, Ind (pins p, n).
- Every instance and port needs an explicit .pos=(x, y) on the integer grid.
- Transistors occupy a 5x5 area from their position. Keep at least 2 grid
  units of clear space between any two elements.
- Connect only to nets and ports declared on earlier lines.

Reply with exactly one ORD code block fenced as ` + "```ord" + ` and nothing else.`

// classifierSystemPrompt drives the one-word intent decision.
const classifierSystemPrompt = `Classify the user's message.
Reply with a JSON object {"intent": "generate"} if they want a circuit designed or modified,
or {"intent": "question"} if they are asking a question about circuits or the ORD language.`

// questionSystemPrompt answers language/circuit questions without entering
// the generation loop.
const questionSystemPrompt = `You are a helpful analog circuit design assistant.
Answer the user's question concisely. When helpful, refer to the provided
example circuits. Do not generate a full new design unless asked.`

// stageGuidance maps a failed validation stage to the corrective
// instruction added to retry prompts.
var stageGuidance = map[validate.Stage]string{
	validate.StageExtraction:    "Your previous reply contained no ORD code block. Reply with exactly one fenced ```ord code block.",
	validate.StageParsing:       "The code did not parse. Check indentation, the cell/viewgen structure, and argument syntax.",
	validate.StageCompilation:   "The code declared the same name twice. Every cell, port, net, and instance name must be unique.",
	validate.StageExecution:     "The code referenced an undeclared name. Declare every net and port before the line that uses it.",
	validate.StageDiscovery:     "The code defined no cell. Define exactly one top-level cell for the requested design.",
	validate.StageInstantiation: "An instance could not be created. Check component types, pin names, and give every Parameter a default.",
	validate.StageViewAccess:    "The cell has no schematic view. Add a viewgen schematic: block to the top-level cell.",
	validate.StageRendering:     "The schematic could not be drawn. Keep all positions small non-negative grid coordinates.",
	validate.StageSpacing:       "Elements are too close together. Spread instances so every pair has at least 2 grid units of clear space.",
}

// buildGenerationPrompt assembles the first-attempt prompt: retrieved
// reference examples followed by the request.
func buildGenerationPrompt(message string, examples []retrieval.Example) string {
	var b strings.Builder
	if len(examples) > 0 {
		b.WriteString("Here are reference ORD circuits similar to the request:\n\n")
		for _, ex := range examples {
			fmt.Fprintf(&b, "Example %s:\n```ord\n%s\n```\n\n", ex.Name, strings.TrimSpace(ex.Source))
		}
	}
	b.WriteString("Design this circuit:\n")
	b.WriteString(message)
	return b.String()
}

// buildRetryPrompt assembles a regeneration prompt from the failed attempt:
// the rejected source, the validator's message, and the stage's corrective
// guidance.
func buildRetryPrompt(message, source string, out validate.Outcome) string {
	var b strings.Builder
	b.WriteString("Your previous attempt was rejected.\n\n")
	if source != "" {
		fmt.Fprintf(&b, "Previous code:\n```ord\n%s\n```\n\n", strings.TrimSpace(source))
	}
	if out.Message != "" {
		fmt.Fprintf(&b, "Validator error (%s): %s\n\n", out.Stage, out.Message)
	}
	if guidance, ok := stageGuidance[out.Stage]; ok {
		b.WriteString(guidance)
		b.WriteString("\n\n")
	}
	b.WriteString("Write a corrected, complete ORD program for the original request:\n")
	b.WriteString(message)
	return b.String()
}

// =============================================================================
// Layout Fix Plans
// =============================================================================

// repairSystemPrompt asks for a machine-applicable layout fix plan instead
// of regenerated code: the circuit is structurally correct and only element
// positions may change.
const repairSystemPrompt = `You are fixing the layout of a working circuit schematic.
The circuit logic is correct; only element placement violates spacing rules.
Do NOT rewrite the circuit. Reply with a JSON object:
{"reasoning": "...", "changes": [{"element_name": "m1", "new_pos_x": 4, "new_pos_y": 10}]}
Each change may set "new_pos_x"/"new_pos_y" (both together), "new_alignment"
(North/South/East/West, ports only), or "disable_route": true.
Move as few elements as possible and keep at least 2 grid units between elements.`

// FixPlan is the structured layout-repair reply.
type FixPlan struct {
	Reasoning string          `json:"reasoning,omitempty"`
	Changes   []repair.Change `json:"changes"`
}

// buildRepairPrompt lists the violating source and the exact violations.
func buildRepairPrompt(source string, out validate.Outcome) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Current code:\n```ord\n%s\n```\n\n", strings.TrimSpace(source))
	b.WriteString("Spacing violations:\n")
	for _, v := range out.SpacingViolations {
		b.WriteString("- ")
		b.WriteString(v.String())
		b.WriteString("\n")
	}
	b.WriteString("\nProduce the fix plan JSON.")
	return b.String()
}

// parseFixPlan extracts and decodes the fix plan from a model reply. The
// reply may wrap the JSON in code fences or prose.
func parseFixPlan(reply string) (*FixPlan, error) {
	raw := extractJSONObject(reply)
	if raw == "" {
		return nil, errors.New(errors.ErrCodeInvalidInput, "reply contains no JSON object")
	}
	var plan FixPlan
	if err := json.Unmarshal([]byte(raw), &plan); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "decoding fix plan")
	}
	if len(plan.Changes) == 0 {
		return nil, errors.New(errors.ErrCodeInvalidInput, "fix plan contains no changes")
	}
	return &plan, nil
}

// extractJSONObject returns the first balanced top-level JSON object in
// text, or "".
func extractJSONObject(text string) string {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return ""
	}
	depth := 0
	inStr := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		switch {
		case escaped:
			escaped = false
		case inStr:
			if c == '\\' {
				escaped = true
			} else if c == '"' {
				inStr = false
			}
		case c == '"':
			inStr = true
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				return text[start : i+1]
			}
		}
	}
	return ""
}

// buildQuestionPrompt grounds a question answer with example context.
func buildQuestionPrompt(message string, examples []retrieval.Example) string {
	var b strings.Builder
	if len(examples) > 0 {
		b.WriteString("Context circuits:\n\n")
		for _, ex := range examples {
			fmt.Fprintf(&b, "%s: %s\n", ex.Name, ex.Description)
		}
		b.WriteString("\n")
	}
	b.WriteString(message)
	return b.String()
}

// classifyHeuristic is the fallback when the classifier model call fails:
// question-shaped messages go to the question path, everything else
// generates.
func classifyHeuristic(message string) Intent {
	m := strings.ToLower(strings.TrimSpace(message))
	if strings.HasSuffix(m, "?") {
		return IntentQuestion
	}
	for _, prefix := range []string{"what", "how", "why", "when", "explain", "describe"} {
		if strings.HasPrefix(m, prefix+" ") {
			return IntentQuestion
		}
	}
	return IntentGenerate
}
