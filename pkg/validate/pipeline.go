package validate

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/ordlab/ordpilot/pkg/repair"
)

var declaredCellRe = regexp.MustCompile(`(?m)^cell\s+(\w+)\s*:`)

// declaredCellNames extracts the names of cells textually declared in the
// submitted source. Discovery filters the executed registry by this set so
// the validator never validates a library definition pulled in via import
// instead of the one the user wrote.
func declaredCellNames(source string) map[string]bool {
	names := make(map[string]bool)
	for _, m := range declaredCellRe.FindAllStringSubmatch(source, -1) {
		names[m[1]] = true
	}
	return names
}

// Full validates source through every stage including rendering and the
// spacing check. It is the in-process engine behind the worker's "validate"
// operation and must only be called where executing untrusted source is
// acceptable; hosts go through [Client] instead.
//
// When the source declares multiple cells, candidates are tried from the
// last-declared definition backwards: the most recently declared cell is
// assumed to be the intended top-level design. The first candidate that
// renders commits the result; failing candidates leave behind the most
// specific error seen (render failure over instantiation failure over a
// view-access miss), which is reported if no candidate renders.
func Full(rt Runtime, source string, testParams map[string]string, minGap int) Outcome {
	if minGap <= 0 {
		minGap = DefaultMinGap
	}

	defs, cellNames, out := stagesThroughDiscovery(rt, source)
	if out != nil {
		return *out
	}

	var lastInstFailure, lastRenderFailure *Outcome
	var viewMisses []string

	for i := len(defs) - 1; i >= 0; i-- {
		def := defs[i]

		inst, err := instantiateWithFallback(def, testParams)
		if err != nil {
			f := failure(StageInstantiation, err.Error()).withCells(cellNames)
			if errors.Is(err, ErrMissingParams) {
				f = f.withCode(CodeMissingParams)
			}
			lastInstFailure = &f
			continue
		}

		view, err := inst.Schematic()
		if err != nil {
			if errors.Is(err, ErrNoView) {
				viewMisses = append(viewMisses, def.Name())
				continue
			}
			return failure(StageViewAccess, err.Error()).withCells(cellNames)
		}

		svg, err := view.Render()
		if err != nil {
			f := failure(StageRendering, err.Error()).withCells(cellNames)
			lastRenderFailure = &f
			continue
		}

		// A successful render commits to this candidate.
		violations := CheckSpacing(view, minGap)
		if len(violations) > 0 {
			f := failure(StageSpacing, violationMessage(violations)).withCells(cellNames)
			f.SpacingViolations = violations
			f.SVG = svg
			return f
		}

		return Outcome{Success: true, CellNames: cellNames, SVG: svg}
	}

	switch {
	case lastRenderFailure != nil:
		return *lastRenderFailure
	case lastInstFailure != nil:
		return *lastInstFailure
	case len(viewMisses) > 0:
		return failure(StageViewAccess,
			fmt.Sprintf("No schematic view found. Cells missing schematic: %s",
				strings.Join(viewMisses, ", "))).withCells(cellNames)
	}
	return failure(StageViewAccess,
		"No renderable schematic view was found in discovered cells.").withCells(cellNames)
}

// CheckStructure validates the source through instantiation only, with no view
// access, rendering, or spacing. It is a lightweight pre-check for callers
// that do not need an image.
func CheckStructure(rt Runtime, source string, testParams map[string]string) Outcome {
	defs, cellNames, out := stagesThroughDiscovery(rt, source)
	if out != nil {
		return *out
	}

	if _, err := instantiateWithFallback(defs[0], testParams); err != nil {
		f := failure(StageInstantiation, err.Error()).withCells(cellNames)
		if errors.Is(err, ErrMissingParams) {
			f = f.withCode(CodeMissingParams)
		}
		return f
	}

	return Outcome{Success: true, CellNames: cellNames}
}

// FixSpacing applies a batch of layout changes to the source and fully
// re-validates the result. The patched source is never assumed valid; it is
// returned in Outcome.FixedSource alongside whatever the re-validation
// produced.
func FixSpacing(rt Runtime, source string, changes []repair.Change, testParams map[string]string, minGap int) Outcome {
	patched := repair.Apply(source, changes)
	out := Full(rt, patched, testParams, minGap)
	out.FixedSource = patched
	return out
}

// stagesThroughDiscovery runs parsing, compilation, execution, and
// discovery. On failure it returns the classified outcome; on success the
// discovered definitions (declaration order) and their names.
func stagesThroughDiscovery(rt Runtime, source string) ([]Definition, []string, *Outcome) {
	prog, err := rt.Parse(source)
	if err != nil {
		f := failure(StageParsing, err.Error())
		return nil, nil, &f
	}

	compiled, err := prog.Compile()
	if err != nil {
		f := failure(StageCompilation, err.Error())
		return nil, nil, &f
	}

	registry, err := compiled.Execute()
	if err != nil {
		f := failure(StageExecution, err.Error())
		return nil, nil, &f
	}

	declared := declaredCellNames(source)
	var defs []Definition
	var names []string
	for _, def := range registry.Definitions() {
		if declared[def.Name()] {
			defs = append(defs, def)
			names = append(names, def.Name())
		}
	}
	if len(defs) == 0 {
		f := failure(StageDiscovery, "No cell definitions found in the submitted source.")
		return nil, nil, &f
	}

	return defs, names, nil
}

// instantiateWithFallback tries default instantiation and retries once with
// the caller-supplied test parameters when the failure is specifically
// missing required parameter values.
func instantiateWithFallback(def Definition, testParams map[string]string) (Instance, error) {
	inst, err := def.Instantiate(nil)
	if err == nil {
		return inst, nil
	}
	if errors.Is(err, ErrMissingParams) && len(testParams) > 0 {
		return def.Instantiate(testParams)
	}
	return nil, err
}

// violationMessage renders violations as the feedback block fed to retry
// prompts and surfaced to users.
func violationMessage(violations []Violation) string {
	var b strings.Builder
	b.WriteString("Spacing violations found:")
	for _, v := range violations {
		b.WriteString("\n- ")
		b.WriteString(v.String())
	}
	return b.String()
}
