package validate

// Outcome is the classified result of validating one source artifact.
//
// Invariants:
//   - Success == true implies Code == "" and empty SpacingViolations.
//   - SVG is present only when rendering was attempted: always on success,
//     on spacing failures (the render happened before the check), and never
//     on earlier-stage failures.
//   - A failed outcome always carries both Stage and Code plus a free-text
//     Message for humans.
type Outcome struct {
	Success bool   `json:"success"`
	Stage   Stage  `json:"error_stage,omitempty"`
	Code    string `json:"error_code,omitempty"`
	Message string `json:"error_message,omitempty"`

	// CellNames lists the cells discovered in the source, in declaration
	// order, once discovery succeeded.
	CellNames []string `json:"cell_names,omitempty"`

	// SpacingViolations is non-empty exactly when Code == CodeSpacingViolation.
	SpacingViolations []Violation `json:"spacing_violations,omitempty"`

	// SVG is the rendered schematic, opaque to the core.
	SVG []byte `json:"svg,omitempty"`

	// FixedSource carries the patched artifact for fix_spacing operations.
	FixedSource string `json:"fixed_source,omitempty"`
}

// failure builds a failed Outcome for a stage with its canonical code.
func failure(stage Stage, message string) Outcome {
	return Outcome{
		Success: false,
		Stage:   stage,
		Code:    CodeForStage(stage),
		Message: message,
	}
}

// withCode overrides the outcome's error code (used for the
// missing-required-params refinement of instantiation failures).
func (o Outcome) withCode(code string) Outcome {
	o.Code = code
	return o
}

// withCells attaches discovered cell names.
func (o Outcome) withCells(names []string) Outcome {
	o.CellNames = names
	return o
}
