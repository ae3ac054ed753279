// Package validate implements the staged validator for generated ORD source.
//
// The validator drives an external language-runtime collaborator through a
// fixed, ordered pipeline: parsing, compilation, execution, cell discovery,
// instantiation, view access, rendering, and a geometric spacing check,
// short-circuiting on the first failure and classifying it with a distinct
// (stage, code) pair. Stage failures are never raised as Go errors: they are
// always normalized into an [Outcome] so callers can branch programmatically
// and surface the message verbatim.
//
// Because the source under validation is untrusted, caller-controlled text
// that gets executed, full validation runs inside an isolated worker process
// reached over a single-shot stdin/stdout JSON protocol with a hard timeout
// (see [Client]). Infrastructure failures around that boundary (spawn
// errors, timeouts, malformed responses) map to the distinct
// [StageRuntime] so callers can tell "the candidate is invalid" apart from
// "the validator itself failed".
package validate

// Stage identifies one step of the validation pipeline.
type Stage string

// Pipeline stages in execution order, plus the two out-of-band
// classifications: StageExtraction for "the model reply contained no code"
// (detected by the orchestrator before validation starts) and StageRuntime
// for failures of the validation infrastructure itself.
const (
	StageExtraction    Stage = "extraction"
	StageParsing       Stage = "parsing"
	StageCompilation   Stage = "compilation"
	StageExecution     Stage = "execution"
	StageDiscovery     Stage = "discovery"
	StageInstantiation Stage = "instantiation"
	StageViewAccess    Stage = "view_access"
	StageRendering     Stage = "rendering"
	StageSpacing       Stage = "spacing"
	StageRuntime       Stage = "runtime"
)

// Error codes, one per stage (instantiation has a second, more specific code
// for the missing-required-parameters case the validator retries on).
const (
	CodeNoCode             = "no_ord_code"
	CodeParseFailure       = "parse_failure"
	CodeCompileFailure     = "compile_failure"
	CodeExecFailure        = "exec_failure"
	CodeNoCellDiscovered   = "no_cell_discovered"
	CodeInstantiation      = "instantiation_failure"
	CodeMissingParams      = "missing_required_params"
	CodeViewAccessFailure  = "view_access_failure"
	CodeRenderFailure      = "render_failure"
	CodeSpacingViolation   = "spacing_violation"
	CodeValidationRuntime  = "validation_runtime"
)

// CodeForStage returns the canonical error code for a stage.
func CodeForStage(stage Stage) string {
	switch stage {
	case StageExtraction:
		return CodeNoCode
	case StageParsing:
		return CodeParseFailure
	case StageCompilation:
		return CodeCompileFailure
	case StageExecution:
		return CodeExecFailure
	case StageDiscovery:
		return CodeNoCellDiscovered
	case StageInstantiation:
		return CodeInstantiation
	case StageViewAccess:
		return CodeViewAccessFailure
	case StageRendering:
		return CodeRenderFailure
	case StageSpacing:
		return CodeSpacingViolation
	case StageRuntime:
		return CodeValidationRuntime
	}
	return ""
}
