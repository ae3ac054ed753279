package validate

import (
	"errors"

	"github.com/ordlab/ordpilot/pkg/geom"
)

// The language-runtime collaborator contract.
//
// The validator does not model circuit semantics; it drives an external
// runtime through fallible stage transitions and classifies what comes back.
// Each method corresponds to one content stage; an error return fails that
// stage. Implementations must be side-effect free with respect to the host
// process; full validation always happens behind the worker boundary.

// Sentinel errors implementations wrap to refine classification.
var (
	// ErrMissingParams marks an instantiation failure caused specifically by
	// required parameters without defaults. The validator retries such a
	// failure once with caller-supplied test parameters.
	ErrMissingParams = errors.New("missing required parameters")

	// ErrNoView marks a definition that has no renderable schematic view.
	// The validator treats it as a soft miss and moves to the next candidate.
	ErrNoView = errors.New("no schematic view")
)

// Runtime parses source text into a program handle.
type Runtime interface {
	Parse(source string) (Program, error)
}

// Program is a parsed program awaiting compilation.
type Program interface {
	Compile() (Compiled, error)
}

// Compiled is a compiled program awaiting execution.
type Compiled interface {
	Execute() (Registry, error)
}

// Registry holds the definitions produced by executing a program,
// in declaration order.
type Registry interface {
	Definitions() []Definition
}

// Definition is a named, instantiable cell definition.
type Definition interface {
	Name() string

	// Instantiate constructs the definition with the given parameter
	// overrides. Implementations wrap ErrMissingParams when default
	// construction fails only because required parameters lack values.
	Instantiate(params map[string]string) (Instance, error)
}

// Instance is an instantiated definition.
type Instance interface {
	// Schematic returns the renderable view, or an error wrapping ErrNoView
	// when the definition declares none.
	Schematic() (View, error)
}

// View is a renderable schematic view.
type View interface {
	// Elements enumerates the layout elements of the view in a stable
	// order; spacing diagnostics follow this order.
	Elements() []Element

	// Render produces the schematic image (format opaque to the core).
	Render() ([]byte, error)
}

// ElementKind distinguishes the two classes of layout elements.
type ElementKind string

// Element kinds.
const (
	KindInstance ElementKind = "instance"
	KindPort     ElementKind = "port"
)

// Element is one layout element of a rendered view. Ports are zero-area
// boxes at their declared position; instances keep their true extent.
type Element struct {
	Name string
	Box  geom.Box
	Kind ElementKind
}
