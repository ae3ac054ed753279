// Package ordrt is a self-contained reference runtime for the ORD subset
// emitted by the circuit generator.
//
// The staged validator treats the language runtime as an external
// collaborator behind the interfaces in pkg/validate; this package is the
// in-repo binding of that contract. It parses ORD source, performs the
// compile/execute/instantiate stages, derives a schematic view with
// bounding boxes, and renders it to SVG, enough for the worker process and
// the end-to-end tests to run without any external toolchain.
//
// Each stage fails with a distinct error type so the validator can classify
// the failure; the runtime itself never classifies.
package ordrt

import (
	"slices"

	"github.com/ordlab/ordpilot/pkg/geom"
)

// xy is an integer grid position.
type xy struct {
	X, Y int
}

// paramDecl is a cell parameter declaration, e.g. `w = Parameter(R, default=1u)`.
type paramDecl struct {
	Name       string
	Type       string
	Default    string
	HasDefault bool
	Line       int
}

// pinDecl is a symbol pin, e.g. `input a(.align=Orientation.West)`.
type pinDecl struct {
	Name  string
	Dir   string // input, output, inout
	Align string // North, South, East, West ("" when omitted)
	Line  int
}

// portDecl is a schematic port, e.g. `port vdd(.pos=(2,13); .align=Orientation.North)`.
type portDecl struct {
	Name   string
	Pos    xy
	HasPos bool
	Align  string
	Line   int
}

// netDecl is an internal net declaration, e.g. `net tail`.
type netDecl struct {
	Name string
	Line int
}

// conn is a pin-to-net connection, e.g. `.g -- inp`.
type conn struct {
	Pin  string
	Net  string
	Line int
}

// instanceDecl is a component instance in inline or block form.
type instanceDecl struct {
	Type   string
	Name   string
	Pos    xy
	HasPos bool
	Conns  []conn
	Params map[string]string // `.$l = 400n` style settings; values kept verbatim
	Line   int
}

// schematicDef is the body of a `viewgen schematic:` block.
// Declaration order is preserved: it drives element enumeration order in the
// derived view and therefore the determinism of spacing diagnostics.
type schematicDef struct {
	Ports     []*portDecl
	Nets      []*netDecl
	Instances []*instanceDecl

	// RouteDisabled names elements with `.route = False` statements.
	RouteDisabled map[string]bool

	// deferred holds statements of the form `name.$p = v` or `name.pin -- net`
	// that reference an instance declared earlier in the block (including the
	// bodies of `for x in a, b:` loops, expanded at parse time). They are
	// resolved during execution.
	deferred []deferredStmt
}

// deferredStmt is a post-declaration modification of a named instance.
type deferredStmt struct {
	Target string
	Param  string // set `.$param` when non-empty
	Value  string
	Pin    string // connect `.pin -- net` when non-empty
	Net    string
	Line   int
}

// symbolDef is the body of a `viewgen symbol:` block.
type symbolDef struct {
	Pins []*pinDecl
}

// cellDef is a parsed `cell Name:` declaration.
type cellDef struct {
	Name      string
	Params    []*paramDecl
	Symbol    *symbolDef
	Schematic *schematicDef
	Line      int
}

// program is a parsed ORD source file.
type program struct {
	Source  string
	Imports []string
	Cells   []*cellDef // declaration order
}

// componentSym describes the symbol of an instantiable component: its pins
// and the outline its instances occupy in a schematic.
type componentSym struct {
	Pins map[string]string // pin name -> alignment
	// Outline is the base bounding box at origin; instances translate it to
	// their position.
	Outline geom.Box
}

// pinNames returns the pin names sorted for stable error messages.
func (s *componentSym) pinNames() []string {
	names := make([]string, 0, len(s.Pins))
	for n := range s.Pins {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}
