package ordrt

import (
	"fmt"
	"strings"

	"github.com/ordlab/ordpilot/pkg/geom"
	"github.com/ordlab/ordpilot/pkg/validate"
)

// baseOutline is the footprint of a component with at most one pin per
// side. Cells with more pins on a side grow by one grid unit per extra pin
// so the pins stay on integer positions.
const baseOutline = 5

// Runtime evaluates parsed ORD programs. It satisfies [validate.Runtime].
type Runtime struct {
	builtins map[string]*componentSym
}

// New returns a runtime with the builtin component library loaded.
func New() *Runtime {
	box := geom.NewBox(0, 0, baseOutline, baseOutline)
	return &Runtime{builtins: map[string]*componentSym{
		"Nmos": {Pins: map[string]string{"g": "West", "d": "North", "s": "South", "b": "East"}, Outline: box},
		"Pmos": {Pins: map[string]string{"g": "West", "d": "South", "s": "North", "b": "East"}, Outline: box},
		"Res":  {Pins: map[string]string{"p": "North", "n": "South"}, Outline: box},
		"Cap":  {Pins: map[string]string{"p": "North", "n": "South"}, Outline: box},
		"Ind":  {Pins: map[string]string{"p": "North", "n": "South"}, Outline: box},
	}}
}

// Parse implements [validate.Runtime].
func (r *Runtime) Parse(source string) (validate.Program, error) {
	prog, err := parse(source)
	if err != nil {
		return nil, err
	}
	return &programHandle{rt: r, prog: prog}, nil
}

// programHandle is a parsed program awaiting compilation.
type programHandle struct {
	rt   *Runtime
	prog *program
}

// Compile checks the program's static structure: cell names must be unique
// and every name inside a schematic (ports, nets, instances) must be
// declared exactly once.
func (p *programHandle) Compile() (validate.Compiled, error) {
	seen := make(map[string]int)
	for _, cell := range p.prog.Cells {
		if prev, ok := seen[cell.Name]; ok {
			return nil, fmt.Errorf("line %d: cell %s already defined at line %d", cell.Line, cell.Name, prev)
		}
		seen[cell.Name] = cell.Line

		if cell.Schematic != nil {
			if err := checkSchematicNames(cell); err != nil {
				return nil, err
			}
		}
		if cell.Symbol != nil {
			pins := make(map[string]int)
			for _, pin := range cell.Symbol.Pins {
				if prev, ok := pins[pin.Name]; ok {
					return nil, fmt.Errorf("line %d: pin %s of cell %s already declared at line %d", pin.Line, pin.Name, cell.Name, prev)
				}
				pins[pin.Name] = pin.Line
			}
		}
	}
	return &compiledHandle{rt: p.rt, prog: p.prog}, nil
}

func checkSchematicNames(cell *cellDef) error {
	decl := make(map[string]int)
	add := func(name string, line int) error {
		if prev, ok := decl[name]; ok {
			return fmt.Errorf("line %d: %s already declared at line %d in cell %s", line, name, prev, cell.Name)
		}
		decl[name] = line
		return nil
	}
	for _, port := range cell.Schematic.Ports {
		if err := add(port.Name, port.Line); err != nil {
			return err
		}
	}
	for _, net := range cell.Schematic.Nets {
		if err := add(net.Name, net.Line); err != nil {
			return err
		}
	}
	for _, inst := range cell.Schematic.Instances {
		if err := add(inst.Name, inst.Line); err != nil {
			return err
		}
	}
	return nil
}

// compiledHandle is a compiled program awaiting execution.
type compiledHandle struct {
	rt   *Runtime
	prog *program
}

// Execute resolves name references and builds the definition registry.
// Deferred statements attach to their target instances here, and every
// connection must name a port or net declared on an earlier line; the ORD
// evaluator runs top to bottom and an unknown name fails at this stage, not
// during parsing.
func (c *compiledHandle) Execute() (validate.Registry, error) {
	reg := &registry{rt: c.rt, prog: c.prog, cells: make(map[string]*cellDef)}
	for _, cell := range c.prog.Cells {
		reg.cells[cell.Name] = cell
		if cell.Schematic == nil {
			continue
		}
		if err := resolveSchematic(cell); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

func resolveSchematic(cell *cellDef) error {
	sch := cell.Schematic

	instances := make(map[string]*instanceDecl, len(sch.Instances))
	for _, inst := range sch.Instances {
		instances[inst.Name] = inst
	}
	for _, stmt := range sch.deferred {
		inst, ok := instances[stmt.Target]
		if !ok {
			return fmt.Errorf("line %d: name %q is not defined in cell %s", stmt.Line, stmt.Target, cell.Name)
		}
		if stmt.Line < inst.Line {
			return fmt.Errorf("line %d: name %q is not defined yet in cell %s", stmt.Line, stmt.Target, cell.Name)
		}
		switch {
		case stmt.Param != "":
			inst.Params[stmt.Param] = stmt.Value
		case stmt.Pin != "":
			inst.Conns = append(inst.Conns, conn{Pin: stmt.Pin, Net: stmt.Net, Line: stmt.Line})
		}
	}

	netLine := make(map[string]int)
	for _, port := range sch.Ports {
		netLine[port.Name] = port.Line
	}
	for _, net := range sch.Nets {
		netLine[net.Name] = net.Line
	}
	for _, inst := range sch.Instances {
		for _, cn := range inst.Conns {
			declared, ok := netLine[cn.Net]
			if !ok {
				return fmt.Errorf("line %d: name %q is not defined in cell %s", cn.Line, cn.Net, cell.Name)
			}
			if declared > cn.Line {
				return fmt.Errorf("line %d: name %q is not defined yet in cell %s", cn.Line, cn.Net, cell.Name)
			}
		}
	}

	for name := range sch.RouteDisabled {
		if _, ok := netLine[name]; !ok {
			return fmt.Errorf("cell %s: route setting targets unknown element %q", cell.Name, name)
		}
	}
	return nil
}

// registry holds the executed program's cell definitions.
type registry struct {
	rt    *Runtime
	prog  *program
	cells map[string]*cellDef
}

// Definitions returns one definition per cell in declaration order.
func (r *registry) Definitions() []validate.Definition {
	defs := make([]validate.Definition, 0, len(r.prog.Cells))
	for _, cell := range r.prog.Cells {
		defs = append(defs, &definition{reg: r, cell: cell})
	}
	return defs
}

// symbolFor resolves an instance type to its component symbol: builtins
// first, then cells defined in the same program.
func (r *registry) symbolFor(typeName string) (*componentSym, error) {
	if sym, ok := r.rt.builtins[typeName]; ok {
		return sym, nil
	}
	cell, ok := r.cells[typeName]
	if !ok {
		return nil, fmt.Errorf("unknown component type %q", typeName)
	}
	if cell.Symbol == nil {
		return nil, fmt.Errorf("cell %s has no symbol view and cannot be instantiated in a schematic", cell.Name)
	}
	return cellSymbol(cell), nil
}

// cellSymbol derives an instantiable symbol from a cell's symbol view. The
// outline starts at the base footprint and each side wider than one pin
// grows the matching dimension by one unit per extra pin.
func cellSymbol(cell *cellDef) *componentSym {
	pins := make(map[string]string, len(cell.Symbol.Pins))
	perSide := make(map[string]int)
	for _, pin := range cell.Symbol.Pins {
		pins[pin.Name] = pin.Align
		if pin.Align != "" {
			perSide[pin.Align]++
		}
	}
	width := baseOutline + max(0, max(perSide["North"], perSide["South"])-1)
	height := baseOutline + max(0, max(perSide["West"], perSide["East"])-1)
	return &componentSym{Pins: pins, Outline: geom.NewBox(0, 0, width, height)}
}

// definition is an instantiable cell.
type definition struct {
	reg  *registry
	cell *cellDef
}

func (d *definition) Name() string { return d.cell.Name }

// Instantiate binds parameter values and resolves every instance in the
// cell's schematic against its component symbol. A missing required
// parameter reports [validate.ErrMissingParams] so callers can retry with
// test values.
func (d *definition) Instantiate(params map[string]string) (validate.Instance, error) {
	resolved, err := d.resolveParams(params)
	if err != nil {
		return nil, err
	}

	inst := &instanceHandle{cellName: d.cell.Name, sch: d.cell.Schematic}
	if d.cell.Schematic == nil {
		return inst, nil
	}

	for _, decl := range d.cell.Schematic.Instances {
		sym, err := d.reg.symbolFor(decl.Type)
		if err != nil {
			return nil, fmt.Errorf("instance %s: %w", decl.Name, err)
		}
		if !decl.HasPos {
			return nil, fmt.Errorf("instance %s of cell %s has no position", decl.Name, d.cell.Name)
		}
		for _, cn := range decl.Conns {
			if _, ok := sym.Pins[cn.Pin]; !ok {
				return nil, fmt.Errorf("component %s has no pin %q (pins: %s)",
					decl.Type, cn.Pin, strings.Join(sym.pinNames(), ", "))
			}
		}
		for _, value := range decl.Params {
			ref, ok := strings.CutPrefix(value, "self.")
			if !ok {
				continue
			}
			if _, ok := resolved[ref]; !ok {
				return nil, fmt.Errorf("instance %s of cell %s references undefined parameter self.%s",
					decl.Name, d.cell.Name, ref)
			}
		}
		inst.elems = append(inst.elems, validate.Element{
			Name: decl.Name,
			Box:  sym.Outline.Translate(decl.Pos.X, decl.Pos.Y),
			Kind: validate.KindInstance,
		})
	}

	for _, port := range d.cell.Schematic.Ports {
		if !port.HasPos {
			return nil, fmt.Errorf("port %s of cell %s has no position", port.Name, d.cell.Name)
		}
		inst.elems = append(inst.elems, validate.Element{
			Name: port.Name,
			Box:  geom.Point(port.Pos.X, port.Pos.Y),
			Kind: validate.KindPort,
		})
	}

	return inst, nil
}

func (d *definition) resolveParams(params map[string]string) (map[string]string, error) {
	declared := make(map[string]*paramDecl, len(d.cell.Params))
	for _, p := range d.cell.Params {
		declared[p.Name] = p
	}
	for name := range params {
		if _, ok := declared[name]; !ok {
			return nil, fmt.Errorf("cell %s has no parameter %q", d.cell.Name, name)
		}
	}

	resolved := make(map[string]string, len(d.cell.Params))
	var missing []string
	for _, p := range d.cell.Params {
		switch {
		case params[p.Name] != "":
			resolved[p.Name] = params[p.Name]
		case p.HasDefault:
			resolved[p.Name] = p.Default
		default:
			missing = append(missing, p.Name)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: cell %s requires values for: %s",
			validate.ErrMissingParams, d.cell.Name, strings.Join(missing, ", "))
	}
	return resolved, nil
}

// instanceHandle is an instantiated cell.
type instanceHandle struct {
	cellName string
	sch      *schematicDef
	elems    []validate.Element
}

// Schematic returns the cell's schematic view or [validate.ErrNoView].
func (h *instanceHandle) Schematic() (validate.View, error) {
	if h.sch == nil {
		return nil, fmt.Errorf("%w: cell %s has no schematic view", validate.ErrNoView, h.cellName)
	}
	return &viewHandle{cellName: h.cellName, elems: h.elems}, nil
}

// viewHandle is a derived schematic view.
type viewHandle struct {
	cellName string
	elems    []validate.Element
}

// Elements returns instances in declaration order followed by ports in
// declaration order.
func (v *viewHandle) Elements() []validate.Element { return v.elems }

// Render produces a standalone SVG of the view.
func (v *viewHandle) Render() ([]byte, error) {
	return renderSVG(v.cellName, v.elems)
}
