package ordrt

import (
	"errors"
	"strings"
	"testing"

	"github.com/ordlab/ordpilot/pkg/geom"
	"github.com/ordlab/ordpilot/pkg/validate"
)

const diffPairSource = `# -*- version: ord2 -*-
from ordlib import helpers

cell DiffPair:
    l = Parameter(R, default=400n)
    w = Parameter(R, default=2u)

    viewgen symbol:
        input inp(.align=Orientation.West)
        input inn(.align=Orientation.West)
        output outp(.align=Orientation.East)
        output outn(.align=Orientation.East)
        helpers.symbol_place_pins(ctx.root)

    viewgen schematic:
        port vdd(.pos=(2, 24); .align=Orientation.North)
        port vss(.pos=(2, 0); .align=Orientation.South)
        port inp(.pos=(0, 12); .align=Orientation.West)
        port inn(.pos=(22, 12); .align=Orientation.East)
        net tail

        Nmos m_inp(.pos=(4, 10); .g -- inp; .s -- tail; .b -- vss)
        Nmos m_inn:
            .pos = (14, 10)
            .g -- inn
            .s -- tail
            .b -- vss
            .$l = self.l

        for m in m_inp, m_inn:
            m.$w = self.w

        helpers.resolve_instances(ctx.root)
        return ctx.root
`

func mustValidate(t *testing.T, source string) validate.Registry {
	t.Helper()
	prog, err := New().Parse(source)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	compiled, err := prog.Compile()
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	reg, err := compiled.Execute()
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	return reg
}

func TestParseDiffPair(t *testing.T) {
	prog, err := parse(diffPairSource)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(prog.Cells) != 1 {
		t.Fatalf("got %d cells, want 1", len(prog.Cells))
	}
	cell := prog.Cells[0]
	if cell.Name != "DiffPair" {
		t.Errorf("cell name = %q", cell.Name)
	}
	if len(cell.Params) != 2 || !cell.Params[0].HasDefault {
		t.Errorf("params = %+v", cell.Params)
	}
	if cell.Symbol == nil || len(cell.Symbol.Pins) != 4 {
		t.Fatalf("symbol pins = %+v", cell.Symbol)
	}
	sch := cell.Schematic
	if sch == nil {
		t.Fatal("no schematic")
	}
	if len(sch.Ports) != 4 || len(sch.Nets) != 1 || len(sch.Instances) != 2 {
		t.Fatalf("ports=%d nets=%d instances=%d", len(sch.Ports), len(sch.Nets), len(sch.Instances))
	}
	// The for loop expands to one deferred statement per target.
	if len(sch.deferred) != 2 {
		t.Fatalf("deferred = %+v", sch.deferred)
	}
	if sch.Instances[1].Params["l"] != "self.l" {
		t.Errorf("block instance params = %+v", sch.Instances[1].Params)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name   string
		source string
		want   string
	}{
		{"top level garbage", "x = 1\n", "unexpected top-level statement"},
		{"empty cell", "cell A:\ncell B:\n    net x\n", "empty body"},
		{"bad port arg", "cell A:\n    viewgen schematic:\n        port p(.bogus=1)\n", "unexpected port argument"},
		{"bad for target", "cell A:\n    viewgen schematic:\n        for m in f(x):\n            m.$w = 1\n", "unsupported loop target"},
		{"foreign loop var", "cell A:\n    viewgen schematic:\n        for m in a, b:\n            q.$w = 1\n", "loop variable"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parse(tt.source)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not contain %q", err, tt.want)
			}
			var pe *ParseError
			if !errors.As(err, &pe) {
				t.Errorf("error is not a *ParseError: %T", err)
			}
		})
	}
}

func TestCompileRejectsDuplicates(t *testing.T) {
	tests := []struct {
		name   string
		source string
		want   string
	}{
		{
			"duplicate cell",
			"cell A:\n    viewgen schematic:\n        net x\ncell A:\n    viewgen schematic:\n        net y\n",
			"already defined",
		},
		{
			"duplicate element",
			"cell A:\n    viewgen schematic:\n        net x\n        net x\n",
			"already declared",
		},
		{
			"duplicate pin",
			"cell A:\n    viewgen symbol:\n        input a(.align=Orientation.West)\n        input a(.align=Orientation.East)\n",
			"already declared",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prog, err := New().Parse(tt.source)
			if err != nil {
				t.Fatalf("Parse: %v", err)
			}
			if _, err := prog.Compile(); err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Compile error = %v, want %q", err, tt.want)
			}
		})
	}
}

func TestExecuteRejectsUnknownNames(t *testing.T) {
	tests := []struct {
		name   string
		source string
		want   string
	}{
		{
			"unknown net",
			"cell A:\n    viewgen schematic:\n        Nmos m(.pos=(0, 0); .g -- ghost)\n",
			`"ghost" is not defined`,
		},
		{
			"net declared after use",
			"cell A:\n    viewgen schematic:\n        Nmos m(.pos=(0, 0); .g -- late)\n        net late\n",
			"not defined yet",
		},
		{
			"deferred target missing",
			"cell A:\n    viewgen schematic:\n        net x\n        ghost.$w = 1\n",
			`"ghost" is not defined`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prog, err := New().Parse(tt.source)
			if err != nil {
				t.Fatalf("Parse: %v", err)
			}
			compiled, err := prog.Compile()
			if err != nil {
				t.Fatalf("Compile: %v", err)
			}
			if _, err := compiled.Execute(); err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Execute error = %v, want %q", err, tt.want)
			}
		})
	}
}

func TestInstantiateDiffPair(t *testing.T) {
	reg := mustValidate(t, diffPairSource)
	defs := reg.Definitions()
	if len(defs) != 1 || defs[0].Name() != "DiffPair" {
		t.Fatalf("definitions = %v", defs)
	}

	inst, err := defs[0].Instantiate(nil)
	if err != nil {
		t.Fatalf("Instantiate: %v", err)
	}
	view, err := inst.Schematic()
	if err != nil {
		t.Fatalf("Schematic: %v", err)
	}

	elems := view.Elements()
	wantOrder := []string{"m_inp", "m_inn", "vdd", "vss", "inp", "inn"}
	if len(elems) != len(wantOrder) {
		t.Fatalf("got %d elements, want %d", len(elems), len(wantOrder))
	}
	for i, name := range wantOrder {
		if elems[i].Name != name {
			t.Errorf("elems[%d] = %s, want %s", i, elems[i].Name, name)
		}
	}
	if got, want := elems[0].Box, geom.NewBox(4, 10, 9, 15); got != want {
		t.Errorf("m_inp box = %v, want %v", got, want)
	}
	if got, want := elems[2].Box, geom.Point(2, 24); got != want {
		t.Errorf("vdd box = %v, want %v", got, want)
	}
	if elems[2].Kind != validate.KindPort || elems[0].Kind != validate.KindInstance {
		t.Error("element kinds wrong")
	}
}

func TestInstantiateMissingParams(t *testing.T) {
	source := "cell A:\n    w = Parameter(R)\n    viewgen schematic:\n        port p(.pos=(0, 0))\n"
	reg := mustValidate(t, source)
	def := reg.Definitions()[0]

	_, err := def.Instantiate(nil)
	if !errors.Is(err, validate.ErrMissingParams) {
		t.Fatalf("err = %v, want ErrMissingParams", err)
	}
	if _, err := def.Instantiate(map[string]string{"w": "1u"}); err != nil {
		t.Fatalf("Instantiate with params: %v", err)
	}
	if _, err := def.Instantiate(map[string]string{"nope": "1"}); err == nil {
		t.Fatal("unknown parameter accepted")
	}
}

func TestInstantiateErrors(t *testing.T) {
	tests := []struct {
		name   string
		source string
		want   string
	}{
		{
			"unknown component",
			"cell A:\n    viewgen schematic:\n        net x\n        Warp m(.pos=(0, 0))\n",
			"unknown component type",
		},
		{
			"unknown pin",
			"cell A:\n    viewgen schematic:\n        net x\n        Nmos m(.pos=(0, 0); .q -- x)\n",
			`no pin "q"`,
		},
		{
			"missing position",
			"cell A:\n    viewgen schematic:\n        net x\n        Nmos m(.g -- x)\n",
			"no position",
		},
		{
			"undefined self param",
			"cell A:\n    viewgen schematic:\n        net x\n        Nmos m(.pos=(0, 0); .$l = self.l)\n",
			"undefined parameter self.l",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := mustValidate(t, tt.source)
			_, err := reg.Definitions()[0].Instantiate(nil)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Instantiate error = %v, want %q", err, tt.want)
			}
		})
	}
}

func TestSchematicMissing(t *testing.T) {
	source := "cell A:\n    viewgen symbol:\n        input a(.align=Orientation.West)\n"
	reg := mustValidate(t, source)
	inst, err := reg.Definitions()[0].Instantiate(nil)
	if err != nil {
		t.Fatalf("Instantiate: %v", err)
	}
	if _, err := inst.Schematic(); !errors.Is(err, validate.ErrNoView) {
		t.Fatalf("err = %v, want ErrNoView", err)
	}
}

func TestSubcellOutlineGrowth(t *testing.T) {
	source := diffPairSource + `
cell Amp:
    viewgen schematic:
        port out(.pos=(30, 10); .align=Orientation.East)
        net a
        net b
        DiffPair dp(.pos=(10, 10); .inp -- a; .inn -- b)
`
	reg := mustValidate(t, source)
	defs := reg.Definitions()
	inst, err := defs[1].Instantiate(nil)
	if err != nil {
		t.Fatalf("Instantiate: %v", err)
	}
	view, err := inst.Schematic()
	if err != nil {
		t.Fatalf("Schematic: %v", err)
	}
	// DiffPair's symbol puts two pins on West and two on East: the outline
	// grows one unit in height and none in width.
	if got, want := view.Elements()[0].Box, geom.NewBox(10, 10, 15, 16); got != want {
		t.Errorf("dp box = %v, want %v", got, want)
	}
}

func TestRenderSVG(t *testing.T) {
	reg := mustValidate(t, diffPairSource)
	inst, err := reg.Definitions()[0].Instantiate(nil)
	if err != nil {
		t.Fatalf("Instantiate: %v", err)
	}
	view, err := inst.Schematic()
	if err != nil {
		t.Fatalf("Schematic: %v", err)
	}
	svg, err := view.Render()
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	out := string(svg)
	for _, want := range []string{"<svg", "DiffPair", "m_inp", "vdd", "</svg>"} {
		if !strings.Contains(out, want) {
			t.Errorf("svg missing %q", want)
		}
	}

	again, err := view.Render()
	if err != nil {
		t.Fatalf("second Render: %v", err)
	}
	if string(again) != out {
		t.Error("render output is not deterministic")
	}
}

func TestRenderRejectsHugeCoordinates(t *testing.T) {
	source := "cell A:\n    viewgen schematic:\n        port p(.pos=(999999, 0))\n"
	reg := mustValidate(t, source)
	inst, err := reg.Definitions()[0].Instantiate(nil)
	if err != nil {
		t.Fatalf("Instantiate: %v", err)
	}
	view, err := inst.Schematic()
	if err != nil {
		t.Fatalf("Schematic: %v", err)
	}
	if _, err := view.Render(); err == nil || !strings.Contains(err.Error(), "drawable area") {
		t.Errorf("Render error = %v", err)
	}
}
