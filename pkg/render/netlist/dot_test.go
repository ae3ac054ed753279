package netlist

import (
	"strings"
	"testing"

	"github.com/ordlab/ordpilot/pkg/ord/ordrt"
)

var inverter = ordrt.Netlist{
	Cell:  "Inv",
	Ports: []string{"vdd", "vss", "a", "y"},
	Instances: []ordrt.NetlistInstance{
		{Name: "m_p", Component: "Pmos"},
		{Name: "m_n", Component: "Nmos"},
	},
	Edges: []ordrt.NetlistEdge{
		{Instance: "m_p", Pin: "g", Net: "a"},
		{Instance: "m_p", Pin: "d", Net: "y"},
		{Instance: "m_n", Pin: "g", Net: "a"},
		{Instance: "m_n", Pin: "d", Net: "y"},
	},
}

func TestToDOT(t *testing.T) {
	dot := ToDOT(inverter, Options{})

	if !strings.HasPrefix(dot, `graph "Inv" {`) {
		t.Errorf("header:\n%s", dot)
	}
	for _, want := range []string{
		`"vdd" [shape=diamond`,
		`"m_p" [label="m_p"]`,
		`"m_p" -- "a" [label="g"]`,
		`"m_n" -- "y" [label="d"]`,
	} {
		if !strings.Contains(dot, want) {
			t.Errorf("DOT missing %q:\n%s", want, dot)
		}
	}
	if strings.Contains(dot, "Pmos") {
		t.Error("plain labels include component types")
	}
}

func TestToDOTDetailed(t *testing.T) {
	dot := ToDOT(inverter, Options{Detailed: true})
	if !strings.Contains(dot, `"m_p" [label="m_p\nPmos"]`) {
		t.Errorf("detailed label missing:\n%s", dot)
	}
}

func TestToDOTNets(t *testing.T) {
	nl := ordrt.Netlist{
		Cell: "Tail",
		Nets: []string{"tail"},
		Instances: []ordrt.NetlistInstance{
			{Name: "m1", Component: "Nmos"},
		},
		Edges: []ordrt.NetlistEdge{{Instance: "m1", Pin: "s", Net: "tail"}},
	}
	dot := ToDOT(nl, Options{})
	if !strings.Contains(dot, `"tail" [shape=ellipse`) {
		t.Errorf("net node missing:\n%s", dot)
	}
}

func TestRenderSVG(t *testing.T) {
	svg, err := RenderSVG(ToDOT(inverter, Options{}))
	if err != nil {
		t.Fatal(err)
	}
	out := string(svg)
	if !strings.Contains(out, "<svg") || !strings.Contains(out, "m_p") {
		t.Errorf("svg = %.200s", out)
	}
}

func TestRenderSVGRejectsBadDOT(t *testing.T) {
	if _, err := RenderSVG("graph {"); err == nil {
		t.Fatal("malformed DOT accepted")
	}
}

func TestRender(t *testing.T) {
	source := `# -*- version: ord2 -*-
cell Follower:
    viewgen schematic:
        port vdd(.pos=(4, 18); .align=Orientation.North)
        port a(.pos=(0, 8); .align=Orientation.West)
        port y(.pos=(14, 8); .align=Orientation.East)

        Nmos m1(.pos=(4, 8); .g -- a; .s -- y; .d -- vdd; .b -- y)`

	out, err := Render(source, Options{})
	if err != nil {
		t.Fatal(err)
	}
	svg, ok := out["Follower"]
	if !ok || !strings.Contains(string(svg), "m1") {
		t.Fatalf("render output = %v", out)
	}
}
