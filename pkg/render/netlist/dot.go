// Package netlist renders cell connectivity as a node-link diagram.
//
// The schematic SVG produced by the validator shows placement; this package
// shows topology. Instances are boxes, ports are diamonds, internal nets
// are small ellipses, and each edge is one pin-to-net connection labeled
// with the pin name. The DOT output is laid out with Graphviz.
package netlist

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strconv"

	"github.com/goccy/go-graphviz"

	"github.com/ordlab/ordpilot/pkg/ord/ordrt"
)

// Options configures node-link diagram rendering.
type Options struct {
	// Detailed includes the component type in instance labels.
	// When false, only the instance name is shown.
	Detailed bool
}

// ToDOT converts a cell netlist to Graphviz DOT format.
// The resulting DOT string can be rendered with [RenderSVG].
func ToDOT(nl ordrt.Netlist, opts Options) string {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "graph %q {\n", nl.Cell)
	buf.WriteString("  layout=neato;\n")
	buf.WriteString("  overlap=false;\n")
	buf.WriteString("  bgcolor=\"transparent\";\n")
	buf.WriteString("  node [shape=box, style=\"rounded,filled\", fillcolor=white, fontsize=14];\n")
	buf.WriteString("  edge [fontsize=10, fontcolor=grey30];\n")
	buf.WriteString("\n")

	for _, p := range nl.Ports {
		fmt.Fprintf(&buf, "  %q [shape=diamond, fillcolor=lightyellow];\n", p)
	}
	for _, n := range nl.Nets {
		fmt.Fprintf(&buf, "  %q [shape=ellipse, fillcolor=lightgrey, fontsize=10];\n", n)
	}
	for _, inst := range nl.Instances {
		fmt.Fprintf(&buf, "  %q [label=%q];\n", inst.Name, fmtLabel(inst, opts.Detailed))
	}

	buf.WriteString("\n")
	for _, e := range nl.Edges {
		fmt.Fprintf(&buf, "  %q -- %q [label=%q];\n", e.Instance, e.Net, e.Pin)
	}

	buf.WriteString("}\n")
	return buf.String()
}

func fmtLabel(inst ordrt.NetlistInstance, detailed bool) string {
	if !detailed {
		return inst.Name
	}
	return inst.Name + "\n" + inst.Component
}

// RenderSVG renders a DOT graph to SVG using Graphviz.
func RenderSVG(dot string) ([]byte, error) {
	ctx := context.Background()
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("init graphviz: %w", err)
	}
	defer gv.Close()

	g, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return nil, fmt.Errorf("parse DOT: %w", err)
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, graphviz.SVG, &buf); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	return normalizeViewBox(buf.Bytes()), nil
}

var (
	svgTagRe  = regexp.MustCompile(`<svg[^>]*>`)
	viewBoxRe = regexp.MustCompile(`viewBox="([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)"`)
)

func normalizeViewBox(svg []byte) []byte {
	match := viewBoxRe.FindSubmatch(svg)
	if match == nil {
		return svg
	}

	w, _ := strconv.ParseFloat(string(match[3]), 64)
	h, _ := strconv.ParseFloat(string(match[4]), 64)
	if w == 0 || h == 0 {
		return svg
	}

	newSvg := fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %.2f %.2f" width="%.0f" height="%.0f">`,
		w, h, w, h)

	return svgTagRe.ReplaceAll(svg, []byte(newSvg))
}

// Render extracts every cell netlist from source and renders each to SVG,
// keyed by cell name.
func Render(source string, opts Options) (map[string][]byte, error) {
	lists, err := ordrt.New().Netlists(source)
	if err != nil {
		return nil, err
	}
	out := make(map[string][]byte, len(lists))
	for _, nl := range lists {
		svg, err := RenderSVG(ToDOT(nl, opts))
		if err != nil {
			return nil, fmt.Errorf("cell %s: %w", nl.Cell, err)
		}
		out[nl.Cell] = svg
	}
	return out, nil
}
