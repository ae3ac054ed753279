package validate

import (
	"fmt"

	"github.com/ordlab/ordpilot/pkg/geom"
)

// DefaultMinGap is the required clear distance, in grid units, between the
// bounding boxes of two axis-aligned elements.
const DefaultMinGap = 2

// Axis names used in violation diagnostics.
const (
	AxisHorizontal = "horizontal"
	AxisVertical   = "vertical"
)

// Violation describes one pairwise spacing problem between two layout
// elements. Either Overlap is true (both axis gaps are zero, meaning the boxes
// overlap, touch edges, or touch corners) or Axis carries the separating
// axis whose clear gap fell short of the requirement.
type Violation struct {
	ElementA string   `json:"element_a"`
	ElementB string   `json:"element_b"`
	BoxA     geom.Box `json:"box_a"`
	BoxB     geom.Box `json:"box_b"`
	Overlap  bool     `json:"overlap,omitempty"`
	Axis     string   `json:"axis,omitempty"`
	Required int      `json:"required_gap,omitempty"`
	Actual   int      `json:"actual_gap"`
}

// String formats the violation for retry feedback and user display.
func (v Violation) String() string {
	if v.Overlap {
		return fmt.Sprintf("%s and %s: bounding boxes overlap or touch", v.ElementA, v.ElementB)
	}
	return fmt.Sprintf("%s at (%d,%d) and %s at (%d,%d): %d-unit %s gap (need %d)",
		v.ElementA, v.BoxA.LX, v.BoxA.LY,
		v.ElementB, v.BoxB.LX, v.BoxB.LY,
		v.Actual, v.Axis, v.Required)
}

// CheckSpacing verifies the pairwise spacing invariant over every element
// of a rendered view.
//
// Rules, per unordered pair:
//   - Port-port pairs are exempt: ports are expected to cluster at
//     connection points.
//   - Zero gap on both axes is an overlap/touch violation; meeting edges
//     or corners is not allowed.
//   - A positive gap on both axes means diagonal separation: never a
//     violation, regardless of distance.
//   - Otherwise the elements are axis-aligned and the separating axis must
//     have at least minGap clear units.
//
// Violation order follows element enumeration order, which the View
// contract requires to be stable, so diagnostics are reproducible.
func CheckSpacing(view View, minGap int) []Violation {
	elements := view.Elements()

	var violations []Violation
	for i := 0; i < len(elements); i++ {
		a := elements[i]
		for j := i + 1; j < len(elements); j++ {
			b := elements[j]

			if a.Kind == KindPort && b.Kind == KindPort {
				continue
			}

			xGap := a.Box.GapX(b.Box)
			yGap := a.Box.GapY(b.Box)

			// Diagonal separation is not an adjacency violation.
			if xGap > 0 && yGap > 0 {
				continue
			}

			if xGap == 0 && yGap == 0 {
				violations = append(violations, Violation{
					ElementA: a.Name, ElementB: b.Name,
					BoxA: a.Box, BoxB: b.Box,
					Overlap: true,
				})
				continue
			}

			axis, gap := AxisVertical, yGap
			if xGap > 0 {
				axis, gap = AxisHorizontal, xGap
			}
			if gap < minGap {
				violations = append(violations, Violation{
					ElementA: a.Name, ElementB: b.Name,
					BoxA: a.Box, BoxB: b.Box,
					Axis: axis, Required: minGap, Actual: gap,
				})
			}
		}
	}
	return violations
}
