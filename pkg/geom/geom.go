// Package geom provides the integer bounding-box primitives shared by the
// spacing checker and the layout repair engine.
//
// Schematic coordinates are integer grid units with the origin at the lower
// left. A Box is an axis-aligned rectangle; a port is represented as a
// zero-area box at its declared position.
package geom

import "fmt"

// Box is an axis-aligned rectangle in schematic grid units.
// The invariant LX <= UX && LY <= UY holds for boxes produced by
// [NewBox] and [Point].
type Box struct {
	LX, LY int // lower-left corner
	UX, UY int // upper-right corner
}

// NewBox returns a normalized box covering the two corner points.
// Corners may be given in any order.
func NewBox(x1, y1, x2, y2 int) Box {
	if x2 < x1 {
		x1, x2 = x2, x1
	}
	if y2 < y1 {
		y1, y2 = y2, y1
	}
	return Box{LX: x1, LY: y1, UX: x2, UY: y2}
}

// Point returns the zero-area box at (x, y).
func Point(x, y int) Box {
	return Box{LX: x, LY: y, UX: x, UY: y}
}

// Width returns the horizontal extent of the box.
func (b Box) Width() int { return b.UX - b.LX }

// Height returns the vertical extent of the box.
func (b Box) Height() int { return b.UY - b.LY }

// Translate returns the box shifted by (dx, dy).
func (b Box) Translate(dx, dy int) Box {
	return Box{LX: b.LX + dx, LY: b.LY + dy, UX: b.UX + dx, UY: b.UY + dy}
}

// Union returns the smallest box covering b and o.
func (b Box) Union(o Box) Box {
	return Box{
		LX: min(b.LX, o.LX),
		LY: min(b.LY, o.LY),
		UX: max(b.UX, o.UX),
		UY: max(b.UY, o.UY),
	}
}

// AxisGap returns the clear distance between two intervals on one axis.
// Overlapping or touching intervals have a gap of zero.
func AxisGap(aLow, aHigh, bLow, bHigh int) int {
	return max(bLow-aHigh, aLow-bHigh, 0)
}

// GapX returns the clear horizontal distance between b and o.
func (b Box) GapX(o Box) int {
	return AxisGap(b.LX, b.UX, o.LX, o.UX)
}

// GapY returns the clear vertical distance between b and o.
func (b Box) GapY(o Box) int {
	return AxisGap(b.LY, b.UY, o.LY, o.UY)
}

// String formats the box as (lx,ly)-(ux,uy).
func (b Box) String() string {
	return fmt.Sprintf("(%d,%d)-(%d,%d)", b.LX, b.LY, b.UX, b.UY)
}
