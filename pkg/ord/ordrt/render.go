package ordrt

import (
	"fmt"
	"strings"

	"github.com/ordlab/ordpilot/pkg/geom"
	"github.com/ordlab/ordpilot/pkg/validate"
)

const (
	// gridScale is the pixel size of one schematic grid unit.
	gridScale = 20
	// renderMargin is the whitespace around the drawing, in grid units.
	renderMargin = 2
	// maxRenderCoord bounds the drawable area. Coordinates beyond it are a
	// rendering failure rather than a multi-gigabyte SVG.
	maxRenderCoord = 10000
)

// renderSVG draws the view as a standalone SVG document. The output is
// deterministic for a given element list: elements are drawn in order, the
// canvas is the union bounding box plus a fixed margin, and the Y axis is
// flipped so schematic "up" points up on screen.
func renderSVG(cellName string, elems []validate.Element) ([]byte, error) {
	if len(elems) == 0 {
		return nil, fmt.Errorf("cell %s: schematic view has no drawable elements", cellName)
	}

	bounds := elems[0].Box
	for _, el := range elems[1:] {
		bounds = bounds.Union(el.Box)
	}
	for _, el := range elems {
		if outOfRange(el.Box) {
			return nil, fmt.Errorf("cell %s: element %s at %s exceeds the drawable area",
				cellName, el.Name, el.Box)
		}
	}
	bounds = geom.NewBox(bounds.LX-renderMargin, bounds.LY-renderMargin,
		bounds.UX+renderMargin, bounds.UY+renderMargin)

	// Screen coordinates grow downwards; flip Y against the canvas top.
	px := func(x int) int { return (x - bounds.LX) * gridScale }
	py := func(y int) int { return (bounds.UY - y) * gridScale }

	var b strings.Builder
	fmt.Fprintf(&b, `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %d %d" width="%d" height="%d">`,
		bounds.Width()*gridScale, bounds.Height()*gridScale,
		bounds.Width()*gridScale, bounds.Height()*gridScale)
	b.WriteString("\n")
	fmt.Fprintf(&b, `<title>%s</title>`+"\n", cellName)
	b.WriteString(`<rect width="100%" height="100%" fill="white"/>` + "\n")

	for _, el := range elems {
		switch el.Kind {
		case validate.KindPort:
			fmt.Fprintf(&b, `<circle cx="%d" cy="%d" r="%d" fill="none" stroke="black"/>`+"\n",
				px(el.Box.LX), py(el.Box.LY), gridScale/4)
			fmt.Fprintf(&b, `<text x="%d" y="%d" font-size="%d">%s</text>`+"\n",
				px(el.Box.LX)+gridScale/2, py(el.Box.LY)-gridScale/4, gridScale/2, el.Name)
		default:
			fmt.Fprintf(&b, `<rect x="%d" y="%d" width="%d" height="%d" fill="none" stroke="black"/>`+"\n",
				px(el.Box.LX), py(el.Box.UY), el.Box.Width()*gridScale, el.Box.Height()*gridScale)
			fmt.Fprintf(&b, `<text x="%d" y="%d" font-size="%d">%s</text>`+"\n",
				px(el.Box.LX)+gridScale/4, py(el.Box.UY)+gridScale, gridScale/2, el.Name)
		}
	}

	b.WriteString("</svg>\n")
	return []byte(b.String()), nil
}

func outOfRange(b geom.Box) bool {
	return b.LX < -maxRenderCoord || b.LY < -maxRenderCoord ||
		b.UX > maxRenderCoord || b.UY > maxRenderCoord
}
