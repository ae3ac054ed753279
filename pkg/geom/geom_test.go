package geom

import "testing"

func TestNewBoxNormalizes(t *testing.T) {
	b := NewBox(5, 7, 1, 2)
	if b.LX != 1 || b.LY != 2 || b.UX != 5 || b.UY != 7 {
		t.Errorf("NewBox did not normalize corners: %v", b)
	}
}

func TestPointIsZeroArea(t *testing.T) {
	p := Point(3, 4)
	if p.Width() != 0 || p.Height() != 0 {
		t.Errorf("Point should have zero area, got %dx%d", p.Width(), p.Height())
	}
}

func TestAxisGap(t *testing.T) {
	tests := []struct {
		name                       string
		aLow, aHigh, bLow, bHigh   int
		want                       int
	}{
		{"separated right", 0, 2, 5, 7, 3},
		{"separated left", 5, 7, 0, 2, 3},
		{"touching", 0, 2, 2, 4, 0},
		{"overlapping", 0, 4, 2, 6, 0},
		{"contained", 0, 10, 3, 5, 0},
		{"identical points", 2, 2, 2, 2, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := AxisGap(tt.aLow, tt.aHigh, tt.bLow, tt.bHigh); got != tt.want {
				t.Errorf("AxisGap(%d,%d,%d,%d) = %d, want %d",
					tt.aLow, tt.aHigh, tt.bLow, tt.bHigh, got, tt.want)
			}
		})
	}
}

func TestBoxGaps(t *testing.T) {
	a := NewBox(0, 0, 5, 5)
	b := NewBox(8, 0, 12, 5) // 3 to the right, vertically overlapping

	if got := a.GapX(b); got != 3 {
		t.Errorf("GapX = %d, want 3", got)
	}
	if got := a.GapY(b); got != 0 {
		t.Errorf("GapY = %d, want 0", got)
	}

	// Gap is symmetric.
	if a.GapX(b) != b.GapX(a) || a.GapY(b) != b.GapY(a) {
		t.Error("gaps should be symmetric")
	}
}

func TestUnionTranslate(t *testing.T) {
	a := NewBox(0, 0, 2, 2)
	b := NewBox(5, 5, 7, 9)

	u := a.Union(b)
	if u != (Box{0, 0, 7, 9}) {
		t.Errorf("Union = %v", u)
	}

	m := a.Translate(10, -1)
	if m != (Box{10, -1, 12, 1}) {
		t.Errorf("Translate = %v", m)
	}
}
