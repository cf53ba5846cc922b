package corner

import (
	"testing"

	"github.com/matzehuels/mendel/pkg/geom"
	"github.com/matzehuels/mendel/pkg/raster"
)

// square returns a white image with a black filled square.
func square(w, h, x0, y0, x1, y1 int) *raster.Gray {
	pix := make([]uint8, w*h)
	for y := range h {
		for x := range w {
			v := uint8(255)
			if x >= x0 && x < x1 && y >= y0 && y < y1 {
				v = 0
			}
			pix[y*w+x] = v
		}
	}
	g, _ := raster.FromPix(w, h, pix)
	return g
}

func TestDetectFASTUniform(t *testing.T) {
	img := raster.New(20, 20, 128)
	if got := DetectFAST(img, Options{Threshold: 0}); len(got) != 0 {
		t.Errorf("uniform image should have no corners, got %d", len(got))
	}
}

func TestDetectFASTTooSmall(t *testing.T) {
	if got := DetectFAST(raster.New(6, 6, 0), Options{}); got != nil {
		t.Errorf("image smaller than the circle should yield nil, got %v", got)
	}
}

func TestDetectFASTSquare(t *testing.T) {
	img := square(30, 30, 10, 10, 20, 20)
	corners := DetectFAST(img, Options{Threshold: 40, Suppress: true})
	if len(corners) == 0 {
		t.Fatal("square should have corners")
	}

	// Every corner of the square should have a detection within 2 pixels.
	want := []geom.Point{geom.Pt(10, 10), geom.Pt(19, 10), geom.Pt(10, 19), geom.Pt(19, 19)}
	for _, w := range want {
		near := false
		for _, c := range corners {
			if c.Point().Distance(w) <= 2 {
				near = true
				break
			}
		}
		if !near {
			t.Errorf("no corner detected near %s in %v", w, corners)
		}
	}

	// Straight edge midpoints are not corners.
	for _, c := range corners {
		if c.X == 15 || c.Y == 15 {
			t.Errorf("edge midpoint reported as corner: %+v", c)
		}
	}
}

func TestDetectFASTRasterOrder(t *testing.T) {
	corners := DetectFAST(square(30, 30, 10, 10, 20, 20), Options{Threshold: 0})
	for i := 1; i < len(corners); i++ {
		a, b := corners[i-1], corners[i]
		if a.Y > b.Y || (a.Y == b.Y && a.X >= b.X) {
			t.Fatalf("corners not in raster order at %d: %+v then %+v", i, a, b)
		}
	}
}

func TestDetectFASTSuppressionReduces(t *testing.T) {
	img := square(30, 30, 10, 10, 20, 20)
	all := DetectFAST(img, Options{Threshold: 0})
	kept := DetectFAST(img, Options{Threshold: 0, Suppress: true})
	if len(kept) == 0 || len(kept) > len(all) {
		t.Errorf("suppression kept %d of %d corners", len(kept), len(all))
	}
}

func TestDetectFASTScore(t *testing.T) {
	// A single dark pixel on white: the whole circle is 255 brighter.
	pix := make([]uint8, 81)
	for i := range pix {
		pix[i] = 255
	}
	pix[4*9+4] = 0
	img, _ := raster.FromPix(9, 9, pix)

	corners := DetectFAST(img, Options{Threshold: 10})
	if len(corners) != 1 || corners[0].X != 4 || corners[0].Y != 4 {
		t.Fatalf("expected one corner at (4,4), got %v", corners)
	}
	if corners[0].Score != 254 {
		t.Errorf("score = %g, want 254", corners[0].Score)
	}
}

func TestContiguous(t *testing.T) {
	pos := func(d int) bool { return d > 0 }
	tests := []struct {
		name string
		ring [16]int
		want bool
	}{
		{"none", [16]int{}, false},
		{"eight", [16]int{1, 1, 1, 1, 1, 1, 1, 1}, false},
		{"nine", [16]int{1, 1, 1, 1, 1, 1, 1, 1, 1}, true},
		{"wraps", [16]int{1, 1, 1, 1, 0, 0, 0, 0, 0, 0, 0, 1, 1, 1, 1, 1}, true},
	}
	for _, tt := range tests {
		if got := contiguous(tt.ring, pos); got != tt.want {
			t.Errorf("%s: contiguous = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestPoints(t *testing.T) {
	pts := Points([]Corner{{X: 1, Y: 2}, {X: 3, Y: 4}})
	if len(pts) != 2 || pts[0] != geom.Pt(1, 2) || pts[1] != geom.Pt(3, 4) {
		t.Errorf("Points = %v", pts)
	}
}
