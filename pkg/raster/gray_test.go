package raster

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"golang.org/x/image/bmp"

	"github.com/matzehuels/mendel/pkg/errors"
)

func TestLumaBounds(t *testing.T) {
	g := New(4, 3, 17)

	tests := []struct {
		x, y   int
		wantOK bool
	}{
		{0, 0, true},
		{3, 2, true},
		{4, 0, false},
		{0, 3, false},
		{-1, 0, false},
		{0, -1, false},
	}
	for _, tt := range tests {
		l, ok := g.Luma(tt.x, tt.y)
		if ok != tt.wantOK {
			t.Errorf("Luma(%d, %d) ok = %v, want %v", tt.x, tt.y, ok, tt.wantOK)
		}
		if ok && l != 17 {
			t.Errorf("Luma(%d, %d) = %d, want 17", tt.x, tt.y, l)
		}
	}
}

func TestFromPix(t *testing.T) {
	pix := []uint8{0, 50, 100, 150, 200, 250}
	g, err := FromPix(3, 2, pix)
	if err != nil {
		t.Fatalf("FromPix: %v", err)
	}
	pix[0] = 99 // must not alias
	if l, _ := g.Luma(0, 0); l != 0 {
		t.Errorf("FromPix should copy the buffer, got %d", l)
	}
	if l, _ := g.Luma(2, 1); l != 250 {
		t.Errorf("Luma(2, 1) = %d, want 250", l)
	}

	if _, err := FromPix(3, 3, pix); !errors.Is(err, errors.ErrCodeImage) {
		t.Errorf("mismatched buffer should be an image error, got %v", err)
	}
}

func TestDecodePNG(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 5, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 5; x++ {
			src.Set(x, y, color.White)
		}
	}
	src.Set(2, 1, color.Black)

	var buf bytes.Buffer
	if err := png.Encode(&buf, src); err != nil {
		t.Fatal(err)
	}

	g, format, err := Decode(&buf)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if format != "png" {
		t.Errorf("format = %q, want png", format)
	}
	if g.Width() != 5 || g.Height() != 4 {
		t.Errorf("size = %dx%d, want 5x4", g.Width(), g.Height())
	}
	if l, _ := g.Luma(2, 1); l != 0 {
		t.Errorf("black pixel luma = %d, want 0", l)
	}
	if l, _ := g.Luma(0, 0); l != 255 {
		t.Errorf("white pixel luma = %d, want 255", l)
	}
}

func TestDecodeBMP(t *testing.T) {
	src := image.NewGray(image.Rect(0, 0, 3, 3))
	src.SetGray(1, 1, color.Gray{Y: 42})

	var buf bytes.Buffer
	if err := bmp.Encode(&buf, src); err != nil {
		t.Fatal(err)
	}

	g, format, err := Decode(&buf)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if format != "bmp" {
		t.Errorf("format = %q, want bmp", format)
	}
	if l, _ := g.Luma(1, 1); l != 42 {
		t.Errorf("Luma(1, 1) = %d, want 42", l)
	}
}

func TestTransparentIsLight(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 2, 1))
	src.SetNRGBA(0, 0, color.NRGBA{0, 0, 0, 0})   // fully transparent
	src.SetNRGBA(1, 0, color.NRGBA{0, 0, 0, 255}) // opaque black

	g := FromImage(src)
	if l, _ := g.Luma(0, 0); l != 255 {
		t.Errorf("transparent pixel luma = %d, want 255", l)
	}
	if l, _ := g.Luma(1, 0); l != 0 {
		t.Errorf("opaque black luma = %d, want 0", l)
	}
}

func TestFromImageOffsetBounds(t *testing.T) {
	src := image.NewGray(image.Rect(10, 10, 13, 12))
	src.SetGray(11, 11, color.Gray{Y: 7})

	g := FromImage(src)
	if g.Width() != 3 || g.Height() != 2 {
		t.Fatalf("size = %dx%d, want 3x2", g.Width(), g.Height())
	}
	if l, _ := g.Luma(1, 1); l != 7 {
		t.Errorf("Luma(1, 1) = %d, want 7", l)
	}
}

func TestDecodeGarbage(t *testing.T) {
	_, _, err := Decode(strings.NewReader("not an image"))
	if !errors.Is(err, errors.ErrCodeImage) {
		t.Errorf("garbage input should be an image error, got %v", err)
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()

	if _, err := Load(filepath.Join(dir, "missing.png")); !errors.Is(err, errors.ErrCodeFileNotFound) {
		t.Errorf("missing file should be FILE_NOT_FOUND, got %v", err)
	}

	path := filepath.Join(dir, "img.png")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := png.Encode(f, image.NewGray(image.Rect(0, 0, 8, 6))); err != nil {
		t.Fatal(err)
	}
	f.Close()

	g, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if g.Width() != 8 || g.Height() != 6 {
		t.Errorf("size = %dx%d, want 8x6", g.Width(), g.Height())
	}
}

func TestHash(t *testing.T) {
	a := New(4, 4, 0)
	b := New(4, 4, 0)
	if a.Hash() != b.Hash() {
		t.Error("identical grids should hash equally")
	}
	if a.Hash() == New(2, 8, 0).Hash() {
		t.Error("different dimensions should hash differently")
	}
	if a.Hash() == New(4, 4, 1).Hash() {
		t.Error("different content should hash differently")
	}
}

func TestImageRoundTrip(t *testing.T) {
	g, _ := FromPix(2, 2, []uint8{1, 2, 3, 4})
	back := FromImage(g.Image())
	if back.Hash() != g.Hash() {
		t.Error("Image() and FromImage should preserve content")
	}
}
