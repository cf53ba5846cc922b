// Package raster loads images and exposes them as immutable grayscale
// luminance grids.
//
// A [Gray] is built once per run and then shared by every solver worker
// without synchronization; nothing in this package mutates it after
// construction. Out-of-bounds queries are a normal condition reported by
// [Gray.Luma], never a panic.
//
// Decoders for PNG, JPEG and GIF come from the standard library; BMP, TIFF and
// WebP are registered from golang.org/x/image.
package raster

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"image"
	"image/color"
	"image/draw"
	"io"
	"os"

	// Registered decoders.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/matzehuels/mendel/pkg/errors"
)

// Gray is a row-major 8-bit luminance grid.
type Gray struct {
	width  int
	height int
	pix    []uint8
}

// New returns a width×height grid filled with the given luminance.
func New(width, height int, fill uint8) *Gray {
	width, height = max(width, 0), max(height, 0)
	pix := make([]uint8, width*height)
	if fill != 0 {
		for i := range pix {
			pix[i] = fill
		}
	}
	return &Gray{width: width, height: height, pix: pix}
}

// FromPix wraps pix as a width×height grid. The slice is copied.
func FromPix(width, height int, pix []uint8) (*Gray, error) {
	if width < 0 || height < 0 || len(pix) != width*height {
		return nil, errors.New(errors.ErrCodeImage, "pixel buffer of %d bytes does not match %dx%d", len(pix), width, height)
	}
	return &Gray{width: width, height: height, pix: bytes.Clone(pix)}, nil
}

// Width returns the number of columns.
func (g *Gray) Width() int { return g.width }

// Height returns the number of rows.
func (g *Gray) Height() int { return g.height }

// InBounds reports whether (x, y) addresses a pixel of the grid.
func (g *Gray) InBounds(x, y int) bool {
	return x >= 0 && y >= 0 && x < g.width && y < g.height
}

// Luma returns the luminance at (x, y). ok is false when the coordinate lies
// outside the grid.
func (g *Gray) Luma(x, y int) (l uint8, ok bool) {
	if !g.InBounds(x, y) {
		return 0, false
	}
	return g.pix[y*g.width+x], true
}

// Hash returns a content hash of the grid, stable across processes. It is
// used as the image component of cache keys.
func (g *Gray) Hash() string {
	h := sha256.New()
	var dims [16]byte
	binary.LittleEndian.PutUint64(dims[:8], uint64(g.width))
	binary.LittleEndian.PutUint64(dims[8:], uint64(g.height))
	h.Write(dims[:])
	h.Write(g.pix)
	return hex.EncodeToString(h.Sum(nil))
}

// Image returns a copy of the grid as a standard library image.
func (g *Gray) Image() *image.Gray {
	img := image.NewGray(image.Rect(0, 0, g.width, g.height))
	for y := 0; y < g.height; y++ {
		copy(img.Pix[y*img.Stride:y*img.Stride+g.width], g.pix[y*g.width:(y+1)*g.width])
	}
	return img
}

// FromImage converts img to luminance. Translucent pixels are composited over
// white first, so transparent backgrounds read as light rather than dark.
func FromImage(img image.Image) *Gray {
	b := img.Bounds()
	g := New(b.Dx(), b.Dy(), 0)

	if src, ok := img.(*image.Gray); ok {
		for y := 0; y < g.height; y++ {
			off := (y+b.Min.Y-src.Rect.Min.Y)*src.Stride + (b.Min.X - src.Rect.Min.X)
			copy(g.pix[y*g.width:(y+1)*g.width], src.Pix[off:off+g.width])
		}
		return g
	}

	rgba := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(rgba, rgba.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.Draw(rgba, rgba.Bounds(), img, b.Min, draw.Over)

	for y := 0; y < g.height; y++ {
		for x := 0; x < g.width; x++ {
			c := color.GrayModel.Convert(rgba.NRGBAAt(x, y)).(color.Gray)
			g.pix[y*g.width+x] = c.Y
		}
	}
	return g
}

// Decode reads an image in any registered format and converts it to
// luminance. It also returns the detected format name.
func Decode(r io.Reader) (*Gray, string, error) {
	img, format, err := image.Decode(r)
	if err != nil {
		return nil, "", errors.Wrap(errors.ErrCodeImage, err, "decode image")
	}
	return FromImage(img), format, nil
}

// Load opens and decodes the image at path.
func Load(path string) (*Gray, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, errors.Wrap(errors.ErrCodeFileNotFound, err, "open %s", path)
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeImage, err, "open %s", path)
	}
	defer f.Close()

	g, _, err := Decode(f)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeImage, err, "load %s", path)
	}
	return g, nil
}
