// render.go draws one square PNG per asset: a centered glyph set in the
// configured font, or a play or pause shape filled with a vector rasterizer.

package main

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	"image/png"

	"golang.org/x/image/font"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
	"golang.org/x/image/vector"
)

// RenderAsset renders one asset and returns the PNG bytes. otFont may be nil
// when style draws a shape.
func RenderAsset(style AssetStyle, otFont *opentype.Font) ([]byte, error) {
	bg, err := ParseHexColor(style.BgColor)
	if err != nil {
		return nil, fmt.Errorf("parse bg_color: %w", err)
	}
	fg, err := ParseHexColor(style.FgColor)
	if err != nil {
		return nil, fmt.Errorf("parse fg_color: %w", err)
	}
	if style.Size <= 0 {
		return nil, fmt.Errorf("size must be positive, got %d", style.Size)
	}

	img := image.NewNRGBA(image.Rect(0, 0, style.Size, style.Size))
	draw.Draw(img, img.Bounds(), image.NewUniform(bg), image.Point{}, draw.Src)

	switch style.Shape {
	case ShapePlay, ShapePause:
		drawShape(img, style.Shape, image.NewUniform(fg))
	default:
		if otFont == nil {
			return nil, fmt.Errorf("glyph %q needs a font", style.Glyph)
		}
		if err := drawGlyph(img, style, otFont, image.NewUniform(fg)); err != nil {
			return nil, err
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// drawGlyph centers style.Glyph on img using its measured pixel bounds.
func drawGlyph(img draw.Image, style AssetStyle, otFont *opentype.Font, src image.Image) error {
	face, err := opentype.NewFace(otFont, &opentype.FaceOptions{
		Size:    float64(style.FontSize),
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return fmt.Errorf("create font face: %w", err)
	}
	defer face.Close()

	bounds, _ := font.BoundString(face, style.Glyph)
	w := (bounds.Max.X - bounds.Min.X).Ceil()
	h := (bounds.Max.Y - bounds.Min.Y).Ceil()

	d := &font.Drawer{
		Dst:  img,
		Src:  src,
		Face: face,
		Dot:  fixed.P((style.Size-w)/2-bounds.Min.X.Floor(), (style.Size-h)/2-bounds.Min.Y.Floor()),
	}
	d.DrawString(style.Glyph)
	return nil
}

// drawShape fills a play triangle or two pause bars inside the middle half
// of img.
func drawShape(img draw.Image, shape string, src image.Image) {
	size := float32(img.Bounds().Dx())
	lo, hi := size*0.25, size*0.75

	r := vector.NewRasterizer(img.Bounds().Dx(), img.Bounds().Dy())
	switch shape {
	case ShapePlay:
		// Shift right so the triangle's centroid sits in the middle.
		off := size * 0.04
		r.MoveTo(lo+off, lo)
		r.LineTo(hi+off, size/2)
		r.LineTo(lo+off, hi)
		r.ClosePath()
	case ShapePause:
		bar := (hi - lo) / 3
		for _, x := range []float32{lo, hi - bar} {
			r.MoveTo(x, lo)
			r.LineTo(x+bar, lo)
			r.LineTo(x+bar, hi)
			r.LineTo(x, hi)
			r.ClosePath()
		}
	}
	r.Draw(img, img.Bounds(), src, image.Point{})
}
