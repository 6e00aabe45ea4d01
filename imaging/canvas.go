// Package imaging implements the DIY design filters. Every filter works on a
// fixed 596×832 canvas: the source is scaled onto a #eeeeee background
// first, then transformed. Filters never modify their input.
package imaging

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"
	"math"

	xdraw "golang.org/x/image/draw"
)

// Canvas dimensions of an uploadable design.
const (
	Width  = 596
	Height = 832
)

// Background fills every canvas before the source is drawn.
var Background = color.RGBA{0xee, 0xee, 0xee, 0xff}

// Bounds is the canvas rectangle.
var Bounds = image.Rect(0, 0, Width, Height)

// NewCanvas returns a canvas filled with Background.
func NewCanvas() *image.RGBA {
	dst := image.NewRGBA(Bounds)
	draw.Draw(dst, dst.Bounds(), &image.Uniform{Background}, image.Point{}, draw.Src)
	return dst
}

// Compose draws src over a fresh canvas, scaled to fill it. Callers that
// care about the aspect ratio crop first (see Crop). A source that is
// already canvas-sized is copied pixel for pixel, so composing twice is a
// no-op on opaque images.
func Compose(src image.Image) *image.RGBA {
	dst := NewCanvas()
	sb := src.Bounds()
	if sb.Dx() == Width && sb.Dy() == Height {
		draw.Draw(dst, dst.Bounds(), src, sb.Min, draw.Over)
		return dst
	}
	xdraw.BiLinear.Scale(dst, dst.Bounds(), src, sb, draw.Over, nil)
	return dst
}

// AspectFit returns the largest rectangle with the canvas aspect ratio
// centered inside r.
func AspectFit(r image.Rectangle) image.Rectangle {
	w, h := r.Dx(), r.Dy()
	cw, ch := w, h
	if w*Height > h*Width {
		cw = max(1, h*Width/Height)
	} else {
		ch = max(1, w*Height/Width)
	}
	x0 := r.Min.X + (w-cw)/2
	y0 := r.Min.Y + (h-ch)/2
	return image.Rect(x0, y0, x0+cw, y0+ch)
}

// Crop cuts r out of src and composes it onto a canvas. r is clipped to
// src and then shrunk around its center to the canvas aspect ratio, so the
// result is never distorted. Passing src.Bounds() gives the default crop:
// the largest centered box.
func Crop(src image.Image, r image.Rectangle) (*image.RGBA, error) {
	clipped := r.Intersect(src.Bounds())
	if clipped.Empty() {
		return nil, fmt.Errorf("imaging: crop %v does not overlap image %v", r, src.Bounds())
	}
	return Compose(subImage(src, AspectFit(clipped))), nil
}

func subImage(src image.Image, r image.Rectangle) image.Image {
	if s, ok := src.(interface {
		SubImage(image.Rectangle) image.Image
	}); ok {
		return s.SubImage(r)
	}
	dst := image.NewRGBA(r)
	draw.Draw(dst, r, src, r.Min, draw.Src)
	return dst
}

// Fit scales src to the canvas size without a background, keeping
// transparency. It is used for segmentation output.
func Fit(src image.Image) *image.RGBA {
	dst := image.NewRGBA(Bounds)
	sb := src.Bounds()
	if sb.Dx() == Width && sb.Dy() == Height {
		draw.Draw(dst, dst.Bounds(), src, sb.Min, draw.Src)
		return dst
	}
	xdraw.BiLinear.Scale(dst, dst.Bounds(), src, sb, draw.Src, nil)
	return dst
}

// clamp8 rounds v to the nearest integer, ties to even, and clamps it to a
// channel value.
func clamp8(v float64) uint8 {
	r := math.RoundToEven(v)
	switch {
	case r <= 0:
		return 0
	case r >= 255:
		return 255
	default:
		return uint8(r)
	}
}

func luma(r, g, b uint8) float64 {
	return 0.299*float64(r) + 0.587*float64(g) + 0.114*float64(b)
}

// DecodePNG decodes a PNG image.
func DecodePNG(r io.Reader) (image.Image, error) {
	img, err := png.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("imaging: decode png: %w", err)
	}
	return img, nil
}

// EncodePNG writes img as PNG.
func EncodePNG(w io.Writer, img image.Image) error {
	if err := png.Encode(w, img); err != nil {
		return fmt.Errorf("imaging: encode png: %w", err)
	}
	return nil
}
