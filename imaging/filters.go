package imaging

import (
	"image"
	"math"
	"sort"

	"github.com/fogleman/gg"
)

// Filter transforms an image into a new canvas-sized image.
type Filter func(src image.Image) *image.RGBA

var registry = map[string]Filter{
	"grayscale": Grayscale,
	"sketch":    Sketch,
	"halftone":  Halftone,
}

// Lookup returns the filter registered under name.
func Lookup(name string) (Filter, bool) {
	f, ok := registry[name]
	return f, ok
}

// Names lists the registered filters in sorted order.
func Names() []string {
	out := make([]string, 0, len(registry))
	for k := range registry {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Grayscale replaces every pixel's color with its luma
// (0.299R + 0.587G + 0.114B). Alpha is untouched. Applying it twice gives
// the same result as applying it once.
func Grayscale(src image.Image) *image.RGBA {
	dst := Compose(src)
	p := dst.Pix
	for i := 0; i < len(p); i += 4 {
		y := clamp8(luma(p[i], p[i+1], p[i+2]))
		p[i], p[i+1], p[i+2] = y, y, y
	}
	return dst
}

// Sketch renders Sobel edge strength as dark lines on white:
// 255 - min(255, |∇luma|). The outermost 1-pixel frame keeps the composed
// colors; only interior pixels have a full 3×3 neighbourhood.
func Sketch(src image.Image) *image.RGBA {
	dst := Compose(src)
	w, h := Width, Height
	stride := dst.Stride

	// Luma is stored at float32 precision; the gradients are float64.
	gray := make([]float32, w*h)
	for y := 0; y < h; y++ {
		row := dst.Pix[y*stride:]
		for x := 0; x < w; x++ {
			i := x * 4
			gray[y*w+x] = float32(luma(row[i], row[i+1], row[i+2]))
		}
	}
	at := func(x, y int) float64 { return float64(gray[y*w+x]) }

	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			tl, t, tr := at(x-1, y-1), at(x, y-1), at(x+1, y-1)
			l, r := at(x-1, y), at(x+1, y)
			bl, b, br := at(x-1, y+1), at(x, y+1), at(x+1, y+1)

			gx := -tl + tr - 2*l + 2*r - bl + br
			gy := -tl - 2*t - tr + bl + 2*b + br
			v := clamp8(255 - math.Min(255, math.Sqrt(gx*gx+gy*gy)))

			i := y*stride + x*4
			dst.Pix[i], dst.Pix[i+1], dst.Pix[i+2] = v, v, v
		}
	}
	return dst
}

// Halftone parameters.
const (
	CellSize      = 9
	halftoneWhite = 235
	halftoneScale = 0.7
)

// Halftone redraws the image as a grid of colored dots on a plain canvas.
// Each CellSize×CellSize cell is sampled at its center pixel; near-white
// cells (mean channel value above 235) stay empty, darker cells get a dot
// of radius 0.7·CellSize·(1 - mean/255), at least 1.
func Halftone(src image.Image) *image.RGBA {
	img := Compose(src)
	dst := NewCanvas()
	dc := gg.NewContextForRGBA(dst)

	for y := 0; y < Height; y += CellSize {
		sy := min(y+CellSize/2, Height-1)
		for x := 0; x < Width; x += CellSize {
			sx := min(x+CellSize/2, Width-1)
			i := img.PixOffset(sx, sy)
			r, g, b := img.Pix[i], img.Pix[i+1], img.Pix[i+2]

			avg := (float64(r) + float64(g) + float64(b)) / 3
			if avg > halftoneWhite {
				continue
			}
			radius := math.Max(1, CellSize*(1-avg/255)*halftoneScale)

			dc.SetRGB255(int(r), int(g), int(b))
			dc.DrawCircle(float64(x)+CellSize/2.0, float64(y)+CellSize/2.0, radius)
			dc.Fill()
		}
	}
	return dst
}
