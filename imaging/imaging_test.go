package imaging_test

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/draw"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/firasghr/HeyteaDIY/apperr"
	"github.com/firasghr/HeyteaDIY/imaging"
)

func solid(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), &image.Uniform{c}, image.Point{}, draw.Src)
	return img
}

// gradient has a distinct color in every pixel, so filters have edges to
// find.
func gradient() *image.RGBA {
	img := image.NewRGBA(imaging.Bounds)
	for y := 0; y < imaging.Height; y++ {
		for x := 0; x < imaging.Width; x++ {
			img.SetRGBA(x, y, color.RGBA{uint8(x), uint8(y), uint8(x ^ y), 0xff})
		}
	}
	return img
}

func TestCompose_ScalesAndFillsBackground(t *testing.T) {
	out := imaging.Compose(solid(10, 10, color.RGBA{255, 0, 0, 255}))
	assert.Equal(t, imaging.Bounds, out.Bounds())
	assert.Equal(t, color.RGBA{255, 0, 0, 255}, out.RGBAAt(300, 400))

	clear := image.NewRGBA(image.Rect(0, 0, 5, 5))
	out = imaging.Compose(clear)
	assert.Equal(t, imaging.Background, out.RGBAAt(0, 0))
	assert.Equal(t, imaging.Background, out.RGBAAt(imaging.Width-1, imaging.Height-1))
}

func TestCompose_DoesNotModifySource(t *testing.T) {
	src := gradient()
	before := append([]uint8(nil), src.Pix...)
	for _, name := range imaging.Names() {
		f, ok := imaging.Lookup(name)
		require.True(t, ok)
		f(src)
	}
	assert.Equal(t, before, src.Pix)
}

func TestGrayscale(t *testing.T) {
	out := imaging.Grayscale(solid(imaging.Width, imaging.Height, color.RGBA{100, 150, 200, 255}))
	// 0.299*100 + 0.587*150 + 0.114*200 = 140.75
	assert.Equal(t, color.RGBA{141, 141, 141, 255}, out.RGBAAt(10, 10))
}

func TestGrayscale_Idempotent(t *testing.T) {
	once := imaging.Grayscale(gradient())
	twice := imaging.Grayscale(once)
	assert.Equal(t, once.Pix, twice.Pix)
}

func TestSketch_UniformInteriorIsWhite(t *testing.T) {
	c := color.RGBA{30, 60, 90, 255}
	out := imaging.Sketch(solid(imaging.Width, imaging.Height, c))
	for y := 1; y < imaging.Height-1; y++ {
		for x := 1; x < imaging.Width-1; x++ {
			if got := out.RGBAAt(x, y); got != (color.RGBA{255, 255, 255, 255}) {
				t.Fatalf("pixel (%d,%d) = %v, want white", x, y, got)
			}
		}
	}
	// The frame keeps the composed color.
	assert.Equal(t, c, out.RGBAAt(0, 0))
	assert.Equal(t, c, out.RGBAAt(imaging.Width-1, 200))
	assert.Equal(t, c, out.RGBAAt(200, imaging.Height-1))
}

func TestSketch_FindsEdge(t *testing.T) {
	img := solid(imaging.Width, imaging.Height, color.RGBA{255, 255, 255, 255})
	draw.Draw(img, image.Rect(0, 0, imaging.Width/2, imaging.Height), &image.Uniform{color.RGBA{0, 0, 0, 255}}, image.Point{}, draw.Src)
	out := imaging.Sketch(img)
	edge := out.RGBAAt(imaging.Width/2, 400)
	assert.Equal(t, uint8(0), edge.R, "strong vertical edge should be black")
	assert.Equal(t, uint8(255), out.RGBAAt(100, 400).R)
}

func TestHalftone_WhiteInputIsPlainBackground(t *testing.T) {
	out := imaging.Halftone(solid(imaging.Width, imaging.Height, color.RGBA{250, 250, 250, 255}))
	want := imaging.NewCanvas()
	assert.Equal(t, want.Pix, out.Pix)
}

func TestHalftone_GrayInputDrawsDots(t *testing.T) {
	gray := color.RGBA{128, 128, 128, 255}
	out := imaging.Halftone(solid(imaging.Width, imaging.Height, gray))
	// Radius is 9·(1-128/255)·0.7 ≈ 3.14, so cell centers are covered...
	assert.Equal(t, gray, out.RGBAAt(4, 4))
	assert.Equal(t, gray, out.RGBAAt(9+4, 9+4))
	// ...and cell corners are not.
	assert.Equal(t, imaging.Background, out.RGBAAt(0, 0))
	assert.Equal(t, imaging.Background, out.RGBAAt(9, 9))
}

func TestHalftone_WhiteThreshold(t *testing.T) {
	black := color.RGBA{0, 0, 0, 255}
	cases := []struct {
		name   string
		gray   uint8
		center color.RGBA
		near   color.RGBA // two pixels right of the cell center
	}{
		{"at threshold gets a minimum dot", 235, color.RGBA{235, 235, 235, 255}, imaging.Background},
		{"above threshold stays empty", 236, imaging.Background, imaging.Background},
		{"black gets the largest dot", 0, black, black},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := color.RGBA{tc.gray, tc.gray, tc.gray, 255}
			out := imaging.Halftone(solid(imaging.Width, imaging.Height, c))
			assert.Equal(t, tc.center, out.RGBAAt(4, 4))
			assert.Equal(t, tc.near, out.RGBAAt(6, 4))
		})
	}
}

func TestSketch_MatchesSobelReference(t *testing.T) {
	src := gradient()
	out := imaging.Sketch(src)

	gray := make([]float32, imaging.Width*imaging.Height)
	for y := 0; y < imaging.Height; y++ {
		for x := 0; x < imaging.Width; x++ {
			p := src.RGBAAt(x, y)
			gray[y*imaging.Width+x] = float32(0.299*float64(p.R) + 0.587*float64(p.G) + 0.114*float64(p.B))
		}
	}
	at := func(x, y int) float64 { return float64(gray[y*imaging.Width+x]) }

	for y := 1; y < imaging.Height-1; y++ {
		for x := 1; x < imaging.Width-1; x++ {
			gx := -at(x-1, y-1) + at(x+1, y-1) - 2*at(x-1, y) + 2*at(x+1, y) - at(x-1, y+1) + at(x+1, y+1)
			gy := -at(x-1, y-1) - 2*at(x, y-1) - at(x+1, y-1) + at(x-1, y+1) + 2*at(x, y+1) + at(x+1, y+1)
			v := math.RoundToEven(255 - math.Min(255, math.Sqrt(gx*gx+gy*gy)))
			want := uint8(math.Max(0, v))
			if got := out.RGBAAt(x, y); got.R != want || got.G != want || got.B != want {
				t.Fatalf("pixel (%d,%d) = %v, want gray %d", x, y, got, want)
			}
		}
	}
}

func TestAspectFit(t *testing.T) {
	cases := []struct {
		name string
		in   image.Rectangle
		want image.Rectangle
	}{
		{"canvas", imaging.Bounds, imaging.Bounds},
		{"wide", image.Rect(0, 0, 1000, 500), image.Rect(321, 0, 679, 500)},
		{"tall", image.Rect(0, 0, 596, 2000), image.Rect(0, 584, 596, 1416)},
		{"offset", image.Rect(100, 100, 1292, 932), image.Rect(398, 100, 994, 932)},
		{"sliver", image.Rect(0, 0, 1, 1), image.Rect(0, 0, 1, 1)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, imaging.AspectFit(tc.in))
		})
	}
}

func TestCrop_KeepsAspect(t *testing.T) {
	// A blue band in the middle third of a wide red image. The default
	// crop is narrower than the band, so no red survives.
	src := solid(1000, 500, color.RGBA{255, 0, 0, 255})
	draw.Draw(src, image.Rect(300, 0, 700, 500), &image.Uniform{color.RGBA{0, 0, 255, 255}}, image.Point{}, draw.Src)

	out, err := imaging.Crop(src, src.Bounds())
	require.NoError(t, err)
	assert.Equal(t, imaging.Bounds, out.Bounds())
	for _, p := range []image.Point{{0, 0}, {imaging.Width - 1, 0}, {imaging.Width / 2, imaging.Height / 2}, {0, imaging.Height - 1}} {
		assert.Equal(t, color.RGBA{0, 0, 255, 255}, out.RGBAAt(p.X, p.Y), "pixel %v", p)
	}
	assert.Equal(t, color.RGBA{255, 0, 0, 255}, src.RGBAAt(0, 0))
}

func TestCrop_OutsideImage(t *testing.T) {
	_, err := imaging.Crop(solid(10, 10, color.RGBA{1, 2, 3, 255}), image.Rect(20, 20, 40, 40))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not overlap")
}

func TestLookup(t *testing.T) {
	assert.Equal(t, []string{"grayscale", "halftone", "sketch"}, imaging.Names())
	_, ok := imaging.Lookup("sepia")
	assert.False(t, ok)
}

func TestPNGRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, imaging.EncodePNG(&buf, imaging.NewCanvas()))
	img, err := imaging.DecodePNG(&buf)
	require.NoError(t, err)
	assert.Equal(t, imaging.Bounds, img.Bounds())

	_, err = imaging.DecodePNG(bytes.NewReader([]byte("not a png")))
	assert.Error(t, err)
}

func TestHTTPSegmenter(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f, _, err := r.FormFile("file")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		defer f.Close()
		if _, err := imaging.DecodePNG(f); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		// Reply at half size with a transparent left half.
		out := image.NewRGBA(image.Rect(0, 0, imaging.Width/2, imaging.Height/2))
		draw.Draw(out, image.Rect(imaging.Width/4, 0, imaging.Width/2, imaging.Height/2),
			&image.Uniform{color.RGBA{0, 0, 255, 255}}, image.Point{}, draw.Src)
		w.Header().Set("Content-Type", "image/png")
		imaging.EncodePNG(w, out)
	}))
	defer srv.Close()

	out, err := imaging.NewHTTPSegmenter(srv.URL).Segment(context.Background(), imaging.NewCanvas())
	require.NoError(t, err)
	assert.Equal(t, imaging.Bounds, out.Bounds())
	assert.Equal(t, uint8(0), out.RGBAAt(10, 10).A)
	assert.Equal(t, color.RGBA{0, 0, 255, 255}, out.RGBAAt(imaging.Width-10, 10))
}

func TestHTTPSegmenter_Failure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model offline", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := imaging.NewHTTPSegmenter(srv.URL).Segment(context.Background(), imaging.NewCanvas())
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindProcessing))
}
