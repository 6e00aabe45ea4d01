package imaging

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/firasghr/HeyteaDIY/apperr"
)

// Segmenter removes the background of an image, returning a copy whose
// background pixels are transparent.
type Segmenter interface {
	Segment(ctx context.Context, img *image.RGBA) (*image.RGBA, error)
}

// SegmenterFunc adapts a function to the Segmenter interface.
type SegmenterFunc func(ctx context.Context, img *image.RGBA) (*image.RGBA, error)

// Segment calls f.
func (f SegmenterFunc) Segment(ctx context.Context, img *image.RGBA) (*image.RGBA, error) {
	return f(ctx, img)
}

// maxSegmentReply caps the PNG a segmentation service may return.
const maxSegmentReply = 32 << 20

// HTTPSegmenter calls a background-removal service that accepts a PNG in a
// multipart "file" field and answers with a PNG.
type HTTPSegmenter struct {
	URL    string
	Client *http.Client
}

// NewHTTPSegmenter returns an HTTPSegmenter with a 60 s client timeout.
func NewHTTPSegmenter(url string) *HTTPSegmenter {
	return &HTTPSegmenter{URL: url, Client: &http.Client{Timeout: 60 * time.Second}}
}

// Segment posts img and decodes the reply, rescaled to the canvas size.
// Every failure is a KindProcessing error.
func (s *HTTPSegmenter) Segment(ctx context.Context, img *image.RGBA) (*image.RGBA, error) {
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	fw, err := mw.CreateFormFile("file", "image.png")
	if err != nil {
		return nil, apperr.Processing("background removal failed", err)
	}
	if err := EncodePNG(fw, img); err != nil {
		return nil, apperr.Processing("background removal failed", err)
	}
	if err := mw.Close(); err != nil {
		return nil, apperr.Processing("background removal failed", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.URL, body)
	if err != nil {
		return nil, apperr.Processing("background removal failed", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Accept", "image/png")

	hc := s.Client
	if hc == nil {
		hc = http.DefaultClient
	}
	resp, err := hc.Do(req)
	if err != nil {
		return nil, apperr.Processing("background removal failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<20)) //nolint:errcheck
		return nil, apperr.Processing(
			fmt.Sprintf("background removal failed: service returned status %d", resp.StatusCode), nil)
	}
	out, err := DecodePNG(io.LimitReader(resp.Body, maxSegmentReply))
	if err != nil {
		return nil, apperr.Processing("background removal failed", err)
	}
	return Fit(out), nil
}
