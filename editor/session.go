// Package editor runs the design editing flow: load an image, apply filters
// or background removal one at a time, undo. It owns the history stack and
// rejects new work while a transform is in flight.
package editor

import (
	"context"
	"fmt"
	"image"
	"io"
	"sync"

	"github.com/firasghr/HeyteaDIY/apperr"
	"github.com/firasghr/HeyteaDIY/history"
	"github.com/firasghr/HeyteaDIY/imaging"
)

// Labels of the non-filter transforms.
const (
	LabelRemoveBackground = "remove-background"
	LabelCrop             = "crop"
)

// ErrBusy is matched (errors.Is) by the error returned when an operation is
// attempted while another transform is running.
var ErrBusy = &apperr.Error{Kind: apperr.KindBusy}

// State is a snapshot of the session's state machine: Idle, or Busy with
// the label of the running transform.
type State struct {
	Busy  bool
	Label string
}

func (s State) String() string {
	if !s.Busy {
		return "idle"
	}
	return "busy(" + s.Label + ")"
}

// Session is one editing flow. All methods are safe to call from several
// goroutines; at most one transform runs at a time and the others fail
// fast with ErrBusy instead of queueing.
type Session struct {
	seg imaging.Segmenter

	mu    sync.Mutex
	state State
	hist  history.Stack
	src   image.Image // as loaded, before any crop
}

// New returns an idle Session with an empty history. seg may be nil, in
// which case RemoveBackground always fails.
func New(seg imaging.Segmenter) *Session {
	return &Session{seg: seg}
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// begin moves Idle -> Busy(label) and returns the current image (nil when
// nothing is loaded).
func (s *Session) begin(label string) (*image.RGBA, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Busy {
		return nil, apperr.New(apperr.KindBusy,
			fmt.Sprintf("editor is busy: %s in progress", s.state.Label))
	}
	s.state = State{Busy: true, Label: label}
	cur, _ := s.hist.Current()
	return cur.Image, nil
}

// end moves Busy -> Idle. A nil img means the transform failed and history
// is left untouched; reset replaces the history instead of pushing.
func (s *Session) end(label string, img *image.RGBA, reset bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case img == nil:
	case reset:
		s.hist.Reset(img, label)
	default:
		s.hist.Push(label, img)
	}
	s.state = State{}
}

// Load decodes a PNG, crops the largest centered box with the canvas aspect
// ratio and makes the result the only history entry.
func (s *Session) Load(r io.Reader) error {
	if _, err := s.begin(history.DefaultLabel); err != nil {
		return err
	}
	src, err := imaging.DecodePNG(r)
	if err != nil {
		s.end("", nil, false)
		return apperr.Wrap(apperr.KindValidation, "image must be a PNG", err)
	}
	return s.finishLoad(src)
}

// LoadImage is Load for an already decoded image.
func (s *Session) LoadImage(src image.Image) error {
	if _, err := s.begin(history.DefaultLabel); err != nil {
		return err
	}
	return s.finishLoad(src)
}

func (s *Session) finishLoad(src image.Image) error {
	out, err := imaging.Crop(src, src.Bounds())
	if err != nil {
		s.end("", nil, false)
		return apperr.Wrap(apperr.KindValidation, "image is empty", err)
	}
	s.mu.Lock()
	s.src = src
	s.mu.Unlock()
	s.end(history.DefaultLabel, out, true)
	return nil
}

// Crop cuts r (in the loaded image's coordinates) out of the loaded image
// and restarts the history from the result, discarding earlier edits. r is
// shrunk around its center to the canvas aspect ratio.
func (s *Session) Crop(r image.Rectangle) (*image.RGBA, error) {
	if _, err := s.begin(LabelCrop); err != nil {
		return nil, err
	}
	s.mu.Lock()
	src := s.src
	s.mu.Unlock()
	if src == nil {
		s.end("", nil, false)
		return nil, apperr.Validation("no image loaded")
	}
	out, err := imaging.Crop(src, r)
	if err != nil {
		s.end("", nil, false)
		return nil, apperr.Wrap(apperr.KindValidation, fmt.Sprintf("crop %v is outside the image", r), err)
	}
	s.end(history.DefaultLabel, out, true)
	return out, nil
}

// Apply runs the named filter on the current image and pushes the result.
func (s *Session) Apply(name string) (*image.RGBA, error) {
	f, ok := imaging.Lookup(name)
	if !ok {
		return nil, apperr.Validation(fmt.Sprintf("unknown filter %q", name))
	}
	cur, err := s.begin(name)
	if err != nil {
		return nil, err
	}
	if cur == nil {
		s.end("", nil, false)
		return nil, apperr.Validation("no image loaded")
	}
	out, err := runFilter(name, f, cur)
	s.end(name, out, false)
	return out, err
}

func runFilter(name string, f imaging.Filter, src *image.RGBA) (out *image.RGBA, err error) {
	defer func() {
		if r := recover(); r != nil {
			out = nil
			err = apperr.Processing(fmt.Sprintf("%s filter failed: %v", name, r), nil)
		}
	}()
	return f(src), nil
}

// RemoveBackground sends the current image to the segmenter and pushes its
// result. Failures are KindProcessing and leave history unchanged.
func (s *Session) RemoveBackground(ctx context.Context) (*image.RGBA, error) {
	cur, err := s.begin(LabelRemoveBackground)
	if err != nil {
		return nil, err
	}
	if cur == nil {
		s.end("", nil, false)
		return nil, apperr.Validation("no image loaded")
	}
	if s.seg == nil {
		s.end("", nil, false)
		return nil, apperr.Processing("background removal is not configured", nil)
	}
	out, err := s.seg.Segment(ctx, cur)
	if err != nil {
		s.end("", nil, false)
		if !apperr.IsKind(err, apperr.KindProcessing) {
			err = apperr.Processing("background removal failed", err)
		}
		return nil, err
	}
	if out == nil || out.Bounds() != imaging.Bounds {
		s.end("", nil, false)
		return nil, apperr.Processing("background removal returned an image of the wrong size", nil)
	}
	s.end(LabelRemoveBackground, out, false)
	return out, nil
}

// Undo reverts to the previous entry and returns it.
func (s *Session) Undo() (*image.RGBA, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Busy {
		return nil, apperr.New(apperr.KindBusy,
			fmt.Sprintf("editor is busy: %s in progress", s.state.Label))
	}
	e, err := s.hist.Undo()
	if err != nil {
		return nil, err
	}
	return e.Image, nil
}

// Current returns the image shown to the user.
func (s *Session) Current() (*image.RGBA, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.hist.Current()
	return e.Image, ok
}

// Labels returns the history labels, oldest first.
func (s *Session) Labels() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hist.Labels()
}

// WritePNG encodes the current image.
func (s *Session) WritePNG(w io.Writer) error {
	img, ok := s.Current()
	if !ok {
		return apperr.Validation("no image loaded")
	}
	return imaging.EncodePNG(w, img)
}
