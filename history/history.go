// Package history is the bounded undo stack of the design editor.
package history

import (
	"image"

	"github.com/firasghr/HeyteaDIY/apperr"
)

// MaxEntries is the most entries a Stack keeps. Pushing beyond it evicts the
// oldest entry.
const MaxEntries = 8

// DefaultLabel is the label Reset uses when none is given.
const DefaultLabel = "original"

// ErrNothingToUndo is matched (errors.Is) by the error Undo returns when only
// one entry is left.
var ErrNothingToUndo = &apperr.Error{Kind: apperr.KindNothingToUndo}

// Entry is one state of the design.
type Entry struct {
	Label string
	Image *image.RGBA
}

// Stack holds up to MaxEntries entries; the last one is the current image.
// The zero value is an empty stack. Stack is not safe for concurrent use;
// editor.Session serialises access.
type Stack struct {
	entries []Entry
}

// Reset replaces the whole history with img.
func (s *Stack) Reset(img *image.RGBA, label string) {
	if label == "" {
		label = DefaultLabel
	}
	s.entries = []Entry{{Label: label, Image: img}}
}

// Push appends img as the new current entry.
func (s *Stack) Push(label string, img *image.RGBA) {
	s.entries = append(s.entries, Entry{Label: label, Image: img})
	if n := len(s.entries); n > MaxEntries {
		kept := make([]Entry, MaxEntries)
		copy(kept, s.entries[n-MaxEntries:])
		s.entries = kept
	}
}

// Undo drops the current entry and returns the one that becomes current.
func (s *Stack) Undo() (Entry, error) {
	if len(s.entries) <= 1 {
		return Entry{}, apperr.New(apperr.KindNothingToUndo, "nothing to undo")
	}
	s.entries[len(s.entries)-1] = Entry{}
	s.entries = s.entries[:len(s.entries)-1]
	return s.entries[len(s.entries)-1], nil
}

// Current returns the last entry; ok is false for an empty stack.
func (s *Stack) Current() (e Entry, ok bool) {
	if len(s.entries) == 0 {
		return Entry{}, false
	}
	return s.entries[len(s.entries)-1], true
}

// Len returns the number of entries.
func (s *Stack) Len() int { return len(s.entries) }

// Labels returns the entry labels, oldest first.
func (s *Stack) Labels() []string {
	out := make([]string, len(s.entries))
	for i, e := range s.entries {
		out[i] = e.Label
	}
	return out
}
