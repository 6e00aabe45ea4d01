package history_test

import (
	"errors"
	"fmt"
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/firasghr/HeyteaDIY/apperr"
	"github.com/firasghr/HeyteaDIY/history"
)

func img() *image.RGBA { return image.NewRGBA(image.Rect(0, 0, 1, 1)) }

func TestReset_DefaultLabel(t *testing.T) {
	var s history.Stack
	s.Reset(img(), "")
	assert.Equal(t, []string{"original"}, s.Labels())
}

func TestPush_EvictsOldest(t *testing.T) {
	var s history.Stack
	s.Reset(img(), "")
	for i := 1; i <= 9; i++ {
		s.Push(fmt.Sprintf("e%d", i), img())
	}
	require.Equal(t, history.MaxEntries, s.Len())
	assert.Equal(t, []string{"e2", "e3", "e4", "e5", "e6", "e7", "e8", "e9"}, s.Labels())

	cur, ok := s.Current()
	require.True(t, ok)
	assert.Equal(t, "e9", cur.Label)
}

func TestUndo(t *testing.T) {
	var s history.Stack
	base := img()
	s.Reset(base, "")
	s.Push("grayscale", img())

	e, err := s.Undo()
	require.NoError(t, err)
	assert.Equal(t, "original", e.Label)
	assert.Same(t, base, e.Image)
	assert.Equal(t, 1, s.Len())
}

func TestUndo_SingleEntry(t *testing.T) {
	var s history.Stack
	base := img()
	s.Reset(base, "")

	_, err := s.Undo()
	require.Error(t, err)
	assert.True(t, errors.Is(err, history.ErrNothingToUndo))
	assert.True(t, apperr.IsKind(err, apperr.KindNothingToUndo))

	cur, ok := s.Current()
	require.True(t, ok)
	assert.Same(t, base, cur.Image)
}

func TestEmpty(t *testing.T) {
	var s history.Stack
	_, ok := s.Current()
	assert.False(t, ok)
	_, err := s.Undo()
	assert.Error(t, err)
}
