package workspace

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fawa-io/monocanvas/internal/model"
)

func newTestState(t *testing.T) *State {
	t.Helper()
	s, err := LoadForUser(t.TempDir(), uuid.NewString(), 10*1024*1024, 100)
	require.NoError(t, err)
	return s
}

func TestLoadForUserRejectsNonUUID(t *testing.T) {
	_, err := LoadForUser(t.TempDir(), "not-a-uuid", 0, 0)
	require.Error(t, err)
}

func TestNewWorkspaceStartsPausedWithNoStrokes(t *testing.T) {
	s := newTestState(t)
	assert.Equal(t, model.StatusPaused, s.Status())
	assert.Empty(t, s.Canvas().Strokes)
	assert.Equal(t, 0, s.PieceNumber())
}

func TestAddStrokeThenReloadRoundTrips(t *testing.T) {
	dir := t.TempDir()
	id := uuid.NewString()
	s, err := LoadForUser(dir, id, 0, 100)
	require.NoError(t, err)

	color := "#ffffff"
	require.NoError(t, s.AddStroke(model.Path{Type: model.PathLine, Points: []model.Point{{X: 0}, {X: 1}}, Color: &color}))

	reloaded, err := LoadForUser(dir, id, 0, 100)
	require.NoError(t, err)
	require.Len(t, reloaded.Canvas().Strokes, 1)
	assert.Equal(t, color, *reloaded.Canvas().Strokes[0].Color)
}

func TestQueueStrokesDropsOldestAtCap(t *testing.T) {
	s := newTestState(t)
	s.maxPendingStrokes = 2

	s.QueueStrokes([]model.PendingStroke{{Path: model.Path{Type: model.PathLine}}})
	s.QueueStrokes([]model.PendingStroke{{Path: model.Path{Type: model.PathLine}}})
	s.QueueStrokes([]model.PendingStroke{{Path: model.Path{Type: model.PathLine}}, {Path: model.Path{Type: model.PathLine}}})

	assert.LessOrEqual(t, s.PendingStrokeCount(), 3)
}

func TestPopStrokesClearsQueue(t *testing.T) {
	s := newTestState(t)
	s.QueueStrokes([]model.PendingStroke{{Path: model.Path{Type: model.PathLine}}})
	require.Equal(t, 1, s.PendingStrokeCount())

	popped := s.PopStrokes()
	assert.Len(t, popped, 1)
	assert.Equal(t, 0, s.PendingStrokeCount())
}

func TestSaveToGalleryNoStrokesReturnsEmptyID(t *testing.T) {
	s := newTestState(t)
	id, err := s.SaveToGallery()
	require.NoError(t, err)
	assert.Empty(t, id)
}

func TestNewCanvasIncrementsPieceNumberAndClearsState(t *testing.T) {
	s := newTestState(t)
	require.NoError(t, s.AddStroke(model.Path{Type: model.PathLine, Points: []model.Point{{X: 0}, {X: 1}}}))
	s.QueueStrokes([]model.PendingStroke{{Path: model.Path{Type: model.PathLine}}})

	id, err := s.NewCanvas()
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	assert.Equal(t, 1, s.PieceNumber())
	assert.Empty(t, s.Canvas().Strokes)
	assert.Equal(t, 0, s.PendingStrokeCount())

	gallery, err := s.ListGallery()
	require.NoError(t, err)
	require.Len(t, gallery, 1)
	assert.Equal(t, 0, gallery[0].PieceNumber)
}

func TestLoadFromGalleryRoundTrips(t *testing.T) {
	s := newTestState(t)
	require.NoError(t, s.AddStroke(model.Path{Type: model.PathLine, Points: []model.Point{{X: 0}, {X: 1}}}))
	_, err := s.NewCanvas()
	require.NoError(t, err)

	strokes, style, err := s.LoadFromGallery(0)
	require.NoError(t, err)
	require.Len(t, strokes, 1)
	assert.Equal(t, model.StylePlotter, style)
}

func TestLoadFromGalleryMissingReturnsNilNotError(t *testing.T) {
	s := newTestState(t)
	strokes, _, err := s.LoadFromGallery(999)
	require.NoError(t, err)
	assert.Nil(t, strokes)
}

func TestSaveDebouncedCoalescesAndEventuallyWrites(t *testing.T) {
	dir := t.TempDir()
	id := uuid.NewString()
	s, err := LoadForUser(dir, id, 0, 100)
	require.NoError(t, err)

	s.SetMonologue("first")
	s.SaveDebounced(10 * time.Millisecond)
	s.SetMonologue("second")
	s.SaveDebounced(10 * time.Millisecond)

	require.Eventually(t, func() bool {
		reloaded, err := LoadForUser(dir, id, 0, 100)
		return err == nil && reloaded.Monologue() == "second"
	}, time.Second, 5*time.Millisecond)
}

func TestStopDebounceCancelsScheduledSave(t *testing.T) {
	s := newTestState(t)
	s.SaveDebounced(50 * time.Millisecond)
	s.StopDebounce()

	// No timer should remain scheduled.
	s.saveTimerMu.Lock()
	defer s.saveTimerMu.Unlock()
	assert.Nil(t, s.saveTimer)
}

func TestParsePieceNumber(t *testing.T) {
	n, ok := ParsePieceNumber("piece_000012")
	require.True(t, ok)
	assert.Equal(t, 12, n)

	_, ok = ParsePieceNumber("not-a-piece")
	assert.False(t, ok)
}
