package strokepipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fawa-io/monocanvas/internal/apperror"
	"github.com/fawa-io/monocanvas/internal/model"
)

func TestValidateAndClampRejectsShortPolyline(t *testing.T) {
	p := model.Path{Type: model.PathPolyline, Points: []model.Point{{X: 1, Y: 1}}}
	_, err := ValidateAndClamp(p, 800, 600)
	require.Error(t, err)
	assert.True(t, apperror.Is(err, apperror.KindValidation))
}

func TestValidateAndClampClampsOutOfBoundsPoints(t *testing.T) {
	p := model.Path{Type: model.PathLine, Points: []model.Point{{X: -10, Y: -10}, {X: 9000, Y: 9000}}}
	out, err := ValidateAndClamp(p, 800, 600)
	require.NoError(t, err)
	assert.Equal(t, model.Point{X: 0, Y: 0}, out.Points[0])
	assert.Equal(t, model.Point{X: 800, Y: 600}, out.Points[1])
}

func TestValidateAndClampClampsStrokeWidthAndOpacity(t *testing.T) {
	w := 999.0
	o := 5.0
	p := model.Path{Type: model.PathLine, Points: []model.Point{{X: 1}, {X: 2}}, StrokeWidth: &w, Opacity: &o}
	out, err := ValidateAndClamp(p, 800, 600)
	require.NoError(t, err)
	assert.Equal(t, maxStrokeWidth, *out.StrokeWidth)
	assert.Equal(t, maxOpacity, *out.Opacity)
}

func TestValidateAndClampDropsUnknownBrush(t *testing.T) {
	p := model.Path{Type: model.PathLine, Points: []model.Point{{X: 1}, {X: 2}}, Brush: "not-a-real-brush"}
	out, err := ValidateAndClamp(p, 800, 600)
	require.NoError(t, err)
	assert.Empty(t, out.Brush)
}

func TestValidateAndClampRejectsEmptySVG(t *testing.T) {
	p := model.Path{Type: model.PathSVG}
	_, err := ValidateAndClamp(p, 800, 600)
	require.Error(t, err)
}

func TestInterpolatePolylinePreservesEndpoints(t *testing.T) {
	p := model.Path{Type: model.PathPolyline, Points: []model.Point{{X: 0, Y: 0}, {X: 100, Y: 0}}}
	pts := Interpolate(p, 0.1)
	require.NotEmpty(t, pts)
	assert.Equal(t, model.Point{X: 0, Y: 0}, pts[0])
	assert.InDelta(t, 100, pts[len(pts)-1].X, 1e-9)
}

func TestInterpolateQuadraticPreservesEndpoints(t *testing.T) {
	p := model.Path{Type: model.PathQuadratic, Points: []model.Point{{X: 0, Y: 0}, {X: 50, Y: 100}, {X: 100, Y: 0}}}
	pts := Interpolate(p, 0.1)
	require.Len(t, pts, len(pts))
	assert.InDelta(t, 0, pts[0].X, 1e-9)
	assert.InDelta(t, 100, pts[len(pts)-1].X, 1e-9)
}

func TestExpandNonPaintStyleReturnsUnchanged(t *testing.T) {
	p := model.Path{Type: model.PathPolyline, Points: []model.Point{{X: 0}, {X: 10}}, Brush: "round"}
	out := Expand(p, model.StylePlotter, 800, 600)
	require.Len(t, out, 1)
	assert.Equal(t, p.Points, out[0].Points)
}

func TestBuildBatchTagsEntriesWithBatchID(t *testing.T) {
	paths := []model.Path{
		{Type: model.PathLine, Points: []model.Point{{X: 0}, {X: 10}}},
		{Type: model.PathLine, Points: []model.Point{{X: 0}, {X: 20}}},
	}
	entries, total := BuildBatch(paths, 7, 0.5)
	require.Len(t, entries, 2)
	for _, e := range entries {
		assert.Equal(t, 7, e.BatchID)
	}
	assert.Greater(t, total, 0)
}
