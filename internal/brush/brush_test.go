package brush

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fawa-io/monocanvas/internal/model"
)

func polylinePath(brushName string) model.Path {
	return model.Path{
		Type:   model.PathPolyline,
		Points: []model.Point{{X: 10, Y: 10}, {X: 100, Y: 50}, {X: 200, Y: 40}},
		Brush:  brushName,
		Author: model.AuthorAgent,
	}
}

func TestLookupKnownAndUnknown(t *testing.T) {
	p, ok := Lookup("oil_round")
	require.True(t, ok)
	assert.Equal(t, 4, p.BristleCount)

	_, ok = Lookup("nope")
	assert.False(t, ok)
}

func TestExpandMainPlusBristles(t *testing.T) {
	w, h := 800.0, 600.0
	out := Expand(polylinePath("oil_round"), &w, &h)
	// main stroke + 4 bristles
	require.Len(t, out, 5)
	for _, p := range out {
		assert.Equal(t, model.AuthorAgent, p.Author)
		assert.NotEmpty(t, p.Points)
	}
}

func TestExpandWithoutBrushReturnsOriginal(t *testing.T) {
	p := polylinePath("")
	out := Expand(p, nil, nil)
	require.Len(t, out, 1)
	assert.Equal(t, p.Points, out[0].Points)
}

func TestExpandUnknownBrushReturnsOriginal(t *testing.T) {
	out := Expand(polylinePath("imaginary"), nil, nil)
	require.Len(t, out, 1)
}

func TestExpandSVGPathLeftUnchanged(t *testing.T) {
	// SVG paths carry no point list, so expansion is a no-op; the
	// brush tag itself is stripped upstream by validation.
	p := model.Path{Type: model.PathSVG, D: "M 0 0 L 10 10", Brush: "oil_round"}
	out := Expand(p, nil, nil)
	require.Len(t, out, 1)
	assert.Equal(t, p.D, out[0].D)
}

func TestExpandedPointsStayInBounds(t *testing.T) {
	w, h := 100.0, 100.0
	p := model.Path{
		Type:   model.PathPolyline,
		Points: []model.Point{{X: 0, Y: 0}, {X: 99, Y: 99}},
		Brush:  "fan",
	}
	for _, stroke := range Expand(p, &w, &h) {
		for _, pt := range stroke.Points {
			assert.GreaterOrEqual(t, pt.X, 0.0)
			assert.LessOrEqual(t, pt.X, w)
			assert.GreaterOrEqual(t, pt.Y, 0.0)
			assert.LessOrEqual(t, pt.Y, h)
		}
	}
}

func TestNamesIsStable(t *testing.T) {
	a := Names()
	b := Names()
	assert.Equal(t, a, b)
	assert.Contains(t, a, "oil_round")
}
