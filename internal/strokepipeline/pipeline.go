// Package strokepipeline implements the pure path-to-batch transform:
// validate and clamp a raw path, expand brush presets, interpolate to
// animation points, and assemble pending-stroke batch entries. No I/O.
package strokepipeline

import (
	"fmt"
	"math"

	"github.com/fawa-io/monocanvas/internal/apperror"
	"github.com/fawa-io/monocanvas/internal/brush"
	"github.com/fawa-io/monocanvas/internal/model"
)

const (
	minStrokeWidth = 0.5
	maxStrokeWidth = 30.0
	minOpacity     = 0.0
	maxOpacity     = 1.0
)

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// ValidateAndClamp checks a raw path against §3's shape rules and
// clamps style fields into range. Returns a *apperror.Error of
// KindValidation on rejection.
func ValidateAndClamp(p model.Path, canvasWidth, canvasHeight float64) (model.Path, error) {
	switch p.Type {
	case model.PathLine, model.PathQuadratic, model.PathCubic, model.PathPolyline:
		if len(p.Points) < p.Type.MinPoints() {
			return model.Path{}, apperror.New(apperror.KindValidation,
				fmt.Sprintf("path of type %s requires at least %d points, got %d", p.Type, p.Type.MinPoints(), len(p.Points)))
		}
		for _, pt := range p.Points {
			if math.IsNaN(pt.X) || math.IsInf(pt.X, 0) || math.IsNaN(pt.Y) || math.IsInf(pt.Y, 0) {
				return model.Path{}, apperror.New(apperror.KindValidation, "path contains a non-finite coordinate")
			}
		}
	case model.PathSVG:
		if p.D == "" {
			return model.Path{}, apperror.New(apperror.KindValidation, "svg path requires a non-empty d-string")
		}
	default:
		return model.Path{}, apperror.New(apperror.KindValidation, fmt.Sprintf("unknown path type %q", p.Type))
	}

	out := p
	out.Points = clampPoints(p.Points, canvasWidth, canvasHeight)

	if out.StrokeWidth != nil {
		w := clamp(*out.StrokeWidth, minStrokeWidth, maxStrokeWidth)
		out.StrokeWidth = &w
	}
	if out.Opacity != nil {
		o := clamp(*out.Opacity, minOpacity, maxOpacity)
		out.Opacity = &o
	}

	// Drop unknown brush names silently; drop brush on svg paths.
	if out.Brush != "" {
		if out.Type == model.PathSVG {
			out.Brush = ""
		} else if _, ok := brush.Lookup(out.Brush); !ok {
			out.Brush = ""
		}
	}

	return out, nil
}

func clampPoints(points []model.Point, width, height float64) []model.Point {
	if len(points) == 0 {
		return points
	}
	out := make([]model.Point, len(points))
	for i, p := range points {
		out[i] = model.Point{X: clamp(p.X, 0, width), Y: clamp(p.Y, 0, height)}
	}
	return out
}

// Expand turns one validated path into its drawn sub-paths: brush
// bristle expansion in paint mode, or the path unchanged otherwise
// (SPEC_FULL §4.1/§4.6).
func Expand(p model.Path, style model.DrawingStyleType, canvasWidth, canvasHeight float64) []model.Path {
	if style != model.StylePaint || p.Brush == "" {
		return []model.Path{p}
	}
	return brush.Expand(p, &canvasWidth, &canvasHeight)
}

// Interpolate samples a path into the points a client should animate,
// preserving endpoints. density is steps per unit length.
func Interpolate(p model.Path, density float64) []model.Point {
	if density <= 0 {
		density = 0.5
	}
	switch p.Type {
	case model.PathLine, model.PathPolyline:
		return interpolatePolyline(p.Points, density)
	case model.PathQuadratic:
		if len(p.Points) < 3 {
			return p.Points
		}
		return interpolateQuadratic(p.Points[0], p.Points[1], p.Points[2], density)
	case model.PathCubic:
		if len(p.Points) < 4 {
			return p.Points
		}
		return interpolateCubic(p.Points[0], p.Points[1], p.Points[2], p.Points[3], density)
	default:
		// SVG: the d-string is not parsed or sampled; an svg path carries
		// no point list, so this returns its (normally empty) Points.
		return p.Points
	}
}

func dist(a, b model.Point) float64 {
	dx, dy := b.X-a.X, b.Y-a.Y
	return math.Sqrt(dx*dx + dy*dy)
}

func interpolatePolyline(points []model.Point, density float64) []model.Point {
	if len(points) < 2 {
		return points
	}
	out := make([]model.Point, 0, len(points)*4)
	out = append(out, points[0])
	for i := 1; i < len(points); i++ {
		a, b := points[i-1], points[i]
		steps := int(math.Ceil(dist(a, b) * density))
		if steps < 1 {
			steps = 1
		}
		for s := 1; s <= steps; s++ {
			t := float64(s) / float64(steps)
			out = append(out, lerp(a, b, t))
		}
	}
	return out
}

func lerp(a, b model.Point, t float64) model.Point {
	return model.Point{X: a.X + (b.X-a.X)*t, Y: a.Y + (b.Y-a.Y)*t}
}

func quadChordLength(a, b, c model.Point) float64 {
	return dist(a, b) + dist(b, c)
}

func interpolateQuadratic(a, b, c model.Point, density float64) []model.Point {
	chord := quadChordLength(a, b, c)
	steps := int(math.Ceil(chord * density))
	if steps < 2 {
		steps = 2
	}
	out := make([]model.Point, 0, steps+1)
	for i := 0; i <= steps; i++ {
		t := float64(i) / float64(steps)
		mt := 1 - t
		x := mt*mt*a.X + 2*mt*t*b.X + t*t*c.X
		y := mt*mt*a.Y + 2*mt*t*b.Y + t*t*c.Y
		out = append(out, model.Point{X: x, Y: y})
	}
	return out
}

func cubicChordLength(a, b, c, d model.Point) float64 {
	return dist(a, b) + dist(b, c) + dist(c, d)
}

func interpolateCubic(a, b, c, d model.Point, density float64) []model.Point {
	chord := cubicChordLength(a, b, c, d)
	steps := int(math.Ceil(chord * density))
	if steps < 2 {
		steps = 2
	}
	out := make([]model.Point, 0, steps+1)
	for i := 0; i <= steps; i++ {
		t := float64(i) / float64(steps)
		mt := 1 - t
		x := mt*mt*mt*a.X + 3*mt*mt*t*b.X + 3*mt*t*t*c.X + t*t*t*d.X
		y := mt*mt*mt*a.Y + 3*mt*mt*t*b.Y + 3*mt*t*t*c.Y + t*t*t*d.Y
		out = append(out, model.Point{X: x, Y: y})
	}
	return out
}

// BuildBatch assembles pending-stroke entries for a set of already
// expanded paths, all sharing batchID, and returns the total
// interpolated point count across all entries.
func BuildBatch(expandedPaths []model.Path, batchID int, density float64) ([]model.PendingStroke, int) {
	entries := make([]model.PendingStroke, 0, len(expandedPaths))
	total := 0
	for _, p := range expandedPaths {
		points := Interpolate(p, density)
		total += len(points)
		entries = append(entries, model.PendingStroke{BatchID: batchID, Path: p, Points: points})
	}
	return entries, total
}
