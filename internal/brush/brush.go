// Package brush expands a single brush-tagged Path into a main stroke
// plus bristle sub-strokes, producing the layered paint effect used by
// the paint drawing style. Pure, no I/O; randomness is confined to
// per-point jitter and does not affect control flow.
package brush

import (
	"fmt"
	"math"
	"math/rand"
	"sort"

	"github.com/fawa-io/monocanvas/internal/model"
)

const (
	edgeNoiseScale          = 0.3
	bristleOpacityVarMin    = 0.8
	bristleOpacityVarMax    = 1.2
	bristleOffsetRandomness = 0.1
	strokeWidthMin          = 0.5
	strokeWidthMax          = 30.0
)

// Preset is an immutable brush preset record (SPEC_FULL §4.1).
type Preset struct {
	Name              string
	Description       string
	BaseWidth         float64
	BristleCount      int
	BristleSpread     float64
	BristleWidthRatio float64
	BristleOpacity    float64
	EdgeNoise         float64 // 0-1
	PressureResponse  float64 // 0-1
	MainOpacity       float64
}

// Presets is the fixed brush registry available to the agent.
var Presets = map[string]Preset{
	"round": {
		Name: "round", Description: "Soft round brush, minimal texture",
		BaseWidth: 6, BristleCount: 0, BristleSpread: 0, BristleWidthRatio: 0.3,
		BristleOpacity: 0.6, EdgeNoise: 0.05, PressureResponse: 0.3, MainOpacity: 0.9,
	},
	"flat": {
		Name: "flat", Description: "Flat chisel brush with a few visible bristles",
		BaseWidth: 10, BristleCount: 3, BristleSpread: 0.6, BristleWidthRatio: 0.25,
		BristleOpacity: 0.55, EdgeNoise: 0.1, PressureResponse: 0.4, MainOpacity: 0.85,
	},
	"oil_round": {
		Name: "oil_round", Description: "Oil-paint round brush with pronounced bristle texture",
		BaseWidth: 12, BristleCount: 4, BristleSpread: 0.8, BristleWidthRatio: 0.3,
		BristleOpacity: 0.5, EdgeNoise: 0.2, PressureResponse: 0.6, MainOpacity: 0.8,
	},
	"fan": {
		Name: "fan", Description: "Wide fan brush, many thin bristles",
		BaseWidth: 16, BristleCount: 7, BristleSpread: 1.0, BristleWidthRatio: 0.15,
		BristleOpacity: 0.4, EdgeNoise: 0.15, PressureResponse: 0.5, MainOpacity: 0.75,
	},
	"oil_flat": {
		Name: "oil_flat", Description: "Oil-paint flat brush, squared bristle edge",
		BaseWidth: 14, BristleCount: 5, BristleSpread: 0.7, BristleWidthRatio: 0.28,
		BristleOpacity: 0.55, EdgeNoise: 0.18, PressureResponse: 0.5, MainOpacity: 0.82,
	},
	"oil_filbert": {
		Name: "oil_filbert", Description: "Oil-paint filbert, rounded edges with soft bristle blending",
		BaseWidth: 13, BristleCount: 5, BristleSpread: 0.65, BristleWidthRatio: 0.3,
		BristleOpacity: 0.5, EdgeNoise: 0.12, PressureResponse: 0.55, MainOpacity: 0.82,
	},
	"watercolor": {
		Name: "watercolor", Description: "Translucent watercolor wash with soft bleeding edges",
		BaseWidth: 18, BristleCount: 2, BristleSpread: 0.9, BristleWidthRatio: 0.5,
		BristleOpacity: 0.25, EdgeNoise: 0.35, PressureResponse: 0.2, MainOpacity: 0.4,
	},
	"dry_brush": {
		Name: "dry_brush", Description: "Dry bristle drag with broken, streaky coverage",
		BaseWidth: 9, BristleCount: 6, BristleSpread: 0.9, BristleWidthRatio: 0.2,
		BristleOpacity: 0.35, EdgeNoise: 0.4, PressureResponse: 0.45, MainOpacity: 0.6,
	},
	"palette_knife": {
		Name: "palette_knife", Description: "Flat, opaque knife strokes with sharp edges",
		BaseWidth: 20, BristleCount: 0, BristleSpread: 0, BristleWidthRatio: 0,
		BristleOpacity: 0, EdgeNoise: 0.08, PressureResponse: 0.1, MainOpacity: 0.95,
	},
	"ink": {
		Name: "ink", Description: "Crisp, fully opaque pen line with minimal width variation",
		BaseWidth: 3, BristleCount: 0, BristleSpread: 0, BristleWidthRatio: 0,
		BristleOpacity: 0, EdgeNoise: 0.02, PressureResponse: 0.2, MainOpacity: 1.0,
	},
	"pencil": {
		Name: "pencil", Description: "Thin, semi-opaque graphite line with light texture",
		BaseWidth: 2, BristleCount: 1, BristleSpread: 0.2, BristleWidthRatio: 0.4,
		BristleOpacity: 0.3, EdgeNoise: 0.15, PressureResponse: 0.35, MainOpacity: 0.7,
	},
	"charcoal": {
		Name: "charcoal", Description: "Soft, grainy charcoal with heavy edge texture",
		BaseWidth: 11, BristleCount: 4, BristleSpread: 0.75, BristleWidthRatio: 0.35,
		BristleOpacity: 0.45, EdgeNoise: 0.5, PressureResponse: 0.5, MainOpacity: 0.65,
	},
	"marker": {
		Name: "marker", Description: "Bold, flat, fully opaque marker stroke",
		BaseWidth: 9, BristleCount: 0, BristleSpread: 0, BristleWidthRatio: 0,
		BristleOpacity: 0, EdgeNoise: 0.03, PressureResponse: 0.1, MainOpacity: 1.0,
	},
	"airbrush": {
		Name: "airbrush", Description: "Soft diffuse spray with feathered edges",
		BaseWidth: 22, BristleCount: 3, BristleSpread: 1.1, BristleWidthRatio: 0.6,
		BristleOpacity: 0.2, EdgeNoise: 0.45, PressureResponse: 0.15, MainOpacity: 0.3,
	},
	"splatter": {
		Name: "splatter", Description: "Chaotic scattered droplets along the stroke path",
		BaseWidth: 8, BristleCount: 8, BristleSpread: 1.4, BristleWidthRatio: 0.25,
		BristleOpacity: 0.5, EdgeNoise: 0.6, PressureResponse: 0.3, MainOpacity: 0.7,
	},
}

// Lookup returns the named preset, or false if unknown. Unknown brush
// names are dropped silently by the caller (SPEC_FULL §4.1).
func Lookup(name string) (Preset, bool) {
	p, ok := Presets[name]
	return p, ok
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampWidth(v float64) float64 { return clamp(v, strokeWidthMin, strokeWidthMax) }

// Expand turns one path into a main stroke plus bristle sub-strokes per
// its brush preset. Paths with no brush, no preset match, or fewer than
// two points are returned unchanged (SVG paths are never expanded; a
// brush tag on one is simply ignored here, not an error).
func Expand(path model.Path, canvasWidth, canvasHeight *float64) []model.Path {
	if path.Brush == "" {
		return []model.Path{path}
	}
	preset, ok := Lookup(path.Brush)
	if !ok {
		return []model.Path{path}
	}
	if len(path.Points) < 2 {
		return []model.Path{path}
	}

	points := path.Points
	baseWidth := preset.BaseWidth
	if path.StrokeWidth != nil {
		baseWidth = *path.StrokeWidth
	}
	baseWidth = clampWidth(baseWidth)

	widths := velocityWidths(points, baseWidth, preset.PressureResponse)
	for i := range widths {
		widths[i] = clampWidth(widths[i])
	}

	if preset.EdgeNoise > 0 {
		points = applyEdgeNoise(points, preset.EdgeNoise, baseWidth)
	}
	points = clampPoints(points, canvasWidth, canvasHeight)

	result := make([]model.Path, 0, 1+preset.BristleCount)
	result = append(result, mainStroke(points, widths, path, preset))
	if preset.BristleCount > 0 {
		result = append(result, bristleStrokes(points, widths, preset, path, canvasWidth, canvasHeight)...)
	}
	return result
}

func velocityWidths(points []model.Point, baseWidth, pressureResponse float64) []float64 {
	if len(points) <= 1 || pressureResponse == 0 {
		widths := make([]float64, len(points))
		for i := range widths {
			widths[i] = baseWidth
		}
		return widths
	}

	distances := make([]float64, 0, len(points)-1)
	maxDist := 0.0
	for i := 1; i < len(points); i++ {
		dx := points[i].X - points[i-1].X
		dy := points[i].Y - points[i-1].Y
		d := math.Sqrt(dx*dx + dy*dy)
		distances = append(distances, d)
		if d > maxDist {
			maxDist = d
		}
	}
	if maxDist == 0 {
		maxDist = 1.0
	}

	minRatio := 1.0 - 0.5*pressureResponse
	maxRatio := 1.0 + 0.3*pressureResponse

	widths := make([]float64, 0, len(points))
	widths = append(widths, baseWidth*maxRatio)
	for _, d := range distances {
		normalized := d / maxDist
		ratio := maxRatio - normalized*(maxRatio-minRatio)
		widths = append(widths, baseWidth*ratio)
	}
	return widths
}

func applyEdgeNoise(points []model.Point, noiseAmount, strokeWidth float64) []model.Point {
	if noiseAmount == 0 {
		return points
	}
	maxDisplacement := strokeWidth * noiseAmount * edgeNoiseScale

	noisy := make([]model.Point, len(points))
	for i, p := range points {
		edgeFactor := 1.0
		switch {
		case i == 0 || i == len(points)-1:
			edgeFactor = 0.3
		case i == 1 || i == len(points)-2:
			edgeFactor = 0.6
		}
		dx := randRange(-maxDisplacement, maxDisplacement) * edgeFactor
		dy := randRange(-maxDisplacement, maxDisplacement) * edgeFactor
		noisy[i] = model.Point{X: p.X + dx, Y: p.Y + dy}
	}
	return noisy
}

func clampPoints(points []model.Point, canvasWidth, canvasHeight *float64) []model.Point {
	if canvasWidth == nil || canvasHeight == nil || len(points) == 0 {
		return points
	}
	maxX, maxY := *canvasWidth, *canvasHeight
	out := make([]model.Point, len(points))
	for i, p := range points {
		out[i] = model.Point{X: clamp(p.X, 0, maxX), Y: clamp(p.Y, 0, maxY)}
	}
	return out
}

func averageWidth(widths []float64, fallback float64) float64 {
	if len(widths) == 0 {
		return fallback
	}
	sum := 0.0
	for _, w := range widths {
		sum += w
	}
	return sum / float64(len(widths))
}

func mainStroke(points []model.Point, widths []float64, path model.Path, preset Preset) model.Path {
	avg := clampWidth(averageWidth(widths, 8.0))
	opacity := 1.0
	if path.Opacity != nil {
		opacity = *path.Opacity
	}
	opacity *= preset.MainOpacity
	return model.Path{
		Type: model.PathPolyline, Points: points, Color: path.Color,
		StrokeWidth: &avg, Opacity: &opacity, Brush: path.Brush, Author: path.Author,
	}
}

func bristleStrokes(points []model.Point, widths []float64, preset Preset, path model.Path, canvasWidth, canvasHeight *float64) []model.Path {
	if preset.BristleCount <= 0 || len(points) < 2 {
		return nil
	}
	avg := clampWidth(averageWidth(widths, preset.BaseWidth))
	totalSpread := avg * preset.BristleSpread
	bristleWidth := clampWidth(avg * preset.BristleWidthRatio)

	out := make([]model.Path, 0, preset.BristleCount)
	for i := 0; i < preset.BristleCount; i++ {
		offsetRatio := 0.0
		if preset.BristleCount > 1 {
			offsetRatio = float64(i)/float64(preset.BristleCount-1) - 0.5
		}
		baseOffset := offsetRatio * totalSpread
		randomOffset := randRange(-bristleOffsetRandomness, bristleOffsetRandomness) * totalSpread
		offset := baseOffset + randomOffset

		bristlePoints := offsetPath(points, offset)
		bristlePoints = clampPoints(bristlePoints, canvasWidth, canvasHeight)

		opacityVariation := randRange(bristleOpacityVarMin, bristleOpacityVarMax)
		bristleOpacity := math.Min(1.0, preset.BristleOpacity*opacityVariation)

		bw := bristleWidth
		bo := bristleOpacity
		brushName := preset.Name
		out = append(out, model.Path{
			Type: model.PathPolyline, Points: bristlePoints, Color: path.Color,
			StrokeWidth: &bw, Opacity: &bo, Brush: brushName, Author: path.Author,
		})
	}
	return out
}

func offsetPath(points []model.Point, offset float64) []model.Point {
	if len(points) < 2 || offset == 0 {
		return points
	}
	out := make([]model.Point, len(points))
	for i, p := range points {
		var dx, dy float64
		switch {
		case i == 0:
			dx, dy = points[1].X-p.X, points[1].Y-p.Y
		case i == len(points)-1:
			dx, dy = p.X-points[i-1].X, p.Y-points[i-1].Y
		default:
			dx, dy = points[i+1].X-points[i-1].X, points[i+1].Y-points[i-1].Y
		}
		length := math.Sqrt(dx*dx + dy*dy)
		if length == 0 {
			length = 1.0
		}
		perpX, perpY := -dy/length, dx/length
		out[i] = model.Point{X: p.X + perpX*offset, Y: p.Y + perpY*offset}
	}
	return out
}

func randRange(lo, hi float64) float64 {
	if hi <= lo {
		return lo
	}
	return lo + rand.Float64()*(hi-lo)
}

// Names returns every registered brush preset name, stable-sorted for
// deterministic prompt rendering.
func Names() []string {
	names := make([]string, 0, len(Presets))
	for n := range Presets {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Describe formats every preset's description for the agent's system
// prompt.
func Describe() string {
	s := "Available brushes:\n"
	for _, name := range Names() {
		p := Presets[name]
		s += fmt.Sprintf("  - %s: %s\n", name, p.Description)
	}
	return s
}
