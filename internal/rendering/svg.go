package rendering

import (
	"fmt"
	"strings"

	"github.com/fawa-io/monocanvas/internal/model"
)

// SnapshotSVG serializes the canvas as an SVG document. Unlike the
// raster Snapshot, this preserves the true path geometry (curves stay
// curves), so /canvas.svg is the higher-fidelity export surface.
func SnapshotSVG(canvas model.CanvasState) []byte {
	w, h := canvas.Width, canvas.Height
	if w <= 0 {
		w = 800
	}
	if h <= 0 {
		h = 600
	}

	styleCfg := model.StyleConfig(canvas.DrawingStyle)

	var b strings.Builder
	fmt.Fprintf(&b, `<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">`, w, h, w, h)
	b.WriteString(`<rect width="100%" height="100%" fill="#fafaf8"/>`)
	for _, p := range canvas.Strokes {
		d := pathData(p)
		if d == "" {
			continue
		}
		s := p.EffectiveStyle(styleCfg)
		fmt.Fprintf(&b,
			`<path d="%s" fill="none" stroke="%s" stroke-width="%g" stroke-opacity="%g" stroke-linecap="%s" stroke-linejoin="%s"/>`,
			d, s.Color, s.StrokeWidth, s.Opacity, s.StrokeLinecap, s.StrokeLinejoin)
	}
	b.WriteString(`</svg>`)
	return []byte(b.String())
}

func pathData(p model.Path) string {
	if p.Type == model.PathSVG {
		return p.D
	}
	if len(p.Points) < 2 {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "M %g %g", p.Points[0].X, p.Points[0].Y)
	switch p.Type {
	case model.PathQuadratic:
		if len(p.Points) >= 3 {
			fmt.Fprintf(&b, " Q %g %g %g %g", p.Points[1].X, p.Points[1].Y, p.Points[2].X, p.Points[2].Y)
		}
	case model.PathCubic:
		if len(p.Points) >= 4 {
			fmt.Fprintf(&b, " C %g %g %g %g %g %g",
				p.Points[1].X, p.Points[1].Y, p.Points[2].X, p.Points[2].Y, p.Points[3].X, p.Points[3].Y)
		}
	default:
		for _, pt := range p.Points[1:] {
			fmt.Fprintf(&b, " L %g %g", pt.X, pt.Y)
		}
	}
	return b.String()
}
