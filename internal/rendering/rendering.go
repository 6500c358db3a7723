// Package rendering renders a canvas snapshot for tool results and the
// REST /canvas.png surface. Per spec.md §1, faithful rasterization
// (brush textures, exact client-side pixel reproduction) is an
// external collaborator's job; this package provides the minimal pure
// function the core needs to give the agent a look at its own canvas
// and to answer the snapshot REST routes, using only the standard
// library's image/png (no ecosystem rasterizer in the retrieval pack
// draws vector paths to raster images — see DESIGN.md).
package rendering

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"strconv"

	"github.com/fawa-io/monocanvas/internal/model"
)

// Snapshot rasterizes canvas to a PNG: a flat background with a
// straight-line approximation of every path's control points. It is
// intentionally not pixel-exact with the client's renderer (a
// documented non-goal) — good enough for the agent's self-view and for
// gallery thumbnails.
func Snapshot(canvas model.CanvasState) ([]byte, error) {
	w, h := canvas.Width, canvas.Height
	if w <= 0 {
		w = 800
	}
	if h <= 0 {
		h = 600
	}
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	bg := color.RGBA{0xfa, 0xfa, 0xf8, 0xff}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, bg)
		}
	}

	for _, p := range canvas.Strokes {
		c := strokeColor(p)
		drawPolyline(img, p.Points, c)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func strokeColor(p model.Path) color.RGBA {
	if p.Color != nil {
		if c, ok := parseHexColor(*p.Color); ok {
			return c
		}
	}
	if p.Author == model.AuthorHuman {
		return color.RGBA{0x00, 0x66, 0xcc, 0xff}
	}
	return color.RGBA{0x1a, 0x1a, 0x2e, 0xff}
}

func parseHexColor(s string) (color.RGBA, bool) {
	if len(s) != 7 || s[0] != '#' {
		return color.RGBA{}, false
	}
	r, err1 := strconv.ParseUint(s[1:3], 16, 8)
	g, err2 := strconv.ParseUint(s[3:5], 16, 8)
	b, err3 := strconv.ParseUint(s[5:7], 16, 8)
	if err1 != nil || err2 != nil || err3 != nil {
		return color.RGBA{}, false
	}
	return color.RGBA{uint8(r), uint8(g), uint8(b), 0xff}, true
}

func drawPolyline(img *image.RGBA, points []model.Point, c color.RGBA) {
	for i := 1; i < len(points); i++ {
		drawLine(img, points[i-1], points[i], c)
	}
}

// drawLine is a basic Bresenham rasterizer; precision doesn't matter
// here since this is a non-pixel-exact preview render.
func drawLine(img *image.RGBA, a, b model.Point, c color.RGBA) {
	x0, y0 := int(a.X), int(a.Y)
	x1, y1 := int(b.X), int(b.Y)
	dx := abs(x1 - x0)
	dy := -abs(y1 - y0)
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}
	err := dx + dy
	for {
		if img.Rect.Min.X <= x0 && x0 < img.Rect.Max.X && img.Rect.Min.Y <= y0 && y0 < img.Rect.Max.Y {
			img.Set(x0, y0, c)
		}
		if x0 == x1 && y0 == y1 {
			break
		}
		e2 := 2 * err
		if e2 >= dy {
			err += dy
			x0 += sx
		}
		if e2 <= dx {
			err += dx
			y0 += sy
		}
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
