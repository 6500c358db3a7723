package toolhandlers

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"github.com/fawa-io/monocanvas/internal/model"
	"github.com/fawa-io/monocanvas/internal/strokepipeline"
)

// signatureSVG is a hand-crafted cursive signature path, grounded on
// original_source/server/code_monet/tools/signature.py's
// _SIGNATURE_SVG, expressed as absolute M/L/Q/C commands fit to a
// 0-160 x 0-35 box.
const signatureSVG = "M 0 25 C 5 10 15 5 25 15 C 35 25 20 35 30 30 " +
	"Q 35 28 40 20 L 45 25 C 50 20 55 15 60 20 " +
	"Q 65 25 60 30 C 55 35 50 30 55 25 " +
	"M 75 15 Q 80 10 85 15 C 90 20 85 30 80 30 Q 75 30 75 25 Q 75 20 80 18 " +
	"M 95 30 L 95 15 Q 100 10 105 15 Q 110 20 105 25 Q 100 30 95 30 " +
	"M 115 20 Q 120 15 125 20 Q 130 25 125 30 Q 120 35 115 30 Q 110 25 115 20 " +
	"M 145 25 L 160 25 M 152 15 L 152 35"

const signatureWidth = 160.0
const signatureHeight = 35.0

var svgTokenPattern = regexp.MustCompile(`[MLQC]|[-+]?\d*\.?\d+`)

// transformSVGPath scales and translates an absolute-command d-string
// (ported from _transform_svg_path: coordinate pairs follow each
// command letter).
func transformSVGPath(d string, scale, offsetX, offsetY float64) string {
	tokens := svgTokenPattern.FindAllString(d, -1)
	var out []string
	i := 0
	for i < len(tokens) {
		tok := tokens[i]
		if tok == "M" || tok == "L" || tok == "Q" || tok == "C" {
			out = append(out, tok)
			i++
			continue
		}
		x, err := strconv.ParseFloat(tok, 64)
		if err != nil {
			i++
			continue
		}
		if i+1 < len(tokens) {
			if y, err := strconv.ParseFloat(tokens[i+1], 64); err == nil {
				nx := x*scale + offsetX
				ny := y*scale + offsetY
				out = append(out, strconv.FormatFloat(nx, 'f', 1, 64), strconv.FormatFloat(ny, 'f', 1, 64))
				i += 2
				continue
			}
		}
		out = append(out, strconv.FormatFloat(x*scale, 'f', 1, 64))
		i++
	}
	return strings.Join(out, " ")
}

// signaturePosition returns the placement offset for a named corner.
func signaturePosition(position string, canvasWidth, canvasHeight, sigW, sigH, margin float64) (float64, float64) {
	switch position {
	case "top_left":
		return margin, margin
	case "top_right":
		return canvasWidth - sigW - margin, margin
	case "bottom_left":
		return margin, canvasHeight - sigH - margin
	default: // "bottom_right" and unrecognized values
		return canvasWidth - sigW - margin, canvasHeight - sigH - margin
	}
}

// handleSignCanvas generates the fixed signature path set, scaled to
// size and placed at position, and enqueues it as a normal agent path
// (SPEC_FULL §4.4: sign_canvas).
func handleSignCanvas(ctx context.Context, tc *ToolContext, position string, size float64, color string) (ToolResult, error) {
	if size <= 0 {
		size = 1.0
	}
	scale := size * 0.6
	sigW := signatureWidth * scale
	sigH := signatureHeight * scale
	offX, offY := signaturePosition(position, tc.CanvasWidth, tc.CanvasHeight, sigW, sigH, 20)

	d := transformSVGPath(signatureSVG, scale, offX, offY)
	if color == "" {
		color = "#1a1a2e"
	}
	width := 2.0
	path, err := strokepipeline.ValidateAndClamp(model.Path{Type: model.PathSVG, D: d, Author: model.AuthorAgent, Color: &color, StrokeWidth: &width}, tc.CanvasWidth, tc.CanvasHeight)
	if err != nil {
		return errorResult("Error: %v", err), nil
	}

	paths := []model.Path{path}
	if tc.AddStrokes != nil {
		if err := tc.AddStrokes(paths); err != nil {
			return ToolResult{}, err
		}
	}
	if tc.OnDraw != nil {
		if err := tc.OnDraw(ctx, paths, false); err != nil {
			return ToolResult{}, err
		}
	}
	return appendSnapshot(tc, textResult("Signed the canvas at %s.", defaultPosition(position))), nil
}

func defaultPosition(position string) string {
	if position == "" {
		return "bottom_right"
	}
	return position
}
