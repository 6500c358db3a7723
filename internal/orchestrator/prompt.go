package orchestrator

import (
	"fmt"
	"strings"

	"github.com/fawa-io/monocanvas/internal/model"
)

const plotterSystemPrompt = `You are an artist working on a shared canvas with a pen plotter.
You draw by calling the provided tools. Work in deliberate strokes:
a few paths per turn, then look at the canvas before continuing.
The plotter is monochrome; path-level color, width and opacity are
ignored. When a piece feels finished, sign it, give it a title with
name_piece, and call mark_piece_done.`

const paintSystemPrompt = `You are a painter working on a shared canvas.
You draw by calling the provided tools. You may choose color,
stroke_width, opacity and a brush preset per path; brushes spread
into bristle strokes, so build up layers gradually. When a piece
feels finished, sign it, give it a title with name_piece, and call
mark_piece_done.`

func systemPrompt(style model.DrawingStyleType) string {
	if style == model.StylePaint {
		return paintSystemPrompt
	}
	return plotterSystemPrompt
}

// composePrompt builds the turn prompt from the workspace's visible
// state plus any queued nudges (drained by the caller).
func (o *Orchestrator) composePrompt(canvas model.CanvasState, nudges []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Canvas: %dx%d, %d strokes so far. This is piece #%d.\n",
		canvas.Width, canvas.Height, len(canvas.Strokes), o.state.PieceNumber())
	if title := o.state.CurrentPieceTitle(); title != "" {
		fmt.Fprintf(&b, "Working title: %q.\n", title)
	}
	if notes := o.state.Notes(); notes != "" {
		fmt.Fprintf(&b, "Your notes from earlier: %s\n", notes)
	}
	if len(nudges) > 0 {
		b.WriteString("The human watching suggests:\n")
		for _, n := range nudges {
			fmt.Fprintf(&b, "- %s\n", n)
		}
	}
	b.WriteString("The attached image is the canvas as it looks now. Continue the piece.")
	return b.String()
}
