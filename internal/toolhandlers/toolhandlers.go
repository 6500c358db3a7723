// Package toolhandlers implements the fixed tool set the drawing
// agent may call (SPEC_FULL §4.4): draw_paths, generate_svg,
// view_canvas, imagine, sign_canvas, name_piece, mark_piece_done.
//
// Tools are a closed tagged union dispatched through a single
// Dispatch function, replacing the original's string-keyed dict of
// async functions closing over module globals (SPEC_FULL §9):
// ToolContext bundles every piece of per-call state instead.
package toolhandlers

import (
	"context"
	"fmt"

	"github.com/fawa-io/monocanvas/internal/apperror"
	"github.com/fawa-io/monocanvas/internal/idgen"
	"github.com/fawa-io/monocanvas/internal/model"
	"github.com/fawa-io/monocanvas/internal/strokepipeline"
)

// DrawCallback is invoked after a tool adds validated paths to the
// canvas; it is the orchestrator's draw-gate hook (SPEC_FULL §4.6).
type DrawCallback func(ctx context.Context, paths []model.Path, done bool) error

// CanvasSnapshotFunc renders the current canvas to a PNG for tools
// that embed a view of the canvas in their result.
type CanvasSnapshotFunc func() ([]byte, error)

// ImageProvider generates an image from a text prompt (the "imagine"
// external API, out of scope per spec.md §1 — consumed as an opaque
// collaborator here).
type ImageProvider interface {
	Generate(ctx context.Context, prompt string) ([]byte, error)
}

// ToolContext bundles everything a tool handler needs: no
// package-level mutable state (SPEC_FULL §9).
type ToolContext struct {
	CanvasWidth  float64
	CanvasHeight float64
	DrawingStyle model.DrawingStyleType

	AddStrokes func(paths []model.Path) error
	OnDraw     DrawCallback
	Snapshot   CanvasSnapshotFunc
	SetTitle   func(title string) error
	Images     ImageProvider

	// ReferencesDir is the workspace's references/ directory. The
	// handlers do not write to it; imagine() output goes through
	// SaveReference.
	ReferencesDir string
	SaveReference func(name string, data []byte) (string, error)
}

// ToolCall is the closed tagged union of agent-issued tool calls.
type ToolCall interface{ isToolCall() }

type DrawPathsCall struct {
	Paths []RawPath
	Done  bool
}

type GenerateSVGCall struct {
	Code string
	Done bool
}

type ViewCanvasCall struct{}

type ImagineCall struct {
	Prompt string
	Name   string
}

type SignCanvasCall struct {
	Position string
	Size     float64
	Color    string
}

type NamePieceCall struct{ Title string }

type MarkPieceDoneCall struct{}

func (DrawPathsCall) isToolCall()     {}
func (GenerateSVGCall) isToolCall()   {}
func (ViewCanvasCall) isToolCall()    {}
func (ImagineCall) isToolCall()       {}
func (SignCanvasCall) isToolCall()    {}
func (NamePieceCall) isToolCall()     {}
func (MarkPieceDoneCall) isToolCall() {}

// RawPath is the wire shape of one path argument before validation.
type RawPath struct {
	Type        model.PathType
	Points      []model.Point
	D           string
	Color       *string
	StrokeWidth *float64
	Opacity     *float64
	Brush       string
}

// ToolResult is the functional contract's {content, is_error?} result.
type ToolResult struct {
	Content []ResultPart
	IsError bool
}

// ResultPart is one block of a tool result: text or an embedded image.
type ResultPart struct {
	Text      string
	ImagePNG  []byte
	IsImage   bool
	MediaType string
}

func textResult(format string, args ...any) ToolResult {
	return ToolResult{Content: []ResultPart{{Text: fmt.Sprintf(format, args...)}}}
}

func errorResult(format string, args ...any) ToolResult {
	return ToolResult{Content: []ResultPart{{Text: fmt.Sprintf(format, args...)}}, IsError: true}
}

// Dispatch routes one ToolCall to its handler (SPEC_FULL §4.4/§9).
func Dispatch(ctx context.Context, tc *ToolContext, call ToolCall) (ToolResult, error) {
	switch c := call.(type) {
	case DrawPathsCall:
		return handleDrawPaths(ctx, tc, c.Paths, c.Done)
	case GenerateSVGCall:
		return handleGenerateSVG(ctx, tc, c.Code, c.Done)
	case ViewCanvasCall:
		return handleViewCanvas(tc)
	case ImagineCall:
		return handleImagine(ctx, tc, c.Prompt, c.Name)
	case SignCanvasCall:
		return handleSignCanvas(ctx, tc, c.Position, c.Size, c.Color)
	case NamePieceCall:
		return handleNamePiece(tc, c.Title)
	case MarkPieceDoneCall:
		return handleMarkPieceDone(ctx, tc)
	default:
		return ToolResult{}, apperror.New(apperror.KindValidation, fmt.Sprintf("unknown tool call %T", call))
	}
}

func validatePaths(tc *ToolContext, raw []RawPath) ([]model.Path, []string) {
	var ok []model.Path
	var errs []string
	for i, rp := range raw {
		p := model.Path{Type: rp.Type, Points: rp.Points, D: rp.D, Author: model.AuthorAgent,
			Color: rp.Color, StrokeWidth: rp.StrokeWidth, Opacity: rp.Opacity, Brush: rp.Brush}
		validated, err := strokepipeline.ValidateAndClamp(p, tc.CanvasWidth, tc.CanvasHeight)
		if err != nil {
			errs = append(errs, fmt.Sprintf("path %d: %v", i, err))
			continue
		}
		ok = append(ok, validated)
	}
	return ok, errs
}

func handleDrawPaths(ctx context.Context, tc *ToolContext, raw []RawPath, done bool) (ToolResult, error) {
	paths, errs := validatePaths(tc, raw)

	if len(paths) > 0 && tc.AddStrokes != nil {
		if err := tc.AddStrokes(paths); err != nil {
			return ToolResult{}, err
		}
	}
	if (len(paths) > 0 || done) && tc.OnDraw != nil {
		if err := tc.OnDraw(ctx, paths, done); err != nil {
			return ToolResult{}, err
		}
	}

	if len(errs) > 0 {
		msg := fmt.Sprintf("Parsed %d paths with %d errors:\n", len(paths), len(errs))
		for _, e := range errs {
			msg += e + "\n"
		}
		if len(paths) == 0 {
			return ToolResult{Content: []ResultPart{{Text: msg}}, IsError: true}, nil
		}
		return appendSnapshot(tc, ToolResult{Content: []ResultPart{{Text: msg}}}), nil
	}

	msg := fmt.Sprintf("Successfully drew %d paths.", len(paths))
	if done {
		msg += " Piece marked as complete."
	}
	return appendSnapshot(tc, textResult("%s", msg)), nil
}

func appendSnapshot(tc *ToolContext, r ToolResult) ToolResult {
	if tc.Snapshot == nil {
		return r
	}
	png, err := tc.Snapshot()
	if err != nil {
		return r
	}
	r.Content = append(r.Content, ResultPart{ImagePNG: png, IsImage: true, MediaType: "image/png"})
	return r
}

func handleMarkPieceDone(ctx context.Context, tc *ToolContext) (ToolResult, error) {
	if tc.OnDraw != nil {
		if err := tc.OnDraw(ctx, nil, true); err != nil {
			return ToolResult{}, err
		}
	}
	return textResult("Piece marked as complete."), nil
}

func handleViewCanvas(tc *ToolContext) (ToolResult, error) {
	if tc.Snapshot == nil {
		return errorResult("Error: canvas not available"), nil
	}
	png, err := tc.Snapshot()
	if err != nil {
		return errorResult("Error: failed to render canvas: %v", err), nil
	}
	return ToolResult{Content: []ResultPart{{ImagePNG: png, IsImage: true, MediaType: "image/png"}}}, nil
}

func handleImagine(ctx context.Context, tc *ToolContext, prompt, name string) (ToolResult, error) {
	if tc.Images == nil {
		return errorResult("Error: image generation is not configured"), nil
	}
	if prompt == "" {
		return errorResult("Error: prompt is required"), nil
	}
	data, err := tc.Images.Generate(ctx, prompt)
	if err != nil {
		return errorResult("Error: image generation failed: %v", err), nil
	}
	if name == "" {
		name = idgen.NewGalleryID()
	}
	if tc.SaveReference != nil {
		if _, err := tc.SaveReference(name, data); err != nil {
			return errorResult("Error: failed to save reference image: %v", err), nil
		}
	}
	return ToolResult{Content: []ResultPart{
		{Text: fmt.Sprintf("Generated reference image %q.", name)},
		{ImagePNG: data, IsImage: true, MediaType: "image/png"},
	}}, nil
}

func handleNamePiece(tc *ToolContext, title string) (ToolResult, error) {
	if title == "" {
		return errorResult("Error: please provide a title for the piece"), nil
	}
	if len(title) > 100 {
		title = title[:100]
	}
	if tc.SetTitle != nil {
		if err := tc.SetTitle(title); err != nil {
			return ToolResult{}, err
		}
	}
	return textResult("This piece is now titled: %q", title), nil
}
