package toolhandlers

import (
	"fmt"

	"github.com/fawa-io/monocanvas/internal/apperror"
	"github.com/fawa-io/monocanvas/internal/model"
)

// CallFromWire translates a provider tool-use block (name + decoded
// JSON args) into the typed ToolCall union, so the agent session
// adapter never needs to know the tool set and Dispatch never sees
// raw maps (SPEC_FULL §9 "dynamic tool dispatch").
func CallFromWire(name string, input map[string]any) (ToolCall, error) {
	switch name {
	case "draw_paths":
		paths, err := rawPathsFromWire(input["paths"])
		if err != nil {
			return nil, err
		}
		return DrawPathsCall{Paths: paths, Done: boolArg(input, "done")}, nil
	case "generate_svg":
		code, _ := input["code"].(string)
		return GenerateSVGCall{Code: code, Done: boolArg(input, "done")}, nil
	case "view_canvas":
		return ViewCanvasCall{}, nil
	case "imagine":
		prompt, _ := input["prompt"].(string)
		imgName, _ := input["name"].(string)
		return ImagineCall{Prompt: prompt, Name: imgName}, nil
	case "sign_canvas":
		pos, _ := input["position"].(string)
		col, _ := input["color"].(string)
		return SignCanvasCall{Position: pos, Size: floatArg(input, "size"), Color: col}, nil
	case "name_piece":
		title, _ := input["title"].(string)
		return NamePieceCall{Title: title}, nil
	case "mark_piece_done":
		return MarkPieceDoneCall{}, nil
	default:
		return nil, apperror.New(apperror.KindValidation, fmt.Sprintf("unknown tool %q", name))
	}
}

func boolArg(input map[string]any, key string) bool {
	v, _ := input[key].(bool)
	return v
}

func floatArg(input map[string]any, key string) float64 {
	switch v := input[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	default:
		return 0
	}
}

func rawPathsFromWire(v any) ([]RawPath, error) {
	list, ok := v.([]any)
	if !ok {
		return nil, apperror.New(apperror.KindValidation, "draw_paths: \"paths\" must be an array")
	}
	out := make([]RawPath, 0, len(list))
	for i, item := range list {
		obj, ok := item.(map[string]any)
		if !ok {
			return nil, apperror.New(apperror.KindValidation, fmt.Sprintf("draw_paths: path %d is not an object", i))
		}
		var rp RawPath
		if t, ok := obj["type"].(string); ok {
			rp.Type = model.PathType(t)
		}
		if d, ok := obj["d"].(string); ok {
			rp.D = d
		}
		if b, ok := obj["brush"].(string); ok {
			rp.Brush = b
		}
		if c, ok := obj["color"].(string); ok {
			rp.Color = &c
		}
		if w, ok := obj["stroke_width"].(float64); ok {
			rp.StrokeWidth = &w
		}
		if o, ok := obj["opacity"].(float64); ok {
			rp.Opacity = &o
		}
		if pts, ok := obj["points"].([]any); ok {
			rp.Points = make([]model.Point, 0, len(pts))
			for _, pv := range pts {
				pm, ok := pv.(map[string]any)
				if !ok {
					continue
				}
				x, _ := pm["x"].(float64)
				y, _ := pm["y"].(float64)
				rp.Points = append(rp.Points, model.Point{X: x, Y: y})
			}
		}
		out = append(out, rp)
	}
	return out, nil
}
