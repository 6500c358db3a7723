package toolhandlers

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/fawa-io/monocanvas/internal/model"
	"github.com/fawa-io/monocanvas/internal/strokepipeline"
)

// handleGenerateSVG treats the generate_svg payload as a restricted
// SVG path-command grammar rather than executing arbitrary Python in a
// subprocess (SPEC_FULL §4.4 decision, recorded in DESIGN.md): the
// "code" argument is one or more semicolon/newline-separated absolute
// M/L/Q/C d-strings, each becoming a single svg Path. This keeps the
// tool's result contract ("draw the paths the code describes")
// without running untrusted code server-side.
func handleGenerateSVG(ctx context.Context, tc *ToolContext, code string, done bool) (ToolResult, error) {
	if strings.TrimSpace(code) == "" {
		return errorResult("Error: code must be a non-empty string"), nil
	}

	dStrings, errs := parseSVGProgram(code)
	var paths []model.Path
	for _, d := range dStrings {
		p, err := strokepipeline.ValidateAndClamp(model.Path{Type: model.PathSVG, D: d, Author: model.AuthorAgent}, tc.CanvasWidth, tc.CanvasHeight)
		if err != nil {
			errs = append(errs, err.Error())
			continue
		}
		paths = append(paths, p)
	}

	if tc.AddStrokes != nil && len(paths) > 0 {
		if err := tc.AddStrokes(paths); err != nil {
			return ToolResult{}, err
		}
	}
	if tc.OnDraw != nil && (len(paths) > 0 || done) {
		if err := tc.OnDraw(ctx, paths, done); err != nil {
			return ToolResult{}, err
		}
	}

	var sb strings.Builder
	if len(paths) == 0 {
		sb.WriteString("Code executed but no paths were generated. Provide one absolute M/L/Q/C d-string per line.")
	} else {
		fmt.Fprintf(&sb, "Successfully generated and drew %d paths.", len(paths))
	}
	if len(errs) > 0 {
		sb.WriteString("\nErrors:\n" + strings.Join(errs, "\n"))
	}
	if done {
		sb.WriteString(" Piece marked as complete.")
	}

	res := textResult("%s", sb.String())
	if len(paths) > 0 {
		return appendSnapshot(tc, res), nil
	}
	return res, nil
}

// svgCommandPattern matches one absolute M/L/Q/C command token
// followed by its numeric operands (SPEC_FULL §3: svg kind is a
// restricted subset of absolute M/L/Q/C).
var svgCommandPattern = regexp.MustCompile(`^[MLQC](\s+-?\d+(\.\d+)?\s+-?\d+(\.\d+)?){1,3}$`)

// parseSVGProgram splits code into candidate d-strings (one per
// line/semicolon-delimited statement) and validates each against the
// restricted grammar, returning the valid ones and a list of error
// strings for the rejected ones.
func parseSVGProgram(code string) ([]string, []string) {
	var candidates []string
	for _, line := range strings.FieldsFunc(code, func(r rune) bool { return r == '\n' || r == ';' }) {
		line = strings.TrimSpace(line)
		if line != "" {
			candidates = append(candidates, line)
		}
	}

	var valid []string
	var errs []string
	for i, c := range candidates {
		if isValidSVGPath(c) {
			valid = append(valid, c)
		} else {
			errs = append(errs, fmt.Sprintf("statement %d: not a valid absolute M/L/Q/C path", i))
		}
	}
	return valid, errs
}

// isValidSVGPath checks every command segment of d against the
// restricted M/L/Q/C grammar and that coordinate pairs are well-formed.
func isValidSVGPath(d string) bool {
	segments := splitCommands(d)
	if len(segments) == 0 {
		return false
	}
	for _, seg := range segments {
		if !svgCommandPattern.MatchString(strings.TrimSpace(seg)) {
			return false
		}
	}
	return true
}

// splitCommands breaks a d-string into one segment per command letter
// (e.g. "M 0 0 L 10 10" -> ["M 0 0", "L 10 10"]).
func splitCommands(d string) []string {
	var segs []string
	var cur strings.Builder
	for _, r := range d {
		if strings.ContainsRune("MLQC", r) && cur.Len() > 0 {
			segs = append(segs, cur.String())
			cur.Reset()
		}
		cur.WriteRune(r)
	}
	if cur.Len() > 0 {
		segs = append(segs, cur.String())
	}
	return segs
}
