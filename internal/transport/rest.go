package transport

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/fawa-io/monocanvas/internal/fwlog"
	"github.com/fawa-io/monocanvas/internal/idgen"
	"github.com/fawa-io/monocanvas/internal/model"
	"github.com/fawa-io/monocanvas/internal/registry"
	"github.com/fawa-io/monocanvas/internal/rendering"
	"github.com/fawa-io/monocanvas/internal/workspace"
)

var pieceIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// RegisterRoutes wires every REST endpoint from spec.md §6.2 onto mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /state", h.withAuth(h.handleState))
	mux.HandleFunc("GET /canvas.png", h.withAuth(h.handleCanvasPNG))
	mux.HandleFunc("GET /canvas.svg", h.withAuth(h.handleCanvasSVG))
	mux.HandleFunc("GET /gallery", h.withAuth(h.handleGallery))
	mux.HandleFunc("GET /gallery/thumbnail/{piece}", h.withAuth(h.handleThumbnail))
	mux.HandleFunc("GET /strokes/pending", h.withAuth(h.handlePendingStrokes))
	mux.HandleFunc("POST /piece_number/{n}", h.withAuth(h.handleSetPieceNumber))

	mux.HandleFunc("GET /public/gallery", h.handlePublicGallery)
	mux.HandleFunc("GET /public/gallery/{user}/{piece}/strokes", h.handlePublicStrokes)
	mux.HandleFunc("GET /public/gallery/{user}/{piece}/og-image.png", h.handleOGImage)

	mux.HandleFunc("GET /sitemap.xml", h.handleSitemap)
	mux.HandleFunc("GET /robots.txt", h.handleRobots)
	mux.HandleFunc("GET /health", h.handleHealth)
	mux.HandleFunc("GET /version", h.handleVersion)
}

// withAuth resolves the bearer token to an active workspace and hands
// it to next.
func (h *Handler) withAuth(next func(w http.ResponseWriter, r *http.Request, ws *registry.ActiveWorkspace)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			http.Error(w, "missing bearer token", http.StatusUnauthorized)
			return
		}
		userID, err := h.Validate(token)
		if err != nil {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}
		ws, err := h.Registry.GetOrActivate(r.Context(), userID)
		if err != nil {
			fwlog.Errorf("user %s: activation for REST failed: %v", userID, err)
			http.Error(w, "workspace unavailable", http.StatusInternalServerError)
			return
		}
		next(w, r, ws)
	}
}

func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return r.URL.Query().Get("token")
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		fwlog.Warnf("write response failed: %v", err)
	}
}

func (h *Handler) handleState(w http.ResponseWriter, _ *http.Request, ws *registry.ActiveWorkspace) {
	canvas := ws.State.Canvas()
	writeJSON(w, map[string]any{
		"width":         canvas.Width,
		"height":        canvas.Height,
		"stroke_count":  len(canvas.Strokes),
		"drawing_style": canvas.DrawingStyle,
		"status":        ws.State.Status(),
		"paused":        ws.State.PauseReason() != model.PauseNone,
		"pause_reason":  ws.State.PauseReason(),
		"piece_number":  ws.State.PieceNumber(),
		"title":         ws.State.CurrentPieceTitle(),
	})
}

func (h *Handler) handleCanvasPNG(w http.ResponseWriter, _ *http.Request, ws *registry.ActiveWorkspace) {
	png, err := rendering.Snapshot(ws.State.Canvas())
	if err != nil {
		http.Error(w, "render failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(png)
}

func (h *Handler) handleCanvasSVG(w http.ResponseWriter, _ *http.Request, ws *registry.ActiveWorkspace) {
	w.Header().Set("Content-Type", "image/svg+xml")
	_, _ = w.Write(rendering.SnapshotSVG(ws.State.Canvas()))
}

func (h *Handler) handleGallery(w http.ResponseWriter, _ *http.Request, ws *registry.ActiveWorkspace) {
	entries, err := ws.State.ListGallery()
	if err != nil {
		http.Error(w, "gallery unavailable", http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]any{"canvases": entries})
}

func (h *Handler) handleThumbnail(w http.ResponseWriter, r *http.Request, ws *registry.ActiveWorkspace) {
	piece := strings.TrimSuffix(r.PathValue("piece"), ".png")
	n, ok := workspace.ParsePieceNumber(piece)
	if !ok {
		http.Error(w, "invalid piece id", http.StatusBadRequest)
		return
	}
	strokes, style, err := ws.State.LoadFromGallery(n)
	if err != nil || strokes == nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	canvas := ws.State.Canvas()
	png, err := rendering.Snapshot(model.CanvasState{Width: canvas.Width, Height: canvas.Height, Strokes: strokes, DrawingStyle: style})
	if err != nil {
		http.Error(w, "render failed", http.StatusInternalServerError)
		return
	}
	// Gallery pieces are immutable (I6), so thumbnails never change.
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(png)
}

// handlePendingStrokes atomically takes the pending queue; each entry
// is delivered to the client exactly once.
func (h *Handler) handlePendingStrokes(w http.ResponseWriter, _ *http.Request, ws *registry.ActiveWorkspace) {
	strokes := ws.State.PopStrokes()
	writeJSON(w, map[string]any{
		"strokes":      strokes,
		"piece_number": ws.State.PieceNumber(),
	})
}

func (h *Handler) handleSetPieceNumber(w http.ResponseWriter, r *http.Request, ws *registry.ActiveWorkspace) {
	n, err := strconv.Atoi(r.PathValue("n"))
	if err != nil || n < 0 {
		http.Error(w, "invalid piece number", http.StatusBadRequest)
		return
	}
	if err := ws.State.SetPieceNumber(n); err != nil {
		http.Error(w, "save failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]any{"piece_number": n})
}

// --- Public (unauthenticated) gallery surface ---

type publicPiece struct {
	UserID       string                 `json:"user_id"`
	PieceID      string                 `json:"piece_id"`
	PieceNumber  int                    `json:"piece_number"`
	StrokeCount  int                    `json:"stroke_count"`
	CreatedAt    string                 `json:"created_at"`
	DrawingStyle model.DrawingStyleType `json:"drawing_style"`
	Title        string                 `json:"title,omitempty"`
}

func (h *Handler) optedIn(userID string) bool {
	return h.PublicOptIn != nil && h.PublicOptIn(userID)
}

// publicPieces walks opted-in users' gallery indexes. The walk is
// filesystem-only and never activates a workspace.
func (h *Handler) publicPieces(limit int) []publicPiece {
	var out []publicPiece
	entries, err := os.ReadDir(h.WorkspaceRoot)
	if err != nil {
		return out
	}
	for _, e := range entries {
		if !e.IsDir() || !idgen.ValidUserID(e.Name()) || !h.optedIn(e.Name()) {
			continue
		}
		indexFile := filepath.Join(h.WorkspaceRoot, e.Name(), "gallery", "_index.json")
		data, err := os.ReadFile(indexFile)
		if err != nil {
			continue
		}
		var idx []struct {
			ID           string                 `json:"id"`
			PieceNumber  int                    `json:"piece_number"`
			StrokeCount  int                    `json:"stroke_count"`
			CreatedAt    string                 `json:"created_at"`
			DrawingStyle model.DrawingStyleType `json:"drawing_style"`
		}
		if err := json.Unmarshal(data, &idx); err != nil {
			continue
		}
		for _, p := range idx {
			out = append(out, publicPiece{
				UserID: e.Name(), PieceID: p.ID, PieceNumber: p.PieceNumber,
				StrokeCount: p.StrokeCount, CreatedAt: p.CreatedAt, DrawingStyle: p.DrawingStyle,
			})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt > out[j].CreatedAt })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (h *Handler) handlePublicGallery(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}
	writeJSON(w, map[string]any{"pieces": h.publicPieces(limit)})
}

// loadPublicPiece validates both path segments against their anchored
// patterns before touching the filesystem (I1).
func (h *Handler) loadPublicPiece(userID, pieceID string) (*model.GalleryEntry, bool) {
	if !idgen.ValidUserID(userID) || !pieceIDPattern.MatchString(pieceID) || !h.optedIn(userID) {
		return nil, false
	}
	n, ok := workspace.ParsePieceNumber(pieceID)
	if !ok {
		return nil, false
	}
	pieceFile := filepath.Join(h.WorkspaceRoot, userID, "gallery", fmt.Sprintf("piece_%06d.json", n))
	data, err := os.ReadFile(pieceFile)
	if err != nil {
		return nil, false
	}
	var piece struct {
		PieceNumber  int                    `json:"piece_number"`
		Title        string                 `json:"title"`
		Strokes      []model.Path           `json:"strokes"`
		CreatedAt    string                 `json:"created_at"`
		DrawingStyle model.DrawingStyleType `json:"drawing_style"`
	}
	if err := json.Unmarshal(data, &piece); err != nil {
		return nil, false
	}
	createdAt, _ := time.Parse(time.RFC3339Nano, piece.CreatedAt)
	style := piece.DrawingStyle
	if style == "" {
		style = model.StylePlotter
	}
	return &model.GalleryEntry{
		ID: pieceID, PieceNumber: piece.PieceNumber, Strokes: piece.Strokes,
		StrokeCount: len(piece.Strokes), CreatedAt: createdAt,
		DrawingStyle: style, Title: piece.Title,
	}, true
}

func (h *Handler) handlePublicStrokes(w http.ResponseWriter, r *http.Request) {
	entry, ok := h.loadPublicPiece(r.PathValue("user"), r.PathValue("piece"))
	if !ok {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	writeJSON(w, entry)
}

func (h *Handler) handleOGImage(w http.ResponseWriter, r *http.Request) {
	entry, ok := h.loadPublicPiece(r.PathValue("user"), r.PathValue("piece"))
	if !ok {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	// 1200x630 is the social-share aspect every major platform wants.
	png, err := rendering.Snapshot(model.CanvasState{Width: 1200, Height: 630, Strokes: entry.Strokes, DrawingStyle: entry.DrawingStyle})
	if err != nil {
		http.Error(w, "render failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(png)
}

func (h *Handler) handleSitemap(w http.ResponseWriter, _ *http.Request) {
	base := h.PublicBaseURL
	if base == "" {
		base = "https://localhost"
	}
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	b.WriteString(`<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">` + "\n")
	for _, p := range h.publicPieces(500) {
		fmt.Fprintf(&b, "  <url><loc>%s/public/gallery/%s/%s/strokes</loc></url>\n", base, p.UserID, p.PieceID)
	}
	b.WriteString("</urlset>\n")
	w.Header().Set("Content-Type", "application/xml")
	_, _ = w.Write([]byte(b.String()))
}

func (h *Handler) handleRobots(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = w.Write([]byte("User-agent: *\nAllow: /public/\nDisallow: /\n"))
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	if h.Shutdown != nil && h.Shutdown.InProgress() {
		w.WriteHeader(http.StatusServiceUnavailable)
		writeJSON(w, map[string]any{"status": "shutting_down"})
		return
	}
	writeJSON(w, map[string]any{"status": "ok", "service": "monocanvas", "active_workspaces": h.Registry.ActiveCount()})
}

func (h *Handler) handleVersion(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, map[string]any{"version": h.Version})
}
