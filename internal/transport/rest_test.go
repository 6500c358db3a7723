package transport

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fawa-io/monocanvas/internal/agent"
	"github.com/fawa-io/monocanvas/internal/agent/faketext"
	"github.com/fawa-io/monocanvas/internal/apperror"
	"github.com/fawa-io/monocanvas/internal/model"
	"github.com/fawa-io/monocanvas/internal/orchestrator"
	"github.com/fawa-io/monocanvas/internal/registry"
	"github.com/fawa-io/monocanvas/internal/shutdown"
)

func newTestServer(t *testing.T) (*httptest.Server, *registry.Registry, string) {
	t.Helper()
	root := t.TempDir()
	reg := registry.New(registry.Options{
		WorkspaceRoot:   root,
		IdleGracePeriod: time.Minute,
		Orchestrator:    orchestrator.Config{ClientFPS: 1e9, AgentInterval: time.Hour},
		SessionFactory:  func(string) agent.Session { return faketext.New(nil) },
	})
	t.Cleanup(reg.ShutdownAll)

	validate := func(token string) (string, error) {
		if token == "" {
			return "", apperror.New(apperror.KindPermissionDenied, "missing token")
		}
		return token, nil
	}
	h := NewHandler(reg, validate, shutdown.New(time.Second), root, "test")

	mux := http.NewServeMux()
	h.RegisterRoutes(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, reg, root
}

func get(t *testing.T, srv *httptest.Server, path, token string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, srv.URL+path, nil)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func TestStateRequiresAuth(t *testing.T) {
	srv, _, _ := newTestServer(t)
	resp := get(t, srv, "/state", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestStateReturnsCanvasSummary(t *testing.T) {
	srv, _, _ := newTestServer(t)
	resp := get(t, srv, "/state", uuid.NewString())
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, float64(800), body["width"])
	assert.Equal(t, float64(0), body["stroke_count"])
	assert.Equal(t, "plotter", body["drawing_style"])
}

func TestPendingStrokesPopIsExactlyOnce(t *testing.T) {
	srv, reg, _ := newTestServer(t)
	userID := uuid.NewString()

	ws, err := reg.GetOrActivate(t.Context(), userID)
	require.NoError(t, err)
	ws.State.QueueStrokes([]model.PendingStroke{{Path: model.Path{Type: model.PathLine}}})

	resp := get(t, srv, "/strokes/pending", userID)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var body struct {
		Strokes     []model.PendingStroke `json:"strokes"`
		PieceNumber int                   `json:"piece_number"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Len(t, body.Strokes, 1)

	resp2 := get(t, srv, "/strokes/pending", userID)
	var body2 struct {
		Strokes []model.PendingStroke `json:"strokes"`
	}
	require.NoError(t, json.NewDecoder(resp2.Body).Decode(&body2))
	assert.Empty(t, body2.Strokes)
}

func TestCanvasPNGRenders(t *testing.T) {
	srv, _, _ := newTestServer(t)
	resp := get(t, srv, "/canvas.png", uuid.NewString())
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))
}

func TestCanvasSVGRenders(t *testing.T) {
	srv, _, _ := newTestServer(t)
	resp := get(t, srv, "/canvas.svg", uuid.NewString())
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/svg+xml", resp.Header.Get("Content-Type"))
}

func TestPublicGalleryHiddenWithoutOptIn(t *testing.T) {
	srv, reg, _ := newTestServer(t)
	userID := uuid.NewString()

	ws, err := reg.GetOrActivate(t.Context(), userID)
	require.NoError(t, err)
	require.NoError(t, ws.State.AddStroke(model.Path{Type: model.PathLine, Points: []model.Point{{X: 0}, {X: 1}}}))
	_, err = ws.State.NewCanvas()
	require.NoError(t, err)

	resp := get(t, srv, "/public/gallery/"+userID+"/piece_000000/strokes", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestPublicGalleryRejectsMalformedUserID(t *testing.T) {
	srv, _, _ := newTestServer(t)
	resp := get(t, srv, "/public/gallery/..%2f..%2fetc/piece_000000/strokes", "")
	assert.NotEqual(t, http.StatusOK, resp.StatusCode)
}

func TestHealthAndVersion(t *testing.T) {
	srv, _, _ := newTestServer(t)

	resp := get(t, srv, "/health", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = get(t, srv, "/version", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "test", body["version"])
}

func TestRobotsAndSitemapServe(t *testing.T) {
	srv, _, _ := newTestServer(t)

	resp := get(t, srv, "/robots.txt", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = get(t, srv, "/sitemap.xml", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/xml", resp.Header.Get("Content-Type"))
}
