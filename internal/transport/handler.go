package transport

import (
	"errors"
	"io"
	"net/http"

	"github.com/gorilla/websocket"
	wt "github.com/quic-go/webtransport-go"

	"github.com/fawa-io/monocanvas/internal/connset"
	"github.com/fawa-io/monocanvas/internal/fwlog"
	"github.com/fawa-io/monocanvas/internal/model"
	"github.com/fawa-io/monocanvas/internal/registry"
	"github.com/fawa-io/monocanvas/internal/shutdown"
)

// TokenValidator resolves a bearer token to a user id. Authentication
// itself (JWT issuance, magic links) is an external collaborator; the
// core consumes it as this one capability (spec.md §1).
type TokenValidator func(token string) (userID string, err error)

// Handler accepts client connections and serves the REST surface for
// every user workspace.
type Handler struct {
	Registry *registry.Registry
	Validate TokenValidator
	Shutdown *shutdown.Coordinator
	Upgrader websocket.Upgrader
	WTServer *wt.Server
	Version  string

	// PublicOptIn gates the unauthenticated public-gallery routes.
	// Nil means nobody has opted in.
	PublicOptIn func(userID string) bool

	// WorkspaceRoot lets the public routes read gallery files without
	// activating a workspace.
	WorkspaceRoot string

	// PublicBaseURL is the externally visible origin used in
	// sitemap.xml entries.
	PublicBaseURL string
}

// NewHandler builds a transport handler bound to the registry.
func NewHandler(reg *registry.Registry, validate TokenValidator, coord *shutdown.Coordinator, workspaceRoot, version string) *Handler {
	return &Handler{
		Registry: reg,
		Validate: validate,
		Shutdown: coord,
		Upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		WorkspaceRoot: workspaceRoot,
		Version:       version,
	}
}

// HandleWebSocket upgrades and attaches one WebSocket client.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	if h.Shutdown != nil && h.Shutdown.InProgress() {
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
		return
	}

	token := r.URL.Query().Get("token")
	conn, err := h.Upgrader.Upgrade(w, r, nil)
	if err != nil {
		fwlog.Errorf("websocket upgrade failed: %v", err)
		return
	}
	c := &wsConn{conn: conn}

	userID, err := h.Validate(token)
	if err != nil {
		fwlog.Warnf("websocket auth failed from %s: %v", c.RemoteAddr(), err)
		c.closeWithCode(closeAuthFailed, "authentication failed")
		return
	}

	ws, err := h.Registry.GetOrActivate(r.Context(), userID)
	if err != nil {
		fwlog.Errorf("user %s: activation failed: %v", userID, err)
		c.closeWithCode(closeAuthFailed, "workspace unavailable")
		return
	}

	if !ws.Conns.Add(c) {
		c.closeWithCode(closeConnectionCap, "connection limit reached")
		return
	}
	h.afterConnect(ws, c)

	defer h.Registry.OnDisconnect(userID, c)
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return
			}
			fwlog.Warnf("user %s: websocket read error: %v", userID, err)
			return
		}
		ws.Dispatcher.Handle(r.Context(), c, data)
	}
}

// afterConnect runs the shared first-message handshake for any
// transport: init snapshot, resume-on-reconnect, and a replayed
// agent_strokes_ready if a batch was queued while the user was away.
func (h *Handler) afterConnect(ws *registry.ActiveWorkspace, c connset.Conn) {
	h.Registry.OnConnect(ws)

	canvas := ws.State.Canvas()
	gallery, err := ws.State.ListGallery()
	if err != nil {
		fwlog.Warnf("user %s: gallery listing for init failed: %v", ws.State.UserID, err)
	}
	init := model.InitMessage{
		Type:         "init",
		Strokes:      canvas.Strokes,
		Gallery:      gallery,
		Status:       ws.State.Status(),
		Paused:       ws.State.PauseReason() != model.PauseNone,
		PieceNumber:  ws.State.PieceNumber(),
		Monologue:    ws.State.Monologue(),
		DrawingStyle: canvas.DrawingStyle,
		StyleConfig:  model.StyleConfig(canvas.DrawingStyle),
	}
	if err := ws.Conns.SendTo(c, init); err != nil {
		fwlog.Warnf("user %s: init send failed: %v", ws.State.UserID, err)
		return
	}

	if n := ws.State.PendingStrokeCount(); n > 0 {
		_ = ws.Conns.SendTo(c, model.NewAgentStrokesReadyMessage(n, 0, ws.State.PieceNumber()))
	}
}

// HandleWebTransport accepts one WebTransport client at
// /webtransport/canvas, sharing the fan-out and dispatcher with the
// WebSocket path.
func (h *Handler) HandleWebTransport(w http.ResponseWriter, r *http.Request) {
	if h.Shutdown != nil && h.Shutdown.InProgress() {
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
		return
	}

	token := r.URL.Query().Get("token")
	userID, err := h.Validate(token)
	if err != nil {
		http.Error(w, "authentication failed", http.StatusUnauthorized)
		return
	}

	session, err := h.WTServer.Upgrade(w, r)
	if err != nil {
		fwlog.Errorf("webtransport upgrade failed: %v", err)
		http.Error(w, "upgrade failed", http.StatusInternalServerError)
		return
	}

	out, err := session.OpenStream()
	if err != nil {
		fwlog.Errorf("user %s: opening webtransport output stream: %v", userID, err)
		_ = session.CloseWithError(0, "stream open failed")
		return
	}
	c := &wtConn{session: session, out: out, remote: r.RemoteAddr}

	ws, err := h.Registry.GetOrActivate(r.Context(), userID)
	if err != nil {
		fwlog.Errorf("user %s: activation failed: %v", userID, err)
		_ = c.Close()
		return
	}

	if !ws.Conns.Add(c) {
		_ = session.CloseWithError(closeConnectionCap, "connection limit reached")
		return
	}
	h.afterConnect(ws, c)

	defer h.Registry.OnDisconnect(userID, c)
	h.readWebTransport(r, ws, c)
}

func (h *Handler) readWebTransport(r *http.Request, ws *registry.ActiveWorkspace, c *wtConn) {
	for {
		stream, err := c.session.AcceptStream(r.Context())
		if err != nil {
			return
		}
		go func() {
			defer func() { _ = stream.Close() }()
			buf := make([]byte, 0, 4096)
			tmp := make([]byte, 4096)
			for {
				n, err := stream.Read(tmp)
				if n > 0 {
					buf = append(buf, tmp[:n]...)
					for {
						idx := indexByte(buf, '\n')
						if idx < 0 {
							break
						}
						frame := buf[:idx]
						buf = buf[idx+1:]
						if len(frame) > 0 {
							ws.Dispatcher.Handle(r.Context(), c, frame)
						}
					}
				}
				if err != nil {
					if len(buf) > 0 {
						ws.Dispatcher.Handle(r.Context(), c, buf)
					}
					if !errors.Is(err, io.EOF) {
						fwlog.Debugf("user %s: webtransport stream ended: %v", ws.State.UserID, err)
					}
					return
				}
			}
		}()
	}
}

func indexByte(b []byte, sep byte) int {
	for i, v := range b {
		if v == sep {
			return i
		}
	}
	return -1
}
