// Package workspace implements the filesystem-backed, per-user canvas
// state store: workspace.json plus a gallery directory of saved
// pieces, with atomic writes and a cached gallery index.
package workspace

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/fawa-io/monocanvas/internal/apperror"
	"github.com/fawa-io/monocanvas/internal/fwlog"
	"github.com/fawa-io/monocanvas/internal/idgen"
	"github.com/fawa-io/monocanvas/internal/model"
)

const defaultCanvasWidth = 800
const defaultCanvasHeight = 600

// galleryIndexEntry is one row of gallery/_index.json.
type galleryIndexEntry struct {
	ID           string                 `json:"id"`
	PieceNumber  int                    `json:"piece_number"`
	StrokeCount  int                    `json:"stroke_count"`
	CreatedAt    string                 `json:"created_at"`
	DrawingStyle model.DrawingStyleType `json:"drawing_style"`
}

// onDiskState mirrors workspace.json's shape.
type onDiskState struct {
	Canvas            model.CanvasState     `json:"canvas"`
	Status            model.AgentStatus     `json:"status"`
	PieceNumber       int                   `json:"piece_number"`
	CurrentPieceTitle string                `json:"current_piece_title"`
	Notes             string                `json:"notes"`
	Monologue         string                `json:"monologue"`
	PendingStrokes    []model.PendingStroke `json:"pending_strokes"`
	StrokeBatchID     int                   `json:"stroke_batch_id"`
	PauseReason       model.PauseReason     `json:"pause_reason"`
	UpdatedAt         string                `json:"updated_at"`
}

// State is one user's workspace: current canvas, agent metadata, the
// pending-stroke queue, and access to the saved-piece gallery. Canvas,
// queue, gallery, title and style mutations persist before returning;
// SetStatus, SetPauseReason, SetMonologue and SetNotes change memory
// only and are written by the next save.
type State struct {
	UserID string

	dir           string
	workspaceFile string
	galleryDir    string
	galleryIndex  string

	maxWorkspaceBytes int64
	maxPendingStrokes int

	writeLock  sync.Mutex
	strokeLock sync.Mutex

	mu sync.RWMutex

	canvas            model.CanvasState
	status            model.AgentStatus
	pieceNumber       int
	currentPieceTitle string
	notes             string
	monologue         string
	pauseReason       model.PauseReason
	pendingStrokes    []model.PendingStroke
	strokeBatchID     int

	indexMu      sync.Mutex
	galleryCache []galleryIndexEntry

	saveTimerMu sync.Mutex
	saveTimer   *time.Timer
}

// LoadForUser loads or creates the on-disk workspace for userID under
// baseDir. userID must already be validated as a UUID by the caller
// (see idgen.ValidUserID) — this function re-checks and also confirms
// the resolved directory stays under baseDir (I1).
func LoadForUser(baseDir, userID string, maxWorkspaceBytes int64, maxPendingStrokes int) (*State, error) {
	if !idgen.ValidUserID(userID) {
		return nil, apperror.New(apperror.KindValidation, fmt.Sprintf("invalid user_id (must be UUID): %s", userID))
	}

	absBase, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, apperror.Wrap(apperror.KindFatal, "resolving workspace base dir", err)
	}
	userDir := filepath.Join(absBase, userID)
	resolvedUserDir, err := filepath.Abs(userDir)
	if err != nil {
		return nil, apperror.Wrap(apperror.KindFatal, "resolving user workspace dir", err)
	}
	if !strings.HasPrefix(resolvedUserDir, absBase) {
		return nil, apperror.New(apperror.KindPermissionDenied, fmt.Sprintf("invalid user directory path for user %s", userID))
	}

	if err := os.MkdirAll(resolvedUserDir, 0o755); err != nil {
		return nil, apperror.Wrap(apperror.KindFatal, "creating workspace directory", err)
	}
	galleryDir := filepath.Join(resolvedUserDir, "gallery")
	if err := os.MkdirAll(galleryDir, 0o755); err != nil {
		return nil, apperror.Wrap(apperror.KindFatal, "creating gallery directory", err)
	}

	s := &State{
		UserID:            userID,
		dir:               resolvedUserDir,
		workspaceFile:     filepath.Join(resolvedUserDir, "workspace.json"),
		galleryDir:        galleryDir,
		galleryIndex:      filepath.Join(galleryDir, "_index.json"),
		maxWorkspaceBytes: maxWorkspaceBytes,
		maxPendingStrokes: maxPendingStrokes,
		canvas:            model.CanvasState{Width: defaultCanvasWidth, Height: defaultCanvasHeight, DrawingStyle: model.StylePlotter},
		status:            model.StatusPaused,
		pauseReason:       model.PauseNone,
	}
	if err := s.loadFromFile(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *State) loadFromFile() error {
	data, err := os.ReadFile(s.workspaceFile)
	if err != nil {
		if os.IsNotExist(err) {
			fwlog.Infof("new workspace created for user %s", s.UserID)
			return nil
		}
		return apperror.Wrap(apperror.KindFatal, "reading workspace.json", err)
	}

	var parsed onDiskState
	if err := json.Unmarshal(data, &parsed); err != nil {
		fwlog.Errorf("corrupted workspace.json for user %s: %v, starting fresh", s.UserID, err)
		backup := strings.TrimSuffix(s.workspaceFile, ".json") + ".json.corrupted"
		_ = os.Rename(s.workspaceFile, backup)
		return nil
	}

	if parsed.Canvas.Width == 0 {
		parsed.Canvas.Width = defaultCanvasWidth
	}
	if parsed.Canvas.Height == 0 {
		parsed.Canvas.Height = defaultCanvasHeight
	}
	if parsed.Canvas.DrawingStyle == "" {
		parsed.Canvas.DrawingStyle = model.StylePlotter
	}

	s.mu.Lock()
	s.canvas = parsed.Canvas
	s.status = parsed.Status
	if s.status == "" {
		s.status = model.StatusPaused
	}
	s.pieceNumber = parsed.PieceNumber
	s.currentPieceTitle = parsed.CurrentPieceTitle
	s.notes = parsed.Notes
	s.monologue = parsed.Monologue
	s.pendingStrokes = parsed.PendingStrokes
	s.strokeBatchID = parsed.StrokeBatchID
	s.pauseReason = parsed.PauseReason
	if s.pauseReason == "" {
		s.pauseReason = model.PauseNone
	}
	s.mu.Unlock()

	fwlog.Infof("workspace loaded for user %s: piece %d, %d strokes", s.UserID, s.pieceNumber, len(s.canvas.Strokes))
	return nil
}

// Save persists the current in-memory state atomically (temp file +
// rename), trimming the oldest strokes if the serialized size would
// exceed maxWorkspaceBytes (I3).
func (s *State) Save() error {
	s.writeLock.Lock()
	defer s.writeLock.Unlock()

	s.mu.Lock()
	data := onDiskState{
		Canvas:            s.canvas,
		Status:            s.status,
		PieceNumber:       s.pieceNumber,
		CurrentPieceTitle: s.currentPieceTitle,
		Notes:             s.notes,
		Monologue:         s.monologue,
		PendingStrokes:    s.pendingStrokes,
		StrokeBatchID:     s.strokeBatchID,
		PauseReason:       s.pauseReason,
		UpdatedAt:         time.Now().UTC().Format(time.RFC3339Nano),
	}
	s.mu.Unlock()

	encoded, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return apperror.Wrap(apperror.KindFatal, "encoding workspace state", err)
	}

	if s.maxWorkspaceBytes > 0 {
		for int64(len(encoded)) > s.maxWorkspaceBytes && len(data.Canvas.Strokes) > 10 {
			fwlog.Warnf("user %s: workspace size (%d bytes) exceeds limit (%d), truncating old strokes", s.UserID, len(encoded), s.maxWorkspaceBytes)
			data.Canvas.Strokes = data.Canvas.Strokes[10:]
			encoded, err = json.MarshalIndent(data, "", "  ")
			if err != nil {
				return apperror.Wrap(apperror.KindFatal, "encoding workspace state", err)
			}
		}
		s.mu.Lock()
		s.canvas.Strokes = data.Canvas.Strokes
		s.mu.Unlock()
	}

	return atomicWriteFile(s.workspaceFile, encoded)
}

// SaveDebounced coalesces a burst of mutations into a single deferred
// save: the first call in a burst schedules one write d later, later
// calls within the window are no-ops. Used for high-frequency updates
// (streamed monologue text) where a write per mutation would thrash
// the disk.
func (s *State) SaveDebounced(d time.Duration) {
	s.saveTimerMu.Lock()
	defer s.saveTimerMu.Unlock()
	if s.saveTimer != nil {
		return
	}
	s.saveTimer = time.AfterFunc(d, func() {
		s.saveTimerMu.Lock()
		s.saveTimer = nil
		s.saveTimerMu.Unlock()
		if err := s.Save(); err != nil {
			fwlog.Errorf("user %s: debounced save failed: %v", s.UserID, err)
		}
	})
}

// StopDebounce cancels any scheduled deferred save (deactivation path;
// the caller follows with a final synchronous Save).
func (s *State) StopDebounce() {
	s.saveTimerMu.Lock()
	if s.saveTimer != nil {
		s.saveTimer.Stop()
		s.saveTimer = nil
	}
	s.saveTimerMu.Unlock()
}

func atomicWriteFile(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return apperror.Wrap(apperror.KindFatal, "writing temp file", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return apperror.Wrap(apperror.KindFatal, "renaming temp file into place", err)
	}
	return nil
}

// --- Accessors ---

func (s *State) Canvas() model.CanvasState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.canvas
}

func (s *State) Status() model.AgentStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

func (s *State) SetStatus(v model.AgentStatus) {
	s.mu.Lock()
	s.status = v
	s.mu.Unlock()
}

func (s *State) PieceNumber() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pieceNumber
}

// SetPieceNumber overrides the piece counter (the admin/dev
// POST /piece_number/{n} surface).
func (s *State) SetPieceNumber(n int) error {
	s.mu.Lock()
	s.pieceNumber = n
	s.mu.Unlock()
	return s.Save()
}

func (s *State) Monologue() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.monologue
}

func (s *State) SetMonologue(v string) {
	s.mu.Lock()
	s.monologue = v
	s.mu.Unlock()
}

// CurrentPieceTitle returns the title set by the name_piece tool for
// the piece currently in progress, or "" if unset.
func (s *State) CurrentPieceTitle() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentPieceTitle
}

// SetTitle records title for the piece currently in progress and
// persists it, matching ToolContext.SetTitle's signature.
func (s *State) SetTitle(title string) error {
	s.mu.Lock()
	s.currentPieceTitle = title
	s.mu.Unlock()
	return s.Save()
}

func (s *State) Notes() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.notes
}

func (s *State) SetNotes(v string) {
	s.mu.Lock()
	s.notes = v
	s.mu.Unlock()
}

// SetDrawingStyle switches the canvas rendering mode and persists.
// Returns true if the style actually changed, so callers can broadcast
// style_change exactly once for repeated identical requests.
func (s *State) SetDrawingStyle(style model.DrawingStyleType) (bool, error) {
	s.mu.Lock()
	if s.canvas.DrawingStyle == style {
		s.mu.Unlock()
		return false, nil
	}
	s.canvas.DrawingStyle = style
	s.mu.Unlock()
	return true, s.Save()
}

// Dir returns the workspace's root directory.
func (s *State) Dir() string { return s.dir }

// ReferencesDir returns (creating if needed) the directory where
// imagine() reference images are written.
func (s *State) ReferencesDir() (string, error) {
	dir := filepath.Join(s.dir, "references")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", apperror.Wrap(apperror.KindFatal, "creating references directory", err)
	}
	return dir, nil
}

func (s *State) PauseReason() model.PauseReason {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pauseReason
}

func (s *State) SetPauseReason(v model.PauseReason) {
	s.mu.Lock()
	s.pauseReason = v
	s.mu.Unlock()
}

func (s *State) PendingStrokeCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.pendingStrokes)
}

// --- Stroke queue operations ---

// QueueStrokes appends already-expanded, already-interpolated pending
// strokes under a new batch id, dropping exactly len(entries) of the
// oldest queued entries if at or over the configured cap (resolves
// spec.md's pending-stroke drop policy open question). Returns the
// assigned batch id.
func (s *State) QueueStrokes(entries []model.PendingStroke) int {
	s.strokeLock.Lock()
	s.mu.Lock()
	if s.maxPendingStrokes > 0 && len(s.pendingStrokes) >= s.maxPendingStrokes {
		fwlog.Warnf("user %s: pending strokes limit reached (%d), dropping oldest", s.UserID, s.maxPendingStrokes)
		drop := len(entries)
		if drop > len(s.pendingStrokes) {
			drop = len(s.pendingStrokes)
		}
		s.pendingStrokes = s.pendingStrokes[drop:]
	}
	s.strokeBatchID++
	batchID := s.strokeBatchID
	for i := range entries {
		entries[i].BatchID = batchID
	}
	s.pendingStrokes = append(s.pendingStrokes, entries...)
	s.mu.Unlock()
	s.strokeLock.Unlock()

	if err := s.Save(); err != nil {
		fwlog.Errorf("saving workspace after queue_strokes for user %s: %v", s.UserID, err)
	}
	return batchID
}

// PopStrokes returns and clears the pending-stroke queue.
func (s *State) PopStrokes() []model.PendingStroke {
	s.strokeLock.Lock()
	s.mu.Lock()
	out := make([]model.PendingStroke, len(s.pendingStrokes))
	copy(out, s.pendingStrokes)
	s.pendingStrokes = nil
	s.mu.Unlock()
	s.strokeLock.Unlock()

	if err := s.Save(); err != nil {
		fwlog.Errorf("saving workspace after pop_strokes for user %s: %v", s.UserID, err)
	}
	return out
}

// --- Canvas operations ---

// AddStroke appends a finished stroke to the canvas.
func (s *State) AddStroke(p model.Path) error {
	s.strokeLock.Lock()
	s.mu.Lock()
	s.canvas.Strokes = append(s.canvas.Strokes, p)
	s.mu.Unlock()
	s.strokeLock.Unlock()
	return s.Save()
}

// ClearCanvas empties the canvas without touching the gallery or
// piece number (used both by the direct clear handler and as the
// non-persisting half of new_canvas semantics).
func (s *State) ClearCanvas() error {
	s.strokeLock.Lock()
	s.mu.Lock()
	s.canvas.Strokes = nil
	s.mu.Unlock()
	s.strokeLock.Unlock()
	return s.Save()
}

// ClearPending drops every queued pending stroke without assigning a
// batch id. Used when a turn is aborted mid-flight (clear/new_canvas)
// so late batches from the aborted turn cannot be replayed.
func (s *State) ClearPending() error {
	s.strokeLock.Lock()
	s.mu.Lock()
	s.pendingStrokes = nil
	s.mu.Unlock()
	s.strokeLock.Unlock()
	return s.Save()
}

// ReplaceStrokes swaps the canvas contents for a gallery piece's
// strokes and style (the load_canvas operation). The pending queue is
// cleared too: queued animation for the old canvas makes no sense on
// the loaded one.
func (s *State) ReplaceStrokes(strokes []model.Path, style model.DrawingStyleType) error {
	s.strokeLock.Lock()
	s.mu.Lock()
	s.canvas.Strokes = strokes
	if style != "" {
		s.canvas.DrawingStyle = style
	}
	s.pendingStrokes = nil
	s.mu.Unlock()
	s.strokeLock.Unlock()
	return s.Save()
}

func pieceFileName(pieceNumber int) string {
	return fmt.Sprintf("piece_%06d.json", pieceNumber)
}

func pieceID(pieceNumber int) string {
	return fmt.Sprintf("piece_%06d", pieceNumber)
}

type galleryPieceFile struct {
	PieceNumber  int                    `json:"piece_number"`
	Title        string                 `json:"title"`
	Strokes      []model.Path           `json:"strokes"`
	CreatedAt    string                 `json:"created_at"`
	DrawingStyle model.DrawingStyleType `json:"drawing_style"`
}

// SaveToGallery persists the current canvas as an immutable gallery
// piece without clearing it, returning the saved piece id. Returns
// ("", nil) if the canvas has no strokes (nothing worth saving).
func (s *State) SaveToGallery() (string, error) {
	s.writeLock.Lock()
	s.mu.RLock()
	if len(s.canvas.Strokes) == 0 {
		s.mu.RUnlock()
		s.writeLock.Unlock()
		return "", nil
	}
	pieceNumber := s.pieceNumber
	title := s.currentPieceTitle
	strokes := make([]model.Path, len(s.canvas.Strokes))
	copy(strokes, s.canvas.Strokes)
	style := s.canvas.DrawingStyle
	s.mu.RUnlock()

	createdAt := time.Now().UTC().Format(time.RFC3339Nano)
	piece := galleryPieceFile{PieceNumber: pieceNumber, Title: title, Strokes: strokes, CreatedAt: createdAt, DrawingStyle: style}
	encoded, err := json.MarshalIndent(piece, "", "  ")
	if err != nil {
		s.writeLock.Unlock()
		return "", apperror.Wrap(apperror.KindFatal, "encoding gallery piece", err)
	}
	pieceFile := filepath.Join(s.galleryDir, pieceFileName(pieceNumber))
	if _, err := os.Stat(pieceFile); err == nil {
		// I6: a piece already in the gallery is never rewritten.
		s.writeLock.Unlock()
		return pieceID(pieceNumber), nil
	}
	if err := atomicWriteFile(pieceFile, encoded); err != nil {
		s.writeLock.Unlock()
		return "", err
	}
	savedID := pieceID(pieceNumber)
	fwlog.Infof("saved piece %d to gallery as %s for user %s", pieceNumber, savedID, s.UserID)
	s.writeLock.Unlock()

	entry := galleryIndexEntry{ID: savedID, PieceNumber: pieceNumber, StrokeCount: len(strokes), CreatedAt: createdAt, DrawingStyle: style}
	if err := s.updateGalleryIndex(entry); err != nil {
		fwlog.Errorf("updating gallery index for user %s: %v", s.UserID, err)
	}
	if err := s.Save(); err != nil {
		fwlog.Errorf("saving workspace after save_to_gallery for user %s: %v", s.UserID, err)
	}
	return savedID, nil
}

// NewCanvas saves the current canvas to the gallery, then starts a
// fresh piece: strokes, monologue and notes reset, piece_number
// incremented, and the pending-stroke queue cleared (I5). piece_number
// only ever advances here, never on the auto-save latch triggered by
// mark_piece_done.
func (s *State) NewCanvas() (string, error) {
	savedID, err := s.SaveToGallery()
	if err != nil {
		return "", err
	}

	s.writeLock.Lock()
	s.mu.Lock()
	s.canvas.Strokes = nil
	s.pieceNumber++
	s.currentPieceTitle = ""
	s.monologue = ""
	s.notes = ""
	s.mu.Unlock()
	s.writeLock.Unlock()

	s.strokeLock.Lock()
	s.mu.Lock()
	s.pendingStrokes = nil
	s.mu.Unlock()
	s.strokeLock.Unlock()

	if err := s.Save(); err != nil {
		return savedID, err
	}
	return savedID, nil
}

// --- Gallery index ---

func (s *State) updateGalleryIndex(entry galleryIndexEntry) error {
	s.indexMu.Lock()
	defer s.indexMu.Unlock()

	if s.galleryCache == nil {
		if err := s.loadGalleryIndexLocked(); err != nil {
			return err
		}
	}

	filtered := s.galleryCache[:0:0]
	for _, e := range s.galleryCache {
		if e.ID != entry.ID {
			filtered = append(filtered, e)
		}
	}
	filtered = append(filtered, entry)
	sort.Slice(filtered, func(i, j int) bool { return filtered[i].PieceNumber < filtered[j].PieceNumber })
	s.galleryCache = filtered

	return s.writeGalleryIndexLocked()
}

func (s *State) writeGalleryIndexLocked() error {
	encoded, err := json.MarshalIndent(s.galleryCache, "", "  ")
	if err != nil {
		return apperror.Wrap(apperror.KindFatal, "encoding gallery index", err)
	}
	return atomicWriteFile(s.galleryIndex, encoded)
}

func (s *State) loadGalleryIndexLocked() error {
	data, err := os.ReadFile(s.galleryIndex)
	if err == nil {
		var idx []galleryIndexEntry
		if err := json.Unmarshal(data, &idx); err == nil {
			s.galleryCache = idx
			return nil
		}
		fwlog.Warnf("failed to parse gallery index for user %s, rebuilding", s.UserID)
	}
	return s.rebuildGalleryIndexLocked()
}

func (s *State) rebuildGalleryIndexLocked() error {
	s.galleryCache = []galleryIndexEntry{}

	entries, err := os.ReadDir(s.galleryDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return apperror.Wrap(apperror.KindFatal, "listing gallery directory", err)
	}

	for _, e := range entries {
		name := e.Name()
		if !strings.HasPrefix(name, "piece_") || !strings.HasSuffix(name, ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.galleryDir, name))
		if err != nil {
			continue
		}
		var piece galleryPieceFile
		if err := json.Unmarshal(data, &piece); err != nil {
			fwlog.Warnf("skipping corrupted gallery file %s for user %s: %v", name, s.UserID, err)
			continue
		}
		style := piece.DrawingStyle
		if style == "" {
			style = model.StylePlotter
		}
		s.galleryCache = append(s.galleryCache, galleryIndexEntry{
			ID: pieceID(piece.PieceNumber), PieceNumber: piece.PieceNumber,
			StrokeCount: len(piece.Strokes), CreatedAt: piece.CreatedAt, DrawingStyle: style,
		})
	}
	sort.Slice(s.galleryCache, func(i, j int) bool { return s.galleryCache[i].PieceNumber < s.galleryCache[j].PieceNumber })
	return s.writeGalleryIndexLocked()
}

// ListGallery returns metadata for every saved piece, using the
// cached index rather than scanning every gallery file.
func (s *State) ListGallery() ([]model.GalleryEntry, error) {
	s.indexMu.Lock()
	if s.galleryCache == nil {
		if err := s.loadGalleryIndexLocked(); err != nil {
			s.indexMu.Unlock()
			return nil, err
		}
	}
	cache := make([]galleryIndexEntry, len(s.galleryCache))
	copy(cache, s.galleryCache)
	s.indexMu.Unlock()

	out := make([]model.GalleryEntry, 0, len(cache))
	for _, e := range cache {
		createdAt, _ := time.Parse(time.RFC3339Nano, e.CreatedAt)
		style := e.DrawingStyle
		if style == "" {
			style = model.StylePlotter
		}
		out = append(out, model.GalleryEntry{
			ID: e.ID, PieceNumber: e.PieceNumber, StrokeCount: e.StrokeCount,
			CreatedAt: createdAt, DrawingStyle: style,
		})
	}
	return out, nil
}

// LoadFromGallery loads the strokes and drawing style for a saved
// piece by number, or returns (nil, "", nil) if not found.
func (s *State) LoadFromGallery(pieceNumber int) ([]model.Path, model.DrawingStyleType, error) {
	pieceFile := filepath.Join(s.galleryDir, pieceFileName(pieceNumber))
	data, err := os.ReadFile(pieceFile)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, "", nil
		}
		return nil, "", apperror.Wrap(apperror.KindFatal, "reading gallery piece", err)
	}
	var piece galleryPieceFile
	if err := json.Unmarshal(data, &piece); err != nil {
		fwlog.Warnf("failed to load gallery piece %d for user %s: %v", pieceNumber, s.UserID, err)
		return nil, "", apperror.Wrap(apperror.KindCorruptState, "parsing gallery piece", err)
	}
	style := piece.DrawingStyle
	if style == "" {
		style = model.StylePlotter
	}
	return piece.Strokes, style, nil
}

// ParsePieceNumber extracts the numeric piece number from a canvas_id
// like "piece_000012".
func ParsePieceNumber(canvasID string) (int, bool) {
	if !strings.HasPrefix(canvasID, "piece_") {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimPrefix(canvasID, "piece_"))
	if err != nil {
		return 0, false
	}
	return n, true
}
