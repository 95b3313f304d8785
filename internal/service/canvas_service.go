package service

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"image"
	"sync"
	"time"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/tiff"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fieldserve/evidence-api/internal/dto"
	"github.com/fieldserve/evidence-api/internal/models"
	"github.com/fieldserve/evidence-api/internal/repository"
	appErrors "github.com/fieldserve/evidence-api/pkg/errors"
	"github.com/fieldserve/evidence-api/pkg/imaging"
)

// SessionState tracks an annotation session through its lifecycle. Transitions
// only move forward; a terminal session is removed from the manager.
type SessionState string

const (
	SessionIdle         SessionState = "idle"
	SessionImageLoading SessionState = "image_loading"
	SessionReady        SessionState = "ready"
	SessionEditing      SessionState = "editing"
	SessionFlattening   SessionState = "flattening"
	SessionSaved        SessionState = "saved"
	SessionDiscarded    SessionState = "discarded"
)

type canvasSession struct {
	id         string
	evidenceID string
	ticketID   string
	state      SessionState
	canvas     *imaging.Canvas
	openedAt   time.Time
}

type flattenedStore interface {
	Save(filename string, data []byte) (string, error)
}

// CanvasServiceConfig bounds session usage.
type CanvasServiceConfig struct {
	ImageLoadTimeout time.Duration
	MaxSessions      int
	Metrics          *MetricsService
}

// CanvasService manages annotation sessions over evidence images. Sessions are
// in-memory only; nothing touches the evidence row until an explicit save
// flattens the canvas.
type CanvasService struct {
	repo    evidenceStore
	fetcher mediaFetcher
	store   flattenedStore
	logger  *zap.Logger
	cfg     CanvasServiceConfig

	mu         sync.Mutex
	sessions   map[string]*canvasSession
	byEvidence map[string]string // evidenceID -> sessionID
}

// NewCanvasService constructs the service.
func NewCanvasService(repo evidenceStore, fetcher mediaFetcher, store flattenedStore, logger *zap.Logger, cfg CanvasServiceConfig) *CanvasService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ImageLoadTimeout <= 0 {
		cfg.ImageLoadTimeout = 15 * time.Second
	}
	if cfg.MaxSessions <= 0 {
		cfg.MaxSessions = 16
	}
	return &CanvasService{
		repo:       repo,
		fetcher:    fetcher,
		store:      store,
		logger:     logger,
		cfg:        cfg,
		sessions:   make(map[string]*canvasSession),
		byEvidence: make(map[string]string),
	}
}

// Open starts a session for an evidence image: the bytes are fetched, decoded,
// normalized against the combined orientation transform, and bound to a fresh
// canvas. When both the fetch and the decode path are exhausted the session
// still opens, over a blank canvas, so annotations remain possible.
func (s *CanvasService) Open(ctx context.Context, req dto.CanvasOpenRequest) (*dto.CanvasSessionResponse, error) {
	ev, err := s.repo.GetByID(ctx, req.EvidenceID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load evidence")
	}
	if !ev.IsImage() {
		return nil, appErrors.Clone(appErrors.ErrNotAnImage, "")
	}

	s.mu.Lock()
	if existing, ok := s.byEvidence[ev.ID]; ok {
		s.mu.Unlock()
		return nil, appErrors.Clone(appErrors.ErrSessionState, fmt.Sprintf("evidence already open in session %s", existing))
	}
	if len(s.sessions) >= s.cfg.MaxSessions {
		s.mu.Unlock()
		return nil, appErrors.Clone(appErrors.ErrConflict, "too many open annotation sessions")
	}
	sess := &canvasSession{
		id:         uuid.NewString(),
		evidenceID: ev.ID,
		ticketID:   ev.TicketID,
		state:      SessionImageLoading,
		openedAt:   time.Now().UTC(),
	}
	s.sessions[sess.id] = sess
	s.byEvidence[ev.ID] = sess.id
	s.cfg.Metrics.SetOpenCanvasSessions(len(s.sessions))
	s.mu.Unlock()

	loadCtx, cancel := context.WithTimeout(ctx, s.cfg.ImageLoadTimeout)
	defer cancel()

	canvas, err := s.loadCanvas(loadCtx, ev)
	if err != nil {
		s.logger.Sugar().Warnw("image unavailable, opening blank canvas",
			"evidence_id", ev.ID, "error", err)
		canvas = imaging.NewCanvas(nil)
	}

	s.mu.Lock()
	sess.canvas = canvas
	sess.state = SessionReady
	resp := s.sessionResponse(sess)
	s.mu.Unlock()
	return resp, nil
}

// Get returns the current session state.
func (s *CanvasService) Get(sessionID string) (*dto.CanvasSessionResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "session not found")
	}
	return s.sessionResponse(sess), nil
}

// Append adds one annotation object, moving the session into editing.
func (s *CanvasService) Append(sessionID string, req dto.CanvasObjectRequest) (*dto.CanvasSessionResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, err := s.editable(sessionID)
	if err != nil {
		return nil, err
	}

	obj := imaging.Object{
		Kind:   req.Kind,
		Color:  parseColor(req.Color),
		Width:  float64(req.Width),
		Points: req.Points,
		Shape:  req.Shape,
		Text:   req.Text,
	}
	if req.Pos != nil {
		obj.Pos = *req.Pos
	}
	if err := sess.canvas.Append(obj); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid annotation object")
	}
	sess.state = SessionEditing
	return s.sessionResponse(sess), nil
}

// Undo removes the most recent annotation. Only valid while at least one
// overlay object exists.
func (s *CanvasService) Undo(sessionID string) (*dto.CanvasSessionResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, err := s.editable(sessionID)
	if err != nil {
		return nil, err
	}
	if err := sess.canvas.RemoveLast(); err != nil {
		return nil, appErrors.Clone(appErrors.ErrSessionState, "nothing to undo")
	}
	if sess.canvas.ObjectCount() == 1 {
		sess.state = SessionReady
	}
	return s.sessionResponse(sess), nil
}

// Clear drops every annotation, returning the session to ready.
func (s *CanvasService) Clear(sessionID string) (*dto.CanvasSessionResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, err := s.editable(sessionID)
	if err != nil {
		return nil, err
	}
	sess.canvas.Clear()
	sess.state = SessionReady
	return s.sessionResponse(sess), nil
}

// Save flattens the canvas into a PNG, persists it as the new evidence
// payload, and closes the session. The manual rotation resets to zero because
// the flattened raster already renders upright.
func (s *CanvasService) Save(ctx context.Context, sessionID string) (*dto.CanvasSaveResponse, error) {
	s.mu.Lock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		s.mu.Unlock()
		return nil, appErrors.Clone(appErrors.ErrNotFound, "session not found")
	}
	if sess.state != SessionReady && sess.state != SessionEditing {
		s.mu.Unlock()
		return nil, appErrors.Clone(appErrors.ErrSessionState, "session is not editable")
	}
	sess.state = SessionFlattening
	canvas := sess.canvas
	s.mu.Unlock()

	data, err := canvas.EncodePNG()
	if err != nil {
		s.revertToEditing(sessionID)
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to flatten canvas")
	}

	filename := fmt.Sprintf("media/%s/annotated_%s.png", sess.ticketID, sess.evidenceID)
	relPath, err := s.store.Save(filename, data)
	if err != nil {
		s.revertToEditing(sessionID)
		return nil, appErrors.Wrap(err, appErrors.ErrStorageWrite.Code, appErrors.ErrStorageWrite.Status, "failed to store flattened image")
	}

	rotation := 0
	mime := "image/png"
	pending := models.SyncStatePending
	if err := s.repo.Update(ctx, sess.evidenceID, repository.UpdateEvidenceParams{
		ResourcePath:   &relPath,
		ManualRotation: &rotation,
		SyncState:      &pending,
		MimeType:       &mime,
	}); err != nil {
		s.revertToEditing(sessionID)
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update evidence")
	}

	s.mu.Lock()
	sess.state = SessionSaved
	s.mu.Unlock()
	s.drop(sessionID)

	return &dto.CanvasSaveResponse{
		EvidenceID:   sess.evidenceID,
		ResourcePath: relPath,
		SizeBytes:    int64(len(data)),
	}, nil
}

// Discard closes the session without touching the evidence row.
func (s *CanvasService) Discard(sessionID string) error {
	s.mu.Lock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		s.mu.Unlock()
		return appErrors.Clone(appErrors.ErrNotFound, "session not found")
	}
	sess.state = SessionDiscarded
	s.mu.Unlock()
	s.drop(sessionID)
	return nil
}

// FlattenedPNG renders the current canvas without closing the session. The
// composer uses it so exports include in-progress annotations.
func (s *CanvasService) FlattenedPNG(evidenceID string) ([]byte, bool) {
	s.mu.Lock()
	sessionID, ok := s.byEvidence[evidenceID]
	var canvas *imaging.Canvas
	if ok {
		if sess := s.sessions[sessionID]; sess != nil && sess.canvas != nil && sess.canvas.ObjectCount() > 1 {
			canvas = sess.canvas
		}
	}
	s.mu.Unlock()

	if canvas == nil {
		return nil, false
	}
	data, err := canvas.EncodePNG()
	if err != nil {
		s.logger.Sugar().Warnw("flatten for export failed", "evidence_id", evidenceID, "error", err)
		return nil, false
	}
	return data, true
}

func (s *CanvasService) loadCanvas(ctx context.Context, ev *models.Evidence) (*imaging.Canvas, error) {
	data, err := s.fetcher.Fetch(ctx, ev.ResourcePath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrStorageWrite.Code, appErrors.ErrStorageWrite.Status, "failed to fetch image")
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "image could not be decoded")
	}
	orientation, err := imaging.ReadOrientation(bytes.NewReader(data))
	if err != nil {
		s.logger.Sugar().Debugw("no exif orientation, using manual rotation only", "evidence_id", ev.ID, "error", err)
	}
	return imaging.NewCanvas(imaging.Normalize(img, orientation, ev.ManualRotation)), nil
}

func (s *CanvasService) editable(sessionID string) (*canvasSession, error) {
	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "session not found")
	}
	if sess.state != SessionReady && sess.state != SessionEditing {
		return nil, appErrors.Clone(appErrors.ErrSessionState, "")
	}
	return sess, nil
}

func (s *CanvasService) revertToEditing(sessionID string) {
	s.mu.Lock()
	if sess, ok := s.sessions[sessionID]; ok && sess.state == SessionFlattening {
		sess.state = SessionEditing
	}
	s.mu.Unlock()
}

func (s *CanvasService) drop(sessionID string) {
	s.mu.Lock()
	if sess, ok := s.sessions[sessionID]; ok {
		delete(s.byEvidence, sess.evidenceID)
		delete(s.sessions, sessionID)
		s.cfg.Metrics.SetOpenCanvasSessions(len(s.sessions))
	}
	s.mu.Unlock()
}

func (s *CanvasService) sessionResponse(sess *canvasSession) *dto.CanvasSessionResponse {
	w, h := 0, 0
	objects := 0
	if sess.canvas != nil {
		w, h = sess.canvas.Size()
		objects = sess.canvas.ObjectCount() - 1
	}
	return &dto.CanvasSessionResponse{
		SessionID:   sess.id,
		EvidenceID:  sess.evidenceID,
		State:       string(sess.state),
		Width:       w,
		Height:      h,
		ObjectCount: objects,
		CanUndo:     objects > 0,
	}
}
