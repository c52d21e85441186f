package main

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// enhanceTimeout is the hard deadline for the remote enhancement step of a
// finalize flow. A timeout aborts the whole attempt; there is no partial
// recovery.
const enhanceTimeout = 15 * time.Second

// SessionPhase tracks what a session is currently doing. At most one long
// operation runs per session at a time.
type SessionPhase string

const (
	PhaseIdle          SessionPhase = "idle"
	PhaseTransforming  SessionPhase = "transforming"
	PhaseCallingRemote SessionPhase = "calling_remote"
	PhaseExporting     SessionPhase = "exporting"
)

// Session owns the editing state for one photo: the current image bytes and
// the transform history. All mutation goes through the sequential flows on
// SessionManager; the busy flag rejects a second concurrent long operation.
type Session struct {
	ID         string
	SourceFile string

	mu      sync.Mutex
	busy    bool
	phase   SessionPhase
	image   Image
	history *History[TransformState]
}

// begin claims the session for a long operation, failing with ErrBusy if one
// is already in flight.
func (s *Session) begin(phase SessionPhase) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.busy {
		return fmt.Errorf("%w: session %s is %s", ErrBusy, s.ID, s.phase)
	}
	s.busy = true
	s.phase = phase
	return nil
}

// end releases the session. It runs on success and failure alike.
func (s *Session) end() {
	s.mu.Lock()
	s.busy = false
	s.phase = PhaseIdle
	s.mu.Unlock()
}

func (s *Session) setPhase(phase SessionPhase) {
	s.mu.Lock()
	s.phase = phase
	s.mu.Unlock()
}

// Phase reports the session's current phase.
func (s *Session) Phase() SessionPhase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// CurrentImage returns the committed image.
func (s *Session) CurrentImage() Image {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.image
}

// replaceImage installs a new base image and hard-resets the edit history,
// since edits against the previous image lose meaning.
func (s *Session) replaceImage(img Image) {
	s.mu.Lock()
	s.image = img
	s.history.Reset(identityTransform())
	s.mu.Unlock()
}

// CommitTransform normalizes and commits an edit state to the history.
func (s *Session) CommitTransform(state TransformState) {
	s.mu.Lock()
	s.history.Commit(state.normalized())
	s.mu.Unlock()
}

func (s *Session) Undo() {
	s.mu.Lock()
	s.history.Undo()
	s.mu.Unlock()
}

func (s *Session) Redo() {
	s.mu.Lock()
	s.history.Redo()
	s.mu.Unlock()
}

// TransformStatus is the editing state exposed to the front end.
type TransformStatus struct {
	State   TransformState `json:"state"`
	CanUndo bool           `json:"can_undo"`
	CanRedo bool           `json:"can_redo"`
	Phase   SessionPhase   `json:"phase"`
}

func (s *Session) Status() TransformStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return TransformStatus{
		State:   s.history.Current(),
		CanUndo: s.history.CanUndo(),
		CanRedo: s.history.CanRedo(),
		Phase:   s.phase,
	}
}

// SessionManager holds the live edit sessions and sequences the asynchronous
// flows against the remote image service.
type SessionManager struct {
	mu       sync.Mutex
	sessions map[string]*Session

	remote         RemoteImageService
	executor       ExportExecutor
	enhanceTimeout time.Duration
}

func NewSessionManager(remote RemoteImageService, executor ExportExecutor) *SessionManager {
	return &SessionManager{
		sessions:       make(map[string]*Session),
		remote:         remote,
		executor:       executor,
		enhanceTimeout: enhanceTimeout,
	}
}

// Create opens a session for an image.
func (m *SessionManager) Create(img Image, sourceFile string) *Session {
	session := &Session{
		ID:         uuid.NewString(),
		SourceFile: sourceFile,
		phase:      PhaseIdle,
		image:      img,
		history:    NewHistory(identityTransform()),
	}
	m.mu.Lock()
	m.sessions[session.ID] = session
	m.mu.Unlock()
	return session
}

func (m *SessionManager) Get(id string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	session, ok := m.sessions[id]
	return session, ok
}

// RemoveBackground replaces the session image with a background-removed
// version from the remote service. Failure leaves the session untouched.
func (m *SessionManager) RemoveBackground(ctx context.Context, s *Session) error {
	if err := s.begin(PhaseCallingRemote); err != nil {
		return err
	}
	defer s.end()

	result, err := m.remote.RemoveBackground(ctx, s.CurrentImage())
	if err != nil {
		return asRemoteError(err)
	}
	s.replaceImage(result)
	return nil
}

// Generate asks the remote service to compose the session's subject into a
// new scene and replaces the session image with the result.
func (m *SessionManager) Generate(ctx context.Context, s *Session, scene, style, aspectRatio string, background *Image) error {
	if err := s.begin(PhaseCallingRemote); err != nil {
		return err
	}
	defer s.end()

	result, err := m.remote.Generate(ctx, s.CurrentImage(), scene, style, aspectRatio, background)
	if err != nil {
		return asRemoteError(err)
	}
	s.replaceImage(result)
	return nil
}

// Finalize runs the full edit flow in strict sequence: bake the current
// transform into pixels, run remote enhancement under a hard timeout, then
// run the export pipeline, plus any extra variants. Every failure is
// terminal for this attempt: staged buffers are discarded, the committed
// image and history stay as they were, and the session is released.
func (m *SessionManager) Finalize(ctx context.Context, s *Session, viewport Viewport, settings ExportSettings, enhancement EnhancementSettings, variants []ExportOperation) (ExportResult, error) {
	if err := s.begin(PhaseTransforming); err != nil {
		return ExportResult{}, err
	}
	defer s.end()

	logger := log.Ctx(ctx).With().Str("session", s.ID).Logger()
	startTime := time.Now()

	s.mu.Lock()
	source := s.image
	state := s.history.Current()
	s.mu.Unlock()

	baked, err := applyTransform(source, state, viewport)
	if err != nil {
		logger.Error().Err(err).Msg("Transform bake failed")
		return ExportResult{}, err
	}

	s.setPhase(PhaseCallingRemote)
	remoteCtx, cancel := context.WithTimeout(ctx, m.enhanceTimeout)
	defer cancel()
	enhanced, err := m.remote.Enhance(remoteCtx, baked, enhancement)
	if err != nil {
		err = asRemoteError(err)
		logger.Error().Err(err).Msg("Remote enhancement failed")
		return ExportResult{}, err
	}

	s.setPhase(PhaseExporting)
	result, err := exportImage(enhanced, settings)
	if err != nil {
		logger.Error().Err(err).Msg("Export failed")
		return ExportResult{}, err
	}
	if len(variants) > 0 {
		if err := m.executor.Exec(ctx, enhanced, variants); err != nil {
			return ExportResult{}, err
		}
	}

	logger.Info().
		Str("filename", result.Filename).
		Int("width", result.Width).
		Int("height", result.Height).
		Dur("duration", time.Since(startTime)).
		Msg("Finalize complete")
	return result, nil
}

// asRemoteError folds context deadline failures from fake or real remotes
// into the timeout category; everything else passes through, categorized if
// it is not already a RemoteError.
func asRemoteError(err error) error {
	var remoteErr *RemoteError
	if errors.As(err, &remoteErr) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &RemoteError{Category: RemoteErrTimeout, Message: "remote call exceeded its deadline"}
	}
	return categorizeRemoteError(0, err.Error())
}
