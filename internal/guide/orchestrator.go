package guide

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/livingcool/kisanmind-sub000/internal/catalog"
	"github.com/livingcool/kisanmind-sub000/internal/session"
	"github.com/livingcool/kisanmind-sub000/pkg/types"
)

// Well-known instruction ids.
const (
	InstructionSessionStart    = "session_start"
	InstructionSessionComplete = "session_complete"
	InstructionCaptureAck      = "capture_ack"
)

var (
	ErrSessionNotFound  = errors.New("session not found")
	ErrStepNotFound     = errors.New("step not found")
	ErrSessionCompleted = errors.New("session already completed")
	ErrMissingFarmerID  = errors.New("farmerId is required")
)

var supportedLanguages = map[string]bool{
	"en": true, "hi": true, "mr": true, "ta": true, "te": true,
}

// SpeechClient synthesizes spoken instructions. Implementations never
// fail; a degraded service yields a client-speech fallback.
type SpeechClient interface {
	Synthesize(ctx context.Context, instructionID, language string) *types.SpeechInstruction
	HealthCheck(ctx context.Context) bool
}

// QualityClient analyzes capture frames. Analyze never fails; a
// degraded service yields the permissive fallback verdict.
type QualityClient interface {
	Analyze(ctx context.Context, sessionID, stepID, frameData string, overrides *catalog.Thresholds) *types.FrameAnalysis
	Reset(ctx context.Context, sessionID string) error
	HealthCheck(ctx context.Context) bool
}

// Orchestrator owns the guidance session lifecycle: step sequencing,
// capture/skip/advance/complete transitions, frame-analysis dispatch,
// and idle-session eviction.
type Orchestrator struct {
	catalog         *catalog.Catalog
	store           *session.Store
	speech          SpeechClient
	quality         QualityClient
	defaultLanguage string
}

// New creates an orchestrator with its collaborators injected. The
// store is owned by the caller so independent orchestrator instances
// can be built in tests.
func New(cat *catalog.Catalog, store *session.Store, speech SpeechClient, quality QualityClient, defaultLanguage string) *Orchestrator {
	if defaultLanguage == "" {
		defaultLanguage = "en"
	}
	return &Orchestrator{
		catalog:         cat,
		store:           store,
		speech:          speech,
		quality:         quality,
		defaultLanguage: defaultLanguage,
	}
}

// Catalog exposes the step catalog to transports.
func (o *Orchestrator) Catalog() *catalog.Catalog { return o.catalog }

// StepInstruction pairs a catalog step with its spoken instruction.
type StepInstruction struct {
	Step catalog.Step             `json:"step"`
	TTS  *types.SpeechInstruction `json:"tts"`
}

// StartResult is the response to StartSession.
type StartResult struct {
	Session     session.Snapshot         `json:"session"`
	Steps       []catalog.Step           `json:"steps"`
	Welcome     *types.SpeechInstruction `json:"welcomeTTS"`
	Instruction StepInstruction          `json:"instruction"`
}

// StartSession creates a session at the first step and fetches the
// welcome and first-step instructions concurrently. A session id is
// generated when the caller does not supply one.
func (o *Orchestrator) StartSession(ctx context.Context, farmerID, language, sessionID string) (*StartResult, error) {
	if farmerID == "" {
		return nil, ErrMissingFarmerID
	}
	if !supportedLanguages[language] {
		language = o.defaultLanguage
	}
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	now := o.store.Now()
	s := &session.Session{
		ID:             sessionID,
		FarmerID:       farmerID,
		Language:       language,
		StartedAt:      now,
		LastActivityAt: now,
		Phase:          session.PhaseActive,
	}
	o.store.Create(s)

	firstStep, _ := o.catalog.At(0)

	// The welcome and first-step instructions are independent; fetch
	// them in parallel so neither delays session start.
	var welcome, stepTTS *types.SpeechInstruction
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		welcome = o.speech.Synthesize(gctx, InstructionSessionStart, language)
		return nil
	})
	g.Go(func() error {
		stepTTS = o.speech.Synthesize(gctx, firstStep.InstructionID, language)
		return nil
	})
	_ = g.Wait()

	log.Printf("Started guidance session %s for farmer %s (language=%s)", sessionID, farmerID, language)

	return &StartResult{
		Session:     s.Snapshot(),
		Steps:       o.catalog.Steps(),
		Welcome:     welcome,
		Instruction: StepInstruction{Step: firstStep, TTS: stepTTS},
	}, nil
}

// FrameResult is the response to ProcessFrame.
type FrameResult struct {
	Analysis types.QualityVerdict     `json:"analysis"`
	Feedback types.FeedbackDecision   `json:"feedback"`
	TTS      *types.SpeechInstruction `json:"tts,omitempty"`
}

// ProcessFrame forwards a frame to the quality client for the step the
// caller names, or the session's current step. When the decision asks
// for spoken feedback the matching instruction is attached.
func (o *Orchestrator) ProcessFrame(ctx context.Context, sessionID, frameData, stepID string) (*FrameResult, error) {
	s, ok := o.store.Get(sessionID)
	if !ok {
		return nil, ErrSessionNotFound
	}
	o.store.Touch(sessionID)

	step, err := o.effectiveStep(s, stepID)
	if err != nil {
		return nil, err
	}

	analysis := o.quality.Analyze(ctx, sessionID, step.ID, frameData, step.QualityOverrides)

	result := &FrameResult{
		Analysis: analysis.Analysis,
		Feedback: analysis.Feedback,
	}
	if analysis.Feedback.ShouldSpeak && analysis.Feedback.InstructionID != "" {
		lang := sessionLanguage(s)
		result.TTS = o.speech.Synthesize(ctx, analysis.Feedback.InstructionID, lang)
	}
	return result, nil
}

// effectiveStep resolves the step a frame belongs to.
func (o *Orchestrator) effectiveStep(s *session.Session, stepID string) (catalog.Step, error) {
	if stepID != "" {
		step, ok := o.catalog.ByID(stepID)
		if !ok {
			return catalog.Step{}, ErrStepNotFound
		}
		return step, nil
	}

	s.Lock()
	idx := s.CurrentStepIndex
	s.Unlock()
	if idx >= o.catalog.Len() {
		idx = o.catalog.Len() - 1
	}
	step, _ := o.catalog.At(idx)
	return step, nil
}

func sessionLanguage(s *session.Session) string {
	s.Lock()
	defer s.Unlock()
	return s.Language
}

// CaptureResult is the response to HandleCapture.
type CaptureResult struct {
	Success bool                     `json:"success"`
	StepID  string                   `json:"stepId"`
	TTS     *types.SpeechInstruction `json:"tts"`
}

// HandleCapture records a captured step. The step pointer does not
// move; advancing is a separate operation so the farmer may retake the
// photo before confirming. Capturing the same step twice is a no-op on
// the captured set but still acknowledged.
func (o *Orchestrator) HandleCapture(ctx context.Context, sessionID, stepID, imageData string) (*CaptureResult, error) {
	s, ok := o.store.Get(sessionID)
	if !ok {
		return nil, ErrSessionNotFound
	}
	if _, ok := o.catalog.ByID(stepID); !ok {
		return nil, ErrStepNotFound
	}
	o.store.Touch(sessionID)

	s.Lock()
	if s.Phase == session.PhaseCompleted {
		s.Unlock()
		return nil, ErrSessionCompleted
	}
	s.AddCaptured(stepID)
	lang := s.Language
	s.Unlock()

	// Image bytes are handed to the analysis pipeline elsewhere; the
	// orchestrator only records the capture fact.
	_ = imageData

	tts := o.speech.Synthesize(ctx, InstructionCaptureAck, lang)
	return &CaptureResult{Success: true, StepID: stepID, TTS: tts}, nil
}

// StepChange is the event returned when the session moves to a new step.
type StepChange struct {
	Step        catalog.Step             `json:"step"`
	Instruction *types.SpeechInstruction `json:"instruction"`
	Progress    types.Progress           `json:"progress"`
}

// SessionComplete is the event returned when the session finishes.
type SessionComplete struct {
	CapturedSteps       []string                 `json:"capturedSteps"`
	SkippedSteps        []string                 `json:"skippedSteps"`
	AllRequiredCaptured bool                     `json:"allRequiredCaptured"`
	Instruction         *types.SpeechInstruction `json:"instruction"`
}

// Transition is the result of an advance, skip, or complete operation:
// exactly one of StepChange or Complete is set.
type Transition struct {
	StepChange *StepChange      `json:"stepChange,omitempty"`
	Complete   *SessionComplete `json:"sessionComplete,omitempty"`
}

// AdvanceToNextStep moves the step pointer forward. Within bounds it
// resets the quality client's per-session feedback state (best effort)
// and returns a step-change event; past the last step it completes the
// session. This is the only transition that can end the active phase.
func (o *Orchestrator) AdvanceToNextStep(ctx context.Context, sessionID string) (*Transition, error) {
	s, ok := o.store.Get(sessionID)
	if !ok {
		return nil, ErrSessionNotFound
	}
	o.store.Touch(sessionID)
	return o.advance(ctx, s)
}

// HandleSkip records the step as skipped, then performs the same
// transition as AdvanceToNextStep.
func (o *Orchestrator) HandleSkip(ctx context.Context, sessionID, stepID string) (*Transition, error) {
	s, ok := o.store.Get(sessionID)
	if !ok {
		return nil, ErrSessionNotFound
	}
	if _, ok := o.catalog.ByID(stepID); !ok {
		return nil, ErrStepNotFound
	}
	o.store.Touch(sessionID)

	s.Lock()
	if s.Phase == session.PhaseCompleted {
		s.Unlock()
		return nil, ErrSessionCompleted
	}
	s.AddSkipped(stepID)
	s.Unlock()

	return o.advance(ctx, s)
}

func (o *Orchestrator) advance(ctx context.Context, s *session.Session) (*Transition, error) {
	s.Lock()
	if s.Phase == session.PhaseCompleted {
		s.Unlock()
		return nil, ErrSessionCompleted
	}

	s.CurrentStepIndex++
	newIndex := s.CurrentStepIndex

	if newIndex >= o.catalog.Len() {
		s.Phase = session.PhaseCompleted
		s.Unlock()
		return &Transition{Complete: o.completionEvent(ctx, s)}, nil
	}

	lang := s.Language
	captured := len(s.CapturedSteps)
	s.Unlock()

	o.resetQualityState(s.ID)

	step, _ := o.catalog.At(newIndex)
	instruction := o.speech.Synthesize(ctx, step.InstructionID, lang)

	return &Transition{StepChange: &StepChange{
		Step:        step,
		Instruction: instruction,
		Progress: types.Progress{
			Current:  newIndex + 1,
			Total:    o.catalog.Len(),
			Captured: captured,
		},
	}}, nil
}

// resetQualityState clears the quality service's per-session feedback
// throttle so stale state does not leak into the next step. Best
// effort: it runs in the background and failures are only logged.
func (o *Orchestrator) resetQualityState(sessionID string) {
	go func() {
		if err := o.quality.Reset(context.Background(), sessionID); err != nil {
			log.Printf("Quality state reset failed for session %s (ignored): %v", sessionID, err)
		}
	}()
}

// CompleteSession force-completes the session from any position. It
// does not require all required steps to be captured; callers wanting
// that gate check AllRequiredCaptured themselves. Completing an already
// completed session returns the completion event again.
func (o *Orchestrator) CompleteSession(ctx context.Context, sessionID string) (*SessionComplete, error) {
	s, ok := o.store.Get(sessionID)
	if !ok {
		return nil, ErrSessionNotFound
	}
	o.store.Touch(sessionID)

	s.Lock()
	s.Phase = session.PhaseCompleted
	s.Unlock()

	return o.completionEvent(ctx, s), nil
}

func (o *Orchestrator) completionEvent(ctx context.Context, s *session.Session) *SessionComplete {
	snap := s.Snapshot()
	instruction := o.speech.Synthesize(ctx, InstructionSessionComplete, snap.Language)

	capturedSet := make(map[string]bool, len(snap.CapturedSteps))
	for _, id := range snap.CapturedSteps {
		capturedSet[id] = true
	}

	log.Printf("Session %s completed: %d captured, %d skipped", snap.ID, len(snap.CapturedSteps), len(snap.SkippedSteps))

	return &SessionComplete{
		CapturedSteps:       snap.CapturedSteps,
		SkippedSteps:        snap.SkippedSteps,
		AllRequiredCaptured: o.catalog.AllRequiredCaptured(capturedSet),
		Instruction:         instruction,
	}
}

// GetSessionInfo returns a read-only snapshot without refreshing the
// session's activity timestamp.
func (o *Orchestrator) GetSessionInfo(sessionID string) (session.Snapshot, bool) {
	s, ok := o.store.Get(sessionID)
	if !ok {
		return session.Snapshot{}, false
	}
	return s.Snapshot(), true
}

// Health reports backing-service connectivity and session count.
type Health struct {
	TTS            bool `json:"tts"`
	Quality        bool `json:"quality"`
	ActiveSessions int  `json:"activeSessions"`
}

// GetHealth probes both backing services concurrently. A slow or failed
// probe on one never delays the other: each client bounds its own probe
// with an independent timeout.
func (o *Orchestrator) GetHealth(ctx context.Context) Health {
	var h Health

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		h.TTS = o.speech.HealthCheck(gctx)
		return nil
	})
	g.Go(func() error {
		h.Quality = o.quality.HealthCheck(gctx)
		return nil
	})
	_ = g.Wait()

	h.ActiveSessions = o.store.Count()
	return h
}

// Cleanup evicts idle-expired sessions and returns the eviction count.
func (o *Orchestrator) Cleanup() int {
	return o.store.SweepExpired()
}

// RunCleanupLoop sweeps expired sessions on a fixed interval until the
// context is cancelled. Run it in its own goroutine; cancelling the
// context is the shutdown path.
func (o *Orchestrator) RunCleanupLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Session cleanup loop stopped")
			return
		case <-ticker.C:
			o.Cleanup()
		}
	}
}
