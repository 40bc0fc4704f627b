package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/vocab-runner/internal/apiclient"
	"github.com/stemsi/vocab-runner/internal/capture"
	"github.com/stemsi/vocab-runner/internal/config"
	"github.com/stemsi/vocab-runner/internal/exam"
	"github.com/stemsi/vocab-runner/internal/model"
	"github.com/stemsi/vocab-runner/internal/store"
)

// Session service errors.
var (
	ErrSessionNotFound = errors.New("exam session not found")
	ErrTypeMismatch    = errors.New("trainer is configured for a different question type")
)

// JobEnqueuer hands evaluation jobs to the result worker.
type JobEnqueuer interface {
	Enqueue(ctx context.Context, job model.QueuedJob) error
}

// ExamAPI is the part of the remote API the session service needs.
type ExamAPI interface {
	FetchExam(ctx context.Context, token, trainerID string) (*model.ExamPayload, error)
	NewBridge(token string) *apiclient.Bridge
}

// SessionService hosts running exam sessions in memory. Each session is owned
// by the user that launched it.
type SessionService struct {
	cfg   *config.Config
	api   ExamAPI
	store store.Store
	bus   EventBus
	jobs  JobEnqueuer
	log   zerolog.Logger

	// NewTicker is swapped by tests.
	NewTicker exam.TickerFunc

	baseCtx context.Context
	mu      sync.RWMutex
	entries map[uuid.UUID]*sessionEntry
}

type sessionEntry struct {
	session *exam.Session
	owner   string
	relay   *capture.Relay
}

// NewSessionService creates a new SessionService. bus and jobs may be nil.
func NewSessionService(
	cfg *config.Config,
	api ExamAPI,
	st store.Store,
	bus EventBus,
	jobs JobEnqueuer,
	log zerolog.Logger,
) *SessionService {
	return &SessionService{
		cfg:       cfg,
		api:       api,
		store:     st,
		bus:       bus,
		jobs:      jobs,
		log:       log.With().Str("component", "session_service").Logger(),
		NewTicker: exam.SystemTicker,
		baseCtx:   context.Background(),
		entries:   make(map[uuid.UUID]*sessionEntry),
	}
}

// State returns the stored state of a user.
func (s *SessionService) State(claims *Claims) *store.TrainerState {
	return store.NewTrainerState(s.store, claims.Scope(), s.cfg.GenerateCooldown, s.log)
}

// Launch fetches a trainer's exam and starts a new session for it. Any
// session the user still holds for the same trainer is replaced once the new
// one is built.
// A non-empty want must match the exam's question type.
func (s *SessionService) Launch(ctx context.Context, claims *Claims, trainerID string, want model.QuestionType) (*model.SessionSnapshot, error) {
	payload, err := s.api.FetchExam(ctx, claims.Token, trainerID)
	if err != nil {
		return nil, fmt.Errorf("fetch exam: %w", err)
	}

	state := s.State(claims)
	if payload.QuestionType == "" {
		payload.QuestionType = want
	}
	if payload.QuestionType == "" {
		payload.QuestionType = state.QuestionType(ctx, trainerID)
	}
	if want != "" && want != payload.QuestionType {
		return nil, ErrTypeMismatch
	}

	// A flip-card attempt picks up the assessments persisted by an attempt
	// that did not finish, e.g. before a restart. Relaunching over a
	// completed attempt starts over.
	var flipLog []model.FlipResult
	if payload.QuestionType == model.QuestionTypeFlipCard {
		if s.hasCompleted(claims.Scope(), trainerID) {
			s.clearFlipLog(state, trainerID)
		} else {
			flipLog = state.FlipLog(ctx, trainerID)
		}
	}

	id := uuid.New()
	relay := capture.NewRelay()
	sess, err := exam.New(exam.Config{
		ID:            id,
		TrainerID:     trainerID,
		Payload:       payload,
		Bridge:        s.api.NewBridge(claims.Token),
		Journal:       state,
		Microphone:    relay,
		NewTicker:     s.NewTicker,
		Listener:      s.listener(id, claims),
		Log:           s.log,
		TimeBudget:    s.cfg.DefaultTimeBudget,
		PassThreshold: s.cfg.PassThreshold,
		MaxAudioBytes: int(s.cfg.MaxAudioBytes),
		FlipLog:       flipLog,
		Context:       s.baseCtx,
	})
	if err != nil {
		return nil, err
	}

	if err := state.SetQuestionType(ctx, trainerID, payload.QuestionType); err != nil {
		s.log.Warn().Err(err).Str("trainer_id", trainerID).Msg("Failed to cache question type")
	}

	s.mu.Lock()
	stale := s.takeTrainerLocked(claims.Scope(), trainerID)
	s.entries[id] = &sessionEntry{session: sess, owner: claims.Scope(), relay: relay}
	s.mu.Unlock()

	for _, e := range stale {
		e.session.Abandon()
	}

	if err := sess.Start(); err != nil {
		return nil, err
	}

	s.log.Info().
		Str("session_id", id.String()).
		Str("trainer_id", trainerID).
		Str("question_type", string(payload.QuestionType)).
		Int("questions", len(payload.Questions)).
		Int("restored_cards", len(flipLog)).
		Msg("Exam session launched")

	return sess.Snapshot(), nil
}

// Snapshot returns the current view of a session.
func (s *SessionService) Snapshot(claims *Claims, id uuid.UUID) (*model.SessionSnapshot, error) {
	sess, err := s.get(claims, id)
	if err != nil {
		return nil, err
	}
	return sess.Snapshot(), nil
}

// Next moves a session to the following question.
func (s *SessionService) Next(claims *Claims, id uuid.UUID) (*model.SessionSnapshot, error) {
	return s.apply(claims, id, (*exam.Session).Next)
}

// Previous moves a session to the preceding question.
func (s *SessionService) Previous(claims *Claims, id uuid.UUID) (*model.SessionSnapshot, error) {
	return s.apply(claims, id, (*exam.Session).Previous)
}

// Answer records the current question's answer.
func (s *SessionService) Answer(claims *Claims, id uuid.UUID, value string) (*model.SessionSnapshot, error) {
	return s.apply(claims, id, func(sess *exam.Session) error { return sess.Answer(value) })
}

// Flip turns the current flip card.
func (s *SessionService) Flip(claims *Claims, id uuid.UUID) (*model.SessionSnapshot, error) {
	return s.apply(claims, id, (*exam.Session).Flip)
}

// Assess records a flip-card self-assessment.
func (s *SessionService) Assess(claims *Claims, id uuid.UUID, a model.Assessment) (*model.SessionSnapshot, error) {
	return s.apply(claims, id, func(sess *exam.Session) error { return sess.Assess(a) })
}

// StartRecording opens the session's microphone relay.
func (s *SessionService) StartRecording(ctx context.Context, claims *Claims, id uuid.UUID) (*model.SessionSnapshot, error) {
	return s.apply(claims, id, func(sess *exam.Session) error { return sess.StartRecording(ctx) })
}

// PauseRecording pauses the capture.
func (s *SessionService) PauseRecording(claims *Claims, id uuid.UUID) (*model.SessionSnapshot, error) {
	return s.apply(claims, id, (*exam.Session).PauseRecording)
}

// ResumeRecording resumes the capture.
func (s *SessionService) ResumeRecording(claims *Claims, id uuid.UUID) (*model.SessionSnapshot, error) {
	return s.apply(claims, id, (*exam.Session).ResumeRecording)
}

// StopRecording finalizes the capture.
func (s *SessionService) StopRecording(claims *Claims, id uuid.UUID) (*model.SessionSnapshot, error) {
	return s.apply(claims, id, (*exam.Session).StopRecording)
}

// RecordAgain discards the capture.
func (s *SessionService) RecordAgain(claims *Claims, id uuid.UUID) (*model.SessionSnapshot, error) {
	return s.apply(claims, id, (*exam.Session).RecordAgain)
}

// PushAudio feeds a recorded chunk to the session's microphone. It reports
// false when no capture is running.
func (s *SessionService) PushAudio(claims *Claims, id uuid.UUID, chunk []byte) (bool, error) {
	s.mu.RLock()
	e, ok := s.entries[id]
	s.mu.RUnlock()
	if !ok || e.owner != claims.Scope() {
		return false, ErrSessionNotFound
	}
	return e.relay.Push(chunk), nil
}

// Submit sends the exam. A failed submission is reported through the
// returned snapshot's error state, not as an error.
func (s *SessionService) Submit(ctx context.Context, claims *Claims, id uuid.UUID) (*model.SessionSnapshot, error) {
	return s.apply(claims, id, func(sess *exam.Session) error { return sess.Submit(ctx) })
}

// Complete finishes a flip-card exam.
func (s *SessionService) Complete(claims *Claims, id uuid.UUID) (*model.SessionSnapshot, error) {
	return s.apply(claims, id, (*exam.Session).Complete)
}

// Discard abandons a session and forgets it. Acknowledging a completed or
// failed session goes through here, and so does backing out of a flip-card
// attempt, which also drops its persisted assessments.
func (s *SessionService) Discard(claims *Claims, id uuid.UUID) error {
	s.mu.Lock()
	e, ok := s.entries[id]
	if !ok || e.owner != claims.Scope() {
		s.mu.Unlock()
		return ErrSessionNotFound
	}
	delete(s.entries, id)
	s.mu.Unlock()

	e.session.Abandon()
	if e.session.Type() == model.QuestionTypeFlipCard {
		s.clearFlipLog(s.State(claims), e.session.TrainerID())
	}
	return nil
}

// Sweep discards sessions idle for longer than the configured TTL and
// returns how many were removed.
func (s *SessionService) Sweep(now time.Time) int {
	ttl := s.cfg.SessionIdleTTL
	if ttl <= 0 {
		return 0
	}

	var stale []*sessionEntry
	s.mu.Lock()
	for id, e := range s.entries {
		if now.Sub(e.session.IdleSince()) > ttl {
			stale = append(stale, e)
			delete(s.entries, id)
		}
	}
	s.mu.Unlock()

	for _, e := range stale {
		e.session.Abandon()
	}
	if len(stale) > 0 {
		s.log.Info().Int("count", len(stale)).Msg("Discarded idle exam sessions")
	}
	return len(stale)
}

// RunSweeper sweeps idle sessions every interval until ctx is done.
func (s *SessionService) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.Sweep(now)
		}
	}
}

// Shutdown abandons every session, releasing timers and microphones.
func (s *SessionService) Shutdown() {
	s.mu.Lock()
	entries := s.entries
	s.entries = make(map[uuid.UUID]*sessionEntry)
	s.mu.Unlock()

	for _, e := range entries {
		e.session.Abandon()
	}
	s.log.Info().Int("count", len(entries)).Msg("Exam sessions closed")
}

// Count returns the number of hosted sessions.
func (s *SessionService) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Owns reports whether the session exists and belongs to the caller.
func (s *SessionService) Owns(claims *Claims, id uuid.UUID) bool {
	_, err := s.get(claims, id)
	return err == nil
}

// ─── Internal helpers ──────────────────────────────────────────────

func (s *SessionService) get(claims *Claims, id uuid.UUID) (*exam.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[id]
	// Sessions of other users are reported as missing.
	if !ok || e.owner != claims.Scope() {
		return nil, ErrSessionNotFound
	}
	return e.session, nil
}

func (s *SessionService) apply(claims *Claims, id uuid.UUID, op func(*exam.Session) error) (*model.SessionSnapshot, error) {
	sess, err := s.get(claims, id)
	if err != nil {
		return nil, err
	}
	if err := op(sess); err != nil {
		return nil, err
	}
	return sess.Snapshot(), nil
}

// takeTrainerLocked removes and returns the owner's sessions for a trainer.
func (s *SessionService) takeTrainerLocked(owner, trainerID string) []*sessionEntry {
	var stale []*sessionEntry
	for id, e := range s.entries {
		if e.owner == owner && e.session.TrainerID() == trainerID {
			stale = append(stale, e)
			delete(s.entries, id)
		}
	}
	return stale
}

// hasCompleted reports whether the owner holds a completed session for the trainer.
func (s *SessionService) hasCompleted(owner, trainerID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, e := range s.entries {
		if e.owner == owner && e.session.TrainerID() == trainerID && e.session.State() == model.StateCompleted {
			return true
		}
	}
	return false
}

func (s *SessionService) clearFlipLog(state *store.TrainerState, trainerID string) {
	ctx, cancel := context.WithTimeout(s.baseCtx, 5*time.Second)
	defer cancel()
	if err := state.ClearFlipLog(ctx, trainerID); err != nil {
		s.log.Warn().Err(err).Str("trainer_id", trainerID).Msg("Failed to clear flip-card log")
	}
}

// listener publishes session events and hands evaluation jobs to the worker.
// It runs on the session's goroutines and never calls back into the session.
func (s *SessionService) listener(id uuid.UUID, claims *Claims) exam.Listener {
	scope, token := claims.Scope(), claims.Token
	return func(e exam.Event) {
		if e.Type == exam.EventState && e.Snapshot.State == model.StateEvaluating && e.Snapshot.JobID != "" {
			s.enqueue(model.QueuedJob{
				Scope:     scope,
				Token:     token,
				TrainerID: e.Snapshot.TrainerID,
				JobID:     e.Snapshot.JobID,
			})
		}
		if s.bus == nil {
			return
		}
		payload, err := json.Marshal(e)
		if err != nil {
			return
		}
		ctx, cancel := context.WithTimeout(s.baseCtx, 2*time.Second)
		defer cancel()
		if err := s.bus.Publish(ctx, id.String(), payload); err != nil {
			s.log.Debug().Err(err).Str("session_id", id.String()).Msg("Publish session event failed")
		}
	}
}

func (s *SessionService) enqueue(job model.QueuedJob) {
	if s.jobs == nil {
		return
	}
	ctx, cancel := context.WithTimeout(s.baseCtx, 5*time.Second)
	defer cancel()
	if err := s.jobs.Enqueue(ctx, job); err != nil {
		s.log.Warn().Err(err).Str("job_id", job.JobID).Msg("Failed to enqueue evaluation job")
	}
}
