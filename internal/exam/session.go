package exam

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/vocab-runner/internal/apiclient"
	"github.com/stemsi/vocab-runner/internal/capture"
	"github.com/stemsi/vocab-runner/internal/model"
)

// DefaultTimeBudget applies when the server sends no budget.
const DefaultTimeBudget = 900

// Bridge carries submissions to the remote API.
type Bridge interface {
	Submit(ctx context.Context, trainerID string, submission any) (*apiclient.SubmitResult, error)
	UploadAudio(ctx context.Context, audio []byte, contentType string) (string, error)
}

// Journal persists in-flight state so it survives the session object.
// Failures are logged and never fail the session.
type Journal interface {
	SavePendingJob(ctx context.Context, trainerID string, job model.PendingJob) error
	SaveFlipLog(ctx context.Context, trainerID string, results []model.FlipResult) error
}

// Config wires a Session.
type Config struct {
	ID            uuid.UUID
	TrainerID     string
	Payload       *model.ExamPayload
	Bridge        Bridge
	Journal       Journal
	Microphone    capture.Microphone
	NewTicker     TickerFunc
	Listener      Listener
	Log           zerolog.Logger
	TimeBudget    int
	PassThreshold float64
	MaxAudioBytes int
	// FlipLog restores the assessments a previous flip-card attempt on the
	// same trainer already persisted.
	FlipLog []model.FlipResult
	// Context is used by timer-driven submissions. Defaults to Background.
	Context context.Context
	Now     func() time.Time
}

// Session drives one exam attempt through taking → submitting → terminal.
type Session struct {
	id        uuid.UUID
	trainerID string
	examID    string
	variant   Variant
	questions []model.Question
	threshold float64
	bridge    Bridge
	journal   Journal
	newTicker TickerFunc
	listener  Listener
	log       zerolog.Logger
	baseCtx   context.Context
	now       func() time.Time
	startedAt time.Time

	mu            sync.Mutex
	state         model.SessionState
	index         int
	answers       map[int]string
	flip          *flipState
	recorder      *Recorder
	fileID        string
	remaining     int
	elapsed       int
	timerStop     chan struct{}
	autoSubmitted bool
	closed        bool
	errMsg        string
	score         *model.Score
	summary       *model.FlipSummary
	jobID         string
	touched       time.Time
	outbox        []Event
	flushMu       sync.Mutex

	journalMu  sync.Mutex
	journalSeq int
	journalled int
}

type flipState struct {
	assessments map[int]model.Assessment
	revealed    map[int]bool
	flipped     bool
	cardElapsed int
	log         []model.FlipResult
}

// New builds a session in the taking state. The timer starts with Start.
func New(cfg Config) (*Session, error) {
	if cfg.Payload == nil || len(cfg.Payload.Questions) == 0 {
		return nil, ErrNoQuestions
	}
	variant, err := NewVariant(cfg.Payload.QuestionType)
	if err != nil {
		return nil, err
	}

	budget := cfg.Payload.CountTime
	if budget <= 0 {
		budget = cfg.TimeBudget
	}
	if budget <= 0 {
		budget = DefaultTimeBudget
	}
	threshold := cfg.PassThreshold
	if threshold <= 0 {
		threshold = DefaultPassThreshold
	}
	if cfg.ID == uuid.Nil {
		cfg.ID = uuid.New()
	}
	if cfg.NewTicker == nil {
		cfg.NewTicker = SystemTicker
	}
	if cfg.Context == nil {
		cfg.Context = context.Background()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	s := &Session{
		id:        cfg.ID,
		trainerID: cfg.TrainerID,
		examID:    cfg.Payload.ID,
		variant:   variant,
		questions: append([]model.Question(nil), cfg.Payload.Questions...),
		threshold: threshold,
		bridge:    cfg.Bridge,
		journal:   cfg.Journal,
		newTicker: cfg.NewTicker,
		listener:  cfg.Listener,
		baseCtx:   cfg.Context,
		now:       cfg.Now,
		state:     model.StateTaking,
		answers:   make(map[int]string),
		remaining: budget,
		log: cfg.Log.With().
			Str("session_id", cfg.ID.String()).
			Str("trainer_id", cfg.TrainerID).
			Str("question_type", string(variant.Type())).
			Logger(),
	}
	s.startedAt = s.now()
	s.touched = s.startedAt

	switch variant.Type() {
	case model.QuestionTypeFlipCard:
		s.flip = &flipState{
			assessments: make(map[int]model.Assessment, len(s.questions)),
			revealed:    make(map[int]bool),
		}
		for i := range s.questions {
			s.flip.assessments[i] = model.AssessmentKnown
		}
		s.restoreFlipLog(cfg.FlipLog)
	case model.QuestionTypeTranslationAudio:
		s.recorder = NewRecorder(cfg.Microphone, "audio/webm", cfg.MaxAudioBytes)
	}
	return s, nil
}

// ID returns the session id.
func (s *Session) ID() uuid.UUID { return s.id }

// TrainerID returns the trainer the session attempts.
func (s *Session) TrainerID() string { return s.trainerID }

// Type returns the question type.
func (s *Session) Type() model.QuestionType { return s.variant.Type() }

// Start enters taking and starts the timer if it is not running.
func (s *Session) Start() error {
	s.mu.Lock()
	if err := s.usableLocked(); err != nil {
		s.mu.Unlock()
		return err
	}
	if s.state != model.StateTaking {
		s.mu.Unlock()
		return ErrInvalidState
	}
	s.startTimerLocked()
	s.queue(Event{Type: EventState})
	s.unlockAndFlush()
	s.log.Info().Int("questions", len(s.questions)).Msg("Exam session started")
	return nil
}

// Next moves to the following question. It is a no-op on the last one.
func (s *Session) Next() error {
	return s.navigate(1)
}

// Previous moves to the preceding question. It is a no-op on the first one.
func (s *Session) Previous() error {
	return s.navigate(-1)
}

func (s *Session) navigate(delta int) error {
	s.mu.Lock()
	if err := s.takingLocked(); err != nil {
		s.mu.Unlock()
		return err
	}
	if !s.variant.Navigable() {
		s.mu.Unlock()
		return nil
	}
	target := s.index + delta
	if target < 0 || target >= len(s.questions) {
		s.mu.Unlock()
		return nil
	}
	s.index = target
	if s.flip != nil {
		s.flip.flipped = false
		s.flip.cardElapsed = 0
	}
	s.queue(Event{Type: EventNavigate})
	s.unlockAndFlush()
	return nil
}

// Answer overwrites the current question's answer.
func (s *Session) Answer(value string) error {
	s.mu.Lock()
	if err := s.takingLocked(); err != nil {
		s.mu.Unlock()
		return err
	}
	switch s.variant.Type() {
	case model.QuestionTypeMultipleChoice:
		if !hasOption(s.questions[s.index], value) {
			s.mu.Unlock()
			return ErrInvalidAnswer
		}
	case model.QuestionTypeFillInTheBlank:
	default:
		s.mu.Unlock()
		return ErrUnsupported
	}
	s.answers[s.index] = value
	s.queue(Event{Type: EventAnswer})
	s.unlockAndFlush()
	return nil
}

func hasOption(q model.Question, value string) bool {
	if strings.TrimSpace(value) == "" {
		return false
	}
	if len(q.Options) == 0 {
		return true
	}
	for _, o := range q.Options {
		if o.Value == value {
			return true
		}
	}
	return false
}

// Flip turns the current card. The first reveal of a card's back marks it
// unknown; later flips never change the assessment.
func (s *Session) Flip() error {
	s.mu.Lock()
	if err := s.takingLocked(); err != nil {
		s.mu.Unlock()
		return err
	}
	if s.flip == nil {
		s.mu.Unlock()
		return ErrUnsupported
	}
	s.flip.flipped = !s.flip.flipped
	if s.flip.flipped && !s.flip.revealed[s.index] {
		s.flip.revealed[s.index] = true
		s.assessLocked(model.AssessmentUnknown)
	}
	s.queue(Event{Type: EventFlip})
	seq, results := s.flipLogLocked()
	s.unlockAndFlush()

	s.persistFlipLog(seq, results)
	return nil
}

// Assess records an explicit known/unknown for the current card.
func (s *Session) Assess(a model.Assessment) error {
	if !a.Valid() {
		return ErrInvalidAnswer
	}
	s.mu.Lock()
	if err := s.takingLocked(); err != nil {
		s.mu.Unlock()
		return err
	}
	if s.flip == nil {
		s.mu.Unlock()
		return ErrUnsupported
	}
	s.assessLocked(a)
	s.queue(Event{Type: EventAssess})
	seq, results := s.flipLogLocked()
	s.unlockAndFlush()

	s.persistFlipLog(seq, results)
	return nil
}

// assessLocked sets the card's assessment and upserts its log entry, keeping
// the position of the card's first entry.
func (s *Session) assessLocked(a model.Assessment) {
	s.flip.assessments[s.index] = a
	entry := model.FlipResult{Index: s.index, Assessment: a, ElapsedSeconds: s.flip.cardElapsed}
	for i := range s.flip.log {
		if s.flip.log[i].Index == s.index {
			s.flip.log[i] = entry
			return
		}
	}
	s.flip.log = append(s.flip.log, entry)
}

// restoreFlipLog seeds assessments and the log from persisted results.
// Restored cards count as revealed, so flipping them again keeps the
// restored assessment.
func (s *Session) restoreFlipLog(results []model.FlipResult) {
	for _, r := range results {
		if r.Index < 0 || r.Index >= len(s.questions) || !r.Assessment.Valid() || s.flip.revealed[r.Index] {
			continue
		}
		s.flip.revealed[r.Index] = true
		s.flip.assessments[r.Index] = r.Assessment
		s.flip.log = append(s.flip.log, r)
	}
}

func (s *Session) flipLogLocked() (int, []model.FlipResult) {
	s.journalSeq++
	return s.journalSeq, append([]model.FlipResult(nil), s.flip.log...)
}

// persistFlipLog writes the log unless a newer version was already written.
func (s *Session) persistFlipLog(seq int, results []model.FlipResult) {
	if s.journal == nil {
		return
	}
	s.journalMu.Lock()
	defer s.journalMu.Unlock()
	if seq <= s.journalled {
		return
	}
	if err := s.journal.SaveFlipLog(s.baseCtx, s.trainerID, results); err != nil {
		s.log.Warn().Err(err).Msg("Failed to persist flip-card results")
		return
	}
	s.journalled = seq
}

// StartRecording acquires the microphone and enters recording.
func (s *Session) StartRecording(ctx context.Context) error {
	s.mu.Lock()
	if err := s.takingLocked(); err != nil {
		s.mu.Unlock()
		return err
	}
	if s.recorder == nil {
		s.mu.Unlock()
		return ErrUnsupported
	}
	if err := s.recorder.Start(ctx); err != nil {
		s.mu.Unlock()
		return err
	}
	s.fileID = ""
	s.setStateLocked(model.StateRecording)
	s.unlockAndFlush()
	return nil
}

// PauseRecording keeps the microphone but stops capturing.
func (s *Session) PauseRecording() error {
	return s.whileRecording(func(r *Recorder) error { return r.Pause() })
}

// ResumeRecording continues a paused capture.
func (s *Session) ResumeRecording() error {
	return s.whileRecording(func(r *Recorder) error { return r.Resume() })
}

func (s *Session) whileRecording(fn func(r *Recorder) error) error {
	s.mu.Lock()
	if err := s.usableLocked(); err != nil {
		s.mu.Unlock()
		return err
	}
	if s.state != model.StateRecording {
		s.mu.Unlock()
		return ErrInvalidState
	}
	if err := fn(s.recorder); err != nil {
		s.mu.Unlock()
		return err
	}
	s.queue(Event{Type: EventRecording})
	s.unlockAndFlush()
	return nil
}

// StopRecording finalizes the capture, releases the microphone and returns
// to taking.
func (s *Session) StopRecording() error {
	s.mu.Lock()
	if err := s.usableLocked(); err != nil {
		s.mu.Unlock()
		return err
	}
	if s.state != model.StateRecording {
		s.mu.Unlock()
		return ErrInvalidState
	}
	err := s.recorder.Stop()
	s.setStateLocked(model.StateTaking)
	s.unlockAndFlush()
	if err != nil {
		s.log.Warn().Err(err).Msg("Closing microphone stream failed")
	}
	return nil
}

// RecordAgain discards the capture so a new one can be made.
func (s *Session) RecordAgain() error {
	s.mu.Lock()
	if err := s.usableLocked(); err != nil {
		s.mu.Unlock()
		return err
	}
	if s.recorder == nil {
		s.mu.Unlock()
		return ErrUnsupported
	}
	if s.state != model.StateTaking && s.state != model.StateRecording {
		s.mu.Unlock()
		return ErrInvalidState
	}
	s.recorder.Reset()
	s.fileID = ""
	s.setStateLocked(model.StateTaking)
	s.queue(Event{Type: EventRecording})
	s.unlockAndFlush()
	return nil
}

// Abandon discards the session: the timer stops and the microphone is
// released. An in-flight submission is not cancelled.
func (s *Session) Abandon() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.stopTimerLocked()
	if s.recorder != nil {
		s.recorder.Release()
	}
	s.queue(Event{Type: EventClosed})
	s.unlockAndFlush()
	s.log.Info().Msg("Exam session discarded")
}

// CanSubmit reports the variant's submit gate.
func (s *Session) CanSubmit() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == model.StateTaking && s.variant.CanSubmit(s.viewLocked())
}

// State returns the current state.
func (s *Session) State() model.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// IdleSince returns the time of the last operation on the session.
func (s *Session) IdleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.touched
}

// Snapshot returns the client view of the session.
func (s *Session) Snapshot() *model.SessionSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() *model.SessionSnapshot {
	q := s.questions[s.index].ForClient()
	snap := &model.SessionSnapshot{
		ID:            s.id,
		TrainerID:     s.trainerID,
		QuestionType:  s.variant.Type(),
		State:         s.state,
		CurrentIndex:  s.index,
		Total:         len(s.questions),
		Question:      &q,
		TimeRemaining: s.remaining,
		TimeElapsed:   s.elapsed,
		CanSubmit:     s.state == model.StateTaking && s.variant.CanSubmit(s.viewLocked()),
		Score:         s.score,
		Summary:       s.summary,
		JobID:         s.jobID,
		Error:         s.errMsg,
		StartedAt:     s.startedAt,
	}
	if len(s.answers) > 0 {
		snap.Answers = copyAnswers(s.answers)
	}
	if s.flip != nil {
		snap.Assessments = make(map[int]model.Assessment, len(s.flip.assessments))
		for k, v := range s.flip.assessments {
			snap.Assessments[k] = v
		}
		snap.Flipped = s.flip.flipped
		snap.CardElapsed = s.flip.cardElapsed
	}
	if s.recorder != nil {
		snap.Recorder = &model.RecorderSnapshot{
			Recording: s.recorder.Recording(),
			Paused:    s.recorder.Paused(),
			Bytes:     s.recorder.Len(),
			Truncated: s.recorder.Truncated(),
			Uploaded:  s.fileID != "",
			FileID:    s.fileID,
		}
	}
	return snap
}

// ─── Internal helpers ──────────────────────────────────────────────

func (s *Session) usableLocked() error {
	if s.closed {
		return ErrSessionClosed
	}
	s.touched = s.now()
	return nil
}

func (s *Session) takingLocked() error {
	if err := s.usableLocked(); err != nil {
		return err
	}
	if s.state != model.StateTaking {
		return ErrInvalidState
	}
	return nil
}

func (s *Session) viewLocked() View {
	return View{
		Questions:    s.questions,
		Answers:      s.answers,
		Index:        s.index,
		HasRecording: s.recorder != nil && !s.recorder.Recording() && s.recorder.Len() > 0,
		Truncated:    s.recorder != nil && s.recorder.Truncated(),
	}
}

// gateErrLocked explains why the variant's submit gate is closed.
func (s *Session) gateErrLocked() error {
	switch {
	case s.flip != nil:
		return ErrNotLastCard
	case s.recorder != nil && s.recorder.Truncated():
		return ErrRecordingTooLarge
	case s.recorder != nil && s.recorder.Len() == 0:
		return ErrNoRecording
	}
	return ErrCannotSubmit
}

func (s *Session) setStateLocked(state model.SessionState) {
	if s.state == state {
		return
	}
	s.log.Debug().Str("from", string(s.state)).Str("to", string(state)).Msg("State transition")
	s.state = state
	s.queue(Event{Type: EventState})
}

func copyAnswers(src map[int]string) map[int]string {
	dst := make(map[int]string, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
