package model

import (
	"time"

	"github.com/google/uuid"
)

// SessionState enumerates exam session states.
type SessionState string

const (
	StateTaking     SessionState = "taking"
	StateRecording  SessionState = "recording"
	StateUploading  SessionState = "uploading"
	StateSubmitting SessionState = "submitting"
	StateEvaluating SessionState = "evaluating"
	StateCompleted  SessionState = "completed"
	StateError      SessionState = "error"
)

// Terminal reports whether no further transition can leave the state.
func (s SessionState) Terminal() bool {
	return s == StateEvaluating || s == StateCompleted || s == StateError
}

// Timed reports whether the exam clock runs in the state.
func (s SessionState) Timed() bool {
	return s == StateTaking || s == StateRecording
}

// Assessment is a flip-card self-assessment.
type Assessment string

const (
	AssessmentKnown   Assessment = "known"
	AssessmentUnknown Assessment = "unknown"
)

// Valid reports whether a is known or unknown.
func (a Assessment) Valid() bool {
	return a == AssessmentKnown || a == AssessmentUnknown
}

// FlipResult is the log entry of one assessed card.
type FlipResult struct {
	Index          int        `json:"index"`
	Assessment     Assessment `json:"assessment"`
	ElapsedSeconds int        `json:"elapsedSeconds"`
}

// FlipSummary is the locally computed outcome of a flip-card exam.
type FlipSummary struct {
	Known       int          `json:"known"`
	Unknown     int          `json:"unknown"`
	Total       int          `json:"total"`
	TimeElapsed int          `json:"timeElapsed"`
	Results     []FlipResult `json:"results"`
}

// ScoredItem is the per-question line of a local score.
type ScoredItem struct {
	Index         int    `json:"index"`
	UserAnswer    string `json:"userAnswer"`
	CorrectAnswer string `json:"correctAnswer"`
	Correct       bool   `json:"correct"`
}

// Score is a locally computed result. It is not proof of server-side correctness.
type Score struct {
	Correct  int          `json:"correct"`
	Total    int          `json:"total"`
	Accuracy float64      `json:"accuracy"`
	Passed   bool         `json:"passed"`
	Items    []ScoredItem `json:"items"`
}

// SessionSnapshot is the client view of a running exam session.
type SessionSnapshot struct {
	ID            uuid.UUID          `json:"id"`
	TrainerID     string             `json:"trainer_id"`
	QuestionType  QuestionType       `json:"question_type"`
	State         SessionState       `json:"state"`
	CurrentIndex  int                `json:"current_index"`
	Total         int                `json:"total_questions"`
	Question      *QuestionForClient `json:"question,omitempty"`
	Answers       map[int]string     `json:"answers,omitempty"`
	Assessments   map[int]Assessment `json:"assessments,omitempty"`
	Flipped       bool               `json:"flipped,omitempty"`
	CardElapsed   int                `json:"card_elapsed,omitempty"`
	Recorder      *RecorderSnapshot  `json:"recorder,omitempty"`
	TimeRemaining int                `json:"time_remaining"`
	TimeElapsed   int                `json:"time_elapsed"`
	CanSubmit     bool               `json:"can_submit"`
	Score         *Score             `json:"score,omitempty"`
	Summary       *FlipSummary       `json:"summary,omitempty"`
	JobID         string             `json:"job_id,omitempty"`
	Error         string             `json:"error,omitempty"`
	StartedAt     time.Time          `json:"started_at"`
}

// RecorderSnapshot describes the audio capture of a translation-audio session.
type RecorderSnapshot struct {
	Recording bool   `json:"recording"`
	Paused    bool   `json:"paused"`
	Bytes     int    `json:"bytes"`
	Truncated bool   `json:"truncated"`
	Uploaded  bool   `json:"uploaded"`
	FileID    string `json:"file_id,omitempty"`
}

// StartSessionRequest is the payload for launching an exam session.
type StartSessionRequest struct {
	QuestionType string `json:"question_type" binding:"omitempty,question_type"`
}

// AnswerRequest records the answer of the current question.
type AnswerRequest struct {
	Answer string `json:"answer" binding:"max=2000"`
}

// AssessRequest records an explicit flip-card self-assessment.
type AssessRequest struct {
	Assessment string `json:"assessment" binding:"required,assessment"`
}
