package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stemsi/vocab-runner/internal/middleware"
	"github.com/stemsi/vocab-runner/internal/model"
	"github.com/stemsi/vocab-runner/internal/response"
	"github.com/stemsi/vocab-runner/internal/service"
	"github.com/stemsi/vocab-runner/internal/validator"
)

// SessionHandler handles exam session endpoints.
type SessionHandler struct {
	sessions *service.SessionService
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(sessions *service.SessionService) *SessionHandler {
	return &SessionHandler{sessions: sessions}
}

// StartSession godoc
// POST /api/v1/trainers/:trainer_id/sessions
// Fetches the trainer's exam and starts a timed session for it.
func (h *SessionHandler) StartSession(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	trainerID := strings.TrimSpace(c.Param("trainer_id"))
	if trainerID == "" {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.StartSessionRequest
	if c.Request.ContentLength > 0 {
		if fields := validator.Bind(c, &req); fields != nil {
			response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
			return
		}
	}

	snap, err := h.sessions.Launch(c.Request.Context(), claims, trainerID, model.QuestionType(req.QuestionType))
	if err != nil {
		failWithError(c, err)
		return
	}
	response.Success(c, http.StatusCreated, snap)
}

// GetSession godoc
// GET /api/v1/sessions/:session_id
func (h *SessionHandler) GetSession(c *gin.Context) {
	h.run(c, func(claims *service.Claims, id uuid.UUID) (*model.SessionSnapshot, error) {
		return h.sessions.Snapshot(claims, id)
	})
}

// Next godoc
// POST /api/v1/sessions/:session_id/next
func (h *SessionHandler) Next(c *gin.Context) {
	h.run(c, h.sessions.Next)
}

// Previous godoc
// POST /api/v1/sessions/:session_id/previous
func (h *SessionHandler) Previous(c *gin.Context) {
	h.run(c, h.sessions.Previous)
}

// Answer godoc
// PUT /api/v1/sessions/:session_id/answer
// Records the answer of the current question.
func (h *SessionHandler) Answer(c *gin.Context) {
	var req model.AnswerRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}
	h.run(c, func(claims *service.Claims, id uuid.UUID) (*model.SessionSnapshot, error) {
		return h.sessions.Answer(claims, id, req.Answer)
	})
}

// Flip godoc
// POST /api/v1/sessions/:session_id/flip
func (h *SessionHandler) Flip(c *gin.Context) {
	h.run(c, h.sessions.Flip)
}

// Assess godoc
// PUT /api/v1/sessions/:session_id/assessment
func (h *SessionHandler) Assess(c *gin.Context) {
	var req model.AssessRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}
	h.run(c, func(claims *service.Claims, id uuid.UUID) (*model.SessionSnapshot, error) {
		return h.sessions.Assess(claims, id, model.Assessment(req.Assessment))
	})
}

// StartRecording godoc
// POST /api/v1/sessions/:session_id/recording/start
// Audio chunks are then streamed as binary frames over the session socket.
func (h *SessionHandler) StartRecording(c *gin.Context) {
	h.run(c, func(claims *service.Claims, id uuid.UUID) (*model.SessionSnapshot, error) {
		return h.sessions.StartRecording(c.Request.Context(), claims, id)
	})
}

// PauseRecording godoc
// POST /api/v1/sessions/:session_id/recording/pause
func (h *SessionHandler) PauseRecording(c *gin.Context) {
	h.run(c, h.sessions.PauseRecording)
}

// ResumeRecording godoc
// POST /api/v1/sessions/:session_id/recording/resume
func (h *SessionHandler) ResumeRecording(c *gin.Context) {
	h.run(c, h.sessions.ResumeRecording)
}

// StopRecording godoc
// POST /api/v1/sessions/:session_id/recording/stop
func (h *SessionHandler) StopRecording(c *gin.Context) {
	h.run(c, h.sessions.StopRecording)
}

// RecordAgain godoc
// DELETE /api/v1/sessions/:session_id/recording
func (h *SessionHandler) RecordAgain(c *gin.Context) {
	h.run(c, h.sessions.RecordAgain)
}

// Submit godoc
// POST /api/v1/sessions/:session_id/submit
// A rejected submission still answers 200; the snapshot carries the error
// state and message.
func (h *SessionHandler) Submit(c *gin.Context) {
	h.run(c, func(claims *service.Claims, id uuid.UUID) (*model.SessionSnapshot, error) {
		return h.sessions.Submit(c.Request.Context(), claims, id)
	})
}

// Complete godoc
// POST /api/v1/sessions/:session_id/complete
// Finishes a flip-card session and returns its summary.
func (h *SessionHandler) Complete(c *gin.Context) {
	h.run(c, h.sessions.Complete)
}

// Discard godoc
// DELETE /api/v1/sessions/:session_id
// Leaves the exam. Any running timer and microphone are released.
func (h *SessionHandler) Discard(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}
	if err := h.sessions.Discard(claims, middleware.GetSessionID(c)); err != nil {
		failWithError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"message": "Session closed"})
}

func (h *SessionHandler) run(c *gin.Context, op func(*service.Claims, uuid.UUID) (*model.SessionSnapshot, error)) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}
	snap, err := op(claims, middleware.GetSessionID(c))
	if err != nil {
		failWithError(c, err)
		return
	}
	response.Success(c, http.StatusOK, snap)
}
