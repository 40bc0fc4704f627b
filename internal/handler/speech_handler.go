package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/vocab-runner/internal/middleware"
	"github.com/stemsi/vocab-runner/internal/response"
	"github.com/stemsi/vocab-runner/internal/service"
)

// SpeechHandler serves pronunciation audio for flip cards.
type SpeechHandler struct {
	speech *service.SpeechService
}

// NewSpeechHandler creates a new SpeechHandler.
func NewSpeechHandler(speech *service.SpeechService) *SpeechHandler {
	return &SpeechHandler{speech: speech}
}

// Speak godoc
// GET /api/v1/sessions/:session_id/speech?side=front|back
// Returns MP3 audio of the current card's front or back.
func (h *SpeechHandler) Speak(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	side := c.DefaultQuery("side", service.SideFront)
	if side != service.SideFront && side != service.SideBack {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, map[string]string{
			"side": "side must be front or back",
		})
		return
	}

	audio, err := h.speech.Speak(c.Request.Context(), claims, middleware.GetSessionID(c), side)
	if err != nil {
		failWithError(c, err)
		return
	}
	c.Header("Cache-Control", "private, max-age=3600")
	c.Data(http.StatusOK, "audio/mpeg", audio)
}
