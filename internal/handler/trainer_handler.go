package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/vocab-runner/internal/middleware"
	"github.com/stemsi/vocab-runner/internal/model"
	"github.com/stemsi/vocab-runner/internal/response"
	"github.com/stemsi/vocab-runner/internal/service"
	"github.com/stemsi/vocab-runner/internal/validator"
)

// TrainerHandler handles the per-trainer endpoints that live outside a
// running session: launch info, results and AI generation.
type TrainerHandler struct {
	launch   *service.LaunchService
	results  *service.ResultService
	generate *service.GenerateService
}

// NewTrainerHandler creates a new TrainerHandler.
func NewTrainerHandler(launch *service.LaunchService, results *service.ResultService, generate *service.GenerateService) *TrainerHandler {
	return &TrainerHandler{launch: launch, results: results, generate: generate}
}

// GetLaunch godoc
// GET /api/v1/trainers/:trainer_id/launch
// Tells the launch button which exam route to open.
func (h *TrainerHandler) GetLaunch(c *gin.Context) {
	claims, trainerID, ok := trainerRequest(c)
	if !ok {
		return
	}
	response.Success(c, http.StatusOK, h.launch.Info(c.Request.Context(), claims, trainerID))
}

// GetResult godoc
// GET /api/v1/trainers/:trainer_id/result
// Returns the pending job of the trainer with its evaluation state.
func (h *TrainerHandler) GetResult(c *gin.Context) {
	claims, trainerID, ok := trainerRequest(c)
	if !ok {
		return
	}
	res, err := h.results.Get(c.Request.Context(), claims, trainerID)
	if err != nil {
		failWithError(c, err)
		return
	}
	response.Success(c, http.StatusOK, res)
}

// AcknowledgeResult godoc
// DELETE /api/v1/trainers/:trainer_id/result
// Consumes the result handoff once it has been shown.
func (h *TrainerHandler) AcknowledgeResult(c *gin.Context) {
	claims, trainerID, ok := trainerRequest(c)
	if !ok {
		return
	}
	if err := h.results.Acknowledge(c.Request.Context(), claims, trainerID); err != nil {
		failWithError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"message": "Result acknowledged"})
}

// Generate godoc
// POST /api/v1/vocabs/generate
// Proxies AI vocab generation. Rejected with 429 while the cooldown runs.
func (h *TrainerHandler) Generate(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	var req model.GenerateRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	out, err := h.generate.Generate(c.Request.Context(), claims, &req)
	if err != nil {
		failWithError(c, err)
		return
	}
	response.Success(c, http.StatusOK, out)
}

func trainerRequest(c *gin.Context) (*service.Claims, string, bool) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return nil, "", false
	}
	trainerID := strings.TrimSpace(c.Param("trainer_id"))
	if trainerID == "" {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return nil, "", false
	}
	return claims, trainerID, true
}
