package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/vocab-runner/internal/model"
)

// CooldownError is returned while the AI generate cooldown is running.
type CooldownError struct {
	Remaining time.Duration
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("please wait %d seconds before generating again", e.Seconds())
}

// Seconds is the remaining cooldown rounded up to whole seconds.
func (e *CooldownError) Seconds() int {
	return int((e.Remaining + time.Second - 1) / time.Second)
}

// GenerateAPI is the remote AI generate endpoint.
type GenerateAPI interface {
	GenerateVocab(ctx context.Context, token string, req *model.GenerateRequest) (json.RawMessage, error)
}

// GenerateService proxies AI vocab generation with a per-user cooldown.
type GenerateService struct {
	sessions *SessionService
	api      GenerateAPI
	now      func() time.Time
	log      zerolog.Logger
}

// NewGenerateService creates a new GenerateService.
func NewGenerateService(sessions *SessionService, api GenerateAPI, log zerolog.Logger) *GenerateService {
	return &GenerateService{
		sessions: sessions,
		api:      api,
		now:      time.Now,
		log:      log.With().Str("component", "generate_service").Logger(),
	}
}

// Generate calls the remote generator unless the cooldown is running. Only a
// successful call starts a new cooldown.
func (s *GenerateService) Generate(ctx context.Context, claims *Claims, req *model.GenerateRequest) (json.RawMessage, error) {
	state := s.sessions.State(claims)
	if remaining := state.GenerateCooldown(ctx, s.now()); remaining > 0 {
		return nil, &CooldownError{Remaining: remaining}
	}

	out, err := s.api.GenerateVocab(ctx, claims.Token, req)
	if err != nil {
		return nil, err
	}
	if err := state.MarkGenerated(ctx, s.now()); err != nil {
		s.log.Warn().Err(err).Msg("Failed to record generate timestamp")
	}
	return out, nil
}
