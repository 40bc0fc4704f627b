package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/stemsi/vocab-runner/internal/model"
)

// ErrNoPendingResult is returned when a trainer has no submitted exam awaiting
// its result.
var ErrNoPendingResult = errors.New("no pending exam result for this trainer")

// JobAPI polls evaluation jobs on the remote API.
type JobAPI interface {
	JobResult(ctx context.Context, token, trainerID, jobID string) (*model.JobResult, error)
}

// ResultService serves the result page of asynchronously graded exams from
// the stored PendingJob handoff.
type ResultService struct {
	sessions *SessionService
	api      JobAPI
	log      zerolog.Logger
}

// NewResultService creates a new ResultService.
func NewResultService(sessions *SessionService, api JobAPI, log zerolog.Logger) *ResultService {
	return &ResultService{
		sessions: sessions,
		api:      api,
		log:      log.With().Str("component", "result_service").Logger(),
	}
}

// Get returns the pending job of a trainer with its latest evaluation state.
// Finished results cached by the worker are served without a remote call.
func (s *ResultService) Get(ctx context.Context, claims *Claims, trainerID string) (*model.ExamResult, error) {
	state := s.sessions.State(claims)
	job := state.PendingJob(ctx, trainerID)
	if job == nil {
		return nil, ErrNoPendingResult
	}

	res := state.JobResult(ctx, trainerID, job.JobID)
	if res == nil {
		remote, err := s.api.JobResult(ctx, claims.Token, trainerID, job.JobID)
		if err != nil {
			return nil, fmt.Errorf("poll job %s: %w", job.JobID, err)
		}
		res = remote
		if res.Status.Done() {
			if err := state.SaveJobResult(ctx, trainerID, job.JobID, res); err != nil {
				s.log.Warn().Err(err).Str("job_id", job.JobID).Msg("Failed to cache job result")
			}
		}
	}

	return &model.ExamResult{TrainerID: trainerID, Job: job, Result: res}, nil
}

// Acknowledge consumes the handoff once the result has been shown.
func (s *ResultService) Acknowledge(ctx context.Context, claims *Claims, trainerID string) error {
	state := s.sessions.State(claims)
	job := state.PendingJob(ctx, trainerID)
	if job == nil {
		return ErrNoPendingResult
	}
	if err := state.ClearJobResult(ctx, trainerID, job.JobID); err != nil {
		s.log.Warn().Err(err).Str("job_id", job.JobID).Msg("Failed to clear cached job result")
	}
	if err := state.ClearPendingJob(ctx, trainerID); err != nil {
		return fmt.Errorf("clear pending job: %w", err)
	}
	return nil
}
