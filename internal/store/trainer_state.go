package store

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/vocab-runner/internal/config"
	"github.com/stemsi/vocab-runner/internal/model"
)

// DefaultGenerateCooldown is the minimum gap between two AI generate calls.
const DefaultGenerateCooldown = 60 * time.Second

// TrainerState is the typed view of one user's stored state. Reads are
// best-effort: missing or corrupt values degrade to defaults instead of
// failing the caller.
type TrainerState struct {
	store    Store
	scope    string
	cooldown time.Duration
	log      zerolog.Logger
}

// NewTrainerState creates a new TrainerState for the given user scope.
func NewTrainerState(st Store, scope string, cooldown time.Duration, log zerolog.Logger) *TrainerState {
	if cooldown <= 0 {
		cooldown = DefaultGenerateCooldown
	}
	return &TrainerState{
		store:    st,
		scope:    scope,
		cooldown: cooldown,
		log:      log.With().Str("component", "trainer_state").Str("scope", scope).Logger(),
	}
}

// QuestionType returns the last question type used for a trainer, or
// multiple-choice when none is cached.
func (t *TrainerState) QuestionType(ctx context.Context, trainerID string) model.QuestionType {
	raw, err := t.store.Get(ctx, config.CacheKey.TrainerQuestionTypeKey(t.scope, trainerID))
	if err != nil {
		t.logReadError(err, "question_type")
		return model.QuestionTypeMultipleChoice
	}
	qt, ok := model.ParseQuestionType(raw)
	if !ok {
		return model.QuestionTypeMultipleChoice
	}
	return qt
}

// SetQuestionType caches the question type of a trainer.
func (t *TrainerState) SetQuestionType(ctx context.Context, trainerID string, qt model.QuestionType) error {
	return t.store.Set(ctx, config.CacheKey.TrainerQuestionTypeKey(t.scope, trainerID), string(qt))
}

// PendingJob returns the stored job handoff, or nil.
func (t *TrainerState) PendingJob(ctx context.Context, trainerID string) *model.PendingJob {
	var job model.PendingJob
	if !t.getJSON(ctx, config.CacheKey.TrainerPendingJobKey(t.scope, trainerID), &job) || job.JobID == "" {
		return nil
	}
	return &job
}

// SavePendingJob stores the handoff of a submitted async exam.
func (t *TrainerState) SavePendingJob(ctx context.Context, trainerID string, job model.PendingJob) error {
	return t.setJSON(ctx, config.CacheKey.TrainerPendingJobKey(t.scope, trainerID), job)
}

// ClearPendingJob removes the handoff once its result has been consumed.
func (t *TrainerState) ClearPendingJob(ctx context.Context, trainerID string) error {
	return t.store.Delete(ctx, config.CacheKey.TrainerPendingJobKey(t.scope, trainerID))
}

// FlipLog returns the persisted flip-card assessments in the order recorded.
func (t *TrainerState) FlipLog(ctx context.Context, trainerID string) []model.FlipResult {
	var results []model.FlipResult
	if !t.getJSON(ctx, config.CacheKey.TrainerFlipLogKey(t.scope, trainerID), &results) {
		return nil
	}
	return results
}

// SaveFlipLog replaces the persisted flip-card assessments.
func (t *TrainerState) SaveFlipLog(ctx context.Context, trainerID string, results []model.FlipResult) error {
	return t.setJSON(ctx, config.CacheKey.TrainerFlipLogKey(t.scope, trainerID), results)
}

// ClearFlipLog forgets the flip-card assessments once the attempt is over.
func (t *TrainerState) ClearFlipLog(ctx context.Context, trainerID string) error {
	return t.store.Delete(ctx, config.CacheKey.TrainerFlipLogKey(t.scope, trainerID))
}

// JobResult returns a cached finished evaluation, or nil.
func (t *TrainerState) JobResult(ctx context.Context, trainerID, jobID string) *model.JobResult {
	var res model.JobResult
	if !t.getJSON(ctx, config.CacheKey.JobResultKey(t.scope, trainerID, jobID), &res) || !res.Status.Done() {
		return nil
	}
	return &res
}

// SaveJobResult caches a finished evaluation.
func (t *TrainerState) SaveJobResult(ctx context.Context, trainerID, jobID string, res *model.JobResult) error {
	return t.setJSON(ctx, config.CacheKey.JobResultKey(t.scope, trainerID, jobID), res)
}

// ClearJobResult drops a cached evaluation.
func (t *TrainerState) ClearJobResult(ctx context.Context, trainerID, jobID string) error {
	return t.store.Delete(ctx, config.CacheKey.JobResultKey(t.scope, trainerID, jobID))
}

// GenerateCooldown returns how long the user must still wait before the
// next AI generate call. Zero means no cooldown.
func (t *TrainerState) GenerateCooldown(ctx context.Context, now time.Time) time.Duration {
	raw, err := t.store.Get(ctx, config.CacheKey.GenerateCooldownKey(t.scope))
	if err != nil {
		t.logReadError(err, "ai_generate")
		return 0
	}
	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0
	}
	remaining := t.cooldown - now.Sub(time.UnixMilli(ms))
	if remaining <= 0 {
		return 0
	}
	if remaining > t.cooldown {
		remaining = t.cooldown
	}
	return remaining
}

// MarkGenerated records an AI generate call at now.
func (t *TrainerState) MarkGenerated(ctx context.Context, now time.Time) error {
	return t.store.Set(ctx, config.CacheKey.GenerateCooldownKey(t.scope), strconv.FormatInt(now.UnixMilli(), 10))
}

// ─── Internal helpers ──────────────────────────────────────────────

func (t *TrainerState) getJSON(ctx context.Context, key string, dst any) bool {
	raw, err := t.store.Get(ctx, key)
	if err != nil {
		t.logReadError(err, key)
		return false
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		t.log.Warn().Err(err).Str("key", key).Msg("Ignoring corrupt stored value")
		return false
	}
	return true
}

func (t *TrainerState) setJSON(ctx context.Context, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return t.store.Set(ctx, key, string(raw))
}

func (t *TrainerState) logReadError(err error, key string) {
	if errors.Is(err, ErrNotFound) {
		return
	}
	t.log.Warn().Err(err).Str("key", key).Msg("Storage read failed")
}
