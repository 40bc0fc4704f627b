package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/vocab-runner/internal/config"
	"github.com/stemsi/vocab-runner/internal/model"
	"github.com/stemsi/vocab-runner/internal/store"
)

const (
	JobPollTimeout   = 1 * time.Second
	JobMaxAttempts   = 200
	jobNotDueBackoff = 250 * time.Millisecond
	jobRequeueWait   = 5 * time.Second
)

// jobQueue is the part of the Redis client the worker uses.
type jobQueue interface {
	BLPop(ctx context.Context, timeout time.Duration, keys ...string) *redis.StringSliceCmd
	RPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
	LLen(ctx context.Context, key string) *redis.IntCmd
}

// JobAPI polls evaluation jobs on the remote API.
type JobAPI interface {
	JobResult(ctx context.Context, token, trainerID, jobID string) (*model.JobResult, error)
}

// JobWorker consumes pending_jobs_queue, polls each evaluation job until it
// finishes and caches the result for the result page.
type JobWorker struct {
	queue     jobQueue
	api       JobAPI
	store     store.Store
	pollDelay time.Duration
	now       func() time.Time
	log       zerolog.Logger
}

// NewJobWorker creates a new JobWorker.
func NewJobWorker(rdb *redis.Client, api JobAPI, st store.Store, pollDelay time.Duration, log zerolog.Logger) *JobWorker {
	if pollDelay <= 0 {
		pollDelay = 3 * time.Second
	}
	return &JobWorker{
		queue:     rdb,
		api:       api,
		store:     st,
		pollDelay: pollDelay,
		now:       time.Now,
		log:       log.With().Str("component", "job_worker").Logger(),
	}
}

// Enqueue schedules a job for its first poll.
func (w *JobWorker) Enqueue(ctx context.Context, job model.QueuedJob) error {
	job.NotBefore = w.now().Add(w.pollDelay).UnixMilli()
	raw, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return w.queue.RPush(ctx, config.WorkerKey.PendingJobsQueue, raw).Err()
}

// Start begins the worker loop. Call in a goroutine.
func (w *JobWorker) Start(ctx context.Context) {
	w.log.Info().Msg("JobWorker started")

	for {
		select {
		case <-ctx.Done():
			// Unfinished jobs stay queued in Redis for the next start.
			n, _ := w.queue.LLen(context.Background(), config.WorkerKey.PendingJobsQueue).Result()
			w.log.Info().Int64("queued", n).Msg("JobWorker stopped")
			return
		default:
			w.processNext(ctx)
		}
	}
}

func (w *JobWorker) processNext(ctx context.Context) {
	item, err := w.queue.BLPop(ctx, JobPollTimeout, config.WorkerKey.PendingJobsQueue).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) && ctx.Err() == nil {
			w.log.Error().Err(err).Msg("BLPop error")
		}
		return
	}
	if len(item) < 2 {
		return
	}

	var job model.QueuedJob
	if err := json.Unmarshal([]byte(item[1]), &job); err != nil {
		w.log.Error().Err(err).Msg("Invalid JSON payload")
		return
	}

	if w.now().UnixMilli() < job.NotBefore {
		w.requeue(ctx, job.JobID, []byte(item[1]))
		if ctx.Err() == nil {
			time.Sleep(jobNotDueBackoff)
		}
		return
	}

	if next, requeue := w.handle(ctx, job); requeue {
		raw, err := json.Marshal(next)
		if err != nil {
			w.log.Error().Err(err).Str("job_id", job.JobID).Msg("Marshal job failed, dropping")
			return
		}
		w.requeue(ctx, job.JobID, raw)
	}
}

// requeue pushes a popped job back. It runs even when ctx is already
// cancelled so a job in flight at shutdown stays queued.
func (w *JobWorker) requeue(ctx context.Context, jobID string, raw []byte) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), jobRequeueWait)
	defer cancel()
	if err := w.queue.RPush(ctx, config.WorkerKey.PendingJobsQueue, raw).Err(); err != nil {
		w.log.Error().Err(err).Str("job_id", jobID).Msg("Requeue job failed, job lost")
	}
}

// handle polls one job. It returns the job to requeue when it is not done.
func (w *JobWorker) handle(ctx context.Context, job model.QueuedJob) (model.QueuedJob, bool) {
	log := w.log.With().Str("job_id", job.JobID).Str("trainer_id", job.TrainerID).Logger()

	res, err := w.api.JobResult(ctx, job.Token, job.TrainerID, job.JobID)
	switch {
	case err != nil && ctx.Err() != nil:
		// Shutting down; the poll did not count.
		log.Debug().Err(err).Msg("Job poll interrupted")
		return job, true
	case err != nil:
		log.Warn().Err(err).Int("attempts", job.Attempts).Msg("Job poll failed")
	case res.Status.Done():
		state := store.NewTrainerState(w.store, job.Scope, 0, w.log)
		if err := state.SaveJobResult(ctx, job.TrainerID, job.JobID, res); err != nil {
			log.Error().Err(err).Msg("Cache job result failed, retrying")
			break
		}
		log.Info().Str("status", string(res.Status)).Msg("Evaluation finished")
		return job, false
	}

	job.Attempts++
	if job.Attempts >= JobMaxAttempts {
		log.Warn().Int("attempts", job.Attempts).Msg("Giving up on evaluation job")
		return job, false
	}
	job.NotBefore = w.now().Add(w.pollDelay).UnixMilli()
	return job, true
}
