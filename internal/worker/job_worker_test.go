package worker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/vocab-runner/internal/model"
	"github.com/stemsi/vocab-runner/internal/store"
)

type fakeJobAPI struct {
	res *model.JobResult
	err error
}

func (f *fakeJobAPI) JobResult(ctx context.Context, token, trainerID, jobID string) (*model.JobResult, error) {
	return f.res, f.err
}

// fakeQueue hands out one popped item and records pushes together with
// whether the push context was still usable.
type fakeQueue struct {
	mu     sync.Mutex
	popped string
	pushes []string
	live   []bool
}

func (q *fakeQueue) BLPop(ctx context.Context, _ time.Duration, keys ...string) *redis.StringSliceCmd {
	q.mu.Lock()
	defer q.mu.Unlock()
	cmd := redis.NewStringSliceCmd(ctx)
	if q.popped == "" {
		cmd.SetErr(redis.Nil)
		return cmd
	}
	cmd.SetVal([]string{keys[0], q.popped})
	q.popped = ""
	return cmd
}

func (q *fakeQueue) RPush(ctx context.Context, _ string, values ...interface{}) *redis.IntCmd {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, v := range values {
		q.pushes = append(q.pushes, string(v.([]byte)))
		q.live = append(q.live, ctx.Err() == nil)
	}
	cmd := redis.NewIntCmd(ctx)
	if ctx.Err() != nil {
		cmd.SetErr(ctx.Err())
		return cmd
	}
	cmd.SetVal(int64(len(q.pushes)))
	return cmd
}

func (q *fakeQueue) LLen(ctx context.Context, _ string) *redis.IntCmd {
	q.mu.Lock()
	defer q.mu.Unlock()
	cmd := redis.NewIntCmd(ctx)
	cmd.SetVal(int64(len(q.pushes)))
	return cmd
}

func newTestWorker(api JobAPI, st store.Store) *JobWorker {
	w := NewJobWorker(nil, api, st, time.Second, zerolog.Nop())
	w.now = func() time.Time { return time.Unix(1_700_000_000, 0) }
	return w
}

func TestHandleCachesFinishedResult(t *testing.T) {
	mem := store.NewMemoryStore()
	w := newTestWorker(&fakeJobAPI{res: &model.JobResult{Status: model.JobStatusCompleted, Result: []byte(`{"score":88}`)}}, mem)

	job := model.QueuedJob{Scope: "user-1", TrainerID: "t-1", JobID: "job-1"}
	if _, requeue := w.handle(context.Background(), job); requeue {
		t.Fatal("finished job should not be requeued")
	}

	state := store.NewTrainerState(mem, "user-1", 0, zerolog.Nop())
	res := state.JobResult(context.Background(), "t-1", "job-1")
	if res == nil || string(res.Result) != `{"score":88}` {
		t.Fatalf("result not cached: %+v", res)
	}
}

func TestHandleRequeuesPendingJob(t *testing.T) {
	w := newTestWorker(&fakeJobAPI{res: &model.JobResult{Status: model.JobStatusPending}}, store.NewMemoryStore())

	next, requeue := w.handle(context.Background(), model.QueuedJob{Scope: "user-1", TrainerID: "t-1", JobID: "job-1"})
	if !requeue {
		t.Fatal("pending job should be requeued")
	}
	if next.Attempts != 1 {
		t.Fatalf("expected 1 attempt, got %d", next.Attempts)
	}
	if want := w.now().Add(time.Second).UnixMilli(); next.NotBefore != want {
		t.Fatalf("expected next poll at %d, got %d", want, next.NotBefore)
	}
}

func TestHandleGivesUp(t *testing.T) {
	w := newTestWorker(&fakeJobAPI{err: errors.New("502 bad gateway")}, store.NewMemoryStore())

	job := model.QueuedJob{Scope: "user-1", TrainerID: "t-1", JobID: "job-1", Attempts: JobMaxAttempts - 1}
	if _, requeue := w.handle(context.Background(), job); requeue {
		t.Fatal("job past the attempt limit should be dropped")
	}
}

func TestShutdownKeepsInFlightJob(t *testing.T) {
	w := newTestWorker(&fakeJobAPI{err: context.Canceled}, store.NewMemoryStore())
	raw, _ := json.Marshal(model.QueuedJob{Scope: "user-1", TrainerID: "t-1", JobID: "job-1", Attempts: 3})
	q := &fakeQueue{popped: string(raw)}
	w.queue = q

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	w.processNext(ctx)

	if len(q.pushes) != 1 || !q.live[0] {
		t.Fatalf("job not pushed back with a live context: pushes=%d live=%v", len(q.pushes), q.live)
	}
	var job model.QueuedJob
	if err := json.Unmarshal([]byte(q.pushes[0]), &job); err != nil {
		t.Fatalf("requeued payload: %v", err)
	}
	if job.JobID != "job-1" || job.Attempts != 3 {
		t.Fatalf("interrupted poll changed the job: %+v", job)
	}
}

func TestNotDueJobIsPushedBack(t *testing.T) {
	w := newTestWorker(&fakeJobAPI{err: errors.New("must not poll")}, store.NewMemoryStore())
	raw, _ := json.Marshal(model.QueuedJob{JobID: "job-2", NotBefore: w.now().Add(time.Minute).UnixMilli()})
	q := &fakeQueue{popped: string(raw)}
	w.queue = q

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	w.processNext(ctx)

	if len(q.pushes) != 1 || q.pushes[0] != string(raw) || !q.live[0] {
		t.Fatalf("not-due job lost: %+v", q.pushes)
	}
}
