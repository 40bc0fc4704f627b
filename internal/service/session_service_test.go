package service

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"github.com/stemsi/vocab-runner/internal/apiclient"
	"github.com/stemsi/vocab-runner/internal/config"
	"github.com/stemsi/vocab-runner/internal/exam"
	"github.com/stemsi/vocab-runner/internal/model"
	"github.com/stemsi/vocab-runner/internal/store"
)

// stillTicker never fires.
type stillTicker struct{ ch chan time.Time }

func (t stillTicker) C() <-chan time.Time { return t.ch }
func (stillTicker) Stop()                 {}

type fakeExamAPI struct {
	payload model.ExamPayload
	client  *apiclient.Client
}

func (f *fakeExamAPI) FetchExam(context.Context, string, string) (*model.ExamPayload, error) {
	p := f.payload
	return &p, nil
}

func (f *fakeExamAPI) NewBridge(token string) *apiclient.Bridge {
	return f.client.NewBridge(token)
}

type fakeQueue struct {
	mu   sync.Mutex
	jobs []model.QueuedJob
}

func (q *fakeQueue) Enqueue(_ context.Context, job model.QueuedJob) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs = append(q.jobs, job)
	return nil
}

type harness struct {
	svc   *SessionService
	store *store.MemoryStore
	bus   *LocalEventBus
	queue *fakeQueue
	api   *fakeExamAPI
}

func newHarness(t *testing.T, payload model.ExamPayload) *harness {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"jobId":"job-7"}`))
	}))
	t.Cleanup(srv.Close)

	cfg := &config.Config{
		DefaultTimeBudget: 900,
		PassThreshold:     70,
		GenerateCooldown:  time.Minute,
		MaxAudioBytes:     1 << 20,
		SessionIdleTTL:    time.Hour,
	}
	h := &harness{
		store: store.NewMemoryStore(),
		bus:   NewLocalEventBus(),
		queue: &fakeQueue{},
	}
	h.api = &fakeExamAPI{payload: payload, client: apiclient.NewClient(srv.URL, srv.URL+"/uploads", time.Second, zerolog.Nop())}
	h.svc = NewSessionService(cfg, h.api, h.store, h.bus, h.queue, zerolog.Nop())
	h.svc.NewTicker = func(time.Duration) exam.Ticker { return stillTicker{ch: make(chan time.Time)} }
	t.Cleanup(h.svc.Shutdown)
	return h
}

func claimsFor(user string) *Claims {
	return &Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: user}, Token: "tok-" + user}
}

func fillExam() model.ExamPayload {
	return model.ExamPayload{
		QuestionType: model.QuestionTypeFillInTheBlank,
		Questions:    []model.Question{{Content: "I ___ to school", CorrectAnswer: "go"}},
	}
}

func flipExam() model.ExamPayload {
	return model.ExamPayload{
		QuestionType: model.QuestionTypeFlipCard,
		Questions: []model.Question{
			{FrontText: "apple", BackText: "apel"},
			{FrontText: "water", BackText: "air"},
		},
	}
}

func TestFlipLogSurvivesRestart(t *testing.T) {
	h := newHarness(t, flipExam())
	ctx := context.Background()
	user := claimsFor("user-1")

	snap, err := h.svc.Launch(ctx, user, "t1", "")
	if err != nil {
		t.Fatalf("Launch() error = %v", err)
	}
	if _, err := h.svc.Flip(user, snap.ID); err != nil {
		t.Fatalf("Flip() error = %v", err)
	}

	// Sessions live in memory only; a restart loses them.
	h.svc.Shutdown()

	snap, err = h.svc.Launch(ctx, user, "t1", "")
	if err != nil {
		t.Fatalf("relaunch error = %v", err)
	}
	if snap.Assessments[0] != model.AssessmentUnknown || snap.Assessments[1] != model.AssessmentKnown {
		t.Fatalf("assessments after relaunch = %v", snap.Assessments)
	}
	if log := h.svc.State(user).FlipLog(ctx, "t1"); len(log) != 1 || log[0].Index != 0 {
		t.Fatalf("persisted log after relaunch = %+v", log)
	}

	// Backing out drops the attempt.
	if err := h.svc.Discard(user, snap.ID); err != nil {
		t.Fatalf("Discard() error = %v", err)
	}
	if log := h.svc.State(user).FlipLog(ctx, "t1"); log != nil {
		t.Fatalf("log kept after discard: %+v", log)
	}
	snap, err = h.svc.Launch(ctx, user, "t1", "")
	if err != nil {
		t.Fatalf("launch after discard error = %v", err)
	}
	if snap.Assessments[0] != model.AssessmentKnown {
		t.Fatalf("discarded assessments restored: %v", snap.Assessments)
	}
}

func TestRelaunchAfterFlipCompletionStartsOver(t *testing.T) {
	h := newHarness(t, flipExam())
	ctx := context.Background()
	user := claimsFor("user-1")

	snap, _ := h.svc.Launch(ctx, user, "t1", "")
	_, _ = h.svc.Flip(user, snap.ID)
	_, _ = h.svc.Next(user, snap.ID)
	done, err := h.svc.Complete(user, snap.ID)
	if err != nil || done.State != model.StateCompleted {
		t.Fatalf("Complete() = %+v, %v", done, err)
	}

	snap, err = h.svc.Launch(ctx, user, "t1", "")
	if err != nil {
		t.Fatalf("relaunch error = %v", err)
	}
	if snap.Assessments[0] != model.AssessmentKnown {
		t.Fatalf("completed attempt leaked into the new one: %v", snap.Assessments)
	}
	if h.svc.Count() != 1 {
		t.Fatalf("sessions = %d, want 1", h.svc.Count())
	}
}

func TestFailedRelaunchKeepsPreviousSession(t *testing.T) {
	h := newHarness(t, fillExam())
	user := claimsFor("user-1")

	first, err := h.svc.Launch(context.Background(), user, "t1", "")
	if err != nil {
		t.Fatalf("Launch() error = %v", err)
	}
	h.api.payload = model.ExamPayload{QuestionType: model.QuestionTypeFillInTheBlank}
	if _, err := h.svc.Launch(context.Background(), user, "t1", ""); !errors.Is(err, exam.ErrNoQuestions) {
		t.Fatalf("relaunch error = %v, want ErrNoQuestions", err)
	}
	if _, err := h.svc.Snapshot(user, first.ID); err != nil {
		t.Fatalf("previous session lost: %v", err)
	}
}

func TestConcurrentLaunchesKeepOneSession(t *testing.T) {
	h := newHarness(t, fillExam())
	user := claimsFor("user-1")

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := h.svc.Launch(context.Background(), user, "t1", ""); err != nil {
				t.Errorf("Launch() error = %v", err)
			}
		}()
	}
	wg.Wait()
	if n := h.svc.Count(); n != 1 {
		t.Fatalf("sessions = %d, want 1", n)
	}
}

func TestLaunchFallsBackToCachedQuestionType(t *testing.T) {
	payload := fillExam()
	payload.QuestionType = ""
	h := newHarness(t, payload)
	user := claimsFor("user-1")

	if err := h.svc.State(user).SetQuestionType(context.Background(), "t1", model.QuestionTypeFillInTheBlank); err != nil {
		t.Fatal(err)
	}
	snap, err := h.svc.Launch(context.Background(), user, "t1", "")
	if err != nil {
		t.Fatalf("Launch() error = %v", err)
	}
	if snap.QuestionType != model.QuestionTypeFillInTheBlank {
		t.Fatalf("question type = %s", snap.QuestionType)
	}
}

func TestLaunchTypeMismatch(t *testing.T) {
	h := newHarness(t, fillExam())
	_, err := h.svc.Launch(context.Background(), claimsFor("user-1"), "t1", model.QuestionTypeFlipCard)
	if !errors.Is(err, ErrTypeMismatch) {
		t.Fatalf("Launch() error = %v, want ErrTypeMismatch", err)
	}
	if h.svc.Count() != 0 {
		t.Fatal("mismatched launch registered a session")
	}
}

func TestSessionsAreScopedToOwner(t *testing.T) {
	h := newHarness(t, fillExam())
	owner, other := claimsFor("user-1"), claimsFor("user-2")

	snap, err := h.svc.Launch(context.Background(), owner, "t1", "")
	if err != nil {
		t.Fatal(err)
	}
	if !h.svc.Owns(owner, snap.ID) || h.svc.Owns(other, snap.ID) {
		t.Fatal("ownership check failed")
	}
	if _, err := h.svc.Answer(other, snap.ID, "go"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("Answer() by other user error = %v", err)
	}
	if _, err := h.svc.PushAudio(other, snap.ID, []byte{1}); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("PushAudio() by other user error = %v", err)
	}
	if err := h.svc.Discard(other, snap.ID); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("Discard() by other user error = %v", err)
	}
}

func TestSubmitEnqueuesJobAndPublishes(t *testing.T) {
	h := newHarness(t, fillExam())
	user := claimsFor("user-1")
	ctx := context.Background()

	snap, err := h.svc.Launch(ctx, user, "t1", "")
	if err != nil {
		t.Fatal(err)
	}
	events, unsubscribe := h.bus.Subscribe(ctx, snap.ID.String())
	defer unsubscribe()

	if _, err := h.svc.Answer(user, snap.ID, "go"); err != nil {
		t.Fatal(err)
	}
	got, err := h.svc.Submit(ctx, user, snap.ID)
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if got.State != model.StateEvaluating || got.JobID != "job-7" {
		t.Fatalf("Submit() = %s %q", got.State, got.JobID)
	}

	h.queue.mu.Lock()
	jobs := append([]model.QueuedJob(nil), h.queue.jobs...)
	h.queue.mu.Unlock()
	if len(jobs) != 1 || jobs[0].JobID != "job-7" || jobs[0].Scope != "user-1" || jobs[0].Token != "tok-user-1" {
		t.Fatalf("queued jobs = %+v", jobs)
	}
	if job := h.svc.State(user).PendingJob(ctx, "t1"); job == nil || job.JobID != "job-7" {
		t.Fatalf("pending job = %+v", job)
	}

	sawEvaluating := false
	for !sawEvaluating {
		select {
		case raw := <-events:
			var e exam.Event
			if err := json.Unmarshal(raw, &e); err != nil {
				t.Fatalf("decode event: %v", err)
			}
			sawEvaluating = e.Type == exam.EventState && e.Snapshot.State == model.StateEvaluating
		case <-time.After(time.Second):
			t.Fatal("no evaluating event published")
		}
	}
}

func TestSweepDiscardsIdleSessions(t *testing.T) {
	h := newHarness(t, fillExam())
	snap, err := h.svc.Launch(context.Background(), claimsFor("user-1"), "t1", "")
	if err != nil {
		t.Fatal(err)
	}

	if n := h.svc.Sweep(time.Now()); n != 0 {
		t.Fatalf("Sweep(now) removed %d sessions", n)
	}
	if n := h.svc.Sweep(time.Now().Add(2 * time.Hour)); n != 1 {
		t.Fatalf("Sweep(later) removed %d sessions, want 1", n)
	}
	if h.svc.Owns(claimsFor("user-1"), snap.ID) {
		t.Fatal("swept session still registered")
	}
}

func TestGenerateCooldownOnlyAfterSuccess(t *testing.T) {
	h := newHarness(t, fillExam())
	api := &fakeGenerateAPI{err: errors.New("upstream down")}
	gen := NewGenerateService(h.svc, api, zerolog.Nop())
	user := claimsFor("user-1")
	req := &model.GenerateRequest{Word: "apple", SourceLanguageCode: "en", TargetLanguageCode: "id"}

	if _, err := gen.Generate(context.Background(), user, req); err == nil {
		t.Fatal("Generate() succeeded against a failing API")
	}
	api.err = nil
	if _, err := gen.Generate(context.Background(), user, req); err != nil {
		t.Fatalf("Generate() after failure error = %v, want no cooldown", err)
	}
	var cooldown *CooldownError
	if _, err := gen.Generate(context.Background(), user, req); !errors.As(err, &cooldown) {
		t.Fatalf("Generate() error = %v, want CooldownError", err)
	}
	if cooldown.Seconds() < 59 || cooldown.Seconds() > 60 {
		t.Fatalf("cooldown = %ds", cooldown.Seconds())
	}
}

type fakeGenerateAPI struct{ err error }

func (f *fakeGenerateAPI) GenerateVocab(context.Context, string, *model.GenerateRequest) (json.RawMessage, error) {
	if f.err != nil {
		return nil, f.err
	}
	return json.RawMessage(`{"meaning":"apel"}`), nil
}
