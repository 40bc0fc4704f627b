package exam

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/vocab-runner/internal/apiclient"
	"github.com/stemsi/vocab-runner/internal/capture"
	"github.com/stemsi/vocab-runner/internal/model"
)

// fakeClock hands out manually driven tickers.
type fakeClock struct {
	mu      sync.Mutex
	tickers []*fakeTicker
}

type fakeTicker struct {
	ch      chan time.Time
	stopped chan struct{}
	once    sync.Once
}

func (t *fakeTicker) C() <-chan time.Time { return t.ch }
func (t *fakeTicker) Stop()               { t.once.Do(func() { close(t.stopped) }) }

func (c *fakeClock) NewTicker(time.Duration) Ticker {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTicker{ch: make(chan time.Time), stopped: make(chan struct{})}
	c.tickers = append(c.tickers, t)
	return t
}

func (c *fakeClock) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.tickers)
}

// stopped reports whether the newest ticker has been stopped.
func (c *fakeClock) stopped() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.tickers) == 0 {
		return true
	}
	select {
	case <-c.tickers[len(c.tickers)-1].stopped:
		return true
	default:
		return false
	}
}

// tick fires the newest ticker once and reports whether it was received.
func (c *fakeClock) tick() bool {
	c.mu.Lock()
	if len(c.tickers) == 0 {
		c.mu.Unlock()
		return false
	}
	t := c.tickers[len(c.tickers)-1]
	c.mu.Unlock()
	select {
	case t.ch <- time.Now():
		return true
	case <-t.stopped:
		return false
	case <-time.After(200 * time.Millisecond):
		return false
	}
}

type fakeBridge struct {
	mu          sync.Mutex
	result      *apiclient.SubmitResult
	submitErr   error
	fileID      string
	uploadErr   error
	submissions []any
	uploads     [][]byte
}

func (b *fakeBridge) Submit(ctx context.Context, trainerID string, submission any) (*apiclient.SubmitResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.submissions = append(b.submissions, submission)
	if b.submitErr != nil {
		return nil, b.submitErr
	}
	return b.result, nil
}

func (b *fakeBridge) UploadAudio(ctx context.Context, audio []byte, contentType string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.uploads = append(b.uploads, audio)
	if b.uploadErr != nil {
		return "", b.uploadErr
	}
	return b.fileID, nil
}

func (b *fakeBridge) uploadCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.uploads)
}

func (b *fakeBridge) submitCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.submissions)
}

type fakeJournal struct {
	mu      sync.Mutex
	jobs    map[string]model.PendingJob
	flipLog []model.FlipResult
	writes  int
}

func newFakeJournal() *fakeJournal {
	return &fakeJournal{jobs: make(map[string]model.PendingJob)}
}

func (j *fakeJournal) SavePendingJob(ctx context.Context, trainerID string, job model.PendingJob) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.jobs[trainerID] = job
	return nil
}

func (j *fakeJournal) SaveFlipLog(ctx context.Context, trainerID string, results []model.FlipResult) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.flipLog = results
	j.writes++
	return nil
}

// stateRecorder collects state transitions reported to the listener.
type stateRecorder struct {
	mu     sync.Mutex
	states []model.SessionState
}

func (r *stateRecorder) listen(e Event) {
	if e.Type != EventState {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, e.Snapshot.State)
}

func (r *stateRecorder) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = nil
}

func (r *stateRecorder) get() []model.SessionState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.SessionState(nil), r.states...)
}

type fixture struct {
	session *Session
	clock   *fakeClock
	bridge  *fakeBridge
	journal *fakeJournal
	states  *stateRecorder
	mic     *capture.Relay
}

func newFixture(t *testing.T, payload *model.ExamPayload) *fixture {
	t.Helper()
	return newFixtureWith(t, payload, nil)
}

// newFixtureWith lets a test adjust the session config before New.
func newFixtureWith(t *testing.T, payload *model.ExamPayload, adjust func(*Config)) *fixture {
	t.Helper()
	f := &fixture{
		clock:   &fakeClock{},
		bridge:  &fakeBridge{fileID: "file-1"},
		journal: newFakeJournal(),
		states:  &stateRecorder{},
		mic:     capture.NewRelay(),
	}
	cfg := Config{
		TrainerID:     "trainer-1",
		Payload:       payload,
		Bridge:        f.bridge,
		Journal:       f.journal,
		Microphone:    f.mic,
		NewTicker:     f.clock.NewTicker,
		Listener:      f.states.listen,
		Log:           zerolog.Nop(),
		PassThreshold: DefaultPassThreshold,
	}
	if adjust != nil {
		adjust(&cfg)
	}
	s, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	if err := s.Start(); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	f.session = s
	t.Cleanup(s.Abandon)
	return f
}

// ticks fires n ticks and waits until the session has counted them.
func (f *fixture) ticks(t *testing.T, n int) {
	t.Helper()
	want := f.session.Snapshot().TimeElapsed + n
	for i := 0; i < n; i++ {
		if !f.clock.tick() {
			t.Fatalf("tick %d was not received", i+1)
		}
	}
	waitFor(t, "ticks to be counted", func() bool {
		return f.session.Snapshot().TimeElapsed == want
	})
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func mcPayload(n int) *model.ExamPayload {
	qs := make([]model.Question, n)
	for i := range qs {
		qs[i] = model.Question{
			Content:       "word",
			Options:       []model.Option{{Label: "A", Value: "A"}, {Label: "B", Value: "B"}},
			CorrectAnswer: "A",
		}
	}
	return &model.ExamPayload{ID: "exam-1", QuestionType: model.QuestionTypeMultipleChoice, CountTime: 900, Questions: qs}
}

func fillPayload(n, budget int) *model.ExamPayload {
	qs := make([]model.Question, n)
	for i := range qs {
		qs[i] = model.Question{Content: "I ___ to school", CorrectAnswer: "go"}
	}
	return &model.ExamPayload{QuestionType: model.QuestionTypeFillInTheBlank, CountTime: budget, Questions: qs}
}

func flipPayload(n int) *model.ExamPayload {
	qs := make([]model.Question, n)
	for i := range qs {
		qs[i] = model.Question{FrontText: "apple", BackText: "apel", FrontLanguageCode: "en-US", BackLanguageCode: "id-ID"}
	}
	return &model.ExamPayload{QuestionType: model.QuestionTypeFlipCard, CountTime: 900, Questions: qs}
}

func audioPayload(budget int) *model.ExamPayload {
	return &model.ExamPayload{
		QuestionType: model.QuestionTypeTranslationAudio,
		CountTime:    budget,
		Questions: []model.Question{{
			Dialogue: []model.DialogueLine{{Speaker: "A", Text: "Good morning"}},
		}},
	}
}
