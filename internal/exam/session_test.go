package exam

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/stemsi/vocab-runner/internal/apiclient"
	"github.com/stemsi/vocab-runner/internal/model"
)

func TestNewRejectsEmptyExam(t *testing.T) {
	_, err := New(Config{Payload: &model.ExamPayload{QuestionType: model.QuestionTypeMultipleChoice}})
	if !errors.Is(err, ErrNoQuestions) {
		t.Fatalf("expected ErrNoQuestions, got %v", err)
	}

	_, err = New(Config{Payload: &model.ExamPayload{QuestionType: "ESSAY", Questions: []model.Question{{}}}})
	if !errors.Is(err, ErrUnknownType) {
		t.Fatalf("expected ErrUnknownType, got %v", err)
	}
}

func TestNewDefaultsTimeBudget(t *testing.T) {
	p := mcPayload(1)
	p.CountTime = 0
	f := newFixture(t, p)
	if got := f.session.Snapshot().TimeRemaining; got != DefaultTimeBudget {
		t.Fatalf("expected %d seconds, got %d", DefaultTimeBudget, got)
	}
}

func TestAnswersSurviveNavigation(t *testing.T) {
	f := newFixture(t, mcPayload(3))
	s := f.session

	if err := s.Answer("A"); err != nil {
		t.Fatalf("Answer() error: %v", err)
	}
	_ = s.Next()
	if err := s.Answer("B"); err != nil {
		t.Fatalf("Answer() error: %v", err)
	}
	_ = s.Next()
	_ = s.Next() // no-op on the last question
	_ = s.Previous()
	_ = s.Previous()
	_ = s.Previous() // no-op on the first question

	snap := s.Snapshot()
	if snap.CurrentIndex != 0 {
		t.Fatalf("expected index 0, got %d", snap.CurrentIndex)
	}
	if snap.Answers[0] != "A" || snap.Answers[1] != "B" {
		t.Fatalf("answers changed by navigation: %v", snap.Answers)
	}
	if _, ok := snap.Answers[2]; ok {
		t.Fatalf("unanswered question has an entry: %v", snap.Answers)
	}

	if err := s.Answer("B"); err != nil {
		t.Fatalf("Answer() error: %v", err)
	}
	if got := s.Snapshot().Answers[0]; got != "B" {
		t.Fatalf("expected overwritten answer B, got %q", got)
	}
}

func TestAnswerRejectsUnknownOption(t *testing.T) {
	f := newFixture(t, mcPayload(1))
	if err := f.session.Answer("Z"); !errors.Is(err, ErrInvalidAnswer) {
		t.Fatalf("expected ErrInvalidAnswer, got %v", err)
	}
}

func TestCanSubmitBoundaries(t *testing.T) {
	for _, n := range []int{1, 50} {
		for _, p := range []*model.ExamPayload{mcPayload(n), fillPayload(n, 900)} {
			f := newFixture(t, p)
			s := f.session
			for i := 0; i < n; i++ {
				if s.CanSubmit() {
					t.Fatalf("%s/%d: canSubmit true with %d answers", p.QuestionType, n, i)
				}
				if err := s.Answer("A"); err != nil {
					t.Fatalf("Answer() error: %v", err)
				}
				_ = s.Next()
			}
			if !s.CanSubmit() {
				t.Fatalf("%s/%d: canSubmit false with every answer", p.QuestionType, n)
			}
		}
	}
}

func TestFillBlankBlankAnswerDoesNotCount(t *testing.T) {
	f := newFixture(t, fillPayload(1, 900))
	_ = f.session.Answer("   ")
	if f.session.CanSubmit() {
		t.Fatal("whitespace answer should not allow submission")
	}
	if err := f.session.Submit(context.Background()); !errors.Is(err, ErrCannotSubmit) {
		t.Fatalf("expected ErrCannotSubmit, got %v", err)
	}
	if f.bridge.submitCount() != 0 {
		t.Fatal("gate refusal must not reach the bridge")
	}
}

func TestTimerCountsTicks(t *testing.T) {
	f := newFixture(t, fillPayload(1, 5))
	f.ticks(t, 3)

	snap := f.session.Snapshot()
	if snap.TimeElapsed != 3 || snap.TimeRemaining != 2 {
		t.Fatalf("expected elapsed 3 remaining 2, got %d/%d", snap.TimeElapsed, snap.TimeRemaining)
	}

	// Start on a running session does not add a second timer.
	_ = f.session.Start()
	if got := f.clock.count(); got != 1 {
		t.Fatalf("expected one timer, got %d", got)
	}
}

func TestFlipCardTimerHasNoCountdown(t *testing.T) {
	p := flipPayload(2)
	p.CountTime = 2
	f := newFixture(t, p)
	f.ticks(t, 4)

	snap := f.session.Snapshot()
	if snap.State != model.StateTaking {
		t.Fatalf("flip-card should not auto-submit, state %s", snap.State)
	}
	if snap.TimeElapsed != 4 || snap.TimeRemaining != 0 {
		t.Fatalf("expected elapsed 4 remaining 0, got %d/%d", snap.TimeElapsed, snap.TimeRemaining)
	}
	if snap.CardElapsed != 4 {
		t.Fatalf("expected card elapsed 4, got %d", snap.CardElapsed)
	}

	_ = f.session.Next()
	if got := f.session.Snapshot().CardElapsed; got != 0 {
		t.Fatalf("navigation should restart card timer, got %d", got)
	}
}

func TestTimeoutSubmitsExactlyOnce(t *testing.T) {
	f := newFixture(t, fillPayload(2, 2))
	f.bridge.result = apiclient.Normalize([]byte(`{"jobId":"job-7"}`))

	if f.session.CanSubmit() {
		t.Fatal("canSubmit should be false with no answers")
	}
	f.ticks(t, 2)
	waitFor(t, "auto-submit", func() bool {
		return f.session.State() == model.StateEvaluating
	})

	waitFor(t, "timer to stop", f.clock.stopped)
	if got := f.bridge.submitCount(); got != 1 {
		t.Fatalf("expected exactly one submission, got %d", got)
	}

	sub := f.bridge.submissions[0].(*model.FillInBlankSubmission)
	if sub.CountTime != 2 || len(sub.WordTestInputs) != 2 {
		t.Fatalf("unexpected submission: %+v", sub)
	}
	job, ok := f.journal.jobs["trainer-1"]
	if !ok || job.JobID != "job-7" || job.TimeElapsed != 2 {
		t.Fatalf("pending job not saved: %+v", job)
	}
}

func TestFlipRevealMarksUnknownOnce(t *testing.T) {
	f := newFixture(t, flipPayload(3))
	s := f.session

	snap := s.Snapshot()
	for i := 0; i < 3; i++ {
		if snap.Assessments[i] != model.AssessmentKnown {
			t.Fatalf("card %d not pre-seeded known", i)
		}
	}

	_ = s.Flip()
	if got := s.Snapshot().Assessments[0]; got != model.AssessmentUnknown {
		t.Fatalf("first reveal should mark unknown, got %s", got)
	}
	_ = s.Assess(model.AssessmentKnown)
	_ = s.Flip()
	_ = s.Flip()
	if got := s.Snapshot().Assessments[0]; got != model.AssessmentKnown {
		t.Fatalf("later flips changed the assessment to %s", got)
	}

	_ = s.Next()
	if s.Snapshot().Flipped {
		t.Fatal("navigation should show the front of the next card")
	}

	f.journal.mu.Lock()
	defer f.journal.mu.Unlock()
	if len(f.journal.flipLog) != 1 || f.journal.flipLog[0].Assessment != model.AssessmentKnown {
		t.Fatalf("unexpected persisted log: %+v", f.journal.flipLog)
	}
}

func TestFlipCardComplete(t *testing.T) {
	f := newFixture(t, flipPayload(3))
	s := f.session

	if err := s.Complete(); !errors.Is(err, ErrNotLastCard) || !errors.Is(err, ErrCannotSubmit) {
		t.Fatalf("expected ErrNotLastCard before the last card, got %v", err)
	}
	_ = s.Next()
	_ = s.Flip()
	_ = s.Next()
	if err := s.Complete(); err != nil {
		t.Fatalf("Complete() error: %v", err)
	}

	snap := s.Snapshot()
	if snap.State != model.StateCompleted || snap.Summary == nil {
		t.Fatalf("expected completed summary, got %+v", snap)
	}
	if snap.Summary.Known != 2 || snap.Summary.Unknown != 1 || snap.Summary.Total != 3 {
		t.Fatalf("unexpected summary: %+v", snap.Summary)
	}
	if len(snap.Summary.Results) != 1 || snap.Summary.Results[0].Index != 1 {
		t.Fatalf("unexpected results: %+v", snap.Summary.Results)
	}
	if f.bridge.submitCount() != 0 {
		t.Fatal("flip-card must not reach the server")
	}
}

func TestFlipLogRestored(t *testing.T) {
	restored := []model.FlipResult{
		{Index: 0, Assessment: model.AssessmentUnknown, ElapsedSeconds: 4},
		{Index: 7, Assessment: model.AssessmentUnknown},
		{Index: 1, Assessment: "maybe"},
	}
	f := newFixtureWith(t, flipPayload(3), func(cfg *Config) { cfg.FlipLog = restored })
	s := f.session

	snap := s.Snapshot()
	want := map[int]model.Assessment{0: model.AssessmentUnknown, 1: model.AssessmentKnown, 2: model.AssessmentKnown}
	if !reflect.DeepEqual(snap.Assessments, want) {
		t.Fatalf("restored assessments = %v, want %v", snap.Assessments, want)
	}

	_ = s.Next()
	_ = s.Flip()
	_ = s.Next()
	if err := s.Complete(); err != nil {
		t.Fatalf("Complete() error: %v", err)
	}
	sum := s.Snapshot().Summary
	if sum.Unknown != 2 || sum.Known != 1 {
		t.Fatalf("unexpected summary: %+v", sum)
	}
	if len(sum.Results) != 2 || sum.Results[0].Index != 0 || sum.Results[0].ElapsedSeconds != 4 || sum.Results[1].Index != 1 {
		t.Fatalf("restored entries not kept in order: %+v", sum.Results)
	}
}

func TestJobIDShapes(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		state model.SessionState
	}{
		{"top level", `{"jobId":"x"}`, model.StateEvaluating},
		{"data", `{"data":{"jobId":"x"}}`, model.StateEvaluating},
		{"result", `{"result":{"jobId":"x"}}`, model.StateEvaluating},
		{"missing", `{}`, model.StateError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, fillPayload(1, 900))
			f.bridge.result = apiclient.Normalize([]byte(tt.body))
			_ = f.session.Answer("go")
			if err := f.session.Submit(context.Background()); err != nil {
				t.Fatalf("Submit() error: %v", err)
			}
			snap := f.session.Snapshot()
			if snap.State != tt.state {
				t.Fatalf("expected %s, got %s", tt.state, snap.State)
			}
			if tt.state == model.StateEvaluating && snap.JobID != "x" {
				t.Fatalf("expected job x, got %q", snap.JobID)
			}
			if tt.state == model.StateError && snap.Error == "" {
				t.Fatal("error state without a message")
			}
		})
	}
}

func TestMultipleChoiceEndToEnd(t *testing.T) {
	p := &model.ExamPayload{
		ID:           "exam-9",
		QuestionType: model.QuestionTypeMultipleChoice,
		CountTime:    900,
		Questions: []model.Question{
			{Content: "apple", Options: []model.Option{{Label: "A", Value: "A"}, {Label: "B", Value: "B"}}, CorrectAnswer: "A"},
			{Content: "pear", Options: []model.Option{{Label: "A", Value: "A"}, {Label: "B", Value: "B"}}, CorrectAnswer: "B"},
		},
	}
	f := newFixture(t, p)
	f.bridge.result = apiclient.Normalize([]byte(`{"data":{"score":100}}`))

	_ = f.session.Answer("A")
	_ = f.session.Next()
	_ = f.session.Answer("B")
	if err := f.session.Submit(context.Background()); err != nil {
		t.Fatalf("Submit() error: %v", err)
	}

	snap := f.session.Snapshot()
	if snap.State != model.StateCompleted {
		t.Fatalf("expected completed, got %s", snap.State)
	}
	if snap.Score.Correct != 2 || snap.Score.Total != 2 || snap.Score.Accuracy != 100 || !snap.Score.Passed {
		t.Fatalf("unexpected score: %+v", snap.Score)
	}

	sub := f.bridge.submissions[0].(*model.MultipleChoiceSubmission)
	if sub.ID != "exam-9" || len(sub.WordTestSelects) != 2 {
		t.Fatalf("unexpected submission: %+v", sub)
	}
	if sub.WordTestSelects[1].SystemSelected != "B" || sub.WordTestSelects[1].UserSelected != "B" {
		t.Fatalf("unexpected select: %+v", sub.WordTestSelects[1])
	}

	if err := f.session.Answer("A"); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("answers must be frozen after submit, got %v", err)
	}
}

func TestSubmitErrorMessage(t *testing.T) {
	f := newFixture(t, mcPayload(1))
	f.bridge.submitErr = &apiclient.APIError{Status: 422, Message: "Trainer has no vocabs"}
	_ = f.session.Answer("A")
	_ = f.session.Submit(context.Background())

	snap := f.session.Snapshot()
	if snap.State != model.StateError || snap.Error != "Trainer has no vocabs" {
		t.Fatalf("unexpected state %s / %q", snap.State, snap.Error)
	}
	if err := f.session.Submit(context.Background()); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("error state must not resubmit, got %v", err)
	}
}

func TestAbandonStopsSession(t *testing.T) {
	f := newFixture(t, fillPayload(1, 900))
	f.session.Abandon()

	waitFor(t, "timer to stop", f.clock.stopped)
	if err := f.session.Next(); !errors.Is(err, ErrSessionClosed) {
		t.Fatalf("expected ErrSessionClosed, got %v", err)
	}
}
