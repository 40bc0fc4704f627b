package exam

import (
	"github.com/stemsi/vocab-runner/internal/apiclient"
	"github.com/stemsi/vocab-runner/internal/model"
)

// View is what a variant needs to decide whether the exam may be submitted.
type View struct {
	Questions    []model.Question
	Answers      map[int]string
	Index        int
	HasRecording bool
	// Truncated is set when the recording hit the size limit.
	Truncated bool
}

// Input is the frozen state a submission is built from.
type Input struct {
	ExamID        string
	TrainerID     string
	Questions     []model.Question
	Answers       map[int]string
	Assessments   map[int]model.Assessment
	FlipLog       []model.FlipResult
	CountTime     int
	FileID        string
	PassThreshold float64
}

// Outcome is the terminal result of a successful submission.
type Outcome struct {
	State   model.SessionState
	Score   *model.Score
	Summary *model.FlipSummary
	JobID   string
}

// Variant is the per-question-type capability set plugged into a Session.
type Variant interface {
	Type() model.QuestionType
	// Countdown reports whether reaching zero remaining time forces a submission.
	Countdown() bool
	// Navigable reports whether next/previous move between questions.
	Navigable() bool
	CanSubmit(v View) bool
	BuildSubmission(in Input) (any, error)
	ParseResult(res *apiclient.SubmitResult, in Input) (*Outcome, error)
}

// LocalEvaluator is implemented by variants that never reach the server.
type LocalEvaluator interface {
	Evaluate(in Input) *Outcome
}

// Uploader is implemented by variants whose answer must reach the asset host
// before the submission.
type Uploader interface {
	NeedsUpload() bool
}

// NewVariant selects the variant for a question type.
func NewVariant(t model.QuestionType) (Variant, error) {
	switch t {
	case model.QuestionTypeMultipleChoice:
		return multipleChoice{}, nil
	case model.QuestionTypeFillInTheBlank:
		return fillInBlank{}, nil
	case model.QuestionTypeFlipCard:
		return flipCard{}, nil
	case model.QuestionTypeTranslationAudio:
		return translationAudio{}, nil
	}
	return nil, ErrUnknownType
}

// asyncJob is the shared result handling of variants graded server-side.
func asyncJob(res *apiclient.SubmitResult) (*Outcome, error) {
	if res == nil || res.Kind != apiclient.ResultJob || res.JobID == "" {
		return nil, ErrMissingJobID
	}
	return &Outcome{State: model.StateEvaluating, JobID: res.JobID}, nil
}
