package exam

import (
	"github.com/stemsi/vocab-runner/internal/apiclient"
	"github.com/stemsi/vocab-runner/internal/model"
)

type multipleChoice struct{}

func (multipleChoice) Type() model.QuestionType { return model.QuestionTypeMultipleChoice }
func (multipleChoice) Countdown() bool          { return true }
func (multipleChoice) Navigable() bool          { return true }

// CanSubmit requires a selection for every question.
func (multipleChoice) CanSubmit(v View) bool {
	for i := range v.Questions {
		if v.Answers[i] == "" {
			return false
		}
	}
	return len(v.Questions) > 0
}

func (multipleChoice) BuildSubmission(in Input) (any, error) {
	id := in.ExamID
	if id == "" {
		id = in.TrainerID
	}
	selects := make([]model.MultipleChoiceSelect, len(in.Questions))
	for i, q := range in.Questions {
		selects[i] = model.MultipleChoiceSelect{
			SystemSelected: q.CorrectAnswer,
			UserSelected:   in.Answers[i],
		}
	}
	return &model.MultipleChoiceSubmission{
		ID:              id,
		QuestionType:    model.QuestionTypeMultipleChoice,
		CountTime:       in.CountTime,
		WordTestSelects: selects,
	}, nil
}

// ParseResult accepts any JSON object as the inline result; the displayed
// score is computed locally.
func (multipleChoice) ParseResult(res *apiclient.SubmitResult, in Input) (*Outcome, error) {
	if res == nil || res.Kind == apiclient.ResultEmpty {
		return nil, ErrMalformedResponse
	}
	return &Outcome{
		State: model.StateCompleted,
		Score: ScoreAnswers(in.Questions, in.Answers, in.PassThreshold),
	}, nil
}
