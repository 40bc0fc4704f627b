package exam

import (
	"strings"

	"github.com/stemsi/vocab-runner/internal/apiclient"
	"github.com/stemsi/vocab-runner/internal/model"
)

type fillInBlank struct{}

func (fillInBlank) Type() model.QuestionType { return model.QuestionTypeFillInTheBlank }
func (fillInBlank) Countdown() bool          { return true }
func (fillInBlank) Navigable() bool          { return true }

// CanSubmit requires a non-blank answer for every question.
func (fillInBlank) CanSubmit(v View) bool {
	for i := range v.Questions {
		if strings.TrimSpace(v.Answers[i]) == "" {
			return false
		}
	}
	return len(v.Questions) > 0
}

func (fillInBlank) BuildSubmission(in Input) (any, error) {
	inputs := make([]model.FillInBlankInput, len(in.Questions))
	for i, q := range in.Questions {
		inputs[i] = model.FillInBlankInput{
			UserAnswer:   strings.TrimSpace(in.Answers[i]),
			SystemAnswer: q.CorrectAnswer,
		}
	}
	return &model.FillInBlankSubmission{
		QuestionType:   model.QuestionTypeFillInTheBlank,
		CountTime:      in.CountTime,
		WordTestInputs: inputs,
	}, nil
}

// ParseResult expects an evaluation job; grading needs the server.
func (fillInBlank) ParseResult(res *apiclient.SubmitResult, _ Input) (*Outcome, error) {
	return asyncJob(res)
}
