package exam

import (
	"github.com/stemsi/vocab-runner/internal/apiclient"
	"github.com/stemsi/vocab-runner/internal/model"
)

type translationAudio struct{}

func (translationAudio) Type() model.QuestionType { return model.QuestionTypeTranslationAudio }
func (translationAudio) Countdown() bool          { return true }

// Navigable is false: the audio exam is a single screen.
func (translationAudio) Navigable() bool   { return false }
func (translationAudio) NeedsUpload() bool { return true }

// CanSubmit requires exactly one finished recording that fit the size limit.
func (translationAudio) CanSubmit(v View) bool {
	return v.HasRecording && !v.Truncated
}

func (translationAudio) BuildSubmission(in Input) (any, error) {
	if in.FileID == "" {
		return nil, ErrNoRecording
	}
	return &model.AudioSubmission{
		QuestionType: model.QuestionTypeTranslationAudio,
		FileID:       in.FileID,
		CountTime:    in.CountTime,
	}, nil
}

func (translationAudio) ParseResult(res *apiclient.SubmitResult, _ Input) (*Outcome, error) {
	return asyncJob(res)
}
