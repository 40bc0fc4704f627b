package exam

import (
	"github.com/stemsi/vocab-runner/internal/apiclient"
	"github.com/stemsi/vocab-runner/internal/model"
)

// flipCard is a local self-assessment; nothing is sent to the server.
type flipCard struct{}

func (flipCard) Type() model.QuestionType { return model.QuestionTypeFlipCard }

// Countdown is false: completion is reaching the last card, not a timeout.
func (flipCard) Countdown() bool { return false }
func (flipCard) Navigable() bool { return true }

// CanSubmit ("Complete") is offered on the last card.
func (flipCard) CanSubmit(v View) bool {
	return len(v.Questions) > 0 && v.Index == len(v.Questions)-1
}

func (flipCard) BuildSubmission(Input) (any, error) { return nil, ErrUnsupported }

func (flipCard) ParseResult(*apiclient.SubmitResult, Input) (*Outcome, error) {
	return nil, ErrUnsupported
}

func (flipCard) Evaluate(in Input) *Outcome {
	summary := &model.FlipSummary{
		Total:       len(in.Questions),
		TimeElapsed: in.CountTime,
		Results:     append([]model.FlipResult(nil), in.FlipLog...),
	}
	for i := range in.Questions {
		if in.Assessments[i] == model.AssessmentUnknown {
			summary.Unknown++
		} else {
			summary.Known++
		}
	}
	return &Outcome{State: model.StateCompleted, Summary: summary}
}
