package service

import (
	"context"
	"fmt"
	"net/url"

	"github.com/stemsi/vocab-runner/internal/model"
)

// examRoutes maps each question type to the exam screen a client opens.
var examRoutes = map[model.QuestionType]string{
	model.QuestionTypeMultipleChoice:   "multiple-choice",
	model.QuestionTypeFillInTheBlank:   "fill-in-the-blank",
	model.QuestionTypeFlipCard:         "flip-card",
	model.QuestionTypeTranslationAudio: "translation-audio",
}

// LaunchService answers the launch affordance before the exam has loaded.
type LaunchService struct {
	sessions *SessionService
}

// NewLaunchService creates a new LaunchService.
func NewLaunchService(sessions *SessionService) *LaunchService {
	return &LaunchService{sessions: sessions}
}

// Info returns the exam route for a trainer from the cached question type.
func (s *LaunchService) Info(ctx context.Context, claims *Claims, trainerID string) *model.LaunchInfo {
	state := s.sessions.State(claims)
	qt := state.QuestionType(ctx, trainerID)
	return &model.LaunchInfo{
		TrainerID:    trainerID,
		QuestionType: qt,
		Route:        ExamRoute(trainerID, qt),
		HasPending:   state.PendingJob(ctx, trainerID) != nil,
	}
}

// ExamRoute returns the client route of a trainer's exam.
func ExamRoute(trainerID string, qt model.QuestionType) string {
	slug, ok := examRoutes[qt]
	if !ok {
		slug = examRoutes[model.QuestionTypeMultipleChoice]
	}
	return fmt.Sprintf("/vocab-trainers/%s/exam/%s", url.PathEscape(trainerID), slug)
}
