package exam

import (
	"math"

	"github.com/stemsi/vocab-runner/internal/model"
)

// DefaultPassThreshold is the local pass mark in percent.
const DefaultPassThreshold = 70.0

// ScoreAnswers compares answers against each question's correct answer.
func ScoreAnswers(questions []model.Question, answers map[int]string, threshold float64) *model.Score {
	score := &model.Score{
		Total: len(questions),
		Items: make([]model.ScoredItem, len(questions)),
	}
	for i, q := range questions {
		item := model.ScoredItem{
			Index:         i,
			UserAnswer:    answers[i],
			CorrectAnswer: q.CorrectAnswer,
		}
		item.Correct = item.UserAnswer != "" && item.UserAnswer == q.CorrectAnswer
		if item.Correct {
			score.Correct++
		}
		score.Items[i] = item
	}
	if score.Total > 0 {
		score.Accuracy = math.Round(float64(score.Correct)/float64(score.Total)*10000) / 100
	}
	score.Passed = score.Accuracy >= threshold
	return score
}
