package model

// QuestionType selects the exam variant a trainer is attempted with.
type QuestionType string

const (
	QuestionTypeMultipleChoice   QuestionType = "MULTIPLE_CHOICE"
	QuestionTypeFillInTheBlank   QuestionType = "FILL_IN_THE_BLANK"
	QuestionTypeFlipCard         QuestionType = "FLIP_CARD"
	QuestionTypeTranslationAudio QuestionType = "TRANSLATION_AUDIO"
)

// Valid reports whether t is one of the four known question types.
func (t QuestionType) Valid() bool {
	switch t {
	case QuestionTypeMultipleChoice, QuestionTypeFillInTheBlank,
		QuestionTypeFlipCard, QuestionTypeTranslationAudio:
		return true
	}
	return false
}

// ParseQuestionType converts a raw value into a QuestionType.
func ParseQuestionType(raw string) (QuestionType, bool) {
	t := QuestionType(raw)
	return t, t.Valid()
}

// Option is a label/value pair offered by a multiple-choice question.
type Option struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// DialogueLine is one speaker turn of a translation-audio prompt.
type DialogueLine struct {
	Speaker string `json:"speaker"`
	Text    string `json:"text"`
}

// Question is server-supplied and never mutated after load.
type Question struct {
	Content  string         `json:"content,omitempty"`
	Dialogue []DialogueLine `json:"dialogue,omitempty"`
	Options  []Option       `json:"options,omitempty"`
	// CorrectAnswer is only used for local scoring after the fact.
	CorrectAnswer     string `json:"correctAnswer,omitempty"`
	FrontText         string `json:"frontText,omitempty"`
	BackText          string `json:"backText,omitempty"`
	FrontLanguageCode string `json:"frontLanguageCode,omitempty"`
	BackLanguageCode  string `json:"backLanguageCode,omitempty"`
}

// QuestionForClient strips the correct answer before a question leaves the runner.
type QuestionForClient struct {
	Content           string         `json:"content,omitempty"`
	Dialogue          []DialogueLine `json:"dialogue,omitempty"`
	Options           []Option       `json:"options,omitempty"`
	FrontText         string         `json:"frontText,omitempty"`
	BackText          string         `json:"backText,omitempty"`
	FrontLanguageCode string         `json:"frontLanguageCode,omitempty"`
	BackLanguageCode  string         `json:"backLanguageCode,omitempty"`
}

// ForClient returns the question without CorrectAnswer.
func (q Question) ForClient() QuestionForClient {
	return QuestionForClient{
		Content:           q.Content,
		Dialogue:          q.Dialogue,
		Options:           q.Options,
		FrontText:         q.FrontText,
		BackText:          q.BackText,
		FrontLanguageCode: q.FrontLanguageCode,
		BackLanguageCode:  q.BackLanguageCode,
	}
}
