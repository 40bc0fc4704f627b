package model

// ExamPayload is the body returned by GET /vocab-trainers/{id}/exam.
type ExamPayload struct {
	ID           string       `json:"id"`
	QuestionType QuestionType `json:"questionType"`
	// CountTime is the time budget in seconds. Zero means the runner default.
	CountTime int        `json:"countTime"`
	Questions []Question `json:"questions"`
}

// MultipleChoiceSelect pairs the expected and chosen option of one question.
type MultipleChoiceSelect struct {
	SystemSelected string `json:"systemSelected"`
	UserSelected   string `json:"userSelected"`
}

// MultipleChoiceSubmission is the PATCH body of a multiple-choice exam.
type MultipleChoiceSubmission struct {
	ID              string                 `json:"id"`
	QuestionType    QuestionType           `json:"questionType"`
	CountTime       int                    `json:"countTime"`
	WordTestSelects []MultipleChoiceSelect `json:"wordTestSelects"`
}

// FillInBlankInput pairs the typed and expected answer of one question.
type FillInBlankInput struct {
	UserAnswer   string `json:"userAnswer"`
	SystemAnswer string `json:"systemAnswer"`
}

// FillInBlankSubmission is the PATCH body of a fill-in-the-blank exam.
type FillInBlankSubmission struct {
	QuestionType   QuestionType       `json:"questionType"`
	CountTime      int                `json:"countTime"`
	WordTestInputs []FillInBlankInput `json:"wordTestInputs"`
}

// AudioSubmission is the PATCH body of a translation-audio exam.
type AudioSubmission struct {
	QuestionType QuestionType `json:"questionType"`
	FileID       string       `json:"fileId"`
	CountTime    int          `json:"countTime"`
}
