package model

import "encoding/json"

// PendingJob is the handoff from a submitted async exam to its result page.
type PendingJob struct {
	JobID       string         `json:"jobId"`
	TimeElapsed int            `json:"timeElapsed"`
	Questions   []Question     `json:"questions"`
	Answers     map[int]string `json:"answers"`
}

// JobStatus enumerates the states reported for a server-side evaluation.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// Done reports whether polling can stop.
func (s JobStatus) Done() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// JobResult is the evaluation state returned by the remote API.
type JobResult struct {
	Status JobStatus       `json:"status"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// ExamResult is what the result page receives for a trainer.
type ExamResult struct {
	TrainerID string      `json:"trainer_id"`
	Job       *PendingJob `json:"job"`
	Result    *JobResult  `json:"result"`
}

// LaunchInfo tells a launch affordance which exam route to open.
type LaunchInfo struct {
	TrainerID    string       `json:"trainer_id"`
	QuestionType QuestionType `json:"question_type"`
	Route        string       `json:"route"`
	HasPending   bool         `json:"has_pending_result"`
}

// GenerateRequest asks the remote API to fill vocab fields with AI.
type GenerateRequest struct {
	Word               string `json:"word" binding:"required,min=1,max=200"`
	SourceLanguageCode string `json:"sourceLanguageCode" binding:"required,min=2,max=10"`
	TargetLanguageCode string `json:"targetLanguageCode" binding:"required,min=2,max=10"`
}

// QueuedJob is an evaluation job waiting for the result worker.
type QueuedJob struct {
	Scope     string `json:"scope"`
	Token     string `json:"token"`
	TrainerID string `json:"trainer_id"`
	JobID     string `json:"job_id"`
	Attempts  int    `json:"attempts"`
	// NotBefore is the unix millisecond time of the next poll.
	NotBefore int64 `json:"not_before"`
}
