package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// TrainerQuestionTypeKey returns the key caching the last-used question type of a trainer
func (r *CacheKeyStruct) TrainerQuestionTypeKey(scope, trainerID string) string {
	return fmt.Sprintf("user:%s:trainer:%s:question_type", scope, trainerID)
}

// TrainerPendingJobKey returns the key holding the pending evaluation job of a trainer
func (r *CacheKeyStruct) TrainerPendingJobKey(scope, trainerID string) string {
	return fmt.Sprintf("user:%s:trainer:%s:pending_job", scope, trainerID)
}

// TrainerFlipLogKey returns the key holding the incremental flip-card assessment log
func (r *CacheKeyStruct) TrainerFlipLogKey(scope, trainerID string) string {
	return fmt.Sprintf("user:%s:trainer:%s:flip_results", scope, trainerID)
}

// JobResultKey returns the key caching a finished evaluation job
func (r *CacheKeyStruct) JobResultKey(scope, trainerID, jobID string) string {
	return fmt.Sprintf("user:%s:trainer:%s:job:%s:result", scope, trainerID, jobID)
}

// GenerateCooldownKey returns the shared key holding the last AI generate timestamp
func (r *CacheKeyStruct) GenerateCooldownKey(scope string) string {
	return fmt.Sprintf("user:%s:ai_generate:last", scope)
}

// SessionEventsChannel returns the Redis PubSub channel name for a session's live events
func (r *CacheKeyStruct) SessionEventsChannel(sessionID string) string {
	return fmt.Sprintf("session:%s:events", sessionID)
}

var CacheKey = NewCacheKeyStruct()
