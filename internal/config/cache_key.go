package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// AttemptAnswersKey returns the cache key for an attempt's answer hash.
func (r *CacheKeyStruct) AttemptAnswersKey(attemptID string) string {
	return fmt.Sprintf("attempt:%s:answers", attemptID)
}

// AttemptFlagsKey returns the cache key for an attempt's flagged-question set.
func (r *CacheKeyStruct) AttemptFlagsKey(attemptID string) string {
	return fmt.Sprintf("attempt:%s:flags", attemptID)
}

// AttemptEndKey returns the cache key for an attempt's absolute end timestamp.
func (r *CacheKeyStruct) AttemptEndKey(attemptID string) string {
	return fmt.Sprintf("attempt:%s:end_at", attemptID)
}

// ExamPayloadKey returns the cache key for an exam's student-facing payload.
func (r *CacheKeyStruct) ExamPayloadKey(examID string) string {
	return fmt.Sprintf("exam:%s:payload", examID)
}

// ExamAnswerKey returns the cache key for an exam's answer key.
func (r *CacheKeyStruct) ExamAnswerKey(examID string) string {
	return fmt.Sprintf("exam:%s:key", examID)
}

// SubjectActiveAttemptKey returns the cache key for a subject's active attempt.
func (r *CacheKeyStruct) SubjectActiveAttemptKey(subjectID string) string {
	return fmt.Sprintf("subject:%s:active_attempt", subjectID)
}

// ResumeChannel returns the Redis PubSub channel carrying decision events for
// one resume request.
func (r *CacheKeyStruct) ResumeChannel(requestID string) string {
	return fmt.Sprintf("resume:req:%s", requestID)
}

var CacheKey = NewCacheKeyStruct()
