package exam

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by Session operations.
var (
	ErrNoQuestions       = errors.New("exam has no questions")
	ErrUnknownType       = errors.New("unknown question type")
	ErrInvalidState      = errors.New("operation not allowed in current session state")
	ErrUnsupported       = errors.New("operation not supported by this question type")
	ErrInvalidAnswer     = errors.New("answer is not one of the question options")
	ErrCannotSubmit      = errors.New("exam is not ready to be submitted")
	ErrSessionClosed     = errors.New("exam session was abandoned")
	ErrAlreadyRecording  = errors.New("recording already in progress")
	ErrNotRecording      = errors.New("no recording in progress")
	ErrNoRecording       = errors.New("no audio has been recorded")
	ErrMalformedResponse = errors.New("submission response is malformed")
	ErrMissingJobID      = errors.New("submission response carries no job id")
	ErrUploadFailed      = errors.New("audio upload failed")
	ErrSubmitFailed      = errors.New("exam submission failed")
)

// Refinements of ErrCannotSubmit; errors.Is(err, ErrCannotSubmit) holds for both.
var (
	ErrNotLastCard       = fmt.Errorf("%w: move to the last card to complete", ErrCannotSubmit)
	ErrRecordingTooLarge = fmt.Errorf("%w: recording exceeds the size limit", ErrCannotSubmit)
)

// Fallback messages shown when nothing better can be extracted.
const (
	submitFallbackMessage = "Failed to submit exam. Please try again."
	uploadFallbackMessage = "Failed to upload recording. Please try again."
	tooLargeMessage       = "The recording is too long to upload. Please record again."
)
