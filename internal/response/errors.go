package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Authentication ────────────────────────────────────────────────
	ErrTokenRequired ErrCode = "TOKEN_REQUIRED"
	ErrTokenInvalid  ErrCode = "TOKEN_INVALID"
	ErrTokenExpired  ErrCode = "TOKEN_EXPIRED"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidID      ErrCode = "INVALID_ID"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"

	// ─── Resources ─────────────────────────────────────────────────────
	ErrNotFound        ErrCode = "NOT_FOUND"
	ErrSessionNotFound ErrCode = "SESSION_NOT_FOUND"
	ErrNoPendingResult ErrCode = "NO_PENDING_RESULT"

	// ─── Exam session ──────────────────────────────────────────────────
	ErrNoQuestions       ErrCode = "NO_QUESTIONS"
	ErrUnknownType       ErrCode = "UNKNOWN_QUESTION_TYPE"
	ErrTypeMismatch      ErrCode = "QUESTION_TYPE_MISMATCH"
	ErrInvalidState      ErrCode = "INVALID_SESSION_STATE"
	ErrUnsupported       ErrCode = "UNSUPPORTED_FOR_QUESTION_TYPE"
	ErrInvalidAnswer     ErrCode = "INVALID_ANSWER"
	ErrCannotSubmit      ErrCode = "CANNOT_SUBMIT"
	ErrSessionClosed     ErrCode = "SESSION_CLOSED"
	ErrMicrophoneBusy    ErrCode = "MICROPHONE_BUSY"
	ErrAlreadyRecording  ErrCode = "ALREADY_RECORDING"
	ErrNotRecording      ErrCode = "NOT_RECORDING"
	ErrRecordingTooLarge ErrCode = "RECORDING_TOO_LARGE"
	ErrSpeechDisabled    ErrCode = "SPEECH_DISABLED"
	ErrNothingToSpeak    ErrCode = "NOTHING_TO_SPEAK"
	ErrGenerateCooldown  ErrCode = "GENERATE_COOLDOWN"
	ErrRemoteAPI         ErrCode = "REMOTE_API_ERROR"
	ErrRemoteUnavailable ErrCode = "REMOTE_API_UNAVAILABLE"

	// ─── Rate Limiting ─────────────────────────────────────────────────
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"

	// ─── Server ────────────────────────────────────────────────────────
	ErrInternal ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	// ─── Authentication ────────────────────────────────────────────────
	case ErrTokenRequired:
		return "Authentication token is required."
	case ErrTokenInvalid:
		return "Authentication token is invalid."
	case ErrTokenExpired:
		return "Authentication token has expired."

	// ─── Validation ────────────────────────────────────────────────────
	case ErrValidation:
		return "Validation failed. Please check your input."
	case ErrInvalidID:
		return "Invalid ID format."
	case ErrInvalidPayload:
		return "Invalid request payload."

	// ─── Resources ─────────────────────────────────────────────────────
	case ErrNotFound:
		return "Resource not found."
	case ErrSessionNotFound:
		return "Exam session not found. It may have expired; please start the exam again."
	case ErrNoPendingResult:
		return "There is no submitted exam waiting for a result."

	// ─── Exam session ──────────────────────────────────────────────────
	case ErrNoQuestions:
		return "This trainer has no questions."
	case ErrUnknownType:
		return "This trainer uses an unknown question type."
	case ErrTypeMismatch:
		return "This trainer is configured for a different question type."
	case ErrInvalidState:
		return "This action is not available right now."
	case ErrUnsupported:
		return "This action is not available for this question type."
	case ErrInvalidAnswer:
		return "The answer is not one of the options."
	case ErrCannotSubmit:
		return "Please answer every question before submitting."
	case ErrSessionClosed:
		return "This exam session has been closed."
	case ErrMicrophoneBusy:
		return "The microphone is already in use."
	case ErrAlreadyRecording:
		return "A recording is already in progress."
	case ErrNotRecording:
		return "There is no recording in progress."
	case ErrRecordingTooLarge:
		return "The recording is too long to upload. Please record again."
	case ErrSpeechDisabled:
		return "Pronunciation is not available."
	case ErrNothingToSpeak:
		return "This side of the card has no text to pronounce."
	case ErrGenerateCooldown:
		return "Please wait before generating again."
	case ErrRemoteAPI:
		return "The vocab service rejected the request."
	case ErrRemoteUnavailable:
		return "The vocab service is not reachable. Please try again."

	// ─── Rate Limiting ─────────────────────────────────────────────────
	case ErrRateLimitExceeded:
		return "Too many requests. Please try again later."

	// ─── Server ────────────────────────────────────────────────────────
	case ErrInternal:
		return "Internal server error."
	default:
		return "An unexpected error occurred."
	}
}
