package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Authentication ────────────────────────────────────────────────
	ErrInvalidCredentials ErrCode = "INVALID_CREDENTIALS"
	ErrTokenRequired      ErrCode = "TOKEN_REQUIRED"
	ErrTokenInvalid       ErrCode = "TOKEN_INVALID"
	ErrTokenExpired       ErrCode = "TOKEN_EXPIRED"

	// ─── Authorization ─────────────────────────────────────────────────
	ErrForbidden          ErrCode = "FORBIDDEN"
	ErrTakerAccessOnly    ErrCode = "TAKER_ACCESS_ONLY"
	ErrReviewerAccessOnly ErrCode = "REVIEWER_ACCESS_ONLY"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidID      ErrCode = "INVALID_ID"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"

	// ─── Resources ─────────────────────────────────────────────────────
	ErrNotFound ErrCode = "NOT_FOUND"
	ErrConflict ErrCode = "CONFLICT"

	// ─── Exam / attempt specific ───────────────────────────────────────
	ErrExamNotAvailable  ErrCode = "EXAM_NOT_AVAILABLE"
	ErrInvalidAccessCode ErrCode = "INVALID_ACCESS_CODE"
	ErrGuestsNotAllowed  ErrCode = "GUESTS_NOT_ALLOWED"
	ErrAttemptFinalized  ErrCode = "ATTEMPT_FINALIZED"
	ErrHashMismatch      ErrCode = "HASH_MISMATCH"
	ErrExpiredWindow     ErrCode = "EXPIRED_WINDOW"

	// ─── Resume handshake ──────────────────────────────────────────────
	ErrResumeNotPending  ErrCode = "RESUME_NOT_PENDING"
	ErrResumeDuplicate   ErrCode = "RESUME_ALREADY_REQUESTED"
	ErrResumeNotEligible ErrCode = "RESUME_NOT_ELIGIBLE"

	// ─── Rate Limiting ─────────────────────────────────────────────────
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"

	// ─── Server ────────────────────────────────────────────────────────
	ErrInternal ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	// ─── Authentication ────────────────────────────────────────────────
	case ErrInvalidCredentials:
		return "Invalid credentials."
	case ErrTokenRequired:
		return "An authentication token is required."
	case ErrTokenInvalid:
		return "The authentication token is invalid."
	case ErrTokenExpired:
		return "The authentication token has expired."

	// ─── Authorization ─────────────────────────────────────────────────
	case ErrForbidden:
		return "You do not have permission to access this resource."
	case ErrTakerAccessOnly:
		return "This resource is restricted to exam takers."
	case ErrReviewerAccessOnly:
		return "This resource is restricted to reviewers."

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
	case ErrConflict:
		return "Resource already exists."

	// ─── Exam / attempt specific ───────────────────────────────────────
	case ErrExamNotAvailable:
		return "This exam is not currently available."
	case ErrInvalidAccessCode:
		return "The exam access code is invalid."
	case ErrGuestsNotAllowed:
		return "This exam does not allow guest takers."
	case ErrAttemptFinalized:
		return "This attempt has already been finalized."
	case ErrHashMismatch:
		return "The sealed submission failed its integrity check."
	case ErrExpiredWindow:
		return "The submission arrived outside the allowed window."

	// ─── Resume handshake ──────────────────────────────────────────────
	case ErrResumeNotPending:
		return "This resume request has already been decided."
	case ErrResumeDuplicate:
		return "A resume request for this attempt is already pending."
	case ErrResumeNotEligible:
		return "This attempt is not eligible for a resume request."

	// ─── Rate Limiting ─────────────────────────────────────────────────
	case ErrRateLimitExceeded:
		return "Too many requests. Please try again later."

	// ─── Server ────────────────────────────────────────────────────────
	case ErrInternal:
		return "An internal server error occurred."
	default:
		return "An unexpected error occurred."
	}
}
