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
	ErrForbidden ErrCode = "FORBIDDEN"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidID      ErrCode = "INVALID_ID"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"

	// ─── Resources ─────────────────────────────────────────────────────
	ErrNotFound ErrCode = "NOT_FOUND"
	ErrConflict ErrCode = "CONFLICT"

	// ─── Test sessions ─────────────────────────────────────────────────
	ErrTestNotAvailable   ErrCode = "TEST_NOT_AVAILABLE"
	ErrSessionConflict    ErrCode = "SESSION_CONFLICT"
	ErrSessionNotActive   ErrCode = "SESSION_NOT_ACTIVE"
	ErrSessionExpired     ErrCode = "SESSION_EXPIRED"
	ErrSessionMismatch    ErrCode = "SESSION_MISMATCH"
	ErrMaxAttemptsReached ErrCode = "MAX_ATTEMPTS_REACHED"

	// ─── Rate Limiting ─────────────────────────────────────────────────
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"

	// ─── Server ────────────────────────────────────────────────────────
	ErrInternal ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	case ErrInvalidCredentials:
		return "Email or password is incorrect."
	case ErrTokenRequired:
		return "An authentication token is required."
	case ErrTokenInvalid:
		return "The authentication token is invalid."
	case ErrTokenExpired:
		return "The authentication token has expired."

	case ErrForbidden:
		return "You do not have permission to access this resource."

	case ErrValidation:
		return "Validation failed. Please check your input."
	case ErrInvalidID:
		return "Invalid id format."
	case ErrInvalidPayload:
		return "Invalid request payload."

	case ErrNotFound:
		return "Resource not found."
	case ErrConflict:
		return "Resource already exists."

	case ErrTestNotAvailable:
		return "This test is not available."
	case ErrSessionConflict:
		return "An active session already exists for this test."
	case ErrSessionNotActive:
		return "No active session exists for this test."
	case ErrSessionExpired:
		return "The session deadline has passed."
	case ErrSessionMismatch:
		return "The session does not belong to this test or learner."
	case ErrMaxAttemptsReached:
		return "The maximum number of attempts for this test has been reached."
	case ErrRateLimitExceeded:
		return "Too many requests. Please try again later."

	case ErrInternal:
		return "An internal server error occurred."
	default:
		return "An unexpected error occurred."
	}
}
