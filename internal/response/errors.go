package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Authentication ────────────────────────────────────────────────
	ErrTokenRequired ErrCode = "TOKEN_REQUIRED"
	ErrTokenInvalid  ErrCode = "TOKEN_INVALID"
	ErrForbidden     ErrCode = "FORBIDDEN"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidID      ErrCode = "INVALID_ID"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"

	// ─── Resources ─────────────────────────────────────────────────────
	ErrNotFound ErrCode = "NOT_FOUND"
	ErrConflict ErrCode = "CONFLICT"

	// ─── Attempt lifecycle ─────────────────────────────────────────────
	ErrOutsideWindow         ErrCode = "OUTSIDE_WINDOW"
	ErrNoDurationConfigured  ErrCode = "NO_DURATION_CONFIGURED"
	ErrInsufficientQuestions ErrCode = "INSUFFICIENT_QUESTIONS"
	ErrAlreadyFinalized      ErrCode = "ALREADY_FINALIZED"
	ErrNotSubmitted          ErrCode = "NOT_SUBMITTED"

	// ─── Submission ────────────────────────────────────────────────────
	ErrInvalidQuestion       ErrCode = "INVALID_QUESTION"
	ErrInvalidOption         ErrCode = "INVALID_OPTION"
	ErrDivisionMisconfigured ErrCode = "DIVISION_MISCONFIGURED"

	// ─── Server ────────────────────────────────────────────────────────
	ErrInternal ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	case ErrTokenRequired:
		return "Authentication token required."
	case ErrTokenInvalid:
		return "Authentication token is invalid."
	case ErrForbidden:
		return "You do not have permission to access this resource."
	case ErrValidation:
		return "Validation failed. Please check your input."
	case ErrInvalidID:
		return "Invalid ID format."
	case ErrInvalidPayload:
		return "Invalid request payload."
	case ErrNotFound:
		return "Resource not found."
	case ErrConflict:
		return "Resource already exists."
	case ErrOutsideWindow:
		return "This exam is not available at this time."
	case ErrNoDurationConfigured:
		return "This exam has no duration set."
	case ErrInsufficientQuestions:
		return "Not enough questions in the paper."
	case ErrAlreadyFinalized:
		return "You have already completed this exam. Only one attempt is allowed."
	case ErrNotSubmitted:
		return "This exam has not been submitted yet."
	case ErrInvalidQuestion:
		return "Answer refers to a question that was not assigned to you."
	case ErrInvalidOption:
		return "Invalid option selected."
	case ErrDivisionMisconfigured:
		return "This exam is misconfigured and cannot be scored."
	case ErrInternal:
		return "An internal server error occurred."
	default:
		return "An unexpected error occurred."
	}
}
