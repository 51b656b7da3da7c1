package entity

import "errors"

// Domain errors
var (
	// Device errors, fatal to session initialization
	ErrPermissionDenied  = errors.New("media permission denied")
	ErrDeviceUnavailable = errors.New("media device unavailable")

	// Recording errors, recoverable within a question
	ErrRecordingStart  = errors.New("recording start failure")
	ErrRecordingFailed = errors.New("recording failure")
	ErrPayloadTooLarge = errors.New("recording payload too large")

	// Submission errors, recoverable within a question
	ErrSubmissionFailed = errors.New("submission failure")

	// Session errors
	ErrSessionNotFound      = errors.New("session not found")
	ErrInvalidSessionStatus = errors.New("invalid session status")
	ErrSessionTerminal      = errors.New("session is in a terminal state")
	ErrInterviewNotFound    = errors.New("interview not found")

	// Validation errors
	ErrMissingField     = errors.New("required field is missing")
	ErrInvalidFormat    = errors.New("invalid format")
	ErrInvalidParameter = errors.New("invalid parameter")
)

// IsRecoverable reports whether err leaves the session usable: the candidate
// may retry the current question without restarting the interview.
func IsRecoverable(err error) bool {
	return errors.Is(err, ErrRecordingStart) ||
		errors.Is(err, ErrRecordingFailed) ||
		errors.Is(err, ErrPayloadTooLarge) ||
		errors.Is(err, ErrSubmissionFailed)
}

// IsRetryable reports whether the candidate can try again. Device errors end
// the session but a new session for the same interview may succeed once the
// permission is granted or the device is back.
func IsRetryable(err error) bool {
	return IsRecoverable(err) ||
		errors.Is(err, ErrPermissionDenied) ||
		errors.Is(err, ErrDeviceUnavailable)
}

// ErrorCode returns a stable machine-readable code for notifications.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrPermissionDenied):
		return "permission_denied"
	case errors.Is(err, ErrDeviceUnavailable):
		return "device_unavailable"
	case errors.Is(err, ErrRecordingStart):
		return "recording_start_failure"
	case errors.Is(err, ErrRecordingFailed), errors.Is(err, ErrPayloadTooLarge):
		return "recording_failure"
	case errors.Is(err, ErrSubmissionFailed):
		return "submission_failure"
	case errors.Is(err, ErrInterviewNotFound):
		return "interview_not_found"
	default:
		return "internal_error"
	}
}
