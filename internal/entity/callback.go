package entity

// CallbackEventType represents the type of callback event
type CallbackEventType string

const (
	CallbackEventTypeStateChanged CallbackEventType = "stateChanged"
	CallbackEventTypeQuestion     CallbackEventType = "question"
	CallbackEventTypeWarning      CallbackEventType = "warning"
	CallbackEventTypeCompleted    CallbackEventType = "completed"
	CallbackEventTypeError        CallbackEventType = "error"
)

// CallbackEvent represents a callback event
type CallbackEvent struct {
	Event     CallbackEventType `json:"event"`
	Timestamp string            `json:"timestamp"` // ISO-8601 UTC
	Data      any               `json:"data"`
}

// Notification is a user-visible message produced by a session
type Notification struct {
	SessionID   string            `json:"session_id"`
	InterviewID string            `json:"interview_id"`
	Event       CallbackEventType `json:"event"`
	Status      SessionStatus     `json:"session_status"`
	Code        string            `json:"code,omitempty"`
	Message     string            `json:"message"`
	Recoverable bool              `json:"recoverable,omitempty"`
	Retryable   bool              `json:"retryable,omitempty"`
	Session     *SessionDTO       `json:"session,omitempty"`
	CallbackURL string            `json:"-"`
}

// CallbackErrorData represents data for error event
type CallbackErrorData struct {
	Error CallbackErrorDetails `json:"error"`
}

// CallbackErrorDetails contains error information
type CallbackErrorDetails struct {
	Code        string         `json:"code"`
	Message     string         `json:"message"`
	Recoverable bool           `json:"recoverable"`
	Retryable   bool           `json:"retryable"`
	Details     map[string]any `json:"details"`
}
