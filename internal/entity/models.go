package entity

import (
	"time"
)

type SessionStatus string

// Session status represents the position of a live interview session in its state machine
const (
	SessionStatusNotStarted     SessionStatus = "NOT_STARTED"     // Created, nothing acquired yet
	SessionStatusInitializing   SessionStatus = "INITIALIZING"    // Loading interview, acquiring devices
	SessionStatusAwaitingAnswer SessionStatus = "AWAITING_ANSWER" // Question loaded, recording not started
	SessionStatusRecording      SessionStatus = "RECORDING"       // Segment and timer running
	SessionStatusSubmitting     SessionStatus = "SUBMITTING"      // Answer on its way to the evaluator

	// Final states
	SessionStatusCompleted SessionStatus = "COMPLETED" // Evaluator reported the last answer
	SessionStatusExited    SessionStatus = "EXITED"    // Candidate left the room
	SessionStatusFailed    SessionStatus = "FAILED"    // Initialization failed
)

// IsTerminal reports whether no further question transitions may occur.
func (s SessionStatus) IsTerminal() bool {
	switch s {
	case SessionStatusCompleted, SessionStatusExited, SessionStatusFailed:
		return true
	default:
		return false
	}
}

// CanTransitionTo reports whether the state machine allows moving from s to next.
func (s SessionStatus) CanTransitionTo(next SessionStatus) bool {
	if s.IsTerminal() {
		return false
	}
	if next == SessionStatusExited {
		return true
	}

	switch s {
	case SessionStatusNotStarted:
		return next == SessionStatusInitializing
	case SessionStatusInitializing:
		return next == SessionStatusAwaitingAnswer || next == SessionStatusFailed
	case SessionStatusAwaitingAnswer:
		return next == SessionStatusRecording
	case SessionStatusRecording:
		return next == SessionStatusSubmitting
	case SessionStatusSubmitting:
		return next == SessionStatusAwaitingAnswer || next == SessionStatusCompleted
	default:
		return false
	}
}

type SubmitTrigger string

const (
	TriggerManual  SubmitTrigger = "MANUAL"
	TriggerTimeout SubmitTrigger = "TIMEOUT"
)

type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

type RoundType string

const (
	RoundTechnical RoundType = "technical"
	RoundHR        RoundType = "hr"
)

// Session is owned by a single controller and handed out only as a copy
type Session struct {
	ID                   string        `json:"session_id"`
	InterviewID          string        `json:"interview_id"`
	JobRole              string        `json:"job_role"`
	Status               SessionStatus `json:"session_status"`
	CurrentQuestionIndex int           `json:"current_question_index"`
	CurrentQuestion      *Question     `json:"current_question,omitempty"`
	TotalQuestions       int           `json:"total_questions"`
	LastError            *string       `json:"last_error,omitempty"`
	CallbackURL          string        `json:"-"`
	CreatedAt            time.Time     `json:"created_at"`
	UpdatedAt            time.Time     `json:"updated_at"`
}

// Clone returns a deep copy safe to hand to other goroutines.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	cp := *s
	if s.CurrentQuestion != nil {
		q := *s.CurrentQuestion
		cp.CurrentQuestion = &q
	}
	if s.LastError != nil {
		e := *s.LastError
		cp.LastError = &e
	}
	return &cp
}

// Question is immutable once received from the interview service
type Question struct {
	ID                 string     `json:"id"`
	Text               string     `json:"question_text"`
	Difficulty         Difficulty `json:"difficulty"`
	RoundType          RoundType  `json:"round_type"`
	Order              int        `json:"order"`
	MaxDurationSeconds int        `json:"max_duration_seconds,omitempty"`
}

// Interview is the session metadata served by the interview service
type Interview struct {
	ID                   string `json:"id"`
	JobRole              string `json:"job_role"`
	Status               string `json:"status"`
	CurrentRound         string `json:"current_round,omitempty"`
	CurrentQuestionIndex int    `json:"current_question_index"`
	TotalQuestions       *int   `json:"total_questions,omitempty"`
}

// RecordingSegment is one encoded answer for a single question
type RecordingSegment struct {
	Payload          []byte
	MimeType         string
	ApproxDurationMs int64
}

// AnswerSubmission is what the evaluator receives for one question
type AnswerSubmission struct {
	InterviewID     string
	QuestionID      string
	MediaPayload    []byte
	MimeType        string
	AnswerText      string
	DurationSeconds int
	Trigger         SubmitTrigger
}

// TimerState is the countdown view of the current question
type TimerState struct {
	RemainingSeconds int  `json:"remaining_seconds"`
	Running          bool `json:"running"`
}
