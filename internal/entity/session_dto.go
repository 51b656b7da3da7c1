package entity

import (
	"time"
)

type StartSessionRequest struct {
	InterviewID string `json:"interview_id"`
	CallbackURL string `json:"callback_url,omitempty"`
}

type SubmitRequest struct {
	AnswerText string `json:"answer_text,omitempty"`
}

type TrackToggleRequest struct {
	Enabled bool `json:"enabled"`
}

type ErrorResponse struct {
	Error     string      `json:"error"`
	Message   string      `json:"message,omitempty"`
	Code      string      `json:"code,omitempty"`
	Retryable bool        `json:"retryable,omitempty"`
	SessionID string      `json:"session_id,omitempty"`
	Session   *SessionDTO `json:"session,omitempty"`
}

type QuestionDTO struct {
	ID         string     `json:"id"`
	Number     int        `json:"question_number"`
	Text       string     `json:"question_text"`
	Difficulty Difficulty `json:"difficulty"`
	RoundType  RoundType  `json:"round_type"`
}

type PreviewDTO struct {
	AudioEnabled bool    `json:"audio_enabled"`
	VideoEnabled bool    `json:"video_enabled"`
	AudioLevel   float64 `json:"audio_level"`
	VideoFrames  int64   `json:"video_frames"`
}

type SessionDTO struct {
	ID                   string        `json:"session_id"`
	InterviewID          string        `json:"interview_id"`
	JobRole              string        `json:"job_role,omitempty"`
	Status               SessionStatus `json:"session_status"`
	CurrentQuestionIndex int           `json:"current_question_index"`
	TotalQuestions       int           `json:"total_questions"`
	Question             *QuestionDTO  `json:"question,omitempty"`
	Timer                TimerState    `json:"timer"`
	Preview              *PreviewDTO   `json:"preview,omitempty"`
	Error                *string       `json:"error,omitempty"`
	CreatedAt            time.Time     `json:"created_at"`
	UpdatedAt            time.Time     `json:"updated_at"`
}
