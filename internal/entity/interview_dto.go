package entity

// Wire types of the external interview service

type StartInterviewRequest struct {
	InterviewID string `json:"interview_id"`
}

type SubmitAnswerRequest struct {
	InterviewID     string `json:"interview_id"`
	QuestionID      string `json:"question_id"`
	AudioData       string `json:"audio_data"` // base64
	AnswerText      string `json:"answer_text"`
	DurationSeconds int    `json:"duration_seconds,omitempty"`
}

type SubmitAnswerResponse struct {
	Completed    bool      `json:"completed"`
	Message      string    `json:"message,omitempty"`
	NextQuestion *Question `json:"next_question,omitempty"`
}
