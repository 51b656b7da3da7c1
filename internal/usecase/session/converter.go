package session

import "github.com/futig/interview-orchestrator/internal/entity"

// sessionToDTO converts the owned session to its API shape
func sessionToDTO(session *entity.Session) *entity.SessionDTO {
	if session == nil {
		return nil
	}

	var lastError *string
	if session.LastError != nil {
		e := *session.LastError
		lastError = &e
	}

	return &entity.SessionDTO{
		ID:                   session.ID,
		InterviewID:          session.InterviewID,
		JobRole:              session.JobRole,
		Status:               session.Status,
		CurrentQuestionIndex: session.CurrentQuestionIndex,
		TotalQuestions:       session.TotalQuestions,
		Question:             questionToDTO(session.CurrentQuestion, session.CurrentQuestionIndex),
		Error:                lastError,
		CreatedAt:            session.CreatedAt,
		UpdatedAt:            session.UpdatedAt,
	}
}

// questionToDTO converts a Question to QuestionDTO numbered from one
func questionToDTO(question *entity.Question, index int) *entity.QuestionDTO {
	if question == nil {
		return nil
	}

	return &entity.QuestionDTO{
		ID:         question.ID,
		Number:     index + 1,
		Text:       question.Text,
		Difficulty: question.Difficulty,
		RoundType:  question.RoundType,
	}
}
