package interview

import (
	"context"
	"fmt"
	"sync"

	"github.com/futig/interview-orchestrator/internal/entity"
	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"
)

const (
	mockTechnicalQuestions = 8
	mockClosingMessage     = "Thank you for attending the interview. Your responses have been recorded."
	minAudioDataLength     = 10
)

var mockQuestionBank = []string{
	"Describe a system you designed end to end. What trade-offs did you make?",
	"How do you approach debugging a production incident?",
	"Explain how you would design a rate limiter.",
	"What is the difference between concurrency and parallelism?",
	"How do you keep a large codebase maintainable?",
	"Walk through how an HTTP request reaches your service.",
	"How do you test code that depends on time?",
	"Describe a performance problem you solved.",
	"Tell us about a conflict within your team and how it was resolved.",
	"Why are you interested in this role?",
	"Describe a time you received difficult feedback.",
	"How do you prioritise when everything is urgent?",
	"Where do you want to grow in the next two years?",
}

type mockInterview struct {
	started bool
	index   int
}

// MockConnector - in-memory interview service for local runs and demos
type MockConnector struct {
	totalQuestions int
	logger         *zap.Logger

	mu         sync.Mutex
	interviews map[string]*mockInterview
}

func NewMockConnector(totalQuestions int, logger *zap.Logger) *MockConnector {
	return &MockConnector{
		totalQuestions: totalQuestions,
		logger:         logger,
		interviews:     make(map[string]*mockInterview),
	}
}

func (m *MockConnector) GetInterview(ctx context.Context, interviewID string) (*entity.Interview, error) {
	ctxzap.Info(ctx, "[MOCK] loading interview", zap.String("interview_id", interviewID))

	m.mu.Lock()
	defer m.mu.Unlock()

	iv := m.lookup(interviewID)
	total := m.totalQuestions
	status := "pending"
	if iv.started {
		status = "in_progress"
	}

	return &entity.Interview{
		ID:                   interviewID,
		JobRole:              "Backend Engineer",
		Status:               status,
		CurrentQuestionIndex: iv.index,
		TotalQuestions:       &total,
	}, nil
}

func (m *MockConnector) StartInterview(ctx context.Context, interviewID string) (*entity.Question, error) {
	ctxzap.Info(ctx, "[MOCK] starting interview", zap.String("interview_id", interviewID))

	m.mu.Lock()
	defer m.mu.Unlock()

	iv := m.lookup(interviewID)
	iv.started = true
	q := m.question(interviewID, iv.index)

	return &q, nil
}

func (m *MockConnector) SubmitAnswer(ctx context.Context, req *entity.SubmitAnswerRequest) (*entity.SubmitAnswerResponse, error) {
	if len(req.AudioData) < minAudioDataLength {
		return nil, fmt.Errorf("%w: audio_data", entity.ErrInvalidFormat)
	}

	ctxzap.Info(ctx, "[MOCK] answer received",
		zap.String("question_id", req.QuestionID),
		zap.Int("audio_base64_length", len(req.AudioData)),
	)

	m.mu.Lock()
	defer m.mu.Unlock()

	iv := m.lookup(req.InterviewID)
	if !iv.started {
		return nil, fmt.Errorf("%w: interview %s not started", entity.ErrInvalidSessionStatus, req.InterviewID)
	}

	iv.index++
	if iv.index >= m.totalQuestions {
		return &entity.SubmitAnswerResponse{Completed: true, Message: mockClosingMessage}, nil
	}

	next := m.question(req.InterviewID, iv.index)
	return &entity.SubmitAnswerResponse{Completed: false, Message: "Answer submitted successfully", NextQuestion: &next}, nil
}

func (m *MockConnector) lookup(interviewID string) *mockInterview {
	iv, ok := m.interviews[interviewID]
	if !ok {
		iv = &mockInterview{}
		m.interviews[interviewID] = iv
	}
	return iv
}

func (m *MockConnector) question(interviewID string, index int) entity.Question {
	round, difficulty := entity.RoundTechnical, entity.DifficultyMedium
	if index >= mockTechnicalQuestions {
		round, difficulty = entity.RoundHR, entity.DifficultyEasy
	}

	return entity.Question{
		ID:         fmt.Sprintf("%s-q%02d", interviewID, index+1),
		Text:       mockQuestionBank[index%len(mockQuestionBank)],
		Difficulty: difficulty,
		RoundType:  round,
		Order:      index,
	}
}
