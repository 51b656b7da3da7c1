package submission

import (
	"context"
	"encoding/base64"
	"errors"
	"testing"

	"github.com/futig/interview-orchestrator/internal/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type serviceStub struct {
	resp *entity.SubmitAnswerResponse
	err  error

	calls []*entity.SubmitAnswerRequest
}

func (s *serviceStub) SubmitAnswer(_ context.Context, req *entity.SubmitAnswerRequest) (*entity.SubmitAnswerResponse, error) {
	s.calls = append(s.calls, req)
	return s.resp, s.err
}

func testAnswer() entity.AnswerSubmission {
	return entity.AnswerSubmission{
		InterviewID:     "iv-1",
		QuestionID:      "q-1",
		MediaPayload:    []byte("RIFF....WAVEfmt "),
		MimeType:        "audio/wav",
		AnswerText:      "see recording",
		DurationSeconds: 42,
		Trigger:         entity.TriggerManual,
	}
}

func TestPipeline_NextQuestion(t *testing.T) {
	next := entity.Question{ID: "q-2", Text: "Why Go?", RoundType: entity.RoundTechnical}
	stub := &serviceStub{resp: &entity.SubmitAnswerResponse{NextQuestion: &next}}
	p := NewPipeline(stub, zap.NewNop())

	result, err := p.Submit(context.Background(), testAnswer())
	require.NoError(t, err)

	q, ok := result.NextQuestion()
	require.True(t, ok)
	assert.Equal(t, next, q)
	assert.False(t, result.IsCompleted())

	require.Len(t, stub.calls, 1)
	req := stub.calls[0]
	assert.Equal(t, "iv-1", req.InterviewID)
	assert.Equal(t, "q-1", req.QuestionID)
	assert.Equal(t, "see recording", req.AnswerText)
	assert.Equal(t, 42, req.DurationSeconds)

	decoded, err := base64.StdEncoding.DecodeString(req.AudioData)
	require.NoError(t, err)
	assert.Equal(t, testAnswer().MediaPayload, decoded)
}

func TestPipeline_Completed(t *testing.T) {
	stub := &serviceStub{resp: &entity.SubmitAnswerResponse{Completed: true, Message: "thanks"}}
	p := NewPipeline(stub, zap.NewNop())

	result, err := p.Submit(context.Background(), testAnswer())
	require.NoError(t, err)

	assert.True(t, result.IsCompleted())
	assert.Equal(t, "thanks", result.Message())
	_, ok := result.NextQuestion()
	assert.False(t, ok)
}

func TestPipeline_Failures(t *testing.T) {
	transportErr := errors.New("connection reset")

	tests := []struct {
		name      string
		stub      *serviceStub
		answer    func(a *entity.AnswerSubmission)
		wantCause error
		wantCalls int
	}{
		{
			name:      "transport error",
			stub:      &serviceStub{err: transportErr},
			wantCause: transportErr,
			wantCalls: 1,
		},
		{
			name:      "nil response",
			stub:      &serviceStub{},
			wantCause: entity.ErrInvalidFormat,
			wantCalls: 1,
		},
		{
			name:      "neither completed nor next",
			stub:      &serviceStub{resp: &entity.SubmitAnswerResponse{Message: "ok"}},
			wantCause: entity.ErrInvalidFormat,
			wantCalls: 1,
		},
		{
			name:      "next question without id",
			stub:      &serviceStub{resp: &entity.SubmitAnswerResponse{NextQuestion: &entity.Question{Text: "?"}}},
			wantCause: entity.ErrInvalidFormat,
			wantCalls: 1,
		},
		{
			name:      "empty payload is never sent",
			stub:      &serviceStub{},
			answer:    func(a *entity.AnswerSubmission) { a.MediaPayload = nil },
			wantCause: entity.ErrMissingField,
		},
		{
			name:      "missing question id",
			stub:      &serviceStub{},
			answer:    func(a *entity.AnswerSubmission) { a.QuestionID = "" },
			wantCause: entity.ErrMissingField,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPipeline(tt.stub, zap.NewNop())

			answer := testAnswer()
			if tt.answer != nil {
				tt.answer(&answer)
			}

			_, err := p.Submit(context.Background(), answer)
			assert.ErrorIs(t, err, entity.ErrSubmissionFailed)
			assert.ErrorIs(t, err, tt.wantCause)
			assert.Len(t, tt.stub.calls, tt.wantCalls, "pipeline must not retry")
		})
	}
}
