package submission

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/futig/interview-orchestrator/internal/entity"
	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"
)

type InterviewService interface {
	SubmitAnswer(ctx context.Context, req *entity.SubmitAnswerRequest) (*entity.SubmitAnswerResponse, error)
}

// Pipeline sends one recorded answer to the interview service and turns
// the reply into a tagged result. It never retries: the caller decides.
type Pipeline struct {
	service InterviewService
	logger  *zap.Logger
}

func NewPipeline(service InterviewService, logger *zap.Logger) *Pipeline {
	return &Pipeline{
		service: service,
		logger:  logger,
	}
}

// Submit returns Completed or NextQuestion. Every failure wraps entity.ErrSubmissionFailed.
func (p *Pipeline) Submit(ctx context.Context, answer entity.AnswerSubmission) (entity.SubmissionResult, error) {
	if err := validate(answer); err != nil {
		return entity.SubmissionResult{}, fmt.Errorf("%w: %w", entity.ErrSubmissionFailed, err)
	}

	req := &entity.SubmitAnswerRequest{
		InterviewID:     answer.InterviewID,
		QuestionID:      answer.QuestionID,
		AudioData:       base64.StdEncoding.EncodeToString(answer.MediaPayload),
		AnswerText:      answer.AnswerText,
		DurationSeconds: answer.DurationSeconds,
	}

	ctxzap.Info(ctx, "sending answer",
		zap.String("question_id", answer.QuestionID),
		zap.String("trigger", string(answer.Trigger)),
		zap.String("mime_type", answer.MimeType),
		zap.Int("payload_bytes", len(answer.MediaPayload)),
		zap.Int("duration_seconds", answer.DurationSeconds),
	)

	resp, err := p.service.SubmitAnswer(ctx, req)
	if err != nil {
		ctxzap.Warn(ctx, "answer submission failed", zap.Error(err))
		return entity.SubmissionResult{}, fmt.Errorf("%w: %w", entity.ErrSubmissionFailed, err)
	}

	result, err := toResult(resp)
	if err != nil {
		ctxzap.Warn(ctx, "unexpected submission response", zap.Error(err))
		return entity.SubmissionResult{}, fmt.Errorf("%w: %w", entity.ErrSubmissionFailed, err)
	}

	ctxzap.Info(ctx, "answer accepted", zap.Stringer("outcome", result.Outcome()))

	return result, nil
}

func validate(answer entity.AnswerSubmission) error {
	switch {
	case answer.InterviewID == "":
		return fmt.Errorf("%w: interview_id", entity.ErrMissingField)
	case answer.QuestionID == "":
		return fmt.Errorf("%w: question_id", entity.ErrMissingField)
	case len(answer.MediaPayload) == 0:
		return fmt.Errorf("%w: media payload", entity.ErrMissingField)
	}
	return nil
}

func toResult(resp *entity.SubmitAnswerResponse) (entity.SubmissionResult, error) {
	if resp == nil {
		return entity.SubmissionResult{}, fmt.Errorf("%w: empty response", entity.ErrInvalidFormat)
	}

	if resp.Completed {
		return entity.CompletedResult(resp.Message), nil
	}

	if resp.NextQuestion == nil || resp.NextQuestion.ID == "" {
		return entity.SubmissionResult{}, fmt.Errorf("%w: response neither completed nor carrying a next question", entity.ErrInvalidFormat)
	}

	return entity.NextQuestionResult(*resp.NextQuestion), nil
}
