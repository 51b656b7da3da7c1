package interview

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/futig/interview-orchestrator/internal/config"
	"github.com/futig/interview-orchestrator/internal/entity"
	"github.com/futig/interview-orchestrator/internal/integration/common"
	pkghttp "github.com/futig/interview-orchestrator/pkg/http"
	"github.com/google/uuid"
	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"
)

type Connector struct {
	config    config.InterviewConnectorConfig
	connector *pkghttp.Connector
	logger    *zap.Logger
}

func NewConnector(
	cfg config.InterviewConnectorConfig,
	logger *zap.Logger,
) *Connector {
	return &Connector{
		connector: common.NewBaseConnector("interview", cfg.HTTPClientConfig, logger),
		config:    cfg,
		logger:    logger,
	}
}

// GetInterview loads interview metadata. The call is idempotent and retried
// on network failures and 5xx answers.
func (c *Connector) GetInterview(ctx context.Context, interviewID string) (*entity.Interview, error) {
	ctxzap.Info(ctx, "loading interview", zap.String("interview_id", interviewID))

	endpoint := c.config.GetInterviewEndpoint + "/" + url.PathEscape(interviewID)

	var resp entity.Interview
	err := c.config.Retry.Do(ctx, func(ctx context.Context) error {
		return c.connector.DoRequest(ctx, http.MethodGet, endpoint, nil, &resp)
	}, pkghttp.IsRetryable)
	if err != nil {
		if pkghttp.StatusCode(err) == http.StatusNotFound {
			return nil, fmt.Errorf("%w: %s", entity.ErrInterviewNotFound, interviewID)
		}
		return nil, fmt.Errorf("get interview: %w", err)
	}

	ctxzap.Info(ctx, "interview loaded",
		zap.String("job_role", resp.JobRole),
		zap.String("status", resp.Status),
	)

	return &resp, nil
}

// StartInterview marks the interview in progress and returns the first question.
func (c *Connector) StartInterview(ctx context.Context, interviewID string) (*entity.Question, error) {
	ctxzap.Info(ctx, "starting interview", zap.String("interview_id", interviewID))

	var question entity.Question
	err := c.connector.DoRequest(ctx, http.MethodPost, c.config.StartInterviewEndpoint,
		&entity.StartInterviewRequest{InterviewID: interviewID}, &question,
		pkghttp.WithHeader("X-Request-ID", uuid.New().String()),
	)
	if err != nil {
		if pkghttp.StatusCode(err) == http.StatusNotFound {
			return nil, fmt.Errorf("%w: %s", entity.ErrInterviewNotFound, interviewID)
		}
		return nil, fmt.Errorf("start interview: %w", err)
	}

	if question.ID == "" {
		return nil, fmt.Errorf("start interview: %w: first question has no id", entity.ErrInvalidFormat)
	}

	ctxzap.Info(ctx, "first question received", zap.String("question_id", question.ID))

	return &question, nil
}

// SubmitAnswer posts one answer. It is never retried here: a second POST
// could record the same answer twice on the server.
func (c *Connector) SubmitAnswer(ctx context.Context, req *entity.SubmitAnswerRequest) (*entity.SubmitAnswerResponse, error) {
	requestID := uuid.New().String()

	ctxzap.Info(ctx, "submitting answer",
		zap.String("interview_id", req.InterviewID),
		zap.String("question_id", req.QuestionID),
		zap.String("request_id", requestID),
		zap.Int("audio_base64_length", len(req.AudioData)),
	)

	var resp entity.SubmitAnswerResponse
	err := c.connector.DoRequest(ctx, http.MethodPost, c.config.SubmitAnswerEndpoint, req, &resp,
		pkghttp.WithHeader("X-Request-ID", requestID),
	)
	if err != nil {
		return nil, fmt.Errorf("submit answer: %w", err)
	}

	ctxzap.Info(ctx, "answer accepted", zap.Bool("completed", resp.Completed))

	return &resp, nil
}
