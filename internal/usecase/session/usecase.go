package session

import (
	"context"
	"fmt"

	"github.com/futig/interview-orchestrator/internal/config"
	"github.com/futig/interview-orchestrator/internal/entity"
	"github.com/futig/interview-orchestrator/internal/pkg/validator"
	"github.com/futig/interview-orchestrator/internal/recording"
	"github.com/futig/interview-orchestrator/internal/timer"
	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"
)

// SessionUsecase creates sessions and routes candidate actions to their controllers
type SessionUsecase struct {
	cfg         config.SessionConfig
	constraints entity.MediaConstraints
	registry    *Registry
	validator   *validator.Validator
	interview   InterviewConnector
	media       MediaCapture
	pipeline    SubmissionPipeline
	notifier    Notifier
	newRecorder func() (Recorder, error)
	newTimer    func() QuestionTimer
	logger      *zap.Logger
}

type Option func(*SessionUsecase)

// WithRecorderFactory replaces how per-session recorders are built.
func WithRecorderFactory(f func() (Recorder, error)) Option {
	return func(uc *SessionUsecase) {
		uc.newRecorder = f
	}
}

// WithTimerFactory replaces how per-session timers are built.
func WithTimerFactory(f func() QuestionTimer) Option {
	return func(uc *SessionUsecase) {
		uc.newTimer = f
	}
}

// NewUsecase creates a new session use case
func NewUsecase(
	cfg config.SessionConfig,
	mediaCfg config.MediaConfig,
	recordingCfg config.RecordingConfig,
	registry *Registry,
	validator *validator.Validator,
	interview InterviewConnector,
	capture MediaCapture,
	pipeline SubmissionPipeline,
	notifier Notifier,
	logger *zap.Logger,
	opts ...Option,
) *SessionUsecase {
	uc := &SessionUsecase{
		cfg:         cfg,
		constraints: mediaCfg.Constraints(),
		registry:    registry,
		validator:   validator,
		interview:   interview,
		media:       capture,
		pipeline:    pipeline,
		notifier:    notifier,
		logger:      logger,
	}

	recordingOpts := recordingCfg.Options()
	uc.newRecorder = func() (Recorder, error) {
		return recording.NewManager(recordingOpts, logger)
	}
	uc.newTimer = func() QuestionTimer {
		return timer.New()
	}

	for _, opt := range opts {
		opt(uc)
	}

	return uc
}

// StartSession registers a new session and initializes it. A session whose
// initialization failed stays registered in FAILED so its error can be read.
func (uc *SessionUsecase) StartSession(ctx context.Context, req *entity.StartSessionRequest) (*entity.SessionDTO, error) {
	if err := uc.validator.ValidateStartSession(req); err != nil {
		return nil, err
	}

	recorder, err := uc.newRecorder()
	if err != nil {
		return nil, fmt.Errorf("create recorder: %w", err)
	}

	ctrl := NewController(ControllerConfig{
		QuestionTimeLimit: uc.cfg.QuestionTimeLimit,
		TotalQuestions:    uc.cfg.TotalQuestions,
		AutoBegin:         uc.cfg.AutoBegin,
		SubmitTimeout:     uc.cfg.SubmitTimeout,
		Constraints:       uc.constraints,
		CallbackURL:       req.CallbackURL,
	}, Dependencies{
		Interview: uc.interview,
		Media:     uc.media,
		Recorder:  recorder,
		Timer:     uc.newTimer(),
		Pipeline:  uc.pipeline,
		Notifier:  uc.notifier,
	}, uc.logger)

	uc.registry.Add(ctrl)

	ctxzap.Info(ctx, "session created", zap.String("session_id", ctrl.ID()), zap.String("interview_id", req.InterviewID))

	if err := ctrl.Initialize(ctx, req.InterviewID); err != nil {
		return ctrl.Snapshot(), fmt.Errorf("initialize session: %w", err)
	}

	return ctrl.Snapshot(), nil
}

func (uc *SessionUsecase) GetSession(_ context.Context, sessionID string) (*entity.SessionDTO, error) {
	ctrl, err := uc.registry.Get(sessionID)
	if err != nil {
		return nil, err
	}
	return ctrl.Snapshot(), nil
}

// BeginQuestion starts recording the current question, or re-records it after a failure
func (uc *SessionUsecase) BeginQuestion(ctx context.Context, sessionID string) (*entity.SessionDTO, error) {
	ctrl, err := uc.registry.Get(sessionID)
	if err != nil {
		return nil, err
	}

	if err := ctrl.BeginQuestionCycle(ctx); err != nil {
		return nil, fmt.Errorf("begin question: %w", err)
	}

	return ctrl.Snapshot(), nil
}

// SubmitAnswer is the candidate's manual submit. It returns once the
// evaluator answered or the answer was dropped.
func (uc *SessionUsecase) SubmitAnswer(ctx context.Context, sessionID string, req *entity.SubmitRequest) (*entity.SessionDTO, error) {
	ctrl, err := uc.registry.Get(sessionID)
	if err != nil {
		return nil, err
	}

	answerText := ""
	if req != nil {
		answerText = req.AnswerText
	}

	if err := ctrl.SubmitCurrentAnswer(ctx, entity.TriggerManual, answerText); err != nil {
		return nil, fmt.Errorf("submit answer: %w", err)
	}

	return ctrl.Snapshot(), nil
}

func (uc *SessionUsecase) ExitSession(ctx context.Context, sessionID string) (*entity.SessionDTO, error) {
	ctrl, err := uc.registry.Get(sessionID)
	if err != nil {
		return nil, err
	}

	if err := ctrl.RequestExit(ctx); err != nil {
		return nil, fmt.Errorf("exit session: %w", err)
	}

	return ctrl.Snapshot(), nil
}

func (uc *SessionUsecase) SetAudioEnabled(_ context.Context, sessionID string, enabled bool) (*entity.SessionDTO, error) {
	ctrl, err := uc.registry.Get(sessionID)
	if err != nil {
		return nil, err
	}

	if err := ctrl.SetAudioEnabled(enabled); err != nil {
		return nil, err
	}

	return ctrl.Snapshot(), nil
}

func (uc *SessionUsecase) SetVideoEnabled(_ context.Context, sessionID string, enabled bool) (*entity.SessionDTO, error) {
	ctrl, err := uc.registry.Get(sessionID)
	if err != nil {
		return nil, err
	}

	if err := ctrl.SetVideoEnabled(enabled); err != nil {
		return nil, err
	}

	return ctrl.Snapshot(), nil
}

// DeleteSession is the unmount: the session is torn down and forgotten.
func (uc *SessionUsecase) DeleteSession(_ context.Context, sessionID string) error {
	if !uc.registry.Remove(sessionID) {
		return fmt.Errorf("%w: %s", entity.ErrSessionNotFound, sessionID)
	}
	return nil
}

// Shutdown releases every live session.
func (uc *SessionUsecase) Shutdown() {
	uc.logger.Info("closing live sessions", zap.Int("count", uc.registry.Len()))
	uc.registry.CloseAll()
}
