package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/futig/interview-orchestrator/internal/entity"
	"github.com/futig/interview-orchestrator/internal/media"
	"github.com/futig/interview-orchestrator/internal/pkg/logger"
	"github.com/google/uuid"
	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"
)

const (
	defaultSubmitTimeout = 2 * time.Minute

	msgTimeUp = "Time is up for this question!"
)

// ControllerConfig is the per-session part of the configuration
type ControllerConfig struct {
	QuestionTimeLimit int // seconds
	TotalQuestions    int
	AutoBegin         bool
	SubmitTimeout     time.Duration
	Constraints       entity.MediaConstraints
	CallbackURL       string
}

// Dependencies are the collaborators of one session. Timer and Recorder
// must not be shared between sessions.
type Dependencies struct {
	Interview InterviewConnector
	Media     MediaCapture
	Recorder  Recorder
	Timer     QuestionTimer
	Pipeline  SubmissionPipeline
	Notifier  Notifier
}

// Controller runs the question cycle of one interview session.
//
// All state lives behind mu. Device acquisition, segment finalization and
// network calls run without the lock and re-enter through guarded
// transitions that check the status and the question generation, so a
// transition made meanwhile (exit, timeout) always wins over a stale result.
type Controller struct {
	cfg       ControllerConfig
	interview InterviewConnector
	media     MediaCapture
	recorder  Recorder
	timer     QuestionTimer
	pipeline  SubmissionPipeline
	notifier  Notifier
	cleanup   *CleanupCoordinator

	// timer callbacks have no caller context
	baseCtx context.Context

	mu               sync.Mutex
	session          *entity.Session
	stream           *media.DeviceStream
	preview          *media.Preview
	inFlight         bool
	generation       uint64
	recordingStarted time.Time
	audioEnabled     bool
	videoEnabled     bool
}

func NewController(cfg ControllerConfig, deps Dependencies, log *zap.Logger) *Controller {
	if cfg.SubmitTimeout <= 0 {
		cfg.SubmitTimeout = defaultSubmitTimeout
	}
	if deps.Notifier == nil {
		deps.Notifier = NopNotifier{}
	}

	now := time.Now().UTC()
	session := &entity.Session{
		ID:             uuid.New().String(),
		Status:         entity.SessionStatusNotStarted,
		TotalQuestions: cfg.TotalQuestions,
		CallbackURL:    cfg.CallbackURL,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	log = log.With(zap.String("session_id", session.ID))

	return &Controller{
		cfg:          cfg,
		interview:    deps.Interview,
		media:        deps.Media,
		recorder:     deps.Recorder,
		timer:        deps.Timer,
		pipeline:     deps.Pipeline,
		notifier:     deps.Notifier,
		cleanup:      NewCleanupCoordinator(deps.Timer, deps.Recorder, deps.Media),
		baseCtx:      ctxzap.ToContext(context.Background(), log),
		session:      session,
		audioEnabled: true,
		videoEnabled: cfg.Constraints.VideoEnabled,
	}
}

func (c *Controller) ID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session.ID
}

// Session returns a copy of the current session state.
func (c *Controller) Session() *entity.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session.Clone()
}

func (c *Controller) Status() entity.SessionStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session.Status
}

// Cleanup exposes the teardown path, mostly for inspection.
func (c *Controller) Cleanup() *CleanupCoordinator {
	return c.cleanup
}

// Initialize loads the interview, acquires the devices and fetches the first
// question. Any failure moves the session to FAILED and releases what was acquired.
func (c *Controller) Initialize(ctx context.Context, interviewID string) error {
	ctx = c.logContext(ctx, "initialize")

	if interviewID == "" {
		return fmt.Errorf("%w: interview_id", entity.ErrMissingField)
	}

	c.mu.Lock()
	if err := c.transitionLocked(entity.SessionStatusInitializing); err != nil {
		c.mu.Unlock()
		return err
	}
	c.session.InterviewID = interviewID
	n := c.notificationLocked(entity.CallbackEventTypeStateChanged, "Preparing the interview room")
	c.mu.Unlock()
	c.notify(ctx, n)

	interview, err := c.interview.GetInterview(ctx, interviewID)
	if err != nil {
		return c.fail(ctx, fmt.Errorf("load interview: %w", err))
	}
	if c.Status() != entity.SessionStatusInitializing {
		return entity.ErrSessionTerminal
	}

	stream, err := c.media.Acquire(ctx, c.cfg.Constraints)
	if err != nil {
		return c.fail(ctx, err)
	}
	preview, err := media.StartPreview(stream)
	if err != nil {
		c.media.Release(stream)
		return c.fail(ctx, fmt.Errorf("%w: %v", entity.ErrDeviceUnavailable, err))
	}

	c.mu.Lock()
	if c.session.Status != entity.SessionStatusInitializing {
		// exited while the devices were being acquired
		c.mu.Unlock()
		preview.Stop()
		c.media.Release(stream)
		return entity.ErrSessionTerminal
	}
	c.stream, c.preview = stream, preview
	c.cleanup.Bind(stream, preview)
	c.mu.Unlock()

	question, err := c.interview.StartInterview(ctx, interviewID)
	if err != nil {
		return c.fail(ctx, fmt.Errorf("start interview: %w", err))
	}

	c.mu.Lock()
	if c.session.Status != entity.SessionStatusInitializing {
		c.mu.Unlock()
		return entity.ErrSessionTerminal
	}
	c.session.JobRole = interview.JobRole
	if interview.TotalQuestions != nil && *interview.TotalQuestions > 0 {
		c.session.TotalQuestions = *interview.TotalQuestions
	}
	// the session counts its own accepted answers from the first question
	c.session.CurrentQuestionIndex = 0
	c.session.CurrentQuestion = question
	if err := c.transitionLocked(entity.SessionStatusAwaitingAnswer); err != nil {
		c.mu.Unlock()
		return err
	}
	n = c.notificationLocked(entity.CallbackEventTypeQuestion, question.Text)
	c.mu.Unlock()

	ctxzap.Info(ctx, "session initialized",
		zap.String("interview_id", interviewID),
		zap.String("job_role", interview.JobRole),
		zap.String("question_id", question.ID),
	)
	c.notify(ctx, n)

	if c.cfg.AutoBegin {
		// a start failure is recoverable and already reported
		_ = c.beginCycle(ctx)
	}

	return nil
}

// BeginQuestionCycle starts the segment and the timer for the current
// question. It is also how the candidate re-records after a failure.
func (c *Controller) BeginQuestionCycle(ctx context.Context) error {
	return c.beginCycle(c.logContext(ctx, "begin_question"))
}

func (c *Controller) beginCycle(ctx context.Context) error {
	c.mu.Lock()
	if c.session.Status.IsTerminal() {
		c.mu.Unlock()
		return entity.ErrSessionTerminal
	}
	if c.session.Status != entity.SessionStatusAwaitingAnswer {
		status := c.session.Status
		c.mu.Unlock()
		return fmt.Errorf("%w: cannot begin recording in %s", entity.ErrInvalidSessionStatus, status)
	}

	if err := c.recorder.StartSegment(c.stream); err != nil {
		n := c.failureLocked(err)
		c.mu.Unlock()
		ctxzap.Warn(ctx, "recording did not start", zap.Error(err))
		c.notify(ctx, n)
		return err
	}

	c.generation++
	gen := c.generation
	limit := c.questionLimitLocked()

	if err := c.timer.Start(limit, func() { c.onTimeout(gen) }); err != nil {
		c.recorder.Discard()
		err = fmt.Errorf("%w: start timer: %v", entity.ErrRecordingStart, err)
		n := c.failureLocked(err)
		c.mu.Unlock()
		c.notify(ctx, n)
		return err
	}

	c.recordingStarted = time.Now()
	c.session.LastError = nil
	if err := c.transitionLocked(entity.SessionStatusRecording); err != nil {
		c.mu.Unlock()
		return err
	}
	questionID := c.session.CurrentQuestion.ID
	n := c.notificationLocked(entity.CallbackEventTypeStateChanged, fmt.Sprintf("Recording, %d seconds to answer", limit))
	c.mu.Unlock()

	ctxzap.Info(ctx, "question cycle started", zap.String("question_id", questionID), zap.Int("limit_seconds", limit))
	c.notify(ctx, n)

	return nil
}

// SubmitCurrentAnswer stops the recording and sends it. While another
// submission is in flight the call does nothing.
func (c *Controller) SubmitCurrentAnswer(ctx context.Context, trigger entity.SubmitTrigger, answerText string) error {
	return c.submit(c.logContext(ctx, "submit_answer"), trigger, answerText, 0)
}

func (c *Controller) onTimeout(gen uint64) {
	ctx := logger.WithAction(c.baseCtx, "question_timeout")
	ctxzap.Info(ctx, "question time is up")

	if err := c.submit(ctx, entity.TriggerTimeout, "", gen); err != nil {
		ctxzap.Debug(ctx, "timeout submission ended with error", zap.Error(err))
	}
}

// submit runs the whole answer path. gen pins the call to one question
// cycle; zero means whatever cycle is current.
func (c *Controller) submit(ctx context.Context, trigger entity.SubmitTrigger, answerText string, gen uint64) error {
	c.mu.Lock()
	switch {
	case c.session.Status.IsTerminal():
		c.mu.Unlock()
		return entity.ErrSessionTerminal
	case c.inFlight:
		c.mu.Unlock()
		ctxzap.Info(ctx, "submission already in flight, ignoring", zap.String("trigger", string(trigger)))
		return nil
	case gen != 0 && gen != c.generation:
		c.mu.Unlock()
		return nil
	case c.session.Status != entity.SessionStatusRecording:
		status := c.session.Status
		c.mu.Unlock()
		if trigger == entity.TriggerTimeout {
			return nil
		}
		return fmt.Errorf("%w: nothing is being recorded in %s", entity.ErrInvalidSessionStatus, status)
	}

	c.inFlight = true
	gen = c.generation
	question := *c.session.CurrentQuestion
	interviewID := c.session.InterviewID
	elapsed := time.Since(c.recordingStarted)

	c.timer.Stop()
	var timeUp *entity.Notification
	if trigger == entity.TriggerTimeout {
		n := c.notificationLocked(entity.CallbackEventTypeStateChanged, msgTimeUp)
		timeUp = &n
	}
	if err := c.transitionLocked(entity.SessionStatusSubmitting); err != nil {
		c.inFlight = false
		c.mu.Unlock()
		return err
	}
	n := c.notificationLocked(entity.CallbackEventTypeStateChanged, "Submitting your answer")
	c.mu.Unlock()

	if timeUp != nil {
		c.notify(ctx, *timeUp)
	}
	c.notify(ctx, n)

	segment, err := c.recorder.StopSegment(ctx)

	c.mu.Lock()
	if c.session.Status != entity.SessionStatusSubmitting || gen != c.generation {
		// exit won the race: nothing reaches the network
		c.inFlight = false
		c.mu.Unlock()
		ctxzap.Info(ctx, "session left while the segment was finalizing, answer dropped")
		return entity.ErrSessionTerminal
	}
	if err != nil {
		c.inFlight = false
		_ = c.transitionLocked(entity.SessionStatusAwaitingAnswer)
		n := c.failureLocked(err)
		c.mu.Unlock()
		ctxzap.Warn(ctx, "recording failed", zap.Error(err))
		c.notify(ctx, n)
		return err
	}
	c.mu.Unlock()

	answer := entity.AnswerSubmission{
		InterviewID:     interviewID,
		QuestionID:      question.ID,
		MediaPayload:    segment.Payload,
		MimeType:        segment.MimeType,
		AnswerText:      answerText,
		DurationSeconds: int(elapsed.Round(time.Second) / time.Second),
		Trigger:         trigger,
	}

	// exit must not abort a request the server may already be processing
	submitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.cfg.SubmitTimeout)
	defer cancel()

	result, err := c.pipeline.Submit(submitCtx, answer)

	return c.onSubmissionResult(ctx, gen, result, err)
}

// onSubmissionResult applies the evaluator's answer. Results that arrive
// after the session left the SUBMITTING state are dropped.
func (c *Controller) onSubmissionResult(ctx context.Context, gen uint64, result entity.SubmissionResult, submitErr error) error {
	next, hasNext := result.NextQuestion()
	if submitErr == nil && !result.IsCompleted() && !hasNext {
		submitErr = fmt.Errorf("%w: untagged submission result", entity.ErrSubmissionFailed)
	}

	c.mu.Lock()
	c.inFlight = false

	if c.session.Status != entity.SessionStatusSubmitting || gen != c.generation {
		status := c.session.Status
		c.mu.Unlock()
		ctxzap.Info(ctx, "submission result discarded", zap.String("status", string(status)), zap.Error(submitErr))
		return nil
	}

	if submitErr != nil {
		_ = c.transitionLocked(entity.SessionStatusAwaitingAnswer)
		n := c.failureLocked(submitErr)
		c.mu.Unlock()
		ctxzap.Warn(ctx, "answer was not accepted, question must be re-recorded", zap.Error(submitErr))
		c.notify(ctx, n)
		return submitErr
	}

	if result.IsCompleted() {
		_ = c.transitionLocked(entity.SessionStatusCompleted)
		message := result.Message()
		if message == "" {
			message = "Interview completed"
		}
		n := c.notificationLocked(entity.CallbackEventTypeCompleted, message)
		c.mu.Unlock()

		c.cleanup.Cleanup(ctx)
		ctxzap.Info(ctx, "interview completed")
		c.notify(ctx, n)
		return nil
	}

	c.session.CurrentQuestion = &next
	c.session.CurrentQuestionIndex++
	c.session.LastError = nil
	_ = c.transitionLocked(entity.SessionStatusAwaitingAnswer)
	index := c.session.CurrentQuestionIndex
	n := c.notificationLocked(entity.CallbackEventTypeQuestion, next.Text)
	c.mu.Unlock()

	ctxzap.Info(ctx, "next question received", zap.String("question_id", next.ID), zap.Int("index", index))
	c.notify(ctx, n)

	if c.cfg.AutoBegin {
		_ = c.beginCycle(ctx)
	}

	return nil
}

// RequestExit leaves the session from any non-terminal state and releases
// everything at once. A submission already on the wire is not cancelled,
// its result is ignored.
func (c *Controller) RequestExit(ctx context.Context) error {
	ctx = c.logContext(ctx, "exit")

	c.mu.Lock()
	if c.session.Status.IsTerminal() {
		c.mu.Unlock()
		return nil
	}
	_ = c.transitionLocked(entity.SessionStatusExited)
	// invalidates pending timer callbacks and in-flight results
	c.generation++
	inFlight := c.inFlight
	n := c.notificationLocked(entity.CallbackEventTypeStateChanged, "You left the interview")
	c.mu.Unlock()

	c.cleanup.Cleanup(ctx)

	ctxzap.Info(ctx, "candidate left the session", zap.Bool("submission_in_flight", inFlight))
	c.notify(ctx, n)

	return nil
}

// Close is the unmount path: it exits a live session and makes sure the
// teardown ran. Safe to call any number of times.
func (c *Controller) Close(ctx context.Context) {
	_ = c.RequestExit(ctx)
	c.cleanup.Cleanup(c.logContext(ctx, "close"))
}

func (c *Controller) SetAudioEnabled(enabled bool) error {
	return c.setTrackEnabled(media.TrackAudio, enabled)
}

func (c *Controller) SetVideoEnabled(enabled bool) error {
	return c.setTrackEnabled(media.TrackVideo, enabled)
}

func (c *Controller) setTrackEnabled(kind media.TrackKind, enabled bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session.Status.IsTerminal() {
		return entity.ErrSessionTerminal
	}
	if c.stream == nil {
		return fmt.Errorf("%w: devices are not acquired yet", entity.ErrInvalidSessionStatus)
	}

	if err := c.media.SetTrackEnabled(c.stream, kind, enabled); err != nil {
		return fmt.Errorf("toggle %s: %w", kind, err)
	}

	if kind == media.TrackVideo {
		c.videoEnabled = enabled
	} else {
		c.audioEnabled = enabled
	}

	return nil
}

// Snapshot is the read model served to the candidate's screen.
func (c *Controller) Snapshot() *entity.SessionDTO {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Controller) snapshotLocked() *entity.SessionDTO {
	dto := sessionToDTO(c.session)
	dto.Timer = c.timer.State()

	if c.preview != nil && !c.session.Status.IsTerminal() {
		dto.Preview = &entity.PreviewDTO{
			AudioEnabled: c.audioEnabled,
			VideoEnabled: c.videoEnabled,
			AudioLevel:   c.preview.Level(),
			VideoFrames:  c.preview.VideoFrames(),
		}
	}

	return dto
}

// fail moves an initializing session to FAILED and tears it down.
func (c *Controller) fail(ctx context.Context, err error) error {
	c.mu.Lock()
	if c.session.Status.IsTerminal() {
		c.mu.Unlock()
		return errors.Join(entity.ErrSessionTerminal, err)
	}
	_ = c.transitionLocked(entity.SessionStatusFailed)
	n := c.failureLocked(err)
	c.mu.Unlock()

	c.cleanup.Cleanup(ctx)

	ctxzap.Error(ctx, "session initialization failed", zap.Error(err))
	c.notify(ctx, n)

	return err
}

func (c *Controller) transitionLocked(next entity.SessionStatus) error {
	current := c.session.Status
	if !current.CanTransitionTo(next) {
		if current.IsTerminal() {
			return entity.ErrSessionTerminal
		}
		return fmt.Errorf("%w: %s -> %s", entity.ErrInvalidSessionStatus, current, next)
	}

	c.session.Status = next
	c.session.UpdatedAt = time.Now().UTC()
	return nil
}

func (c *Controller) questionLimitLocked() int {
	if q := c.session.CurrentQuestion; q != nil && q.MaxDurationSeconds > 0 {
		return q.MaxDurationSeconds
	}
	return c.cfg.QuestionTimeLimit
}

// failureLocked records err on the session and builds its notification.
func (c *Controller) failureLocked(err error) entity.Notification {
	msg := err.Error()
	c.session.LastError = &msg
	c.session.UpdatedAt = time.Now().UTC()

	n := c.notificationLocked(entity.CallbackEventTypeError, userMessage(err))
	n.Code = entity.ErrorCode(err)
	n.Recoverable = entity.IsRecoverable(err)
	n.Retryable = entity.IsRetryable(err)
	return n
}

func (c *Controller) notificationLocked(event entity.CallbackEventType, message string) entity.Notification {
	return entity.Notification{
		SessionID:   c.session.ID,
		InterviewID: c.session.InterviewID,
		Event:       event,
		Status:      c.session.Status,
		Message:     message,
		Session:     c.snapshotLocked(),
		CallbackURL: c.session.CallbackURL,
	}
}

func (c *Controller) notify(ctx context.Context, n entity.Notification) {
	c.notifier.Notify(ctx, n)
}

func (c *Controller) logContext(ctx context.Context, action string) context.Context {
	if !logger.Has(ctx) {
		ctx = logger.Inherit(ctx, c.baseCtx)
	} else {
		ctx = logger.WithSession(ctx, c.session.ID)
	}
	return logger.WithAction(ctx, action)
}

// userMessage is what the candidate sees for each failure kind.
func userMessage(err error) string {
	switch {
	case errors.Is(err, entity.ErrPermissionDenied):
		return "Camera or microphone access was denied. Allow access and try again."
	case errors.Is(err, entity.ErrDeviceUnavailable):
		return "No camera or microphone is available. Check your devices and try again."
	case errors.Is(err, entity.ErrInterviewNotFound):
		return "This interview does not exist."
	case errors.Is(err, entity.ErrRecordingStart):
		return "Recording could not start. Please try again."
	case errors.Is(err, entity.ErrPayloadTooLarge):
		return "Your answer is too long to upload. Please record a shorter answer."
	case errors.Is(err, entity.ErrRecordingFailed):
		return "Your answer was not recorded. Please record it again."
	case errors.Is(err, entity.ErrSubmissionFailed):
		return "Your answer could not be submitted. Please record it again."
	default:
		return "Something went wrong while preparing the interview."
	}
}
