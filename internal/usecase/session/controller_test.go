package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/futig/interview-orchestrator/internal/entity"
	"github.com/futig/interview-orchestrator/internal/media"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m, goleak.IgnoreTopFunction("github.com/patrickmn/go-cache.(*janitor).Run"))
}

func TestController_InitializeStartsFirstQuestion(t *testing.T) {
	h := newHarness(t)
	h.initialize(t)

	s := h.ctrl.Session()
	assert.Equal(t, entity.SessionStatusRecording, s.Status)
	assert.Equal(t, "iv-1", s.InterviewID)
	assert.Equal(t, "Backend Engineer", s.JobRole)
	assert.Equal(t, 0, s.CurrentQuestionIndex)
	assert.Equal(t, testTotalQuestions, s.TotalQuestions)
	require.NotNil(t, s.CurrentQuestion)
	assert.Equal(t, "q1", s.CurrentQuestion.ID)

	assert.True(t, h.timer.isRunning())
	assert.Equal(t, 180, h.timer.limit())
	assert.True(t, h.recorder.isActive())

	acquired, released := h.media.counts()
	assert.Equal(t, 1, acquired)
	assert.Zero(t, released)

	assert.Equal(t, []entity.SessionStatus{
		entity.SessionStatusInitializing,
		entity.SessionStatusAwaitingAnswer,
		entity.SessionStatusRecording,
	}, h.notifier.statuses())
}

func TestController_InitializeWithoutAutoBegin(t *testing.T) {
	h := newHarness(t, withoutAutoBegin())
	h.initialize(t)

	assert.Equal(t, entity.SessionStatusAwaitingAnswer, h.ctrl.Status())
	assert.False(t, h.timer.isRunning(), "timer must not run without a recording")
	assert.False(t, h.recorder.isActive())

	require.NoError(t, h.ctrl.BeginQuestionCycle(context.Background()))
	assert.Equal(t, entity.SessionStatusRecording, h.ctrl.Status())
	assert.True(t, h.timer.isRunning())
	assert.True(t, h.recorder.isActive())
}

func TestController_InitializeOnlyOnce(t *testing.T) {
	h := newHarness(t)
	h.initialize(t)

	err := h.ctrl.Initialize(context.Background(), "iv-1")
	assert.ErrorIs(t, err, entity.ErrInvalidSessionStatus)

	assert.ErrorIs(t, newHarness(t).ctrl.Initialize(context.Background(), ""), entity.ErrMissingField)
}

func TestController_InitializeFailures(t *testing.T) {
	tests := []struct {
		name     string
		setup    func(h *harness)
		wantErr  error
		wantCode  string
		wantRetry bool
		acquired  int
	}{
		{
			name:     "interview not found",
			setup:    func(h *harness) { h.interview.getErr = entity.ErrInterviewNotFound },
			wantErr:  entity.ErrInterviewNotFound,
			wantCode: "interview_not_found",
		},
		{
			name:     "permission denied",
			setup:    func(h *harness) { h.media.acquireErr = fmt.Errorf("%w: camera", entity.ErrPermissionDenied) },
			wantErr:   entity.ErrPermissionDenied,
			wantCode:  "permission_denied",
			wantRetry: true,
		},
		{
			name:     "device unavailable",
			setup:    func(h *harness) { h.media.acquireErr = entity.ErrDeviceUnavailable },
			wantErr:   entity.ErrDeviceUnavailable,
			wantCode:  "device_unavailable",
			wantRetry: true,
		},
		{
			name:     "start interview network failure",
			setup:    func(h *harness) { h.interview.startErr = errors.New("connection refused") },
			wantCode: "internal_error",
			acquired: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			tt.setup(h)

			err := h.ctrl.Initialize(context.Background(), "iv-1")
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}

			s := h.ctrl.Session()
			assert.Equal(t, entity.SessionStatusFailed, s.Status)
			require.NotNil(t, s.LastError)

			acquired, released := h.media.counts()
			assert.Equal(t, tt.acquired, acquired)
			assert.Equal(t, tt.acquired, released, "acquired stream must be released")
			h.assertReleased(t)

			errs := h.notifier.errors()
			require.Len(t, errs, 1)
			assert.Equal(t, tt.wantCode, errs[0].Code)
			assert.False(t, errs[0].Recoverable)
			assert.Equal(t, tt.wantRetry, errs[0].Retryable, "device errors let the candidate start again")

			// terminal: nothing else may happen
			assert.ErrorIs(t, h.ctrl.BeginQuestionCycle(context.Background()), entity.ErrSessionTerminal)
			assert.ErrorIs(t, h.ctrl.SubmitCurrentAnswer(context.Background(), entity.TriggerManual, ""), entity.ErrSessionTerminal)
		})
	}
}

func TestController_IndexEqualsAcceptedSubmissions(t *testing.T) {
	for _, n := range []int{1, 4, 12} {
		t.Run(fmt.Sprintf("%d answers", n), func(t *testing.T) {
			h := newHarness(t)
			h.initialize(t)

			for i := 0; i < n; i++ {
				h.answer(t)
			}

			s := h.ctrl.Session()
			assert.Equal(t, n, s.CurrentQuestionIndex)
			assert.Equal(t, fmt.Sprintf("q%d", n+1), s.CurrentQuestion.ID)
			assert.Len(t, h.pipeline.submissions(), n)
		})
	}
}

func TestController_IndexIgnoresServerProgress(t *testing.T) {
	h := newHarness(t)
	h.interview.serverIndex = 3
	h.initialize(t)

	s := h.ctrl.Session()
	require.Equal(t, 0, s.CurrentQuestionIndex)
	require.Equal(t, "q1", s.CurrentQuestion.ID)

	h.answer(t)
	h.answer(t)

	s = h.ctrl.Session()
	assert.Equal(t, 2, s.CurrentQuestionIndex)
	assert.Equal(t, "q3", s.CurrentQuestion.ID)
}

func TestController_TimeoutTellsTheCandidate(t *testing.T) {
	h := newHarness(t, withoutAutoBegin())
	h.initialize(t)
	require.NoError(t, h.ctrl.BeginQuestionCycle(context.Background()))

	h.answer(t)
	assert.Zero(t, h.notifier.countMessage(msgTimeUp), "manual submit is not a timeout")

	require.NoError(t, h.ctrl.BeginQuestionCycle(context.Background()))
	require.True(t, h.timer.Expire())

	require.Equal(t, 1, h.notifier.countMessage(msgTimeUp))
	n := h.notifier.find(msgTimeUp)
	assert.Equal(t, entity.CallbackEventTypeStateChanged, n.Event)
	assert.Equal(t, entity.SessionStatusRecording, n.Status)
	assert.Equal(t, "q2", n.Session.Question.ID)
}

func TestController_ManualAndTimeoutCollapseToOneSubmission(t *testing.T) {
	h := newHarness(t)
	h.pipeline.gate = make(chan struct{})
	h.pipeline.inside = make(chan struct{}, 1)
	h.initialize(t)

	done := make(chan error, 1)
	go func() {
		done <- h.ctrl.SubmitCurrentAnswer(context.Background(), entity.TriggerManual, "")
	}()
	<-h.pipeline.inside

	// the countdown expiring while the manual answer is on the wire
	h.timer.FireStale()
	assert.NoError(t, h.ctrl.SubmitCurrentAnswer(context.Background(), entity.TriggerManual, ""))

	close(h.pipeline.gate)
	require.NoError(t, <-done)

	subs := h.pipeline.submissions()
	require.Len(t, subs, 1)
	assert.Equal(t, entity.TriggerManual, subs[0].Trigger)
	assert.Equal(t, 1, h.ctrl.Session().CurrentQuestionIndex)
}

func TestController_ConcurrentTriggersSubmitOnce(t *testing.T) {
	// without auto-begin the losers find nothing to submit afterwards
	h := newHarness(t, withoutAutoBegin())
	h.initialize(t)
	require.NoError(t, h.ctrl.BeginQuestionCycle(context.Background()))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = h.ctrl.SubmitCurrentAnswer(context.Background(), entity.TriggerManual, "")
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		h.timer.FireStale()
	}()
	wg.Wait()

	subs := h.pipeline.submissions()
	require.Len(t, subs, 1)
	assert.Equal(t, "q1", subs[0].QuestionID)

	s := h.ctrl.Session()
	assert.Equal(t, 1, s.CurrentQuestionIndex)
	assert.Equal(t, entity.SessionStatusAwaitingAnswer, s.Status)
}

func TestController_StaleTimeoutDoesNotSubmitNextQuestion(t *testing.T) {
	h := newHarness(t)
	h.initialize(t)

	h.answer(t)
	require.Equal(t, entity.SessionStatusRecording, h.ctrl.Status())

	// a tick from the first question arriving after the second began
	require.NoError(t, h.ctrl.submit(context.Background(), entity.TriggerTimeout, "", 1))

	assert.Len(t, h.pipeline.submissions(), 1)
	assert.Equal(t, entity.SessionStatusRecording, h.ctrl.Status())
}

func TestController_ExitReleasesFromEveryState(t *testing.T) {
	tests := []struct {
		name  string
		drive func(t *testing.T, h *harness) (finish func())
	}{
		{
			name:  "not started",
			drive: func(*testing.T, *harness) func() { return nil },
		},
		{
			name: "initializing",
			drive: func(t *testing.T, h *harness) func() {
				h.interview.getGate = make(chan struct{})
				errc := make(chan error, 1)
				go func() { errc <- h.ctrl.Initialize(context.Background(), "iv-1") }()
				require.Eventually(t, func() bool {
					return h.ctrl.Status() == entity.SessionStatusInitializing
				}, time.Second, time.Millisecond)
				return func() {
					close(h.interview.getGate)
					assert.ErrorIs(t, <-errc, entity.ErrSessionTerminal)
				}
			},
		},
		{
			name: "awaiting answer",
			drive: func(t *testing.T, h *harness) func() {
				h.ctrl.cfg.AutoBegin = false
				h.initialize(t)
				require.Equal(t, entity.SessionStatusAwaitingAnswer, h.ctrl.Status())
				return nil
			},
		},
		{
			name: "recording",
			drive: func(t *testing.T, h *harness) func() {
				h.initialize(t)
				require.Equal(t, entity.SessionStatusRecording, h.ctrl.Status())
				return nil
			},
		},
		{
			name: "submitting",
			drive: func(t *testing.T, h *harness) func() {
				h.pipeline.gate = make(chan struct{})
				h.pipeline.inside = make(chan struct{}, 1)
				h.initialize(t)
				errc := make(chan error, 1)
				go func() { errc <- h.ctrl.SubmitCurrentAnswer(context.Background(), entity.TriggerManual, "") }()
				<-h.pipeline.inside
				require.Equal(t, entity.SessionStatusSubmitting, h.ctrl.Status())
				return func() {
					close(h.pipeline.gate)
					assert.NoError(t, <-errc)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			finish := tt.drive(t, h)

			require.NoError(t, h.ctrl.RequestExit(context.Background()))
			assert.Equal(t, entity.SessionStatusExited, h.ctrl.Status())
			h.assertReleased(t)

			if finish != nil {
				finish()
			}

			// late results never resurrect the session
			assert.Equal(t, entity.SessionStatusExited, h.ctrl.Status())
			h.assertReleased(t)

			acquired, released := h.media.counts()
			assert.Equal(t, acquired, released)

			require.NoError(t, h.ctrl.RequestExit(context.Background()), "exit is idempotent")
		})
	}
}

func TestController_InFlightSubmissionSurvivesExit(t *testing.T) {
	h := newHarness(t)
	h.pipeline.gate = make(chan struct{})
	h.pipeline.inside = make(chan struct{}, 1)
	h.initialize(t)

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- h.ctrl.SubmitCurrentAnswer(ctx, entity.TriggerManual, "") }()
	<-h.pipeline.inside

	require.NoError(t, h.ctrl.RequestExit(context.Background()))
	cancel()
	close(h.pipeline.gate)
	require.NoError(t, <-errc)

	h.pipeline.mu.Lock()
	ctxErrs := append([]error(nil), h.pipeline.ctxErrs...)
	h.pipeline.mu.Unlock()
	require.Len(t, ctxErrs, 1)
	assert.NoError(t, ctxErrs[0], "the network call must not be cancelled by exit")

	s := h.ctrl.Session()
	assert.Equal(t, entity.SessionStatusExited, s.Status)
	assert.Equal(t, 0, s.CurrentQuestionIndex, "result after exit is discarded")
	assert.Equal(t, "q1", s.CurrentQuestion.ID)
}

func TestController_ExitWhileSegmentFinalizingSendsNothing(t *testing.T) {
	h := newHarness(t)
	h.recorder.stopGate = make(chan struct{})
	h.recorder.stopping = make(chan struct{}, 1)
	h.initialize(t)

	errc := make(chan error, 1)
	go func() { errc <- h.ctrl.SubmitCurrentAnswer(context.Background(), entity.TriggerManual, "") }()
	<-h.recorder.stopping

	require.NoError(t, h.ctrl.RequestExit(context.Background()))
	close(h.recorder.stopGate)

	assert.ErrorIs(t, <-errc, entity.ErrSessionTerminal)
	assert.Empty(t, h.pipeline.submissions())
	h.assertReleased(t)
}

func TestController_EmptySegmentIsRecordingFailure(t *testing.T) {
	h := newHarness(t)
	h.initialize(t)
	h.recorder.setStopErr(fmt.Errorf("%w: segment is empty", entity.ErrRecordingFailed))

	err := h.ctrl.SubmitCurrentAnswer(context.Background(), entity.TriggerManual, "")
	assert.ErrorIs(t, err, entity.ErrRecordingFailed)

	assert.Empty(t, h.pipeline.submissions(), "empty segments are never submitted")

	s := h.ctrl.Session()
	assert.Equal(t, entity.SessionStatusAwaitingAnswer, s.Status)
	assert.Equal(t, 0, s.CurrentQuestionIndex)
	require.NotNil(t, s.LastError)
	assert.False(t, h.timer.isRunning())

	errs := h.notifier.errors()
	require.Len(t, errs, 1)
	assert.Equal(t, "recording_failure", errs[0].Code)
	assert.True(t, errs[0].Recoverable)

	// re-record
	h.recorder.setStopErr(nil)
	require.NoError(t, h.ctrl.BeginQuestionCycle(context.Background()))
	h.answer(t)
	assert.Equal(t, 1, h.ctrl.Session().CurrentQuestionIndex)
}

func TestController_RecordingStartFailureIsLocal(t *testing.T) {
	h := newHarness(t)
	h.recorder.startErr = fmt.Errorf("%w: encoder busy", entity.ErrRecordingStart)

	require.NoError(t, h.ctrl.Initialize(context.Background(), "iv-1"))

	assert.Equal(t, entity.SessionStatusAwaitingAnswer, h.ctrl.Status())
	assert.False(t, h.timer.isRunning(), "timer runs only with a recording")

	errs := h.notifier.errors()
	require.Len(t, errs, 1)
	assert.Equal(t, "recording_start_failure", errs[0].Code)
	assert.True(t, errs[0].Recoverable)

	h.recorder.mu.Lock()
	h.recorder.startErr = nil
	h.recorder.mu.Unlock()

	require.NoError(t, h.ctrl.BeginQuestionCycle(context.Background()))
	assert.Equal(t, entity.SessionStatusRecording, h.ctrl.Status())
	assert.Nil(t, h.ctrl.Session().LastError)
}

func TestController_QuestionDurationOverridesLimit(t *testing.T) {
	h := newHarness(t)
	h.interview.maxDuration = 45
	h.initialize(t)
	assert.Equal(t, 45, h.timer.limit())

	h.answer(t)
	assert.Equal(t, 180, h.timer.limit(), "questions without their own limit use the configured one")
}

func TestController_TrackToggles(t *testing.T) {
	h := newHarness(t)

	assert.ErrorIs(t, h.ctrl.SetAudioEnabled(false), entity.ErrInvalidSessionStatus)

	h.initialize(t)
	stream := h.media.stream()

	require.NoError(t, h.ctrl.SetAudioEnabled(false))
	require.NoError(t, h.ctrl.SetVideoEnabled(false))
	assert.False(t, stream.TrackEnabled(media.TrackAudio))
	assert.False(t, stream.TrackEnabled(media.TrackVideo))
	assert.True(t, stream.Active(), "toggles never release the stream")

	snap := h.ctrl.Snapshot()
	require.NotNil(t, snap.Preview)
	assert.False(t, snap.Preview.AudioEnabled)
	assert.False(t, snap.Preview.VideoEnabled)

	require.NoError(t, h.ctrl.SetAudioEnabled(true))
	assert.True(t, stream.TrackEnabled(media.TrackAudio))

	require.NoError(t, h.ctrl.RequestExit(context.Background()))
	assert.ErrorIs(t, h.ctrl.SetVideoEnabled(true), entity.ErrSessionTerminal)
}

func TestController_CloseIsIdempotent(t *testing.T) {
	h := newHarness(t)
	h.initialize(t)

	h.ctrl.Close(context.Background())
	h.ctrl.Close(context.Background())

	assert.Equal(t, entity.SessionStatusExited, h.ctrl.Status())
	assert.Equal(t, 1, h.ctrl.Cleanup().Runs())
	_, released := h.media.counts()
	assert.Equal(t, 1, released)
}

func TestController_SnapshotCarriesTimerAndQuestion(t *testing.T) {
	h := newHarness(t)
	h.initialize(t)

	snap := h.ctrl.Snapshot()
	assert.Equal(t, entity.SessionStatusRecording, snap.Status)
	assert.Equal(t, entity.TimerState{RemainingSeconds: 180, Running: true}, snap.Timer)
	require.NotNil(t, snap.Question)
	assert.Equal(t, 1, snap.Question.Number)
	assert.Equal(t, "q1", snap.Question.ID)
	require.NotNil(t, snap.Preview)
	assert.True(t, snap.Preview.AudioEnabled)
}

func TestScenario_TimeoutOnFirstQuestion(t *testing.T) {
	h := newHarness(t, withoutAutoBegin())
	h.initialize(t)
	require.NoError(t, h.ctrl.BeginQuestionCycle(context.Background()))
	require.Equal(t, 180, h.timer.limit())

	require.True(t, h.timer.Expire())

	subs := h.pipeline.submissions()
	require.Len(t, subs, 1)
	assert.Equal(t, entity.TriggerTimeout, subs[0].Trigger)
	assert.Equal(t, "q1", subs[0].QuestionID)
	assert.NotEmpty(t, subs[0].MediaPayload)

	s := h.ctrl.Session()
	assert.Equal(t, 1, s.CurrentQuestionIndex)
	assert.Equal(t, "q2", s.CurrentQuestion.ID)
	assert.Equal(t, entity.SessionStatusAwaitingAnswer, s.Status)
	assert.False(t, h.timer.isRunning())
}

func TestScenario_TimeoutOnFirstQuestionAutoBegins(t *testing.T) {
	h := newHarness(t)
	h.initialize(t)

	require.True(t, h.timer.Expire())

	assert.Equal(t, []entity.SessionStatus{
		entity.SessionStatusInitializing,
		entity.SessionStatusAwaitingAnswer,
		entity.SessionStatusRecording,
		entity.SessionStatusSubmitting,
		entity.SessionStatusAwaitingAnswer,
		entity.SessionStatusRecording,
	}, h.notifier.statuses())
	assert.Equal(t, 1, h.ctrl.Session().CurrentQuestionIndex)
	assert.True(t, h.timer.isRunning(), "second question is being recorded")
}

func TestScenario_FinalQuestionCompletes(t *testing.T) {
	h := newHarness(t)
	h.initialize(t)

	for i := 0; i < testTotalQuestions-1; i++ {
		h.answer(t)
	}
	require.Equal(t, testTotalQuestions-1, h.ctrl.Session().CurrentQuestionIndex)

	h.answer(t)

	s := h.ctrl.Session()
	assert.Equal(t, entity.SessionStatusCompleted, s.Status)
	assert.Equal(t, 1, h.ctrl.Cleanup().Runs())
	h.assertReleased(t)

	h.ctrl.Close(context.Background())
	assert.Equal(t, entity.SessionStatusCompleted, h.ctrl.Status())
	assert.Equal(t, 1, h.ctrl.Cleanup().Runs(), "cleanup runs exactly once")
	assert.ErrorIs(t, h.ctrl.SubmitCurrentAnswer(context.Background(), entity.TriggerManual, ""), entity.ErrSessionTerminal)
}

func TestScenario_ExitWhileRecordingThirdQuestion(t *testing.T) {
	h := newHarness(t)
	h.initialize(t)
	h.answer(t)
	h.answer(t)

	s := h.ctrl.Session()
	require.Equal(t, entity.SessionStatusRecording, s.Status)
	require.Equal(t, "q3", s.CurrentQuestion.ID)

	require.NoError(t, h.ctrl.RequestExit(context.Background()))

	// the pending countdown firing late changes nothing
	h.timer.FireStale()

	for _, sub := range h.pipeline.submissions() {
		assert.NotEqual(t, "q3", sub.QuestionID)
	}
	assert.Len(t, h.pipeline.submissions(), 2)
	assert.Equal(t, entity.SessionStatusExited, h.ctrl.Status())
	h.assertReleased(t)
}

func TestScenario_SubmissionFailureOnFifthQuestion(t *testing.T) {
	h := newHarness(t)
	h.pipeline.failOn[5] = errors.New("503 service unavailable")
	h.initialize(t)

	for i := 0; i < 4; i++ {
		h.answer(t)
	}

	err := h.ctrl.SubmitCurrentAnswer(context.Background(), entity.TriggerManual, "")
	require.ErrorIs(t, err, entity.ErrSubmissionFailed)

	s := h.ctrl.Session()
	assert.Equal(t, 4, s.CurrentQuestionIndex)
	assert.Equal(t, "q5", s.CurrentQuestion.ID)
	assert.Equal(t, entity.SessionStatusAwaitingAnswer, s.Status)
	assert.False(t, h.timer.isRunning())

	errs := h.notifier.errors()
	require.Len(t, errs, 1)
	assert.Equal(t, "submission_failure", errs[0].Code)
	assert.True(t, errs[0].Recoverable)

	// the candidate records question 5 again
	require.NoError(t, h.ctrl.BeginQuestionCycle(context.Background()))
	h.answer(t)

	subs := h.pipeline.submissions()
	require.Len(t, subs, 6)
	assert.Equal(t, "q5", subs[4].QuestionID)
	assert.Equal(t, "q5", subs[5].QuestionID)
	assert.Equal(t, 5, h.ctrl.Session().CurrentQuestionIndex)
}
