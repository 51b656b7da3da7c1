package session

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/futig/interview-orchestrator/internal/entity"
	"github.com/futig/interview-orchestrator/internal/media"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testTotalQuestions = 13

func testQuestion(index int) entity.Question {
	round := entity.RoundTechnical
	if index >= 8 {
		round = entity.RoundHR
	}
	return entity.Question{
		ID:         fmt.Sprintf("q%d", index+1),
		Text:       fmt.Sprintf("Question number %d", index+1),
		Difficulty: entity.DifficultyMedium,
		RoundType:  round,
		Order:      index,
	}
}

type fakeInterview struct {
	getErr      error
	startErr    error
	getGate     chan struct{}
	maxDuration int
	// index the service reports for an interview already under way
	serverIndex int

	mu         sync.Mutex
	getCalls   int
	startCalls int
}

func (f *fakeInterview) GetInterview(ctx context.Context, interviewID string) (*entity.Interview, error) {
	f.mu.Lock()
	f.getCalls++
	f.mu.Unlock()

	if f.getGate != nil {
		select {
		case <-f.getGate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.getErr != nil {
		return nil, f.getErr
	}

	total := testTotalQuestions
	return &entity.Interview{
		ID:                   interviewID,
		JobRole:              "Backend Engineer",
		Status:               "pending",
		CurrentQuestionIndex: f.serverIndex,
		TotalQuestions:       &total,
	}, nil
}

func (f *fakeInterview) StartInterview(_ context.Context, _ string) (*entity.Question, error) {
	f.mu.Lock()
	f.startCalls++
	f.mu.Unlock()

	if f.startErr != nil {
		return nil, f.startErr
	}
	q := testQuestion(0)
	q.MaxDurationSeconds = f.maxDuration
	return &q, nil
}

// spyMedia counts calls around a real manager backed by the synthetic device.
type spyMedia struct {
	*media.Manager
	acquireErr error

	mu       sync.Mutex
	acquired int
	released int
	last     *media.DeviceStream
}

func newSpyMedia() *spyMedia {
	device := media.NewSyntheticDevice(media.WithChunk(5 * time.Millisecond))
	return &spyMedia{Manager: media.NewManager(device, zap.NewNop())}
}

func (s *spyMedia) Acquire(ctx context.Context, constraints entity.MediaConstraints) (*media.DeviceStream, error) {
	if s.acquireErr != nil {
		return nil, s.acquireErr
	}

	stream, err := s.Manager.Acquire(ctx, constraints)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.acquired++
	s.last = stream
	s.mu.Unlock()

	return stream, nil
}

func (s *spyMedia) Release(stream *media.DeviceStream) bool {
	released := s.Manager.Release(stream)
	if released {
		s.mu.Lock()
		s.released++
		s.mu.Unlock()
	}
	return released
}

func (s *spyMedia) counts() (acquired, released int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.acquired, s.released
}

func (s *spyMedia) stream() *media.DeviceStream {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

type fakeRecorder struct {
	startErr error
	stopErr  error
	stopGate chan struct{}
	stopping chan struct{}

	mu       sync.Mutex
	active   bool
	starts   int
	stops    int
	discards int
}

func (r *fakeRecorder) StartSegment(stream *media.DeviceStream) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.startErr != nil {
		return r.startErr
	}
	if stream == nil {
		return fmt.Errorf("%w: no device stream", entity.ErrRecordingStart)
	}
	if r.active {
		return fmt.Errorf("%w: segment already active", entity.ErrRecordingStart)
	}
	r.active = true
	r.starts++
	return nil
}

func (r *fakeRecorder) StopSegment(ctx context.Context) (entity.RecordingSegment, error) {
	r.mu.Lock()
	active := r.active
	r.active = false
	r.stops++
	r.mu.Unlock()

	if r.stopping != nil {
		r.stopping <- struct{}{}
	}
	if r.stopGate != nil {
		select {
		case <-r.stopGate:
		case <-ctx.Done():
			return entity.RecordingSegment{}, ctx.Err()
		}
	}

	if !active {
		return entity.RecordingSegment{}, fmt.Errorf("%w: no active segment", entity.ErrRecordingFailed)
	}
	if r.stopErr != nil {
		return entity.RecordingSegment{}, r.stopErr
	}
	return entity.RecordingSegment{Payload: []byte("RIFF-segment"), MimeType: "audio/wav", ApproxDurationMs: 1500}, nil
}

func (r *fakeRecorder) Discard() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.active {
		return false
	}
	r.active = false
	r.discards++
	return true
}

func (r *fakeRecorder) isActive() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active
}

func (r *fakeRecorder) setStopErr(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopErr = err
}

// fakeTimer lets a test decide when the countdown expires.
type fakeTimer struct {
	mu          sync.Mutex
	running     bool
	remaining   int
	lastSeconds int
	onTimeout   func()
	starts      int
	stops       int
}

func (t *fakeTimer) Start(seconds int, onTimeout func()) error {
	if seconds < 1 {
		return fmt.Errorf("%w: %d", entity.ErrInvalidParameter, seconds)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.running = true
	t.remaining = seconds
	t.lastSeconds = seconds
	t.onTimeout = onTimeout
	t.starts++
	return nil
}

func (t *fakeTimer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.running {
		t.stops++
	}
	t.running = false
}

func (t *fakeTimer) State() entity.TimerState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return entity.TimerState{RemainingSeconds: t.remaining, Running: t.running}
}

// Expire runs the countdown to zero and fires the callback like the real timer.
func (t *fakeTimer) Expire() bool {
	t.mu.Lock()
	if !t.running {
		t.mu.Unlock()
		return false
	}
	t.running = false
	t.remaining = 0
	cb := t.onTimeout
	t.mu.Unlock()

	cb()
	return true
}

// FireStale invokes the last callback even if the countdown was stopped,
// the way a tick racing with Stop would.
func (t *fakeTimer) FireStale() {
	t.mu.Lock()
	cb := t.onTimeout
	t.mu.Unlock()

	if cb != nil {
		cb()
	}
}

func (t *fakeTimer) isRunning() bool {
	return t.State().Running
}

func (t *fakeTimer) limit() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastSeconds
}

// fakePipeline plays the evaluator: it accepts answers until the last
// question and fails the calls listed in failOn (1-based call numbers).
type fakePipeline struct {
	total  int
	failOn map[int]error
	gate   chan struct{}
	inside chan struct{}

	mu       sync.Mutex
	calls    []entity.AnswerSubmission
	accepted int
	ctxErrs  []error
}

func newFakePipeline(total int) *fakePipeline {
	return &fakePipeline{total: total, failOn: map[int]error{}}
}

func (p *fakePipeline) Submit(ctx context.Context, answer entity.AnswerSubmission) (entity.SubmissionResult, error) {
	p.mu.Lock()
	p.calls = append(p.calls, answer)
	call := len(p.calls)
	p.mu.Unlock()

	if p.inside != nil {
		p.inside <- struct{}{}
	}
	if p.gate != nil {
		<-p.gate
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.ctxErrs = append(p.ctxErrs, ctx.Err())

	if err, ok := p.failOn[call]; ok {
		return entity.SubmissionResult{}, fmt.Errorf("%w: %w", entity.ErrSubmissionFailed, err)
	}

	p.accepted++
	if p.accepted >= p.total {
		return entity.CompletedResult("Thank you"), nil
	}
	return entity.NextQuestionResult(testQuestion(p.accepted)), nil
}

func (p *fakePipeline) submissions() []entity.AnswerSubmission {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]entity.AnswerSubmission(nil), p.calls...)
}

type spyNotifier struct {
	mu            sync.Mutex
	notifications []entity.Notification
}

func (s *spyNotifier) Notify(_ context.Context, n entity.Notification) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifications = append(s.notifications, n)
}

func (s *spyNotifier) statuses() []entity.SessionStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]entity.SessionStatus, 0, len(s.notifications))
	for _, n := range s.notifications {
		if len(out) == 0 || out[len(out)-1] != n.Status {
			out = append(out, n.Status)
		}
	}
	return out
}

func (s *spyNotifier) countMessage(message string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, n := range s.notifications {
		if n.Message == message {
			count++
		}
	}
	return count
}

func (s *spyNotifier) find(message string) entity.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, n := range s.notifications {
		if n.Message == message {
			return n
		}
	}
	return entity.Notification{}
}

func (s *spyNotifier) errors() []entity.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []entity.Notification
	for _, n := range s.notifications {
		if n.Event == entity.CallbackEventTypeError {
			out = append(out, n)
		}
	}
	return out
}

type harness struct {
	ctrl      *Controller
	interview *fakeInterview
	media     *spyMedia
	recorder  *fakeRecorder
	timer     *fakeTimer
	pipeline  *fakePipeline
	notifier  *spyNotifier
}

type harnessOption func(*harness, *ControllerConfig)

func withoutAutoBegin() harnessOption {
	return func(_ *harness, cfg *ControllerConfig) { cfg.AutoBegin = false }
}

func newHarness(t *testing.T, opts ...harnessOption) *harness {
	t.Helper()

	h := &harness{
		interview: &fakeInterview{},
		media:     newSpyMedia(),
		recorder:  &fakeRecorder{},
		timer:     &fakeTimer{},
		pipeline:  newFakePipeline(testTotalQuestions),
		notifier:  &spyNotifier{},
	}

	cfg := ControllerConfig{
		QuestionTimeLimit: 180,
		TotalQuestions:    testTotalQuestions,
		AutoBegin:         true,
		SubmitTimeout:     5 * time.Second,
		Constraints: entity.MediaConstraints{
			VideoEnabled:    true,
			Width:           32,
			Height:          24,
			FrameRate:       10,
			AudioSampleRate: 8000,
			AudioChannels:   1,
		},
	}
	for _, opt := range opts {
		opt(h, &cfg)
	}

	h.ctrl = NewController(cfg, Dependencies{
		Interview: h.interview,
		Media:     h.media,
		Recorder:  h.recorder,
		Timer:     h.timer,
		Pipeline:  h.pipeline,
		Notifier:  h.notifier,
	}, zap.NewNop())

	t.Cleanup(func() {
		h.ctrl.Close(context.Background())
		h.media.Shutdown()
	})

	return h
}

func (h *harness) initialize(t *testing.T) {
	t.Helper()
	require.NoError(t, h.ctrl.Initialize(context.Background(), "iv-1"))
}

// answer submits the current question manually and checks it was accepted.
func (h *harness) answer(t *testing.T) {
	t.Helper()
	require.Equal(t, entity.SessionStatusRecording, h.ctrl.Status())
	require.NoError(t, h.ctrl.SubmitCurrentAnswer(context.Background(), entity.TriggerManual, ""))
}

// assertReleased checks everything the session held is gone.
func (h *harness) assertReleased(t *testing.T) {
	t.Helper()

	require.False(t, h.timer.isRunning(), "timer still running")
	require.False(t, h.recorder.isActive(), "recording still active")
	require.Zero(t, h.media.Active(), "device stream still held")
	if s := h.media.stream(); s != nil {
		require.False(t, s.Active(), "device stream still capturing")
	}
}
