package session

import (
	"context"
	"sync"

	"github.com/futig/interview-orchestrator/internal/media"
	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"
)

// CleanupCoordinator is the single teardown path of a session: it stops the
// timer, drops any active recording and releases the device stream.
type CleanupCoordinator struct {
	timer    QuestionTimer
	recorder Recorder
	media    MediaCapture

	mu      sync.Mutex
	stream  *media.DeviceStream
	preview *media.Preview
	runs    int
}

func NewCleanupCoordinator(timer QuestionTimer, recorder Recorder, capture MediaCapture) *CleanupCoordinator {
	return &CleanupCoordinator{
		timer:    timer,
		recorder: recorder,
		media:    capture,
	}
}

// Bind hands the acquired stream and its preview over for release.
func (cc *CleanupCoordinator) Bind(stream *media.DeviceStream, preview *media.Preview) {
	cc.mu.Lock()
	defer cc.mu.Unlock()

	cc.stream = stream
	cc.preview = preview
}

// Cleanup is idempotent. It reports whether anything was still held.
func (cc *CleanupCoordinator) Cleanup(ctx context.Context) bool {
	timerRunning := cc.timer.State().Running
	cc.timer.Stop()

	discarded := cc.recorder.Discard()

	cc.mu.Lock()
	stream, preview := cc.stream, cc.preview
	cc.stream, cc.preview = nil, nil
	cc.mu.Unlock()

	if preview != nil {
		preview.Stop()
	}

	released := false
	if stream != nil {
		released = cc.media.Release(stream)
	}

	worked := timerRunning || discarded || released
	if worked {
		cc.mu.Lock()
		cc.runs++
		cc.mu.Unlock()

		ctxzap.Info(ctx, "session resources released",
			zap.Bool("timer_stopped", timerRunning),
			zap.Bool("recording_discarded", discarded),
			zap.Bool("stream_released", released),
		)
	}

	return worked
}

// Runs counts the Cleanup calls that actually released something.
func (cc *CleanupCoordinator) Runs() int {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	return cc.runs
}
