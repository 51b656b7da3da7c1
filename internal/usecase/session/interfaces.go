package session

import (
	"context"

	"github.com/futig/interview-orchestrator/internal/entity"
	"github.com/futig/interview-orchestrator/internal/media"
)

type InterviewConnector interface {
	GetInterview(ctx context.Context, interviewID string) (*entity.Interview, error)
	StartInterview(ctx context.Context, interviewID string) (*entity.Question, error)
}

type MediaCapture interface {
	Acquire(ctx context.Context, constraints entity.MediaConstraints) (*media.DeviceStream, error)
	Release(stream *media.DeviceStream) bool
	SetTrackEnabled(stream *media.DeviceStream, kind media.TrackKind, enabled bool) error
}

type Recorder interface {
	StartSegment(stream *media.DeviceStream) error
	StopSegment(ctx context.Context) (entity.RecordingSegment, error)
	Discard() bool
}

type QuestionTimer interface {
	Start(seconds int, onTimeout func()) error
	Stop()
	State() entity.TimerState
}

type SubmissionPipeline interface {
	Submit(ctx context.Context, answer entity.AnswerSubmission) (entity.SubmissionResult, error)
}

// Notifier surfaces session events to the candidate. Implementations must not block.
type Notifier interface {
	Notify(ctx context.Context, n entity.Notification)
}
