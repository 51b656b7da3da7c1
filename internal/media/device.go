package media

import (
	"context"
	"errors"
	"time"

	"github.com/futig/interview-orchestrator/internal/entity"
)

var ErrStreamReleased = errors.New("device stream released")

type TrackKind string

const (
	TrackAudio TrackKind = "audio"
	TrackVideo TrackKind = "video"
)

// Frame is one chunk of captured media. Audio frames carry interleaved
// signed 16-bit little-endian PCM, video frames carry one raw yuv420p picture.
// Data is shared between subscribers and must not be modified.
type Frame struct {
	Kind      TrackKind
	Data      []byte
	Timestamp time.Duration
}

// Format describes what a source actually delivers
type Format struct {
	SampleRate   int
	Channels     int
	VideoEnabled bool
	Width        int
	Height       int
	FrameRate    int
}

// BytesPerSecond of the audio track.
func (f Format) BytesPerSecond() int {
	return f.SampleRate * f.Channels * 2
}

// Device opens capture hardware. Open fails with entity.ErrPermissionDenied
// or entity.ErrDeviceUnavailable.
type Device interface {
	Name() string
	Open(ctx context.Context, constraints entity.MediaConstraints) (Source, error)
}

// Source is an opened capture. Frames is closed when the capture ends.
type Source interface {
	Format() Format
	Frames() <-chan Frame
	Close() error
}
