package media

import (
	"context"
	"encoding/binary"
	"math"
	"sync"
	"time"

	"github.com/futig/interview-orchestrator/internal/entity"
)

const (
	DeviceSynthetic = "synthetic"

	defaultSyntheticChunk = 20 * time.Millisecond
	defaultToneHz         = 440.0
	toneAmplitude         = 0.3
)

// SyntheticDevice produces a sine tone and flat grey video in real time.
// It stands in for hardware in mock mode and in tests.
type SyntheticDevice struct {
	chunk   time.Duration
	toneHz  float64
	openErr error
}

type SyntheticOption func(*SyntheticDevice)

// WithChunk sets how much audio each frame carries.
func WithChunk(d time.Duration) SyntheticOption {
	return func(s *SyntheticDevice) {
		if d > 0 {
			s.chunk = d
		}
	}
}

func WithToneFrequency(hz float64) SyntheticOption {
	return func(s *SyntheticDevice) {
		s.toneHz = hz
	}
}

// WithOpenError makes every Open fail with err.
func WithOpenError(err error) SyntheticOption {
	return func(s *SyntheticDevice) {
		s.openErr = err
	}
}

func NewSyntheticDevice(opts ...SyntheticOption) *SyntheticDevice {
	d := &SyntheticDevice{
		chunk:  defaultSyntheticChunk,
		toneHz: defaultToneHz,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *SyntheticDevice) Name() string {
	return DeviceSynthetic
}

func (d *SyntheticDevice) Open(ctx context.Context, constraints entity.MediaConstraints) (Source, error) {
	if d.openErr != nil {
		return nil, d.openErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	format := formatFromConstraints(constraints)
	src := &syntheticSource{
		format: format,
		chunk:  d.chunk,
		toneHz: d.toneHz,
		frames: make(chan Frame, 16),
		stop:   make(chan struct{}),
	}
	if format.VideoEnabled {
		// yuv420p: full luma plane plus two quarter chroma planes
		src.picture = make([]byte, format.Width*format.Height*3/2)
		for i := range src.picture {
			src.picture[i] = 0x80
		}
	}

	go src.run()

	return src, nil
}

type syntheticSource struct {
	format  Format
	chunk   time.Duration
	toneHz  float64
	picture []byte

	frames    chan Frame
	stop      chan struct{}
	closeOnce sync.Once
}

func (s *syntheticSource) Format() Format {
	return s.format
}

func (s *syntheticSource) Frames() <-chan Frame {
	return s.frames
}

func (s *syntheticSource) Close() error {
	s.closeOnce.Do(func() {
		close(s.stop)
	})
	return nil
}

func (s *syntheticSource) run() {
	defer close(s.frames)

	audio := time.NewTicker(s.chunk)
	defer audio.Stop()

	var video <-chan time.Time
	if s.format.VideoEnabled {
		vt := time.NewTicker(time.Second / time.Duration(s.format.FrameRate))
		defer vt.Stop()
		video = vt.C
	}

	started := time.Now()
	samplesPerChunk := int(int64(s.format.SampleRate) * int64(s.chunk) / int64(time.Second))
	var phase float64

	for {
		select {
		case <-s.stop:
			return
		case now := <-audio.C:
			var data []byte
			data, phase = s.tone(samplesPerChunk, phase)
			if !s.send(Frame{Kind: TrackAudio, Data: data, Timestamp: now.Sub(started)}) {
				return
			}
		case now := <-video:
			if !s.send(Frame{Kind: TrackVideo, Data: s.picture, Timestamp: now.Sub(started)}) {
				return
			}
		}
	}
}

func (s *syntheticSource) send(frame Frame) bool {
	select {
	case s.frames <- frame:
		return true
	case <-s.stop:
		return false
	}
}

func (s *syntheticSource) tone(samples int, phase float64) ([]byte, float64) {
	channels := s.format.Channels
	buf := make([]byte, samples*channels*2)
	step := 2 * math.Pi * s.toneHz / float64(s.format.SampleRate)

	for i := 0; i < samples; i++ {
		v := int16(toneAmplitude * math.MaxInt16 * math.Sin(phase))
		for ch := 0; ch < channels; ch++ {
			binary.LittleEndian.PutUint16(buf[(i*channels+ch)*2:], uint16(v))
		}
		phase += step
		if phase > 2*math.Pi {
			phase -= 2 * math.Pi
		}
	}

	return buf, phase
}

func formatFromConstraints(c entity.MediaConstraints) Format {
	f := Format{
		SampleRate:   c.AudioSampleRate,
		Channels:     c.AudioChannels,
		VideoEnabled: c.VideoEnabled,
		Width:        c.Width,
		Height:       c.Height,
		FrameRate:    c.FrameRate,
	}
	if f.SampleRate <= 0 {
		f.SampleRate = 48000
	}
	if f.Channels <= 0 {
		f.Channels = 1
	}
	if f.FrameRate <= 0 {
		f.FrameRate = 30
	}
	if f.Width <= 0 || f.Height <= 0 {
		f.Width, f.Height = 640, 480
	}
	return f
}
