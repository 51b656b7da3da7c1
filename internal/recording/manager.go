package recording

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/futig/interview-orchestrator/internal/entity"
	"github.com/futig/interview-orchestrator/internal/media"
	"go.uber.org/zap"
)

const (
	defaultTimeSlice  = time.Second
	subscriptionDepth = 256
)

// Manager records one segment at a time from a shared device stream.
type Manager struct {
	options   entity.RecordingOptions
	encoder   Encoder
	timeSlice time.Duration
	logger    *zap.Logger

	mu     sync.Mutex
	active *segment
}

func NewManager(options entity.RecordingOptions, logger *zap.Logger) (*Manager, error) {
	encoder, err := NewEncoder(options.MimeType)
	if err != nil {
		return nil, err
	}

	timeSlice := time.Duration(options.TimeSliceMs) * time.Millisecond
	if timeSlice <= 0 {
		timeSlice = defaultTimeSlice
	}

	return &Manager{
		options:   options,
		encoder:   encoder,
		timeSlice: timeSlice,
		logger:    logger.With(zap.String("component", "recording")),
	}, nil
}

// StartSegment begins buffering audio from stream. Only one segment may be
// active at a time.
func (m *Manager) StartSegment(stream *media.DeviceStream) error {
	if stream == nil {
		return fmt.Errorf("%w: no device stream", entity.ErrRecordingStart)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active != nil {
		return fmt.Errorf("%w: segment already active", entity.ErrRecordingStart)
	}

	sub, err := stream.Subscribe(subscriptionDepth)
	if err != nil {
		return fmt.Errorf("%w: %v", entity.ErrRecordingStart, err)
	}

	seg := &segment{
		stream:    stream,
		sub:       sub,
		format:    stream.Format(),
		timeSlice: m.timeSlice,
		started:   time.Now(),
		done:      make(chan struct{}),
	}
	m.active = seg

	go seg.run()

	m.logger.Debug("segment started",
		zap.String("stream_id", stream.ID()),
		zap.String("mime_type", m.encoder.MimeType()),
		zap.Duration("time_slice", m.timeSlice),
	)

	return nil
}

// StopSegment flushes everything buffered so far and returns the encoded
// segment. An empty or truncated capture is reported as ErrRecordingFailed.
func (m *Manager) StopSegment(ctx context.Context) (entity.RecordingSegment, error) {
	seg := m.take()
	if seg == nil {
		return entity.RecordingSegment{}, fmt.Errorf("%w: no active segment", entity.ErrRecordingFailed)
	}

	// checked before detaching: a stream that ended on its own left a partial segment
	interrupted := !seg.stream.Active()

	seg.sub.Close()

	select {
	case <-seg.done:
	case <-ctx.Done():
		return entity.RecordingSegment{}, fmt.Errorf("%w: %v", entity.ErrRecordingFailed, ctx.Err())
	}

	if interrupted {
		return entity.RecordingSegment{}, fmt.Errorf("%w: capture ended before the segment was stopped", entity.ErrRecordingFailed)
	}

	if dropped := seg.sub.Dropped(); dropped > 0 {
		m.logger.Warn("segment lost frames", zap.Int64("dropped", dropped))
	}

	pcm := seg.pcm()
	if len(pcm) == 0 {
		return entity.RecordingSegment{}, fmt.Errorf("%w: segment is empty", entity.ErrRecordingFailed)
	}

	payload, err := m.encoder.Encode(pcm, seg.format)
	if err != nil {
		return entity.RecordingSegment{}, fmt.Errorf("%w: encode: %v", entity.ErrRecordingFailed, err)
	}

	if m.options.MaxPayloadBytes > 0 && int64(len(payload)) > m.options.MaxPayloadBytes {
		return entity.RecordingSegment{}, fmt.Errorf("%w: %w: %d bytes exceeds %d",
			entity.ErrRecordingFailed, entity.ErrPayloadTooLarge, len(payload), m.options.MaxPayloadBytes)
	}

	result := entity.RecordingSegment{
		Payload:          payload,
		MimeType:         m.encoder.MimeType(),
		ApproxDurationMs: int64(len(pcm)) * 1000 / int64(max(seg.format.BytesPerSecond(), 1)),
	}

	m.logger.Debug("segment stopped",
		zap.Int("payload_bytes", len(result.Payload)),
		zap.Int64("duration_ms", result.ApproxDurationMs),
		zap.Int("chunks", seg.chunkCount()),
	)

	return result, nil
}

// Discard stops the active segment and drops its data. It reports whether
// a segment was active.
func (m *Manager) Discard() bool {
	seg := m.take()
	if seg == nil {
		return false
	}

	seg.sub.Close()
	<-seg.done

	m.logger.Debug("segment discarded", zap.Duration("elapsed", time.Since(seg.started)))
	return true
}

func (m *Manager) Active() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active != nil
}

func (m *Manager) MimeType() string {
	return m.encoder.MimeType()
}

func (m *Manager) take() *segment {
	m.mu.Lock()
	defer m.mu.Unlock()

	seg := m.active
	m.active = nil
	return seg
}

// segment collects audio frames and moves them into chunks once per time slice.
type segment struct {
	stream    *media.DeviceStream
	sub       *media.Subscription
	format    media.Format
	timeSlice time.Duration
	started   time.Time
	done      chan struct{}

	mu      sync.Mutex
	pending bytes.Buffer
	chunks  [][]byte
}

func (s *segment) run() {
	defer close(s.done)

	ticker := time.NewTicker(s.timeSlice)
	defer ticker.Stop()

	for {
		select {
		case frame, ok := <-s.sub.C():
			if !ok {
				s.flush()
				return
			}
			if frame.Kind == media.TrackAudio {
				s.mu.Lock()
				s.pending.Write(frame.Data)
				s.mu.Unlock()
			}
		case <-ticker.C:
			s.flush()
		}
	}
}

func (s *segment) flush() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pending.Len() == 0 {
		return
	}
	chunk := make([]byte, s.pending.Len())
	copy(chunk, s.pending.Bytes())
	s.chunks = append(s.chunks, chunk)
	s.pending.Reset()
}

func (s *segment) pcm() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()

	size := 0
	for _, c := range s.chunks {
		size += len(c)
	}
	out := make([]byte, 0, size)
	for _, c := range s.chunks {
		out = append(out, c...)
	}
	return out
}

func (s *segment) chunkCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.chunks)
}
