package media

import (
	"context"
	"fmt"
	"sync"

	"github.com/futig/interview-orchestrator/internal/entity"
	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"
)

// Manager acquires device streams and is the only component allowed to stop them.
type Manager struct {
	device Device
	logger *zap.Logger

	mu      sync.Mutex
	streams map[string]*DeviceStream
}

func NewManager(device Device, logger *zap.Logger) *Manager {
	return &Manager{
		device:  device,
		logger:  logger.With(zap.String("device", device.Name())),
		streams: make(map[string]*DeviceStream),
	}
}

func (m *Manager) Acquire(ctx context.Context, constraints entity.MediaConstraints) (*DeviceStream, error) {
	ctxzap.Info(ctx, "acquiring capture devices",
		zap.String("device", m.device.Name()),
		zap.Bool("video", constraints.VideoEnabled),
		zap.Int("sample_rate", constraints.AudioSampleRate),
	)

	source, err := m.device.Open(ctx, constraints)
	if err != nil {
		ctxzap.Warn(ctx, "capture acquisition failed", zap.Error(err))
		return nil, fmt.Errorf("acquire %s: %w", m.device.Name(), err)
	}

	stream := newDeviceStream(source, m.logger)

	m.mu.Lock()
	m.streams[stream.ID()] = stream
	m.mu.Unlock()

	ctxzap.Info(ctx, "capture devices acquired", zap.String("stream_id", stream.ID()))

	return stream, nil
}

// Release stops every track of the stream. Releasing an already released
// or nil stream is a no-op; the result reports whether anything was stopped.
func (m *Manager) Release(stream *DeviceStream) bool {
	if stream == nil {
		return false
	}

	m.mu.Lock()
	delete(m.streams, stream.ID())
	m.mu.Unlock()

	if !stream.stop() {
		return false
	}

	m.logger.Info("capture devices released", zap.String("stream_id", stream.ID()))
	return true
}

// SetTrackEnabled mutes or unmutes one track without touching the devices.
func (m *Manager) SetTrackEnabled(stream *DeviceStream, kind TrackKind, enabled bool) error {
	if stream == nil {
		return ErrStreamReleased
	}
	return stream.setTrackEnabled(kind, enabled)
}

// Active reports how many streams are currently held.
func (m *Manager) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.streams)
}

// Shutdown releases every stream still held, used when the process stops.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	streams := make([]*DeviceStream, 0, len(m.streams))
	for _, s := range m.streams {
		streams = append(streams, s)
	}
	m.mu.Unlock()

	for _, s := range streams {
		m.Release(s)
	}
}
