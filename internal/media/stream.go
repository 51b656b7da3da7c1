package media

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const defaultSubscriptionBuffer = 64

// DeviceStream is a live capture shared read-only through subscriptions.
// Only the Manager that acquired it can stop it.
type DeviceStream struct {
	id     string
	format Format
	source Source
	logger *zap.Logger

	mu           sync.RWMutex
	audioEnabled bool
	videoEnabled bool
	subs         map[*Subscription]struct{}
	stopped      bool

	stopOnce sync.Once
	done     chan struct{}
}

func newDeviceStream(source Source, logger *zap.Logger) *DeviceStream {
	s := &DeviceStream{
		id:           uuid.NewString(),
		format:       source.Format(),
		source:       source,
		audioEnabled: true,
		videoEnabled: source.Format().VideoEnabled,
		subs:         make(map[*Subscription]struct{}),
		done:         make(chan struct{}),
	}
	s.logger = logger.With(zap.String("stream_id", s.id))

	go s.pump()

	return s
}

func (s *DeviceStream) ID() string {
	return s.id
}

func (s *DeviceStream) Format() Format {
	return s.format
}

// Done is closed once the stream has stopped delivering frames.
func (s *DeviceStream) Done() <-chan struct{} {
	return s.done
}

func (s *DeviceStream) Active() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return !s.stopped
}

func (s *DeviceStream) TrackEnabled(kind TrackKind) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if kind == TrackVideo {
		return s.videoEnabled
	}
	return s.audioEnabled
}

// Subscribe registers a reader. Frames that do not fit into the buffer
// are dropped for that subscriber only.
func (s *DeviceStream) Subscribe(buffer int) (*Subscription, error) {
	if buffer <= 0 {
		buffer = defaultSubscriptionBuffer
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return nil, ErrStreamReleased
	}

	sub := &Subscription{
		stream: s,
		ch:     make(chan Frame, buffer),
	}
	s.subs[sub] = struct{}{}

	return sub, nil
}

func (s *DeviceStream) setTrackEnabled(kind TrackKind, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return ErrStreamReleased
	}

	switch kind {
	case TrackVideo:
		s.videoEnabled = enabled && s.format.VideoEnabled
	default:
		s.audioEnabled = enabled
	}

	return nil
}

// stop closes the source and every subscription. Safe to call repeatedly;
// only the first call does anything and reports true.
func (s *DeviceStream) stop() bool {
	stopped := false
	s.stopOnce.Do(func() {
		stopped = true

		s.mu.Lock()
		s.stopped = true
		s.mu.Unlock()

		if err := s.source.Close(); err != nil {
			s.logger.Warn("failed to close capture source", zap.Error(err))
		}
		<-s.done
	})
	return stopped
}

func (s *DeviceStream) pump() {
	defer s.closeSubscriptions()

	for frame := range s.source.Frames() {
		s.mu.RLock()
		if s.stopped {
			s.mu.RUnlock()
			continue
		}

		out, deliver := s.applyEnablement(frame)
		if deliver {
			for sub := range s.subs {
				sub.offer(out)
			}
		}
		s.mu.RUnlock()
	}
}

// applyEnablement must be called with mu held. Disabled audio turns into
// silence so recordings keep their timing, disabled video is dropped.
func (s *DeviceStream) applyEnablement(frame Frame) (Frame, bool) {
	switch frame.Kind {
	case TrackVideo:
		return frame, s.videoEnabled
	default:
		if !s.audioEnabled {
			frame.Data = make([]byte, len(frame.Data))
		}
		return frame, true
	}
}

func (s *DeviceStream) closeSubscriptions() {
	s.mu.Lock()
	s.stopped = true
	for sub := range s.subs {
		sub.closeLocked()
	}
	s.subs = make(map[*Subscription]struct{})
	s.mu.Unlock()

	close(s.done)
}

// Subscription is one reader of a DeviceStream.
type Subscription struct {
	stream  *DeviceStream
	ch      chan Frame
	closed  bool
	dropped atomic.Int64
}

// C delivers frames until the subscription is closed or the stream stops.
func (sub *Subscription) C() <-chan Frame {
	return sub.ch
}

// Close detaches the reader; frames already buffered stay readable from C.
func (sub *Subscription) Close() {
	s := sub.stream
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.subs, sub)
	sub.closeLocked()
}

// Dropped reports how many frames did not fit into the buffer.
func (sub *Subscription) Dropped() int64 {
	return sub.dropped.Load()
}

func (sub *Subscription) closeLocked() {
	if sub.closed {
		return
	}
	sub.closed = true
	close(sub.ch)
}

// offer runs under the stream read lock.
func (sub *Subscription) offer(frame Frame) {
	select {
	case sub.ch <- frame:
	default:
		sub.dropped.Add(1)
	}
}
