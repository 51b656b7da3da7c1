package media

import (
	"encoding/binary"
	"math"
	"sync"
)

// Preview is the live monitor of a stream: microphone level and camera
// frame counter. It only reads; stopping it leaves the stream running.
type Preview struct {
	sub  *Subscription
	done chan struct{}

	mu          sync.RWMutex
	level       float64
	videoFrames int64
}

func StartPreview(stream *DeviceStream) (*Preview, error) {
	sub, err := stream.Subscribe(8)
	if err != nil {
		return nil, err
	}

	p := &Preview{
		sub:  sub,
		done: make(chan struct{}),
	}
	go p.run()

	return p, nil
}

// Level is the RMS of the latest audio frame, from 0 to 1.
func (p *Preview) Level() float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.level
}

func (p *Preview) VideoFrames() int64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.videoFrames
}

func (p *Preview) Stop() {
	p.sub.Close()
	<-p.done
}

func (p *Preview) run() {
	defer close(p.done)

	for frame := range p.sub.C() {
		p.mu.Lock()
		switch frame.Kind {
		case TrackVideo:
			p.videoFrames++
		default:
			p.level = rms(frame.Data)
		}
		p.mu.Unlock()
	}
}

func rms(pcm []byte) float64 {
	samples := len(pcm) / 2
	if samples == 0 {
		return 0
	}

	var sum float64
	for i := 0; i < samples; i++ {
		v := float64(int16(binary.LittleEndian.Uint16(pcm[i*2:]))) / math.MaxInt16
		sum += v * v
	}

	return math.Sqrt(sum / float64(samples))
}
