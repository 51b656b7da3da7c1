package media

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/futig/interview-orchestrator/internal/entity"
	"go.uber.org/zap"
)

const (
	DeviceFFmpeg = "ffmpeg"

	ffmpegStartupWindow = 3 * time.Second
	ffmpegStopTimeout   = 2 * time.Second
	audioChunksPerSec   = 50
	stderrTailLines     = 20
)

// FFmpegDevice captures the microphone through ALSA and the camera through
// v4l2 by running ffmpeg and reading raw frames from its stdout.
type FFmpegDevice struct {
	path    string
	startup time.Duration
	logger  *zap.Logger
}

func NewFFmpegDevice(path string, logger *zap.Logger) *FFmpegDevice {
	if path == "" {
		path = "ffmpeg"
	}
	return &FFmpegDevice{
		path:    path,
		startup: ffmpegStartupWindow,
		logger:  logger.With(zap.String("component", "ffmpeg_device")),
	}
}

func (d *FFmpegDevice) Name() string {
	return DeviceFFmpeg
}

func (d *FFmpegDevice) Open(ctx context.Context, constraints entity.MediaConstraints) (Source, error) {
	bin, err := exec.LookPath(d.path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", entity.ErrDeviceUnavailable, err)
	}

	format := formatFromConstraints(constraints)
	src := &ffmpegSource{
		format: format,
		frames: make(chan Frame, 64),
		stop:   make(chan struct{}),
		start:  time.Now(),
	}

	audioChunk := format.BytesPerSecond() / audioChunksPerSec
	audio, err := d.startCapture(ctx, src, TrackAudio, bin, d.audioArgs(constraints, format), audioChunk)
	if err != nil {
		return nil, err
	}
	src.captures = append(src.captures, audio)

	if format.VideoEnabled {
		video, err := d.startCapture(ctx, src, TrackVideo, bin, d.videoArgs(constraints, format), format.Width*format.Height*3/2)
		if err != nil {
			_ = src.Close()
			return nil, err
		}
		src.captures = append(src.captures, video)
	}

	go func() {
		src.readers.Wait()
		close(src.frames)
	}()

	return src, nil
}

func (d *FFmpegDevice) audioArgs(c entity.MediaConstraints, f Format) []string {
	device := c.AudioDevice
	if device == "" {
		device = "default"
	}

	args := []string{
		"-hide_banner", "-loglevel", "error", "-nostdin",
		"-f", "alsa",
		"-channels", strconv.Itoa(f.Channels),
		"-sample_rate", strconv.Itoa(f.SampleRate),
		"-i", device,
	}

	var filters []string
	if c.NoiseSuppression {
		filters = append(filters, "afftdn")
	}
	if c.AutoGainControl {
		filters = append(filters, "dynaudnorm")
	}
	if c.EchoCancellation {
		// ffmpeg has no acoustic echo canceller; a high-pass keeps low rumble out
		filters = append(filters, "highpass=f=80")
	}
	if len(filters) > 0 {
		args = append(args, "-af", strings.Join(filters, ","))
	}

	return append(args,
		"-f", "s16le",
		"-acodec", "pcm_s16le",
		"-ac", strconv.Itoa(f.Channels),
		"-ar", strconv.Itoa(f.SampleRate),
		"pipe:1",
	)
}

func (d *FFmpegDevice) videoArgs(c entity.MediaConstraints, f Format) []string {
	device := c.VideoDevice
	if device == "" {
		device = "/dev/video0"
	}

	return []string{
		"-hide_banner", "-loglevel", "error", "-nostdin",
		"-f", "v4l2",
		"-framerate", strconv.Itoa(f.FrameRate),
		"-video_size", fmt.Sprintf("%dx%d", f.Width, f.Height),
		"-i", device,
		"-f", "rawvideo",
		"-pix_fmt", "yuv420p",
		"pipe:1",
	}
}

func (d *FFmpegDevice) startCapture(
	ctx context.Context,
	src *ffmpegSource,
	kind TrackKind,
	bin string,
	args []string,
	chunkSize int,
) (*capture, error) {
	d.logger.Info("starting ffmpeg capture",
		zap.String("track", string(kind)),
		zap.String("command", bin+" "+strings.Join(args, " ")),
	)

	cmd := exec.Command(bin, args...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("create stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("create stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: start ffmpeg: %v", entity.ErrDeviceUnavailable, err)
	}

	c := &capture{
		kind:      kind,
		cmd:       cmd,
		stderr:    &tailBuffer{max: stderrTailLines},
		firstData: make(chan struct{}),
		exited:    make(chan struct{}),
	}

	stderrDone := make(chan struct{})
	go func() {
		defer close(stderrDone)
		c.readStderr(stderr, d.logger)
	}()

	stdoutDone := make(chan struct{})
	src.readers.Add(1)
	go func() {
		defer close(stdoutDone)
		src.read(c, stdout, chunkSize)
	}()

	// Wait closes the pipes, so both readers have to finish first
	go func() {
		<-stderrDone
		<-stdoutDone
		c.waitErr = cmd.Wait()
		close(c.exited)
	}()

	timer := time.NewTimer(d.startup)
	defer timer.Stop()

	select {
	case <-c.firstData:
		return c, nil
	case <-timer.C:
		// slow devices may take a while to deliver the first frame
		return c, nil
	case <-c.exited:
		return nil, classifyFFmpegFailure(kind, c.stderr.String(), c.waitErr)
	case <-ctx.Done():
		c.kill()
		return nil, ctx.Err()
	}
}

// classifyFFmpegFailure maps what ffmpeg printed before dying to a capture error.
func classifyFFmpegFailure(kind TrackKind, stderr string, waitErr error) error {
	msg := strings.TrimSpace(stderr)
	if msg == "" && waitErr != nil {
		msg = waitErr.Error()
	}

	lower := strings.ToLower(msg)
	if strings.Contains(lower, "permission denied") || strings.Contains(lower, "operation not permitted") {
		return fmt.Errorf("%w: %s capture: %s", entity.ErrPermissionDenied, kind, msg)
	}

	return fmt.Errorf("%w: %s capture: %s", entity.ErrDeviceUnavailable, kind, msg)
}

type capture struct {
	kind      TrackKind
	cmd       *exec.Cmd
	stderr    *tailBuffer
	firstData chan struct{}
	firstOnce sync.Once
	exited    chan struct{}
	waitErr   error
}

func (c *capture) readStderr(pipe io.Reader, logger *zap.Logger) {
	scanner := bufio.NewScanner(pipe)
	for scanner.Scan() {
		line := scanner.Text()
		c.stderr.add(line)
		logger.Debug("ffmpeg output", zap.String("track", string(c.kind)), zap.String("line", line))
	}
}

// stop asks ffmpeg to exit and kills it if it does not.
func (c *capture) stop() {
	select {
	case <-c.exited:
		return
	default:
	}

	if err := c.cmd.Process.Signal(os.Interrupt); err != nil {
		c.kill()
		return
	}

	select {
	case <-c.exited:
	case <-time.After(ffmpegStopTimeout):
		c.kill()
	}
}

func (c *capture) kill() {
	if c.cmd.Process != nil {
		_ = c.cmd.Process.Kill()
	}
	<-c.exited
}

type ffmpegSource struct {
	format   Format
	captures []*capture
	frames   chan Frame
	readers  sync.WaitGroup
	start    time.Time

	stop      chan struct{}
	closeOnce sync.Once
}

func (s *ffmpegSource) Format() Format {
	return s.format
}

func (s *ffmpegSource) Frames() <-chan Frame {
	return s.frames
}

func (s *ffmpegSource) Close() error {
	s.closeOnce.Do(func() {
		close(s.stop)
		for _, c := range s.captures {
			c.stop()
		}
	})
	return nil
}

func (s *ffmpegSource) read(c *capture, stdout io.Reader, chunkSize int) {
	defer s.readers.Done()

	for {
		buf := make([]byte, chunkSize)
		if _, err := io.ReadFull(stdout, buf); err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, os.ErrClosed) {
				c.stderr.add("read: " + err.Error())
			}
			return
		}
		c.firstOnce.Do(func() { close(c.firstData) })

		select {
		case s.frames <- Frame{Kind: c.kind, Data: buf, Timestamp: time.Since(s.start)}:
		case <-s.stop:
			return
		}
	}
}

// tailBuffer keeps the last lines a process printed.
type tailBuffer struct {
	mu    sync.Mutex
	max   int
	lines []string
}

func (b *tailBuffer) add(line string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.lines = append(b.lines, line)
	if len(b.lines) > b.max {
		b.lines = b.lines[len(b.lines)-b.max:]
	}
}

func (b *tailBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return strings.Join(b.lines, "\n")
}
