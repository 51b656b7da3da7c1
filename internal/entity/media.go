package entity

// MediaConstraints describes what to ask from the capture devices
type MediaConstraints struct {
	VideoEnabled     bool
	Width            int
	Height           int
	FrameRate        int
	AudioSampleRate  int
	AudioChannels    int
	EchoCancellation bool
	NoiseSuppression bool
	AutoGainControl  bool
	VideoDevice      string
	AudioDevice      string
}

// RecordingOptions describes the segment encoding targets
type RecordingOptions struct {
	MimeType           string
	AudioBitsPerSecond int
	VideoBitsPerSecond int
	TimeSliceMs        int
	MaxPayloadBytes    int64
}
