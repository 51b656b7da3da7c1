package recording

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/futig/interview-orchestrator/internal/entity"
	"github.com/futig/interview-orchestrator/internal/media"
	"github.com/zaf/g711"
)

const (
	MimeTypeWAV  = "audio/wav"
	MimeTypePCMU = "audio/wav;codecs=pcmu"
	MimeTypePCMA = "audio/wav;codecs=pcma"

	wavFormatPCM  = 1
	wavFormatALaw = 6
	wavFormatULaw = 7
)

// Encoder turns the interleaved s16le PCM of one segment into a container.
type Encoder interface {
	MimeType() string
	Encode(pcm []byte, format media.Format) ([]byte, error)
}

// NewEncoder picks the encoder for a configured MIME type.
func NewEncoder(mimeType string) (Encoder, error) {
	switch normalizeMimeType(mimeType) {
	case "audio/wav", "audio/wave", "audio/x-wav", "audio/wav;codecs=1":
		return pcmEncoder{}, nil
	case MimeTypePCMU, "audio/wav;codecs=mulaw", "audio/wav;codecs=7":
		return g711Encoder{mimeType: MimeTypePCMU, formatTag: wavFormatULaw, encode: g711.EncodeUlaw}, nil
	case MimeTypePCMA, "audio/wav;codecs=alaw", "audio/wav;codecs=6":
		return g711Encoder{mimeType: MimeTypePCMA, formatTag: wavFormatALaw, encode: g711.EncodeAlaw}, nil
	default:
		return nil, fmt.Errorf("%w: unsupported recording mime type %q", entity.ErrInvalidParameter, mimeType)
	}
}

func normalizeMimeType(mimeType string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(mimeType)), " ", "")
}

type pcmEncoder struct{}

func (pcmEncoder) MimeType() string {
	return MimeTypeWAV
}

func (pcmEncoder) Encode(pcm []byte, format media.Format) ([]byte, error) {
	return writeWAV(pcm, wavHeader{
		formatTag:     wavFormatPCM,
		channels:      format.Channels,
		sampleRate:    format.SampleRate,
		bitsPerSample: 16,
	}), nil
}

type g711Encoder struct {
	mimeType  string
	formatTag uint16
	encode    func([]byte) []byte
}

func (e g711Encoder) MimeType() string {
	return e.mimeType
}

func (e g711Encoder) Encode(pcm []byte, format media.Format) ([]byte, error) {
	if len(pcm)%2 != 0 {
		return nil, fmt.Errorf("pcm payload has odd length %d", len(pcm))
	}

	return writeWAV(e.encode(pcm), wavHeader{
		formatTag:     e.formatTag,
		channels:      format.Channels,
		sampleRate:    format.SampleRate,
		bitsPerSample: 8,
	}), nil
}

type wavHeader struct {
	formatTag     uint16
	channels      int
	sampleRate    int
	bitsPerSample int
}

// writeWAV wraps data in a RIFF/WAVE container. Non-PCM formats get the
// extended fmt chunk and a fact chunk with the per-channel sample count.
func writeWAV(data []byte, h wavHeader) []byte {
	blockAlign := h.channels * h.bitsPerSample / 8
	byteRate := h.sampleRate * blockAlign

	fmtSize := uint32(16)
	extra := 0
	if h.formatTag != wavFormatPCM {
		fmtSize = 18
		extra = 12 // fact chunk
	}

	var buf bytes.Buffer
	buf.Grow(44 + extra + len(data))

	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(4+8+int(fmtSize)+extra+8+len(data)))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	binary.Write(&buf, binary.LittleEndian, fmtSize)
	binary.Write(&buf, binary.LittleEndian, h.formatTag)
	binary.Write(&buf, binary.LittleEndian, uint16(h.channels))
	binary.Write(&buf, binary.LittleEndian, uint32(h.sampleRate))
	binary.Write(&buf, binary.LittleEndian, uint32(byteRate))
	binary.Write(&buf, binary.LittleEndian, uint16(blockAlign))
	binary.Write(&buf, binary.LittleEndian, uint16(h.bitsPerSample))

	if h.formatTag != wavFormatPCM {
		binary.Write(&buf, binary.LittleEndian, uint16(0))

		buf.WriteString("fact")
		binary.Write(&buf, binary.LittleEndian, uint32(4))
		binary.Write(&buf, binary.LittleEndian, uint32(len(data)/max(blockAlign, 1)))
	}

	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, uint32(len(data)))
	buf.Write(data)

	return buf.Bytes()
}
