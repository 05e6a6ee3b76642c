package tts

import (
	"bytes"
	"time"

	"github.com/keshon/yomiage/internal/synth"
)

// Audio is a readable buffer of 48 kHz stereo 16-bit little-endian PCM.
type Audio struct {
	*bytes.Reader
	size int
}

func NewAudio(pcm []byte) *Audio {
	return &Audio{Reader: bytes.NewReader(pcm), size: len(pcm)}
}

// Duration is the playing time of the whole buffer.
func (a *Audio) Duration() time.Duration {
	frames := a.size / (2 * synth.Channels)
	return time.Duration(frames) * time.Second / synth.SampleRate
}
