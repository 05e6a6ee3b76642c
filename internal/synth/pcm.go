package synth

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// StereoBytes duplicates each mono sample into left and right channels and
// encodes the result as interleaved 16-bit little-endian PCM.
func StereoBytes(mono []int16) []byte {
	out := make([]byte, len(mono)*4)
	for i, s := range mono {
		binary.LittleEndian.PutUint16(out[i*4:], uint16(s))
		binary.LittleEndian.PutUint16(out[i*4+2:], uint16(s))
	}
	return out
}

// InterleavedBytes encodes already interleaved samples as 16-bit
// little-endian PCM.
func InterleavedBytes(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
	}
	return out
}

// Clip is decoded WAV audio.
type Clip struct {
	SampleRate int
	Channels   int
	// Samples are interleaved when Channels > 1.
	Samples []int16
}

// DecodeWAV reads a PCM WAV file.
func DecodeWAV(r io.ReadSeeker) (*Clip, error) {
	d := wav.NewDecoder(r)
	if !d.IsValidFile() {
		return nil, fmt.Errorf("not a valid wav file")
	}
	buf, err := d.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("decode wav: %w", err)
	}
	return clipFromBuffer(buf, int(d.BitDepth))
}

func clipFromBuffer(buf *audio.IntBuffer, bitDepth int) (*Clip, error) {
	if buf.Format == nil || buf.Format.NumChannels < 1 || buf.Format.SampleRate < 1 {
		return nil, fmt.Errorf("wav has no usable format")
	}

	shift := bitDepth - 16
	samples := make([]int16, len(buf.Data))
	for i, v := range buf.Data {
		switch {
		case bitDepth == 8:
			// 8-bit PCM is unsigned.
			samples[i] = int16((v - 128) << 8)
		case shift > 0:
			samples[i] = int16(v >> shift)
		default:
			samples[i] = int16(v)
		}
	}
	return &Clip{
		SampleRate: buf.Format.SampleRate,
		Channels:   buf.Format.NumChannels,
		Samples:    samples,
	}, nil
}

// Mono averages all channels into one.
func (c *Clip) Mono() []int16 {
	if c.Channels == 1 {
		return c.Samples
	}
	frames := len(c.Samples) / c.Channels
	out := make([]int16, frames)
	for f := 0; f < frames; f++ {
		sum := 0
		for ch := 0; ch < c.Channels; ch++ {
			sum += int(c.Samples[f*c.Channels+ch])
		}
		out[f] = int16(sum / c.Channels)
	}
	return out
}

// Resample converts mono samples from rate to SampleRate by linear
// interpolation.
func Resample(mono []int16, rate int) []int16 {
	if rate == SampleRate || len(mono) == 0 {
		return mono
	}
	n := int(int64(len(mono)) * SampleRate / int64(rate))
	out := make([]int16, n)
	step := float64(rate) / SampleRate
	for i := range out {
		pos := float64(i) * step
		j := int(pos)
		if j >= len(mono)-1 {
			out[i] = mono[len(mono)-1]
			continue
		}
		frac := pos - float64(j)
		out[i] = int16(float64(mono[j])*(1-frac) + float64(mono[j+1])*frac)
	}
	return out
}

// TransportPCM returns the clip as 48 kHz stereo 16-bit little-endian PCM.
func (c *Clip) TransportPCM() []byte {
	if c.SampleRate == SampleRate && c.Channels == Channels {
		return InterleavedBytes(c.Samples)
	}
	return StereoBytes(Resample(c.Mono(), c.SampleRate))
}
