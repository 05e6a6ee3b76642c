// Package synth wraps the external speech synthesizer and the PCM helpers
// shared by everything that feeds the voice transport.
package synth

import (
	"context"
	"fmt"
)

// Output format required by the voice transport.
const (
	SampleRate = 48000
	Channels   = 2
)

// Synthesizer is one stateful synthesizer instance. It is not safe for
// concurrent use; callers serialize parameter changes and Generate.
type Synthesizer interface {
	SetSpeed(speed float64)
	SetTone(tone float64)
	SetIntonation(intonation float64)
	SetVolume(volume float64)
	// Generate returns mono 16-bit samples at SampleRate.
	Generate(ctx context.Context, text string) ([]int16, error)
	Close() error
}

// Factory creates a Synthesizer for a guild engine.
type Factory func() (Synthesizer, error)

// Error describes a synthesizer failure.
type Error struct {
	Type    string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("synth %s: %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("synth %s: %s", e.Type, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}
