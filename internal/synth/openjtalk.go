package synth

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

// OpenJTalkConfig locates the open_jtalk binary and its data files.
type OpenJTalkConfig struct {
	Binary  string
	DictDir string
	Voice   string
}

// OpenJTalk runs one open_jtalk process per Generate call, writing the WAV to
// a private scratch directory.
type OpenJTalk struct {
	cfg     OpenJTalkConfig
	workDir string

	speed      float64
	tone       float64
	intonation float64
	volume     float64
}

var _ Synthesizer = (*OpenJTalk)(nil)

func NewOpenJTalk(cfg OpenJTalkConfig) (*OpenJTalk, error) {
	if cfg.Binary == "" {
		cfg.Binary = "open_jtalk"
	}
	if _, err := exec.LookPath(cfg.Binary); err != nil {
		return nil, &Error{Type: "dependency", Message: fmt.Sprintf("%s not found", cfg.Binary), Cause: err}
	}

	dir, err := os.MkdirTemp("", "openjtalk-")
	if err != nil {
		return nil, &Error{Type: "process", Message: "failed to create work dir", Cause: err}
	}

	return &OpenJTalk{
		cfg:        cfg,
		workDir:    dir,
		speed:      1.0,
		intonation: 1.0,
	}, nil
}

// NewOpenJTalkFactory returns a Factory producing OpenJTalk instances.
func NewOpenJTalkFactory(cfg OpenJTalkConfig) Factory {
	return func() (Synthesizer, error) {
		return NewOpenJTalk(cfg)
	}
}

func (o *OpenJTalk) SetSpeed(speed float64)           { o.speed = speed }
func (o *OpenJTalk) SetTone(tone float64)             { o.tone = tone }
func (o *OpenJTalk) SetIntonation(intonation float64) { o.intonation = intonation }
func (o *OpenJTalk) SetVolume(volume float64)         { o.volume = volume }

func (o *OpenJTalk) args(out string) []string {
	f := func(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }

	args := []string{
		"-r", f(o.speed),
		"-fm", f(o.tone),
		"-jf", f(o.intonation),
		"-g", f(o.volume),
		"-s", strconv.Itoa(SampleRate),
		"-ow", out,
	}
	if o.cfg.DictDir != "" {
		args = append([]string{"-x", o.cfg.DictDir}, args...)
	}
	if o.cfg.Voice != "" {
		args = append([]string{"-m", o.cfg.Voice}, args...)
	}
	return args
}

func (o *OpenJTalk) Generate(ctx context.Context, text string) ([]int16, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	out := filepath.Join(o.workDir, "out.wav")
	defer os.Remove(out)

	cmd := exec.CommandContext(ctx, o.cfg.Binary, o.args(out)...)
	cmd.Stdin = strings.NewReader(text)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(ctx.Err(), context.Canceled) {
			return nil, &Error{Type: "timeout", Message: "synthesis interrupted", Cause: ctx.Err()}
		}
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = "synthesis failed"
		}
		return nil, &Error{Type: "synthesis", Message: msg, Cause: err}
	}

	f, err := os.Open(out)
	if err != nil {
		return nil, &Error{Type: "synthesis", Message: "no audio produced", Cause: err}
	}
	defer f.Close()

	clip, err := DecodeWAV(f)
	if err != nil {
		return nil, &Error{Type: "decode", Message: "unreadable output", Cause: err}
	}
	return Resample(clip.Mono(), clip.SampleRate), nil
}

func (o *OpenJTalk) Close() error {
	return os.RemoveAll(o.workDir)
}
