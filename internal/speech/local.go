package speech

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/ImBetterThanYesterday/elder-voice-link/internal/fault"
)

// LocalConfig configures the offline fallback synthesizer.
type LocalConfig struct {
	CLI        string
	Voice      string
	SampleRate int
}

// LocalSynthesizer drives a local speech-synthesis CLI (espeak-ng by
// default) and captures its WAV output. It keeps the voice UI usable when
// the remote provider is unreachable or unconfigured.
type LocalSynthesizer struct {
	cfg LocalConfig
}

func NewLocalSynthesizer(cfg LocalConfig) (*LocalSynthesizer, error) {
	if strings.TrimSpace(cfg.CLI) == "" {
		cfg.CLI = "espeak-ng"
	}
	if strings.TrimSpace(cfg.Voice) == "" {
		cfg.Voice = "es"
	}
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 22050
	}
	if _, err := exec.LookPath(cfg.CLI); err != nil {
		return nil, fmt.Errorf("local synthesizer CLI %q not found: %w", cfg.CLI, err)
	}
	return &LocalSynthesizer{cfg: cfg}, nil
}

func (s *LocalSynthesizer) Engine() string { return "local" }

func (s *LocalSynthesizer) Synthesize(ctx context.Context, text string) (Audio, error) {
	prepared := PrepareForSpeech(text)
	if prepared == "" {
		return Audio{}, fault.New(fault.KindSynthesis, "nothing to synthesize")
	}

	cmd := exec.CommandContext(ctx, s.cfg.CLI,
		"-v", s.cfg.Voice,
		"--stdout",
		prepared,
	)
	var out, stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		detail := strings.TrimSpace(stderr.String())
		if detail == "" {
			detail = err.Error()
		}
		return Audio{}, fault.New(fault.KindSynthesis, detail)
	}
	if out.Len() == 0 {
		return Audio{}, fault.New(fault.KindSynthesis, "synthesizer produced no audio")
	}

	return Audio{Data: out.Bytes(), MIME: "audio/wav"}, nil
}
