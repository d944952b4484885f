package mock

import (
	"context"

	"github.com/voxloop/voxloop/pkg/adapters/stt"
	"github.com/voxloop/voxloop/pkg/audio"
)

type STTConfig struct {
	Transcript string
	Segments   []stt.Segment
	Err        error
}

// STTEngine returns a canned transcription for any audio. When no
// segments are configured, the transcript becomes one segment spanning
// the submitted buffer.
type STTEngine struct {
	cfg STTConfig
}

func NewSTT(cfg STTConfig) *STTEngine {
	if cfg.Transcript == "" && cfg.Err == nil {
		cfg.Transcript = "mock transcript"
	}
	return &STTEngine{cfg: cfg}
}

func (s *STTEngine) Name() string { return "mock_stt" }

func (s *STTEngine) Transcribe(ctx context.Context, pcm []byte, format audio.Format) (stt.Result, error) {
	if s.cfg.Err != nil {
		return stt.Result{}, s.cfg.Err
	}
	res := stt.Result{Text: s.cfg.Transcript, Segments: s.cfg.Segments}
	if len(res.Segments) == 0 {
		res.Segments = []stt.Segment{{
			ID:   0,
			End:  format.Duration(len(pcm)),
			Text: " " + s.cfg.Transcript,
		}}
	}
	return res, nil
}

var _ stt.Engine = (*STTEngine)(nil)
