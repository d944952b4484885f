package stt

import (
	"context"
	"time"

	"github.com/voxloop/voxloop/pkg/audio"
)

// Segment is one utterance within a transcription result, with offsets
// relative to the start of the submitted audio. Adapters normalize
// whatever shape their engine returns into this form.
type Segment struct {
	ID    int
	Start time.Duration
	End   time.Duration
	Text  string
}

// Result is a normalized transcription.
type Result struct {
	Text     string
	Segments []Segment
}

// Engine transcribes a complete audio buffer. Implementations wrap a
// hosted or local model and must be safe for concurrent use.
type Engine interface {
	Name() string
	Transcribe(ctx context.Context, pcm []byte, format audio.Format) (Result, error)
}
