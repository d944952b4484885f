package mock

import (
	"context"
	"sync"

	"github.com/voxloop/voxloop/pkg/adapters/tts"
)

type TTSConfig struct {
	ChunkSize int
	Chunks    int
	Err       error
}

// TTSEngine emits fixed-size silence chunks for any text and records
// what it was asked to speak.
type TTSEngine struct {
	cfg   TTSConfig
	mu    sync.Mutex
	calls []string
}

func NewTTS(cfg TTSConfig) *TTSEngine {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = 320
	}
	if cfg.Chunks <= 0 {
		cfg.Chunks = 4
	}
	return &TTSEngine{cfg: cfg}
}

func (t *TTSEngine) Name() string { return "mock_tts" }

func (t *TTSEngine) Synthesize(ctx context.Context, text string) (<-chan []byte, error) {
	if t.cfg.Err != nil {
		return nil, t.cfg.Err
	}
	t.mu.Lock()
	t.calls = append(t.calls, text)
	t.mu.Unlock()

	out := make(chan []byte, t.cfg.Chunks)
	for i := 0; i < t.cfg.Chunks; i++ {
		out <- make([]byte, t.cfg.ChunkSize)
	}
	close(out)
	return out, nil
}

// Spoken returns every text synthesized so far.
func (t *TTSEngine) Spoken() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.calls...)
}

var _ tts.Engine = (*TTSEngine)(nil)
