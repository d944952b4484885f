package mock

import (
	"context"

	"github.com/voxloop/voxloop/pkg/llm"
)

type LLMConfig struct {
	ResponseText string
	StreamChunks []string
	Err          error
}

// LLMAdapter streams a canned response token list.
type LLMAdapter struct {
	cfg LLMConfig
}

func NewLLMAdapter(cfg LLMConfig) *LLMAdapter {
	if cfg.ResponseText == "" {
		cfg.ResponseText = "mock response."
	}
	return &LLMAdapter{cfg: cfg}
}

func (a *LLMAdapter) Name() string { return "mock_llm" }

func (a *LLMAdapter) Stream(ctx context.Context, messages []llm.Message) (<-chan string, error) {
	if a.cfg.Err != nil {
		return nil, a.cfg.Err
	}
	chunks := a.cfg.StreamChunks
	if len(chunks) == 0 {
		chunks = []string{a.cfg.ResponseText}
	}
	out := make(chan string, len(chunks))
	for _, chunk := range chunks {
		out <- chunk
	}
	close(out)
	return out, nil
}

var _ llm.Adapter = (*LLMAdapter)(nil)
