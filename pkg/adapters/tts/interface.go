package tts

import "context"

// Engine converts text to audio. Synthesize returns a channel of PCM
// chunks that closes when synthesis completes; errors that occur after
// the channel is returned terminate the stream early.
type Engine interface {
	Name() string
	Synthesize(ctx context.Context, text string) (<-chan []byte, error)
}
