package audio

import "time"

// Source identifies which capture path produced a chunk.
type Source string

const (
	// SourceMic is the local microphone: the user's own speech.
	SourceMic Source = "mic"
	// SourceSpeaker is loopback capture of the system audio output:
	// remote participants and, inevitably, the assistant's own voice.
	SourceSpeaker Source = "speaker"
)

// Chunk is an immutable slice of captured PCM with its capture timestamp.
// Ownership transfers to the transcription queue on enqueue.
type Chunk struct {
	Source     Source
	PCM        []byte
	CapturedAt time.Time
}
