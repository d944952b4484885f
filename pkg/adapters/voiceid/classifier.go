package voiceid

import (
	"context"
	"log/slog"

	"github.com/voxloop/voxloop/pkg/audio"
)

// SpeakerUnknown is the fail-open speaker label used when no classifier
// is configured or classification fails.
const SpeakerUnknown = "unknown"

// Classification is a speaker identity guess for an audio buffer.
type Classification struct {
	SpeakerID  string
	Confidence float64
}

// Classifier identifies who is speaking in a buffer of microphone audio.
type Classifier interface {
	Name() string
	Classify(ctx context.Context, pcm []byte, format audio.Format) (Classification, error)
}

// ClassifyOrDefault runs the classifier and degrades to an unknown
// speaker on any failure. Speaker identity is advisory; transcription
// never blocks on it.
func ClassifyOrDefault(ctx context.Context, c Classifier, pcm []byte, format audio.Format, logger *slog.Logger) Classification {
	unknown := Classification{SpeakerID: SpeakerUnknown, Confidence: 0}
	if c == nil {
		return unknown
	}
	cls, err := c.Classify(ctx, pcm, format)
	if err != nil {
		if logger != nil {
			logger.Warn("speaker classification failed, continuing untagged",
				slog.String("classifier", c.Name()),
				slog.Any("error", err))
		}
		return unknown
	}
	if cls.SpeakerID == "" {
		return unknown
	}
	return cls
}
