package mock

import (
	"context"

	"github.com/voxloop/voxloop/pkg/adapters/voiceid"
	"github.com/voxloop/voxloop/pkg/audio"
)

type ClassifierConfig struct {
	SpeakerID  string
	Confidence float64
	Err        error
}

// Classifier returns a fixed speaker identity.
type Classifier struct {
	cfg ClassifierConfig
}

func NewClassifier(cfg ClassifierConfig) *Classifier {
	if cfg.SpeakerID == "" && cfg.Err == nil {
		cfg.SpeakerID = "primary_user"
		cfg.Confidence = 0.9
	}
	return &Classifier{cfg: cfg}
}

func (c *Classifier) Name() string { return "mock_classifier" }

func (c *Classifier) Classify(ctx context.Context, pcm []byte, format audio.Format) (voiceid.Classification, error) {
	if c.cfg.Err != nil {
		return voiceid.Classification{}, c.cfg.Err
	}
	return voiceid.Classification{SpeakerID: c.cfg.SpeakerID, Confidence: c.cfg.Confidence}, nil
}

var _ voiceid.Classifier = (*Classifier)(nil)
