package deepgram

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/voxloop/voxloop/pkg/adapters/stt"
	"github.com/voxloop/voxloop/pkg/audio"
	"github.com/voxloop/voxloop/pkg/errorsx"
	"github.com/voxloop/voxloop/pkg/logging"
	"github.com/voxloop/voxloop/pkg/resilience"

	prerecorded "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/listen/v1/rest"
	restapi "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/listen/v1/rest/interfaces"
	interfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/interfaces"
	client "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/listen"
)

var errMissingKey = errors.New("missing deepgram api key")

type Config struct {
	APIKey   string
	Model    string
	Language string
}

// Engine transcribes complete phrase buffers through Deepgram's
// prerecorded endpoint. Utterance timing from the response is
// normalized into segments so the pruning policy stays engine-agnostic.
type Engine struct {
	cfg    Config
	api    *prerecorded.Client
	retry  resilience.RetryPolicy
	logger *slog.Logger
}

func New(cfg Config) (*Engine, error) {
	if cfg.APIKey == "" {
		return nil, errorsx.Wrap(errMissingKey, errorsx.ReasonSTTTranscribe)
	}
	if cfg.Model == "" {
		cfg.Model = "nova-2"
	}
	if cfg.Language == "" {
		cfg.Language = "en"
	}
	c := client.NewREST(cfg.APIKey, &interfaces.ClientOptions{})
	return &Engine{
		cfg:    cfg,
		api:    prerecorded.New(c),
		retry:  resilience.NewRetryPolicy(2, 200*time.Millisecond),
		logger: logging.NewComponentLogger(slog.Default(), "deepgram_stt"),
	}, nil
}

func (e *Engine) Name() string { return "deepgram" }

func (e *Engine) Transcribe(ctx context.Context, pcm []byte, format audio.Format) (stt.Result, error) {
	if len(pcm) == 0 {
		return stt.Result{}, nil
	}
	wav := audio.EncodeWAV(format, pcm)
	options := &interfaces.PreRecordedTranscriptionOptions{
		Model:       e.cfg.Model,
		Language:    e.cfg.Language,
		SmartFormat: true,
		Utterances:  true,
	}

	var res *restapi.PreRecordedResponse
	err := e.retry.DoContext(ctx, func() error {
		var callErr error
		res, callErr = e.api.FromStream(ctx, bytes.NewReader(wav), options)
		return callErr
	})
	if err != nil {
		e.logger.Warn("transcription request failed",
			slog.Int("bytes", len(wav)),
			slog.Any("error", err))
		return stt.Result{}, errorsx.Wrap(err, errorsx.ReasonSTTTranscribe)
	}

	return normalize(res, format, len(pcm)), nil
}

// normalize flattens the provider response into the engine-agnostic
// result shape. When the response carries no utterance timing, the
// whole transcript becomes one segment spanning the buffer.
func normalize(res *restapi.PreRecordedResponse, format audio.Format, pcmLen int) stt.Result {
	if res == nil || res.Results == nil {
		return stt.Result{}
	}

	var transcript string
	if len(res.Results.Channels) > 0 && len(res.Results.Channels[0].Alternatives) > 0 {
		transcript = strings.TrimSpace(res.Results.Channels[0].Alternatives[0].Transcript)
	}

	out := stt.Result{Text: transcript}
	for i, u := range res.Results.Utterances {
		out.Segments = append(out.Segments, stt.Segment{
			ID:    i,
			Start: secondsToDuration(u.Start),
			End:   secondsToDuration(u.End),
			Text:  " " + strings.TrimSpace(u.Transcript),
		})
	}
	if len(out.Segments) == 0 && transcript != "" {
		out.Segments = []stt.Segment{{
			ID:   0,
			End:  format.Duration(pcmLen),
			Text: " " + transcript,
		}}
	}
	return out
}

func secondsToDuration(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

var _ stt.Engine = (*Engine)(nil)
