package elevenlabs

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/voxloop/voxloop/pkg/adapters/tts"
	"github.com/voxloop/voxloop/pkg/errorsx"
	"github.com/voxloop/voxloop/pkg/logging"
	"github.com/voxloop/voxloop/pkg/resilience"
)

type Config struct {
	APIKey       string
	VoiceID      string
	ModelID      string
	OutputFormat string
	SampleRate   int
}

// Engine synthesizes one speakable unit per websocket session against
// the ElevenLabs stream-input endpoint. Opening a fresh connection per
// unit keeps cancellation trivial: abandoning the output channel tears
// the whole session down.
type Engine struct {
	cfg     Config
	breaker *resilience.CircuitBreaker
	logger  *slog.Logger
}

func New(cfg Config) (*Engine, error) {
	if cfg.APIKey == "" || cfg.VoiceID == "" {
		return nil, errorsx.Wrap(errors.New("missing elevenlabs config"), errorsx.ReasonTTSConnect)
	}
	if cfg.OutputFormat == "" {
		cfg.OutputFormat = "pcm_16000"
	}
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 16000
	}
	return &Engine{
		cfg:     cfg,
		breaker: resilience.NewCircuitBreaker(3, 30*time.Second),
		logger:  logging.NewComponentLogger(slog.Default(), "elevenlabs_tts"),
	}, nil
}

func (e *Engine) Name() string { return "elevenlabs" }

func (e *Engine) Synthesize(ctx context.Context, text string) (<-chan []byte, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		out := make(chan []byte)
		close(out)
		return out, nil
	}

	if !e.breaker.Allow() {
		return nil, errorsx.Wrap(errors.New("synthesis temporarily disabled"), errorsx.ReasonTTSCircuitOpen)
	}

	dialer := websocket.Dialer{Proxy: http.ProxyFromEnvironment}
	conn, resp, err := dialer.DialContext(ctx, e.buildURL(), http.Header{
		"xi-api-key": []string{e.cfg.APIKey},
	})
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusTooManyRequests {
			e.logger.Error("rate limit exceeded", slog.String("status", resp.Status))
			rlErr := resilience.RateLimitError{Provider: "elevenlabs", Message: resp.Status}
			e.breaker.OnError(rlErr)
			return nil, errorsx.Wrap(rlErr, errorsx.ReasonTTSRateLimit)
		}
		return nil, errorsx.Wrap(err, errorsx.ReasonTTSConnect)
	}
	e.breaker.OnSuccess()

	if err := e.sendScript(conn, text); err != nil {
		conn.Close()
		return nil, errorsx.Wrap(err, errorsx.ReasonTTSSynthesize)
	}

	out := make(chan []byte, 64)
	go e.readLoop(ctx, conn, out)
	return out, nil
}

func (e *Engine) buildURL() string {
	base := "wss://api.elevenlabs.io/v1/text-to-speech/" + e.cfg.VoiceID + "/stream-input"
	q := url.Values{}
	if e.cfg.ModelID != "" {
		q.Set("model_id", e.cfg.ModelID)
	}
	q.Set("output_format", e.cfg.OutputFormat)
	q.Set("optimize_streaming_latency", "4")
	return base + "?" + q.Encode()
}

// sendScript pushes the whole unit followed by the end-of-input marker
// so the server generates and closes promptly.
func (e *Engine) sendScript(conn *websocket.Conn, text string) error {
	init := map[string]any{
		"text": " ",
		"voice_settings": map[string]any{
			"stability":        0.5,
			"similarity_boost": 0.8,
		},
	}
	if err := writeJSON(conn, init); err != nil {
		return err
	}
	if !strings.HasSuffix(text, " ") {
		text += " "
	}
	if err := writeJSON(conn, map[string]any{"text": text, "try_trigger_generation": true}); err != nil {
		return err
	}
	return writeJSON(conn, map[string]any{"text": ""})
}

func (e *Engine) readLoop(ctx context.Context, conn *websocket.Conn, out chan<- []byte) {
	defer close(out)
	defer conn.Close()

	for {
		if ctx.Err() != nil {
			return
		}
		_, data, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				e.logger.Debug("synthesis stream ended", slog.Any("error", err))
			}
			return
		}

		var msg struct {
			Audio   string `json:"audio"`
			IsFinal bool   `json:"isFinal"`
		}
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		if msg.Audio != "" {
			raw, err := base64.StdEncoding.DecodeString(msg.Audio)
			if err != nil {
				e.logger.Warn("audio decode error", slog.Any("error", err))
				continue
			}
			select {
			case out <- raw:
			case <-ctx.Done():
				return
			}
		}
		if msg.IsFinal {
			return
		}
	}
}

func writeJSON(conn *websocket.Conn, payload map[string]any) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, b)
}

var _ tts.Engine = (*Engine)(nil)
