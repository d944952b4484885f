package voxloop

import (
	"fmt"
	"strings"

	"github.com/voxloop/voxloop/pkg/adapters/stt"
	"github.com/voxloop/voxloop/pkg/adapters/tts"
	"github.com/voxloop/voxloop/pkg/adapters/voiceid"
	"github.com/voxloop/voxloop/pkg/configutil"
	"github.com/voxloop/voxloop/pkg/llm"
	"github.com/voxloop/voxloop/pkg/providers/deepgram"
	"github.com/voxloop/voxloop/pkg/providers/elevenlabs"
	"github.com/voxloop/voxloop/pkg/providers/mock"
	"github.com/voxloop/voxloop/pkg/providers/openai"
)

type STTFactory func(settings map[string]any) (stt.Engine, error)
type TTSFactory func(settings map[string]any) (tts.Engine, error)
type LLMFactory func(settings map[string]any) (llm.Adapter, error)
type ClassifierFactory func(settings map[string]any) (voiceid.Classifier, error)

// ProviderRegistry maps vendor names from configuration to adapter
// constructors. The built-in providers are registered by default; hosts
// can add their own before building a pipeline.
type ProviderRegistry struct {
	stt        map[string]STTFactory
	tts        map[string]TTSFactory
	llm        map[string]LLMFactory
	classifier map[string]ClassifierFactory
}

func NewProviderRegistry() *ProviderRegistry {
	r := &ProviderRegistry{
		stt:        make(map[string]STTFactory),
		tts:        make(map[string]TTSFactory),
		llm:        make(map[string]LLMFactory),
		classifier: make(map[string]ClassifierFactory),
	}
	registerBuiltins(r)
	return r
}

func (r *ProviderRegistry) RegisterSTT(name string, factory STTFactory) {
	r.stt[normalizeProvider(name)] = factory
}

func (r *ProviderRegistry) RegisterTTS(name string, factory TTSFactory) {
	r.tts[normalizeProvider(name)] = factory
}

func (r *ProviderRegistry) RegisterLLM(name string, factory LLMFactory) {
	r.llm[normalizeProvider(name)] = factory
}

func (r *ProviderRegistry) RegisterClassifier(name string, factory ClassifierFactory) {
	r.classifier[normalizeProvider(name)] = factory
}

func (r *ProviderRegistry) BuildSTT(vendor VendorConfig) (stt.Engine, error) {
	fn := r.stt[normalizeProvider(vendor.Provider)]
	if fn == nil {
		return nil, fmt.Errorf("stt provider not registered: %s", vendor.Provider)
	}
	return fn(vendor.Settings)
}

func (r *ProviderRegistry) BuildTTS(vendor VendorConfig) (tts.Engine, error) {
	fn := r.tts[normalizeProvider(vendor.Provider)]
	if fn == nil {
		return nil, fmt.Errorf("tts provider not registered: %s", vendor.Provider)
	}
	return fn(vendor.Settings)
}

func (r *ProviderRegistry) BuildLLM(vendor VendorConfig) (llm.Adapter, error) {
	fn := r.llm[normalizeProvider(vendor.Provider)]
	if fn == nil {
		return nil, fmt.Errorf("llm provider not registered: %s", vendor.Provider)
	}
	return fn(vendor.Settings)
}

// BuildClassifier tolerates a missing provider: speaker identity is
// optional and the pipeline runs fine without it.
func (r *ProviderRegistry) BuildClassifier(vendor VendorConfig) (voiceid.Classifier, error) {
	name := normalizeProvider(vendor.Provider)
	if name == "" || name == "none" {
		return nil, nil
	}
	fn := r.classifier[name]
	if fn == nil {
		return nil, fmt.Errorf("classifier provider not registered: %s", vendor.Provider)
	}
	return fn(vendor.Settings)
}

func normalizeProvider(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

type deepgramSettings struct {
	APIKey   string `mapstructure:"api_key"`
	Model    string `mapstructure:"model"`
	Language string `mapstructure:"language"`
}

type elevenlabsSettings struct {
	APIKey       string `mapstructure:"api_key"`
	VoiceID      string `mapstructure:"voice_id"`
	ModelID      string `mapstructure:"model_id"`
	OutputFormat string `mapstructure:"output_format"`
	SampleRate   int    `mapstructure:"sample_rate"`
}

type openAISettings struct {
	APIKey  string `mapstructure:"api_key"`
	Model   string `mapstructure:"model"`
	BaseURL string `mapstructure:"base_url"`
}

type mockSTTSettings struct {
	Transcript string `mapstructure:"transcript"`
}

type mockTTSSettings struct {
	ChunkSize int `mapstructure:"chunk_size"`
	Chunks    int `mapstructure:"chunks"`
}

type mockLLMSettings struct {
	ResponseText string   `mapstructure:"response_text"`
	StreamChunks []string `mapstructure:"stream_chunks"`
}

type mockClassifierSettings struct {
	SpeakerID  string  `mapstructure:"speaker_id"`
	Confidence float64 `mapstructure:"confidence"`
}

func registerBuiltins(r *ProviderRegistry) {
	r.RegisterSTT("deepgram", func(settings map[string]any) (stt.Engine, error) {
		schema := configutil.Schema{
			Required: []string{"api_key"},
			Optional: []string{"model", "language"},
		}
		if err := configutil.ValidateSettings(settings, schema); err != nil {
			return nil, fmt.Errorf("deepgram settings: %w", err)
		}
		var s deepgramSettings
		if err := configutil.DecodeSettings(settings, &s); err != nil {
			return nil, err
		}
		return deepgram.New(deepgram.Config{
			APIKey:   s.APIKey,
			Model:    s.Model,
			Language: s.Language,
		})
	})

	r.RegisterTTS("elevenlabs", func(settings map[string]any) (tts.Engine, error) {
		schema := configutil.Schema{
			Required: []string{"api_key", "voice_id"},
			Optional: []string{"model_id", "output_format", "sample_rate"},
		}
		if err := configutil.ValidateSettings(settings, schema); err != nil {
			return nil, fmt.Errorf("elevenlabs settings: %w", err)
		}
		var s elevenlabsSettings
		if err := configutil.DecodeSettings(settings, &s); err != nil {
			return nil, err
		}
		return elevenlabs.New(elevenlabs.Config{
			APIKey:       s.APIKey,
			VoiceID:      s.VoiceID,
			ModelID:      s.ModelID,
			OutputFormat: s.OutputFormat,
			SampleRate:   s.SampleRate,
		})
	})

	r.RegisterLLM("openai", func(settings map[string]any) (llm.Adapter, error) {
		schema := configutil.Schema{
			Required: []string{"api_key"},
			Optional: []string{"model", "base_url"},
		}
		if err := configutil.ValidateSettings(settings, schema); err != nil {
			return nil, fmt.Errorf("openai settings: %w", err)
		}
		var s openAISettings
		if err := configutil.DecodeSettings(settings, &s); err != nil {
			return nil, err
		}
		return openai.NewAdapter(s.APIKey, s.Model, s.BaseURL)
	})

	r.RegisterSTT("mock", func(settings map[string]any) (stt.Engine, error) {
		var s mockSTTSettings
		if err := configutil.DecodeSettings(settings, &s); err != nil {
			return nil, err
		}
		return mock.NewSTT(mock.STTConfig{Transcript: s.Transcript}), nil
	})

	r.RegisterTTS("mock", func(settings map[string]any) (tts.Engine, error) {
		var s mockTTSSettings
		if err := configutil.DecodeSettings(settings, &s); err != nil {
			return nil, err
		}
		return mock.NewTTS(mock.TTSConfig{ChunkSize: s.ChunkSize, Chunks: s.Chunks}), nil
	})

	r.RegisterLLM("mock", func(settings map[string]any) (llm.Adapter, error) {
		var s mockLLMSettings
		if err := configutil.DecodeSettings(settings, &s); err != nil {
			return nil, err
		}
		return mock.NewLLMAdapter(mock.LLMConfig{
			ResponseText: s.ResponseText,
			StreamChunks: s.StreamChunks,
		}), nil
	})

	r.RegisterClassifier("mock", func(settings map[string]any) (voiceid.Classifier, error) {
		var s mockClassifierSettings
		if err := configutil.DecodeSettings(settings, &s); err != nil {
			return nil, err
		}
		return mock.NewClassifier(mock.ClassifierConfig{
			SpeakerID:  s.SpeakerID,
			Confidence: s.Confidence,
		}), nil
	})
}
