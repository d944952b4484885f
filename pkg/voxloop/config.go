package voxloop

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the root configuration of one assistant session.
type Config struct {
	Environment string `mapstructure:"environment"`
	LogLevel    string `mapstructure:"log_level"`
	LogFormat   string `mapstructure:"log_format"`
	BasePrompt  string `mapstructure:"base_prompt"`

	Audio     AudioConfig     `mapstructure:"audio"`
	Capture   CaptureConfig   `mapstructure:"capture"`
	Queue     QueueConfig     `mapstructure:"queue"`
	Prune     PruneConfig     `mapstructure:"prune"`
	Echo      EchoConfig      `mapstructure:"echo"`
	Response  ResponseConfig  `mapstructure:"response"`
	VoiceGate VoiceGateConfig `mapstructure:"voice_gate"`
	Session   SessionConfig   `mapstructure:"session"`
	Vendors   VendorsConfig   `mapstructure:"vendors"`
}

type AudioConfig struct {
	SampleRate  int `mapstructure:"sample_rate"`
	SampleWidth int `mapstructure:"sample_width"`
	Channels    int `mapstructure:"channels"`
}

type CaptureConfig struct {
	PhraseTimeoutMS int `mapstructure:"phrase_timeout_ms"`
	MuteCooldownMS  int `mapstructure:"mute_cooldown_ms"`
}

type QueueConfig struct {
	DepthThreshold         int `mapstructure:"depth_threshold"`
	PlaybackDepthThreshold int `mapstructure:"playback_depth_threshold"`
	MaxAgeMS               int `mapstructure:"max_age_ms"`
	PlaybackMaxAgeMS       int `mapstructure:"playback_max_age_ms"`
	MicPriorityMinDepth    int `mapstructure:"mic_priority_min_depth"`
}

type PruneConfig struct {
	SegmentThreshold int `mapstructure:"segment_threshold"`
	KeepLastSegments int `mapstructure:"keep_last_segments"`
	AudioCeilingSec  int `mapstructure:"audio_ceiling_sec"`
	CommitMarginSec  int `mapstructure:"commit_margin_sec"`
}

type EchoConfig struct {
	WindowMS            int     `mapstructure:"window_ms"`
	SimilarityThreshold float64 `mapstructure:"similarity_threshold"`
}

type ResponseConfig struct {
	IntervalMS        int `mapstructure:"interval_ms"`
	RequestTimeoutMS  int `mapstructure:"request_timeout_ms"`
	MaxPhrases        int `mapstructure:"max_phrases"`
	SentenceMinChars  int `mapstructure:"sentence_min_chars"`
	SentenceSoftLimit int `mapstructure:"sentence_soft_limit"`
	SentenceHardLimit int `mapstructure:"sentence_hard_limit"`
	PlaybackQueueSize int `mapstructure:"playback_queue_size"`
	WriteRetries      int `mapstructure:"write_retries"`
	WriteBackoffMS    int `mapstructure:"write_backoff_ms"`
}

type VoiceGateConfig struct {
	Enabled    bool    `mapstructure:"enabled"`
	SpeakerID  string  `mapstructure:"speaker_id"`
	Confidence float64 `mapstructure:"confidence"`
}

type SessionConfig struct {
	ClearIntervalSec int `mapstructure:"clear_interval_sec"`
	DrainTimeoutSec  int `mapstructure:"drain_timeout_sec"`
}

type VendorConfig struct {
	Provider string         `mapstructure:"provider"`
	Settings map[string]any `mapstructure:"settings"`
}

type VendorsConfig struct {
	STT        VendorConfig `mapstructure:"stt"`
	TTS        VendorConfig `mapstructure:"tts"`
	LLM        VendorConfig `mapstructure:"llm"`
	Classifier VendorConfig `mapstructure:"classifier"`
}

// LoadConfig reads a YAML config file, fills defaults, expands
// ${ENV_VAR} references inside vendor settings, and validates.
func LoadConfig(path string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal: %w", err)
	}

	cfg.BasePrompt = os.ExpandEnv(cfg.BasePrompt)
	cfg.Vendors.STT.Settings = expandSettings(cfg.Vendors.STT.Settings)
	cfg.Vendors.TTS.Settings = expandSettings(cfg.Vendors.TTS.Settings)
	cfg.Vendors.LLM.Settings = expandSettings(cfg.Vendors.LLM.Settings)
	cfg.Vendors.Classifier.Settings = expandSettings(cfg.Vendors.Classifier.Settings)

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "json")
	v.SetDefault("base_prompt", "You are a helpful voice assistant. Keep answers short and speakable.")

	v.SetDefault("audio.sample_rate", 16000)
	v.SetDefault("audio.sample_width", 2)
	v.SetDefault("audio.channels", 1)

	v.SetDefault("capture.phrase_timeout_ms", 3050)
	v.SetDefault("capture.mute_cooldown_ms", 500)

	v.SetDefault("queue.depth_threshold", 5)
	v.SetDefault("queue.playback_depth_threshold", 30)
	v.SetDefault("queue.max_age_ms", 5000)
	v.SetDefault("queue.playback_max_age_ms", 30000)
	v.SetDefault("queue.mic_priority_min_depth", 2)

	v.SetDefault("prune.segment_threshold", 6)
	v.SetDefault("prune.keep_last_segments", 3)
	v.SetDefault("prune.audio_ceiling_sec", 45)
	v.SetDefault("prune.commit_margin_sec", 5)

	v.SetDefault("echo.window_ms", 2000)
	v.SetDefault("echo.similarity_threshold", 0.85)

	v.SetDefault("response.interval_ms", 2000)
	v.SetDefault("response.request_timeout_ms", 60000)
	v.SetDefault("response.max_phrases", 0)
	v.SetDefault("response.sentence_min_chars", 3)
	v.SetDefault("response.sentence_soft_limit", 30)
	v.SetDefault("response.sentence_hard_limit", 42)
	v.SetDefault("response.playback_queue_size", 32)
	v.SetDefault("response.write_retries", 2)
	v.SetDefault("response.write_backoff_ms", 100)

	v.SetDefault("voice_gate.enabled", false)
	v.SetDefault("voice_gate.speaker_id", "primary_user")
	v.SetDefault("voice_gate.confidence", 0.75)

	v.SetDefault("session.clear_interval_sec", 0)
	v.SetDefault("session.drain_timeout_sec", 10)

	v.SetDefault("vendors.stt.provider", "mock")
	v.SetDefault("vendors.tts.provider", "mock")
	v.SetDefault("vendors.llm.provider", "mock")
	v.SetDefault("vendors.classifier.provider", "mock")
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.Vendors.STT.Provider) == "" {
		return fmt.Errorf("vendors.stt.provider is required")
	}
	if strings.TrimSpace(c.Vendors.TTS.Provider) == "" {
		return fmt.Errorf("vendors.tts.provider is required")
	}
	if strings.TrimSpace(c.Vendors.LLM.Provider) == "" {
		return fmt.Errorf("vendors.llm.provider is required")
	}
	if c.Echo.SimilarityThreshold < 0 || c.Echo.SimilarityThreshold > 1 {
		return fmt.Errorf("echo.similarity_threshold must be within [0, 1]")
	}
	if c.VoiceGate.Enabled && strings.TrimSpace(c.VoiceGate.SpeakerID) == "" {
		return fmt.Errorf("voice_gate.speaker_id is required when the gate is enabled")
	}
	if c.Response.SentenceSoftLimit > c.Response.SentenceHardLimit {
		return fmt.Errorf("response.sentence_soft_limit must not exceed sentence_hard_limit")
	}
	return nil
}

// PhraseTimeout returns the silence gap that closes a phrase.
func (c *Config) PhraseTimeout() time.Duration {
	return time.Duration(c.Capture.PhraseTimeoutMS) * time.Millisecond
}

func expandSettings(settings map[string]any) map[string]any {
	if settings == nil {
		return nil
	}
	for k, v := range settings {
		settings[k] = expandAny(v)
	}
	return settings
}

func expandAny(v any) any {
	switch val := v.(type) {
	case string:
		return os.ExpandEnv(val)
	case []any:
		for i := range val {
			val[i] = expandAny(val[i])
		}
		return val
	case map[string]any:
		for k, v := range val {
			val[k] = expandAny(v)
		}
		return val
	default:
		return v
	}
}
