package voxloop

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	path := writeConfig(t, "environment: test\n")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Capture.PhraseTimeoutMS != 3050 {
		t.Fatalf("phrase_timeout_ms = %d, want 3050", cfg.Capture.PhraseTimeoutMS)
	}
	if got := cfg.PhraseTimeout(); got != 3050*time.Millisecond {
		t.Fatalf("PhraseTimeout() = %v", got)
	}
	if cfg.Prune.AudioCeilingSec != 45 || cfg.Prune.CommitMarginSec != 5 {
		t.Fatalf("prune defaults = %d/%d", cfg.Prune.AudioCeilingSec, cfg.Prune.CommitMarginSec)
	}
	if cfg.Echo.SimilarityThreshold != 0.85 {
		t.Fatalf("similarity = %v", cfg.Echo.SimilarityThreshold)
	}
	if cfg.Vendors.STT.Provider != "mock" {
		t.Fatalf("default stt provider = %q", cfg.Vendors.STT.Provider)
	}
	if cfg.Response.SentenceHardLimit != 42 {
		t.Fatalf("hard limit = %d", cfg.Response.SentenceHardLimit)
	}
}

func TestLoadConfigExpandsEnvInSettings(t *testing.T) {
	t.Setenv("TEST_STT_KEY", "sk-123")
	path := writeConfig(t, `
vendors:
  stt:
    provider: deepgram
    settings:
      api_key: ${TEST_STT_KEY}
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if got := cfg.Vendors.STT.Settings["api_key"]; got != "sk-123" {
		t.Fatalf("api_key = %v, want sk-123", got)
	}
}

func TestLoadConfigRejectsBadSimilarity(t *testing.T) {
	path := writeConfig(t, `
echo:
  similarity_threshold: 1.5
`)
	if _, err := LoadConfig(path); err == nil {
		t.Fatal("expected validation error for similarity_threshold > 1")
	}
}

func TestLoadConfigRejectsGateWithoutSpeaker(t *testing.T) {
	path := writeConfig(t, `
voice_gate:
  enabled: true
  speaker_id: ""
`)
	if _, err := LoadConfig(path); err == nil {
		t.Fatal("expected validation error for enabled gate without speaker_id")
	}
}

func TestLoadConfigRejectsSoftLimitAboveHard(t *testing.T) {
	path := writeConfig(t, `
response:
  sentence_soft_limit: 50
  sentence_hard_limit: 42
`)
	if _, err := LoadConfig(path); err == nil {
		t.Fatal("expected validation error for soft limit above hard limit")
	}
}

func TestProviderRegistryUnknownProvider(t *testing.T) {
	r := NewProviderRegistry()
	if _, err := r.BuildSTT(VendorConfig{Provider: "nope"}); err == nil {
		t.Fatal("expected error for unregistered stt provider")
	}
}

func TestProviderRegistryOptionalClassifier(t *testing.T) {
	r := NewProviderRegistry()
	c, err := r.BuildClassifier(VendorConfig{Provider: "none"})
	if err != nil {
		t.Fatalf("BuildClassifier: %v", err)
	}
	if c != nil {
		t.Fatal("classifier should be nil for provider none")
	}
}

func TestProviderRegistryDeepgramRequiresKey(t *testing.T) {
	r := NewProviderRegistry()
	_, err := r.BuildSTT(VendorConfig{Provider: "deepgram", Settings: map[string]any{}})
	if err == nil {
		t.Fatal("expected error for missing deepgram api_key")
	}
}

func TestProviderRegistryBuildsMocks(t *testing.T) {
	r := NewProviderRegistry()
	if _, err := r.BuildSTT(VendorConfig{Provider: "mock"}); err != nil {
		t.Fatalf("mock stt: %v", err)
	}
	if _, err := r.BuildTTS(VendorConfig{Provider: "mock"}); err != nil {
		t.Fatalf("mock tts: %v", err)
	}
	if _, err := r.BuildLLM(VendorConfig{Provider: "mock", Settings: map[string]any{
		"response_text": "hi.",
	}}); err != nil {
		t.Fatalf("mock llm: %v", err)
	}
}
