package configutil

import (
	"errors"
	"testing"
)

type vendorSettings struct {
	APIKey     string  `mapstructure:"api_key"`
	Model      string  `mapstructure:"model"`
	Timeout    int     `mapstructure:"timeout_ms"`
	Confidence float64 `mapstructure:"confidence"`
	Streaming  bool    `mapstructure:"streaming"`
}

func TestDecodeSettingsFoldsKeyStyles(t *testing.T) {
	var s vendorSettings
	err := DecodeSettings(map[string]any{
		"API-Key":   "sk-123",
		"MODEL":     "nova-3",
		"timeoutMs": "1500",
		"streaming": "true",
	}, &s)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if s.APIKey != "sk-123" || s.Model != "nova-3" {
		t.Fatalf("decoded = %+v", s)
	}
	if s.Timeout != 1500 || !s.Streaming {
		t.Fatalf("weak coercion failed: %+v", s)
	}
}

func TestDecodeSettingsEmptyInputLeavesDefaults(t *testing.T) {
	s := vendorSettings{Model: "default"}
	if err := DecodeSettings(nil, &s); err != nil {
		t.Fatalf("decode nil: %v", err)
	}
	if s.Model != "default" {
		t.Fatal("empty input must not touch the target")
	}
}

func TestValidateSettingsReportsEverythingAtOnce(t *testing.T) {
	schema := Schema{
		Required: []string{"api_key", "voice_id"},
		Optional: []string{"model"},
	}
	err := ValidateSettings(map[string]any{
		"api_key": "  ",
		"extra":   1,
	}, schema)
	if err == nil {
		t.Fatal("expected a validation error")
	}
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("error type = %T, want *ValidationError", err)
	}
	if len(verr.Missing) != 2 || verr.Missing[0] != "api_key" || verr.Missing[1] != "voice_id" {
		t.Fatalf("missing = %v", verr.Missing)
	}
	if len(verr.Unknown) != 1 || verr.Unknown[0] != "extra" {
		t.Fatalf("unknown = %v", verr.Unknown)
	}
}

func TestValidateSettingsAcceptsFoldedKeys(t *testing.T) {
	schema := Schema{Required: []string{"api_key"}, Optional: []string{"model"}}
	err := ValidateSettings(map[string]any{"API-KEY": "x", "Model": "m"}, schema)
	if err != nil {
		t.Fatalf("folded keys rejected: %v", err)
	}
}

func TestValidateSettingsAllowUnknown(t *testing.T) {
	schema := Schema{Required: []string{"api_key"}, AllowUnknown: true}
	err := ValidateSettings(map[string]any{"api_key": "x", "anything": true}, schema)
	if err != nil {
		t.Fatalf("unknown key rejected despite AllowUnknown: %v", err)
	}
}
