package configutil

import (
	"sort"
	"strings"
)

// Schema declares the keys a vendor settings block accepts. Required
// keys must be present and non-empty; keys outside Required and
// Optional are rejected unless AllowUnknown is set.
type Schema struct {
	Required     []string
	Optional     []string
	AllowUnknown bool
}

// ValidationError collects every missing and unknown key in one pass so
// a config author fixes the whole block at once instead of key by key.
type ValidationError struct {
	Missing []string
	Unknown []string
}

func (e *ValidationError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, "missing: "+strings.Join(e.Missing, ", "))
	}
	if len(e.Unknown) > 0 {
		parts = append(parts, "unknown: "+strings.Join(e.Unknown, ", "))
	}
	return strings.Join(parts, "; ")
}

// ValidateSettings checks a settings map against its schema. Keys are
// matched case, underscore, and hyphen insensitively, the same way
// DecodeSettings matches them. A non-nil return is a *ValidationError.
func ValidateSettings(input map[string]any, schema Schema) error {
	allowed := make(map[string]struct{}, len(schema.Required)+len(schema.Optional))
	for _, key := range schema.Required {
		allowed[normalizeKey(key)] = struct{}{}
	}
	for _, key := range schema.Optional {
		allowed[normalizeKey(key)] = struct{}{}
	}

	present := make(map[string]any, len(input))
	var verr ValidationError
	for key, value := range input {
		folded := normalizeKey(key)
		present[folded] = value
		if _, ok := allowed[folded]; !ok && !schema.AllowUnknown {
			verr.Unknown = append(verr.Unknown, key)
		}
	}
	for _, key := range schema.Required {
		value, ok := present[normalizeKey(key)]
		if !ok || isEmptyValue(value) {
			verr.Missing = append(verr.Missing, key)
		}
	}

	if len(verr.Missing) == 0 && len(verr.Unknown) == 0 {
		return nil
	}
	sort.Strings(verr.Missing)
	sort.Strings(verr.Unknown)
	return &verr
}

// isEmptyValue treats nil and blank strings as absent. A zero number
// or false boolean is still a deliberate value.
func isEmptyValue(v any) bool {
	if v == nil {
		return true
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s) == ""
	}
	return false
}
