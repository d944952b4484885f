package errorsx

import (
	"errors"
	"fmt"
	"testing"
)

func TestWrapClassifiesOnce(t *testing.T) {
	base := errors.New("socket closed")
	inner := Wrap(base, ReasonTTSConnect)
	outer := Wrap(inner, ReasonTTSSynthesize)

	if Reason(outer) != ReasonTTSConnect {
		t.Fatalf("reason = %q, want the inner classification", Reason(outer))
	}
	if !errors.Is(outer, base) {
		t.Fatal("wrapped error must unwrap to the original")
	}
}

func TestWrapSurvivesFmtWrapping(t *testing.T) {
	err := fmt.Errorf("synthesize: %w", Wrap(errors.New("429"), ReasonTTSRateLimit))
	if !HasReason(err, ReasonTTSRateLimit) {
		t.Fatal("reason lost through fmt.Errorf wrapping")
	}
}

func TestReasonDefaults(t *testing.T) {
	if Reason(nil) != ReasonUnknown {
		t.Fatal("nil error must report ReasonUnknown")
	}
	if Reason(errors.New("plain")) != ReasonUnknown {
		t.Fatal("unclassified error must report ReasonUnknown")
	}
	if Wrap(nil, ReasonCapture) != nil {
		t.Fatal("wrapping nil must stay nil")
	}
}

func TestErrorMessageCarriesReason(t *testing.T) {
	err := Wrap(errors.New("write refused"), ReasonDeviceWrite)
	if got, want := err.Error(), "device_write: write refused"; got != want {
		t.Fatalf("Error() = %q, want %q", got, want)
	}
}
