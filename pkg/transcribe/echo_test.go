package transcribe

import (
	"testing"
	"time"

	"github.com/voxloop/voxloop/pkg/metrics"
)

func TestNeverSuppressBeforeAnyPlayback(t *testing.T) {
	s := NewSuppressor(2*time.Second, 0.85, metrics.NoopObserver{})
	if s.ShouldSuppress("Thanks for that!", time.Now()) {
		t.Fatal("must not suppress before any playback")
	}
}

func TestSuppressSimilarTranscriptInsideWindow(t *testing.T) {
	s := NewSuppressor(2*time.Second, 0.85, metrics.NoopObserver{})
	end := time.Now()
	s.SetLastResponse("Thanks for that!")
	s.NotePlayback(end)

	if !s.ShouldSuppress("thanks for that", end.Add(300*time.Millisecond)) {
		t.Fatal("near-identical transcript inside window must be suppressed")
	}
	if s.ShouldSuppress("thanks for that", end.Add(5*time.Second)) {
		t.Fatal("transcript outside window must pass")
	}
}

func TestPerUnitPlaybackKeepsFullResponse(t *testing.T) {
	// A multi-sentence response plays as several units, each reporting
	// its own playback end. An echo of the first sentence must still be
	// recognized after later units finish.
	s := NewSuppressor(2*time.Second, 0.85, metrics.NoopObserver{})
	s.SetLastResponse("The build is green. Deploy whenever you like.")
	s.NotePlayback(time.Now())
	end := time.Now()
	s.NotePlayback(end)

	if !s.ShouldSuppress("the build is green", end.Add(300*time.Millisecond)) {
		t.Fatal("echo of the first spoken sentence must be suppressed inside the window")
	}
	if !s.ShouldSuppress("deploy whenever you like", end.Add(300*time.Millisecond)) {
		t.Fatal("echo of the last spoken sentence must be suppressed inside the window")
	}
}

func TestSuppressByContainment(t *testing.T) {
	s := NewSuppressor(2*time.Second, 0.85, metrics.NoopObserver{})
	end := time.Now()
	s.SetLastResponse("Sure, I can summarize the meeting notes for you.")
	s.NotePlayback(end)

	if !s.ShouldSuppress("summarize the meeting notes", end.Add(time.Second)) {
		t.Fatal("contained fragment of the spoken response must be suppressed")
	}
}

func TestUnrelatedTranscriptPasses(t *testing.T) {
	s := NewSuppressor(2*time.Second, 0.85, metrics.NewMemoryObserver())
	end := time.Now()
	s.SetLastResponse("Thanks for that!")
	s.NotePlayback(end)

	if s.ShouldSuppress("what is the weather tomorrow", end.Add(time.Second)) {
		t.Fatal("unrelated transcript suppressed")
	}
}

func TestSuppressDecisionIsIdempotent(t *testing.T) {
	s := NewSuppressor(2*time.Second, 0.85, metrics.NoopObserver{})
	end := time.Now()
	s.SetLastResponse("Thanks for that!")
	s.NotePlayback(end)

	at := end.Add(time.Second)
	first := s.ShouldSuppress("thanks for that", at)
	second := s.ShouldSuppress("thanks for that", at)
	if first != second {
		t.Fatalf("decision changed between identical calls: %v then %v", first, second)
	}
}

func TestSimilarityRatio(t *testing.T) {
	cases := []struct {
		a, b string
		min  float64
		max  float64
	}{
		{"abcd", "abcd", 1, 1},
		{"abcd", "wxyz", 0, 0},
		{"thanks for that", "thanks for that one", 0.85, 1},
	}
	for _, tc := range cases {
		got := similarity(tc.a, tc.b)
		if got < tc.min || got > tc.max {
			t.Fatalf("similarity(%q, %q) = %v, want in [%v, %v]", tc.a, tc.b, got, tc.min, tc.max)
		}
	}
}
