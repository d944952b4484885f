package transcribe

import (
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/voxloop/voxloop/pkg/metrics"
)

// Suppressor filters speaker-source transcripts that are really the
// assistant's own voice leaking back through loopback capture. It
// compares candidates against the last spoken response, but only inside
// a short window after playback ends; outside the window a matching
// text is treated as a genuine human echo of the assistant.
type Suppressor struct {
	mu              sync.Mutex
	window          time.Duration
	threshold       float64
	lastResponse    string
	lastPlaybackEnd time.Time
	obs             metrics.Observer
}

func NewSuppressor(window time.Duration, similarityThreshold float64, obs metrics.Observer) *Suppressor {
	if window <= 0 {
		window = 2 * time.Second
	}
	if similarityThreshold <= 0 || similarityThreshold > 1 {
		similarityThreshold = 0.85
	}
	return &Suppressor{window: window, threshold: similarityThreshold, obs: obs}
}

// NotePlayback records when assistant audio last finished playing.
// Called by the playback layer after every unit, including abandoned
// ones; the response text itself arrives through SetLastResponse so a
// single unit never shadows the full response.
func (s *Suppressor) NotePlayback(endedAt time.Time) {
	s.mu.Lock()
	s.lastPlaybackEnd = endedAt
	s.mu.Unlock()
}

// SetLastResponse records the finalized text of the most recent
// assistant response without touching playback timing. Called by the
// response supervisor when a response completes.
func (s *Suppressor) SetLastResponse(text string) {
	if text == "" {
		return
	}
	s.mu.Lock()
	s.lastResponse = text
	s.mu.Unlock()
}

// LastPlaybackEnd returns when assistant audio last finished, zero if
// never.
func (s *Suppressor) LastPlaybackEnd() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastPlaybackEnd
}

// ShouldSuppress reports whether a speaker transcript observed at the
// given time should be discarded as self-echo. Before any playback has
// happened this never suppresses.
func (s *Suppressor) ShouldSuppress(text string, at time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.lastPlaybackEnd.IsZero() || s.lastResponse == "" {
		return false
	}
	if at.Sub(s.lastPlaybackEnd) > s.window {
		return false
	}

	candidate := normalizeForMatch(text)
	spoken := normalizeForMatch(s.lastResponse)
	if candidate == "" || spoken == "" {
		return false
	}

	match := candidate == spoken ||
		strings.Contains(spoken, candidate) ||
		strings.Contains(candidate, spoken) ||
		similarity(candidate, spoken) >= s.threshold

	if match {
		metrics.Record(s.obs, metrics.EventEchoSuppressed, map[string]string{"source": "speaker"})
	}
	return match
}

// normalizeForMatch lowercases and strips everything but letters,
// digits, and single spaces so punctuation and casing differences in
// the re-transcription do not defeat the comparison.
func normalizeForMatch(s string) string {
	var b strings.Builder
	lastSpace := true
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastSpace = false
		case unicode.IsSpace(r) && !lastSpace:
			b.WriteByte(' ')
			lastSpace = true
		}
	}
	return strings.TrimSpace(b.String())
}

// similarity is the classic ratio 2*M/T where M is the length of the
// longest common subsequence and T the total length of both strings.
func similarity(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 && len(rb) == 0 {
		return 1
	}
	if len(ra) == 0 || len(rb) == 0 {
		return 0
	}
	prev := make([]int, len(rb)+1)
	cur := make([]int, len(rb)+1)
	for i := 1; i <= len(ra); i++ {
		for j := 1; j <= len(rb); j++ {
			if ra[i-1] == rb[j-1] {
				cur[j] = prev[j-1] + 1
			} else if prev[j] >= cur[j-1] {
				cur[j] = prev[j]
			} else {
				cur[j] = cur[j-1]
			}
		}
		prev, cur = cur, prev
	}
	lcs := prev[len(rb)]
	return 2 * float64(lcs) / float64(len(ra)+len(rb))
}
