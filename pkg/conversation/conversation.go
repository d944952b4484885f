package conversation

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// Persona labels who produced a transcript entry.
type Persona string

const (
	// PersonaYou is speech captured from the local microphone.
	PersonaYou Persona = "You"
	// PersonaSpeaker is speech captured from system loopback.
	PersonaSpeaker Persona = "Speaker"
	// PersonaAssistant is text the assistant spoke.
	PersonaAssistant Persona = "assistant"
	// PersonaSystem is the standing system prompt.
	PersonaSystem Persona = "system"
)

// Entry is one turn of the running transcript.
type Entry struct {
	Persona    Persona
	Text       string
	SpokenAt   time.Time
	SpeakerID  string
	Confidence float64
}

// State holds the shared conversation transcript. Transcription appends
// and amends entries; response generation reads a merged view. A version
// counter lets readers detect changes without diffing text.
type State struct {
	mu           sync.Mutex
	systemPrompt string
	entries      []Entry
	version      uint64
	clearGen     uint64
}

func NewState(systemPrompt string) *State {
	s := &State{systemPrompt: systemPrompt}
	s.reseedLocked()
	return s
}

func (s *State) reseedLocked() {
	s.entries = s.entries[:0]
	s.clearGen++
	if s.systemPrompt != "" {
		s.entries = append(s.entries, Entry{
			Persona:  PersonaSystem,
			Text:     s.systemPrompt,
			SpokenAt: time.Now(),
		})
	}
	s.version++
}

// Append adds a new entry and bumps the version.
func (s *State) Append(e Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e.SpokenAt.IsZero() {
		e.SpokenAt = time.Now()
	}
	s.entries = append(s.entries, e)
	s.version++
}

// Handle identifies one appended entry so its owner can amend it later,
// even after other personas have appended behind it. A handle goes stale
// when the transcript is cleared.
type Handle struct {
	index int
	gen   uint64
}

// AppendTracked adds a new entry and returns a handle for in-place
// amendment while the phrase or response is still growing.
func (s *State) AppendTracked(e Entry) Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e.SpokenAt.IsZero() {
		e.SpokenAt = time.Now()
	}
	s.entries = append(s.entries, e)
	s.version++
	return Handle{index: len(s.entries) - 1, gen: s.clearGen}
}

// Amend replaces the text of the entry behind h. Returns false when the
// handle is stale (transcript cleared since AppendTracked).
func (s *State) Amend(h Handle, text string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if h.gen != s.clearGen || h.index < 0 || h.index >= len(s.entries) {
		return false
	}
	s.entries[h.index].Text = text
	s.entries[h.index].SpokenAt = time.Now()
	s.version++
	return true
}

// Last returns a copy of the most recent entry.
func (s *State) Last() (Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.entries) == 0 {
		return Entry{}, false
	}
	return s.entries[len(s.entries)-1], true
}

// Entries returns a copy of the transcript.
func (s *State) Entries() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

// Version returns the current change counter. It increases on every
// mutation, so pollers can compare versions instead of transcripts.
func (s *State) Version() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.version
}

// Len returns the number of entries, including the system prompt.
func (s *State) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Clear drops all entries and reseeds the system prompt.
func (s *State) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reseedLocked()
}

// MergedTranscript renders the most recent maxPhrases non-system entries
// as "Persona: text" lines, oldest first. maxPhrases <= 0 means all.
func (s *State) MergedTranscript(maxPhrases int) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	spoken := make([]Entry, 0, len(s.entries))
	for _, e := range s.entries {
		if e.Persona == PersonaSystem {
			continue
		}
		spoken = append(spoken, e)
	}
	if maxPhrases > 0 && len(spoken) > maxPhrases {
		spoken = spoken[len(spoken)-maxPhrases:]
	}

	var b strings.Builder
	for i, e := range spoken {
		if i > 0 {
			b.WriteByte('\n')
		}
		label := string(e.Persona)
		if identified(e) {
			label = fmt.Sprintf("%s (%s)", e.Persona, e.SpeakerID)
		}
		fmt.Fprintf(&b, "%s: %s", label, e.Text)
	}
	return b.String()
}

// identified reports whether an entry carries a usable speaker label.
// Classification tags captured speech on both the microphone and the
// loopback path; entries the classifier could not place stay unlabeled.
func identified(e Entry) bool {
	if e.Persona != PersonaYou && e.Persona != PersonaSpeaker {
		return false
	}
	return e.SpeakerID != "" && e.SpeakerID != "unknown"
}

// SystemPrompt returns the standing system prompt.
func (s *State) SystemPrompt() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.systemPrompt
}
