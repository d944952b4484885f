package respond

import (
	"strings"
)

// StreamState tracks the Sentence Streamer lifecycle for one response.
type StreamState int

const (
	StateIdle StreamState = iota
	StateStreaming
	StateFlushing
	StateDone
)

func (s StreamState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStreaming:
		return "streaming"
	case StateFlushing:
		return "flushing"
	case StateDone:
		return "done"
	}
	return "unknown"
}

// SpeakableUnit is one sentence-sized span of response text ready for
// synthesis. Sequence orders units within their response.
type SpeakableUnit struct {
	Text     string
	Sequence int
}

// StreamerConfig bounds how much text may accumulate before a unit is
// forced out even without a sentence terminator.
type StreamerConfig struct {
	// MinChars is the shortest sentence worth synthesizing on its own;
	// shorter terminated sentences merge into the next unit.
	MinChars int
	// SoftLimit breaks at the last space once exceeded.
	SoftLimit int
	// HardLimit force-emits the whole buffer regardless of spaces.
	HardLimit int
}

func DefaultStreamerConfig() StreamerConfig {
	return StreamerConfig{MinChars: 3, SoftLimit: 30, HardLimit: 42}
}

// SentenceStreamer chops one token-by-token model response into
// speakable units. It is owned by a single goroutine (the response
// supervisor) and is not safe for concurrent use; one instance serves
// exactly one response.
type SentenceStreamer struct {
	cfg   StreamerConfig
	state StreamState
	buf   strings.Builder
	full  strings.Builder
	seq   int
}

func NewSentenceStreamer(cfg StreamerConfig) *SentenceStreamer {
	d := DefaultStreamerConfig()
	if cfg.MinChars <= 0 {
		cfg.MinChars = d.MinChars
	}
	if cfg.SoftLimit <= 0 {
		cfg.SoftLimit = d.SoftLimit
	}
	if cfg.HardLimit <= cfg.SoftLimit {
		cfg.HardLimit = cfg.SoftLimit + (d.HardLimit - d.SoftLimit)
	}
	return &SentenceStreamer{cfg: cfg, state: StateIdle}
}

func (s *SentenceStreamer) State() StreamState { return s.state }

// Text returns the full response text accumulated so far, including
// anything already emitted as units.
func (s *SentenceStreamer) Text() string { return s.full.String() }

func isTerminator(r byte) bool {
	return r == '.' || r == '!' || r == '?'
}

// Feed consumes one token and returns any units it completed.
func (s *SentenceStreamer) Feed(token string) []SpeakableUnit {
	if s.state == StateDone || s.state == StateFlushing {
		return nil
	}
	s.state = StateStreaming
	s.buf.WriteString(token)
	s.full.WriteString(token)
	return s.drainBuffer()
}

// drainBuffer emits as many units as the current buffer supports.
func (s *SentenceStreamer) drainBuffer() []SpeakableUnit {
	var units []SpeakableUnit
	for {
		text := s.buf.String()

		if cut := s.sentenceCut(text); cut > 0 {
			units = append(units, s.emit(text[:cut], text[cut:]))
			continue
		}
		if len(text) > s.cfg.SoftLimit {
			if sp := strings.LastIndexByte(text, ' '); sp > 0 {
				units = append(units, s.emit(text[:sp], text[sp+1:]))
				continue
			}
		}
		if len(text) > s.cfg.HardLimit {
			units = append(units, s.emit(text, ""))
			continue
		}
		return units
	}
}

// sentenceCut finds the end of the first emit-worthy sentence in text,
// or 0 when none. Sentences below the minimum merge with what follows.
func (s *SentenceStreamer) sentenceCut(text string) int {
	for i := 0; i < len(text); i++ {
		if !isTerminator(text[i]) {
			continue
		}
		// Swallow runs like "..." or "?!".
		end := i + 1
		for end < len(text) && isTerminator(text[end]) {
			end++
		}
		if len(strings.TrimSpace(text[:end])) >= s.cfg.MinChars {
			return end
		}
		i = end - 1
	}
	return 0
}

func (s *SentenceStreamer) emit(head, tail string) SpeakableUnit {
	s.buf.Reset()
	s.buf.WriteString(strings.TrimLeft(tail, " "))
	unit := SpeakableUnit{Text: strings.TrimSpace(head), Sequence: s.seq}
	s.seq++
	return unit
}

// Flush ends the stream normally, emitting any trailing partial unit.
func (s *SentenceStreamer) Flush() []SpeakableUnit {
	if s.state == StateDone {
		return nil
	}
	s.state = StateFlushing
	var units []SpeakableUnit
	if rest := strings.TrimSpace(s.buf.String()); rest != "" {
		s.buf.Reset()
		units = append(units, SpeakableUnit{Text: rest, Sequence: s.seq})
		s.seq++
	}
	s.state = StateDone
	return units
}

// Cancel ends the stream without flushing; buffered text is discarded.
func (s *SentenceStreamer) Cancel() {
	s.buf.Reset()
	s.state = StateDone
}
