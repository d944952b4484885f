package respond

import (
	"strings"
	"testing"
)

func feedAll(s *SentenceStreamer, tokens []string) []SpeakableUnit {
	var units []SpeakableUnit
	for _, tok := range tokens {
		units = append(units, s.Feed(tok)...)
	}
	return units
}

func TestTwoSentencesEmitTwoUnits(t *testing.T) {
	s := NewSentenceStreamer(DefaultStreamerConfig())
	units := feedAll(s, []string{"Hi", "!", " How", " are", " you", "?"})

	if len(units) != 2 {
		t.Fatalf("units = %d, want 2: %+v", len(units), units)
	}
	if units[0].Text != "Hi!" {
		t.Fatalf("unit 0 = %q", units[0].Text)
	}
	if units[1].Text != "How are you?" {
		t.Fatalf("unit 1 = %q", units[1].Text)
	}
	if units[0].Sequence != 0 || units[1].Sequence != 1 {
		t.Fatalf("sequences = %d, %d", units[0].Sequence, units[1].Sequence)
	}
}

func TestFlushEmitsTrailingPartial(t *testing.T) {
	s := NewSentenceStreamer(DefaultStreamerConfig())
	units := feedAll(s, []string{"First one", ".", " and a tail"})
	if len(units) != 1 || units[0].Text != "First one." {
		t.Fatalf("pre-flush units = %+v", units)
	}

	tail := s.Flush()
	if len(tail) != 1 || tail[0].Text != "and a tail" {
		t.Fatalf("flush units = %+v", tail)
	}
	if s.State() != StateDone {
		t.Fatalf("state after flush = %v", s.State())
	}
	if got := s.Flush(); got != nil {
		t.Fatalf("second flush emitted %+v", got)
	}
}

func TestSoftLimitBreaksAtLastSpace(t *testing.T) {
	s := NewSentenceStreamer(StreamerConfig{MinChars: 3, SoftLimit: 30, HardLimit: 42})
	units := feedAll(s, []string{"the quick brown fox jumps over the lazy dog"})

	if len(units) == 0 {
		t.Fatal("soft limit did not break")
	}
	first := units[0].Text
	if len(first) > 42 {
		t.Fatalf("unit longer than hard limit: %q", first)
	}
	if strings.HasSuffix(first, " ") || !strings.Contains("the quick brown fox jumps over the lazy dog", first) {
		t.Fatalf("break not at word boundary: %q", first)
	}
}

func TestHardLimitForcesEmitWithoutSpaces(t *testing.T) {
	s := NewSentenceStreamer(StreamerConfig{MinChars: 3, SoftLimit: 10, HardLimit: 20})
	long := strings.Repeat("x", 25)
	units := s.Feed(long)
	if len(units) != 1 {
		t.Fatalf("units = %+v", units)
	}
	if units[0].Text != long {
		t.Fatalf("forced unit = %q", units[0].Text)
	}
}

func TestShortSentenceMergesIntoNext(t *testing.T) {
	s := NewSentenceStreamer(StreamerConfig{MinChars: 6, SoftLimit: 30, HardLimit: 42})
	units := feedAll(s, []string{"Ok.", " Then we ship it."})
	if len(units) != 1 {
		t.Fatalf("units = %+v", units)
	}
	if units[0].Text != "Ok. Then we ship it." {
		t.Fatalf("merged unit = %q", units[0].Text)
	}
}

func TestCancelDiscardsBufferWithoutFlush(t *testing.T) {
	s := NewSentenceStreamer(DefaultStreamerConfig())
	s.Feed("half a sentence with no end")
	s.Cancel()

	if s.State() != StateDone {
		t.Fatalf("state after cancel = %v", s.State())
	}
	if got := s.Flush(); got != nil {
		t.Fatalf("flush after cancel emitted %+v", got)
	}
	if got := s.Feed("more"); got != nil {
		t.Fatalf("feed after cancel emitted %+v", got)
	}
}

func TestTextAccumulatesFullResponse(t *testing.T) {
	s := NewSentenceStreamer(DefaultStreamerConfig())
	feedAll(s, []string{"Hello", " there", ". ", "General"})
	s.Flush()
	if s.Text() != "Hello there. General" {
		t.Fatalf("full text = %q", s.Text())
	}
}

func TestTerminatorRunsStayTogether(t *testing.T) {
	s := NewSentenceStreamer(DefaultStreamerConfig())
	units := feedAll(s, []string{"Really?!", " Yes."})
	if len(units) != 2 {
		t.Fatalf("units = %+v", units)
	}
	if units[0].Text != "Really?!" {
		t.Fatalf("unit 0 = %q", units[0].Text)
	}
}
