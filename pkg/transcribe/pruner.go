package transcribe

import (
	"strings"
	"time"

	"github.com/voxloop/voxloop/pkg/adapters/stt"
)

// PrunerConfig bounds how long a continuously growing phrase buffer may
// get before its recognized head is committed and its audio truncated.
type PrunerConfig struct {
	// SegmentThreshold is the segment count above which pruning is
	// attempted at all.
	SegmentThreshold int
	// KeepLastSegments are never considered as cut points; the tail of
	// the phrase must stay in flight.
	KeepLastSegments int
	// AudioCeiling is the duration above which a prune is forced even
	// without a sentence boundary.
	AudioCeiling time.Duration
	// Margin shifts the forced cut point past the ceiling overshoot so
	// consecutive cycles do not re-prune immediately.
	Margin time.Duration
}

func DefaultPrunerConfig() PrunerConfig {
	return PrunerConfig{
		SegmentThreshold: 6,
		KeepLastSegments: 3,
		AudioCeiling:     45 * time.Second,
		Margin:           5 * time.Second,
	}
}

// Decision is the outcome of a prune check. When Prune is true,
// Fraction is the share of the buffer (by duration) to cut from the
// front, Committed is the recognized text being finalized, and
// Remaining stays in flight for the next transcription cycle.
type Decision struct {
	Prune     bool
	SegmentID int
	Fraction  float64
	Committed string
	Remaining string
}

// Pruner implements the engine-agnostic latency-bound policy over
// normalized segments. Engine adapters normalize their native response
// shapes; the cut logic lives here once.
type Pruner struct {
	cfg PrunerConfig
}

func NewPruner(cfg PrunerConfig) *Pruner {
	d := DefaultPrunerConfig()
	if cfg.SegmentThreshold <= 0 {
		cfg.SegmentThreshold = d.SegmentThreshold
	}
	if cfg.KeepLastSegments <= 0 {
		cfg.KeepLastSegments = d.KeepLastSegments
	}
	if cfg.AudioCeiling <= 0 {
		cfg.AudioCeiling = d.AudioCeiling
	}
	if cfg.Margin <= 0 {
		cfg.Margin = d.Margin
	}
	return &Pruner{cfg: cfg}
}

func endsSentence(text string) bool {
	t := strings.TrimSpace(text)
	return strings.HasSuffix(t, ".") ||
		strings.HasSuffix(t, "!") ||
		strings.HasSuffix(t, "?")
}

// Check decides whether and where to prune. Segments must be ordered by
// time and cover the transcribed snapshot; total duration is taken from
// the last segment's end.
func (p *Pruner) Check(segments []stt.Segment) Decision {
	n := len(segments)
	if n == 0 || n <= p.cfg.SegmentThreshold {
		return Decision{}
	}

	total := segments[n-1].End
	if total <= 0 {
		return Decision{}
	}

	cutIdx := -1
	// Prefer a sentence boundary, scanning backwards but keeping the
	// last few segments in flight.
	for i := n - 1 - p.cfg.KeepLastSegments; i >= 0; i-- {
		if endsSentence(segments[i].Text) {
			cutIdx = i
			break
		}
	}

	if cutIdx < 0 && total > p.cfg.AudioCeiling {
		// No sentence boundary anywhere useful; force a cut near the
		// ceiling overshoot. The first segment ending past the cut
		// point is committed along with everything before it.
		cutAt := total - p.cfg.AudioCeiling + p.cfg.Margin
		for i := 0; i < n; i++ {
			if segments[i].End > cutAt {
				cutIdx = i
				break
			}
		}
	}
	if cutIdx < 0 {
		return Decision{}
	}

	fraction := float64(segments[cutIdx].End) / float64(total)
	if fraction <= 0 {
		return Decision{}
	}

	var committed, remaining strings.Builder
	for i, seg := range segments {
		if i <= cutIdx {
			committed.WriteString(seg.Text)
		} else {
			remaining.WriteString(seg.Text)
		}
	}
	return Decision{
		Prune:     true,
		SegmentID: segments[cutIdx].ID,
		Fraction:  fraction,
		Committed: strings.TrimSpace(committed.String()),
		Remaining: strings.TrimSpace(remaining.String()),
	}
}
