package metrics

import "time"

// Event names emitted by the pipeline.
const (
	EventQueueDrop        = "queue_drop"
	EventQueueDrain       = "queue_drain"
	EventPrune            = "prune"
	EventEchoSuppressed   = "echo_suppressed"
	EventStaleJobDiscard  = "stale_job_discard"
	EventPlaybackComplete = "playback_complete"
	EventPlaybackFailed   = "playback_failed"
	EventUnitSkipped      = "unit_skipped"
	EventResponseStarted  = "response_started"
	EventResponseDone     = "response_done"
)

type MetricsEvent struct {
	Name   string
	Time   time.Time
	Value  float64
	Tags   map[string]string
	Fields map[string]any
}

type Observer interface {
	RecordEvent(ev MetricsEvent)
}

type NoopObserver struct{}

func (NoopObserver) RecordEvent(MetricsEvent) {}

// Record is a convenience wrapper that tolerates a nil observer.
func Record(obs Observer, name string, tags map[string]string) {
	if obs == nil {
		return
	}
	obs.RecordEvent(MetricsEvent{Name: name, Time: time.Now(), Value: 1, Tags: tags})
}
