package capture

import (
	"log/slog"
	"sync"
	"time"

	"github.com/voxloop/voxloop/pkg/logging"
)

// MuteGate keeps the speaker-loopback device muted for a short cooldown
// after assistant playback ends, so the tail of the assistant's own voice
// is not captured and re-transcribed. Echo suppression on the transcript
// side is separate; this gate acts on the capture layer itself.
type MuteGate struct {
	mu       sync.Mutex
	device   Device
	cooldown time.Duration
	timer    *time.Timer
	muted    bool
	logger   *slog.Logger
}

func NewMuteGate(device Device, cooldown time.Duration) *MuteGate {
	if cooldown <= 0 {
		cooldown = 500 * time.Millisecond
	}
	return &MuteGate{
		device:   device,
		cooldown: cooldown,
		logger:   logging.NewComponentLogger(slog.Default(), "mute_gate"),
	}
}

// OnPlaybackEnd mutes the gated device and schedules re-enable after the
// cooldown. Repeated calls extend the mute window.
func (g *MuteGate) OnPlaybackEnd() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.device == nil {
		return
	}
	if !g.muted {
		g.device.Disable()
		g.muted = true
		g.logger.Debug("speaker capture muted",
			slog.Duration("cooldown", g.cooldown))
	}
	if g.timer != nil {
		g.timer.Stop()
	}
	g.timer = time.AfterFunc(g.cooldown, g.unmute)
}

func (g *MuteGate) unmute() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.muted {
		return
	}
	g.device.Enable()
	g.muted = false
	g.logger.Debug("speaker capture unmuted")
}

// Muted reports whether the gate currently holds the device muted.
func (g *MuteGate) Muted() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.muted
}

// Stop cancels any pending re-enable and unmutes the device.
func (g *MuteGate) Stop() {
	g.mu.Lock()
	if g.timer != nil {
		g.timer.Stop()
		g.timer = nil
	}
	g.mu.Unlock()
	g.unmute()
}
