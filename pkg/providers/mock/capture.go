package mock

import (
	"context"
	"sync"
	"time"

	"github.com/voxloop/voxloop/pkg/audio"
	"github.com/voxloop/voxloop/pkg/capture"
)

type CaptureConfig struct {
	Name     string
	Source   audio.Source
	Format   audio.Format
	Interval time.Duration
	Chunk    []byte
}

// CaptureDevice emits a fixed PCM chunk on an interval until closed.
// It honors Enable/Disable the way a real driver binding would: audio
// captured while disabled is discarded.
type CaptureDevice struct {
	cfg     CaptureConfig
	out     chan audio.Chunk
	cancel  context.CancelFunc
	mu      sync.Mutex
	enabled bool
	started bool
}

func NewCaptureDevice(cfg CaptureConfig) *CaptureDevice {
	if cfg.Name == "" {
		cfg.Name = "mock_" + string(cfg.Source)
	}
	if cfg.Format.SampleRate == 0 {
		cfg.Format = audio.DefaultFormat
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 100 * time.Millisecond
	}
	if len(cfg.Chunk) == 0 {
		cfg.Chunk = make([]byte, cfg.Format.BytesPerFrame()*cfg.Format.SampleRate/10)
	}
	return &CaptureDevice{
		cfg:     cfg,
		out:     make(chan audio.Chunk, 64),
		enabled: true,
	}
}

func (d *CaptureDevice) Name() string               { return d.cfg.Name }
func (d *CaptureDevice) Source() audio.Source       { return d.cfg.Source }
func (d *CaptureDevice) Format() audio.Format       { return d.cfg.Format }
func (d *CaptureDevice) Chunks() <-chan audio.Chunk { return d.out }

func (d *CaptureDevice) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started {
		return nil
	}
	d.started = true

	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	go d.loop(runCtx)
	return nil
}

func (d *CaptureDevice) loop(ctx context.Context) {
	ticker := time.NewTicker(d.cfg.Interval)
	defer ticker.Stop()
	defer close(d.out)
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			d.mu.Lock()
			enabled := d.enabled
			d.mu.Unlock()
			if !enabled {
				continue
			}
			chunk := audio.Chunk{
				Source:     d.cfg.Source,
				PCM:        append([]byte(nil), d.cfg.Chunk...),
				CapturedAt: now,
			}
			select {
			case d.out <- chunk:
			default:
			}
		}
	}
}

func (d *CaptureDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.started = false
	return nil
}

func (d *CaptureDevice) Enable() {
	d.mu.Lock()
	d.enabled = true
	d.mu.Unlock()
}

func (d *CaptureDevice) Disable() {
	d.mu.Lock()
	d.enabled = false
	d.mu.Unlock()
}

var _ capture.Device = (*CaptureDevice)(nil)
