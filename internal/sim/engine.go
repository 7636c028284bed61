package sim

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/vitaminmoo/wifictl/internal/iperf"
	"github.com/vitaminmoo/wifictl/internal/wifi"
)

// ErrIperfRunning is returned by Start while a run is in progress.
var ErrIperfRunning = errors.New("iperf is running")

// Engine is a simulated measurement engine. A run lasts cfg.Time seconds
// of wall time scaled by Scale and bumps the device's frame counters.
type Engine struct {
	dev *Device
	log *zap.Logger

	// Scale shortens simulated runs. One second of run time lasts Scale.
	Scale time.Duration

	mu      sync.Mutex
	current *iperf.Config
	timer   *time.Timer
	runs    []iperf.Config
	stops   int
}

// NewEngine returns an engine attached to dev.
func NewEngine(dev *Device) *Engine {
	return &Engine{dev: dev, log: dev.log.Named("iperf"), Scale: time.Second}
}

func (e *Engine) Start(ctx context.Context, cfg iperf.Config) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.current != nil {
		return ErrIperfRunning
	}
	c := cfg
	e.current = &c
	e.runs = append(e.runs, cfg)
	e.timer = time.AfterFunc(time.Duration(cfg.Time)*e.Scale, func() {
		e.finish(&c)
	})
	e.log.Info("iperf started", zap.Stringer("config", cfg))
	return nil
}

func (e *Engine) finish(c *iperf.Config) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.current != c {
		return
	}
	e.current = nil
	e.timer = nil

	e.dev.mu.Lock()
	name := "rx_frames"
	if c.Flag.Has(iperf.FlagClient) {
		name = "tx_frames"
	}
	e.dev.bumpLocked(wifi.CategoryHW, name)
	e.dev.mu.Unlock()

	e.log.Info("iperf done", zap.Stringer("config", *c))
}

func (e *Engine) Stop(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stops++
	if e.current == nil {
		return nil
	}
	e.timer.Stop()
	e.current = nil
	e.timer = nil
	e.log.Info("iperf stopped")
	return nil
}

// Running returns the configuration of the run in progress.
func (e *Engine) Running() (iperf.Config, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.current == nil {
		return iperf.Config{}, false
	}
	return *e.current, true
}

// Runs returns every configuration passed to Start.
func (e *Engine) Runs() []iperf.Config {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]iperf.Config(nil), e.runs...)
}

// Stops returns the number of Stop calls.
func (e *Engine) Stops() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stops
}
