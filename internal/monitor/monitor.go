// Package monitor runs the anti-abuse control loop: it polls resource
// telemetry for every instance and suspends the ones that sustain usage
// above the configured anti-crypto thresholds.
package monitor

import (
	"context"
	"errors"
	"sync"
	"time"

	"vpsd/internal/engine"
	"vpsd/internal/models"
	"vpsd/internal/registry"
	"vpsd/internal/utils"
)

// SuspendReason is the fixed diagnostic attached to automatic suspensions.
const SuspendReason = "Suspicious crypto-mining behavior detected."

const defaultInterval = 30 * time.Second

// Source produces telemetry samples. Samples for identifiers the registry
// does not know are ignored; telemetry may lag the registry.
type Source interface {
	Sample(ctx context.Context) ([]models.UsageSample, error)
}

// Monitor evaluates samples against thresholds and drives suspensions
// through the lifecycle engine's ordinary suspend path.
type Monitor struct {
	eng      *engine.Engine
	reg      *registry.Registry
	src      Source
	log      *utils.Logger
	interval time.Duration

	mu   sync.Mutex
	stop chan struct{}
	wg   sync.WaitGroup
}

// New creates a monitor. A non-positive interval falls back to the default.
func New(eng *engine.Engine, reg *registry.Registry, src Source, log *utils.Logger, interval time.Duration) *Monitor {
	if interval <= 0 {
		interval = defaultInterval
	}
	return &Monitor{eng: eng, reg: reg, src: src, log: log, interval: interval}
}

// Start launches the background evaluation loop. Calling Start on a
// running monitor is a no-op.
func (m *Monitor) Start() {
	m.mu.Lock()
	if m.stop != nil {
		m.mu.Unlock()
		return
	}
	stop := make(chan struct{})
	m.stop = stop
	m.mu.Unlock()

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()
		ctx := context.Background()
		m.Evaluate(ctx)
		for {
			select {
			case <-ticker.C:
				m.Evaluate(ctx)
			case <-stop:
				return
			}
		}
	}()
}

// Stop halts the loop and waits for it to drain.
func (m *Monitor) Stop() {
	m.mu.Lock()
	stop := m.stop
	m.stop = nil
	m.mu.Unlock()
	if stop != nil {
		close(stop)
	}
	m.wg.Wait()
}

// Evaluate runs one polling cycle. A failed suspend is logged and the
// cycle moves on to the next sample; the loop never crashes over one
// misbehaving instance.
func (m *Monitor) Evaluate(ctx context.Context) {
	samples, err := m.src.Sample(ctx)
	if err != nil {
		m.log.Writef("telemetry sample failed: %v", err)
		return
	}

	thresholds := m.reg.Settings().AntiCrypto
	if thresholds.MaxRAMUsage <= 0 && thresholds.MaxCPUUsage <= 0 {
		return
	}

	for _, sample := range samples {
		if !exceeds(sample, thresholds) {
			continue
		}
		if _, err := m.reg.Get(sample.VPSID); errors.Is(err, registry.ErrNotFound) {
			continue
		}
		if _, err := m.eng.Suspend(ctx, engine.SystemPrincipal, sample.VPSID, SuspendReason); err != nil {
			if errors.Is(err, registry.ErrNotFound) {
				continue
			}
			m.log.Writef("auto-suspend of %s failed: %v", sample.VPSID, err)
		}
	}
}

func exceeds(s models.UsageSample, t models.AntiCrypto) bool {
	if t.MaxRAMUsage > 0 && s.RAMPercent > t.MaxRAMUsage {
		return true
	}
	if t.MaxCPUUsage > 0 && s.CPUPercent > t.MaxCPUUsage {
		return true
	}
	return false
}
