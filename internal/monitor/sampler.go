package monitor

import (
	"context"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/mem"
	"github.com/shirou/gopsutil/v4/process"

	"vpsd/internal/models"
	"vpsd/internal/registry"
)

// HostSampler reads per-instance usage directly from the host: each VPS is
// backed by a qemu process whose command line carries the instance name.
// CPU usage is computed as the process time delta over the host time delta
// between two samples, RAM as RSS over host total.
type HostSampler struct {
	reg *registry.Registry

	mu            sync.Mutex
	lastHostTotal float64
	lastProcTotal map[string]float64
}

// NewHostSampler creates a sampler over the registry's known instances.
func NewHostSampler(reg *registry.Registry) *HostSampler {
	return &HostSampler{reg: reg, lastProcTotal: make(map[string]float64)}
}

// Sample implements Source. Instances without a matching process are
// skipped; the first cycle after a process appears reports zero CPU
// because no delta exists yet.
func (h *HostSampler) Sample(ctx context.Context) ([]models.UsageSample, error) {
	timesStats, err := cpu.TimesWithContext(ctx, false)
	if err != nil || len(timesStats) == 0 {
		return nil, err
	}
	hostDelta := h.updateHostSample(cpuTotal(timesStats[0]))

	vmStat, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return nil, err
	}

	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, err
	}
	byID := h.matchProcesses(ctx, procs)

	now := time.Now()
	var samples []models.UsageSample
	for _, v := range h.reg.List() {
		proc, ok := byID[v.ID]
		if !ok {
			h.clearProcSample(v.ID)
			continue
		}
		timesStat, err := proc.TimesWithContext(ctx)
		if err != nil {
			h.clearProcSample(v.ID)
			continue
		}
		cpuPercent := h.computeCPUPercent(v.ID, timesStat.Total(), hostDelta)

		var ramPercent float64
		if memInfo, err := proc.MemoryInfoWithContext(ctx); err == nil && memInfo != nil && vmStat.Total > 0 {
			ramPercent = clampFloat(float64(memInfo.RSS)/float64(vmStat.Total)*100, 0, 100)
		}

		samples = append(samples, models.UsageSample{
			VPSID:      v.ID,
			RAMPercent: ramPercent,
			CPUPercent: cpuPercent,
			SampledAt:  now,
		})
	}
	return samples, nil
}

// matchProcesses maps VPS identifiers to their qemu processes by scanning
// command lines for the guest name.
func (h *HostSampler) matchProcesses(ctx context.Context, procs []*process.Process) map[string]*process.Process {
	known := make(map[string]struct{})
	for _, v := range h.reg.List() {
		known[v.ID] = struct{}{}
	}
	out := make(map[string]*process.Process)
	for _, p := range procs {
		name, err := p.NameWithContext(ctx)
		if err != nil || !strings.Contains(name, "qemu") {
			continue
		}
		cmdline, err := p.CmdlineWithContext(ctx)
		if err != nil {
			continue
		}
		for id := range known {
			if strings.Contains(cmdline, id) {
				out[id] = p
				break
			}
		}
	}
	return out
}

func (h *HostSampler) computeCPUPercent(id string, total, hostDelta float64) float64 {
	h.mu.Lock()
	prev, hasPrev := h.lastProcTotal[id]
	h.lastProcTotal[id] = total
	h.mu.Unlock()
	if !hasPrev || hostDelta <= 0 {
		return 0
	}
	delta := total - prev
	if delta <= 0 {
		return 0
	}
	return clampFloat((delta/hostDelta)*100, 0, 100)
}

func (h *HostSampler) updateHostSample(total float64) float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	delta := total - h.lastHostTotal
	hasPrev := h.lastHostTotal > 0
	h.lastHostTotal = total
	if !hasPrev {
		return 0
	}
	return delta
}

func (h *HostSampler) clearProcSample(id string) {
	h.mu.Lock()
	delete(h.lastProcTotal, id)
	h.mu.Unlock()
}

func cpuTotal(stat cpu.TimesStat) float64 {
	return stat.User + stat.System + stat.Nice + stat.Idle + stat.Iowait +
		stat.Irq + stat.Softirq + stat.Steal + stat.Guest + stat.GuestNice
}

func clampFloat(val, min, max float64) float64 {
	if math.IsNaN(val) {
		return min
	}
	if val < min {
		return min
	}
	if val > max {
		return max
	}
	return val
}
