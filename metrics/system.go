package metrics

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/shirou/gopsutil/cpu"
	"github.com/shirou/gopsutil/disk"
	"github.com/shirou/gopsutil/mem"
)

// cpuTicks is a cumulative CPU time reading.
type cpuTicks struct {
	idle  float64
	total float64
}

// usage is a used/total pair of byte counts.
type usage struct {
	used  uint64
	total uint64
}

// SystemProbe reads the host through gopsutil. CPU load is computed from the
// tick deltas between consecutive calls, so the previous reading is kept on
// the probe.
type SystemProbe struct {
	readTicks  func(ctx context.Context) (cpuTicks, error)
	readMemory func(ctx context.Context) (usage, error)
	readDisk   func(ctx context.Context, path string) (usage, error)

	prev   cpuTicks
	primed bool
}

// NewSystemProbe returns a probe reading the local host.
func NewSystemProbe() *SystemProbe {
	return &SystemProbe{
		readTicks:  hostTicks,
		readMemory: hostMemory,
		readDisk:   hostDisk,
	}
}

// CPULoad implements Probe. The first call has no baseline and returns 0.
func (p *SystemProbe) CPULoad(ctx context.Context) (float64, error) {
	t, err := p.readTicks(ctx)
	if err != nil {
		return UnavailableCPU, unavailable(err, "cpu times")
	}

	if !p.primed {
		p.prev, p.primed = t, true

		return 0, nil
	}

	total := t.total - p.prev.total
	idle := t.idle - p.prev.idle
	p.prev = t

	if total <= 0 {
		return 0, nil
	}

	return clamp(1 - idle/total), nil
}

// RAMUsed implements Probe.
func (p *SystemProbe) RAMUsed(ctx context.Context) (float64, error) {
	u, err := p.readMemory(ctx)
	if err != nil {
		return 0, unavailable(err, "virtual memory")
	}

	return fraction(float64(u.used), float64(u.total)), nil
}

// DiskUsed implements DiskProbe.
func (p *SystemProbe) DiskUsed(ctx context.Context, path string) (float64, error) {
	u, err := p.readDisk(ctx, path)
	if err != nil {
		return 0, unavailable(err, "disk usage of "+path)
	}

	return fraction(float64(u.used), float64(u.total)), nil
}

func hostTicks(ctx context.Context) (cpuTicks, error) {
	stats, err := cpu.TimesWithContext(ctx, false)
	if err != nil {
		return cpuTicks{}, err
	}
	if len(stats) == 0 {
		return cpuTicks{}, errors.New("no cpu times reported")
	}

	s := stats[0]
	// Guest time is already included in user and nice.
	total := s.User + s.System + s.Idle + s.Nice + s.Iowait +
		s.Irq + s.Softirq + s.Steal

	return cpuTicks{idle: s.Idle, total: total}, nil
}

func hostMemory(ctx context.Context) (usage, error) {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return usage{}, err
	}

	return usage{used: vm.Used, total: vm.Total}, nil
}

func hostDisk(ctx context.Context, path string) (usage, error) {
	du, err := disk.UsageWithContext(ctx, path)
	if err != nil {
		return usage{}, err
	}

	return usage{used: du.Used, total: du.Total}, nil
}
