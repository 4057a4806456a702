// Package metrics samples host resource utilization for the benchmark: CPU
// load, RAM usage and disk usage. Readings are best effort; a probe that
// cannot read the host returns a degraded value together with an error
// marked ErrMetricsUnavailable.
package metrics

import (
	"context"

	"github.com/cockroachdb/errors"
)

// ErrMetricsUnavailable marks a reading that could not be taken.
var ErrMetricsUnavailable = errors.New("metrics unavailable")

// UnavailableCPU is the CPU load reported when it cannot be read.
const UnavailableCPU = -1.0

// Probe takes point-in-time resource readings.
type Probe interface {
	// CPULoad returns the fraction of non-idle CPU time since the previous
	// call, in [0, 1].
	CPULoad(ctx context.Context) (float64, error)

	// RAMUsed returns used physical memory over total physical memory.
	RAMUsed(ctx context.Context) (float64, error)
}

// DiskProbe reports the used fraction of the filesystem holding path.
type DiskProbe interface {
	DiskUsed(ctx context.Context, path string) (float64, error)
}

// Static is a Probe returning fixed readings.
type Static struct {
	CPU float64
	RAM float64
}

// CPULoad implements Probe.
func (s Static) CPULoad(context.Context) (float64, error) { return s.CPU, nil }

// RAMUsed implements Probe.
func (s Static) RAMUsed(context.Context) (float64, error) { return s.RAM, nil }

func unavailable(err error, what string) error {
	return errors.Mark(errors.Wrapf(err, "read %s", what), ErrMetricsUnavailable)
}

func fraction(used, total float64) float64 {
	if total <= 0 {
		return 0
	}

	return clamp(used / total)
}

func clamp(f float64) float64 {
	switch {
	case f < 0:
		return 0
	case f > 1:
		return 1
	default:
		return f
	}
}
