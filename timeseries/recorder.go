// Package timeseries accumulates per-second benchmark samples and writes them
// as a tab-separated report.
package timeseries

import (
	"bufio"
	"io"
	"os"
	"strconv"

	"github.com/cockroachdb/errors"
)

// Sample is one row of the report.
type Sample struct {
	// Elapsed is whole seconds since the run started.
	Elapsed int64
	// Throughput is operations per second averaged since the run started.
	Throughput uint64
	CPULoad    float64
	RAMUsed    float64
}

// Recorder keeps samples in insertion order, at most one per elapsed second.
type Recorder struct {
	samples []Sample
}

// NewRecorder returns a Recorder with room for capacity samples.
func NewRecorder(capacity int) *Recorder {
	return &Recorder{samples: make([]Sample, 0, capacity)}
}

// Record appends s if its elapsed second is later than the last recorded one.
// It reports whether the sample was kept.
func (r *Recorder) Record(s Sample) bool {
	if n := len(r.samples); n > 0 && s.Elapsed <= r.samples[n-1].Elapsed {
		return false
	}

	r.samples = append(r.samples, s)

	return true
}

// Len returns the number of recorded samples.
func (r *Recorder) Len() int { return len(r.samples) }

// Last returns the most recent sample, if any.
func (r *Recorder) Last() (Sample, bool) {
	if len(r.samples) == 0 {
		return Sample{}, false
	}

	return r.samples[len(r.samples)-1], true
}

// Samples returns a copy of the recorded samples.
func (r *Recorder) Samples() []Sample {
	out := make([]Sample, len(r.samples))
	copy(out, r.samples)

	return out
}

// WriteTSV writes one line per sample: elapsed, throughput, cpu load, ram
// used. There is no header.
func (r *Recorder) WriteTSV(w io.Writer) error {
	bw := bufio.NewWriter(w)

	var line []byte
	for _, s := range r.samples {
		line = line[:0]
		line = strconv.AppendInt(line, s.Elapsed, 10)
		line = append(line, '\t')
		line = strconv.AppendUint(line, s.Throughput, 10)
		line = append(line, '\t')
		line = strconv.AppendFloat(line, s.CPULoad, 'g', 6, 64)
		line = append(line, '\t')
		line = strconv.AppendFloat(line, s.RAMUsed, 'g', 6, 64)
		line = append(line, '\n')

		if _, err := bw.Write(line); err != nil {
			return errors.Wrap(err, "write sample")
		}
	}

	return errors.Wrap(bw.Flush(), "flush samples")
}

// WriteFile writes the TSV report to path, replacing any existing file.
func (r *Recorder) WriteFile(path string) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "create report file")
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = errors.Wrap(cerr, "close report file")
		}
	}()

	return r.WriteTSV(f)
}
