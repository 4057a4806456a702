// Package report formats benchmark results into comparison tables.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/weiihann/swapbench/harness"
)

// Generate writes a markdown comparison table for the given results.
func Generate(w io.Writer, results []harness.Result) error {
	if len(results) == 0 {
		return errors.New("no results to report")
	}

	rootMatch := checkStateRoots(results)
	fastestMs := findFastest(results)

	// Header.
	fmt.Fprintln(w, "## Swap Benchmark Results")
	fmt.Fprintln(w)

	// State root check.
	if rootMatch {
		fmt.Fprintln(w, "State roots: **all match**")
	} else {
		fmt.Fprintln(w, "State roots: **MISMATCH**")

		for _, r := range results {
			if !r.Failed() {
				fmt.Fprintf(w, "  - %s: %s\n", r.Backend, r.StateRoot)
			}
		}
	}

	fmt.Fprintln(w)

	// Table header.
	fmt.Fprintln(w, "| Backend | Elapsed | Fill | Swap | Flush "+
		"| Swaps/s | Peak Mem | DB Size | Speedup |")
	fmt.Fprintln(w, "|---------|---------|------|------|-------"+
		"|---------|----------|---------|---------|")

	for _, r := range results {
		speedup := "-"
		if !r.Failed() && fastestMs > 0 && r.ElapsedMs > 0 {
			speedup = fmt.Sprintf("%.2fx", float64(r.ElapsedMs)/float64(fastestMs))
		}

		fmt.Fprintf(w, "| %s | %s | %s | %s | %s | %s | %s | %s | %s |\n",
			r.Backend,
			formatMs(r.ElapsedMs),
			formatMs(r.FillMs),
			formatMs(r.SwapMs),
			formatMs(r.FlushMs),
			formatRate(r.Swaps, r.SwapMs),
			formatBytes(r.PeakMemoryBytes),
			formatBytes(r.DBSizeBytes),
			speedup,
		)
	}

	fmt.Fprintln(w)

	// Detail rows.
	fmt.Fprintln(w, "| Backend | Accounts | Swaps | Pushed | Squashed | Samples | Degraded |")
	fmt.Fprintln(w, "|---------|----------|-------|--------|----------|---------|----------|")

	for _, r := range results {
		fmt.Fprintf(w, "| %s | %d | %d | %d | %d | %d | %d |\n",
			r.Backend,
			r.Accounts,
			r.Swaps,
			r.SessionsPushed,
			r.SessionsSquashed,
			r.Samples,
			r.DegradedSamples,
		)
	}

	var failed []harness.Result
	for _, r := range results {
		if r.Failed() {
			failed = append(failed, r)
		}
	}

	if len(failed) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Failures:")

		for _, r := range failed {
			fmt.Fprintf(w, "  - %s: %s\n", r.Backend, r.Error)
		}
	}

	return nil
}

// GenerateJSON writes results as JSON to w.
func GenerateJSON(w io.Writer, results []harness.Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	return enc.Encode(results)
}

// checkStateRoots compares the roots of the runs that completed.
func checkStateRoots(results []harness.Result) bool {
	first := ""
	for _, r := range results {
		if r.Failed() {
			continue
		}

		if first == "" {
			first = r.StateRoot

			continue
		}

		if r.StateRoot != first {
			return false
		}
	}

	return true
}

func findFastest(results []harness.Result) int64 {
	fastest := int64(math.MaxInt64)
	for _, r := range results {
		if !r.Failed() && r.ElapsedMs > 0 && r.ElapsedMs < fastest {
			fastest = r.ElapsedMs
		}
	}

	if fastest == math.MaxInt64 {
		return 0
	}

	return fastest
}

func formatRate(ops int, ms int64) string {
	if ops == 0 || ms <= 0 {
		return "-"
	}

	return fmt.Sprintf("%.0f", float64(ops)*1000/float64(ms))
}

func formatMs(ms int64) string {
	if ms < 1000 {
		return fmt.Sprintf("%dms", ms)
	}

	return fmt.Sprintf("%.2fs", float64(ms)/1000)
}

func formatBytes(b uint64) string {
	if b == 0 {
		return "-"
	}

	units := []string{"B", "KB", "MB", "GB", "TB"}
	size := float64(b)
	unit := 0

	for size >= 1024 && unit < len(units)-1 {
		size /= 1024
		unit++
	}

	formatted := fmt.Sprintf("%.1f", size)
	formatted = strings.TrimRight(formatted, "0")
	formatted = strings.TrimRight(formatted, ".")

	return formatted + " " + units[unit]
}
