package report

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/weiihann/swapbench/harness"
)

func TestGenerateMatchingRoots(t *testing.T) {
	results := []harness.Result{
		{
			Backend:          "pebble",
			StateRoot:        "0xabc",
			Accounts:         100,
			Swaps:            2000,
			SessionsPushed:   10,
			SessionsSquashed: 2000,
			ElapsedMs:        1000,
			FillMs:           200,
			SwapMs:           800,
			FlushMs:          100,
			PeakMemoryBytes:  100 * 1024 * 1024,
			DBSizeBytes:      50 * 1024 * 1024,
		},
		{
			Backend:          "mdbx",
			StateRoot:        "0xabc",
			Accounts:         100,
			Swaps:            2000,
			SessionsPushed:   10,
			SessionsSquashed: 2000,
			ElapsedMs:        2000,
			FillMs:           400,
			SwapMs:           1600,
			FlushMs:          300,
			PeakMemoryBytes:  200 * 1024 * 1024,
			DBSizeBytes:      80 * 1024 * 1024,
		},
	}

	var buf bytes.Buffer
	if err := Generate(&buf, results); err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	output := buf.String()

	if !strings.Contains(output, "all match") {
		t.Error("expected 'all match' for matching roots")
	}
	if !strings.Contains(output, "pebble") {
		t.Error("expected pebble in output")
	}
	if !strings.Contains(output, "mdbx") {
		t.Error("expected mdbx in output")
	}
	if !strings.Contains(output, "2.00x") {
		t.Error("expected 2.00x speedup for mdbx (twice as slow)")
	}
	if !strings.Contains(output, "| 2500 |") {
		t.Error("expected 2500 swaps/s for pebble")
	}
	if strings.Contains(output, "Failures") {
		t.Error("unexpected failures section")
	}
}

func TestGenerateMismatchedRoots(t *testing.T) {
	results := []harness.Result{
		{Backend: "pebble", StateRoot: "0xabc", ElapsedMs: 100},
		{Backend: "mdbx", StateRoot: "0xdef", ElapsedMs: 200},
	}

	var buf bytes.Buffer
	if err := Generate(&buf, results); err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	output := buf.String()

	if !strings.Contains(output, "MISMATCH") {
		t.Error("expected MISMATCH for different roots")
	}
	if !strings.Contains(output, "0xabc") {
		t.Error("expected pebble root in mismatch details")
	}
	if !strings.Contains(output, "0xdef") {
		t.Error("expected mdbx root in mismatch details")
	}
}

func TestGenerateIgnoresFailedRunsInRootCheck(t *testing.T) {
	results := []harness.Result{
		{Backend: "pebble", StateRoot: "0xabc", ElapsedMs: 100},
		{Backend: "mdbx", ElapsedMs: 50, Error: "run mdbx: flush staged batch: disk full"},
		{Backend: "memory", StateRoot: "0xabc", ElapsedMs: 200},
	}

	var buf bytes.Buffer
	if err := Generate(&buf, results); err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	output := buf.String()

	if !strings.Contains(output, "all match") {
		t.Error("expected 'all match' when only completed runs are compared")
	}
	if !strings.Contains(output, "Failures:") {
		t.Error("expected failures section")
	}
	if !strings.Contains(output, "disk full") {
		t.Error("expected failure reason in output")
	}
	// The failed run is faster but must not be the baseline.
	if !strings.Contains(output, "2.00x") {
		t.Error("expected 2.00x speedup for memory relative to pebble")
	}
}

func TestGenerateEmpty(t *testing.T) {
	var buf bytes.Buffer
	err := Generate(&buf, nil)
	if err == nil {
		t.Error("expected error for empty results")
	}
}

func TestGenerateJSON(t *testing.T) {
	results := []harness.Result{
		{Backend: "pebble", RunID: "b6a1", StateRoot: "0xabc", ElapsedMs: 1000},
	}

	var buf bytes.Buffer
	if err := GenerateJSON(&buf, results); err != nil {
		t.Fatalf("GenerateJSON failed: %v", err)
	}

	var parsed []harness.Result
	if err := json.Unmarshal(buf.Bytes(), &parsed); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}

	if len(parsed) != 1 {
		t.Fatalf("expected 1 result, got %d", len(parsed))
	}
	if parsed[0].Backend != "pebble" {
		t.Errorf("backend = %q, want pebble", parsed[0].Backend)
	}
	if parsed[0].RunID != "b6a1" {
		t.Errorf("run_id = %q, want b6a1", parsed[0].RunID)
	}
	if strings.Contains(buf.String(), `"error"`) {
		t.Error("error field should be omitted for successful runs")
	}
}

func TestFormatRate(t *testing.T) {
	tests := []struct {
		ops  int
		ms   int64
		want string
	}{
		{0, 100, "-"},
		{10, 0, "-"},
		{10, 1000, "10"},
		{3, 2000, "2"},
	}

	for _, tt := range tests {
		got := formatRate(tt.ops, tt.ms)
		if got != tt.want {
			t.Errorf("formatRate(%d, %d) = %q, want %q", tt.ops, tt.ms, got, tt.want)
		}
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		input uint64
		want  string
	}{
		{0, "-"},
		{512, "512 B"},
		{1024, "1 KB"},
		{1536, "1.5 KB"},
		{1048576, "1 MB"},
		{1073741824, "1 GB"},
	}

	for _, tt := range tests {
		got := formatBytes(tt.input)
		if got != tt.want {
			t.Errorf("formatBytes(%d) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestFormatMs(t *testing.T) {
	tests := []struct {
		input int64
		want  string
	}{
		{0, "0ms"},
		{500, "500ms"},
		{999, "999ms"},
		{1000, "1.00s"},
		{1500, "1.50s"},
		{60000, "60.00s"},
	}

	for _, tt := range tests {
		got := formatMs(tt.input)
		if got != tt.want {
			t.Errorf("formatMs(%d) = %q, want %q", tt.input, got, tt.want)
		}
	}
}
