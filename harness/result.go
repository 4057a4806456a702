// Package harness runs the swap benchmark against one storage engine at a
// time and collects the outcome.
package harness

// Result holds the outcome of one backend run.
type Result struct {
	Backend   string `json:"backend"`
	RunID     string `json:"run_id"`
	StateRoot string `json:"state_root"`

	Accounts         int    `json:"accounts"`
	Swaps            int    `json:"swaps"`
	SessionsPushed   uint64 `json:"sessions_pushed"`
	SessionsSquashed uint64 `json:"sessions_squashed"`

	FillMs    int64 `json:"fill_ms"`
	SwapMs    int64 `json:"swap_ms"`
	FlushMs   int64 `json:"flush_ms"`
	ElapsedMs int64 `json:"elapsed_ms"`

	Samples         int `json:"samples"`
	DegradedSamples int `json:"degraded_samples"`

	PeakMemoryBytes  uint64  `json:"peak_memory_bytes"`
	DBSizeBytes      uint64  `json:"db_size_bytes"`
	DiskUsedFraction float64 `json:"disk_used_fraction"`

	ReportPath string `json:"report_path,omitempty"`
	Error      string `json:"error,omitempty"`
}

// Failed reports whether the run ended with an error.
func (r *Result) Failed() bool { return r.Error != "" }
