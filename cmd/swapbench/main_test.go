package main

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"
	"github.com/weiihann/swapbench/harness"
	"github.com/weiihann/swapbench/workload"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	cmd := newRootCmd(slog.New(slog.NewTextHandler(io.Discard, nil)))

	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)

	err := cmd.Execute()

	return out.String(), err
}

func TestWrongArgumentCountPrintsUsage(t *testing.T) {
	for _, args := range [][]string{
		{},
		{"10", "5", "4", "255"},
		{"1", "2", "3", "4", "5", "6", "7"},
	} {
		out, err := execute(t, args...)
		require.NoError(t, err, "args %v", args)
		require.Contains(t, out, "Please enter the correct amount of arguments.")
		require.Contains(t, out, "Usage:")
		require.Contains(t, out, "maxValueValue")
	}
}

func TestHelp(t *testing.T) {
	for _, flag := range []string{"-h", "--help"} {
		out, err := execute(t, flag)
		require.NoError(t, err)
		require.Contains(t, out, "accountCount swapCount")
		require.NotContains(t, out, "Please enter")
	}
}

func TestRejectsNonNumericArguments(t *testing.T) {
	for _, args := range [][]string{
		{"ten", "5", "4", "255", "8", "255"},
		{"10", "1.5", "4", "255", "8", "255"},
	} {
		_, err := execute(t, args...)
		require.True(t, errors.Is(err, workload.ErrInvalidConfig), "args %v: %v", args, err)
	}
}

func TestRejectsInvalidBounds(t *testing.T) {
	dir := t.TempDir()

	_, err := execute(t, "10", "5", "0", "255", "8", "255",
		"--backends", "memory", "--db-dir", dir, "--no-metrics")
	require.True(t, errors.Is(err, workload.ErrInvalidConfig), "got %v", err)

	_, err = execute(t, "10", "5", "4", "256", "8", "255",
		"--backends", "memory", "--db-dir", dir, "--no-metrics")
	require.True(t, errors.Is(err, workload.ErrInvalidConfig), "got %v", err)
}

func TestRejectsUnknownBackend(t *testing.T) {
	_, err := execute(t, "10", "5", "4", "255", "8", "255", "--backends", "rocksdb")
	require.True(t, errors.Is(err, harness.ErrUnknownBackend), "got %v", err)
}

func TestRunAllBackends(t *testing.T) {
	dir := t.TempDir()
	output := filepath.Join(dir, "data.csv")
	saved := filepath.Join(dir, "workload.jsonl.zst")

	out, err := execute(t, "60", "200", "6", "255", "16", "255",
		"--backends", "memory,pebble,mdbx",
		"--db-dir", filepath.Join(dir, "db"),
		"--output", output,
		"--seed", "11",
		"--save-workload", saved,
		"--no-metrics",
		"--json",
	)
	require.NoError(t, err)

	var results []harness.Result
	require.NoError(t, json.Unmarshal([]byte(out), &results))
	require.Len(t, results, 3)

	for _, r := range results {
		require.False(t, r.Failed(), r.Error)
		require.Equal(t, results[0].StateRoot, r.StateRoot, r.Backend)
		require.Equal(t, 60, r.Accounts)
		require.Equal(t, 200, r.Swaps)

		_, err := os.Stat(filepath.Join(dir, "data-"+r.Backend+".csv"))
		require.NoError(t, err)
	}

	// Replaying the saved workload reproduces the same final state.
	out, err = execute(t, "0", "0", "1", "1", "1", "1",
		"--backends", "memory",
		"--db-dir", filepath.Join(dir, "db"),
		"--output", output,
		"--workload", saved,
		"--no-metrics",
		"--json",
	)
	require.NoError(t, err)

	var replay []harness.Result
	require.NoError(t, json.Unmarshal([]byte(out), &replay))
	require.Len(t, replay, 1)
	require.Equal(t, results[0].StateRoot, replay[0].StateRoot)

	_, err = os.Stat(output)
	require.NoError(t, err)
}

func TestConfigFileWithFlagOverride(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "swapbench.json")
	body := `{"backends": ["mdbx"], "db_dir": "` + filepath.ToSlash(filepath.Join(dir, "db")) +
		`", "output": "` + filepath.ToSlash(filepath.Join(dir, "cfg.csv")) + `", "no_metrics": true}`
	require.NoError(t, os.WriteFile(cfgPath, []byte(body), 0o644))

	out, err := execute(t, "15", "10", "4", "255", "8", "255",
		"--config", cfgPath,
		"--backends", "memory",
		"--seed", "3",
	)
	require.NoError(t, err)
	require.Contains(t, out, "| memory |")
	require.NotContains(t, out, "mdbx")

	_, err = os.Stat(filepath.Join(dir, "cfg.csv"))
	require.NoError(t, err)
}
