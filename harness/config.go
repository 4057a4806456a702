package harness

import (
	"encoding/json"
	"os"

	"github.com/cockroachdb/errors"
)

const (
	defaultDBDir     = "tmp"
	defaultOutput    = "data.csv"
	defaultUndoDepth = 0
)

// Config holds the run settings that can come from a JSON file. Flags given
// on the command line take precedence over the file.
type Config struct {
	Backends  []string `json:"backends,omitempty"`
	DBDir     string   `json:"db_dir,omitempty"`
	Output    string   `json:"output,omitempty"`
	UndoDepth int      `json:"undo_depth,omitempty"`
	Seed      int64    `json:"seed,omitempty"`
	NoMetrics bool     `json:"no_metrics,omitempty"`
}

// DefaultConfig returns a Config that runs pebble only.
func DefaultConfig() Config {
	return Config{
		Backends:  []string{"pebble"},
		DBDir:     defaultDBDir,
		Output:    defaultOutput,
		UndoDepth: defaultUndoDepth,
	}
}

// Merge applies non-zero values from source into c.
func (c *Config) Merge(source *Config) {
	if len(source.Backends) > 0 {
		c.Backends = source.Backends
	}
	if source.DBDir != "" {
		c.DBDir = source.DBDir
	}
	if source.Output != "" {
		c.Output = source.Output
	}
	if source.UndoDepth > 0 {
		c.UndoDepth = source.UndoDepth
	}
	if source.Seed != 0 {
		c.Seed = source.Seed
	}
	if source.NoMetrics {
		c.NoMetrics = true
	}
}

// Validate checks that every configured backend is known.
func (c *Config) Validate() error {
	if len(c.Backends) == 0 {
		return errors.New("no backends configured")
	}

	known := make(map[string]bool)
	for _, b := range KnownBackends() {
		known[b] = true
	}

	for _, b := range c.Backends {
		if !known[b] {
			return errors.Wrapf(ErrUnknownBackend, "%q", b)
		}
	}

	if c.UndoDepth < 0 {
		return errors.Newf("undo depth must not be negative, got %d", c.UndoDepth)
	}

	return nil
}

// LoadConfig reads a JSON config file, merges it with defaults, and returns
// the resulting Config.
func LoadConfig(filename string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, errors.Wrap(err, "read config file")
	}

	var loaded Config
	if err := json.Unmarshal(data, &loaded); err != nil {
		return nil, errors.Wrap(err, "parse config file")
	}

	cfg.Merge(&loaded)

	return &cfg, nil
}
