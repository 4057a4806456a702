package workload

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"
)

func testConfig(seed int64) Config {
	return Config{
		Accounts:       200,
		Swaps:          500,
		MaxKeyLength:   16,
		MaxKeyValue:    255,
		MaxValueLength: 32,
		MaxValueValue:  7,
		Seed:           seed,
	}
}

func TestGenerateDeterministic(t *testing.T) {
	cfg := testConfig(42)

	gen1, err := NewGenerator(cfg)
	if err != nil {
		t.Fatalf("first generator failed: %v", err)
	}
	gen2, err := NewGenerator(cfg)
	if err != nil {
		t.Fatalf("second generator failed: %v", err)
	}

	c1 := gen1.Generate()
	c2 := gen2.Generate()

	if len(c1.Keys) != len(c2.Keys) {
		t.Fatalf("key counts differ: %d vs %d", len(c1.Keys), len(c2.Keys))
	}

	for i := range c1.Keys {
		if !c1.Keys[i].Equal(c2.Keys[i]) || !c1.Values[i].Equal(c2.Values[i]) {
			t.Fatalf("account %d differs for same seed", i)
		}
	}

	for i := range c1.Swaps {
		if c1.Swaps[i] != c2.Swaps[i] {
			t.Fatalf("swap %d differs for same seed", i)
		}
	}

	if c1.Summary() != c2.Summary() {
		t.Errorf("summaries differ: %+v vs %+v", c1.Summary(), c2.Summary())
	}
}

func TestGenerateDifferentSeeds(t *testing.T) {
	gen1, err := NewGenerator(testConfig(1))
	require.NoError(t, err)
	gen2, err := NewGenerator(testConfig(2))
	require.NoError(t, err)

	c1, c2 := gen1.Generate(), gen2.Generate()

	same := true
	for i := range c1.Keys {
		if !c1.Keys[i].Equal(c2.Keys[i]) {
			same = false

			break
		}
	}

	require.False(t, same, "different seeds produced identical keys")
}

func TestGenerateBounds(t *testing.T) {
	cfg := testConfig(7)

	gen, err := NewGenerator(cfg)
	require.NoError(t, err)

	c := gen.Generate()

	require.Len(t, c.Keys, cfg.Accounts)
	require.Len(t, c.Values, cfg.Accounts)
	require.Len(t, c.Swaps, cfg.Swaps)

	check := func(kind string, d Datum, maxLen, maxByte int) {
		t.Helper()

		require.GreaterOrEqual(t, len(d), 1, "%s too short", kind)
		require.LessOrEqual(t, len(d), maxLen, "%s too long", kind)

		for _, b := range d {
			require.GreaterOrEqual(t, int(b), 1, "%s byte below range", kind)
			require.LessOrEqual(t, int(b), maxByte, "%s byte above range", kind)
		}
	}

	for i := range c.Keys {
		check("key", c.Keys[i], cfg.MaxKeyLength, cfg.MaxKeyValue)
		check("value", c.Values[i], cfg.MaxValueLength, cfg.MaxValueValue)
	}

	for _, sw := range c.Swaps {
		require.True(t, sw.A >= 0 && sw.A < cfg.Accounts, "A out of range: %d", sw.A)
		require.True(t, sw.B >= 0 && sw.B < cfg.Accounts, "B out of range: %d", sw.B)
	}
}

func TestGenerateSingleByteBounds(t *testing.T) {
	gen, err := NewGenerator(Config{
		Accounts:       5,
		Swaps:          5,
		MaxKeyLength:   1,
		MaxKeyValue:    1,
		MaxValueLength: 1,
		MaxValueValue:  1,
		Seed:           3,
	})
	require.NoError(t, err)

	c := gen.Generate()
	for i := range c.Keys {
		require.Equal(t, Datum{1}, c.Keys[i])
		require.Equal(t, Datum{1}, c.Values[i])
	}

	require.Equal(t, 5, c.Summary().KeyBytes)
}

func TestGenerateEmpty(t *testing.T) {
	gen, err := NewGenerator(Config{
		MaxKeyLength:   1,
		MaxKeyValue:    1,
		MaxValueLength: 1,
		MaxValueValue:  1,
	})
	require.NoError(t, err)

	c := gen.Generate()
	require.Empty(t, c.Keys)
	require.Empty(t, c.Swaps)
}

func TestInvalidConfig(t *testing.T) {
	valid := testConfig(1)

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"swaps without accounts", func(c *Config) { c.Accounts = 0; c.Swaps = 3 }},
		{"zero key length", func(c *Config) { c.MaxKeyLength = 0 }},
		{"zero key value", func(c *Config) { c.MaxKeyValue = 0 }},
		{"zero value length", func(c *Config) { c.MaxValueLength = 0 }},
		{"zero value value", func(c *Config) { c.MaxValueValue = 0 }},
		{"key byte too large", func(c *Config) { c.MaxKeyValue = 256 }},
		{"value byte too large", func(c *Config) { c.MaxValueValue = 1000 }},
		{"negative accounts", func(c *Config) { c.Accounts = -1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)

			_, err := NewGenerator(cfg)
			require.Error(t, err)
			require.True(t, errors.Is(err, ErrInvalidConfig), "got %v", err)
		})
	}
}

func TestSummaryCountsSelfSwaps(t *testing.T) {
	c := &Corpus{
		Keys:   []Datum{{1}, {2, 2}},
		Values: []Datum{{3, 3, 3}, {4}},
		Swaps:  []Swap{{A: 0, B: 0}, {A: 0, B: 1}, {A: 1, B: 1}},
	}

	require.Equal(t, Summary{
		Accounts:   2,
		Swaps:      3,
		KeyBytes:   3,
		ValueBytes: 4,
		SelfSwaps:  2,
	}, c.Summary())
}
