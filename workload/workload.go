// Package workload generates deterministic account-transfer workloads: a
// corpus of random account keys and values, and a plan of pairwise swaps
// between accounts.
package workload

import (
	"bytes"
	mrand "math/rand"

	"github.com/cockroachdb/errors"
)

// ErrInvalidConfig is returned when generator parameters cannot produce a
// well-defined workload.
var ErrInvalidConfig = errors.New("invalid workload config")

// maxByteBound is the largest byte value a Datum can hold.
const maxByteBound = 255

// Datum is an immutable byte sequence used as an account key or value.
type Datum []byte

// Equal reports whether d and o hold the same bytes.
func (d Datum) Equal(o Datum) bool {
	return bytes.Equal(d, o)
}

// Swap is a pair of account indices whose values are exchanged.
type Swap struct {
	A int
	B int
}

// Corpus is a generated workload. Keys and Values are index-aligned.
type Corpus struct {
	Keys   []Datum
	Values []Datum
	Swaps  []Swap
}

// Summary contains statistics about a corpus.
type Summary struct {
	Accounts   int
	Swaps      int
	KeyBytes   int
	ValueBytes int
	SelfSwaps  int
}

// Summary computes statistics about the corpus.
func (c *Corpus) Summary() Summary {
	s := Summary{
		Accounts: len(c.Keys),
		Swaps:    len(c.Swaps),
	}

	for i := range c.Keys {
		s.KeyBytes += len(c.Keys[i])
		s.ValueBytes += len(c.Values[i])
	}

	for _, sw := range c.Swaps {
		if sw.A == sw.B {
			s.SelfSwaps++
		}
	}

	return s
}

// Config controls workload generation parameters.
type Config struct {
	Accounts       int
	Swaps          int
	MaxKeyLength   int
	MaxKeyValue    int
	MaxValueLength int
	MaxValueValue  int
	Seed           int64
}

// Validate checks that the config describes a generatable workload.
func (c Config) Validate() error {
	if c.Accounts < 0 || c.Swaps < 0 {
		return errors.Wrapf(ErrInvalidConfig,
			"negative counts (accounts=%d, swaps=%d)", c.Accounts, c.Swaps)
	}

	if c.Accounts == 0 && c.Swaps > 0 {
		return errors.Wrapf(ErrInvalidConfig,
			"%d swaps requested over zero accounts", c.Swaps)
	}

	bounds := []struct {
		name  string
		value int
		limit int
	}{
		{"max key length", c.MaxKeyLength, 0},
		{"max key value", c.MaxKeyValue, maxByteBound},
		{"max value length", c.MaxValueLength, 0},
		{"max value value", c.MaxValueValue, maxByteBound},
	}

	for _, b := range bounds {
		if b.value <= 0 {
			return errors.Wrapf(ErrInvalidConfig,
				"%s must be positive, got %d", b.name, b.value)
		}
		if b.limit > 0 && b.value > b.limit {
			return errors.Wrapf(ErrInvalidConfig,
				"%s must be at most %d, got %d", b.name, b.limit, b.value)
		}
	}

	return nil
}

// Generator produces deterministic workloads from a Config.
type Generator struct {
	cfg Config
	rng *mrand.Rand
}

// NewGenerator creates a Generator from the given Config. The random source
// is seeded once, here.
func NewGenerator(cfg Config) (*Generator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &Generator{
		cfg: cfg,
		rng: mrand.New(mrand.NewSource(cfg.Seed)),
	}, nil
}

// Generate builds the full corpus in one eager pass.
func (g *Generator) Generate() *Corpus {
	c := &Corpus{
		Keys:   make([]Datum, g.cfg.Accounts),
		Values: make([]Datum, g.cfg.Accounts),
		Swaps:  make([]Swap, g.cfg.Swaps),
	}

	for i := 0; i < g.cfg.Accounts; i++ {
		c.Keys[i] = g.randomDatum(g.cfg.MaxKeyLength, g.cfg.MaxKeyValue)
		c.Values[i] = g.randomDatum(g.cfg.MaxValueLength, g.cfg.MaxValueValue)
	}

	for i := 0; i < g.cfg.Swaps; i++ {
		c.Swaps[i] = Swap{
			A: g.rng.Intn(g.cfg.Accounts),
			B: g.rng.Intn(g.cfg.Accounts),
		}
	}

	return c
}

// randomDatum returns a datum whose length is uniform in [1, maxLen] and whose
// bytes are each uniform in [1, maxByte].
func (g *Generator) randomDatum(maxLen, maxByte int) Datum {
	d := make(Datum, 1+g.rng.Intn(maxLen))
	for i := range d {
		d[i] = byte(1 + g.rng.Intn(maxByte))
	}

	return d
}
