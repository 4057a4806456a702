package workload

import (
	"bufio"
	"encoding/hex"
	"encoding/json"
	"io"
	"os"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/klauspost/compress/zstd"
)

// Operation kinds in a workload file.
const (
	OpAccount = "account"
	OpSwap    = "swap"
)

// Operation is a single line of a JSONL workload file.
type Operation struct {
	Op    string `json:"op"`
	Key   string `json:"key,omitempty"`
	Value string `json:"value,omitempty"`
	A     int    `json:"a"`
	B     int    `json:"b"`
}

// Encode writes the corpus to w as JSONL: all accounts first, then all swaps.
func Encode(w io.Writer, c *Corpus) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)

	for i := range c.Keys {
		if err := enc.Encode(Operation{
			Op:    OpAccount,
			Key:   encodeHex(c.Keys[i]),
			Value: encodeHex(c.Values[i]),
		}); err != nil {
			return errors.Wrapf(err, "encode account %d", i)
		}
	}

	for i, sw := range c.Swaps {
		if err := enc.Encode(Operation{
			Op: OpSwap,
			A:  sw.A,
			B:  sw.B,
		}); err != nil {
			return errors.Wrapf(err, "encode swap %d", i)
		}
	}

	return nil
}

// Decode reads a JSONL workload written by Encode. Swap indices are checked
// against the number of accounts in the file.
func Decode(r io.Reader) (*Corpus, error) {
	c := &Corpus{}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 1<<20), 1<<24)

	lineNum := 0
	for scanner.Scan() {
		lineNum++

		line := scanner.Bytes()
		if len(strings.TrimSpace(string(line))) == 0 {
			continue
		}

		var op Operation
		if err := json.Unmarshal(line, &op); err != nil {
			return nil, errors.Wrapf(err, "decode line %d", lineNum)
		}

		switch op.Op {
		case OpAccount:
			key, err := decodeHex(op.Key)
			if err != nil {
				return nil, errors.Wrapf(err, "line %d: key", lineNum)
			}
			value, err := decodeHex(op.Value)
			if err != nil {
				return nil, errors.Wrapf(err, "line %d: value", lineNum)
			}
			if len(key) == 0 || len(value) == 0 {
				return nil, errors.Wrapf(ErrInvalidConfig,
					"line %d: empty account key or value", lineNum)
			}

			c.Keys = append(c.Keys, key)
			c.Values = append(c.Values, value)

		case OpSwap:
			c.Swaps = append(c.Swaps, Swap{A: op.A, B: op.B})

		default:
			return nil, errors.Newf("line %d: unknown op %q", lineNum, op.Op)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "read workload")
	}

	n := len(c.Keys)
	for i, sw := range c.Swaps {
		if sw.A < 0 || sw.A >= n || sw.B < 0 || sw.B >= n {
			return nil, errors.Wrapf(ErrInvalidConfig,
				"swap %d (%d, %d) out of range for %d accounts",
				i, sw.A, sw.B, n)
		}
	}

	return c, nil
}

// SaveFile writes the corpus to path, zstd-compressed if the path ends in
// ".zst".
func SaveFile(path string, c *Corpus) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "create workload file")
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = errors.Wrap(cerr, "close workload file")
		}
	}()

	bw := bufio.NewWriter(f)

	var w io.Writer = bw

	var zw *zstd.Encoder
	if isCompressed(path) {
		zw, err = zstd.NewWriter(bw)
		if err != nil {
			return errors.Wrap(err, "create zstd writer")
		}
		w = zw
	}

	if err := Encode(w, c); err != nil {
		return err
	}

	if zw != nil {
		if err := zw.Close(); err != nil {
			return errors.Wrap(err, "finish zstd stream")
		}
	}

	return errors.Wrap(bw.Flush(), "flush workload file")
}

// LoadFile reads a corpus written by SaveFile.
func LoadFile(path string) (*Corpus, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open workload file")
	}
	defer f.Close()

	var r io.Reader = bufio.NewReader(f)

	if isCompressed(path) {
		zr, err := zstd.NewReader(r)
		if err != nil {
			return nil, errors.Wrap(err, "create zstd reader")
		}
		defer zr.Close()

		r = zr
	}

	return Decode(r)
}

func isCompressed(path string) bool {
	return strings.HasSuffix(path, ".zst")
}

func encodeHex(d Datum) string {
	return "0x" + hex.EncodeToString(d)
}

func decodeHex(s string) (Datum, error) {
	b, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil {
		return nil, errors.Wrapf(err, "decode hex %q", s)
	}

	return b, nil
}
