package simulator

import (
	"bytes"
	"sort"

	"github.com/cockroachdb/errors"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/trie"
	"github.com/weiihann/swapbench/ledger"
	"github.com/weiihann/swapbench/workload"
)

// StateRoot returns the Merkle-Patricia root over the current value of every
// distinct key, keyed by the key's Keccak-256 hash. Two ledgers holding the
// same state produce the same root regardless of engine.
func StateRoot(db *ledger.Database, keys []workload.Datum) (common.Hash, error) {
	type leaf struct {
		hash common.Hash
		key  workload.Datum
	}

	seen := make(map[string]struct{}, len(keys))
	leaves := make([]leaf, 0, len(keys))

	for _, k := range keys {
		if _, ok := seen[string(k)]; ok {
			continue
		}
		seen[string(k)] = struct{}{}

		leaves = append(leaves, leaf{hash: crypto.Keccak256Hash(k), key: k})
	}

	sort.Slice(leaves, func(i, j int) bool {
		return bytes.Compare(leaves[i].hash[:], leaves[j].hash[:]) < 0
	})

	st := trie.NewStackTrie(nil)
	for _, l := range leaves {
		value, err := db.Get(l.key)
		if err != nil {
			return common.Hash{}, err
		}

		if err := st.Update(l.hash[:], value); err != nil {
			return common.Hash{}, errors.Wrapf(err, "insert %x", l.key)
		}
	}

	return st.Hash(), nil
}
