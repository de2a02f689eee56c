package trie

import (
	"fmt"

	"github.com/lgaroche/monique-indexer/internal/common"
)

// MemStore is a NodeStore backed by a plain map. It is used by tests
// and by the integrity check, which recomputes a trie root from
// scratch over the persisted forward map rather than touching the
// long-lived on-disk trie_nodes table.
type MemStore struct {
	nodes map[common.Hash][]byte
}

// NewMemStore returns an empty in-memory NodeStore.
func NewMemStore() *MemStore {
	return &MemStore{nodes: make(map[common.Hash][]byte)}
}

func (m *MemStore) Get(hash common.Hash) ([]byte, error) {
	enc, ok := m.nodes[hash]
	if !ok {
		return nil, fmt.Errorf("trie: node %s not found", hash)
	}
	return enc, nil
}

func (m *MemStore) Put(hash common.Hash, encoded []byte) error {
	m.nodes[hash] = encoded
	return nil
}

// Pair is an (index, address) mapping, the trie's key/value domain.
type Pair struct {
	Index   uint64
	Address common.Address
}

// ComputeRoot builds a fresh in-memory trie over pairs and returns its
// root hash, for the "recompute and compare" integrity check spec
// describes for startup and for post-rollback verification.
func ComputeRoot(pairs []Pair) (common.Hash, error) {
	t := New(NewMemStore(), common.Hash{})
	for _, p := range pairs {
		if err := t.Insert(p.Index, p.Address); err != nil {
			return common.Hash{}, err
		}
	}
	return t.Hash()
}
