package kvstore

import (
	"github.com/erigontech/erigon-lib/kv"

	"github.com/lgaroche/monique-indexer/internal/common"
)

// NodeStore is a read-only view of the TrieNodes table. It has no Put,
// so it does not satisfy trie.NodeStore on its own.
type NodeStore struct {
	Tx kv.Tx
}

func (s NodeStore) Get(hash common.Hash) ([]byte, error) {
	v, ok, err := Get(s.Tx, TrieNodes, hash[:])
	if err != nil || !ok {
		return nil, err
	}
	return v, nil
}

// RwNodeStore is the writable counterpart used by the commit engine's
// persist phase; it delegates Get to NodeStore and adds Put, which
// makes it a trie.NodeStore.
type RwNodeStore struct {
	Tx kv.RwTx
}

func (s RwNodeStore) Get(hash common.Hash) ([]byte, error) {
	return NodeStore{Tx: s.Tx}.Get(hash)
}

func (s RwNodeStore) Put(hash common.Hash, encoded []byte) error {
	return Put(s.Tx, TrieNodes, hash[:], encoded)
}
