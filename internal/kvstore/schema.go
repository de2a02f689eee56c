// Package kvstore defines the on-disk table layout backing the address
// index and opens it through erigon-lib's MDBX binding.
package kvstore

import (
	"github.com/erigontech/erigon-lib/kv"
)

// Table names. Values chosen to read as plain MDBX table names in an
// mdbx_stat dump, following the ChaindataTablesCfg naming convention.
const (
	// Forward maps a 5-byte index key (common.IndexKey) to the 20-byte
	// address first witnessed at that index.
	Forward = "Forward"

	// Reverse maps a 20-byte address to its 5-byte index key, the
	// inverse of Forward. Populated for every allocated index,
	// mutable or immutable: LookupByAddress has no other way to find
	// an address's index.
	Reverse = "Reverse"

	// TrieNodes maps a Keccak-256 node hash to its RLP encoding, the
	// content-addressed store backing the address trie.
	TrieNodes = "TrieNodes"

	// Meta holds singleton head-of-chain bookkeeping: latest block
	// number/hash, trie root, previous trie root, next free index.
	Meta = "Meta"
)

// Label identifies this database's chaindata-style label for MDBX
// metrics and logging, mirroring kv.ChainDB's role for erigon's chain
// database.
const Label kv.Label = "monicdata"

// TablesCfg is the full table configuration for the address index
// database. None of the tables are DupSort: each key maps to exactly
// one value, and the trie/forward/reverse relationships hold that
// invariant by construction.
var TablesCfg = kv.TableCfg{
	Forward:   {},
	Reverse:   {},
	TrieNodes: {},
	Meta:      {},
}
