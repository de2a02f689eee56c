package trie

import (
	"fmt"

	"github.com/ethereum/go-ethereum/rlp"
	"golang.org/x/crypto/sha3"

	"github.com/lgaroche/monique-indexer/internal/common"
)

// Node is any of the four node shapes a fixed-length-key
// Merkle-Patricia trie can hold. Keys in this trie are always exactly
// common.IndexKeyLength*2 nibbles, so no key is ever a strict prefix
// of another: branch nodes never carry a value of their own.
type Node interface {
	isNode()
}

type leafNode struct {
	Key []byte // remaining nibbles from this point to the leaf
	Val []byte // RLP-encoded address
}

type extensionNode struct {
	Key   []byte // shared nibble run
	Child Node
}

type branchNode struct {
	Children [16]Node
}

// hashNode is a reference to a node persisted in the store under its
// Keccak-256 hash; it is resolved lazily the next time a path passes
// through it.
type hashNode common.Hash

func (*leafNode) isNode()      {}
func (*extensionNode) isNode() {}
func (*branchNode) isNode()    {}
func (hashNode) isNode()       {}

// NodeStore is the persistence collaborator for trie nodes: a
// dedicated, hash-keyed table separate from the address table, per
// the trie checkpoint's design. Pruning of orphaned nodes is
// explicitly out of scope; Put is expected to be idempotent.
type NodeStore interface {
	Get(hash common.Hash) ([]byte, error)
	Put(hash common.Hash, encoded []byte) error
}

func keccak256(data []byte) common.Hash {
	h := sha3.NewLegacyKeccak256()
	h.Write(data)
	var out common.Hash
	h.Sum(out[:0])
	return out
}

func resolve(store NodeStore, n Node) (Node, error) {
	hn, ok := n.(hashNode)
	if !ok {
		return n, nil
	}
	enc, err := store.Get(common.Hash(hn))
	if err != nil {
		return nil, fmt.Errorf("trie: resolving node %s: %w", common.Hash(hn), err)
	}
	return decodeNode(enc)
}

func decodeNode(enc []byte) (Node, error) {
	var raw []rlp.RawValue
	if err := rlp.DecodeBytes(enc, &raw); err != nil {
		return nil, fmt.Errorf("trie: decoding node: %w", err)
	}
	switch len(raw) {
	case 2:
		var keyBytes []byte
		if err := rlp.DecodeBytes(raw[0], &keyBytes); err != nil {
			return nil, err
		}
		nibbles, terminating := hexPrefixDecode(keyBytes)
		if terminating {
			var val []byte
			if err := rlp.DecodeBytes(raw[1], &val); err != nil {
				return nil, err
			}
			return &leafNode{Key: nibbles, Val: val}, nil
		}
		var childHash []byte
		if err := rlp.DecodeBytes(raw[1], &childHash); err != nil {
			return nil, err
		}
		return &extensionNode{Key: nibbles, Child: hashNode(common.BytesToHash(childHash))}, nil
	case 17:
		var branch branchNode
		for i := 0; i < 16; i++ {
			var childBytes []byte
			if err := rlp.DecodeBytes(raw[i], &childBytes); err != nil {
				return nil, err
			}
			if len(childBytes) > 0 {
				branch.Children[i] = hashNode(common.BytesToHash(childBytes))
			}
		}
		return &branch, nil
	default:
		return nil, fmt.Errorf("trie: node has %d items, want 2 or 17", len(raw))
	}
}

func encodeLeaf(n *leafNode) []byte {
	enc, err := rlp.EncodeToBytes([][]byte{hexPrefixEncode(n.Key, true), n.Val})
	if err != nil {
		panic(fmt.Sprintf("trie: encoding leaf: %v", err))
	}
	return enc
}

func encodeExtension(key []byte, childHash common.Hash) []byte {
	enc, err := rlp.EncodeToBytes([][]byte{hexPrefixEncode(key, false), childHash[:]})
	if err != nil {
		panic(fmt.Sprintf("trie: encoding extension: %v", err))
	}
	return enc
}

func encodeBranch(children [16]Node, hashes [16]common.Hash) []byte {
	items := make([][]byte, 17)
	for i := 0; i < 16; i++ {
		if children[i] != nil {
			h := hashes[i]
			items[i] = h[:]
		} else {
			items[i] = []byte{}
		}
	}
	items[16] = []byte{}
	enc, err := rlp.EncodeToBytes(items)
	if err != nil {
		panic(fmt.Sprintf("trie: encoding branch: %v", err))
	}
	return enc
}
