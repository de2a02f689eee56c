// Package trie implements the checkpoint trie: a Merkle-Patricia trie
// over (big-endian 5-byte index -> RLP-encoded address) pairs whose
// root is the indexer's content-addressed state fingerprint.
//
// The key space is fixed-length (common.IndexKeyLength*2 nibbles), so
// no key is ever a prefix of another; this trie never needs a value
// slot on branch nodes and never needs to shrink a leaf's remaining
// key to zero mid-branch. Node shapes and hex-prefix key compaction
// follow the classic Ethereum Merkle-Patricia design (see
// erigontech/erigon's trie.HashBuilder), simplified here to always
// hash-reference children rather than inline short RLP encodings,
// since this trie is a private checkpoint structure, not required to
// byte-match any externally verified state trie.
package trie

import (
	"fmt"

	"github.com/ethereum/go-ethereum/rlp"

	"github.com/lgaroche/monique-indexer/internal/common"
)

// Trie is a single logical Merkle-Patricia trie. It is not safe for
// concurrent use; the commit engine is the trie's single writer, per
// the indexer's single-writer discipline.
type Trie struct {
	store NodeStore
	root  Node
}

// New opens a trie rooted at root (the zero hash for an empty trie).
// Nodes are resolved from store lazily as paths are walked.
func New(store NodeStore, root common.Hash) *Trie {
	t := &Trie{store: store}
	if root != (common.Hash{}) {
		t.root = hashNode(root)
	}
	return t
}

// EncodeValue RLP-encodes an address the way trie values are stored.
func EncodeValue(addr common.Address) []byte {
	enc, err := rlp.EncodeToBytes(addr[:])
	if err != nil {
		panic(fmt.Sprintf("trie: encoding address: %v", err))
	}
	return enc
}

// Insert adds or overwrites the mapping index -> addr.
func (t *Trie) Insert(index uint64, addr common.Address) error {
	key, err := common.IndexKey(index)
	if err != nil {
		return fmt.Errorf("trie: %w", err)
	}
	newRoot, err := insert(t.store, t.root, bytesToNibbles(key[:]), EncodeValue(addr))
	if err != nil {
		return err
	}
	t.root = newRoot
	return nil
}

func insert(store NodeStore, n Node, key, value []byte) (Node, error) {
	resolved, err := resolve(store, n)
	if err != nil {
		return nil, err
	}
	if resolved == nil {
		return &leafNode{Key: append([]byte(nil), key...), Val: value}, nil
	}

	switch node := resolved.(type) {
	case *leafNode:
		if len(key) == len(node.Key) && commonPrefixLen(key, node.Key) == len(key) {
			return &leafNode{Key: append([]byte(nil), key...), Val: value}, nil
		}
		match := commonPrefixLen(key, node.Key)
		branch := &branchNode{}
		branch.Children[node.Key[match]] = &leafNode{
			Key: append([]byte(nil), node.Key[match+1:]...),
			Val: node.Val,
		}
		branch.Children[key[match]] = &leafNode{
			Key: append([]byte(nil), key[match+1:]...),
			Val: value,
		}
		if match == 0 {
			return branch, nil
		}
		return &extensionNode{Key: append([]byte(nil), key[:match]...), Child: branch}, nil

	case *extensionNode:
		match := commonPrefixLen(key, node.Key)
		if match == len(node.Key) {
			newChild, err := insert(store, node.Child, key[match:], value)
			if err != nil {
				return nil, err
			}
			return &extensionNode{Key: node.Key, Child: newChild}, nil
		}
		branch := &branchNode{}
		if match == len(node.Key)-1 {
			branch.Children[node.Key[match]] = node.Child
		} else {
			branch.Children[node.Key[match]] = &extensionNode{
				Key:   append([]byte(nil), node.Key[match+1:]...),
				Child: node.Child,
			}
		}
		branch.Children[key[match]] = &leafNode{
			Key: append([]byte(nil), key[match+1:]...),
			Val: value,
		}
		if match == 0 {
			return branch, nil
		}
		return &extensionNode{Key: append([]byte(nil), key[:match]...), Child: branch}, nil

	case *branchNode:
		if len(key) == 0 {
			return nil, fmt.Errorf("trie: key exhausted at a branch, keys must be fixed-length")
		}
		newBranch := *node
		newChild, err := insert(store, node.Children[key[0]], key[1:], value)
		if err != nil {
			return nil, err
		}
		newBranch.Children[key[0]] = newChild
		return &newBranch, nil

	default:
		return nil, fmt.Errorf("trie: unknown resolved node type %T", resolved)
	}
}

// Hash returns the current root hash without persisting anything, as
// ComputeRoot does for the integrity check.
func (t *Trie) Hash() (common.Hash, error) {
	if t.root == nil {
		return common.Hash{}, nil
	}
	h, _, err := hashOf(t.root)
	return h, err
}

// hashOf computes a node's hash without writing it anywhere.
func hashOf(n Node) (common.Hash, []byte, error) {
	switch node := n.(type) {
	case hashNode:
		return common.Hash(node), nil, nil
	case *leafNode:
		enc := encodeLeaf(node)
		return keccak256(enc), enc, nil
	case *extensionNode:
		childHash, _, err := hashOf(node.Child)
		if err != nil {
			return common.Hash{}, nil, err
		}
		enc := encodeExtension(node.Key, childHash)
		return keccak256(enc), enc, nil
	case *branchNode:
		var hashes [16]common.Hash
		for i, c := range node.Children {
			if c == nil {
				continue
			}
			h, _, err := hashOf(c)
			if err != nil {
				return common.Hash{}, nil, err
			}
			hashes[i] = h
		}
		enc := encodeBranch(node.Children, hashes)
		return keccak256(enc), enc, nil
	default:
		return common.Hash{}, nil, fmt.Errorf("trie: unknown node type %T", n)
	}
}

// Commit persists every node reachable from the current root into
// store and collapses the in-memory tree to a single hash reference,
// bounding this Trie's memory footprint to the working set touched
// since the last Commit. It returns the new root hash.
func (t *Trie) Commit() (common.Hash, error) {
	if t.root == nil {
		return common.Hash{}, nil
	}
	h, err := commitNode(t.store, t.root)
	if err != nil {
		return common.Hash{}, err
	}
	t.root = hashNode(h)
	return h, nil
}

func commitNode(store NodeStore, n Node) (common.Hash, error) {
	switch node := n.(type) {
	case hashNode:
		return common.Hash(node), nil
	case *leafNode:
		enc := encodeLeaf(node)
		h := keccak256(enc)
		if err := store.Put(h, enc); err != nil {
			return common.Hash{}, err
		}
		return h, nil
	case *extensionNode:
		childHash, err := commitNode(store, node.Child)
		if err != nil {
			return common.Hash{}, err
		}
		enc := encodeExtension(node.Key, childHash)
		h := keccak256(enc)
		if err := store.Put(h, enc); err != nil {
			return common.Hash{}, err
		}
		return h, nil
	case *branchNode:
		var hashes [16]common.Hash
		for i, c := range node.Children {
			if c == nil {
				continue
			}
			h, err := commitNode(store, c)
			if err != nil {
				return common.Hash{}, err
			}
			hashes[i] = h
		}
		enc := encodeBranch(node.Children, hashes)
		h := keccak256(enc)
		if err := store.Put(h, enc); err != nil {
			return common.Hash{}, err
		}
		return h, nil
	default:
		return common.Hash{}, fmt.Errorf("trie: unknown node type %T", n)
	}
}
