// Package addresstable implements the dual-keyed index<->address
// bijection: a persistent forward/reverse pair backed by kvstore, with
// an in-memory staging overlay for the address table mutations of the
// commit batch currently in flight.
package addresstable

import (
	"fmt"

	"github.com/erigontech/erigon-lib/kv"

	"github.com/lgaroche/monique-indexer/internal/common"
	"github.com/lgaroche/monique-indexer/internal/kvstore"
	"github.com/lgaroche/monique-indexer/internal/monicerr"
)

// Table is the single-writer view of the address table: reads consult
// the staging overlay first, then the persistent store reached through
// tx; inserts land only in the overlay until Flush persists them.
//
// A Table is not safe for concurrent use; it is owned exclusively by
// the commit engine for the duration of one staging pass.
type Table struct {
	tx kv.Tx

	pendingForward map[uint64]common.Address
	pendingReverse map[common.Address]uint64
	// order preserves insertion order so Pending() replays inserts in
	// the same sequence trie updates must be applied in.
	order []uint64

	nextIndex uint64
}

// New returns a Table reading persistent state through tx (typically a
// snapshot read view, or the in-flight write transaction), starting
// allocation at nextIndex.
func New(tx kv.Tx, nextIndex uint64) *Table {
	return &Table{
		tx:             tx,
		pendingForward: make(map[uint64]common.Address),
		pendingReverse: make(map[common.Address]uint64),
		nextIndex:      nextIndex,
	}
}

// LookupByIndex returns the address assigned to index, if any;
// AddressByIndex wraps it to satisfy monic.AddressLookup.
func (t *Table) LookupByIndex(index uint64) (common.Address, bool, error) {
	if a, ok := t.pendingForward[index]; ok {
		return a, true, nil
	}
	key, err := common.IndexKey(index)
	if err != nil {
		return common.Address{}, false, err
	}
	v, ok, err := kvstore.Get(t.tx, kvstore.Forward, key[:])
	if err != nil || !ok {
		return common.Address{}, false, err
	}
	return common.BytesToAddress(v), true, nil
}

// AddressByIndex adapts LookupByIndex to monic.AddressLookup's
// two-return signature, swallowing storage errors as a miss: the
// codec only needs to know whether a mapping exists.
func (t *Table) AddressByIndex(index uint64) (common.Address, bool) {
	a, ok, err := t.LookupByIndex(index)
	if err != nil {
		return common.Address{}, false
	}
	return a, ok
}

// LookupByAddress returns the index assigned to addr, if any.
func (t *Table) LookupByAddress(addr common.Address) (uint64, bool, error) {
	if i, ok := t.pendingReverse[addr]; ok {
		return i, true, nil
	}
	v, ok, err := kvstore.Get(t.tx, kvstore.Reverse, addr[:])
	if err != nil || !ok {
		return 0, false, err
	}
	return common.IndexFromKey(v), true, nil
}

// Insert returns the index already assigned to addr, or allocates
// nextIndex, records the staged insert, and advances nextIndex. It is
// the address table's only mutating operation, valid only while a
// staging pass is open.
func (t *Table) Insert(addr common.Address) (index uint64, isNew bool, err error) {
	if i, ok, err := t.LookupByAddress(addr); err != nil {
		return 0, false, err
	} else if ok {
		return i, false, nil
	}
	if t.nextIndex >= (uint64(1) << 40) {
		return 0, false, fmt.Errorf("addresstable: %w", monicerr.ErrIndexOutOfRange)
	}
	index = t.nextIndex
	t.nextIndex++
	t.pendingForward[index] = addr
	t.pendingReverse[addr] = index
	t.order = append(t.order, index)
	return index, true, nil
}

// NextIndex reports the counter as it stands after every staged insert
// so far, i.e. the value the head metadata will carry after Flush.
func (t *Table) NextIndex() uint64 {
	return t.nextIndex
}

// Pending returns the staged inserts in allocation order, for the trie
// update and the KV write in the persist phase.
func (t *Table) Pending() []Pair {
	out := make([]Pair, len(t.order))
	for i, idx := range t.order {
		out[i] = Pair{Index: idx, Address: t.pendingForward[idx]}
	}
	return out
}

// Discard clears the staging overlay without touching the persistent
// store and resets the counter to resetNextIndex. The commit engine
// does not call it: on a failed batch it rolls back its transaction
// and builds a fresh Table for the retry.
func (t *Table) Discard(resetNextIndex uint64) {
	t.pendingForward = make(map[uint64]common.Address)
	t.pendingReverse = make(map[common.Address]uint64)
	t.order = nil
	t.nextIndex = resetNextIndex
}

// Flush writes every pair in pending into tx as forward and reverse
// entries; it leaves the Table that produced pending unchanged. The
// caller commits tx (and the accompanying trie/meta writes) as one
// atomic unit; Flush itself performs no commit.
func Flush(tx kv.RwTx, pending []Pair) error {
	for _, p := range pending {
		key, err := common.IndexKey(p.Index)
		if err != nil {
			return err
		}
		if err := kvstore.Put(tx, kvstore.Forward, key[:], p.Address[:]); err != nil {
			return err
		}
		if err := kvstore.Put(tx, kvstore.Reverse, p.Address[:], key[:]); err != nil {
			return err
		}
	}
	return nil
}

// Pair is one staged (index, address) assignment.
type Pair struct {
	Index   uint64
	Address common.Address
}
