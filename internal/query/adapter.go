// Package query implements the read-only facade the HTTP layer (and
// any other consumer) uses to resolve indices, addresses, and monics
// against the last committed state, without ever touching the commit
// engine's write transaction.
package query

import (
	"context"
	"fmt"

	"github.com/erigontech/erigon-lib/kv"

	"github.com/lgaroche/monique-indexer/internal/addresstable"
	"github.com/lgaroche/monique-indexer/internal/commit"
	"github.com/lgaroche/monique-indexer/internal/common"
	"github.com/lgaroche/monique-indexer/internal/kvstore"
	"github.com/lgaroche/monique-indexer/internal/monic"
	"github.com/lgaroche/monique-indexer/internal/monicerr"
)

// Result is the shape returned by every lookup, matching spec.md §6's
// JSON contract.
type Result struct {
	Index   uint64
	Address common.Address
	Monic   string
}

// Adapter is a read-only facade over db. Every method opens its own
// snapshot read transaction, so a lookup never blocks on, or observes
// a partial view of, an in-progress commit.
type Adapter struct {
	db kv.RoDB
}

// New returns an Adapter reading from db.
func New(db kv.RoDB) *Adapter {
	return &Adapter{db: db}
}

// ByIndex resolves index to its address and monic.
func (a *Adapter) ByIndex(ctx context.Context, index uint64) (Result, error) {
	var res Result
	err := kvstore.View(ctx, a.db, func(tx kv.Tx) error {
		table := addresstable.New(tx, 0)
		addr, ok, err := table.LookupByIndex(index)
		if err != nil {
			return err
		}
		if !ok {
			return monicerr.ErrNotFound
		}
		m, err := monic.Encode(index, table)
		if err != nil {
			return err
		}
		res = Result{Index: index, Address: addr, Monic: m}
		return nil
	})
	return res, err
}

// ByAddress resolves addr to its index and monic.
func (a *Adapter) ByAddress(ctx context.Context, addr common.Address) (Result, error) {
	var res Result
	err := kvstore.View(ctx, a.db, func(tx kv.Tx) error {
		table := addresstable.New(tx, 0)
		index, ok, err := table.LookupByAddress(addr)
		if err != nil {
			return err
		}
		if !ok {
			return monicerr.ErrNotFound
		}
		m, err := monic.Encode(index, table)
		if err != nil {
			return err
		}
		res = Result{Index: index, Address: addr, Monic: m}
		return nil
	})
	return res, err
}

// ByMonic decodes phrase back to its index and address.
func (a *Adapter) ByMonic(ctx context.Context, phrase string) (Result, error) {
	var res Result
	err := kvstore.View(ctx, a.db, func(tx kv.Tx) error {
		table := addresstable.New(tx, 0)
		index, err := monic.Decode(phrase, table)
		if err != nil {
			return err
		}
		addr, ok, err := table.LookupByIndex(index)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("query: monic %q decoded but has no address: %w", phrase, monicerr.ErrNotFound)
		}
		res = Result{Index: index, Address: addr, Monic: phrase}
		return nil
	})
	return res, err
}

// Stats is the /stats endpoint payload.
type Stats struct {
	LastBlock       uint64
	UniqueAddresses uint64
	NextIndex       uint64
}

// LoadStats reports the last committed head's summary counters.
func LoadStats(ctx context.Context, engine *commit.Engine) (Stats, error) {
	head, err := engine.LoadHead(ctx)
	if err != nil {
		return Stats{}, err
	}
	return Stats{
		LastBlock:       head.LatestBlockNumber,
		UniqueAddresses: head.NextIndex - commit.FirstIndex,
		NextIndex:       head.NextIndex,
	}, nil
}
