package kvstore

import (
	"context"
	"fmt"

	"github.com/erigontech/erigon-lib/kv"
	"github.com/erigontech/erigon-lib/kv/mdbx"
	"github.com/erigontech/erigon-lib/log/v3"

	"github.com/lgaroche/monique-indexer/internal/monicerr"
)

// Open opens (creating if absent) the MDBX environment at path with the
// four index tables. Callers own the returned kv.RwDB and must Close it.
func Open(logger log.Logger, path string) (kv.RwDB, error) {
	db, err := mdbx.NewMDBX(logger).
		Path(path).
		Label(Label).
		WithTableCfg(func(kv.TableCfg) kv.TableCfg { return TablesCfg }).
		Open(context.Background())
	if err != nil {
		return nil, fmt.Errorf("kvstore: open %s: %w", path, monicerr.ErrStorageFailure)
	}
	return db, nil
}

// Get reads a single value, returning (nil, false, nil) on a miss
// rather than an error: absence is a normal outcome for every table
// here, not a storage fault.
func Get(tx kv.Tx, table string, key []byte) ([]byte, bool, error) {
	v, err := tx.GetOne(table, key)
	if err != nil {
		return nil, false, fmt.Errorf("kvstore: get %s: %w", table, monicerr.ErrStorageFailure)
	}
	return v, v != nil, nil
}

// Put writes a single value, wrapping any MDBX failure as a storage
// fault per the error taxonomy: the caller never sees a raw mdbx.Error.
func Put(tx kv.RwTx, table string, key, value []byte) error {
	if err := tx.Put(table, key, value); err != nil {
		return fmt.Errorf("kvstore: put %s: %w", table, monicerr.ErrStorageFailure)
	}
	return nil
}

// View runs f inside a read-only transaction. Errors from f are
// returned unwrapped since f is expected to already classify them.
func View(ctx context.Context, db kv.RoDB, f func(tx kv.Tx) error) error {
	return db.View(ctx, f)
}
