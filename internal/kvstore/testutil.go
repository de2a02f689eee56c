package kvstore

import (
	"testing"

	"github.com/erigontech/erigon-lib/kv"
	"github.com/erigontech/erigon-lib/kv/mdbx"
	"github.com/erigontech/erigon-lib/log/v3"
)

// NewTestDB opens an in-memory database with the Forward/Reverse/
// TrieNodes/Meta tables registered, following memdb.NewTestDB's own
// tb.TempDir-plus-tb.Cleanup shape -- memdb.NewTestDB itself can't be
// used here since it never installs a custom TableCfg, and callers
// need the tables this package defines to exist before their first
// Put.
func NewTestDB(tb testing.TB) kv.RwDB {
	tb.Helper()
	db := mdbx.NewMDBX(log.New()).
		InMem(tb.TempDir()).
		Label(Label).
		WithTableCfg(func(kv.TableCfg) kv.TableCfg { return TablesCfg }).
		MustOpen()
	tb.Cleanup(db.Close)
	return db
}
