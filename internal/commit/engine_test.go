package commit

import (
	"context"
	"errors"
	"testing"

	"github.com/erigontech/erigon-lib/log/v3"

	"github.com/lgaroche/monique-indexer/internal/common"
	"github.com/lgaroche/monique-indexer/internal/ingest"
	"github.com/lgaroche/monique-indexer/internal/kvstore"
	"github.com/lgaroche/monique-indexer/internal/monicerr"
)

func addr(b byte) common.Address {
	var a common.Address
	a[19] = b
	return a
}

func hash(b byte) common.Hash {
	var h common.Hash
	h[31] = b
	return h
}

// fakeChain serves a mutable, in-memory chain of blocks keyed by
// height, letting tests simulate a reorg by swapping out the block at
// a given height between calls.
type fakeChain struct {
	blocks   map[uint64]*ingest.Block
	receipts map[uint64][]ingest.Receipt
}

func newFakeChain() *fakeChain {
	return &fakeChain{blocks: map[uint64]*ingest.Block{}, receipts: map[uint64][]ingest.Receipt{}}
}

func (c *fakeChain) set(b *ingest.Block, r []ingest.Receipt) {
	if r == nil {
		r = make([]ingest.Receipt, len(b.Transactions))
	}
	c.blocks[b.Number] = b
	c.receipts[b.Number] = r
}

func (c *fakeChain) BlockByNumber(_ context.Context, number uint64) (*ingest.Block, error) {
	b, ok := c.blocks[number]
	if !ok {
		return nil, errors.New("fakeChain: no such block")
	}
	return b, nil
}

func (c *fakeChain) ReceiptsByBlock(_ context.Context, number uint64) ([]ingest.Receipt, error) {
	return c.receipts[number], nil
}

func testEngine(t *testing.T, chain *fakeChain) (*Engine, func()) {
	t.Helper()
	db := kvstore.NewTestDB(t)
	e := New(db, chain, log.New(), 1)
	return e, func() {}
}

func TestGenesisAuthorScenario(t *testing.T) {
	chain := newFakeChain()
	chain.set(&ingest.Block{Number: 0, Hash: hash(0xAA), Author: addr(1)}, nil)

	e, done := testEngine(t, chain)
	defer done()

	head, err := e.LoadHead(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	newHead, rolledBack, err := e.processBatch(context.Background(), head, []uint64{0})
	if err != nil || rolledBack {
		t.Fatalf("processBatch: %v rolledBack=%v", err, rolledBack)
	}
	if newHead.NextIndex != FirstIndex+1 {
		t.Fatalf("next_index = %d, want %d", newHead.NextIndex, FirstIndex+1)
	}
	if newHead.TrieRoot == (common.Hash{}) {
		t.Fatal("expected a non-zero trie root")
	}
}

func TestSingleTransferAssignmentOrder(t *testing.T) {
	chain := newFakeChain()
	b, c := addr(2), addr(3)
	chain.set(&ingest.Block{
		Number: 0, Hash: hash(1), Author: addr(1),
		Transactions: []ingest.Transaction{{From: b, To: &c}},
	}, nil)

	e, done := testEngine(t, chain)
	defer done()

	head, _ := e.LoadHead(context.Background())
	newHead, _, err := e.processBatch(context.Background(), head, []uint64{0})
	if err != nil {
		t.Fatal(err)
	}
	if newHead.NextIndex != FirstIndex+3 {
		t.Fatalf("next_index = %d, want %d", newHead.NextIndex, FirstIndex+3)
	}
}

func TestDuplicateWithinBlockAssignedOnce(t *testing.T) {
	chain := newFakeChain()
	a := addr(1)
	chain.set(&ingest.Block{
		Number: 0, Hash: hash(1), Author: a,
		Withdrawals: []ingest.Withdrawal{{Index: 0, Address: a}, {Index: 1, Address: a}},
	}, nil)

	e, done := testEngine(t, chain)
	defer done()

	head, _ := e.LoadHead(context.Background())
	newHead, _, err := e.processBatch(context.Background(), head, []uint64{0})
	if err != nil {
		t.Fatal(err)
	}
	if newHead.NextIndex != FirstIndex+1 {
		t.Fatalf("next_index = %d, want %d (author and both withdrawals are the same address)", newHead.NextIndex, FirstIndex+1)
	}
}

func TestReorgOfDepthOne(t *testing.T) {
	chain := newFakeChain()
	chain.set(&ingest.Block{Number: 0, Hash: hash(1), Author: addr(1)}, nil)

	e, done := testEngine(t, chain)
	defer done()
	ctx := context.Background()

	head, _ := e.LoadHead(ctx)
	head, rolledBack, err := e.processBatch(ctx, head, []uint64{0})
	if err != nil || rolledBack {
		t.Fatalf("commit block 0: %v %v", err, rolledBack)
	}
	preRollbackRoot := head.TrieRoot
	preRollbackNextIndex := head.NextIndex

	// Block 1 with a parent hash that doesn't match block 0's hash:
	// simulates upstream reporting a different chain head.
	chain.set(&ingest.Block{Number: 1, Hash: hash(2), ParentHash: hash(0xFF), Author: addr(2)}, nil)
	head, rolledBack, err = e.processBatch(ctx, head, []uint64{1})
	if err != nil {
		t.Fatal(err)
	}
	if !rolledBack {
		t.Fatal("expected a rollback")
	}
	if head.NextIndex != FirstIndex {
		t.Fatalf("next_index after rollback = %d, want %d", head.NextIndex, FirstIndex)
	}
	if head.LatestBlockHash != (common.Hash{}) {
		t.Fatalf("expected rollback to the pre-genesis head, got hash %s", head.LatestBlockHash)
	}

	// Re-apply the corrected block 0.
	chain.set(&ingest.Block{Number: 0, Hash: hash(1), Author: addr(1)}, nil)
	head, rolledBack, err = e.processBatch(ctx, head, []uint64{0})
	if err != nil || rolledBack {
		t.Fatalf("re-commit block 0: %v %v", err, rolledBack)
	}
	if head.TrieRoot != preRollbackRoot || head.NextIndex != preRollbackNextIndex {
		t.Fatalf("re-applying block 0 did not reproduce the original head: root=%s next_index=%d", head.TrieRoot, head.NextIndex)
	}
}

func TestSecondConsecutiveReorgIsFatal(t *testing.T) {
	chain := newFakeChain()
	chain.set(&ingest.Block{Number: 0, Hash: hash(1), Author: addr(1)}, nil)
	chain.set(&ingest.Block{Number: 1, Hash: hash(2), ParentHash: hash(1), Author: addr(2)}, nil)

	e, done := testEngine(t, chain)
	defer done()
	ctx := context.Background()

	head, _ := e.LoadHead(ctx)
	head, _, err := e.processBatch(ctx, head, []uint64{0})
	if err != nil {
		t.Fatal(err)
	}
	head, _, err = e.processBatch(ctx, head, []uint64{1})
	if err != nil {
		t.Fatal(err)
	}

	// Block 2's parent doesn't match block 1: roll block 1 back.
	chain.set(&ingest.Block{Number: 2, Hash: hash(3), ParentHash: hash(0xFF)}, nil)
	head, rolledBack, err := e.processBatch(ctx, head, []uint64{2})
	if err != nil || !rolledBack {
		t.Fatalf("expected first rollback to succeed: %v %v", err, rolledBack)
	}

	// Head is back to the state right after block 0. A second,
	// immediately consecutive mismatch has nothing left to roll back
	// to: rollbackInfo.Valid is false until another block commits.
	chain.set(&ingest.Block{Number: 1, Hash: hash(4), ParentHash: hash(0xEE), Author: addr(3)}, nil)
	_, _, err = e.processBatch(ctx, head, []uint64{1})
	if !errors.Is(err, monicerr.ErrReorgTooDeep) {
		t.Fatalf("expected ErrReorgTooDeep, got %v", err)
	}
}

func TestVerifyIntegrityDetectsCorruption(t *testing.T) {
	chain := newFakeChain()
	chain.set(&ingest.Block{Number: 0, Hash: hash(1), Author: addr(1)}, nil)

	e, done := testEngine(t, chain)
	defer done()
	ctx := context.Background()

	head, _ := e.LoadHead(ctx)
	if _, _, err := e.processBatch(ctx, head, []uint64{0}); err != nil {
		t.Fatal(err)
	}
	if err := e.VerifyIntegrity(ctx); err != nil {
		t.Fatalf("expected clean integrity check, got %v", err)
	}

	// Overwrite the committed forward entry so the recomputed root no
	// longer matches the stored head.
	key, err := common.IndexKey(FirstIndex)
	if err != nil {
		t.Fatal(err)
	}
	tx, err := e.db.BeginRw(ctx)
	if err != nil {
		t.Fatal(err)
	}
	bad := addr(9)
	if err := kvstore.Put(tx, kvstore.Forward, key[:], bad[:]); err != nil {
		t.Fatal(err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatal(err)
	}
	if err := e.VerifyIntegrity(ctx); !errors.Is(err, monicerr.ErrIntegrityViolation) {
		t.Fatalf("expected ErrIntegrityViolation after corruption, got %v", err)
	}
}
