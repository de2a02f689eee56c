// Package commit implements the single-writer commit engine: it
// drives blocks through the ordered pipeline described by spec.md's
// concurrency model. Extract (ingest.ExtractAddresses) -> Stage
// (addresstable.Insert + trie.Insert) -> Verify (trie root) -> Persist
// (one atomic KV write per batch), plus crash recovery and single-block
// reorg rollback.
package commit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/erigontech/erigon-lib/kv"
	"github.com/erigontech/erigon-lib/log/v3"

	"github.com/lgaroche/monique-indexer/internal/addresstable"
	"github.com/lgaroche/monique-indexer/internal/common"
	"github.com/lgaroche/monique-indexer/internal/ingest"
	"github.com/lgaroche/monique-indexer/internal/kvstore"
	"github.com/lgaroche/monique-indexer/internal/monicerr"
	"github.com/lgaroche/monique-indexer/internal/trie"
)

// FirstIndex is the first index the ingestor ever allocates, per
// spec.md §3.
const FirstIndex = uint64(1) << 18

// Engine is the single writer over the address index database. All
// its exported methods are meant to run from one goroutine; nothing
// here is safe for concurrent use.
type Engine struct {
	db        kv.RwDB
	chain     ingest.ChainReader
	logger    log.Logger
	batchSize int
}

// New returns an Engine writing to db, reading blocks from chain,
// grouping up to batchSize consecutive blocks per atomic write (a
// batchSize of 1 commits every block individually).
func New(db kv.RwDB, chain ingest.ChainReader, logger log.Logger, batchSize int) *Engine {
	if batchSize < 1 {
		batchSize = 1
	}
	return &Engine{db: db, chain: chain, logger: logger, batchSize: batchSize}
}

// LoadHead reads the persisted head record, or a genesis head with
// NextIndex = FirstIndex if none has ever been committed.
func (e *Engine) LoadHead(ctx context.Context) (Head, error) {
	var head Head
	found := false
	err := kvstore.View(ctx, e.db, func(tx kv.Tx) error {
		enc, ok, err := kvstore.Get(tx, kvstore.Meta, headKey)
		if err != nil || !ok {
			return err
		}
		h, _, err := decodeHead(enc)
		if err != nil {
			return fmt.Errorf("commit: decoding head: %w", monicerr.ErrIntegrityViolation)
		}
		head, found = h, true
		return nil
	})
	if err != nil {
		return Head{}, err
	}
	if !found {
		return Head{NextIndex: FirstIndex}, nil
	}
	return head, nil
}

// VerifyIntegrity recomputes the trie root from the persisted forward
// map and compares it against the stored head's trie_root, per
// spec.md §4.5's optional startup check. A mismatch is fatal.
func (e *Engine) VerifyIntegrity(ctx context.Context) error {
	head, err := e.LoadHead(ctx)
	if err != nil {
		return err
	}
	return kvstore.View(ctx, e.db, func(tx kv.Tx) error {
		var pairs []trie.Pair
		for i := FirstIndex; i < head.NextIndex; i++ {
			key, err := common.IndexKey(i)
			if err != nil {
				return err
			}
			v, ok, err := kvstore.Get(tx, kvstore.Forward, key[:])
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("commit: index %d missing from forward map: %w", i, monicerr.ErrIntegrityViolation)
			}
			pairs = append(pairs, trie.Pair{Index: i, Address: common.BytesToAddress(v)})
		}
		root, err := trie.ComputeRoot(pairs)
		if err != nil {
			return err
		}
		if root != head.TrieRoot {
			return fmt.Errorf("commit: recomputed root %x != head root %x: %w", root, head.TrieRoot, monicerr.ErrIntegrityViolation)
		}
		return nil
	})
}

// retryableFetch retries upstream RPC calls with exponential backoff
// until ctx is cancelled; UpstreamUnavailable and MalformedBlock are
// transient per spec.md §7, everything else is permanent and aborts
// the retry immediately.
func retryableFetch[T any](ctx context.Context, logger log.Logger, label string, f func() (T, error)) (T, error) {
	expo := backoff.NewExponentialBackOff()
	expo.MaxElapsedTime = 0
	policy := backoff.WithContext(expo, ctx)
	return backoff.RetryWithData(func() (T, error) {
		v, err := f()
		if err == nil {
			return v, nil
		}
		if errors.Is(err, monicerr.ErrUpstreamUnavailable) || errors.Is(err, monicerr.ErrMalformedBlock) {
			logger.Warn("retrying after transient fetch error", "op", label, "err", err)
			return v, err
		}
		return v, backoff.Permanent(err)
	}, policy)
}

// Run drives ingestion forward from head.LatestBlockNumber+1 (or
// startBlock at genesis) until ctx is cancelled or a fatal error
// occurs. A malformed block or a storage failure retries the batch;
// maxStorageRetries consecutive storage failures are fatal. It never
// returns a nil error on cancellation: the caller distinguishes
// context.Canceled from a real fault.
func (e *Engine) Run(ctx context.Context, startBlock uint64) error {
	const maxStorageRetries = 5

	head, err := e.LoadHead(ctx)
	if err != nil {
		return err
	}
	next := startBlock
	if head.LatestBlockNumber > 0 || head.NextIndex > FirstIndex {
		next = head.LatestBlockNumber + 1
	}
	storageFailures := 0

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		batch := make([]uint64, 0, e.batchSize)
		for len(batch) < e.batchSize {
			batch = append(batch, next+uint64(len(batch)))
		}

		newHead, rolledBack, err := e.processBatch(ctx, head, batch)
		if rolledBack {
			e.logger.Warn("rolled back one block", "block", head.LatestBlockNumber)
			head = newHead
			next = head.LatestBlockNumber + 1
			if head.LatestBlockNumber == 0 && head.NextIndex == FirstIndex {
				// Rolled back to before the first commit: resume
				// exactly as a fresh database would.
				next = startBlock
			}
			continue
		}
		if err != nil {
			if errors.Is(err, monicerr.ErrStorageFailure) {
				storageFailures++
				if storageFailures >= maxStorageRetries {
					return err
				}
				e.logger.Error("persist failed, retrying batch", "from", batch[0], "err", err)
				time.Sleep(time.Second)
				continue
			}
			if errors.Is(err, monicerr.ErrMalformedBlock) {
				e.logger.Warn("malformed block, retrying batch", "from", batch[0], "err", err)
				time.Sleep(time.Second)
				continue
			}
			return err
		}
		storageFailures = 0
		head = newHead
		next = head.LatestBlockNumber + 1
		e.logger.Info("committed", "block", head.LatestBlockNumber, "next_index", head.NextIndex, "trie_root", head.TrieRoot.Hex())
	}
}

// processBatch runs Extract/Stage/Verify for every block number in
// batch against one open write transaction, then Persist's the whole
// batch atomically with a single head update, per spec.md §4.5's
// batching policy. If a reorg is detected on the first block of the
// batch, it instead performs the single-block rollback and returns the
// post-rollback head with rolledBack=true; no blocks are fetched past
// the mismatch.
func (e *Engine) processBatch(ctx context.Context, head Head, batch []uint64) (newHead Head, rolledBack bool, err error) {
	tx, err := e.db.BeginRw(ctx)
	if err != nil {
		return Head{}, false, fmt.Errorf("commit: begin tx: %w", monicerr.ErrStorageFailure)
	}
	defer tx.Rollback()

	table := addresstable.New(tx, head.NextIndex)
	tr := trie.New(kvstore.RwNodeStore{Tx: tx}, head.TrieRoot)

	rb, err := e.loadRollback(tx)
	if err != nil {
		return Head{}, false, err
	}

	current := head
	firstIndexOfBatch := head.NextIndex

	for _, num := range batch {
		block, err := retryableFetch(ctx, e.logger, "BlockByNumber", func() (*ingest.Block, error) {
			return e.chain.BlockByNumber(ctx, num)
		})
		if err != nil {
			return Head{}, false, err
		}

		haveHead := rb.Valid || current.LatestBlockHash != (common.Hash{})
		if haveHead {
			if block.ParentHash != current.LatestBlockHash {
				if !rb.Valid {
					return Head{}, false, fmt.Errorf("commit: reorg at block %d with no prior root retained: %w", num, monicerr.ErrReorgTooDeep)
				}
				rolledBackHead, err := e.rollback(tx, rb)
				if err != nil {
					return Head{}, false, err
				}
				if err := tx.Commit(); err != nil {
					return Head{}, false, fmt.Errorf("commit: rollback write: %w", monicerr.ErrStorageFailure)
				}
				return rolledBackHead, true, nil
			}
		}

		receipts, err := retryableFetch(ctx, e.logger, "ReceiptsByBlock", func() ([]ingest.Receipt, error) {
			return e.chain.ReceiptsByBlock(ctx, num)
		})
		if err != nil {
			return Head{}, false, err
		}

		addrs, err := ingest.ExtractAddresses(block, receipts)
		if err != nil {
			return Head{}, false, err
		}
		for _, a := range addrs {
			idx, isNew, err := table.Insert(a)
			if err != nil {
				return Head{}, false, err
			}
			if isNew {
				if err := tr.Insert(idx, a); err != nil {
					return Head{}, false, err
				}
			}
		}

		current.LatestBlockNumber = block.Number
		current.LatestBlockHash = block.Hash
	}

	newRoot, err := tr.Commit()
	if err != nil {
		return Head{}, false, err
	}

	if err := addresstable.Flush(tx, table.Pending()); err != nil {
		return Head{}, false, err
	}

	current.PrevTrieRoot = head.TrieRoot
	current.TrieRoot = newRoot
	current.NextIndex = table.NextIndex()

	newRb := rollbackInfo{
		Valid:                true,
		PrevBlockNumber:      head.LatestBlockNumber,
		PrevBlockHash:        head.LatestBlockHash,
		FirstIndexOfLastHead: firstIndexOfBatch,
	}
	enc, err := encodeHead(current, newRb)
	if err != nil {
		return Head{}, false, err
	}
	if err := kvstore.Put(tx, kvstore.Meta, headKey, enc); err != nil {
		return Head{}, false, err
	}

	if err := tx.Commit(); err != nil {
		return Head{}, false, fmt.Errorf("commit: persist: %w", monicerr.ErrStorageFailure)
	}
	return current, false, nil
}

func (e *Engine) loadRollback(tx kv.Tx) (rollbackInfo, error) {
	enc, ok, err := kvstore.Get(tx, kvstore.Meta, headKey)
	if err != nil || !ok {
		return rollbackInfo{}, err
	}
	_, rb, err := decodeHead(enc)
	return rb, err
}

// rollback undoes exactly the most recently committed write (one block
// with a batch size of 1, every block of the last batch otherwise): it
// removes the forward/reverse entries it allocated, reverts the trie
// root to the value pinned before that write, and writes a head that
// reports no further rollback available, matching spec.md §4.5's
// "rollback depth > 1 is fatal" rule.
func (e *Engine) rollback(tx kv.RwTx, rb rollbackInfo) (Head, error) {
	enc, ok, err := kvstore.Get(tx, kvstore.Meta, headKey)
	if err != nil {
		return Head{}, err
	}
	if !ok {
		return Head{}, fmt.Errorf("commit: rollback with no head: %w", monicerr.ErrIntegrityViolation)
	}
	current, _, err := decodeHead(enc)
	if err != nil {
		return Head{}, fmt.Errorf("commit: decoding head: %w", monicerr.ErrIntegrityViolation)
	}

	for i := rb.FirstIndexOfLastHead; i < current.NextIndex; i++ {
		key, err := common.IndexKey(i)
		if err != nil {
			return Head{}, err
		}
		v, ok, err := kvstore.Get(tx, kvstore.Forward, key[:])
		if err != nil {
			return Head{}, err
		}
		if err := tx.Delete(kvstore.Forward, key[:]); err != nil {
			return Head{}, fmt.Errorf("commit: rollback delete forward: %w", monicerr.ErrStorageFailure)
		}
		if ok {
			if err := tx.Delete(kvstore.Reverse, v); err != nil {
				return Head{}, fmt.Errorf("commit: rollback delete reverse: %w", monicerr.ErrStorageFailure)
			}
		}
	}

	newHead := Head{
		LatestBlockNumber: rb.PrevBlockNumber,
		LatestBlockHash:   rb.PrevBlockHash,
		TrieRoot:          current.PrevTrieRoot,
		PrevTrieRoot:      common.Hash{},
		NextIndex:         rb.FirstIndexOfLastHead,
	}
	enc2, err := encodeHead(newHead, rollbackInfo{})
	if err != nil {
		return Head{}, err
	}
	if err := kvstore.Put(tx, kvstore.Meta, headKey, enc2); err != nil {
		return Head{}, err
	}
	return newHead, nil
}
