package commit

import (
	"github.com/ethereum/go-ethereum/rlp"

	"github.com/lgaroche/monique-indexer/internal/common"
)

// headKey is the fixed key under which the singleton head record lives
// in the meta table.
var headKey = []byte("head")

// Head is the persisted checkpoint: everything the engine needs to
// resume ingestion and everything a client needs to know the
// indexer's current state, matching the record shape of spec.md §6.
type Head struct {
	LatestBlockNumber uint64
	LatestBlockHash   common.Hash
	TrieRoot          common.Hash
	PrevTrieRoot      common.Hash
	NextIndex         uint64
}

// rollbackInfo is the bookkeeping the record carries beyond spec.md's
// listed fields, in order to actually perform the single-block
// rollback spec.md §4.5 describes: the block number/hash from before
// the latest commit, and the first index it allocated. Rollback.Valid
// is false right after a rollback or before the first commit, which
// is how the engine reports a second consecutive reorg as
// ReorgTooDeep rather than silently rewinding further.
type rollbackInfo struct {
	Valid                bool
	PrevBlockNumber      uint64
	PrevBlockHash        common.Hash
	FirstIndexOfLastHead uint64
}

type headRecord struct {
	LatestBlockNumber uint64
	LatestBlockHash   common.Hash
	TrieRoot          common.Hash
	PrevTrieRoot      common.Hash
	NextIndex         uint64
	Rollback          rollbackInfo
}

func encodeHead(h Head, rb rollbackInfo) ([]byte, error) {
	return rlp.EncodeToBytes(headRecord{
		LatestBlockNumber: h.LatestBlockNumber,
		LatestBlockHash:   h.LatestBlockHash,
		TrieRoot:          h.TrieRoot,
		PrevTrieRoot:      h.PrevTrieRoot,
		NextIndex:         h.NextIndex,
		Rollback:          rb,
	})
}

func decodeHead(enc []byte) (Head, rollbackInfo, error) {
	var rec headRecord
	if err := rlp.DecodeBytes(enc, &rec); err != nil {
		return Head{}, rollbackInfo{}, err
	}
	return Head{
		LatestBlockNumber: rec.LatestBlockNumber,
		LatestBlockHash:   rec.LatestBlockHash,
		TrieRoot:          rec.TrieRoot,
		PrevTrieRoot:      rec.PrevTrieRoot,
		NextIndex:         rec.NextIndex,
	}, rec.Rollback, nil
}
