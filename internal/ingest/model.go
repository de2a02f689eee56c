// Package ingest implements the per-block address traversal: given a
// block and its receipts, produce the ordered sequence of candidate
// addresses the commit engine will deduplicate and allocate indices
// for. It also defines the ChainReader interface the upstream RPC
// client satisfies, keeping this package's core logic independent of
// any particular RPC transport.
package ingest

import (
	"context"

	"github.com/lgaroche/monique-indexer/internal/common"
)

// Block carries the header fields and ordered transaction list the
// traversal needs, per the upstream RPC contract.
type Block struct {
	Number       uint64
	Hash         common.Hash
	ParentHash   common.Hash
	Author       common.Address
	Transactions []Transaction
	Withdrawals  []Withdrawal
}

// Transaction carries the sender/recipient pair the traversal needs.
// To is nil for a contract-creation transaction.
type Transaction struct {
	Hash  common.Hash
	From  common.Address
	To    *common.Address
	Nonce uint64
}

// Receipt carries a transaction's logs and, for a contract-creation
// transaction, the created address (when upstream reports one).
type Receipt struct {
	Logs            []Log
	ContractAddress *common.Address
}

// Log carries the address and topics of a single EVM log entry. Data
// is intentionally omitted: the traversal only ever needs topics.
type Log struct {
	Address common.Address
	Topics  []common.Hash
}

// Withdrawal carries a consensus-layer withdrawal recipient.
type Withdrawal struct {
	Index   uint64
	Address common.Address
}

// ChainReader is the upstream RPC collaborator: given a block height
// it returns the block and, separately, the per-transaction receipts
// in transaction order.
type ChainReader interface {
	BlockByNumber(ctx context.Context, number uint64) (*Block, error)
	ReceiptsByBlock(ctx context.Context, number uint64) ([]Receipt, error)
}
