// Package rpcchain implements ingest.ChainReader over go-ethereum's
// JSON-RPC client, the concrete upstream collaborator spec.md leaves
// abstract.
package rpcchain

import (
	"context"
	"fmt"
	"math/big"

	gethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/lgaroche/monique-indexer/internal/common"
	"github.com/lgaroche/monique-indexer/internal/ingest"
	"github.com/lgaroche/monique-indexer/internal/monicerr"
)

// Client wraps a single upstream JSON-RPC endpoint. It is safe for
// concurrent use since it holds no mutable state beyond the
// underlying *rpc.Client's own connection pool.
type Client struct {
	rpcClient *rpc.Client
	eth       *ethclient.Client
}

// Dial connects to url (ws://, http://, or a unix socket path, per
// go-ethereum/rpc.Dial's own resolution rules).
func Dial(ctx context.Context, url string) (*Client, error) {
	rc, err := rpc.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("rpcchain: dial %s: %w", url, monicerr.ErrUpstreamUnavailable)
	}
	return &Client{rpcClient: rc, eth: ethclient.NewClient(rc)}, nil
}

// Close releases the underlying connection.
func (c *Client) Close() {
	c.rpcClient.Close()
}

// BlockByNumber implements ingest.ChainReader.
func (c *Client) BlockByNumber(ctx context.Context, number uint64) (*ingest.Block, error) {
	block, err := c.eth.BlockByNumber(ctx, new(big.Int).SetUint64(number))
	if err != nil {
		return nil, fmt.Errorf("rpcchain: block %d: %w", number, monicerr.ErrUpstreamUnavailable)
	}

	out := &ingest.Block{
		Number:     block.NumberU64(),
		Hash:       common.Hash(block.Hash()),
		ParentHash: common.Hash(block.ParentHash()),
		Author:     common.Address(block.Coinbase()),
	}

	for _, tx := range block.Transactions() {
		from, err := c.eth.TransactionSender(ctx, tx, block.Hash(), 0)
		if err != nil {
			return nil, fmt.Errorf("rpcchain: block %d tx %s sender: %w", number, tx.Hash(), monicerr.ErrMalformedBlock)
		}
		var to *common.Address
		if tx.To() != nil {
			t := common.Address(*tx.To())
			to = &t
		}
		out.Transactions = append(out.Transactions, ingest.Transaction{
			Hash:  common.Hash(tx.Hash()),
			From:  common.Address(from),
			To:    to,
			Nonce: tx.Nonce(),
		})
	}

	for _, w := range block.Withdrawals() {
		out.Withdrawals = append(out.Withdrawals, ingest.Withdrawal{
			Index:   w.Index,
			Address: common.Address(w.Address),
		})
	}

	return out, nil
}

// ReceiptsByBlock implements ingest.ChainReader.
func (c *Client) ReceiptsByBlock(ctx context.Context, number uint64) ([]ingest.Receipt, error) {
	block, err := c.eth.BlockByNumber(ctx, new(big.Int).SetUint64(number))
	if err != nil {
		return nil, fmt.Errorf("rpcchain: block %d: %w", number, monicerr.ErrUpstreamUnavailable)
	}

	receipts := make([]ingest.Receipt, 0, len(block.Transactions()))
	for _, tx := range block.Transactions() {
		receipt, err := c.eth.TransactionReceipt(ctx, tx.Hash())
		if err != nil {
			return nil, fmt.Errorf("rpcchain: block %d receipt %s: %w", number, tx.Hash(), monicerr.ErrUpstreamUnavailable)
		}
		receipts = append(receipts, convertReceipt(tx, receipt))
	}
	return receipts, nil
}

func convertReceipt(tx *types.Transaction, receipt *types.Receipt) ingest.Receipt {
	out := ingest.Receipt{}
	if tx.To() == nil && receipt.ContractAddress != (gethcommon.Address{}) {
		addr := common.Address(receipt.ContractAddress)
		out.ContractAddress = &addr
	}
	for _, lg := range receipt.Logs {
		topics := make([]common.Hash, len(lg.Topics))
		for i, t := range lg.Topics {
			topics[i] = common.Hash(t)
		}
		out.Logs = append(out.Logs, ingest.Log{
			Address: common.Address(lg.Address),
			Topics:  topics,
		})
	}
	return out
}
