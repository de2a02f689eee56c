package ingest

import (
	"fmt"

	gethcommon "github.com/ethereum/go-ethereum/common"
	gethcrypto "github.com/ethereum/go-ethereum/crypto"

	"github.com/lgaroche/monique-indexer/internal/common"
	"github.com/lgaroche/monique-indexer/internal/monicerr"
)

// ExtractAddresses produces the ordered candidate address stream for
// one block, per the fixed traversal: the block author, then for
// every transaction (in block order) its sender, its recipient or
// created-contract address, and every recognized Transfer-shaped log
// in that transaction's receipt, then every withdrawal recipient.
//
// Duplicates within the block are not removed here -- deduplication
// against the address table is the commit engine's job.
func ExtractAddresses(block *Block, receipts []Receipt) ([]common.Address, error) {
	if len(receipts) != len(block.Transactions) {
		return nil, fmt.Errorf("ingest: block %d has %d transactions but %d receipts: %w",
			block.Number, len(block.Transactions), len(receipts), monicerr.ErrMalformedBlock)
	}

	out := make([]common.Address, 0, 1+4*len(block.Transactions)+len(block.Withdrawals))
	out = append(out, block.Author)

	for i, tx := range block.Transactions {
		out = append(out, tx.From)
		if tx.To != nil {
			out = append(out, *tx.To)
		} else {
			out = append(out, contractCreationAddress(tx, receipts[i]))
		}
		out = append(out, transferAddresses(receipts[i].Logs)...)
	}

	for _, w := range block.Withdrawals {
		out = append(out, w.Address)
	}

	return out, nil
}

// contractCreationAddress resolves the address of a newly created
// contract: upstream's reported ContractAddress when present, else
// keccak256(rlp([sender, nonce]))[12:], per the design note that an
// absent ContractAddress must be computed, never skipped.
func contractCreationAddress(tx Transaction, receipt Receipt) common.Address {
	if receipt.ContractAddress != nil {
		return *receipt.ContractAddress
	}
	created := gethcrypto.CreateAddress(gethcommon.Address(tx.From), tx.Nonce)
	return common.Address(created)
}

// transferAddresses decodes the addresses out of a single log if its
// topic[0] matches one of the three recognized signatures and its
// topic count matches that signature's canonical shape; logs whose
// signature matches but whose topic count doesn't are tolerated and
// skipped, to avoid misclassifying non-standard events that happen to
// share a signature hash.
func transferAddresses(logs []Log) []common.Address {
	var out []common.Address
	for _, lg := range logs {
		if len(lg.Topics) == 0 {
			continue
		}
		switch {
		case lg.Topics[0] == TransferSignature && len(lg.Topics) == 3:
			out = append(out, topicToAddress(lg.Topics[1]), topicToAddress(lg.Topics[2]))
		case lg.Topics[0] == TransferSingleSignature && len(lg.Topics) == 4:
			out = append(out, topicToAddress(lg.Topics[1]), topicToAddress(lg.Topics[2]), topicToAddress(lg.Topics[3]))
		case lg.Topics[0] == TransferBatchSignature && len(lg.Topics) == 4:
			out = append(out, topicToAddress(lg.Topics[1]), topicToAddress(lg.Topics[2]), topicToAddress(lg.Topics[3]))
		}
	}
	return out
}

// topicToAddress takes the last 20 bytes of a 32-byte indexed topic,
// the convention Solidity uses to left-pad an address into a topic.
func topicToAddress(h common.Hash) common.Address {
	return common.BytesToAddress(h[12:])
}
