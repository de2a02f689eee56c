package ingest

import "github.com/lgaroche/monique-indexer/internal/common"

// Event signature hashes the traversal recognizes, hardcoded per the
// design note that implementers must pin the exact Keccak-256 hash of
// each canonical event signature string. Values below are the
// well-known hashes for:
//
//	Transfer(address,address,uint256)
//	TransferSingle(address,address,address,uint256,uint256)
//	TransferBatch(address,address,address,uint256[],uint256[])
var (
	TransferSignature       = mustHash("ddf252ad1be2c89b69c2b068fc378daa952ba7f163c4a11628f55a4df523b3ef")
	TransferSingleSignature = mustHash("c3d58168c5ae7397731d063d5bbf3d657854427343f4c083240f7aacaa2d0f62")
	TransferBatchSignature  = mustHash("4a39dc06d4c0dbc64b70af90fd698a233a518aa5d07e595d983b8c0526c8f7fb")
)

func mustHash(hex string) common.Hash {
	h, err := common.HexToHash(hex)
	if err != nil {
		panic(err)
	}
	return h
}
