package witness

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// ProofResult is the decoded EIP-1186 eth_getProof response for one
// account, optionally including proofs for requested storage slots.
type ProofResult struct {
	Address      common.Address
	AccountProof [][]byte
	Balance      *big.Int
	CodeHash     common.Hash
	Nonce        uint64
	StorageHash  common.Hash
	StorageProof []StorageProofResult
}

// StorageProofResult is one storage slot's proof within an eth_getProof
// response.
type StorageProofResult struct {
	Key   common.Hash
	Value *big.Int
	Proof [][]byte
}

// RPCClient is everything the witness builder needs from an Ethereum
// JSON-RPC endpoint. It is satisfied by package rpcclient's go-ethereum-
// backed implementation and by hand-rolled fakes in tests.
type RPCClient interface {
	ChainID(ctx context.Context) (*big.Int, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
	BlockByNumber(ctx context.Context, number *big.Int) (*types.Block, error)
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	GetProof(ctx context.Context, account common.Address, storageKeys []common.Hash, blockNumber *big.Int) (*ProofResult, error)
	PrestateTrace(ctx context.Context, txHash common.Hash) (PrestateTrace, error)
	PrestateDiffTrace(ctx context.Context, txHash common.Hash) (*PrestateDiffTrace, error)
}

// BlockSource additionally exposes the jerigon zeroTracer path, used
// only by the jerigon tracer mode instead of the per-transaction calls
// above.
type BlockSource interface {
	RPCClient
	TraceBlockZeroTracer(ctx context.Context, number *big.Int) ([]TxnInfo, *TriePreImages, error)
}
