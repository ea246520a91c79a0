package witness

import (
	"context"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// fakeClient is a hand-rolled, in-memory RPCClient/BlockSource used to
// drive the orchestrator and its components without a live node. Every
// map is keyed the same way the real RPC methods are, so a test only
// has to populate what the scenario under test actually reads.
type fakeClient struct {
	mu sync.Mutex

	chainID *big.Int
	headers map[uint64]*types.Header
	block   *types.Block

	receipts    map[common.Hash]*types.Receipt
	nilReceipts map[common.Hash]bool
	pre         map[common.Hash]PrestateTrace
	diff        map[common.Hash]*PrestateDiffTrace

	proofs map[common.Address]*ProofResult

	zeroTracerInfos  []TxnInfo
	zeroTracerImages *TriePreImages

	// getProofCalls records every address an eth_getProof call was
	// issued for, so tests can assert on fan-out shape.
	getProofCalls []common.Address
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		headers:     make(map[uint64]*types.Header),
		receipts:    make(map[common.Hash]*types.Receipt),
		nilReceipts: make(map[common.Hash]bool),
		pre:         make(map[common.Hash]PrestateTrace),
		diff:        make(map[common.Hash]*PrestateDiffTrace),
		proofs:      make(map[common.Address]*ProofResult),
	}
}

func (f *fakeClient) ChainID(ctx context.Context) (*big.Int, error) {
	return f.chainID, nil
}

func (f *fakeClient) HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error) {
	h, ok := f.headers[number.Uint64()]
	if !ok {
		return nil, errNotFound(number)
	}
	return h, nil
}

func (f *fakeClient) BlockByNumber(ctx context.Context, number *big.Int) (*types.Block, error) {
	return f.block, nil
}

func (f *fakeClient) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	if f.nilReceipts[txHash] {
		return nil, nil
	}
	r, ok := f.receipts[txHash]
	if !ok {
		return nil, errNotFound(txHash)
	}
	return r, nil
}

func (f *fakeClient) GetProof(ctx context.Context, account common.Address, storageKeys []common.Hash, blockNumber *big.Int) (*ProofResult, error) {
	f.mu.Lock()
	f.getProofCalls = append(f.getProofCalls, account)
	f.mu.Unlock()
	p, ok := f.proofs[account]
	if !ok {
		return &ProofResult{Address: account}, nil
	}
	return p, nil
}

func (f *fakeClient) PrestateTrace(ctx context.Context, txHash common.Hash) (PrestateTrace, error) {
	return f.pre[txHash], nil
}

func (f *fakeClient) PrestateDiffTrace(ctx context.Context, txHash common.Hash) (*PrestateDiffTrace, error) {
	d, ok := f.diff[txHash]
	if !ok {
		return &PrestateDiffTrace{}, nil
	}
	return d, nil
}

func (f *fakeClient) TraceBlockZeroTracer(ctx context.Context, number *big.Int) ([]TxnInfo, *TriePreImages, error) {
	if f.zeroTracerImages == nil {
		return nil, nil, ErrEmptyTrace
	}
	return f.zeroTracerInfos, f.zeroTracerImages, nil
}

type notFoundError struct{ key any }

func (e notFoundError) Error() string { return "fake client: not found" }

func errNotFound(key any) error { return notFoundError{key: key} }
