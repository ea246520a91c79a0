package rpcclient

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/fractal-zkp/zero-bin/witness"
)

// JerigonClient wraps NativeClient's typed RPC helpers but traces whole
// blocks in one debug_traceBlockByNumber call against a jerigon node's
// zeroTracer, instead of per-transaction prestate tracer calls.
type JerigonClient struct {
	*NativeClient
}

// NewJerigonClient wraps an already-dialed NativeClient.
func NewJerigonClient(c *NativeClient) *JerigonClient {
	return &JerigonClient{NativeClient: c}
}

// zeroTrace is one element of debug_traceBlockByNumber's zeroTracer
// result array: either a per-transaction trace or, exactly once per
// block, the accumulated trie pre-images.
type zeroTrace struct {
	Result       *witness.TxnInfo       `json:"result,omitempty"`
	BlockWitness *witness.TriePreImages `json:"blockWitness,omitempty"`
}

// TraceBlockZeroTracer issues a single debug_traceBlockByNumber call
// with the zeroTracer and partitions its result array into the
// per-transaction traces and the one BlockWitness entry every response
// must contain.
func (c *JerigonClient) TraceBlockZeroTracer(ctx context.Context, number *big.Int) ([]witness.TxnInfo, *witness.TriePreImages, error) {
	var raw []json.RawMessage
	err := withRetry(ctx, c.policy, func() error {
		return c.rpc.CallContext(ctx, &raw, "debug_traceBlockByNumber", hexutil.EncodeBig(number), map[string]string{"tracer": "zeroTracer"})
	})
	if err != nil {
		return nil, nil, fmt.Errorf("%w: debug_traceBlockByNumber %s: %v", witness.ErrTransport, number, err)
	}

	var (
		infos     []witness.TxnInfo
		preImages *witness.TriePreImages
	)
	for i, entry := range raw {
		var zt zeroTrace
		if err := json.Unmarshal(entry, &zt); err != nil {
			return nil, nil, fmt.Errorf("%w: zeroTracer entry %d: %v", witness.ErrTraceShape, i, err)
		}
		switch {
		case zt.BlockWitness != nil:
			preImages = zt.BlockWitness
		case zt.Result != nil:
			infos = append(infos, *zt.Result)
		}
	}
	if preImages == nil {
		return nil, nil, fmt.Errorf("%w", witness.ErrEmptyTrace)
	}
	return infos, preImages, nil
}
