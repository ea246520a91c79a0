package rpcclient

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/ethclient/gethclient"
	gethrpc "github.com/ethereum/go-ethereum/rpc"

	"github.com/fractal-zkp/zero-bin/witness"
)

// prestateTracerConfig is the params object passed alongside
// debug_traceTransaction's tracer name; diffMode selects pre/post state
// diffing instead of the default read-only prestate.
type prestateTracerConfig struct {
	Tracer       string                `json:"tracer"`
	TracerConfig prestateDiffModeParam `json:"tracerConfig,omitempty"`
}

type prestateDiffModeParam struct {
	DiffMode bool `json:"diffMode,omitempty"`
}

func readModeParams() prestateTracerConfig {
	return prestateTracerConfig{Tracer: "prestateTracer"}
}

func diffModeParams() prestateTracerConfig {
	return prestateTracerConfig{
		Tracer:       "prestateTracer",
		TracerConfig: prestateDiffModeParam{DiffMode: true},
	}
}

func hexDecode(s string) ([]byte, error) {
	return hexutil.Decode(s)
}

// NativeClient talks to a standard Ethereum JSON-RPC endpoint using
// go-ethereum's typed clients for the methods that have one, and a raw
// RPC call for the prestate tracer, which does not.
type NativeClient struct {
	rpc    *gethrpc.Client
	eth    *ethclient.Client
	geth   *gethclient.Client
	policy retryPolicy
}

// Dial connects to an Ethereum JSON-RPC endpoint. backoff is the initial
// retry delay; it doubles on each of up to maxRetries attempts.
func Dial(ctx context.Context, url string, backoff time.Duration, maxRetries int) (*NativeClient, error) {
	rc, err := gethrpc.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %v", witness.ErrTransport, url, err)
	}
	return &NativeClient{
		rpc:    rc,
		eth:    ethclient.NewClient(rc),
		geth:   gethclient.New(rc),
		policy: retryPolicy{backoff: backoff, maxRetries: maxRetries},
	}, nil
}

// Close releases the underlying connection.
func (c *NativeClient) Close() { c.rpc.Close() }

func (c *NativeClient) ChainID(ctx context.Context) (*big.Int, error) {
	var id *big.Int
	err := withRetry(ctx, c.policy, func() error {
		var e error
		id, e = c.eth.ChainID(ctx)
		return e
	})
	return id, err
}

func (c *NativeClient) HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error) {
	var header *types.Header
	err := withRetry(ctx, c.policy, func() error {
		var e error
		header, e = c.eth.HeaderByNumber(ctx, number)
		return e
	})
	return header, err
}

func (c *NativeClient) BlockByNumber(ctx context.Context, number *big.Int) (*types.Block, error) {
	var block *types.Block
	err := withRetry(ctx, c.policy, func() error {
		var e error
		block, e = c.eth.BlockByNumber(ctx, number)
		return e
	})
	return block, err
}

func (c *NativeClient) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	var receipt *types.Receipt
	err := withRetry(ctx, c.policy, func() error {
		var e error
		receipt, e = c.eth.TransactionReceipt(ctx, txHash)
		return e
	})
	return receipt, err
}

func (c *NativeClient) GetProof(ctx context.Context, account common.Address, storageKeys []common.Hash, blockNumber *big.Int) (*witness.ProofResult, error) {
	keys := make([]string, len(storageKeys))
	for i, k := range storageKeys {
		keys[i] = k.Hex()
	}
	var result *gethclient.AccountResult
	err := withRetry(ctx, c.policy, func() error {
		var e error
		result, e = c.geth.GetProof(ctx, account, keys, blockNumber)
		return e
	})
	if err != nil {
		return nil, err
	}
	return convertProof(result)
}

func (c *NativeClient) PrestateTrace(ctx context.Context, txHash common.Hash) (witness.PrestateTrace, error) {
	var trace witness.PrestateTrace
	err := withRetry(ctx, c.policy, func() error {
		return c.rpc.CallContext(ctx, &trace, "debug_traceTransaction", txHash, readModeParams())
	})
	return trace, err
}

func (c *NativeClient) PrestateDiffTrace(ctx context.Context, txHash common.Hash) (*witness.PrestateDiffTrace, error) {
	var trace witness.PrestateDiffTrace
	err := withRetry(ctx, c.policy, func() error {
		return c.rpc.CallContext(ctx, &trace, "debug_traceTransaction", txHash, diffModeParams())
	})
	return &trace, err
}

// convertProof converts go-ethereum's hex-string EIP-1186 result into
// the byte-oriented shape trie.PartialTrieBuilder consumes.
func convertProof(r *gethclient.AccountResult) (*witness.ProofResult, error) {
	accountProof, err := decodeHexProof(r.AccountProof)
	if err != nil {
		return nil, fmt.Errorf("%w: account proof for %s: %v", witness.ErrMalformedProof, r.Address, err)
	}
	storage := make([]witness.StorageProofResult, len(r.StorageProof))
	for i, sp := range r.StorageProof {
		proof, err := decodeHexProof(sp.Proof)
		if err != nil {
			return nil, fmt.Errorf("%w: storage proof for %s: %v", witness.ErrMalformedProof, r.Address, err)
		}
		storage[i] = witness.StorageProofResult{
			Key:   common.HexToHash(sp.Key),
			Value: sp.Value,
			Proof: proof,
		}
	}
	return &witness.ProofResult{
		Address:      r.Address,
		AccountProof: accountProof,
		Balance:      r.Balance,
		CodeHash:     r.CodeHash,
		Nonce:        r.Nonce,
		StorageHash:  r.StorageHash,
		StorageProof: storage,
	}, nil
}

func decodeHexProof(hexNodes []string) ([][]byte, error) {
	out := make([][]byte, len(hexNodes))
	for i, h := range hexNodes {
		b, err := hexDecode(h)
		if err != nil {
			return nil, err
		}
		out[i] = b
	}
	return out, nil
}
