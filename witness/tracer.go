package witness

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rlp"
	"golang.org/x/sync/errgroup"
)

// txTraces bundles the three independently-fetched pieces of data a
// single transaction's processing needs beyond the transaction itself.
type txTraces struct {
	Receipt *types.Receipt
	Pre     PrestateTrace
	Diff    *PrestateDiffTrace
}

// fetchTxTraces issues the receipt fetch and both prestate tracer calls
// for one transaction concurrently, returning as soon as all three
// succeed or failing fast on the first error.
func fetchTxTraces(ctx context.Context, client RPCClient, tx *types.Transaction) (*txTraces, error) {
	g, ctx := errgroup.WithContext(ctx)
	var traces txTraces
	hash := tx.Hash()

	g.Go(func() error {
		receipt, err := client.TransactionReceipt(ctx, hash)
		if err != nil {
			return fmt.Errorf("%w: receipt for %s: %v", ErrTransport, hash, err)
		}
		traces.Receipt = receipt
		return nil
	})
	g.Go(func() error {
		pre, err := client.PrestateTrace(ctx, hash)
		if err != nil {
			return fmt.Errorf("%w: prestate trace for %s: %v", ErrTransport, hash, err)
		}
		traces.Pre = pre
		return nil
	})
	g.Go(func() error {
		diff, err := client.PrestateDiffTrace(ctx, hash)
		if err != nil {
			return fmt.Errorf("%w: prestate diff trace for %s: %v", ErrTransport, hash, err)
		}
		traces.Diff = diff
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &traces, nil
}

// ProcessTransaction fetches one transaction's receipt and prestate
// traces, reconciles them against the block-wide reconciler, and
// assembles the encoded metadata a prover needs to verify its inclusion.
func ProcessTransaction(ctx context.Context, client RPCClient, reconciler *Reconciler, tx *types.Transaction) (TxnInfo, error) {
	traces, err := fetchTxTraces(ctx, client, tx)
	if err != nil {
		return TxnInfo{}, err
	}
	if traces.Receipt == nil {
		return TxnInfo{}, fmt.Errorf("%w: receipt for %s", ErrMissingField, tx.Hash())
	}

	txnTrace, err := reconciler.Reconcile(tx, traces.Pre, traces.Diff)
	if err != nil {
		return TxnInfo{}, err
	}

	txBytes, err := rawTransaction(tx)
	if err != nil {
		return TxnInfo{}, fmt.Errorf("encoding transaction %s: %w", tx.Hash(), err)
	}
	receiptBytes, err := encodeReceipt(tx, traces.Receipt)
	if err != nil {
		return TxnInfo{}, err
	}

	return TxnInfo{
		Traces: txnTrace,
		Meta: TxnMeta{
			ByteCode:               txBytes,
			NewTxnTrieNodeByte:     txBytes,
			NewReceiptTrieNodeByte: receiptBytes,
			GasUsed:                traces.Receipt.GasUsed,
		},
	}, nil
}

// encodeReceipt returns the byte string the receipt trie stores at this
// transaction's index: a typed receipt is the type byte followed by the
// RLP-encoded receipt payload, wrapped once more as an RLP byte string;
// a legacy receipt is its RLP encoding unchanged. types.Receipt's
// MarshalBinary produces the type byte followed by the RLP payload (or
// the bare RLP for a legacy receipt); the outer RLP byte-string wrap of
// a typed receipt is applied here.
func encodeReceipt(tx *types.Transaction, receipt *types.Receipt) ([]byte, error) {
	receipt.Type = tx.Type()
	enc, err := receipt.MarshalBinary()
	if err != nil {
		return nil, err
	}
	if receipt.Type == types.LegacyTxType {
		return enc, nil
	}
	return rlp.EncodeToBytes(enc)
}
