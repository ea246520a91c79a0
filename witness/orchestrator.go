package witness

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/fractal-zkp/zero-bin/log"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// Options controls the orchestrator's concurrency and rate limiting.
// A nil Limiter means unbounded concurrency.
type Options struct {
	Limiter *rate.Limiter
}

// BuildProverInput drives components C through G for a single block:
// trace every transaction, reconcile their access footprints, fetch
// block metadata, and issue the eth_getProof calls the reconciled
// footprint demands — failing the whole block on the first error rather
// than emitting a partial witness.
func BuildProverInput(ctx context.Context, client RPCClient, blockNumber *big.Int, checkpointNumber *big.Int, opts Options) (*ProverInput, error) {
	logger := log.Default().Module("witness")
	logger.Info("fetching block", "number", blockNumber)

	block, err := client.BlockByNumber(ctx, blockNumber)
	if err != nil {
		return nil, fmt.Errorf("%w: eth_getBlockByNumber %s: %v", ErrTransport, blockNumber, err)
	}
	if block == nil {
		return nil, fmt.Errorf("%w: block %s", ErrMissingField, blockNumber)
	}

	reconciler := NewReconciler()
	txns := block.Transactions()
	txnInfos := make([]TxnInfo, len(txns))

	var otherData OtherBlockData
	top, topCtx := errgroup.WithContext(ctx)
	top.Go(func() error {
		g, gctx := errgroup.WithContext(topCtx)
		for i, tx := range txns {
			i, tx := i, tx
			g.Go(func() error {
				info, err := ProcessTransaction(gctx, client, reconciler, tx)
				if err != nil {
					return fmt.Errorf("transaction %d (%s): %w", i, tx.Hash(), err)
				}
				txnInfos[i] = info
				return nil
			})
		}
		return g.Wait()
	})
	top.Go(func() error {
		data, err := FetchOtherBlockData(topCtx, client, block, checkpointNumber)
		if err != nil {
			return err
		}
		otherData = data
		return nil
	})
	if err := top.Wait(); err != nil {
		return nil, err
	}
	logger.Debug("traced transactions", "count", len(txns))

	parentNumber := new(big.Int).Sub(blockNumber, big.NewInt(1))
	withdrawalAddrs := make([]common.Address, 0, len(otherData.Withdrawals))
	for _, w := range otherData.Withdrawals {
		withdrawalAddrs = append(withdrawalAddrs, w.Address)
	}
	extra := append([]common.Address{otherData.BlockMetadata.Beneficiary}, withdrawalAddrs...)
	addresses := addressUniverse(reconciler.AccessSet(), extra...)

	parentHeader, err := client.HeaderByNumber(ctx, parentNumber)
	if err != nil {
		return nil, fmt.Errorf("%w: parent header %s: %v", ErrTransport, parentNumber, err)
	}
	triePreImages, err := BuildStateWitness(ctx, client, parentHeader.Root, parentNumber, addresses, opts.Limiter)
	if err != nil {
		return nil, err
	}
	logger.Info("built state witness", "accounts", len(addresses), "stateNodes", len(triePreImages.State.Nodes))

	return &ProverInput{
		BlockTrace: BlockTrace{
			TxnInfo:       txnInfos,
			CodeDB:        nonEmptyCodeDB(reconciler.CodeDB()),
			TriePreImages: *triePreImages,
		},
		OtherBlockData: otherData,
	}, nil
}

// BuildProverInputJerigon is the jerigon tracer mode's equivalent of
// BuildProverInput: a jerigon node's zeroTracer already computes the
// trie pre-images and per-transaction traces server-side in a single
// debug_traceBlockByNumber call, so this path only has to pair that
// result with the independently-fetched block metadata.
func BuildProverInputJerigon(ctx context.Context, client BlockSource, blockNumber *big.Int, checkpointNumber *big.Int) (*ProverInput, error) {
	logger := log.Default().Module("witness")
	logger.Info("fetching block via jerigon zeroTracer", "number", blockNumber)

	block, err := client.BlockByNumber(ctx, blockNumber)
	if err != nil {
		return nil, fmt.Errorf("%w: eth_getBlockByNumber %s: %v", ErrTransport, blockNumber, err)
	}
	if block == nil {
		return nil, fmt.Errorf("%w: block %s", ErrMissingField, blockNumber)
	}

	var (
		txnInfos  []TxnInfo
		preImages *TriePreImages
		otherData OtherBlockData
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		infos, images, err := client.TraceBlockZeroTracer(gctx, blockNumber)
		if err != nil {
			return err
		}
		txnInfos, preImages = infos, images
		return nil
	})
	g.Go(func() error {
		data, err := FetchOtherBlockData(gctx, client, block, checkpointNumber)
		if err != nil {
			return err
		}
		otherData = data
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &ProverInput{
		BlockTrace: BlockTrace{
			TxnInfo:       txnInfos,
			TriePreImages: *preImages,
		},
		OtherBlockData: otherData,
	}, nil
}

// nonEmptyCodeDB returns nil for an empty map so the JSON output omits
// codeDb entirely when no transaction in the block touched any code,
// matching the jerigon path which never populates it.
func nonEmptyCodeDB(db CodeDB) CodeDB {
	if len(db) == 0 {
		return nil
	}
	return db
}
