package witness

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/holiman/uint256"
	"golang.org/x/sync/errgroup"
)

// numAncestorHashes is the BLOCKHASH opcode's lookback window.
const numAncestorHashes = 256

// FetchOtherBlockData assembles everything about a block a prover needs
// beyond its transactions and trie witnesses: header fields, the last
// 256 ancestor hashes, withdrawal payments, and the checkpoint block's
// state root. Every independent RPC call runs concurrently.
func FetchOtherBlockData(ctx context.Context, client RPCClient, block *types.Block, checkpointNumber *big.Int) (OtherBlockData, error) {
	var (
		chainID          *big.Int
		checkpointHeader *types.Header
		prevHashes       [numAncestorHashes]common.Hash
	)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		id, err := client.ChainID(ctx)
		if err != nil {
			return fmt.Errorf("%w: eth_chainId: %v", ErrTransport, err)
		}
		chainID = id
		return nil
	})
	g.Go(func() error {
		header, err := client.HeaderByNumber(ctx, checkpointNumber)
		if err != nil {
			return fmt.Errorf("%w: checkpoint header %s: %v", ErrTransport, checkpointNumber, err)
		}
		checkpointHeader = header
		return nil
	})
	g.Go(func() error {
		hashes, err := fetchAncestorHashes(ctx, client, block.Number())
		if err != nil {
			return err
		}
		prevHashes = hashes
		return nil
	})
	if err := g.Wait(); err != nil {
		return OtherBlockData{}, err
	}

	header := block.Header()
	meta := BlockMetadata{
		Beneficiary: header.Coinbase,
		Timestamp:   header.Time,
		Number:      new(big.Int).Set(header.Number),
		Difficulty:  new(big.Int).Set(header.Difficulty),
		Random:      header.MixDigest,
		GasLimit:    header.GasLimit,
		GasUsed:     header.GasUsed,
		ChainID:     chainID,
		BaseFee:     header.BaseFee,
		LogsBloom:   splitBloom(header.Bloom),
	}
	// BlobBaseFee is left unset pre-Cancun and is out of scope even
	// post-Cancun: this system witnesses MPT state, not KZG blob
	// commitments (spec non-goal: non-MPT commitments).

	withdrawals := make([]WithdrawalPayment, 0, len(block.Withdrawals()))
	for _, w := range block.Withdrawals() {
		withdrawals = append(withdrawals, WithdrawalPayment{
			Address: w.Address,
			Amount:  new(uint256.Int).SetUint64(w.Amount),
		})
	}

	return OtherBlockData{
		BlockMetadata: meta,
		BlockHashes: BlockHashes{
			PrevHashes: prevHashes,
			CurHash:    block.Hash(),
		},
		Withdrawals:             withdrawals,
		CheckpointStateTrieRoot: checkpointHeader.Root,
	}, nil
}

// fetchAncestorHashes fetches the parent_hash of every block from
// number down to number-255, concurrently, and lays them out so index i
// holds the hash of block (number - 1 - i) -- the layout the BLOCKHASH
// opcode expects, slot 0 being the most recent ancestor.
func fetchAncestorHashes(ctx context.Context, client RPCClient, number *big.Int) ([numAncestorHashes]common.Hash, error) {
	var out [numAncestorHashes]common.Hash
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < numAncestorHashes; i++ {
		i := i
		ancestor := new(big.Int).Sub(number, big.NewInt(int64(i)))
		if ancestor.Sign() <= 0 {
			continue
		}
		g.Go(func() error {
			header, err := client.HeaderByNumber(ctx, ancestor)
			if err != nil {
				return fmt.Errorf("%w: ancestor header %s: %v", ErrTransport, ancestor, err)
			}
			out[i] = header.ParentHash
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return out, err
	}
	return out, nil
}

// splitBloom reassembles a 256-byte logs bloom as eight 256-bit words,
// big-endian word order matching the bloom's own byte order.
func splitBloom(bloom types.Bloom) [8]*uint256.Int {
	var words [8]*uint256.Int
	for i := 0; i < 8; i++ {
		words[i] = new(uint256.Int).SetBytes(bloom[i*32 : (i+1)*32])
	}
	return words
}
