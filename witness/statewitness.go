package witness

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// BuildStateWitness issues one eth_getProof call per touched address
// (and, for addresses with touched storage, per-slot storage proofs in
// the same call), all at the parent block so every proof is taken
// against a single, consistent state root. Account proofs accumulate
// into one shared state trie witness; each account's storage proofs
// accumulate into their own witness keyed by keccak256(address), the
// key space storage tries live in.
func BuildStateWitness(ctx context.Context, client RPCClient, parentRoot common.Hash, parentNumber *big.Int, addresses map[common.Address][]common.Hash, limiter *rate.Limiter) (*TriePreImages, error) {
	state := NewTrieWitness(parentRoot)
	storage := make(map[common.Hash]*TrieWitness)
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	for addr, keys := range addresses {
		addr, keys := addr, keys
		g.Go(func() error {
			if limiter != nil {
				if err := limiter.Wait(ctx); err != nil {
					return err
				}
			}
			proof, err := client.GetProof(ctx, addr, keys, parentNumber)
			if err != nil {
				return fmt.Errorf("%w: eth_getProof for %s: %v", ErrTransport, addr, err)
			}

			mu.Lock()
			state.InsertProof(proof.AccountProof)
			mu.Unlock()

			if len(keys) == 0 {
				return nil
			}
			addrHash := crypto.Keccak256Hash(addr[:])
			sw := NewTrieWitness(proof.StorageHash)
			for _, sp := range proof.StorageProof {
				sw.InsertProof(sp.Proof)
			}
			mu.Lock()
			storage[addrHash] = sw
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &TriePreImages{State: state, Storage: storage}, nil
}

// addressUniverse flattens an AccessSet and a list of addresses that need
// an account proof but no storage slots (e.g. the block beneficiary) into
// the single address->keys map BuildStateWitness expects.
func addressUniverse(accessSet AccessSet, extra ...common.Address) map[common.Address][]common.Hash {
	addresses := make(map[common.Address][]common.Hash, len(accessSet)+len(extra))
	for addr, slots := range accessSet {
		keys := make([]common.Hash, 0, len(slots))
		for slot := range slots {
			keys = append(keys, slot)
		}
		addresses[addr] = keys
	}
	for _, addr := range extra {
		if _, ok := addresses[addr]; !ok {
			addresses[addr] = nil
		}
	}
	return addresses
}
