package witness

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

func newTestBlock(t *testing.T, number uint64) *types.Block {
	t.Helper()
	header := &types.Header{
		Number:     big.NewInt(int64(number)),
		Coinbase:   common.Address{0x01},
		Time:       1000,
		Difficulty: big.NewInt(0),
		GasLimit:   30_000_000,
		GasUsed:    21000,
		BaseFee:    big.NewInt(7),
	}
	withdrawals := []*types.Withdrawal{{Index: 0, Address: common.Address{0x02}, Amount: 5}}
	return types.NewBlockWithHeader(header).WithBody(types.Body{
		Transactions: []*types.Transaction{newLegacyTx(0)},
		Withdrawals:  withdrawals,
	})
}

func TestFetchOtherBlockDataAssemblesMetadataAndAncestors(t *testing.T) {
	block := newTestBlock(t, 100)
	client := newFakeClient()
	client.chainID = big.NewInt(1)
	for i := 0; i < numAncestorHashes; i++ {
		n := int64(100) - int64(i)
		if n <= 0 {
			continue
		}
		client.headers[uint64(n)] = &types.Header{ParentHash: common.HexToHash("0x01")}
	}
	client.headers[50].Root = common.HexToHash("0xc1")

	data, err := FetchOtherBlockData(context.Background(), client, block, big.NewInt(50))
	if err != nil {
		t.Fatalf("FetchOtherBlockData: %v", err)
	}
	if data.BlockMetadata.ChainID.Cmp(big.NewInt(1)) != 0 {
		t.Errorf("ChainID = %v, want 1", data.BlockMetadata.ChainID)
	}
	if data.BlockMetadata.Beneficiary != (common.Address{0x01}) {
		t.Errorf("Beneficiary = %s, want {0x01}", data.BlockMetadata.Beneficiary)
	}
	if data.CheckpointStateTrieRoot != common.HexToHash("0xc1") {
		t.Errorf("CheckpointStateTrieRoot = %s, want 0xc1", data.CheckpointStateTrieRoot)
	}
	if data.BlockHashes.PrevHashes[0] != common.HexToHash("0x01") || data.BlockHashes.PrevHashes[99] != common.HexToHash("0x01") {
		t.Errorf("PrevHashes[0], [99] = %s, %s, want 0x01 (parents of blocks 100 and 1)",
			data.BlockHashes.PrevHashes[0], data.BlockHashes.PrevHashes[99])
	}
	if data.BlockHashes.PrevHashes[100] != (common.Hash{}) {
		t.Errorf("PrevHashes[100] = %s, want zero hash (no block 0 header requested)", data.BlockHashes.PrevHashes[100])
	}
	if len(data.Withdrawals) != 1 || data.Withdrawals[0].Address != (common.Address{0x02}) {
		t.Fatalf("Withdrawals = %+v, want one payment to {0x02}", data.Withdrawals)
	}
	if data.Withdrawals[0].Amount.Uint64() != 5 {
		t.Errorf("Withdrawal amount = %v, want 5", data.Withdrawals[0].Amount)
	}
	if data.BlockHashes.CurHash != block.Hash() {
		t.Errorf("CurHash = %s, want %s", data.BlockHashes.CurHash, block.Hash())
	}
}

func TestFetchAncestorHashesStopsAtGenesis(t *testing.T) {
	client := newFakeClient()
	client.headers[1] = &types.Header{ParentHash: common.HexToHash("0xaa")}
	out, err := fetchAncestorHashes(context.Background(), client, big.NewInt(1))
	if err != nil {
		t.Fatalf("fetchAncestorHashes: %v", err)
	}
	if out[0] != common.HexToHash("0xaa") {
		t.Errorf("out[0] = %s, want 0xaa (block 1's parent)", out[0])
	}
	var zero common.Hash
	if out[1] != zero {
		t.Errorf("out[1] = %s, want zero hash (no block 0 header requested)", out[1])
	}
}
