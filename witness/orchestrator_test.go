package witness

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

func newOrchestratorFixture(t *testing.T) (*fakeClient, *types.Block) {
	t.Helper()
	tx := newLegacyTx(0)
	hash := tx.Hash()
	header := &types.Header{
		Number:     big.NewInt(100),
		Coinbase:   common.Address{0x01},
		Difficulty: big.NewInt(0),
		BaseFee:    big.NewInt(1),
	}
	block := types.NewBlockWithHeader(header).WithBody(types.Body{Transactions: []*types.Transaction{tx}})

	client := newFakeClient()
	client.block = block
	client.chainID = big.NewInt(1)
	for i := 0; i < numAncestorHashes; i++ {
		n := int64(100) - int64(i)
		if n <= 0 {
			continue
		}
		client.headers[uint64(n)] = &types.Header{ParentHash: common.HexToHash("0x01")}
	}
	client.headers[99].Root = common.HexToHash("0xa1")
	client.headers[50].Root = common.HexToHash("0xc1")
	client.receipts[hash] = &types.Receipt{Status: types.ReceiptStatusSuccessful, GasUsed: 21000}
	client.pre[hash] = PrestateTrace{}
	client.diff[hash] = &PrestateDiffTrace{
		Pre:  PrestateTrace{},
		Post: PrestateTrace{common.Address{0x02}: {Nonce: u64ptr(1), Balance: "0x1"}},
	}
	return client, block
}

func TestBuildProverInputUsesParentStateRootForProofs(t *testing.T) {
	client, _ := newOrchestratorFixture(t)

	input, err := BuildProverInput(context.Background(), client, big.NewInt(100), big.NewInt(50), Options{})
	if err != nil {
		t.Fatalf("BuildProverInput: %v", err)
	}
	if input.BlockTrace.TriePreImages.State.Root != common.HexToHash("0xa1") {
		t.Errorf("state witness root = %s, want parent header root 0xa1 (not the target block's own root)",
			input.BlockTrace.TriePreImages.State.Root)
	}
	if len(input.BlockTrace.TxnInfo) != 1 {
		t.Fatalf("len(TxnInfo) = %d, want 1", len(input.BlockTrace.TxnInfo))
	}
	if input.OtherBlockData.CheckpointStateTrieRoot != common.HexToHash("0xc1") {
		t.Errorf("CheckpointStateTrieRoot = %s, want 0xc1", input.OtherBlockData.CheckpointStateTrieRoot)
	}

	wantProofs := map[common.Address]bool{
		{0x01}: true, // block beneficiary
		{0x02}: true, // touched by the transaction's diff trace
	}
	for _, addr := range client.getProofCalls {
		delete(wantProofs, addr)
	}
	if len(wantProofs) != 0 {
		t.Errorf("addresses missing an eth_getProof call: %v", wantProofs)
	}
}

func TestBuildProverInputOmitsEmptyCodeDB(t *testing.T) {
	client, _ := newOrchestratorFixture(t)
	input, err := BuildProverInput(context.Background(), client, big.NewInt(100), big.NewInt(50), Options{})
	if err != nil {
		t.Fatalf("BuildProverInput: %v", err)
	}
	if input.BlockTrace.CodeDB != nil {
		t.Errorf("CodeDB = %v, want nil when no transaction touched any code", input.BlockTrace.CodeDB)
	}
}

func TestBuildProverInputJerigonSkipsStateWitnessFetch(t *testing.T) {
	client, _ := newOrchestratorFixture(t)
	client.zeroTracerInfos = []TxnInfo{{Meta: TxnMeta{GasUsed: 21000}}}
	client.zeroTracerImages = &TriePreImages{State: NewTrieWitness(common.HexToHash("0xe1"))}

	input, err := BuildProverInputJerigon(context.Background(), client, big.NewInt(100), big.NewInt(50))
	if err != nil {
		t.Fatalf("BuildProverInputJerigon: %v", err)
	}
	if input.BlockTrace.TriePreImages.State.Root != common.HexToHash("0xe1") {
		t.Errorf("state root = %s, want 0xe1", input.BlockTrace.TriePreImages.State.Root)
	}
	if len(client.getProofCalls) != 0 {
		t.Errorf("getProofCalls = %v, want none: jerigon mode fetches pre-images via zeroTracer", client.getProofCalls)
	}
}
