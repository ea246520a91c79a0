// Package witness builds the per-block prover input a zero-knowledge EVM
// prover needs: the set of trie nodes an execution touches, the contract
// code it runs, and the metadata surrounding the block, all derived from a
// standard Ethereum JSON-RPC endpoint without re-executing any transaction.
package witness

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"

	ptrie "github.com/fractal-zkp/zero-bin/trie"
)

// AccessSet is the accumulated read/write footprint of a block: for every
// touched address, the storage slots that were read or written anywhere
// in the block. It is built incrementally by the access reconciler and
// consumed by the state witness builder to decide which eth_getProof
// calls to issue.
type AccessSet map[common.Address]map[common.Hash]struct{}

// Add records that slot was touched for address, creating the address's
// slot set if this is its first appearance.
func (a AccessSet) Add(address common.Address, slot common.Hash) {
	slots, ok := a[address]
	if !ok {
		slots = make(map[common.Hash]struct{})
		a[address] = slots
	}
	slots[slot] = struct{}{}
}

// AddAddress ensures address has an entry, even with no storage slots
// (a plain-ETH-transfer recipient still needs an account proof).
func (a AccessSet) AddAddress(address common.Address) {
	if _, ok := a[address]; !ok {
		a[address] = make(map[common.Hash]struct{})
	}
}

// CodeDB maps a contract's keccak256 code hash to its runtime bytecode.
// Entries come from whichever transaction first exercises a given piece
// of code; later transactions referencing the same code hash contribute
// nothing new.
type CodeDB map[common.Hash][]byte

// CodeUsage records how a transaction touched a contract's code: either
// it read existing code by hash, or it wrote new code (the diff trace's
// post-state carries code: contract creation or a code change).
type CodeUsage struct {
	ReadHash  *common.Hash
	WriteCode []byte
}

// TxnAccountTrace is one address's contribution to a single transaction's
// prestate/poststate diff.
type TxnAccountTrace struct {
	Balance        *uint256.Int
	Nonce          *uint64
	StorageRead    []common.Hash
	StorageWritten map[common.Hash]*uint256.Int
	CodeUsage      *CodeUsage
	SelfDestructed bool
}

// TxnTrace maps every address a transaction touched to its account trace.
type TxnTrace map[common.Address]*TxnAccountTrace

// TxnMeta carries the encoded artifacts a prover needs to verify a single
// transaction's inclusion without re-deriving them from the trace.
type TxnMeta struct {
	ByteCode               []byte
	NewTxnTrieNodeByte     []byte
	NewReceiptTrieNodeByte []byte
	GasUsed                uint64
}

// TxnInfo pairs one transaction's trace with its encoded metadata, in
// the canonical order the transactions appear in the block.
type TxnInfo struct {
	Traces TxnTrace `json:"traces"`
	Meta   TxnMeta  `json:"meta"`
}

// TrieWitness is a sparse, serializable view of one Merkle-Patricia
// trie: the subset of nodes proofs actually touched, keyed by their own
// keccak256 hash, plus the root the prover should reconstruct against.
type TrieWitness struct {
	Root  common.Hash                   `json:"root"`
	Nodes map[common.Hash]hexutil.Bytes `json:"nodes"`
}

// NewTrieWitness creates an empty witness for the given root.
func NewTrieWitness(root common.Hash) *TrieWitness {
	return &TrieWitness{Root: root, Nodes: make(map[common.Hash]hexutil.Bytes)}
}

// InsertProof folds every node of an eth_getProof-style proof list into
// the witness, keyed by keccak256. Re-inserting an already-known node is
// a no-op, matching trie.PartialTrieBuilder's own insert semantics.
func (w *TrieWitness) InsertProof(proof [][]byte) {
	for _, nodeBytes := range proof {
		if len(nodeBytes) == 0 {
			continue
		}
		h := crypto.Keccak256Hash(nodeBytes)
		if _, ok := w.Nodes[h]; ok {
			continue
		}
		w.Nodes[h] = nodeBytes
	}
}

// Resolve materializes this witness's trie using the shared partial trie
// builder, exercising the same hash-stub resolution a prover performs on
// the other end. The orchestrator does not call it; a fetch emits the
// witness nodes without materializing them.
func (w *TrieWitness) Resolve() (ptrie.PartialNode, error) {
	b := ptrie.NewPartialTrieBuilder()
	for h, nodeBytes := range w.Nodes {
		b.InsertProof([][]byte{nodeBytes})
		_ = h
	}
	b.SetRoot(w.Root)
	return b.Build()
}

// TriePreImages bundles the state trie witness and every touched
// account's storage trie witness, keyed by the account's address hash
// (keccak256(address), the key space storage tries actually live in).
type TriePreImages struct {
	State   *TrieWitness                 `json:"state"`
	Storage map[common.Hash]*TrieWitness `json:"storage,omitempty"`
}

// BlockHashes gives the prover the last 256 ancestor block hashes, as
// the BLOCKHASH opcode requires, plus the current block's own hash.
type BlockHashes struct {
	PrevHashes [256]common.Hash `json:"prevHashes"`
	CurHash    common.Hash      `json:"curHash"`
}

// WithdrawalPayment is one validator withdrawal's recipient and amount,
// in the form EIP-4895 balance increases are applied.
type WithdrawalPayment struct {
	Address common.Address `json:"address"`
	Amount  *uint256.Int   `json:"amount"`
}

// BlockMetadata mirrors the header fields a block's execution needs
// beyond its transactions: what COINBASE, TIMESTAMP, NUMBER,
// DIFFICULTY/PREVRANDAO, GASLIMIT, CHAINID and BASEFEE read (BLOCKHASH's
// ancestor hashes live in BlockHashes). BlobBaseFee is never populated.
type BlockMetadata struct {
	Beneficiary common.Address  `json:"beneficiary"`
	Timestamp   uint64          `json:"timestamp"`
	Number      *big.Int        `json:"number"`
	Difficulty  *big.Int        `json:"difficulty"`
	Random      common.Hash     `json:"random"`
	GasLimit    uint64          `json:"gasLimit"`
	GasUsed     uint64          `json:"gasUsed"`
	ChainID     *big.Int        `json:"chainId"`
	BaseFee     *big.Int        `json:"baseFee"`
	BlobBaseFee *big.Int        `json:"blobBaseFee,omitempty"`
	LogsBloom   [8]*uint256.Int `json:"logsBloom"`
}

// OtherBlockData is everything the state witness and tracer do not
// already cover but a prover still needs to validate a block.
type OtherBlockData struct {
	BlockMetadata           BlockMetadata       `json:"blockMetadata"`
	BlockHashes             BlockHashes         `json:"blockHashes"`
	Withdrawals             []WithdrawalPayment `json:"withdrawals,omitempty"`
	CheckpointStateTrieRoot common.Hash         `json:"checkpointStateTrieRoot"`
}

// BlockTrace is the complete prover input for one block.
type BlockTrace struct {
	TxnInfo       []TxnInfo     `json:"txnInfo"`
	CodeDB        CodeDB        `json:"codeDb,omitempty"`
	TriePreImages TriePreImages `json:"triePreImages"`
}

// ProverInput is the top-level document a fetch emits: one block's trace
// plus the metadata the prover needs alongside it.
type ProverInput struct {
	BlockTrace     BlockTrace     `json:"blockTrace"`
	OtherBlockData OtherBlockData `json:"otherBlockData"`
}

// rawTransaction re-encodes a transaction the way it was included in its
// block (EIP-2718 typed envelope or legacy RLP), which is also the byte
// string the transaction trie's leaves store.
func rawTransaction(tx *types.Transaction) ([]byte, error) {
	return tx.MarshalBinary()
}
