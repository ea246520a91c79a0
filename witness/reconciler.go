package witness

import (
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
)

// Reconciler merges each transaction's independently-fetched traces into
// the block-wide CodeDB and AccessSet, guarding both with a mutex since
// the orchestrator reconciles transactions concurrently but must end up
// with a single, deduplicated view across the whole block.
type Reconciler struct {
	mu        sync.Mutex
	codeDB    CodeDB
	accessSet AccessSet
}

// NewReconciler creates a reconciler with empty shared state.
func NewReconciler() *Reconciler {
	return &Reconciler{codeDB: make(CodeDB), accessSet: make(AccessSet)}
}

// CodeDB returns the code database accumulated so far. Safe to call only
// after every transaction has been reconciled.
func (r *Reconciler) CodeDB() CodeDB { return r.codeDB }

// AccessSet returns the address/slot footprint accumulated so far. Safe
// to call only after every transaction has been reconciled.
func (r *Reconciler) AccessSet() AccessSet { return r.accessSet }

// Reconcile folds one transaction's prestate read-trace and diff-trace
// into a TxnTrace, extending the shared CodeDB and AccessSet along the
// way. The address universe is the union of every address either trace
// mentions plus every address named in the transaction's access list,
// matching the invariant that a transaction's trace covers everything it
// could have read or written, not just what it happened to change.
func (r *Reconciler) Reconcile(tx *types.Transaction, pre PrestateTrace, diff *PrestateDiffTrace) (TxnTrace, error) {
	addrs := make(map[common.Address]struct{})
	for addr := range pre {
		addrs[addr] = struct{}{}
	}
	if diff != nil {
		for addr := range diff.Pre {
			addrs[addr] = struct{}{}
		}
		for addr := range diff.Post {
			addrs[addr] = struct{}{}
		}
	}
	accessListSlots := make(map[common.Address][]common.Hash)
	for _, tuple := range tx.AccessList() {
		addrs[tuple.Address] = struct{}{}
		accessListSlots[tuple.Address] = append(accessListSlots[tuple.Address], tuple.StorageKeys...)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	trace := make(TxnTrace, len(addrs))
	for addr := range addrs {
		at, err := r.reconcileAddress(addr, pre[addr], diff, accessListSlots[addr])
		if err != nil {
			return nil, fmt.Errorf("reconciling %s: %w", addr, err)
		}
		trace[addr] = at
	}
	return trace, nil
}

func (r *Reconciler) reconcileAddress(addr common.Address, preAcct *PrestateAccount, diff *PrestateDiffTrace, accessListSlots []common.Hash) (*TxnAccountTrace, error) {
	at := &TxnAccountTrace{}

	var postAcct *PrestateAccount
	var inPost bool
	if diff != nil {
		postAcct, inPost = diff.Post[addr]
	}

	if inPost && postAcct.Balance != "" {
		balance, err := uint256.FromHex(postAcct.Balance)
		if err != nil {
			return nil, fmt.Errorf("%w: balance %q: %v", ErrMissingField, postAcct.Balance, err)
		}
		at.Balance = balance
	}
	if inPost && postAcct.Nonce != nil {
		nonce := *postAcct.Nonce
		at.Nonce = &nonce
	}

	// Storage read set: the read-trace's own keys, unioned with every
	// slot the transaction's access list names for this address (an
	// access-listed slot is readable whether or not the trace happened
	// to touch it).
	readSlots := make(map[common.Hash]struct{}, len(accessListSlots))
	if preAcct != nil {
		for slot := range preAcct.Storage {
			readSlots[slot] = struct{}{}
		}
	}
	for _, slot := range accessListSlots {
		readSlots[slot] = struct{}{}
	}
	if len(readSlots) > 0 {
		r.accessSet.AddAddress(addr)
		at.StorageRead = make([]common.Hash, 0, len(readSlots))
		for slot := range readSlots {
			at.StorageRead = append(at.StorageRead, slot)
			r.accessSet.Add(addr, slot)
		}
	}

	if inPost && len(postAcct.Storage) > 0 {
		at.StorageWritten = make(map[common.Hash]*uint256.Int, len(postAcct.Storage))
		for slot, value := range postAcct.Storage {
			at.StorageWritten[slot] = new(uint256.Int).SetBytes(value[:])
			r.accessSet.Add(addr, slot)
		}
	}
	if at.StorageRead == nil && at.StorageWritten == nil {
		r.accessSet.AddAddress(addr)
	}

	switch {
	case inPost && postAcct.Code != "":
		code, err := decodeCodeHex(postAcct.Code)
		if err != nil {
			return nil, err
		}
		setCode(r.codeDB, code)
		at.CodeUsage = &CodeUsage{WriteCode: code}
		if at.Nonce == nil {
			one := uint64(1)
			at.Nonce = &one
		}
	case preAcct != nil && preAcct.Code != "":
		code, err := decodeCodeHex(preAcct.Code)
		if err != nil {
			return nil, err
		}
		hash := setCode(r.codeDB, code)
		at.CodeUsage = &CodeUsage{ReadHash: &hash}
	}

	if diff != nil {
		_, inPre := diff.Pre[addr]
		if inPre && !inPost {
			at.SelfDestructed = true
		}
	}

	return at, nil
}

// setCode hashes code and inserts it into db if not already present,
// returning its hash either way.
func setCode(db CodeDB, code []byte) common.Hash {
	hash := crypto.Keccak256Hash(code)
	if _, ok := db[hash]; !ok {
		db[hash] = code
	}
	return hash
}

// decodeCodeHex decodes a prestate tracer "code" field ("0x"-prefixed
// hex runtime bytecode).
func decodeCodeHex(s string) ([]byte, error) {
	if len(s) < 2 || s[:2] != "0x" {
		return nil, fmt.Errorf("%w: %q", ErrCodeHexDecode, s)
	}
	b, err := hexutil.Decode(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrCodeHexDecode, s, err)
	}
	return b, nil
}
