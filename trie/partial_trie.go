package trie

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// PartialNode is implemented by every node shape a PartialTrieBuilder can
// materialize out of a set of eth_getProof proofs: a trie reconstructed
// this way is sparse by construction, since a proof only ever covers the
// path to the keys it was requested for.
type PartialNode interface {
	isPartialNode()
}

// HashRef marks a subtree whose hash no inserted proof node resolves.
// It is not an error value: a witness is allowed to contain unresolved
// stubs for branches that none of the block's transactions touched.
type HashRef common.Hash

func (HashRef) isPartialNode() {}

// BranchNode is a 16-way branch plus an optional value stored at the
// branch point itself (nibble path length a multiple of the trie's key
// granularity). A nil entry in Children means there is no child on that
// nibble, not an unresolved one.
type BranchNode struct {
	Children [16]PartialNode
	Value    []byte
}

func (*BranchNode) isPartialNode() {}

// ExtensionNode shares a common nibble prefix before a single child.
type ExtensionNode struct {
	Key   []byte // hex nibbles, no terminator
	Child PartialNode
}

func (*ExtensionNode) isPartialNode() {}

// LeafNode terminates a path and carries the stored value.
type LeafNode struct {
	Key   []byte // hex nibbles, including the terminator nibble
	Value []byte
}

func (*LeafNode) isPartialNode() {}

// decodePartialNode decodes a single proof node by RLP element count (2 for
// extension/leaf, 17 for branch), producing PartialNode values: 32-byte
// child references are left as HashRef stubs rather than resolved, since
// resolving them requires the builder's full node pool.
func decodePartialNode(data []byte) (PartialNode, error) {
	if len(data) == 0 {
		return nil, errDecodeInvalid
	}
	elems, err := decodeRLPList(data)
	if err != nil {
		return nil, fmt.Errorf("partial trie decode: %w", err)
	}
	switch len(elems) {
	case 2:
		return decodePartialShort(elems)
	case 17:
		return decodePartialFull(elems)
	default:
		return nil, fmt.Errorf("%w: expected 2 or 17 elements, got %d", errDecodeInvalid, len(elems))
	}
}

func decodePartialShort(elems [][]byte) (PartialNode, error) {
	key := compactToHex(elems[0])
	if hasTerm(key) {
		return &LeafNode{Key: key, Value: elems[1]}, nil
	}
	child, err := decodePartialRef(elems[1])
	if err != nil {
		return nil, err
	}
	return &ExtensionNode{Key: key, Child: child}, nil
}

func decodePartialFull(elems [][]byte) (PartialNode, error) {
	n := &BranchNode{}
	for i := 0; i < 16; i++ {
		if len(elems[i]) == 0 {
			continue
		}
		child, err := decodePartialRef(elems[i])
		if err != nil {
			return nil, err
		}
		n.Children[i] = child
	}
	if len(elems[16]) > 0 {
		n.Value = elems[16]
	}
	return n, nil
}

// decodePartialRef decodes a child reference embedded in a node: a
// 32-byte reference names a node stored elsewhere (left as a HashRef
// stub), anything shorter is inlined and decoded recursively in place.
func decodePartialRef(data []byte) (PartialNode, error) {
	if len(data) == 0 {
		return nil, nil
	}
	if len(data) == 32 {
		return HashRef(common.BytesToHash(data)), nil
	}
	return decodePartialNode(data)
}

// PartialTrieBuilder accumulates raw proof node bytes keyed by keccak256
// hash and materializes the subtree reachable from a declared root,
// leaving any hash the pool does not cover as an unresolved HashRef.
type PartialTrieBuilder struct {
	root  common.Hash
	nodes map[common.Hash][]byte
}

// NewPartialTrieBuilder creates an empty builder.
func NewPartialTrieBuilder() *PartialTrieBuilder {
	return &PartialTrieBuilder{nodes: make(map[common.Hash][]byte)}
}

// SetRoot declares the trie root Build will materialize from.
func (b *PartialTrieBuilder) SetRoot(root common.Hash) {
	b.root = root
}

// InsertProof adds every node in an eth_getProof-style proof list to the
// shared pool. Nodes already present (the common case: sibling account
// proofs share upper trie levels) are left untouched.
func (b *PartialTrieBuilder) InsertProof(proof [][]byte) {
	for _, nodeBytes := range proof {
		if len(nodeBytes) == 0 {
			continue
		}
		h := crypto.Keccak256Hash(nodeBytes)
		if _, ok := b.nodes[h]; ok {
			continue
		}
		b.nodes[h] = nodeBytes
	}
}

// NodeCount reports how many distinct proof nodes the builder holds.
func (b *PartialTrieBuilder) NodeCount() int {
	return len(b.nodes)
}

// Build materializes the trie reachable from the declared root.
func (b *PartialTrieBuilder) Build() (PartialNode, error) {
	return b.resolve(b.root)
}

func (b *PartialTrieBuilder) resolve(h common.Hash) (PartialNode, error) {
	data, ok := b.nodes[h]
	if !ok {
		return HashRef(h), nil
	}
	n, err := decodePartialNode(data)
	if err != nil {
		return nil, fmt.Errorf("resolving node %s: %w", h, err)
	}
	return b.resolveChildren(n)
}

// resolveChildren walks a decoded node's children, replacing any bare
// HashRef (a 32-byte reference the decoder could not inline) with its
// resolved subtree when the pool covers it. Children that were inlined
// during decodePartialNode are already concrete nodes but may still
// contain their own unresolved HashRef descendants, so the walk is
// unconditional, not just for top-level HashRef values.
func (b *PartialTrieBuilder) resolveChildren(n PartialNode) (PartialNode, error) {
	switch t := n.(type) {
	case HashRef:
		return b.resolve(common.Hash(t))
	case *BranchNode:
		for i, child := range t.Children {
			if child == nil {
				continue
			}
			resolved, err := b.resolveChildren(child)
			if err != nil {
				return nil, err
			}
			t.Children[i] = resolved
		}
		return t, nil
	case *ExtensionNode:
		if t.Child == nil {
			return t, nil
		}
		resolved, err := b.resolveChildren(t.Child)
		if err != nil {
			return nil, err
		}
		t.Child = resolved
		return t, nil
	default:
		return n, nil
	}
}
