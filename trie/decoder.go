package trie

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/rlp"
)

var (
	errDecodeInvalid = errors.New("trie: invalid encoded node")
)

// decodeRLPList decodes a top-level RLP list into its element byte slices.
// String elements are returned as their content (header stripped); list
// elements (inline child nodes) are returned with their header intact so
// they can be fed straight back into decodePartialNode.
func decodeRLPList(data []byte) ([][]byte, error) {
	kind, payload, _, err := rlp.Split(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errDecodeInvalid, err)
	}
	if kind != rlp.List {
		return nil, fmt.Errorf("%w: expected list, got %v", errDecodeInvalid, kind)
	}

	var elems [][]byte
	for len(payload) > 0 {
		elem, rest, err := decodeOneElement(payload)
		if err != nil {
			return nil, err
		}
		elems = append(elems, elem)
		payload = rest
	}
	return elems, nil
}

// decodeOneElement reads one RLP element from the front of data,
// returning the decoded content and remaining data.
func decodeOneElement(data []byte) (content []byte, rest []byte, err error) {
	kind, payload, rest, err := rlp.Split(data)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", errDecodeInvalid, err)
	}
	if kind != rlp.List {
		if len(payload) == 0 {
			return nil, rest, nil
		}
		return payload, rest, nil
	}
	// Return the full RLP (including header) for nested node references.
	headerLen := len(data) - len(rest) - len(payload)
	return data[:headerLen+len(payload)], rest, nil
}
