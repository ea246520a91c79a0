package witness

import "errors"

// Sentinel errors the orchestrator and its callers can discriminate with
// errors.Is, independent of the wrapped transport or decode detail.
var (
	// ErrTransport wraps any failure of the underlying RPC transport:
	// dial failures, timeouts, and non-2xx/JSON-RPC error responses.
	ErrTransport = errors.New("witness: rpc transport error")

	// ErrMissingField marks a required RPC response field that was
	// absent or null where the protocol guarantees a value.
	ErrMissingField = errors.New("witness: missing required field")

	// ErrTraceShape marks a debug_traceTransaction/debug_traceBlockByNumber
	// result whose JSON shape did not match the requested tracer.
	ErrTraceShape = errors.New("witness: unexpected trace shape")

	// ErrMalformedProof marks an eth_getProof proof node whose hex
	// string could not be decoded. The fetch path does not RLP-decode
	// proof nodes, so a node that is not a valid 2- or 17-element RLP
	// list is not reported with this error.
	ErrMalformedProof = errors.New("witness: malformed proof node")

	// ErrEmptyTrace marks a debug_traceBlockByNumber result that
	// produced no BlockWitness entry in jerigon mode.
	ErrEmptyTrace = errors.New("witness: trace had no BlockWitness")

	// ErrCodeHexDecode marks a prestate tracer "code" field that was
	// not valid "0x"-prefixed hex.
	ErrCodeHexDecode = errors.New("witness: malformed code hex")
)
