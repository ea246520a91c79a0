package witness

import "github.com/ethereum/go-ethereum/common"

// PrestateAccount is one address's entry in a prestateTracer result, in
// either read mode (the account's state before the transaction) or as
// one side of diff mode's pre/post pair. Fields absent from the trace
// are left at their zero value; debug_traceTransaction omits fields the
// account did not touch rather than sending zeros.
type PrestateAccount struct {
	Balance string                      `json:"balance,omitempty"`
	Nonce   *uint64                     `json:"nonce,omitempty"`
	Code    string                      `json:"code,omitempty"`
	Storage map[common.Hash]common.Hash `json:"storage,omitempty"`
}

// PrestateTrace is the result of prestateTracer in its default (read)
// mode: the state every touched account had immediately before the
// transaction executed.
type PrestateTrace map[common.Address]*PrestateAccount

// PrestateDiffTrace is the result of prestateTracer with
// tracerConfig.diffMode=true: the state before and after the
// transaction, each keyed the same way as PrestateTrace.
type PrestateDiffTrace struct {
	Pre  PrestateTrace `json:"pre"`
	Post PrestateTrace `json:"post"`
}
