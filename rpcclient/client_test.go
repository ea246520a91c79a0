package rpcclient

import (
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient/gethclient"

	"github.com/fractal-zkp/zero-bin/witness"
)

func TestConvertProofDecodesHexNodes(t *testing.T) {
	addr := common.Address{0x01}
	r := &gethclient.AccountResult{
		Address:      addr,
		AccountProof: []string{"0x1234", "0xabcd"},
		Balance:      big.NewInt(100),
		CodeHash:     common.HexToHash("0x02"),
		Nonce:        5,
		StorageHash:  common.HexToHash("0x03"),
		StorageProof: []gethclient.StorageResult{
			{Key: "0x01", Value: big.NewInt(1), Proof: []string{"0xbeef"}},
		},
	}

	proof, err := convertProof(r)
	if err != nil {
		t.Fatalf("convertProof: %v", err)
	}
	if proof.Address != addr {
		t.Errorf("Address = %s, want %s", proof.Address, addr)
	}
	if len(proof.AccountProof) != 2 {
		t.Fatalf("len(AccountProof) = %d, want 2", len(proof.AccountProof))
	}
	if proof.AccountProof[0][0] != 0x12 || proof.AccountProof[0][1] != 0x34 {
		t.Errorf("AccountProof[0] = %x, want 1234", proof.AccountProof[0])
	}
	if len(proof.StorageProof) != 1 || proof.StorageProof[0].Key != common.HexToHash("0x01") {
		t.Fatalf("StorageProof = %+v", proof.StorageProof)
	}
}

func TestConvertProofWrapsMalformedHex(t *testing.T) {
	r := &gethclient.AccountResult{
		Address:      common.Address{0x01},
		AccountProof: []string{"not-hex"},
	}
	_, err := convertProof(r)
	if !errors.Is(err, witness.ErrMalformedProof) {
		t.Fatalf("err = %v, want ErrMalformedProof", err)
	}
}

func TestPrestateTracerParamShapes(t *testing.T) {
	read := readModeParams()
	if read.Tracer != "prestateTracer" {
		t.Errorf("read.Tracer = %q, want prestateTracer", read.Tracer)
	}
	if read.TracerConfig.DiffMode {
		t.Errorf("read.TracerConfig.DiffMode = true, want false")
	}

	diff := diffModeParams()
	if !diff.TracerConfig.DiffMode {
		t.Errorf("diff.TracerConfig.DiffMode = false, want true")
	}
}
