package crypto

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/uhyunpark/hyperpredict/pkg/app/core/oracle"
)

// Signature schemes accepted for quorum attestations.
const (
	SchemeEIP712 = "eip712"
	SchemeBLS    = "bls"
	// SchemeAuto picks EIP-712 for 20-byte address ids and BLS otherwise.
	SchemeAuto = "auto"
)

// VerdictVerifier checks EIP-712 verdict signatures. Validator ids are
// Ethereum addresses.
type VerdictVerifier struct {
	eip *EIP712Signer
}

func NewVerdictVerifier(domain EIP712Domain) *VerdictVerifier {
	return &VerdictVerifier{eip: NewEIP712Signer(domain)}
}

func (v *VerdictVerifier) Verify(validatorID string, payload, sig []byte) bool {
	if !common.IsHexAddress(validatorID) {
		return false
	}
	p, err := oracle.ParsePayload(payload)
	if err != nil {
		return false
	}
	ok, err := v.eip.VerifyVerdictSignature(&VerdictEIP712{
		MarketID:  p.MarketID,
		Outcome:   p.Outcome,
		Evidence:  p.Evidence,
		Validator: common.HexToAddress(validatorID),
	}, sig)
	return err == nil && ok
}

// BLSVerifier checks BLS signatures over the raw payload. Validator ids are hex
// encoded public keys.
type BLSVerifier struct{}

func (BLSVerifier) Verify(validatorID string, payload, sig []byte) bool {
	pk, err := ParseBLSPubKey(validatorID)
	if err != nil {
		return false
	}
	return VerifyBLS(pk, sig, payload)
}

type autoVerifier struct {
	eip *VerdictVerifier
	bls BLSVerifier
}

func (a autoVerifier) Verify(validatorID string, payload, sig []byte) bool {
	if common.IsHexAddress(validatorID) {
		return a.eip.Verify(validatorID, payload, sig)
	}
	return a.bls.Verify(validatorID, payload, sig)
}

// NewVerifier returns the attestation verifier for scheme.
func NewVerifier(scheme string, domain EIP712Domain) (oracle.Verifier, error) {
	switch strings.ToLower(scheme) {
	case SchemeEIP712:
		return NewVerdictVerifier(domain), nil
	case SchemeBLS:
		return BLSVerifier{}, nil
	case SchemeAuto, "":
		return autoVerifier{eip: NewVerdictVerifier(domain)}, nil
	}
	return nil, fmt.Errorf("unknown signature scheme %q", scheme)
}

var (
	_ oracle.Verifier = (*VerdictVerifier)(nil)
	_ oracle.Verifier = BLSVerifier{}
	_ oracle.Verifier = autoVerifier{}
)
