package crypto

import (
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"golang.org/x/crypto/sha3"

	"github.com/uhyunpark/hyperpredict/pkg/app/core/outcome"
)

// EIP712Domain represents the domain separator for EIP-712 typed data
// This prevents replay of a verdict across deployments
type EIP712Domain struct {
	Name              string         // Protocol name (e.g., "HyperPredict")
	Version           string         // Protocol version (e.g., "1")
	ChainID           *big.Int       // Chain ID (1337 for local)
	VerifyingContract common.Address // Contract address (or zero for off-chain)
}

// VerdictEIP712 is the typed data a validator signs when attesting a market's outcome
type VerdictEIP712 struct {
	MarketID  string
	Outcome   outcome.Outcome
	Evidence  string
	Validator common.Address
}

// EIP712Signer handles EIP-712 typed data hashing for verdicts
type EIP712Signer struct {
	domain EIP712Domain
}

func NewEIP712Signer(domain EIP712Domain) *EIP712Signer {
	if domain.ChainID == nil {
		domain.ChainID = big.NewInt(0)
	}
	return &EIP712Signer{domain: domain}
}

// DefaultDomain returns the default EIP-712 domain for local nodes
func DefaultDomain() EIP712Domain {
	return EIP712Domain{
		Name:              "HyperPredict",
		Version:           "1",
		ChainID:           big.NewInt(1337),
		VerifyingContract: common.Address{}, // off-chain signing
	}
}

// EvidenceHash is keccak256 of the evidence string. Evidence can be long, so
// the typed data carries only its hash.
func EvidenceHash(evidence string) common.Hash {
	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(evidence))
	return common.BytesToHash(h.Sum(nil))
}

var verdictTypes = apitypes.Types{
	"EIP712Domain": []apitypes.Type{
		{Name: "name", Type: "string"},
		{Name: "version", Type: "string"},
		{Name: "chainId", Type: "uint256"},
		{Name: "verifyingContract", Type: "address"},
	},
	"Verdict": []apitypes.Type{
		{Name: "marketId", Type: "string"},
		{Name: "outcome", Type: "uint8"},
		{Name: "evidenceHash", Type: "bytes32"},
		{Name: "validator", Type: "address"},
	},
}

func (e *EIP712Signer) typedData(v *VerdictEIP712) apitypes.TypedData {
	return apitypes.TypedData{
		Types:       verdictTypes,
		PrimaryType: "Verdict",
		Domain: apitypes.TypedDataDomain{
			Name:              e.domain.Name,
			Version:           e.domain.Version,
			ChainId:           (*math.HexOrDecimal256)(e.domain.ChainID),
			VerifyingContract: e.domain.VerifyingContract.Hex(),
		},
		Message: apitypes.TypedDataMessage{
			"marketId":     v.MarketID,
			"outcome":      fmt.Sprintf("%d", uint8(v.Outcome)),
			"evidenceHash": EvidenceHash(v.Evidence).Hex(),
			"validator":    v.Validator.Hex(),
		},
	}
}

// HashVerdict hashes a verdict according to EIP-712
// Returns the digest that should be signed
func (e *EIP712Signer) HashVerdict(v *VerdictEIP712) ([]byte, error) {
	typedData := e.typedData(v)

	domainSeparator, err := typedData.HashStruct("EIP712Domain", typedData.Domain.Map())
	if err != nil {
		return nil, fmt.Errorf("failed to hash domain: %w", err)
	}
	typedDataHash, err := typedData.HashStruct(typedData.PrimaryType, typedData.Message)
	if err != nil {
		return nil, fmt.Errorf("failed to hash message: %w", err)
	}

	// keccak256("\x19\x01" || domainSeparator || typedDataHash)
	rawData := []byte(fmt.Sprintf("\x19\x01%s%s", string(domainSeparator), string(typedDataHash)))
	return crypto.Keccak256Hash(rawData).Bytes(), nil
}

// SignVerdict signs a verdict with the validator's key. v.Validator is set to
// the signer's address.
func (e *EIP712Signer) SignVerdict(signer *Signer, v *VerdictEIP712) ([]byte, error) {
	v.Validator = signer.Address()
	hash, err := e.HashVerdict(v)
	if err != nil {
		return nil, fmt.Errorf("failed to hash verdict: %w", err)
	}
	signature, err := signer.Sign(hash)
	if err != nil {
		return nil, fmt.Errorf("failed to sign verdict: %w", err)
	}
	return signature, nil
}

// VerifyVerdictSignature reports whether signature was produced by v.Validator
func (e *EIP712Signer) VerifyVerdictSignature(v *VerdictEIP712, signature []byte) (bool, error) {
	hash, err := e.HashVerdict(v)
	if err != nil {
		return false, fmt.Errorf("failed to hash verdict: %w", err)
	}
	recovered, err := RecoverAddress(hash, signature)
	if err != nil {
		return false, fmt.Errorf("failed to recover address: %w", err)
	}
	return recovered == v.Validator, nil
}

// VerdictToJSON renders the typed data for wallet signing (eth_signTypedData_v4)
func (e *EIP712Signer) VerdictToJSON(v *VerdictEIP712) (string, error) {
	typedData := map[string]interface{}{
		"types": map[string]interface{}{
			"EIP712Domain": []map[string]string{
				{"name": "name", "type": "string"},
				{"name": "version", "type": "string"},
				{"name": "chainId", "type": "uint256"},
				{"name": "verifyingContract", "type": "address"},
			},
			"Verdict": []map[string]string{
				{"name": "marketId", "type": "string"},
				{"name": "outcome", "type": "uint8"},
				{"name": "evidenceHash", "type": "bytes32"},
				{"name": "validator", "type": "address"},
			},
		},
		"primaryType": "Verdict",
		"domain": map[string]interface{}{
			"name":              e.domain.Name,
			"version":           e.domain.Version,
			"chainId":           e.domain.ChainID.String(),
			"verifyingContract": e.domain.VerifyingContract.Hex(),
		},
		"message": map[string]interface{}{
			"marketId":     v.MarketID,
			"outcome":      uint8(v.Outcome),
			"evidenceHash": EvidenceHash(v.Evidence).Hex(),
			"validator":    v.Validator.Hex(),
		},
	}

	jsonBytes, err := json.MarshalIndent(typedData, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return string(jsonBytes), nil
}
