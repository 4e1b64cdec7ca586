package crypto

import (
	"encoding/hex"
	"fmt"
	"strings"

	bls "github.com/cloudflare/circl/sign/bls"
)

type scheme = bls.KeyG1SigG2

type BLSPubKey = bls.PublicKey[scheme]

// BLSSigner signs verdict payloads for validators registered by BLS public key.
type BLSSigner struct {
	sk *bls.PrivateKey[scheme]
	pk *BLSPubKey
}

// NewBLSSignerFromSeed derives a key from seed, which must be at least 32 bytes.
func NewBLSSignerFromSeed(seed []byte) (*BLSSigner, error) {
	sk, err := bls.KeyGen[scheme](seed, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to derive bls key: %w", err)
	}
	return &BLSSigner{sk: sk, pk: sk.PublicKey()}, nil
}

// ValidatorID is the hex encoded public key, as listed in a quorum source.
func (s *BLSSigner) ValidatorID() string {
	raw, _ := s.pk.MarshalBinary()
	return hex.EncodeToString(raw)
}

func (s *BLSSigner) Sign(msg []byte) []byte {
	return bls.Sign(s.sk, msg)
}

// ParseBLSPubKey decodes a hex validator id into a public key.
func ParseBLSPubKey(id string) (*BLSPubKey, error) {
	raw, err := hex.DecodeString(strings.TrimPrefix(id, "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid bls validator id: %w", err)
	}
	pk := new(BLSPubKey)
	if err := pk.UnmarshalBinary(raw); err != nil {
		return nil, fmt.Errorf("invalid bls public key: %w", err)
	}
	return pk, nil
}

func VerifyBLS(pk *BLSPubKey, sigBytes, msg []byte) bool {
	return bls.Verify(pk, msg, bls.Signature(sigBytes))
}
