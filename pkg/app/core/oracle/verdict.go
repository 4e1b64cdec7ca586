package oracle

import (
	"encoding/json"
	"time"

	"github.com/uhyunpark/hyperpredict/pkg/app/core/outcome"
)

// Verdict is a resolution claim submitted for a market. For quorum sources it
// carries one validator's signed attestation; for price feeds Validator and
// Signature are empty and Outcome may be left as None.
type Verdict struct {
	Outcome   outcome.Outcome `json:"outcome"`
	Evidence  string          `json:"evidence"`
	Validator string          `json:"validator,omitempty"`
	Signature []byte          `json:"signature,omitempty"`
}

// Attestation is an accepted quorum vote. Revised marks a vote a validator
// replaced while the market was disputed; it cannot be replaced again.
type Attestation struct {
	Validator  string          `json:"validator"`
	Outcome    outcome.Outcome `json:"outcome"`
	Evidence   string          `json:"evidence"`
	Signature  []byte          `json:"signature"`
	ReceivedAt time.Time       `json:"received_at"`
	Revised    bool            `json:"revised,omitempty"`
}

// Payload is the message a validator signs.
type Payload struct {
	MarketID string          `json:"market_id"`
	Outcome  outcome.Outcome `json:"outcome"`
	Evidence string          `json:"evidence"`
}

// Bytes is the canonical encoding handed to a Verifier.
func (p Payload) Bytes() []byte {
	data, _ := json.Marshal(p)
	return data
}

// ParsePayload decodes Payload.Bytes.
func ParsePayload(data []byte) (Payload, error) {
	var p Payload
	err := json.Unmarshal(data, &p)
	return p, err
}
