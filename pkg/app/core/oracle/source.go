// Package oracle describes where a market's resolution comes from and the
// capabilities the engine consumes to accept a verdict.
//
// Source is a closed union with exactly two variants, PriceFeed and Quorum. Code
// that handles a Source switches over both and treats anything else as an error.
package oracle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/uhyunpark/hyperpredict/pkg/app/core/fixed"
	"github.com/uhyunpark/hyperpredict/pkg/app/core/outcome"
)

var ErrInvalidSource = errors.New("invalid resolution source")

type Kind string

const (
	KindPriceFeed Kind = "price_feed"
	KindQuorum    Kind = "quorum"
)

// Source is implemented only by PriceFeed and Quorum.
type Source interface {
	Kind() Kind
	Validate() error
	sealed()
}

// Comparison is the operator applied as "reference <op> target".
type Comparison string

const (
	GreaterOrEqual Comparison = ">="
	LessOrEqual    Comparison = "<="
	Greater        Comparison = ">"
	Less           Comparison = "<"
	Equal          Comparison = "=="
)

// PriceFeed resolves YES when the feed's reference value at or after cutoff
// satisfies the comparison against Target, NO otherwise.
type PriceFeed struct {
	FeedID     string      `json:"feed_id"`
	Target     fixed.Point `json:"target"`
	Comparison Comparison  `json:"comparison"`
}

func (PriceFeed) Kind() Kind { return KindPriceFeed }
func (PriceFeed) sealed()    {}

func (s PriceFeed) Validate() error {
	if strings.TrimSpace(s.FeedID) == "" {
		return fmt.Errorf("%w: empty feed id", ErrInvalidSource)
	}
	switch s.Comparison {
	case GreaterOrEqual, LessOrEqual, Greater, Less, Equal:
		return nil
	}
	return fmt.Errorf("%w: unknown comparison %q", ErrInvalidSource, s.Comparison)
}

// Evaluate applies the comparison to a reference value.
func (s PriceFeed) Evaluate(value fixed.Point) outcome.Outcome {
	c := value.Cmp(s.Target)
	var hit bool
	switch s.Comparison {
	case GreaterOrEqual:
		hit = c >= 0
	case LessOrEqual:
		hit = c <= 0
	case Greater:
		hit = c > 0
	case Less:
		hit = c < 0
	case Equal:
		hit = c == 0
	}
	if hit {
		return outcome.Yes
	}
	return outcome.No
}

// Quorum resolves once Threshold distinct validators attest the same outcome.
type Quorum struct {
	EventID    string   `json:"event_id,omitempty"`
	Validators []string `json:"validators"`
	Threshold  int      `json:"threshold"`
}

func (Quorum) Kind() Kind { return KindQuorum }
func (Quorum) sealed()    {}

func (s Quorum) Validate() error {
	if len(s.Validators) == 0 {
		return fmt.Errorf("%w: no validators", ErrInvalidSource)
	}
	if s.Threshold < 1 || s.Threshold > len(s.Validators) {
		return fmt.Errorf("%w: threshold %d of %d validators", ErrInvalidSource, s.Threshold, len(s.Validators))
	}
	seen := make(map[string]bool, len(s.Validators))
	for _, v := range s.Validators {
		id := NormalizeValidator(v)
		if id == "" || seen[id] {
			return fmt.Errorf("%w: empty or duplicate validator %q", ErrInvalidSource, v)
		}
		seen[id] = true
	}
	return nil
}

// Member reports whether id is one of the named validators.
func (s Quorum) Member(id string) bool {
	id = NormalizeValidator(id)
	for _, v := range s.Validators {
		if NormalizeValidator(v) == id {
			return true
		}
	}
	return false
}

// NormalizeValidator canonicalizes a validator id (hex addresses compare case-insensitively).
func NormalizeValidator(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}

type envelope struct {
	Kind   Kind            `json:"kind"`
	Params json.RawMessage `json:"params"`
}

// Encode serializes a Source with its kind tag.
func Encode(s Source) ([]byte, error) {
	params, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	return json.Marshal(envelope{Kind: s.Kind(), Params: params})
}

// Decode is the inverse of Encode.
func Decode(data []byte) (Source, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSource, err)
	}
	switch env.Kind {
	case KindPriceFeed:
		var s PriceFeed
		if err := json.Unmarshal(env.Params, &s); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidSource, err)
		}
		return s, nil
	case KindQuorum:
		var s Quorum
		if err := json.Unmarshal(env.Params, &s); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidSource, err)
		}
		return s, nil
	}
	return nil, fmt.Errorf("%w: unknown kind %q", ErrInvalidSource, env.Kind)
}

// Observation is a reference value reported by a price feed.
type Observation struct {
	Value fixed.Point `json:"value"`
	At    time.Time   `json:"at"`
}

// Feed looks up a reference value for a price-feed source. Implementations live
// outside the engine (Pyth, exchange APIs, fixtures).
type Feed interface {
	FetchReferenceValue(ctx context.Context, feedID string, atOrAfter time.Time) (Observation, error)
}

// Verifier checks a validator's signature over an attestation payload.
type Verifier interface {
	Verify(validatorID string, payload, signature []byte) bool
}
