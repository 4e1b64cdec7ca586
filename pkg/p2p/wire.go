package p2p

import (
	"bytes"
	"encoding/gob"
	"fmt"

	"github.com/uhyunpark/hyperpredict/pkg/app/core/oracle"
)

func init() {
	gob.Register(VerdictWire{})
}

// VerdictWire is one validator attestation relayed between nodes.
type VerdictWire struct {
	MarketID string
	Verdict  oracle.Verdict
}

func encodeVerdict(marketID string, v oracle.Verdict) ([]byte, error) {
	return gobEncode(VerdictWire{MarketID: marketID, Verdict: v})
}

func decodeVerdict(b []byte) (VerdictWire, error) {
	var w VerdictWire
	if err := gobDecode(b, &w); err != nil {
		return VerdictWire{}, err
	}
	if w.MarketID == "" {
		return VerdictWire{}, fmt.Errorf("verdict wire without market id")
	}
	return w, nil
}

func gobEncode(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
func gobDecode(b []byte, v any) error {
	return gob.NewDecoder(bytes.NewReader(b)).Decode(v)
}
