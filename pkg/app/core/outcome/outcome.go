package outcome

import (
	"fmt"
	"strings"
)

// Outcome is a binary market outcome, or Void for a market refunded without a winner.
type Outcome int8

const (
	None Outcome = iota
	Yes
	No
	Void
)

func (o Outcome) String() string {
	switch o {
	case Yes:
		return "YES"
	case No:
		return "NO"
	case Void:
		return "VOID"
	default:
		return "NONE"
	}
}

// Tradable reports whether shares of o exist (YES or NO).
func (o Outcome) Tradable() bool { return o == Yes || o == No }

// Opposite returns the complementary tradable outcome.
func (o Outcome) Opposite() Outcome {
	switch o {
	case Yes:
		return No
	case No:
		return Yes
	default:
		return o
	}
}

func Parse(s string) (Outcome, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "YES":
		return Yes, nil
	case "NO":
		return No, nil
	case "VOID":
		return Void, nil
	case "", "NONE":
		return None, nil
	}
	return None, fmt.Errorf("unknown outcome %q", s)
}

func (o Outcome) MarshalText() ([]byte, error) { return []byte(o.String()), nil }

func (o *Outcome) UnmarshalText(text []byte) error {
	v, err := Parse(string(text))
	if err != nil {
		return err
	}
	*o = v
	return nil
}
