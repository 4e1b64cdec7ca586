package market

import "fmt"

// Lifecycle is the state of a market:
//
//	Created -> Open -> Cutoff -> PendingResolution -> Resolved -> Settled
//	                                      \-> Disputed -/
type Lifecycle uint8

const (
	Created Lifecycle = iota
	Open
	Cutoff
	PendingResolution
	Disputed
	Resolved
	Settled
)

var lifecycleNames = [...]string{"CREATED", "OPEN", "CUTOFF", "PENDING_RESOLUTION", "DISPUTED", "RESOLVED", "SETTLED"}

func (l Lifecycle) String() string {
	if int(l) < len(lifecycleNames) {
		return lifecycleNames[l]
	}
	return fmt.Sprintf("LIFECYCLE(%d)", l)
}

func (l Lifecycle) MarshalText() ([]byte, error) { return []byte(l.String()), nil }

func (l *Lifecycle) UnmarshalText(text []byte) error {
	for i, name := range lifecycleNames {
		if name == string(text) {
			*l = Lifecycle(i)
			return nil
		}
	}
	return fmt.Errorf("unknown lifecycle %q", text)
}

var transitions = map[Lifecycle][]Lifecycle{
	Created:           {Open},
	Open:              {Cutoff},
	Cutoff:            {PendingResolution},
	PendingResolution: {Resolved, Disputed},
	Disputed:          {Resolved},
	Resolved:          {Settled},
}

// CanTransition reports whether from -> to is a lifecycle edge. Settled is terminal.
func CanTransition(from, to Lifecycle) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Trading reports whether the state accepts trades and liquidity changes.
func (l Lifecycle) Trading() bool { return l == Open }

// AwaitingVerdict reports whether verdicts are accepted.
func (l Lifecycle) AwaitingVerdict() bool { return l == PendingResolution || l == Disputed }

// Final reports whether the outcome is known.
func (l Lifecycle) Final() bool { return l == Resolved || l == Settled }
