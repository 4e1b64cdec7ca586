// Package pool prices binary outcome shares with a fixed product market maker.
//
// Collateral entering the pool mints complete sets (one YES plus one NO share per
// unit). A buy of YES adds the net input to both reserves and removes YES shares
// until yes*no is restored, so the price of YES is no/(yes+no) and the two prices
// always sum to one.
package pool

import (
	"errors"
	"fmt"

	"github.com/uhyunpark/hyperpredict/pkg/app/core/fixed"
	"github.com/uhyunpark/hyperpredict/pkg/app/core/outcome"
)

var (
	ErrInsufficientLiquidity = errors.New("insufficient liquidity")
	ErrZeroLiquidity         = errors.New("zero liquidity")
	ErrInsufficientLpUnits   = errors.New("insufficient lp units")
	ErrStaleQuote            = errors.New("stale quote")
	ErrInvalidAmount         = errors.New("invalid amount")
)

// Pool holds the two outcome reserves of one market.
type Pool struct {
	Yes      fixed.Point `json:"yes"`
	No       fixed.Point `json:"no"`
	LPSupply fixed.Point `json:"lp_supply"`
	// Collateral is the number of complete sets outstanding, in or out of the pool.
	Collateral fixed.Point `json:"collateral"`
	// MinReserve is the dust floor neither reserve may cross while trading.
	MinReserve fixed.Point `json:"min_reserve"`
	// Version increments on every reserve mutation; quotes carry it for staleness checks.
	Version uint64 `json:"version"`
}

func New(minReserve fixed.Point) Pool {
	return Pool{MinReserve: minReserve}
}

func (p *Pool) Empty() bool { return p.LPSupply.IsZero() }

// Invariant returns k = yes*no.
func (p *Pool) Invariant() (fixed.Wide, error) {
	return p.Yes.MulWide(p.No)
}

// Price returns the marginal price of o. YES is no/(yes+no) rounded down and NO is
// its complement, so the pair sums to exactly one.
func (p *Pool) Price(o outcome.Outcome) (fixed.Point, error) {
	total, err := p.Yes.Add(p.No)
	if err != nil {
		return fixed.Point{}, err
	}
	if total.IsZero() {
		return fixed.Point{}, ErrZeroLiquidity
	}
	yes, err := p.No.Div(total, fixed.Down)
	if err != nil {
		return fixed.Point{}, err
	}
	switch o {
	case outcome.Yes:
		return yes, nil
	case outcome.No:
		return fixed.One().Sub(yes)
	}
	return fixed.Point{}, fmt.Errorf("%w: no price for outcome %s", ErrInvalidAmount, o)
}

// reserves returns (reserve of o, reserve of the opposite outcome).
func (p *Pool) reserves(o outcome.Outcome) (fixed.Point, fixed.Point) {
	if o == outcome.Yes {
		return p.Yes, p.No
	}
	return p.No, p.Yes
}

func orient(o outcome.Outcome, same, opp fixed.Point) (yes, no fixed.Point) {
	if o == outcome.Yes {
		return same, opp
	}
	return opp, same
}

// BurnSets retires complete sets that a holder returned for collateral.
func (p *Pool) BurnSets(amount fixed.Point) error {
	c, err := p.Collateral.Sub(amount)
	if err != nil {
		return fmt.Errorf("%w: burning %s sets exceeds collateral %s", ErrInsufficientLiquidity, amount, p.Collateral)
	}
	p.Collateral = c
	return nil
}
