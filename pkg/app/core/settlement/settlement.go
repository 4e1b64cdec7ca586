// Package settlement computes what every share and LP unit of a resolved market
// is worth and tracks the payouts made against the market's collateral.
package settlement

import (
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/uhyunpark/hyperpredict/pkg/app/core/fixed"
	"github.com/uhyunpark/hyperpredict/pkg/app/core/ledger"
	"github.com/uhyunpark/hyperpredict/pkg/app/core/outcome"
	"github.com/uhyunpark/hyperpredict/pkg/app/core/pool"
)

var (
	// ErrReserveShortfall means payouts would exceed collateral. It is an
	// integrity fault: the market must be halted, never retried.
	ErrReserveShortfall = errors.New("reserve shortfall")
	ErrNotResolved      = errors.New("market not resolved")
)

// Settlement is the payout schedule of a resolved market.
type Settlement struct {
	Outcome outcome.Outcome `json:"outcome"`
	// per-share payouts
	PayoutYes fixed.Point `json:"payout_yes"`
	PayoutNo  fixed.Point `json:"payout_no"`
	// LPValue is the value of the pool's remaining reserves, split across LPSupply units.
	LPValue  fixed.Point `json:"lp_value"`
	LPSupply fixed.Point `json:"lp_supply"`
	// Obligation is the total owed to share holders and LPs.
	Obligation fixed.Point `json:"obligation"`
	Collateral fixed.Point `json:"collateral"`
	Paid       fixed.Point `json:"paid"`
	SettledAt  time.Time   `json:"settled_at"`
}

// Payouts returns the per-share value of YES and NO shares for a final outcome.
// A VOID market refunds half a unit per share, so a complete set returns one unit.
func Payouts(o outcome.Outcome) (yes, no fixed.Point, err error) {
	switch o {
	case outcome.Yes:
		return fixed.One(), fixed.Zero(), nil
	case outcome.No:
		return fixed.Zero(), fixed.One(), nil
	case outcome.Void:
		half := fixed.One().Half()
		return half, half, nil
	}
	return fixed.Point{}, fixed.Point{}, fmt.Errorf("%w: outcome %s", ErrNotResolved, o)
}

// Compute builds the settlement of a market resolved to o. holderYes and
// holderNo are the share totals held outside the pool.
func Compute(o outcome.Outcome, p pool.Pool, holderYes, holderNo fixed.Point, now time.Time) (*Settlement, error) {
	payYes, payNo, err := Payouts(o)
	if err != nil {
		return nil, err
	}
	holders, err := value(holderYes, holderNo, payYes, payNo, fixed.Up)
	if err != nil {
		return nil, err
	}
	lpValue, err := value(p.Yes, p.No, payYes, payNo, fixed.Down)
	if err != nil {
		return nil, err
	}
	obligation, err := holders.Add(lpValue)
	if err != nil {
		return nil, err
	}
	if obligation.GreaterThan(p.Collateral) {
		return nil, fmt.Errorf("%w: owed %s, collateral %s", ErrReserveShortfall, obligation, p.Collateral)
	}
	return &Settlement{
		Outcome:    o,
		PayoutYes:  payYes,
		PayoutNo:   payNo,
		LPValue:    lpValue,
		LPSupply:   p.LPSupply,
		Obligation: obligation,
		Collateral: p.Collateral,
		SettledAt:  now,
	}, nil
}

func value(yes, no, payYes, payNo fixed.Point, mode fixed.Rounding) (fixed.Point, error) {
	a, err := yes.Mul(payYes, mode)
	if err != nil {
		return fixed.Point{}, err
	}
	b, err := no.Mul(payNo, mode)
	if err != nil {
		return fixed.Point{}, err
	}
	return a.Add(b)
}

// PayoutFor returns what pos redeems for, rounded down.
func (s *Settlement) PayoutFor(pos ledger.Position) (fixed.Point, error) {
	shares, err := value(pos.Yes, pos.No, s.PayoutYes, s.PayoutNo, fixed.Down)
	if err != nil {
		return fixed.Point{}, err
	}
	if pos.LPUnits.IsZero() || s.LPSupply.IsZero() {
		return shares, nil
	}
	lp, err := fixed.MulDiv(pos.LPUnits, s.LPValue, s.LPSupply, fixed.Down)
	if err != nil {
		return fixed.Point{}, err
	}
	return shares.Add(lp)
}

// Redeem pays out acct's position in book and records the payment. It fails with
// ErrReserveShortfall, leaving s and the book untouched, if the payment would
// exceed the collateral.
func (s *Settlement) Redeem(book *ledger.Book, acct common.Address) (fixed.Point, error) {
	return book.Redeem(acct, func(current ledger.Position) (fixed.Point, error) {
		amount, err := s.PayoutFor(current)
		if err != nil {
			return fixed.Point{}, err
		}
		paid, err := s.Paid.Add(amount)
		if err != nil {
			return fixed.Point{}, err
		}
		if paid.GreaterThan(s.Collateral) {
			return fixed.Point{}, fmt.Errorf("%w: paying %s would bring total to %s of %s", ErrReserveShortfall, amount, paid, s.Collateral)
		}
		s.Paid = paid
		return amount, nil
	})
}

// Remaining is the collateral not yet paid out.
func (s *Settlement) Remaining() (fixed.Point, error) {
	return s.Collateral.Sub(s.Paid)
}
