package pool

import (
	"fmt"

	"github.com/uhyunpark/hyperpredict/pkg/app/core/fixed"
)

// Deposit describes the effect of AddLiquidity. Shares that could not be added
// without moving the price are returned to the depositor.
type Deposit struct {
	LPMinted    fixed.Point `json:"lp_minted"`
	YesAdded    fixed.Point `json:"yes_added"`
	NoAdded     fixed.Point `json:"no_added"`
	YesReturned fixed.Point `json:"yes_returned"`
	NoReturned  fixed.Point `json:"no_returned"`
}

// Withdrawal describes the shares released by RemoveLiquidity.
type Withdrawal struct {
	YesOut fixed.Point `json:"yes_out"`
	NoOut  fixed.Point `json:"no_out"`
}

// AddLiquidity mints amount complete sets and adds them to the reserves at the
// current ratio. The first deposit sets a 1:1 ratio and mints amount LP units;
// later deposits mint amount*supply/max(yes, no) units.
func (p *Pool) AddLiquidity(amount fixed.Point) (Deposit, error) {
	if amount.IsZero() {
		return Deposit{}, ErrZeroLiquidity
	}
	collateral, err := p.Collateral.Add(amount)
	if err != nil {
		return Deposit{}, err
	}

	if p.Empty() {
		if amount.LessThan(p.MinReserve) {
			return Deposit{}, fmt.Errorf("%w: initial liquidity %s below %s", ErrInsufficientLiquidity, amount, p.MinReserve)
		}
		yes, err := p.Yes.Add(amount)
		if err != nil {
			return Deposit{}, err
		}
		no, err := p.No.Add(amount)
		if err != nil {
			return Deposit{}, err
		}
		p.Yes, p.No, p.LPSupply, p.Collateral = yes, no, amount, collateral
		p.Version++
		return Deposit{LPMinted: amount, YesAdded: amount, NoAdded: amount}, nil
	}

	weight := fixed.Max(p.Yes, p.No)
	minted, err := fixed.MulDiv(amount, p.LPSupply, weight, fixed.Down)
	if err != nil {
		return Deposit{}, err
	}
	if minted.IsZero() {
		return Deposit{}, fmt.Errorf("%w: deposit %s mints no lp units", ErrInvalidAmount, amount)
	}
	d := Deposit{LPMinted: minted}
	if d.YesAdded, err = fixed.MulDiv(amount, p.Yes, weight, fixed.Down); err != nil {
		return Deposit{}, err
	}
	if d.NoAdded, err = fixed.MulDiv(amount, p.No, weight, fixed.Down); err != nil {
		return Deposit{}, err
	}
	if d.YesReturned, err = amount.Sub(d.YesAdded); err != nil {
		return Deposit{}, err
	}
	if d.NoReturned, err = amount.Sub(d.NoAdded); err != nil {
		return Deposit{}, err
	}

	next := *p
	if next.Yes, err = p.Yes.Add(d.YesAdded); err != nil {
		return Deposit{}, err
	}
	if next.No, err = p.No.Add(d.NoAdded); err != nil {
		return Deposit{}, err
	}
	if next.LPSupply, err = p.LPSupply.Add(minted); err != nil {
		return Deposit{}, err
	}
	next.Collateral = collateral
	next.Version++
	*p = next
	return d, nil
}

// RemoveLiquidity burns lpUnits and releases the proportional share of both
// reserves. held is the caller's LP balance. Neither reserve may fall below the
// dust floor, so the last units of a live pool cannot be withdrawn.
func (p *Pool) RemoveLiquidity(lpUnits, held fixed.Point) (Withdrawal, error) {
	if lpUnits.IsZero() {
		return Withdrawal{}, fmt.Errorf("%w: zero lp units", ErrInvalidAmount)
	}
	if held.LessThan(lpUnits) {
		return Withdrawal{}, fmt.Errorf("%w: holds %s, requested %s", ErrInsufficientLpUnits, held, lpUnits)
	}
	if p.LPSupply.LessThan(lpUnits) {
		return Withdrawal{}, fmt.Errorf("%w: supply %s, requested %s", ErrInsufficientLpUnits, p.LPSupply, lpUnits)
	}
	var w Withdrawal
	var err error
	if w.YesOut, err = fixed.MulDiv(lpUnits, p.Yes, p.LPSupply, fixed.Down); err != nil {
		return Withdrawal{}, err
	}
	if w.NoOut, err = fixed.MulDiv(lpUnits, p.No, p.LPSupply, fixed.Down); err != nil {
		return Withdrawal{}, err
	}

	next := *p
	if next.Yes, err = p.Yes.Sub(w.YesOut); err != nil {
		return Withdrawal{}, err
	}
	if next.No, err = p.No.Sub(w.NoOut); err != nil {
		return Withdrawal{}, err
	}
	if next.Yes.LessThan(p.MinReserve) || next.No.LessThan(p.MinReserve) || next.Yes.IsZero() || next.No.IsZero() {
		return Withdrawal{}, fmt.Errorf("%w: withdrawal would drain the pool", ErrInsufficientLiquidity)
	}
	if next.LPSupply, err = p.LPSupply.Sub(lpUnits); err != nil {
		return Withdrawal{}, err
	}
	next.Version++
	*p = next
	return w, nil
}
