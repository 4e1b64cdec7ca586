package ledger

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/uhyunpark/hyperpredict/pkg/app/core/fixed"
	"github.com/uhyunpark/hyperpredict/pkg/app/core/pool"
)

// Trade applies a quote to p and moves the shares between the pool and acct.
// The pool is only mutated after the position update has been validated.
func (b *Book) Trade(p *pool.Pool, acct common.Address, q pool.Quote) (Position, error) {
	pos := b.current(acct)
	var err error
	switch q.Kind {
	case pool.KindBuy:
		var held fixed.Point
		if held, err = pos.Shares(q.Outcome).Add(q.AmountOut); err != nil {
			return Position{}, err
		}
		pos.setShares(q.Outcome, held)
		if pos.Invested, err = pos.Invested.Add(q.AmountIn); err != nil {
			return Position{}, err
		}
	case pool.KindSell:
		var held fixed.Point
		if held, err = debit(pos.Shares(q.Outcome), q.AmountIn, q.Outcome.String()); err != nil {
			return Position{}, err
		}
		pos.setShares(q.Outcome, held)
		if pos.Withdrawn, err = pos.Withdrawn.Add(q.AmountOut); err != nil {
			return Position{}, err
		}
	case pool.KindSwap:
		var from, to fixed.Point
		if from, err = debit(pos.Shares(q.Outcome), q.AmountIn, q.Outcome.String()); err != nil {
			return Position{}, err
		}
		if to, err = pos.Shares(q.Outcome.Opposite()).Add(q.AmountOut); err != nil {
			return Position{}, err
		}
		pos.setShares(q.Outcome, from)
		pos.setShares(q.Outcome.Opposite(), to)
	default:
		return Position{}, fmt.Errorf("unknown trade kind %d", q.Kind)
	}
	if err := p.Apply(q); err != nil {
		return Position{}, err
	}
	b.staged[acct] = pos
	return pos, nil
}

// AddLiquidity deposits amount collateral into p and credits the minted LP units
// plus any shares the pool returned.
func (b *Book) AddLiquidity(p *pool.Pool, acct common.Address, amount fixed.Point) (pool.Deposit, error) {
	pos := b.current(acct)
	next := *p
	d, err := next.AddLiquidity(amount)
	if err != nil {
		return pool.Deposit{}, err
	}
	if pos.LPUnits, err = pos.LPUnits.Add(d.LPMinted); err != nil {
		return pool.Deposit{}, err
	}
	if pos.Yes, err = pos.Yes.Add(d.YesReturned); err != nil {
		return pool.Deposit{}, err
	}
	if pos.No, err = pos.No.Add(d.NoReturned); err != nil {
		return pool.Deposit{}, err
	}
	if pos.Invested, err = pos.Invested.Add(amount); err != nil {
		return pool.Deposit{}, err
	}
	*p = next
	b.staged[acct] = pos
	return d, nil
}

// RemoveLiquidity burns lpUnits of acct and credits the released shares.
func (b *Book) RemoveLiquidity(p *pool.Pool, acct common.Address, lpUnits fixed.Point) (pool.Withdrawal, error) {
	pos := b.current(acct)
	next := *p
	w, err := next.RemoveLiquidity(lpUnits, pos.LPUnits)
	if err != nil {
		return pool.Withdrawal{}, err
	}
	if pos.LPUnits, err = debit(pos.LPUnits, lpUnits, "lp"); err != nil {
		return pool.Withdrawal{}, err
	}
	if pos.Yes, err = pos.Yes.Add(w.YesOut); err != nil {
		return pool.Withdrawal{}, err
	}
	if pos.No, err = pos.No.Add(w.NoOut); err != nil {
		return pool.Withdrawal{}, err
	}
	*p = next
	b.staged[acct] = pos
	return w, nil
}

// Merge returns amount complete sets (amount YES plus amount NO) for amount
// collateral.
func (b *Book) Merge(p *pool.Pool, acct common.Address, amount fixed.Point) (Position, error) {
	if amount.IsZero() {
		return Position{}, fmt.Errorf("%w: zero merge", pool.ErrInvalidAmount)
	}
	pos := b.current(acct)
	var err error
	if pos.Yes, err = debit(pos.Yes, amount, "YES"); err != nil {
		return Position{}, err
	}
	if pos.No, err = debit(pos.No, amount, "NO"); err != nil {
		return Position{}, err
	}
	if pos.Withdrawn, err = pos.Withdrawn.Add(amount); err != nil {
		return Position{}, err
	}
	next := *p
	if err := next.BurnSets(amount); err != nil {
		return Position{}, err
	}
	*p = next
	b.staged[acct] = pos
	return pos, nil
}

// Redeem closes out acct after settlement. pay computes and records the payout
// for the position; shares and LP units are zeroed only if pay succeeds.
func (b *Book) Redeem(acct common.Address, pay func(Position) (fixed.Point, error)) (fixed.Point, error) {
	pos := b.current(acct)
	if pos.Empty() {
		return fixed.Zero(), nil
	}
	amount, err := pay(pos)
	if err != nil {
		return fixed.Point{}, err
	}
	if pos.Withdrawn, err = pos.Withdrawn.Add(amount); err != nil {
		return fixed.Point{}, err
	}
	pos.Yes, pos.No, pos.LPUnits = fixed.Zero(), fixed.Zero(), fixed.Zero()
	b.staged[acct] = pos
	return amount, nil
}
