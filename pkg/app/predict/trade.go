package predict

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/uhyunpark/hyperpredict/pkg/app/core/fixed"
	"github.com/uhyunpark/hyperpredict/pkg/app/core/outcome"
	"github.com/uhyunpark/hyperpredict/pkg/app/core/pool"
)

// Buy spends amountIn collateral on shares of o. It fails with
// ErrSlippageExceeded, leaving the market untouched, if fewer than minSharesOut
// shares would be received.
func (e *Engine) Buy(ctx context.Context, acct common.Address, marketID string, o outcome.Outcome, amountIn, minSharesOut fixed.Point) (Receipt, error) {
	return e.trade(ctx, acct, marketID, pool.KindBuy, o, amountIn, minSharesOut)
}

// Sell returns sharesIn shares of o for collateral, net of fees.
func (e *Engine) Sell(ctx context.Context, acct common.Address, marketID string, o outcome.Outcome, sharesIn, minAmountOut fixed.Point) (Receipt, error) {
	return e.trade(ctx, acct, marketID, pool.KindSell, o, sharesIn, minAmountOut)
}

// Swap exchanges amountIn shares of from for shares of the opposite outcome.
func (e *Engine) Swap(ctx context.Context, acct common.Address, marketID string, from outcome.Outcome, amountIn, minAmountOut fixed.Point) (Receipt, error) {
	return e.trade(ctx, acct, marketID, pool.KindSwap, from, amountIn, minAmountOut)
}

func quote(p *pool.Pool, kind pool.Kind, o outcome.Outcome, amount fixed.Point, fees pool.FeeSchedule) (pool.Quote, error) {
	switch kind {
	case pool.KindBuy:
		return p.QuoteBuy(o, amount, fees)
	case pool.KindSell:
		return p.QuoteSell(o, amount, fees)
	case pool.KindSwap:
		return p.QuoteSwap(o, amount, fees)
	}
	return pool.Quote{}, fmt.Errorf("unknown trade kind %d", kind)
}

func (e *Engine) trade(ctx context.Context, acct common.Address, marketID string, kind pool.Kind, o outcome.Outcome, amount, minOut fixed.Point) (Receipt, error) {
	if err := ctx.Err(); err != nil {
		return Receipt{}, err
	}
	var r Receipt
	_, err := e.mutate(marketID, func(tx *txn) error {
		if !tx.market.State.Trading() {
			return fmt.Errorf("%w: market %s is %s", ErrMarketClosed, marketID, tx.market.State)
		}
		q, err := quote(&tx.pool, kind, o, amount, tx.market.Fees)
		if err != nil {
			return err
		}
		if q.AmountOut.LessThan(minOut) {
			return fmt.Errorf("%w: %s out, minimum %s", ErrSlippageExceeded, q.AmountOut, minOut)
		}
		fees, err := tx.fees.Accrue(q)
		if err != nil {
			return err
		}
		if _, err := tx.book.Trade(&tx.pool, acct, q); err != nil {
			return err
		}
		tx.fees = fees
		tx.dirty = true

		r = Receipt{
			MarketID:    marketID,
			Account:     acct,
			Kind:        kind,
			Side:        kind.String(),
			Outcome:     o,
			AmountIn:    q.AmountIn,
			AmountOut:   q.AmountOut,
			CreatorFee:  q.CreatorFee,
			PlatformFee: q.PlatformFee,
			Price:       q.Price,
		}
		if r.YesPrice, err = tx.pool.Price(outcome.Yes); err != nil {
			return fmt.Errorf("price after trade: %w", err)
		}
		if r.NoPrice, err = tx.pool.Price(outcome.No); err != nil {
			return fmt.Errorf("price after trade: %w", err)
		}
		tx.emit(EventTrade, &r)
		return nil
	})
	if err != nil {
		e.logger.Debugw("trade_rejected", "market", marketID, "account", acct.Hex(), "side", kind.String(), "outcome", o.String(), "amount", amount.String(), "err", err)
		return Receipt{}, err
	}
	e.logger.Infow("trade_executed",
		"market", marketID,
		"account", acct.Hex(),
		"side", kind.String(),
		"outcome", o.String(),
		"in", r.AmountIn.String(),
		"out", r.AmountOut.String(),
		"yes_price", r.YesPrice.String(),
	)
	return r, nil
}

// AddLiquidity deposits amountIn collateral and returns the deposit, including
// minted LP units. minLpOut guards against the pool moving before commit.
func (e *Engine) AddLiquidity(ctx context.Context, acct common.Address, marketID string, amountIn, minLpOut fixed.Point) (pool.Deposit, error) {
	if err := ctx.Err(); err != nil {
		return pool.Deposit{}, err
	}
	var d pool.Deposit
	_, err := e.mutate(marketID, func(tx *txn) error {
		if !tx.market.State.Trading() {
			return fmt.Errorf("%w: market %s is %s", ErrMarketClosed, marketID, tx.market.State)
		}
		var err error
		if d, err = tx.book.AddLiquidity(&tx.pool, acct, amountIn); err != nil {
			return err
		}
		if d.LPMinted.LessThan(minLpOut) {
			return fmt.Errorf("%w: %s lp units, minimum %s", ErrSlippageExceeded, d.LPMinted, minLpOut)
		}
		tx.dirty = true
		tx.emit(EventLiquidity, nil)
		return nil
	})
	if err != nil {
		return pool.Deposit{}, err
	}
	e.logger.Infow("liquidity_added", "market", marketID, "account", acct.Hex(), "amount", amountIn.String(), "lp", d.LPMinted.String())
	return d, nil
}

// RemoveLiquidity burns lpUnits and credits the released YES and NO shares.
func (e *Engine) RemoveLiquidity(ctx context.Context, acct common.Address, marketID string, lpUnits fixed.Point) (pool.Withdrawal, error) {
	if err := ctx.Err(); err != nil {
		return pool.Withdrawal{}, err
	}
	var w pool.Withdrawal
	_, err := e.mutate(marketID, func(tx *txn) error {
		if !tx.market.State.Trading() {
			return fmt.Errorf("%w: market %s is %s", ErrMarketClosed, marketID, tx.market.State)
		}
		var err error
		if w, err = tx.book.RemoveLiquidity(&tx.pool, acct, lpUnits); err != nil {
			return err
		}
		tx.dirty = true
		tx.emit(EventLiquidity, nil)
		return nil
	})
	if err != nil {
		return pool.Withdrawal{}, err
	}
	e.logger.Infow("liquidity_removed", "market", marketID, "account", acct.Hex(), "lp", lpUnits.String(), "yes", w.YesOut.String(), "no", w.NoOut.String())
	return w, nil
}

// Merge redeems amount complete sets (one YES and one NO share each) for amount
// collateral while the market is open.
func (e *Engine) Merge(ctx context.Context, acct common.Address, marketID string, amount fixed.Point) (fixed.Point, error) {
	if err := ctx.Err(); err != nil {
		return fixed.Point{}, err
	}
	_, err := e.mutate(marketID, func(tx *txn) error {
		if !tx.market.State.Trading() {
			return fmt.Errorf("%w: market %s is %s", ErrMarketClosed, marketID, tx.market.State)
		}
		if _, err := tx.book.Merge(&tx.pool, acct, amount); err != nil {
			return err
		}
		tx.dirty = true
		return nil
	})
	if err != nil {
		return fixed.Point{}, err
	}
	e.logger.Infow("sets_merged", "market", marketID, "account", acct.Hex(), "amount", amount.String())
	return amount, nil
}
