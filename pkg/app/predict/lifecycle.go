package predict

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/uhyunpark/hyperpredict/pkg/app/core/fixed"
	"github.com/uhyunpark/hyperpredict/pkg/app/core/market"
	"github.com/uhyunpark/hyperpredict/pkg/app/core/oracle"
	"github.com/uhyunpark/hyperpredict/pkg/app/core/resolution"
	"github.com/uhyunpark/hyperpredict/pkg/app/core/settlement"
)

// SubmitVerdict offers a resolution verdict for a market and returns the
// resulting lifecycle state. Oracle lookups and signature checks run before the
// market lock is taken.
func (e *Engine) SubmitVerdict(ctx context.Context, marketID string, v oracle.Verdict) (market.Lifecycle, error) {
	snap, err := e.GetMarket(marketID)
	if err != nil {
		return 0, err
	}
	accepted, err := e.resolver.Prepare(ctx, snap.Market, v, e.clock.Now())
	if err != nil {
		e.logger.Warnw("verdict_rejected", "market", marketID, "validator", v.Validator, "outcome", v.Outcome.String(), "err", err)
		return snap.Market.State, err
	}

	next, err := e.mutate(marketID, func(tx *txn) error {
		if err := resolution.Apply(&tx.market, accepted, tx.now); err != nil {
			return err
		}
		tx.dirty = true
		return nil
	})
	if err != nil {
		e.logger.Warnw("verdict_rejected", "market", marketID, "validator", v.Validator, "outcome", v.Outcome.String(), "err", err)
		if cur, gerr := e.GetMarket(marketID); gerr == nil {
			return cur.Market.State, err
		}
		return snap.Market.State, err
	}
	e.logger.Infow("verdict_accepted",
		"market", marketID,
		"validator", accepted.Validator,
		"outcome", accepted.Outcome.String(),
		"state", next.Market.State.String(),
	)
	return next.Market.State, nil
}

// Tick applies time-based transitions (cutoff, dispute expiry) to every market
// and returns how many changed.
func (e *Engine) Tick(ctx context.Context) (int, error) {
	changed := 0
	for _, ent := range e.markets.list() {
		if err := ctx.Err(); err != nil {
			return changed, err
		}
		prev := ent.snap.Load().Market
		snap, err := e.mutate(prev.ID, func(*txn) error { return nil })
		if errors.Is(err, ErrMarketHalted) {
			continue
		}
		if err != nil {
			return changed, err
		}
		if snap.Market.State != prev.State {
			changed++
		}
	}
	return changed, nil
}

// Settle computes the payout schedule of a resolved market and moves it to
// Settled. Settling an already settled market returns the existing schedule.
func (e *Engine) Settle(ctx context.Context, marketID string) (*settlement.Settlement, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	snap, err := e.mutate(marketID, func(tx *txn) error {
		return e.settle(tx)
	})
	if err != nil {
		return nil, err
	}
	return snap.Settlement, nil
}

func (e *Engine) settle(tx *txn) error {
	switch tx.market.State {
	case market.Settled:
		return nil
	case market.Resolved:
	default:
		return fmt.Errorf("%w: market %s is %s", settlement.ErrNotResolved, tx.market.ID, tx.market.State)
	}
	yes, no, _, err := tx.book.Totals()
	if err != nil {
		return err
	}
	s, err := settlement.Compute(tx.market.Resolution.Outcome, tx.pool, yes, no, tx.now)
	if err != nil {
		return err
	}
	if err := tx.market.Transition(market.Settled, tx.now); err != nil {
		return err
	}
	tx.settlement = s
	tx.dirty = true
	e.logger.Infow("market_settled",
		"market", tx.market.ID,
		"outcome", s.Outcome.String(),
		"obligation", s.Obligation.String(),
		"collateral", s.Collateral.String(),
	)
	return nil
}

// Redeem pays out acct's shares and LP units of a resolved market, settling it
// first if needed.
func (e *Engine) Redeem(ctx context.Context, acct common.Address, marketID string) (fixed.Point, error) {
	if err := ctx.Err(); err != nil {
		return fixed.Point{}, err
	}
	var amount fixed.Point
	_, err := e.mutate(marketID, func(tx *txn) error {
		if err := e.settle(tx); err != nil {
			return err
		}
		var err error
		if amount, err = tx.settlement.Redeem(tx.book, acct); err != nil {
			return err
		}
		tx.dirty = true
		tx.emit(EventRedeem, nil)
		return nil
	})
	if err != nil {
		return fixed.Point{}, err
	}
	e.logger.Infow("position_redeemed", "market", marketID, "account", acct.Hex(), "amount", amount.String())
	return amount, nil
}

// CollectFees drains the creator or platform fee accumulator of a market.
func (e *Engine) CollectFees(ctx context.Context, marketID string, to settlement.Recipient) (fixed.Point, error) {
	if err := ctx.Err(); err != nil {
		return fixed.Point{}, err
	}
	var amount fixed.Point
	_, err := e.mutate(marketID, func(tx *txn) error {
		var err error
		if amount, tx.fees, err = tx.fees.Collect(to); err != nil {
			return err
		}
		tx.dirty = !amount.IsZero()
		return nil
	})
	if err != nil {
		return fixed.Point{}, err
	}
	e.logger.Infow("fees_collected", "market", marketID, "recipient", string(to), "amount", amount.String())
	return amount, nil
}
