package predict

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/uhyunpark/hyperpredict/pkg/app/core/fixed"
	"github.com/uhyunpark/hyperpredict/pkg/app/core/ledger"
	"github.com/uhyunpark/hyperpredict/pkg/app/core/market"
	"github.com/uhyunpark/hyperpredict/pkg/app/core/outcome"
	"github.com/uhyunpark/hyperpredict/pkg/app/core/pool"
	"github.com/uhyunpark/hyperpredict/pkg/app/core/settlement"
)

// GetMarket returns the last committed snapshot of a market.
func (e *Engine) GetMarket(marketID string) (Snapshot, error) {
	ent, err := e.markets.get(marketID)
	if err != nil {
		return Snapshot{}, err
	}
	return ent.snap.Load().clone(), nil
}

// ListMarkets returns snapshots of every market, oldest first.
func (e *Engine) ListMarkets() []Snapshot {
	entries := e.markets.list()
	out := make([]Snapshot, 0, len(entries))
	for _, ent := range entries {
		out = append(out, ent.snap.Load().clone())
	}
	return out
}

func (e *Engine) MarketCount() int { return e.markets.count() }

// GetPosition returns acct's position in a market; a zero position if it never
// interacted with it.
func (e *Engine) GetPosition(acct common.Address, marketID string) (ledger.Position, error) {
	ent, err := e.markets.get(marketID)
	if err != nil {
		return ledger.Position{}, err
	}
	return ent.book.Get(acct), nil
}

// ListPositions returns every position acct has opened, across markets.
func (e *Engine) ListPositions(acct common.Address) []ledger.Position {
	var out []ledger.Position
	for _, ent := range e.markets.list() {
		if pos, ok := ent.book.Lookup(acct); ok {
			out = append(out, pos)
		}
	}
	return out
}

// QuoteBuy prices a buy against the committed snapshot without mutating anything.
func (e *Engine) QuoteBuy(marketID string, o outcome.Outcome, amountIn fixed.Point) (pool.Quote, error) {
	return e.quote(marketID, pool.KindBuy, o, amountIn)
}

func (e *Engine) QuoteSell(marketID string, o outcome.Outcome, sharesIn fixed.Point) (pool.Quote, error) {
	return e.quote(marketID, pool.KindSell, o, sharesIn)
}

func (e *Engine) QuoteSwap(marketID string, from outcome.Outcome, amountIn fixed.Point) (pool.Quote, error) {
	return e.quote(marketID, pool.KindSwap, from, amountIn)
}

func (e *Engine) quote(marketID string, kind pool.Kind, o outcome.Outcome, amount fixed.Point) (pool.Quote, error) {
	snap, err := e.GetMarket(marketID)
	if err != nil {
		return pool.Quote{}, err
	}
	if !snap.Market.State.Trading() || !e.clock.Now().Before(snap.Market.CutoffTime) {
		return pool.Quote{}, fmt.Errorf("%w: market %s", ErrMarketClosed, marketID)
	}
	p := snap.Pool
	return quote(&p, kind, o, amount, snap.Market.Fees)
}

// Valuation marks acct's position to market: current prices while trading, the
// resolved payout once the outcome is known.
func (e *Engine) Valuation(acct common.Address, marketID string) (Valuation, error) {
	snap, err := e.GetMarket(marketID)
	if err != nil {
		return Valuation{}, err
	}
	pos, err := e.GetPosition(acct, marketID)
	if err != nil {
		return Valuation{}, err
	}

	var value fixed.Point
	switch {
	case snap.Settlement != nil:
		value, err = snap.Settlement.PayoutFor(pos)
	case snap.Market.State.Final() && snap.Market.Resolution != nil:
		var yes, no fixed.Point
		if yes, no, err = settlement.Payouts(snap.Market.Resolution.Outcome); err == nil {
			value, err = markToMarket(pos, snap.Pool, yes, no)
		}
	default:
		value, err = markToMarket(pos, snap.Pool, snap.YesPrice, snap.NoPrice)
	}
	if err != nil {
		return Valuation{}, err
	}

	pnl := value.Decimal().Add(pos.Withdrawn.Decimal()).Sub(pos.Invested.Decimal())
	v := Valuation{Position: pos, Value: value, PnL: pnl}
	if !pos.Invested.IsZero() {
		v.PnLPercent = pnl.Mul(decimal.NewFromInt(100)).DivRound(pos.Invested.Decimal(), 4)
	}
	return v, nil
}

func markToMarket(pos ledger.Position, p pool.Pool, yesPrice, noPrice fixed.Point) (fixed.Point, error) {
	yes, err := pos.Yes.Mul(yesPrice, fixed.Down)
	if err != nil {
		return fixed.Point{}, err
	}
	no, err := pos.No.Mul(noPrice, fixed.Down)
	if err != nil {
		return fixed.Point{}, err
	}
	total, err := yes.Add(no)
	if err != nil || pos.LPUnits.IsZero() || p.LPSupply.IsZero() {
		return total, err
	}
	reserveYes, err := p.Yes.Mul(yesPrice, fixed.Down)
	if err != nil {
		return fixed.Point{}, err
	}
	reserveNo, err := p.No.Mul(noPrice, fixed.Down)
	if err != nil {
		return fixed.Point{}, err
	}
	reserves, err := reserveYes.Add(reserveNo)
	if err != nil {
		return fixed.Point{}, err
	}
	claim, err := fixed.MulDiv(pos.LPUnits, reserves, p.LPSupply, fixed.Down)
	if err != nil {
		return fixed.Point{}, err
	}
	return total.Add(claim)
}

// Lifecycle returns the current state of a market.
func (e *Engine) Lifecycle(marketID string) (market.Lifecycle, error) {
	snap, err := e.GetMarket(marketID)
	if err != nil {
		return 0, err
	}
	return snap.Market.State, nil
}
