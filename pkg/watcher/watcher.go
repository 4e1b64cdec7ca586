// Package watcher executes resting limit orders against the engine. It polls
// market snapshots and fires a buy once the outcome price falls to the limit,
// or a sell once it rises to it.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/uhyunpark/hyperpredict/pkg/app/core/fixed"
	"github.com/uhyunpark/hyperpredict/pkg/app/core/outcome"
	"github.com/uhyunpark/hyperpredict/pkg/app/core/pool"
	"github.com/uhyunpark/hyperpredict/pkg/app/predict"
	"github.com/uhyunpark/hyperpredict/pkg/util"
)

var (
	ErrInvalidOrder  = errors.New("invalid limit order")
	ErrOrderNotFound = errors.New("limit order not found")
	ErrOrderInFlight = errors.New("limit order is executing")
)

// Engine is the part of *predict.Engine the watcher trades through.
type Engine interface {
	GetMarket(marketID string) (predict.Snapshot, error)
	Buy(ctx context.Context, acct common.Address, marketID string, o outcome.Outcome, amountIn, minSharesOut fixed.Point) (predict.Receipt, error)
	Sell(ctx context.Context, acct common.Address, marketID string, o outcome.Outcome, sharesIn, minAmountOut fixed.Point) (predict.Receipt, error)
}

type Order struct {
	ID       string          `json:"id"`
	Account  common.Address  `json:"account"`
	MarketID string          `json:"market_id"`
	Outcome  outcome.Outcome `json:"outcome"`
	Side     pool.Kind       `json:"side"`
	// Limit is the worst acceptable outcome price: the most a buy pays, the
	// least a sell accepts.
	Limit fixed.Point `json:"limit"`
	// Amount is collateral for a buy and shares for a sell.
	Amount    fixed.Point `json:"amount"`
	MinOut    fixed.Point `json:"min_out"`
	CreatedAt time.Time   `json:"created_at"`
}

func (o Order) triggered(snap predict.Snapshot) bool {
	price := snap.YesPrice
	if o.Outcome == outcome.No {
		price = snap.NoPrice
	}
	if o.Side == pool.KindBuy {
		return !price.GreaterThan(o.Limit)
	}
	return !price.LessThan(o.Limit)
}

// Fill reports an order leaving the book: executed, or dropped with Err.
type Fill struct {
	Order   Order
	Receipt predict.Receipt
	Err     error
}

type Watcher struct {
	engine   Engine
	clock    util.Clock
	interval time.Duration
	logger   *zap.SugaredLogger

	mu     sync.Mutex
	orders map[string]Order
	// inflight holds orders claimed by Poll; they cannot be cancelled until
	// their trade returns.
	inflight map[string]Order
	onFill   []func(Fill)
}

func New(engine Engine, clock util.Clock, interval time.Duration, logger *zap.SugaredLogger) *Watcher {
	if clock == nil {
		clock = util.RealClock{}
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Watcher{
		engine:   engine,
		clock:    clock,
		interval: interval,
		logger:   logger,
		orders:   make(map[string]Order),
		inflight: make(map[string]Order),
	}
}

// OnFill registers fn for every fill. fn runs on the polling goroutine.
func (w *Watcher) OnFill(fn func(Fill)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onFill = append(w.onFill, fn)
}

// Place validates o and rests it until it triggers or is cancelled.
func (w *Watcher) Place(o Order) (Order, error) {
	switch {
	case !o.Outcome.Tradable():
		return Order{}, fmt.Errorf("%w: outcome %s", ErrInvalidOrder, o.Outcome)
	case o.Side != pool.KindBuy && o.Side != pool.KindSell:
		return Order{}, fmt.Errorf("%w: side %s", ErrInvalidOrder, o.Side)
	case o.Limit.IsZero() || !o.Limit.LessThan(fixed.One()):
		return Order{}, fmt.Errorf("%w: limit %s outside (0, 1)", ErrInvalidOrder, o.Limit)
	case o.Amount.IsZero():
		return Order{}, fmt.Errorf("%w: zero amount", ErrInvalidOrder)
	}
	if _, err := w.engine.GetMarket(o.MarketID); err != nil {
		return Order{}, err
	}
	o.ID = uuid.NewString()
	o.CreatedAt = w.clock.Now()

	w.mu.Lock()
	w.orders[o.ID] = o
	w.mu.Unlock()
	w.logger.Infow("limit_order_placed", "order", o.ID, "market", o.MarketID, "side", o.Side.String(), "outcome", o.Outcome.String(), "limit", o.Limit.String())
	return o, nil
}

func (w *Watcher) Cancel(id string) (Order, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, busy := w.inflight[id]; busy {
		return Order{}, fmt.Errorf("%w: %s", ErrOrderInFlight, id)
	}
	o, ok := w.orders[id]
	if !ok {
		return Order{}, fmt.Errorf("%w: %s", ErrOrderNotFound, id)
	}
	delete(w.orders, id)
	return o, nil
}

// Pending returns resting orders, oldest first.
func (w *Watcher) Pending() []Order {
	w.mu.Lock()
	out := make([]Order, 0, len(w.orders))
	for _, o := range w.orders {
		out = append(out, o)
	}
	w.mu.Unlock()
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Poll checks every resting order once and executes the triggered ones.
// Orders on markets that stopped trading are dropped; orders that only missed
// their MinOut stay on the book.
func (w *Watcher) Poll(ctx context.Context) []Fill {
	var fills []Fill
	for _, pending := range w.Pending() {
		if ctx.Err() != nil {
			break
		}
		snap, err := w.engine.GetMarket(pending.MarketID)
		switch {
		case err != nil:
		case !snap.Market.State.Trading() || snap.Market.Halted:
			err = fmt.Errorf("%w: market %s is %s", predict.ErrMarketClosed, pending.MarketID, snap.Market.State)
		case !pending.triggered(snap):
			continue
		}

		o, ok := w.claim(pending.ID)
		if !ok {
			continue
		}
		var r predict.Receipt
		if err == nil {
			r, err = w.execute(ctx, o)
			if errors.Is(err, predict.ErrSlippageExceeded) || errors.Is(err, context.Canceled) {
				w.release(o)
				w.logger.Debugw("limit_order_deferred", "order", o.ID, "err", err)
				continue
			}
		}
		fills = append(fills, w.finish(o, r, err))
	}
	return fills
}

func (w *Watcher) execute(ctx context.Context, o Order) (predict.Receipt, error) {
	if o.Side == pool.KindBuy {
		return w.engine.Buy(ctx, o.Account, o.MarketID, o.Outcome, o.Amount, o.MinOut)
	}
	return w.engine.Sell(ctx, o.Account, o.MarketID, o.Outcome, o.Amount, o.MinOut)
}

// claim takes a resting order off the book for execution. It reports false if
// the order was cancelled since it was listed.
func (w *Watcher) claim(id string) (Order, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	o, ok := w.orders[id]
	if !ok {
		return Order{}, false
	}
	delete(w.orders, id)
	w.inflight[id] = o
	return o, true
}

// release puts a claimed order back on the book.
func (w *Watcher) release(o Order) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.inflight, o.ID)
	w.orders[o.ID] = o
}

func (w *Watcher) finish(o Order, r predict.Receipt, err error) Fill {
	w.mu.Lock()
	delete(w.inflight, o.ID)
	listeners := w.onFill
	w.mu.Unlock()

	f := Fill{Order: o, Receipt: r, Err: err}
	if err != nil {
		w.logger.Warnw("limit_order_dropped", "order", o.ID, "market", o.MarketID, "err", err)
	} else {
		w.logger.Infow("limit_order_filled", "order", o.ID, "market", o.MarketID, "in", r.AmountIn.String(), "out", r.AmountOut.String())
	}
	for _, fn := range listeners {
		fn(f)
	}
	return f
}

// Run polls every interval until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-w.clock.After(w.interval):
			w.Poll(ctx)
		}
	}
}
