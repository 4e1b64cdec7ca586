// Package predict is the prediction-market engine. It executes trades and
// liquidity changes against a market's pool and ledger, drives resolution and
// settlement, and persists every commit through a Store.
//
// Each market has its own writer lock; operations on different markets run in
// parallel. Reads are served from a snapshot published after each commit.
package predict

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/uhyunpark/hyperpredict/pkg/app/core/fixed"
	"github.com/uhyunpark/hyperpredict/pkg/app/core/ledger"
	"github.com/uhyunpark/hyperpredict/pkg/app/core/market"
	"github.com/uhyunpark/hyperpredict/pkg/app/core/pool"
	"github.com/uhyunpark/hyperpredict/pkg/app/core/resolution"
	"github.com/uhyunpark/hyperpredict/pkg/app/core/settlement"
	"github.com/uhyunpark/hyperpredict/pkg/util"
)

var (
	ErrMarketNotFound   = errors.New("market not found")
	ErrMarketClosed     = errors.New("market closed")
	ErrSlippageExceeded = errors.New("slippage exceeded")
	ErrMarketHalted     = errors.New("market halted")
	ErrInvalidMarket    = errors.New("invalid market")
)

type Config struct {
	// MinReserve is the dust floor for pool reserves.
	MinReserve fixed.Point
	// MaxFeeBps caps each of the creator and platform fee rates.
	MaxFeeBps uint32
	// DefaultDisputeWindow applies to markets created without one.
	DefaultDisputeWindow time.Duration
}

func DefaultConfig() Config {
	return Config{
		MinReserve:           fixed.FromRaw(1_000_000), // 0.001
		MaxFeeBps:            1000,
		DefaultDisputeWindow: 24 * time.Hour,
	}
}

type EventType string

const (
	EventMarketCreated EventType = "market_created"
	EventTrade         EventType = "trade"
	EventLiquidity     EventType = "liquidity"
	EventLifecycle     EventType = "lifecycle"
	EventRedeem        EventType = "redeem"
)

// Event is emitted after a commit, outside the market lock.
type Event struct {
	Type     EventType `json:"type"`
	Snapshot Snapshot  `json:"snapshot"`
	Receipt  *Receipt  `json:"receipt,omitempty"`
}

type Engine struct {
	cfg      Config
	store    Store
	resolver *resolution.Resolver
	clock    util.Clock
	logger   *zap.SugaredLogger

	markets *registry

	lmu       sync.RWMutex
	listeners []func(Event)
}

// New builds an engine and restores every market held by store.
func New(cfg Config, store Store, resolver *resolution.Resolver, clock util.Clock, logger *zap.SugaredLogger) (*Engine, error) {
	if clock == nil {
		clock = util.RealClock{}
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	if resolver == nil {
		resolver = resolution.NewResolver(nil, nil)
	}
	e := &Engine{
		cfg:      cfg,
		store:    store,
		resolver: resolver,
		clock:    clock,
		logger:   logger,
		markets:  newRegistry(),
	}

	records, err := store.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load markets: %w", err)
	}
	for _, rec := range records {
		ent := &entry{
			market:     rec.Market,
			pool:       rec.Pool,
			fees:       rec.Fees,
			settlement: rec.Settlement,
			book:       ledger.NewBook(rec.Market.ID),
		}
		ent.book.Restore(rec.Positions)
		ent.publish()
		if err := e.markets.register(ent); err != nil {
			return nil, err
		}
	}
	if len(records) > 0 {
		logger.Infow("markets_restored", "count", len(records))
	}
	return e, nil
}

// Subscribe registers fn for every event. fn must not block.
func (e *Engine) Subscribe(fn func(Event)) {
	e.lmu.Lock()
	defer e.lmu.Unlock()
	e.listeners = append(e.listeners, fn)
}

func (e *Engine) emit(events []Event) {
	if len(events) == 0 {
		return
	}
	e.lmu.RLock()
	listeners := e.listeners
	e.lmu.RUnlock()
	for _, ev := range events {
		for _, fn := range listeners {
			fn(ev)
		}
	}
}

// txn is the working copy of a market during one operation.
type txn struct {
	market     market.Market
	pool       pool.Pool
	fees       settlement.Fees
	settlement *settlement.Settlement
	book       *ledger.Book
	now        time.Time

	dirty  bool
	events []Event
}

func (tx *txn) emit(typ EventType, r *Receipt) {
	tx.events = append(tx.events, Event{Type: typ, Receipt: r})
}

// mutate runs fn as one atomic operation on market id. Time-based lifecycle
// transitions are applied first and persisted even if fn fails.
func (e *Engine) mutate(id string, fn func(tx *txn) error) (Snapshot, error) {
	snap, events, err := e.locked(id, fn)
	e.emit(events)
	return snap, err
}

func (e *Engine) locked(id string, fn func(tx *txn) error) (Snapshot, []Event, error) {
	ent, err := e.markets.get(id)
	if err != nil {
		return Snapshot{}, nil, err
	}
	ent.mu.Lock()
	defer ent.mu.Unlock()

	if ent.market.Halted {
		return Snapshot{}, nil, fmt.Errorf("%w: %s", ErrMarketHalted, id)
	}
	tx := &txn{
		market:     ent.market.Clone(),
		pool:       ent.pool,
		fees:       ent.fees,
		settlement: cloneSettlement(ent.settlement),
		book:       ent.book,
		now:        e.clock.Now(),
	}
	advanced, err := resolution.Advance(&tx.market, tx.now)
	if err != nil {
		return Snapshot{}, nil, err
	}
	base := tx.market.Clone()

	if err := fn(tx); err != nil {
		ent.book.Discard()
		if errors.Is(err, settlement.ErrReserveShortfall) {
			e.logger.Errorw("settlement_halted", "market", id, "err", err)
			base.Halted = true
			advanced = true
		}
		var events []Event
		if advanced {
			if cerr := e.commit(ent, base, ent.pool, ent.fees, ent.settlement); cerr != nil {
				e.logger.Errorw("lifecycle_commit_failed", "market", id, "err", cerr)
			} else {
				events = []Event{{Type: EventLifecycle, Snapshot: ent.snap.Load().clone()}}
			}
		}
		return Snapshot{}, events, err
	}
	if !tx.dirty && !advanced {
		return ent.snap.Load().clone(), nil, nil
	}

	prevState := ent.market.State
	if err := e.commit(ent, tx.market, tx.pool, tx.fees, tx.settlement); err != nil {
		return Snapshot{}, nil, err
	}
	snap := ent.snap.Load().clone()
	events := tx.events
	if snap.Market.State != prevState {
		events = append(events, Event{Type: EventLifecycle})
		e.logger.Infow("market_lifecycle", "market", id, "from", prevState.String(), "to", snap.Market.State.String())
	}
	for i := range events {
		events[i].Snapshot = snap.clone()
	}
	return snap, events, nil
}

func (e *Engine) commit(ent *entry, m market.Market, p pool.Pool, f settlement.Fees, s *settlement.Settlement) error {
	m.UpdatedAt = e.clock.Now()
	rec := Record{Market: m, Pool: p, Fees: f, Settlement: s, Positions: ent.book.Staged()}
	if err := e.store.Commit(rec); err != nil {
		ent.book.Discard()
		return fmt.Errorf("failed to commit market %s: %w", m.ID, err)
	}
	ent.book.Commit()
	ent.market, ent.pool, ent.fees, ent.settlement = m, p, f, s
	ent.publish()
	return nil
}

func cloneSettlement(s *settlement.Settlement) *settlement.Settlement {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}

// Close releases the store.
func (e *Engine) Close() error {
	return e.store.Close()
}
