package predict_test

import (
	"context"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uhyunpark/hyperpredict/pkg/app/core/fixed"
	"github.com/uhyunpark/hyperpredict/pkg/app/core/ledger"
	"github.com/uhyunpark/hyperpredict/pkg/app/core/market"
	"github.com/uhyunpark/hyperpredict/pkg/app/core/oracle"
	"github.com/uhyunpark/hyperpredict/pkg/app/core/outcome"
	"github.com/uhyunpark/hyperpredict/pkg/app/core/resolution"
	"github.com/uhyunpark/hyperpredict/pkg/app/core/settlement"
	"github.com/uhyunpark/hyperpredict/pkg/app/predict"
	"github.com/uhyunpark/hyperpredict/pkg/storage"
	"github.com/uhyunpark/hyperpredict/pkg/util"
)

var (
	creator = common.HexToAddress("0x1000000000000000000000000000000000000001")
	alice   = common.HexToAddress("0x2000000000000000000000000000000000000002")
	bob     = common.HexToAddress("0x3000000000000000000000000000000000000003")
	start   = time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
)

// idSigner accepts a signature equal to the validator id.
type idSigner struct{}

func (idSigner) Verify(id string, _, sig []byte) bool { return string(sig) == id }

type harness struct {
	t      *testing.T
	ctx    context.Context
	clock  *util.ManualClock
	store  *storage.MemStore
	engine *predict.Engine
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{t: t, ctx: context.Background(), clock: util.NewManualClock(start), store: storage.NewMemStore()}
	h.engine = h.open(h.store)
	return h
}

func (h *harness) open(store predict.Store) *predict.Engine {
	h.t.Helper()
	e, err := predict.New(predict.DefaultConfig(), store, resolution.NewResolver(nil, idSigner{}), h.clock, nil)
	require.NoError(h.t, err)
	return e
}

func quorum() oracle.Source {
	return oracle.Quorum{Validators: []string{"v1", "v2", "v3"}, Threshold: 2}
}

func (h *harness) create(liquidity string, creatorBps, platformBps uint32) string {
	h.t.Helper()
	id, err := h.engine.CreateMarket(h.ctx, predict.CreateMarketRequest{
		Title:            "Will it rain in Lisbon on May 2?",
		Category:         "weather",
		Creator:          creator,
		CutoffTime:       start.Add(time.Hour),
		Source:           quorum(),
		InitialLiquidity: fixed.MustParse(liquidity),
		CreatorFeeBps:    creatorBps,
		PlatformFeeBps:   platformBps,
		DisputeWindow:    30 * time.Minute,
	})
	require.NoError(h.t, err)
	return id
}

func (h *harness) vote(id, validator string, o outcome.Outcome) (market.Lifecycle, error) {
	return h.engine.SubmitVerdict(h.ctx, id, oracle.Verdict{
		Outcome:   o,
		Evidence:  "https://example.org/observations/" + validator,
		Validator: validator,
		Signature: []byte(validator),
	})
}

func TestBuyMovesPrice(t *testing.T) {
	h := newHarness(t)
	id := h.create("1000", 0, 0)

	snap, err := h.engine.GetMarket(id)
	require.NoError(t, err)
	assert.Equal(t, market.Open, snap.Market.State)
	assert.Equal(t, fixed.MustParse("0.5"), snap.YesPrice)

	r, err := h.engine.Buy(h.ctx, alice, id, outcome.Yes, fixed.FromUnits(100), fixed.Zero())
	require.NoError(t, err)
	assert.Equal(t, fixed.MustParse("190.909090909"), r.AmountOut)

	snap, err = h.engine.GetMarket(id)
	require.NoError(t, err)
	assert.True(t, snap.YesPrice.GreaterThan(fixed.MustParse("0.5")))
	assert.True(t, snap.NoPrice.LessThan(fixed.MustParse("0.5")))
	sum, err := snap.YesPrice.Add(snap.NoPrice)
	require.NoError(t, err)
	assert.Equal(t, fixed.One(), sum)

	pos, err := h.engine.GetPosition(alice, id)
	require.NoError(t, err)
	assert.Equal(t, r.AmountOut, pos.Yes)
	assert.Equal(t, fixed.FromUnits(100), pos.Invested)
}

func TestReceiptCarriesPostTradePrices(t *testing.T) {
	h := newHarness(t)
	id := h.create("1000", 100, 50)

	buy, err := h.engine.Buy(h.ctx, alice, id, outcome.Yes, fixed.FromUnits(80), fixed.Zero())
	require.NoError(t, err)
	sell, err := h.engine.Sell(h.ctx, alice, id, outcome.Yes, fixed.FromUnits(30), fixed.Zero())
	require.NoError(t, err)

	snap, err := h.engine.GetMarket(id)
	require.NoError(t, err)
	assert.Equal(t, snap.YesPrice, sell.YesPrice)
	assert.Equal(t, snap.NoPrice, sell.NoPrice)
	for _, r := range []predict.Receipt{buy, sell} {
		require.False(t, r.YesPrice.IsZero())
		sum, err := r.YesPrice.Add(r.NoPrice)
		require.NoError(t, err)
		assert.Equal(t, fixed.One(), sum)
	}
	assert.True(t, buy.YesPrice.GreaterThan(sell.YesPrice))
}

func TestMergeReturnsCollateral(t *testing.T) {
	h := newHarness(t)
	id := h.create("1000", 0, 0)

	_, err := h.engine.Buy(h.ctx, alice, id, outcome.Yes, fixed.FromUnits(100), fixed.Zero())
	require.NoError(t, err)
	_, err = h.engine.Buy(h.ctx, alice, id, outcome.No, fixed.FromUnits(100), fixed.Zero())
	require.NoError(t, err)
	before, err := h.engine.GetPosition(alice, id)
	require.NoError(t, err)
	snapBefore, err := h.engine.GetMarket(id)
	require.NoError(t, err)

	sets := fixed.FromUnits(150)
	out, err := h.engine.Merge(h.ctx, alice, id, sets)
	require.NoError(t, err)
	assert.Equal(t, sets, out)

	after, err := h.engine.GetPosition(alice, id)
	require.NoError(t, err)
	wantYes, err := before.Yes.Sub(sets)
	require.NoError(t, err)
	wantNo, err := before.No.Sub(sets)
	require.NoError(t, err)
	assert.Equal(t, wantYes, after.Yes)
	assert.Equal(t, wantNo, after.No)
	assert.Equal(t, sets, after.Withdrawn)

	snapAfter, err := h.engine.GetMarket(id)
	require.NoError(t, err)
	wantCollateral, err := snapBefore.Pool.Collateral.Sub(sets)
	require.NoError(t, err)
	assert.Equal(t, wantCollateral, snapAfter.Pool.Collateral)
	assert.Equal(t, snapBefore.YesPrice, snapAfter.YesPrice)

	// more sets than the smaller side
	_, err = h.engine.Merge(h.ctx, alice, id, fixed.FromUnits(100))
	require.ErrorIs(t, err, ledger.ErrNegativeBalance)

	h.clock.Advance(time.Hour)
	_, err = h.engine.Merge(h.ctx, alice, id, fixed.One())
	require.ErrorIs(t, err, predict.ErrMarketClosed)
}

func TestSlippageLeavesMarketUntouched(t *testing.T) {
	h := newHarness(t)
	id := h.create("1000", 0, 0)
	before, err := h.engine.GetMarket(id)
	require.NoError(t, err)

	q, err := h.engine.QuoteBuy(id, outcome.Yes, fixed.FromUnits(100))
	require.NoError(t, err)
	tooMuch, err := q.AmountOut.Add(fixed.FromRaw(1))
	require.NoError(t, err)

	_, err = h.engine.Buy(h.ctx, alice, id, outcome.Yes, fixed.FromUnits(100), tooMuch)
	assert.ErrorIs(t, err, predict.ErrSlippageExceeded)

	after, err := h.engine.GetMarket(id)
	require.NoError(t, err)
	assert.Equal(t, before, after)
	pos, err := h.engine.GetPosition(alice, id)
	require.NoError(t, err)
	assert.True(t, pos.Empty())
}

func TestGetMarketIsIdempotent(t *testing.T) {
	h := newHarness(t)
	id := h.create("500", 100, 50)
	_, err := h.engine.Buy(h.ctx, alice, id, outcome.No, fixed.FromUnits(20), fixed.Zero())
	require.NoError(t, err)

	first, err := h.engine.GetMarket(id)
	require.NoError(t, err)
	second, err := h.engine.GetMarket(id)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestSnapshotsDoNotAlias(t *testing.T) {
	h := newHarness(t)
	id, err := h.engine.CreateMarket(h.ctx, predict.CreateMarketRequest{
		Title:            "Will the ferry run on time?",
		Tags:             []string{"transport", "lisbon"},
		Creator:          creator,
		CutoffTime:       start.Add(time.Hour),
		Source:           quorum(),
		InitialLiquidity: fixed.FromUnits(100),
	})
	require.NoError(t, err)
	h.clock.Advance(time.Hour)
	_, err = h.vote(id, "v1", outcome.Yes)
	require.NoError(t, err)

	snap, err := h.engine.GetMarket(id)
	require.NoError(t, err)
	require.Len(t, snap.Market.Attestations, 1)
	snap.Market.Tags[0] = "tampered"
	snap.Market.Attestations[0].Outcome = outcome.No
	snap.Market.Attestations[0].Signature[0] = 'x'

	listed := h.engine.ListMarkets()
	require.Len(t, listed, 1)
	listed[0].Market.Tags[1] = "tampered"

	again, err := h.engine.GetMarket(id)
	require.NoError(t, err)
	assert.Equal(t, []string{"transport", "lisbon"}, again.Market.Tags)
	assert.Equal(t, outcome.Yes, again.Market.Attestations[0].Outcome)
	assert.Equal(t, []byte("v1"), again.Market.Attestations[0].Signature)
}

func TestTradingClosesAtCutoff(t *testing.T) {
	h := newHarness(t)
	id := h.create("1000", 0, 0)
	h.clock.Advance(time.Hour)

	_, err := h.engine.Buy(h.ctx, alice, id, outcome.Yes, fixed.FromUnits(1), fixed.Zero())
	assert.ErrorIs(t, err, predict.ErrMarketClosed)
	_, err = h.engine.QuoteBuy(id, outcome.Yes, fixed.FromUnits(1))
	assert.ErrorIs(t, err, predict.ErrMarketClosed)
	_, err = h.engine.AddLiquidity(h.ctx, alice, id, fixed.FromUnits(1), fixed.Zero())
	assert.ErrorIs(t, err, predict.ErrMarketClosed)

	state, err := h.engine.Lifecycle(id)
	require.NoError(t, err)
	assert.Equal(t, market.PendingResolution, state)
}

func TestTickAdvancesLifecycle(t *testing.T) {
	h := newHarness(t)
	id := h.create("100", 0, 0)

	n, err := h.engine.Tick(h.ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	h.clock.Advance(2 * time.Hour)
	n, err = h.engine.Tick(h.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = h.vote(id, "v1", outcome.Yes)
	require.NoError(t, err)
	state, err := h.vote(id, "v2", outcome.No)
	require.NoError(t, err)
	assert.Equal(t, market.Disputed, state)

	h.clock.Advance(31 * time.Minute)
	n, err = h.engine.Tick(h.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	snap, err := h.engine.GetMarket(id)
	require.NoError(t, err)
	assert.Equal(t, market.Resolved, snap.Market.State)
	assert.Equal(t, outcome.Void, snap.Market.Resolution.Outcome)
}

func TestQuorumResolution(t *testing.T) {
	h := newHarness(t)
	id := h.create("1000", 0, 0)

	_, err := h.vote(id, "v1", outcome.Yes)
	assert.ErrorIs(t, err, resolution.ErrNotAwaitingVerdict)

	h.clock.Advance(time.Hour)
	state, err := h.vote(id, "v3", outcome.No)
	require.NoError(t, err)
	assert.Equal(t, market.PendingResolution, state, "a lone dissenter must not resolve")

	state, err = h.vote(id, "v1", outcome.Yes)
	require.NoError(t, err)
	assert.Equal(t, market.Disputed, state)

	state, err = h.vote(id, "v2", outcome.Yes)
	require.NoError(t, err)
	assert.Equal(t, market.Resolved, state)

	_, err = h.vote(id, "v1", outcome.No)
	assert.ErrorIs(t, err, resolution.ErrNotAwaitingVerdict)
}

func TestSettlementPaysWinnersAndLPs(t *testing.T) {
	h := newHarness(t)
	id := h.create("1000", 100, 100)
	deposited := fixed.FromUnits(1000)

	buy := func(acct common.Address, o outcome.Outcome, amount uint64) {
		_, err := h.engine.Buy(h.ctx, acct, id, o, fixed.FromUnits(amount), fixed.Zero())
		require.NoError(t, err)
		deposited, err = deposited.Add(fixed.FromUnits(amount))
		require.NoError(t, err)
	}
	buy(alice, outcome.Yes, 120)
	buy(bob, outcome.No, 80)
	_, err := h.engine.AddLiquidity(h.ctx, bob, id, fixed.FromUnits(200), fixed.Zero())
	require.NoError(t, err)
	deposited, err = deposited.Add(fixed.FromUnits(200))
	require.NoError(t, err)

	sold, err := h.engine.Sell(h.ctx, alice, id, outcome.Yes, fixed.FromUnits(10), fixed.Zero())
	require.NoError(t, err)
	paidOut := sold.AmountOut

	aliceYes := mustPosition(t, h, alice, id).Yes

	h.clock.Advance(time.Hour)
	_, err = h.vote(id, "v1", outcome.Yes)
	require.NoError(t, err)
	_, err = h.vote(id, "v2", outcome.Yes)
	require.NoError(t, err)

	_, err = h.engine.Redeem(h.ctx, alice, "missing")
	assert.ErrorIs(t, err, predict.ErrMarketNotFound)

	got, err := h.engine.Redeem(h.ctx, alice, id)
	require.NoError(t, err)
	assert.Equal(t, aliceYes, got, "each winning share redeems for one unit")

	bobPos := mustPosition(t, h, bob, id)
	bobGot, err := h.engine.Redeem(h.ctx, bob, id)
	require.NoError(t, err)
	// NO shares are worthless; bob is paid for YES shares plus the LP claim
	assert.True(t, bobGot.GreaterThan(bobPos.Yes))

	creatorGot, err := h.engine.Redeem(h.ctx, creator, id)
	require.NoError(t, err)

	snap, err := h.engine.GetMarket(id)
	require.NoError(t, err)
	assert.Equal(t, market.Settled, snap.Market.State)
	require.NotNil(t, snap.Settlement)
	lpShare, err := fixed.MulDiv(bobPos.LPUnits, snap.Settlement.LPValue, snap.Settlement.LPSupply, fixed.Down)
	require.NoError(t, err)
	wantBob, err := bobPos.Yes.Add(lpShare)
	require.NoError(t, err)
	assert.Equal(t, wantBob, bobGot)

	for _, p := range []fixed.Point{got, bobGot, creatorGot} {
		paidOut, err = paidOut.Add(p)
		require.NoError(t, err)
	}
	fees, err := snap.Fees.Creator.Add(snap.Fees.Platform)
	require.NoError(t, err)
	ceiling, err := deposited.Sub(fees)
	require.NoError(t, err)
	assert.False(t, paidOut.GreaterThan(ceiling), "paid %s of %s", paidOut, ceiling)
	assert.InDelta(t, ceiling.Float64(), paidOut.Float64(), 1e-6)

	again, err := h.engine.Redeem(h.ctx, alice, id)
	require.NoError(t, err)
	assert.True(t, again.IsZero())

	collected, err := h.engine.CollectFees(h.ctx, id, settlement.Creator)
	require.NoError(t, err)
	assert.Equal(t, snap.Fees.Creator, collected)
}

func TestRedeemBeforeResolution(t *testing.T) {
	h := newHarness(t)
	id := h.create("100", 0, 0)
	_, err := h.engine.Redeem(h.ctx, creator, id)
	assert.ErrorIs(t, err, settlement.ErrNotResolved)
}

func TestCreateMarketValidation(t *testing.T) {
	valid := func() predict.CreateMarketRequest {
		return predict.CreateMarketRequest{
			Title:            "valid",
			Creator:          creator,
			CutoffTime:       start.Add(time.Hour),
			Source:           quorum(),
			InitialLiquidity: fixed.FromUnits(10),
		}
	}
	tests := []struct {
		name   string
		mutate func(r *predict.CreateMarketRequest)
	}{
		{"empty title", func(r *predict.CreateMarketRequest) { r.Title = " " }},
		{"cutoff in past", func(r *predict.CreateMarketRequest) { r.CutoffTime = start.Add(-time.Minute) }},
		{"fee too high", func(r *predict.CreateMarketRequest) { r.CreatorFeeBps = 5000 }},
		{"no source", func(r *predict.CreateMarketRequest) { r.Source = nil }},
		{"bad quorum", func(r *predict.CreateMarketRequest) { r.Source = oracle.Quorum{Validators: []string{"a"}, Threshold: 2} }},
		{"scalar outcome", func(r *predict.CreateMarketRequest) { r.OutcomeType = "SCALAR" }},
		{"no creator", func(r *predict.CreateMarketRequest) { r.Creator = common.Address{} }},
		{"image not a url", func(r *predict.CreateMarketRequest) { r.ImageURL = "market.png" }},
		{"source not http", func(r *predict.CreateMarketRequest) { r.Metadata.Sources = []string{"ftp://feeds.example.org"} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			req := valid()
			tt.mutate(&req)
			_, err := h.engine.CreateMarket(h.ctx, req)
			assert.ErrorIs(t, err, predict.ErrInvalidMarket)
			assert.Zero(t, h.engine.MarketCount())
		})
	}

	h := newHarness(t)
	req := valid()
	req.InitialLiquidity = fixed.Zero()
	_, err := h.engine.CreateMarket(h.ctx, req)
	assert.Error(t, err)
	assert.Zero(t, h.engine.MarketCount())
}

func TestMarketMetadataPersists(t *testing.T) {
	h := newHarness(t)
	id, err := h.engine.CreateMarket(h.ctx, predict.CreateMarketRequest{
		Title:            "Will SOL close above 500?",
		Creator:          creator,
		ImageURL:         "https://example.com/market-image.png",
		Metadata:         market.Metadata{Sources: []string{"https://www.coingecko.com/en/coins/solana"}, ResolutionDetails: "CoinGecko close"},
		CutoffTime:       start.Add(time.Hour),
		Source:           quorum(),
		InitialLiquidity: fixed.FromUnits(100),
	})
	require.NoError(t, err)

	restored := h.open(h.store)
	snap, err := restored.GetMarket(id)
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/market-image.png", snap.Market.ImageURL)
	assert.Equal(t, []string{"https://www.coingecko.com/en/coins/solana"}, snap.Market.Metadata.Sources)
	assert.Equal(t, "CoinGecko close", snap.Market.Metadata.ResolutionDetails)
}

func TestConcurrentTradersKeepSupplyBacked(t *testing.T) {
	h := newHarness(t)
	ids := []string{h.create("1000", 30, 20), h.create("1000", 30, 20)}

	traders := make([]common.Address, 8)
	for i := range traders {
		traders[i] = common.BigToAddress(big.NewInt(int64(0x100 + i)))
	}

	var wg sync.WaitGroup
	for i, acct := range traders {
		wg.Add(1)
		go func(i int, acct common.Address) {
			defer wg.Done()
			id := ids[i%2]
			o := outcome.Yes
			if i%3 == 0 {
				o = outcome.No
			}
			for j := 0; j < 20; j++ {
				r, err := h.engine.Buy(h.ctx, acct, id, o, fixed.FromUnits(3), fixed.Zero())
				if !assert.NoError(t, err) {
					return
				}
				if j%4 == 0 {
					_, err = h.engine.Sell(h.ctx, acct, id, o, r.AmountOut.Half(), fixed.Zero())
					assert.NoError(t, err)
				}
			}
		}(i, acct)
	}
	wg.Wait()

	for _, id := range ids {
		snap, err := h.engine.GetMarket(id)
		require.NoError(t, err)
		yes, no := snap.Pool.Yes, snap.Pool.No
		for _, acct := range append(traders, creator) {
			pos := mustPosition(t, h, acct, id)
			yes, err = yes.Add(pos.Yes)
			require.NoError(t, err)
			no, err = no.Add(pos.No)
			require.NoError(t, err)
		}
		assert.Equal(t, snap.Pool.Collateral, yes)
		assert.Equal(t, snap.Pool.Collateral, no)
	}
}

func TestRestoreFromStore(t *testing.T) {
	h := newHarness(t)
	id := h.create("300", 0, 0)
	_, err := h.engine.Buy(h.ctx, alice, id, outcome.Yes, fixed.FromUnits(25), fixed.Zero())
	require.NoError(t, err)
	before, err := h.engine.GetMarket(id)
	require.NoError(t, err)

	reopened := h.open(h.store)
	after, err := reopened.GetMarket(id)
	require.NoError(t, err)
	assert.Equal(t, before.Pool, after.Pool)
	assert.Equal(t, before.YesPrice, after.YesPrice)
	assert.Equal(t, before.Market.State, after.Market.State)
	assert.Equal(t, oracle.KindQuorum, after.Market.Source.Kind())

	pos, err := reopened.GetPosition(alice, id)
	require.NoError(t, err)
	assert.False(t, pos.Yes.IsZero())
	assert.Len(t, reopened.ListPositions(creator), 1)
}

func TestShortfallHaltsMarket(t *testing.T) {
	h := newHarness(t)
	id := h.create("100", 0, 0)
	_, err := h.engine.Buy(h.ctx, alice, id, outcome.Yes, fixed.FromUnits(10), fixed.Zero())
	require.NoError(t, err)
	h.clock.Advance(time.Hour)
	_, err = h.vote(id, "v1", outcome.Yes)
	require.NoError(t, err)
	_, err = h.vote(id, "v2", outcome.Yes)
	require.NoError(t, err)

	records, err := h.store.Load()
	require.NoError(t, err)
	require.Len(t, records, 1)
	tampered := storage.NewMemStore()
	rec := records[0]
	rec.Pool.Collateral, err = rec.Pool.Collateral.Sub(fixed.FromUnits(1))
	require.NoError(t, err)
	require.NoError(t, tampered.Commit(rec))

	broken := h.open(tampered)
	_, err = broken.Settle(h.ctx, id)
	assert.ErrorIs(t, err, settlement.ErrReserveShortfall)

	snap, err := broken.GetMarket(id)
	require.NoError(t, err)
	assert.True(t, snap.Market.Halted)
	_, err = broken.Redeem(h.ctx, alice, id)
	assert.ErrorIs(t, err, predict.ErrMarketHalted)
}

func TestValuationAndEvents(t *testing.T) {
	h := newHarness(t)
	var (
		mu     sync.Mutex
		events []predict.EventType
	)
	h.engine.Subscribe(func(ev predict.Event) {
		mu.Lock()
		events = append(events, ev.Type)
		mu.Unlock()
	})
	id := h.create("1000", 0, 0)
	_, err := h.engine.Buy(h.ctx, alice, id, outcome.Yes, fixed.FromUnits(100), fixed.Zero())
	require.NoError(t, err)

	v, err := h.engine.Valuation(alice, id)
	require.NoError(t, err)
	// 190.9 YES marked at ~0.547 is worth more than the 100 paid
	assert.True(t, v.PnL.IsPositive(), "pnl %s", v.PnL)
	assert.True(t, v.PnLPercent.IsPositive())

	h.clock.Advance(time.Hour)
	_, err = h.vote(id, "v1", outcome.No)
	require.NoError(t, err)
	_, err = h.vote(id, "v2", outcome.No)
	require.NoError(t, err)

	v, err = h.engine.Valuation(alice, id)
	require.NoError(t, err)
	assert.True(t, v.Value.IsZero())
	assert.Equal(t, "-100", v.PnL.String())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, predict.EventMarketCreated, events[0])
	assert.Contains(t, events, predict.EventTrade)
	assert.Contains(t, events, predict.EventLifecycle)
}

func mustPosition(t *testing.T, h *harness, acct common.Address, id string) ledger.Position {
	t.Helper()
	pos, err := h.engine.GetPosition(acct, id)
	require.NoError(t, err)
	return pos
}
