package storage_test

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uhyunpark/hyperpredict/pkg/app/core/fixed"
	"github.com/uhyunpark/hyperpredict/pkg/app/core/market"
	"github.com/uhyunpark/hyperpredict/pkg/app/core/oracle"
	"github.com/uhyunpark/hyperpredict/pkg/app/core/outcome"
	"github.com/uhyunpark/hyperpredict/pkg/app/core/resolution"
	"github.com/uhyunpark/hyperpredict/pkg/app/predict"
	"github.com/uhyunpark/hyperpredict/pkg/storage"
	"github.com/uhyunpark/hyperpredict/pkg/util"
)

var (
	creator = common.HexToAddress("0x00000000000000000000000000000000000000c1")
	trader  = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	opened  = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
)

type sigIsID struct{}

func (sigIsID) Verify(id string, _, sig []byte) bool { return string(sig) == id }

func openEngine(t *testing.T, store predict.Store, clock util.Clock) *predict.Engine {
	t.Helper()
	e, err := predict.New(predict.DefaultConfig(), store, resolution.NewResolver(nil, sigIsID{}), clock, nil)
	require.NoError(t, err)
	return e
}

func TestPebbleStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "db")
	clock := util.NewManualClock(opened)

	store, err := storage.NewPebbleStore(dir)
	require.NoError(t, err)
	engine := openEngine(t, store, clock)

	openID, err := engine.CreateMarket(ctx, predict.CreateMarketRequest{
		Title:            "BTC above 100k at close?",
		Tags:             []string{"crypto", "btc"},
		Creator:          creator,
		CutoffTime:       opened.Add(48 * time.Hour),
		Source:           oracle.PriceFeed{FeedID: "BTC-USD", Target: fixed.FromUnits(100_000), Comparison: oracle.GreaterOrEqual},
		InitialLiquidity: fixed.FromUnits(500),
		CreatorFeeBps:    50,
		PlatformFeeBps:   25,
	})
	require.NoError(t, err)
	_, err = engine.Buy(ctx, trader, openID, outcome.No, fixed.FromUnits(40), fixed.Zero())
	require.NoError(t, err)

	settledID, err := engine.CreateMarket(ctx, predict.CreateMarketRequest{
		Title:            "Launch before Friday?",
		Creator:          creator,
		CutoffTime:       opened.Add(time.Hour),
		Source:           oracle.Quorum{Validators: []string{"alpha", "beta"}, Threshold: 2},
		InitialLiquidity: fixed.FromUnits(100),
	})
	require.NoError(t, err)
	_, err = engine.Buy(ctx, trader, settledID, outcome.Yes, fixed.FromUnits(10), fixed.Zero())
	require.NoError(t, err)

	clock.Advance(time.Hour)
	for _, v := range []string{"alpha", "beta"} {
		_, err = engine.SubmitVerdict(ctx, settledID, oracle.Verdict{Outcome: outcome.Yes, Validator: v, Signature: []byte(v)})
		require.NoError(t, err)
	}
	paid, err := engine.Redeem(ctx, trader, settledID)
	require.NoError(t, err)
	require.False(t, paid.IsZero())

	before := engine.ListMarkets()
	require.NoError(t, engine.Close())

	store, err = storage.NewPebbleStore(dir)
	require.NoError(t, err)
	reopened := openEngine(t, store, clock)
	defer reopened.Close()

	after := reopened.ListMarkets()
	require.Len(t, after, 2)
	for i := range before {
		b, a := before[i], after[i]
		assert.Equal(t, b.Market.ID, a.Market.ID)
		assert.Equal(t, b.Market.State, a.Market.State)
		assert.Equal(t, b.Market.Tags, a.Market.Tags)
		assert.True(t, b.Market.CutoffTime.Equal(a.Market.CutoffTime))
		assert.Equal(t, b.Market.Source, a.Market.Source)
		assert.Equal(t, b.Pool, a.Pool)
		assert.Equal(t, b.Fees, a.Fees)
		assert.Equal(t, b.YesPrice, a.YesPrice)
	}

	snap, err := reopened.GetMarket(settledID)
	require.NoError(t, err)
	assert.Equal(t, market.Settled, snap.Market.State)
	require.NotNil(t, snap.Settlement)
	assert.Equal(t, paid, snap.Settlement.Paid)
	require.NotNil(t, snap.Market.Resolution)
	assert.Equal(t, outcome.Yes, snap.Market.Resolution.Outcome)
	assert.Len(t, snap.Market.Attestations, 2)

	positions := reopened.ListPositions(trader)
	require.Len(t, positions, 2)
	for _, pos := range positions {
		if pos.MarketID == settledID {
			assert.True(t, pos.Yes.IsZero())
			assert.Equal(t, paid, pos.Withdrawn)
		} else {
			assert.False(t, pos.No.IsZero())
		}
	}
}

func TestMemStoreMergesPositions(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemStore()
	engine := openEngine(t, store, util.NewManualClock(opened))

	id, err := engine.CreateMarket(ctx, predict.CreateMarketRequest{
		Title:            "merge",
		Creator:          creator,
		CutoffTime:       opened.Add(time.Hour),
		Source:           oracle.Quorum{Validators: []string{"a"}, Threshold: 1},
		InitialLiquidity: fixed.FromUnits(50),
	})
	require.NoError(t, err)
	_, err = engine.Buy(ctx, trader, id, outcome.Yes, fixed.FromUnits(5), fixed.Zero())
	require.NoError(t, err)
	assert.Equal(t, 2, store.Commits())

	records, err := store.Load()
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Len(t, records[0].Positions, 2)
}

func TestFileJournalAppendsLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")
	j, err := storage.NewFileJournal(path)
	require.NoError(t, err)

	require.NoError(t, j.Append(predict.Event{Type: predict.EventMarketCreated}))
	require.NoError(t, j.Append(predict.Event{Type: predict.EventTrade, Receipt: &predict.Receipt{MarketID: "m1", Side: "buy"}}))
	require.NoError(t, j.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var types []predict.EventType
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var ev predict.Event
		require.NoError(t, json.Unmarshal(sc.Bytes(), &ev))
		types = append(types, ev.Type)
	}
	require.NoError(t, sc.Err())
	assert.Equal(t, []predict.EventType{predict.EventMarketCreated, predict.EventTrade}, types)
}
