package ledger

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uhyunpark/hyperpredict/pkg/app/core/fixed"
	"github.com/uhyunpark/hyperpredict/pkg/app/core/outcome"
	"github.com/uhyunpark/hyperpredict/pkg/app/core/pool"
)

var (
	alice = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	bob   = common.HexToAddress("0x00000000000000000000000000000000000000b0")
	carol = common.HexToAddress("0x00000000000000000000000000000000000000c4")
	fees  = pool.FeeSchedule{CreatorBps: 100, PlatformBps: 25}
)

func newMarket(t *testing.T) (*Book, *pool.Pool) {
	t.Helper()
	b := NewBook("m1")
	p := pool.New(fixed.FromRaw(1000))
	_, err := b.AddLiquidity(&p, alice, fixed.FromUnits(1000))
	require.NoError(t, err)
	b.Commit()
	return b, &p
}

func trade(t *testing.T, b *Book, p *pool.Pool, acct common.Address, kind pool.Kind, o outcome.Outcome, amount string) pool.Quote {
	t.Helper()
	var (
		q   pool.Quote
		err error
	)
	switch kind {
	case pool.KindBuy:
		q, err = p.QuoteBuy(o, fixed.MustParse(amount), fees)
	case pool.KindSell:
		q, err = p.QuoteSell(o, fixed.MustParse(amount), fees)
	case pool.KindSwap:
		q, err = p.QuoteSwap(o, fixed.MustParse(amount), fees)
	}
	require.NoError(t, err)
	_, err = b.Trade(p, acct, q)
	require.NoError(t, err)
	b.Commit()
	return q
}

func assertConserved(t *testing.T, b *Book, p *pool.Pool) {
	t.Helper()
	yes, no, lp, err := b.Totals()
	require.NoError(t, err)
	totalYes, err := yes.Add(p.Yes)
	require.NoError(t, err)
	totalNo, err := no.Add(p.No)
	require.NoError(t, err)
	assert.Equal(t, p.Collateral, totalYes, "YES supply must equal collateral")
	assert.Equal(t, p.Collateral, totalNo, "NO supply must equal collateral")
	assert.Equal(t, p.LPSupply, lp)
}

func TestSharesStayBackedByCollateral(t *testing.T) {
	b, p := newMarket(t)

	trade(t, b, p, bob, pool.KindBuy, outcome.Yes, "100")
	trade(t, b, p, carol, pool.KindBuy, outcome.No, "40")
	trade(t, b, p, bob, pool.KindSell, outcome.Yes, "50")
	trade(t, b, p, carol, pool.KindSwap, outcome.No, "10")
	assertConserved(t, b, p)

	_, err := b.AddLiquidity(p, alice, fixed.FromUnits(200))
	require.NoError(t, err)
	b.Commit()
	_, err = b.RemoveLiquidity(p, alice, fixed.FromUnits(150))
	require.NoError(t, err)
	b.Commit()
	assertConserved(t, b, p)

	pos := b.Get(carol)
	sets := fixed.Min(pos.Yes, pos.No)
	require.False(t, sets.IsZero())
	_, err = b.Merge(p, carol, sets)
	require.NoError(t, err)
	b.Commit()
	assertConserved(t, b, p)

	merged := b.Get(carol)
	assert.True(t, fixed.Min(merged.Yes, merged.No).IsZero())
	assert.Equal(t, sets, merged.Withdrawn)
}

func TestSellingMoreThanHeldFails(t *testing.T) {
	b, p := newMarket(t)
	q := trade(t, b, p, bob, pool.KindBuy, outcome.Yes, "10")
	before := *p

	tooMany, err := q.AmountOut.Add(fixed.One())
	require.NoError(t, err)
	sell, err := p.QuoteSell(outcome.Yes, tooMany, fees)
	require.NoError(t, err)

	_, err = b.Trade(p, bob, sell)
	assert.ErrorIs(t, err, ErrNegativeBalance)
	assert.Equal(t, before, *p)
	assert.Empty(t, b.Staged())

	_, err = b.Merge(p, bob, fixed.One())
	assert.ErrorIs(t, err, ErrNegativeBalance)
}

func TestRemoveLiquidityRequiresUnits(t *testing.T) {
	b, p := newMarket(t)
	_, err := b.RemoveLiquidity(p, bob, fixed.One())
	assert.ErrorIs(t, err, pool.ErrInsufficientLpUnits)
}

func TestStagedChangesAreInvisibleUntilCommit(t *testing.T) {
	b, p := newMarket(t)
	q, err := p.QuoteBuy(outcome.No, fixed.FromUnits(5), fees)
	require.NoError(t, err)

	_, err = b.Trade(p, bob, q)
	require.NoError(t, err)
	assert.True(t, b.Get(bob).Empty())
	require.Len(t, b.Staged(), 1)

	b.Discard()
	assert.True(t, b.Get(bob).Empty())
	assert.Empty(t, b.Staged())
}

func TestRedeemZeroesPosition(t *testing.T) {
	b, p := newMarket(t)
	trade(t, b, p, bob, pool.KindBuy, outcome.Yes, "10")

	paid, err := b.Redeem(bob, func(pos Position) (fixed.Point, error) {
		return pos.Yes, nil
	})
	require.NoError(t, err)
	b.Commit()

	pos := b.Get(bob)
	assert.True(t, pos.Empty())
	assert.Equal(t, paid, pos.Withdrawn)

	again, err := b.Redeem(bob, func(Position) (fixed.Point, error) {
		t.Fatal("empty position must not be paid")
		return fixed.Zero(), nil
	})
	require.NoError(t, err)
	assert.True(t, again.IsZero())
}
