package pool

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uhyunpark/hyperpredict/pkg/app/core/fixed"
	"github.com/uhyunpark/hyperpredict/pkg/app/core/outcome"
)

var noFees = FeeSchedule{}

func seeded(t *testing.T, units uint64) Pool {
	t.Helper()
	p := New(fixed.FromRaw(1000))
	_, err := p.AddLiquidity(fixed.FromUnits(units))
	require.NoError(t, err)
	return p
}

func priceSum(t *testing.T, p *Pool) fixed.Point {
	t.Helper()
	yes, err := p.Price(outcome.Yes)
	require.NoError(t, err)
	no, err := p.Price(outcome.No)
	require.NoError(t, err)
	sum, err := yes.Add(no)
	require.NoError(t, err)
	return sum
}

func TestBuyFromBalancedPool(t *testing.T) {
	p := seeded(t, 1000)

	q, err := p.QuoteBuy(outcome.Yes, fixed.FromUnits(100), noFees)
	require.NoError(t, err)
	assert.Equal(t, fixed.MustParse("190.909090909"), q.AmountOut)
	assert.Equal(t, fixed.MustParse("909.090909091"), q.YesAfter)
	assert.Equal(t, fixed.FromUnits(1100), q.NoAfter)

	require.NoError(t, p.Apply(q))

	yes, err := p.Price(outcome.Yes)
	require.NoError(t, err)
	no, err := p.Price(outcome.No)
	require.NoError(t, err)
	assert.True(t, yes.GreaterThan(fixed.MustParse("0.5")), "yes price %s", yes)
	assert.True(t, no.LessThan(fixed.MustParse("0.5")), "no price %s", no)
	assert.Equal(t, fixed.One(), priceSum(t, &p))
	assert.Equal(t, fixed.FromUnits(1100), p.Collateral)
}

func TestBuyChargesFeesOutsideReserves(t *testing.T) {
	p := seeded(t, 1000)
	fees := FeeSchedule{CreatorBps: 100, PlatformBps: 50}

	q, err := p.QuoteBuy(outcome.No, fixed.FromUnits(100), fees)
	require.NoError(t, err)
	assert.Equal(t, fixed.FromUnits(1), q.CreatorFee)
	assert.Equal(t, fixed.MustParse("0.5"), q.PlatformFee)
	assert.Equal(t, fixed.MustParse("98.5"), q.Minted)
	assert.Equal(t, fixed.MustParse("1098.5"), q.YesAfter)

	before, err := p.Invariant()
	require.NoError(t, err)
	require.NoError(t, p.Apply(q))
	after, err := p.Invariant()
	require.NoError(t, err)
	assert.GreaterOrEqual(t, after.Cmp(before), 0)
}

func TestSellReturnsAtMostWhatWasPaid(t *testing.T) {
	p := seeded(t, 1000)
	buy, err := p.QuoteBuy(outcome.Yes, fixed.FromUnits(100), noFees)
	require.NoError(t, err)
	require.NoError(t, p.Apply(buy))

	sell, err := p.QuoteSell(outcome.Yes, buy.AmountOut, noFees)
	require.NoError(t, err)
	assert.False(t, sell.AmountOut.GreaterThan(fixed.FromUnits(100)), "sold for %s", sell.AmountOut)
	assert.True(t, sell.AmountOut.GreaterThan(fixed.MustParse("99.99999")), "sold for %s", sell.AmountOut)
	require.NoError(t, p.Apply(sell))

	assert.InDelta(t, 1000.0, p.Yes.Float64(), 1e-6)
	assert.InDelta(t, 1000.0, p.No.Float64(), 1e-6)
	assert.Equal(t, sell.Burned, sell.AmountOut)
}

func TestSellFeesComeOutOfProceeds(t *testing.T) {
	p := seeded(t, 1000)
	fees := FeeSchedule{CreatorBps: 200}
	buy, err := p.QuoteBuy(outcome.No, fixed.FromUnits(50), noFees)
	require.NoError(t, err)
	require.NoError(t, p.Apply(buy))

	sell, err := p.QuoteSell(outcome.No, buy.AmountOut, fees)
	require.NoError(t, err)
	gross, err := sell.AmountOut.Add(sell.CreatorFee)
	require.NoError(t, err)
	assert.Equal(t, sell.Burned, gross)
	assert.True(t, sell.PlatformFee.IsZero())
}

func TestSwapEqualsDirectShareExchange(t *testing.T) {
	p := seeded(t, 1000)

	q, err := p.QuoteSwap(outcome.Yes, fixed.FromUnits(100), noFees)
	require.NoError(t, err)
	// (1000+100) * (1000-out) = 1000*1000
	assert.InDelta(t, 90.909090909, q.AmountOut.Float64(), 1e-6)
	assert.False(t, q.AmountOut.GreaterThan(fixed.MustParse("90.909090909")))
	assert.Equal(t, fixed.FromUnits(1100), q.YesAfter)

	require.NoError(t, p.Apply(q))
	assert.Equal(t, fixed.One(), priceSum(t, &p))
	assert.Equal(t, fixed.FromUnits(1000), p.Collateral)
}

func TestApplyRejectsStaleQuote(t *testing.T) {
	p := seeded(t, 1000)
	first, err := p.QuoteBuy(outcome.Yes, fixed.FromUnits(10), noFees)
	require.NoError(t, err)
	second, err := p.QuoteBuy(outcome.No, fixed.FromUnits(10), noFees)
	require.NoError(t, err)

	require.NoError(t, p.Apply(second))
	err = p.Apply(first)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrStaleQuote))
}

func TestQuoteErrors(t *testing.T) {
	tests := []struct {
		name string
		run  func(p *Pool) error
		want error
	}{
		{
			name: "buy drains below dust floor",
			run: func(p *Pool) error {
				p.MinReserve = fixed.FromUnits(950)
				_, err := p.QuoteBuy(outcome.Yes, fixed.FromUnits(100), noFees)
				return err
			},
			want: ErrInsufficientLiquidity,
		},
		{
			name: "sell drains below dust floor",
			run: func(p *Pool) error {
				p.MinReserve = fixed.FromUnits(990)
				_, err := p.QuoteSell(outcome.No, fixed.FromUnits(100), noFees)
				return err
			},
			want: ErrInsufficientLiquidity,
		},
		{
			name: "zero amount",
			run: func(p *Pool) error {
				_, err := p.QuoteBuy(outcome.Yes, fixed.Zero(), noFees)
				return err
			},
			want: ErrInvalidAmount,
		},
		{
			name: "void is not tradable",
			run: func(p *Pool) error {
				_, err := p.QuoteSell(outcome.Void, fixed.One(), noFees)
				return err
			},
			want: ErrInvalidAmount,
		},
		{
			name: "fees swallow input",
			run: func(p *Pool) error {
				_, err := p.QuoteBuy(outcome.Yes, fixed.FromRaw(1), FeeSchedule{CreatorBps: 1})
				return err
			},
			want: ErrInvalidAmount,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := seeded(t, 1000)
			err := tt.run(&p)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), "got %v, want %v", err, tt.want)
		})
	}
}

func TestInvariantNonDecreasingAcrossTrades(t *testing.T) {
	p := seeded(t, 500)
	fees := FeeSchedule{CreatorBps: 30, PlatformBps: 20}
	steps := []struct {
		kind   Kind
		o      outcome.Outcome
		amount string
	}{
		{KindBuy, outcome.Yes, "37.5"},
		{KindBuy, outcome.No, "120"},
		{KindSell, outcome.Yes, "20"},
		{KindSwap, outcome.No, "15.25"},
		{KindBuy, outcome.Yes, "0.000001"},
		{KindSell, outcome.No, "3.3"},
		{KindSwap, outcome.Yes, "10"},
	}
	for i, s := range steps {
		before, err := p.Invariant()
		require.NoError(t, err)
		var q Quote
		switch s.kind {
		case KindBuy:
			q, err = p.QuoteBuy(s.o, fixed.MustParse(s.amount), fees)
		case KindSell:
			q, err = p.QuoteSell(s.o, fixed.MustParse(s.amount), fees)
		case KindSwap:
			q, err = p.QuoteSwap(s.o, fixed.MustParse(s.amount), fees)
		}
		require.NoError(t, err, "step %d", i)
		require.NoError(t, p.Apply(q), "step %d", i)
		after, err := p.Invariant()
		require.NoError(t, err)
		assert.GreaterOrEqual(t, after.Cmp(before), 0, "step %d: k fell from %s to %s", i, before, after)
		assert.Equal(t, fixed.One(), priceSum(t, &p), "step %d", i)
	}
}

func TestLiquidityRoundTrip(t *testing.T) {
	p := seeded(t, 1000)
	q, err := p.QuoteBuy(outcome.Yes, fixed.FromUnits(250), noFees)
	require.NoError(t, err)
	require.NoError(t, p.Apply(q))
	yes, no := p.Yes, p.No

	d, err := p.AddLiquidity(fixed.FromUnits(80))
	require.NoError(t, err)
	assert.False(t, d.LPMinted.IsZero())
	// yes is the scarce side after a YES buy, so surplus YES shares come back
	assert.True(t, d.NoReturned.IsZero())
	assert.False(t, d.YesReturned.IsZero())

	w, err := p.RemoveLiquidity(d.LPMinted, d.LPMinted)
	require.NoError(t, err)
	assert.InDelta(t, yes.Float64(), p.Yes.Float64(), 1e-8)
	assert.InDelta(t, no.Float64(), p.No.Float64(), 1e-8)

	gotYes, err := w.YesOut.Add(d.YesReturned)
	require.NoError(t, err)
	assert.InDelta(t, 80.0, gotYes.Float64(), 1e-8)
	assert.InDelta(t, 80.0, w.NoOut.Float64(), 1e-8)
}

func TestLiquidityErrors(t *testing.T) {
	empty := New(fixed.FromRaw(1000))
	_, err := empty.AddLiquidity(fixed.Zero())
	assert.ErrorIs(t, err, ErrZeroLiquidity)

	p := seeded(t, 100)
	_, err = p.AddLiquidity(fixed.Zero())
	assert.ErrorIs(t, err, ErrZeroLiquidity)

	_, err = p.RemoveLiquidity(fixed.FromUnits(10), fixed.FromUnits(5))
	assert.ErrorIs(t, err, ErrInsufficientLpUnits)

	_, err = p.RemoveLiquidity(fixed.FromUnits(100), fixed.FromUnits(100))
	assert.ErrorIs(t, err, ErrInsufficientLiquidity)
	assert.Equal(t, fixed.FromUnits(100), p.LPSupply)
}
