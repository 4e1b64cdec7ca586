package pool

import (
	"fmt"

	"github.com/uhyunpark/hyperpredict/pkg/app/core/fixed"
	"github.com/uhyunpark/hyperpredict/pkg/app/core/outcome"
)

type Kind uint8

const (
	KindBuy Kind = iota + 1
	KindSell
	KindSwap
)

func (k Kind) String() string {
	switch k {
	case KindBuy:
		return "buy"
	case KindSell:
		return "sell"
	case KindSwap:
		return "swap"
	}
	return "unknown"
}

func (k Kind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// ParseKind accepts "buy", "sell" or "swap".
func ParseKind(s string) (Kind, error) {
	switch s {
	case "buy":
		return KindBuy, nil
	case "sell":
		return KindSell, nil
	case "swap":
		return KindSwap, nil
	}
	return 0, fmt.Errorf("%w: unknown trade kind %q", ErrInvalidAmount, s)
}

func (k *Kind) UnmarshalText(text []byte) error {
	v, err := ParseKind(string(text))
	if err != nil {
		return err
	}
	*k = v
	return nil
}

// FeeSchedule is the per-market fee rate pair, fixed at creation.
type FeeSchedule struct {
	CreatorBps  uint32 `json:"creator_bps"`
	PlatformBps uint32 `json:"platform_bps"`
}

// charge splits gross into creator fee, platform fee and the net remainder.
// Each fee rounds up.
func (f FeeSchedule) charge(gross fixed.Point) (creator, platform, net fixed.Point, err error) {
	if creator, err = gross.Bps(f.CreatorBps, fixed.Up); err != nil {
		return
	}
	if platform, err = gross.Bps(f.PlatformBps, fixed.Up); err != nil {
		return
	}
	fees, err := creator.Add(platform)
	if err != nil {
		return
	}
	net, err = gross.Sub(fees)
	if err != nil || net.IsZero() {
		err = fmt.Errorf("%w: %s does not cover fees", ErrInvalidAmount, gross)
	}
	return
}

// Quote is the result of a pricing computation. It is applied with Pool.Apply.
type Quote struct {
	Kind Kind `json:"kind"`
	// Outcome is the outcome bought or sold. For swaps it is the outcome given up.
	Outcome     outcome.Outcome `json:"outcome"`
	AmountIn    fixed.Point     `json:"amount_in"`
	AmountOut   fixed.Point     `json:"amount_out"`
	CreatorFee  fixed.Point     `json:"creator_fee"`
	PlatformFee fixed.Point     `json:"platform_fee"`
	// Price is the effective price: collateral per share for buys and sells,
	// shares given per share received for swaps.
	Price  fixed.Point `json:"price"`
	Minted fixed.Point `json:"minted"`
	Burned fixed.Point `json:"burned"`

	YesBefore fixed.Point `json:"yes_before"`
	NoBefore  fixed.Point `json:"no_before"`
	YesAfter  fixed.Point `json:"yes_after"`
	NoAfter   fixed.Point `json:"no_after"`
	Version   uint64      `json:"version"`
}

// QuoteBuy prices spending amountIn collateral on outcome o.
func (p *Pool) QuoteBuy(o outcome.Outcome, amountIn fixed.Point, fees FeeSchedule) (Quote, error) {
	if err := p.checkTradable(o, amountIn); err != nil {
		return Quote{}, err
	}
	creator, platform, net, err := fees.charge(amountIn)
	if err != nil {
		return Quote{}, err
	}
	same, opp := p.reserves(o)
	sameAfter, oppAfter, shares, err := p.buyLeg(same, opp, net)
	if err != nil {
		return Quote{}, err
	}
	price, err := amountIn.Div(shares, fixed.Up)
	if err != nil {
		return Quote{}, err
	}
	q := p.newQuote(KindBuy, o)
	q.AmountIn, q.AmountOut = amountIn, shares
	q.CreatorFee, q.PlatformFee = creator, platform
	q.Price = price
	q.Minted = net
	q.YesAfter, q.NoAfter = orient(o, sameAfter, oppAfter)
	return q, nil
}

// QuoteSell prices returning sharesIn shares of o for collateral. Fees come out
// of the gross proceeds.
func (p *Pool) QuoteSell(o outcome.Outcome, sharesIn fixed.Point, fees FeeSchedule) (Quote, error) {
	if err := p.checkTradable(o, sharesIn); err != nil {
		return Quote{}, err
	}
	same, opp := p.reserves(o)
	sameAfter, oppAfter, gross, err := p.sellLeg(same, opp, sharesIn)
	if err != nil {
		return Quote{}, err
	}
	creator, platform, net, err := fees.charge(gross)
	if err != nil {
		return Quote{}, err
	}
	price, err := net.Div(sharesIn, fixed.Down)
	if err != nil {
		return Quote{}, err
	}
	q := p.newQuote(KindSell, o)
	q.AmountIn, q.AmountOut = sharesIn, net
	q.CreatorFee, q.PlatformFee = creator, platform
	q.Price = price
	q.Burned = gross
	q.YesAfter, q.NoAfter = orient(o, sameAfter, oppAfter)
	return q, nil
}

// QuoteSwap prices exchanging amountIn shares of from for shares of the opposite
// outcome. It is a sell leg followed by a buy leg on the intermediate reserves;
// fees are charged once, on the collateral passed between the legs.
func (p *Pool) QuoteSwap(from outcome.Outcome, amountIn fixed.Point, fees FeeSchedule) (Quote, error) {
	if err := p.checkTradable(from, amountIn); err != nil {
		return Quote{}, err
	}
	same, opp := p.reserves(from)
	sameMid, oppMid, gross, err := p.sellLeg(same, opp, amountIn)
	if err != nil {
		return Quote{}, err
	}
	creator, platform, net, err := fees.charge(gross)
	if err != nil {
		return Quote{}, err
	}
	// the buy leg acquires the opposite outcome, so its "same" side is oppMid
	toAfter, fromAfter, shares, err := p.buyLeg(oppMid, sameMid, net)
	if err != nil {
		return Quote{}, err
	}
	price, err := amountIn.Div(shares, fixed.Up)
	if err != nil {
		return Quote{}, err
	}
	q := p.newQuote(KindSwap, from)
	q.AmountIn, q.AmountOut = amountIn, shares
	q.CreatorFee, q.PlatformFee = creator, platform
	q.Price = price
	q.Burned, q.Minted = gross, net
	q.YesAfter, q.NoAfter = orient(from, fromAfter, toAfter)
	return q, nil
}

func (p *Pool) newQuote(kind Kind, o outcome.Outcome) Quote {
	return Quote{
		Kind:      kind,
		Outcome:   o,
		YesBefore: p.Yes,
		NoBefore:  p.No,
		Version:   p.Version,
	}
}

func (p *Pool) checkTradable(o outcome.Outcome, amount fixed.Point) error {
	if !o.Tradable() {
		return fmt.Errorf("%w: outcome %s is not tradable", ErrInvalidAmount, o)
	}
	if amount.IsZero() {
		return fmt.Errorf("%w: zero amount", ErrInvalidAmount)
	}
	if p.Yes.IsZero() || p.No.IsZero() {
		return ErrZeroLiquidity
	}
	return nil
}

// buyLeg mints net complete sets into the pool and withdraws shares of the
// "same" side until same*opp is restored.
func (p *Pool) buyLeg(same, opp, net fixed.Point) (sameAfter, oppAfter, shares fixed.Point, err error) {
	k, err := same.MulWide(opp)
	if err != nil {
		return
	}
	if oppAfter, err = opp.Add(net); err != nil {
		return
	}
	minted, err := same.Add(net)
	if err != nil {
		return
	}
	if sameAfter, err = k.Quo(oppAfter, fixed.Up); err != nil {
		return
	}
	if sameAfter.LessThan(p.MinReserve) {
		err = fmt.Errorf("%w: reserve would fall to %s", ErrInsufficientLiquidity, sameAfter)
		return
	}
	if shares, err = minted.Sub(sameAfter); err != nil {
		return
	}
	if shares.IsZero() {
		err = fmt.Errorf("%w: trade too small", ErrInvalidAmount)
	}
	return
}

// sellLeg adds sharesIn to the "same" side and burns x complete sets, where x is
// the smaller root of (same+sharesIn-x)(opp-x) = same*opp, rounded down.
func (p *Pool) sellLeg(same, opp, sharesIn fixed.Point) (sameAfter, oppAfter, x fixed.Point, err error) {
	k, err := same.MulWide(opp)
	if err != nil {
		return
	}
	held, err := same.Add(sharesIn)
	if err != nil {
		return
	}
	b, err := held.Add(opp)
	if err != nil {
		return
	}
	bb, err := b.MulWide(b)
	if err != nil {
		return
	}
	four, err := sharesIn.MulInt(4)
	if err != nil {
		return
	}
	c, err := four.MulWide(opp)
	if err != nil {
		return
	}
	disc, err := bb.Sub(c)
	if err != nil {
		return
	}
	root := disc.Sqrt(fixed.Up)
	if root.GreaterThan(b) {
		root = b
	}
	diff, err := b.Sub(root)
	if err != nil {
		return
	}
	x = diff.Half()

	// Rounding can leave the product a hair under k; step x down until it holds.
	for i := 0; i < 4; i++ {
		if x.IsZero() {
			break
		}
		if sameAfter, err = held.Sub(x); err != nil {
			return
		}
		if oppAfter, err = opp.Sub(x); err != nil {
			return
		}
		var after fixed.Wide
		if after, err = sameAfter.MulWide(oppAfter); err != nil {
			return
		}
		if after.Cmp(k) >= 0 {
			break
		}
		if x, err = x.Sub(fixed.FromRaw(1)); err != nil {
			return
		}
	}
	if x.IsZero() {
		err = fmt.Errorf("%w: trade too small", ErrInvalidAmount)
		return
	}
	if sameAfter, err = held.Sub(x); err != nil {
		return
	}
	if oppAfter, err = opp.Sub(x); err != nil {
		return
	}
	if oppAfter.LessThan(p.MinReserve) || sameAfter.LessThan(p.MinReserve) {
		err = fmt.Errorf("%w: reserve would fall to %s", ErrInsufficientLiquidity, fixed.Min(sameAfter, oppAfter))
	}
	return
}

// Apply commits a quote produced against this pool. The quote must have been
// computed from the current reserves and must not decrease yes*no.
func (p *Pool) Apply(q Quote) error {
	if q.Version != p.Version || q.YesBefore != p.Yes || q.NoBefore != p.No {
		return fmt.Errorf("%w: quoted at version %d, pool at %d", ErrStaleQuote, q.Version, p.Version)
	}
	before, err := p.Invariant()
	if err != nil {
		return err
	}
	after, err := q.YesAfter.MulWide(q.NoAfter)
	if err != nil {
		return err
	}
	if after.Cmp(before) < 0 {
		return fmt.Errorf("%w: invariant would fall from %s to %s", ErrStaleQuote, before, after)
	}
	collateral, err := p.Collateral.Add(q.Minted)
	if err != nil {
		return err
	}
	if collateral, err = collateral.Sub(q.Burned); err != nil {
		return err
	}
	p.Yes, p.No = q.YesAfter, q.NoAfter
	p.Collateral = collateral
	p.Version++
	return nil
}

// TotalFee returns creator plus platform fee.
func (q Quote) TotalFee() (fixed.Point, error) {
	return q.CreatorFee.Add(q.PlatformFee)
}
