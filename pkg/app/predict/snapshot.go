package predict

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/uhyunpark/hyperpredict/pkg/app/core/fixed"
	"github.com/uhyunpark/hyperpredict/pkg/app/core/ledger"
	"github.com/uhyunpark/hyperpredict/pkg/app/core/market"
	"github.com/uhyunpark/hyperpredict/pkg/app/core/outcome"
	"github.com/uhyunpark/hyperpredict/pkg/app/core/pool"
	"github.com/uhyunpark/hyperpredict/pkg/app/core/settlement"
)

// Snapshot is an immutable view of a market as of its last commit.
type Snapshot struct {
	Market     market.Market          `json:"market"`
	Pool       pool.Pool              `json:"pool"`
	YesPrice   fixed.Point            `json:"yes_price"`
	NoPrice    fixed.Point            `json:"no_price"`
	Fees       settlement.Fees        `json:"fees"`
	Settlement *settlement.Settlement `json:"settlement,omitempty"`
}

func newSnapshot(m market.Market, p pool.Pool, f settlement.Fees, s *settlement.Settlement) Snapshot {
	snap := Snapshot{Market: m.Clone(), Pool: p, Fees: f}
	if s != nil {
		c := *s
		snap.Settlement = &c
	}
	// an empty pool has no price; leave both at zero
	if yes, err := p.Price(outcome.Yes); err == nil {
		snap.YesPrice = yes
		snap.NoPrice, _ = p.Price(outcome.No)
	}
	return snap
}

// clone copies the slices and pointers a caller could otherwise write through
// into the published snapshot.
func (s Snapshot) clone() Snapshot {
	s.Market = s.Market.Clone()
	if s.Settlement != nil {
		c := *s.Settlement
		s.Settlement = &c
	}
	return s
}

// Receipt describes a committed trade.
type Receipt struct {
	MarketID    string          `json:"market_id"`
	Account     common.Address  `json:"account"`
	Kind        pool.Kind       `json:"-"`
	Side        string          `json:"side"`
	Outcome     outcome.Outcome `json:"outcome"`
	AmountIn    fixed.Point     `json:"amount_in"`
	AmountOut   fixed.Point     `json:"amount_out"`
	CreatorFee  fixed.Point     `json:"creator_fee"`
	PlatformFee fixed.Point     `json:"platform_fee"`
	Price       fixed.Point     `json:"price"`
	YesPrice    fixed.Point     `json:"yes_price"`
	NoPrice     fixed.Point     `json:"no_price"`
}

// Valuation marks a position to market.
type Valuation struct {
	Position ledger.Position `json:"position"`
	// Value is what the position is worth now: shares at current prices plus the
	// LP claim on reserves, or the settlement payout once the market settled.
	Value      fixed.Point     `json:"value"`
	PnL        decimal.Decimal `json:"pnl"`
	PnLPercent decimal.Decimal `json:"pnl_percent"`
}
