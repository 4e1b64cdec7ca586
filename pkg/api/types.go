package api

import (
	"encoding/json"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/uhyunpark/hyperpredict/pkg/app/core/fixed"
	"github.com/uhyunpark/hyperpredict/pkg/app/core/market"
	"github.com/uhyunpark/hyperpredict/pkg/app/core/oracle"
	"github.com/uhyunpark/hyperpredict/pkg/app/core/outcome"
	"github.com/uhyunpark/hyperpredict/pkg/app/core/pool"
	"github.com/uhyunpark/hyperpredict/pkg/app/core/settlement"
	"github.com/uhyunpark/hyperpredict/pkg/app/predict"
	"github.com/uhyunpark/hyperpredict/pkg/watcher"
)

// API request and response types for REST endpoints and WebSocket messages

// ==============================
// REST Response Types
// ==============================

// MarketInfo is a market's metadata, lifecycle and current pricing
type MarketInfo struct {
	ID              string                 `json:"id"`
	Title           string                 `json:"title"`
	Description     string                 `json:"description,omitempty"`
	Category        string                 `json:"category,omitempty"`
	Tags            []string               `json:"tags,omitempty"`
	Creator         common.Address         `json:"creator"`
	OutcomeType     string                 `json:"outcome_type"`
	ImageURL        string                 `json:"image_url,omitempty"`
	Metadata        market.Metadata        `json:"metadata"`
	State           market.Lifecycle       `json:"state"`
	Halted          bool                   `json:"halted,omitempty"`
	CutoffTime      time.Time              `json:"cutoff_time"`
	DisputeDeadline *time.Time             `json:"dispute_deadline,omitempty"`
	Source          json.RawMessage        `json:"source"`
	CreatorFeeBps   uint32                 `json:"creator_fee_bps"`
	PlatformFeeBps  uint32                 `json:"platform_fee_bps"`
	YesPrice        fixed.Point            `json:"yes_price"`
	NoPrice         fixed.Point            `json:"no_price"`
	YesReserve      fixed.Point            `json:"yes_reserve"`
	NoReserve       fixed.Point            `json:"no_reserve"`
	LPSupply        fixed.Point            `json:"lp_supply"`
	Collateral      fixed.Point            `json:"collateral"`
	Fees            settlement.Fees        `json:"fees"`
	Resolution      *market.Resolution     `json:"resolution,omitempty"`
	Attestations    int                    `json:"attestations"`
	Settlement      *settlement.Settlement `json:"settlement,omitempty"`
}

func marketInfo(s predict.Snapshot) MarketInfo {
	m := s.Market
	info := MarketInfo{
		ID:             m.ID,
		Title:          m.Title,
		Description:    m.Description,
		Category:       m.Category,
		Tags:           m.Tags,
		Creator:        m.Creator,
		OutcomeType:    m.OutcomeType,
		ImageURL:       m.ImageURL,
		Metadata:       m.Metadata,
		State:          m.State,
		Halted:         m.Halted,
		CutoffTime:     m.CutoffTime,
		CreatorFeeBps:  m.Fees.CreatorBps,
		PlatformFeeBps: m.Fees.PlatformBps,
		YesPrice:       s.YesPrice,
		NoPrice:        s.NoPrice,
		YesReserve:     s.Pool.Yes,
		NoReserve:      s.Pool.No,
		LPSupply:       s.Pool.LPSupply,
		Collateral:     s.Pool.Collateral,
		Fees:           s.Fees,
		Resolution:     m.Resolution,
		Attestations:   len(m.Attestations),
		Settlement:     s.Settlement,
	}
	if !m.DisputeDeadline.IsZero() {
		d := m.DisputeDeadline
		info.DisputeDeadline = &d
	}
	if m.Source != nil {
		info.Source, _ = oracle.Encode(m.Source)
	}
	return info
}

// AmountResponse reports a collateral amount paid out to the caller
type AmountResponse struct {
	MarketID string         `json:"market_id"`
	Account  common.Address `json:"account,omitempty"`
	Amount   fixed.Point    `json:"amount"`
}

// LifecycleResponse is returned after a verdict submission
type LifecycleResponse struct {
	MarketID string           `json:"market_id"`
	State    market.Lifecycle `json:"state"`
}

type CreateMarketResponse struct {
	ID string `json:"id"`
}

// ErrorResponse represents an API error
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// ==============================
// REST Request Types
// ==============================

type CreateMarketRequest struct {
	Title            string          `json:"title"`
	Description      string          `json:"description"`
	Category         string          `json:"category"`
	Tags             []string        `json:"tags"`
	Creator          common.Address  `json:"creator"`
	OutcomeType      string          `json:"outcome_type"`
	ImageURL         string          `json:"image_url"`
	Metadata         market.Metadata `json:"metadata"`
	CutoffTime       time.Time       `json:"cutoff_time"`
	Source           json.RawMessage `json:"source"`
	InitialLiquidity fixed.Point     `json:"initial_liquidity"`
	CreatorFeeBps    uint32          `json:"creator_fee_bps"`
	PlatformFeeBps   uint32          `json:"platform_fee_bps"`
	// DisputeWindow is a Go duration string such as "24h".
	DisputeWindow string `json:"dispute_window"`
}

// TradeRequest is used for buy, sell and swap. Amount is collateral for a buy
// and shares for a sell or swap; MinOut is the slippage bound.
type TradeRequest struct {
	Account common.Address  `json:"account"`
	Outcome outcome.Outcome `json:"outcome"`
	Amount  fixed.Point     `json:"amount"`
	MinOut  fixed.Point     `json:"min_out"`
}

type AddLiquidityRequest struct {
	Account  common.Address `json:"account"`
	Amount   fixed.Point    `json:"amount"`
	MinLpOut fixed.Point    `json:"min_lp_out"`
}

type RemoveLiquidityRequest struct {
	Account common.Address `json:"account"`
	LPUnits fixed.Point    `json:"lp_units"`
}

type MergeRequest struct {
	Account common.Address `json:"account"`
	Amount  fixed.Point    `json:"amount"`
}

type AccountRequest struct {
	Account common.Address `json:"account"`
}

// VerdictRequest carries a resolution verdict. Signature is 0x-prefixed hex.
type VerdictRequest struct {
	Outcome   outcome.Outcome `json:"outcome"`
	Evidence  string          `json:"evidence"`
	Validator string          `json:"validator"`
	Signature hexutil.Bytes   `json:"signature"`
}

type LimitOrderRequest struct {
	Account common.Address  `json:"account"`
	Outcome outcome.Outcome `json:"outcome"`
	Side    pool.Kind       `json:"side"`
	Limit   fixed.Point     `json:"limit"`
	Amount  fixed.Point     `json:"amount"`
	MinOut  fixed.Point     `json:"min_out"`
}

type CollectFeesRequest struct {
	Recipient settlement.Recipient `json:"recipient"`
}

// ==============================
// WebSocket Message Types
// ==============================

// WSMessage is the base structure for all WebSocket messages
type WSMessage struct {
	Type     string           `json:"type"`
	Channel  string           `json:"channel"`
	Market   MarketInfo       `json:"market"`
	Trade    *predict.Receipt `json:"trade,omitempty"`
	Sequence uint64           `json:"seq"`
}

// WSOrderMessage reports a limit order fill or drop on "orders:{account}"
type WSOrderMessage struct {
	Type     string           `json:"type"`
	Order    watcher.Order    `json:"order"`
	Trade    *predict.Receipt `json:"trade,omitempty"`
	Error    string           `json:"error,omitempty"`
	Sequence uint64           `json:"seq"`
}

// WSSubscribeRequest is sent by client to subscribe to channels
// Channels: "markets" for every market, "market:{id}" for one,
// "orders:{account}" for an account's limit orders
type WSSubscribeRequest struct {
	Op       string   `json:"op"` // "subscribe" or "unsubscribe"
	Channels []string `json:"channels"`
}

// WSAck answers a WSSubscribeRequest
type WSAck struct {
	Type     string   `json:"type"`
	Channels []string `json:"channels"`
	Rejected []string `json:"rejected,omitempty"`
}
