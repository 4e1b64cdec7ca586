package predict

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/uhyunpark/hyperpredict/pkg/app/core/fixed"
	"github.com/uhyunpark/hyperpredict/pkg/app/core/ledger"
	"github.com/uhyunpark/hyperpredict/pkg/app/core/market"
	"github.com/uhyunpark/hyperpredict/pkg/app/core/oracle"
	"github.com/uhyunpark/hyperpredict/pkg/app/core/pool"
)

type CreateMarketRequest struct {
	Title            string
	Description      string
	Category         string
	Tags             []string
	Creator          common.Address
	OutcomeType      string
	ImageURL         string
	Metadata         market.Metadata
	CutoffTime       time.Time
	Source           oracle.Source
	InitialLiquidity fixed.Point
	CreatorFeeBps    uint32
	PlatformFeeBps   uint32
	// DisputeWindow defaults to Config.DefaultDisputeWindow when zero.
	DisputeWindow time.Duration
}

func (e *Engine) validateCreate(req CreateMarketRequest, now time.Time) error {
	switch {
	case strings.TrimSpace(req.Title) == "":
		return fmt.Errorf("%w: empty title", ErrInvalidMarket)
	case req.OutcomeType != "" && req.OutcomeType != market.OutcomeTypeBinary:
		return fmt.Errorf("%w: outcome type %q is not supported", ErrInvalidMarket, req.OutcomeType)
	case req.Creator == (common.Address{}):
		return fmt.Errorf("%w: missing creator", ErrInvalidMarket)
	case !req.CutoffTime.After(now):
		return fmt.Errorf("%w: cutoff %s is not in the future", ErrInvalidMarket, req.CutoffTime.Format(time.RFC3339))
	case req.CreatorFeeBps > e.cfg.MaxFeeBps || req.PlatformFeeBps > e.cfg.MaxFeeBps:
		return fmt.Errorf("%w: fee rates %d/%d exceed %d bps", ErrInvalidMarket, req.CreatorFeeBps, req.PlatformFeeBps, e.cfg.MaxFeeBps)
	case req.CreatorFeeBps+req.PlatformFeeBps >= 10_000:
		return fmt.Errorf("%w: fees consume the whole input", ErrInvalidMarket)
	case req.DisputeWindow < 0:
		return fmt.Errorf("%w: negative dispute window", ErrInvalidMarket)
	case req.Source == nil:
		return fmt.Errorf("%w: missing resolution source", ErrInvalidMarket)
	}
	if err := req.Source.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidMarket, err)
	}
	if req.ImageURL != "" && !webURL(req.ImageURL) {
		return fmt.Errorf("%w: image url %q", ErrInvalidMarket, req.ImageURL)
	}
	for _, src := range req.Metadata.Sources {
		if !webURL(src) {
			return fmt.Errorf("%w: metadata source %q", ErrInvalidMarket, src)
		}
	}
	return nil
}

func webURL(s string) bool {
	u, err := url.Parse(s)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// CreateMarket opens a market seeded with the creator's initial liquidity and
// returns its id.
func (e *Engine) CreateMarket(ctx context.Context, req CreateMarketRequest) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	now := e.clock.Now()
	if err := e.validateCreate(req, now); err != nil {
		return "", err
	}

	window := req.DisputeWindow
	if window == 0 {
		window = e.cfg.DefaultDisputeWindow
	}
	meta := req.Metadata
	meta.Sources = append([]string(nil), req.Metadata.Sources...)
	m := market.Market{
		ID:            uuid.NewString(),
		Title:         req.Title,
		Description:   req.Description,
		Category:      req.Category,
		Tags:          append([]string(nil), req.Tags...),
		Creator:       req.Creator,
		OutcomeType:   market.OutcomeTypeBinary,
		ImageURL:      req.ImageURL,
		Metadata:      meta,
		CutoffTime:    req.CutoffTime,
		Fees:          pool.FeeSchedule{CreatorBps: req.CreatorFeeBps, PlatformBps: req.PlatformFeeBps},
		Source:        req.Source,
		DisputeWindow: window,
		State:         market.Created,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	ent := &entry{book: ledger.NewBook(m.ID), pool: pool.New(e.cfg.MinReserve)}
	if _, err := ent.book.AddLiquidity(&ent.pool, req.Creator, req.InitialLiquidity); err != nil {
		ent.book.Discard()
		return "", fmt.Errorf("initial liquidity: %w", err)
	}
	if err := m.Transition(market.Open, now); err != nil {
		return "", err
	}
	if err := e.commit(ent, m, ent.pool, ent.fees, nil); err != nil {
		return "", err
	}
	if err := e.markets.register(ent); err != nil {
		return "", err
	}

	e.logger.Infow("market_created",
		"market", m.ID,
		"title", m.Title,
		"creator", m.Creator.Hex(),
		"cutoff", m.CutoffTime,
		"source", string(m.Source.Kind()),
		"liquidity", req.InitialLiquidity.String(),
	)
	e.emit([]Event{{Type: EventMarketCreated, Snapshot: ent.snap.Load().clone()}})
	return m.ID, nil
}
