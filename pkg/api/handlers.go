package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/uhyunpark/hyperpredict/pkg/app/core/fixed"
	"github.com/uhyunpark/hyperpredict/pkg/app/core/oracle"
	"github.com/uhyunpark/hyperpredict/pkg/app/core/pool"
	"github.com/uhyunpark/hyperpredict/pkg/app/core/settlement"
	"github.com/uhyunpark/hyperpredict/pkg/app/predict"
	"github.com/uhyunpark/hyperpredict/pkg/watcher"
)

// ==============================
// Markets
// ==============================

func (s *Server) handleListMarkets(w http.ResponseWriter, r *http.Request) {
	snaps := s.engine.ListMarkets()
	state := r.URL.Query().Get("state")
	category := r.URL.Query().Get("category")

	response := make([]MarketInfo, 0, len(snaps))
	for _, snap := range snaps {
		if state != "" && !strings.EqualFold(snap.Market.State.String(), state) {
			continue
		}
		if category != "" && snap.Market.Category != category {
			continue
		}
		response = append(response, marketInfo(snap))
	}
	respondJSON(w, response)
}

func (s *Server) handleGetMarket(w http.ResponseWriter, r *http.Request) {
	snap, err := s.engine.GetMarket(mux.Vars(r)["id"])
	if err != nil {
		respondEngineError(w, err)
		return
	}
	respondJSON(w, marketInfo(snap))
}

func (s *Server) handleCreateMarket(w http.ResponseWriter, r *http.Request) {
	var req CreateMarketRequest
	if !decodeBody(w, r, &req) {
		return
	}
	src, err := oracle.Decode(req.Source)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid resolution source", err.Error())
		return
	}
	var window time.Duration
	if req.DisputeWindow != "" {
		if window, err = time.ParseDuration(req.DisputeWindow); err != nil {
			respondError(w, http.StatusBadRequest, "invalid dispute window", err.Error())
			return
		}
	}

	id, err := s.engine.CreateMarket(r.Context(), predict.CreateMarketRequest{
		Title:            req.Title,
		Description:      req.Description,
		Category:         req.Category,
		Tags:             req.Tags,
		Creator:          req.Creator,
		OutcomeType:      req.OutcomeType,
		ImageURL:         req.ImageURL,
		Metadata:         req.Metadata,
		CutoffTime:       req.CutoffTime,
		Source:           src,
		InitialLiquidity: req.InitialLiquidity,
		CreatorFeeBps:    req.CreatorFeeBps,
		PlatformFeeBps:   req.PlatformFeeBps,
		DisputeWindow:    window,
	})
	if err != nil {
		respondEngineError(w, err)
		return
	}
	respondStatus(w, http.StatusCreated, CreateMarketResponse{ID: id})
}

// handleQuote prices a trade without executing it:
// GET /markets/{id}/quote?side=buy&outcome=YES&amount=10
func (s *Server) handleQuote(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	q := r.URL.Query()

	kind, err := pool.ParseKind(q.Get("side"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid side", err.Error())
		return
	}
	o, ok := parseOutcome(w, q.Get("outcome"))
	if !ok {
		return
	}
	amount, err := fixed.Parse(q.Get("amount"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid amount", err.Error())
		return
	}

	var quote pool.Quote
	switch kind {
	case pool.KindBuy:
		quote, err = s.engine.QuoteBuy(id, o, amount)
	case pool.KindSell:
		quote, err = s.engine.QuoteSell(id, o, amount)
	case pool.KindSwap:
		quote, err = s.engine.QuoteSwap(id, o, amount)
	}
	if err != nil {
		respondEngineError(w, err)
		return
	}
	respondJSON(w, quote)
}

// ==============================
// Trading
// ==============================

func (s *Server) handleTrade(kind pool.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := mux.Vars(r)["id"]
		var req TradeRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if !req.Outcome.Tradable() {
			respondError(w, http.StatusBadRequest, "invalid outcome", req.Outcome.String())
			return
		}

		var (
			receipt predict.Receipt
			err     error
		)
		switch kind {
		case pool.KindBuy:
			receipt, err = s.engine.Buy(r.Context(), req.Account, id, req.Outcome, req.Amount, req.MinOut)
		case pool.KindSell:
			receipt, err = s.engine.Sell(r.Context(), req.Account, id, req.Outcome, req.Amount, req.MinOut)
		case pool.KindSwap:
			receipt, err = s.engine.Swap(r.Context(), req.Account, id, req.Outcome, req.Amount, req.MinOut)
		}
		if err != nil {
			respondEngineError(w, err)
			return
		}
		respondJSON(w, receipt)
	}
}

func (s *Server) handleAddLiquidity(w http.ResponseWriter, r *http.Request) {
	var req AddLiquidityRequest
	if !decodeBody(w, r, &req) {
		return
	}
	d, err := s.engine.AddLiquidity(r.Context(), req.Account, mux.Vars(r)["id"], req.Amount, req.MinLpOut)
	if err != nil {
		respondEngineError(w, err)
		return
	}
	respondJSON(w, d)
}

func (s *Server) handleRemoveLiquidity(w http.ResponseWriter, r *http.Request) {
	var req RemoveLiquidityRequest
	if !decodeBody(w, r, &req) {
		return
	}
	out, err := s.engine.RemoveLiquidity(r.Context(), req.Account, mux.Vars(r)["id"], req.LPUnits)
	if err != nil {
		respondEngineError(w, err)
		return
	}
	respondJSON(w, out)
}

func (s *Server) handleMerge(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var req MergeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	amount, err := s.engine.Merge(r.Context(), req.Account, id, req.Amount)
	if err != nil {
		respondEngineError(w, err)
		return
	}
	respondJSON(w, AmountResponse{MarketID: id, Account: req.Account, Amount: amount})
}

// ==============================
// Resolution and settlement
// ==============================

func (s *Server) handleSubmitVerdict(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var req VerdictRequest
	if !decodeBody(w, r, &req) {
		return
	}
	v := oracle.Verdict{
		Outcome:   req.Outcome,
		Evidence:  req.Evidence,
		Validator: req.Validator,
		Signature: req.Signature,
	}
	state, err := s.engine.SubmitVerdict(r.Context(), id, v)
	if err != nil {
		respondEngineError(w, err)
		return
	}
	if s.opts.OnVerdict != nil {
		s.opts.OnVerdict(r.Context(), id, v)
	}
	respondJSON(w, LifecycleResponse{MarketID: id, State: state})
}

func (s *Server) handleSettle(w http.ResponseWriter, r *http.Request) {
	stl, err := s.engine.Settle(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondEngineError(w, err)
		return
	}
	respondJSON(w, stl)
}

func (s *Server) handleRedeem(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var req AccountRequest
	if !decodeBody(w, r, &req) {
		return
	}
	amount, err := s.engine.Redeem(r.Context(), req.Account, id)
	if err != nil {
		respondEngineError(w, err)
		return
	}
	respondJSON(w, AmountResponse{MarketID: id, Account: req.Account, Amount: amount})
}

func (s *Server) handleCollectFees(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var req CollectFeesRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Recipient != settlement.Creator && req.Recipient != settlement.Platform {
		respondError(w, http.StatusBadRequest, "invalid recipient", string(req.Recipient))
		return
	}
	amount, err := s.engine.CollectFees(r.Context(), id, req.Recipient)
	if err != nil {
		respondEngineError(w, err)
		return
	}
	respondJSON(w, AmountResponse{MarketID: id, Amount: amount})
}

// ==============================
// Limit orders
// ==============================

func (s *Server) handlePlaceLimitOrder(w http.ResponseWriter, r *http.Request) {
	var req LimitOrderRequest
	if !decodeBody(w, r, &req) {
		return
	}
	o, err := s.opts.Watcher.Place(watcher.Order{
		Account:  req.Account,
		MarketID: mux.Vars(r)["id"],
		Outcome:  req.Outcome,
		Side:     req.Side,
		Limit:    req.Limit,
		Amount:   req.Amount,
		MinOut:   req.MinOut,
	})
	if err != nil {
		respondEngineError(w, err)
		return
	}
	respondStatus(w, http.StatusCreated, o)
}

func (s *Server) handleListLimitOrders(w http.ResponseWriter, r *http.Request) {
	orders := s.opts.Watcher.Pending()
	if acct := r.URL.Query().Get("account"); acct != "" {
		addr, ok := parseAddress(w, acct)
		if !ok {
			return
		}
		filtered := orders[:0]
		for _, o := range orders {
			if o.Account == addr {
				filtered = append(filtered, o)
			}
		}
		orders = filtered
	}
	respondJSON(w, orders)
}

func (s *Server) handleCancelLimitOrder(w http.ResponseWriter, r *http.Request) {
	o, err := s.opts.Watcher.Cancel(mux.Vars(r)["order"])
	if err != nil {
		respondEngineError(w, err)
		return
	}
	respondJSON(w, o)
}

// ==============================
// Accounts
// ==============================

func (s *Server) handleListPositions(w http.ResponseWriter, r *http.Request) {
	addr, ok := parseAddress(w, mux.Vars(r)["address"])
	if !ok {
		return
	}
	positions := s.engine.ListPositions(addr)
	response := make([]predict.Valuation, 0, len(positions))
	for _, pos := range positions {
		v, err := s.engine.Valuation(addr, pos.MarketID)
		if err != nil {
			respondEngineError(w, err)
			return
		}
		response = append(response, v)
	}
	respondJSON(w, response)
}

func (s *Server) handleValuation(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	addr, ok := parseAddress(w, vars["address"])
	if !ok {
		return
	}
	v, err := s.engine.Valuation(addr, vars["id"])
	if err != nil {
		respondEngineError(w, err)
		return
	}
	respondJSON(w, v)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, map[string]interface{}{
		"status":     "ok",
		"markets":    s.engine.MarketCount(),
		"ws_clients": s.hub.ClientCount(),
	})
}
