package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/uhyunpark/hyperpredict/pkg/app/core/fixed"
	"github.com/uhyunpark/hyperpredict/pkg/app/core/ledger"
	"github.com/uhyunpark/hyperpredict/pkg/app/core/oracle"
	"github.com/uhyunpark/hyperpredict/pkg/app/core/outcome"
	"github.com/uhyunpark/hyperpredict/pkg/app/core/pool"
	"github.com/uhyunpark/hyperpredict/pkg/app/core/resolution"
	"github.com/uhyunpark/hyperpredict/pkg/app/core/settlement"
	"github.com/uhyunpark/hyperpredict/pkg/app/predict"
	"github.com/uhyunpark/hyperpredict/pkg/feed"
	"github.com/uhyunpark/hyperpredict/pkg/watcher"
)

// Options configures the HTTP layer.
type Options struct {
	CORSOrigins []string
	// RateLimit is requests per second per client address; zero disables it.
	RateLimit rate.Limit
	Burst     int
	// OnVerdict, if set, is called with every verdict the engine accepted.
	OnVerdict func(ctx context.Context, marketID string, v oracle.Verdict)
	// Watcher enables the limit order endpoints.
	Watcher *watcher.Watcher
}

// Server handles REST API and WebSocket connections
type Server struct {
	engine  *predict.Engine
	router  *mux.Router
	hub     *Hub
	limiter *clientLimiter
	opts    Options
	logger  *zap.SugaredLogger

	seq atomic.Uint64
}

// NewServer creates a new API server and subscribes its hub to engine events
func NewServer(engine *predict.Engine, opts Options, logger *zap.SugaredLogger) *Server {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	s := &Server{
		engine: engine,
		router: mux.NewRouter(),
		hub:    NewHub(logger),
		opts:   opts,
		logger: logger,
	}
	if opts.RateLimit > 0 {
		s.limiter = newClientLimiter(opts.RateLimit, opts.Burst)
	}
	engine.Subscribe(s.broadcastEvent)
	if opts.Watcher != nil {
		opts.Watcher.OnFill(s.broadcastFill)
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api/v1").Subrouter()

	// Market endpoints
	api.HandleFunc("/markets", s.handleListMarkets).Methods("GET")
	api.HandleFunc("/markets", s.handleCreateMarket).Methods("POST")
	api.HandleFunc("/markets/{id}", s.handleGetMarket).Methods("GET")
	api.HandleFunc("/markets/{id}/quote", s.handleQuote).Methods("GET")

	// Trading
	api.HandleFunc("/markets/{id}/buy", s.handleTrade(pool.KindBuy)).Methods("POST")
	api.HandleFunc("/markets/{id}/sell", s.handleTrade(pool.KindSell)).Methods("POST")
	api.HandleFunc("/markets/{id}/swap", s.handleTrade(pool.KindSwap)).Methods("POST")
	api.HandleFunc("/markets/{id}/liquidity/add", s.handleAddLiquidity).Methods("POST")
	api.HandleFunc("/markets/{id}/liquidity/remove", s.handleRemoveLiquidity).Methods("POST")
	api.HandleFunc("/markets/{id}/merge", s.handleMerge).Methods("POST")

	// Resolution and settlement
	api.HandleFunc("/markets/{id}/verdicts", s.handleSubmitVerdict).Methods("POST")
	api.HandleFunc("/markets/{id}/settle", s.handleSettle).Methods("POST")
	api.HandleFunc("/markets/{id}/redeem", s.handleRedeem).Methods("POST")
	api.HandleFunc("/markets/{id}/fees", s.handleCollectFees).Methods("POST")

	// Limit orders
	if s.opts.Watcher != nil {
		api.HandleFunc("/markets/{id}/limit-orders", s.handlePlaceLimitOrder).Methods("POST")
		api.HandleFunc("/limit-orders", s.handleListLimitOrders).Methods("GET")
		api.HandleFunc("/limit-orders/{order}", s.handleCancelLimitOrder).Methods("DELETE")
	}

	// Account endpoints
	api.HandleFunc("/accounts/{address}/positions", s.handleListPositions).Methods("GET")
	api.HandleFunc("/accounts/{address}/markets/{id}", s.handleValuation).Methods("GET")

	// WebSocket endpoint
	s.router.HandleFunc("/ws", s.handleWebSocket)

	// Health check
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
}

// Handler returns the router wrapped with CORS and rate limiting
func (s *Server) Handler() http.Handler {
	origins := s.opts.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000", "http://localhost:3001"}
	}
	c := cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	})

	var h http.Handler = s.router
	if s.limiter != nil {
		h = s.limiter.middleware(h)
	}
	return c.Handler(h)
}

// Start serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Start(ctx context.Context, addr string) error {
	go s.hub.Run(ctx)

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Infow("api_listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

// broadcastEvent fans an engine event out to websocket subscribers
func (s *Server) broadcastEvent(ev predict.Event) {
	msg := WSMessage{
		Type:     string(ev.Type),
		Market:   marketInfo(ev.Snapshot),
		Trade:    ev.Receipt,
		Sequence: s.seq.Add(1),
	}
	id := ev.Snapshot.Market.ID
	s.hub.BroadcastToChannel("markets", msg)
	s.hub.BroadcastToChannel("market:"+id, msg)
}

func (s *Server) broadcastFill(f watcher.Fill) {
	msg := WSOrderMessage{Type: "limit_order", Order: f.Order, Sequence: s.seq.Add(1)}
	if f.Err != nil {
		msg.Error = f.Err.Error()
	} else {
		r := f.Receipt
		msg.Trade = &r
	}
	s.hub.BroadcastToChannel("orders:"+f.Order.Account.Hex(), msg)
}

// ==============================
// Helper Functions
// ==============================

func respondJSON(w http.ResponseWriter, data interface{}) {
	respondStatus(w, http.StatusOK, data)
}

func respondStatus(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, error string, message string) {
	respondStatus(w, status, ErrorResponse{
		Error:   error,
		Message: message,
	})
}

// respondEngineError maps engine sentinels to HTTP statuses
func respondEngineError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	respondError(w, status, http.StatusText(status), err.Error())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, predict.ErrMarketNotFound),
		errors.Is(err, watcher.ErrOrderNotFound):
		return http.StatusNotFound
	case errors.Is(err, predict.ErrInvalidMarket),
		errors.Is(err, pool.ErrInvalidAmount),
		errors.Is(err, fixed.ErrArithmetic),
		errors.Is(err, resolution.ErrInvalidVerdict),
		errors.Is(err, oracle.ErrInvalidSource),
		errors.Is(err, watcher.ErrInvalidOrder):
		return http.StatusBadRequest
	case errors.Is(err, predict.ErrMarketClosed),
		errors.Is(err, predict.ErrMarketHalted),
		errors.Is(err, pool.ErrStaleQuote),
		errors.Is(err, resolution.ErrNotAwaitingVerdict),
		errors.Is(err, resolution.ErrDuplicateAttestation),
		errors.Is(err, settlement.ErrNotResolved),
		errors.Is(err, watcher.ErrOrderInFlight):
		return http.StatusConflict
	case errors.Is(err, predict.ErrSlippageExceeded),
		errors.Is(err, pool.ErrInsufficientLiquidity),
		errors.Is(err, pool.ErrZeroLiquidity),
		errors.Is(err, pool.ErrInsufficientLpUnits),
		errors.Is(err, ledger.ErrNegativeBalance),
		errors.Is(err, resolution.ErrUnknownValidator),
		errors.Is(err, resolution.ErrBadSignature),
		errors.Is(err, resolution.ErrVerdictMismatch),
		errors.Is(err, resolution.ErrStaleObservation):
		return http.StatusUnprocessableEntity
	case errors.Is(err, feed.ErrNoObservation):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return false
	}
	return true
}

func parseAddress(w http.ResponseWriter, s string) (common.Address, bool) {
	if !common.IsHexAddress(s) {
		respondError(w, http.StatusBadRequest, "invalid address", s)
		return common.Address{}, false
	}
	return common.HexToAddress(s), true
}

func parseOutcome(w http.ResponseWriter, s string) (outcome.Outcome, bool) {
	o, err := outcome.Parse(s)
	if err != nil || !o.Tradable() {
		respondError(w, http.StatusBadRequest, "invalid outcome", s)
		return outcome.None, false
	}
	return o, true
}
