package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/uhyunpark/hyperpredict/params"
	"github.com/uhyunpark/hyperpredict/pkg/api"
	"github.com/uhyunpark/hyperpredict/pkg/app/core/oracle"
	"github.com/uhyunpark/hyperpredict/pkg/app/core/resolution"
	"github.com/uhyunpark/hyperpredict/pkg/app/predict"
	"github.com/uhyunpark/hyperpredict/pkg/crypto"
	"github.com/uhyunpark/hyperpredict/pkg/feed"
	"github.com/uhyunpark/hyperpredict/pkg/p2p"
	"github.com/uhyunpark/hyperpredict/pkg/storage"
	"github.com/uhyunpark/hyperpredict/pkg/util"
	"github.com/uhyunpark/hyperpredict/pkg/watcher"
)

func main() {
	// Load config from .env file and environment variables
	cfg := params.LoadFromEnv("")

	var (
		logger *zap.Logger
		err    error
	)
	if cfg.Storage.LogFile != "" {
		logger, err = util.NewLoggerWithFile(cfg.Storage.LogFile, cfg.Storage.LogLevel)
	} else {
		logger, err = util.NewLogger(cfg.Storage.LogLevel)
	}
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()

	if err := run(cfg, sugar); err != nil {
		sugar.Fatalw("node_failed", "err", err)
	}
	sugar.Info("node_stopped")
}

func run(cfg params.Config, sugar *zap.SugaredLogger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ---- Storage ----
	if err := os.MkdirAll(cfg.Storage.DataDir, 0o755); err != nil {
		return err
	}
	store, err := storage.NewPebbleStore(filepath.Join(cfg.Storage.DataDir, "markets"))
	if err != nil {
		return err
	}

	// ---- Oracle ----
	domain := crypto.DefaultDomain()
	domain.ChainID = cfg.Oracle.ChainID
	domain.VerifyingContract = cfg.Oracle.VerifyingContract
	verifier, err := crypto.NewVerifier(cfg.Oracle.SigScheme, domain)
	if err != nil {
		store.Close()
		return err
	}
	var priceFeed oracle.Feed
	if cfg.Oracle.FeedURL != "" {
		priceFeed = feed.NewHTTPFeed(cfg.Oracle.FeedURL, cfg.Oracle.FeedTimeout)
	}
	resolver := resolution.NewResolver(priceFeed, verifier)

	// ---- Engine ----
	engine, err := predict.New(predict.Config{
		MinReserve:           cfg.Engine.MinReserve,
		MaxFeeBps:            cfg.Engine.MaxFeeBps,
		DefaultDisputeWindow: cfg.Engine.DefaultDisputeWindow,
	}, store, resolver, util.RealClock{}, sugar.Named("engine"))
	if err != nil {
		store.Close()
		return err
	}
	defer engine.Close()

	var journal storage.Journal = storage.NewNopJournal()
	if cfg.Storage.JournalFile != "" {
		fj, err := storage.NewFileJournal(cfg.Storage.JournalFile)
		if err != nil {
			return err
		}
		journal = fj
	}
	defer journal.Close()
	engine.Subscribe(func(ev predict.Event) {
		if err := journal.Append(ev); err != nil {
			sugar.Warnw("journal_append_failed", "market", ev.Snapshot.Market.ID, "err", err)
		}
	})

	w := watcher.New(engine, util.RealClock{}, cfg.Engine.TickInterval, sugar.Named("watcher"))

	g, gctx := errgroup.WithContext(ctx)

	// ---- Gossip ----
	var gossip *p2p.VerdictGossip
	if cfg.P2P.Enabled {
		gossip, err = p2p.NewVerdictGossip(gctx, p2p.Libp2pConfig{
			ListenAddr: cfg.P2P.Listen,
			Bootstrap:  cfg.P2P.Bootstrap,
			Logger:     sugar.Named("p2p"),
		}, engine)
		if err != nil {
			return err
		}
		defer gossip.Close()
		g.Go(func() error { return gossip.Run(gctx) })
	}

	// ---- API Server ----
	opts := api.Options{
		CORSOrigins: cfg.API.CORSOrigins,
		RateLimit:   rate.Limit(cfg.API.RateLimitRPS),
		Burst:       cfg.API.RateLimitBurst,
		Watcher:     w,
	}
	if gossip != nil {
		opts.OnVerdict = func(ctx context.Context, marketID string, v oracle.Verdict) {
			if err := gossip.Publish(ctx, marketID, v); err != nil {
				sugar.Warnw("verdict_publish_failed", "market", marketID, "err", err)
			}
		}
	}
	server := api.NewServer(engine, opts, sugar.Named("api"))
	g.Go(func() error { return server.Start(gctx, cfg.API.Addr) })

	// ---- Lifecycle sweep ----
	g.Go(func() error {
		ticker := time.NewTicker(cfg.Engine.TickInterval)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				n, err := engine.Tick(gctx)
				if err != nil {
					sugar.Errorw("tick_failed", "err", err)
					continue
				}
				if n > 0 {
					sugar.Infow("markets_advanced", "count", n)
				}
			}
		}
	})

	g.Go(func() error { return w.Run(gctx) })

	sugar.Infow("node_starting",
		"markets", engine.MarketCount(),
		"api_addr", cfg.API.Addr,
		"p2p", cfg.P2P.Enabled,
		"sig_scheme", cfg.Oracle.SigScheme,
		"price_feed", cfg.Oracle.FeedURL != "")

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
