package p2p

import (
	"context"
	"errors"
	"fmt"

	libp2p "github.com/libp2p/go-libp2p"
	pubsub "github.com/libp2p/go-libp2p-pubsub"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/peer"
	ma "github.com/multiformats/go-multiaddr"
	"go.uber.org/zap"

	"github.com/uhyunpark/hyperpredict/pkg/app/core/market"
	"github.com/uhyunpark/hyperpredict/pkg/app/core/oracle"
	"github.com/uhyunpark/hyperpredict/pkg/app/core/resolution"
)

const topicVerdicts = "hyperpredict-verdicts/1"

// VerdictSink receives attestations gossiped by peers. *predict.Engine satisfies it.
type VerdictSink interface {
	SubmitVerdict(ctx context.Context, marketID string, v oracle.Verdict) (market.Lifecycle, error)
}

// VerdictGossip relays signed quorum attestations between nodes over GossipSub,
// so a verdict submitted to any node reaches every engine.
type VerdictGossip struct {
	h    host.Host
	ps   *pubsub.PubSub
	log  *zap.SugaredLogger
	sink VerdictSink

	topic *pubsub.Topic
	sub   *pubsub.Subscription
}

type Libp2pConfig struct {
	ListenAddr string
	Bootstrap  []string
	Logger     *zap.SugaredLogger
}

func NewVerdictGossip(ctx context.Context, cfg Libp2pConfig, sink VerdictSink) (*VerdictGossip, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	var opts []libp2p.Option
	if cfg.ListenAddr != "" {
		maddr, err := ma.NewMultiaddr(cfg.ListenAddr)
		if err != nil {
			return nil, err
		}
		opts = append(opts, libp2p.ListenAddrs(maddr))
	}
	h, err := libp2p.New(opts...)
	if err != nil {
		return nil, err
	}
	ps, err := pubsub.NewGossipSub(ctx, h)
	if err != nil {
		h.Close()
		return nil, err
	}

	g := &VerdictGossip{h: h, ps: ps, log: logger, sink: sink}
	for _, bs := range cfg.Bootstrap {
		if err := connectMultiaddr(ctx, h, bs); err != nil {
			logger.Warnw("bootstrap_connect_failed", "addr", bs, "err", err)
		}
	}
	if g.topic, err = ps.Join(topicVerdicts); err != nil {
		h.Close()
		return nil, err
	}
	if g.sub, err = g.topic.Subscribe(); err != nil {
		h.Close()
		return nil, err
	}

	logger.Infow("libp2p_ready", "peer", h.ID().String(), "listen", cfg.ListenAddr)
	return g, nil
}

func connectMultiaddr(ctx context.Context, h host.Host, addr string) error {
	m, err := ma.NewMultiaddr(addr)
	if err != nil {
		return err
	}
	info, err := peer.AddrInfoFromP2pAddr(m)
	if err != nil {
		return err
	}
	return h.Connect(ctx, *info)
}

func (g *VerdictGossip) Host() host.Host { return g.h }

// Connect dials another node directly.
func (g *VerdictGossip) Connect(ctx context.Context, info peer.AddrInfo) error {
	return g.h.Connect(ctx, info)
}

// Publish relays an attestation to peers. The local engine is not called;
// callers submit locally first.
func (g *VerdictGossip) Publish(ctx context.Context, marketID string, v oracle.Verdict) error {
	data, err := encodeVerdict(marketID, v)
	if err != nil {
		return fmt.Errorf("encode verdict: %w", err)
	}
	return g.topic.Publish(ctx, data)
}

// Run feeds gossiped attestations into the sink until ctx is done.
func (g *VerdictGossip) Run(ctx context.Context) error {
	for {
		msg, err := g.sub.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		if msg.GetFrom() == g.h.ID() {
			continue
		}
		w, err := decodeVerdict(msg.Data)
		if err != nil {
			g.log.Debugw("gossip_invalid_verdict", "from", msg.ReceivedFrom.String(), "err", err)
			continue
		}
		state, err := g.sink.SubmitVerdict(ctx, w.MarketID, w.Verdict)
		switch {
		case err == nil:
			g.log.Infow("gossip_verdict_applied", "market", w.MarketID, "validator", w.Verdict.Validator, "state", state.String())
		case errors.Is(err, resolution.ErrDuplicateAttestation), errors.Is(err, resolution.ErrNotAwaitingVerdict):
			// already seen, or the market moved on
		default:
			g.log.Warnw("gossip_verdict_rejected", "market", w.MarketID, "validator", w.Verdict.Validator, "err", err)
		}
	}
}

func (g *VerdictGossip) Close() error {
	g.sub.Cancel()
	if err := g.topic.Close(); err != nil {
		g.log.Debugw("gossip_topic_close_failed", "err", err)
	}
	return g.h.Close()
}
