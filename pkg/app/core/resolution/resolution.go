// Package resolution drives a market from cutoff to a final outcome.
//
// Accepting a verdict is split in two. Prepare does the slow or external work
// (price-feed lookups, signature checks) without touching market state, so no
// market lock is held while an oracle answers. Apply then runs under the
// market's lock and performs the lifecycle transition.
package resolution

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/uhyunpark/hyperpredict/pkg/app/core/market"
	"github.com/uhyunpark/hyperpredict/pkg/app/core/oracle"
	"github.com/uhyunpark/hyperpredict/pkg/app/core/outcome"
)

var (
	ErrNotAwaitingVerdict   = errors.New("market is not awaiting a verdict")
	ErrInvalidVerdict       = errors.New("invalid verdict")
	ErrUnknownValidator     = errors.New("unknown validator")
	ErrBadSignature         = errors.New("invalid attestation signature")
	ErrDuplicateAttestation = errors.New("duplicate attestation")
	ErrVerdictMismatch      = errors.New("verdict does not match reference value")
	ErrStaleObservation     = errors.New("reference value predates cutoff")
)

const disputeExpiredEvidence = "dispute window expired without quorum"

// Resolver checks verdicts against a market's resolution source.
type Resolver struct {
	feed     oracle.Feed
	verifier oracle.Verifier
}

func NewResolver(feed oracle.Feed, verifier oracle.Verifier) *Resolver {
	return &Resolver{feed: feed, verifier: verifier}
}

// Accepted is a verdict that passed its source's checks and is ready to Apply.
type Accepted struct {
	Outcome     outcome.Outcome
	Evidence    string
	Validator   string
	Signature   []byte
	Observation *oracle.Observation
}

// Prepare validates v against m's source. m is a snapshot and is not modified.
func (r *Resolver) Prepare(ctx context.Context, m market.Market, v oracle.Verdict, now time.Time) (Accepted, error) {
	if now.Before(m.CutoffTime) {
		return Accepted{}, fmt.Errorf("%w: cutoff %s not reached", ErrNotAwaitingVerdict, m.CutoffTime.Format(time.RFC3339))
	}
	switch src := m.Source.(type) {
	case oracle.PriceFeed:
		return r.prepareFeed(ctx, m, src, v)
	case oracle.Quorum:
		return r.prepareQuorum(m, src, v)
	default:
		return Accepted{}, fmt.Errorf("%w: market %s has source %T", oracle.ErrInvalidSource, m.ID, m.Source)
	}
}

func (r *Resolver) prepareFeed(ctx context.Context, m market.Market, src oracle.PriceFeed, v oracle.Verdict) (Accepted, error) {
	if r.feed == nil {
		return Accepted{}, fmt.Errorf("%w: no price feed configured", ErrInvalidVerdict)
	}
	obs, err := r.feed.FetchReferenceValue(ctx, src.FeedID, m.CutoffTime)
	if err != nil {
		return Accepted{}, fmt.Errorf("fetch reference value %s: %w", src.FeedID, err)
	}
	if obs.At.Before(m.CutoffTime) {
		return Accepted{}, fmt.Errorf("%w: observed at %s", ErrStaleObservation, obs.At.Format(time.RFC3339))
	}
	got := src.Evaluate(obs.Value)
	if v.Outcome != outcome.None && v.Outcome != got {
		return Accepted{}, fmt.Errorf("%w: claimed %s, %s %s %s gives %s", ErrVerdictMismatch, v.Outcome, obs.Value, src.Comparison, src.Target, got)
	}
	evidence := v.Evidence
	if evidence == "" {
		evidence = fmt.Sprintf("%s=%s at %s", src.FeedID, obs.Value, obs.At.UTC().Format(time.RFC3339))
	}
	return Accepted{Outcome: got, Evidence: evidence, Observation: &obs}, nil
}

func (r *Resolver) prepareQuorum(m market.Market, src oracle.Quorum, v oracle.Verdict) (Accepted, error) {
	switch v.Outcome {
	case outcome.Yes, outcome.No, outcome.Void:
	default:
		return Accepted{}, fmt.Errorf("%w: outcome %s", ErrInvalidVerdict, v.Outcome)
	}
	if !src.Member(v.Validator) {
		return Accepted{}, fmt.Errorf("%w: %q", ErrUnknownValidator, v.Validator)
	}
	payload := oracle.Payload{MarketID: m.ID, Outcome: v.Outcome, Evidence: v.Evidence}
	if r.verifier == nil || len(v.Signature) == 0 || !r.verifier.Verify(v.Validator, payload.Bytes(), v.Signature) {
		return Accepted{}, fmt.Errorf("%w: validator %s", ErrBadSignature, v.Validator)
	}
	return Accepted{
		Outcome:   v.Outcome,
		Evidence:  v.Evidence,
		Validator: oracle.NormalizeValidator(v.Validator),
		Signature: v.Signature,
	}, nil
}

// Apply records an accepted verdict and performs the resulting transition.
func Apply(m *market.Market, a Accepted, now time.Time) error {
	if _, err := Advance(m, now); err != nil {
		return err
	}
	if !m.State.AwaitingVerdict() {
		return fmt.Errorf("%w: market %s is %s", ErrNotAwaitingVerdict, m.ID, m.State)
	}
	switch src := m.Source.(type) {
	case oracle.PriceFeed:
		return resolve(m, a.Outcome, a.Evidence, now)
	case oracle.Quorum:
		return applyAttestation(m, src, a, now)
	default:
		return fmt.Errorf("%w: market %s has source %T", oracle.ErrInvalidSource, m.ID, m.Source)
	}
}

// applyAttestation counts one validator vote. While the market is disputed a
// validator may replace its earlier vote once with a different outcome, so a
// superseding quorum can form inside the dispute window.
func applyAttestation(m *market.Market, src oracle.Quorum, a Accepted, now time.Time) error {
	att := oracle.Attestation{
		Validator:  a.Validator,
		Outcome:    a.Outcome,
		Evidence:   a.Evidence,
		Signature:  a.Signature,
		ReceivedAt: now,
	}
	replaced := false
	for i, prev := range m.Attestations {
		if prev.Validator != a.Validator {
			continue
		}
		if m.State != market.Disputed || prev.Revised || prev.Outcome == a.Outcome {
			return fmt.Errorf("%w: %s already attested %s", ErrDuplicateAttestation, a.Validator, prev.Outcome)
		}
		att.Revised = true
		m.Attestations[i] = att
		replaced = true
		break
	}
	if !replaced {
		m.Attestations = append(m.Attestations, att)
	}
	m.UpdatedAt = now

	votes := Tally(m.Attestations)
	if votes[a.Outcome] >= src.Threshold {
		return resolve(m, a.Outcome, a.Evidence, now)
	}
	if len(votes) > 1 && m.State == market.PendingResolution {
		if err := m.Transition(market.Disputed, now); err != nil {
			return err
		}
		m.DisputeDeadline = now.Add(m.DisputeWindow)
	}
	return nil
}

// Tally counts attestations per outcome.
func Tally(atts []oracle.Attestation) map[outcome.Outcome]int {
	votes := make(map[outcome.Outcome]int)
	for _, a := range atts {
		votes[a.Outcome]++
	}
	return votes
}

// Advance applies the time-driven transitions: Open -> Cutoff -> PendingResolution
// once the cutoff passes, and Disputed -> Resolved(VOID) once the dispute window
// expires. It reports whether the market changed.
func Advance(m *market.Market, now time.Time) (bool, error) {
	changed := false
	if m.State == market.Open && !now.Before(m.CutoffTime) {
		if err := m.Transition(market.Cutoff, now); err != nil {
			return changed, err
		}
		changed = true
	}
	if m.State == market.Cutoff {
		if err := m.Transition(market.PendingResolution, now); err != nil {
			return changed, err
		}
		changed = true
	}
	if m.State == market.Disputed && !now.Before(m.DisputeDeadline) {
		if err := resolve(m, outcome.Void, disputeExpiredEvidence, now); err != nil {
			return changed, err
		}
		changed = true
	}
	return changed, nil
}

func resolve(m *market.Market, o outcome.Outcome, evidence string, now time.Time) error {
	if err := m.Transition(market.Resolved, now); err != nil {
		return err
	}
	m.Resolution = &market.Resolution{Outcome: o, Evidence: evidence, ResolvedAt: now}
	return nil
}
