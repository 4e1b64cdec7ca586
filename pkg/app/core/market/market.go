package market

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/uhyunpark/hyperpredict/pkg/app/core/oracle"
	"github.com/uhyunpark/hyperpredict/pkg/app/core/outcome"
	"github.com/uhyunpark/hyperpredict/pkg/app/core/pool"
)

const OutcomeTypeBinary = "BINARY"

// Resolution is the final outcome of a market.
type Resolution struct {
	Outcome    outcome.Outcome `json:"outcome"`
	Evidence   string          `json:"evidence"`
	ResolvedAt time.Time       `json:"resolved_at"`
}

// Metadata is optional creator-supplied context shown alongside a market.
type Metadata struct {
	Sources           []string `json:"sources,omitempty"`
	ResolutionDetails string   `json:"resolution_details,omitempty"`
}

// Market is the descriptor and lifecycle record of one binary market.
// CutoffTime and Fees are fixed at creation.
type Market struct {
	ID          string         `json:"id"`
	Title       string         `json:"title"`
	Description string         `json:"description,omitempty"`
	Category    string         `json:"category,omitempty"`
	Tags        []string       `json:"tags,omitempty"`
	Creator     common.Address `json:"creator"`
	OutcomeType string         `json:"outcome_type"`
	ImageURL    string         `json:"image_url,omitempty"`
	Metadata    Metadata       `json:"metadata"`

	CutoffTime    time.Time        `json:"cutoff_time"`
	Fees          pool.FeeSchedule `json:"fees"`
	Source        oracle.Source    `json:"-"`
	DisputeWindow time.Duration    `json:"dispute_window"`

	State           Lifecycle            `json:"state"`
	Resolution      *Resolution          `json:"resolution,omitempty"`
	Attestations    []oracle.Attestation `json:"attestations,omitempty"`
	DisputeDeadline time.Time            `json:"dispute_deadline,omitempty"`
	// Halted is set when settlement hit an integrity fault; the market then
	// refuses every mutation until an operator intervenes.
	Halted bool `json:"halted,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Transition moves the market to a new lifecycle state.
func (m *Market) Transition(to Lifecycle, now time.Time) error {
	if !CanTransition(m.State, to) {
		return fmt.Errorf("market %s: invalid transition %s -> %s", m.ID, m.State, to)
	}
	m.State = to
	m.UpdatedAt = now
	return nil
}

// Clone returns a deep copy safe to mutate.
func (m Market) Clone() Market {
	c := m
	c.Tags = append([]string(nil), m.Tags...)
	c.Metadata.Sources = append([]string(nil), m.Metadata.Sources...)
	c.Attestations = append([]oracle.Attestation(nil), m.Attestations...)
	for i := range c.Attestations {
		c.Attestations[i].Signature = append([]byte(nil), m.Attestations[i].Signature...)
	}
	if m.Resolution != nil {
		r := *m.Resolution
		c.Resolution = &r
	}
	return c
}

type marketJSON Market

type wireMarket struct {
	marketJSON
	Source json.RawMessage `json:"source"`
}

func (m Market) MarshalJSON() ([]byte, error) {
	w := wireMarket{marketJSON: marketJSON(m)}
	if m.Source != nil {
		src, err := oracle.Encode(m.Source)
		if err != nil {
			return nil, err
		}
		w.Source = src
	}
	return json.Marshal(w)
}

func (m *Market) UnmarshalJSON(data []byte) error {
	var w wireMarket
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*m = Market(w.marketJSON)
	if len(w.Source) > 0 && string(w.Source) != "null" {
		src, err := oracle.Decode(w.Source)
		if err != nil {
			return err
		}
		m.Source = src
	}
	return nil
}
