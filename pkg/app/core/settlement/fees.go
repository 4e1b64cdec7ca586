package settlement

import (
	"fmt"

	"github.com/uhyunpark/hyperpredict/pkg/app/core/fixed"
	"github.com/uhyunpark/hyperpredict/pkg/app/core/pool"
)

// Recipient selects one side of a fee accumulator.
type Recipient string

const (
	Creator  Recipient = "creator"
	Platform Recipient = "platform"
)

// Fees accumulates the creator and platform fees of one market. Fees never enter
// the pool reserves.
type Fees struct {
	Creator  fixed.Point `json:"creator"`
	Platform fixed.Point `json:"platform"`
}

// Accrue returns f plus the fees charged by q.
func (f Fees) Accrue(q pool.Quote) (Fees, error) {
	creator, err := f.Creator.Add(q.CreatorFee)
	if err != nil {
		return Fees{}, err
	}
	platform, err := f.Platform.Add(q.PlatformFee)
	if err != nil {
		return Fees{}, err
	}
	return Fees{Creator: creator, Platform: platform}, nil
}

// Collect drains one side and returns the drained amount with the updated accumulator.
func (f Fees) Collect(r Recipient) (fixed.Point, Fees, error) {
	switch r {
	case Creator:
		amount := f.Creator
		f.Creator = fixed.Zero()
		return amount, f, nil
	case Platform:
		amount := f.Platform
		f.Platform = fixed.Zero()
		return amount, f, nil
	}
	return fixed.Point{}, f, fmt.Errorf("unknown fee recipient %q", r)
}
