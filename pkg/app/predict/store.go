package predict

import (
	"github.com/uhyunpark/hyperpredict/pkg/app/core/ledger"
	"github.com/uhyunpark/hyperpredict/pkg/app/core/market"
	"github.com/uhyunpark/hyperpredict/pkg/app/core/pool"
	"github.com/uhyunpark/hyperpredict/pkg/app/core/settlement"
)

// Record is the persisted state of one market. Stores lay it out as flat keyed
// records (market, pool, fee accumulator, settlement, one per position).
type Record struct {
	Market     market.Market
	Pool       pool.Pool
	Fees       settlement.Fees
	Settlement *settlement.Settlement
	// Positions holds only the positions changed by the operation on Commit,
	// and every position of the market on Load.
	Positions []ledger.Position
}

// Store persists engine state. Commit must be atomic per record.
type Store interface {
	Commit(rec Record) error
	Load() ([]Record, error)
	Close() error
}
