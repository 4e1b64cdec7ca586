// Package ledger records who owns which outcome shares and LP units of a market.
//
// A Book never credits or debits a position on its own: every mutation is paired
// with the matching pool mutation (or settlement payout) in a single call. Changes
// are staged until Commit so that a failed operation leaves no trace.
package ledger

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/uhyunpark/hyperpredict/pkg/app/core/fixed"
	"github.com/uhyunpark/hyperpredict/pkg/app/core/outcome"
)

var ErrNegativeBalance = errors.New("negative balance")

// Position is one account's holdings in one market.
type Position struct {
	Account  common.Address `json:"account"`
	MarketID string         `json:"market_id"`
	Yes      fixed.Point    `json:"yes"`
	No       fixed.Point    `json:"no"`
	LPUnits  fixed.Point    `json:"lp_units"`
	// Invested is the cumulative collateral paid in (buys and deposits).
	Invested fixed.Point `json:"invested"`
	// Withdrawn is the cumulative collateral paid out (sells, merges, redemptions).
	Withdrawn fixed.Point `json:"withdrawn"`
}

func (p Position) Shares(o outcome.Outcome) fixed.Point {
	if o == outcome.Yes {
		return p.Yes
	}
	return p.No
}

func (p *Position) setShares(o outcome.Outcome, v fixed.Point) {
	if o == outcome.Yes {
		p.Yes = v
	} else {
		p.No = v
	}
}

func (p Position) Empty() bool {
	return p.Yes.IsZero() && p.No.IsZero() && p.LPUnits.IsZero()
}

// Book holds the positions of a single market.
type Book struct {
	marketID string

	mu        sync.RWMutex
	committed map[common.Address]Position

	// staged is only touched by the market's single writer
	staged map[common.Address]Position
}

func NewBook(marketID string) *Book {
	return &Book{
		marketID:  marketID,
		committed: make(map[common.Address]Position),
		staged:    make(map[common.Address]Position),
	}
}

// Restore loads persisted positions into the committed set.
func (b *Book) Restore(positions []Position) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, p := range positions {
		b.committed[p.Account] = p
	}
}

// Get returns the committed position of acct (zero if it never traded).
func (b *Book) Get(acct common.Address) Position {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if p, ok := b.committed[acct]; ok {
		return p
	}
	return Position{Account: acct, MarketID: b.marketID}
}

// Lookup returns the committed position of acct and whether it exists.
func (b *Book) Lookup(acct common.Address) (Position, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	p, ok := b.committed[acct]
	return p, ok
}

// All returns committed positions ordered by account.
func (b *Book) All() []Position {
	b.mu.RLock()
	out := make([]Position, 0, len(b.committed))
	for _, p := range b.committed {
		out = append(out, p)
	}
	b.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		return out[i].Account.Cmp(out[j].Account) < 0
	})
	return out
}

// Totals sums share and LP balances over all committed positions.
func (b *Book) Totals() (yes, no, lp fixed.Point, err error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, p := range b.committed {
		if yes, err = yes.Add(p.Yes); err != nil {
			return
		}
		if no, err = no.Add(p.No); err != nil {
			return
		}
		if lp, err = lp.Add(p.LPUnits); err != nil {
			return
		}
	}
	return
}

func (b *Book) current(acct common.Address) Position {
	if p, ok := b.staged[acct]; ok {
		return p
	}
	return b.Get(acct)
}

// Staged returns the positions changed since the last Commit or Discard.
func (b *Book) Staged() []Position {
	out := make([]Position, 0, len(b.staged))
	for _, p := range b.staged {
		out = append(out, p)
	}
	return out
}

// Commit publishes staged changes.
func (b *Book) Commit() {
	b.mu.Lock()
	for acct, p := range b.staged {
		b.committed[acct] = p
	}
	b.mu.Unlock()
	b.staged = make(map[common.Address]Position)
}

// Discard drops staged changes.
func (b *Book) Discard() {
	b.staged = make(map[common.Address]Position)
}

func debit(have, amount fixed.Point, what string) (fixed.Point, error) {
	left, err := have.Sub(amount)
	if err != nil {
		return fixed.Point{}, fmt.Errorf("%w: %s balance %s, debit %s", ErrNegativeBalance, what, have, amount)
	}
	return left, nil
}
