package predict

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/uhyunpark/hyperpredict/pkg/app/core/ledger"
	"github.com/uhyunpark/hyperpredict/pkg/app/core/market"
	"github.com/uhyunpark/hyperpredict/pkg/app/core/pool"
	"github.com/uhyunpark/hyperpredict/pkg/app/core/settlement"
)

// entry is the live state of one market. mu serializes every mutation of the
// market; readers use the published snapshot and never take mu.
type entry struct {
	mu         sync.Mutex
	market     market.Market
	pool       pool.Pool
	fees       settlement.Fees
	settlement *settlement.Settlement
	book       *ledger.Book

	snap atomic.Pointer[Snapshot]
}

func (e *entry) publish() {
	s := newSnapshot(e.market, e.pool, e.fees, e.settlement)
	e.snap.Store(&s)
}

// registry maps market ids to entries. Unrelated markets never share a lock
// beyond the brief map lookup.
type registry struct {
	mu      sync.RWMutex
	markets map[string]*entry
}

func newRegistry() *registry {
	return &registry{markets: make(map[string]*entry)}
}

func (r *registry) register(e *entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.markets[e.market.ID]; exists {
		return fmt.Errorf("market %s already registered", e.market.ID)
	}
	r.markets[e.market.ID] = e
	return nil
}

func (r *registry) get(id string) (*entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.markets[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMarketNotFound, id)
	}
	return e, nil
}

// list returns entries ordered by creation time, then id.
func (r *registry) list() []*entry {
	r.mu.RLock()
	out := make([]*entry, 0, len(r.markets))
	for _, e := range r.markets {
		out = append(out, e)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].snap.Load().Market, out[j].snap.Load().Market
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
	return out
}

func (r *registry) count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.markets)
}
