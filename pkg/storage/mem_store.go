package storage

import (
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/uhyunpark/hyperpredict/pkg/app/core/ledger"
	"github.com/uhyunpark/hyperpredict/pkg/app/predict"
)

// MemStore keeps records in memory. It is used by tests and ephemeral nodes.
type MemStore struct {
	mu        sync.Mutex
	records   map[string]predict.Record
	positions map[string]map[common.Address]ledger.Position
	commits   int
}

func NewMemStore() *MemStore {
	return &MemStore{
		records:   make(map[string]predict.Record),
		positions: make(map[string]map[common.Address]ledger.Position),
	}
}

func (s *MemStore) Commit(rec predict.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := rec.Market.ID
	stored := predict.Record{Market: rec.Market.Clone(), Pool: rec.Pool, Fees: rec.Fees}
	if rec.Settlement != nil {
		stl := *rec.Settlement
		stored.Settlement = &stl
	}
	s.records[id] = stored

	byAcct, ok := s.positions[id]
	if !ok {
		byAcct = make(map[common.Address]ledger.Position)
		s.positions[id] = byAcct
	}
	for _, pos := range rec.Positions {
		byAcct[pos.Account] = pos
	}
	s.commits++
	return nil
}

func (s *MemStore) Load() ([]predict.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]predict.Record, 0, len(s.records))
	for id, rec := range s.records {
		rec.Market = rec.Market.Clone()
		for _, pos := range s.positions[id] {
			rec.Positions = append(rec.Positions, pos)
		}
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Market.ID < out[j].Market.ID })
	return out, nil
}

// Commits returns how many records have been committed.
func (s *MemStore) Commits() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.commits
}

func (s *MemStore) Close() error { return nil }

var _ predict.Store = (*MemStore)(nil)
