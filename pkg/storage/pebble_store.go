package storage

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/cockroachdb/pebble"

	"github.com/uhyunpark/hyperpredict/pkg/app/core/ledger"
	"github.com/uhyunpark/hyperpredict/pkg/app/core/settlement"
	"github.com/uhyunpark/hyperpredict/pkg/app/predict"
)

// PebbleStore persists markets as flat JSON records in Pebble. Each Commit is
// written as one synced batch.
type PebbleStore struct {
	db *pebble.DB
}

// NewPebbleStore opens a Pebble database at the given path
func NewPebbleStore(path string) (*PebbleStore, error) {
	opts := &pebble.Options{
		Cache:                    pebble.NewCache(64 << 20), // 64MB cache
		MemTableSize:             32 << 20,
		MaxConcurrentCompactions: func() int { return 2 },
		L0CompactionThreshold:    2,
		L0StopWritesThreshold:    12,
		LBaseMaxBytes:            64 << 20,
		MaxOpenFiles:             1000,
		BytesPerSync:             512 << 10,
	}
	db, err := pebble.Open(path, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open pebble db at %s: %w", path, err)
	}
	return &PebbleStore{db: db}, nil
}

func (s *PebbleStore) Close() error { return s.db.Close() }

// Commit writes the market, pool, fee and settlement records plus the changed
// positions atomically.
func (s *PebbleStore) Commit(rec predict.Record) error {
	id := rec.Market.ID
	batch := s.db.NewBatch()
	defer batch.Close()

	if err := setJSON(batch, marketKey(id), rec.Market); err != nil {
		return fmt.Errorf("failed to save market: %w", err)
	}
	if err := setJSON(batch, poolKey(id), rec.Pool); err != nil {
		return fmt.Errorf("failed to save pool: %w", err)
	}
	if err := setJSON(batch, feesKey(id), rec.Fees); err != nil {
		return fmt.Errorf("failed to save fees: %w", err)
	}
	if rec.Settlement != nil {
		if err := setJSON(batch, settlementKey(id), rec.Settlement); err != nil {
			return fmt.Errorf("failed to save settlement: %w", err)
		}
	}
	for _, pos := range rec.Positions {
		if err := setJSON(batch, positionKey(id, pos.Account), pos); err != nil {
			return fmt.Errorf("failed to save position: %w", err)
		}
	}

	if err := batch.Commit(pebble.Sync); err != nil {
		return fmt.Errorf("failed to commit market %s: %w", id, err)
	}
	return nil
}

func setJSON(batch *pebble.Batch, key []byte, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return batch.Set(key, data, nil)
}

// Load reads every market with its pool, fees, settlement and positions.
func (s *PebbleStore) Load() ([]predict.Record, error) {
	prefix := []byte(prefixMarket)
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keyUpperBound(prefix),
	})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var out []predict.Record
	for iter.First(); iter.Valid(); iter.Next() {
		var rec predict.Record
		if err := json.Unmarshal(iter.Value(), &rec.Market); err != nil {
			return nil, fmt.Errorf("failed to unmarshal market %s: %w", iter.Key(), err)
		}
		if err := s.loadRest(&rec); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, iter.Error()
}

func (s *PebbleStore) loadRest(rec *predict.Record) error {
	id := rec.Market.ID
	if _, err := s.getJSON(poolKey(id), &rec.Pool); err != nil {
		return fmt.Errorf("failed to load pool %s: %w", id, err)
	}
	if _, err := s.getJSON(feesKey(id), &rec.Fees); err != nil {
		return fmt.Errorf("failed to load fees %s: %w", id, err)
	}
	var stl settlement.Settlement
	found, err := s.getJSON(settlementKey(id), &stl)
	if err != nil {
		return fmt.Errorf("failed to load settlement %s: %w", id, err)
	}
	if found {
		rec.Settlement = &stl
	}

	prefix := positionPrefix(id)
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keyUpperBound(prefix),
	})
	if err != nil {
		return err
	}
	defer iter.Close()
	for iter.First(); iter.Valid(); iter.Next() {
		var pos ledger.Position
		if err := json.Unmarshal(iter.Value(), &pos); err != nil {
			return fmt.Errorf("failed to unmarshal position: %w", err)
		}
		rec.Positions = append(rec.Positions, pos)
	}
	return iter.Error()
}

// getJSON decodes key into v. It reports false if the key does not exist.
func (s *PebbleStore) getJSON(key []byte, v any) (bool, error) {
	data, closer, err := s.db.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	defer closer.Close()
	return true, json.Unmarshal(data, v)
}

var _ predict.Store = (*PebbleStore)(nil)
