package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/uhyunpark/hyperpredict/pkg/app/predict"
)

// Journal is an append-only audit trail of engine events. It is not read back
// on startup; the keyed records are the source of truth.
type Journal interface {
	Append(ev predict.Event) error
	Close() error
}

type NopJournal struct{}

func NewNopJournal() *NopJournal              { return &NopJournal{} }
func (NopJournal) Append(predict.Event) error { return nil }
func (NopJournal) Close() error               { return nil }

// FileJournal writes one JSON line per event.
type FileJournal struct {
	mu sync.Mutex
	f  *os.File
}

func NewFileJournal(path string) (*FileJournal, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	return &FileJournal{f: f}, nil
}

func (j *FileJournal) Append(ev predict.Event) error {
	line, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	_, err = fmt.Fprintln(j.f, string(line))
	return err
}

func (j *FileJournal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.f.Close()
}

var _ Journal = (*NopJournal)(nil)
var _ Journal = (*FileJournal)(nil)
