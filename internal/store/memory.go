package store

import (
	"context"
	"sync"

	"github.com/atmx/portfolio-engine/internal/model"
)

// DefaultSampleRetention is the per-instrument sample cap used when
// NewMemoryJournal is given a non-positive limit.
const DefaultSampleRetention = 1000

// MemoryJournal implements Journal with in-memory slices. Used for testing
// and development. Contents are lost on restart. Price samples are capped
// per instrument; the oldest are dropped first.
type MemoryJournal struct {
	mu         sync.RWMutex
	ledger     []model.Transaction // append order (oldest first)
	samples    map[string][]model.PriceSample
	maxSamples int
}

// NewMemoryJournal creates a new in-memory journal retaining at most
// maxSamples price samples per instrument.
func NewMemoryJournal(maxSamples int) *MemoryJournal {
	if maxSamples <= 0 {
		maxSamples = DefaultSampleRetention
	}
	return &MemoryJournal{
		samples:    make(map[string][]model.PriceSample),
		maxSamples: maxSamples,
	}
}

func (j *MemoryJournal) AppendTransaction(_ context.Context, tx *model.Transaction) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.ledger = append(j.ledger, *tx)
	return nil
}

func (j *MemoryJournal) ListTransactions(_ context.Context, filter TxFilter) ([]model.Transaction, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	var result []model.Transaction
	for i := len(j.ledger) - 1; i >= 0; i-- {
		if !filter.Match(j.ledger[i]) {
			continue
		}
		result = append(result, j.ledger[i])
		if filter.Limit > 0 && len(result) == filter.Limit {
			break
		}
	}
	return result, nil
}

func (j *MemoryJournal) RecordPrices(_ context.Context, samples []model.PriceSample) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	for _, s := range samples {
		kept := append(j.samples[s.InstrumentID], s)
		if over := len(kept) - j.maxSamples; over > 0 {
			// Copy down so the dropped prefix can be collected.
			kept = append(kept[:0:0], kept[over:]...)
		}
		j.samples[s.InstrumentID] = kept
	}
	return nil
}

func (j *MemoryJournal) ListPrices(_ context.Context, instrumentID string, limit int) ([]model.PriceSample, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	all := j.samples[instrumentID]
	if limit > 0 && len(all) > limit {
		all = all[len(all)-limit:]
	}
	out := make([]model.PriceSample, len(all))
	copy(out, all)
	return out, nil
}
