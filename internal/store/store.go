// Package store defines the audit journal for the portfolio engine.
// Implementations include PostgreSQL, Redis (read-through cache), and
// in-memory (default and testing).
//
// The journal is write-only from the ledger's point of view: completed
// trades and price samples are appended as they happen, and the ledger never
// restores its state from it.
package store

import (
	"context"

	"github.com/atmx/portfolio-engine/internal/model"
)

// TxFilter narrows a transaction listing. Zero values match everything;
// Limit ≤ 0 means no limit.
type TxFilter struct {
	InstrumentID string
	Type         model.TxType
	Limit        int
}

// Match reports whether tx passes the filter's field conditions.
func (f TxFilter) Match(tx model.Transaction) bool {
	if f.InstrumentID != "" && tx.InstrumentID != f.InstrumentID {
		return false
	}
	if f.Type != "" && tx.Type != f.Type {
		return false
	}
	return true
}

// Journal is the audit trail interface.
type Journal interface {
	// --- Immutable trade log ---

	// AppendTransaction appends a completed trade.
	AppendTransaction(ctx context.Context, tx *model.Transaction) error

	// ListTransactions returns matching trades, newest first.
	ListTransactions(ctx context.Context, filter TxFilter) ([]model.Transaction, error)

	// --- Price samples ---

	// RecordPrices appends one batch of price samples.
	RecordPrices(ctx context.Context, samples []model.PriceSample) error

	// ListPrices returns the most recent samples for an instrument, oldest
	// first. limit ≤ 0 returns all of them.
	ListPrices(ctx context.Context, instrumentID string, limit int) ([]model.PriceSample, error)
}
