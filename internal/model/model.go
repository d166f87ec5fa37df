// Package model defines the core domain types shared across the portfolio engine.
// All monetary values use shopspring/decimal — never float64 for money.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// PricePoint is one sample in an instrument's price history window.
type PricePoint struct {
	Time  time.Time       `json:"time"`
	Price decimal.Decimal `json:"price"`
}

// Instrument is a tradable asset with a live simulated price.
type Instrument struct {
	ID               string          `json:"id"`
	Symbol           string          `json:"symbol"`
	Name             string          `json:"name"`
	Price            decimal.Decimal `json:"price"`
	Change24h        decimal.Decimal `json:"change_24h"`         // absolute
	ChangePercent24h decimal.Decimal `json:"change_percent_24h"` // derived from Change24h
	Volume24h        decimal.Decimal `json:"volume_24h"`
	MarketCap        decimal.Decimal `json:"market_cap"`
	High24h          decimal.Decimal `json:"high_24h"`
	Low24h           decimal.Decimal `json:"low_24h"`
	PriceHistory     []PricePoint    `json:"price_history"` // oldest first, fixed length
}

// Holding is the ledger's record of owned quantity and cost basis for one
// instrument. CurrentPrice, TotalValue, ProfitLoss and ProfitLossPercent are
// a cache refreshed on every valuation pass; never read them from a holding
// that has not been through one.
type Holding struct {
	InstrumentID      string          `json:"instrument_id"`
	Symbol            string          `json:"symbol"`
	Name              string          `json:"name"`
	Quantity          decimal.Decimal `json:"quantity"`
	AverageBuyPrice   decimal.Decimal `json:"average_buy_price"`
	CurrentPrice      decimal.Decimal `json:"current_price"`
	TotalValue        decimal.Decimal `json:"total_value"`
	ProfitLoss        decimal.Decimal `json:"profit_loss"`
	ProfitLossPercent decimal.Decimal `json:"profit_loss_percent"`
}

// CostBasis returns quantity × average buy price.
func (h Holding) CostBasis() decimal.Decimal {
	return h.Quantity.Mul(h.AverageBuyPrice)
}

// TxType is the direction of a trade.
type TxType string

const (
	TxBuy  TxType = "buy"
	TxSell TxType = "sell"
)

// Valid reports whether t is a known trade direction.
func (t TxType) Valid() bool {
	return t == TxBuy || t == TxSell
}

// TxStatus is the lifecycle state of a transaction. The ledger only ever
// produces TxCompleted.
type TxStatus string

const (
	TxCompleted TxStatus = "completed"
	TxPending   TxStatus = "pending"
	TxFailed    TxStatus = "failed"
)

// Transaction is an immutable record of a completed trade.
// Once created, these are never modified or deleted.
type Transaction struct {
	ID           string          `json:"id" db:"id"`
	InstrumentID string          `json:"instrument_id" db:"instrument_id"`
	Symbol       string          `json:"symbol" db:"symbol"`
	Name         string          `json:"name" db:"name"`
	Type         TxType          `json:"type" db:"type"`
	Quantity     decimal.Decimal `json:"quantity" db:"quantity"`
	Price        decimal.Decimal `json:"price" db:"price"` // execution price
	Total        decimal.Decimal `json:"total" db:"total"` // quantity × price
	Fee          decimal.Decimal `json:"fee" db:"fee"`     // total × 0.001
	Timestamp    time.Time       `json:"timestamp" db:"timestamp"`
	Status       TxStatus        `json:"status" db:"status"`
}

// PriceSample is a journalled price observation for one instrument.
type PriceSample struct {
	InstrumentID string          `json:"instrument_id" db:"instrument_id"`
	Price        decimal.Decimal `json:"price" db:"price"`
	Time         time.Time       `json:"time" db:"time"`
}
