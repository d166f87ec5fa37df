// Package ledger implements the portfolio ledger: a cash balance, a set of
// holdings and an append-only transaction log, moved from one State value to
// the next by commands (buy, sell, price ticks).
//
// All monetary values use shopspring/decimal, never float64.
// Values are kept at full precision; rounding happens only at the display
// boundary (see package format).
package ledger

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/atmx/portfolio-engine/internal/catalog"
	"github.com/atmx/portfolio-engine/internal/model"
)

var (
	// FeeRate is charged on the notional of every buy and sell.
	FeeRate = decimal.NewFromFloat(0.001)

	// DustQuantity is the threshold below which a holding is removed.
	DustQuantity = decimal.New(1, -8)

	hundred = decimal.NewFromInt(100)
)

// State is one immutable snapshot of the ledger. Commands never mutate a
// State in place; Reducer.Apply returns a new one.
//
// TotalPortfolioValue, TotalProfitLoss and TotalProfitLossPercent (and the
// derived fields on each holding) are a cache recomputed after every
// transition. They are never set independently.
type State struct {
	Cash         decimal.Decimal     `json:"cash"`
	Catalog      catalog.Catalog     `json:"-"`
	Holdings     []model.Holding     `json:"holdings"`
	Transactions []model.Transaction `json:"transactions"` // newest first

	TotalPortfolioValue    decimal.Decimal `json:"total_portfolio_value"`
	TotalProfitLoss        decimal.Decimal `json:"total_profit_loss"`
	TotalProfitLossPercent decimal.Decimal `json:"total_profit_loss_percent"`

	LastUpdated time.Time `json:"last_updated"`
	Error       string    `json:"error,omitempty"`
}

// NewState builds a valued state from seed data. Holdings below the dust
// threshold are dropped and duplicates for an instrument are merged into one
// cost-weighted holding.
func NewState(cash decimal.Decimal, cat catalog.Catalog, holdings []model.Holding, txs []model.Transaction, now time.Time) State {
	s := State{
		Cash:         cash,
		Catalog:      cat.Clone(),
		Transactions: append([]model.Transaction(nil), txs...),
		LastUpdated:  now,
	}
	for _, h := range holdings {
		if h.Quantity.LessThan(DustQuantity) {
			continue
		}
		if i := s.holdingIndex(h.InstrumentID); i >= 0 {
			s.Holdings[i] = blend(s.Holdings[i], h.Quantity, h.AverageBuyPrice)
			continue
		}
		s.Holdings = append(s.Holdings, h)
	}
	s.revalue()
	return s
}

// Holding returns the holding for an instrument.
func (s State) Holding(instrumentID string) (model.Holding, bool) {
	if i := s.holdingIndex(instrumentID); i >= 0 {
		return s.Holdings[i], true
	}
	return model.Holding{}, false
}

// Instruments returns the catalog contents in order.
func (s State) Instruments() []model.Instrument {
	return s.Catalog.List()
}

// TotalCostBasis is Σ quantity × average buy price over all holdings.
func (s State) TotalCostBasis() decimal.Decimal {
	total := decimal.Zero
	for _, h := range s.Holdings {
		total = total.Add(h.CostBasis())
	}
	return total
}

// NetWorth is cash plus the market value of all holdings.
func (s State) NetWorth() decimal.Decimal {
	return s.Cash.Add(s.TotalPortfolioValue)
}

// Clone returns a deep copy of s.
func (s State) Clone() State {
	out := s
	out.Catalog = s.Catalog.Clone()
	out.Holdings = append([]model.Holding(nil), s.Holdings...)
	out.Transactions = append([]model.Transaction(nil), s.Transactions...)
	return out
}

func (s State) holdingIndex(instrumentID string) int {
	for i, h := range s.Holdings {
		if h.InstrumentID == instrumentID {
			return i
		}
	}
	return -1
}

// revalue refreshes the valuation cache on every holding and the aggregates.
// Holdings whose instrument is missing from the catalog keep their last
// known price.
func (s *State) revalue() {
	for i := range s.Holdings {
		h := &s.Holdings[i]
		if in, ok := s.Catalog.Get(h.InstrumentID); ok {
			h.CurrentPrice = in.Price
			if h.Symbol == "" {
				h.Symbol = in.Symbol
			}
			if h.Name == "" {
				h.Name = in.Name
			}
		}
		h.TotalValue = h.Quantity.Mul(h.CurrentPrice)
		cost := h.CostBasis()
		h.ProfitLoss = h.TotalValue.Sub(cost)
		h.ProfitLossPercent = percentOf(h.ProfitLoss, cost)
	}

	total := decimal.Zero
	for _, h := range s.Holdings {
		total = total.Add(h.TotalValue)
	}
	cost := s.TotalCostBasis()
	s.TotalPortfolioValue = total
	s.TotalProfitLoss = total.Sub(cost)
	s.TotalProfitLossPercent = percentOf(s.TotalProfitLoss, cost)
}

// blend adds qty at price to h using quantity-weighted average cost.
func blend(h model.Holding, qty, price decimal.Decimal) model.Holding {
	newQty := h.Quantity.Add(qty)
	h.AverageBuyPrice = h.AverageBuyPrice.Mul(h.Quantity).Add(price.Mul(qty)).Div(newQty)
	h.Quantity = newQty
	return h
}

func percentOf(part, whole decimal.Decimal) decimal.Decimal {
	if !whole.IsPositive() {
		return decimal.Zero
	}
	return part.Div(whole).Mul(hundred)
}
