// Package seed provides the demo data the engine starts from: eight
// instruments, a three-asset portfolio, a short trade history and a cash
// balance.
package seed

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/atmx/portfolio-engine/internal/catalog"
	"github.com/atmx/portfolio-engine/internal/ledger"
	"github.com/atmx/portfolio-engine/internal/model"
	"github.com/atmx/portfolio-engine/internal/simulator"
)

// StartingCash is the default opening balance.
var StartingCash = decimal.NewFromInt(50000)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

type instrumentSeed struct {
	id, symbol, name             string
	price, change, changePct     string
	volume, marketCap, high, low string
}

var instrumentSeeds = []instrumentSeed{
	{"bitcoin", "BTC", "Bitcoin", "67542.32", "1234.56", "1.86", "28500000000", "1328000000000", "68150.00", "66200.00"},
	{"ethereum", "ETH", "Ethereum", "3456.78", "-45.23", "-1.29", "15200000000", "415000000000", "3520.00", "3380.00"},
	{"binancecoin", "BNB", "BNB", "587.45", "12.34", "2.14", "1850000000", "87600000000", "595.00", "570.00"},
	{"solana", "SOL", "Solana", "172.89", "8.76", "5.33", "3200000000", "76500000000", "178.50", "162.00"},
	{"ripple", "XRP", "XRP", "0.5234", "-0.0123", "-2.30", "1450000000", "28500000000", "0.5480", "0.5120"},
	{"cardano", "ADA", "Cardano", "0.4567", "0.0234", "5.40", "520000000", "16200000000", "0.4720", "0.4310"},
	{"avalanche", "AVAX", "Avalanche", "35.67", "1.23", "3.57", "480000000", "14200000000", "37.20", "33.80"},
	{"polkadot", "DOT", "Polkadot", "7.23", "-0.18", "-2.43", "320000000", "10500000000", "7.58", "7.02"},
}

// Instruments returns the default catalog contents with a generated price
// history of window samples at one-minute spacing.
func Instruments(sim *simulator.Simulator, window int, now time.Time) []model.Instrument {
	if window < 1 {
		window = catalog.DefaultWindow
	}
	out := make([]model.Instrument, 0, len(instrumentSeeds))
	for _, s := range instrumentSeeds {
		price := d(s.price)
		out = append(out, model.Instrument{
			ID:               s.id,
			Symbol:           s.symbol,
			Name:             s.name,
			Price:            price,
			Change24h:        d(s.change),
			ChangePercent24h: d(s.changePct),
			Volume24h:        d(s.volume),
			MarketCap:        d(s.marketCap),
			High24h:          d(s.high),
			Low24h:           d(s.low),
			PriceHistory:     sim.History(price, window-1, time.Minute, now),
		})
	}
	return out
}

// Holdings returns the default portfolio. Valuation fields are left for the
// ledger to compute.
func Holdings() []model.Holding {
	return []model.Holding{
		{InstrumentID: "bitcoin", Symbol: "BTC", Name: "Bitcoin", Quantity: d("0.5234"), AverageBuyPrice: d("62500.00")},
		{InstrumentID: "ethereum", Symbol: "ETH", Name: "Ethereum", Quantity: d("2.1567"), AverageBuyPrice: d("3200.00")},
		{InstrumentID: "solana", Symbol: "SOL", Name: "Solana", Quantity: d("15.5"), AverageBuyPrice: d("150.00")},
	}
}

// Transactions returns the default trade history, newest first.
func Transactions(now time.Time) []model.Transaction {
	day := 24 * time.Hour
	tx := func(id, instrumentID, symbol, name string, typ model.TxType, qty, price string, ago time.Duration) model.Transaction {
		total := d(qty).Mul(d(price))
		return model.Transaction{
			ID:           id,
			InstrumentID: instrumentID,
			Symbol:       symbol,
			Name:         name,
			Type:         typ,
			Quantity:     d(qty),
			Price:        d(price),
			Total:        total,
			Fee:          total.Mul(ledger.FeeRate),
			Timestamp:    now.Add(-ago),
			Status:       model.TxCompleted,
		}
	}
	return []model.Transaction{
		tx("tx-005", "solana", "SOL", "Solana", model.TxBuy, "5.5", "145.00", 12*time.Hour),
		tx("tx-004", "bitcoin", "BTC", "Bitcoin", model.TxSell, "0.1", "67000.00", day),
		tx("tx-001", "bitcoin", "BTC", "Bitcoin", model.TxBuy, "0.25", "65000.00", 2*day),
		tx("tx-002", "ethereum", "ETH", "Ethereum", model.TxBuy, "1.0", "3300.00", 5*day),
		tx("tx-003", "solana", "SOL", "Solana", model.TxBuy, "10.0", "155.00", 7*day),
	}
}

// State builds the fully valued opening ledger state.
func State(sim *simulator.Simulator, cash decimal.Decimal, window int, now time.Time) ledger.State {
	cat := catalog.New(Instruments(sim, window, now), window)
	return ledger.NewState(cash, cat, Holdings(), Transactions(now), now)
}
