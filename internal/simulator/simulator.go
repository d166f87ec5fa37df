// Package simulator produces simulated instrument prices: a bounded random
// walk applied on every tick, and a generator for seed price histories.
package simulator

import (
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/atmx/portfolio-engine/internal/ledger"
	"github.com/atmx/portfolio-engine/internal/model"
)

// Volatility bounds per tick, as a fraction of the current price.
const (
	HighPriceVolatility = 0.002 // price > HighPriceThreshold
	DefaultVolatility   = 0.005
)

var (
	// HighPriceThreshold selects the lower volatility band.
	HighPriceThreshold = decimal.NewFromInt(1000)

	one = decimal.NewFromInt(1)
)

// Simulator draws random price moves. It is safe for concurrent use.
type Simulator struct {
	mu   sync.Mutex
	step distuv.Uniform // [-1, 1]
	unit distuv.Uniform // [0, 1]
}

// New creates a simulator. A nil src seeds from the clock.
func New(src rand.Source) *Simulator {
	if src == nil {
		now := uint64(time.Now().UnixNano())
		src = rand.NewPCG(now, now>>1|1)
	}
	return &Simulator{
		step: distuv.Uniform{Min: -1, Max: 1, Src: src},
		unit: distuv.Uniform{Min: 0, Max: 1, Src: src},
	}
}

// Volatility returns the per-tick bound for a price.
func Volatility(price decimal.Decimal) float64 {
	if price.GreaterThan(HighPriceThreshold) {
		return HighPriceVolatility
	}
	return DefaultVolatility
}

// Next returns price × (1 + u) with u uniform in [-v, v], rounded to 4
// places below 1 and to 2 places otherwise. A move that would round to zero
// keeps the current price.
func (s *Simulator) Next(price decimal.Decimal) decimal.Decimal {
	s.mu.Lock()
	u := s.step.Rand() * Volatility(price)
	s.mu.Unlock()

	places := int32(2)
	if price.LessThan(one) {
		places = 4
	}
	next := price.Mul(one.Add(decimal.NewFromFloat(u))).Round(places)
	if !next.IsPositive() {
		return price
	}
	return next
}

// Tick computes one new price for every instrument.
func (s *Simulator) Tick(instruments []model.Instrument) []ledger.PriceTick {
	ticks := make([]ledger.PriceTick, 0, len(instruments))
	for _, in := range instruments {
		ticks = append(ticks, ledger.PriceTick{InstrumentID: in.ID, Price: s.Next(in.Price)})
	}
	return ticks
}

// History generates points+1 samples ending at now, spaced by interval. The
// walk starts at 95% of base, drifts upward slightly, and is clamped to
// ±10% per step.
func (s *Simulator) History(base decimal.Decimal, points int, interval time.Duration, now time.Time) []model.PricePoint {
	b, _ := base.Float64()
	current := b * 0.95
	volatility := b * 0.02

	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]model.PricePoint, 0, points+1)
	for i := points; i >= 0; i-- {
		change := (s.unit.Rand() - 0.48) * volatility
		current = math.Max(current*0.9, math.Min(current*1.1, current+change))
		out = append(out, model.PricePoint{
			Time:  now.Add(-time.Duration(i) * interval),
			Price: decimal.NewFromFloat(current).Round(2),
		})
	}
	return out
}
