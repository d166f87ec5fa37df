// Package catalog holds the list of tradable instruments and applies price
// ticks to them: incremental 24h change, running high/low, and a fixed-length
// sliding price history.
package catalog

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/atmx/portfolio-engine/internal/model"
)

// DefaultWindow is the default price history length (50 intervals plus the
// current point).
const DefaultWindow = 51

var hundred = decimal.NewFromInt(100)

// Quote is an externally computed instrument snapshot. History is optional;
// when nil the existing window is kept.
type Quote struct {
	InstrumentID     string             `json:"instrument_id"`
	Price            decimal.Decimal    `json:"price"`
	Change24h        decimal.Decimal    `json:"change_24h"`
	ChangePercent24h decimal.Decimal    `json:"change_percent_24h"`
	History          []model.PricePoint `json:"history,omitempty"`
}

// Catalog is an ordered set of instruments keyed by ID. A Catalog is a value
// owned by one ledger state; use Clone before mutating a shared copy.
type Catalog struct {
	instruments []model.Instrument
	index       map[string]int
	window      int
}

// New builds a catalog from instruments. Later duplicates of an ID replace
// earlier ones in place. A window below 1 selects DefaultWindow.
func New(instruments []model.Instrument, window int) Catalog {
	if window < 1 {
		window = DefaultWindow
	}
	c := Catalog{
		instruments: make([]model.Instrument, 0, len(instruments)),
		index:       make(map[string]int, len(instruments)),
		window:      window,
	}
	for _, in := range instruments {
		in.PriceHistory = trimWindow(clonePoints(in.PriceHistory), window)
		if i, ok := c.index[in.ID]; ok {
			c.instruments[i] = in
			continue
		}
		c.index[in.ID] = len(c.instruments)
		c.instruments = append(c.instruments, in)
	}
	return c
}

// Window returns the configured price history length.
func (c Catalog) Window() int { return c.window }

// Len returns the number of instruments.
func (c Catalog) Len() int { return len(c.instruments) }

// Get returns a copy of the instrument with the given ID.
func (c Catalog) Get(id string) (model.Instrument, bool) {
	i, ok := c.index[id]
	if !ok {
		return model.Instrument{}, false
	}
	in := c.instruments[i]
	in.PriceHistory = clonePoints(in.PriceHistory)
	return in, true
}

// Price returns the current price of an instrument.
func (c Catalog) Price(id string) (decimal.Decimal, bool) {
	i, ok := c.index[id]
	if !ok {
		return decimal.Zero, false
	}
	return c.instruments[i].Price, true
}

// List returns copies of all instruments in catalog order.
func (c Catalog) List() []model.Instrument {
	out := make([]model.Instrument, len(c.instruments))
	for i, in := range c.instruments {
		in.PriceHistory = clonePoints(in.PriceHistory)
		out[i] = in
	}
	return out
}

// Clone returns a deep copy, history windows included.
func (c Catalog) Clone() Catalog {
	out := Catalog{
		instruments: c.List(),
		index:       make(map[string]int, len(c.index)),
		window:      c.window,
	}
	for id, i := range c.index {
		out.index[id] = i
	}
	return out
}

// ApplyTick moves an instrument to newPrice. The 24h change is computed
// against baseline = price − change24h of the previous tick, so it
// accumulates rather than looking back at a fixed point in time.
// Unknown IDs and non-positive prices are ignored and report false.
func (c *Catalog) ApplyTick(id string, newPrice decimal.Decimal, at time.Time) bool {
	i, ok := c.index[id]
	if !ok || !newPrice.IsPositive() {
		return false
	}
	in := &c.instruments[i]

	baseline := in.Price.Sub(in.Change24h)
	change := newPrice.Sub(baseline)
	percent := decimal.Zero
	if baseline.IsPositive() {
		percent = change.Div(baseline).Mul(hundred).Round(2)
	}

	in.Price = newPrice
	in.Change24h = change
	in.ChangePercent24h = percent
	updateExtrema(in, newPrice)
	in.PriceHistory = appendWindow(in.PriceHistory, model.PricePoint{Time: at, Price: newPrice}, c.window)
	return true
}

// ApplyQuote installs an externally computed snapshot for one instrument.
func (c *Catalog) ApplyQuote(q Quote) bool {
	i, ok := c.index[q.InstrumentID]
	if !ok || !q.Price.IsPositive() {
		return false
	}
	in := &c.instruments[i]
	in.Price = q.Price
	in.Change24h = q.Change24h
	in.ChangePercent24h = q.ChangePercent24h
	if q.History != nil {
		in.PriceHistory = trimWindow(clonePoints(q.History), c.window)
	}
	updateExtrema(in, q.Price)
	return true
}

func updateExtrema(in *model.Instrument, price decimal.Decimal) {
	if in.High24h.IsZero() || price.GreaterThan(in.High24h) {
		in.High24h = price
	}
	if in.Low24h.IsZero() || price.LessThan(in.Low24h) {
		in.Low24h = price
	}
}

// appendWindow appends p, dropping the oldest samples so that at most
// window points remain. The returned slice never aliases history.
func appendWindow(history []model.PricePoint, p model.PricePoint, window int) []model.PricePoint {
	out := make([]model.PricePoint, 0, window)
	if drop := len(history) + 1 - window; drop > 0 {
		history = history[drop:]
	}
	out = append(out, history...)
	return append(out, p)
}

func trimWindow(history []model.PricePoint, window int) []model.PricePoint {
	if len(history) > window {
		return history[len(history)-window:]
	}
	return history
}

func clonePoints(src []model.PricePoint) []model.PricePoint {
	if src == nil {
		return nil
	}
	out := make([]model.PricePoint, len(src))
	copy(out, src)
	return out
}
