package ledger

import (
	"errors"

	"github.com/shopspring/decimal"

	"github.com/atmx/portfolio-engine/internal/catalog"
	"github.com/atmx/portfolio-engine/internal/model"
)

var (
	// ErrNotFound is returned when the referenced instrument is not in the
	// catalog.
	ErrNotFound = errors.New("ledger: instrument not found")

	// ErrInsufficientFunds is returned when a buy, fee included, exceeds
	// the cash balance.
	ErrInsufficientFunds = errors.New("ledger: insufficient funds")

	// ErrInsufficientHoldings is returned when a sell exceeds the held
	// quantity or no holding exists.
	ErrInsufficientHoldings = errors.New("ledger: insufficient holdings")

	// ErrInvalidOrder is returned for a quantity below DustQuantity or a
	// non-positive price.
	ErrInvalidOrder = errors.New("ledger: quantity and price must be positive")
)

// Command is a ledger transition. The set of commands is closed: every
// implementation lives in this package and Reducer.Apply handles each one.
type Command interface {
	command()
}

// Buy purchases Quantity units of an instrument at Price. When AtMarket is
// set Price is ignored and the order fills at the catalog price current
// when the command is applied.
type Buy struct {
	InstrumentID string          `json:"instrument_id"`
	Quantity     decimal.Decimal `json:"quantity"`
	Price        decimal.Decimal `json:"price"`
	AtMarket     bool            `json:"at_market,omitempty"`
}

// Sell disposes of Quantity units of a held instrument at Price, or at the
// catalog price when AtMarket is set.
type Sell struct {
	InstrumentID string          `json:"instrument_id"`
	Quantity     decimal.Decimal `json:"quantity"`
	Price        decimal.Decimal `json:"price"`
	AtMarket     bool            `json:"at_market,omitempty"`
}

// PriceTick moves one instrument to a new simulated price.
type PriceTick struct {
	InstrumentID string          `json:"instrument_id"`
	Price        decimal.Decimal `json:"price"`
}

// PriceTicks applies a batch of ticks with a single revaluation.
type PriceTicks struct {
	Ticks []PriceTick `json:"ticks"`
}

// Quote installs an externally computed instrument snapshot.
type Quote struct {
	catalog.Quote
}

// SetInstruments replaces the catalog.
type SetInstruments struct {
	Instruments []model.Instrument `json:"instruments"`
}

// Recompute refreshes derived valuation fields without other changes.
type Recompute struct{}

// SetError sets the display error. An empty message clears it.
type SetError struct {
	Message string `json:"message"`
}

func (Buy) command()            {}
func (Sell) command()           {}
func (PriceTick) command()      {}
func (PriceTicks) command()     {}
func (Quote) command()          {}
func (SetInstruments) command() {}
func (Recompute) command()      {}
func (SetError) command()       {}
