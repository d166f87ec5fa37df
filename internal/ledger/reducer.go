package ledger

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/atmx/portfolio-engine/internal/catalog"
	"github.com/atmx/portfolio-engine/internal/model"
)

// Reducer applies commands to states. Clock and NewID are injectable for
// tests; nil selects time.Now and UUIDv4.
type Reducer struct {
	Clock func() time.Time
	NewID func() string
}

func (r Reducer) now() time.Time {
	if r.Clock != nil {
		return r.Clock()
	}
	return time.Now().UTC()
}

func (r Reducer) newID() string {
	if r.NewID != nil {
		return r.NewID()
	}
	return uuid.New().String()
}

// Apply returns the state that results from cmd. On failure the returned
// state equals s except for Error, which carries the failure message, and
// the typed error is returned alongside. s itself is never modified.
func (r Reducer) Apply(s State, cmd Command) (State, error) {
	next := s.Clone()
	var err error

	switch c := cmd.(type) {
	case Buy:
		err = r.buy(&next, c)
	case Sell:
		err = r.sell(&next, c)
	case PriceTick:
		next.Catalog.ApplyTick(c.InstrumentID, c.Price, r.now())
	case PriceTicks:
		at := r.now()
		for _, t := range c.Ticks {
			next.Catalog.ApplyTick(t.InstrumentID, t.Price, at)
		}
	case Quote:
		next.Catalog.ApplyQuote(c.Quote)
	case SetInstruments:
		next.Catalog = catalog.New(c.Instruments, s.Catalog.Window())
	case Recompute:
	case SetError:
		s.Error = c.Message
		return s, nil
	default:
		err = fmt.Errorf("ledger: unknown command %T", cmd)
	}

	if err != nil {
		s.Error = failureMessage(err)
		return s, err
	}

	next.revalue()
	next.LastUpdated = r.now()
	switch cmd.(type) {
	case Buy, Sell:
		next.Error = ""
	}
	return next, nil
}

func (r Reducer) buy(s *State, c Buy) error {
	in, ok := s.Catalog.Get(c.InstrumentID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, c.InstrumentID)
	}
	price := fill(in, c.Price, c.AtMarket)
	if c.Quantity.LessThan(DustQuantity) || !price.IsPositive() {
		return ErrInvalidOrder
	}

	total := c.Quantity.Mul(price)
	fee := total.Mul(FeeRate)
	if total.Add(fee).GreaterThan(s.Cash) {
		return fmt.Errorf("%w: need %s, have %s", ErrInsufficientFunds, total.Add(fee).StringFixed(2), s.Cash.StringFixed(2))
	}

	if i := s.holdingIndex(c.InstrumentID); i >= 0 {
		s.Holdings[i] = blend(s.Holdings[i], c.Quantity, price)
	} else {
		s.Holdings = append(s.Holdings, model.Holding{
			InstrumentID:    in.ID,
			Symbol:          in.Symbol,
			Name:            in.Name,
			Quantity:        c.Quantity,
			AverageBuyPrice: price,
		})
	}

	s.Cash = s.Cash.Sub(total).Sub(fee)
	s.record(r.transaction(in, model.TxBuy, c.Quantity, price, total, fee))
	return nil
}

func (r Reducer) sell(s *State, c Sell) error {
	in, ok := s.Catalog.Get(c.InstrumentID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, c.InstrumentID)
	}
	price := fill(in, c.Price, c.AtMarket)
	if c.Quantity.LessThan(DustQuantity) || !price.IsPositive() {
		return ErrInvalidOrder
	}

	i := s.holdingIndex(c.InstrumentID)
	if i < 0 {
		return fmt.Errorf("%w: no %s held", ErrInsufficientHoldings, in.Symbol)
	}
	held := s.Holdings[i].Quantity
	if c.Quantity.GreaterThan(held) {
		return fmt.Errorf("%w: have %s %s", ErrInsufficientHoldings, held.String(), in.Symbol)
	}

	total := c.Quantity.Mul(price)
	fee := total.Mul(FeeRate)

	remaining := held.Sub(c.Quantity)
	if remaining.LessThan(DustQuantity) {
		s.Holdings = append(s.Holdings[:i:i], s.Holdings[i+1:]...)
	} else {
		s.Holdings[i].Quantity = remaining
	}

	s.Cash = s.Cash.Add(total).Sub(fee)
	s.record(r.transaction(in, model.TxSell, c.Quantity, price, total, fee))
	return nil
}

// fill returns the execution price: the catalog price for market orders,
// otherwise the requested one.
func fill(in model.Instrument, requested decimal.Decimal, atMarket bool) decimal.Decimal {
	if atMarket {
		return in.Price
	}
	return requested
}

func (r Reducer) transaction(in model.Instrument, typ model.TxType, qty, price, total, fee decimal.Decimal) model.Transaction {
	return model.Transaction{
		ID:           r.newID(),
		InstrumentID: in.ID,
		Symbol:       in.Symbol,
		Name:         in.Name,
		Type:         typ,
		Quantity:     qty,
		Price:        price,
		Total:        total,
		Fee:          fee,
		Timestamp:    r.now(),
		Status:       model.TxCompleted,
	}
}

// record prepends tx so the log stays newest first.
func (s *State) record(tx model.Transaction) {
	txs := make([]model.Transaction, 0, len(s.Transactions)+1)
	txs = append(txs, tx)
	s.Transactions = append(txs, s.Transactions...)
}

func failureMessage(err error) string {
	switch {
	case errors.Is(err, ErrInsufficientFunds):
		return "Insufficient balance"
	case errors.Is(err, ErrInsufficientHoldings):
		return "Insufficient crypto balance"
	case errors.Is(err, ErrNotFound):
		return "Crypto not found"
	case errors.Is(err, ErrInvalidOrder):
		return "Quantity and price must be greater than zero"
	}
	return err.Error()
}
