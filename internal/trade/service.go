// Package trade provides the HTTP handlers for the portfolio ledger:
// browsing instruments, executing buys and sells, applying price ticks, and
// reading the portfolio and its transaction history.
//
// All monetary values use shopspring/decimal, never float64.
package trade

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/atmx/portfolio-engine/internal/catalog"
	"github.com/atmx/portfolio-engine/internal/format"
	"github.com/atmx/portfolio-engine/internal/ledger"
	"github.com/atmx/portfolio-engine/internal/metrics"
	"github.com/atmx/portfolio-engine/internal/model"
	"github.com/atmx/portfolio-engine/internal/store"
)

// Service exposes a ledger.Book over HTTP. Every state change goes through
// the book, which serializes trades and ticks. Completed trades and price
// samples are appended to the journal after the fact; a journal failure is
// logged and never rolls back the ledger.
type Service struct {
	book    *ledger.Book
	journal store.Journal
	wsHub   *WSHub // optional WebSocket hub for real-time broadcasts
}

// NewService creates a new trade service and subscribes it to book.
// Pass nil for hub if WebSocket broadcasting is not needed.
func NewService(book *ledger.Book, journal store.Journal, hub *WSHub) *Service {
	s := &Service{
		book:    book,
		journal: journal,
		wsHub:   hub,
	}
	book.Observe(s.observe)
	s.observe(ledger.Recompute{}, ledger.State{}, book.Snapshot())
	return s
}

// Routes registers the API handlers on r.
func (s *Service) Routes(r chi.Router) {
	r.Get("/instruments", s.ListInstruments)
	r.Post("/instruments", s.SetInstruments)
	r.Get("/instruments/{instrumentID}", s.GetInstrument)
	r.Get("/instruments/{instrumentID}/stats", s.GetInstrumentStats)

	r.Post("/trade", s.ExecuteTrade)
	r.Post("/ticks", s.ApplyTicksHandler)
	r.Post("/quotes", s.ApplyQuote)

	r.Get("/portfolio", s.GetPortfolio)
	r.Delete("/portfolio/error", s.ClearError)
	r.Get("/transactions", s.ListTransactions)

	r.Get("/journal/transactions", s.ListJournalTransactions)
	r.Get("/journal/prices/{instrumentID}", s.ListJournalPrices)
}

// --- Request/Response types ---

// TradeRequest is the JSON body for POST /trade. A missing price selects the
// instrument's current price.
type TradeRequest struct {
	InstrumentID string              `json:"instrument_id"`
	Type         model.TxType        `json:"type"`
	Quantity     decimal.Decimal     `json:"quantity"`
	Price        decimal.NullDecimal `json:"price"`
}

// TradeResponse is the JSON body returned from POST /trade.
type TradeResponse struct {
	Transaction model.Transaction `json:"transaction"`
	Portfolio   PortfolioResponse `json:"portfolio"`
}

// TicksRequest is the JSON body for POST /ticks.
type TicksRequest struct {
	Ticks []ledger.PriceTick `json:"ticks"`
}

// InstrumentsRequest is the JSON body for POST /instruments.
type InstrumentsRequest struct {
	Instruments []model.Instrument `json:"instruments"`
}

// StatsResponse summarizes an instrument's price history window.
type StatsResponse struct {
	InstrumentID string          `json:"instrument_id"`
	Samples      int             `json:"samples"`
	Mean         decimal.Decimal `json:"mean"`
	StdDev       decimal.Decimal `json:"std_dev"`
	Min          decimal.Decimal `json:"min"`
	Max          decimal.Decimal `json:"max"`
	Current      decimal.Decimal `json:"current"`
}

// PortfolioResponse is the ledger snapshot returned from GET /portfolio.
type PortfolioResponse struct {
	Cash                   decimal.Decimal  `json:"cash"`
	Holdings               []model.Holding  `json:"holdings"`
	TotalPortfolioValue    decimal.Decimal  `json:"total_portfolio_value"`
	TotalProfitLoss        decimal.Decimal  `json:"total_profit_loss"`
	TotalProfitLossPercent decimal.Decimal  `json:"total_profit_loss_percent"`
	NetWorth               decimal.Decimal  `json:"net_worth"`
	LastUpdated            time.Time        `json:"last_updated"`
	Error                  string           `json:"error,omitempty"`
	Display                PortfolioDisplay `json:"display"`
}

// PortfolioDisplay carries the formatted strings a dashboard shows.
type PortfolioDisplay struct {
	Cash              string           `json:"cash"`
	TotalValue        string           `json:"total_value"`
	NetWorth          string           `json:"net_worth"`
	ProfitLoss        string           `json:"profit_loss"`
	ProfitLossPercent string           `json:"profit_loss_percent"`
	LastUpdated       string           `json:"last_updated"`
	Holdings          []HoldingDisplay `json:"holdings"`
}

// HoldingDisplay is the formatted view of one holding.
type HoldingDisplay struct {
	InstrumentID      string `json:"instrument_id"`
	Quantity          string `json:"quantity"`
	Value             string `json:"value"`
	ProfitLoss        string `json:"profit_loss"`
	ProfitLossPercent string `json:"profit_loss_percent"`
}

// TransactionsResponse is returned from GET /transactions.
type TransactionsResponse struct {
	Transactions []model.Transaction `json:"transactions"`
	Count        int                 `json:"count"`
	TotalFees    decimal.Decimal     `json:"total_fees"`
}

// --- simulator.Sink ---

// Instruments returns the current catalog.
func (s *Service) Instruments() []model.Instrument {
	return s.book.Snapshot().Instruments()
}

// ApplyTicks applies one batch of simulated prices and journals the
// resulting samples. A journal failure is logged and counted but does not
// fail the batch, since the prices are already applied.
func (s *Service) ApplyTicks(ctx context.Context, ticks []ledger.PriceTick) error {
	next, err := s.book.Dispatch(ledger.PriceTicks{Ticks: ticks})
	if err != nil {
		return err
	}
	if err := s.journalPrices(ctx, next, ticks); err != nil {
		slog.Error("journal prices failed", "ticks", len(ticks), "err", err)
	}
	return nil
}

// --- HTTP Handlers ---

// ListInstruments handles GET /api/v1/instruments
func (s *Service) ListInstruments(w http.ResponseWriter, r *http.Request) {
	instruments := s.Instruments()
	if instruments == nil {
		instruments = []model.Instrument{}
	}
	writeJSON(w, http.StatusOK, instruments)
}

// GetInstrument handles GET /api/v1/instruments/{instrumentID}
func (s *Service) GetInstrument(w http.ResponseWriter, r *http.Request) {
	in, ok := s.book.Snapshot().Catalog.Get(chi.URLParam(r, "instrumentID"))
	if !ok {
		writeError(w, "instrument not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, in)
}

// GetInstrumentStats handles GET /api/v1/instruments/{instrumentID}/stats
// Summarizes the sliding price history window.
func (s *Service) GetInstrumentStats(w http.ResponseWriter, r *http.Request) {
	in, ok := s.book.Snapshot().Catalog.Get(chi.URLParam(r, "instrumentID"))
	if !ok {
		writeError(w, "instrument not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, historyStats(in))
}

func historyStats(in model.Instrument) StatsResponse {
	resp := StatsResponse{
		InstrumentID: in.ID,
		Samples:      len(in.PriceHistory),
		Current:      in.Price,
	}
	if len(in.PriceHistory) == 0 {
		return resp
	}

	prices := make([]float64, len(in.PriceHistory))
	for i, p := range in.PriceHistory {
		prices[i] = p.Price.InexactFloat64()
	}
	resp.Mean = decimal.NewFromFloat(stat.Mean(prices, nil)).Round(4)
	if len(prices) > 1 {
		resp.StdDev = decimal.NewFromFloat(stat.StdDev(prices, nil)).Round(4)
	}
	resp.Min = decimal.NewFromFloat(floats.Min(prices))
	resp.Max = decimal.NewFromFloat(floats.Max(prices))
	return resp
}

// SetInstruments handles POST /api/v1/instruments
// Replaces the catalog; holdings are revalued against the new prices.
func (s *Service) SetInstruments(w http.ResponseWriter, r *http.Request) {
	var req InstrumentsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	for _, in := range req.Instruments {
		if in.ID == "" {
			writeError(w, "instrument id is required", http.StatusBadRequest)
			return
		}
	}

	next, err := s.book.Dispatch(ledger.SetInstruments{Instruments: req.Instruments})
	if err != nil {
		writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	slog.Info("instruments replaced", "count", next.Catalog.Len())
	writeJSON(w, http.StatusOK, next.Instruments())
}

// ExecuteTrade handles POST /api/v1/trade
// Buys or sells against the ledger and returns the recorded transaction
// with the updated portfolio.
func (s *Service) ExecuteTrade(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req TradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if !req.Type.Valid() {
		writeError(w, "type must be buy or sell", http.StatusBadRequest)
		return
	}

	// Without a price the order fills at the catalog price under the book
	// lock, so a concurrent tick cannot slip in between quote and fill.
	price := req.Price.Decimal
	atMarket := !req.Price.Valid

	var cmd ledger.Command = ledger.Buy{InstrumentID: req.InstrumentID, Quantity: req.Quantity, Price: price, AtMarket: atMarket}
	if req.Type == model.TxSell {
		cmd = ledger.Sell{InstrumentID: req.InstrumentID, Quantity: req.Quantity, Price: price, AtMarket: atMarket}
	}

	next, err := s.book.Dispatch(cmd)
	metrics.TradeLatency.WithLabelValues(string(req.Type)).Observe(time.Since(start).Seconds())
	if err != nil {
		status, reason := tradeFailure(err)
		metrics.TradeRejections.WithLabelValues(reason).Inc()
		slog.Warn("trade rejected",
			"instrument", req.InstrumentID,
			"type", req.Type,
			"qty", req.Quantity.String(),
			"price", price.String(),
			"at_market", atMarket,
			"err", err,
		)
		writeError(w, next.Error, status)
		return
	}

	tx := next.Transactions[0]
	if err := s.journal.AppendTransaction(r.Context(), &tx); err != nil {
		metrics.JournalErrors.WithLabelValues("append_transaction").Inc()
		slog.Error("journal trade failed", "tx", tx.ID, "err", err)
	}

	slog.Info("trade executed",
		"tx", tx.ID,
		"instrument", tx.InstrumentID,
		"type", tx.Type,
		"qty", tx.Quantity.String(),
		"price", tx.Price.String(),
		"fee", tx.Fee.String(),
		"cash", next.Cash.String(),
	)

	writeJSON(w, http.StatusOK, TradeResponse{
		Transaction: tx,
		Portfolio:   portfolioResponse(next),
	})
}

// tradeFailure maps a ledger error to an HTTP status and a metric label.
func tradeFailure(err error) (int, string) {
	switch {
	case errors.Is(err, ledger.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, ledger.ErrInsufficientFunds):
		return http.StatusConflict, "insufficient_funds"
	case errors.Is(err, ledger.ErrInsufficientHoldings):
		return http.StatusConflict, "insufficient_holdings"
	case errors.Is(err, ledger.ErrInvalidOrder):
		return http.StatusBadRequest, "invalid_order"
	}
	return http.StatusInternalServerError, "internal"
}

// ApplyTicksHandler handles POST /api/v1/ticks
// Applies a manual batch of prices. Unknown instruments and non-positive
// prices are ignored, as they are for simulated ticks.
func (s *Service) ApplyTicksHandler(w http.ResponseWriter, r *http.Request) {
	var req TicksRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if len(req.Ticks) == 0 {
		writeError(w, "ticks are required", http.StatusBadRequest)
		return
	}

	next, err := s.book.Dispatch(ledger.PriceTicks{Ticks: req.Ticks})
	if err != nil {
		writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if err := s.journalPrices(r.Context(), next, req.Ticks); err != nil {
		slog.Error("journal prices failed", "err", err)
	}
	writeJSON(w, http.StatusOK, next.Instruments())
}

// ApplyQuote handles POST /api/v1/quotes
// Installs an externally computed price, change and optional history.
func (s *Service) ApplyQuote(w http.ResponseWriter, r *http.Request) {
	var q catalog.Quote
	if err := json.NewDecoder(r.Body).Decode(&q); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if _, ok := s.book.Snapshot().Catalog.Get(q.InstrumentID); !ok {
		writeError(w, "instrument not found", http.StatusNotFound)
		return
	}
	if !q.Price.IsPositive() {
		writeError(w, "price must be greater than zero", http.StatusBadRequest)
		return
	}

	next, err := s.book.Dispatch(ledger.Quote{Quote: q})
	if err != nil {
		writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	ticks := []ledger.PriceTick{{InstrumentID: q.InstrumentID, Price: q.Price}}
	if err := s.journalPrices(r.Context(), next, ticks); err != nil {
		slog.Error("journal prices failed", "err", err)
	}

	in, _ := next.Catalog.Get(q.InstrumentID)
	writeJSON(w, http.StatusOK, in)
}

// GetPortfolio handles GET /api/v1/portfolio
func (s *Service) GetPortfolio(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, portfolioResponse(s.book.Snapshot()))
}

// ClearError handles DELETE /api/v1/portfolio/error
func (s *Service) ClearError(w http.ResponseWriter, r *http.Request) {
	next, err := s.book.Dispatch(ledger.SetError{})
	if err != nil {
		writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, portfolioResponse(next))
}

// ListTransactions handles GET /api/v1/transactions
// Returns the in-memory log newest first, optionally filtered by ?type=.
func (s *Service) ListTransactions(w http.ResponseWriter, r *http.Request) {
	filter, ok := parseFilter(w, r)
	if !ok {
		return
	}

	resp := TransactionsResponse{Transactions: []model.Transaction{}}
	for _, tx := range s.book.Snapshot().Transactions {
		if !filter.Match(tx) {
			continue
		}
		if filter.Limit > 0 && len(resp.Transactions) == filter.Limit {
			break
		}
		resp.Transactions = append(resp.Transactions, tx)
		resp.TotalFees = resp.TotalFees.Add(tx.Fee)
	}
	resp.Count = len(resp.Transactions)
	writeJSON(w, http.StatusOK, resp)
}

// ListJournalTransactions handles GET /api/v1/journal/transactions
// Reads the audit journal rather than the live ledger.
func (s *Service) ListJournalTransactions(w http.ResponseWriter, r *http.Request) {
	filter, ok := parseFilter(w, r)
	if !ok {
		return
	}

	txs, err := s.journal.ListTransactions(r.Context(), filter)
	if err != nil {
		slog.Error("list journal transactions failed", "err", err)
		writeError(w, "failed to read journal", http.StatusInternalServerError)
		return
	}
	if txs == nil {
		txs = []model.Transaction{}
	}
	writeJSON(w, http.StatusOK, txs)
}

// ListJournalPrices handles GET /api/v1/journal/prices/{instrumentID}
func (s *Service) ListJournalPrices(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		writeError(w, "limit must be a non-negative integer", http.StatusBadRequest)
		return
	}

	samples, err := s.journal.ListPrices(r.Context(), chi.URLParam(r, "instrumentID"), limit)
	if err != nil {
		slog.Error("list journal prices failed", "err", err)
		writeError(w, "failed to read journal", http.StatusInternalServerError)
		return
	}
	if samples == nil {
		samples = []model.PriceSample{}
	}
	writeJSON(w, http.StatusOK, samples)
}

// --- Ledger observer ---

// observe runs under the book's lock after every successful transition. It
// only touches metrics and the non-blocking hub.
func (s *Service) observe(cmd ledger.Command, _, next ledger.State) {
	metrics.CashBalance.Set(next.Cash.InexactFloat64())
	metrics.PortfolioValue.Set(next.TotalPortfolioValue.InexactFloat64())
	metrics.Holdings.Set(float64(len(next.Holdings)))

	switch c := cmd.(type) {
	case ledger.Buy, ledger.Sell:
		tx := next.Transactions[0]
		metrics.TradesTotal.WithLabelValues(string(tx.Type)).Inc()
		metrics.TradeVolume.WithLabelValues(tx.InstrumentID, string(tx.Type)).Add(tx.Total.InexactFloat64())
		metrics.FeesTotal.Add(tx.Fee.InexactFloat64())
		s.broadcast(WSMessage{
			Type:           MsgTradeExecuted,
			InstrumentID:   tx.InstrumentID,
			Symbol:         tx.Symbol,
			Price:          tx.Price.String(),
			TxType:         string(tx.Type),
			Quantity:       tx.Quantity.String(),
			TransactionID:  tx.ID,
			Cash:           next.Cash.String(),
			PortfolioValue: next.TotalPortfolioValue.String(),
		})
	case ledger.PriceTick:
		s.priceChanged(next, c.InstrumentID)
	case ledger.PriceTicks:
		for _, t := range c.Ticks {
			s.priceChanged(next, t.InstrumentID)
		}
	case ledger.Quote:
		s.priceChanged(next, c.InstrumentID)
	case ledger.SetInstruments, ledger.Recompute:
		for _, in := range next.Instruments() {
			metrics.InstrumentPrice.WithLabelValues(in.ID).Set(in.Price.InexactFloat64())
		}
	}
}

func (s *Service) priceChanged(next ledger.State, instrumentID string) {
	in, ok := next.Catalog.Get(instrumentID)
	if !ok {
		return
	}
	metrics.PriceTicks.Inc()
	metrics.InstrumentPrice.WithLabelValues(in.ID).Set(in.Price.InexactFloat64())
	s.broadcast(WSMessage{
		Type:           MsgPriceTick,
		InstrumentID:   in.ID,
		Symbol:         in.Symbol,
		Price:          in.Price.String(),
		ChangePercent:  in.ChangePercent24h.String(),
		Cash:           next.Cash.String(),
		PortfolioValue: next.TotalPortfolioValue.String(),
	})
}

func (s *Service) broadcast(msg WSMessage) {
	if s.wsHub != nil {
		s.wsHub.Broadcast(msg)
	}
}

// journalPrices records the post-tick price of every ticked instrument the
// catalog knows about.
func (s *Service) journalPrices(ctx context.Context, next ledger.State, ticks []ledger.PriceTick) error {
	samples := make([]model.PriceSample, 0, len(ticks))
	for _, t := range ticks {
		in, ok := next.Catalog.Get(t.InstrumentID)
		if !ok {
			continue
		}
		samples = append(samples, model.PriceSample{
			InstrumentID: in.ID,
			Price:        in.Price,
			Time:         next.LastUpdated,
		})
	}
	if err := s.journal.RecordPrices(ctx, samples); err != nil {
		metrics.JournalErrors.WithLabelValues("record_prices").Inc()
		return err
	}
	return nil
}

// --- Helpers ---

func portfolioResponse(st ledger.State) PortfolioResponse {
	holdings := st.Holdings
	if holdings == nil {
		holdings = []model.Holding{}
	}

	display := PortfolioDisplay{
		Cash:              format.Currency(st.Cash),
		TotalValue:        format.Currency(st.TotalPortfolioValue),
		NetWorth:          format.Currency(st.NetWorth()),
		ProfitLoss:        format.Currency(st.TotalProfitLoss.Abs()),
		ProfitLossPercent: format.Percent(st.TotalProfitLossPercent),
		LastUpdated:       format.Clock(st.LastUpdated),
		Holdings:          make([]HoldingDisplay, len(holdings)),
	}
	if st.TotalProfitLoss.IsNegative() {
		display.ProfitLoss = "-" + display.ProfitLoss
	}
	for i, h := range holdings {
		display.Holdings[i] = HoldingDisplay{
			InstrumentID:      h.InstrumentID,
			Quantity:          format.Quantity(h.Quantity, h.Symbol),
			Value:             format.Currency(h.TotalValue),
			ProfitLoss:        format.Currency(h.ProfitLoss.Abs()),
			ProfitLossPercent: format.Percent(h.ProfitLossPercent),
		}
	}

	return PortfolioResponse{
		Cash:                   st.Cash,
		Holdings:               holdings,
		TotalPortfolioValue:    st.TotalPortfolioValue,
		TotalProfitLoss:        st.TotalProfitLoss,
		TotalProfitLossPercent: st.TotalProfitLossPercent,
		NetWorth:               st.NetWorth(),
		LastUpdated:            st.LastUpdated,
		Error:                  st.Error,
		Display:                display,
	}
}

// parseFilter reads ?instrument_id=, ?type= and ?limit=. It writes a 400 and
// returns false when a parameter is malformed.
func parseFilter(w http.ResponseWriter, r *http.Request) (store.TxFilter, bool) {
	q := r.URL.Query()
	filter := store.TxFilter{
		InstrumentID: q.Get("instrument_id"),
		Type:         model.TxType(q.Get("type")),
	}
	if filter.Type != "" && !filter.Type.Valid() {
		writeError(w, "type must be buy or sell", http.StatusBadRequest)
		return filter, false
	}
	limit, err := queryInt(r, "limit")
	if err != nil {
		writeError(w, "limit must be a non-negative integer", http.StatusBadRequest)
		return filter, false
	}
	filter.Limit = limit
	return filter, true
}

func queryInt(r *http.Request, key string) (int, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, errors.New("negative")
	}
	return n, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
