package trade_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"

	"github.com/atmx/portfolio-engine/internal/catalog"
	"github.com/atmx/portfolio-engine/internal/ledger"
	"github.com/atmx/portfolio-engine/internal/model"
	"github.com/atmx/portfolio-engine/internal/store"
	"github.com/atmx/portfolio-engine/internal/trade"
)

var t0 = time.Date(2025, 3, 1, 15, 4, 0, 0, time.UTC)

func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

func instruments() []model.Instrument {
	return []model.Instrument{
		{ID: "bitcoin", Symbol: "BTC", Name: "Bitcoin", Price: d(67542.32), High24h: d(67542.32), Low24h: d(67542.32)},
		{ID: "ethereum", Symbol: "ETH", Name: "Ethereum", Price: d(3456.78), High24h: d(3456.78), Low24h: d(3456.78)},
	}
}

type testEnv struct {
	svc     *trade.Service
	book    *ledger.Book
	journal *store.MemoryJournal
	router  chi.Router
}

// newTestEnv creates a test Service with an in-memory journal and chi router.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	n := 0
	reducer := ledger.Reducer{
		Clock: func() time.Time { return t0 },
		NewID: func() string { n++; return fmt.Sprintf("tx-%d", n) },
	}
	state := ledger.NewState(d(50000), catalog.New(instruments(), 0), nil, nil, t0)
	book := ledger.NewBook(state, reducer)
	journal := store.NewMemoryJournal(0)
	svc := trade.NewService(book, journal, nil)

	r := chi.NewRouter()
	r.Route("/api/v1", svc.Routes)

	return &testEnv{svc: svc, book: book, journal: journal, router: r}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func doTrade(t *testing.T, e *testEnv, req trade.TradeRequest) *httptest.ResponseRecorder {
	t.Helper()
	return e.do(t, "POST", "/api/v1/trade", req)
}

func price(f float64) decimal.NullDecimal {
	return decimal.NewNullDecimal(d(f))
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %s: %v", w.Body.String(), err)
	}
	return v
}

// --- Trade execution tests ---

func TestExecuteTrade_Buy(t *testing.T) {
	e := newTestEnv(t)

	w := doTrade(t, e, trade.TradeRequest{
		InstrumentID: "bitcoin",
		Type:         model.TxBuy,
		Quantity:     d(0.5),
		Price:        price(67542.32),
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	resp := decode[trade.TradeResponse](t, w)
	if resp.Transaction.ID != "tx-1" || resp.Transaction.Status != model.TxCompleted {
		t.Errorf("transaction = %+v", resp.Transaction)
	}
	if !resp.Transaction.Fee.Equal(d(33.77116)) {
		t.Errorf("fee = %s, want 33.77116", resp.Transaction.Fee)
	}
	if !resp.Portfolio.Cash.Equal(d(16195.06884)) {
		t.Errorf("cash = %s, want 16195.06884", resp.Portfolio.Cash)
	}
	if len(resp.Portfolio.Holdings) != 1 || !resp.Portfolio.Holdings[0].Quantity.Equal(d(0.5)) {
		t.Errorf("holdings = %+v", resp.Portfolio.Holdings)
	}

	journaled, _ := e.journal.ListTransactions(context.Background(), store.TxFilter{})
	if len(journaled) != 1 || journaled[0].ID != "tx-1" {
		t.Errorf("journal = %+v, want tx-1", journaled)
	}
}

func TestExecuteTrade_DefaultsToCurrentPrice(t *testing.T) {
	e := newTestEnv(t)

	w := doTrade(t, e, trade.TradeRequest{InstrumentID: "ethereum", Type: model.TxBuy, Quantity: d(2)})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	resp := decode[trade.TradeResponse](t, w)
	if !resp.Transaction.Price.Equal(d(3456.78)) {
		t.Errorf("price = %s, want current price 3456.78", resp.Transaction.Price)
	}
}

func TestExecuteTrade_DefaultPriceFollowsTicks(t *testing.T) {
	e := newTestEnv(t)

	if err := e.svc.ApplyTicks(context.Background(), []ledger.PriceTick{{InstrumentID: "ethereum", Price: d(3600)}}); err != nil {
		t.Fatalf("apply ticks: %v", err)
	}

	w := doTrade(t, e, trade.TradeRequest{InstrumentID: "ethereum", Type: model.TxBuy, Quantity: d(1)})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	resp := decode[trade.TradeResponse](t, w)
	if !resp.Transaction.Price.Equal(d(3600)) {
		t.Errorf("price = %s, want ticked price 3600", resp.Transaction.Price)
	}
	if !resp.Transaction.Total.Equal(d(3600)) {
		t.Errorf("total = %s, want 3600", resp.Transaction.Total)
	}
}

func TestExecuteTrade_BuyThenSellAll(t *testing.T) {
	e := newTestEnv(t)

	doTrade(t, e, trade.TradeRequest{InstrumentID: "bitcoin", Type: model.TxBuy, Quantity: d(0.5), Price: price(67542.32)})
	w := doTrade(t, e, trade.TradeRequest{InstrumentID: "bitcoin", Type: model.TxSell, Quantity: d(0.5), Price: price(70000)})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	resp := decode[trade.TradeResponse](t, w)
	if !resp.Portfolio.Cash.Equal(d(51160.06884)) {
		t.Errorf("cash = %s, want 51160.06884", resp.Portfolio.Cash)
	}
	if len(resp.Portfolio.Holdings) != 0 {
		t.Errorf("holding should be removed, got %+v", resp.Portfolio.Holdings)
	}
	if resp.Transaction.Type != model.TxSell || !resp.Transaction.Fee.Equal(d(35)) {
		t.Errorf("sell tx = %+v", resp.Transaction)
	}
}

func TestExecuteTrade_Rejections(t *testing.T) {
	tests := []struct {
		name    string
		body    any
		status  int
		message string
	}{
		{
			name:    "insufficient funds",
			body:    trade.TradeRequest{InstrumentID: "bitcoin", Type: model.TxBuy, Quantity: d(1)},
			status:  http.StatusConflict,
			message: "Insufficient balance",
		},
		{
			name:    "nothing held",
			body:    trade.TradeRequest{InstrumentID: "ethereum", Type: model.TxSell, Quantity: d(1)},
			status:  http.StatusConflict,
			message: "Insufficient crypto balance",
		},
		{
			name:    "unknown instrument",
			body:    trade.TradeRequest{InstrumentID: "dogecoin", Type: model.TxBuy, Quantity: d(1)},
			status:  http.StatusNotFound,
			message: "Crypto not found",
		},
		{
			name:    "zero quantity",
			body:    trade.TradeRequest{InstrumentID: "bitcoin", Type: model.TxBuy, Quantity: decimal.Zero},
			status:  http.StatusBadRequest,
			message: "Quantity and price must be greater than zero",
		},
		{
			name:    "negative price",
			body:    trade.TradeRequest{InstrumentID: "bitcoin", Type: model.TxBuy, Quantity: d(0.1), Price: price(-5)},
			status:  http.StatusBadRequest,
			message: "Quantity and price must be greater than zero",
		},
		{
			name:    "quantity below dust",
			body:    trade.TradeRequest{InstrumentID: "bitcoin", Type: model.TxBuy, Quantity: decimal.New(1, -9), Price: price(100)},
			status:  http.StatusBadRequest,
			message: "Quantity and price must be greater than zero",
		},
		{
			name:    "bad type",
			body:    trade.TradeRequest{InstrumentID: "bitcoin", Type: "hold", Quantity: d(1)},
			status:  http.StatusBadRequest,
			message: "type must be buy or sell",
		},
		{
			name:    "malformed body",
			body:    "{not json",
			status:  http.StatusBadRequest,
			message: "invalid request body",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEnv(t)
			before := e.book.Snapshot()

			w := e.do(t, "POST", "/api/v1/trade", tt.body)
			if w.Code != tt.status {
				t.Fatalf("expected %d, got %d: %s", tt.status, w.Code, w.Body.String())
			}
			body := decode[map[string]string](t, w)
			if body["error"] != tt.message {
				t.Errorf("error = %q, want %q", body["error"], tt.message)
			}

			after := e.book.Snapshot()
			if !after.Cash.Equal(before.Cash) || len(after.Transactions) != 0 || len(after.Holdings) != 0 {
				t.Errorf("rejected trade changed the ledger: %+v", after)
			}
			if journaled, _ := e.journal.ListTransactions(context.Background(), store.TxFilter{}); len(journaled) != 0 {
				t.Errorf("rejected trade was journaled: %+v", journaled)
			}
		})
	}
}

func TestPortfolio_ErrorSetAndCleared(t *testing.T) {
	e := newTestEnv(t)

	doTrade(t, e, trade.TradeRequest{InstrumentID: "bitcoin", Type: model.TxBuy, Quantity: d(10)})
	p := decode[trade.PortfolioResponse](t, e.do(t, "GET", "/api/v1/portfolio", nil))
	if p.Error != "Insufficient balance" {
		t.Fatalf("portfolio error = %q", p.Error)
	}

	w := e.do(t, "DELETE", "/api/v1/portfolio/error", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if p := decode[trade.PortfolioResponse](t, w); p.Error != "" {
		t.Errorf("error not cleared: %q", p.Error)
	}
}

func TestPortfolio_SuccessfulTradeClearsError(t *testing.T) {
	e := newTestEnv(t)

	doTrade(t, e, trade.TradeRequest{InstrumentID: "bitcoin", Type: model.TxBuy, Quantity: d(10)})
	w := doTrade(t, e, trade.TradeRequest{InstrumentID: "ethereum", Type: model.TxBuy, Quantity: d(1)})
	if resp := decode[trade.TradeResponse](t, w); resp.Portfolio.Error != "" {
		t.Errorf("error = %q, want cleared", resp.Portfolio.Error)
	}
}

func TestPortfolio_Display(t *testing.T) {
	e := newTestEnv(t)

	p := decode[trade.PortfolioResponse](t, e.do(t, "GET", "/api/v1/portfolio", nil))
	if p.Display.Cash != "$50,000.00" {
		t.Errorf("cash display = %q", p.Display.Cash)
	}
	if p.Display.ProfitLossPercent != "+0.00%" {
		t.Errorf("p/l percent display = %q", p.Display.ProfitLossPercent)
	}
	if p.Display.LastUpdated != "03:04 PM" {
		t.Errorf("last updated display = %q", p.Display.LastUpdated)
	}
	if !p.NetWorth.Equal(d(50000)) {
		t.Errorf("net worth = %s", p.NetWorth)
	}
}

func TestListTransactions_FilterAndFees(t *testing.T) {
	e := newTestEnv(t)

	doTrade(t, e, trade.TradeRequest{InstrumentID: "ethereum", Type: model.TxBuy, Quantity: d(2), Price: price(1000)})
	doTrade(t, e, trade.TradeRequest{InstrumentID: "ethereum", Type: model.TxSell, Quantity: d(1), Price: price(2000)})
	doTrade(t, e, trade.TradeRequest{InstrumentID: "bitcoin", Type: model.TxBuy, Quantity: d(0.1), Price: price(10000)})

	all := decode[trade.TransactionsResponse](t, e.do(t, "GET", "/api/v1/transactions", nil))
	if all.Count != 3 || all.Transactions[0].ID != "tx-3" {
		t.Fatalf("all = %+v", all)
	}
	if !all.TotalFees.Equal(d(5)) {
		t.Errorf("total fees = %s, want 5", all.TotalFees)
	}

	buys := decode[trade.TransactionsResponse](t, e.do(t, "GET", "/api/v1/transactions?type=buy", nil))
	if buys.Count != 2 || !buys.TotalFees.Equal(d(3)) {
		t.Errorf("buys = %d fees %s, want 2 fees 3", buys.Count, buys.TotalFees)
	}

	if w := e.do(t, "GET", "/api/v1/transactions?type=hold", nil); w.Code != http.StatusBadRequest {
		t.Errorf("invalid type: expected 400, got %d", w.Code)
	}
	if w := e.do(t, "GET", "/api/v1/transactions?limit=-1", nil); w.Code != http.StatusBadRequest {
		t.Errorf("negative limit: expected 400, got %d", w.Code)
	}
}

// --- Instrument and tick tests ---

func TestGetInstrument(t *testing.T) {
	e := newTestEnv(t)

	w := e.do(t, "GET", "/api/v1/instruments/bitcoin", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if in := decode[model.Instrument](t, w); in.Symbol != "BTC" {
		t.Errorf("symbol = %s", in.Symbol)
	}

	if w := e.do(t, "GET", "/api/v1/instruments/dogecoin", nil); w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}

	list := decode[[]model.Instrument](t, e.do(t, "GET", "/api/v1/instruments", nil))
	if len(list) != 2 || list[0].ID != "bitcoin" {
		t.Errorf("list = %+v", list)
	}
}

func TestInstrumentStats(t *testing.T) {
	e := newTestEnv(t)
	history := []model.PricePoint{
		{Time: t0.Add(-2 * time.Hour), Price: d(100)},
		{Time: t0.Add(-time.Hour), Price: d(110)},
		{Time: t0, Price: d(120)},
	}
	e.book.Dispatch(ledger.SetInstruments{Instruments: []model.Instrument{
		{ID: "solana", Symbol: "SOL", Name: "Solana", Price: d(120), PriceHistory: history},
	}})

	w := e.do(t, "GET", "/api/v1/instruments/solana/stats", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	stats := decode[trade.StatsResponse](t, w)
	if stats.Samples != 3 {
		t.Errorf("samples = %d", stats.Samples)
	}
	if !stats.Mean.Equal(d(110)) || !stats.StdDev.Equal(d(10)) {
		t.Errorf("mean/stddev = %s/%s, want 110/10", stats.Mean, stats.StdDev)
	}
	if !stats.Min.Equal(d(100)) || !stats.Max.Equal(d(120)) {
		t.Errorf("min/max = %s/%s, want 100/120", stats.Min, stats.Max)
	}
}

func TestInstrumentStats_EmptyHistory(t *testing.T) {
	e := newTestEnv(t)

	stats := decode[trade.StatsResponse](t, e.do(t, "GET", "/api/v1/instruments/bitcoin/stats", nil))
	if stats.Samples != 0 || !stats.Mean.IsZero() {
		t.Errorf("stats = %+v, want empty", stats)
	}
}

func TestApplyTicks_Sink(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	err := e.svc.ApplyTicks(ctx, []ledger.PriceTick{
		{InstrumentID: "bitcoin", Price: d(68000)},
		{InstrumentID: "dogecoin", Price: d(0.1)},
	})
	if err != nil {
		t.Fatalf("apply ticks: %v", err)
	}

	in, _ := e.book.Snapshot().Catalog.Get("bitcoin")
	if !in.Price.Equal(d(68000)) || !in.High24h.Equal(d(68000)) {
		t.Errorf("bitcoin = %s high %s, want 68000", in.Price, in.High24h)
	}
	if got := e.svc.Instruments(); len(got) != 2 {
		t.Errorf("tick added an instrument: %d", len(got))
	}

	samples, _ := e.journal.ListPrices(ctx, "bitcoin", 0)
	if len(samples) != 1 || !samples[0].Price.Equal(d(68000)) {
		t.Errorf("journaled samples = %+v", samples)
	}
	if none, _ := e.journal.ListPrices(ctx, "dogecoin", 0); len(none) != 0 {
		t.Errorf("unknown instrument journaled: %+v", none)
	}
}

// failingJournal accepts transactions but fails every price write.
type failingJournal struct {
	*store.MemoryJournal
}

func (failingJournal) RecordPrices(context.Context, []model.PriceSample) error {
	return errors.New("journal unavailable")
}

func TestApplyTicks_JournalFailureDoesNotFailBatch(t *testing.T) {
	state := ledger.NewState(d(50000), catalog.New(instruments(), 0), nil, nil, t0)
	book := ledger.NewBook(state, ledger.Reducer{})
	svc := trade.NewService(book, failingJournal{store.NewMemoryJournal(0)}, nil)

	err := svc.ApplyTicks(context.Background(), []ledger.PriceTick{{InstrumentID: "bitcoin", Price: d(68000)}})
	if err != nil {
		t.Fatalf("apply ticks returned journal error: %v", err)
	}
	in, _ := book.Snapshot().Catalog.Get("bitcoin")
	if !in.Price.Equal(d(68000)) {
		t.Errorf("bitcoin = %s, want 68000", in.Price)
	}
}

func TestApplyTicks_RevaluesHoldings(t *testing.T) {
	e := newTestEnv(t)
	doTrade(t, e, trade.TradeRequest{InstrumentID: "ethereum", Type: model.TxBuy, Quantity: d(2), Price: price(3000)})

	w := e.do(t, "POST", "/api/v1/ticks", trade.TicksRequest{Ticks: []ledger.PriceTick{
		{InstrumentID: "ethereum", Price: d(3500)},
	}})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	p := decode[trade.PortfolioResponse](t, e.do(t, "GET", "/api/v1/portfolio", nil))
	if !p.TotalPortfolioValue.Equal(d(7000)) || !p.TotalProfitLoss.Equal(d(1000)) {
		t.Errorf("value/pl = %s/%s, want 7000/1000", p.TotalPortfolioValue, p.TotalProfitLoss)
	}

	if w := e.do(t, "POST", "/api/v1/ticks", trade.TicksRequest{}); w.Code != http.StatusBadRequest {
		t.Errorf("empty ticks: expected 400, got %d", w.Code)
	}
}

func TestApplyQuote(t *testing.T) {
	e := newTestEnv(t)

	w := e.do(t, "POST", "/api/v1/quotes", catalog.Quote{
		InstrumentID:     "ethereum",
		Price:            d(3600),
		Change24h:        d(100),
		ChangePercent24h: d(2.86),
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	in := decode[model.Instrument](t, w)
	if !in.Price.Equal(d(3600)) || !in.Change24h.Equal(d(100)) {
		t.Errorf("instrument = %s change %s", in.Price, in.Change24h)
	}

	if w := e.do(t, "POST", "/api/v1/quotes", catalog.Quote{InstrumentID: "dogecoin", Price: d(1)}); w.Code != http.StatusNotFound {
		t.Errorf("unknown quote: expected 404, got %d", w.Code)
	}
	if w := e.do(t, "POST", "/api/v1/quotes", catalog.Quote{InstrumentID: "ethereum"}); w.Code != http.StatusBadRequest {
		t.Errorf("zero price: expected 400, got %d", w.Code)
	}
}

func TestSetInstruments(t *testing.T) {
	e := newTestEnv(t)

	w := e.do(t, "POST", "/api/v1/instruments", trade.InstrumentsRequest{Instruments: []model.Instrument{
		{ID: "cardano", Symbol: "ADA", Name: "Cardano", Price: d(0.45)},
	}})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if list := decode[[]model.Instrument](t, w); len(list) != 1 || list[0].ID != "cardano" {
		t.Errorf("list = %+v", list)
	}

	w = e.do(t, "POST", "/api/v1/instruments", trade.InstrumentsRequest{Instruments: []model.Instrument{{Symbol: "X"}}})
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing id: expected 400, got %d", w.Code)
	}
}

// --- Journal tests ---

func TestJournalEndpoints(t *testing.T) {
	e := newTestEnv(t)
	doTrade(t, e, trade.TradeRequest{InstrumentID: "ethereum", Type: model.TxBuy, Quantity: d(1)})
	doTrade(t, e, trade.TradeRequest{InstrumentID: "bitcoin", Type: model.TxBuy, Quantity: d(0.1)})
	e.svc.ApplyTicks(context.Background(), []ledger.PriceTick{{InstrumentID: "bitcoin", Price: d(68000)}})
	e.svc.ApplyTicks(context.Background(), []ledger.PriceTick{{InstrumentID: "bitcoin", Price: d(68100)}})

	txs := decode[[]model.Transaction](t, e.do(t, "GET", "/api/v1/journal/transactions?instrument_id=ethereum", nil))
	if len(txs) != 1 || txs[0].InstrumentID != "ethereum" {
		t.Errorf("journal transactions = %+v", txs)
	}

	samples := decode[[]model.PriceSample](t, e.do(t, "GET", "/api/v1/journal/prices/bitcoin?limit=1", nil))
	if len(samples) != 1 || !samples[0].Price.Equal(d(68100)) {
		t.Errorf("journal prices = %+v", samples)
	}

	if w := e.do(t, "GET", "/api/v1/journal/prices/bitcoin?limit=abc", nil); w.Code != http.StatusBadRequest {
		t.Errorf("bad limit: expected 400, got %d", w.Code)
	}
}

// --- WebSocket tests ---

func TestWSHub_BroadcastsTrades(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := trade.NewWSHub()
	go hub.Run(ctx)

	state := ledger.NewState(d(50000), catalog.New(instruments(), 0), nil, nil, t0)
	book := ledger.NewBook(state, ledger.Reducer{})
	svc := trade.NewService(book, store.NewMemoryJournal(0), hub)

	r := chi.NewRouter()
	r.Get("/ws", hub.HandleWS)
	r.Route("/api/v1", svc.Routes)
	srv := httptest.NewServer(r)
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for hub.Clients() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("client never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	body, _ := json.Marshal(trade.TradeRequest{InstrumentID: "ethereum", Type: model.TxBuy, Quantity: d(1)})
	resp, err := http.Post(srv.URL+"/api/v1/trade", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("post trade: %v", err)
	}
	resp.Body.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg trade.WSMessage
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read: %v", err)
	}
	if msg.Type != trade.MsgTradeExecuted || msg.InstrumentID != "ethereum" || msg.TxType != "buy" {
		t.Errorf("message = %+v", msg)
	}

	svc.ApplyTicks(ctx, []ledger.PriceTick{{InstrumentID: "bitcoin", Price: d(68000)}})
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read tick: %v", err)
	}
	if msg.Type != trade.MsgPriceTick || msg.Price != "68000" {
		t.Errorf("tick message = %+v", msg)
	}
}
