package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atmx/portfolio-engine/internal/catalog"
	"github.com/atmx/portfolio-engine/internal/ledger"
	"github.com/atmx/portfolio-engine/internal/model"
	"github.com/atmx/portfolio-engine/internal/store"
	"github.com/atmx/portfolio-engine/internal/trade"
)

func newServer(t *testing.T) *Client {
	t.Helper()
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	instruments := []model.Instrument{
		{ID: "bitcoin", Symbol: "BTC", Name: "Bitcoin", Price: decimal.NewFromInt(60000)},
		{ID: "ethereum", Symbol: "ETH", Name: "Ethereum", Price: decimal.NewFromInt(3000)},
	}
	state := ledger.NewState(decimal.NewFromInt(10000), catalog.New(instruments, 0), nil, nil, now)
	svc := trade.NewService(ledger.NewBook(state, ledger.Reducer{}), store.NewMemoryJournal(0), nil)

	r := chi.NewRouter()
	r.Route("/api/v1", svc.Routes)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	return New(srv.URL)
}

func TestClient_InstrumentsAndPortfolio(t *testing.T) {
	c := newServer(t)
	ctx := context.Background()

	list, err := c.Instruments(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "BTC", list[0].Symbol)

	in, err := c.Instrument(ctx, "ethereum")
	require.NoError(t, err)
	assert.True(t, in.Price.Equal(decimal.NewFromInt(3000)))

	p, err := c.Portfolio(ctx)
	require.NoError(t, err)
	assert.Equal(t, "$10,000.00", p.Display.Cash)
}

func TestClient_BuySellTick(t *testing.T) {
	c := newServer(t)
	ctx := context.Background()

	bought, err := c.Buy(ctx, "ethereum", decimal.NewFromInt(2), nil)
	require.NoError(t, err)
	assert.True(t, bought.Transaction.Price.Equal(decimal.NewFromInt(3000)))
	assert.True(t, bought.Portfolio.Cash.Equal(decimal.NewFromInt(3994)))

	_, err = c.Tick(ctx, "ethereum", decimal.NewFromInt(3500))
	require.NoError(t, err)

	limit := decimal.NewFromInt(4000)
	sold, err := c.Sell(ctx, "ethereum", decimal.NewFromInt(1), &limit)
	require.NoError(t, err)
	assert.True(t, sold.Transaction.Price.Equal(limit))
	assert.True(t, sold.Portfolio.TotalPortfolioValue.Equal(decimal.NewFromInt(3500)))

	txs, err := c.Transactions(ctx, model.TxSell)
	require.NoError(t, err)
	assert.Equal(t, 1, txs.Count)
	assert.True(t, txs.TotalFees.Equal(decimal.NewFromInt(4)))
}

func TestClient_APIError(t *testing.T) {
	c := newServer(t)

	_, err := c.Buy(context.Background(), "bitcoin", decimal.NewFromInt(1), nil)
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusConflict, apiErr.Status)
	assert.Equal(t, "Insufficient balance", apiErr.Message)

	_, err = c.Instrument(context.Background(), "dogecoin")
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.Status)
}
