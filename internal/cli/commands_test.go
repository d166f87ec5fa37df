package cli

import (
	"bytes"
	"context"
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

func startEngine(t *testing.T) string {
	t.Helper()
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	instruments := []model.Instrument{
		{ID: "solana", Symbol: "SOL", Name: "Solana", Price: decimal.NewFromInt(150)},
	}
	state := ledger.NewState(decimal.NewFromInt(1000), catalog.New(instruments, 0), nil, nil, now)
	svc := trade.NewService(ledger.NewBook(state, ledger.Reducer{}), store.NewMemoryJournal(0), nil)

	r := chi.NewRouter()
	r.Route("/api/v1", svc.Routes)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv.URL
}

func run(t *testing.T, url string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := NewRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--server", url}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestCommands_BuyThenPortfolio(t *testing.T) {
	url := startEngine(t)

	out, err := run(t, url, "buy", "solana", "2", "--price", "100")
	require.NoError(t, err)
	assert.Contains(t, out, "Buy 2.00 SOL at $100.00")
	assert.Contains(t, out, "cash $799.80")

	out, err = run(t, url, "portfolio")
	require.NoError(t, err)
	assert.Contains(t, out, "$799.80")
	assert.Contains(t, out, "solana")

	out, err = run(t, url, "transactions", "--type", "buy")
	require.NoError(t, err)
	assert.Contains(t, out, "1 transactions, $0.20 in fees")
}

func TestCommands_TickAndInstruments(t *testing.T) {
	url := startEngine(t)

	out, err := run(t, url, "tick", "solana", "165")
	require.NoError(t, err)
	assert.Contains(t, out, "SOL $165.00")

	out, err = run(t, url, "instruments")
	require.NoError(t, err)
	assert.Contains(t, out, "solana")
	assert.Contains(t, out, "$165.00")
}

func TestCommands_Errors(t *testing.T) {
	url := startEngine(t)

	_, err := run(t, url, "sell", "solana", "1")
	assert.ErrorContains(t, err, "Insufficient crypto balance")

	_, err = run(t, url, "buy", "solana", "lots")
	assert.ErrorContains(t, err, "invalid quantity")

	_, err = run(t, url, "transactions", "--type", "hold")
	assert.Error(t, err)

	_, err = run(t, url, "tick", "dogecoin", "1")
	assert.ErrorContains(t, err, "not found")
}
