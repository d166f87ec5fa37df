// Package client is a Go client for the portfolio engine's HTTP API.
package client

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"

	"github.com/atmx/portfolio-engine/internal/ledger"
	"github.com/atmx/portfolio-engine/internal/model"
	"github.com/atmx/portfolio-engine/internal/trade"
)

// APIError is a non-2xx response from the engine.
type APIError struct {
	Status  int
	Message string `json:"error"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
}

// Client talks to one engine instance.
type Client struct {
	client *resty.Client
}

// New creates a client for the engine at baseURL, e.g.
// "http://localhost:8080".
func New(baseURL string) *Client {
	client := resty.New()
	client.SetBaseURL(baseURL + "/api/v1")
	client.SetTimeout(10 * time.Second)
	client.SetHeader("Accept", "application/json")

	return &Client{client: client}
}

// Instruments lists the catalog.
func (c *Client) Instruments(ctx context.Context) ([]model.Instrument, error) {
	var out []model.Instrument
	if err := c.get(ctx, "/instruments", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Instrument fetches one instrument.
func (c *Client) Instrument(ctx context.Context, id string) (*model.Instrument, error) {
	var out model.Instrument
	if err := c.get(ctx, "/instruments/"+id, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Portfolio fetches the current ledger snapshot.
func (c *Client) Portfolio(ctx context.Context) (*trade.PortfolioResponse, error) {
	var out trade.PortfolioResponse
	if err := c.get(ctx, "/portfolio", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Transactions lists the ledger's transactions, newest first. An empty typ
// lists both buys and sells.
func (c *Client) Transactions(ctx context.Context, typ model.TxType) (*trade.TransactionsResponse, error) {
	params := map[string]string{}
	if typ != "" {
		params["type"] = string(typ)
	}
	var out trade.TransactionsResponse
	if err := c.get(ctx, "/transactions", params, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Buy purchases qty of an instrument. A nil price trades at the current
// price.
func (c *Client) Buy(ctx context.Context, id string, qty decimal.Decimal, price *decimal.Decimal) (*trade.TradeResponse, error) {
	return c.trade(ctx, model.TxBuy, id, qty, price)
}

// Sell disposes of qty of a held instrument. A nil price trades at the
// current price.
func (c *Client) Sell(ctx context.Context, id string, qty decimal.Decimal, price *decimal.Decimal) (*trade.TradeResponse, error) {
	return c.trade(ctx, model.TxSell, id, qty, price)
}

func (c *Client) trade(ctx context.Context, typ model.TxType, id string, qty decimal.Decimal, price *decimal.Decimal) (*trade.TradeResponse, error) {
	req := trade.TradeRequest{InstrumentID: id, Type: typ, Quantity: qty}
	if price != nil {
		req.Price = decimal.NewNullDecimal(*price)
	}
	var out trade.TradeResponse
	if err := c.post(ctx, "/trade", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Tick sets one instrument's price.
func (c *Client) Tick(ctx context.Context, id string, price decimal.Decimal) ([]model.Instrument, error) {
	var out []model.Instrument
	body := trade.TicksRequest{Ticks: []ledger.PriceTick{{InstrumentID: id, Price: price}}}
	if err := c.post(ctx, "/ticks", body, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) get(ctx context.Context, path string, params map[string]string, out any) error {
	apiErr := &APIError{}
	resp, err := c.client.R().
		SetContext(ctx).
		SetQueryParams(params).
		SetResult(out).
		SetError(apiErr).
		Get(path)
	return check(resp, err, apiErr, path)
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	apiErr := &APIError{}
	resp, err := c.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		SetResult(out).
		SetError(apiErr).
		Post(path)
	return check(resp, err, apiErr, path)
}

func check(resp *resty.Response, err error, apiErr *APIError, path string) error {
	if err != nil {
		return fmt.Errorf("request %s: %w", path, err)
	}
	if resp.IsError() {
		apiErr.Status = resp.StatusCode()
		if apiErr.Message == "" {
			apiErr.Message = resp.String()
		}
		return apiErr
	}
	return nil
}
