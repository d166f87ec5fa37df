package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/atmx/portfolio-engine/internal/model"
)

// Schema creates the journal tables. All monetary values are NUMERIC for
// exact decimal precision.
const Schema = `
CREATE TABLE IF NOT EXISTS journal_transactions (
	id            TEXT PRIMARY KEY,
	instrument_id TEXT        NOT NULL,
	symbol        TEXT        NOT NULL,
	name          TEXT        NOT NULL,
	type          TEXT        NOT NULL,
	quantity      NUMERIC     NOT NULL,
	price         NUMERIC     NOT NULL,
	total         NUMERIC     NOT NULL,
	fee           NUMERIC     NOT NULL,
	status        TEXT        NOT NULL,
	timestamp     TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS journal_transactions_ts ON journal_transactions (timestamp DESC);

CREATE TABLE IF NOT EXISTS journal_prices (
	instrument_id TEXT        NOT NULL,
	price         NUMERIC     NOT NULL,
	time          TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS journal_prices_instrument_time ON journal_prices (instrument_id, time DESC);
`

// PostgresJournal implements Journal on PostgreSQL.
type PostgresJournal struct {
	pool *pgxpool.Pool
}

// NewPostgresJournal creates a new PostgreSQL-backed journal.
func NewPostgresJournal(pool *pgxpool.Pool) *PostgresJournal {
	return &PostgresJournal{pool: pool}
}

// EnsureSchema creates the journal tables if they do not exist.
func (j *PostgresJournal) EnsureSchema(ctx context.Context) error {
	if _, err := j.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("ensure journal schema: %w", err)
	}
	return nil
}

func (j *PostgresJournal) AppendTransaction(ctx context.Context, tx *model.Transaction) error {
	_, err := j.pool.Exec(ctx,
		`INSERT INTO journal_transactions (id, instrument_id, symbol, name, type, quantity, price, total, fee, status, timestamp)
		 VALUES ($1, $2, $3, $4, $5, $6::NUMERIC, $7::NUMERIC, $8::NUMERIC, $9::NUMERIC, $10, $11)`,
		tx.ID, tx.InstrumentID, tx.Symbol, tx.Name, string(tx.Type),
		tx.Quantity.String(), tx.Price.String(), tx.Total.String(), tx.Fee.String(),
		string(tx.Status), tx.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("append transaction %s: %w", tx.ID, err)
	}
	return nil
}

func (j *PostgresJournal) ListTransactions(ctx context.Context, filter TxFilter) ([]model.Transaction, error) {
	query, args := transactionsQuery(filter)
	rows, err := j.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanTransactions(rows)
}

// transactionsQuery builds the listing statement for filter.
func transactionsQuery(filter TxFilter) (string, []any) {
	var (
		where []string
		args  []any
	)
	if filter.InstrumentID != "" {
		args = append(args, filter.InstrumentID)
		where = append(where, fmt.Sprintf("instrument_id = $%d", len(args)))
	}
	if filter.Type != "" {
		args = append(args, string(filter.Type))
		where = append(where, fmt.Sprintf("type = $%d", len(args)))
	}

	var b strings.Builder
	b.WriteString(`SELECT id, instrument_id, symbol, name, type,
	        quantity::TEXT, price::TEXT, total::TEXT, fee::TEXT, status, timestamp
	 FROM journal_transactions`)
	if len(where) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(where, " AND "))
	}
	b.WriteString(" ORDER BY timestamp DESC")
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		fmt.Fprintf(&b, " LIMIT $%d", len(args))
	}
	return b.String(), args
}

func (j *PostgresJournal) RecordPrices(ctx context.Context, samples []model.PriceSample) error {
	if len(samples) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, s := range samples {
		batch.Queue(`INSERT INTO journal_prices (instrument_id, price, time) VALUES ($1, $2::NUMERIC, $3)`,
			s.InstrumentID, s.Price.String(), s.Time)
	}
	if err := j.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("record %d prices: %w", len(samples), err)
	}
	return nil
}

func (j *PostgresJournal) ListPrices(ctx context.Context, instrumentID string, limit int) ([]model.PriceSample, error) {
	query := `SELECT instrument_id, price::TEXT, time FROM (
		SELECT instrument_id, price, time FROM journal_prices
		 WHERE instrument_id = $1 ORDER BY time DESC`
	args := []any{instrumentID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}
	query += `) recent ORDER BY time`

	rows, err := j.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var samples []model.PriceSample
	for rows.Next() {
		var s model.PriceSample
		var priceS string
		if err := rows.Scan(&s.InstrumentID, &priceS, &s.Time); err != nil {
			return nil, err
		}
		s.Price, _ = decimal.NewFromString(priceS)
		samples = append(samples, s)
	}
	return samples, rows.Err()
}

// pgxRows is the subset of pgx.Rows used by scanTransactions.
type pgxRows interface {
	Next() bool
	Scan(dest ...interface{}) error
	Err() error
}

func scanTransactions(rows pgxRows) ([]model.Transaction, error) {
	var txs []model.Transaction
	for rows.Next() {
		var tx model.Transaction
		var typ, status, qtyS, priceS, totalS, feeS string

		if err := rows.Scan(&tx.ID, &tx.InstrumentID, &tx.Symbol, &tx.Name, &typ,
			&qtyS, &priceS, &totalS, &feeS, &status, &tx.Timestamp); err != nil {
			return nil, err
		}

		tx.Type = model.TxType(typ)
		tx.Status = model.TxStatus(status)
		tx.Quantity, _ = decimal.NewFromString(qtyS)
		tx.Price, _ = decimal.NewFromString(priceS)
		tx.Total, _ = decimal.NewFromString(totalS)
		tx.Fee, _ = decimal.NewFromString(feeS)

		txs = append(txs, tx)
	}
	return txs, rows.Err()
}
