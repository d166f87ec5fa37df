package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/atmx/portfolio-engine/internal/model"
)

// cachedKeysSet tracks every transaction listing key currently cached so an
// append can invalidate all of them.
const cachedKeysSet = "journal:tx:keys"

// CachedJournal wraps a primary Journal (PostgreSQL) with a Redis
// read-through cache for transaction listings. Writes go to the primary and
// invalidate the cache; reads check Redis first then fall back to the
// primary.
type CachedJournal struct {
	primary Journal
	rdb     *redis.Client
	ttl     time.Duration
}

// NewCachedJournal creates a cached wrapper around a primary journal.
func NewCachedJournal(primary Journal, rdb *redis.Client, ttl time.Duration) *CachedJournal {
	return &CachedJournal{
		primary: primary,
		rdb:     rdb,
		ttl:     ttl,
	}
}

// --- Write-through (write to primary, invalidate cache) ---

func (j *CachedJournal) AppendTransaction(ctx context.Context, tx *model.Transaction) error {
	if err := j.primary.AppendTransaction(ctx, tx); err != nil {
		return err
	}
	j.invalidate(ctx)
	return nil
}

// --- Read-through (check cache first) ---

func (j *CachedJournal) ListTransactions(ctx context.Context, filter TxFilter) ([]model.Transaction, error) {
	key := transactionsKey(filter)

	data, err := j.rdb.Get(ctx, key).Bytes()
	if err == nil {
		var txs []model.Transaction
		if json.Unmarshal(data, &txs) == nil {
			return txs, nil
		}
	}

	// Cache miss.
	txs, err := j.primary.ListTransactions(ctx, filter)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(txs); err == nil {
		pipe := j.rdb.TxPipeline()
		pipe.Set(ctx, key, data, j.ttl)
		pipe.SAdd(ctx, cachedKeysSet, key)
		pipe.Expire(ctx, cachedKeysSet, j.ttl)
		pipe.Exec(ctx)
	}
	return txs, nil
}

// --- Passthrough (not cached; samples change every tick) ---

func (j *CachedJournal) RecordPrices(ctx context.Context, samples []model.PriceSample) error {
	return j.primary.RecordPrices(ctx, samples)
}

func (j *CachedJournal) ListPrices(ctx context.Context, instrumentID string, limit int) ([]model.PriceSample, error) {
	return j.primary.ListPrices(ctx, instrumentID, limit)
}

// --- Cache helpers ---

// invalidateScript deletes every tracked listing and the tracking set in
// one server-side step, so a fill landing mid-invalidation cannot leave an
// untracked listing behind. It returns the number of listings dropped.
var invalidateScript = redis.NewScript(`
local keys = redis.call('SMEMBERS', KEYS[1])
for _, k in ipairs(keys) do
	redis.call('DEL', k)
end
redis.call('DEL', KEYS[1])
return #keys
`)

// invalidate drops all cached listings. A listing read from the primary
// before an append and stored after this runs stays stale until its TTL.
func (j *CachedJournal) invalidate(ctx context.Context) {
	if err := invalidateCache(ctx, j.rdb); err != nil {
		slog.Warn("journal cache invalidation failed", "err", err)
	}
}

func invalidateCache(ctx context.Context, c redis.Scripter) error {
	return invalidateScript.Run(ctx, c, []string{cachedKeysSet}).Err()
}

func transactionsKey(f TxFilter) string {
	return fmt.Sprintf("journal:tx:%s:%s:%d", f.InstrumentID, f.Type, f.Limit)
}
