// This code is available on the terms of the project LICENSE.md file,
// also available online at https://blueoakcouncil.org/license/1.0.0.

// Package price maintains the tamper-resistant moving-average price feed:
// per-market collectors caching rolling averages over the append-only trade
// ledger, and a registry routing per-market queries and aggregating
// world-wide averages. Other game systems (insurance payouts, NPC pricing)
// consume these averages.
package price

import (
	"context"
	"sync"
	"time"

	"github.com/orbitforge/worldmarket/db"
	"github.com/orbitforge/worldmarket/econ"
)

const (
	// DefaultCacheTTL bounds the staleness of a cached average.
	DefaultCacheTTL = time.Hour

	// outlierFactor rejects trade samples whose implied per-unit price is
	// more than this factor above, or below one-over-this-factor of, the
	// current average. Manipulating the feed then requires moving real
	// volume at plausible prices.
	outlierFactor = 10.0
)

// Average is a trailing quantity-weighted mean transaction price.
type Average struct {
	// Price is the mean per-unit price over the window.
	Price float64
	// Quantity is the total units traded over the window.
	Quantity int64
}

type cacheEntry struct {
	avg     Average
	ok      bool
	updated time.Time
}

// Collector computes and caches rolling average prices for one market. The
// cache is the only long-lived in-memory state of the engine; it tolerates
// bounded staleness (up to the TTL) and sits outside the transactional
// boundary. It must never be mutated inside logic that may roll back, so
// trade recording only invalidates entries via a post-commit hook.
type Collector struct {
	info   *db.MarketInfo
	ledger db.PriceArchiver
	ttl    time.Duration
	window time.Duration
	now    func() time.Time

	mtx   sync.RWMutex
	cache map[econ.ItemDefID]cacheEntry
}

// NewCollector constructs a Collector over the given market's ledger.
func NewCollector(info *db.MarketInfo, ledger db.PriceArchiver) *Collector {
	return &Collector{
		info:   info,
		ledger: ledger,
		ttl:    DefaultCacheTTL,
		window: db.PriceWindow,
		now:    time.Now,
		cache:  make(map[econ.ItemDefID]cacheEntry),
	}
}

// MarketID is the collector's market.
func (c *Collector) MarketID() econ.MarketID {
	return c.info.ID
}

// Sandbox reports whether the collector's market sits on a training zone.
// Sandbox markets are excluded from the world average.
func (c *Collector) Sandbox() bool {
	return c.info.Sandbox
}

// Average returns the cached (price, quantity) for the item, recomputed from
// the ledger's trailing window if the cache entry is missing or older than
// the TTL. The second return is false when no ledger rows exist in-window.
func (c *Collector) Average(ctx context.Context, def econ.ItemDefID) (Average, bool, error) {
	now := c.now()

	c.mtx.RLock()
	entry, found := c.cache[def]
	c.mtx.RUnlock()
	if found && now.Sub(entry.updated) < c.ttl {
		return entry.avg, entry.ok, nil
	}

	return c.recompute(ctx, def, now)
}

func (c *Collector) recompute(ctx context.Context, def econ.ItemDefID, now time.Time) (Average, bool, error) {
	total, qty, err := c.ledger.WindowSum(ctx, c.info.ID, def, now.Add(-c.window))
	if err != nil {
		return Average{}, false, err
	}

	entry := cacheEntry{updated: now}
	if qty > 0 {
		entry.avg = Average{
			Price:    float64(total) / float64(qty),
			Quantity: qty,
		}
		entry.ok = true
	}

	c.mtx.Lock()
	c.cache[def] = entry
	c.mtx.Unlock()

	return entry.avg, entry.ok, nil
}

// RecordTrade appends a trade sample to the market's ledger within the given
// transaction, silently dropping outliers: once a meaningful average exists,
// samples priced more than 10x above or 10x below it are rejected. The very
// first sample for an item is always accepted. Cache invalidation is
// registered as a post-commit hook.
func (c *Collector) RecordTrade(ctx context.Context, tx db.Tx, def econ.ItemDefID, totalPrice int64, quantity uint32) error {
	if quantity == 0 || totalPrice < 0 {
		return econ.ErrInvalidQuantity
	}

	unit := float64(totalPrice) / float64(quantity)
	avg, ok, err := c.Average(ctx, def)
	if err != nil {
		return err
	}
	if ok && avg.Price > 0 {
		if unit > avg.Price*outlierFactor || unit < avg.Price/outlierFactor {
			log.Debugf("Dropping outlier trade sample for item %d on market %d: "+
				"unit price %.2f vs average %.2f", def, c.info.ID, unit, avg.Price)
			return nil
		}
	}

	unitPrice := totalPrice / int64(quantity)
	err = tx.AppendSample(ctx, &db.PriceSample{
		MarketID:   c.info.ID,
		ItemDef:    def,
		Bucket:     c.now(),
		TotalPrice: totalPrice,
		Quantity:   int64(quantity),
		High:       unitPrice,
		Low:        unitPrice,
	})
	if err != nil {
		return err
	}

	tx.OnCommit(func() { c.invalidate(def) })
	return nil
}

// invalidate drops the cache entry for an item so the next read recomputes
// from the ledger.
func (c *Collector) invalidate(def econ.ItemDefID) {
	c.mtx.Lock()
	delete(c.cache, def)
	c.mtx.Unlock()
}
