// This code is available on the terms of the project LICENSE.md file,
// also available online at https://blueoakcouncil.org/license/1.0.0.

package price

import (
	"context"
	"sync"
	"time"

	"github.com/orbitforge/worldmarket/db"
	"github.com/orbitforge/worldmarket/econ"
)

// visibleTTL bounds the staleness of a character's visible-markets set.
const visibleTTL = 2 * time.Minute

type visEntry struct {
	markets []econ.MarketID
	updated time.Time
}

// Registry tracks all markets, routes price queries and trade records to the
// right Collector, exposes the world-aggregate average, and caches
// per-character market visibility.
type Registry struct {
	store db.PriceArchiver
	vis   econ.VisibilitySource
	now   func() time.Time

	mtx        sync.RWMutex
	infos      map[econ.MarketID]*db.MarketInfo
	collectors map[econ.MarketID]*Collector

	visMtx   sync.Mutex
	visCache map[econ.EntityID]visEntry
}

// NewRegistry constructs a Registry over the configured markets. vis may be
// nil when no visibility source is wired; VisibleMarkets then returns all
// markets.
func NewRegistry(store db.PriceArchiver, markets []*db.MarketInfo, vis econ.VisibilitySource) *Registry {
	infos := make(map[econ.MarketID]*db.MarketInfo, len(markets))
	for _, mkt := range markets {
		infos[mkt.ID] = mkt
	}
	return &Registry{
		store:      store,
		vis:        vis,
		now:        time.Now,
		infos:      infos,
		collectors: make(map[econ.MarketID]*Collector, len(markets)),
		visCache:   make(map[econ.EntityID]visEntry),
	}
}

// Markets lists the registered venue configurations.
func (r *Registry) Markets() []*db.MarketInfo {
	r.mtx.RLock()
	defer r.mtx.RUnlock()
	mkts := make([]*db.MarketInfo, 0, len(r.infos))
	for _, info := range r.infos {
		mkts = append(mkts, info)
	}
	return mkts
}

// Collector returns the (lazily created) Collector for a market.
func (r *Registry) Collector(mkt econ.MarketID) (*Collector, error) {
	r.mtx.RLock()
	c, found := r.collectors[mkt]
	r.mtx.RUnlock()
	if found {
		return c, nil
	}

	r.mtx.Lock()
	defer r.mtx.Unlock()
	if c, found = r.collectors[mkt]; found {
		return c, nil
	}
	info, found := r.infos[mkt]
	if !found {
		return nil, db.ArchiveError{Code: db.ErrUnknownMarket}
	}
	c = NewCollector(info, r.store)
	// Collectors share the registry's clock.
	c.now = r.now
	r.collectors[mkt] = c
	return c, nil
}

// RecordTrade routes a trade sample to the market's Collector. See
// Collector.RecordTrade.
func (r *Registry) RecordTrade(ctx context.Context, tx db.Tx, mkt econ.MarketID, def econ.ItemDefID, totalPrice int64, quantity uint32) error {
	c, err := r.Collector(mkt)
	if err != nil {
		return err
	}
	return c.RecordTrade(ctx, tx, def, totalPrice, quantity)
}

// Average returns one market's average for an item. See Collector.Average.
func (r *Registry) Average(ctx context.Context, mkt econ.MarketID, def econ.ItemDefID) (Average, bool, error) {
	c, err := r.Collector(mkt)
	if err != nil {
		return Average{}, false, err
	}
	return c.Average(ctx, def)
}

// WorldAverage is the quantity-weighted mean of all markets' local averages,
// excluding markets with no meaningful data and excluding sandbox markets
// entirely.
func (r *Registry) WorldAverage(ctx context.Context, def econ.ItemDefID) (Average, bool, error) {
	r.mtx.RLock()
	ids := make([]econ.MarketID, 0, len(r.infos))
	for id, info := range r.infos {
		if info.Sandbox {
			continue
		}
		ids = append(ids, id)
	}
	r.mtx.RUnlock()

	var weighted float64
	var totalQty int64
	for _, id := range ids {
		avg, ok, err := r.Average(ctx, id, def)
		if err != nil {
			return Average{}, false, err
		}
		if !ok || avg.Quantity == 0 {
			continue
		}
		weighted += avg.Price * float64(avg.Quantity)
		totalQty += avg.Quantity
	}
	if totalQty == 0 {
		return Average{}, false, nil
	}
	return Average{
		Price:    weighted / float64(totalQty),
		Quantity: totalQty,
	}, true, nil
}

// VisibleMarkets returns the markets a character may see, cached with a
// short TTL over the game's visibility source.
func (r *Registry) VisibleMarkets(ctx context.Context, char econ.EntityID) ([]econ.MarketID, error) {
	if r.vis == nil {
		r.mtx.RLock()
		defer r.mtx.RUnlock()
		ids := make([]econ.MarketID, 0, len(r.infos))
		for id := range r.infos {
			ids = append(ids, id)
		}
		return ids, nil
	}

	now := r.now()
	r.visMtx.Lock()
	entry, found := r.visCache[char]
	r.visMtx.Unlock()
	if found && now.Sub(entry.updated) < visibleTTL {
		return entry.markets, nil
	}

	mkts, err := r.vis.VisibleMarkets(ctx, char)
	if err != nil {
		return nil, err
	}
	r.visMtx.Lock()
	r.visCache[char] = visEntry{markets: mkts, updated: now}
	r.visMtx.Unlock()
	return mkts, nil
}
